package bgp

import "net/netip"

// PrefixListEntry is one permit/deny clause matching a prefix within a
// length range, grounded on the filter shape teacher's config.go
// leaves as an unimplemented placeholder (NeighborConfig carries no
// policy fields at all) — built fresh from spec.md §4.6's "prefix-list
// and community-list permit/deny" requirement.
type PrefixListEntry struct {
	Prefix  netip.Prefix
	MinLen  int
	MaxLen  int
	Permit  bool
}

func (e PrefixListEntry) matches(p netip.Prefix) bool {
	if e.Prefix.Bits() > p.Bits() {
		return false
	}
	if !e.Prefix.Contains(p.Addr()) {
		return false
	}
	bits := p.Bits()
	return bits >= e.MinLen && bits <= e.MaxLen
}

type CommunityListEntry struct {
	Community uint32
	Permit    bool
}

// Policy is one named filter set, applied at Adj-RIB-In (inbound) or
// Adj-RIB-Out (outbound) construction time.
type Policy struct {
	PrefixLists    map[string][]PrefixListEntry
	CommunityLists map[string][]CommunityListEntry
}

func NewPolicy() *Policy {
	return &Policy{PrefixLists: make(map[string][]PrefixListEntry), CommunityLists: make(map[string][]CommunityListEntry)}
}

// PermitPrefix evaluates listName against prefix in first-match order,
// defaulting to deny when the list exists but nothing matches (the
// conventional prefix-list implicit-deny) and to permit when listName
// is empty (no filter configured).
func (pol *Policy) PermitPrefix(listName string, prefix netip.Prefix) bool {
	if listName == "" {
		return true
	}
	entries, ok := pol.PrefixLists[listName]
	if !ok {
		return true
	}
	for _, e := range entries {
		if e.matches(prefix) {
			return e.Permit
		}
	}
	return false
}

func (pol *Policy) PermitCommunity(listName string, communities []uint32) bool {
	if listName == "" {
		return true
	}
	entries, ok := pol.CommunityLists[listName]
	if !ok {
		return true
	}
	for _, e := range entries {
		for _, c := range communities {
			if c == e.Community {
				return e.Permit
			}
		}
	}
	return false
}
