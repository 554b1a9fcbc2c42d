package nexthop

import (
	"net/netip"

	"golang.org/x/sync/singleflight"
)

// MaxDepth bounds recursive resolution chains (spec.md §4.4: "a chain is
// capped at a small constant depth"). 8 matches the informal default
// used by FRR/zebra-style implementations; original_source/zebra-rs does
// not pin an exact number either.
const MaxDepth = 8

// Lookup is what the resolver needs from the RIB: a longest-prefix match
// against the same-family table, excluding the querying route's own
// prefix and (optionally) the default route. Defined here rather than in
// package rib so nexthop has no import-cycle dependency on rib; rib.Table
// implements it.
type Lookup interface {
	// ResolveVia performs the LPM lookup described in spec.md §4.4.
	// ok is false when no covering route exists, or the only cover is
	// the excluded prefix/default. When ok is true, matched is the
	// winning route's own resolved nexthop children (already flattened
	// to concrete Direct/Unicast leaves); a connected (onlink) match
	// shows up as children with no Addr.
	ResolveVia(addr netip.Addr, exclude netip.Prefix, excludeDefault bool) (matched []Child, matchedPrefix netip.Prefix, ok bool)
}

// Resolver implements C4: it turns Unicast/Recursive nexthops into
// resolved Group nexthops, using MaxDepth and cycle detection to bound
// recursive chains, and singleflight to coalesce concurrent
// re-resolution of the same reference prefix into one computation per
// tick (spec.md §4.4: "coalesced per event tick so a single churn in an
// upstream prefix triggers at most one dependent recompute").
type Resolver struct {
	lookup Lookup
	groups *Map
	sf     singleflight.Group

	// dependents maps a reference prefix to the set of group hashes
	// that must be re-resolved when that prefix's best path changes,
	// mirroring original_source/zebra-rs/src/rib/nexthop/map.rs's
	// dependents table.
	dependents map[netip.Prefix]map[uint64]struct{}
}

func NewResolver(lookup Lookup, groups *Map) *Resolver {
	return &Resolver{
		lookup:     lookup,
		groups:     groups,
		dependents: make(map[netip.Prefix]map[uint64]struct{}),
	}
}

// Resolve resolves nh (Unicast or Recursive) against selfPrefix, which is
// excluded from the LPM per spec.md §4.4, and excludeDefault controls
// whether the default route is an eligible match. On success it returns
// the acquired Group (already refcounted; caller owns the reference) and
// true. On failure — unresolved or cyclic — it returns nil, false and the
// nexthop must be treated as "selected but not resolved" (spec.md §4.3
// step 3).
func (r *Resolver) Resolve(nh Nexthop, selfPrefix netip.Prefix, excludeDefault bool) (*Group, bool) {
	children, ok := r.resolveChain(nh.Addr, selfPrefix, excludeDefault, map[netip.Addr]bool{}, 0)
	if !ok {
		return nil, false
	}
	return r.groups.Acquire(children), true
}

func (r *Resolver) resolveChain(addr netip.Addr, selfPrefix netip.Prefix, excludeDefault bool, visited map[netip.Addr]bool, depth int) ([]Child, bool) {
	if depth >= MaxDepth {
		return nil, false
	}
	if visited[addr] {
		// Cycle: spec.md §4.4 "a cycle terminates resolution as
		// unresolved."
		return nil, false
	}
	visited[addr] = true

	key := addr.String()
	v, err, _ := r.sf.Do(key, func() (interface{}, error) {
		matched, matchedPrefix, ok := r.lookup.ResolveVia(addr, selfPrefix, excludeDefault)
		if !ok {
			return nil, errUnresolved
		}
		// A directly-connected match resolves in one step.
		onlink := true
		for _, c := range matched {
			if c.Addr.IsValid() {
				onlink = false
			}
		}
		if onlink {
			return matched, nil
		}
		// The matched route's own nexthop is itself indirect: keep
		// walking, but only through the matched route's own resolved
		// address, never re-entering the excluded prefix.
		out := make([]Child, 0, len(matched))
		for _, c := range matched {
			if !c.Addr.IsValid() {
				out = append(out, c)
				continue
			}
			deeper, ok := r.resolveChain(c.Addr, matchedPrefix, excludeDefault, visited, depth+1)
			if !ok {
				continue
			}
			out = append(out, deeper...)
		}
		if len(out) == 0 {
			return nil, errUnresolved
		}
		return out, nil
	})
	if err != nil {
		return nil, false
	}
	return v.([]Child), true
}

type resolveErr string

func (e resolveErr) Error() string { return string(e) }

const errUnresolved = resolveErr("nexthop: unresolved")

// AddDependent registers group as depending on reference so that a
// future change to reference's best path re-triggers resolution.
func (r *Resolver) AddDependent(reference netip.Prefix, groupHash uint64) {
	set, ok := r.dependents[reference]
	if !ok {
		set = make(map[uint64]struct{})
		r.dependents[reference] = set
	}
	set[groupHash] = struct{}{}
}

// Dependents returns the set of group hashes that depend on reference,
// for the RIB to notify when reference's selection changes.
func (r *Resolver) Dependents(reference netip.Prefix) []uint64 {
	set, ok := r.dependents[reference]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	return out
}

// ClearDependents drops reference's dependent set once every group that
// depended on it has been re-resolved.
func (r *Resolver) ClearDependents(reference netip.Prefix) {
	delete(r.dependents, reference)
}
