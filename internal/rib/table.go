package rib

import (
	"net/netip"
	"sort"

	"github.com/gaissmai/bart"
	"github.com/openrouted/routingd/internal/rib/nexthop"
)

// Distances holds the default administrative distance per source
// (spec.md §4.3), configurable but defaulting to the conventional
// values also used in original_source/zebra-rs.
type Distances struct {
	Connected uint8
	Static    uint8
	EBGP      uint8
	IBGP      uint8
	ISISL1    uint8
	ISISL2    uint8
	OSPF      uint8
	Kernel    uint8
}

// DefaultDistances matches the values named in SPEC_FULL.md §4.3.
func DefaultDistances() Distances {
	return Distances{
		Connected: 0,
		Static:    1,
		EBGP:      20,
		IBGP:      200,
		ISISL1:    115,
		ISISL2:    115,
		OSPF:      110,
		Kernel:    255,
	}
}

// candidateSet is the per-prefix state: the set of candidate routes and
// which one (if any) is selected, per spec.md §3 "RIB entry".
type candidateSet struct {
	prefix     netip.Prefix
	candidates []*Route
	selected   *Route
}

func (cs *candidateSet) find(id identity) (*Route, int) {
	for i, r := range cs.candidates {
		if r.identity() == id {
			return r, i
		}
	}
	return nil, -1
}

// Table is a single address family's RIB: a prefix-trie mapping
// prefix -> candidate-set (spec.md §4.3), backed by a bart.Table for
// longest-prefix-match resolution queries and a plain map for exact-key
// access and stable iteration (bart's own iteration API has moved across
// versions; a side map keeps show/resolve code independent of that).
type Table struct {
	trie    *bart.Table[*candidateSet]
	entries map[netip.Prefix]*candidateSet

	distances Distances
	groups    *nexthop.Map
	resolver  *nexthop.Resolver

	multipathEnabled bool

	// onSelectChange is invoked whenever the winning route for a prefix
	// changes (including becoming unselected), so the RIB can emit a
	// FIB delta and notify nexthop dependents.
	onSelectChange func(prefix netip.Prefix, old, new *Route)
}

func newTable(distances Distances, groups *nexthop.Map, onSelectChange func(netip.Prefix, *Route, *Route)) *Table {
	t := &Table{
		trie:      &bart.Table[*candidateSet]{},
		entries:   make(map[netip.Prefix]*candidateSet),
		distances: distances,
		groups:    groups,
		onSelectChange: onSelectChange,
	}
	t.resolver = nexthop.NewResolver(t, groups)
	return t
}

// ResolveVia implements nexthop.Lookup: it returns the flattened resolved
// children of the longest-prefix match for addr, excluding the exact
// prefix `exclude` and, when excludeDefault is set, the default route.
func (t *Table) ResolveVia(addr netip.Addr, exclude netip.Prefix, excludeDefault bool) ([]nexthop.Child, netip.Prefix, bool) {
	cs, ok := t.trie.Lookup(addr)
	if !ok {
		return nil, netip.Prefix{}, false
	}
	if cs.prefix == exclude {
		return nil, netip.Prefix{}, false
	}
	if excludeDefault && cs.prefix.Bits() == 0 {
		return nil, netip.Prefix{}, false
	}
	if cs.selected == nil || !cs.selected.Flags.Resolved {
		return nil, netip.Prefix{}, false
	}
	return t.selectedChildren(cs.selected), cs.prefix, true
}

// MetricTo returns the selected route's IGP metric for the longest-prefix
// match covering addr, for BGP's "lower IGP metric to NEXT_HOP" best-path
// criterion (RFC 4271 §9.1.2.2 rule 7). A candidate that isn't selected or
// resolved can't answer a metric-to-nexthop question, so it reports false.
func (t *Table) MetricTo(addr netip.Addr) (uint32, bool) {
	cs, ok := t.trie.Lookup(addr)
	if !ok || cs.selected == nil || !cs.selected.Flags.Resolved {
		return 0, false
	}
	return cs.selected.Metric, true
}

func (t *Table) selectedChildren(r *Route) []nexthop.Child {
	if r.group == nil {
		return nil
	}
	return r.group.group.Children
}

// Upsert adds or replaces the candidate identified by (source,
// ifindex-if-connected) for prefix, then re-runs selection for that
// prefix only, per spec.md §4.3: "On each change it recomputes selection
// for the affected prefix only."
func (t *Table) Upsert(prefix netip.Prefix, r *Route) {
	prefix = Canonicalize(prefix)
	cs, ok := t.entries[prefix]
	if !ok {
		cs = &candidateSet{prefix: prefix}
		t.entries[prefix] = cs
		t.trie.Insert(prefix, cs)
	}

	if existing, idx := cs.find(r.identity()); idx >= 0 {
		t.releaseIfResolved(existing)
		cs.candidates[idx] = r
	} else {
		cs.candidates = append(cs.candidates, r)
	}

	t.reselect(cs)
}

// Withdraw removes the candidate identified by (source, ifindex-if-
// connected) from prefix. Per spec.md §3 lifecycle, an entry with no
// remaining candidates is destroyed.
func (t *Table) Withdraw(prefix netip.Prefix, id identity) {
	prefix = Canonicalize(prefix)
	cs, ok := t.entries[prefix]
	if !ok {
		return
	}
	existing, idx := cs.find(id)
	if idx < 0 {
		return
	}
	t.releaseIfResolved(existing)
	cs.candidates = append(cs.candidates[:idx], cs.candidates[idx+1:]...)

	if len(cs.candidates) == 0 {
		old := cs.selected
		cs.selected = nil
		delete(t.entries, prefix)
		t.trie.Delete(prefix)
		if old != nil && t.onSelectChange != nil {
			t.onSelectChange(prefix, old, nil)
		}
		t.resolver.ClearDependents(prefix)
		return
	}
	t.reselect(cs)
}

func (t *Table) releaseIfResolved(r *Route) {
	if r != nil && r.group != nil {
		t.groups.Release(r.group.group)
		r.group = nil
		r.Flags.Resolved = false
	}
}

// reselect implements spec.md §4.3 steps 1-4.
func (t *Table) reselect(cs *candidateSet) {
	old := cs.selected

	winner := t.pickWinner(cs.candidates)
	if winner == nil {
		cs.selected = nil
		if old != nil {
			old.Flags.Selected = false
			if t.onSelectChange != nil {
				t.onSelectChange(cs.prefix, old, nil)
			}
		}
		return
	}

	for _, c := range cs.candidates {
		c.Flags.Selected = false
	}
	winner.Flags.Selected = true

	t.resolveRoute(cs.prefix, winner)

	cs.selected = winner
	if old != winner {
		if old != nil {
			old.Flags.Selected = false
		}
		if t.onSelectChange != nil {
			t.onSelectChange(cs.prefix, old, winner)
		}
		t.notifyDependents(cs.prefix)
	} else if winner.Flags.FIBInstalled != winner.wasInstalled() {
		if t.onSelectChange != nil {
			t.onSelectChange(cs.prefix, winner, winner)
		}
	}
}

// wasInstalled is a hook point kept trivial: FIBInstalled is only ever
// flipped by the FIB shim's ack/nak path (see rib.go), so a same-route
// reselect never itself changes it, and the comparison at the call site
// above is always false. Present for readability there rather than
// inlining a constant false.
func (r *Route) wasInstalled() bool { return r.Flags.FIBInstalled }

// pickWinner implements spec.md §3's selection rule: lowest distance;
// among equal-distance same-source multipath-capable candidates, merge
// into one ECMP candidate; otherwise first-seen wins by source order
// (the candidates slice preserves arrival order, so "first-seen" is
// simply the first match at the winning distance).
func (t *Table) pickWinner(candidates []*Route) *Route {
	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Distance < best.Distance {
			best = c
		}
	}

	tied := make([]*Route, 0, len(candidates))
	for _, c := range candidates {
		if c.Distance == best.Distance {
			tied = append(tied, c)
		}
	}
	if len(tied) == 1 {
		return tied[0]
	}

	// Group tied candidates by source; a source that supports multipath
	// merges its own equal-metric members into one ECMP candidate.
	bySource := make(map[Source][]*Route)
	var order []Source
	for _, c := range tied {
		if _, seen := bySource[c.Source]; !seen {
			order = append(order, c.Source)
		}
		bySource[c.Source] = append(bySource[c.Source], c)
	}

	// spec.md §3: "otherwise first-seen wins deterministically by source
	// order" -- across *distinct* sources at equal distance, keep the
	// first source encountered in arrival order (DESIGN.md Open
	// Question 1: first-seen is the chosen default).
	winningSource := order[0]
	group := bySource[winningSource]

	if len(group) == 1 {
		return group[0]
	}
	if !winningSource.multipathCapable(t.multipathEnabled) {
		return group[0]
	}

	minMetric := group[0].Metric
	for _, r := range group[1:] {
		if r.Metric < minMetric {
			minMetric = r.Metric
		}
	}
	var merged []*Route
	for _, r := range group {
		if r.Metric == minMetric {
			merged = append(merged, r)
		}
	}
	if len(merged) == 1 {
		return merged[0]
	}
	return mergeECMP(merged)
}

// mergeECMP concatenates the flattened nexthop children of same-source,
// equal-metric candidates into a single synthetic Group nexthop. Exact
// duplicate children are removed later, when nexthop.Map.Acquire
// normalizes the group; weights are not summed, and children that differ
// only in weight are kept as separate entries.
func mergeECMP(routes []*Route) *Route {
	sort.Slice(routes, func(i, j int) bool { return routes[i].InterfaceIndex < routes[j].InterfaceIndex })
	merged := *routes[0]
	var children []nexthop.Child
	for _, r := range routes {
		children = append(children, flattenToChildren(r.Nexthop)...)
	}
	merged.Nexthop = nexthop.Nexthop{Kind: nexthop.KindGroup, Children: children}
	merged.group = nil
	return &merged
}

func flattenToChildren(nh nexthop.Nexthop) []nexthop.Child {
	switch nh.Kind {
	case nexthop.KindDirect:
		return []nexthop.Child{{Ifindex: nh.Ifindex}}
	case nexthop.KindUnicast:
		return []nexthop.Child{{Addr: nh.Addr, Ifindex: nh.Ifindex, Weight: nh.Weight, Labels: nh.Labels}}
	case nexthop.KindGroup:
		return nh.Children
	default:
		return nil
	}
}

// resolveRoute implements spec.md §4.3 step 3.
func (t *Table) resolveRoute(prefix netip.Prefix, r *Route) {
	switch r.Nexthop.Kind {
	case nexthop.KindDirect:
		g := t.groups.Acquire([]nexthop.Child{{Ifindex: r.Nexthop.Ifindex}})
		r.group = &nexthopGroupRef{group: g}
		r.Flags.Resolved = true
	case nexthop.KindGroup:
		g := t.groups.Acquire(r.Nexthop.Children)
		r.group = &nexthopGroupRef{group: g}
		r.Flags.Resolved = true
	case nexthop.KindUnicast:
		if r.Nexthop.Ifindex != 0 {
			g := t.groups.Acquire([]nexthop.Child{{Addr: r.Nexthop.Addr, Ifindex: r.Nexthop.Ifindex, Weight: r.Nexthop.Weight, Labels: r.Nexthop.Labels}})
			r.group = &nexthopGroupRef{group: g}
			r.Flags.Resolved = true
			return
		}
		fallthrough
	case nexthop.KindRecursive:
		excludeDefault := prefix.Bits() != 0
		g, ok := t.resolver.Resolve(r.Nexthop, prefix, excludeDefault)
		if !ok {
			r.Flags.Resolved = false
			return
		}
		r.group = &nexthopGroupRef{group: g}
		r.Flags.Resolved = true
		t.resolver.AddDependent(prefix, g.Hash)
	}
}

// notifyDependents re-resolves every group that depends on prefix's best
// path, per spec.md §4.4's coalesced re-resolution requirement. It is
// intentionally shallow: dependents are re-resolved once per reselect of
// their reference prefix, which is the coalescing point (singleflight
// inside the resolver further coalesces concurrent lookups of the same
// address within that single pass).
func (t *Table) notifyDependents(prefix netip.Prefix) {
	hashes := t.resolver.Dependents(prefix)
	if len(hashes) == 0 {
		return
	}
	for _, cs := range t.entries {
		if cs.selected == nil || cs.selected.group == nil {
			continue
		}
		for _, h := range hashes {
			if cs.selected.group.group.Hash == h {
				t.resolveRoute(cs.prefix, cs.selected)
			}
		}
	}
}

// Candidates returns the candidate list for prefix, for show handlers.
func (t *Table) Candidates(prefix netip.Prefix) ([]*Route, bool) {
	cs, ok := t.entries[Canonicalize(prefix)]
	if !ok {
		return nil, false
	}
	return cs.candidates, true
}

// All returns every prefix currently present, sorted, for stable show
// output.
func (t *Table) All() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(t.entries))
	for p := range t.entries {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
