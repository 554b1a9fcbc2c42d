package nexthop

import (
	"sync"
)

// Group is a stored, refcounted nexthop group: spec.md §3 "Nexthop
// group", installed in the kernel when refcount transitions 0→1,
// uninstalled on 1→0. Modeled after original_source/zebra-rs's
// GroupCommon{gid, valid, installed, refcnt}, generalized to hold the
// normalized child list directly rather than split Uni/Multi structs —
// Go's nexthop.Nexthop sum type above already carries that distinction
// via Kind, so a second split here would be redundant.
type Group struct {
	Hash     uint64
	KernelID uint32
	Children []Child
	Valid    bool
	Installed bool
	refcnt   int
}

func (g *Group) Refcount() int { return g.refcnt }

// Map is the shared content-hash -> Group table described in spec.md
// §4.4: "Refcounting uses a shared map from group content-hash to
// (kernel-ID, refcount)." It is private to the nexthop resolver
// (spec.md §5 "Shared resources").
type Map struct {
	mu       sync.Mutex
	byHash   map[uint64]*Group
	nextID   uint32
	onInstall   func(g *Group)
	onUninstall func(g *Group)
}

// NewMap builds an empty group map. onInstall/onUninstall are called
// synchronously on the 0→1 / 1→0 refcount transitions so the caller can
// push the FIB nexthop_group_add/del delta (spec.md §4.1) from exactly
// the point where the invariant actually changes.
func NewMap(onInstall, onUninstall func(g *Group)) *Map {
	return &Map{
		byHash:      make(map[uint64]*Group),
		nextID:      1,
		onInstall:   onInstall,
		onUninstall: onUninstall,
	}
}

// Acquire returns the Group for children, creating it on first use and
// incrementing its refcount. Callers must pair every Acquire with a
// Release once the referencing route is replaced or withdrawn.
func (m *Map) Acquire(children []Child) *Group {
	norm := normalizedChildren(children)
	hash := ContentHash(norm)

	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.byHash[hash]
	if !ok {
		g = &Group{Hash: hash, KernelID: m.nextID, Children: norm, Valid: true}
		m.nextID++
		m.byHash[hash] = g
	}
	g.refcnt++
	if g.refcnt == 1 && !g.Installed {
		g.Installed = true
		if m.onInstall != nil {
			m.onInstall(g)
		}
	}
	return g
}

// Release decrements g's refcount, removing and uninstalling it on the
// 1→0 transition. Per spec.md testable property 2: "refcount(G) == 0 ⇒
// G absent from kernel."
func (m *Map) Release(g *Group) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g.refcnt > 0 {
		g.refcnt--
	}
	if g.refcnt == 0 {
		g.Installed = false
		delete(m.byHash, g.Hash)
		if m.onUninstall != nil {
			m.onUninstall(g)
		}
	}
}

// Lookup returns the group for hash without changing its refcount, used
// by show handlers.
func (m *Map) Lookup(hash uint64) (*Group, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.byHash[hash]
	return g, ok
}

// All returns every currently live group, for "show nexthop".
func (m *Map) All() []*Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Group, 0, len(m.byHash))
	for _, g := range m.byHash {
		out = append(out, g)
	}
	return out
}
