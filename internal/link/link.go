// Package link is the Link/Address table (C2): the authoritative
// in-daemon view of interfaces, L2 addresses, L3 prefixes, and
// admin/oper state, indexed both by ifindex and by name the way teacher's
// rib/server/ribdUtils.go keeps IntfIdNameMap and IfIndexIntfObjMap in
// step with each other.
package link

import (
	"fmt"
	"net"
	"net/netip"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Flags mirrors the subset of interface flags the RIB cares about.
type Flags struct {
	Up      bool
	Running bool
}

// Link is (ifindex, name, mtu, L2-addr, flags, v4-addrs, v6-addrs) per
// spec.md §3. Ifindex is the primary key; name changes are allowed.
type Link struct {
	Index    int
	Name     string
	MTU      int
	HWAddr   net.HardwareAddr
	Flags    Flags
	V4Addrs  map[netip.Prefix]struct{}
	V6Addrs  map[netip.Prefix]struct{}
}

func newLink(index int, name string) *Link {
	return &Link{
		Index:   index,
		Name:    name,
		V4Addrs: make(map[netip.Prefix]struct{}),
		V6Addrs: make(map[netip.Prefix]struct{}),
	}
}

// AddrEvent is emitted whenever a prefix is attached to or detached from
// a link; the RIB consumes these as connected-route deltas (spec.md
// §4.2). Connected routes on distinct interfaces with an identical
// prefix are distinct AddrEvents and neither shadows the other.
type AddrEvent struct {
	Added  bool
	Ifname string
	Index  int
	Prefix netip.Prefix
}

// Table is the link/address table. Table itself is the single owning
// task's private state; callers reach it only through its methods,
// which are safe for concurrent use because they take the table's own
// lock — but per spec.md §5 only the owning task is expected to call
// them in this daemon's design (protocols read via the RIB's show path,
// not this table directly).
type Table struct {
	mu    sync.RWMutex
	byIdx map[int]*Link
	byNm  map[string]*Link

	logger *zap.Logger
	events chan AddrEvent
}

func New(logger *zap.Logger) *Table {
	return &Table{
		byIdx:  make(map[int]*Link),
		byNm:   make(map[string]*Link),
		logger: logger,
		events: make(chan AddrEvent, 256),
	}
}

// Events returns the channel of connected-route deltas for the RIB to
// consume.
func (t *Table) Events() <-chan AddrEvent { return t.events }

// UpsertLink creates or updates a link's non-address attributes. Name
// changes are permitted; the ifindex row is what the caller re-keys.
func (t *Table) UpsertLink(index int, name string, mtu int, hw net.HardwareAddr, flags Flags) *Link {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.byIdx[index]
	if !ok {
		l = newLink(index, name)
		t.byIdx[index] = l
	} else if l.Name != name {
		delete(t.byNm, l.Name)
		l.Name = name
	}
	l.MTU = mtu
	l.HWAddr = hw
	l.Flags = flags
	t.byNm[name] = l
	return l
}

// RemoveLink destroys a link (kernel notification only, per spec.md §3
// lifecycle: "Links are created by kernel notifications and destroyed
// by them"). Its addresses are dropped with it and connected-route
// withdraw events are emitted for each.
func (t *Table) RemoveLink(index int) {
	t.mu.Lock()
	l, ok := t.byIdx[index]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.byIdx, index)
	delete(t.byNm, l.Name)
	addrs := collectAddrs(l)
	t.mu.Unlock()

	for _, p := range addrs {
		t.events <- AddrEvent{Added: false, Ifname: l.Name, Index: index, Prefix: p}
	}
}

func collectAddrs(l *Link) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(l.V4Addrs)+len(l.V6Addrs))
	for p := range l.V4Addrs {
		out = append(out, p)
	}
	for p := range l.V6Addrs {
		out = append(out, p)
	}
	return out
}

// AddAddr attaches prefix to the link named by index. A duplicate add
// (identical prefix already present) is rejected, per spec.md §4.2.
func (t *Table) AddAddr(index int, prefix netip.Prefix) error {
	prefix = prefix.Masked()
	t.mu.Lock()
	l, ok := t.byIdx[index]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("link: unknown ifindex %d", index)
	}
	set := l.V4Addrs
	if prefix.Addr().Is6() {
		set = l.V6Addrs
	}
	if _, dup := set[prefix]; dup {
		t.mu.Unlock()
		return fmt.Errorf("link: duplicate address %s on %s", prefix, l.Name)
	}
	set[prefix] = struct{}{}
	name := l.Name
	t.mu.Unlock()

	t.events <- AddrEvent{Added: true, Ifname: name, Index: index, Prefix: prefix}
	return nil
}

// DelAddr detaches prefix from the link named by index. Config addresses
// persist across oper-down (spec.md §3 lifecycle); this call only removes
// the address itself, never in response to an oper-state change.
func (t *Table) DelAddr(index int, prefix netip.Prefix) error {
	prefix = prefix.Masked()
	t.mu.Lock()
	l, ok := t.byIdx[index]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("link: unknown ifindex %d", index)
	}
	set := l.V4Addrs
	if prefix.Addr().Is6() {
		set = l.V6Addrs
	}
	if _, present := set[prefix]; !present {
		t.mu.Unlock()
		return fmt.Errorf("link: address %s not present on %s", prefix, l.Name)
	}
	delete(set, prefix)
	name := l.Name
	t.mu.Unlock()

	t.events <- AddrEvent{Added: false, Ifname: name, Index: index, Prefix: prefix}
	return nil
}

func (t *Table) ByIndex(index int) (*Link, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.byIdx[index]
	return l, ok
}

func (t *Table) ByName(name string) (*Link, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.byNm[name]
	return l, ok
}

// List returns links sorted by ifindex, for stable show output.
func (t *Table) List() []*Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Link, 0, len(t.byIdx))
	for _, l := range t.byIdx {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
