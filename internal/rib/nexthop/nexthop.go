// Package nexthop implements the nexthop resolver (C4): recursive
// resolution of indirect nexthops through the RIB, ECMP group
// construction, and content-addressed refcounted group storage.
//
// The four nexthop kinds of spec.md §3 are modeled as a small sum type:
// Kind discriminates, and only the fields relevant to that Kind are
// populated. A Go interface-per-kind was considered (as
// original_source/zebra-rs's Rust enum would suggest) but a single
// struct is simpler to hash, compare, and pass over the message bus by
// value, and it is what the teacher's own RouteInfoRecord-with-a-type-tag
// style favors throughout rib/ribdRouteApis.go.
package nexthop

import (
	"encoding/binary"
	"net/netip"
	"sort"

	"github.com/cespare/xxhash/v2"
)

type Kind uint8

const (
	KindDirect Kind = iota
	KindUnicast
	KindGroup
	KindRecursive
)

// Nexthop is the discriminated value described in spec.md §3.
type Nexthop struct {
	Kind Kind

	// Direct
	Ifindex int
	LinkLocal netip.Addr // optional, IsValid() false when absent

	// Unicast / Recursive
	Addr    netip.Addr
	Weight  uint8
	Labels  []uint32 // optional MPLS label stack

	// Group
	Children []Child

	// Recursive: resolved child group id, 0 when unresolved.
	ResolvedGroup uint64
}

// Child is one member of a Group nexthop: a child nexthop plus its
// per-child weight, per spec.md §3 "ordered set of child nexthops with
// per-child weight".
type Child struct {
	Addr    netip.Addr
	Ifindex int
	Weight  uint8
	Labels  []uint32
}

// Direct builds a Direct nexthop.
func Direct(ifindex int, linkLocal netip.Addr) Nexthop {
	return Nexthop{Kind: KindDirect, Ifindex: ifindex, LinkLocal: linkLocal}
}

// Unicast builds a Unicast nexthop.
func Unicast(addr netip.Addr, ifindex int, weight uint8, labels []uint32) Nexthop {
	return Nexthop{Kind: KindUnicast, Addr: addr, Ifindex: ifindex, Weight: weight, Labels: labels}
}

// Recursive builds an unresolved Recursive nexthop pointing at addr.
func Recursive(addr netip.Addr) Nexthop {
	return Nexthop{Kind: KindRecursive, Addr: addr}
}

// normalizedChildren returns Children sorted and deduplicated by
// (addr, ifindex, weight, label-stack), the ordering spec.md §3 requires
// for a Nexthop group's content address to be stable: "Groups must
// deduplicate exactly so the kernel's nexthop-ID space is stable across
// unrelated churn."
func normalizedChildren(children []Child) []Child {
	out := make([]Child, len(children))
	copy(out, children)
	sort.Slice(out, func(i, j int) bool {
		return childLess(out[i], out[j])
	})
	dedup := out[:0]
	for i, c := range out {
		if i > 0 && childEqual(c, dedup[len(dedup)-1]) {
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup
}

func childLess(a, b Child) bool {
	if a.Addr != b.Addr {
		return a.Addr.Less(b.Addr)
	}
	if a.Ifindex != b.Ifindex {
		return a.Ifindex < b.Ifindex
	}
	if a.Weight != b.Weight {
		return a.Weight < b.Weight
	}
	return labelsLess(a.Labels, b.Labels)
}

func childEqual(a, b Child) bool {
	if a.Addr != b.Addr || a.Ifindex != b.Ifindex || a.Weight != b.Weight {
		return false
	}
	return labelsEqual(a.Labels, b.Labels)
}

func labelsLess(a, b []uint32) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func labelsEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ContentHash computes the stable content address of a group's
// normalized child list using xxhash, per spec.md §3: "Content-addressed
// by the sorted, normalized list of (IP, interface, weight, label-stack)
// child entries."
func ContentHash(children []Child) uint64 {
	norm := normalizedChildren(children)
	h := xxhash.New()
	var buf [8]byte
	for _, c := range norm {
		b16 := c.Addr.As16()
		h.Write(b16[:])
		binary.BigEndian.PutUint32(buf[:4], uint32(c.Ifindex))
		h.Write(buf[:4])
		buf[0] = c.Weight
		h.Write(buf[:1])
		for _, l := range c.Labels {
			binary.BigEndian.PutUint32(buf[:4], l)
			h.Write(buf[:4])
		}
	}
	return h.Sum64()
}
