// Package rib implements the RIB (C3): a multi-source, dual-family
// routing table with administrative-distance arbitration, selection, and
// FIB delta emission, per spec.md §4.3.
package rib

import (
	"net/netip"

	"github.com/openrouted/routingd/internal/rib/nexthop"
)

// Source is one of the contributors named in spec.md §3.
type Source int

const (
	SourceConnected Source = iota
	SourceStatic
	SourceBGP
	SourceISIS
	SourceOSPF
	SourceKernel
	SourceSystem
)

func (s Source) String() string {
	switch s {
	case SourceConnected:
		return "connected"
	case SourceStatic:
		return "static"
	case SourceBGP:
		return "bgp"
	case SourceISIS:
		return "isis"
	case SourceOSPF:
		return "ospf"
	case SourceKernel:
		return "kernel"
	case SourceSystem:
		return "system"
	default:
		return "unknown"
	}
}

// multipathCapable reports whether Source supports merging equal-distance
// candidates into a single ECMP candidate (spec.md §3 selection rule).
func (s Source) multipathCapable(multipathEnabled bool) bool {
	switch s {
	case SourceISIS, SourceOSPF:
		return true
	case SourceBGP:
		return multipathEnabled
	default:
		return false
	}
}

// Flags are the per-route flags of spec.md §3.
type Flags struct {
	Selected      bool
	FIBInstalled  bool
	Resolved      bool
}

// Route is the tuple (prefix, source, distance, metric, nexthop, flags)
// of spec.md §3. Prefix is carried by the caller (it is the map key in
// Table), not duplicated here, mirroring teacher's RouteInfoRecordList
// keyed by destination.
type Route struct {
	Source   Source
	Distance uint8
	Metric   uint32
	Nexthop  nexthop.Nexthop
	Flags    Flags

	// InterfaceIndex disambiguates connected routes on distinct
	// interfaces sharing an identical prefix (spec.md §3: "kept as
	// distinct entries and do not shadow each other"). Zero for
	// non-connected sources.
	InterfaceIndex int

	// group is the resolved, refcounted nexthop group backing this
	// route once resolution succeeds. nil while unresolved.
	group *nexthopGroupRef
}

// identity is the key distinguishing candidates for the same prefix that
// must never be merged into each other even when otherwise identical:
// same source, but (for connected routes) a different interface.
type identity struct {
	source  Source
	ifindex int
}

func (r *Route) identity() identity {
	if r.Source == SourceConnected {
		return identity{source: r.Source, ifindex: r.InterfaceIndex}
	}
	return identity{source: r.Source, ifindex: 0}
}

// Canonicalize clears the host bits of prefix per spec.md §3.
func Canonicalize(prefix netip.Prefix) netip.Prefix {
	return prefix.Masked()
}
