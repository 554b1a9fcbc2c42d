// Package fib is the FIB shim (C1): a bidirectional, asynchronous bridge
// between the RIB and the kernel's routing subsystem, per spec.md §4.1.
package fib

import (
	"net"
	"net/netip"

	"github.com/openrouted/routingd/internal/rib/nexthop"
)

// RouteOpKind is one of route_add / route_replace / route_del
// (spec.md §4.1 "Outbound operations").
type RouteOpKind int

const (
	RouteAdd RouteOpKind = iota
	RouteReplace
	RouteDel
)

// RouteOp is a RIB decision handed to the shim for installation.
type RouteOp struct {
	Op       RouteOpKind
	Prefix   netip.Prefix
	Children []nexthop.Child
	GroupID  uint32
	Distance uint8
	Metric   uint32
}

// GroupOpKind is nexthop_group_add / nexthop_group_del, used only when
// the platform supports shared nexthop objects (spec.md §4.1). When
// disabled, routes carry their nexthops inline and GroupOp is unused.
type GroupOpKind int

const (
	GroupAdd GroupOpKind = iota
	GroupDel
)

type GroupOp struct {
	Op       GroupOpKind
	KernelID uint32
	Children []nexthop.Child
}

// AddrOpKind is addr_add / addr_del (spec.md §4.1).
type AddrOpKind int

const (
	AddrAdd AddrOpKind = iota
	AddrDel
)

type AddrOp struct {
	Op      AddrOpKind
	Ifindex int
	Prefix  netip.Prefix
}

// Ack reports the kernel's response to a RouteOp back to the RIB. A
// non-nil Err means the RIB must mark the route not-fib-installed while
// retaining it as selected (spec.md §4.1 "Failure semantics").
type Ack struct {
	Prefix netip.Prefix
	Err    error
}

// KernelEventKind enumerates the inbound notifications of spec.md §4.1.
type KernelEventKind int

const (
	EventLinkAdd KernelEventKind = iota
	EventLinkDel
	EventLinkChange
	EventAddrAdd
	EventAddrDel
	EventRouteAdd
	EventRouteDel
)

// KernelEvent is one inbound kernel notification, carrying a monotonic
// sequence number the shim assigns to preserve relative order
// (spec.md §4.1).
type KernelEvent struct {
	Seq  uint64
	Kind KernelEventKind

	// Link fields (EventLink*)
	Ifindex int
	Name    string
	MTU     int
	HWAddr  net.HardwareAddr
	Up      bool
	Running bool

	// Addr fields (EventAddr*)
	Prefix netip.Prefix

	// Route fields (EventRoute*), attributed to source=kernel
	RouteChildren []nexthop.Child
}

// Platform is the seam spec.md §6 calls out for the macOS route-sockets
// fallback. Only Linux is built out (SPEC_FULL.md §4.1); other platforms
// get a stub that returns ErrUnsupportedPlatform from every method except
// Events and Close (both return nil) so the daemon still links.
type Platform interface {
	ApplyRoute(RouteOp) error
	ApplyGroup(GroupOp) error
	ApplyAddr(AddrOp) error
	Events() <-chan KernelEvent
	Resync() error
	Close() error
}
