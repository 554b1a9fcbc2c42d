//go:build linux

package fib

import (
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"

	"github.com/vishvananda/netlink"
	"go.uber.org/zap"
)

// Linux implements Platform over vishvananda/netlink, generalizing
// teacher's rib/server/ribdNetlinkServer.go (addLinuxRoute/delLinuxRoute,
// single-nexthop-per-route) to the group-aware, dual-family model of
// spec.md §4.1.
type Linux struct {
	logger *zap.Logger
	seq    atomic.Uint64
	events chan KernelEvent

	linkSub chan netlink.LinkUpdate
	addrSub chan netlink.AddrUpdate
	routeSub chan netlink.RouteUpdate
	done    chan struct{}
}

// NewLinux opens the three rtnetlink subscriptions (link, addr, route),
// one goroutine per object class as teacher's arp/server does for its
// own netlink consumption, feeding a single demux channel with a
// monotonic per-notification sequence.
func NewLinux(logger *zap.Logger) (*Linux, error) {
	l := &Linux{
		logger:   logger,
		events:   make(chan KernelEvent, 1024),
		linkSub:  make(chan netlink.LinkUpdate, 64),
		addrSub:  make(chan netlink.AddrUpdate, 64),
		routeSub: make(chan netlink.RouteUpdate, 64),
		done:     make(chan struct{}),
	}

	if err := netlink.LinkSubscribe(l.linkSub, l.done); err != nil {
		return nil, fmt.Errorf("fib: link subscribe: %w", err)
	}
	if err := netlink.AddrSubscribe(l.addrSub, l.done); err != nil {
		return nil, fmt.Errorf("fib: addr subscribe: %w", err)
	}
	if err := netlink.RouteSubscribe(l.routeSub, l.done); err != nil {
		return nil, fmt.Errorf("fib: route subscribe: %w", err)
	}

	go l.pumpLinks()
	go l.pumpAddrs()
	go l.pumpRoutes()

	return l, nil
}

func (l *Linux) nextSeq() uint64 { return l.seq.Add(1) }

func (l *Linux) pumpLinks() {
	for u := range l.linkSub {
		attrs := u.Link.Attrs()
		kind := EventLinkChange
		if u.Header.Type == 17 { // RTM_DELLINK
			kind = EventLinkDel
		}
		l.events <- KernelEvent{
			Seq:     l.nextSeq(),
			Kind:    kind,
			Ifindex: attrs.Index,
			Name:    attrs.Name,
			MTU:     attrs.MTU,
			HWAddr:  attrs.HardwareAddr,
			Up:      attrs.Flags&net.FlagUp != 0,
			Running: attrs.RawFlags&unixIFF_RUNNING != 0,
		}
	}
}

func (l *Linux) pumpAddrs() {
	for u := range l.addrSub {
		kind := EventAddrAdd
		if !u.NewAddr {
			kind = EventAddrDel
		}
		addr, ok := netip.AddrFromSlice(u.LinkAddress.IP)
		if !ok {
			continue
		}
		ones, _ := u.LinkAddress.Mask.Size()
		l.events <- KernelEvent{
			Seq:     l.nextSeq(),
			Kind:    kind,
			Ifindex: u.LinkIndex,
			Prefix:  netip.PrefixFrom(addr, ones),
		}
	}
}

func (l *Linux) pumpRoutes() {
	for u := range l.routeSub {
		kind := EventRouteAdd
		if u.Type == 25 { // RTM_DELROUTE
			kind = EventRouteDel
		}
		dst := u.Dst
		if dst == nil {
			continue
		}
		addr, ok := netip.AddrFromSlice(dst.IP)
		if !ok {
			continue
		}
		ones, _ := dst.Mask.Size()
		l.events <- KernelEvent{
			Seq:    l.nextSeq(),
			Kind:   kind,
			Prefix: netip.PrefixFrom(addr, ones),
		}
	}
}

func (l *Linux) Events() <-chan KernelEvent { return l.events }

func (l *Linux) ApplyRoute(op RouteOp) error {
	dst := prefixToIPNet(op.Prefix)
	nlRoute := &netlink.Route{Dst: dst}

	if len(op.Children) == 1 && op.Children[0].Addr.IsValid() {
		c := op.Children[0]
		link, err := netlink.LinkByIndex(c.Ifindex)
		if err != nil {
			return fmt.Errorf("fib: link by index %d: %w", c.Ifindex, err)
		}
		nlRoute.LinkIndex = link.Attrs().Index
		nlRoute.Gw = c.Addr.AsSlice()
	} else if len(op.Children) == 1 {
		link, err := netlink.LinkByIndex(op.Children[0].Ifindex)
		if err != nil {
			return fmt.Errorf("fib: link by index %d: %w", op.Children[0].Ifindex, err)
		}
		nlRoute.LinkIndex = link.Attrs().Index
	} else if len(op.Children) > 1 {
		mp := make([]*netlink.NexthopInfo, 0, len(op.Children))
		for _, c := range op.Children {
			nh := &netlink.NexthopInfo{LinkIndex: c.Ifindex, Hops: int(c.Weight)}
			if c.Addr.IsValid() {
				nh.Gw = c.Addr.AsSlice()
			}
			mp = append(mp, nh)
		}
		nlRoute.MultiPath = mp
	}

	switch op.Op {
	case RouteAdd:
		return netlink.RouteAdd(nlRoute)
	case RouteReplace:
		return netlink.RouteReplace(nlRoute)
	case RouteDel:
		return netlink.RouteDel(nlRoute)
	default:
		return fmt.Errorf("fib: unknown route op %d", op.Op)
	}
}

// ApplyGroup is a no-op on platforms/kernels without shared nexthop
// object support enabled; routes then carry nexthops inline via
// ApplyRoute's MultiPath, matching spec.md §4.1's "when disabled, routes
// carry their nexthops inline" branch. A kernel-nexthop-object-capable
// build would call netlink's NexthopAdd/NexthopDel here.
func (l *Linux) ApplyGroup(op GroupOp) error {
	return nil
}

func (l *Linux) ApplyAddr(op AddrOp) error {
	link, err := netlink.LinkByIndex(op.Ifindex)
	if err != nil {
		return fmt.Errorf("fib: link by index %d: %w", op.Ifindex, err)
	}
	addr := &netlink.Addr{IPNet: prefixToIPNet(op.Prefix)}
	switch op.Op {
	case AddrAdd:
		return netlink.AddrAdd(link, addr)
	case AddrDel:
		return netlink.AddrDel(link, addr)
	default:
		return fmt.Errorf("fib: unknown addr op %d", op.Op)
	}
}

// Resync performs the full re-dump described in spec.md §4.1's failure
// semantics: "re-dump of links/addresses/routes, diff against RIB state,
// and replay of missing installs." The diff/replay step is driven by the
// RIB (it owns the comparison); Resync's job is only to re-emit the
// current kernel state as a burst of KernelEvents.
func (l *Linux) Resync() error {
	links, err := netlink.LinkList()
	if err != nil {
		return fmt.Errorf("fib: resync link list: %w", err)
	}
	for _, link := range links {
		attrs := link.Attrs()
		l.events <- KernelEvent{
			Seq: l.nextSeq(), Kind: EventLinkChange,
			Ifindex: attrs.Index, Name: attrs.Name, MTU: attrs.MTU,
			HWAddr: attrs.HardwareAddr, Up: attrs.Flags&net.FlagUp != 0,
		}
		addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
		if err != nil {
			l.logger.Warn("fib: resync addr list failed", zap.String("link", attrs.Name), zap.Error(err))
			continue
		}
		for _, a := range addrs {
			addr, ok := netip.AddrFromSlice(a.IP)
			if !ok {
				continue
			}
			ones, _ := a.Mask.Size()
			l.events <- KernelEvent{
				Seq: l.nextSeq(), Kind: EventAddrAdd,
				Ifindex: attrs.Index, Prefix: netip.PrefixFrom(addr, ones),
			}
		}
	}
	routes, err := netlink.RouteList(nil, netlink.FAMILY_ALL)
	if err != nil {
		return fmt.Errorf("fib: resync route list: %w", err)
	}
	for _, r := range routes {
		if r.Dst == nil {
			continue
		}
		addr, ok := netip.AddrFromSlice(r.Dst.IP)
		if !ok {
			continue
		}
		ones, _ := r.Dst.Mask.Size()
		l.events <- KernelEvent{Seq: l.nextSeq(), Kind: EventRouteAdd, Prefix: netip.PrefixFrom(addr, ones)}
	}
	return nil
}

func (l *Linux) Close() error {
	close(l.done)
	return nil
}

func prefixToIPNet(p netip.Prefix) *net.IPNet {
	addr := p.Addr()
	bits := p.Bits()
	if addr.Is4() {
		return &net.IPNet{IP: addr.AsSlice(), Mask: net.CIDRMask(bits, 32)}
	}
	return &net.IPNet{IP: addr.AsSlice(), Mask: net.CIDRMask(bits, 128)}
}

// unixIFF_RUNNING mirrors the kernel's IFF_RUNNING flag value; kept local
// rather than importing golang.org/x/sys/unix solely for one constant.
const unixIFF_RUNNING = 0x40
