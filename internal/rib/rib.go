package rib

import (
	"context"
	"net/netip"

	"go.uber.org/zap"

	"github.com/openrouted/routingd/internal/fib"
	"github.com/openrouted/routingd/internal/link"
	"github.com/openrouted/routingd/internal/rib/nexthop"
)

// RIB is the top-level C3 component: one Table per address family, wired
// to the link table for connected-route ingestion and to the FIB shim
// for outbound delta emission and inbound kernel notifications.
type RIB struct {
	logger *zap.Logger

	v4 *Table
	v6 *Table

	groupsV4 *nexthop.Map
	groupsV6 *nexthop.Map

	linkTable *link.Table
	shim      *fib.Shim

	installedGroups map[uint32]struct{}

	// publish, when set, fans out selection changes to the message bus's
	// external nanomsg leg (spec.md §4.7's "RIB state fanned out to the
	// out-of-core show/CLI/bridge-server collaborators"). nil in tests
	// and whenever the daemon runs without a bus.Publisher wired.
	publish func(topic string, v any)
}

// SetPublisher wires the message bus's external notification leg. Called
// once from cmd/routingd after both the RIB and the bus.Publisher exist,
// since Publisher depends on nothing the RIB constructs itself.
func (r *RIB) SetPublisher(publish func(topic string, v any)) {
	r.publish = publish
}

// New builds the RIB. distances configures administrative distances per
// source; multipathEnabled turns on BGP multipath merging at equal
// distance/metric (ISIS/OSPF ECMP is always enabled per spec.md §3).
func New(logger *zap.Logger, distances Distances, multipathEnabled bool, linkTable *link.Table, shim *fib.Shim) *RIB {
	r := &RIB{
		logger:          logger,
		linkTable:       linkTable,
		shim:            shim,
		installedGroups: make(map[uint32]struct{}),
	}

	onInstallV4 := func(g *nexthop.Group) { r.pushGroup(fib.GroupAdd, g) }
	onUninstallV4 := func(g *nexthop.Group) { r.pushGroup(fib.GroupDel, g) }
	r.groupsV4 = nexthop.NewMap(onInstallV4, onUninstallV4)
	r.groupsV6 = nexthop.NewMap(onInstallV4, onUninstallV4)

	r.v4 = newTable(distances, r.groupsV4, r.onSelectChange)
	r.v6 = newTable(distances, r.groupsV6, r.onSelectChange)
	r.v4.multipathEnabled = multipathEnabled
	r.v6.multipathEnabled = multipathEnabled

	return r
}

func (r *RIB) tableFor(prefix netip.Prefix) *Table {
	if prefix.Addr().Is4() {
		return r.v4
	}
	return r.v6
}

func (r *RIB) pushGroup(op fib.GroupOpKind, g *nexthop.Group) {
	if r.shim == nil {
		return
	}
	r.shim.GroupOps() <- fib.GroupOp{Op: op, KernelID: g.KernelID, Children: g.Children}
}

// ribSelectEvent is the JSON shape published on the "rib.select" bus
// topic; kept minimal (prefix + withdrawn) since subscribers that want
// the full route detail can follow up with a show query.
type ribSelectEvent struct {
	Prefix    string `json:"prefix"`
	Withdrawn bool   `json:"withdrawn"`
}

// onSelectChange emits the FIB delta of spec.md §4.3 step 4: "If resolved
// and differs from currently installed state, emit a FIB delta." A
// selected-but-unresolved route is never pushed (step 3), and a route
// that has become unselected is withdrawn.
func (r *RIB) onSelectChange(prefix netip.Prefix, old, newRoute *Route) {
	if r.publish != nil {
		r.publish("rib.select", ribSelectEvent{Prefix: prefix.String(), Withdrawn: newRoute == nil})
	}
	if r.shim == nil {
		return
	}
	if newRoute == nil {
		if old != nil && old.Flags.FIBInstalled {
			r.shim.RouteOps() <- fib.RouteOp{Op: fib.RouteDel, Prefix: prefix}
			old.Flags.FIBInstalled = false
		}
		return
	}
	if !newRoute.Flags.Resolved {
		return
	}
	op := fib.RouteAdd
	if old != nil && old.Flags.FIBInstalled {
		op = fib.RouteReplace
	}
	var kernelID uint32
	var children []nexthop.Child
	if newRoute.group != nil {
		kernelID = newRoute.group.group.KernelID
		children = newRoute.group.group.Children
	}
	r.shim.RouteOps() <- fib.RouteOp{
		Op: op, Prefix: prefix, Children: children, GroupID: kernelID,
		Distance: newRoute.Distance, Metric: newRoute.Metric,
	}
}

// AddCandidate installs or replaces a route candidate from source for
// prefix (spec.md §4.3 selection input).
func (r *RIB) AddCandidate(prefix netip.Prefix, route *Route) {
	r.tableFor(prefix).Upsert(prefix, route)
}

// WithdrawCandidate removes source's contribution for prefix. ifindex
// disambiguates SourceConnected candidates on distinct interfaces.
func (r *RIB) WithdrawCandidate(prefix netip.Prefix, source Source, ifindex int) {
	id := identity{source: source, ifindex: 0}
	if source == SourceConnected {
		id.ifindex = ifindex
	}
	r.tableFor(prefix).Withdraw(prefix, id)
}

// Candidates and Selected serve show requests (spec.md §4.3 "Show APIs
// expose candidate lists with per-route flags").
func (r *RIB) Candidates(prefix netip.Prefix) ([]*Route, bool) {
	return r.tableFor(prefix).Candidates(prefix)
}

// MetricTo returns the IGP metric of the selected route covering addr, for
// BGP best-path selection's tie-break on IGP distance to NEXT_HOP.
func (r *RIB) MetricTo(addr netip.Addr) (uint32, bool) {
	if addr.Is4() {
		return r.v4.MetricTo(addr)
	}
	return r.v6.MetricTo(addr)
}

func (r *RIB) All(v6 bool) []netip.Prefix {
	if v6 {
		return r.v6.All()
	}
	return r.v4.All()
}

// NexthopGroups returns every live refcounted group for "show nexthop"
// (spec.md §6).
func (r *RIB) NexthopGroups(v6 bool) []*nexthop.Group {
	if v6 {
		return r.groupsV6.All()
	}
	return r.groupsV4.All()
}

// runConnected consumes link-table AddrEvents and reflects them as
// SourceConnected candidates, per spec.md §4.2.
func (r *RIB) runConnected(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.linkTable.Events():
			if !ok {
				return
			}
			if ev.Added {
				r.AddCandidate(ev.Prefix, &Route{
					Source:         SourceConnected,
					Distance:       DefaultDistances().Connected,
					Nexthop:        nexthop.Direct(ev.Index, netip.Addr{}),
					InterfaceIndex: ev.Index,
				})
			} else {
				r.WithdrawCandidate(ev.Prefix, SourceConnected, ev.Index)
			}
		}
	}
}

// runKernel consumes the FIB shim's inbound kernel notifications and
// acks, attributing routes to SourceKernel and updating FIBInstalled
// flags on ack, per spec.md §4.1.
func (r *RIB) runKernel(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.shim.KernelEvents():
			if !ok {
				return
			}
			r.handleKernelEvent(ev)
		case ack, ok := <-r.shim.Acks():
			if !ok {
				return
			}
			r.handleAck(ack)
		}
	}
}

func (r *RIB) handleKernelEvent(ev fib.KernelEvent) {
	switch ev.Kind {
	case fib.EventRouteAdd:
		r.AddCandidate(ev.Prefix, &Route{
			Source:   SourceKernel,
			Distance: DefaultDistances().Kernel,
			Nexthop:  nexthop.Nexthop{Kind: nexthop.KindGroup, Children: ev.RouteChildren},
		})
	case fib.EventRouteDel:
		r.WithdrawCandidate(ev.Prefix, SourceKernel, 0)
	default:
		// Link/addr notifications are the link table's concern; the
		// RIB only reacts to the connected-route events that table
		// derives from them (runConnected above), not to the raw
		// kernel notification itself.
	}
}

// handleAck reflects the kernel's acceptance/rejection of a previously
// emitted RouteOp back onto FIBInstalled (spec.md §4.1 "Failure
// semantics": on rejection the route is marked not-fib-installed but
// stays selected).
func (r *RIB) handleAck(ack fib.Ack) {
	t := r.tableFor(ack.Prefix)
	cs, ok := t.entries[Canonicalize(ack.Prefix)]
	if !ok || cs.selected == nil {
		return
	}
	cs.selected.Flags.FIBInstalled = ack.Err == nil
	if ack.Err != nil {
		r.logger.Warn("rib: kernel rejected route", zap.String("prefix", ack.Prefix.String()), zap.Error(ack.Err))
	}
}

// Run starts the connected-route and kernel-notification consume loops
// and blocks until ctx is cancelled.
func (r *RIB) Run(ctx context.Context) error {
	go r.runConnected(ctx)
	r.runKernel(ctx)
	return nil
}
