package main

import (
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/openrouted/routingd/internal/bgp"
	"github.com/openrouted/routingd/internal/config"
	"github.com/openrouted/routingd/internal/isis"
	"github.com/openrouted/routingd/internal/link"
	"github.com/openrouted/routingd/internal/rib"
	"github.com/openrouted/routingd/internal/rib/nexthop"
)

// isisRouteHandler builds the onRoute callback wired into isis.NewInstance:
// it turns a RouteResult's neighbor system IDs into RIB nexthops via
// inst.NeighborIfindex, one Direct nexthop per next hop or a Group when
// SPF found ECMP paths (spec.md §4.5's "multiple equal-cost next hops").
// inst is filled in by the caller after construction (a self-referencing
// closure, since the instance does not exist yet when NewInstance needs
// this callback).
func isisRouteHandler(r *rib.RIB, inst **isis.Instance, logger *zap.Logger) func(isis.RouteResult) {
	return func(res isis.RouteResult) {
		distance := rib.DefaultDistances().ISISL1
		if res.Level == isis.Level2 {
			distance = rib.DefaultDistances().ISISL2
		}

		if res.Withdrawn {
			r.WithdrawCandidate(res.Prefix, rib.SourceISIS, 0)
			return
		}

		var children []nexthop.Child
		for _, sysID := range res.NextHopSystems {
			ifindex, ok := (*inst).NeighborIfindex(sysID)
			if !ok {
				logger.Debug("isis: route with unresolved next hop system", zap.Stringer("system_id", sysID))
				continue
			}
			children = append(children, nexthop.Child{Ifindex: ifindex})
		}
		if len(children) == 0 {
			return
		}

		nh := nexthop.Direct(children[0].Ifindex, netip.Addr{})
		if len(children) > 1 {
			nh = nexthop.Nexthop{Kind: nexthop.KindGroup, Children: children}
		}

		r.AddCandidate(res.Prefix, &rib.Route{
			Source:   rib.SourceISIS,
			Distance: distance,
			Metric:   res.Metric,
			Nexthop:  nh,
		})
	}
}

// daemonApplier implements config.Applier against the live wiring built
// in runDaemon, translating each typed Delta into the matching
// component's mutation (spec.md §6's config-delta ingestion contract).
type daemonApplier struct {
	logger *zap.Logger
	rib    *rib.RIB
	isis   *isis.Instance
	bgp    *bgp.Instance
	link   *link.Table
}

func (a *daemonApplier) ApplyStaticRoute(op config.Op, r *config.StaticRoute) error {
	if op == config.OpDelete {
		a.rib.WithdrawCandidate(r.Prefix, rib.SourceStatic, 0)
		return nil
	}
	distance := r.Distance
	if distance == 0 {
		distance = rib.DefaultDistances().Static
	}
	a.rib.AddCandidate(r.Prefix, &rib.Route{
		Source:   rib.SourceStatic,
		Distance: distance,
		Metric:   r.Metric,
		Nexthop:  nexthop.Unicast(r.Nexthop, 0, r.Weight, nil),
	})
	return nil
}

func (a *daemonApplier) ApplyInterfaceAddr(op config.Op, addr *config.InterfaceAddr) error {
	l, ok := a.link.ByName(addr.IfName)
	if !ok {
		return fmt.Errorf("config: interface %q not known to the link table", addr.IfName)
	}
	if op == config.OpDelete {
		return a.link.DelAddr(l.Index, addr.Addr)
	}
	return a.link.AddAddr(l.Index, addr.Addr)
}

// ApplyISISInstance updates process-wide IS-IS instance settings. Only
// meaningful before the daemon's Run loop starts (the NET a running SPF
// keys everything off of cannot be swapped out from under it without a
// restart, and this daemon is explicitly not a hot config replayer).
func (a *daemonApplier) ApplyISISInstance(op config.Op, i *config.ISISInstance) error {
	a.logger.Warn("config: isis_instance delta received after startup, ignoring (requires restart)",
		zap.String("net", i.NET))
	return nil
}

func (a *daemonApplier) ApplyISISCircuit(op config.Op, c *config.ISISCircuit) error {
	l, ok := a.link.ByName(c.IfName)
	if !ok {
		return fmt.Errorf("config: interface %q not known to the link table", c.IfName)
	}
	if op == config.OpDelete {
		a.logger.Warn("config: isis_circuit delete received, but circuit teardown requires a restart",
			zap.String("interface", c.IfName))
		return nil
	}

	var hwaddr [6]byte
	copy(hwaddr[:], l.HWAddr)

	circuit, err := isis.NewCircuit(c.IfName, l.Index, hwaddr, isis.LinkType(c.LinkType), isis.CircuitType(c.CircuitType))
	if err != nil {
		return fmt.Errorf("config: build isis circuit for %q: %w", c.IfName, err)
	}
	circuit.Priority = c.Priority
	circuit.Metric = c.Metric
	circuit.EnableIPv4 = c.EnableIPv4
	circuit.EnableIPv6 = c.EnableIPv6
	if err := circuit.Open(); err != nil {
		return fmt.Errorf("config: open isis circuit on %q: %w", c.IfName, err)
	}

	a.isis.AddCircuit(circuit)
	a.logger.Info("config: isis circuit added; its hello/receive loops start on next daemon restart",
		zap.String("interface", c.IfName))
	return nil
}

// ApplyBGPGlobal is the BGP analog of ApplyISISInstance: local AS and
// router ID are fixed at bgp.NewInstance time.
func (a *daemonApplier) ApplyBGPGlobal(op config.Op, g *config.BGPGlobal) error {
	a.logger.Warn("config: bgp_global delta received after startup, ignoring (requires restart)",
		zap.Uint32("local_as", g.LocalAS))
	return nil
}

func (a *daemonApplier) ApplyBGPNeighbor(op config.Op, n *config.BGPNeighbor) error {
	if op == config.OpDelete {
		a.logger.Warn("config: bgp_neighbor delete received, but peer teardown requires a restart",
			zap.String("peer", n.Address.String()))
		return nil
	}
	holdTime := time.Duration(n.HoldTime) * time.Second
	if holdTime == 0 {
		holdTime = 90 * time.Second
	}
	peer := a.bgp.AddPeer(bgp.Config{
		PeerAS:       n.PeerAS,
		PeerAddress:  n.Address,
		HoldTime:     holdTime,
		ConnectRetry: 10 * time.Second,
	})
	a.logger.Info("config: bgp neighbor added; its FSM starts on next daemon restart",
		zap.String("peer", n.Address.String()), zap.Stringer("state", peer.State()))
	return nil
}
