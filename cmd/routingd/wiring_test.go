package main

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openrouted/routingd/internal/bgp"
	"github.com/openrouted/routingd/internal/config"
	"github.com/openrouted/routingd/internal/isis"
	"github.com/openrouted/routingd/internal/link"
	"github.com/openrouted/routingd/internal/rib"
)

func TestIsisRouteHandlerWithdrawsCandidate(t *testing.T) {
	r := rib.New(zap.NewNop(), rib.DefaultDistances(), false, nil, nil)
	var inst *isis.Instance
	handler := isisRouteHandler(r, &inst, zap.NewNop())
	inst = isis.NewInstance(zap.NewNop(), isis.SystemID{1}, false, handler)

	prefix := netip.MustParsePrefix("10.0.0.0/24")
	r.AddCandidate(prefix, &rib.Route{Source: rib.SourceISIS, Distance: rib.DefaultDistances().ISISL1})

	handler(isis.RouteResult{Prefix: prefix, Level: isis.Level1, Withdrawn: true})

	_, ok := r.Candidates(prefix)
	require.False(t, ok)
}

func TestIsisRouteHandlerSkipsUnresolvedNextHop(t *testing.T) {
	r := rib.New(zap.NewNop(), rib.DefaultDistances(), false, nil, nil)
	var inst *isis.Instance
	handler := isisRouteHandler(r, &inst, zap.NewNop())
	inst = isis.NewInstance(zap.NewNop(), isis.SystemID{1}, false, handler)

	prefix := netip.MustParsePrefix("192.0.2.0/24")
	handler(isis.RouteResult{
		Prefix:         prefix,
		Level:          isis.Level1,
		NextHopSystems: []isis.SystemID{{9, 9, 9, 9, 9, 9}},
	})

	_, ok := r.Candidates(prefix)
	require.False(t, ok, "a route whose next hop never resolves to an ifindex must not be installed")
}

func TestDaemonApplierStaticRouteAddAndDelete(t *testing.T) {
	r := rib.New(zap.NewNop(), rib.DefaultDistances(), false, nil, nil)
	a := &daemonApplier{logger: zap.NewNop(), rib: r}

	prefix := netip.MustParsePrefix("203.0.113.0/24")
	sr := &config.StaticRoute{Prefix: prefix, Nexthop: netip.MustParseAddr("192.0.2.1")}

	require.NoError(t, a.ApplyStaticRoute(config.OpAdd, sr))
	cands, ok := r.Candidates(prefix)
	require.True(t, ok)
	require.Len(t, cands, 1)
	require.Equal(t, rib.SourceStatic, cands[0].Source)

	require.NoError(t, a.ApplyStaticRoute(config.OpDelete, sr))
	_, ok = r.Candidates(prefix)
	require.False(t, ok)
}

func TestDaemonApplierInterfaceAddrUnknownInterfaceErrors(t *testing.T) {
	a := &daemonApplier{logger: zap.NewNop(), link: link.New(zap.NewNop())}
	err := a.ApplyInterfaceAddr(config.OpAdd, &config.InterfaceAddr{
		IfName: "eth9",
		Addr:   netip.MustParsePrefix("192.0.2.0/24"),
	})
	require.Error(t, err)
}

func TestDaemonApplierInterfaceAddrAddsToKnownInterface(t *testing.T) {
	l := link.New(zap.NewNop())
	l.UpsertLink(1, "eth0", 1500, nil, link.Flags{Up: true})
	a := &daemonApplier{logger: zap.NewNop(), link: l}

	err := a.ApplyInterfaceAddr(config.OpAdd, &config.InterfaceAddr{
		IfName: "eth0",
		Addr:   netip.MustParsePrefix("192.0.2.1/24"),
	})
	require.NoError(t, err)

	lk, ok := l.ByName("eth0")
	require.True(t, ok)
	_, has := lk.V4Addrs[netip.MustParsePrefix("192.0.2.1/24")]
	require.True(t, has)
}

func TestDaemonApplierBGPNeighborAddsPeer(t *testing.T) {
	r := rib.New(zap.NewNop(), rib.DefaultDistances(), false, nil, nil)
	bgpInst := bgp.NewInstance(zap.NewNop(), 65001, netip.MustParseAddr("10.0.0.1"), r)
	a := &daemonApplier{logger: zap.NewNop(), bgp: bgpInst}

	err := a.ApplyBGPNeighbor(config.OpAdd, &config.BGPNeighbor{
		Address:  netip.MustParseAddr("192.0.2.2"),
		PeerAS:   65002,
		HoldTime: 90,
	})
	require.NoError(t, err)

	peer, ok := bgpInst.Peer(netip.MustParseAddr("192.0.2.2"))
	require.True(t, ok)
	require.Equal(t, uint32(65002), peer.Config().PeerAS)
	require.Equal(t, 90*time.Second, peer.Config().HoldTime)
}

func TestDaemonApplierBGPNeighborDeleteIsNoop(t *testing.T) {
	r := rib.New(zap.NewNop(), rib.DefaultDistances(), false, nil, nil)
	bgpInst := bgp.NewInstance(zap.NewNop(), 65001, netip.MustParseAddr("10.0.0.1"), r)
	a := &daemonApplier{logger: zap.NewNop(), bgp: bgpInst}

	err := a.ApplyBGPNeighbor(config.OpDelete, &config.BGPNeighbor{Address: netip.MustParseAddr("192.0.2.2")})
	require.NoError(t, err)

	_, ok := bgpInst.Peer(netip.MustParseAddr("192.0.2.2"))
	require.False(t, ok)
}

func TestDaemonApplierISISInstanceIsNoop(t *testing.T) {
	a := &daemonApplier{logger: zap.NewNop()}
	require.NoError(t, a.ApplyISISInstance(config.OpChange, &config.ISISInstance{NET: "49.0001.1921.6800.1001.00"}))
}
