package isis

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInstanceSPFReportsPrefixOfReachableSystem(t *testing.T) {
	var routes []RouteResult
	inst := NewInstance(zap.NewNop(), SystemID{1}, false, func(r RouteResult) { routes = append(routes, r) })

	other := SystemID{2}
	prefix := netip.MustParsePrefix("10.0.0.0/24")
	lsp := &LSP{
		LSPID:             LSPID{SystemID: other},
		SequenceNumber:    1,
		RemainingLifetime: 1000,
		TLVs: []TLV{
			{Type: TLVExtendedIPReachability, Value: encodeExtendedIPReach([]Reachability{{Prefix: prefix, Metric: 10}}, false)},
		},
	}
	inst.lsdb[Level1].Install(lsp, false)

	adjLSP := &LSP{
		LSPID:             LSPID{SystemID: SystemID{1}},
		SequenceNumber:    1,
		RemainingLifetime: 1000,
		TLVs: []TLV{
			{Type: TLVExtendedISReachability, Value: encodeExtendedISReach([]Adjacency{{Neighbor: other, Metric: 10}})},
		},
	}
	inst.lsdb[Level1].Install(adjLSP, true)

	inst.runSPF(Level1)

	require.NotEmpty(t, routes)
	found := false
	for _, r := range routes {
		if r.Prefix == prefix {
			found = true
			require.Equal(t, uint32(20), r.Metric)
			require.Equal(t, []SystemID{other}, r.NextHopSystems)
		}
	}
	require.True(t, found)
}

func TestRunSPFWithdrawsPrefixNoLongerReachable(t *testing.T) {
	var routes []RouteResult
	inst := NewInstance(zap.NewNop(), SystemID{1}, false, func(r RouteResult) { routes = append(routes, r) })

	other := SystemID{2}
	prefix := netip.MustParsePrefix("10.0.0.0/24")
	reachLSP := &LSP{
		LSPID:             LSPID{SystemID: other},
		SequenceNumber:    1,
		RemainingLifetime: 1000,
		TLVs: []TLV{
			{Type: TLVExtendedIPReachability, Value: encodeExtendedIPReach([]Reachability{{Prefix: prefix, Metric: 10}}, false)},
		},
	}
	adjLSP := &LSP{
		LSPID:             LSPID{SystemID: SystemID{1}},
		SequenceNumber:    1,
		RemainingLifetime: 1000,
		TLVs: []TLV{
			{Type: TLVExtendedISReachability, Value: encodeExtendedISReach([]Adjacency{{Neighbor: other, Metric: 10}})},
		},
	}
	inst.lsdb[Level1].Install(reachLSP, false)
	inst.lsdb[Level1].Install(adjLSP, true)
	inst.runSPF(Level1)

	reachable := false
	for _, r := range routes {
		if r.Prefix == prefix && !r.Withdrawn {
			reachable = true
		}
	}
	require.True(t, reachable, "prefix should be reported reachable on first pass")

	// Topology loses the adjacency to other: the prefix is no longer
	// reachable and the next SPF pass must report it withdrawn.
	routes = nil
	inst.lsdb[Level1].Install(&LSP{
		LSPID:             LSPID{SystemID: SystemID{1}},
		SequenceNumber:    2,
		RemainingLifetime: 1000,
	}, true)
	inst.runSPF(Level1)

	withdrawn := false
	for _, r := range routes {
		if r.Prefix == prefix && r.Withdrawn && r.Level == Level1 {
			withdrawn = true
		}
	}
	require.True(t, withdrawn, "prefix that dropped out of reachability must be reported withdrawn")
}

func TestIfsmUpOnlyWithUpNeighbor(t *testing.T) {
	state := ifsmNext(IfsmDown, IfsmEventCircuitUp, false)
	require.Equal(t, IfsmInit, state)

	state = ifsmNext(state, IfsmEventNeighborChange, false)
	require.Equal(t, IfsmInit, state)

	state = ifsmNext(state, IfsmEventNeighborChange, true)
	require.Equal(t, IfsmUp, state)
}

func TestDISElectionHighestPriorityThenMAC(t *testing.T) {
	neighbors := []*Neighbor{
		{MAC: [6]byte{1}, Priority: 10, State: NfsmUp, Level: Level1},
		{MAC: [6]byte{2}, Priority: 20, State: NfsmUp, Level: Level1},
		{MAC: [6]byte{3}, Priority: 20, State: NfsmUp, Level: Level1},
	}
	winner := ElectDIS(5, [6]byte{0}, neighbors, Level1)
	require.Equal(t, uint8(20), winner.priority)
	require.Equal(t, [6]byte{3}, winner.mac)
}

func TestDISElectionSelfWinsWithNoNeighbors(t *testing.T) {
	require.True(t, IsSelfDIS(1, [6]byte{9}, nil, Level1))
}

func TestP2PNeighborSkipsTwoWayCheck(t *testing.T) {
	c := &Circuit{LinkType: LinkPointToPoint}
	n := &Neighbor{Circuit: c, State: NfsmDown, HoldTime: 30}
	changed := n.ReceiveHello(&IIH{}, func([6]byte) bool { return false })
	require.True(t, changed)
	require.Equal(t, NfsmUp, n.State)
}

func TestBroadcastNeighborStaysInitUntilTwoWayCheckPasses(t *testing.T) {
	c := &Circuit{LinkType: LinkBroadcast, HWAddr: [6]byte{1, 1, 1, 1, 1, 1}}
	n := &Neighbor{Circuit: c, State: NfsmDown, HoldTime: 30}

	changed := n.ReceiveHello(&IIH{}, func([6]byte) bool { return false })
	require.True(t, changed)
	require.Equal(t, NfsmInit, n.State)

	changed = n.ReceiveHello(&IIH{}, func(mac [6]byte) bool { return mac == c.HWAddr })
	require.True(t, changed)
	require.Equal(t, NfsmUp, n.State)
}

func TestCheckHoldTimersExpiresStaleNeighborAndReoriginates(t *testing.T) {
	inst := NewInstance(zap.NewNop(), SystemID{1}, false, func(RouteResult) {})

	c := &Circuit{Ifindex: 1, Ifname: "eth0", Type: CircuitLevel1, LinkType: LinkPointToPoint}
	inst.AddCircuit(c)

	nbr := &Neighbor{SystemID: SystemID{2}, Circuit: c, Level: Level1, State: NfsmUp, HoldTime: 30 * time.Second, LastHello: now()}
	inst.neighbors[c.Ifindex] = []*Neighbor{nbr}

	real := now
	defer func() { now = real }()
	now = func() time.Time { return real().Add(time.Hour) }

	inst.checkHoldTimers()

	require.Equal(t, NfsmDown, nbr.State)
	require.Equal(t, uint32(1), inst.seqnum[Level1], "an expired neighbor must trigger self-LSP re-origination")
}

func TestOriginatePseudonodeBuildsAndPurgesOnDISChange(t *testing.T) {
	inst := NewInstance(zap.NewNop(), SystemID{1}, false, func(RouteResult) {})

	c := &Circuit{Ifindex: 2, Ifname: "eth1", Type: CircuitLevel1, LinkType: LinkBroadcast, HWAddr: [6]byte{1, 1, 1, 1, 1, 1}}
	inst.AddCircuit(c)
	inst.clstates[c.Ifindex][Level1].IsDIS = true

	nbr := &Neighbor{SystemID: SystemID{5}, Circuit: c, Level: Level1, State: NfsmUp}
	inst.neighbors[c.Ifindex] = []*Neighbor{nbr}

	pseudo := pseudonodeID(c)
	require.NotZero(t, pseudo)

	inst.originatePseudonode(c, Level1, pseudo, true)
	lsp, ok := inst.lsdb[Level1].Get(LSPID{SystemID: inst.NET, Pseudonode: pseudo})
	require.True(t, ok)
	require.Equal(t, uint16(MaxAge/time.Second), lsp.RemainingLifetime)

	inst.clstates[c.Ifindex][Level1].IsDIS = false
	inst.originatePseudonode(c, Level1, pseudo, false)
	purged, ok := inst.lsdb[Level1].Get(LSPID{SystemID: inst.NET, Pseudonode: pseudo})
	require.True(t, ok)
	require.Equal(t, uint16(0), purged.RemainingLifetime)
}

func TestOriginatePseudonodeSkipsStaleDISTransition(t *testing.T) {
	inst := NewInstance(zap.NewNop(), SystemID{1}, false, func(RouteResult) {})
	c := &Circuit{Ifindex: 3, Ifname: "eth2", Type: CircuitLevel1, LinkType: LinkBroadcast}
	inst.AddCircuit(c)
	inst.clstates[c.Ifindex][Level1].IsDIS = false

	// isDIS flipped again before the delayed timer fired: the stale
	// callback must not originate anything.
	inst.originatePseudonode(c, Level1, pseudonodeID(c), true)
	_, ok := inst.lsdb[Level1].Get(LSPID{SystemID: inst.NET, Pseudonode: pseudonodeID(c)})
	require.False(t, ok)
}

func TestIsisNeighborListed(t *testing.T) {
	mac := [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	other := [6]byte{1, 2, 3, 4, 5, 6}
	iih := &IIH{TLVs: []TLV{{Type: TLVISNeighbors, Value: encodeISNeighbors([][6]byte{other, mac})}}}

	require.True(t, isisNeighborListed(iih, mac))
	require.False(t, isisNeighborListed(iih, [6]byte{9, 9, 9, 9, 9, 9}))
	require.False(t, isisNeighborListed(&IIH{}, mac))
}
