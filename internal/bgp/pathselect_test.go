package bgp

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openrouted/routingd/internal/bgp/packet"
)

func seq(ases ...uint32) []packet.ASSegment {
	return []packet.ASSegment{{Type: packet.ASSequence, AS: ases}}
}

func TestSelectBestPrefersHigherLocalPref(t *testing.T) {
	low := &Path{LocalPref: 50, PeerAddress: netip.MustParseAddr("10.0.0.1")}
	high := &Path{LocalPref: 200, PeerAddress: netip.MustParseAddr("10.0.0.2")}
	best := SelectBest([]*Path{low, high}, nil)
	require.Same(t, high, best)
}

func TestSelectBestPrefersShorterASPath(t *testing.T) {
	long := &Path{LocalPref: 100, ASPath: seq(1, 2, 3), PeerAddress: netip.MustParseAddr("10.0.0.1")}
	short := &Path{LocalPref: 100, ASPath: seq(1), PeerAddress: netip.MustParseAddr("10.0.0.2")}
	best := SelectBest([]*Path{long, short}, nil)
	require.Same(t, short, best)
}

func TestSelectBestMEDOnlyComparedWithinSameNeighborAS(t *testing.T) {
	asOneHighMED := &Path{LocalPref: 100, PeerAS: 65001, MED: 10, PeerAddress: netip.MustParseAddr("10.0.0.1")}
	asTwoLowMED := &Path{LocalPref: 100, PeerAS: 65002, MED: 5, PeerAddress: netip.MustParseAddr("10.0.0.2")}
	// Different neighbor ASes: MED isn't comparable, so the chain falls
	// through to lowest-peer-address, not whichever has a smaller MED.
	best := SelectBest([]*Path{asOneHighMED, asTwoLowMED}, nil)
	require.Same(t, asOneHighMED, best)
}

func TestSelectBestMEDTieBreakSameNeighborAS(t *testing.T) {
	high := &Path{LocalPref: 100, PeerAS: 65001, MED: 20, PeerAddress: netip.MustParseAddr("10.0.0.2")}
	low := &Path{LocalPref: 100, PeerAS: 65001, MED: 5, PeerAddress: netip.MustParseAddr("10.0.0.1")}
	best := SelectBest([]*Path{high, low}, nil)
	require.Same(t, low, best)
}

func TestSelectBestPrefersEBGPOverIBGP(t *testing.T) {
	ibgp := &Path{LocalPref: 100, LocalAS: 65001, PeerAS: 65001, PeerAddress: netip.MustParseAddr("10.0.0.1")}
	ebgp := &Path{LocalPref: 100, LocalAS: 65001, PeerAS: 65002, PeerAddress: netip.MustParseAddr("10.0.0.9")}
	best := SelectBest([]*Path{ibgp, ebgp}, nil)
	require.Same(t, ebgp, best)
}

func TestSelectBestLowestPeerAddressFinalTieBreak(t *testing.T) {
	a := &Path{PeerAddress: netip.MustParseAddr("10.0.0.9")}
	b := &Path{PeerAddress: netip.MustParseAddr("10.0.0.1")}
	best := SelectBest([]*Path{a, b}, nil)
	require.Same(t, b, best)
}

func TestSelectBestPrefersLocallyOriginated(t *testing.T) {
	peerLearned := &Path{LocalPref: 100, PeerAddress: netip.MustParseAddr("10.0.0.9")}
	local := &Path{LocalPref: 100, LocalOriginated: true, PeerAddress: netip.MustParseAddr("10.0.0.1")}
	best := SelectBest([]*Path{peerLearned, local}, nil)
	require.Same(t, local, best)
}

func TestSelectBestLowerIGPMetricToNextHop(t *testing.T) {
	farNextHop := netip.MustParseAddr("192.0.2.1")
	nearNextHop := netip.MustParseAddr("192.0.2.2")
	far := &Path{LocalPref: 100, NextHop: farNextHop, PeerAddress: netip.MustParseAddr("10.0.0.9")}
	near := &Path{LocalPref: 100, NextHop: nearNextHop, PeerAddress: netip.MustParseAddr("10.0.0.1")}
	metricTo := func(addr netip.Addr) (uint32, bool) {
		if addr == nearNextHop {
			return 5, true
		}
		return 20, true
	}
	best := SelectBest([]*Path{far, near}, metricTo)
	require.Same(t, near, best)
}

func TestSelectBestLowerRouterIDBeforePeerAddressTieBreak(t *testing.T) {
	// Both paths arrive over the same session address (an unrealistic but
	// legal construction in isolation); RouterID breaks the tie first.
	a := &Path{PeerAddress: netip.MustParseAddr("10.0.0.1"), RouterID: netip.MustParseAddr("1.1.1.9")}
	b := &Path{PeerAddress: netip.MustParseAddr("10.0.0.1"), RouterID: netip.MustParseAddr("1.1.1.1")}
	best := SelectBest([]*Path{a, b}, nil)
	require.Same(t, b, best)
}
