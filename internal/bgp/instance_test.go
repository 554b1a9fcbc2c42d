package bgp

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openrouted/routingd/internal/bgp/packet"
	"github.com/openrouted/routingd/internal/rib"
)

func newTestInstance(t *testing.T) (*Instance, *rib.RIB) {
	r := rib.New(zap.NewNop(), rib.DefaultDistances(), false, nil, nil)
	inst := NewInstance(zap.NewNop(), 65001, netip.MustParseAddr("10.0.0.1"), r)
	return inst, r
}

func TestReceiveUpdateInstallsWinnerIntoRIB(t *testing.T) {
	inst, r := newTestInstance(t)
	peer := inst.AddPeer(Config{PeerAS: 65002, PeerAddress: netip.MustParseAddr("192.0.2.2"), HoldTime: 90 * time.Second})

	prefix := netip.MustParsePrefix("203.0.113.0/24")
	u := &packet.Update{
		PathAttrs: []packet.Attr{
			packet.NewOrigin(packet.OriginIGP),
			packet.NewASPath([]packet.ASSegment{{Type: packet.ASSequence, AS: []uint32{65002}}}),
			packet.NewNextHop(netip.MustParseAddr("192.0.2.2")),
		},
		NLRI: []packet.Prefix{{Prefix: prefix}},
	}
	inst.ReceiveUpdate(peer, u)

	cands, ok := r.Candidates(prefix)
	require.True(t, ok)
	require.Len(t, cands, 1)
	require.Equal(t, rib.SourceBGP, cands[0].Source)
	require.Equal(t, rib.DefaultDistances().EBGP, cands[0].Distance)
}

func TestReceiveUpdateWithdrawRemovesCandidate(t *testing.T) {
	inst, r := newTestInstance(t)
	peer := inst.AddPeer(Config{PeerAS: 65002, PeerAddress: netip.MustParseAddr("192.0.2.2"), HoldTime: 90 * time.Second})

	prefix := netip.MustParsePrefix("203.0.113.0/24")
	inst.ReceiveUpdate(peer, &packet.Update{
		PathAttrs: []packet.Attr{packet.NewOrigin(packet.OriginIGP), packet.NewASPath(nil), packet.NewNextHop(netip.MustParseAddr("192.0.2.2"))},
		NLRI:      []packet.Prefix{{Prefix: prefix}},
	})
	inst.ReceiveUpdate(peer, &packet.Update{WithdrawnRoutes: []packet.Prefix{{Prefix: prefix}}})

	_, ok := r.Candidates(prefix)
	require.False(t, ok)
}

func TestReceiveUpdatePicksHigherLocalPrefAcrossPeers(t *testing.T) {
	inst, r := newTestInstance(t)
	peerA := inst.AddPeer(Config{PeerAS: 65002, PeerAddress: netip.MustParseAddr("192.0.2.2"), HoldTime: 90 * time.Second})
	peerB := inst.AddPeer(Config{PeerAS: 65003, PeerAddress: netip.MustParseAddr("192.0.2.3"), HoldTime: 90 * time.Second})

	prefix := netip.MustParsePrefix("198.51.100.0/24")
	inst.ReceiveUpdate(peerA, &packet.Update{
		PathAttrs: []packet.Attr{packet.NewOrigin(packet.OriginIGP), packet.NewASPath(nil), packet.NewNextHop(netip.MustParseAddr("192.0.2.2")), packet.NewLocalPref(50)},
		NLRI:      []packet.Prefix{{Prefix: prefix}},
	})
	inst.ReceiveUpdate(peerB, &packet.Update{
		PathAttrs: []packet.Attr{packet.NewOrigin(packet.OriginIGP), packet.NewASPath(nil), packet.NewNextHop(netip.MustParseAddr("192.0.2.3")), packet.NewLocalPref(200)},
		NLRI:      []packet.Prefix{{Prefix: prefix}},
	})

	cands, ok := r.Candidates(prefix)
	require.True(t, ok)
	require.Len(t, cands, 1)
}

func TestAdvertiseNetworkBeatsPeerLearnedPath(t *testing.T) {
	inst, r := newTestInstance(t)
	peer := inst.AddPeer(Config{PeerAS: 65002, PeerAddress: netip.MustParseAddr("192.0.2.2"), HoldTime: 90 * time.Second})

	prefix := netip.MustParsePrefix("203.0.113.0/24")
	inst.ReceiveUpdate(peer, &packet.Update{
		PathAttrs: []packet.Attr{packet.NewOrigin(packet.OriginIGP), packet.NewASPath(nil), packet.NewNextHop(netip.MustParseAddr("192.0.2.2")), packet.NewLocalPref(100)},
		NLRI:      []packet.Prefix{{Prefix: prefix}},
	})
	inst.AdvertiseNetwork(prefix, netip.MustParseAddr("10.0.0.1"))

	cands, ok := r.Candidates(prefix)
	require.True(t, ok)
	require.Len(t, cands, 1)
	require.Equal(t, rib.SourceBGP, cands[0].Source)

	paths := inst.LocRibEntries(prefix)
	winner := SelectBest(paths, nil)
	require.True(t, winner.LocalOriginated)
}

func TestWithdrawNetworkRemovesLocallyOriginatedPath(t *testing.T) {
	inst, r := newTestInstance(t)
	prefix := netip.MustParsePrefix("203.0.113.0/24")
	inst.AdvertiseNetwork(prefix, netip.MustParseAddr("10.0.0.1"))
	inst.WithdrawNetwork(prefix)

	_, ok := r.Candidates(prefix)
	require.False(t, ok)
}

func TestWithdrawAllFromPeerClearsItsContributions(t *testing.T) {
	inst, r := newTestInstance(t)
	peer := inst.AddPeer(Config{PeerAS: 65002, PeerAddress: netip.MustParseAddr("192.0.2.2"), HoldTime: 90 * time.Second})

	prefix := netip.MustParsePrefix("203.0.113.0/24")
	inst.ReceiveUpdate(peer, &packet.Update{
		PathAttrs: []packet.Attr{packet.NewOrigin(packet.OriginIGP), packet.NewASPath(nil), packet.NewNextHop(netip.MustParseAddr("192.0.2.2"))},
		NLRI:      []packet.Prefix{{Prefix: prefix}},
	})
	inst.withdrawAllFromPeer(peer)

	_, ok := r.Candidates(prefix)
	require.False(t, ok)
}
