package show

import (
	"encoding/json"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openrouted/routingd/internal/bgp"
	"github.com/openrouted/routingd/internal/bgp/packet"
	"github.com/openrouted/routingd/internal/link"
	"github.com/openrouted/routingd/internal/rib"
)

func TestShowUnknownCommandErrors(t *testing.T) {
	h := &Handler{}
	_, err := h.Show("no such command", "")
	require.Error(t, err)
}

func TestShowReturnsEmptyWhenProtocolNotWired(t *testing.T) {
	h := &Handler{}
	payload, err := h.Show("isis summary", "")
	require.NoError(t, err)
	require.Equal(t, "null", payload)
}

func TestShowIPRouteReflectsRIBCandidates(t *testing.T) {
	r := rib.New(zap.NewNop(), rib.DefaultDistances(), false, nil, nil)
	prefix := netip.MustParsePrefix("203.0.113.0/24")
	r.AddCandidate(prefix, &rib.Route{Source: rib.SourceStatic, Distance: rib.DefaultDistances().Static})

	h := &Handler{RIB: r}
	payload, err := h.Show("ip route", "")
	require.NoError(t, err)

	var lines []RouteLine
	require.NoError(t, json.Unmarshal([]byte(payload), &lines))
	require.Len(t, lines, 1)
	require.Equal(t, prefix.String(), lines[0].Prefix)
	require.True(t, lines[0].Selected)
}

func TestShowInterfaceListsLinks(t *testing.T) {
	tbl := link.New(zap.NewNop())
	tbl.UpsertLink(1, "eth0", 1500, nil, link.Flags{Up: true, Running: true})

	h := &Handler{Link: tbl}
	payload, err := h.Show("interface", "")
	require.NoError(t, err)

	var lines []InterfaceLine
	require.NoError(t, json.Unmarshal([]byte(payload), &lines))
	require.Len(t, lines, 1)
	require.Equal(t, "eth0", lines[0].Name)
}

func TestShowBGPSummaryListsConfiguredPeers(t *testing.T) {
	inst := bgp.NewInstance(zap.NewNop(), 65001, netip.MustParseAddr("10.0.0.1"), nil)
	inst.AddPeer(bgp.Config{PeerAS: 65002, PeerAddress: netip.MustParseAddr("192.0.2.2"), HoldTime: 90 * time.Second})

	h := &Handler{BGP: inst}
	payload, err := h.Show("bgp summary", "")
	require.NoError(t, err)

	var lines []BGPSummaryLine
	require.NoError(t, json.Unmarshal([]byte(payload), &lines))
	require.Len(t, lines, 1)
	require.Equal(t, "192.0.2.2", lines[0].PeerAddress)
	require.Equal(t, "idle", lines[0].State)
}

func TestShowBGPRouteMarksSelectedWinner(t *testing.T) {
	inst := bgp.NewInstance(zap.NewNop(), 65001, netip.MustParseAddr("10.0.0.1"), nil)
	peer := inst.AddPeer(bgp.Config{PeerAS: 65002, PeerAddress: netip.MustParseAddr("192.0.2.2"), HoldTime: 90 * time.Second})

	prefix := netip.MustParsePrefix("198.51.100.0/24")
	inst.ReceiveUpdate(peer, &packet.Update{
		PathAttrs: []packet.Attr{packet.NewOrigin(packet.OriginIGP), packet.NewASPath(nil), packet.NewNextHop(netip.MustParseAddr("192.0.2.2"))},
		NLRI:      []packet.Prefix{{Prefix: prefix}},
	})

	h := &Handler{BGP: inst}
	payload, err := h.Show("bgp route", "")
	require.NoError(t, err)

	var lines []BGPRouteLine
	require.NoError(t, json.Unmarshal([]byte(payload), &lines))
	require.Len(t, lines, 1)
	require.True(t, lines[0].Selected)
}
