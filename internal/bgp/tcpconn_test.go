package bgp

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openrouted/routingd/internal/bgp/packet"
)

func TestTCPConnSendRecvRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cc := NewTCPConn(client)
	sc := NewTCPConn(server)

	msg := &packet.Message{
		Header: &packet.Header{Type: packet.MsgTypeKeepAlive},
		Body:   &packet.KeepAlive{},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- cc.Send(msg) }()

	got, err := sc.Recv()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	require.Equal(t, packet.MsgTypeKeepAlive, got.Header.Type)
}

func TestTCPConnRemoteAddr(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cc := NewTCPConn(client)
	require.NotNil(t, cc.RemoteAddr())
}

func TestListenerClosesUnmatchedPeer(t *testing.T) {
	inst := NewInstance(zap.NewNop(), 65001, netip.MustParseAddr("10.0.0.1"), nil)
	inst.AddPeer(Config{PeerAS: 65002, PeerAddress: netip.MustParseAddr("192.0.2.2")})

	l := &Listener{inst: inst}

	client, server := net.Pipe()
	defer client.Close()

	// net.Pipe's Addr has no host:port, so handleAccept must treat it as
	// unmatched and close the server side without touching the peer.
	l.handleAccept(server)

	peer, _ := inst.Peer(netip.MustParseAddr("192.0.2.2"))
	require.Nil(t, peer.conn)
}
