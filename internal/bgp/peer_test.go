package bgp

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openrouted/routingd/internal/bgp/packet"
)

func newTestPeer(t *testing.T) *Peer {
	inst := NewInstance(zap.NewNop(), 65001, netip.MustParseAddr("10.0.0.1"), nil)
	cfg := Config{
		PeerAS:       65002,
		PeerAddress:  netip.MustParseAddr("192.0.2.2"),
		HoldTime:     90 * time.Second,
		ConnectRetry: time.Second,
	}
	return inst.AddPeer(cfg)
}

func TestFSMIdleToOpenSentOnConnect(t *testing.T) {
	p := newTestPeer(t)
	p.transition(EventManualStart)
	require.Equal(t, Connect, p.State())

	p.conn = fakeConn{}
	p.transition(EventTCPConnectionConfirmed)
	require.Equal(t, OpenSent, p.State())
}

func TestFSMEstablishedOnKeepAliveAfterOpen(t *testing.T) {
	p := newTestPeer(t)
	p.state = OpenSent
	p.conn = fakeConn{}
	p.transition(EventBGPOpen)
	require.Equal(t, OpenConfirm, p.State())

	p.transition(EventKeepAliveMsg)
	require.Equal(t, Established, p.State())
}

func TestFSMHoldTimerExpiryDropsToIdle(t *testing.T) {
	p := newTestPeer(t)
	p.state = Established
	p.conn = fakeConn{}
	p.transition(EventHoldTimerExpires)
	require.Equal(t, Idle, p.State())
}

func TestFSMNotificationDropsToIdle(t *testing.T) {
	p := newTestPeer(t)
	p.state = Established
	p.conn = fakeConn{}
	p.transition(EventNotifMsg)
	require.Equal(t, Idle, p.State())
}

func TestReceiveOpenCollisionHigherIDWins(t *testing.T) {
	p := newTestPeer(t)
	p.state = Established
	// Local router ID 10.0.0.1 beats a lower remote ID: we keep our session.
	require.True(t, p.receiveOpenCollision(netip.MustParseAddr("9.0.0.1")))
	// A higher remote ID loses to us, so the new connection should be rejected.
	require.False(t, p.receiveOpenCollision(netip.MustParseAddr("255.0.0.1")))
}

func TestReceiveOpenCollisionAlwaysAcceptedWhenNotEstablished(t *testing.T) {
	p := newTestPeer(t)
	p.state = OpenSent
	require.True(t, p.receiveOpenCollision(netip.MustParseAddr("255.0.0.1")))
}

type fakeConn struct{}

func (fakeConn) Send(*packet.Message) error      { return nil }
func (fakeConn) Recv() (*packet.Message, error)  { return nil, nil }
func (fakeConn) Close() error                    { return nil }
