package bgp

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openrouted/routingd/internal/bgp/packet"
)

type recordingConn struct {
	sent []*packet.Message
}

func (c *recordingConn) Send(m *packet.Message) error {
	c.sent = append(c.sent, m)
	return nil
}
func (c *recordingConn) Recv() (*packet.Message, error) { return nil, nil }
func (c *recordingConn) Close() error                   { return nil }

func TestHandleMessageOpenRejectsWhenNoAFISAFINegotiated(t *testing.T) {
	p := newTestPeer(t)
	p.state = OpenSent
	conn := &recordingConn{}
	p.conn = conn

	p.handleMessage(&packet.Message{Body: &packet.Open{
		BGPIdentifier: netip.MustParseAddr("192.0.2.2"),
	}})

	require.Len(t, conn.sent, 1)
	notif, ok := conn.sent[0].Body.(*packet.Notification)
	require.True(t, ok)
	require.Equal(t, packet.ErrOpen, notif.ErrorCode)
	require.Equal(t, packet.SubErrUnsupportedCapability, notif.ErrorSubcode)

	select {
	case ev := <-p.eventCh:
		require.Equal(t, EventTCPConnectionFails, ev)
	default:
		t.Fatal("expected EventTCPConnectionFails to be queued")
	}
}

func TestHandleMessageOpenAcceptsWhenAFISAFINegotiated(t *testing.T) {
	p := newTestPeer(t)
	p.state = OpenSent
	conn := &recordingConn{}
	p.conn = conn

	p.handleMessage(&packet.Message{Body: &packet.Open{
		BGPIdentifier: netip.MustParseAddr("192.0.2.2"),
		HoldTime:      90,
		Capabilities:  []packet.Capability{packet.MultiprotocolCapability(packet.AFIIPv4, packet.SAFIUnicast)},
	}})

	require.Equal(t, OpenConfirm, p.State())
	require.Equal(t, netip.MustParseAddr("192.0.2.2"), p.remoteRouterID)
}

func TestNegotiatedAFISAFIRequiresBothSides(t *testing.T) {
	p := newTestPeer(t)
	require.False(t, p.NegotiatedAFISAFI(packet.AFIIPv4, packet.SAFIUnicast))

	p.remoteCaps = []packet.Capability{packet.MultiprotocolCapability(packet.AFIIPv4, packet.SAFIUnicast)}
	require.True(t, p.NegotiatedAFISAFI(packet.AFIIPv4, packet.SAFIUnicast))
	require.False(t, p.NegotiatedAFISAFI(packet.AFIIPv6, packet.SAFIUnicast))
}

func TestLocalCapabilitiesAdvertisesRouteRefreshAndAddPath(t *testing.T) {
	p := newTestPeer(t)
	caps := p.localCapabilities()

	require.True(t, packet.HasCapability(caps, packet.CapRouteRefresh))
	require.True(t, packet.HasCapability(caps, packet.CapRouteRefreshPreStandard))
	require.True(t, packet.HasCapability(caps, packet.CapAddPath))
	require.True(t, packet.HasAFISAFI(caps, packet.AFIIPv4, packet.SAFIUnicast))
	require.True(t, packet.HasAFISAFI(caps, packet.AFIIPv6, packet.SAFIUnicast))
}

func TestReadLoopSendsNotificationOnDecodeError(t *testing.T) {
	p := newTestPeer(t)
	conn := &recordingConn{}
	p.conn = conn

	go p.readLoop(&erroringConn{err: packet.MessageError{Code: packet.ErrUpdate, Subcode: packet.SubErrUnrecognizedWellKnown}})

	select {
	case ev := <-p.eventCh:
		require.Equal(t, EventTCPConnectionFails, ev)
	}
	require.Len(t, conn.sent, 1)
	notif, ok := conn.sent[0].Body.(*packet.Notification)
	require.True(t, ok)
	require.Equal(t, packet.ErrUpdate, notif.ErrorCode)
	require.Equal(t, packet.SubErrUnrecognizedWellKnown, notif.ErrorSubcode)
}

type erroringConn struct{ err error }

func (c *erroringConn) Send(*packet.Message) error     { return nil }
func (c *erroringConn) Recv() (*packet.Message, error) { return nil, c.err }
func (c *erroringConn) Close() error                   { return nil }
