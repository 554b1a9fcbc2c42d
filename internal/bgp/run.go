package bgp

import (
	"context"
	"time"

	"github.com/openrouted/routingd/internal/bgp/packet"
)

// run drives one peer's FSM: events from eventCh, decoded messages
// from the attached Conn, and applies the transition table until ctx
// is cancelled. SetConn attaches a live transport from the outside
// (the Listener's accept loop or ActiveOpenLoop's dial), mirroring the handoff in the
// teacher's fsm_manager.go between the connection-accept loop and the
// FSM goroutine.
func (p *Peer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.eventCh:
			p.handleEvent(ev)
		case m, ok := <-p.recvCh:
			if !ok {
				continue
			}
			p.handleMessage(m)
		}
	}
}

func (p *Peer) handleEvent(ev Event) {
	p.transition(ev)
}

func (p *Peer) handleMessage(m *packet.Message) {
	switch body := m.Body.(type) {
	case *packet.Open:
		if !p.receiveOpenCollision(body.BGPIdentifier) {
			p.sendNotification(packet.ErrCease, packet.SubErrCeaseConnRejected)
			p.eventCh <- EventTCPConnectionFails
			return
		}
		p.remoteCaps = body.Capabilities
		p.remoteRouterID = body.BGPIdentifier
		if !p.NegotiatedAFISAFI(packet.AFIIPv4, packet.SAFIUnicast) && !p.NegotiatedAFISAFI(packet.AFIIPv6, packet.SAFIUnicast) {
			// Neither side has a usable AFI/SAFI in common: RFC 5492's
			// Unsupported Capability NOTIFICATION, since nothing this
			// session could ever carry routes for (spec.md §4.6).
			p.sendNotification(packet.ErrOpen, packet.SubErrUnsupportedCapability)
			p.eventCh <- EventTCPConnectionFails
			return
		}
		p.holdTime = minHoldTime(p.cfg.HoldTime, time.Duration(body.HoldTime)*time.Second)
		p.transition(EventBGPOpen)
	case *packet.KeepAlive:
		p.transition(EventKeepAliveMsg)
	case *packet.Update:
		p.transition(EventUpdateMsg)
		if p.instance != nil {
			p.instance.ReceiveUpdate(p, body)
		}
	case *packet.Notification:
		p.notifyRecv = body
		p.transition(EventNotifMsg)
	}
}

// SetConn attaches conn and signals the connected-confirmed event,
// moving the FSM from Connect/Active into OpenSent.
func (p *Peer) SetConn(conn Conn) {
	p.conn = conn
	go p.readLoop(conn)
	p.eventCh <- EventTCPConnectionConfirmed
}

func (p *Peer) readLoop(conn Conn) {
	for {
		m, err := conn.Recv()
		if err != nil {
			// A decode failure (malformed PDU/attribute) gets the RFC
			// code/subcode NOTIFICATION the decoder attached; anything
			// else (EOF, reset) just tears the session down (spec.md §7
			// "send NOTIFICATION with the RFC code/subcode, close").
			if merr, ok := err.(packet.MessageError); ok {
				p.sendNotification(merr.Code, merr.Subcode)
			}
			p.eventCh <- EventTCPConnectionFails
			return
		}
		p.recvCh <- m
	}
}

func minHoldTime(local, remote time.Duration) time.Duration {
	remoteDur := remote
	if remoteDur < local {
		return remoteDur
	}
	return local
}
