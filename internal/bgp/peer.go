// Package bgp implements the BGP instance (C6): per-peer FSM, Adj-RIB-In/
// Loc-RIB/Adj-RIB-Out, best-path selection and policy, wired to the RIB
// via candidate add/withdraw rather than a direct table reference —
// mirroring the decoupling internal/isis uses toward internal/rib.
package bgp

import (
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/openrouted/routingd/internal/bgp/packet"
)

// State is the RFC 4271 §8 session state. Unlike the teacher's
// FSMManager, which runs one FSM per TCP connection direction and
// resolves collisions between a pair of in-flight FSMs, this instance
// keeps one FSM per configured neighbor and applies the same
// BGP-Identifier collision rule (teacher's fsm_manager.go
// receivedBGPOpenMessage) at the point a second connection attempt
// arrives for an already-Established peer — simplified because a
// routing daemon's peer count doesn't warrant tracking two live
// sockets per neighbor just to resolve a race that collapses to "keep
// the one that's already working."
type State int

const (
	Idle State = iota
	Connect
	Active
	OpenSent
	OpenConfirm
	Established
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connect:
		return "connect"
	case Active:
		return "active"
	case OpenSent:
		return "opensent"
	case OpenConfirm:
		return "openconfirm"
	case Established:
		return "established"
	default:
		return "unknown"
	}
}

type Event int

const (
	EventManualStart Event = iota
	EventManualStop
	EventTCPConnectionConfirmed
	EventTCPConnectionFails
	EventBGPOpen
	EventKeepAliveMsg
	EventUpdateMsg
	EventNotifMsg
	EventHoldTimerExpires
	EventKeepaliveTimerExpires
	EventConnectRetryTimerExpires
)

// Config is the static configuration of one peer (spec.md §4.6).
type Config struct {
	LocalAS         uint32
	LocalRouterID   netip.Addr
	PeerAS          uint32
	PeerAddress     netip.Addr
	HoldTime        time.Duration
	ConnectRetry    time.Duration
	PrefixListIn    string
	PrefixListOut   string
	CommunityListIn string
	RouteReflector  bool
	ClusterID       netip.Addr
}

// Peer owns one neighbor's FSM, timers, and Adj-RIB-In/Out. Every
// mutable field is only ever touched from the Peer's own Run goroutine
// (spec.md §5's single-owner-per-task rule), and received UPDATEs are
// reported out via the owning Instance's ReceiveUpdate.
type Peer struct {
	logger *zap.Logger
	cfg    Config
	instance *Instance

	state         State
	holdTime      time.Duration
	keepaliveTime time.Duration

	conn       Conn
	eventCh    chan Event
	recvCh     chan *packet.Message
	sendCh     chan *packet.Message
	notifyRecv *packet.Notification

	// remoteCaps holds the peer's OPEN capabilities once received, used
	// to gate which AFI/SAFI this session actually negotiated (spec.md
	// §4.6 "an AFI/SAFI is usable only if both sides advertise it").
	remoteCaps []packet.Capability
	// remoteRouterID is the advertiser's BGP Identifier from its OPEN,
	// distinct from PeerAddress (the TCP session's source address) —
	// RFC 4271 §9.1.2.2 criterion 8 breaks ties on this, not the latter.
	remoteRouterID netip.Addr

	adjRibIn  map[netip.Prefix]*Path
	adjRibOut map[netip.Prefix]*Path

	policy *Policy

	connectRetryTimer *time.Timer
	holdTimer         *time.Timer
	keepaliveTimer    *time.Timer

	stopCh chan struct{}
}

// Conn abstracts the transport so tests can substitute an in-memory
// pipe instead of a real TCP socket, mirroring the teacher's conn.go
// split between the FSM and net.Conn.
type Conn interface {
	Send(*packet.Message) error
	Recv() (*packet.Message, error)
	Close() error
}

func NewPeer(logger *zap.Logger, instance *Instance, cfg Config, policy *Policy) *Peer {
	return &Peer{
		logger:    logger,
		cfg:       cfg,
		instance:  instance,
		state:     Idle,
		holdTime:  cfg.HoldTime,
		eventCh:   make(chan Event, 16),
		recvCh:    make(chan *packet.Message, 16),
		sendCh:    make(chan *packet.Message, 16),
		adjRibIn:  make(map[netip.Prefix]*Path),
		adjRibOut: make(map[netip.Prefix]*Path),
		policy:    policy,
		stopCh:    make(chan struct{}),
	}
}

func (p *Peer) State() State { return p.state }

// Config returns the peer's static configuration, for show handlers.
func (p *Peer) Config() Config { return p.cfg }

// AdjRibIn returns the peer's received, policy-accepted paths, for
// "show ip bgp neighbor" (spec.md §6).
func (p *Peer) AdjRibIn() map[netip.Prefix]*Path {
	return p.adjRibIn
}

// AdjRibOut returns the paths actually re-advertised to the peer.
func (p *Peer) AdjRibOut() map[netip.Prefix]*Path {
	return p.adjRibOut
}

// transition applies the RFC 4271 state table entry for (state, event),
// driving timers and producing outbound messages as a side effect —
// kept as a single method, in the teacher's style of one big per-FSM
// event switch (fsm.go/fsm_manager.go), rather than split into N
// one-state handler types.
func (p *Peer) transition(ev Event) {
	switch p.state {
	case Idle:
		if ev == EventManualStart {
			p.state = Connect
			p.resetConnectRetryTimer()
		}
	case Connect:
		switch ev {
		case EventTCPConnectionConfirmed:
			p.sendOpen()
			p.state = OpenSent
		case EventConnectRetryTimerExpires:
			p.resetConnectRetryTimer()
		case EventTCPConnectionFails:
			p.state = Active
		}
	case Active:
		switch ev {
		case EventTCPConnectionConfirmed:
			p.sendOpen()
			p.state = OpenSent
		case EventConnectRetryTimerExpires:
			p.state = Connect
			p.resetConnectRetryTimer()
		}
	case OpenSent:
		switch ev {
		case EventBGPOpen:
			p.sendKeepAlive()
			p.resetHoldTimer()
			p.state = OpenConfirm
		case EventNotifMsg, EventTCPConnectionFails:
			p.cleanup()
			p.state = Idle
		}
	case OpenConfirm:
		switch ev {
		case EventKeepAliveMsg:
			p.state = Established
			p.resetHoldTimer()
			metricSessionUp.WithLabelValues(p.cfg.PeerAddress.String()).Set(1)
		case EventHoldTimerExpires:
			p.sendNotification(packet.ErrHoldTimerExp, 0)
			p.cleanup()
			p.state = Idle
		case EventNotifMsg, EventTCPConnectionFails:
			p.cleanup()
			p.state = Idle
		}
	case Established:
		switch ev {
		case EventUpdateMsg:
			p.resetHoldTimer()
		case EventKeepAliveMsg:
			p.resetHoldTimer()
		case EventHoldTimerExpires:
			p.sendNotification(packet.ErrHoldTimerExp, 0)
			p.cleanup()
			p.state = Idle
		case EventNotifMsg, EventTCPConnectionFails:
			p.cleanup()
			p.state = Idle
		case EventManualStop:
			p.sendNotification(packet.ErrCease, packet.SubErrCeaseAdminShutdown)
			p.cleanup()
			p.state = Idle
		}
	}
	if p.state != Established {
		metricSessionUp.WithLabelValues(p.cfg.PeerAddress.String()).Set(0)
	}
}

func (p *Peer) resetConnectRetryTimer() {
	if p.connectRetryTimer != nil {
		p.connectRetryTimer.Stop()
	}
	p.connectRetryTimer = time.AfterFunc(p.cfg.ConnectRetry, func() { p.eventCh <- EventConnectRetryTimerExpires })
}

func (p *Peer) resetHoldTimer() {
	if p.holdTimer != nil {
		p.holdTimer.Stop()
	}
	if p.holdTime == 0 {
		return
	}
	p.holdTimer = time.AfterFunc(p.holdTime, func() { p.eventCh <- EventHoldTimerExpires })
	if p.keepaliveTimer != nil {
		p.keepaliveTimer.Stop()
	}
	p.keepaliveTime = p.holdTime / 3
	p.keepaliveTimer = time.AfterFunc(p.keepaliveTime, p.sendKeepaliveLoop)
}

func (p *Peer) sendKeepaliveLoop() {
	if p.state == Established || p.state == OpenConfirm {
		p.sendKeepAlive()
		p.keepaliveTimer = time.AfterFunc(p.keepaliveTime, p.sendKeepaliveLoop)
	}
}

func (p *Peer) cleanup() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	for prefix := range p.adjRibIn {
		delete(p.adjRibIn, prefix)
	}
	p.instance.withdrawAllFromPeer(p)
}

// localCapabilities is the fixed capability set this instance advertises
// in every OPEN (spec.md §4.6: Multiprotocol, Route Refresh standard and
// pre-standard, Graceful Restart, 4-octet AS, Add-Path).
func (p *Peer) localCapabilities() []packet.Capability {
	return []packet.Capability{
		packet.FourOctetASCapability(p.cfg.LocalAS),
		packet.MultiprotocolCapability(packet.AFIIPv4, packet.SAFIUnicast),
		packet.MultiprotocolCapability(packet.AFIIPv6, packet.SAFIUnicast),
		// Restart State is never set: this instance keeps no forwarding
		// state across a session bounce, so it accepts a peer's Graceful
		// Restart capability (to avoid failing OPEN negotiation) but
		// never asserts the stateful behavior itself.
		{Code: packet.CapGracefulRestart, Value: []byte{0, 0}},
		packet.RouteRefreshCapability(),
		packet.RouteRefreshPreStandardCapability(),
		packet.AddPathCapability(packet.AFIIPv4, packet.SAFIUnicast, packet.AddPathSendReceive),
		packet.AddPathCapability(packet.AFIIPv6, packet.SAFIUnicast, packet.AddPathSendReceive),
	}
}

func (p *Peer) sendOpen() {
	open := &packet.Open{
		Version:       4,
		MyAS:          p.cfg.LocalAS,
		HoldTime:      uint16(p.cfg.HoldTime / time.Second),
		BGPIdentifier: p.cfg.LocalRouterID,
		Capabilities:  p.localCapabilities(),
	}
	p.send(&packet.Message{Header: &packet.Header{Type: packet.MsgTypeOpen}, Body: open})
}

// NegotiatedAFISAFI reports whether both this instance and the peer
// advertised Multiprotocol support for (afi, safi) — an AFI/SAFI is
// usable only if both sides advertise it (spec.md §4.6).
func (p *Peer) NegotiatedAFISAFI(afi uint16, safi uint8) bool {
	return packet.HasAFISAFI(p.localCapabilities(), afi, safi) && packet.HasAFISAFI(p.remoteCaps, afi, safi)
}

func (p *Peer) sendKeepAlive() {
	p.send(&packet.Message{Header: &packet.Header{Type: packet.MsgTypeKeepAlive}, Body: &packet.KeepAlive{}})
}

func (p *Peer) sendNotification(code, subcode uint8) {
	p.send(&packet.Message{Header: &packet.Header{Type: packet.MsgTypeNotification}, Body: &packet.Notification{ErrorCode: code, ErrorSubcode: subcode}})
}

func (p *Peer) send(m *packet.Message) {
	if p.conn == nil {
		return
	}
	if err := p.conn.Send(m); err != nil {
		p.eventCh <- EventTCPConnectionFails
	}
}

// receiveOpenCollision applies the teacher's fsm_manager.go collision
// rule: when both sides open a connection simultaneously, the side
// with the higher BGP Identifier wins and the loser tears down.
func (p *Peer) receiveOpenCollision(remoteID netip.Addr) bool {
	if p.state != Established {
		return true
	}
	return p.cfg.LocalRouterID.Compare(remoteID) > 0
}
