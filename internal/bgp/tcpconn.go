package bgp

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"time"

	"github.com/openrouted/routingd/internal/bgp/packet"
)

// TCPConn is the production Conn: a real net.Conn framed with the
// fixed 19-byte BGP header the way the teacher's PeerConn.ReadPkt reads
// a header first and then the declared remainder, rather than a
// buffered decoder — BGP sessions are low-rate enough that two reads
// per message cost nothing.
type TCPConn struct {
	conn net.Conn
}

func NewTCPConn(conn net.Conn) *TCPConn {
	return &TCPConn{conn: conn}
}

// dialTimeout bounds the active-open attempt made for each configured
// peer before the caller falls back to the connect-retry timer.
const dialTimeout = 10 * time.Second

// bgpPort is the well-known BGP port (RFC 4271 §8 Connect state).
const bgpPort = 179

// DialPeer opens an active outbound connection to peerAddr on the
// well-known BGP port, used by cmd/routingd for peers it initiates
// toward rather than waits to accept.
func DialPeer(peerAddr netip.Addr) (*TCPConn, error) {
	conn, err := net.DialTimeout("tcp", netip.AddrPortFrom(peerAddr, bgpPort).String(), dialTimeout)
	if err != nil {
		return nil, err
	}
	return NewTCPConn(conn), nil
}

func (c *TCPConn) Send(m *packet.Message) error {
	buf, err := m.Encode()
	if err != nil {
		return err
	}
	_, err = c.conn.Write(buf)
	return err
}

func (c *TCPConn) Recv() (*packet.Message, error) {
	hdr := make([]byte, packet.HeaderLen)
	if _, err := io.ReadFull(c.conn, hdr); err != nil {
		return nil, err
	}
	h, err := packet.DecodeHeader(hdr)
	if err != nil {
		return nil, err
	}
	rest := make([]byte, int(h.Length)-packet.HeaderLen)
	if len(rest) > 0 {
		if _, err := io.ReadFull(c.conn, rest); err != nil {
			return nil, err
		}
	}
	return packet.DecodeMessage(append(hdr, rest...))
}

func (c *TCPConn) Close() error {
	return c.conn.Close()
}

// RemoteAddr reports the connection's remote endpoint, used to match an
// inbound accept to a configured Peer.
func (c *TCPConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Listener accepts inbound BGP sessions and hands each accepted
// connection to the matching configured Peer, the passive-side
// counterpart to DialPeer — grounded on the teacher's fsm_manager.go accept
// loop, simplified to one FSM-per-neighbor instead of the teacher's
// pending-collision-resolution pair.
type Listener struct {
	ln   net.Listener
	inst *Instance
}

// ListenAndServe opens addr and, for every accepted connection whose
// remote IP matches a configured peer, attaches it via Peer.SetConn.
// Connections from unconfigured addresses are closed immediately.
func ListenAndServe(addr string, inst *Instance) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bgp: listen %s: %w", addr, err)
	}
	l := &Listener{ln: ln, inst: inst}
	go l.acceptLoop()
	return l, nil
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		l.handleAccept(conn)
	}
}

func (l *Listener) handleAccept(conn net.Conn) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		conn.Close()
		return
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		conn.Close()
		return
	}
	peer, ok := l.inst.Peer(addr)
	if !ok {
		conn.Close()
		return
	}
	peer.SetConn(NewTCPConn(conn))
}

func (l *Listener) Close() error {
	return l.ln.Close()
}

// ActiveOpenLoop attempts an active open toward peer's configured address
// every cfg.ConnectRetry until ctx is cancelled — the Connect-state
// active-open side RFC 4271 leaves to the implementation and which the
// FSM itself never performs (transition only reacts to
// EventTCPConnectionConfirmed/Fails). A successful dial is handed to the
// FSM via SetConn; on each tick the loop dials only while the peer is
// Idle, Connect or Active, so it resumes dialing by itself if the
// session later drops back to Idle.
func (p *Peer) ActiveOpenLoop(ctx context.Context) {
	retry := p.cfg.ConnectRetry
	if retry <= 0 {
		retry = dialTimeout
	}
	ticker := time.NewTicker(retry)
	defer ticker.Stop()
	for {
		if p.State() == Idle || p.State() == Connect || p.State() == Active {
			if conn, err := DialPeer(p.cfg.PeerAddress); err == nil {
				p.SetConn(conn)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
