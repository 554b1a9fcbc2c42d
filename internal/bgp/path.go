package bgp

import (
	"net/netip"

	"github.com/openrouted/routingd/internal/bgp/packet"
)

// Path is one route as received from or destined to a peer, grounded
// on teacher's path.go but holding decoded attribute fields directly
// rather than the teacher's raw-PathAttributes-plus-lazy-getter shape,
// since this package's Attr type is already fully decoded up front.
type Path struct {
	PeerAddress netip.Addr
	PeerAS      uint32
	LocalAS     uint32

	// RouterID is the advertiser's BGP Identifier from its OPEN message,
	// distinct from PeerAddress: RFC 4271 §9.1.2.2 rule 8 ("lower
	// BGP Identifier of the peer") breaks ties on this, with PeerAddress
	// reserved for rule 9's final tie-break on the session address.
	RouterID netip.Addr

	// LocalOriginated marks a path injected by AdvertiseNetwork rather
	// than learned from a peer — RFC 4271 §9.1.2.2 rule 2 prefers these
	// over a peer-learned path once LOCAL_PREF (rule 1) is tied.
	LocalOriginated bool

	Origin     packet.OriginType
	ASPath     []packet.ASSegment
	NextHop    netip.Addr
	MED        uint32
	LocalPref  uint32
	Aggregator *uint32

	// Unrecognized holds optional-transitive attributes this instance
	// doesn't decode into a typed field, kept byte-for-byte so a transit
	// session passes them on with the Partial bit set (RFC 4271 §5) —
	// unrecognized well-known attributes never reach here, since
	// decodeAttr turns those into a NOTIFICATION instead.
	Unrecognized []packet.Attr

	Withdrawn bool
}

// NewPath decodes attrs into a Path, taken from an UPDATE received on
// peer (spec.md §4.6 "path attribute parsing").
func NewPath(peer *Peer, attrs []packet.Attr) *Path {
	p := &Path{PeerAddress: peer.cfg.PeerAddress, PeerAS: peer.cfg.PeerAS, LocalAS: peer.cfg.LocalAS, RouterID: peer.remoteRouterID, LocalPref: 100}
	for _, a := range attrs {
		switch a.Code {
		case packet.AttrOrigin:
			p.Origin = a.Origin
		case packet.AttrASPath:
			p.ASPath = a.ASPath
		case packet.AttrNextHop:
			p.NextHop = a.NextHop
		case packet.AttrMultiExitDisc:
			p.MED = a.MED
		case packet.AttrLocalPref:
			p.LocalPref = a.LocalPref
		case packet.AttrAggregator:
			as := a.AggregatorAS
			p.Aggregator = &as
		case packet.AttrAtomicAggregate:
			// Well-known transitive, no value: not an unrecognized attr.
		default:
			if a.Flags&packet.AttrFlagOptional != 0 && a.Flags&packet.AttrFlagTransitive != 0 {
				p.Unrecognized = append(p.Unrecognized, a)
			}
		}
	}
	return p
}

// NumASes counts the AS hops in ASPath (AS_SET counts as one hop per
// RFC 4271 §9.1.2.2, matching teacher's Path.GetNumASes).
func (p *Path) NumASes() int {
	n := 0
	for _, seg := range p.ASPath {
		if seg.Type == packet.ASSet {
			n++
		} else {
			n += len(seg.AS)
		}
	}
	return n
}

func (p *Path) IsIBGP() bool { return p.PeerAS == p.LocalAS }

// Encode rebuilds the outbound attribute set for this path (teacher's
// Path.UpdatePathAttrs idiom). Next-hop-self is applied whenever the
// receiving peer's AS differs from the AS the path was learned from;
// toward a peer in that same AS the original NEXT_HOP is kept.
func (p *Path) Encode(toPeer *Peer) []packet.Attr {
	attrs := []packet.Attr{
		packet.NewOrigin(p.Origin),
	}
	asPath := p.ASPath
	if !toPeer.cfg.RouteReflector || p.PeerAS != toPeer.cfg.PeerAS {
		asPath = prependAS(asPath, p.LocalAS, toPeer.cfg.PeerAS)
	}
	attrs = append(attrs, packet.NewASPath(asPath))
	nh := p.NextHop
	if toPeer.cfg.PeerAS != p.PeerAS {
		nh = toPeer.cfg.LocalRouterID
	}
	attrs = append(attrs, packet.NewNextHop(nh))
	if toPeer.IsIBGPPeer(p.LocalAS) {
		attrs = append(attrs, packet.NewLocalPref(p.LocalPref))
	}
	if p.MED != 0 {
		attrs = append(attrs, packet.NewMED(p.MED))
	}
	for _, u := range p.Unrecognized {
		a := u
		a.Flags |= packet.AttrFlagPartial
		attrs = append(attrs, a)
	}
	return attrs
}

func (peer *Peer) IsIBGPPeer(localAS uint32) bool { return peer.cfg.PeerAS == localAS }

// prependAS adds the local AS to the front of the path when
// readvertising to an external peer (teacher's packet.go
// PrependASToPath, generalized to 4-byte ASes).
func prependAS(path []packet.ASSegment, localAS, toAS uint32) []packet.ASSegment {
	if localAS == toAS {
		return path
	}
	seg := packet.ASSegment{Type: packet.ASSequence, AS: []uint32{localAS}}
	if len(path) > 0 && path[0].Type == packet.ASSequence {
		merged := append([]uint32{localAS}, path[0].AS...)
		out := append([]packet.ASSegment{{Type: packet.ASSequence, AS: merged}}, path[1:]...)
		return out
	}
	return append([]packet.ASSegment{seg}, path...)
}
