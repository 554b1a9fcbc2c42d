// Package packet is the hand-rolled BGP-4 wire codec: message header,
// OPEN/UPDATE/NOTIFICATION/KEEPALIVE bodies, and the path attribute set,
// generalized from the teacher's bgp/packet/bgp.go to net/netip and
// 4-byte AS numbers (RFC 6793) throughout instead of the teacher's
// 2-byte-only AS_PATH.
package packet

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

const (
	HeaderMarkerLen = 16
	HeaderLen       = 19
	MaxMessageLen   = 4096
)

type MessageType uint8

const (
	_ MessageType = iota
	MsgTypeOpen
	MsgTypeUpdate
	MsgTypeNotification
	MsgTypeKeepAlive
)

// Notification error codes/subcodes (RFC 4271 §4.5, §6).
const (
	ErrHeader         uint8 = 1
	ErrOpen           uint8 = 2
	ErrUpdate         uint8 = 3
	ErrHoldTimerExp   uint8 = 4
	ErrFSM            uint8 = 5
	ErrCease          uint8 = 6
)

const (
	SubErrConnNotSynced  uint8 = 1
	SubErrBadMessageLen  uint8 = 2
	SubErrBadMessageType uint8 = 3
)

const (
	SubErrUnsupportedVersion     uint8 = 1
	SubErrBadPeerAS              uint8 = 2
	SubErrBadBGPIdentifier       uint8 = 3
	SubErrUnsupportedOptParam    uint8 = 4
	SubErrUnacceptableHoldTime   uint8 = 6
	SubErrUnsupportedCapability  uint8 = 7 // RFC 5492
)

const (
	SubErrMalformedAttrList      uint8 = 1
	SubErrUnrecognizedWellKnown  uint8 = 2
	SubErrMissingWellKnown       uint8 = 3
	SubErrAttrFlags              uint8 = 4
	SubErrAttrLen                uint8 = 5
	SubErrInvalidOrigin          uint8 = 6
	SubErrInvalidNextHop         uint8 = 8
	SubErrOptionalAttr           uint8 = 9
	SubErrInvalidNetworkField    uint8 = 10
	SubErrMalformedASPath        uint8 = 11
)

const (
	SubErrCeaseConnRejected   uint8 = 5
	SubErrCeaseAdminShutdown  uint8 = 2
	SubErrCeaseAdminReset     uint8 = 4
)

// MessageError is both the decode-failure return type and, via its
// fields, the direct source of a NOTIFICATION to send back.
type MessageError struct {
	Code    uint8
	Subcode uint8
	Data    []byte
	Message string
}

func (e MessageError) Error() string {
	return fmt.Sprintf("bgp: %d/%d: %s", e.Code, e.Subcode, e.Message)
}

type Header struct {
	Length uint16
	Type   MessageType
}

func (h *Header) Encode() []byte {
	pkt := make([]byte, HeaderLen)
	for i := 0; i < HeaderMarkerLen; i++ {
		pkt[i] = 0xff
	}
	binary.BigEndian.PutUint16(pkt[16:18], h.Length)
	pkt[18] = uint8(h.Type)
	return pkt
}

func DecodeHeader(pkt []byte) (*Header, error) {
	if len(pkt) < HeaderLen {
		return nil, MessageError{ErrHeader, SubErrBadMessageLen, nil, "truncated header"}
	}
	h := &Header{Length: binary.BigEndian.Uint16(pkt[16:18]), Type: MessageType(pkt[18])}
	if h.Length < HeaderLen || h.Length > MaxMessageLen {
		return nil, MessageError{ErrHeader, SubErrBadMessageLen, nil, "bad message length"}
	}
	return h, nil
}

// Capability codes (RFC 5492 / 2842 / 4760 / 6793 / draft-ietf-idr-add-paths)
// this instance negotiates. CapRouteRefreshPreStandard is the
// pre-RFC-5492 Cisco code some peers still only advertise; both are sent
// and either is accepted (spec.md §4.6 "Route Refresh (standard and
// pre-standard code 128)").
const (
	CapMultiprotocol           uint8 = 1
	CapRouteRefresh            uint8 = 2
	CapGracefulRestart         uint8 = 64
	CapFourOctetAS             uint8 = 65
	CapAddPath                 uint8 = 69
	CapRouteRefreshPreStandard uint8 = 128
)

type Capability struct {
	Code  uint8
	Value []byte
}

// AFI/SAFI this instance supports (RFC 4760).
const (
	AFIIPv4 uint16 = 1
	AFIIPv6 uint16 = 2
	SAFIUnicast uint8 = 1
)

// Open is the OPEN message body. MyAS carries the 2-byte value (23456 =
// AS_TRANS when the real AS needs the four-octet capability); the real
// AS always rides the CapFourOctetAS capability so peers never lose
// precision, per RFC 6793 §4.
type Open struct {
	Version      uint8
	MyAS         uint32
	HoldTime     uint16
	BGPIdentifier netip.Addr
	Capabilities []Capability
}

const asTrans uint16 = 23456

func (o *Open) Encode() ([]byte, error) {
	caps := encodeCapabilities(o.Capabilities)
	optParams := caps
	pkt := make([]byte, 10+len(optParams))
	pkt[0] = o.Version
	as2 := uint16(o.MyAS)
	if o.MyAS > 0xffff {
		as2 = asTrans
	}
	binary.BigEndian.PutUint16(pkt[1:3], as2)
	binary.BigEndian.PutUint16(pkt[3:5], o.HoldTime)
	id4 := o.BGPIdentifier.As4()
	copy(pkt[5:9], id4[:])
	pkt[9] = uint8(len(optParams))
	copy(pkt[10:], optParams)
	return pkt, nil
}

func encodeCapabilities(caps []Capability) []byte {
	if len(caps) == 0 {
		return nil
	}
	var capBytes []byte
	for _, c := range caps {
		capBytes = append(capBytes, c.Code, uint8(len(c.Value)))
		capBytes = append(capBytes, c.Value...)
	}
	// Optional parameter type 2 ("Capabilities"), wrapping the list.
	out := []byte{2, uint8(len(capBytes))}
	return append(out, capBytes...)
}

func DecodeOpen(pkt []byte) (*Open, error) {
	if len(pkt) < 10 {
		return nil, MessageError{ErrOpen, SubErrUnsupportedVersion, nil, "truncated OPEN"}
	}
	o := &Open{}
	o.Version = pkt[0]
	as2 := binary.BigEndian.Uint16(pkt[1:3])
	o.MyAS = uint32(as2)
	o.HoldTime = binary.BigEndian.Uint16(pkt[3:5])
	var id4 [4]byte
	copy(id4[:], pkt[5:9])
	o.BGPIdentifier = netip.AddrFrom4(id4)
	optLen := int(pkt[9])
	if len(pkt) < 10+optLen {
		return nil, MessageError{ErrOpen, SubErrUnsupportedOptParam, nil, "truncated optional parameters"}
	}
	opts := pkt[10 : 10+optLen]
	for len(opts) >= 2 {
		ptype, plen := opts[0], int(opts[1])
		if len(opts) < 2+plen {
			break
		}
		if ptype == 2 {
			o.Capabilities = append(o.Capabilities, decodeCapabilities(opts[2:2+plen])...)
		}
		opts = opts[2+plen:]
	}
	for _, c := range o.Capabilities {
		if c.Code == CapFourOctetAS && len(c.Value) == 4 {
			o.MyAS = binary.BigEndian.Uint32(c.Value)
		}
	}
	return o, nil
}

func decodeCapabilities(pkt []byte) []Capability {
	var out []Capability
	for len(pkt) >= 2 {
		code, l := pkt[0], int(pkt[1])
		if len(pkt) < 2+l {
			break
		}
		out = append(out, Capability{Code: code, Value: pkt[2 : 2+l]})
		pkt = pkt[2+l:]
	}
	return out
}

func FourOctetASCapability(as uint32) Capability {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, as)
	return Capability{Code: CapFourOctetAS, Value: v}
}

func MultiprotocolCapability(afi uint16, safi uint8) Capability {
	return Capability{Code: CapMultiprotocol, Value: []byte{byte(afi >> 8), byte(afi), 0, safi}}
}

// AddPathSendReceive values for the per-AFI/SAFI octet of the Add-Path
// capability (draft-ietf-idr-add-paths §4).
const (
	AddPathReceive    uint8 = 1
	AddPathSend       uint8 = 2
	AddPathSendReceive uint8 = 3
)

func AddPathCapability(afi uint16, safi uint8, sendReceive uint8) Capability {
	return Capability{Code: CapAddPath, Value: []byte{byte(afi >> 8), byte(afi), safi, sendReceive}}
}

// RouteRefreshCapability advertises the standard (RFC 2918) code; the
// pre-standard code 128 some older peers expect is carried as a second,
// empty-valued capability by RouteRefreshPreStandardCapability.
func RouteRefreshCapability() Capability {
	return Capability{Code: CapRouteRefresh}
}

func RouteRefreshPreStandardCapability() Capability {
	return Capability{Code: CapRouteRefreshPreStandard}
}

// HasCapability reports whether caps advertises code.
func HasCapability(caps []Capability, code uint8) bool {
	for _, c := range caps {
		if c.Code == code {
			return true
		}
	}
	return false
}

// HasAFISAFI reports whether caps advertises Multiprotocol support for
// (afi, safi) — RFC 4760 capability negotiation.
func HasAFISAFI(caps []Capability, afi uint16, safi uint8) bool {
	for _, c := range caps {
		if c.Code != CapMultiprotocol || len(c.Value) != 4 {
			continue
		}
		if binary.BigEndian.Uint16(c.Value[0:2]) == afi && c.Value[3] == safi {
			return true
		}
	}
	return false
}

// Prefix is the IPv4 NLRI wire format: a length byte (bits) followed by
// ceil(bits/8) address bytes.
type Prefix struct {
	Prefix netip.Prefix
}

func (p Prefix) Encode() []byte {
	bits := p.Prefix.Bits()
	nbytes := (bits + 7) / 8
	addr := p.Prefix.Addr().AsSlice()
	out := make([]byte, 1+nbytes)
	out[0] = uint8(bits)
	copy(out[1:], addr[:nbytes])
	return out
}

func (p Prefix) Len() int { return 1 + (p.Prefix.Bits()+7)/8 }

func decodePrefix(pkt []byte, v6 bool) (Prefix, int, error) {
	if len(pkt) < 1 {
		return Prefix{}, 0, MessageError{ErrUpdate, SubErrMalformedAttrList, nil, "truncated nlri"}
	}
	bits := int(pkt[0])
	nbytes := (bits + 7) / 8
	if len(pkt) < 1+nbytes {
		return Prefix{}, 0, MessageError{ErrUpdate, SubErrMalformedAttrList, nil, "truncated nlri"}
	}
	addrLen := 4
	if v6 {
		addrLen = 16
	}
	buf := make([]byte, addrLen)
	copy(buf, pkt[1:1+nbytes])
	var addr netip.Addr
	if v6 {
		var a [16]byte
		copy(a[:], buf)
		addr = netip.AddrFrom16(a)
	} else {
		var a [4]byte
		copy(a[:], buf)
		addr = netip.AddrFrom4(a)
	}
	return Prefix{Prefix: netip.PrefixFrom(addr, bits)}, 1 + nbytes, nil
}
