package packet

import (
	"encoding/binary"
	"net/netip"
)

type AttrFlag uint8

const (
	_                 AttrFlag = 1 << (iota + 3)
	AttrFlagExtendedLen
	AttrFlagPartial
	AttrFlagTransitive
	AttrFlagOptional
)

type AttrType uint8

const (
	_ AttrType = iota
	AttrOrigin
	AttrASPath
	AttrNextHop
	AttrMultiExitDisc
	AttrLocalPref
	AttrAtomicAggregate
	AttrAggregator
	AttrCommunity       AttrType = 8
	AttrMPReachNLRI     AttrType = 14
	AttrMPUnreachNLRI   AttrType = 15
	AttrAS4Path         AttrType = 17
	AttrAS4Aggregator   AttrType = 18
)

type OriginType uint8

const (
	OriginIGP OriginType = iota
	OriginEGP
	OriginIncomplete
)

// ASSegmentType distinguishes AS_SET from AS_SEQUENCE (RFC 4271 §4.3).
type ASSegmentType uint8

const (
	ASSet ASSegmentType = iota + 1
	ASSequence
)

// ASSegment is one AS_PATH segment using 4-byte AS numbers throughout
// (RFC 6793), unlike the teacher's 2-byte-only AS_PATH codec.
type ASSegment struct {
	Type ASSegmentType
	AS   []uint32
}

// Attr is a decoded path attribute: Code identifies which of the typed
// Value fields below is populated; Raw preserves unknown attributes
// byte-for-byte so they pass through transit sessions untouched.
type Attr struct {
	Flags AttrFlag
	Code  AttrType

	Origin       OriginType
	ASPath       []ASSegment
	NextHop      netip.Addr
	MED          uint32
	LocalPref    uint32
	AggregatorAS uint32
	AggregatorID netip.Addr
	Communities  []uint32
	MPReach      *MPReach
	MPUnreach    *MPUnreach
	Raw          []byte
}

// MPReach/MPUnreach carry RFC 4760 multiprotocol NLRI — the only way an
// IPv6 UPDATE travels, since the fixed-format NLRI field at the end of
// an UPDATE message is IPv4-only.
type MPReach struct {
	AFI     uint16
	SAFI    uint8
	NextHop netip.Addr
	NLRI    []netip.Prefix
}

type MPUnreach struct {
	AFI  uint16
	SAFI uint8
	NLRI []netip.Prefix
}

func defaultFlags(code AttrType) AttrFlag {
	switch code {
	case AttrOrigin, AttrASPath, AttrNextHop, AttrAS4Path:
		return AttrFlagTransitive
	case AttrMultiExitDisc:
		return AttrFlagOptional
	case AttrLocalPref, AttrAtomicAggregate:
		return AttrFlagTransitive
	case AttrAggregator, AttrAS4Aggregator, AttrCommunity:
		return AttrFlagOptional | AttrFlagTransitive
	case AttrMPReachNLRI, AttrMPUnreachNLRI:
		return AttrFlagOptional
	default:
		return AttrFlagOptional | AttrFlagTransitive
	}
}

func NewOrigin(v OriginType) Attr     { return Attr{Flags: defaultFlags(AttrOrigin), Code: AttrOrigin, Origin: v} }
func NewNextHop(addr netip.Addr) Attr { return Attr{Flags: defaultFlags(AttrNextHop), Code: AttrNextHop, NextHop: addr} }
func NewLocalPref(v uint32) Attr      { return Attr{Flags: defaultFlags(AttrLocalPref), Code: AttrLocalPref, LocalPref: v} }
func NewMED(v uint32) Attr            { return Attr{Flags: defaultFlags(AttrMultiExitDisc), Code: AttrMultiExitDisc, MED: v} }
func NewASPath(segs []ASSegment) Attr { return Attr{Flags: defaultFlags(AttrASPath), Code: AttrASPath, ASPath: segs} }

// encodeValue writes just the attribute's value bytes (not the
// flags/code/length header); callers wrap it via encodeAttr.
func (a Attr) encodeValue() []byte {
	switch a.Code {
	case AttrOrigin:
		return []byte{uint8(a.Origin)}
	case AttrASPath:
		var out []byte
		for _, seg := range a.ASPath {
			segHdr := []byte{uint8(seg.Type), uint8(len(seg.AS))}
			out = append(out, segHdr...)
			for _, as := range seg.AS {
				b := make([]byte, 4)
				binary.BigEndian.PutUint32(b, as)
				out = append(out, b...)
			}
		}
		return out
	case AttrNextHop:
		a4 := a.NextHop.As4()
		return a4[:]
	case AttrMultiExitDisc:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, a.MED)
		return b
	case AttrLocalPref:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, a.LocalPref)
		return b
	case AttrAtomicAggregate:
		return nil
	case AttrAggregator:
		b := make([]byte, 8)
		binary.BigEndian.PutUint32(b[0:4], a.AggregatorAS)
		id4 := a.AggregatorID.As4()
		copy(b[4:8], id4[:])
		return b
	case AttrCommunity:
		out := make([]byte, 0, len(a.Communities)*4)
		for _, c := range a.Communities {
			b := make([]byte, 4)
			binary.BigEndian.PutUint32(b, c)
			out = append(out, b...)
		}
		return out
	case AttrMPReachNLRI:
		return encodeMPReach(a.MPReach)
	case AttrMPUnreachNLRI:
		return encodeMPUnreach(a.MPUnreach)
	default:
		return a.Raw
	}
}

func encodeMPReach(mp *MPReach) []byte {
	var out []byte
	afi := make([]byte, 2)
	binary.BigEndian.PutUint16(afi, mp.AFI)
	out = append(out, afi...)
	out = append(out, mp.SAFI)
	nh := mp.NextHop.AsSlice()
	out = append(out, uint8(len(nh)))
	out = append(out, nh...)
	out = append(out, 0) // SNPA count, always 0
	for _, p := range mp.NLRI {
		out = append(out, Prefix{Prefix: p}.Encode()...)
	}
	return out
}

func encodeMPUnreach(mp *MPUnreach) []byte {
	var out []byte
	afi := make([]byte, 2)
	binary.BigEndian.PutUint16(afi, mp.AFI)
	out = append(out, afi...)
	out = append(out, mp.SAFI)
	for _, p := range mp.NLRI {
		out = append(out, Prefix{Prefix: p}.Encode()...)
	}
	return out
}

func (a Attr) Encode() []byte {
	val := a.encodeValue()
	flags := a.Flags
	var lenBytes []byte
	if len(val) > 255 {
		flags |= AttrFlagExtendedLen
		lenBytes = make([]byte, 2)
		binary.BigEndian.PutUint16(lenBytes, uint16(len(val)))
	} else {
		lenBytes = []byte{uint8(len(val))}
	}
	out := append([]byte{uint8(flags), uint8(a.Code)}, lenBytes...)
	return append(out, val...)
}

// decodeAttr decodes one attribute starting at pkt[0], returning the
// attribute and the number of bytes consumed.
func decodeAttr(pkt []byte) (Attr, int, error) {
	if len(pkt) < 3 {
		return Attr{}, 0, MessageError{ErrUpdate, SubErrMalformedAttrList, nil, "truncated attribute"}
	}
	flags := AttrFlag(pkt[0])
	code := AttrType(pkt[1])
	var length int
	var hdrLen int
	if flags&AttrFlagExtendedLen != 0 {
		if len(pkt) < 4 {
			return Attr{}, 0, MessageError{ErrUpdate, SubErrMalformedAttrList, nil, "truncated extended-length attribute"}
		}
		length = int(binary.BigEndian.Uint16(pkt[2:4]))
		hdrLen = 4
	} else {
		length = int(pkt[2])
		hdrLen = 3
	}
	if len(pkt) < hdrLen+length {
		return Attr{}, 0, MessageError{ErrUpdate, SubErrAttrLen, nil, "attribute value shorter than declared length"}
	}
	val := pkt[hdrLen : hdrLen+length]
	a := Attr{Flags: flags, Code: code}
	var err error
	switch code {
	case AttrOrigin:
		if len(val) != 1 {
			return a, 0, MessageError{ErrUpdate, SubErrAttrLen, nil, "bad ORIGIN length"}
		}
		a.Origin = OriginType(val[0])
		if a.Origin > OriginIncomplete {
			return a, 0, MessageError{ErrUpdate, SubErrInvalidOrigin, nil, "undefined ORIGIN value"}
		}
	case AttrASPath:
		a.ASPath, err = decodeASPath(val)
	case AttrNextHop:
		if len(val) != 4 {
			return a, 0, MessageError{ErrUpdate, SubErrInvalidNextHop, nil, "bad NEXT_HOP length"}
		}
		var b4 [4]byte
		copy(b4[:], val)
		a.NextHop = netip.AddrFrom4(b4)
	case AttrMultiExitDisc:
		a.MED = binary.BigEndian.Uint32(val)
	case AttrLocalPref:
		a.LocalPref = binary.BigEndian.Uint32(val)
	case AttrAggregator, AttrAS4Aggregator:
		if len(val) >= 8 {
			a.AggregatorAS = binary.BigEndian.Uint32(val[0:4])
			var b4 [4]byte
			copy(b4[:], val[4:8])
			a.AggregatorID = netip.AddrFrom4(b4)
		}
	case AttrCommunity:
		for i := 0; i+4 <= len(val); i += 4 {
			a.Communities = append(a.Communities, binary.BigEndian.Uint32(val[i:i+4]))
		}
	case AttrMPReachNLRI:
		a.MPReach, err = decodeMPReach(val)
	case AttrMPUnreachNLRI:
		a.MPUnreach, err = decodeMPUnreach(val)
	case AttrAtomicAggregate:
		// Well-known discretionary, zero-length: presence is the signal.
	default:
		a.Raw = val
		if flags&AttrFlagOptional == 0 {
			// A well-known attribute this instance doesn't recognize
			// can't be a legitimate optional/transitive pass-through —
			// RFC 4271 §5 requires a NOTIFICATION, not silent storage.
			return a, 0, MessageError{ErrUpdate, SubErrUnrecognizedWellKnown, val, "unrecognized well-known attribute"}
		}
	}
	if err != nil {
		return a, 0, err
	}
	return a, hdrLen + length, nil
}

func decodeASPath(val []byte) ([]ASSegment, error) {
	var segs []ASSegment
	for len(val) >= 2 {
		segType := ASSegmentType(val[0])
		count := int(val[1])
		if len(val) < 2+count*4 {
			return nil, MessageError{ErrUpdate, SubErrMalformedASPath, nil, "truncated AS_PATH segment"}
		}
		seg := ASSegment{Type: segType}
		for i := 0; i < count; i++ {
			off := 2 + i*4
			seg.AS = append(seg.AS, binary.BigEndian.Uint32(val[off:off+4]))
		}
		segs = append(segs, seg)
		val = val[2+count*4:]
	}
	return segs, nil
}

func decodeMPReach(val []byte) (*MPReach, error) {
	if len(val) < 5 {
		return nil, MessageError{ErrUpdate, SubErrMalformedAttrList, nil, "truncated MP_REACH_NLRI"}
	}
	mp := &MPReach{AFI: binary.BigEndian.Uint16(val[0:2]), SAFI: val[2]}
	nhLen := int(val[3])
	if len(val) < 4+nhLen+1 {
		return nil, MessageError{ErrUpdate, SubErrMalformedAttrList, nil, "truncated MP_REACH_NLRI nexthop"}
	}
	v6 := mp.AFI == AFIIPv6
	if v6 && nhLen >= 16 {
		var a16 [16]byte
		copy(a16[:], val[4:20])
		mp.NextHop = netip.AddrFrom16(a16)
	} else if nhLen >= 4 {
		var a4 [4]byte
		copy(a4[:], val[4:8])
		mp.NextHop = netip.AddrFrom4(a4)
	}
	rest := val[4+nhLen:]
	if len(rest) < 1 {
		return nil, MessageError{ErrUpdate, SubErrMalformedAttrList, nil, "truncated MP_REACH_NLRI snpa"}
	}
	rest = rest[1:] // SNPA count, always 0 on the wire here
	for len(rest) > 0 {
		p, n, err := decodePrefix(rest, v6)
		if err != nil {
			return nil, err
		}
		mp.NLRI = append(mp.NLRI, p.Prefix)
		rest = rest[n:]
	}
	return mp, nil
}

func decodeMPUnreach(val []byte) (*MPUnreach, error) {
	if len(val) < 3 {
		return nil, MessageError{ErrUpdate, SubErrMalformedAttrList, nil, "truncated MP_UNREACH_NLRI"}
	}
	mp := &MPUnreach{AFI: binary.BigEndian.Uint16(val[0:2]), SAFI: val[2]}
	v6 := mp.AFI == AFIIPv6
	rest := val[3:]
	for len(rest) > 0 {
		p, n, err := decodePrefix(rest, v6)
		if err != nil {
			return nil, err
		}
		mp.NLRI = append(mp.NLRI, p.Prefix)
		rest = rest[n:]
	}
	return mp, nil
}
