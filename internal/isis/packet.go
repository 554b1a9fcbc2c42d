package isis

import (
	"encoding/binary"
	"fmt"
)

// Fixed header fields shared by every PDU (ISO 10589 §7.1), named the way
// the teacher names its BGP wire constants in bgp/packet/bgp.go.
const (
	IntradomainRoutingProtocolDiscriminator uint8 = 0x83
	ProtocolVersion                         uint8 = 1
	IDLength                                uint8 = 6
	MaxAreaAddresses                        uint8 = 0 // 0 means "3, per the default"
)

// pduTypeCode is the on-wire PDU type octet (low 5 bits; top 3 reserved).
var pduTypeCode = map[PDUType]uint8{
	PDUIIHLAN:  15,
	PDUIIHL1:   15, // circuit type in the IIH body distinguishes L1/L2 LAN
	PDUIIHL2:   15,
	PDUIIHP2P:  17,
	PDULSPL1:   18,
	PDULSPL2:   20,
	PDUCSNPL1:  24,
	PDUCSNPL2:  25,
	PDUPSNPL1:  26,
	PDUPSNPL2:  27,
}

// TLVType enumerates the TLV codes this instance emits and parses
// (spec.md §6; unknown TLVs are preserved-and-skipped, not errors).
type TLVType uint8

const (
	TLVAreaAddresses          TLVType = 1
	TLVISNeighbors            TLVType = 6
	TLVPadding                TLVType = 8
	TLVLSPEntries             TLVType = 9
	TLVExtendedISReachability TLVType = 22
	TLVProtocolsSupported     TLVType = 129
	TLVIPInterfaceAddress     TLVType = 132
	TLVExtendedIPReachability TLVType = 135
	TLVDynamicHostname        TLVType = 137
	TLVIPv6InterfaceAddress   TLVType = 232
	TLVIPv6Reachability       TLVType = 236
)

// TLV is the generic type-length-value container; callers decode Value
// into a typed form (e.g. LSPEntry) once the TLV boundaries are known.
type TLV struct {
	Type  TLVType
	Value []byte
}

func (t *TLV) Encode() []byte {
	pkt := make([]byte, 2+len(t.Value))
	pkt[0] = uint8(t.Type)
	pkt[1] = uint8(len(t.Value))
	copy(pkt[2:], t.Value)
	return pkt
}

// decodeTLVs walks a TLV stream until it is exhausted. A truncated
// trailing TLV is an error (spec.md §7: malformed PDUs are logged and
// dropped, never partially applied).
func decodeTLVs(pkt []byte) ([]TLV, error) {
	var tlvs []TLV
	for len(pkt) > 0 {
		if len(pkt) < 2 {
			return nil, fmt.Errorf("isis: truncated tlv header")
		}
		l := int(pkt[1])
		if len(pkt) < 2+l {
			return nil, fmt.Errorf("isis: truncated tlv value, type=%d want=%d have=%d", pkt[0], l, len(pkt)-2)
		}
		v := make([]byte, l)
		copy(v, pkt[2:2+l])
		tlvs = append(tlvs, TLV{Type: TLVType(pkt[0]), Value: v})
		pkt = pkt[2+l:]
	}
	return tlvs, nil
}

func encodeTLVs(tlvs []TLV) []byte {
	var out []byte
	for i := range tlvs {
		out = append(out, tlvs[i].Encode()...)
	}
	return out
}

// encodeISNeighbors/decodeISNeighbors are the IS Neighbors TLV (type 6,
// ISO 10589 §8.4.2): a flat list of 6-byte SNPAs (MAC addresses) heard on
// a LAN circuit, carried in a broadcast hello so each neighbor can run
// the two-way check (spec.md §4.5: "seeing our own SNPA in the
// neighbor's IIH 'IS Neighbors' TLV").
func encodeISNeighbors(macs [][6]byte) []byte {
	out := make([]byte, 0, len(macs)*6)
	for _, m := range macs {
		out = append(out, m[:]...)
	}
	return out
}

func decodeISNeighbors(val []byte) [][6]byte {
	var out [][6]byte
	for len(val) >= 6 {
		var m [6]byte
		copy(m[:], val[:6])
		out = append(out, m)
		val = val[6:]
	}
	return out
}

// LSPEntry is one 16-byte record inside a TLVLSPEntries TLV: remaining
// lifetime(2) + lsp-id(8) + sequence number(4) + checksum(2) (spec.md
// §6); at most MaxLSPEntriesPerTLV fit in a single TLV's 255-byte value.
type LSPEntry struct {
	RemainingLifetime uint16
	LSPID             LSPID
	SequenceNumber    uint32
	Checksum          uint16
}

const lspEntrySize = 16

func encodeLSPEntry(e LSPEntry) []byte {
	pkt := make([]byte, lspEntrySize)
	binary.BigEndian.PutUint16(pkt[0:2], e.RemainingLifetime)
	copy(pkt[2:8], e.LSPID.SystemID[:])
	pkt[8] = e.LSPID.Pseudonode
	pkt[9] = e.LSPID.Fragment
	binary.BigEndian.PutUint32(pkt[10:14], e.SequenceNumber)
	binary.BigEndian.PutUint16(pkt[14:16], e.Checksum)
	return pkt
}

func decodeLSPEntry(pkt []byte) LSPEntry {
	var e LSPEntry
	e.RemainingLifetime = binary.BigEndian.Uint16(pkt[0:2])
	copy(e.LSPID.SystemID[:], pkt[2:8])
	e.LSPID.Pseudonode = pkt[8]
	e.LSPID.Fragment = pkt[9]
	e.SequenceNumber = binary.BigEndian.Uint32(pkt[10:14])
	e.Checksum = binary.BigEndian.Uint16(pkt[14:16])
	return e
}

// encodeLSPEntryTLVs packs entries into TLVLSPEntries TLVs, splitting at
// MaxLSPEntriesPerTLV (spec.md §4.5/§6's hard 15-entry-per-TLV rule).
func encodeLSPEntryTLVs(entries []LSPEntry) []TLV {
	var tlvs []TLV
	for i := 0; i < len(entries); i += MaxLSPEntriesPerTLV {
		end := i + MaxLSPEntriesPerTLV
		if end > len(entries) {
			end = len(entries)
		}
		var val []byte
		for _, e := range entries[i:end] {
			val = append(val, encodeLSPEntry(e)...)
		}
		tlvs = append(tlvs, TLV{Type: TLVLSPEntries, Value: val})
	}
	return tlvs
}

// decodeLSPEntryTLVs extracts LSPEntry records from every TLVLSPEntries
// TLV present, rejecting any whose value length isn't a whole number of
// entries or exceeds the per-TLV entry cap.
func decodeLSPEntryTLVs(tlvs []TLV) ([]LSPEntry, error) {
	var entries []LSPEntry
	for _, t := range tlvs {
		if t.Type != TLVLSPEntries {
			continue
		}
		if len(t.Value)%lspEntrySize != 0 {
			return nil, fmt.Errorf("isis: lsp entries tlv length %d not a multiple of %d", len(t.Value), lspEntrySize)
		}
		n := len(t.Value) / lspEntrySize
		if n > MaxLSPEntriesPerTLV {
			return nil, fmt.Errorf("isis: lsp entries tlv carries %d entries, max %d", n, MaxLSPEntriesPerTLV)
		}
		for i := 0; i < n; i++ {
			entries = append(entries, decodeLSPEntry(t.Value[i*lspEntrySize:(i+1)*lspEntrySize]))
		}
	}
	return entries, nil
}

// commonHeaderLen is the 8-byte fixed header common to every PDU (ISO
// 10589 §7.1): discriminator, length indicator, version/protocol-id
// extension, id length, pdu type, version, reserved, max area addresses.
const commonHeaderLen = 8

func encodeCommonHeader(pduType PDUType, lengthIndicator uint8) []byte {
	pkt := make([]byte, commonHeaderLen)
	pkt[0] = IntradomainRoutingProtocolDiscriminator
	pkt[1] = lengthIndicator
	pkt[2] = ProtocolVersion
	pkt[3] = IDLength
	pkt[4] = pduTypeCode[pduType]
	pkt[5] = ProtocolVersion
	pkt[6] = 0
	pkt[7] = MaxAreaAddresses
	return pkt
}

func decodeCommonHeader(pkt []byte) (uint8, error) {
	if len(pkt) < commonHeaderLen {
		return 0, fmt.Errorf("isis: pdu shorter than common header (%d bytes)", len(pkt))
	}
	if pkt[0] != IntradomainRoutingProtocolDiscriminator {
		return 0, fmt.Errorf("isis: bad protocol discriminator 0x%02x", pkt[0])
	}
	return pkt[4], nil
}

// IIH is the Hello PDU. LANID/Priority apply only on broadcast circuits;
// P2P hellos carry LocalCircuitID instead (spec.md §4.5).
type IIH struct {
	LinkType    LinkType
	SourceID    SystemID
	HoldingTime uint16
	Priority    uint8
	LANID       LSPID
	TLVs        []TLV
}

func (h *IIH) Encode(pduType PDUType) []byte {
	body := make([]byte, 0, 16)
	body = append(body, 0) // circuit type octet filled below
	body = append(body, h.SourceID[:]...)
	holding := make([]byte, 2)
	binary.BigEndian.PutUint16(holding, h.HoldingTime)
	body = append(body, holding...)
	pduLen := make([]byte, 2)
	body = append(body, pduLen...) // placeholder, patched after TLVs
	if pduType == PDUIIHP2P {
		body = append(body, 0) // local circuit id, filled by the circuit layer
	} else {
		body = append(body, h.Priority&0x7f)
		body = append(body, h.LANID.SystemID[:]...)
		body = append(body, h.LANID.Pseudonode)
	}
	tlvBytes := encodeTLVs(h.TLVs)
	body = append(body, tlvBytes...)

	hdr := encodeCommonHeader(pduType, commonHeaderLen)
	total := append(hdr, body...)
	binary.BigEndian.PutUint16(total[commonHeaderLen+9:commonHeaderLen+11], uint16(len(total)))
	return total
}

func decodeIIH(pduType PDUType, body []byte) (*IIH, error) {
	if len(body) < 5 {
		return nil, fmt.Errorf("isis: truncated iih fixed fields")
	}
	h := &IIH{}
	copy(h.SourceID[:], body[1:7])
	h.HoldingTime = binary.BigEndian.Uint16(body[7:9])
	off := 11 // skip circuit-type(1) + source-id(6) + holding-time(2) + pdu-length(2)
	if pduType == PDUIIHP2P {
		h.LinkType = LinkPointToPoint
		off += 1 // local circuit id
	} else {
		h.LinkType = LinkBroadcast
		if len(body) < off+8 {
			return nil, fmt.Errorf("isis: truncated lan iih fixed fields")
		}
		h.Priority = body[off] & 0x7f
		copy(h.LANID.SystemID[:], body[off+1:off+7])
		h.LANID.Pseudonode = body[off+7]
		off += 8
	}
	tlvs, err := decodeTLVs(body[off:])
	if err != nil {
		return nil, err
	}
	h.TLVs = tlvs
	return h, nil
}

// LSP is a Link State PDU: one per originating system (or pseudonode) per
// fragment, carrying reachability and metadata TLVs (spec.md §4.5/§6).
type LSP struct {
	RemainingLifetime uint16
	LSPID             LSPID
	SequenceNumber    uint32
	Checksum          uint16
	PartitionRepair   bool
	AttachedL1        bool
	Overload          bool
	CircuitType       CircuitType
	TLVs              []TLV
}

func (l *LSP) Encode(pduType PDUType) []byte {
	body := make([]byte, 19)
	binary.BigEndian.PutUint16(body[2:4], l.RemainingLifetime)
	copy(body[4:10], l.LSPID.SystemID[:])
	body[10] = l.LSPID.Pseudonode
	body[11] = l.LSPID.Fragment
	binary.BigEndian.PutUint32(body[12:16], l.SequenceNumber)
	binary.BigEndian.PutUint16(body[16:18], l.Checksum)
	body[18] = encodeLSPTypeBlock(l)

	tlvBytes := encodeTLVs(l.TLVs)
	body = append(body, tlvBytes...)

	hdr := encodeCommonHeader(pduType, commonHeaderLen)
	total := append(hdr, body...)
	binary.BigEndian.PutUint16(total[commonHeaderLen:commonHeaderLen+2], uint16(len(total)))
	return total
}

func encodeLSPTypeBlock(l *LSP) uint8 {
	var b uint8
	if l.PartitionRepair {
		b |= 1 << 7
	}
	if l.AttachedL1 {
		b |= 1 << 3
	}
	if l.Overload {
		b |= 1 << 2
	}
	switch l.CircuitType {
	case CircuitLevel1:
		b |= 1
	case CircuitLevel2:
		b |= 2
	case CircuitLevel12:
		b |= 3
	}
	return b
}

func decodeLSP(body []byte) (*LSP, error) {
	if len(body) < 19 {
		return nil, fmt.Errorf("isis: truncated lsp fixed fields")
	}
	l := &LSP{}
	l.RemainingLifetime = binary.BigEndian.Uint16(body[2:4])
	copy(l.LSPID.SystemID[:], body[4:10])
	l.LSPID.Pseudonode = body[10]
	l.LSPID.Fragment = body[11]
	l.SequenceNumber = binary.BigEndian.Uint32(body[12:16])
	l.Checksum = binary.BigEndian.Uint16(body[16:18])
	tb := body[18]
	l.PartitionRepair = tb&(1<<7) != 0
	l.AttachedL1 = tb&(1<<3) != 0
	l.Overload = tb&(1<<2) != 0
	switch tb & 0x3 {
	case 1:
		l.CircuitType = CircuitLevel1
	case 2:
		l.CircuitType = CircuitLevel2
	default:
		l.CircuitType = CircuitLevel12
	}
	tlvs, err := decodeTLVs(body[19:])
	if err != nil {
		return nil, err
	}
	l.TLVs = tlvs
	return l, nil
}

// SNP is the shared shape of CSNP and PSNP: CSNP additionally carries a
// start/end LSP-ID range describing the database window it summarizes
// (spec.md §4.5 "CSNP/PSNP database synchronization").
type SNP struct {
	SourceID SystemID
	Start    LSPID // CSNP only
	End      LSPID // CSNP only
	Entries  []LSPEntry
}

func (s *SNP) encode(pduType PDUType, isCSNP bool) []byte {
	body := make([]byte, 2, 2+6+16+32)
	body = append(body, s.SourceID[:]...)
	if isCSNP {
		body = append(body, s.Start.SystemID[:]...)
		body = append(body, s.Start.Pseudonode, s.Start.Fragment)
		body = append(body, s.End.SystemID[:]...)
		body = append(body, s.End.Pseudonode, s.End.Fragment)
	}
	body = append(body, encodeTLVs(encodeLSPEntryTLVs(s.Entries))...)

	hdr := encodeCommonHeader(pduType, commonHeaderLen)
	total := append(hdr, body...)
	binary.BigEndian.PutUint16(total[commonHeaderLen:commonHeaderLen+2], uint16(len(total)))
	return total
}

func (s *SNP) EncodeCSNP(level Level) []byte {
	if level == Level1 {
		return s.encode(PDUCSNPL1, true)
	}
	return s.encode(PDUCSNPL2, true)
}

func (s *SNP) EncodePSNP(level Level) []byte {
	if level == Level1 {
		return s.encode(PDUPSNPL1, false)
	}
	return s.encode(PDUPSNPL2, false)
}

func decodeSNP(body []byte, isCSNP bool) (*SNP, error) {
	if len(body) < 8 {
		return nil, fmt.Errorf("isis: truncated snp fixed fields")
	}
	s := &SNP{}
	copy(s.SourceID[:], body[2:8])
	off := 8
	if isCSNP {
		if len(body) < off+16 {
			return nil, fmt.Errorf("isis: truncated csnp range")
		}
		copy(s.Start.SystemID[:], body[off:off+6])
		s.Start.Pseudonode, s.Start.Fragment = body[off+6], body[off+7]
		off += 8
		copy(s.End.SystemID[:], body[off:off+6])
		s.End.Pseudonode, s.End.Fragment = body[off+6], body[off+7]
		off += 8
	}
	tlvs, err := decodeTLVs(body[off:])
	if err != nil {
		return nil, err
	}
	entries, err := decodeLSPEntryTLVs(tlvs)
	if err != nil {
		return nil, err
	}
	s.Entries = entries
	return s, nil
}

// DecodePDU dispatches on the wire PDU type octet (the byte at offset 4
// of the common header) to the matching typed decoder.
func DecodePDU(pkt []byte) (PDUType, any, error) {
	code, err := decodeCommonHeader(pkt)
	if err != nil {
		return 0, nil, err
	}
	body := pkt[commonHeaderLen:]
	switch code {
	case pduTypeCode[PDUIIHP2P]:
		v, err := decodeIIH(PDUIIHP2P, body)
		return PDUIIHP2P, v, err
	case pduTypeCode[PDUIIHLAN]:
		v, err := decodeIIH(PDUIIHLAN, body)
		return PDUIIHLAN, v, err
	case pduTypeCode[PDULSPL1]:
		v, err := decodeLSP(body)
		return PDULSPL1, v, err
	case pduTypeCode[PDULSPL2]:
		v, err := decodeLSP(body)
		return PDULSPL2, v, err
	case pduTypeCode[PDUCSNPL1]:
		v, err := decodeSNP(body, true)
		return PDUCSNPL1, v, err
	case pduTypeCode[PDUCSNPL2]:
		v, err := decodeSNP(body, true)
		return PDUCSNPL2, v, err
	case pduTypeCode[PDUPSNPL1]:
		v, err := decodeSNP(body, false)
		return PDUPSNPL1, v, err
	case pduTypeCode[PDUPSNPL2]:
		v, err := decodeSNP(body, false)
		return PDUPSNPL2, v, err
	default:
		return 0, nil, fmt.Errorf("isis: unknown pdu type code %d", code)
	}
}
