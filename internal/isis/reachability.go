package isis

import (
	"encoding/binary"
	"net/netip"
)

// Extended IS reachability (TLV 22, RFC 5305): each entry is a 7-byte
// neighbor id (6-byte system id + 1-byte pseudonode), a 3-byte metric,
// and a 1-byte sub-TLV length this instance always writes as 0 (no
// sub-TLVs originated).
const extISReachEntrySize = 11

func encodeExtendedISReach(adjs []Adjacency) []byte {
	out := make([]byte, 0, len(adjs)*extISReachEntrySize)
	for _, a := range adjs {
		entry := make([]byte, extISReachEntrySize)
		copy(entry[0:6], a.Neighbor[:])
		entry[6] = 0 // pseudonode; point-to-point adjacencies only here
		putUint24(entry[7:10], a.Metric)
		entry[10] = 0 // sub-TLV length
		out = append(out, entry...)
	}
	return out
}

func decodeExtendedISReach(val []byte) []Adjacency {
	var out []Adjacency
	for len(val) >= extISReachEntrySize {
		var a Adjacency
		copy(a.Neighbor[:], val[0:6])
		a.Metric = getUint24(val[7:10])
		subLen := int(val[10])
		out = append(out, a)
		val = val[extISReachEntrySize+subLen:]
	}
	return out
}

// Extended IP reachability (TLV 135, RFC 5305) and its IPv6 counterpart
// (TLV 236, RFC 5308): 4-byte metric, 1-byte control (up/down bit plus
// prefix length), then ceil(prefixlen/8) bytes of prefix. No sub-TLVs
// are originated, matching the IS reachability TLV above.
func encodeExtendedIPReach(reach []Reachability, v6 bool) []byte {
	var out []byte
	for _, r := range reach {
		metric := make([]byte, 4)
		binary.BigEndian.PutUint32(metric, r.Metric)
		out = append(out, metric...)
		bits := r.Prefix.Bits()
		out = append(out, uint8(bits)) // up/down bit left clear: internal reachability
		nbytes := (bits + 7) / 8
		addrBytes := r.Prefix.Addr().AsSlice()
		out = append(out, addrBytes[:nbytes]...)
	}
	return out
}

func decodeExtendedIPReach(val []byte, v6 bool) []Reachability {
	var out []Reachability
	for len(val) >= 5 {
		metric := binary.BigEndian.Uint32(val[0:4])
		bits := int(val[4])
		nbytes := (bits + 7) / 8
		if len(val) < 5+nbytes {
			break
		}
		addrBytes := make([]byte, 4)
		if v6 {
			addrBytes = make([]byte, 16)
		}
		copy(addrBytes, val[5:5+nbytes])
		var addr netip.Addr
		if v6 {
			var a16 [16]byte
			copy(a16[:], addrBytes)
			addr = netip.AddrFrom16(a16)
		} else {
			var a4 [4]byte
			copy(a4[:], addrBytes)
			addr = netip.AddrFrom4(a4)
		}
		prefix := netip.PrefixFrom(addr, bits)
		out = append(out, Reachability{Prefix: prefix, Metric: metric})
		val = val[5+nbytes:]
	}
	return out
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func getUint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
