package isis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIIHRoundTripP2P(t *testing.T) {
	h := &IIH{
		LinkType:    LinkPointToPoint,
		SourceID:    SystemID{1, 2, 3, 4, 5, 6},
		HoldingTime: 27,
		TLVs:        []TLV{{Type: TLVAreaAddresses, Value: []byte{0x49, 0x00, 0x01}}},
	}
	pkt := h.Encode(PDUIIHP2P)

	pduType, decoded, err := DecodePDU(pkt)
	require.NoError(t, err)
	require.Equal(t, PDUIIHP2P, pduType)
	got := decoded.(*IIH)
	require.Equal(t, h.SourceID, got.SourceID)
	require.Equal(t, h.HoldingTime, got.HoldingTime)
	require.Equal(t, LinkPointToPoint, got.LinkType)
	require.Equal(t, h.TLVs, got.TLVs)
}

func TestIIHRoundTripLAN(t *testing.T) {
	h := &IIH{
		LinkType:    LinkBroadcast,
		SourceID:    SystemID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		HoldingTime: 9,
		Priority:    64,
		LANID:       LSPID{SystemID: SystemID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, Pseudonode: 1},
	}
	pkt := h.Encode(PDUIIHLAN)

	pduType, decoded, err := DecodePDU(pkt)
	require.NoError(t, err)
	require.Equal(t, PDUIIHLAN, pduType)
	got := decoded.(*IIH)
	require.Equal(t, h.Priority, got.Priority)
	require.Equal(t, h.LANID, got.LANID)
}

func TestLSPRoundTrip(t *testing.T) {
	l := &LSP{
		RemainingLifetime: 1200,
		LSPID:             LSPID{SystemID: SystemID{1, 1, 1, 1, 1, 1}, Fragment: 2},
		SequenceNumber:    42,
		Checksum:          0xbeef,
		Overload:          true,
		CircuitType:       CircuitLevel12,
		TLVs: []TLV{
			{Type: TLVDynamicHostname, Value: []byte("router1")},
		},
	}
	pkt := l.Encode(PDULSPL2)

	pduType, decoded, err := DecodePDU(pkt)
	require.NoError(t, err)
	require.Equal(t, PDULSPL2, pduType)
	got := decoded.(*LSP)
	require.Equal(t, l.LSPID, got.LSPID)
	require.Equal(t, l.SequenceNumber, got.SequenceNumber)
	require.Equal(t, l.Checksum, got.Checksum)
	require.True(t, got.Overload)
	require.Equal(t, CircuitLevel12, got.CircuitType)
	require.Equal(t, l.TLVs, got.TLVs)
}

func TestCSNPRoundTripAndEntrySplit(t *testing.T) {
	sysID := SystemID{9, 9, 9, 9, 9, 9}
	entries := make([]LSPEntry, 0, 20)
	for i := 0; i < 20; i++ {
		entries = append(entries, LSPEntry{
			RemainingLifetime: uint16(1000 + i),
			LSPID:             LSPID{SystemID: sysID, Fragment: uint8(i)},
			SequenceNumber:    uint32(i + 1),
			Checksum:          uint16(i),
		})
	}
	s := &SNP{
		SourceID: sysID,
		Start:    LSPID{},
		End:      LSPID{SystemID: SystemID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, Fragment: 0xff},
		Entries:  entries,
	}
	pkt := s.EncodeCSNP(Level2)

	pduType, decoded, err := DecodePDU(pkt)
	require.NoError(t, err)
	require.Equal(t, PDUCSNPL2, pduType)
	got := decoded.(*SNP)
	require.Equal(t, entries, got.Entries)

	// 20 entries must have split across two TLVLSPEntries TLVs (15 + 5),
	// never one TLV carrying more than MaxLSPEntriesPerTLV.
	tlvs := encodeLSPEntryTLVs(entries)
	require.Len(t, tlvs, 2)
	require.Len(t, tlvs[0].Value, 15*lspEntrySize)
	require.Len(t, tlvs[1].Value, 5*lspEntrySize)
}

func TestPSNPRoundTrip(t *testing.T) {
	sysID := SystemID{2, 2, 2, 2, 2, 2}
	s := &SNP{
		SourceID: sysID,
		Entries: []LSPEntry{
			{RemainingLifetime: 500, LSPID: LSPID{SystemID: sysID}, SequenceNumber: 3, Checksum: 7},
		},
	}
	pkt := s.EncodePSNP(Level1)

	pduType, decoded, err := DecodePDU(pkt)
	require.NoError(t, err)
	require.Equal(t, PDUPSNPL1, pduType)
	got := decoded.(*SNP)
	require.Equal(t, s.Entries, got.Entries)
}

func TestDecodeTLVsRejectsTruncatedValue(t *testing.T) {
	_, err := decodeTLVs([]byte{byte(TLVAreaAddresses), 5, 1, 2})
	require.Error(t, err)
}

func TestDecodeLSPEntryTLVsRejectsOversizedTLV(t *testing.T) {
	val := make([]byte, (MaxLSPEntriesPerTLV+1)*lspEntrySize)
	_, err := decodeLSPEntryTLVs([]TLV{{Type: TLVLSPEntries, Value: val}})
	require.Error(t, err)
}
