package packet

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenRoundTripTwoByteAS(t *testing.T) {
	o := &Open{
		Version:       4,
		MyAS:          65001,
		HoldTime:      180,
		BGPIdentifier: netip.MustParseAddr("192.0.2.1"),
	}
	enc, err := o.Encode()
	require.NoError(t, err)

	got, err := DecodeOpen(enc)
	require.NoError(t, err)
	require.Equal(t, o.MyAS, got.MyAS)
	require.Equal(t, o.HoldTime, got.HoldTime)
	require.Equal(t, o.BGPIdentifier, got.BGPIdentifier)
}

func TestOpenRoundTripFourOctetAS(t *testing.T) {
	bigAS := uint32(4200000001)
	o := &Open{
		Version:       4,
		MyAS:          bigAS,
		HoldTime:      90,
		BGPIdentifier: netip.MustParseAddr("198.51.100.1"),
		Capabilities: []Capability{
			FourOctetASCapability(bigAS),
			MultiprotocolCapability(AFIIPv6, SAFIUnicast),
		},
	}
	enc, err := o.Encode()
	require.NoError(t, err)

	got, err := DecodeOpen(enc)
	require.NoError(t, err)
	require.Equal(t, bigAS, got.MyAS)
	require.Len(t, got.Capabilities, 2)
}

func TestUpdateRoundTrip(t *testing.T) {
	u := &Update{
		WithdrawnRoutes: []Prefix{{Prefix: netip.MustParsePrefix("10.1.0.0/16")}},
		PathAttrs: []Attr{
			NewOrigin(OriginIGP),
			NewASPath([]ASSegment{{Type: ASSequence, AS: []uint32{65001, 4200000001}}}),
			NewNextHop(netip.MustParseAddr("192.0.2.1")),
			NewLocalPref(100),
			NewMED(10),
		},
		NLRI: []Prefix{{Prefix: netip.MustParsePrefix("10.2.0.0/24")}},
	}
	enc, err := u.Encode()
	require.NoError(t, err)

	got, err := DecodeUpdate(enc)
	require.NoError(t, err)
	require.Equal(t, u.WithdrawnRoutes, got.WithdrawnRoutes)
	require.Equal(t, u.NLRI, got.NLRI)
	require.Len(t, got.PathAttrs, 5)

	var asPath []ASSegment
	for _, a := range got.PathAttrs {
		if a.Code == AttrASPath {
			asPath = a.ASPath
		}
	}
	require.Equal(t, []uint32{65001, 4200000001}, asPath[0].AS)
}

func TestUpdateRoundTripMPReachIPv6(t *testing.T) {
	nh := netip.MustParseAddr("2001:db8::1")
	nlri := netip.MustParsePrefix("2001:db8:abcd::/48")
	u := &Update{
		PathAttrs: []Attr{
			NewOrigin(OriginIGP),
			NewASPath(nil),
			{
				Flags: defaultFlags(AttrMPReachNLRI), Code: AttrMPReachNLRI,
				MPReach: &MPReach{AFI: AFIIPv6, SAFI: SAFIUnicast, NextHop: nh, NLRI: []netip.Prefix{nlri}},
			},
		},
	}
	enc, err := u.Encode()
	require.NoError(t, err)

	got, err := DecodeUpdate(enc)
	require.NoError(t, err)
	var mp *MPReach
	for _, a := range got.PathAttrs {
		if a.Code == AttrMPReachNLRI {
			mp = a.MPReach
		}
	}
	require.NotNil(t, mp)
	require.Equal(t, nh, mp.NextHop)
	require.Equal(t, []netip.Prefix{nlri}, mp.NLRI)
}

func TestNotificationRoundTrip(t *testing.T) {
	n := &Notification{ErrorCode: ErrHoldTimerExp, ErrorSubcode: 0, Data: nil}
	enc, err := n.Encode()
	require.NoError(t, err)

	got, err := DecodeNotification(enc)
	require.NoError(t, err)
	require.Equal(t, n.ErrorCode, got.ErrorCode)
}

func TestMessageRoundTripKeepAlive(t *testing.T) {
	m := &Message{Header: &Header{Type: MsgTypeKeepAlive}, Body: &KeepAlive{}}
	enc, err := m.Encode()
	require.NoError(t, err)
	require.Len(t, enc, HeaderLen)

	got, err := DecodeMessage(enc)
	require.NoError(t, err)
	require.Equal(t, MsgTypeKeepAlive, got.Header.Type)
}

func TestDecodeHeaderRejectsBadLength(t *testing.T) {
	pkt := make([]byte, HeaderLen)
	for i := range pkt[:16] {
		pkt[i] = 0xff
	}
	pkt[16] = 0
	pkt[17] = 5 // below HeaderLen
	pkt[18] = byte(MsgTypeKeepAlive)
	_, err := DecodeHeader(pkt)
	require.Error(t, err)
}

func TestDecodeAttrRejectsTruncatedExtendedLength(t *testing.T) {
	_, _, err := decodeAttr([]byte{uint8(AttrFlagExtendedLen | AttrFlagOptional), uint8(AttrMultiExitDisc), 0})
	require.Error(t, err)
}

func TestDecodeASPathRejectsTruncatedSegment(t *testing.T) {
	_, err := decodeASPath([]byte{uint8(ASSequence), 2, 0, 0, 0, 1})
	require.Error(t, err)
}
