package packet

import "encoding/binary"

// Body is implemented by every message body type, mirroring the
// teacher's BGPBody interface.
type Body interface {
	Clone() Body
	Encode() ([]byte, error)
}

// KeepAlive has an empty body (RFC 4271 §4.4).
type KeepAlive struct{}

func (k *KeepAlive) Clone() Body         { return &KeepAlive{} }
func (k *KeepAlive) Encode() ([]byte, error) { return nil, nil }

// Notification is the session-teardown message body (RFC 4271 §4.5).
type Notification struct {
	ErrorCode    uint8
	ErrorSubcode uint8
	Data         []byte
}

func (n *Notification) Clone() Body {
	out := &Notification{ErrorCode: n.ErrorCode, ErrorSubcode: n.ErrorSubcode}
	out.Data = append(out.Data, n.Data...)
	return out
}

func (n *Notification) Encode() ([]byte, error) {
	return append([]byte{n.ErrorCode, n.ErrorSubcode}, n.Data...), nil
}

func DecodeNotification(pkt []byte) (*Notification, error) {
	if len(pkt) < 2 {
		return nil, MessageError{ErrHeader, SubErrBadMessageLen, nil, "truncated NOTIFICATION"}
	}
	return &Notification{ErrorCode: pkt[0], ErrorSubcode: pkt[1], Data: pkt[2:]}, nil
}

func (o *Open) Clone() Body {
	out := &Open{Version: o.Version, MyAS: o.MyAS, HoldTime: o.HoldTime, BGPIdentifier: o.BGPIdentifier}
	out.Capabilities = append(out.Capabilities, o.Capabilities...)
	return out
}

// Update is the route-advertisement/withdrawal message body (RFC 4271
// §4.3). IPv6 NLRI never populates WithdrawnRoutes/NLRI directly — it
// rides MP_REACH_NLRI/MP_UNREACH_NLRI path attributes instead, since
// those two fields are fixed-format IPv4.
type Update struct {
	WithdrawnRoutes []Prefix
	PathAttrs       []Attr
	NLRI            []Prefix
}

func (u *Update) Clone() Body {
	out := &Update{}
	out.WithdrawnRoutes = append(out.WithdrawnRoutes, u.WithdrawnRoutes...)
	out.PathAttrs = append(out.PathAttrs, u.PathAttrs...)
	out.NLRI = append(out.NLRI, u.NLRI...)
	return out
}

func (u *Update) Encode() ([]byte, error) {
	var withdrawn []byte
	for _, p := range u.WithdrawnRoutes {
		withdrawn = append(withdrawn, p.Encode()...)
	}
	var attrs []byte
	for _, a := range u.PathAttrs {
		attrs = append(attrs, a.Encode()...)
	}
	var nlri []byte
	for _, p := range u.NLRI {
		nlri = append(nlri, p.Encode()...)
	}

	out := make([]byte, 0, 4+len(withdrawn)+len(attrs)+len(nlri))
	wlen := make([]byte, 2)
	binary.BigEndian.PutUint16(wlen, uint16(len(withdrawn)))
	out = append(out, wlen...)
	out = append(out, withdrawn...)
	alen := make([]byte, 2)
	binary.BigEndian.PutUint16(alen, uint16(len(attrs)))
	out = append(out, alen...)
	out = append(out, attrs...)
	out = append(out, nlri...)
	return out, nil
}

func DecodeUpdate(pkt []byte) (*Update, error) {
	if len(pkt) < 2 {
		return nil, MessageError{ErrUpdate, SubErrMalformedAttrList, nil, "truncated UPDATE"}
	}
	u := &Update{}
	wlen := int(binary.BigEndian.Uint16(pkt[0:2]))
	if len(pkt) < 2+wlen {
		return nil, MessageError{ErrUpdate, SubErrMalformedAttrList, nil, "truncated withdrawn routes"}
	}
	wpkt := pkt[2 : 2+wlen]
	for len(wpkt) > 0 {
		p, n, err := decodePrefix(wpkt, false)
		if err != nil {
			return nil, err
		}
		u.WithdrawnRoutes = append(u.WithdrawnRoutes, p)
		wpkt = wpkt[n:]
	}

	rest := pkt[2+wlen:]
	if len(rest) < 2 {
		return nil, MessageError{ErrUpdate, SubErrMalformedAttrList, nil, "truncated attribute length"}
	}
	alen := int(binary.BigEndian.Uint16(rest[0:2]))
	if len(rest) < 2+alen {
		return nil, MessageError{ErrUpdate, SubErrMalformedAttrList, nil, "truncated path attributes"}
	}
	apkt := rest[2 : 2+alen]
	for len(apkt) > 0 {
		a, n, err := decodeAttr(apkt)
		if err != nil {
			return nil, err
		}
		u.PathAttrs = append(u.PathAttrs, a)
		apkt = apkt[n:]
	}

	npkt := rest[2+alen:]
	for len(npkt) > 0 {
		p, n, err := decodePrefix(npkt, false)
		if err != nil {
			return nil, err
		}
		u.NLRI = append(u.NLRI, p)
		npkt = npkt[n:]
	}
	return u, nil
}

// Message is a decoded header plus its typed body.
type Message struct {
	Header *Header
	Body   Body
}

func (m *Message) Encode() ([]byte, error) {
	body, err := m.Body.Encode()
	if err != nil {
		return nil, err
	}
	m.Header.Length = uint16(HeaderLen + len(body))
	return append(m.Header.Encode(), body...), nil
}

// DecodeMessage decodes a full on-wire message (header included).
func DecodeMessage(pkt []byte) (*Message, error) {
	h, err := DecodeHeader(pkt)
	if err != nil {
		return nil, err
	}
	if len(pkt) < int(h.Length) {
		return nil, MessageError{ErrHeader, SubErrBadMessageLen, nil, "message shorter than declared length"}
	}
	body := pkt[HeaderLen:h.Length]
	var b Body
	switch h.Type {
	case MsgTypeOpen:
		b, err = DecodeOpen(body)
	case MsgTypeUpdate:
		b, err = DecodeUpdate(body)
	case MsgTypeNotification:
		b, err = DecodeNotification(body)
	case MsgTypeKeepAlive:
		b = &KeepAlive{}
	default:
		return nil, MessageError{ErrHeader, SubErrBadMessageType, nil, "unknown message type"}
	}
	if err != nil {
		return nil, err
	}
	return &Message{Header: h, Body: b}, nil
}
