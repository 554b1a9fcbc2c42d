package isis

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/mdlayher/ethernet"
)

// isisLLCDSAP: IS-IS has no IANA ethertype; IS-IS PDUs ride directly on an
// 802.3 length field framed with an LLC/SNAP header whose DSAP/SSAP is
// 0xFE (spec.md §6 "link-layer framing"), not on an Ethernet II frame.
const isisLLCDSAP = 0xfe

var allISSystemsMulticast = ethernet.Addr{0x09, 0x00, 0x2b, 0x00, 0x00, 0x05}
var allL1ISMulticast = ethernet.Addr{0x01, 0x80, 0xc2, 0x00, 0x00, 0x14}
var allL2ISMulticast = ethernet.Addr{0x01, 0x80, 0xc2, 0x00, 0x00, 0x15}

// Circuit is one interface's IS-IS participation: a raw AF_PACKET socket
// framed with LLC/SNAP, the per-level IFSM/NFSM state, and the hello/
// CSNP timers that drive it (spec.md §4.5).
type Circuit struct {
	Ifindex  int
	Ifname   string
	HWAddr   [6]byte
	LinkType LinkType
	Type     CircuitType

	HelloInterval time.Duration
	HelloMultiple int
	Priority      uint8
	Metric        uint32
	EnableIPv4    bool
	EnableIPv6    bool

	handle      *afpacket.TPacket
	ifsm        map[Level]IfsmState
	neighbors   map[[6]byte]*Neighbor
	dis         map[Level]*Neighbor // nil DIS means this circuit is itself DIS at that level
}

// NewCircuit builds the circuit for ifname without opening a socket; Open
// binds the raw socket. The handle stays nil in unit tests that exercise
// IFSM/NFSM transitions without a live interface.
func NewCircuit(ifname string, ifindex int, hwaddr [6]byte, linkType LinkType, circuitType CircuitType) (*Circuit, error) {
	c := &Circuit{
		Ifindex:       ifindex,
		Ifname:        ifname,
		HWAddr:        hwaddr,
		LinkType:      linkType,
		Type:          circuitType,
		HelloInterval: 10 * time.Second,
		HelloMultiple: 3,
		ifsm:          map[Level]IfsmState{Level1: IfsmDown, Level2: IfsmDown},
		neighbors:     make(map[[6]byte]*Neighbor),
		dis:           make(map[Level]*Neighbor),
	}
	return c, nil
}

// Open binds the AF_PACKET TPacket handle for ifname. Separated from the
// constructor so tests can build a Circuit without root/CAP_NET_RAW.
func (c *Circuit) Open() error {
	handle, err := afpacket.NewTPacket(
		afpacket.OptInterface(c.Ifname),
		afpacket.OptFrameSize(9000),
		afpacket.OptBlockSize(9000*128),
		afpacket.OptNumBlocks(8),
		afpacket.OptPollTimeout(afpacket.TPACKET_V3),
	)
	if err != nil {
		return fmt.Errorf("isis: open raw socket on %s: %w", c.Ifname, err)
	}
	c.handle = handle
	return nil
}

func (c *Circuit) Close() error {
	if c.handle != nil {
		c.handle.Close()
	}
	return nil
}

// destination picks the multicast MAC for a PDU type on a broadcast
// circuit (spec.md §6); P2P circuits use the All-IS-IS-Systems address.
func destination(pduType PDUType) ethernet.Addr {
	switch pduType {
	case PDUIIHP2P:
		return allISSystemsMulticast
	case PDULSPL1, PDUCSNPL1, PDUPSNPL1, PDUIIHLAN:
		return allL1ISMulticast
	default:
		return allL2ISMulticast
	}
}

// Send frames payload (an already-encoded PDU) in an LLC/SNAP header and
// writes it to the wire.
func (c *Circuit) Send(pduType PDUType, payload []byte) error {
	if c.handle == nil {
		return fmt.Errorf("isis: circuit %s has no open socket", c.Ifname)
	}
	llc := []byte{isisLLCDSAP, isisLLCDSAP, 0x03}
	frame := ethernet.Frame{
		Destination: destination(pduType),
		Source:      ethernet.Addr(c.HWAddr),
		Length:      uint16(len(llc) + len(payload)),
		Payload:     append(llc, payload...),
	}
	wire, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	return c.handle.WritePacketData(wire)
}

// Recv blocks for the next inbound IS-IS PDU, stripping the Ethernet and
// LLC/SNAP framing and returning the decoded type and body.
func (c *Circuit) Recv() (PDUType, any, [6]byte, error) {
	if c.handle == nil {
		return 0, nil, [6]byte{}, fmt.Errorf("isis: circuit %s has no open socket", c.Ifname)
	}
	data, _, err := c.handle.ZeroCopyReadPacketData()
	if err != nil {
		return 0, nil, [6]byte{}, err
	}
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return 0, nil, [6]byte{}, fmt.Errorf("isis: not an ethernet frame")
	}
	eth := ethLayer.(*layers.Ethernet)
	if len(eth.Payload) < 3 || eth.Payload[0] != isisLLCDSAP {
		return 0, nil, [6]byte{}, fmt.Errorf("isis: not an IS-IS LLC/SNAP frame")
	}
	var src [6]byte
	copy(src[:], eth.SrcMAC)
	pduType, body, err := DecodePDU(eth.Payload[3:])
	return pduType, body, src, err
}
