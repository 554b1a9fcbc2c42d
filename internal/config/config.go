// Package config holds the typed configuration-delta contract the
// routing core consumes. The YANG-driven candidate/running model,
// commit/rollback, and CLI server that produce these deltas are out of
// scope (spec.md §1); this package only defines what arrives on the wire
// from that external collaborator, plus the bootstrap file the daemon
// reads on start for the few process-wide settings it needs before any
// config delta ever arrives (listen addresses, router-id, debug mask).
package config

import (
	"fmt"
	"net/netip"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Op is the kind of change a Delta carries.
type Op int

const (
	OpAdd Op = iota
	OpDelete
	OpChange
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpDelete:
		return "delete"
	case OpChange:
		return "change"
	default:
		return "unknown"
	}
}

// Delta is one typed configuration change, addressed the way the YANG
// containers named in spec.md §6 are addressed ("/routing/bgp/...",
// "/routing/isis/...", "/routing/static/...", "/interface/.../address").
// Exactly one of the typed payload fields is populated, selected by Kind.
type Delta struct {
	Op   Op
	Kind DeltaKind

	StaticRoute  *StaticRoute
	InterfaceAddr *InterfaceAddr
	ISISInstance *ISISInstance
	ISISCircuit  *ISISCircuit
	BGPGlobal    *BGPGlobal
	BGPNeighbor  *BGPNeighbor
}

type DeltaKind int

const (
	KindStaticRoute DeltaKind = iota
	KindInterfaceAddr
	KindISISInstance
	KindISISCircuit
	KindBGPGlobal
	KindBGPNeighbor
)

// StaticRoute mirrors "ipv4 route <prefix> nexthop <addr> [metric] [weight]".
type StaticRoute struct {
	Prefix   netip.Prefix
	Nexthop  netip.Addr
	Metric   uint32
	Weight   uint8
	Distance uint8
}

// InterfaceAddr mirrors "/interface/.../ipv{4,6}/address".
type InterfaceAddr struct {
	IfName string
	Addr   netip.Prefix
}

// ISISInstance mirrors "router isis net <NET>".
type ISISInstance struct {
	NET               string
	Level1Distance    uint8
	Level2Distance    uint8
	DynamicHostname   string
}

// ISISCircuit mirrors per-interface "circuit-type", "link-type",
// "priority", "hello padding", "metric", "ipv4/ipv6 enable".
type ISISCircuit struct {
	IfName      string
	CircuitType CircuitType
	LinkType    LinkType
	Priority    uint8
	HelloPad    bool
	Metric      uint32
	EnableIPv4  bool
	EnableIPv6  bool
}

type CircuitType int

const (
	CircuitLevel1 CircuitType = iota
	CircuitLevel2
	CircuitLevel12
)

type LinkType int

const (
	LinkBroadcast LinkType = iota
	LinkPointToPoint
)

// BGPGlobal mirrors "global as", "global identifier".
type BGPGlobal struct {
	LocalAS    uint32
	Identifier netip.Addr
}

// BGPNeighbor mirrors "neighbors neighbor <addr> peer-as".
type BGPNeighbor struct {
	Address          netip.Addr
	PeerAS           uint32
	HoldTime         uint16
	EBGPDistance     uint8
	IBGPDistance     uint8
	MultipathEnabled bool
}

// Bootstrap is the process-wide static settings read once at start.
type Bootstrap struct {
	LogLevel    string `toml:"log_level"`
	LogDev      bool   `toml:"log_development"`
	ThriftAddr  string `toml:"thrift_addr"`
	NanomsgPub  string `toml:"nanomsg_pub_addr"`
	RouterID    string `toml:"router_id"`
	NetlinkRecv bool   `toml:"netlink_receive"`
	BGPListenAddr string `toml:"bgp_listen_addr"`
	BGPLocalAS    uint32 `toml:"bgp_local_as"`
	ISISNET       string `toml:"isis_net"`
	ConfigAddr    string `toml:"config_addr"`
	MultipathEnabled bool `toml:"multipath_enabled"`
}

// LoadBootstrap reads the daemon's bootstrap TOML file via viper, matching
// the other_examples' pelletier/go-toml + spf13/viper pairing.
func LoadBootstrap(path string) (*Bootstrap, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("log_level", "info")
	v.SetDefault("thrift_addr", "localhost:5010")
	v.SetDefault("nanomsg_pub_addr", "tcp://127.0.0.1:5011")
	v.SetDefault("bgp_listen_addr", ":179")
	v.SetDefault("config_addr", "localhost:5012")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	raw, err := toml.Marshal(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("config: re-encode settings: %w", err)
	}
	var bs Bootstrap
	if err := toml.Unmarshal(raw, &bs); err != nil {
		return nil, fmt.Errorf("config: decode bootstrap: %w", err)
	}
	return &bs, nil
}
