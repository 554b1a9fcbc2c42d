package show

import (
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/openrouted/routingd/internal/bgp"
	"github.com/openrouted/routingd/internal/bgp/packet"
	"github.com/openrouted/routingd/internal/isis"
	"github.com/openrouted/routingd/internal/link"
	"github.com/openrouted/routingd/internal/rib"
	"github.com/openrouted/routingd/internal/rib/nexthop"
)

// Handler answers show queries against whichever instances are wired in.
// Every field may be nil (a protocol not configured on this daemon);
// queries against a nil instance return an empty result rather than an
// error, matching spec.md §6's "show commands always succeed even when a
// protocol instance is not yet initialized."
type Handler struct {
	RIB  *rib.RIB
	ISIS *isis.Instance
	BGP  *bgp.Instance
	Link *link.Table
}

// Show dispatches command (e.g. "ip route", "isis adjacency", "bgp
// neighbor") and returns its JSON-encoded result.
func (h *Handler) Show(command, argument string) (string, error) {
	switch command {
	case "ip route":
		return h.marshal(h.showRoute(false))
	case "ipv6 route":
		return h.marshal(h.showRoute(true))
	case "interface":
		return h.marshal(h.showInterface())
	case "isis summary":
		return h.marshal(h.showISISSummary())
	case "isis interface":
		return h.marshal(h.showISISInterface())
	case "isis adjacency":
		return h.marshal(h.showISISAdjacency())
	case "isis database":
		return h.marshal(h.showISISDatabase())
	case "isis graph":
		return h.marshal(h.showISISGraph())
	case "isis route":
		return h.marshal(h.showISISRoute())
	case "bgp summary":
		return h.marshal(h.showBGPSummary())
	case "bgp neighbor":
		return h.marshal(h.showBGPNeighbor(argument))
	case "bgp route":
		return h.marshal(h.showBGPRoute())
	case "nexthop":
		return h.marshal(h.showNexthop())
	default:
		return "", fmt.Errorf("show: unknown command %q", command)
	}
}

func (h *Handler) marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RouteLine is one RIB candidate, for "show ip route"/"show ipv6 route".
type RouteLine struct {
	Prefix   string `json:"prefix"`
	Source   string `json:"source"`
	Distance uint8  `json:"distance"`
	Metric   uint32 `json:"metric"`
	Nexthop  string `json:"nexthop"`
	Selected bool   `json:"selected"`
}

func (h *Handler) showRoute(v6 bool) []RouteLine {
	var out []RouteLine
	if h.RIB == nil {
		return out
	}
	for _, prefix := range h.RIB.All(v6) {
		cands, ok := h.RIB.Candidates(prefix)
		if !ok {
			continue
		}
		for _, c := range cands {
			out = append(out, RouteLine{
				Prefix:   prefix.String(),
				Source:   c.Source.String(),
				Distance: c.Distance,
				Metric:   c.Metric,
				Nexthop:  nexthopString(c.Nexthop),
				Selected: c.Flags.Selected,
			})
		}
	}
	return out
}

func nexthopString(n nexthop.Nexthop) string {
	switch n.Kind {
	case nexthop.KindDirect:
		return fmt.Sprintf("direct@if%d", n.Ifindex)
	case nexthop.KindUnicast:
		return fmt.Sprintf("%s@if%d", n.Addr, n.Ifindex)
	case nexthop.KindRecursive:
		return fmt.Sprintf("recursive(%s)", n.Addr)
	case nexthop.KindGroup:
		return fmt.Sprintf("group(%d children)", len(n.Children))
	default:
		return "unknown"
	}
}

// InterfaceLine is one link's addressing and state, for "show interface".
type InterfaceLine struct {
	Name    string   `json:"name"`
	Index   int      `json:"index"`
	MTU     int      `json:"mtu"`
	HWAddr  string   `json:"hwaddr"`
	Up      bool     `json:"up"`
	Running bool     `json:"running"`
	V4      []string `json:"v4"`
	V6      []string `json:"v6"`
}

func (h *Handler) showInterface() []InterfaceLine {
	var out []InterfaceLine
	if h.Link == nil {
		return out
	}
	for _, l := range h.Link.List() {
		line := InterfaceLine{
			Name: l.Name, Index: l.Index, MTU: l.MTU,
			HWAddr: l.HWAddr.String(), Up: l.Flags.Up, Running: l.Flags.Running,
		}
		for p := range l.V4Addrs {
			line.V4 = append(line.V4, p.String())
		}
		for p := range l.V6Addrs {
			line.V6 = append(line.V6, p.String())
		}
		out = append(out, line)
	}
	return out
}

func (h *Handler) showISISSummary() []isis.Summary {
	if h.ISIS == nil {
		return nil
	}
	return h.ISIS.Summaries()
}

func (h *Handler) showISISInterface() []isis.InterfaceSummary {
	if h.ISIS == nil {
		return nil
	}
	return h.ISIS.Interfaces()
}

func (h *Handler) showISISAdjacency() []isis.AdjacencySummary {
	if h.ISIS == nil {
		return nil
	}
	return h.ISIS.Adjacencies()
}

// LSPLine is one database entry, for "show isis database".
type LSPLine struct {
	LSPID             string `json:"lsp_id"`
	SequenceNumber    uint32 `json:"sequence_number"`
	RemainingLifetime uint16 `json:"remaining_lifetime"`
	Overload          bool   `json:"overload"`
}

func (h *Handler) showISISDatabase() []LSPLine {
	var out []LSPLine
	if h.ISIS == nil {
		return out
	}
	for _, level := range []isis.Level{isis.Level1, isis.Level2} {
		for _, lsp := range h.ISIS.Database(level) {
			out = append(out, LSPLine{
				LSPID:             lsp.LSPID.String(),
				SequenceNumber:    lsp.SequenceNumber,
				RemainingLifetime: lsp.RemainingLifetime,
				Overload:          lsp.Overload,
			})
		}
	}
	return out
}

// GraphLine is one system's adjacencies and originated prefixes, for
// "show isis graph".
type GraphLine struct {
	System      string   `json:"system"`
	Adjacencies []string `json:"adjacencies"`
	Prefixes    []string `json:"prefixes"`
}

func (h *Handler) showISISGraph() []GraphLine {
	var out []GraphLine
	if h.ISIS == nil {
		return out
	}
	seen := make(map[isis.SystemID]bool)
	for _, level := range []isis.Level{isis.Level1, isis.Level2} {
		graph := h.ISIS.Graph(level)
		for sysID, adjs := range graph.Adjacencies {
			if seen[sysID] {
				continue
			}
			seen[sysID] = true
			line := GraphLine{System: sysID.String()}
			for _, a := range adjs {
				line.Adjacencies = append(line.Adjacencies, a.Neighbor.String())
			}
			for _, p := range graph.Prefixes[sysID] {
				line.Prefixes = append(line.Prefixes, p.Prefix.String())
			}
			out = append(out, line)
		}
	}
	return out
}

// ISISRouteLine is one SPF-resolved prefix, for "show isis route".
type ISISRouteLine struct {
	Prefix   string   `json:"prefix"`
	Level    string   `json:"level"`
	Distance uint32   `json:"distance"`
	NextHops []string `json:"next_hops"`
}

func (h *Handler) showISISRoute() []ISISRouteLine {
	var out []ISISRouteLine
	if h.ISIS == nil {
		return out
	}
	for _, level := range []isis.Level{isis.Level1, isis.Level2} {
		for _, r := range h.ISIS.Routes(level) {
			line := ISISRouteLine{Prefix: r.Prefix.Prefix.String(), Level: r.Level.String(), Distance: r.Distance}
			for _, n := range r.NextHops {
				line.NextHops = append(line.NextHops, n.String())
			}
			out = append(out, line)
		}
	}
	return out
}

// BGPSummaryLine is one peer's session state, for "show ip bgp summary".
type BGPSummaryLine struct {
	PeerAddress string `json:"peer_address"`
	PeerAS      uint32 `json:"peer_as"`
	State       string `json:"state"`
	PrefixCount int    `json:"prefix_count"`
}

func (h *Handler) showBGPSummary() []BGPSummaryLine {
	var out []BGPSummaryLine
	if h.BGP == nil {
		return out
	}
	for _, p := range h.BGP.Peers() {
		cfg := p.Config()
		out = append(out, BGPSummaryLine{
			PeerAddress: cfg.PeerAddress.String(),
			PeerAS:      cfg.PeerAS,
			State:       p.State().String(),
			PrefixCount: len(p.AdjRibIn()),
		})
	}
	return out
}

// BGPNeighborLine is one peer's detail, including its Adj-RIB-In/Out
// prefixes, for "show ip bgp neighbor [<addr>]".
type BGPNeighborLine struct {
	PeerAddress   string   `json:"peer_address"`
	PeerAS        uint32   `json:"peer_as"`
	State         string   `json:"state"`
	HoldTime      float64  `json:"hold_time_seconds"`
	AdjRibIn      []string `json:"adj_rib_in"`
	AdjRibOut     []string `json:"adj_rib_out"`
}

func (h *Handler) showBGPNeighbor(addr string) []BGPNeighborLine {
	var out []BGPNeighborLine
	if h.BGP == nil {
		return out
	}
	var filter netip.Addr
	if addr != "" {
		var err error
		filter, err = netip.ParseAddr(addr)
		if err != nil {
			return out
		}
	}
	for _, p := range h.BGP.Peers() {
		cfg := p.Config()
		if filter.IsValid() && cfg.PeerAddress != filter {
			continue
		}
		line := BGPNeighborLine{
			PeerAddress: cfg.PeerAddress.String(),
			PeerAS:      cfg.PeerAS,
			State:       p.State().String(),
			HoldTime:    cfg.HoldTime.Seconds(),
		}
		for prefix := range p.AdjRibIn() {
			line.AdjRibIn = append(line.AdjRibIn, prefix.String())
		}
		for prefix := range p.AdjRibOut() {
			line.AdjRibOut = append(line.AdjRibOut, prefix.String())
		}
		out = append(out, line)
	}
	return out
}

// BGPRouteLine is one Loc-RIB contributor, for "show ip bgp route" — the
// selected path is marked with Selected per spec.md §3's ">" convention.
type BGPRouteLine struct {
	Prefix      string `json:"prefix"`
	PeerAddress string `json:"peer_address"`
	PeerAS      uint32 `json:"peer_as"`
	NextHop     string `json:"next_hop"`
	LocalPref   uint32 `json:"local_pref"`
	MED         uint32 `json:"med"`
	ASPathLen   int    `json:"as_path_len"`
	Origin      packet.OriginType `json:"origin"`
	Selected    bool   `json:"selected"`
}

func (h *Handler) showBGPRoute() []BGPRouteLine {
	var out []BGPRouteLine
	if h.BGP == nil {
		return out
	}
	for _, prefix := range h.BGP.Prefixes() {
		paths := h.BGP.LocRibEntries(prefix)
		var metricTo bgp.IGPMetricFunc
		if h.BGP.RIB != nil {
			metricTo = h.BGP.RIB.MetricTo
		}
		winner := bgp.SelectBest(paths, metricTo)
		for _, p := range paths {
			out = append(out, BGPRouteLine{
				Prefix:      prefix.String(),
				PeerAddress: p.PeerAddress.String(),
				PeerAS:      p.PeerAS,
				NextHop:     p.NextHop.String(),
				LocalPref:   p.LocalPref,
				MED:         p.MED,
				ASPathLen:   p.NumASes(),
				Origin:      p.Origin,
				Selected:    winner == p,
			})
		}
	}
	return out
}

// NexthopLine is one refcounted nexthop group, for "show nexthop".
type NexthopLine struct {
	Hash      uint64   `json:"hash"`
	KernelID  uint32   `json:"kernel_id"`
	Refcount  int      `json:"refcount"`
	Installed bool     `json:"installed"`
	Children  []string `json:"children"`
}

func (h *Handler) showNexthop() []NexthopLine {
	var out []NexthopLine
	if h.RIB == nil {
		return out
	}
	for _, v6 := range []bool{false, true} {
		for _, g := range h.RIB.NexthopGroups(v6) {
			line := NexthopLine{Hash: g.Hash, KernelID: g.KernelID, Refcount: g.Refcount(), Installed: g.Installed}
			for _, c := range g.Children {
				line.Children = append(line.Children, fmt.Sprintf("%s@if%d", c.Addr, c.Ifindex))
			}
			out = append(out, line)
		}
	}
	return out
}
