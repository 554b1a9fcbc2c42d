package bgp

import (
	"context"
	"net/netip"
	"sync"

	"go.uber.org/zap"

	"github.com/openrouted/routingd/internal/bgp/packet"
	"github.com/openrouted/routingd/internal/rib"
	"github.com/openrouted/routingd/internal/rib/nexthop"
)

// Instance is the top-level C6 component: it owns every configured
// peer, the per-prefix Loc-RIB (the set of candidate paths across all
// peers, reduced by SelectBest to one winner), and reports winners to
// the shared RIB via AddCandidate/WithdrawCandidate rather than a
// direct table reference — the same decoupling internal/isis uses.
type Instance struct {
	logger *zap.Logger
	RIB    *rib.RIB
	Debug  DebugMask

	localAS       uint32
	localRouterID netip.Addr

	mu       sync.Mutex
	peers    map[netip.Addr]*Peer
	locRib   map[netip.Prefix]map[netip.Addr]*Path
	policies map[netip.Addr]*Policy
}

func NewInstance(logger *zap.Logger, localAS uint32, routerID netip.Addr, r *rib.RIB) *Instance {
	return &Instance{
		logger:        logger,
		RIB:           r,
		localAS:       localAS,
		localRouterID: routerID,
		peers:         make(map[netip.Addr]*Peer),
		locRib:        make(map[netip.Prefix]map[netip.Addr]*Path),
		policies:      make(map[netip.Addr]*Policy),
	}
}

// AddPeer registers a configured neighbor. The session is brought up by
// Run (which starts the peer's FSM and ActiveOpenLoop) or by a Listener
// handing it an accepted connection; AddPeer itself starts neither.
func (inst *Instance) AddPeer(cfg Config) *Peer {
	cfg.LocalAS = inst.localAS
	cfg.LocalRouterID = inst.localRouterID
	policy := NewPolicy()
	p := NewPeer(inst.logger, inst, cfg, policy)

	inst.mu.Lock()
	inst.peers[cfg.PeerAddress] = p
	inst.policies[cfg.PeerAddress] = policy
	inst.mu.Unlock()
	return p
}

func (inst *Instance) Peer(addr netip.Addr) (*Peer, bool) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	p, ok := inst.peers[addr]
	return p, ok
}

// Peers returns every configured neighbor, for "show ip bgp summary"
// (spec.md §6).
func (inst *Instance) Peers() []*Peer {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	out := make([]*Peer, 0, len(inst.peers))
	for _, p := range inst.peers {
		out = append(out, p)
	}
	return out
}

// LocRibEntries returns every candidate path known for prefix across all
// peers, for "show ip bgp route".
func (inst *Instance) LocRibEntries(prefix netip.Prefix) []*Path {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	byPeer := inst.locRib[prefix]
	out := make([]*Path, 0, len(byPeer))
	for _, p := range byPeer {
		out = append(out, p)
	}
	return out
}

// Prefixes returns every prefix with at least one Loc-RIB contributor.
func (inst *Instance) Prefixes() []netip.Prefix {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	out := make([]netip.Prefix, 0, len(inst.locRib))
	for prefix := range inst.locRib {
		out = append(out, prefix)
	}
	return out
}

// ReceiveUpdate applies an inbound UPDATE to peer's Adj-RIB-In,
// filters it through the peer's inbound policy, and re-runs best-path
// selection for every affected prefix (spec.md §4.6 step "on UPDATE,
// recompute Loc-RIB winner and re-advertise on change").
func (inst *Instance) ReceiveUpdate(peer *Peer, u *packet.Update) {
	metricUpdatesIn.WithLabelValues(peer.cfg.PeerAddress.String()).Inc()

	for _, w := range u.WithdrawnRoutes {
		inst.withdraw(peer, w.Prefix)
	}
	for _, mp := range mpUnreachAttrs(u.PathAttrs) {
		for _, p := range mp.NLRI {
			inst.withdraw(peer, p)
		}
	}

	if len(u.NLRI) == 0 && len(mpReachAttrs(u.PathAttrs)) == 0 {
		metricPrefixesIn.WithLabelValues(peer.cfg.PeerAddress.String()).Set(float64(len(peer.adjRibIn)))
		return
	}

	path := NewPath(peer, u.PathAttrs)
	for _, n := range u.NLRI {
		inst.advertise(peer, n.Prefix, path)
	}
	for _, mp := range mpReachAttrs(u.PathAttrs) {
		mpPath := *path
		mpPath.NextHop = mp.NextHop
		for _, n := range mp.NLRI {
			pcopy := mpPath
			inst.advertise(peer, n, &pcopy)
		}
	}
	metricPrefixesIn.WithLabelValues(peer.cfg.PeerAddress.String()).Set(float64(len(peer.adjRibIn)))
}

func mpReachAttrs(attrs []packet.Attr) []*packet.MPReach {
	var out []*packet.MPReach
	for _, a := range attrs {
		if a.Code == packet.AttrMPReachNLRI && a.MPReach != nil {
			out = append(out, a.MPReach)
		}
	}
	return out
}

func mpUnreachAttrs(attrs []packet.Attr) []*packet.MPUnreach {
	var out []*packet.MPUnreach
	for _, a := range attrs {
		if a.Code == packet.AttrMPUnreachNLRI && a.MPUnreach != nil {
			out = append(out, a.MPUnreach)
		}
	}
	return out
}

func (inst *Instance) advertise(peer *Peer, prefix netip.Prefix, path *Path) {
	if !peer.policy.PermitPrefix(peer.cfg.PrefixListIn, prefix) {
		return
	}
	inst.mu.Lock()
	peer.adjRibIn[prefix] = path
	if inst.locRib[prefix] == nil {
		inst.locRib[prefix] = make(map[netip.Addr]*Path)
	}
	inst.locRib[prefix][peer.cfg.PeerAddress] = path
	inst.mu.Unlock()

	inst.reselect(prefix)
}

func (inst *Instance) withdraw(peer *Peer, prefix netip.Prefix) {
	inst.mu.Lock()
	delete(peer.adjRibIn, prefix)
	if byPeer, ok := inst.locRib[prefix]; ok {
		delete(byPeer, peer.cfg.PeerAddress)
		if len(byPeer) == 0 {
			delete(inst.locRib, prefix)
		}
	}
	inst.mu.Unlock()

	inst.reselect(prefix)
}

// AdvertiseNetwork injects a locally originated path for prefix into the
// Loc-RIB under the local router ID rather than a peer address, the
// redistribute-into-BGP mechanism behind a "network" statement (spec.md
// §4.6). It runs through the same best-path selection and propagation as
// any peer-learned path, with LOCAL_PREF 100; rule 2 of the decision
// process (RFC 4271 §9.1.2.2) prefers it over a peer-learned path of equal
// LOCAL_PREF, while a peer-learned path with a higher LOCAL_PREF still wins.
func (inst *Instance) AdvertiseNetwork(prefix netip.Prefix, nextHop netip.Addr) {
	path := &Path{
		PeerAddress:     inst.localRouterID,
		PeerAS:          inst.localAS,
		LocalAS:         inst.localAS,
		RouterID:        inst.localRouterID,
		LocalOriginated: true,
		Origin:          packet.OriginIGP,
		NextHop:         nextHop,
		LocalPref:       100,
	}
	inst.mu.Lock()
	if inst.locRib[prefix] == nil {
		inst.locRib[prefix] = make(map[netip.Addr]*Path)
	}
	inst.locRib[prefix][inst.localRouterID] = path
	inst.mu.Unlock()

	inst.reselect(prefix)
}

// WithdrawNetwork removes a prefix previously injected by AdvertiseNetwork.
func (inst *Instance) WithdrawNetwork(prefix netip.Prefix) {
	inst.mu.Lock()
	if byPeer, ok := inst.locRib[prefix]; ok {
		delete(byPeer, inst.localRouterID)
		if len(byPeer) == 0 {
			delete(inst.locRib, prefix)
		}
	}
	inst.mu.Unlock()

	inst.reselect(prefix)
}

// withdrawAllFromPeer clears every Loc-RIB contribution attributed to
// peer, called when its FSM drops to Idle (spec.md §4.6 "on session
// loss, withdraw all routes learned from that peer").
func (inst *Instance) withdrawAllFromPeer(peer *Peer) {
	inst.mu.Lock()
	var affected []netip.Prefix
	for prefix, byPeer := range inst.locRib {
		if _, ok := byPeer[peer.cfg.PeerAddress]; ok {
			delete(byPeer, peer.cfg.PeerAddress)
			affected = append(affected, prefix)
			if len(byPeer) == 0 {
				delete(inst.locRib, prefix)
			}
		}
	}
	inst.mu.Unlock()

	for _, prefix := range affected {
		inst.reselect(prefix)
	}
}

// reselect recomputes the Loc-RIB winner for prefix and reflects the
// change into the shared RIB, using a recursive nexthop (the
// advertised NEXT_HOP address) so internal/rib's resolver chases it
// down to an installable, directly-connected nexthop (spec.md §4.4).
func (inst *Instance) reselect(prefix netip.Prefix) {
	inst.mu.Lock()
	byPeer := inst.locRib[prefix]
	var candidates []*Path
	for _, p := range byPeer {
		candidates = append(candidates, p)
	}
	inst.mu.Unlock()

	var metricTo IGPMetricFunc
	if inst.RIB != nil {
		metricTo = inst.RIB.MetricTo
	}
	winner := SelectBest(candidates, metricTo)
	if winner == nil {
		if inst.RIB != nil {
			inst.RIB.WithdrawCandidate(prefix, rib.SourceBGP, 0)
		}
		inst.propagateWithdraw(prefix, nil)
		return
	}
	distance := rib.DefaultDistances().EBGP
	switch {
	case winner.LocalOriginated:
		distance = rib.DefaultDistances().Static
	case winner.IsIBGP():
		distance = rib.DefaultDistances().IBGP
	}
	if inst.RIB != nil {
		inst.RIB.AddCandidate(prefix, &rib.Route{
			Source:   rib.SourceBGP,
			Distance: distance,
			Metric:   winner.MED,
			Nexthop:  nexthop.Recursive(winner.NextHop),
		})
	}
	inst.propagateUpdate(prefix, winner)
}

// propagateUpdate re-advertises winner to every Established peer other
// than the one it was learned from, applying the peer's outbound prefix
// list and split-horizon (spec.md §4.6's Adj-RIB-Out construction). No
// community-list filter is applied, outbound or inbound.
func (inst *Instance) propagateUpdate(prefix netip.Prefix, winner *Path) {
	inst.mu.Lock()
	peers := make([]*Peer, 0, len(inst.peers))
	for _, p := range inst.peers {
		peers = append(peers, p)
	}
	inst.mu.Unlock()

	for _, p := range peers {
		if p.State() != Established || p.cfg.PeerAddress == winner.PeerAddress {
			continue
		}
		if !p.policy.PermitPrefix(p.cfg.PrefixListOut, prefix) {
			continue
		}
		u := &packet.Update{
			PathAttrs: winner.Encode(p),
			NLRI:      []packet.Prefix{{Prefix: prefix}},
		}
		p.adjRibOut[prefix] = winner
		p.send(&packet.Message{Header: &packet.Header{Type: packet.MsgTypeUpdate}, Body: u})
	}
}

func (inst *Instance) propagateWithdraw(prefix netip.Prefix, except *Peer) {
	inst.mu.Lock()
	peers := make([]*Peer, 0, len(inst.peers))
	for _, p := range inst.peers {
		peers = append(peers, p)
	}
	inst.mu.Unlock()

	for _, p := range peers {
		if p.State() != Established || p == except {
			continue
		}
		if _, ok := p.adjRibOut[prefix]; !ok {
			continue
		}
		delete(p.adjRibOut, prefix)
		u := &packet.Update{WithdrawnRoutes: []packet.Prefix{{Prefix: prefix}}}
		p.send(&packet.Message{Header: &packet.Header{Type: packet.MsgTypeUpdate}, Body: u})
	}
}

// Run brings up every configured peer's FSM loop until ctx is
// cancelled.
func (inst *Instance) Run(ctx context.Context) error {
	inst.mu.Lock()
	peers := make([]*Peer, 0, len(inst.peers))
	for _, p := range inst.peers {
		peers = append(peers, p)
	}
	inst.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range peers {
		wg.Add(1)
		go func(p *Peer) {
			defer wg.Done()
			go p.ActiveOpenLoop(ctx)
			p.eventCh <- EventManualStart
			p.run(ctx)
		}(p)
	}
	wg.Wait()
	return nil
}
