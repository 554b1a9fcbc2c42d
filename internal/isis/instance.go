package isis

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RouteResult is one SPF-derived reachable prefix, handed to the
// instance's onRoute callback for installation into the RIB. Multiple
// NextHopSystems means ECMP (spec.md §4.5/§8 scenario 3).
type RouteResult struct {
	Prefix         netip.Prefix
	Level          Level
	Metric         uint32
	NextHopSystems []SystemID
	// Withdrawn is true when Prefix was reachable via Level on the prior
	// SPF run and no longer is; only Prefix and Level are meaningful.
	Withdrawn bool
}

// Instance is the top-level C5 component: it owns both level LSDBs, the
// circuit set, and the SPF/origination loops, and reports resolved
// reachability to the RIB via onRoute rather than importing internal/rib
// directly (spec.md §5's ownership model — the instance drives its own
// state and hands deltas outward).
type Instance struct {
	logger *zap.Logger

	NET             SystemID
	DynamicHostname bool

	lsdb    map[Level]*LSDB
	flooder map[Level]*Flooder

	mu         sync.Mutex
	circuits   map[int]*Circuit
	clstates   map[int]map[Level]*CircuitLevelState
	neighbors  map[int][]*Neighbor
	localPrefs map[Level][]Reachability
	hostnames  map[SystemID]string
	seqnum     map[Level]uint32

	lastReachable map[Level]map[netip.Prefix]struct{}
	pseudoSeqnum  map[Level]map[int]uint32

	onRoute func(RouteResult)
}

// disOriginationDelay is the DIS timer spec.md §4.5 requires before a
// pseudonode LSP is (re)originated on a DIS change, giving the LSDB and
// neighbor MAC tables time to converge.
const disOriginationDelay = 2 * time.Second

// lspRefreshInterval re-originates the self-LSP well before MaxAge so it
// never expires out from under a stable adjacency set (spec.md §4.5 "on
// refresh period ... a new LSP is originated").
const lspRefreshInterval = 15 * time.Minute

// csnpInterval is how often the DIS on a broadcast circuit re-sends a
// full CSNP summarizing the LSDB (spec.md §4.5).
const csnpInterval = 10 * time.Second

func NewInstance(logger *zap.Logger, net SystemID, dynamicHostname bool, onRoute func(RouteResult)) *Instance {
	inst := &Instance{
		logger:          logger,
		NET:             net,
		DynamicHostname: dynamicHostname,
		lsdb:            map[Level]*LSDB{},
		flooder:         map[Level]*Flooder{},
		circuits:        make(map[int]*Circuit),
		clstates:        make(map[int]map[Level]*CircuitLevelState),
		neighbors:       make(map[int][]*Neighbor),
		localPrefs:      map[Level][]Reachability{},
		hostnames:       make(map[SystemID]string),
		seqnum:          map[Level]uint32{Level1: 0, Level2: 0},
		lastReachable:   map[Level]map[netip.Prefix]struct{}{Level1: {}, Level2: {}},
		pseudoSeqnum:    map[Level]map[int]uint32{Level1: {}, Level2: {}},
		onRoute:         onRoute,
	}
	for _, level := range []Level{Level1, Level2} {
		l := level
		inst.lsdb[l] = NewLSDB(l, func(LSPID) { inst.runSPF(l) })
	}
	return inst
}

// AddCircuit registers a circuit and wires its per-level IFSM state.
func (inst *Instance) AddCircuit(c *Circuit) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.circuits[c.Ifindex] = c
	inst.clstates[c.Ifindex] = make(map[Level]*CircuitLevelState)
	for _, level := range []Level{Level1, Level2} {
		if !c.Type.RunsLevel(level) {
			continue
		}
		inst.clstates[c.Ifindex][level] = &CircuitLevelState{Circuit: c, Level: level, State: IfsmDown}
	}
	inst.rebuildFlooders()
}

func (inst *Instance) rebuildFlooders() {
	for _, level := range []Level{Level1, Level2} {
		circuits := make(map[int]*Circuit)
		for ifindex, c := range inst.circuits {
			if c.Type.RunsLevel(level) {
				circuits[ifindex] = c
			}
		}
		inst.flooder[level] = NewFlooder(inst.lsdb[level], circuits)
	}
}

// SetLocalPrefixes replaces the connected/static prefixes this instance
// originates at level, taken by the caller from the RIB's connected and
// static candidate sets (spec.md §4.5 "IS-IS originates connected and
// redistributed prefixes into its own LSP").
func (inst *Instance) SetLocalPrefixes(level Level, prefixes []Reachability) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.localPrefs[level] = prefixes
}

// ReceiveIIH applies an inbound hello, creating the neighbor record on
// first sight, per spec.md §4.5.
func (inst *Instance) ReceiveIIH(ifindex int, iih *IIH, srcMAC [6]byte) {
	inst.mu.Lock()

	c, ok := inst.circuits[ifindex]
	if !ok {
		inst.mu.Unlock()
		return
	}
	// LAN IIHs share one wire PDU type for both levels (the destination
	// multicast MAC distinguishes them on real hardware); a circuit
	// running both levels is treated as Level1 here since this instance
	// does not yet split L1/L2 LAN hello reception by destination MAC.
	level := Level1
	if c.Type == CircuitLevel2 {
		level = Level2
	}

	var nbr *Neighbor
	for _, n := range inst.neighbors[ifindex] {
		if n.MAC == srcMAC {
			nbr = n
			break
		}
	}
	if nbr == nil {
		nbr = &Neighbor{SystemID: iih.SourceID, MAC: srcMAC, Circuit: c, Level: level, State: NfsmDown, HoldTime: time.Duration(iih.HoldingTime) * time.Second}
		inst.neighbors[ifindex] = append(inst.neighbors[ifindex], nbr)
	}

	listed := func(mac [6]byte) bool { return isisNeighborListed(iih, mac) }
	changed := nbr.ReceiveHello(iih, listed)

	inst.applyNeighborChangeLocked(ifindex, level)
	inst.mu.Unlock()

	if changed {
		inst.Originate(level)
	}
}

// applyNeighborChangeLocked recomputes the circuit-level IFSM/DIS status
// from the current neighbor set and schedules pseudonode-LSP origination
// when DIS status flips. Callers must hold inst.mu.
func (inst *Instance) applyNeighborChangeLocked(ifindex int, level Level) {
	cls, ok := inst.clstates[ifindex][level]
	if !ok {
		return
	}
	c := inst.circuits[ifindex]
	wasDIS := cls.IsDIS
	cls.ApplyNeighborChange(inst.neighbors[ifindex])
	adjacenciesUp.WithLabelValues(c.Ifname, level.String()).Set(float64(countUp(inst.neighbors[ifindex], level)))
	if cls.IsDIS != wasDIS {
		inst.scheduleDISChange(c, level, cls.IsDIS)
	}
}

// scheduleDISChange arms the DIS origination-delay timer (spec.md §4.5
// "a DIS timer schedules an origination delay so the LSDB and MAC tables
// converge") before (re)building the pseudonode LSP for level on c.
func (inst *Instance) scheduleDISChange(c *Circuit, level Level, becameDIS bool) {
	pseudonode := pseudonodeID(c)
	time.AfterFunc(disOriginationDelay, func() {
		inst.originatePseudonode(c, level, pseudonode, becameDIS)
	})
}

// pseudonodeID derives the (never-zero) pseudonode byte identifying c's
// LAN in LSP-IDs originated for it (spec.md §3 "lsp-id = system-id(6) ||
// pseudonode(1) || fragment(1)").
func pseudonodeID(c *Circuit) uint8 {
	return uint8(c.Ifindex) | 0x01
}

// originatePseudonode (re)builds and floods the pseudonode LSP for
// (c, level) if isDIS still matches the circuit's current DIS status
// (it may have flipped again during the origination delay), or purges it
// with a zero-lifetime LSP flooded exactly once if we were DIS and lost
// (spec.md §4.5 "the pseudonode LSP ... is regenerated (or purged if we
// were DIS and lost)").
func (inst *Instance) originatePseudonode(c *Circuit, level Level, pseudonode uint8, isDIS bool) {
	inst.mu.Lock()
	cls, ok := inst.clstates[c.Ifindex][level]
	if !ok || cls.IsDIS != isDIS {
		inst.mu.Unlock()
		return
	}
	var adjs []Adjacency
	for _, n := range inst.neighbors[c.Ifindex] {
		if n.Level == level && n.State == NfsmUp {
			adjs = append(adjs, Adjacency{Neighbor: n.SystemID, Metric: 0})
		}
	}
	inst.pseudoSeqnum[level][c.Ifindex]++
	seq := inst.pseudoSeqnum[level][c.Ifindex]
	inst.mu.Unlock()

	lspID := LSPID{SystemID: inst.NET, Pseudonode: pseudonode}
	var lsp *LSP
	if isDIS {
		var tlvs []TLV
		if len(adjs) > 0 {
			tlvs = append(tlvs, TLV{Type: TLVExtendedISReachability, Value: encodeExtendedISReach(adjs)})
		}
		lsp = &LSP{
			RemainingLifetime: uint16(MaxAge / time.Second),
			LSPID:             lspID,
			SequenceNumber:    seq,
			CircuitType:       CircuitLevel12,
			TLVs:              tlvs,
		}
	} else {
		lsp = &LSP{RemainingLifetime: 0, LSPID: lspID, SequenceNumber: seq, CircuitType: CircuitLevel12}
	}
	inst.flooder[level].Originate(lsp)
}

// isisNeighborListed reports whether mac appears in iih's IS Neighbors
// TLV (type 6), the broadcast two-way check of spec.md §4.5.
func isisNeighborListed(iih *IIH, mac [6]byte) bool {
	for _, t := range iih.TLVs {
		if t.Type != TLVISNeighbors {
			continue
		}
		for _, m := range decodeISNeighbors(t.Value) {
			if m == mac {
				return true
			}
		}
	}
	return false
}

func countUp(neighbors []*Neighbor, level Level) int {
	n := 0
	for _, nb := range neighbors {
		if nb.Level == level && nb.State == NfsmUp {
			n++
		}
	}
	return n
}

// ReceiveLSP hands an inbound LSP to the level's flooder.
func (inst *Instance) ReceiveLSP(ifindex int, level Level, lsp *LSP) {
	inst.flooder[level].ReceiveLSP(lsp, ifindex)
}

// ReceiveCSNP/ReceivePSNP reconcile database-sync PDUs.
func (inst *Instance) ReceiveCSNP(ifindex int, level Level, snp *SNP) {
	ReconcileCSNP(inst.flooder[level], snp, ifindex)
}

func (inst *Instance) ReceivePSNP(ifindex int, level Level, snp *SNP) {
	ReconcilePSNP(inst.flooder[level], snp, ifindex)
}

// Originate builds and floods this system's own LSP for level from
// current adjacencies and local prefixes.
func (inst *Instance) Originate(level Level) {
	inst.mu.Lock()
	adjs := inst.collectAdjacencies(level)
	prefs := append([]Reachability(nil), inst.localPrefs[level]...)
	inst.seqnum[level]++
	seq := inst.seqnum[level]
	inst.mu.Unlock()

	var tlvs []TLV
	if inst.DynamicHostname {
		if name, ok := inst.hostnames[inst.NET]; ok {
			tlvs = append(tlvs, TLV{Type: TLVDynamicHostname, Value: []byte(name)})
		}
	}
	if len(adjs) > 0 {
		tlvs = append(tlvs, TLV{Type: TLVExtendedISReachability, Value: encodeExtendedISReach(adjs)})
	}
	var v4, v6 []Reachability
	for _, p := range prefs {
		if p.Prefix.Addr().Is4() {
			v4 = append(v4, p)
		} else {
			v6 = append(v6, p)
		}
	}
	if len(v4) > 0 {
		tlvs = append(tlvs, TLV{Type: TLVExtendedIPReachability, Value: encodeExtendedIPReach(v4, false)})
	}
	if len(v6) > 0 {
		tlvs = append(tlvs, TLV{Type: TLVIPv6Reachability, Value: encodeExtendedIPReach(v6, true)})
	}

	lsp := &LSP{
		RemainingLifetime: uint16(MaxAge / time.Second),
		LSPID:             LSPID{SystemID: inst.NET},
		SequenceNumber:    seq,
		CircuitType:       CircuitLevel12,
		TLVs:              tlvs,
	}
	inst.flooder[level].Originate(lsp)
	inst.runSPF(level)
}

// NeighborIfindex returns the circuit an up neighbor was heard on, used
// by the daemon's onRoute glue to turn a RouteResult's NextHopSystems
// into RIB nexthops. spec.md §4.5's SPF output triple is
// {outgoing-interface, neighbor-IP, neighbor-system-id}; neighbor-IP is
// not tracked here since circuits forward by MAC/SNPA rather than by IP
// address (this instance's Neighbor has no L3 address field), so only
// the outgoing interface is resolvable at this layer — L3 next-hop
// address resolution for the outgoing frame is left to the kernel's own
// neighbor discovery once the route is installed.
func (inst *Instance) NeighborIfindex(sysID SystemID) (int, bool) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	for ifindex, nbrs := range inst.neighbors {
		for _, n := range nbrs {
			if n.SystemID == sysID && n.State == NfsmUp {
				return ifindex, true
			}
		}
	}
	return 0, false
}

func (inst *Instance) collectAdjacencies(level Level) []Adjacency {
	var out []Adjacency
	for ifindex, nbrs := range inst.neighbors {
		c := inst.circuits[ifindex]
		for _, n := range nbrs {
			if n.Level != level || n.State != NfsmUp {
				continue
			}
			out = append(out, Adjacency{Neighbor: n.SystemID, Metric: c.Metric})
		}
	}
	return out
}

// runSPF recomputes reachability for level and reports every resolved
// prefix through onRoute.
func (inst *Instance) runSPF(level Level) {
	graph := BuildGraph(inst.lsdb[level].All())
	results := RunSPF(inst.NET, graph)
	spfRuns.WithLabelValues(level.String()).Inc()

	if inst.onRoute == nil {
		return
	}

	newReachable := make(map[netip.Prefix]struct{})
	for sysID, prefixes := range graph.Prefixes {
		r, ok := results[sysID]
		if !ok || sysID == inst.NET {
			continue
		}
		hops := make([]SystemID, 0, len(r.NextHops))
		for h := range r.NextHops {
			hops = append(hops, h)
		}
		for _, p := range prefixes {
			newReachable[p.Prefix] = struct{}{}
			inst.onRoute(RouteResult{
				Prefix:         p.Prefix,
				Level:          level,
				Metric:         r.Distance + p.Metric,
				NextHopSystems: hops,
			})
		}
	}

	for prefix := range inst.lastReachable[level] {
		if _, still := newReachable[prefix]; !still {
			inst.onRoute(RouteResult{Prefix: prefix, Level: level, Withdrawn: true})
		}
	}
	inst.lastReachable[level] = newReachable
}

// AgeAndSweep runs the periodic LSDB maintenance pass: mark expirations
// and purge zero-age entries past their retention window.
func (inst *Instance) AgeAndSweep() {
	for _, level := range []Level{Level1, Level2} {
		inst.lsdb[level].MarkExpired()
		inst.lsdb[level].Sweep()
	}
}

// checkHoldTimers expires any neighbor whose hold-timer has lapsed,
// tearing down the adjacency and flushing its contribution from the
// owning circuit's self-originated LSP (spec.md §3 "expiry transitions
// to Down and flushes neighbor's contribution"; §7 "hold-timer expiry is
// non-fatal and simply tears down the adjacency").
func (inst *Instance) checkHoldTimers() {
	inst.mu.Lock()
	type levelKey struct {
		ifindex int
		level   Level
	}
	touched := map[levelKey]bool{}
	for ifindex, nbrs := range inst.neighbors {
		for _, n := range nbrs {
			if n.CheckHoldTimer() {
				touched[levelKey{ifindex, n.Level}] = true
			}
		}
	}
	for k := range touched {
		inst.applyNeighborChangeLocked(k.ifindex, k.level)
	}
	inst.mu.Unlock()

	for k := range touched {
		inst.Originate(k.level)
	}
}

// Run drives hello, flood/database-sync, and aging timers and the
// receive loop for every registered circuit until ctx is cancelled.
func (inst *Instance) Run(ctx context.Context) error {
	ageTicker := time.NewTicker(10 * time.Second)
	defer ageTicker.Stop()
	floodTicker := time.NewTicker(time.Second)
	defer floodTicker.Stop()
	csnpTicker := time.NewTicker(csnpInterval)
	defer csnpTicker.Stop()
	refreshTicker := time.NewTicker(lspRefreshInterval)
	defer refreshTicker.Stop()

	inst.mu.Lock()
	circuits := make([]*Circuit, 0, len(inst.circuits))
	for _, c := range inst.circuits {
		circuits = append(circuits, c)
	}
	inst.mu.Unlock()

	for _, c := range circuits {
		go inst.runCircuitReceive(ctx, c)
		go inst.runCircuitHello(ctx, c)
	}

	for _, level := range []Level{Level1, Level2} {
		inst.Originate(level)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ageTicker.C:
			inst.AgeAndSweep()
			inst.checkHoldTimers()
		case <-floodTicker.C:
			inst.drainFloods(circuits)
		case <-csnpTicker.C:
			inst.sendDISCSNPs(circuits)
		case <-refreshTicker.C:
			for _, level := range []Level{Level1, Level2} {
				inst.Originate(level)
			}
		}
	}
}

// drainFloods transmits every LSP queued (SRM) for each circuit and
// requests (SSN) any LSPs a neighbor's CSNP/PSNP indicated we lack, per
// spec.md §4.5's "flooding is driven by per-LSP SRM/SSN flags per
// circuit".
func (inst *Instance) drainFloods(circuits []*Circuit) {
	for _, c := range circuits {
		inst.mu.Lock()
		levels := make([]Level, 0, len(inst.clstates[c.Ifindex]))
		for level := range inst.clstates[c.Ifindex] {
			levels = append(levels, level)
		}
		inst.mu.Unlock()

		for _, level := range levels {
			f := inst.flooder[level]
			lspPDU := PDULSPL1
			psnpPDU := PDUPSNPL1
			if level == Level2 {
				lspPDU = PDULSPL2
				psnpPDU = PDUPSNPL2
			}
			for _, lsp := range f.PendingFloods(c.Ifindex) {
				if err := c.Send(lspPDU, lsp.Encode(lspPDU)); err != nil {
					inst.logger.Warn("isis: flood LSP failed", zap.String("ifname", c.Ifname), zap.Error(err))
				}
			}
			if ids := f.PendingRequests(c.Ifindex); len(ids) > 0 {
				psnp := BuildPSNP(inst.NET, inst.lsdb[level], ids)
				if err := c.Send(psnpPDU, psnp.EncodePSNP(level)); err != nil {
					inst.logger.Warn("isis: send PSNP failed", zap.String("ifname", c.Ifname), zap.Error(err))
				}
			}
		}
	}
}

// sendDISCSNPs sends a full CSNP on every broadcast circuit this
// instance is DIS for (spec.md §4.5 "the DIS periodically sends CSNPs
// enumerating the LSDB"); point-to-point circuits rely on PSNP exchange
// instead and are skipped here.
func (inst *Instance) sendDISCSNPs(circuits []*Circuit) {
	for _, c := range circuits {
		if c.LinkType != LinkBroadcast {
			continue
		}
		inst.mu.Lock()
		var isDIS bool
		var levels []Level
		for level, cls := range inst.clstates[c.Ifindex] {
			if cls.IsDIS {
				isDIS = true
				levels = append(levels, level)
			}
		}
		inst.mu.Unlock()
		if !isDIS {
			continue
		}
		for _, level := range levels {
			pduType := PDUCSNPL1
			if level == Level2 {
				pduType = PDUCSNPL2
			}
			csnp := BuildCSNP(inst.NET, inst.lsdb[level])
			if err := c.Send(pduType, csnp.EncodeCSNP(level)); err != nil {
				inst.logger.Warn("isis: send CSNP failed", zap.String("ifname", c.Ifname), zap.Error(err))
			}
		}
	}
}

func (inst *Instance) runCircuitHello(ctx context.Context, c *Circuit) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(helloJitter(c.HelloInterval)):
			inst.sendHello(c)
		}
	}
}

func (inst *Instance) sendHello(c *Circuit) {
	pduType := PDUIIHLAN
	if c.LinkType == LinkPointToPoint {
		pduType = PDUIIHP2P
	}

	inst.mu.Lock()
	macs := make([][6]byte, 0, len(inst.neighbors[c.Ifindex]))
	for _, n := range inst.neighbors[c.Ifindex] {
		macs = append(macs, n.MAC)
	}
	inst.mu.Unlock()

	var tlvs []TLV
	if len(macs) > 0 {
		tlvs = append(tlvs, TLV{Type: TLVISNeighbors, Value: encodeISNeighbors(macs)})
	}

	iih := &IIH{
		LinkType:    c.LinkType,
		SourceID:    inst.NET,
		HoldingTime: uint16(c.HelloInterval.Seconds()) * uint16(c.HelloMultiple),
		Priority:    c.Priority,
		TLVs:        tlvs,
	}
	if err := c.Send(pduType, iih.Encode(pduType)); err != nil {
		inst.logger.Warn("isis: send hello failed", zap.String("ifname", c.Ifname), zap.Error(err))
	}
}

func (inst *Instance) runCircuitReceive(ctx context.Context, c *Circuit) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pduType, body, src, err := c.Recv()
		if err != nil {
			malformedPDUs.WithLabelValues(c.Ifname).Inc()
			continue
		}
		level := Level1
		if pduType == PDULSPL2 || pduType == PDUCSNPL2 || pduType == PDUPSNPL2 {
			level = Level2
		}
		switch v := body.(type) {
		case *IIH:
			inst.ReceiveIIH(c.Ifindex, v, src)
		case *LSP:
			inst.ReceiveLSP(c.Ifindex, level, v)
		case *SNP:
			if pduType == PDUCSNPL1 || pduType == PDUCSNPL2 {
				inst.ReceiveCSNP(c.Ifindex, level, v)
			} else {
				inst.ReceivePSNP(c.Ifindex, level, v)
			}
		}
	}
}
