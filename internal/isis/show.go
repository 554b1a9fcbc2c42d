package isis

// Read-only accessors feeding internal/show's "show isis ..." handlers
// (spec.md §6). Interfaces and Adjacencies take inst.mu the same way the
// mutating handlers do; Database, Graph and Routes rely only on the
// LSDB's own lock.

// InterfaceSummary is one circuit's per-level state, for "show isis
// interface".
type InterfaceSummary struct {
	Ifname string
	Type   CircuitType
	Level  Level
	State  IfsmState
	IsDIS  bool
}

// Interfaces returns every circuit's per-level IFSM state.
func (inst *Instance) Interfaces() []InterfaceSummary {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	var out []InterfaceSummary
	for ifindex, byLevel := range inst.clstates {
		c := inst.circuits[ifindex]
		for level, cls := range byLevel {
			out = append(out, InterfaceSummary{
				Ifname: c.Ifname,
				Type:   c.Type,
				Level:  level,
				State:  cls.State,
				IsDIS:  cls.IsDIS,
			})
		}
	}
	return out
}

// AdjacencySummary is one neighbor relationship, for "show isis
// adjacency".
type AdjacencySummary struct {
	SystemID SystemID
	Ifname   string
	Level    Level
	State    NfsmState
	Priority uint8
	HoldTime float64 // the neighbor's configured hold time in seconds, not the time remaining
}

// Adjacencies returns every neighbor across every circuit and level.
func (inst *Instance) Adjacencies() []AdjacencySummary {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	var out []AdjacencySummary
	for ifindex, nbrs := range inst.neighbors {
		c := inst.circuits[ifindex]
		for _, n := range nbrs {
			out = append(out, AdjacencySummary{
				SystemID: n.SystemID,
				Ifname:   c.Ifname,
				Level:    n.Level,
				State:    n.State,
				Priority: n.Priority,
				HoldTime: n.HoldTime.Seconds(),
			})
		}
	}
	return out
}

// Summary is the per-level LSDB/adjacency/circuit count for "show isis
// summary".
type Summary struct {
	NET        SystemID
	Level      Level
	LSPCount   int
	AdjUpCount int
	Circuits   int
}

// Summaries returns one Summary per level.
func (inst *Instance) Summaries() []Summary {
	inst.mu.Lock()
	circuits := len(inst.circuits)
	inst.mu.Unlock()

	var out []Summary
	for _, level := range []Level{Level1, Level2} {
		inst.mu.Lock()
		adjUp := len(inst.collectAdjacencies(level))
		inst.mu.Unlock()
		out = append(out, Summary{
			NET:        inst.NET,
			Level:      level,
			LSPCount:   len(inst.lsdb[level].All()),
			AdjUpCount: adjUp,
			Circuits:   circuits,
		})
	}
	return out
}

// Database returns every LSP currently held at level, for "show isis
// database".
func (inst *Instance) Database(level Level) []*LSP {
	return inst.lsdb[level].All()
}

// Graph rebuilds the SPF input graph at level without running Dijkstra,
// for "show isis graph" (a topology dump, not a route table).
func (inst *Instance) Graph(level Level) *LSPGraph {
	return BuildGraph(inst.lsdb[level].All())
}

// RouteEntry is one SPF-resolved prefix, for "show isis route".
type RouteEntry struct {
	Prefix   Reachability
	Level    Level
	Distance uint32
	NextHops []SystemID
}

// Routes recomputes SPF at level and returns every reachable prefix,
// mirroring runSPF's derivation without emitting onRoute callbacks —
// a show query must never mutate RIB state (spec.md §5).
func (inst *Instance) Routes(level Level) []RouteEntry {
	graph := BuildGraph(inst.lsdb[level].All())
	results := RunSPF(inst.NET, graph)

	var out []RouteEntry
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
			out = append(out, RouteEntry{
				Prefix:   Reachability{Prefix: p.Prefix, Metric: p.Metric},
				Level:    level,
				Distance: r.Distance + p.Metric,
				NextHops: hops,
			})
		}
	}
	return out
}
