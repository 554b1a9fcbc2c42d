package isis

import (
	"container/heap"
	"net/netip"
)

// Adjacency is one directed edge out of an LSP: the reported neighbor
// system and the metric to reach it (spec.md §4.5 SPF input).
type Adjacency struct {
	Neighbor SystemID
	Metric   uint32
}

// Reachability is one IP prefix an LSP originates, carried in its
// extended IP reachability TLVs.
type Reachability struct {
	Prefix netip.Prefix
	Metric uint32
}

// LSPGraph is the SPF input extracted from a level's LSDB: each system's
// adjacencies and originated prefixes.
type LSPGraph struct {
	Adjacencies map[SystemID][]Adjacency
	Prefixes    map[SystemID][]Reachability
}

// SPFResult is one system's shortest-path distance and the set of
// next-hop systems that achieve it (more than one means ECMP, spec.md
// §4.5 "SPF... merges equal-cost paths").
type SPFResult struct {
	Distance uint32
	NextHops map[SystemID]struct{}
}

type spfQueueItem struct {
	id       SystemID
	distance uint32
	index    int
}

type spfQueue []*spfQueueItem

func (q spfQueue) Len() int            { return len(q) }
func (q spfQueue) Less(i, j int) bool  { return q[i].distance < q[j].distance }
func (q spfQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index, q[j].index = i, j }
func (q *spfQueue) Push(x any)         { item := x.(*spfQueueItem); item.index = len(*q); *q = append(*q, item) }
func (q *spfQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// RunSPF computes shortest paths from root over graph using Dijkstra,
// merging equal-cost paths into NextHops rather than picking one
// arbitrarily (spec.md §4.5). First hops are carried forward during
// relaxation: a neighbor of root is its own first hop, and every other
// system inherits the first-hop set of its predecessor on each
// equal-cost shortest path.
func RunSPF(root SystemID, graph *LSPGraph) map[SystemID]*SPFResult {
	dist := map[SystemID]uint32{root: 0}
	nextHops := map[SystemID]map[SystemID]struct{}{root: {}}
	visited := map[SystemID]bool{}

	pq := &spfQueue{{id: root, distance: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*spfQueueItem)
		u := item.id
		if visited[u] {
			continue
		}
		visited[u] = true

		for _, adj := range graph.Adjacencies[u] {
			alt := dist[u] + adj.Metric
			existing, seen := dist[adj.Neighbor]

			var hops map[SystemID]struct{}
			if u == root {
				hops = map[SystemID]struct{}{adj.Neighbor: {}}
			} else {
				hops = cloneHops(nextHops[u])
			}

			switch {
			case !seen || alt < existing:
				dist[adj.Neighbor] = alt
				nextHops[adj.Neighbor] = hops
				heap.Push(pq, &spfQueueItem{id: adj.Neighbor, distance: alt})
			case alt == existing:
				for h := range hops {
					nextHops[adj.Neighbor][h] = struct{}{}
				}
			}
		}
	}

	out := make(map[SystemID]*SPFResult, len(dist))
	for id, d := range dist {
		out[id] = &SPFResult{Distance: d, NextHops: nextHops[id]}
	}
	return out
}

func cloneHops(in map[SystemID]struct{}) map[SystemID]struct{} {
	out := make(map[SystemID]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

// BuildGraph extracts an LSPGraph from a level's current LSDB contents,
// reading the extended reachability TLVs this instance writes (see
// instance.go's originate path for the matching encode side).
func BuildGraph(lsps []*LSP) *LSPGraph {
	g := &LSPGraph{
		Adjacencies: make(map[SystemID][]Adjacency),
		Prefixes:    make(map[SystemID][]Reachability),
	}
	for _, lsp := range lsps {
		if lsp.RemainingLifetime == 0 {
			continue // purged, excluded from the topology
		}
		sysID := lsp.LSPID.SystemID
		for _, tlv := range lsp.TLVs {
			switch tlv.Type {
			case TLVExtendedISReachability:
				g.Adjacencies[sysID] = append(g.Adjacencies[sysID], decodeExtendedISReach(tlv.Value)...)
			case TLVExtendedIPReachability:
				g.Prefixes[sysID] = append(g.Prefixes[sysID], decodeExtendedIPReach(tlv.Value, false)...)
			case TLVIPv6Reachability:
				g.Prefixes[sysID] = append(g.Prefixes[sysID], decodeExtendedIPReach(tlv.Value, true)...)
			}
		}
	}
	return g
}
