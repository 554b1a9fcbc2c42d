package isis

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtendedISReachRoundTrip(t *testing.T) {
	adjs := []Adjacency{
		{Neighbor: SystemID{1, 1, 1, 1, 1, 1}, Metric: 10},
		{Neighbor: SystemID{2, 2, 2, 2, 2, 2}, Metric: 20},
	}
	got := decodeExtendedISReach(encodeExtendedISReach(adjs))
	require.Equal(t, adjs, got)
}

func TestExtendedIPReachRoundTripV4(t *testing.T) {
	reach := []Reachability{
		{Prefix: netip.MustParsePrefix("10.0.0.0/24"), Metric: 10},
		{Prefix: netip.MustParsePrefix("192.0.2.1/32"), Metric: 5},
	}
	got := decodeExtendedIPReach(encodeExtendedIPReach(reach, false), false)
	require.Equal(t, reach, got)
}

func TestExtendedIPReachRoundTripV6(t *testing.T) {
	reach := []Reachability{
		{Prefix: netip.MustParsePrefix("2001:db8::/32"), Metric: 10},
	}
	got := decodeExtendedIPReach(encodeExtendedIPReach(reach, true), true)
	require.Equal(t, reach, got)
}

func TestRunSPFECMP(t *testing.T) {
	root := SystemID{1}
	a := SystemID{2}
	b := SystemID{3}
	dst := SystemID{4}
	graph := &LSPGraph{
		Adjacencies: map[SystemID][]Adjacency{
			root: {{Neighbor: a, Metric: 10}, {Neighbor: b, Metric: 10}},
			a:    {{Neighbor: dst, Metric: 10}},
			b:    {{Neighbor: dst, Metric: 10}},
		},
	}
	result := RunSPF(root, graph)
	require.Equal(t, uint32(20), result[dst].Distance)
	require.Len(t, result[dst].NextHops, 2)
	require.Contains(t, result[dst].NextHops, a)
	require.Contains(t, result[dst].NextHops, b)
}

func TestRunSPFSinglePath(t *testing.T) {
	root := SystemID{1}
	mid := SystemID{2}
	dst := SystemID{3}
	graph := &LSPGraph{
		Adjacencies: map[SystemID][]Adjacency{
			root: {{Neighbor: mid, Metric: 5}},
			mid:  {{Neighbor: dst, Metric: 5}},
		},
	}
	result := RunSPF(root, graph)
	require.Equal(t, uint32(10), result[dst].Distance)
	require.Len(t, result[dst].NextHops, 1)
	require.Contains(t, result[dst].NextHops, mid)
}
