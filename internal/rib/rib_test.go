package rib

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openrouted/routingd/internal/rib/nexthop"
)

func newTestRIB() *RIB {
	return New(zap.NewNop(), DefaultDistances(), false, nil, nil)
}

// Scenario 1 (spec.md §8): static install directly reachable via a
// connected interface.
func TestStaticInstallDirectlyReachable(t *testing.T) {
	r := newTestRIB()

	connected := netip.MustParsePrefix("192.0.2.0/24")
	r.AddCandidate(connected, &Route{
		Source: SourceConnected, Distance: 0,
		Nexthop: nexthop.Direct(7, netip.Addr{}), InterfaceIndex: 7,
	})

	static := netip.MustParsePrefix("10.0.0.0/24")
	gw := netip.MustParseAddr("192.0.2.1")
	r.AddCandidate(static, &Route{
		Source: SourceStatic, Distance: 1,
		Nexthop: nexthop.Recursive(gw),
	})

	cands, ok := r.Candidates(static)
	require.True(t, ok)
	require.Len(t, cands, 1)
	require.True(t, cands[0].Flags.Selected)
	require.True(t, cands[0].Flags.Resolved)
	require.NotNil(t, cands[0].group)
	require.Equal(t, 7, cands[0].group.group.Children[0].Ifindex)
}

// Scenario 2 (spec.md §8): recursive resolution through a connected
// prefix, then withdrawal of the connected prefix unresolves the static
// route.
func TestRecursiveResolutionAndWithdraw(t *testing.T) {
	r := newTestRIB()

	connected := netip.MustParsePrefix("198.51.100.0/24")
	r.AddCandidate(connected, &Route{
		Source: SourceConnected, Distance: 0,
		Nexthop: nexthop.Direct(3, netip.Addr{}), InterfaceIndex: 3,
	})

	static := netip.MustParsePrefix("10.0.0.0/24")
	gw := netip.MustParseAddr("198.51.100.1")
	r.AddCandidate(static, &Route{
		Source: SourceStatic, Distance: 1,
		Nexthop: nexthop.Recursive(gw),
	})

	cands, _ := r.Candidates(static)
	require.True(t, cands[0].Flags.Resolved)

	r.WithdrawCandidate(connected, SourceConnected, 3)

	cands, _ = r.Candidates(static)
	require.False(t, cands[0].Flags.Resolved)
}

// Scenario 3 (spec.md §8): IS-IS ECMP merges two equal-metric candidates
// into one selected entry with two nexthops.
func TestISISECMPMerge(t *testing.T) {
	r := newTestRIB()

	// IS-IS's own per-prefix identity is keyed by source alone (it
	// resubmits its whole route set on every SPF run rather than one
	// candidate per nexthop), so the merge itself is exercised directly
	// via pickWinner against two equal-distance, equal-metric IS-IS
	// candidates.
	c1 := &Route{Source: SourceISIS, Distance: 115, Metric: 10, Nexthop: nexthop.Unicast(netip.MustParseAddr("10.1.1.1"), 1, 1, nil)}
	c2 := &Route{Source: SourceISIS, Distance: 115, Metric: 10, Nexthop: nexthop.Unicast(netip.MustParseAddr("10.1.1.2"), 2, 1, nil)}
	merged := r.v4.pickWinner([]*Route{c1, c2})
	require.Equal(t, nexthop.KindGroup, merged.Nexthop.Kind)
	require.Len(t, merged.Nexthop.Children, 2)
}

func TestPrefixCanonicalization(t *testing.T) {
	withHostBits := netip.MustParsePrefix("10.0.0.5/24")
	require.Equal(t, "10.0.0.0/24", Canonicalize(withHostBits).String())
}

func TestConnectedRoutesOnDistinctInterfacesCoexist(t *testing.T) {
	r := newTestRIB()
	prefix := netip.MustParsePrefix("10.1.1.0/30")

	r.AddCandidate(prefix, &Route{Source: SourceConnected, Nexthop: nexthop.Direct(1, netip.Addr{}), InterfaceIndex: 1})
	r.AddCandidate(prefix, &Route{Source: SourceConnected, Nexthop: nexthop.Direct(2, netip.Addr{}), InterfaceIndex: 2})

	cands, ok := r.Candidates(prefix)
	require.True(t, ok)
	require.Len(t, cands, 2)
}

func TestAtMostOneSelected(t *testing.T) {
	r := newTestRIB()
	prefix := netip.MustParsePrefix("10.2.2.0/24")

	r.AddCandidate(prefix, &Route{Source: SourceStatic, Distance: 1, Nexthop: nexthop.Direct(1, netip.Addr{})})
	r.AddCandidate(prefix, &Route{Source: SourceBGP, Distance: 20, Nexthop: nexthop.Direct(1, netip.Addr{})})

	cands, _ := r.Candidates(prefix)
	selectedCount := 0
	for _, c := range cands {
		if c.Flags.Selected {
			selectedCount++
		}
	}
	require.Equal(t, 1, selectedCount)
}
