package link

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDuplicateAddrRejected(t *testing.T) {
	tbl := New(zap.NewNop())
	tbl.UpsertLink(1, "eth0", 1500, nil, Flags{Up: true, Running: true})

	p := netip.MustParsePrefix("192.0.2.1/24")
	require.NoError(t, tbl.AddAddr(1, p))
	require.Error(t, tbl.AddAddr(1, p))
}

func TestDistinctInterfacesSamePrefixCoexist(t *testing.T) {
	tbl := New(zap.NewNop())
	tbl.UpsertLink(1, "eth0", 1500, nil, Flags{Up: true})
	tbl.UpsertLink(2, "eth1", 1500, nil, Flags{Up: true})

	p := netip.MustParsePrefix("10.0.0.1/24")
	require.NoError(t, tbl.AddAddr(1, p))
	require.NoError(t, tbl.AddAddr(2, p))

	l1, _ := tbl.ByIndex(1)
	l2, _ := tbl.ByIndex(2)
	require.Contains(t, l1.V4Addrs, p.Masked())
	require.Contains(t, l2.V4Addrs, p.Masked())
}

func TestNameChangeReindexes(t *testing.T) {
	tbl := New(zap.NewNop())
	tbl.UpsertLink(3, "eth2", 1500, nil, Flags{})
	tbl.UpsertLink(3, "eth2renamed", 1500, nil, Flags{})

	_, ok := tbl.ByName("eth2")
	require.False(t, ok)
	l, ok := tbl.ByName("eth2renamed")
	require.True(t, ok)
	require.Equal(t, 3, l.Index)
}

func TestRemoveLinkEmitsWithdrawEvents(t *testing.T) {
	tbl := New(zap.NewNop())
	tbl.UpsertLink(4, "eth3", 1500, nil, Flags{})
	p := netip.MustParsePrefix("172.16.0.1/24")
	require.NoError(t, tbl.AddAddr(4, p))
	<-tbl.Events() // drain the add event

	tbl.RemoveLink(4)
	ev := <-tbl.Events()
	require.False(t, ev.Added)
	require.Equal(t, p.Masked(), ev.Prefix)
}
