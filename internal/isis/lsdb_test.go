package isis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sysID(b byte) SystemID { return SystemID{b, b, b, b, b, b} }

func TestLSDBHigherSequenceWins(t *testing.T) {
	d := NewLSDB(Level1, nil)
	id := LSPID{SystemID: sysID(1)}

	ok := d.Install(&LSP{LSPID: id, SequenceNumber: 5, RemainingLifetime: 1000}, false)
	require.True(t, ok)

	ok = d.Install(&LSP{LSPID: id, SequenceNumber: 3, RemainingLifetime: 1000}, false)
	require.False(t, ok, "lower sequence number must not replace")

	ok = d.Install(&LSP{LSPID: id, SequenceNumber: 6, RemainingLifetime: 1000}, false)
	require.True(t, ok)

	got, ok := d.Get(id)
	require.True(t, ok)
	require.Equal(t, uint32(6), got.SequenceNumber)
}

func TestLSDBPurgeBeatsEqualSequenceNonPurge(t *testing.T) {
	d := NewLSDB(Level1, nil)
	id := LSPID{SystemID: sysID(2)}

	d.Install(&LSP{LSPID: id, SequenceNumber: 5, RemainingLifetime: 1000}, false)
	ok := d.Install(&LSP{LSPID: id, SequenceNumber: 5, RemainingLifetime: 0}, false)
	require.True(t, ok, "a purge at the same sequence number must win")

	got, _ := d.Get(id)
	require.Equal(t, uint16(0), got.RemainingLifetime)
}

func TestLSDBAgeingExpiresLifetime(t *testing.T) {
	d := NewLSDB(Level1, nil)
	id := LSPID{SystemID: sysID(3)}
	d.Install(&LSP{LSPID: id, SequenceNumber: 1, RemainingLifetime: 5}, false)

	base := time.Now()
	now = func() time.Time { return base.Add(10 * time.Second) }
	defer func() { now = time.Now }()

	got, _ := d.Get(id)
	require.Equal(t, uint16(0), got.RemainingLifetime)
}

func TestLSDBSweepRemovesAfterZeroAgeWindow(t *testing.T) {
	d := NewLSDB(Level1, nil)
	id := LSPID{SystemID: sysID(4)}
	d.Install(&LSP{LSPID: id, SequenceNumber: 1, RemainingLifetime: 0}, false)

	base := time.Now()
	now = func() time.Time { return base }
	removed := d.Sweep()
	require.Empty(t, removed)

	now = func() time.Time { return base.Add(ZeroAgeLifetime + time.Second) }
	defer func() { now = time.Now }()
	removed = d.Sweep()
	require.Equal(t, []LSPID{id}, removed)

	_, ok := d.Get(id)
	require.False(t, ok)
}

func TestLSDBSRMSSNFlags(t *testing.T) {
	d := NewLSDB(Level1, nil)
	id := LSPID{SystemID: sysID(5)}
	d.Install(&LSP{LSPID: id, SequenceNumber: 1, RemainingLifetime: 1000}, false)

	d.SetSRM(id, 7, true)
	require.Equal(t, []LSPID{id}, d.PendingSRM(7))
	require.Empty(t, d.PendingSRM(8))

	d.SetSRM(id, 7, false)
	require.Empty(t, d.PendingSRM(7))

	d.SetSSN(id, 7, true)
	require.Equal(t, []LSPID{id}, d.PendingSSN(7))
}

func TestLSDBOnChangeFiresOnInstall(t *testing.T) {
	var changed []LSPID
	d := NewLSDB(Level2, func(id LSPID) { changed = append(changed, id) })
	id := LSPID{SystemID: sysID(6)}
	d.Install(&LSP{LSPID: id, SequenceNumber: 1, RemainingLifetime: 1000}, false)
	require.Equal(t, []LSPID{id}, changed)
}
