package isis

import (
	"sync"
	"time"
)

// MaxAge bounds RemainingLifetime on origination; ZeroAgeLifetime is how
// long a purged (remaining-lifetime-zero) LSP is retained before removal,
// giving neighbors time to see the purge and re-flood it (spec.md §4.5
// "ageing/purge", the 60-second purge window).
const (
	MaxAge          = 1200 * time.Second
	ZeroAgeLifetime = 60 * time.Second
)

// lspEntry is one LSDB record: the decoded LSP plus local bookkeeping
// (received-at for ageing, SRM/SSN flooding flags keyed by circuit).
type lspEntry struct {
	lsp         *LSP
	receivedAt  time.Time
	ourOwn      bool
	zeroAgeAt   time.Time // set once RemainingLifetime hits 0
	srm         map[int]bool
	ssn         map[int]bool
}

// LSDB is one level's link-state database. An instance owns two (L1, L2).
type LSDB struct {
	mu      sync.Mutex
	level   Level
	entries map[LSPID]*lspEntry

	onChange func(id LSPID)
}

func NewLSDB(level Level, onChange func(id LSPID)) *LSDB {
	return &LSDB{
		level:    level,
		entries:  make(map[LSPID]*lspEntry),
		onChange: onChange,
	}
}

// newer reports whether candidate should replace existing: a higher
// sequence number always wins. At equal sequence numbers an incoming purge
// (remaining-lifetime=0) replaces a stored non-purge; otherwise the higher
// checksum wins, which lets a non-purge with a higher checksum replace a
// stored purge.
func newer(candidate, existing *LSP) bool {
	if existing == nil {
		return true
	}
	if candidate.SequenceNumber != existing.SequenceNumber {
		return candidate.SequenceNumber > existing.SequenceNumber
	}
	if candidate.RemainingLifetime == 0 && existing.RemainingLifetime != 0 {
		return true
	}
	return candidate.Checksum != existing.Checksum && candidate.Checksum > existing.Checksum
}

// Install applies an incoming (or self-originated) LSP if it is newer
// than what the database holds, returning whether it was accepted.
func (d *LSDB) Install(lsp *LSP, ourOwn bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.entries[lsp.LSPID]
	var existingLSP *LSP
	if ok {
		existingLSP = existing.lsp
	}
	if !newer(lsp, existingLSP) {
		return false
	}

	e := &lspEntry{
		lsp:        lsp,
		receivedAt: now(),
		ourOwn:     ourOwn,
		srm:        make(map[int]bool),
		ssn:        make(map[int]bool),
	}
	if lsp.RemainingLifetime == 0 {
		e.zeroAgeAt = now()
	}
	d.entries[lsp.LSPID] = e

	if d.onChange != nil {
		d.onChange(lsp.LSPID)
	}
	return true
}

// Get returns the stored LSP with its lifetime adjusted for elapsed time
// since receipt (self-originated entries are never aged down here — the
// origination loop re-originates them before MaxAge, per spec.md §4.5).
func (d *LSDB) Get(id LSPID) (*LSP, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[id]
	if !ok {
		return nil, false
	}
	return d.effectiveLSP(e), true
}

func (d *LSDB) effectiveLSP(e *lspEntry) *LSP {
	if e.ourOwn || e.lsp.RemainingLifetime == 0 {
		return e.lsp
	}
	elapsed := now().Sub(e.receivedAt)
	remaining := e.lsp.RemainingLifetime
	if elapsed >= time.Duration(remaining)*time.Second {
		cp := *e.lsp
		cp.RemainingLifetime = 0
		return &cp
	}
	cp := *e.lsp
	cp.RemainingLifetime -= uint16(elapsed / time.Second)
	return &cp
}

// All returns every entry's current (aged) LSP, used for SPF and CSNP
// generation.
func (d *LSDB) All() []*LSP {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*LSP, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, d.effectiveLSP(e))
	}
	return out
}

// Purge marks id for removal: sets RemainingLifetime to 0 and starts the
// ZeroAgeLifetime retention window (spec.md §4.5).
func (d *LSDB) Purge(id LSPID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[id]
	if !ok {
		return
	}
	cp := *e.lsp
	cp.RemainingLifetime = 0
	e.lsp = &cp
	e.zeroAgeAt = now()
	if d.onChange != nil {
		d.onChange(id)
	}
}

// Sweep removes every zero-age entry whose retention window has elapsed.
// Called periodically by the instance's ageing loop.
func (d *LSDB) Sweep() []LSPID {
	d.mu.Lock()
	defer d.mu.Unlock()
	var removed []LSPID
	now := now()
	for id, e := range d.entries {
		if e.lsp.RemainingLifetime == 0 && !e.zeroAgeAt.IsZero() && now.Sub(e.zeroAgeAt) >= ZeroAgeLifetime {
			delete(d.entries, id)
			removed = append(removed, id)
		}
		// Non-purged entries whose aged lifetime has reached zero begin
		// their own retention window on next access (effectiveLSP above
		// only mutates the returned copy, not the stored entry); the
		// ageing loop calls MarkExpired to transition them.
	}
	return removed
}

// MarkExpired transitions any entry whose aged RemainingLifetime has
// reached zero into the zero-age retention state, so Sweep can later
// reclaim it. Split from Sweep because aging is lazy (computed on read)
// while the zero-age transition must be recorded once, not recomputed.
func (d *LSDB) MarkExpired() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, e := range d.entries {
		if e.ourOwn || e.zeroAgeAt.IsZero() == false {
			continue
		}
		if now().Sub(e.receivedAt) >= time.Duration(e.lsp.RemainingLifetime)*time.Second {
			expired := *e.lsp
			expired.RemainingLifetime = 0
			e.lsp = &expired
			e.zeroAgeAt = now()
			if d.onChange != nil {
				d.onChange(id)
			}
		}
	}
}

// SetSRM and SetSSN mark or clear the send/request flooding flags for id
// on circuit ifindex (spec.md §4.5 "SRM/SSN flags drive flooding, not a
// retransmission queue per neighbor").
func (d *LSDB) SetSRM(id LSPID, ifindex int, set bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[id]; ok {
		e.srm[ifindex] = set
	}
}

func (d *LSDB) SetSSN(id LSPID, ifindex int, set bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[id]; ok {
		e.ssn[ifindex] = set
	}
}

// PendingSRM returns the LSPIDs with SRM set on ifindex, i.e. LSPs that
// must be flooded out that circuit.
func (d *LSDB) PendingSRM(ifindex int) []LSPID {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []LSPID
	for id, e := range d.entries {
		if e.srm[ifindex] {
			out = append(out, id)
		}
	}
	return out
}

func (d *LSDB) PendingSSN(ifindex int) []LSPID {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []LSPID
	for id, e := range d.entries {
		if e.ssn[ifindex] {
			out = append(out, id)
		}
	}
	return out
}

// now is a seam over time.Now so tests can control ageing
// deterministically by swapping it; production leaves it as time.Now.
var now = time.Now
