package isis

// Flooder drives the SRM/SSN flags of an LSDB across a set of circuits.
// It holds no protocol state of its own beyond the circuit set; the
// flags themselves live in the LSDB so a single source of truth answers
// "what must still go out this circuit" (spec.md §4.5 "flooding is
// driven by per-LSP SRM/SSN flags per circuit, not a retransmission
// queue per neighbor").
type Flooder struct {
	lsdb     *LSDB
	circuits map[int]*Circuit
}

func NewFlooder(lsdb *LSDB, circuits map[int]*Circuit) *Flooder {
	return &Flooder{lsdb: lsdb, circuits: circuits}
}

// ReceiveLSP applies an incoming LSP: install into the LSDB, and if
// accepted, set SRM on every circuit except the one it arrived on (split
// horizon) and clear it on the arrival circuit if that circuit already
// held it pending (the neighbor just told us it has it too).
func (f *Flooder) ReceiveLSP(lsp *LSP, fromCircuit int) {
	accepted := f.lsdb.Install(lsp, false)
	if !accepted {
		// Same or older instance: if our copy is strictly newer we must
		// flood our copy back out the arrival circuit (spec.md §4.5).
		if existing, ok := f.lsdb.Get(lsp.LSPID); ok && newer(existing, lsp) {
			f.lsdb.SetSRM(lsp.LSPID, fromCircuit, true)
		}
		return
	}
	for ifindex := range f.circuits {
		if ifindex == fromCircuit {
			f.lsdb.SetSRM(lsp.LSPID, fromCircuit, false)
			continue
		}
		f.lsdb.SetSRM(lsp.LSPID, ifindex, true)
	}
}

// Originate installs a locally-originated (or re-originated) LSP and
// floods it on every circuit.
func (f *Flooder) Originate(lsp *LSP) {
	f.lsdb.Install(lsp, true)
	for ifindex := range f.circuits {
		f.lsdb.SetSRM(lsp.LSPID, ifindex, true)
	}
}

// PendingFloods drains the set of LSPs that must go out ifindex right
// now, clearing SRM for each as it is handed to the caller for transmit.
func (f *Flooder) PendingFloods(ifindex int) []*LSP {
	ids := f.lsdb.PendingSRM(ifindex)
	out := make([]*LSP, 0, len(ids))
	for _, id := range ids {
		lsp, ok := f.lsdb.Get(id)
		if !ok {
			continue
		}
		out = append(out, lsp)
		f.lsdb.SetSRM(id, ifindex, false)
	}
	return out
}

// PendingRequests drains the set of LSPs this circuit still needs to
// request via PSNP (SSN set by CSNP/PSNP comparison in csnp.go).
func (f *Flooder) PendingRequests(ifindex int) []LSPID {
	ids := f.lsdb.PendingSSN(ifindex)
	for _, id := range ids {
		f.lsdb.SetSSN(id, ifindex, false)
	}
	return ids
}
