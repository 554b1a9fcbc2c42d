package isis

import "sort"

// csnpEntries builds the sorted LSPEntry list for a CSNP describing the
// full LSDB (spec.md §4.5: "the DIS periodically sends CSNPs enumerating
// the LSDB in sorted lsp-id ranges"); encodeLSPEntryTLVs splits it at
// MaxLSPEntriesPerTLV when the PDU is assembled.
func csnpEntries(lsdb *LSDB) []LSPEntry {
	lsps := lsdb.All()
	entries := make([]LSPEntry, 0, len(lsps))
	for _, lsp := range lsps {
		entries = append(entries, LSPEntry{
			RemainingLifetime: lsp.RemainingLifetime,
			LSPID:             lsp.LSPID,
			SequenceNumber:    lsp.SequenceNumber,
			Checksum:          lsp.Checksum,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].LSPID.Less(entries[j].LSPID) })
	return entries
}

// BuildCSNP assembles the SNP body the DIS (or the sole P2P peer) sends
// periodically to summarize the whole database.
func BuildCSNP(sourceID SystemID, lsdb *LSDB) *SNP {
	entries := csnpEntries(lsdb)
	s := &SNP{SourceID: sourceID, Entries: entries}
	if len(entries) > 0 {
		s.Start = entries[0].LSPID
		s.End = entries[len(entries)-1].LSPID
	}
	return s
}

// ReconcileCSNP compares a received CSNP against the local LSDB and sets
// SRM (we have something newer the peer lacks) / SSN (the peer has
// something newer we lack, request it via PSNP) on ifindex, per spec.md
// §4.5's database-synchronization rule. Local LSPs inside the CSNP's
// range that the CSNP didn't list are missing at the peer and must be
// flooded too.
func ReconcileCSNP(f *Flooder, snp *SNP, ifindex int) {
	remote := make(map[LSPID]LSPEntry, len(snp.Entries))
	for _, e := range snp.Entries {
		remote[e.LSPID] = e
	}

	for _, local := range f.lsdb.All() {
		re, present := remote[local.LSPID]
		switch {
		case !present:
			if !local.LSPID.Less(snp.Start) && !snp.End.Less(local.LSPID) {
				// Missing from the peer's summary despite falling
				// inside its range: the peer lacks it, flood it.
				f.lsdb.SetSRM(local.LSPID, ifindex, true)
			}
		case re.SequenceNumber > local.SequenceNumber ||
			(re.SequenceNumber == local.SequenceNumber && re.Checksum != local.Checksum && re.RemainingLifetime > 0 && local.RemainingLifetime == 0):
			f.lsdb.SetSSN(local.LSPID, ifindex, true)
		case re.SequenceNumber < local.SequenceNumber:
			f.lsdb.SetSRM(local.LSPID, ifindex, true)
		}
	}
	for id, re := range remote {
		if _, ok := f.lsdb.Get(id); !ok {
			_ = re
			f.lsdb.SetSSN(id, ifindex, true)
		}
	}
}

// ReconcilePSNP handles an incoming PSNP: an ack for LSPs we sent (clear
// SRM) or an implicit request for ones the peer lacks (set SRM so the
// next flood pass retransmits them).
func ReconcilePSNP(f *Flooder, snp *SNP, ifindex int) {
	for _, e := range snp.Entries {
		local, ok := f.lsdb.Get(e.LSPID)
		if !ok {
			continue
		}
		if local.SequenceNumber > e.SequenceNumber {
			f.lsdb.SetSRM(e.LSPID, ifindex, true)
		} else {
			f.lsdb.SetSRM(e.LSPID, ifindex, false)
		}
	}
}

// BuildPSNP assembles a PSNP acknowledging/requesting the LSPIDs queued
// via SetSSN for ifindex (point-to-point circuits use PSNP in place of
// periodic CSNP, per spec.md §4.5).
func BuildPSNP(sourceID SystemID, lsdb *LSDB, ids []LSPID) *SNP {
	entries := make([]LSPEntry, 0, len(ids))
	for _, id := range ids {
		if lsp, ok := lsdb.Get(id); ok {
			entries = append(entries, LSPEntry{
				RemainingLifetime: lsp.RemainingLifetime,
				LSPID:             lsp.LSPID,
				SequenceNumber:    lsp.SequenceNumber,
				Checksum:          lsp.Checksum,
			})
		}
	}
	return &SNP{SourceID: sourceID, Entries: entries}
}
