package bgp

import (
	"net/netip"
	"sort"
)

// SelectBest runs the RFC 4271 §9.1.2 decision process tie-break chain
// over paths for one prefix and returns the winner, or nil if paths is
// empty. Grounded on teacher's pathsort.go sort.Interface-per-criterion
// idiom (ByPref/BySmallestAS/ByLowestOrigin/ByLowestBGPId), collapsed
// into one stable multi-key Less so each criterion only breaks ties
// left by the previous one — rather than teacher's separate full sorts
// per criterion, which independently reorder on every pass and lose
// the higher-precedence ordering by the time the last one runs. This
// also fixes two bugs present in pathsort.go: ByPref.Less and
// BySmallestAS.Less both compared b.Paths[i] against itself instead of
// against b.Paths[j], which made every pair "equal" and left the
// chain's first two, highest-precedence criteria inert.
func SelectBest(paths []*Path, metricTo IGPMetricFunc) *Path {
	if len(paths) == 0 {
		return nil
	}
	best := append([]*Path(nil), paths...)
	sort.SliceStable(best, func(i, j int) bool { return less(best[i], best[j], metricTo) })
	return best[0]
}

// IGPMetricFunc looks up the IGP metric of the selected route to addr, for
// criterion 7 below. Reselect passes rib.RIB.MetricTo; a nil func (as in
// most unit tests) simply skips the criterion, leaving paths tied on it.
type IGPMetricFunc func(addr netip.Addr) (uint32, bool)

// less reports whether a outranks b, evaluating each RFC 4271 §9.1.2.2
// criterion in turn and falling through to the next only on an exact
// tie, down to the lowest-peer-address criterion that guarantees a
// deterministic winner (teacher's ByLowestPeerAddress).
func less(a, b *Path, metricTo IGPMetricFunc) bool {
	if a.LocalPref != b.LocalPref {
		return a.LocalPref > b.LocalPref
	}
	if a.LocalOriginated != b.LocalOriginated {
		return a.LocalOriginated
	}
	if na, nb := a.NumASes(), b.NumASes(); na != nb {
		return na < nb
	}
	if a.Origin != b.Origin {
		return a.Origin < b.Origin
	}
	if a.PeerAS == b.PeerAS && a.MED != b.MED {
		return a.MED < b.MED
	}
	if aIBGP, bIBGP := a.IsIBGP(), b.IsIBGP(); aIBGP != bIBGP {
		return bIBGP // prefer the externally-learned path
	}
	if metricTo != nil && a.NextHop.IsValid() && b.NextHop.IsValid() {
		am, aok := metricTo(a.NextHop)
		bm, bok := metricTo(b.NextHop)
		if aok && bok && am != bm {
			return am < bm
		}
	}
	if a.RouterID.IsValid() && b.RouterID.IsValid() && a.RouterID != b.RouterID {
		return a.RouterID.Compare(b.RouterID) < 0
	}
	return a.PeerAddress.Compare(b.PeerAddress) < 0
}
