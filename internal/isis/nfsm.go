package isis

import "time"

// NfsmEvent drives the neighbor finite state machine (spec.md §4.5).
type NfsmEvent int

const (
	NfsmEventHelloReceived NfsmEvent = iota
	NfsmEventHoldTimerExpired
	NfsmEventDown
)

// Neighbor is one adjacency on a circuit. State transitions are computed
// by nfsmNext, a pure (state, event) -> state' function; Neighbor itself
// only holds the fields the transition function and timers need.
type Neighbor struct {
	SystemID   SystemID
	MAC        [6]byte
	Circuit    *Circuit
	Level      Level
	State      NfsmState
	Priority   uint8
	LANID      LSPID
	HoldTime   time.Duration
	LastHello  time.Time

	// two-way check: the neighbor's IIH must list our own SNPA (the
	// circuit's MAC) among its reported neighbors (broadcast circuits only; spec.md §4.5 "no
	// SNPA/two-way check on point-to-point circuits").
	sawUsListed bool
}

// nfsmNext computes the next NFSM state for event. It returns only the
// new state; ReceiveHello compares it with the current one to report
// whether the adjacency changed (so callers know to flood/re-run SPF).
func nfsmNext(current NfsmState, event NfsmEvent, twoWay bool, linkType LinkType) NfsmState {
	switch event {
	case NfsmEventDown, NfsmEventHoldTimerExpired:
		return NfsmDown
	case NfsmEventHelloReceived:
		if linkType == LinkPointToPoint || twoWay {
			return NfsmUp
		}
		if current == NfsmDown {
			return NfsmInit
		}
		return current
	default:
		return current
	}
}

// ReceiveHello applies an inbound IIH to the neighbor, running the
// two-way check (broadcast only) before computing the next state.
// neighborsListed reports whether mac (our own SNPA) appears in the
// peer's IS Neighbors TLV.
func (n *Neighbor) ReceiveHello(iih *IIH, neighborsListed func(mac [6]byte) bool) (changed bool) {
	n.LastHello = now()
	n.Priority = iih.Priority
	n.LANID = iih.LANID
	twoWay := n.Circuit.LinkType == LinkPointToPoint || (neighborsListed != nil && neighborsListed(n.Circuit.HWAddr))
	n.sawUsListed = twoWay

	next := nfsmNext(n.State, NfsmEventHelloReceived, twoWay, n.Circuit.LinkType)
	changed = next != n.State
	n.State = next
	return changed
}

// CheckHoldTimer returns true (and transitions to Down) if no hello has
// arrived within HoldTime of LastHello.
func (n *Neighbor) CheckHoldTimer() bool {
	if n.State == NfsmDown {
		return false
	}
	if now().Sub(n.LastHello) <= n.HoldTime {
		return false
	}
	n.State = nfsmNext(n.State, NfsmEventHoldTimerExpired, false, n.Circuit.LinkType)
	return true
}
