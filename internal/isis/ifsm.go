package isis

import (
	"math/rand"
	"time"
)

// IfsmEvent drives the per-level interface state machine (spec.md §4.5).
type IfsmEvent int

const (
	IfsmEventCircuitUp IfsmEvent = iota
	IfsmEventCircuitDown
	IfsmEventNeighborChange
)

// ifsmNext is the interface FSM's pure transition function: Down only
// leaves on CircuitUp; once up, the circuit sits in Init until it has at
// least one Up neighbor on that level, after which it moves to Up. Losing
// every neighbor drops it back to Init rather than Down (the circuit
// itself is still administratively up).
func ifsmNext(current IfsmState, event IfsmEvent, hasUpNeighbor bool) IfsmState {
	switch event {
	case IfsmEventCircuitDown:
		return IfsmDown
	case IfsmEventCircuitUp:
		if current == IfsmDown {
			return IfsmInit
		}
		return current
	case IfsmEventNeighborChange:
		if current == IfsmDown {
			return current
		}
		if hasUpNeighbor {
			return IfsmUp
		}
		return IfsmInit
	default:
		return current
	}
}

// helloJitter returns HelloInterval scaled by a uniform ±25% factor
// (spec.md §4.5 "hello jitter ±25%"), avoiding synchronized hello bursts
// across circuits that came up together.
func helloJitter(interval time.Duration) time.Duration {
	factor := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(interval) * factor)
}

// CircuitLevelState tracks one (circuit, level) pair's IFSM plus DIS
// status, the unit the instance drives hello/CSNP timers against.
type CircuitLevelState struct {
	Circuit  *Circuit
	Level    Level
	State    IfsmState
	IsDIS    bool
	LANID    LSPID
}

// ApplyNeighborChange recomputes IFSM state from the circuit's current
// neighbor set and re-runs DIS election on broadcast circuits.
func (cls *CircuitLevelState) ApplyNeighborChange(neighbors []*Neighbor) {
	hasUp := false
	for _, n := range neighbors {
		if n.Level == cls.Level && n.State == NfsmUp {
			hasUp = true
			break
		}
	}
	cls.State = ifsmNext(cls.State, IfsmEventNeighborChange, hasUp)

	if cls.Circuit.LinkType == LinkBroadcast && cls.State == IfsmUp {
		cls.IsDIS = IsSelfDIS(cls.Circuit.Priority, cls.Circuit.HWAddr, neighbors, cls.Level)
	} else {
		cls.IsDIS = cls.Circuit.LinkType == LinkPointToPoint && cls.State == IfsmUp
	}
}
