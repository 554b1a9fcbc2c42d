package config

import "fmt"

// Applier is implemented by cmd/routingd's live wiring: one method per
// Delta kind, each responsible for translating the typed delta into
// whatever the owning component (RIB, IS-IS instance, BGP instance,
// link table) needs mutated. Kept as six single-purpose methods rather
// than one fat dispatcher method so a deployment missing a protocol
// (e.g. IS-IS disabled) can wire a no-op for just that slice, the same
// per-concern-interface habit internal/fib's Platform seam uses.
type Applier interface {
	ApplyStaticRoute(op Op, r *StaticRoute) error
	ApplyInterfaceAddr(op Op, a *InterfaceAddr) error
	ApplyISISInstance(op Op, i *ISISInstance) error
	ApplyISISCircuit(op Op, c *ISISCircuit) error
	ApplyBGPGlobal(op Op, g *BGPGlobal) error
	ApplyBGPNeighbor(op Op, n *BGPNeighbor) error
}

// Apply dispatches d to the matching Applier method.
func Apply(a Applier, d Delta) error {
	switch d.Kind {
	case KindStaticRoute:
		return a.ApplyStaticRoute(d.Op, d.StaticRoute)
	case KindInterfaceAddr:
		return a.ApplyInterfaceAddr(d.Op, d.InterfaceAddr)
	case KindISISInstance:
		return a.ApplyISISInstance(d.Op, d.ISISInstance)
	case KindISISCircuit:
		return a.ApplyISISCircuit(d.Op, d.ISISCircuit)
	case KindBGPGlobal:
		return a.ApplyBGPGlobal(d.Op, d.BGPGlobal)
	case KindBGPNeighbor:
		return a.ApplyBGPNeighbor(d.Op, d.BGPNeighbor)
	default:
		return fmt.Errorf("config: unhandled delta kind %d", d.Kind)
	}
}
