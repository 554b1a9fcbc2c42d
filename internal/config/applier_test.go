package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingApplier struct {
	calls []string
}

func (a *recordingApplier) ApplyStaticRoute(op Op, r *StaticRoute) error {
	a.calls = append(a.calls, "static_route:"+op.String())
	return nil
}
func (a *recordingApplier) ApplyInterfaceAddr(op Op, addr *InterfaceAddr) error {
	a.calls = append(a.calls, "interface_addr:"+op.String())
	return nil
}
func (a *recordingApplier) ApplyISISInstance(op Op, i *ISISInstance) error {
	a.calls = append(a.calls, "isis_instance:"+op.String())
	return nil
}
func (a *recordingApplier) ApplyISISCircuit(op Op, c *ISISCircuit) error {
	a.calls = append(a.calls, "isis_circuit:"+op.String())
	return nil
}
func (a *recordingApplier) ApplyBGPGlobal(op Op, g *BGPGlobal) error {
	a.calls = append(a.calls, "bgp_global:"+op.String())
	return nil
}
func (a *recordingApplier) ApplyBGPNeighbor(op Op, n *BGPNeighbor) error {
	a.calls = append(a.calls, "bgp_neighbor:"+op.String())
	return nil
}

func TestApplyDispatchesToMatchingMethod(t *testing.T) {
	a := &recordingApplier{}

	require.NoError(t, Apply(a, Delta{Op: OpAdd, Kind: KindStaticRoute, StaticRoute: &StaticRoute{}}))
	require.NoError(t, Apply(a, Delta{Op: OpDelete, Kind: KindBGPNeighbor, BGPNeighbor: &BGPNeighbor{}}))
	require.NoError(t, Apply(a, Delta{Op: OpChange, Kind: KindISISCircuit, ISISCircuit: &ISISCircuit{}}))

	require.Equal(t, []string{"static_route:add", "bgp_neighbor:delete", "isis_circuit:change"}, a.calls)
}

func TestApplyUnknownKindErrors(t *testing.T) {
	a := &recordingApplier{}
	err := Apply(a, Delta{Kind: DeltaKind(99)})
	require.Error(t, err)
}
