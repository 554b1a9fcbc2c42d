package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeDeltaStaticRoute(t *testing.T) {
	req := &DeltaRequest{
		Kind:    "static_route",
		Op:      "add",
		Payload: `{"Prefix":"203.0.113.0/24","Nexthop":"192.0.2.1","Metric":5}`,
	}
	d, err := decodeDelta(req)
	require.NoError(t, err)
	require.Equal(t, OpAdd, d.Op)
	require.Equal(t, KindStaticRoute, d.Kind)
	require.NotNil(t, d.StaticRoute)
	require.Equal(t, "203.0.113.0/24", d.StaticRoute.Prefix.String())
	require.EqualValues(t, 5, d.StaticRoute.Metric)
}

func TestDecodeDeltaBGPNeighborDelete(t *testing.T) {
	req := &DeltaRequest{
		Kind:    "bgp_neighbor",
		Op:      "delete",
		Payload: `{"Address":"192.0.2.2","PeerAS":65002}`,
	}
	d, err := decodeDelta(req)
	require.NoError(t, err)
	require.Equal(t, OpDelete, d.Op)
	require.Equal(t, KindBGPNeighbor, d.Kind)
	require.EqualValues(t, 65002, d.BGPNeighbor.PeerAS)
}

func TestDecodeDeltaUnknownOp(t *testing.T) {
	_, err := decodeDelta(&DeltaRequest{Kind: "static_route", Op: "frob"})
	require.Error(t, err)
}

func TestDecodeDeltaUnknownKind(t *testing.T) {
	_, err := decodeDelta(&DeltaRequest{Kind: "frob", Op: "add"})
	require.Error(t, err)
}

func TestDecodeDeltaMalformedPayload(t *testing.T) {
	_, err := decodeDelta(&DeltaRequest{Kind: "static_route", Op: "add", Payload: "not json"})
	require.Error(t, err)
}
