package config

import (
	"encoding/json"
	"fmt"

	"git.apache.org/thrift.git/lib/go/thrift"
)

// DeltaRequest/DeltaResponse are the config-ingestion counterpart of
// internal/show's ShowRequest/ShowResponse: a genuine thrift struct
// envelope (hand-written Write/Read against thrift.TProtocol, field IDs
// 1 to 3) carrying one JSON-marshaled Delta per call, for the same
// reason show takes this shape — one generated struct per Delta kind
// with no IDL compiler available buys nothing over a single envelope
// plus encoding/json (spec.md §6).
type DeltaRequest struct {
	Kind    string
	Op      string
	Payload string
}

func (r *DeltaRequest) Write(oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin("DeltaRequest"); err != nil {
		return err
	}
	if err := oprot.WriteFieldBegin("kind", thrift.STRING, 1); err != nil {
		return err
	}
	if err := oprot.WriteString(r.Kind); err != nil {
		return err
	}
	if err := oprot.WriteFieldEnd(); err != nil {
		return err
	}
	if err := oprot.WriteFieldBegin("op", thrift.STRING, 2); err != nil {
		return err
	}
	if err := oprot.WriteString(r.Op); err != nil {
		return err
	}
	if err := oprot.WriteFieldEnd(); err != nil {
		return err
	}
	if err := oprot.WriteFieldBegin("payload", thrift.STRING, 3); err != nil {
		return err
	}
	if err := oprot.WriteString(r.Payload); err != nil {
		return err
	}
	if err := oprot.WriteFieldEnd(); err != nil {
		return err
	}
	if err := oprot.WriteFieldStop(); err != nil {
		return err
	}
	return oprot.WriteStructEnd()
}

func (r *DeltaRequest) Read(iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(); err != nil {
		return err
	}
	for {
		_, ftype, id, err := iprot.ReadFieldBegin()
		if err != nil {
			return err
		}
		if ftype == thrift.STOP {
			break
		}
		switch id {
		case 1:
			if r.Kind, err = iprot.ReadString(); err != nil {
				return err
			}
		case 2:
			if r.Op, err = iprot.ReadString(); err != nil {
				return err
			}
		case 3:
			if r.Payload, err = iprot.ReadString(); err != nil {
				return err
			}
		default:
			if err := iprot.Skip(ftype); err != nil {
				return err
			}
		}
		if err := iprot.ReadFieldEnd(); err != nil {
			return err
		}
	}
	return iprot.ReadStructEnd()
}

// DeltaResponse carries only an error string; a successful apply
// returns it empty, mirroring ShowResponse's shape.
type DeltaResponse struct {
	Error string
}

func (r *DeltaResponse) Write(oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin("DeltaResponse"); err != nil {
		return err
	}
	if err := oprot.WriteFieldBegin("error", thrift.STRING, 1); err != nil {
		return err
	}
	if err := oprot.WriteString(r.Error); err != nil {
		return err
	}
	if err := oprot.WriteFieldEnd(); err != nil {
		return err
	}
	if err := oprot.WriteFieldStop(); err != nil {
		return err
	}
	return oprot.WriteStructEnd()
}

func (r *DeltaResponse) Read(iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(); err != nil {
		return err
	}
	for {
		_, ftype, id, err := iprot.ReadFieldBegin()
		if err != nil {
			return err
		}
		if ftype == thrift.STOP {
			break
		}
		if id == 1 {
			if r.Error, err = iprot.ReadString(); err != nil {
				return err
			}
		} else if err := iprot.Skip(ftype); err != nil {
			return err
		}
		if err := iprot.ReadFieldEnd(); err != nil {
			return err
		}
	}
	return iprot.ReadStructEnd()
}

// decodeDelta rebuilds a typed Delta from a DeltaRequest's Kind/Payload,
// the inverse of whatever external collaborator encodes one per
// "/routing/.../..." YANG path (spec.md §6).
func decodeDelta(req *DeltaRequest) (Delta, error) {
	var d Delta
	switch req.Op {
	case "add":
		d.Op = OpAdd
	case "delete":
		d.Op = OpDelete
	case "change":
		d.Op = OpChange
	default:
		return d, fmt.Errorf("config: unknown delta op %q", req.Op)
	}
	switch req.Kind {
	case "static_route":
		d.Kind = KindStaticRoute
		d.StaticRoute = &StaticRoute{}
		return d, unmarshal(req.Payload, d.StaticRoute)
	case "interface_addr":
		d.Kind = KindInterfaceAddr
		d.InterfaceAddr = &InterfaceAddr{}
		return d, unmarshal(req.Payload, d.InterfaceAddr)
	case "isis_instance":
		d.Kind = KindISISInstance
		d.ISISInstance = &ISISInstance{}
		return d, unmarshal(req.Payload, d.ISISInstance)
	case "isis_circuit":
		d.Kind = KindISISCircuit
		d.ISISCircuit = &ISISCircuit{}
		return d, unmarshal(req.Payload, d.ISISCircuit)
	case "bgp_global":
		d.Kind = KindBGPGlobal
		d.BGPGlobal = &BGPGlobal{}
		return d, unmarshal(req.Payload, d.BGPGlobal)
	case "bgp_neighbor":
		d.Kind = KindBGPNeighbor
		d.BGPNeighbor = &BGPNeighbor{}
		return d, unmarshal(req.Payload, d.BGPNeighbor)
	default:
		return d, fmt.Errorf("config: unknown delta kind %q", req.Kind)
	}
}

func unmarshal(payload string, v any) error {
	return json.Unmarshal([]byte(payload), v)
}
