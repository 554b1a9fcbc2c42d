package config

import (
	"git.apache.org/thrift.git/lib/go/thrift"
)

// Processor implements thrift.TProcessor by hand for the single
// "ApplyDelta" RPC, the config-ingestion twin of internal/show's
// Processor — one switch arm instead of a generated processorMap,
// since no IDL compiler runs in this environment (spec.md §6).
type Processor struct {
	applier Applier
}

func NewProcessor(applier Applier) *Processor {
	return &Processor{applier: applier}
}

func (p *Processor) Process(iprot, oprot thrift.TProtocol) (bool, thrift.TException) {
	name, _, seqID, err := iprot.ReadMessageBegin()
	if err != nil {
		return false, err
	}

	if name != "ApplyDelta" {
		if err := iprot.Skip(thrift.STRUCT); err != nil {
			return false, err
		}
		if err := iprot.ReadMessageEnd(); err != nil {
			return false, err
		}
		exc := thrift.NewTApplicationException(thrift.UNKNOWN_METHOD, "Unknown function "+name)
		if err := p.writeException(oprot, name, seqID, exc); err != nil {
			return false, err
		}
		return false, exc
	}

	req := &DeltaRequest{}
	if err := req.Read(iprot); err != nil {
		return false, err
	}
	if err := iprot.ReadMessageEnd(); err != nil {
		return false, err
	}

	resp := &DeltaResponse{}
	if delta, err := decodeDelta(req); err != nil {
		resp.Error = err.Error()
	} else if err := Apply(p.applier, delta); err != nil {
		resp.Error = err.Error()
	}

	if err := oprot.WriteMessageBegin("ApplyDelta", thrift.REPLY, seqID); err != nil {
		return false, err
	}
	if err := resp.Write(oprot); err != nil {
		return false, err
	}
	if err := oprot.WriteMessageEnd(); err != nil {
		return false, err
	}
	return true, oprot.Flush()
}

func (p *Processor) writeException(oprot thrift.TProtocol, name string, seqID int32, exc thrift.TApplicationException) error {
	if err := oprot.WriteMessageBegin(name, thrift.EXCEPTION, seqID); err != nil {
		return err
	}
	if err := exc.Write(oprot); err != nil {
		return err
	}
	if err := oprot.WriteMessageEnd(); err != nil {
		return err
	}
	return oprot.Flush()
}
