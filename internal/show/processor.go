package show

import (
	"git.apache.org/thrift.git/lib/go/thrift"
)

// Processor implements thrift.TProcessor by hand: it reads the inbound
// message name itself and checks it against "Show" directly rather than building
// the processorMap[string]TProcessorFunction table generated code uses,
// since this service exposes exactly one RPC ("Show") (spec.md §6).
type Processor struct {
	handler *Handler
}

func NewProcessor(handler *Handler) *Processor {
	return &Processor{handler: handler}
}

func (p *Processor) Process(iprot, oprot thrift.TProtocol) (bool, thrift.TException) {
	name, _, seqID, err := iprot.ReadMessageBegin()
	if err != nil {
		return false, err
	}

	if name != "Show" {
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

	req := &ShowRequest{}
	if err := req.Read(iprot); err != nil {
		return false, err
	}
	if err := iprot.ReadMessageEnd(); err != nil {
		return false, err
	}

	resp := &ShowResponse{}
	payload, showErr := p.handler.Show(req.Command, req.Argument)
	if showErr != nil {
		resp.Error = showErr.Error()
	} else {
		resp.Payload = payload
	}

	if err := oprot.WriteMessageBegin("Show", thrift.REPLY, seqID); err != nil {
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
