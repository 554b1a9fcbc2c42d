package config

import (
	"fmt"

	"git.apache.org/thrift.git/lib/go/thrift"
	"go.uber.org/zap"
)

// StartServer opens a thrift TSimpleServer on addr and serves config
// deltas until it errors or is stopped, the same bring-up shape as
// internal/show.StartServer (and every teacher daemon's rpc.StartServer)
// on its own port — this process runs two thrift listeners rather than
// multiplexing both RPCs on one, mirroring how the teacher's suite runs
// one rpc.StartServer per daemon rather than one shared across bgpd/
// ribd/ospfd.
func StartServer(logger *zap.Logger, applier Applier, addr string) error {
	protocolFactory := thrift.NewTBinaryProtocolFactoryDefault()
	transportFactory := thrift.NewTBufferedTransportFactory(8192)

	serverTransport, err := thrift.NewTServerSocket(addr)
	if err != nil {
		return fmt.Errorf("config: listen %s: %w", addr, err)
	}

	processor := NewProcessor(applier)
	server := thrift.NewTSimpleServer4(processor, serverTransport, transportFactory, protocolFactory)

	logger.Info("config RPC server listening", zap.String("addr", addr))
	return server.Serve()
}
