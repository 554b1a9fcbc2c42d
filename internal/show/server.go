package show

import (
	"fmt"

	"git.apache.org/thrift.git/lib/go/thrift"
	"go.uber.org/zap"
)

// StartServer opens a thrift TSimpleServer on addr and serves show
// queries until it errors or is stopped, in the same
// protocolFactory/transportFactory/TServerSocket shape as every teacher
// daemon's rpc.StartServer (bgp/rpc/rpc.go, ospf/rpc/rpc.go).
func StartServer(logger *zap.Logger, handler *Handler, addr string) error {
	protocolFactory := thrift.NewTBinaryProtocolFactoryDefault()
	transportFactory := thrift.NewTBufferedTransportFactory(8192)

	serverTransport, err := thrift.NewTServerSocket(addr)
	if err != nil {
		return fmt.Errorf("show: listen %s: %w", addr, err)
	}

	processor := NewProcessor(handler)
	server := thrift.NewTSimpleServer4(processor, serverTransport, transportFactory, protocolFactory)

	logger.Info("show RPC server listening", zap.String("addr", addr))
	return server.Serve()
}
