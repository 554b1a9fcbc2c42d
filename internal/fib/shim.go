package fib

import (
	"context"

	"go.uber.org/zap"
)

// Shim drives a Platform: it consumes outbound RouteOp/GroupOp/AddrOp
// deltas from the RIB, acks the result back, and republishes inbound
// KernelEvents. It owns no protocol state of its own (spec.md §5: the
// shim is a bridge, not an owner).
type Shim struct {
	platform Platform
	logger   *zap.Logger

	routeOps chan RouteOp
	groupOps chan GroupOp
	addrOps  chan AddrOp
	acks     chan Ack
}

func NewShim(platform Platform, logger *zap.Logger) *Shim {
	return &Shim{
		platform: platform,
		logger:   logger,
		routeOps: make(chan RouteOp, 256),
		groupOps: make(chan GroupOp, 256),
		addrOps:  make(chan AddrOp, 256),
		acks:     make(chan Ack, 256),
	}
}

func (s *Shim) RouteOps() chan<- RouteOp { return s.routeOps }
func (s *Shim) GroupOps() chan<- GroupOp { return s.groupOps }
func (s *Shim) AddrOps() chan<- AddrOp   { return s.addrOps }
func (s *Shim) Acks() <-chan Ack         { return s.acks }
func (s *Shim) KernelEvents() <-chan KernelEvent { return s.platform.Events() }

// Run drives the outbound queues until ctx is cancelled, then closes the
// platform and returns. Ops still queued at cancellation are neither
// applied nor acked; the queues are not drained.
func (s *Shim) Run(ctx context.Context) error {
	if err := s.platform.Resync(); err != nil {
		s.logger.Warn("fib: initial resync failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return s.platform.Close()
		case op := <-s.routeOps:
			err := s.platform.ApplyRoute(op)
			if err != nil {
				s.logger.Error("fib: route op failed", zap.Any("op", op.Op), zap.String("prefix", op.Prefix.String()), zap.Error(err))
			}
			s.acks <- Ack{Prefix: op.Prefix, Err: err}
		case op := <-s.groupOps:
			if err := s.platform.ApplyGroup(op); err != nil {
				s.logger.Error("fib: group op failed", zap.Uint32("kernel_id", op.KernelID), zap.Error(err))
			}
		case op := <-s.addrOps:
			if err := s.platform.ApplyAddr(op); err != nil {
				s.logger.Error("fib: addr op failed", zap.String("prefix", op.Prefix.String()), zap.Error(err))
			}
		}
	}
}

// Reconnect re-runs the platform's full resync. Nothing in the daemon
// calls it: Linux's netlink subscription does not report a lost socket,
// so a lost rtnetlink socket is neither detected nor reconnected here.
func (s *Shim) Reconnect() error {
	return s.platform.Resync()
}
