//go:build darwin

package fib

import (
	"errors"

	"go.uber.org/zap"
)

// ErrUnsupportedPlatform is returned by every Stub method except Events
// and Close, which return nil. spec.md §6
// names a macOS fallback (route sockets for link/address, a
// route-sockets library for FIB); it is out of the core's scope here —
// this stub only keeps the Platform seam buildable on darwin.
var ErrUnsupportedPlatform = errors.New("fib: platform not implemented")

type Stub struct{}

func NewLinux(logger *zap.Logger) (*Stub, error) { return &Stub{}, nil }

func (s *Stub) ApplyRoute(RouteOp) error         { return ErrUnsupportedPlatform }
func (s *Stub) ApplyGroup(GroupOp) error         { return ErrUnsupportedPlatform }
func (s *Stub) ApplyAddr(AddrOp) error           { return ErrUnsupportedPlatform }
func (s *Stub) Events() <-chan KernelEvent       { return nil }
func (s *Stub) Resync() error                    { return ErrUnsupportedPlatform }
func (s *Stub) Close() error                     { return nil }
