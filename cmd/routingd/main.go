// Command routingd is the daemon entrypoint: bootstrap config load,
// logger construction, construction of every C1-C7 component named in
// spec.md §2, and one errgroup supervising their Run loops until a
// signal requests shutdown. Generalized from the teacher's every
// <proto>/main.go (flag.String("params", ...), construct a logger,
// construct the server, start its rpc.StartServer) to a single process
// owning what the teacher split across bgpd/ribd/ospfd/arpd.
package main

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openrouted/routingd/internal/bgp"
	"github.com/openrouted/routingd/internal/bus"
	"github.com/openrouted/routingd/internal/config"
	"github.com/openrouted/routingd/internal/fib"
	"github.com/openrouted/routingd/internal/isis"
	"github.com/openrouted/routingd/internal/link"
	"github.com/openrouted/routingd/internal/logging"
	"github.com/openrouted/routingd/internal/rib"
	"github.com/openrouted/routingd/internal/show"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "routingd",
		Short: "multi-protocol routing daemon (RIB, IS-IS, BGP)",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "run the daemon until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configPath)
		},
	}
	run.Flags().StringVar(&configPath, "config", "/etc/routingd/routingd.toml", "bootstrap config file")
	root.AddCommand(run)
	return root
}

func runDaemon(configPath string) error {
	bs, err := config.LoadBootstrap(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(bs.LogLevel, bs.LogDev)
	if err != nil {
		return err
	}
	defer logger.Sync()

	routerID, err := netip.ParseAddr(bs.RouterID)
	if err != nil {
		return fmt.Errorf("routingd: router_id %q: %w", bs.RouterID, err)
	}

	linkTable := link.New(logging.Component(logger, "link"))

	platform, err := fib.NewLinux(logging.Component(logger, "fib"))
	if err != nil {
		return fmt.Errorf("routingd: fib platform: %w", err)
	}
	shim := fib.NewShim(platform, logging.Component(logger, "fib"))

	r := rib.New(logging.Component(logger, "rib"), rib.DefaultDistances(), bs.MultipathEnabled, linkTable, shim)

	publisher, err := bus.NewPublisher(bs.NanomsgPub, logging.Component(logger, "bus"))
	if err != nil {
		return fmt.Errorf("routingd: bus publisher: %w", err)
	}
	r.SetPublisher(publisher.Publish)

	isisLogger := logging.Component(logger, "isis")
	var netID isis.SystemID
	if bs.ISISNET != "" {
		netID, err = isis.ParseNET(bs.ISISNET)
		if err != nil {
			return fmt.Errorf("routingd: isis_net: %w", err)
		}
	}
	var isisInstance *isis.Instance
	isisInstance = isis.NewInstance(isisLogger, netID, true, isisRouteHandler(r, &isisInstance, isisLogger))

	bgpInstance := bgp.NewInstance(logging.Component(logger, "bgp"), bs.BGPLocalAS, routerID, r)

	showHandler := &show.Handler{RIB: r, ISIS: isisInstance, BGP: bgpInstance, Link: linkTable}

	configLogger := logging.Component(logger, "config")
	applier := &daemonApplier{
		logger: configLogger,
		rib:    r,
		isis:   isisInstance,
		bgp:    bgpInstance,
		link:   linkTable,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bgpListener, err := bgp.ListenAndServe(bs.BGPListenAddr, bgpInstance)
	if err != nil {
		return fmt.Errorf("routingd: bgp listener: %w", err)
	}
	defer bgpListener.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return shim.Run(gctx) })
	g.Go(func() error { return r.Run(gctx) })
	g.Go(func() error { return isisInstance.Run(gctx) })
	g.Go(func() error { return bgpInstance.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		return publisher.Close()
	})
	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- show.StartServer(logging.Component(logger, "show"), showHandler, bs.ThriftAddr) }()
		select {
		case <-gctx.Done():
			return nil
		case err := <-errCh:
			return err
		}
	})
	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- config.StartServer(configLogger, applier, bs.ConfigAddr) }()
		select {
		case <-gctx.Done():
			return nil
		case err := <-errCh:
			return err
		}
	})

	logger.Info("routingd started", zap.String("router_id", bs.RouterID))
	if err := g.Wait(); err != nil && gctx.Err() == nil {
		logger.Error("routingd exiting on fatal error", zap.Error(err))
		return err
	}
	logger.Info("routingd shut down")
	return nil
}
