// Command root-router runs the producer-side half of the router:
// listens for N children and runs the root router between an input and
// an output window queue, dispatching windows by weight. This binary
// attaches no queue-sink or queue-source to those queues, so the
// --order and --preserve-index flags are parsed but have no effect.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/windowrouter/router/adminsrv"
	"github.com/windowrouter/router/config"
	"github.com/windowrouter/router/internal/nlog"
	"github.com/windowrouter/router/metrics"
	"github.com/windowrouter/router/rootrouter"
	"github.com/windowrouter/router/transport"
	"github.com/windowrouter/router/winqueue"
)

func main() {
	cfg := config.Default()
	var adminAddr string

	cmd := &cobra.Command{
		Use:   "root-router",
		Short: "Root side of the windowrouter work-dispatch router",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			nlog.SetVerbose(cfg.Verbose)
			return run(cfg, adminAddr)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on")
	flags.IntVar(&cfg.Children, "children", cfg.Children, "number of children to accept")
	flags.IntVar(&cfg.Window, "window", cfg.Window, "items per window (W)")
	flags.IntVar(&cfg.ItemSize, "item-size", cfg.ItemSize, "bytes per opaque stream item")
	flags.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "bounded window-queue capacity")
	flags.BoolVar(&cfg.PreserveIndex, "preserve-index", cfg.PreserveIndex, "honor upstream \"i\" index tags")
	flags.BoolVar(&cfg.Order, "order", cfg.Order, "emit windows in strict index order")
	flags.Float64Var(&cfg.ThroughputLimit, "throughput-limit", cfg.ThroughputLimit, "cap dispatch rate in items/sec (0 = unlimited)")
	flags.BoolVar(&cfg.Compression, "compression", cfg.Compression, "enable LZ4 payload compression")
	flags.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "debug-level logging")
	flags.StringVar(&adminAddr, "admin-addr", ":9090", "admin/metrics HTTP listen address")

	if err := cmd.Execute(); err != nil {
		nlog.Errorln(err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, adminAddr string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	nlog.WithField("run_id", runID).Infoln("root-router starting")

	inQueue := winqueue.New(cfg.QueueCapacity)
	outQueue := winqueue.New(cfg.QueueCapacity)

	t := transport.NewRoot(cfg.Children, cfg.Compression)
	if err := t.ConnectAsRoot(ctx, cfg.Port); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewRootSet(reg, runID)

	router := rootrouter.New(t, cfg.Children, cfg.Window, cfg.ItemSize, inQueue, outQueue, cfg.ThroughputLimit, m)

	admin := adminsrv.New(adminAddr, router, reg)
	go func() {
		if err := admin.ListenAndServe(); err != nil {
			nlog.Warningf("root-router: admin server stopped: %v", err)
		}
	}()

	errc := make(chan error, 1)
	go func() { errc <- router.Run(ctx) }()

	select {
	case <-ctx.Done():
		nlog.Infoln("root-router: shutting down")
		_ = router.Close()
		_ = admin.Shutdown()
		return nil
	case err := <-errc:
		_ = admin.Shutdown()
		return err
	}
}
