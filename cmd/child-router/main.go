// Command child-router runs one remote worker: connects to a root,
// pulls DATA windows, runs them through the local flowgraph (here, an
// echo worker that moves each window unchanged from the input queue to
// the output queue, standing in for real work), and
// returns results with an authoritative weight footer.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/windowrouter/router/adminsrv"
	"github.com/windowrouter/router/childrouter"
	"github.com/windowrouter/router/config"
	"github.com/windowrouter/router/internal/backoff"
	"github.com/windowrouter/router/internal/nlog"
	"github.com/windowrouter/router/metrics"
	"github.com/windowrouter/router/transport"
	"github.com/windowrouter/router/winqueue"
)

func main() {
	cfg := config.Default()
	var (
		parentHost string
		adminAddr  string
	)

	cmd := &cobra.Command{
		Use:   "child-router",
		Short: "Child side of the windowrouter work-dispatch router",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if parentHost == "" {
				return errFlagRequired("parent-host")
			}
			nlog.SetVerbose(cfg.Verbose)
			return run(cfg, parentHost, adminAddr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&parentHost, "parent-host", "", "root router hostname or IP (required)")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "root router TCP port")
	flags.IntVar(&cfg.Window, "window", cfg.Window, "items per window (W)")
	flags.IntVar(&cfg.ItemSize, "item-size", cfg.ItemSize, "bytes per opaque stream item")
	flags.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "bounded window-queue capacity")
	flags.BoolVar(&cfg.Compression, "compression", cfg.Compression, "enable LZ4 payload compression")
	flags.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "debug-level logging")
	flags.StringVar(&adminAddr, "admin-addr", ":9091", "admin/metrics HTTP listen address")

	if err := cmd.Execute(); err != nil {
		nlog.Errorln(err)
		os.Exit(1)
	}
}

type errFlagRequired string

func (e errFlagRequired) Error() string { return "--" + string(e) + " is required" }

func run(cfg *config.Config, parentHost, adminAddr string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	nlog.WithField("run_id", runID).Infoln("child-router starting")

	inQueue := winqueue.New(cfg.QueueCapacity)
	outQueue := winqueue.New(cfg.QueueCapacity)

	t := transport.NewChild(cfg.Compression)
	if err := t.ConnectAsChild(ctx, parentHost, cfg.Port); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewChildSet(reg, runID)

	router := childrouter.New(t, cfg.ItemSize, cfg.Window, inQueue, outQueue, m)

	// Stand-in local flowgraph: echoes every received window straight
	// back onto the outbound queue, the simplest worker a child can run
	// while still exercising the full receive/weight/send path.
	go echoWorker(ctx, inQueue, outQueue)

	admin := adminsrv.New(adminAddr, nil, reg)
	go func() {
		if err := admin.ListenAndServe(); err != nil {
			nlog.Warningf("child-router: admin server stopped: %v", err)
		}
	}()

	errc := make(chan error, 1)
	go func() { errc <- router.Run(ctx) }()

	select {
	case <-ctx.Done():
		nlog.Infoln("child-router: shutting down")
		_ = router.Close()
		_ = admin.Shutdown()
		return nil
	case err := <-errc:
		_ = admin.Shutdown()
		return err
	}
}

func echoWorker(ctx context.Context, in, out *winqueue.Queue) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		rec, ok := in.Pop()
		if !ok {
			time.Sleep(backoff.PopSleep)
			continue
		}
		for !out.Push(rec) {
			select {
			case <-ctx.Done():
				return
			default:
			}
			time.Sleep(backoff.PushSleep)
		}
	}
}
