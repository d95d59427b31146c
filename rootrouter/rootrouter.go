// Package rootrouter implements the root router of spec.md §4.6: it
// distributes DATA records from the input queue across N children by
// current weight, collects returned DATA records into the output
// queue, and maintains per-child and global weight.
package rootrouter

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/windowrouter/router/internal/backoff"
	"github.com/windowrouter/router/internal/nlog"
	"github.com/windowrouter/router/internal/ratomic"
	"github.com/windowrouter/router/metrics"
	"github.com/windowrouter/router/transport"
	"github.com/windowrouter/router/window"
	"github.com/windowrouter/router/winqueue"
	"github.com/windowrouter/router/wire"
)

// Router is the root's router instance, owning N children.
type Router struct {
	n        int
	w        int
	itemSize int

	transport *transport.Transport
	inQueue   *winqueue.Queue
	outQueue  *winqueue.Queue

	weights        []ratomic.Int32
	globalInFlight ratomic.Int32
	nKilled        ratomic.Int32
	shutdown       ratomic.Bool

	// ThroughputLimit, when > 0, caps the sender's dispatch rate in
	// items/sec (spec.md §4.6 step 2, §6).
	throughputLimit float64
	sentItems       ratomic.Int64
	started         time.Time

	metrics *metrics.Set
}

func New(t *transport.Transport, n, w, itemSize int, inQueue, outQueue *winqueue.Queue, throughputLimit float64, m *metrics.Set) *Router {
	return &Router{
		transport:       t,
		n:               n,
		w:               w,
		itemSize:        itemSize,
		inQueue:         inQueue,
		outQueue:        outQueue,
		weights:         make([]ratomic.Int32, n),
		throughputLimit: throughputLimit,
		started:         time.Now(),
		metrics:         m,
	}
}

// Run starts the single shared sender task and the N per-child
// receiver tasks and blocks until they all exit.
func (r *Router) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.senderLoop(ctx) })
	for i := 0; i < r.n; i++ {
		i := i
		g.Go(func() error { r.receiverLoop(ctx, i); return nil })
	}
	return g.Wait()
}

func (r *Router) Close() error {
	r.shutdown.Store(true)
	return r.transport.Close()
}

// Weights returns a point-in-time snapshot of the per-child weight
// table, for the admin HTTP surface.
func (r *Router) Weights() []int32 {
	out := make([]int32, r.n)
	for i := range out {
		out[i] = r.weights[i].Load()
	}
	return out
}

func (r *Router) GlobalInFlight() int32 { return r.globalInFlight.Load() }

func (r *Router) senderLoop(ctx context.Context) error {
	for {
		if r.shutdown.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, ok := r.inQueue.Pop()
		if !ok {
			time.Sleep(backoff.PollSleep)
			continue
		}

		switch rec.Kind {
		case window.Data:
			r.throttle()
			target := r.argminWeight()
			if err := r.dispatch(target, rec); err != nil {
				nlog.Errorf("rootrouter: dispatch to child %d: %v (child considered lost, not re-routed)", target, err)
				continue
			}
			subwindows := int32(int(rec.Size) / r.w)
			r.weights[target].Add(subwindows)
			gv := r.globalInFlight.Add(subwindows)
			r.sentItems.Add(int64(rec.Size))
			if r.metrics != nil {
				r.metrics.WindowsDispatched.Inc()
				r.metrics.GlobalInFlight.Set(float64(gv))
				r.metrics.ChildWeight.WithLabelValues(childLabel(target)).Set(float64(r.weights[target].Load()))
			}

		case window.Kill:
			for i := 0; i < r.n; i++ {
				if err := r.transport.SendHeader(i, wire.Header{Kind: wire.KindKill}); err != nil {
					nlog.Errorf("rootrouter: broadcast kill to child %d: %v", i, err)
				}
			}
			return nil

		default:
			nlog.Warningf("rootrouter: unexpected record kind %v on input queue, dropping", rec.Kind)
		}
	}
}

// argminWeight picks the least-loaded child, ties broken by lowest
// index (spec.md §4.6: "Child selection").
func (r *Router) argminWeight() int {
	best := 0
	bestW := r.weights[0].Load()
	for i := 1; i < r.n; i++ {
		w := r.weights[i].Load()
		if w < bestW {
			best = i
			bestW = w
		}
	}
	return best
}

func (r *Router) dispatch(target int, rec *window.Record) error {
	hdr := wire.Header{Kind: wire.KindData, Index: rec.Index, Size: rec.Size}
	if err := r.transport.SendHeader(target, hdr); err != nil {
		return err
	}
	return r.transport.SendPayload(target, rec.Payload, r.itemSize)
}

// throttle sleeps until the sender's observed rate is at or below the
// configured throughput limit (spec.md §4.6 step 2).
func (r *Router) throttle() {
	if r.throughputLimit <= 0 {
		return
	}
	for {
		elapsed := time.Since(r.started).Seconds()
		if elapsed <= 0 {
			return
		}
		rate := float64(r.sentItems.Load()) / elapsed
		if rate <= r.throughputLimit {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// receiverLoop is child i's dedicated receive task. Fatal transport
// errors are logged and end only this task (spec.md §4.6: "child is
// considered lost"); they do not tear down the rest of the root.
func (r *Router) receiverLoop(ctx context.Context, i int) {
	for {
		if r.shutdown.Load() {
			return
		}
		hdr, err := r.transport.RecvHeader(i)
		if err != nil {
			nlog.Errorf("rootrouter: recv from child %d: %v (child considered lost)", i, err)
			return
		}

		switch hdr.Kind {
		case wire.KindDataReturn:
			payload, err := r.transport.RecvPayload(i, int(hdr.Size), r.itemSize)
			if err != nil {
				nlog.Errorf("rootrouter: recv payload from child %d: %v", i, err)
				return
			}
			weight, err := r.transport.RecvWeight(i)
			if err != nil {
				nlog.Errorf("rootrouter: recv weight from child %d: %v", i, err)
				return
			}
			rec := window.NewData(hdr.Index, payload, r.itemSize)
			r.pushBlocking(r.outQueue, rec)
			r.weights[i].Store(int32(weight)) // authoritative, per spec.md §4.6
			subwindows := int32(int(hdr.Size) / r.w)
			gv := r.globalInFlight.Add(-subwindows)
			if r.metrics != nil {
				r.metrics.WindowsReturned.Inc()
				r.metrics.GlobalInFlight.Set(float64(gv))
				r.metrics.ChildWeight.WithLabelValues(childLabel(i)).Set(float64(weight))
			}

		case wire.KindKillAck:
			n := r.nKilled.Inc()
			if r.metrics != nil {
				r.metrics.ChildrenKilled.Set(float64(n))
			}
			if int(n) == r.n {
				r.pushBlocking(r.outQueue, window.NewKill())
			}
			return

		default:
			nlog.Warningf("rootrouter: unexpected kind %v from child %d, ignoring", hdr.Kind, i)
		}
	}
}

func (r *Router) pushBlocking(q *winqueue.Queue, rec *window.Record) {
	for !q.Push(rec) {
		time.Sleep(backoff.PushSleep)
	}
}

func childLabel(i int) string { return strconv.Itoa(i) }
