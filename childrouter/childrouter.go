// Package childrouter implements the child router of spec.md §4.5:
// the remote worker's network front-end, running one receive task
// (root -> local input queue) and one send task (local output queue
// -> root), tracking the child's local work-in-flight weight.
package childrouter

import (
	"context"
	"io"
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

const parentPeerID = 0

// Router is the child's router instance.
type Router struct {
	itemSize int
	w        int

	transport *transport.Transport
	inQueue   *winqueue.Queue // receive task pushes here; the local flowgraph consumes it
	outQueue  *winqueue.Queue // the local flowgraph produces here; send task pops it

	inFlight ratomic.Int32
	shutdown ratomic.Bool

	metrics *metrics.Set
}

// New constructs a child router. t must already be connected to the
// parent (transport.ConnectAsChild).
func New(t *transport.Transport, itemSize, w int, inQueue, outQueue *winqueue.Queue, m *metrics.Set) *Router {
	return &Router{transport: t, itemSize: itemSize, w: w, inQueue: inQueue, outQueue: outQueue, metrics: m}
}

// Run starts the receive and send tasks and blocks until both exit,
// via golang.org/x/sync/errgroup (an aistore dependency), mirroring
// the "one thread each, joined at teardown" shape of spec.md §4.5.
func (r *Router) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.receiveLoop(ctx) })
	g.Go(func() error { return r.sendLoop(ctx) })
	return g.Wait()
}

// Close signals shutdown and closes the transport, which unblocks any
// in-flight blocking socket read (spec.md §5: "shutdown interrupts the
// blocking read ... by closing the socket").
func (r *Router) Close() error {
	r.shutdown.Store(true)
	return r.transport.Close()
}

func (r *Router) receiveLoop(ctx context.Context) error {
	for !r.shutdown.Load() {
		hdr, err := r.transport.RecvHeader(parentPeerID)
		if err != nil {
			if err == io.EOF {
				nlog.Infoln("childrouter: parent closed connection")
				return nil
			}
			nlog.Errorf("childrouter: recv header: %v", err)
			return err
		}
		switch hdr.Kind {
		case wire.KindData:
			payload, err := r.transport.RecvPayload(parentPeerID, int(hdr.Size), r.itemSize)
			if err != nil {
				nlog.Errorf("childrouter: recv payload: %v", err)
				return err
			}
			rec := window.NewData(hdr.Index, payload, r.itemSize)
			r.pushBlocking(r.inQueue, rec)
			subwindows := int32(int(hdr.Size) / r.w)
			nv := r.inFlight.Add(subwindows)
			if r.metrics != nil {
				r.metrics.GlobalInFlight.Set(float64(nv))
			}

		case wire.KindKill:
			r.pushBlocking(r.inQueue, window.NewKill())
			// Per spec.md §4.5: "continue to allow shutdown to propagate" —
			// the send task is the one that forwards the ack and flips
			// shutdown; this loop just keeps reading until the parent
			// closes the socket.

		default:
			nlog.Warningf("childrouter: unsupported/reserved kind %v from parent, ignoring", hdr.Kind)
		}
	}
	return nil
}

func (r *Router) sendLoop(ctx context.Context) error {
	for {
		if r.shutdown.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, ok := r.outQueue.Pop()
		if !ok {
			time.Sleep(backoff.PollSleep)
			continue
		}

		switch rec.Kind {
		case window.Data:
			weight := uint32(r.inFlight.Load())
			if err := r.sendDataReturn(rec, weight); err != nil {
				nlog.Errorf("childrouter: send data return: %v", err)
				return err
			}
			subwindows := int32(int(rec.Size) / r.w)
			nv := r.inFlight.Add(-subwindows)
			if r.metrics != nil {
				r.metrics.GlobalInFlight.Set(float64(nv))
			}

		case window.Kill:
			if err := r.transport.SendHeader(parentPeerID, wire.Header{Kind: wire.KindKillAck}); err != nil {
				nlog.Errorf("childrouter: send kill-ack: %v", err)
				return err
			}
			r.shutdown.Store(true)
			return nil

		default:
			nlog.Warningf("childrouter: unexpected local record kind %v, dropping", rec.Kind)
		}
	}
}

func (r *Router) sendDataReturn(rec *window.Record, weight uint32) error {
	hdr := wire.Header{Kind: wire.KindDataReturn, Index: rec.Index, Size: rec.Size}
	if err := r.transport.SendHeader(parentPeerID, hdr); err != nil {
		return err
	}
	if err := r.transport.SendPayload(parentPeerID, rec.Payload, r.itemSize); err != nil {
		return err
	}
	return r.transport.SendWeight(parentPeerID, weight)
}

// pushBlocking delivers rec to q, retrying until accepted (spec.md
// §4.5: "push to in_queue (blocking with retry)").
func (r *Router) pushBlocking(q *winqueue.Queue, rec *window.Record) {
	for !q.Push(rec) {
		time.Sleep(backoff.PushSleep)
	}
}
