package e2e_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/windowrouter/router/childrouter"
	"github.com/windowrouter/router/desegsrc"
	"github.com/windowrouter/router/internal/backoff"
	"github.com/windowrouter/router/rootrouter"
	"github.com/windowrouter/router/segsink"
	"github.com/windowrouter/router/transport"
	"github.com/windowrouter/router/winqueue"
)

// echoWorker stands in for a child's local flowgraph: it hands every
// received window straight back for return to root.
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
			time.Sleep(backoff.PushSleep)
		}
	}
}

var _ = Describe("single-child round trip", func() {
	const (
		itemSize = 4
		w        = 2
		port     = 19500
	)

	It("dispatches windows to one child, echoes them back, and propagates KILL end to end", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		rootT := transport.NewRoot(1, false)
		childT := transport.NewChild(false)

		connErr := make(chan error, 1)
		go func() { connErr <- rootT.ConnectAsRoot(ctx, port) }()
		time.Sleep(20 * time.Millisecond)
		Expect(childT.ConnectAsChild(ctx, "127.0.0.1", port)).To(Succeed())
		Expect(<-connErr).To(Succeed())

		rootIn := winqueue.New(16)
		rootOut := winqueue.New(16)
		childIn := winqueue.New(16)
		childOut := winqueue.New(16)

		rr := rootrouter.New(rootT, 1, w, itemSize, rootIn, rootOut, 0, nil)
		cr := childrouter.New(childT, itemSize, w, childIn, childOut, nil)

		go echoWorker(ctx, childIn, childOut)
		go func() { _ = rr.Run(ctx) }()
		go func() { _ = cr.Run(ctx) }()

		sink := segsink.New(itemSize, w, rootIn, false)
		src, err := desegsrc.New(itemSize, rootOut, false, false, 16)
		Expect(err).NotTo(HaveOccurred())
		defer src.Close()

		// 3 windows of 2 items * 4 bytes.
		batch := make([]byte, 3*w*itemSize)
		for i := range batch {
			batch[i] = byte(i)
		}
		n := sink.Consume(batch, nil)
		Expect(n).To(Equal(6))
		sink.Close()

		out := make([]byte, 0, len(batch))
		buf := make([]byte, 64)
		Eventually(func() bool {
			n, _, terminal := src.Pull(buf)
			if n > 0 {
				out = append(out, buf[:n]...)
			}
			return terminal
		}, 5*time.Second, time.Millisecond).Should(BeTrue())

		Expect(out).To(Equal(batch))
	})
})
