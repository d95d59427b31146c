package segsink

import (
	"testing"

	"github.com/windowrouter/router/internal/rtest"
	"github.com/windowrouter/router/window"
	"github.com/windowrouter/router/winqueue"
)

func TestConsumeSplitsIntoWindows(t *testing.T) {
	const itemSize, w = 4, 2
	q := winqueue.New(16)
	s := New(itemSize, w, q, false)

	// 3 windows' worth of items (6 items * 4 bytes).
	batch := make([]byte, 3*w*itemSize)
	for i := range batch {
		batch[i] = byte(i)
	}

	n := s.Consume(batch, nil)
	rtest.Fatalf(t, n == 6, "want 6 items consumed, got %d", n)

	for i := uint32(0); i < 3; i++ {
		rec, ok := q.Pop()
		rtest.Fatalf(t, ok, "expected window %d on the queue", i)
		rtest.Fatalf(t, rec.Kind == window.Data, "want a DATA record")
		rtest.Fatalf(t, rec.Index == i, "want index %d, got %d", i, rec.Index)
		rtest.Fatalf(t, len(rec.Payload) == w*itemSize, "want %d payload bytes, got %d", w*itemSize, len(rec.Payload))
	}
	_, ok := q.Pop()
	rtest.Fatalf(t, !ok, "queue should be empty after draining all 3 windows")
}

func TestConsumeHonorsPreserveIndexTags(t *testing.T) {
	const itemSize, w = 4, 1
	q := winqueue.New(16)
	s := New(itemSize, w, q, true)

	batch := make([]byte, 2*w*itemSize)
	tags := []IndexTag{{Offset: 0, Index: 100}, {Offset: 1, Index: 101}}

	n := s.Consume(batch, tags)
	rtest.Fatalf(t, n == 2, "want 2 items consumed, got %d", n)

	rec0, _ := q.Pop()
	rtest.Fatalf(t, rec0.Index == 100, "want preserved index 100, got %d", rec0.Index)
	rec1, _ := q.Pop()
	rtest.Fatalf(t, rec1.Index == 101, "want preserved index 101, got %d", rec1.Index)
}

func TestConsumeReturnsPartialCountOnBackpressure(t *testing.T) {
	const itemSize, w = 4, 1
	q := winqueue.New(2) // rounds up to 2, holds at most 2 windows
	s := New(itemSize, w, q, false)

	batch := make([]byte, 4*w*itemSize) // 4 windows, queue only fits 2
	n := s.Consume(batch, nil)
	rtest.Fatalf(t, n == 2, "want 2 items consumed before backpressure, got %d", n)

	// The unconsumed tail's first window is retried as s.pending on the
	// next call, draining once the consumer makes room.
	_, _ = q.Pop()
	_, _ = q.Pop()
	n2 := s.Consume(batch[2*itemSize:], nil)
	rtest.Fatalf(t, n2 > 0, "want forward progress once queue space frees up, got %d", n2)
}

func TestCloseEmitsKill(t *testing.T) {
	q := winqueue.New(4)
	s := New(4, 1, q, false)
	s.Close()

	rec, ok := q.Pop()
	rtest.Fatalf(t, ok, "expected a KILL record on close")
	rtest.Fatalf(t, rec.Kind == window.Kill, "want KILL, got %v", rec.Kind)
}
