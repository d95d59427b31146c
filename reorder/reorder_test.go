package reorder

import (
	"testing"

	"github.com/windowrouter/router/internal/rtest"
	"github.com/windowrouter/router/window"
)

func newBuffer(t *testing.T) *Buffer {
	t.Helper()
	b, err := New()
	rtest.CheckFatal(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestDrainReadyInOrder(t *testing.T) {
	b := newBuffer(t)
	b.Insert(window.NewData(0, []byte("a"), 1))
	b.Insert(window.NewData(1, []byte("b"), 1))
	b.Insert(window.NewData(2, []byte("c"), 1))

	out := b.DrainReady()
	rtest.Fatalf(t, len(out) == 3, "want 3 drained records, got %d", len(out))
	for i, rec := range out {
		rtest.Fatalf(t, rec.Index == uint32(i), "want index %d, got %d", i, rec.Index)
	}
	rtest.Fatalf(t, b.ExpectedNext() == 3, "want expected_next 3, got %d", b.ExpectedNext())
}

func TestDrainReadyStopsAtGap(t *testing.T) {
	b := newBuffer(t)
	b.Insert(window.NewData(0, nil, 1))
	b.Insert(window.NewData(2, nil, 1)) // gap at 1

	out := b.DrainReady()
	rtest.Fatalf(t, len(out) == 1, "want 1 drained record before the gap, got %d", len(out))
	rtest.Fatalf(t, b.Len() == 1, "want 1 record still pending, got %d", b.Len())

	b.Insert(window.NewData(1, nil, 1))
	out = b.DrainReady()
	rtest.Fatalf(t, len(out) == 2, "want 2 drained records once the gap fills, got %d", len(out))
	rtest.Fatalf(t, b.Empty(), "buffer should be empty after draining everything")
}

func TestInsertDropsDuplicateIndex(t *testing.T) {
	b := newBuffer(t)
	first := window.NewData(0, []byte("first"), 1)
	second := window.NewData(0, []byte("second"), 1)
	b.Insert(first)
	b.Insert(second)

	out := b.DrainReady()
	rtest.Fatalf(t, len(out) == 1, "want exactly 1 drained record, got %d", len(out))
	rtest.Fatalf(t, string(out[0].Payload) == "first", "want the first-received copy to win, got %q", out[0].Payload)
}

func TestInsertDropsAlreadyEmittedIndex(t *testing.T) {
	b := newBuffer(t)
	b.Insert(window.NewData(0, nil, 1))
	b.DrainReady()

	b.Insert(window.NewData(0, nil, 1)) // already past expected_next
	rtest.Fatalf(t, b.Empty(), "a re-delivered already-emitted index must not re-enter the buffer")
}
