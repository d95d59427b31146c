package winqueue

import (
	"sync"
	"testing"

	"github.com/windowrouter/router/internal/rtest"
	"github.com/windowrouter/router/window"
)

func TestNewRoundsCapacityUpToPowerOfTwo(t *testing.T) {
	q := New(100)
	rtest.Fatalf(t, q.Cap() == 128, "want capacity 128, got %d", q.Cap())
}

func TestPushPopFIFO(t *testing.T) {
	q := New(4)
	for i := uint32(0); i < 4; i++ {
		ok := q.Push(window.NewData(i, nil, 1))
		rtest.Fatalf(t, ok, "push %d should have succeeded into an empty queue", i)
	}
	rtest.Fatalf(t, !q.Push(window.NewData(99, nil, 1)), "push into a full queue should fail")

	for i := uint32(0); i < 4; i++ {
		rec, ok := q.Pop()
		rtest.Fatalf(t, ok, "pop %d should have succeeded", i)
		rtest.Fatalf(t, rec.Index == i, "want index %d, got %d", i, rec.Index)
	}
	_, ok := q.Pop()
	rtest.Fatalf(t, !ok, "pop from an empty queue should fail")
}

func TestPushPopConcurrentNoLoss(t *testing.T) {
	q := New(64)
	const n = 2000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := uint32(0); i < n; i++ {
			for !q.Push(window.NewData(i, nil, 1)) {
			}
		}
	}()

	seen := make([]bool, n)
	go func() {
		defer wg.Done()
		got := 0
		for got < n {
			rec, ok := q.Pop()
			if !ok {
				continue
			}
			seen[rec.Index] = true
			got++
		}
	}()

	wg.Wait()
	for i, ok := range seen {
		rtest.Fatalf(t, ok, "index %d was never observed by the consumer", i)
	}
}
