// Package winqueue implements the bounded MPMC window queue of
// spec.md §4.2: a fixed-capacity lock-free queue of record handles,
// non-blocking push/pop, callers own the backoff policy.
//
// No lock-free queue library turned up anywhere in the retrieved
// pack (see DESIGN.md); this mirrors the shape of
// boost::lockfree::queue from original_source's NetworkInterface
// usage, reimplemented with the classic bounded-ring-of-cells
// algorithm (Vyukov) over sync/atomic instead of locks.
package winqueue

import (
	"sync/atomic"

	"github.com/windowrouter/router/window"
)

type cell struct {
	sequence uint64
	data     *window.Record
}

// Queue is a bounded, multi-producer multi-consumer queue of window
// record handles. Capacity is fixed at construction (spec.md §3: K).
type Queue struct {
	buf  []cell
	mask uint64 // len(buf) rounded up to a power of two, minus one

	// padding-free on purpose: contention here is low (one sender, one
	// or N receivers per router), matching spec.md §5's note that
	// queues need no external locking.
	enqueuePos uint64
	dequeuePos uint64
}

// New creates a queue with capacity at least `capacity` (nominal range
// 100-1025 per spec.md §3); internally rounded up to a power of two so
// index wraparound is a mask instead of a modulo.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	n := nextPow2(capacity)
	q := &Queue{buf: make([]cell, n), mask: uint64(n - 1)}
	for i := range q.buf {
		q.buf[i].sequence = uint64(i)
	}
	return q
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Cap reports the queue's actual (power-of-two) capacity.
func (q *Queue) Cap() int { return len(q.buf) }

// Push is the non-blocking producer operation of spec.md §4.2: returns
// false immediately if the queue is full. Callers apply the backoff
// policy (sleep 10us, retry up to 10 times, then buffer locally).
func (q *Queue) Push(rec *window.Record) bool {
	var c *cell
	pos := atomic.LoadUint64(&q.enqueuePos)
	for {
		c = &q.buf[pos&q.mask]
		seq := atomic.LoadUint64(&c.sequence)
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.enqueuePos, pos, pos+1) {
				goto claimed
			}
		case diff < 0:
			return false // full
		default:
			pos = atomic.LoadUint64(&q.enqueuePos)
		}
	}
claimed:
	c.data = rec
	atomic.StoreUint64(&c.sequence, pos+1)
	return true
}

// Pop is the non-blocking consumer operation of spec.md §4.2: returns
// ok=false immediately if the queue is empty. Callers sleep ~100us and
// retry indefinitely until shutdown.
func (q *Queue) Pop() (rec *window.Record, ok bool) {
	var c *cell
	pos := atomic.LoadUint64(&q.dequeuePos)
	for {
		c = &q.buf[pos&q.mask]
		seq := atomic.LoadUint64(&c.sequence)
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.dequeuePos, pos, pos+1) {
				goto claimed
			}
		case diff < 0:
			return nil, false // empty
		default:
			pos = atomic.LoadUint64(&q.dequeuePos)
		}
	}
claimed:
	rec = c.data
	c.data = nil
	atomic.StoreUint64(&c.sequence, pos+q.mask+1)
	return rec, true
}
