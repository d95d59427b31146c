// Package desegsrc implements the queue-source (desegmenter) of
// spec.md §4.4: it pops DATA records from a queue and emits their
// payloads as a contiguous downstream stream, optionally reordering
// by index and re-attaching the index as a stream tag.
package desegsrc

import (
	"time"

	"github.com/windowrouter/router/dupfilter"
	"github.com/windowrouter/router/internal/backoff"
	"github.com/windowrouter/router/internal/nlog"
	"github.com/windowrouter/router/reorder"
	"github.com/windowrouter/router/window"
	"github.com/windowrouter/router/winqueue"
)

// OutTag mirrors the in-process stream-tag protocol of spec.md §6:
// key "i", value the window index, attached to the first item of the
// window at the given item offset into the caller's buffer.
type OutTag struct {
	Key    string
	Value  uint64
	Offset int
}

// Source is the desegmenting queue-source. Not safe for concurrent
// Pull calls; owned by exactly one consuming goroutine.
type Source struct {
	itemSize      int
	queue         *winqueue.Queue
	preserveIndex bool
	order         bool

	reorderBuf *reorder.Buffer
	dup        *dupfilter.Filter

	readyQ   []*window.Record
	terminal bool
}

// New constructs a queue-source over queue, emitting itemSize-wide
// items. When order is set, a reorder buffer and duplicate-index
// filter are allocated (spec.md §4.4 Configuration options).
func New(itemSize int, queue *winqueue.Queue, preserveIndex, order bool, queueCapacity int) (*Source, error) {
	s := &Source{itemSize: itemSize, queue: queue, preserveIndex: preserveIndex, order: order}
	if order {
		rb, err := reorder.New()
		if err != nil {
			return nil, err
		}
		s.reorderBuf = rb
		s.dup = dupfilter.New(queueCapacity)
	}
	return s, nil
}

// Pull is one downstream-demand call (spec.md §4.4). It writes as many
// complete, in-order-if-configured window payloads as fit into buf,
// returns the number of bytes written, the "i" tags to attach at
// their offsets, and whether the stream has terminated (KILL observed).
func (s *Source) Pull(buf []byte) (n int, tags []OutTag, terminal bool) {
	if s.terminal && len(s.readyQ) == 0 {
		return 0, nil, true
	}
	if len(s.readyQ) == 0 {
		if !s.fill() {
			return 0, nil, false
		}
		if s.terminal {
			return 0, nil, true
		}
	}
	return s.drainInto(buf)
}

func (s *Source) drainInto(buf []byte) (n int, tags []OutTag, terminal bool) {
	for len(s.readyQ) > 0 {
		rec := s.readyQ[0]
		need := len(rec.Payload)
		if n+need > len(buf) {
			break
		}
		copy(buf[n:], rec.Payload)
		if s.preserveIndex {
			tags = append(tags, OutTag{Key: "i", Value: uint64(rec.Index), Offset: n / s.itemSize})
		}
		n += need
		s.readyQ = s.readyQ[1:]
	}
	return n, tags, false
}

// fill pops one record and, if it resolves to at least one
// ready-to-emit window, appends to readyQ and returns true. Returns
// false when the call should report "0 items this tick" (empty queue
// or a reorder gap).
func (s *Source) fill() bool {
	rec, ok := s.queue.Pop()
	if !ok {
		time.Sleep(backoff.PopSleep)
		return false
	}

	switch rec.Kind {
	case window.Kill:
		if s.order && s.reorderBuf != nil && !s.reorderBuf.Empty() {
			nlog.Warningf("desegsrc: KILL observed with %d window(s) still pending reorder", s.reorderBuf.Len())
		}
		s.terminal = true
		return true

	case window.Data:
		if !s.order {
			s.readyQ = append(s.readyQ, rec)
			return true
		}
		if s.dup.MaybeSeen(rec.Index) {
			// the filter says this index might already be pending or
			// emitted; pay for the exact duplicate/already-emitted check.
			nlog.Debugf("desegsrc: index %d flagged by dup filter, verifying exactly", rec.Index)
			s.reorderBuf.Insert(rec)
		} else {
			// filter says definitely-not-seen: skip the exact
			// duplicate-pending lookup on this, the overwhelmingly common, path.
			s.reorderBuf.InsertFast(rec)
		}
		s.dup.Mark(rec.Index)
		ready := s.reorderBuf.DrainReady()
		for _, r := range ready {
			s.dup.Forget(r.Index)
		}
		if len(ready) == 0 {
			return false // gap boundary: min(pending) > expected_next
		}
		s.readyQ = append(s.readyQ, ready...)
		return true

	default:
		nlog.Warningf("desegsrc: unexpected window kind %v, discarding", rec.Kind)
		return false
	}
}

func (s *Source) Close() error {
	if s.reorderBuf != nil {
		return s.reorderBuf.Close()
	}
	return nil
}
