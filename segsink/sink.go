// Package segsink implements the queue-sink (segmenter) of spec.md
// §4.3: it accumulates a streaming input, partitions it into
// fixed-size windows of W items, assigns each an index, and pushes
// each as a DATA record onto a bounded queue.
package segsink

import (
	"time"

	"github.com/windowrouter/router/internal/backoff"
	"github.com/windowrouter/router/internal/nlog"
	"github.com/windowrouter/router/window"
	"github.com/windowrouter/router/winqueue"
)

// IndexTag is the sink's view of a stream-side "i" tag (spec.md §6):
// an index value attached at a given item offset within the current batch.
type IndexTag struct {
	Offset uint64
	Index  uint64
}

// Sink is the segmenting queue-sink. Not safe for concurrent Consume
// calls; a given sink is owned by exactly one producing goroutine, the
// way a GNU Radio block's work() is single-threaded per block.
type Sink struct {
	itemSize      int
	w             int
	queue         *winqueue.Queue
	preserveIndex bool

	counter uint64
	pending *window.Record
}

// New constructs a queue-sink. itemSize is the byte width of one
// opaque stream item, w is W (items per window), queue is the
// destination bounded window queue (spec.md §4.3 Configuration options).
func New(itemSize, w int, queue *winqueue.Queue, preserveIndex bool) *Sink {
	return &Sink{itemSize: itemSize, w: w, queue: queue, preserveIndex: preserveIndex}
}

// Consume processes one work-batch of N items (N a multiple of W,
// enforced by the caller per spec.md §4.3), splitting it into N/W
// windows and pushing each onto the queue. tags carries any "i"
// stream tags covering this batch's offsets, in ascending offset
// order; it is ignored unless preserveIndex is set.
//
// Returns the number of items actually consumed from batch. On
// backpressure (a window's push exhausts its retry budget) this is
// less than len(batch)/itemSize; the unconsumed tail must be
// re-presented by the caller on the next call, exactly as a GNU Radio
// work() callback's return value tells the scheduler how much of its
// input to retire. The failed window is staged and pushed first on the
// next call; once it is accepted, the first W items of that call's
// batch are taken to be the staged window re-presented and are skipped.
func (s *Sink) Consume(batch []byte, tags []IndexTag) (itemsConsumed int) {
	skip := 0
	if s.pending != nil {
		if !s.tryPush(s.pending) {
			return 0
		}
		s.pending = nil
		skip = 1
	}

	windowBytes := s.w * s.itemSize
	nItems := len(batch) / s.itemSize
	nWindows := nItems / s.w

	tagIdx := 0
	for tagIdx < len(tags) && tags[tagIdx].Offset < uint64(skip*s.w) {
		tagIdx++
	}
	for i := skip; i < nWindows; i++ {
		start := i * windowBytes
		payload := batch[start : start+windowBytes]

		index := s.nextIndex(tags, &tagIdx, uint64(i*s.w))
		rec := window.NewData(uint32(index), payload, s.itemSize)

		if !s.tryPush(rec) {
			s.pending = rec
			return i * s.w
		}
	}
	return nWindows * s.w
}

// nextIndex resolves the index for a window starting at the given
// item offset within the batch: it prefers the matching tag, and
// falls back to the private counter (spec.md §4.3, "Failure
// semantics": never fails the stream; logs and falls back).
func (s *Sink) nextIndex(tags []IndexTag, tagIdx *int, offset uint64) uint64 {
	if !s.preserveIndex {
		idx := s.counter
		s.counter++
		return idx
	}
	if *tagIdx < len(tags) && tags[*tagIdx].Offset == offset {
		idx := tags[*tagIdx].Index
		*tagIdx++
		return idx
	}
	nlog.Warningf("segsink: preserve_index set but no tag at offset %d, falling back to counter", offset)
	idx := s.counter
	s.counter++
	return idx
}

// tryPush applies the bounded-retry backoff policy of spec.md §4.2.
func (s *Sink) tryPush(rec *window.Record) bool {
	for attempt := 0; attempt < backoff.PushAttempts; attempt++ {
		if s.queue.Push(rec) {
			return true
		}
		time.Sleep(backoff.PushSleep)
	}
	return false
}

// Close pushes a KILL record to unblock downstream queue-sources,
// blocking until it is accepted (spec.md §4.3: "allocate a KILL record
// and push it to the queue (blocking until accepted)").
func (s *Sink) Close() {
	kill := window.NewKill()
	for !s.queue.Push(kill) {
		time.Sleep(backoff.PushSleep)
	}
}
