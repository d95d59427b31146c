// Package reorder implements the pending-reorder buffer of spec.md §3
// and §4.4: a local structure keyed by index, holding popped records
// awaiting the next-expected index, with a gap-waiting policy.
//
// Backed by github.com/tidwall/buntdb opened against ":memory:" (an
// aistore dependency) instead of a hand-rolled heap: the pending set's
// minimum index — the value DrainReady needs on every call to decide
// whether the next record is ready or there's a gap — is read off
// buntdb's by_index binary index via Ascend rather than tracked by
// hand. The Go map alongside it exists only because buntdb stores
// string keys/values, not arbitrary record payloads. This never
// touches disk, consistent with spec.md §6 ("Persisted state: none").
package reorder

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/tidwall/buntdb"

	"github.com/windowrouter/router/internal/nlog"
	"github.com/windowrouter/router/window"
)

const indexName = "by_index"

// Buffer is the pending-reorder buffer. Not safe for concurrent
// Insert/DrainReady calls from multiple goroutines without external
// synchronization beyond what's documented on each method; in
// practice it is only ever touched by the single queue-source caller.
type Buffer struct {
	db       *buntdb.DB
	mu       sync.Mutex
	pending  map[uint32]*window.Record // index -> record; buntdb stores only the sort key
	expected uint32
}

func New() (*Buffer, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("reorder: open in-memory store: %w", err)
	}
	if err := db.CreateIndex(indexName, "*", buntdb.IndexBinary); err != nil {
		return nil, fmt.Errorf("reorder: create index: %w", err)
	}
	return &Buffer{db: db, pending: make(map[uint32]*window.Record)}, nil
}

func keyFor(index uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], index) // big-endian so lexicographic == numeric order
	return string(b[:])
}

// ExpectedNext reports the next index the buffer will release.
func (b *Buffer) ExpectedNext() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expected
}

// Len reports the number of records currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Insert adds rec to the buffer (spec.md §4.4 step for order=true).
// A duplicate index is a protocol violation (spec.md §4.4 edge case):
// it is logged and the second copy is discarded, keeping the first.
func (b *Buffer) Insert(rec *window.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if rec.Index < b.expected {
		nlog.Warningf("reorder: dropping already-emitted index %d (expected >= %d)", rec.Index, b.expected)
		return
	}
	if _, dup := b.pending[rec.Index]; dup {
		nlog.Warningf("reorder: protocol violation: duplicate index %d, keeping first-received", rec.Index)
		return
	}
	b.insertUnchecked(rec)
}

// InsertFast is Insert's trusted-caller fast path: it skips the
// duplicate-pending lookup, for callers (package dupfilter's caller in
// desegsrc) that have already confirmed via a cuckoo filter that this
// index was never seen before. The already-emitted check is still
// applied — the filter only tracks "seen", not "already drained".
func (b *Buffer) InsertFast(rec *window.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if rec.Index < b.expected {
		nlog.Warningf("reorder: dropping already-emitted index %d (expected >= %d)", rec.Index, b.expected)
		return
	}
	b.insertUnchecked(rec)
}

func (b *Buffer) insertUnchecked(rec *window.Record) {
	b.pending[rec.Index] = rec
	key := keyFor(rec.Index)
	_ = b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, key, nil)
		return err
	})
}

// DrainReady drains every consecutive record starting at the current
// expected index, in order, advancing expected past each one. Returns
// nil (not empty slice) if the minimum pending index exceeds expected
// (spec.md: "If the minimum index exceeds expected_next, emit nothing
// this call").
func (b *Buffer) DrainReady() []*window.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*window.Record
	for {
		minIndex, ok := b.minPendingIndex()
		if !ok || minIndex != b.expected {
			break
		}
		rec := b.pending[minIndex]
		out = append(out, rec)
		delete(b.pending, minIndex)
		key := keyFor(minIndex)
		_ = b.db.Update(func(tx *buntdb.Tx) error {
			_, err := tx.Delete(key)
			return err
		})
		b.expected++
	}
	return out
}

// minPendingIndex reads the smallest index currently buffered by
// ascending the by_index binary index, stopping at the first entry.
func (b *Buffer) minPendingIndex() (uint32, bool) {
	var (
		minKey string
		found  bool
	)
	_ = b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(indexName, func(key, _ string) bool {
			minKey = key
			found = true
			return false // stop after the first (smallest) key
		})
	})
	if !found {
		return 0, false
	}
	return binary.BigEndian.Uint32([]byte(minKey)), true
}

// Empty reports whether the buffer currently holds no records; used
// at KILL time (spec.md §4.4: "If order=true, the pending-reorder
// buffer must be empty; if not, the source emits a warning and still
// terminates").
func (b *Buffer) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending) == 0
}

func (b *Buffer) Close() error {
	return b.db.Close()
}
