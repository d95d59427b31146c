// Package dupfilter provides a cheap probabilistic pre-check for the
// "duplicate index" protocol violation of spec.md §4.4, backed by
// github.com/seiflotfy/cuckoofilter (an aistore dependency). It never
// replaces the exact check in package reorder — a cuckoo filter can
// false-positive — it only lets the queue-source skip the exact
// lookup on the (overwhelmingly common) non-duplicate path.
package dupfilter

import (
	"encoding/binary"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

type Filter struct {
	cf *cuckoo.Filter
}

// New sizes the filter to roughly the configured queue capacity: the
// number of indices that can plausibly be in flight at once.
func New(capacity int) *Filter {
	if capacity < 1024 {
		capacity = 1024
	}
	return &Filter{cf: cuckoo.NewFilter(uint(capacity))}
}

func keyOf(index uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], index)
	return b[:]
}

// MaybeSeen reports whether index was possibly inserted before. False
// means "definitely not seen"; true means "maybe" (exact check needed).
func (f *Filter) MaybeSeen(index uint32) bool {
	return f.cf.Lookup(keyOf(index))
}

// Mark records index as seen.
func (f *Filter) Mark(index uint32) {
	f.cf.InsertUnique(keyOf(index))
}

// Forget removes index once it has been fully drained from the
// reorder buffer, bounding the filter's false-positive rate over a
// long-running stream.
func (f *Filter) Forget(index uint32) {
	f.cf.Delete(keyOf(index))
}
