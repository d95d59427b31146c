// Package ratomic provides typed atomic counters, shaped like aistore's
// cmn/atomic package: small wrappers over sync/atomic so call sites read
// as Load()/Store()/Inc()/Dec() rather than raw atomic.*Int32 calls.
/*
 * windowrouter
 */
package ratomic

import "sync/atomic"

type Int32 struct{ v int32 }

func (i *Int32) Load() int32          { return atomic.LoadInt32(&i.v) }
func (i *Int32) Store(n int32)        { atomic.StoreInt32(&i.v, n) }
func (i *Int32) Add(n int32) int32    { return atomic.AddInt32(&i.v, n) }
func (i *Int32) Inc() int32           { return i.Add(1) }
func (i *Int32) Dec() int32           { return i.Add(-1) }
func (i *Int32) CAS(old, new int32) bool {
	return atomic.CompareAndSwapInt32(&i.v, old, new)
}

type Int64 struct{ v int64 }

func (i *Int64) Load() int64       { return atomic.LoadInt64(&i.v) }
func (i *Int64) Store(n int64)     { atomic.StoreInt64(&i.v, n) }
func (i *Int64) Add(n int64) int64 { return atomic.AddInt64(&i.v, n) }

type Uint64 struct{ v uint64 }

func (u *Uint64) Load() uint64       { return atomic.LoadUint64(&u.v) }
func (u *Uint64) Store(n uint64)     { atomic.StoreUint64(&u.v, n) }
func (u *Uint64) Add(n uint64) uint64 { return atomic.AddUint64(&u.v, n) }
func (u *Uint64) CAS(old, new uint64) bool {
	return atomic.CompareAndSwapUint64(&u.v, old, new)
}

type Bool struct{ v int32 }

func (b *Bool) Load() bool {
	return atomic.LoadInt32(&b.v) != 0
}

func (b *Bool) Store(val bool) {
	var n int32
	if val {
		n = 1
	}
	atomic.StoreInt32(&b.v, n)
}

// CAS swaps from -> to; reports whether this call made the transition.
func (b *Bool) CAS(from, to bool) bool {
	var o, n int32
	if from {
		o = 1
	}
	if to {
		n = 1
	}
	return atomic.CompareAndSwapInt32(&b.v, o, n)
}
