package matching

import "sync/atomic"

// Ring is the lock-free single-producer/single-consumer queue carrying
// book-update records from the matching thread to the market-data
// thread (spec.md §4.6). It never blocks either side: TryPush fails
// closed when full and TryPop fails closed when empty, so neither
// thread can stall the other.
//
// Capacity is rounded up to the next power of two so index wrapping is
// a mask-and-AND instead of a modulo, the same trick the teacher's
// disruptor-style order/trade rings use — but unlike those rings this
// one never calls into the runtime semaphore: both sides are plain
// atomic loads/stores with acquire/release pairing, matching
// original_source/include/utils/spsc_queue.hpp's memory-ordering
// contract (producer stores tail with Release after writing the slot;
// consumer stores head with Release after reading it).
type Ring[T any] struct {
	buf  []T
	mask uint64

	head atomic.Uint64 // consumer position
	tail atomic.Uint64 // producer position
}

// NewRing creates a ring with at least capacity usable slots.
func NewRing[T any](capacity int) *Ring[T] {
	size := nextPowerOfTwo(capacity)
	return &Ring[T]{
		buf:  make([]T, size),
		mask: uint64(size - 1),
	}
}

// TryPush is called only by the matching thread. It returns false
// without blocking when the ring is full — per spec.md §4.6 a drop
// here is a correctness bug to be precluded by sizing, not handled by
// blocking the engine.
func (r *Ring[T]) TryPush(item T) bool {
	head := r.head.Load() // acquire
	tail := r.tail.Load()

	if tail-head >= uint64(len(r.buf)) {
		return false
	}

	r.buf[tail&r.mask] = item
	r.tail.Store(tail + 1) // release
	return true
}

// TryPop is called only by the market-data thread.
func (r *Ring[T]) TryPop() (T, bool) {
	var zero T

	head := r.head.Load()
	tail := r.tail.Load() // acquire

	if head == tail {
		return zero, false
	}

	item := r.buf[head&r.mask]
	r.head.Store(head + 1) // release
	return item, true
}

// Len is an approximate occupancy, useful only for metrics — by the
// time it returns, either position may have moved.
func (r *Ring[T]) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

func nextPowerOfTwo(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
