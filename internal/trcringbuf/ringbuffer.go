package trcringbuf

import (
	"sync"
)

// RingBuffer is a fixed-size collection of recent items.
type RingBuffer[T any] struct {
	mtx sync.Mutex
	buf []T // fully allocated at construction
	cur int // index for next write, walk backwards to read
	len int // count of actual values
}

// NewRingBuffer returns an empty ring buffer of items, pre-allocated with the
// given capacity.
func NewRingBuffer[T any](cap int) *RingBuffer[T] {
	if cap < 0 {
		cap = 0
	}
	return &RingBuffer[T]{
		buf: make([]T, cap),
	}
}

// Add the value to the ring buffer. If the ring buffer was full and an item was
// overwritten by this add, return that item and true, otherwise return a zero
// value item and false.
func (rb *RingBuffer[T]) Add(val T) (dropped T, ok bool) {
	rb.mtx.Lock()
	defer rb.mtx.Unlock()

	if len(rb.buf) <= 0 {
		return val, true
	}

	if rb.len >= len(rb.buf) {
		dropped, ok = rb.buf[rb.cur], true
	}

	rb.buf[rb.cur] = val

	if rb.len < len(rb.buf) {
		rb.len++
	}

	rb.cur = (rb.cur + 1) % len(rb.buf)

	return dropped, ok
}

// Walk calls the given function for each value in the ring buffer, starting
// with the most recent value, and moving backwards in time. If the function
// returns a non-nil error, the walk stops and returns that error.
func (rb *RingBuffer[T]) Walk(fn func(T) error) error {
	for _, val := range rb.Snapshot() {
		if err := fn(val); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns a copy of the values in the ring buffer, newest first.
func (rb *RingBuffer[T]) Snapshot() []T {
	rb.mtx.Lock()
	defer rb.mtx.Unlock()

	res := make([]T, 0, rb.len)
	for i := 0; i < rb.len; i++ {
		idx := rb.cur - 1 - i
		if idx < 0 {
			idx += len(rb.buf)
		}
		res = append(res, rb.buf[idx])
	}
	return res
}

// Len returns the number of values in the ring buffer.
func (rb *RingBuffer[T]) Len() int {
	rb.mtx.Lock()
	defer rb.mtx.Unlock()

	return rb.len
}

// Cap returns the capacity of the ring buffer.
func (rb *RingBuffer[T]) Cap() int {
	rb.mtx.Lock()
	defer rb.mtx.Unlock()

	return len(rb.buf)
}

// Resize changes the capacity of the ring buffer to the given value. The most
// recent values are retained. If the new capacity is smaller than the number of
// values, the oldest values are dropped, and returned newest first.
func (rb *RingBuffer[T]) Resize(cap int) (dropped []T) {
	if cap <= 0 {
		return nil
	}

	rb.mtx.Lock()
	defer rb.mtx.Unlock()

	// Collect existing values oldest first, so they can be re-added in order.
	values := make([]T, rb.len)
	for i := 0; i < rb.len; i++ {
		idx := rb.cur - rb.len + i
		if idx < 0 {
			idx += len(rb.buf)
		}
		values[i] = rb.buf[idx]
	}

	if len(values) > cap {
		overflow := values[:len(values)-cap]
		for i := len(overflow) - 1; i >= 0; i-- {
			dropped = append(dropped, overflow[i])
		}
		values = values[len(values)-cap:]
	}

	rb.buf = make([]T, cap)
	copy(rb.buf, values)
	rb.len = len(values)
	rb.cur = rb.len % cap

	return dropped
}
