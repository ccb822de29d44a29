// Package ringchan provides a bounded lock-free single-producer/single-consumer
// queue for realtime audio samples.
//
// The queue is deliberately lossy: a full queue drops the incoming item and an
// empty queue just reports so. Both operations are wait-free, which makes them
// safe to call from audio driver callbacks where blocking (or taking a mutex
// that the other side may hold) causes audible glitches.
package ringchan

import (
	"sync/atomic"
)

// RingChannel is a bounded SPSC queue.
//
// Exactly one goroutine may call TryPush and exactly one goroutine may call
// TryPop; Len and Cap are safe from anywhere.
type RingChannel[T any] struct {
	buf  []T
	head atomic.Uint64 // the next index to pop; owned by the consumer
	tail atomic.Uint64 // the next index to push; owned by the producer
}

// New returns a RingChannel that holds up to `capacity` items.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be positive")
	}
	return &RingChannel[T]{
		buf: make([]T, capacity),
	}
}

// TryPush enqueues v and reports whether it fit. A full channel is a no-op.
func (c *RingChannel[T]) TryPush(v T) bool {
	tail := c.tail.Load()
	head := c.head.Load()
	if tail-head >= uint64(len(c.buf)) {
		return false
	}
	c.buf[tail%uint64(len(c.buf))] = v
	c.tail.Store(tail + 1)
	return true
}

// TryPop dequeues the oldest item. The second result is false if the channel
// is empty (the first result is then the zero value).
func (c *RingChannel[T]) TryPop() (T, bool) {
	head := c.head.Load()
	tail := c.tail.Load()
	if tail == head {
		var zero T
		return zero, false
	}
	v := c.buf[head%uint64(len(c.buf))]
	c.head.Store(head + 1)
	return v, true
}

// Len returns the amount of items currently queued.
func (c *RingChannel[T]) Len() int {
	return int(c.tail.Load() - c.head.Load())
}

// Cap returns the capacity of the channel.
func (c *RingChannel[T]) Cap() int {
	return len(c.buf)
}
