// Package queue provides the bounded FIFOs that sit between the link
// adapters and the dispatcher.
package queue

import (
	"errors"
	"sync"
)

// ErrFull is returned when an item is pushed onto a full ring. The item is dropped.
var ErrFull = errors.New("queue: full")

// Ring is a fixed-capacity FIFO. Producers never block: when the ring is
// full the newest item is dropped and counted. Safe for concurrent use.
type Ring[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int // next read position
	count int
	drops uint64
	ready chan struct{}
}

// New creates a Ring holding at most capacity items. A capacity below 1 is raised to 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		buf:   make([]T, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push appends v, or drops it and returns ErrFull.
func (r *Ring[T]) Push(v T) error {
	r.mu.Lock()
	if r.count == len(r.buf) {
		r.drops++
		r.mu.Unlock()
		return ErrFull
	}
	r.buf[(r.head+r.count)%len(r.buf)] = v
	r.count++
	r.mu.Unlock()
	r.signal()
	return nil
}

// PushAll appends all of vs or none of them. A batch that does not fit
// counts as one drop.
func (r *Ring[T]) PushAll(vs []T) error {
	if len(vs) == 0 {
		return nil
	}
	r.mu.Lock()
	if len(r.buf)-r.count < len(vs) {
		r.drops++
		r.mu.Unlock()
		return ErrFull
	}
	for _, v := range vs {
		r.buf[(r.head+r.count)%len(r.buf)] = v
		r.count++
	}
	r.mu.Unlock()
	r.signal()
	return nil
}

// Pop removes the oldest item. ok is false if the ring is empty.
func (r *Ring[T]) Pop() (v T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return v, false
	}
	var zero T
	v = r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return v, true
}

// Len returns the number of queued items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the ring's capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Drops returns how many pushes have been rejected since creation.
func (r *Ring[T]) Drops() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drops
}

// Ready receives a value after one or more successful pushes. Wakeups are
// coalesced, so a consumer must drain with Pop until it reports empty.
func (r *Ring[T]) Ready() <-chan struct{} {
	return r.ready
}

func (r *Ring[T]) signal() {
	select {
	case r.ready <- struct{}{}:
	default:
	}
}
