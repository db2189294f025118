// Package ringlog provides a fixed-capacity FIFO buffer for recent-N logs.
package ringlog

// Ring keeps the most recent entries up to a fixed capacity. Push evicts
// the oldest entry in O(1) once full. Not safe for concurrent use; owners
// serialize access.
type Ring[T any] struct {
	buf   []T
	head  int
	count int
}

// New creates a ring with the given capacity (minimum 1).
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, silently evicting the oldest entry when at capacity.
func (r *Ring[T]) Push(v T) {
	tail := (r.head + r.count) % len(r.buf)
	r.buf[tail] = v
	if r.count < len(r.buf) {
		r.count++
		return
	}
	r.head = (r.head + 1) % len(r.buf)
}

// Items returns the entries oldest-first.
func (r *Ring[T]) Items() []T {
	out := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

// Len is the number of entries currently held.
func (r *Ring[T]) Len() int { return r.count }

// Cap is the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Clear drops all entries and releases their values.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head, r.count = 0, 0
}
