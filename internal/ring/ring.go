// Package ring provides a fixed-capacity FIFO that overwrites its oldest
// entry when full.
package ring

// Buffer holds at most Cap() values. Not safe for concurrent use; callers
// synchronize.
type Buffer[T any] struct {
	buf   []T
	head  int // next write position
	count int
}

// New creates an empty buffer. A capacity below 1 is raised to 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{buf: make([]T, capacity)}
}

// Push appends v. It reports true when the oldest value was overwritten.
func (r *Buffer[T]) Push(v T) (dropped bool) {
	dropped = r.count == len(r.buf)
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if !dropped {
		r.count++
	}
	return dropped
}

// Items returns the buffered values oldest first without removing them.
func (r *Buffer[T]) Items() []T {
	if r.count == 0 {
		return nil
	}
	out := make([]T, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := range out {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Drain returns the buffered values oldest first and empties the buffer.
func (r *Buffer[T]) Drain() []T {
	out := r.Items()
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.count = 0
	return out
}

// Len returns the number of buffered values.
func (r *Buffer[T]) Len() int { return r.count }

// Cap returns the capacity.
func (r *Buffer[T]) Cap() int { return len(r.buf) }
