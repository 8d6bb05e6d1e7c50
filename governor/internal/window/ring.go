// Package window provides the fixed-capacity rolling windows used for frame,
// usage and history sampling.
package window

// Ring is a fixed-capacity FIFO window. Pushing into a full ring overwrites the
// oldest element. The zero value is not usable; call New.
type Ring[T any] struct {
	buf   []T
	start int
	n     int
}

// New creates a ring holding at most capacity elements.
// Panics if capacity is not positive.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("window.New: capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v. If the ring was full, the overwritten element is returned
// with evicted=true.
func (r *Ring[T]) Push(v T) (old T, evicted bool) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return old, false
	}
	old = r.buf[r.start]
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return old, true
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.n }

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Full reports whether Len() == Cap().
func (r *Ring[T]) Full() bool { return r.n == len(r.buf) }

// Values returns a copy of the contents, oldest first.
func (r *Ring[T]) Values() []T {
	out := make([]T, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// At returns the i-th element, oldest first. Panics when out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.n {
		panic("window.Ring.At: index out of range")
	}
	return r.buf[(r.start+i)%len(r.buf)]
}

// Set replaces the i-th element, oldest first. Panics when out of range.
func (r *Ring[T]) Set(i int, v T) {
	if i < 0 || i >= r.n {
		panic("window.Ring.Set: index out of range")
	}
	r.buf[(r.start+i)%len(r.buf)] = v
}

// Last returns the newest element.
func (r *Ring[T]) Last() (v T, ok bool) {
	if r.n == 0 {
		return v, false
	}
	return r.buf[(r.start+r.n-1)%len(r.buf)], true
}

// Reset empties the ring without releasing its storage.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.start, r.n = 0, 0
}
