// Package history provides the fixed-capacity sample window kept for every
// time-series channel.
package history

// Window is a fixed-capacity FIFO ring buffer. Once full, every Push evicts the
// oldest element. A Window is not safe for concurrent use.
type Window[T any] struct {
	buf   []T
	head  int // index of the oldest element
	count int
}

// NewWindow creates a window holding at most capacity elements.
// A non-positive capacity is treated as 1.
func NewWindow[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when the window is full.
// It returns the evicted element and true if an eviction happened.
func (w *Window[T]) Push(v T) (evicted T, ok bool) {
	if w.count < len(w.buf) {
		w.buf[(w.head+w.count)%len(w.buf)] = v
		w.count++
		return evicted, false
	}

	evicted = w.buf[w.head]
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	return evicted, true
}

// Items returns a copy of the contents, oldest first.
func (w *Window[T]) Items() []T {
	out := make([]T, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Newest returns the most recently pushed element.
func (w *Window[T]) Newest() (v T, ok bool) {
	if w.count == 0 {
		return v, false
	}
	return w.buf[(w.head+w.count-1)%len(w.buf)], true
}

// Len returns the number of elements held.
func (w *Window[T]) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window[T]) Cap() int { return len(w.buf) }

// Reset empties the window.
func (w *Window[T]) Reset() {
	var zero T
	for i := range w.buf {
		w.buf[i] = zero
	}
	w.head, w.count = 0, 0
}
