// Package buffer provides a goroutine-safe FIFO queue that grows on demand
// up to a hard limit and sheds its oldest items beyond it.
package buffer

import (
	"sync"
)

// growThreshold is the fill percentage at which the ring doubles.
const growThreshold = 70

// Growable is a ring buffer that doubles its capacity when it reaches 70%
// full. Once the capacity would exceed the configured limit, Push drops the
// oldest item instead of growing.
type Growable[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	limit    int
	closed   bool

	pushed  int64
	popped  int64
	dropped int64
	resizes int
}

// New creates a buffer with the given initial capacity. limit caps the
// number of queued items; zero or less means no cap.
func New[T any](initialCapacity, limit int) *Growable[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if limit > 0 && initialCapacity > limit {
		initialCapacity = limit
	}
	b := &Growable[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		limit:    limit,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push appends an item. It returns false if the buffer is closed.
func (b *Growable[T]) Push(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := (b.capacity * growThreshold) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold && b.canGrow() {
		b.grow()
	}

	if b.count == b.capacity {
		// Full and at the limit: overwrite the oldest.
		var zero T
		b.buf[b.head] = zero
		b.head = (b.head + 1) % b.capacity
		b.count--
		b.dropped++
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	b.pushed++

	b.cond.Signal()
	return true
}

// Pop removes and returns the oldest item, blocking until one is available.
// It returns false once the buffer is closed and empty.
func (b *Growable[T]) Pop() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.take(), true
}

// TryPop is the non-blocking form of Pop.
func (b *Growable[T]) TryPop() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.take(), true
}

// Drain removes up to max items (all of them when max <= 0) in FIFO order.
func (b *Growable[T]) Drain(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	for i := range out {
		out[i] = b.take()
	}
	return out
}

// Close stops further pushes and wakes blocked readers. Queued items can
// still be popped.
func (b *Growable[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of queued items.
func (b *Growable[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current ring capacity.
func (b *Growable[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Stats returns counters since creation.
func (b *Growable[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Len:     b.count,
		Cap:     b.capacity,
		Limit:   b.limit,
		Pushed:  b.pushed,
		Popped:  b.popped,
		Dropped: b.dropped,
		Resizes: b.resizes,
	}
}

// Stats is a point-in-time view of a buffer.
type Stats struct {
	Len     int
	Cap     int
	Limit   int
	Pushed  int64
	Popped  int64
	Dropped int64
	Resizes int
}

// take pops the head. Must be called with lock held and count > 0.
func (b *Growable[T]) take() T {
	item := b.buf[b.head]
	var zero T
	b.buf[b.head] = zero
	b.head = (b.head + 1) % b.capacity
	b.count--
	b.popped++
	return item
}

func (b *Growable[T]) canGrow() bool {
	return b.limit <= 0 || b.capacity < b.limit
}

// grow doubles the capacity, clamped to the limit. Must be called with lock held.
func (b *Growable[T]) grow() {
	newCapacity := b.capacity * 2
	if b.limit > 0 && newCapacity > b.limit {
		newCapacity = b.limit
	}
	newBuf := make([]T, newCapacity)

	if b.count > 0 {
		if b.head < b.tail {
			copy(newBuf, b.buf[b.head:b.tail])
		} else {
			n := copy(newBuf, b.buf[b.head:])
			copy(newBuf[n:], b.buf[:b.tail])
		}
	}

	b.buf = newBuf
	b.head = 0
	b.tail = b.count
	b.capacity = newCapacity
	b.resizes++
}
