// Package ring provides a fixed-capacity buffer that evicts its oldest entry
// when full.
package ring

// Buffer holds at most Cap() values in arrival order. It is not safe for
// concurrent use; owners guard it with their own lock.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest item
	size  int
}

// New creates a buffer with the given capacity. Capacity below one is raised to one.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// Len returns the number of stored items.
func (b *Buffer[T]) Len() int { return b.size }

// Push appends v, evicting the oldest item when the buffer is full. It reports
// whether an eviction happened.
func (b *Buffer[T]) Push(v T) bool {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
		return false
	}
	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
	return true
}

// Newest returns the items newest-first.
func (b *Buffer[T]) Newest() []T {
	out := make([]T, 0, b.size)
	b.EachNewest(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Oldest returns the items in arrival order.
func (b *Buffer[T]) Oldest() []T {
	out := make([]T, 0, b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, b.items[(b.head+i)%len(b.items)])
	}
	return out
}

// EachNewest walks the items newest-first until fn returns false.
func (b *Buffer[T]) EachNewest(fn func(T) bool) {
	for i := b.size - 1; i >= 0; i-- {
		if !fn(b.items[(b.head+i)%len(b.items)]) {
			return
		}
	}
}

// Reset drops every item.
func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head, b.size = 0, 0
}
