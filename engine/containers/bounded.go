package containers

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

// Bounded is a list with a capacity fixed at construction. Slots can be
// appended with Push or addressed directly with Set; Set grows the length up
// to the written index, leaving zero values in between.
type Bounded[T any] struct {
	items    []T
	capacity int
}

func NewBounded[T any](capacity int) (*Bounded[T], error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(core.ErrInvalidCapacity, "bounded capacity %d", capacity)
	}
	return &Bounded[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}, nil
}

// MustBounded is NewBounded for capacities that are compile-time constants.
func MustBounded[T any](capacity int) *Bounded[T] {
	b, err := NewBounded[T](capacity)
	core.Assertf(err == nil, "bounded container: %v", err)
	return b
}

func (b *Bounded[T]) Push(v T) error {
	if len(b.items) == b.capacity {
		return errors.Wrapf(core.ErrContainerFull, "bounded capacity %d", b.capacity)
	}
	b.items = append(b.items, v)
	return nil
}

func (b *Bounded[T]) Set(i int, v T) error {
	if i < 0 || i >= b.capacity {
		return errors.Wrapf(core.ErrOutOfRange, "index %d, capacity %d", i, b.capacity)
	}
	if i >= len(b.items) {
		b.items = b.items[:i+1]
	}
	b.items[i] = v
	return nil
}

// At returns the element in slot i, or the zero value for slots that were
// never written.
func (b *Bounded[T]) At(i int) (T, error) {
	var zero T
	if i < 0 || i >= b.capacity {
		return zero, errors.Wrapf(core.ErrOutOfRange, "index %d, capacity %d", i, b.capacity)
	}
	if i >= len(b.items) {
		return zero, nil
	}
	return b.items[i], nil
}

func (b *Bounded[T]) Len() int {
	return len(b.items)
}

func (b *Bounded[T]) Cap() int {
	return b.capacity
}

// Items exposes the written slots. The slice aliases the container.
func (b *Bounded[T]) Items() []T {
	return b.items
}

func (b *Bounded[T]) Reset() {
	clear(b.items)
	b.items = b.items[:0]
}
