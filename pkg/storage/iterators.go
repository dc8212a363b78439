package storage

import (
	"context"
	"errors"
)

// ErrIteratorDone is returned by Iterator.Next when the underlying sequence
// is exhausted or the context is cancelled.
var ErrIteratorDone = errors.New("iterator done")

type Iterator[T any] interface {
	// Next will return the next available item. If the context is cancelled
	// or times out, it should return ErrIteratorDone.
	Next(ctx context.Context) (T, error)
	// Stop terminates iteration over the underlying iterator.
	Stop()
}

// First consumes at most one element from iter and reports whether one was
// available. Exhaustion is a normal outcome, not an error; ok is false and
// err is nil when the sequence is empty.
func First[T any](ctx context.Context, iter Iterator[T]) (T, bool, error) {
	val, err := iter.Next(ctx)
	if err != nil {
		var zero T
		if errors.Is(err, ErrIteratorDone) {
			return zero, false, nil
		}
		return zero, false, err
	}
	return val, true, nil
}

// Collect drains iter into a slice, stopping it afterwards.
func Collect[T any](ctx context.Context, iter Iterator[T]) ([]T, error) {
	defer iter.Stop()

	var out []T
	for {
		val, err := iter.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrIteratorDone) {
				return out, nil
			}
			return nil, err
		}
		out = append(out, val)
	}
}

type staticIterator[T any] struct {
	items []T
}

func (s *staticIterator[T]) Next(ctx context.Context) (T, error) {
	var val T
	select {
	case <-ctx.Done():
		return val, ErrIteratorDone
	default:
		if len(s.items) == 0 {
			return val, ErrIteratorDone
		}

		next, rest := s.items[0], s.items[1:]
		s.items = rest

		return next, nil
	}
}

func (s *staticIterator[T]) Stop() {}

// NewStaticIterator returns an Iterator that yields the provided slice in
// order. The slice is consumed as-is and must not be modified by the caller.
func NewStaticIterator[T any](items []T) Iterator[T] {
	return &staticIterator[T]{items: items}
}

// NewStaticDocumentIterator returns a DocumentIterator over the provided
// documents.
func NewStaticDocumentIterator(docs []Document) DocumentIterator {
	return &staticIterator[Document]{items: docs}
}

// MapFunc transforms one iterator element into another, possibly failing.
type MapFunc[T, U any] func(T) (U, error)

type mappedIterator[T, U any] struct {
	iter Iterator[T]
	fn   MapFunc[T, U]
}

func (m *mappedIterator[T, U]) Next(ctx context.Context) (U, error) {
	val, err := m.iter.Next(ctx)
	if err != nil {
		var zero U
		return zero, err
	}
	return m.fn(val)
}

func (m *mappedIterator[T, U]) Stop() {
	m.iter.Stop()
}

// NewMappedIterator returns an Iterator that applies fn to every element of
// iter as it is pulled. Transformation cost is paid only on consumption.
func NewMappedIterator[T, U any](iter Iterator[T], fn MapFunc[T, U]) Iterator[U] {
	return &mappedIterator[T, U]{iter: iter, fn: fn}
}
