// Package functions binds geometry blobs to the scalar and table functions a
// host query engine calls: extent tests, format conversion, simplification and
// FlatGeobuf reads and writes through the connection's filesystem.
package functions

import (
	"github.com/cockroachdb/errors"

	"github.com/tingold/geoblob"
)

var (
	ErrLengthMismatch = errors.New("functions: argument columns differ in length")
	ErrInvalidInput   = errors.New("functions: invalid input")
)

// LocalState is the per-call scratch state of a function. Its arena is reset
// at the start of every batch, so geometries never outlive the batch that
// built them.
type LocalState struct {
	arena *geoblob.Arena
}

func NewLocalState() *LocalState {
	return &LocalState{arena: geoblob.NewArena()}
}

// ResetAndGet resets the arena and returns it.
func (s *LocalState) ResetAndGet() *geoblob.Arena {
	s.arena.Reset()
	return s.arena
}

// Column is a batch of values. A false entry in Valid marks a NULL row; a nil
// Valid means every row is set.
type Column[T any] struct {
	Values []T
	Valid  []bool
}

// BlobColumn builds a blob column in which nil blobs are NULL.
func BlobColumn(blobs ...[]byte) Column[[]byte] {
	c := Column[[]byte]{Values: blobs, Valid: make([]bool, len(blobs))}
	for i, b := range blobs {
		c.Valid[i] = b != nil
	}
	return c
}

// Constant repeats v n times.
func Constant[T any](v T, n int) Column[T] {
	c := Column[T]{Values: make([]T, n)}
	for i := range c.Values {
		c.Values[i] = v
	}
	return c
}

func (c Column[T]) Len() int { return len(c.Values) }

func (c Column[T]) IsNull(i int) bool {
	return c.Valid != nil && !c.Valid[i]
}

func newResult[R any](n int) Column[R] {
	return Column[R]{Values: make([]R, n), Valid: make([]bool, n)}
}

// ExecuteUnary applies fn to every non-NULL row. NULL rows stay NULL in the
// result. The first error aborts the batch.
func ExecuteUnary[A, R any](in Column[A], fn func(A) (R, error)) (Column[R], error) {
	out := newResult[R](in.Len())
	for i, v := range in.Values {
		if in.IsNull(i) {
			continue
		}
		r, err := fn(v)
		if err != nil {
			return Column[R]{}, errors.Wrapf(err, "row %d", i)
		}
		out.Values[i] = r
		out.Valid[i] = true
	}
	return out, nil
}

// ExecuteBinary applies fn row by row to two columns of equal length. A row is
// NULL in the result when either argument is NULL.
func ExecuteBinary[A, B, R any](a Column[A], b Column[B], fn func(A, B) (R, error)) (Column[R], error) {
	if a.Len() != b.Len() {
		return Column[R]{}, errors.Wrapf(ErrLengthMismatch, "%d and %d rows", a.Len(), b.Len())
	}
	out := newResult[R](a.Len())
	for i := range a.Values {
		if a.IsNull(i) || b.IsNull(i) {
			continue
		}
		r, err := fn(a.Values[i], b.Values[i])
		if err != nil {
			return Column[R]{}, errors.Wrapf(err, "row %d", i)
		}
		out.Values[i] = r
		out.Valid[i] = true
	}
	return out, nil
}
