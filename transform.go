package threadsplit

import "golang.org/x/exp/constraints"

// Transformer maps one element to its transformed value.
//
// Implementations must be free of shared mutable state: the parallel path
// calls Transform from several goroutines at once, each on different
// elements.
type Transformer[T any] interface {
	Transform(v T) (T, error)
}

// Func adapts an infallible function or closure to a [Transformer].
type Func[T any] func(T) T

// Transform calls f(v).
func (f Func[T]) Transform(v T) (T, error) {
	return f(v), nil
}

// ErrFunc adapts a fallible function or closure to a [Transformer].
type ErrFunc[T any] func(T) (T, error)

// Transform calls f(v).
func (f ErrFunc[T]) Transform(v T) (T, error) {
	return f(v)
}

// Addable is the set of types that support self-addition.
type Addable interface {
	constraints.Integer | constraints.Float | constraints.Complex | ~string
}

// Double returns x + x.
func Double[T Addable](x T) T {
	return x + x
}
