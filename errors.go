package threadsplit

import (
	"errors"
	"fmt"

	"github.com/baxromumarov/threadsplit/internal/scope"
)

var (
	// ErrTooManyChunks is returned when a parallel batch would need more
	// tasks than [WithMaxChunks] allows. Nothing is spawned in that case.
	ErrTooManyChunks = errors.New("threadsplit: too many chunks")

	// ErrUnknownStrategy is returned for a [Strategy] outside BySize/ByTime.
	ErrUnknownStrategy = errors.New("threadsplit: unknown strategy")

	// ErrUnknownExecutor is returned by [ParseExecutor].
	ErrUnknownExecutor = errors.New("threadsplit: unknown executor")

	// ErrUnknownPolicy is returned by [ParsePolicy].
	ErrUnknownPolicy = errors.New("threadsplit: unknown policy")
)

// PanicError is a recovered panic together with the stack of the goroutine
// that panicked. Without [WithPanicAsError] it is re-raised on the caller
// goroutine once every task has been joined.
type PanicError = scope.PanicError

// Path identifies where an element was transformed.
type Path int

const (
	// PathSequential is the calling goroutine.
	PathSequential Path = iota
	// PathParallel is a chunk task.
	PathParallel
)

func (p Path) String() string {
	switch p {
	case PathSequential:
		return "sequential"
	case PathParallel:
		return "parallel"
	default:
		return fmt.Sprintf("Path(%d)", int(p))
	}
}

// TransformError reports the element whose transformation failed.
type TransformError struct {
	// Index is the absolute index of the element in the sequence.
	Index int
	// Path is where the element was being transformed.
	Path Path
	// Chunk is the chunk that held the element. Zero for PathSequential.
	Chunk Chunk
	// Err is the transformer's error, or a *PanicError.
	Err error
}

func (e *TransformError) Error() string {
	if e.Path == PathParallel {
		return fmt.Sprintf("threadsplit: transform failed at index %d (%s): %v", e.Index, e.Chunk, e.Err)
	}
	return fmt.Sprintf("threadsplit: transform failed at index %d (%s): %v", e.Index, e.Path, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// surface re-raises a captured panic on the calling goroutine unless panics
// were configured to be returned as errors.
func surface(cfg *config, err error) error {
	if err == nil || cfg.panicAsErr {
		return err
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		panic(pe)
	}
	return err
}

// flatten expands nested errors.Join values into a flat list.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	var out []error
	for _, e := range joined.Unwrap() {
		out = append(out, flatten(e)...)
	}
	return out
}

// shape applies the failure policy to an aggregated batch error: the first
// error under FailFast, at most maxErrors errors under Collect. Executor
// task wrappers are stripped so every backend reports the same errors.
func shape(cfg *config, err error) error {
	errs := flatten(err)
	for i, e := range errs {
		errs[i] = scope.CauseOf(e)
	}
	switch {
	case len(errs) == 0:
		return nil
	case cfg.policy == FailFast:
		return errs[0]
	case cfg.maxErrors > 0 && len(errs) > cfg.maxErrors:
		errs = errs[:cfg.maxErrors]
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}
