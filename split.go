package threadsplit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/baxromumarov/threadsplit/internal/scope"
)

// Strategy selects how a call decides between the sequential and the
// parallel path.
type Strategy int

const (
	// BySize goes parallel when the input is long. See [SplitOnSize].
	BySize Strategy = iota
	// ByTime goes parallel once a time budget is spent. See [SplitOnTime].
	ByTime
)

func (s Strategy) String() string {
	switch s {
	case BySize:
		return "size"
	case ByTime:
		return "time"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses "size" or "time".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "size":
		return BySize, nil
	case "time":
		return ByTime, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Split runs [SplitOnSize] or [SplitOnTime] depending on s.
func Split[T any](ctx context.Context, s Strategy, in []T, tr Transformer[T], opts ...Option) ([]T, error) {
	switch s {
	case BySize:
		return SplitOnSize(ctx, in, tr, opts...)
	case ByTime:
		return SplitOnTime(ctx, in, tr, opts...)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownStrategy, s)
	}
}

// SplitOnSize returns a new slice holding tr applied to every element of in.
//
// Inputs shorter than the size threshold are transformed sequentially on the
// calling goroutine. Longer ones are copied and transformed in place by
// [ApplyChunks]. The result never aliases in. On failure the result is nil.
func SplitOnSize[T any](ctx context.Context, in []T, tr Transformer[T], opts ...Option) ([]T, error) {
	cfg := newConfig(opts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := cfg.runLogger(BySize)

	out := make([]T, len(in))
	copy(out, in)

	if len(in) < cfg.sizeThreshold {
		log.Debug("running sequentially",
			zap.Int("len", len(in)),
			zap.Int("size_threshold", cfg.sizeThreshold),
			zap.Stringer("path", PathSequential),
		)
		if err := applySequential(&cfg, in, out, tr); err != nil {
			return nil, err
		}
		return out, nil
	}

	log.Debug("running in parallel",
		zap.Int("len", len(in)),
		zap.Int("size_threshold", cfg.sizeThreshold),
		zap.Stringer("path", PathParallel),
	)
	if err := applyChunks(ctx, &cfg, log, out, 0, tr); err != nil {
		return nil, err
	}
	return out, nil
}

// SplitOnTime returns a new slice holding tr applied to every element of in.
//
// Elements are transformed in order on the calling goroutine until the time
// budget is spent. The clock is read once before each element. When the
// elapsed time reaches the budget, the untouched suffix is handed to
// [ApplyChunks] and the call returns when it completes. There is no way back
// to the sequential loop. The result never aliases in. On failure the result
// is nil.
func SplitOnTime[T any](ctx context.Context, in []T, tr Transformer[T], opts ...Option) ([]T, error) {
	cfg := newConfig(opts)
	start := cfg.now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := cfg.runLogger(ByTime)

	out := make([]T, len(in))
	copy(out, in)

	next, elapsed, err := runUntilBudget(&cfg, start, in, out, tr)
	if err != nil {
		return nil, err
	}
	if next == len(in) {
		log.Debug("finished sequentially",
			zap.Int("len", len(in)),
			zap.Duration("elapsed", elapsed),
			zap.Duration("time_budget", cfg.timeBudget),
		)
		return out, nil
	}

	info := SwitchInfo{Index: next, Elapsed: elapsed, Remaining: len(in) - next}
	log.Debug("time budget spent, switching to parallel tail",
		zap.Int("index", info.Index),
		zap.Int("remaining", info.Remaining),
		zap.Duration("elapsed", info.Elapsed),
		zap.Duration("time_budget", cfg.timeBudget),
	)
	if cfg.onSwitch != nil {
		cfg.onSwitch(info)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := applyChunks(ctx, &cfg, log, out[next:], next, tr); err != nil {
		return nil, err
	}
	return out, nil
}

// applySequential transforms every element of in into out on the calling
// goroutine.
func applySequential[T any](cfg *config, in, out []T, tr Transformer[T]) (err error) {
	i := 0
	if cfg.panicAsErr {
		defer func() {
			if r := recover(); r != nil {
				err = &TransformError{Index: i, Path: PathSequential, Err: scope.NewPanicError(r)}
			}
		}()
	}

	for ; i < len(in); i++ {
		v, terr := tr.Transform(in[i])
		if terr != nil {
			return &TransformError{Index: i, Path: PathSequential, Err: terr}
		}
		out[i] = v
	}
	return nil
}

// runUntilBudget transforms elements in order while the budget lasts. It
// returns the index of the first untransformed element (len(in) when all were
// done) and the elapsed time last observed.
func runUntilBudget[T any](cfg *config, start time.Time, in, out []T, tr Transformer[T]) (i int, elapsed time.Duration, err error) {
	if cfg.panicAsErr {
		defer func() {
			if r := recover(); r != nil {
				err = &TransformError{Index: i, Path: PathSequential, Err: scope.NewPanicError(r)}
			}
		}()
	}

	for ; i < len(in); i++ {
		// Polled once per element: the budget is checked between elements,
		// never during one.
		elapsed = cfg.now().Sub(start)
		if elapsed >= cfg.timeBudget {
			return i, elapsed, nil
		}

		v, terr := tr.Transform(in[i])
		if terr != nil {
			return i, elapsed, &TransformError{Index: i, Path: PathSequential, Err: terr}
		}
		out[i] = v
	}
	return i, elapsed, nil
}
