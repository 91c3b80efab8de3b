package threadsplit

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/baxromumarov/threadsplit/internal/scope"
)

const (
	// DefaultSizeThreshold is the input length from which the size policy
	// goes parallel.
	DefaultSizeThreshold = 10

	// DefaultTimeBudget is the time the time policy spends sequentially
	// before handing the rest to the parallel path.
	DefaultTimeBudget = 100 * time.Microsecond

	// DefaultChunkSize is the number of elements per parallel task.
	DefaultChunkSize = 3
)

// Policy determines how a parallel batch reacts to a failing chunk.
// The call fails as a whole under both policies.
type Policy int

const (
	// Collect runs every chunk and reports all failures joined.
	Collect Policy = iota

	// FailFast stops chunks that have not started yet after the first
	// failure and reports that failure only.
	FailFast
)

func (p Policy) String() string {
	switch p {
	case Collect:
		return "collect"
	case FailFast:
		return "fail-fast"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

func (p Policy) scopePolicy() scope.Policy {
	if p == FailFast {
		return scope.FailFast
	}
	return scope.Collect
}

// ParsePolicy parses "collect" or "fail-fast".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "collect", "":
		return Collect, nil
	case "fail-fast", "failfast":
		return FailFast, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Executor selects the backend that runs the chunks of a parallel batch.
// Every executor honours the same contract: disjoint chunks, at most
// MaxWorkers live goroutines, all tasks joined before return.
type Executor int

const (
	// ExecScope spawns one structured-scope task per chunk.
	ExecScope Executor = iota

	// ExecPool feeds chunks to a fixed set of MaxWorkers goroutines.
	ExecPool

	// ExecErrgroup runs chunks on golang.org/x/sync/errgroup.
	ExecErrgroup

	// ExecConc runs chunks on a github.com/sourcegraph/conc pool.
	ExecConc
)

func (e Executor) String() string {
	switch e {
	case ExecScope:
		return "scope"
	case ExecPool:
		return "pool"
	case ExecErrgroup:
		return "errgroup"
	case ExecConc:
		return "conc"
	default:
		return fmt.Sprintf("Executor(%d)", int(e))
	}
}

// ParseExecutor parses an executor name as printed by [Executor.String].
func ParseExecutor(s string) (Executor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scope", "":
		return ExecScope, nil
	case "pool":
		return ExecPool, nil
	case "errgroup":
		return ExecErrgroup, nil
	case "conc":
		return ExecConc, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownExecutor, s)
	}
}

// SwitchInfo describes the moment the time policy left the sequential loop.
type SwitchInfo struct {
	// Index is the first element handed to the parallel path.
	Index int
	// Elapsed is the time measured at the switch.
	Elapsed time.Duration
	// Remaining is the number of elements handed to the parallel path.
	Remaining int
}

// ChunkInfo describes a finished chunk.
type ChunkInfo struct {
	Chunk    Chunk
	Err      error
	Duration time.Duration
}

type config struct {
	sizeThreshold int
	timeBudget    time.Duration
	chunkSize     int
	partitions    int
	maxWorkers    int
	maxChunks     int
	maxErrors     int
	policy        Policy
	executor      Executor
	panicAsErr    bool
	logger        *zap.Logger
	now           func() time.Time
	onSwitch      func(SwitchInfo)
	onChunk       func(ChunkInfo)
}

// Option configures a call.
type Option func(*config)

func defaultConfig() config {
	return config{
		sizeThreshold: DefaultSizeThreshold,
		timeBudget:    DefaultTimeBudget,
		chunkSize:     DefaultChunkSize,
		maxWorkers:    runtime.GOMAXPROCS(0),
		policy:        Collect,
		executor:      ExecScope,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// runLogger tags the call with a run_id when debug logging is on.
func (c *config) runLogger(policy Strategy) *zap.Logger {
	log := c.logger.With(zap.Stringer("policy", policy))
	if !log.Core().Enabled(zapcore.DebugLevel) {
		return log
	}
	return log.With(zap.String("run_id", uuid.NewString()))
}

// WithSizeThreshold sets the length from which the size policy goes
// parallel. Panics if n is negative.
func WithSizeThreshold(n int) Option {
	return func(c *config) {
		if n < 0 {
			panic("threadsplit: size threshold must be non-negative")
		}
		c.sizeThreshold = n
	}
}

// WithTimeBudget sets how long the time policy stays sequential. A zero
// budget sends the whole input to the parallel path. Panics if d is negative.
func WithTimeBudget(d time.Duration) Option {
	return func(c *config) {
		if d < 0 {
			panic("threadsplit: time budget must be non-negative")
		}
		c.timeBudget = d
	}
}

// WithChunkSize sets the number of elements per parallel task.
// Panics if n <= 0.
func WithChunkSize(n int) Option {
	return func(c *config) {
		if n <= 0 {
			panic("threadsplit: chunk size must be positive")
		}
		c.chunkSize = n
	}
}

// WithPartitions splits each parallel region into at most n equal chunks
// instead of fixed-size ones. Zero restores fixed-size chunks.
// Panics if n is negative.
func WithPartitions(n int) Option {
	return func(c *config) {
		if n < 0 {
			panic("threadsplit: partitions must be non-negative")
		}
		c.partitions = n
	}
}

// WithMaxWorkers caps the number of chunk goroutines alive at once.
// Panics if n <= 0.
func WithMaxWorkers(n int) Option {
	return func(c *config) {
		if n <= 0 {
			panic("threadsplit: max workers must be positive")
		}
		c.maxWorkers = n
	}
}

// WithMaxChunks bounds the number of tasks a single batch may need. A batch
// over the limit fails with [ErrTooManyChunks]. Zero means unbounded.
// Panics if n is negative.
func WithMaxChunks(n int) Option {
	return func(c *config) {
		if n < 0 {
			panic("threadsplit: max chunks must be non-negative")
		}
		c.maxChunks = n
	}
}

// WithMaxErrors caps the number of failures reported under [Collect].
// Zero means unbounded. Panics if n is negative.
func WithMaxErrors(n int) Option {
	return func(c *config) {
		if n < 0 {
			panic("threadsplit: max errors must be non-negative")
		}
		c.maxErrors = n
	}
}

// WithPolicy sets the failure policy of parallel batches.
// It panics if p is not a known Policy value.
func WithPolicy(p Policy) Option {
	return func(c *config) {
		switch p {
		case Collect, FailFast:
			c.policy = p
		default:
			panic("threadsplit: invalid policy")
		}
	}
}

// WithExecutor selects the parallel backend.
// It panics if e is not a known Executor value.
func WithExecutor(e Executor) Option {
	return func(c *config) {
		switch e {
		case ExecScope, ExecPool, ExecErrgroup, ExecConc:
			c.executor = e
		default:
			panic("threadsplit: invalid executor")
		}
	}
}

// WithPanicAsError returns transformer panics as [*PanicError] values
// wrapped in a [*TransformError] instead of re-raising them.
func WithPanicAsError() Option {
	return func(c *config) {
		c.panicAsErr = true
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l == nil {
			l = zap.NewNop()
		}
		c.logger = l
	}
}

// WithClock replaces time.Now for the time policy. The clock is only read
// from the calling goroutine.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now == nil {
			panic("threadsplit: clock must not be nil")
		}
		c.now = now
	}
}

// WithOnSwitch registers a hook called on the calling goroutine when the
// time policy hands the remaining elements to the parallel path.
func WithOnSwitch(fn func(SwitchInfo)) Option {
	return func(c *config) {
		c.onSwitch = fn
	}
}

// WithOnChunk registers a hook called inside each chunk goroutine after the
// chunk finished. It must be safe for concurrent use. A panic in the hook is
// handled like a panic in the transformer: re-raised as a [*PanicError] on
// the caller once every chunk has been joined, or returned with
// [WithPanicAsError].
func WithOnChunk(fn func(ChunkInfo)) Option {
	return func(c *config) {
		c.onChunk = fn
	}
}
