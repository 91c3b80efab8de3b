package scope

// Policy determines how a scope handles errors from its tasks.
type Policy int

const (
	// FailFast cancels the scope context when the first error occurs.
	// Tasks that have not acquired a slot yet are skipped.
	FailFast Policy = iota

	// Collect lets every task run and joins all errors.
	Collect
)

type config struct {
	policy     Policy
	limit      int
	maxErrors  int
	panicAsErr bool
}

// Option configures a scope.
type Option func(*config)

func defaultConfig() config {
	return config{
		policy: FailFast,
	}
}

// WithPolicy sets the error handling policy.
// It panics if p is not a known Policy value.
func WithPolicy(p Policy) Option {
	return func(c *config) {
		switch p {
		case FailFast, Collect:
			c.policy = p
		default:
			panic("scope: invalid policy")
		}
	}
}

// WithLimit caps the number of live task goroutines. Go blocks the caller
// until a slot frees up or the scope context is cancelled.
//
// Zero (the default) means unlimited. WithLimit panics if n is negative.
func WithLimit(n int) Option {
	return func(c *config) {
		if n < 0 {
			panic("scope: limit must be non-negative")
		}
		c.limit = n
	}
}

// WithMaxErrors caps the number of errors stored in [Collect] mode.
// Errors past the cap are counted by [Scope.DroppedErrors] but not returned.
// Zero means unlimited.
func WithMaxErrors(n int) Option {
	return func(c *config) {
		if n < 0 {
			panic("scope: max errors must be non-negative")
		}
		c.maxErrors = n
	}
}

// WithPanicAsError converts task panics to [*PanicError] values returned
// as regular errors instead of re-raising them in [Scope.Wait].
func WithPanicAsError() Option {
	return func(c *config) {
		c.panicAsErr = true
	}
}
