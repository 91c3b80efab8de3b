package scope

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by [Pool.Submit] after the pool has been closed.
var ErrPoolClosed = errors.New("scope: pool is closed")

type poolTask struct {
	info TaskInfo
	fn   func() error
}

// Pool is a fixed-size worker pool. Exactly n goroutines drain the task
// queue, so the number of live goroutines does not grow with the number of
// submitted tasks.
type Pool struct {
	tasks  chan poolTask
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	errMu sync.Mutex
	errs  []error

	submitted atomic.Int64
	completed atomic.Int64
	errored   atomic.Int64
	workers   int
}

// PoolStats is a point-in-time snapshot of pool activity.
type PoolStats struct {
	Submitted int64 // tasks accepted by Submit
	Completed int64 // tasks finished (success + error)
	Errored   int64 // tasks that returned an error or panicked
	Workers   int   // worker count, fixed at creation
}

// PoolOption configures a [Pool].
type PoolOption func(*poolConfig)

type poolConfig struct {
	queueSize int
}

// WithQueueSize sets the task queue buffer size. Default is n * 2.
func WithQueueSize(size int) PoolOption {
	return func(c *poolConfig) {
		if size < 0 {
			panic("scope: WithQueueSize requires non-negative size")
		}
		c.queueSize = size
	}
}

// NewPool starts a pool with n workers. Panics if n <= 0.
func NewPool(ctx context.Context, n int, opts ...PoolOption) *Pool {
	if n <= 0 {
		panic("scope: NewPool requires n > 0")
	}

	cfg := poolConfig{queueSize: n * 2}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		tasks:   make(chan poolTask, cfg.queueSize),
		ctx:     ctx,
		cancel:  cancel,
		workers: n,
	}

	p.wg.Add(n)
	for range n {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.runTask(t)
	}
}

func (p *Pool) runTask(t poolTask) {
	defer p.completed.Add(1)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = NewPanicError(r)
			}
		}()
		err = t.fn()
	}()
	if err == nil {
		return
	}

	p.errored.Add(1)
	p.errMu.Lock()
	p.errs = append(p.errs, &TaskError{Task: t.info, Err: err})
	p.errMu.Unlock()
}

// Stats returns a snapshot of pool activity. Safe for concurrent use.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Errored:   p.errored.Load(),
		Workers:   p.workers,
	}
}

// Submit queues a named task, blocking while the queue is full.
// Returns [ErrPoolClosed] after Close, or ctx.Err() if the pool context is
// cancelled while waiting.
func (p *Pool) Submit(name string, fn func() error) (err error) {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	// Close may run between the check above and the send below; the send
	// then panics on the closed channel.
	defer func() {
		if r := recover(); r != nil {
			err = ErrPoolClosed
		}
	}()

	select {
	case p.tasks <- poolTask{info: TaskInfo{Name: name}, fn: fn}:
		p.submitted.Add(1)
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Close stops accepting tasks, waits for queued and in-flight tasks to
// finish and returns their errors joined, each wrapped in a [*TaskError].
// Close is safe to call more than once.
func (p *Pool) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		close(p.tasks)
	}
	p.wg.Wait()
	p.cancel()

	p.errMu.Lock()
	defer p.errMu.Unlock()
	return errors.Join(p.errs...)
}
