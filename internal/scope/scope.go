package scope

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Scope runs named tasks on their own goroutines and joins all of them in
// [Scope.Wait]. Create one with [New].
type Scope struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	cfg    config
	sem    *semaphore.Weighted

	wg   sync.WaitGroup
	open atomic.Bool

	errMu    sync.Mutex
	firstErr *TaskError
	errs     []error
	dropped  int

	panicMu    sync.Mutex
	firstPanic *PanicError

	spawned atomic.Int64
	skipped atomic.Int64

	waitOnce sync.Once
	err      error
}

// New creates a scope whose context is derived from parent. The caller must
// call [Scope.Wait].
func New(parent context.Context, opts ...Option) *Scope {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancelCause(parent)
	s := &Scope{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
	}
	if cfg.limit > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.limit))
	}
	s.open.Store(true)
	return s
}

// Go starts fn as a task named name. With a limit set, Go blocks until a
// slot is free; the slot is taken here, on the calling goroutine, so live
// task goroutines never exceed the limit. A task whose slot arrives after the
// scope was cancelled is skipped. Go panics after Wait.
func (s *Scope) Go(name string, fn func(ctx context.Context) error) {
	// Checked before wg.Add so Wait cannot race a late Add.
	if !s.open.Load() {
		panic("scope: Go called after Wait")
	}

	if s.sem != nil {
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			s.skipped.Add(1)
			return
		}
	}
	if s.ctx.Err() != nil {
		if s.sem != nil {
			s.sem.Release(1)
		}
		s.skipped.Add(1)
		return
	}

	s.wg.Add(1)
	s.spawned.Add(1)

	go func() {
		defer s.wg.Done()
		if s.sem != nil {
			defer s.sem.Release(1)
		}

		if err := s.exec(fn); err != nil {
			s.recordError(TaskInfo{Name: name}, err)
		}
	}()
}

// exec runs fn, capturing a panic with its stack.
func (s *Scope) exec(fn func(ctx context.Context) error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		pe := NewPanicError(r)
		if s.cfg.panicAsErr {
			err = pe
			return
		}
		s.panicMu.Lock()
		if s.firstPanic == nil {
			s.firstPanic = pe
		}
		s.panicMu.Unlock()
		s.cancel(pe)
	}()
	return fn(s.ctx)
}

func (s *Scope) recordError(info TaskInfo, err error) {
	te := &TaskError{Task: info, Err: err}

	s.errMu.Lock()
	defer s.errMu.Unlock()

	switch s.cfg.policy {
	case FailFast:
		if s.firstErr == nil {
			s.firstErr = te
			s.cancel(err)
		}
	case Collect:
		if s.cfg.maxErrors > 0 && len(s.errs) >= s.cfg.maxErrors {
			s.dropped++
			return
		}
		s.errs = append(s.errs, te)
	}
}

// Wait stops accepting tasks, waits for every spawned task and returns the
// error chosen by the policy: the first [*TaskError] under [FailFast], all
// of them joined under [Collect]. When no task failed but the parent
// context was cancelled, its cause is returned. A captured panic is
// re-raised here unless [WithPanicAsError] was set. Wait is idempotent.
func (s *Scope) Wait() error {
	s.waitOnce.Do(func() {
		s.open.Store(false)
		s.wg.Wait()

		cancelled := s.ctx.Err() != nil
		s.cancel(nil)

		s.errMu.Lock()
		switch {
		case s.firstErr != nil:
			s.err = s.firstErr
		case len(s.errs) > 0:
			s.err = errors.Join(s.errs...)
		}
		s.errMu.Unlock()

		if s.err == nil && s.firstPanic == nil && cancelled {
			s.err = context.Cause(s.ctx)
		}
	})

	if s.firstPanic != nil {
		panic(s.firstPanic)
	}
	return s.err
}

// TotalSpawned returns the number of tasks started.
func (s *Scope) TotalSpawned() int64 {
	return s.spawned.Load()
}

// Skipped returns the number of tasks that never ran because the scope was
// cancelled before they got a slot.
func (s *Scope) Skipped() int64 {
	return s.skipped.Load()
}

// DroppedErrors returns the number of errors discarded by [WithMaxErrors].
func (s *Scope) DroppedErrors() int {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.dropped
}
