package threadsplit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/baxromumarov/threadsplit/internal/scope"
)

// execute runs work once per chunk on the configured backend and joins
// every task before returning. work must not panic.
func execute(ctx context.Context, cfg *config, log *zap.Logger, chunks []Chunk, workers int, work func(Chunk) error) error {
	switch cfg.executor {
	case ExecPool:
		return executePool(ctx, cfg, log, chunks, workers, work)
	case ExecErrgroup:
		return executeErrgroup(ctx, cfg, chunks, workers, work)
	case ExecConc:
		return executeConc(ctx, cfg, chunks, workers, work)
	default:
		return executeScope(ctx, cfg, log, chunks, workers, work)
	}
}

func executeScope(ctx context.Context, cfg *config, log *zap.Logger, chunks []Chunk, workers int, work func(Chunk) error) error {
	sc := scope.New(ctx,
		scope.WithLimit(workers),
		scope.WithPolicy(cfg.policy.scopePolicy()),
		scope.WithMaxErrors(cfg.maxErrors),
		scope.WithPanicAsError(),
	)
	for _, c := range chunks {
		sc.Go(c.String(), func(context.Context) error {
			return work(c)
		})
	}
	err := sc.Wait()

	log.Debug("scope joined",
		zap.Int64("spawned", sc.TotalSpawned()),
		zap.Int64("skipped", sc.Skipped()),
		zap.Int("dropped_errors", sc.DroppedErrors()),
	)
	return shape(cfg, err)
}

func executePool(ctx context.Context, cfg *config, log *zap.Logger, chunks []Chunk, workers int, work func(Chunk) error) error {
	p := scope.NewPool(ctx, workers, scope.WithQueueSize(len(chunks)))
	defer func() {
		st := p.Stats()
		log.Debug("pool joined",
			zap.Int64("submitted", st.Submitted),
			zap.Int64("completed", st.Completed),
			zap.Int64("errored", st.Errored),
			zap.Int("workers", st.Workers),
		)
	}()

	var failed atomic.Bool
	for _, c := range chunks {
		err := p.Submit(c.String(), func() error {
			if cfg.policy == FailFast && failed.Load() {
				return nil
			}
			if err := work(c); err != nil {
				failed.Store(true)
				return err
			}
			return nil
		})
		if err != nil {
			return errors.Join(err, p.Close())
		}
	}
	return shape(cfg, p.Close())
}

func executeErrgroup(ctx context.Context, cfg *config, chunks []Chunk, workers int, work func(Chunk) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu   sync.Mutex
		errs []error
	)
	for _, c := range chunks {
		g.Go(func() error {
			if cfg.policy == FailFast {
				if gctx.Err() != nil {
					return nil
				}
				return work(c)
			}
			if err := work(c); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return shape(cfg, errors.Join(errs...))
}

func executeConc(ctx context.Context, cfg *config, chunks []Chunk, workers int, work func(Chunk) error) error {
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	if cfg.policy == FailFast {
		p = p.WithCancelOnError().WithFirstError()
	}
	for _, c := range chunks {
		p.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return nil
			}
			return work(c)
		})
	}
	return shape(cfg, p.Wait())
}
