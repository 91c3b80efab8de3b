// Package scope provides the structured-concurrency primitives the parallel
// path of threadsplit runs on.
//
// A [Scope] spawns named tasks and joins every one of them in [Scope.Wait].
// No task outlives the call that spawned it:
//
//	sc := scope.New(ctx, scope.WithLimit(4), scope.WithPolicy(scope.Collect))
//	for _, c := range chunks {
//	    sc.Go(c.String(), func(ctx context.Context) error {
//	        return work(c)
//	    })
//	}
//	err := sc.Wait()
//
// # Error Policies
//
//   - [FailFast] (default): the first error cancels the scope context. Tasks
//     still waiting for a slot are skipped. Wait returns that first error.
//   - [Collect]: every task runs; all errors are joined via [errors.Join].
//     [WithMaxErrors] caps how many are stored.
//
// Task errors are wrapped in [*TaskError]; [CauseOf] strips the wrapper.
//
// # Bounded Concurrency
//
// [WithLimit] bounds the number of live task goroutines using a weighted
// semaphore acquired before the task goroutine starts.
//
// # Worker Pool
//
// [Pool] is the fixed-goroutine alternative: n workers drain a queue of
// submitted functions until [Pool.Close].
//
// # Panic Recovery
//
// A panic in a task is captured with its stack trace and re-raised from
// [Scope.Wait] on the caller goroutine. [WithPanicAsError] returns it as a
// [*PanicError] value instead.
package scope
