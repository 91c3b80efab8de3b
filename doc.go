// Package threadsplit applies a transformation to every element of a slice,
// deciding at run time whether to do it sequentially on the calling goroutine
// or to split the work into chunks run by concurrent tasks.
//
// # Policies
//
// [SplitOnSize] decides by length alone: inputs shorter than the size
// threshold (default 10) run sequentially, longer ones go parallel.
//
// [SplitOnTime] starts sequentially and polls the clock before every
// element. Once the time budget (default 100µs) is spent, the elements not
// yet transformed are handed to the parallel path in one batch:
//
//	out, err := threadsplit.SplitOnTime(ctx, in, threadsplit.Func[int](func(x int) int {
//	    return x * 2
//	}), threadsplit.WithTimeBudget(50*time.Microsecond))
//
// Both return a new slice, same length and order as the input. The input is
// never modified and the result never aliases it.
//
// # Chunked Parallel Apply
//
// [ApplyChunks] is the parallel path. It partitions a slice into consecutive
// chunks of [WithChunkSize] elements (default 3), or into [WithPartitions]
// equal pieces, and hands each chunk to one task that owns that sub-slice
// exclusively. Chunk size and concurrency are separate knobs: at most
// [WithMaxWorkers] chunk goroutines (default GOMAXPROCS) exist at a time. The
// call returns only after every task has been joined.
//
// The tasks run on an [Executor]: a structured scope (default), a fixed
// worker pool, golang.org/x/sync/errgroup, or a sourcegraph/conc pool.
//
// # Errors
//
// A failing element is reported as a [*TransformError] carrying its index,
// path and chunk. Under [Collect] (default) every chunk runs and all failures
// are joined; under [FailFast] chunks that have not started are skipped. The
// call fails as a whole: no partial result is returned.
//
// A panic inside a chunk task is captured with its stack and re-raised as a
// [*PanicError] on the calling goroutine once all tasks are joined. A panic
// in the sequential path unwinds the caller directly. With
// [WithPanicAsError] both are returned as errors instead.
//
// # Cancellation
//
// The context is checked on entry and before a parallel batch starts. A
// running batch is not cancellable.
package threadsplit
