package threadsplit_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/threadsplit"
)

var executors = []threadsplit.Executor{
	threadsplit.ExecScope,
	threadsplit.ExecPool,
	threadsplit.ExecErrgroup,
	threadsplit.ExecConc,
}

func TestExecutorsAgree(t *testing.T) {
	in := rangeInput(1000)
	want := sequentialMap(in, threadsplit.Double[int])

	for _, e := range executors {
		for _, s := range []threadsplit.Strategy{threadsplit.BySize, threadsplit.ByTime} {
			t.Run(e.String()+"/"+s.String(), func(t *testing.T) {
				out, err := threadsplit.Split(context.Background(), s, in, double,
					threadsplit.WithExecutor(e),
					threadsplit.WithTimeBudget(0),
					threadsplit.WithMaxWorkers(4),
					threadsplit.WithChunkSize(7),
				)
				require.NoError(t, err)
				assert.Equal(t, want, out)
			})
		}
	}
}

func TestExecutorsPartitions(t *testing.T) {
	in := rangeInput(100)
	for _, e := range executors {
		t.Run(e.String(), func(t *testing.T) {
			var chunks atomic.Int32
			out, err := threadsplit.SplitOnSize(context.Background(), in, double,
				threadsplit.WithExecutor(e),
				threadsplit.WithPartitions(4),
				threadsplit.WithOnChunk(func(ci threadsplit.ChunkInfo) {
					chunks.Add(1)
					assert.Equal(t, 25, ci.Chunk.Len())
				}),
			)
			require.NoError(t, err)
			assert.Equal(t, sequentialMap(in, threadsplit.Double[int]), out)
			assert.Equal(t, int32(4), chunks.Load())
		})
	}
}

func failAt(bad map[int]bool) threadsplit.Transformer[int] {
	return threadsplit.ErrFunc[int](func(x int) (int, error) {
		if bad[x] {
			return 0, errors.New("bad element")
		}
		return x, nil
	})
}

func transformErrors(err error) []*threadsplit.TransformError {
	var out []*threadsplit.TransformError
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if te, ok := err.(*threadsplit.TransformError); ok {
			out = append(out, te)
			return
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				walk(e)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

func TestExecutorsCollectReportsEveryFailure(t *testing.T) {
	in := make([]int, 30)
	for i := range in {
		in[i] = i
	}
	bad := map[int]bool{1: true, 13: true, 29: true}

	for _, e := range executors {
		t.Run(e.String(), func(t *testing.T) {
			var chunks atomic.Int32
			out, err := threadsplit.SplitOnSize(context.Background(), in, failAt(bad),
				threadsplit.WithExecutor(e),
				threadsplit.WithPolicy(threadsplit.Collect),
				threadsplit.WithOnChunk(func(threadsplit.ChunkInfo) { chunks.Add(1) }),
			)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, int32(10), chunks.Load(), "every chunk runs under Collect")

			var idx []int
			for _, te := range transformErrors(err) {
				idx = append(idx, te.Index)
				assert.Equal(t, threadsplit.PathParallel, te.Path)
			}
			assert.ElementsMatch(t, []int{1, 13, 29}, idx)
		})
	}
}

func TestExecutorsCollectMaxErrors(t *testing.T) {
	in := make([]int, 30)
	for i := range in {
		in[i] = i
	}
	bad := map[int]bool{0: true, 3: true, 6: true, 9: true}

	for _, e := range executors {
		t.Run(e.String(), func(t *testing.T) {
			_, err := threadsplit.SplitOnSize(context.Background(), in, failAt(bad),
				threadsplit.WithExecutor(e),
				threadsplit.WithMaxErrors(2),
			)
			require.Error(t, err)
			assert.Len(t, transformErrors(err), 2)
		})
	}
}

func TestExecutorsFailFastReportsOneFailure(t *testing.T) {
	in := make([]int, 300)
	for i := range in {
		in[i] = i
	}
	bad := map[int]bool{0: true, 150: true, 299: true}

	for _, e := range executors {
		t.Run(e.String(), func(t *testing.T) {
			var chunks atomic.Int32
			out, err := threadsplit.SplitOnSize(context.Background(), in,
				threadsplit.ErrFunc[int](func(x int) (int, error) {
					if bad[x] {
						return 0, errors.New("bad element")
					}
					time.Sleep(50 * time.Microsecond)
					return x, nil
				}),
				threadsplit.WithExecutor(e),
				threadsplit.WithPolicy(threadsplit.FailFast),
				threadsplit.WithMaxWorkers(1),
				threadsplit.WithOnChunk(func(threadsplit.ChunkInfo) { chunks.Add(1) }),
			)
			require.Error(t, err)
			assert.Nil(t, out)

			errs := transformErrors(err)
			require.Len(t, errs, 1)
			assert.Equal(t, 0, errs[0].Index)
			assert.Less(t, chunks.Load(), int32(100), "chunks after the failure are skipped")
		})
	}
}

func TestExecutorsPanic(t *testing.T) {
	in := rangeInput(40)
	f := threadsplit.Func[int](func(x int) int {
		if x == in[20] {
			panic("chunk boom")
		}
		return x
	})

	for _, e := range executors {
		t.Run(e.String(), func(t *testing.T) {
			var recovered any
			func() {
				defer func() { recovered = recover() }()
				_, _ = threadsplit.SplitOnSize(context.Background(), in, f, threadsplit.WithExecutor(e))
			}()
			pe, ok := recovered.(*threadsplit.PanicError)
			require.True(t, ok, "got %T", recovered)
			assert.Equal(t, "chunk boom", pe.Value)
			assert.NotEmpty(t, pe.Stack)

			_, err := threadsplit.SplitOnSize(context.Background(), in, f,
				threadsplit.WithExecutor(e), threadsplit.WithPanicAsError())
			var te *threadsplit.TransformError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, 20, te.Index)
			require.ErrorAs(t, err, &pe)
		})
	}
}

func TestExecutorsLeaveNoGoroutines(t *testing.T) {
	in := rangeInput(200)
	for _, e := range executors {
		var live, peak atomic.Int32
		_, err := threadsplit.SplitOnSize(context.Background(), in,
			threadsplit.Func[int](func(x int) int {
				n := live.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Microsecond)
				live.Add(-1)
				return x
			}),
			threadsplit.WithExecutor(e),
			threadsplit.WithMaxWorkers(3),
		)
		require.NoError(t, err)
		assert.Zero(t, live.Load(), "%s: every task joined before return", e)
		assert.LessOrEqual(t, peak.Load(), int32(3), "%s", e)
	}
}

func TestExecutorsReportIdenticalErrors(t *testing.T) {
	in := make([]int, 30)
	for i := range in {
		in[i] = i
	}

	t.Run("single failure", func(t *testing.T) {
		var msgs []string
		for _, e := range executors {
			_, err := threadsplit.SplitOnSize(context.Background(), in, failAt(map[int]bool{17: true}),
				threadsplit.WithExecutor(e))
			te, ok := err.(*threadsplit.TransformError)
			require.True(t, ok, "%s: got %T", e, err)
			assert.Equal(t, 17, te.Index)
			msgs = append(msgs, err.Error())
		}
		for i := 1; i < len(msgs); i++ {
			assert.Equal(t, msgs[0], msgs[i], "%s and %s disagree", executors[0], executors[i])
		}
	})

	t.Run("joined failures", func(t *testing.T) {
		for _, e := range executors {
			_, err := threadsplit.SplitOnSize(context.Background(), in, failAt(map[int]bool{2: true, 20: true}),
				threadsplit.WithExecutor(e))
			joined, ok := err.(interface{ Unwrap() []error })
			require.True(t, ok, "%s: got %T", e, err)

			var idx []int
			for _, sub := range joined.Unwrap() {
				te, ok := sub.(*threadsplit.TransformError)
				require.True(t, ok, "%s: joined element is %T", e, sub)
				idx = append(idx, te.Index)
			}
			assert.ElementsMatch(t, []int{2, 20}, idx, "%s", e)
		}
	})
}

func TestExecutorsChunkHookPanic(t *testing.T) {
	in := rangeInput(30)

	for _, e := range executors {
		t.Run(e.String(), func(t *testing.T) {
			var transformed atomic.Int32
			count := threadsplit.Func[int](func(x int) int {
				transformed.Add(1)
				return x
			})
			hook := threadsplit.WithOnChunk(func(ci threadsplit.ChunkInfo) {
				if ci.Chunk.Index == 1 {
					panic("hook boom")
				}
			})

			var recovered any
			func() {
				defer func() { recovered = recover() }()
				_, _ = threadsplit.SplitOnSize(context.Background(), in, count, threadsplit.WithExecutor(e), hook)
			}()
			pe, ok := recovered.(*threadsplit.PanicError)
			require.True(t, ok, "got %T", recovered)
			assert.Equal(t, "hook boom", pe.Value)
			assert.Equal(t, int32(len(in)), transformed.Load(), "every chunk is joined before the panic is re-raised")

			out, err := threadsplit.SplitOnSize(context.Background(), in, count,
				threadsplit.WithExecutor(e), threadsplit.WithPanicAsError(), hook)
			assert.Nil(t, out)
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "hook boom", pe.Value)
		})
	}
}
