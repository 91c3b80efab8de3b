package threadsplit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/baxromumarov/threadsplit/internal/scope"
)

// Chunk is the half-open range [Start, End) of absolute sequence indices
// handed to one parallel task. Index is its position within the batch.
type Chunk struct {
	Index int
	Start int
	End   int
}

// Len returns the number of elements in the chunk.
func (c Chunk) Len() int {
	return c.End - c.Start
}

func (c Chunk) String() string {
	return fmt.Sprintf("chunk[%d:%d]", c.Start, c.End)
}

// partition splits the n elements starting at offset into consecutive
// chunks. All chunks but the last have exactly the chunk size.
func partition(offset, n int, cfg *config) []Chunk {
	if n <= 0 {
		return nil
	}

	size := cfg.chunkSize
	if cfg.partitions > 0 {
		size = max(1, (n+cfg.partitions-1)/cfg.partitions)
	}

	chunks := make([]Chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: offset + start,
			End:   offset + min(start+size, n),
		})
	}
	return chunks
}

// ApplyChunks transforms every element of region in place, splitting the
// work into chunks run by concurrent tasks. Each task owns a disjoint
// sub-slice of region. ApplyChunks returns after every task finished.
//
// On failure region is left partly transformed and must be discarded.
// ctx is checked once before the batch starts; a running batch is not
// cancellable.
func ApplyChunks[T any](ctx context.Context, region []T, tr Transformer[T], opts ...Option) error {
	cfg := newConfig(opts)
	if err := ctx.Err(); err != nil {
		return err
	}
	return applyChunks(ctx, &cfg, cfg.logger, region, 0, tr)
}

// applyChunks runs tr over region in parallel. base is the absolute index of
// region[0], used for chunk bounds and error reports.
func applyChunks[T any](ctx context.Context, cfg *config, log *zap.Logger, region []T, base int, tr Transformer[T]) error {
	chunks := partition(base, len(region), cfg)
	if len(chunks) == 0 {
		return nil
	}
	if cfg.maxChunks > 0 && len(chunks) > cfg.maxChunks {
		return fmt.Errorf("%w: %d chunks for %d elements, limit %d",
			ErrTooManyChunks, len(chunks), len(region), cfg.maxChunks)
	}

	workers := min(cfg.maxWorkers, len(chunks))
	log.Debug("starting parallel batch",
		zap.Int("offset", base),
		zap.Int("len", len(region)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", chunks[0].Len()),
		zap.Int("workers", workers),
		zap.Stringer("executor", cfg.executor),
	)

	work := func(c Chunk) error {
		return runChunk(cfg, region[c.Start-base:c.End-base], c, tr)
	}

	err := execute(context.WithoutCancel(ctx), cfg, log, chunks, workers, work)
	if err != nil {
		log.Warn("parallel batch failed", zap.Int("offset", base), zap.Error(err))
	}
	return surface(cfg, err)
}

// runChunk transforms part, the elements of c, in place and reports the
// chunk to the onChunk hook. A panic in the hook is returned as a
// *PanicError like a panic in the transformer.
func runChunk[T any](cfg *config, part []T, c Chunk, tr Transformer[T]) (err error) {
	start := time.Now()
	err = transformChunk(part, c, tr)
	if cfg.onChunk == nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("threadsplit: chunk hook for %s: %w", c, scope.NewPanicError(r))
		}
	}()
	cfg.onChunk(ChunkInfo{Chunk: c, Err: err, Duration: time.Since(start)})
	return err
}

func transformChunk[T any](part []T, c Chunk, tr Transformer[T]) (err error) {
	i := 0
	defer func() {
		if r := recover(); r != nil {
			err = &TransformError{Index: c.Start + i, Path: PathParallel, Chunk: c, Err: scope.NewPanicError(r)}
		}
	}()

	for ; i < len(part); i++ {
		v, terr := tr.Transform(part[i])
		if terr != nil {
			return &TransformError{Index: c.Start + i, Path: PathParallel, Chunk: c, Err: terr}
		}
		part[i] = v
	}
	return nil
}
