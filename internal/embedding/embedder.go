package embedding

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"bnrag/internal/domain"
)

// Batch is the outcome of embedding a set of chunks. Chunks whose embedding
// failed or came back empty are left out of Chunks/Vectors and counted in Skipped.
type Batch struct {
	Chunks  []domain.Chunk
	Vectors [][]float32
	Skipped int
}

// EmbedChunks embeds chunks with at most concurrency calls in flight, keeping source order.
// It only returns an error when ctx is done.
func EmbedChunks(ctx context.Context, e domain.Embedder, chunks []domain.Chunk, concurrency int) (Batch, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	vectors := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range chunks {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer func() { <-sem; wg.Done() }()
			vectors[idx], errs[idx] = e.Embed(ctx, chunks[idx].Content)
		}(i)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}

	var b Batch
	for i, c := range chunks {
		err := errs[i]
		if err == nil && isZero(vectors[i]) {
			err = errors.New("zero vector")
		}
		if err != nil {
			slog.Warn("skipping chunk", "chunk_id", c.ID, "error", err)
			b.Skipped++
			continue
		}
		b.Chunks = append(b.Chunks, c)
		b.Vectors = append(b.Vectors, vectors[i])
	}
	return b, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
