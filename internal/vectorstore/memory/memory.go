package memory

import (
	"context"
	"errors"
	"sync"

	"bnrag/internal/domain"
	"bnrag/internal/vectorstore"
)

// Storage is an in-memory vector index using exhaustive brute-force cosine distance.
// When a snapshot path is configured every mutation is written to disk so that a
// restarted process sees the populated index.
type Storage struct {
	mu           sync.RWMutex
	dimension    int
	records      []domain.EmbeddingRecord
	snapshotPath string
}

func NewStorage() *Storage { return &Storage{} }

// NewPersistentStorage returns a storage backed by a gob snapshot at path, loading it if present.
func NewPersistentStorage(ctx context.Context, path string) (*Storage, error) {
	s := &Storage{snapshotPath: path}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) Insert(ctx context.Context, vector []float32, chunk domain.Chunk) error {
	return s.InsertAll(ctx, []domain.Chunk{chunk}, [][]float32{vector})
}

func (s *Storage) InsertAll(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := vectorstore.CheckBatch(chunks, vectors, s.dimension); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	if s.dimension == 0 {
		s.dimension = len(vectors[0])
	}
	for i := range chunks {
		v := make([]float32, len(vectors[i]))
		copy(v, vectors[i])
		s.records = append(s.records, domain.EmbeddingRecord{Vector: v, Chunk: chunks[i]})
	}
	return s.persistLocked(ctx)
}

// Rank scores every stored vector against query. It allocates its own scratch
// space so concurrent calls do not interfere.
func (s *Storage) Rank(ctx context.Context, query []float32, topK int) ([]domain.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 || len(s.records) == 0 {
		return []domain.RetrievalResult{}, nil
	}
	if len(query) != s.dimension {
		return nil, &domain.DimensionMismatchError{Want: s.dimension, Got: len(query)}
	}
	results := make([]domain.RetrievalResult, len(s.records))
	for i, r := range s.records {
		results[i] = domain.RetrievalResult{
			Chunk:    r.Chunk,
			Distance: vectorstore.CosineDistance(query, r.Vector),
		}
	}
	return vectorstore.SortAndLimit(results, topK), nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *Storage) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.dimension = 0
	return s.persistLocked(ctx)
}

func (s *Storage) persistLocked(ctx context.Context) error {
	if s.snapshotPath == "" {
		return nil
	}
	return writeSnapshot(ctx, s.snapshotPath, snapshot{Dimension: s.dimension, Records: s.records})
}

func (s *Storage) load(ctx context.Context) error {
	snap, err := readSnapshot(ctx, s.snapshotPath)
	if errors.Is(err, errNoSnapshot) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := vectorstore.CheckBatch(snap.chunks(), snap.vectors(), snap.Dimension); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = snap.Dimension
	s.records = snap.Records
	return nil
}
