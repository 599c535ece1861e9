package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"bnrag/internal/domain"
	"bnrag/internal/vectorstore"
)

const undefinedTable = "42P01"

// Storage keeps chunks in a Postgres table with a pgvector column and ranks them
// with the cosine distance operator through an HNSW index.
type Storage struct {
	db    *sql.DB
	table string

	mu        sync.Mutex
	dimension int
}

// NewStorage opens a connection and returns a storage instance.
func NewStorage(ctx context.Context, dsn, table string) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if table == "" {
		table = "bnrag_chunks"
	}
	return &Storage{db: db, table: table}, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Insert(ctx context.Context, vector []float32, chunk domain.Chunk) error {
	return s.InsertAll(ctx, []domain.Chunk{chunk}, [][]float32{vector})
}

// InsertAll writes the batch in one transaction.
func (s *Storage) InsertAll(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if err := vectorstore.CheckBatch(chunks, vectors, 0); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	if err := s.ensureSchema(ctx, len(vectors[0])); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (chunk_id, content, length, vector) VALUES ($1, $2, $3, $4::vector)`,
		pq.QuoteIdentifier(s.table)))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Content, c.Length, vectorToString(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Rank orders by distance and then by insertion position, so ties keep insertion order.
func (s *Storage) Rank(ctx context.Context, query []float32, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		return []domain.RetrievalResult{}, nil
	}
	dim, err := s.storedDimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []domain.RetrievalResult{}, nil
	}
	if len(query) != dim {
		return nil, &domain.DimensionMismatchError{Want: dim, Got: len(query)}
	}

	q := fmt.Sprintf(`SELECT chunk_id, content, length, vector <=> $1::vector AS distance
	          FROM %s
	          ORDER BY distance, position
	          LIMIT $2`, pq.QuoteIdentifier(s.table))
	rows, err := s.db.QueryContext(ctx, q, vectorToString(query), topK)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	defer rows.Close()

	var results []domain.RetrievalResult
	for rows.Next() {
		var (
			r        domain.RetrievalResult
			distance sql.NullFloat64
		)
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.Content, &r.Chunk.Length, &distance); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Distance = scanDistance(distance)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	return vectorstore.SortAndLimit(results, topK), nil
}

// scanDistance maps the <=> result to [0, 2]. Zero-norm vectors come back as
// NULL or NaN depending on the pgvector version; both rank as distance 1.
func scanDistance(d sql.NullFloat64) float64 {
	if !d.Valid {
		return 1
	}
	return vectorstore.ClampDistance(d.Float64)
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pq.QuoteIdentifier(s.table))).Scan(&n)
	if isUndefinedTable(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Reset drops the table so the next insert may use a different dimension.
func (s *Storage) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, pq.QuoteIdentifier(s.table))); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.mu.Lock()
	s.dimension = 0
	s.mu.Unlock()
	return nil
}

func (s *Storage) ensureSchema(ctx context.Context, dimension int) error {
	existing, err := s.storedDimension(ctx)
	if err != nil {
		return err
	}
	if existing != 0 {
		if existing != dimension {
			return &domain.DimensionMismatchError{Want: existing, Got: dimension}
		}
		return nil
	}
	table := pq.QuoteIdentifier(s.table)
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			position BIGSERIAL PRIMARY KEY,
			chunk_id INTEGER NOT NULL,
			content  TEXT NOT NULL,
			length   INTEGER NOT NULL,
			vector   vector(%d) NOT NULL
		)`, table, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (vector vector_cosine_ops)`,
			pq.QuoteIdentifier(s.table+"_vector_idx"), table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	s.mu.Lock()
	s.dimension = dimension
	s.mu.Unlock()
	return nil
}

// storedDimension returns the dimension of the stored vectors, or 0 when the table is missing or empty.
func (s *Storage) storedDimension(ctx context.Context) (int, error) {
	s.mu.Lock()
	dim := s.dimension
	s.mu.Unlock()
	if dim > 0 {
		return dim, nil
	}
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT vector_dims(vector) FROM %s LIMIT 1`, pq.QuoteIdentifier(s.table))).Scan(&dim)
	if isUndefinedTable(err) || errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read dimension: %w", err)
	}
	s.mu.Lock()
	s.dimension = dim
	s.mu.Unlock()
	return dim, nil
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == undefinedTable
}

// vectorToString converts a float32 slice to pgvector text format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.FormatFloat(float64(val), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
