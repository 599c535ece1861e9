package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/lib/pq"

	"bnrag/internal/domain"
)

func TestVectorToString(t *testing.T) {
	got := vectorToString([]float32{0.5, -1, 0, 0.25})
	if got != "[0.5,-1,0,0.25]" {
		t.Fatalf("unexpected vector literal: %s", got)
	}
	if vectorToString(nil) != "[]" {
		t.Fatalf("unexpected empty literal")
	}
}

func TestIsUndefinedTable(t *testing.T) {
	if !isUndefinedTable(fmt.Errorf("count: %w", &pq.Error{Code: "42P01"})) {
		t.Fatalf("expected wrapped 42P01 to be detected")
	}
	if isUndefinedTable(&pq.Error{Code: "23505"}) || isUndefinedTable(errors.New("boom")) || isUndefinedTable(nil) {
		t.Fatalf("unexpected undefined-table match")
	}
}

func TestScanDistance(t *testing.T) {
	cases := []struct {
		name string
		in   sql.NullFloat64
		want float64
	}{
		{"null", sql.NullFloat64{}, 1},
		{"nan", sql.NullFloat64{Float64: math.NaN(), Valid: true}, 1},
		{"negative rounding", sql.NullFloat64{Float64: -1e-9, Valid: true}, 0},
		{"regular", sql.NullFloat64{Float64: 0.25, Valid: true}, 0.25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := scanDistance(tc.in); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

// TestStorage_Postgres runs against a live database when BNRAG_TEST_PG_DSN is set.
func TestStorage_Postgres(t *testing.T) {
	dsn := os.Getenv("BNRAG_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("BNRAG_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := NewStorage(ctx, dsn, "bnrag_test_chunks")
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	defer s.Reset(ctx)

	chunks := []domain.Chunk{{ID: 0, Content: "far"}, {ID: 1, Content: "near"}, {ID: 2, Content: "middle"}}
	vectors := [][]float32{{0, 1}, {1, 0.1}, {1, 1}}
	if err := s.InsertAll(ctx, chunks, vectors); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	if n, err := s.Count(ctx); err != nil || n != 3 {
		t.Fatalf("expected 3 rows, got %d, %v", n, err)
	}
	res, err := s.Rank(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(res) != 3 || res[0].Chunk.Content != "near" || res[2].Chunk.Content != "far" {
		t.Fatalf("unexpected ranking: %+v", res)
	}
	if _, err := s.Rank(ctx, []float32{1, 0, 0}, 1); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}
