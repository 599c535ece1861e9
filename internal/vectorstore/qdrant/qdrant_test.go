package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"bnrag/internal/domain"
)

type fakeQdrant struct {
	mu        sync.Mutex
	dimension int
	points    []map[string]any
	apiKeys   []string
	search    []map[string]any
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
	path := strings.TrimPrefix(r.URL.Path, "/collections/kb")
	switch {
	case r.Method == http.MethodGet && path == "":
		if f.dimension == 0 {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{"config": map[string]any{
			"params": map[string]any{"vectors": map[string]any{"size": f.dimension, "distance": "Cosine"}},
		}}})
	case r.Method == http.MethodPut && path == "":
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.dimension = body.Vectors.Size
		writeJSON(w, map[string]any{"result": true})
	case r.Method == http.MethodDelete && path == "":
		if f.dimension == 0 {
			http.NotFound(w, r)
			return
		}
		f.dimension = 0
		f.points = nil
		writeJSON(w, map[string]any{"result": true})
	case r.Method == http.MethodPut && path == "/points":
		var body struct {
			Points []map[string]any `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = append(f.points, body.Points...)
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	case r.Method == http.MethodPost && path == "/points/count":
		if f.dimension == 0 {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{"count": len(f.points)}})
	case r.Method == http.MethodPost && path == "/points/search":
		// Scores are returned in an order the client has to fix.
		results := []map[string]any{
			{"score": 0.5, "payload": map[string]any{"chunk_id": 2, "content": "middle", "length": 6}},
			{"score": 0.9, "payload": map[string]any{"chunk_id": 1, "content": "near", "length": 4}},
			{"score": 0.4, "payload": map[string]any{"chunk_id": 0, "content": "far", "length": 3}},
		}
		if f.search != nil {
			results = f.search
		}
		writeJSON(w, map[string]any{"result": results})
	default:
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestStorage(t *testing.T) (*Storage, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewStorage(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "kb"}), fake
}

func TestStorage_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStorage(t)

	if n, err := s.Count(ctx); err != nil || n != 0 {
		t.Fatalf("expected empty count on missing collection, got %d, %v", n, err)
	}
	if res, err := s.Rank(ctx, []float32{1, 0}, 3); err != nil || len(res) != 0 {
		t.Fatalf("expected empty rank on missing collection, got %v, %v", res, err)
	}

	chunks := []domain.Chunk{{ID: 0, Content: "far"}, {ID: 1, Content: "near"}, {ID: 2, Content: "middle"}}
	vectors := [][]float32{{0, 1}, {1, 0}, {1, 1}}
	if err := s.InsertAll(ctx, chunks, vectors); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	fake.mu.Lock()
	dim, id := fake.dimension, fake.points[1]["id"]
	fake.mu.Unlock()
	if dim != 2 {
		t.Fatalf("collection not created with dimension 2: %d", dim)
	}
	if n, ok := id.(float64); !ok || n != 1 {
		t.Fatalf("expected numeric point id, got %#v", id)
	}
	if n, err := s.Count(ctx); err != nil || n != 3 {
		t.Fatalf("expected count 3, got %d, %v", n, err)
	}

	res, err := s.Rank(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(res) != 2 || res[0].Chunk.Content != "near" || res[1].Chunk.Content != "middle" {
		t.Fatalf("unexpected ranking: %+v", res)
	}
	if d := res[0].Distance; d < 0.0999 || d > 0.1001 {
		t.Fatalf("expected distance 0.1, got %f", d)
	}

	if _, err := s.Rank(ctx, []float32{1, 0, 0}, 2); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset on missing collection: %v", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Fatalf("expected empty count after reset, got %d", n)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	for _, k := range fake.apiKeys {
		if k != "secret" {
			t.Fatalf("request sent without api key")
		}
	}
}

func TestStorage_RankBreaksTiesByChunkID(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStorage(t)
	if err := s.Insert(ctx, []float32{1, 0}, domain.Chunk{ID: 0, Content: "a"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	fake.mu.Lock()
	fake.search = []map[string]any{
		{"score": 0.7, "payload": map[string]any{"chunk_id": 5, "content": "five", "length": 4}},
		{"score": 0.9, "payload": map[string]any{"chunk_id": 9, "content": "nine", "length": 4}},
		{"score": 0.7, "payload": map[string]any{"chunk_id": 3, "content": "three", "length": 5}},
		{"score": 0.7, "payload": map[string]any{"chunk_id": 4, "content": "four", "length": 4}},
	}
	fake.mu.Unlock()

	res, err := s.Rank(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	var ids []int
	for _, r := range res {
		ids = append(ids, r.Chunk.ID)
	}
	if len(ids) != 3 || ids[0] != 9 || ids[1] != 3 || ids[2] != 4 {
		t.Fatalf("expected ids [9 3 4], got %v", ids)
	}
}

func TestStorage_RejectsDimensionChange(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	if err := s.Insert(ctx, []float32{1, 0}, domain.Chunk{ID: 0, Content: "a"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := s.Insert(ctx, []float32{1, 0, 0}, domain.Chunk{ID: 1, Content: "b"})
	var dimErr *domain.DimensionMismatchError
	if !errors.As(err, &dimErr) || dimErr.Want != 2 || dimErr.Got != 3 {
		t.Fatalf("expected dimension mismatch 2 vs 3, got %v", err)
	}
}
