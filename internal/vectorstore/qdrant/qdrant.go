package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"bnrag/internal/domain"
	"bnrag/internal/vectorstore"
)

var errNotFound = errors.New("qdrant: not found")

// Storage is a minimal REST client to Qdrant implementing the vector index contract.
// It assumes cosine distance and creates the collection on first insert.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.Mutex
	dimension int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Storage) Insert(ctx context.Context, vector []float32, chunk domain.Chunk) error {
	return s.InsertAll(ctx, []domain.Chunk{chunk}, [][]float32{vector})
}

func (s *Storage) InsertAll(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if err := vectorstore.CheckBatch(chunks, vectors, 0); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}
	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		points[i] = map[string]any{
			"id":     uint64(chunks[i].ID),
			"vector": vectors[i],
			"payload": map[string]any{
				"chunk_id": chunks[i].ID,
				"content":  chunks[i].Content,
				"length":   chunks[i].Length,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil)
}

func (s *Storage) Rank(ctx context.Context, query []float32, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		return []domain.RetrievalResult{}, nil
	}
	dim, err := s.collectionDimension(ctx)
	if errors.Is(err, errNotFound) {
		return []domain.RetrievalResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(query) != dim {
		return nil, &domain.DimensionMismatchError{Want: dim, Got: len(query)}
	}
	req := map[string]any{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				ChunkID int    `json:"chunk_id"`
				Content string `json:"content"`
				Length  int    `json:"length"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.RetrievalResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.RetrievalResult{
			Chunk: domain.Chunk{
				ID:      r.Payload.ChunkID,
				Content: r.Payload.Content,
				Length:  r.Payload.Length,
			},
			Distance: vectorstore.FromSimilarity(r.Score),
		})
	}
	// Qdrant does not order equal scores deterministically; chunk id breaks ties.
	sort.Slice(results, func(i, j int) bool { return results[i].Chunk.ID < results[j].Chunk.ID })
	return vectorstore.SortAndLimit(results, topK), nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Reset drops the collection. A missing collection is not an error.
func (s *Storage) Reset(ctx context.Context) error {
	err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if err != nil && !errors.Is(err, errNotFound) {
		return err
	}
	s.mu.Lock()
	s.dimension = 0
	s.mu.Unlock()
	return nil
}

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	existing, err := s.collectionDimension(ctx)
	switch {
	case err == nil:
		if existing != dimension {
			return &domain.DimensionMismatchError{Want: existing, Got: dimension}
		}
		return nil
	case !errors.Is(err, errNotFound):
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(), body, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.dimension = dimension
	s.mu.Unlock()
	return nil
}

func (s *Storage) collectionDimension(ctx context.Context) (int, error) {
	s.mu.Lock()
	dim := s.dimension
	s.mu.Unlock()
	if dim > 0 {
		return dim, nil
	}
	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, &resp); err != nil {
		return 0, err
	}
	dim = resp.Result.Config.Params.Vectors.Size
	s.mu.Lock()
	s.dimension = dim
	s.mu.Unlock()
	return dim, nil
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
