package openai

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bnrag/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("BNRAG_TEST_KEY", "sk-test")
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", APIKeyEnv: "BNRAG_TEST_KEY", Model: "test-embed", Timeout: 5 * time.Second, MaxRetries: retries})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func embeddingResponse(w http.ResponseWriter, vec []float32) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
		"model":  "test-embed",
	})
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("BNRAG_EMPTY_KEY", "")
	if _, err := NewClient(Config{APIKeyEnv: "BNRAG_EMPTY_KEY"}); !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestEmbed_NormalisesVector(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "test-embed" || len(req.Input) != 1 || req.Input[0] != "অনুপম" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		embeddingResponse(w, []float32{3, 4})
	}, 0)

	v, err := c.Embed(context.Background(), "অনুপম")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 2 || math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Fatalf("unexpected vector: %v", v)
	}
}

func TestEmbed_RetriesRateLimits(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
			return
		}
		embeddingResponse(w, []float32{1, 0})
	}, 2)

	if _, err := c.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestEmbed_FailureIsEmbeddingError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	}, 3)

	v, err := c.Embed(context.Background(), "text")
	if v != nil || !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected embedding error without vector, got %v, %v", v, err)
	}
	if _, err := c.Embed(context.Background(), ""); !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected embedding error for empty text, got %v", err)
	}
}
