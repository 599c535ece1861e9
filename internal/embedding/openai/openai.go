package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"bnrag/internal/domain"
	"bnrag/internal/retry"
)

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
// Any server speaking the /embeddings API (OpenAI, Ollama, vLLM) works via BaseURL.
type Client struct {
	client     *openai.Client
	model      string
	maxRetries int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, &domain.ConfigError{Field: "embedder.openai.api_key_env", Reason: fmt.Sprintf("missing API key in env %s", cfg.APIKeyEnv)}
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		client:     openai.NewClientWithConfig(oc),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Prepare is not required for remote embedding.
func (c *Client) Prepare(context.Context, []string) error { return nil }

func (c *Client) Prepared() bool { return true }

// Embed returns an L2-normalised embedding vector for the given text.
// Failures are reported as *domain.EmbeddingError, never as a zero vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &domain.EmbeddingError{Err: errors.New("cannot embed empty text")}
	}
	var resp openai.EmbeddingResponse
	err := retry.Do(ctx, c.maxRetries, retry.Transient, func(ctx context.Context) error {
		var err error
		resp, err = c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.model),
			Input: []string{text},
		})
		return err
	})
	if err != nil {
		return nil, &domain.EmbeddingError{Err: err}
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &domain.EmbeddingError{Err: errors.New("no embedding data returned from API")}
	}
	src := resp.Data[0].Embedding
	v := make([]float32, len(src))
	for i := range src {
		v[i] = float32(src[i])
	}
	l2normalize(v)
	return v, nil
}

// l2normalize normalizes a vector to unit length
func l2normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
