package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"bnrag/internal/domain"
	"bnrag/internal/retry"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.1
	defaultMaxTokens   = 500
)

// Generator answers questions through an OpenAI-compatible chat completion API.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	maxRetries  int
}

type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

func NewGenerator(cfg Config) (*Generator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, &domain.ConfigError{Field: "answer.generator.api_key_env", Reason: fmt.Sprintf("missing API key in env %s", cfg.APIKeyEnv)}
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Generator{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  max(cfg.MaxRetries, 0),
	}, nil
}

// Generate sends the system instructions, the retrieved context and the query.
// Failures are reported as *domain.GenerationError.
func (g *Generator) Generate(ctx context.Context, systemInstructions, query, contextText string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstructions},
			{Role: openai.ChatMessageRoleUser, Content: userMessage(query, contextText)},
		},
	}
	var resp openai.ChatCompletionResponse
	err := retry.Do(ctx, g.maxRetries, retry.Transient, func(ctx context.Context) error {
		var err error
		resp, err = g.client.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return "", &domain.GenerationError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &domain.GenerationError{Err: errors.New("no choices returned")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func userMessage(query, contextText string) string {
	if strings.TrimSpace(contextText) == "" {
		return "Answer the following question: " + query
	}
	return "Here is the relevant information:\n\n" + contextText +
		"\n\nBased ONLY on the information provided above, answer the following question:\n" + query
}
