package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bnrag/internal/domain"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunker.ChunkSize != 700 || cfg.Chunker.ChunkOverlap != 150 || cfg.Answer.TopK != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_AppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
embedder:
  type: openai
  openai:
    model: nomic-embed-text
vector_store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
answer:
  mode: generative
  generator: {}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedder.OpenAI.Model != "nomic-embed-text" || cfg.Embedder.OpenAI.APIKeyEnv != "OPENAI_API_KEY" {
		t.Fatalf("unexpected embedder config: %+v", cfg.Embedder.OpenAI)
	}
	if cfg.VectorStore.Qdrant.Collection != "bnrag_chunks" {
		t.Fatalf("expected default collection, got %q", cfg.VectorStore.Qdrant.Collection)
	}
	if cfg.Server.MaxSessions != 1000 || cfg.Server.SessionIdleMins != 30 {
		t.Fatalf("unexpected session limits: %+v", cfg.Server)
	}
	g := cfg.Answer.Generator
	if g.Model != "gpt-4o-mini" || g.Temperature != 0.1 || g.MaxTokens != 500 {
		t.Fatalf("unexpected generator defaults: %+v", g)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chunker: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Source.Path = "book.txt"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Source.Path != "book.txt" || got.Chunker != cfg.Chunker {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*AppConfig)
		field string
	}{
		{"overlap equals size", func(c *AppConfig) { c.Chunker.ChunkOverlap = c.Chunker.ChunkSize }, "chunker.chunk_overlap"},
		{"negative overlap", func(c *AppConfig) { c.Chunker.ChunkOverlap = -1 }, "chunker.chunk_overlap"},
		{"zero size", func(c *AppConfig) { c.Chunker.ChunkSize = 0 }, "chunker.chunk_size"},
		{"unknown chunker", func(c *AppConfig) { c.Chunker.Type = "token" }, "chunker.type"},
		{"openai without block", func(c *AppConfig) { c.Embedder.Type = "openai" }, "embedder.openai"},
		{"qdrant without url", func(c *AppConfig) { c.VectorStore.Type = "qdrant" }, "vector_store.qdrant.url"},
		{"pgvector without dsn", func(c *AppConfig) { c.VectorStore.Type = "pgvector" }, "vector_store.pgvector.dsn_env"},
		{"unknown store", func(c *AppConfig) { c.VectorStore.Type = "milvus" }, "vector_store.type"},
		{"generative without generator", func(c *AppConfig) { c.Answer.Mode = "generative" }, "answer.generator"},
		{"unknown mode", func(c *AppConfig) { c.Answer.Mode = "magic" }, "answer.mode"},
		{"zero top k", func(c *AppConfig) { c.Answer.TopK = 0 }, "answer.top_k"},
		{"bad log format", func(c *AppConfig) { c.Log.Format = "xml" }, "log.format"},
		{"negative max sessions", func(c *AppConfig) { c.Server.MaxSessions = -5 }, "server.max_sessions"},
		{"negative idle minutes", func(c *AppConfig) { c.Server.SessionIdleMins = -2 }, "server.session_idle_mins"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.edit(cfg)
			err := cfg.Validate()
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) || !errors.Is(err, domain.ErrConfig) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, cfgErr.Field)
			}
		})
	}
}
