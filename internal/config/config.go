package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"bnrag/internal/domain"
)

// SourceConfig points at the document the knowledge base is built from.
type SourceConfig struct {
	Path      string `yaml:"path"`
	Extractor string `yaml:"extractor"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
	Concurrency int    `yaml:"concurrency"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
// chunk_size and chunk_overlap are in characters and drive the recursive chunker;
// the sentence chunker counts sentences instead.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	Memory   *MemoryConfig   `yaml:"memory,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	PGVector *PGVectorConfig `yaml:"pgvector,omitempty"`
}

// MemoryConfig enables snapshotting the in-process index to disk.
type MemoryConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PGVectorConfig names the environment variable holding the Postgres DSN.
type PGVectorConfig struct {
	DSNEnv string `yaml:"dsn_env"`
	Table  string `yaml:"table"`
}

// GeneratorConfig configures the OpenAI-compatible chat model used in generative mode.
type GeneratorConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries"`
}

// AnswerConfig controls how answers are produced.
type AnswerConfig struct {
	Mode         string           `yaml:"mode"`
	TopK         int              `yaml:"top_k"`
	RecentTurns  int              `yaml:"recent_turns"`
	PatternsFile string           `yaml:"patterns_file"`
	Generator    *GeneratorConfig `yaml:"generator,omitempty"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	TimeoutSecs int    `yaml:"timeout_secs"`

	// Session limits bound the conversation windows kept in memory; -1 disables one.
	MaxSessions     int `yaml:"max_sessions"`
	SessionIdleMins int `yaml:"session_idle_mins"`
}

// LogConfig configures the default slog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EvalConfig points at the evaluation cases file; empty means the built-in cases.
type EvalConfig struct {
	CasesFile string `yaml:"cases_file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Source      SourceConfig      `yaml:"source"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Answer      AnswerConfig      `yaml:"answer"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Eval        EvalConfig        `yaml:"eval"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/bnrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/bnrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations that cannot be assembled. It runs before any
// document is touched.
func (c *AppConfig) Validate() error {
	switch c.Chunker.Type {
	case "recursive":
		if c.Chunker.ChunkSize <= 0 {
			return &domain.ConfigError{Field: "chunker.chunk_size", Reason: "must be positive"}
		}
		if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
			return &domain.ConfigError{Field: "chunker.chunk_overlap", Reason: fmt.Sprintf("must be in [0, %d)", c.Chunker.ChunkSize)}
		}
	case "sentence":
		if c.Chunker.SentencesPerChunk <= 0 {
			return &domain.ConfigError{Field: "chunker.sentences_per_chunk", Reason: "must be positive"}
		}
	default:
		return unknown("chunker.type", c.Chunker.Type)
	}
	switch c.Embedder.Type {
	case "tfidf":
	case "openai":
		if c.Embedder.OpenAI == nil {
			return &domain.ConfigError{Field: "embedder.openai", Reason: "missing block"}
		}
	default:
		return unknown("embedder.type", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return &domain.ConfigError{Field: "vector_store.qdrant.url", Reason: "required"}
		}
	case "pgvector":
		if c.VectorStore.PGVector == nil || c.VectorStore.PGVector.DSNEnv == "" {
			return &domain.ConfigError{Field: "vector_store.pgvector.dsn_env", Reason: "required"}
		}
	default:
		return unknown("vector_store.type", c.VectorStore.Type)
	}
	switch c.Answer.Mode {
	case "extractive":
	case "generative":
		if c.Answer.Generator == nil {
			return &domain.ConfigError{Field: "answer.generator", Reason: "generative mode needs a generator block"}
		}
	default:
		return unknown("answer.mode", c.Answer.Mode)
	}
	if c.Answer.TopK <= 0 {
		return &domain.ConfigError{Field: "answer.top_k", Reason: "must be positive"}
	}
	if c.Summarizer.Type != "frequency" {
		return unknown("summarizer.type", c.Summarizer.Type)
	}
	if c.Server.MaxSessions < -1 {
		return &domain.ConfigError{Field: "server.max_sessions", Reason: "must be positive or -1"}
	}
	if c.Server.SessionIdleMins < -1 {
		return &domain.ConfigError{Field: "server.session_idle_mins", Reason: "must be positive or -1"}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return unknown("log.format", c.Log.Format)
	}
	return nil
}

func unknown(field, value string) error {
	return &domain.ConfigError{Field: field, Reason: fmt.Sprintf("unknown value %q", value)}
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "bnrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Source:      SourceConfig{Path: "knowledge_base/HSC26_Bangla_1st_paper.pdf", Extractor: "auto"},
		Chunker:     ChunkerConfig{Type: "recursive", ChunkSize: 700, ChunkOverlap: 150},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Answer:      AnswerConfig{Mode: "extractive", TopK: 3, RecentTurns: 4},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Server:      ServerConfig{Addr: ":8000", TimeoutSecs: 60, MaxSessions: 1000, SessionIdleMins: 30},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Source.Extractor == "" {
		cfg.Source.Extractor = "auto"
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "recursive"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 700
		if cfg.Chunker.ChunkOverlap == 0 {
			cfg.Chunker.ChunkOverlap = 150
		}
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 3
		}
		if o.Concurrency == 0 {
			o.Concurrency = 4
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.Collection == "" {
			q.Collection = "bnrag_chunks"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 30
		}
	}
	if p := cfg.VectorStore.PGVector; p != nil && p.Table == "" {
		p.Table = "bnrag_chunks"
	}
	if cfg.Answer.Mode == "" {
		cfg.Answer.Mode = "extractive"
	}
	if cfg.Answer.TopK == 0 {
		cfg.Answer.TopK = 3
	}
	if cfg.Answer.RecentTurns == 0 {
		cfg.Answer.RecentTurns = 4
	}
	if g := cfg.Answer.Generator; g != nil {
		if g.BaseURL == "" {
			g.BaseURL = "https://api.openai.com/v1"
		}
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "OPENAI_API_KEY"
		}
		if g.Model == "" {
			g.Model = "gpt-4o-mini"
		}
		if g.Temperature == 0 {
			g.Temperature = 0.1
		}
		if g.MaxTokens == 0 {
			g.MaxTokens = 500
		}
		if g.TimeoutSecs == 0 {
			g.TimeoutSecs = 60
		}
		if g.MaxRetries == 0 {
			g.MaxRetries = 3
		}
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.TimeoutSecs == 0 {
		cfg.Server.TimeoutSecs = 60
	}
	if cfg.Server.MaxSessions == 0 {
		cfg.Server.MaxSessions = 1000
	}
	if cfg.Server.SessionIdleMins == 0 {
		cfg.Server.SessionIdleMins = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
