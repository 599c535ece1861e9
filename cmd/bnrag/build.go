package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"bnrag/internal/assistant"
	"bnrag/internal/chunker"
	"bnrag/internal/config"
	"bnrag/internal/conversation"
	"bnrag/internal/domain"
	embopenai "bnrag/internal/embedding/openai"
	"bnrag/internal/embedding/tfidf"
	"bnrag/internal/eval"
	"bnrag/internal/extract"
	genopenai "bnrag/internal/generation/openai"
	"bnrag/internal/service"
	"bnrag/internal/session"
	"bnrag/internal/summarizer"
	"bnrag/internal/vectorstore/memory"
	"bnrag/internal/vectorstore/pgvector"
	"bnrag/internal/vectorstore/qdrant"
)

// app is the assembled service plus resources to release on exit.
type app struct {
	svc     *service.RAGService
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// buildApp wires components by the types named in cfg. Resources opened before
// a failure are released.
func buildApp(ctx context.Context, cfg *config.AppConfig) (_ *app, err error) {
	a := &app{}

	ext, err := extract.New(cfg.Source.Extractor)
	if err != nil {
		return nil, err
	}

	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "recursive", "":
		rc, err := chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		ch = rc
	case "sentence":
		ch = chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences)
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}

	var emb domain.Embedder
	concurrency := 4
	switch cfg.Embedder.Type {
	case "tfidf", "":
		emb = tfidf.NewEmbedder()
	case "openai":
		o := cfg.Embedder.OpenAI
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:    o.BaseURL,
			APIKeyEnv:  o.APIKeyEnv,
			Model:      o.Model,
			Timeout:    time.Duration(o.TimeoutSecs) * time.Second,
			MaxRetries: o.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
		concurrency = o.Concurrency
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	index, closeIndex, err := openIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeIndex != nil {
		a.closers = append(a.closers, closeIndex)
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	patterns := assistant.DefaultPatterns()
	if cfg.Answer.PatternsFile != "" {
		if patterns, err = assistant.LoadPatterns(cfg.Answer.PatternsFile); err != nil {
			return nil, err
		}
	}

	var gen domain.Generator
	mode := assistant.Mode(cfg.Answer.Mode)
	if mode == assistant.ModeGenerative {
		g := cfg.Answer.Generator
		gen, err = genopenai.NewGenerator(genopenai.Config{
			BaseURL:     g.BaseURL,
			APIKeyEnv:   g.APIKeyEnv,
			Model:       g.Model,
			Temperature: g.Temperature,
			MaxTokens:   g.MaxTokens,
			Timeout:     time.Duration(g.TimeoutSecs) * time.Second,
			MaxRetries:  g.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("generator init failed: %w", err)
		}
	}

	asm, err := assistant.New(emb, index, gen, assistant.NewExtractor(patterns), assistant.Options{
		Mode:        mode,
		TopK:        cfg.Answer.TopK,
		RecentTurns: cfg.Answer.RecentTurns,
	})
	if err != nil {
		return nil, err
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = summarizer.NewFrequencySummarizer()
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	a.svc = service.NewRAGService(service.Deps{
		Extractor:  ext,
		Chunker:    ch,
		Embedder:   emb,
		Index:      index,
		Assembler:  asm,
		Sessions:   session.NewStore(conversation.DefaultCapacity, sessionLimits(cfg.Server)),
		Summarizer: sum,
	}, service.Options{
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		Concurrency:         concurrency,
	})
	slog.Debug("components assembled",
		"chunker", cfg.Chunker.Type,
		"embedder", emb.Name(),
		"vector_store", cfg.VectorStore.Type,
		"mode", mode,
	)
	return a, nil
}

// openIndex opens the configured vector store. The returned close func may be nil.
var openIndex = func(ctx context.Context, cfg *config.AppConfig) (domain.VectorIndex, func() error, error) {
	switch cfg.VectorStore.Type {
	case "memory", "":
		if m := cfg.VectorStore.Memory; m != nil && m.SnapshotPath != "" {
			st, err := memory.NewPersistentStorage(ctx, m.SnapshotPath)
			if err != nil {
				return nil, nil, fmt.Errorf("open snapshot: %w", err)
			}
			return st, nil, nil
		}
		return memory.NewStorage(), nil, nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}), nil, nil
	case "pgvector":
		p := cfg.VectorStore.PGVector
		dsn := os.Getenv(p.DSNEnv)
		if dsn == "" {
			return nil, nil, &domain.ConfigError{Field: "vector_store.pgvector.dsn_env", Reason: fmt.Sprintf("env %s is empty", p.DSNEnv)}
		}
		st, err := pgvector.NewStorage(ctx, dsn, p.Table)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}

func sessionLimits(sc config.ServerConfig) session.Limits {
	return session.Limits{
		MaxSessions: sc.MaxSessions,
		IdleTTL:     time.Duration(sc.SessionIdleMins) * time.Minute,
	}
}

// setupApp assembles the service and builds its knowledge base from the configured source.
func setupApp(ctx context.Context, cfg *config.AppConfig) (*app, service.Report, error) {
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return nil, service.Report{}, err
	}
	rep, err := a.svc.Setup(ctx, cfg.Source.Path)
	if err != nil {
		a.Close()
		return nil, service.Report{}, fmt.Errorf("setup knowledge base: %w", err)
	}
	return a, rep, nil
}

func evalCases(cfg *config.AppConfig) ([]eval.Case, error) {
	if cfg.Eval.CasesFile == "" {
		return eval.DefaultCases(), nil
	}
	return eval.LoadCases(cfg.Eval.CasesFile)
}
