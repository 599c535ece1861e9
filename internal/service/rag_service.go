package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bnrag/internal/assistant"
	"bnrag/internal/domain"
	"bnrag/internal/embedding"
	"bnrag/internal/extract"
	"bnrag/internal/session"
)

// ErrEmptyQuestion is returned by Query for blank input.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Deps are the collaborators the service orchestrates.
type Deps struct {
	Extractor  extract.Extractor
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Index      domain.VectorIndex
	Assembler  *assistant.Assembler
	Sessions   *session.Store
	Summarizer domain.Summarizer
}

type Options struct {
	SummaryMaxSentences int
	// Concurrency bounds in-flight embedding calls during setup.
	Concurrency int
}

// Report describes the outcome of Setup or Rebuild.
type Report struct {
	Chunks   int
	Skipped  int
	Summary  string
	Reused   bool
	Duration time.Duration
}

// Health is the readiness signal exposed to the API layer.
type Health struct {
	Ready          bool `json:"ready"`
	DocumentsCount int  `json:"documents_count"`
}

// RAGService owns the knowledge base lifecycle and routes queries to per-session
// conversation windows. Setup and Rebuild exclude concurrent queries.
type RAGService struct {
	mu      sync.RWMutex
	deps    Deps
	opts    Options
	ready   bool
	chunks  int
	summary string
}

func NewRAGService(deps Deps, opts Options) *RAGService {
	if deps.Sessions == nil {
		deps.Sessions = session.NewStore(0, session.Limits{})
	}
	if opts.SummaryMaxSentences <= 0 {
		opts.SummaryMaxSentences = 5
	}
	return &RAGService{deps: deps, opts: opts}
}

// Setup builds the knowledge base from the document at path. When the index is
// already populated nothing is re-embedded; stateful embedders are re-prepared
// from the source so query vectors match the stored ones.
func (s *RAGService) Setup(ctx context.Context, path string) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setupLocked(ctx, path)
}

// Rebuild drops the index and builds it again from path.
func (s *RAGService) Rebuild(ctx context.Context, path string) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.chunks = 0
	if err := s.deps.Index.Reset(ctx); err != nil {
		return Report{}, fmt.Errorf("reset index: %w", err)
	}
	return s.setupLocked(ctx, path)
}

func (s *RAGService) setupLocked(ctx context.Context, path string) (Report, error) {
	start := time.Now()
	count, err := s.deps.Index.Count(ctx)
	if err != nil {
		s.ready = false
		return Report{}, fmt.Errorf("count index: %w", err)
	}
	if count > 0 {
		rep, err := s.reuse(ctx, path, count)
		if err != nil {
			s.ready = false
			return Report{}, err
		}
		rep.Duration = time.Since(start)
		return rep, nil
	}

	rep, err := s.build(ctx, path)
	if err != nil {
		s.ready = false
		return Report{}, err
	}
	rep.Duration = time.Since(start)
	slog.Info("knowledge base ready", "chunks", rep.Chunks, "skipped", rep.Skipped, "took", rep.Duration)
	return rep, nil
}

func (s *RAGService) reuse(ctx context.Context, path string, count int) (Report, error) {
	rep := Report{Chunks: count, Reused: true}
	if !s.deps.Embedder.Prepared() {
		text, chunks, err := s.load(ctx, path)
		if err != nil {
			return Report{}, err
		}
		if err := s.deps.Embedder.Prepare(ctx, contents(chunks)); err != nil {
			return Report{}, fmt.Errorf("prepare %s embedder: %w", s.deps.Embedder.Name(), err)
		}
		rep.Summary = s.summarize(text)
	}
	slog.Info("knowledge base already populated, skipping ingestion", "chunks", count)
	s.markReady(count, rep.Summary)
	return rep, nil
}

func (s *RAGService) build(ctx context.Context, path string) (Report, error) {
	text, chunks, err := s.load(ctx, path)
	if err != nil {
		return Report{}, err
	}
	if err := s.deps.Embedder.Prepare(ctx, contents(chunks)); err != nil {
		return Report{}, fmt.Errorf("prepare %s embedder: %w", s.deps.Embedder.Name(), err)
	}
	batch, err := embedding.EmbedChunks(ctx, s.deps.Embedder, chunks, s.opts.Concurrency)
	if err != nil {
		return Report{}, err
	}
	if len(batch.Chunks) == 0 {
		return Report{}, &domain.EmbeddingError{Err: fmt.Errorf("none of %d chunks could be embedded", len(chunks))}
	}
	if err := s.deps.Index.InsertAll(ctx, batch.Chunks, batch.Vectors); err != nil {
		// no half-built knowledge base
		if rerr := s.deps.Index.Reset(context.WithoutCancel(ctx)); rerr != nil {
			slog.Error("reset after failed insert", "error", rerr)
		}
		return Report{}, fmt.Errorf("insert chunks: %w", err)
	}
	summary := s.summarize(text)
	s.markReady(len(batch.Chunks), summary)
	return Report{Chunks: len(batch.Chunks), Skipped: batch.Skipped, Summary: summary}, nil
}

// load extracts and segments the source document.
func (s *RAGService) load(ctx context.Context, path string) (string, []domain.Chunk, error) {
	text, err := s.deps.Extractor.Extract(ctx, path)
	if err != nil {
		return "", nil, err
	}
	chunks, err := s.deps.Chunker.Chunk(domain.Document{ID: hashString(path), Path: path, Content: text})
	if err != nil {
		return "", nil, err
	}
	if len(chunks) == 0 {
		return "", nil, &domain.ExtractionError{Path: path, Err: domain.ErrEmptyCorpus}
	}
	slog.Debug("segmented source", "path", path, "chunks", len(chunks))
	return text, chunks, nil
}

func (s *RAGService) summarize(text string) string {
	if s.deps.Summarizer == nil {
		return ""
	}
	summary, err := s.deps.Summarizer.Summarize(text, s.opts.SummaryMaxSentences)
	if err != nil {
		slog.Warn("summarize corpus", "error", err)
		return ""
	}
	return summary
}

func (s *RAGService) markReady(chunks int, summary string) {
	s.ready = true
	s.chunks = chunks
	s.summary = summary
}

// Query answers question inside the conversation identified by sessionID. An
// empty sessionID starts a new conversation; the id in use is returned.
func (s *RAGService) Query(ctx context.Context, sessionID, question string) (string, domain.QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return sessionID, domain.QueryResult{}, ErrEmptyQuestion
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return sessionID, domain.QueryResult{}, domain.ErrNotReady
	}
	id, window := s.deps.Sessions.Get(sessionID)
	res, err := s.deps.Assembler.Answer(ctx, window, question)
	return id, res, err
}

// Clear resets the conversation of sessionID and reports whether it existed.
func (s *RAGService) Clear(sessionID string) bool {
	return s.deps.Sessions.Clear(sessionID)
}

// EndSession forgets sessionID.
func (s *RAGService) EndSession(sessionID string) {
	s.deps.Sessions.Drop(sessionID)
}

func (s *RAGService) Health(ctx context.Context) Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := Health{Ready: s.ready, DocumentsCount: s.chunks}
	if n, err := s.deps.Index.Count(ctx); err == nil {
		h.DocumentsCount = n
	} else {
		slog.Warn("count index", "error", err)
	}
	return h
}

// Summary returns the corpus summary computed during the last setup.
func (s *RAGService) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

func contents(chunks []domain.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
