package domain

import (
	"context"
	"time"
)

// Document represents a single source document loaded into the system.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a bounded, ordered segment of source text used as the atomic retrieval unit.
// Length is the number of characters (runes) in Content.
type Chunk struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
	Length  int    `json:"length"`
}

// EmbeddingRecord pairs a chunk with its embedding vector.
type EmbeddingRecord struct {
	Vector []float32
	Chunk  Chunk
}

// RetrievalResult is a ranked chunk. Lower distance means more similar.
type RetrievalResult struct {
	Chunk    Chunk
	Distance float64
}

// Language is the detected language of a query.
type Language string

const (
	English Language = "english"
	Bangla  Language = "bengali"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation window.
type Turn struct {
	Content   string
	Role      Role
	Timestamp time.Time
}

// Source is a retrieved snippet reported alongside an answer.
type Source struct {
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

// QueryResult is the produced answer for one query.
type QueryResult struct {
	Answer              string   `json:"answer"`
	Language            Language `json:"language"`
	Confidence          float64  `json:"confidence"`
	Sources             []Source `json:"sources"`
	ConversationContext string   `json:"conversation_context,omitempty"`
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Prepared() bool
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces natural-language answers from a query and retrieved context.
type Generator interface {
	Generate(ctx context.Context, systemInstructions, query, contextText string) (string, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorIndex holds (vector, chunk) pairs and ranks them by cosine distance.
// Rank results are ascending by distance, ties broken by insertion order,
// and never longer than min(topK, Count()).
type VectorIndex interface {
	Insert(ctx context.Context, vector []float32, chunk Chunk) error
	InsertAll(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	Rank(ctx context.Context, query []float32, topK int) ([]RetrievalResult, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
