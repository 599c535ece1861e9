package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Concrete failures wrap one of these so callers can use errors.Is.
var (
	ErrConfig            = errors.New("invalid configuration")
	ErrExtraction        = errors.New("text extraction failed")
	ErrEmbedding         = errors.New("embedding failed")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrGeneration        = errors.New("generation failed")
	ErrEmptyCorpus       = errors.New("empty corpus")
	ErrNotReady          = errors.New("knowledge base not ready")
)

// ConfigError reports an invalid parameter detected before any processing.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// DimensionMismatchError reports a vector whose length differs from the index dimension.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: want %d, got %d", e.Want, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// ExtractionError wraps a failure to turn a source document into text.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Err} }

// EmbeddingError wraps an embedding provider failure.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return "embedding: " + e.Err.Error() }

func (e *EmbeddingError) Unwrap() []error { return []error{ErrEmbedding, e.Err} }

// GenerationError wraps a generator failure.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "generation: " + e.Err.Error() }

func (e *GenerationError) Unwrap() []error { return []error{ErrGeneration, e.Err} }
