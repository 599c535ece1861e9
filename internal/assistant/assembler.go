package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bnrag/internal/conversation"
	"bnrag/internal/domain"
)

// Mode selects how answers are produced.
type Mode string

const (
	ModeExtractive Mode = "extractive"
	ModeGenerative Mode = "generative"
)

const (
	DefaultTopK          = 3
	DefaultSnippetLength = 100
)

// Memory is the conversation state owned by one session.
type Memory interface {
	Push(turn domain.Turn)
	Recent(n int) []domain.Turn
}

type Options struct {
	Mode          Mode
	TopK          int
	RecentTurns   int
	SnippetLength int
}

// Assembler turns a query into a QueryResult: it ranks chunks, scores confidence,
// produces an answer and records both turns in the caller's memory.
type Assembler struct {
	embedder  domain.Embedder
	index     domain.VectorIndex
	generator domain.Generator
	extractor *Extractor
	opts      Options
}

// New validates the options. Generative mode requires a generator.
func New(embedder domain.Embedder, index domain.VectorIndex, generator domain.Generator, extractor *Extractor, opts Options) (*Assembler, error) {
	if opts.Mode == "" {
		opts.Mode = ModeExtractive
	}
	switch opts.Mode {
	case ModeExtractive:
		if extractor == nil {
			extractor = NewExtractor(DefaultPatterns())
		}
	case ModeGenerative:
		if generator == nil {
			return nil, &domain.ConfigError{Field: "answer.mode", Reason: "generative mode needs a generator"}
		}
	default:
		return nil, &domain.ConfigError{Field: "answer.mode", Reason: fmt.Sprintf("unknown mode %q", opts.Mode)}
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.RecentTurns <= 0 {
		opts.RecentTurns = conversation.DefaultRecentView
	}
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = DefaultSnippetLength
	}
	return &Assembler{
		embedder:  embedder,
		index:     index,
		generator: generator,
		extractor: extractor,
		opts:      opts,
	}, nil
}

func (a *Assembler) Mode() Mode { return a.opts.Mode }

// Answer never fails because of a provider: such failures become an apology with
// zero confidence. The error is non-nil only when ctx is done, in which case the
// user turn stays recorded and no assistant turn is added.
func (a *Assembler) Answer(ctx context.Context, memory Memory, query string) (domain.QueryResult, error) {
	prior := memory.Recent(a.opts.RecentTurns)
	memory.Push(domain.Turn{Role: domain.RoleUser, Content: query})

	lang := DetectLanguage(query)
	result := domain.QueryResult{
		Language:            lang,
		Sources:             []domain.Source{},
		ConversationContext: conversation.Format(prior),
	}

	vector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return a.fail(ctx, memory, result, "embed query", err)
	}
	hits, err := a.index.Rank(ctx, vector, a.opts.TopK)
	if err != nil {
		return a.fail(ctx, memory, result, "rank", err)
	}
	if len(hits) == 0 {
		result.Answer = NoInformation(lang)
		return a.record(memory, result), nil
	}

	result.Confidence = Confidence(hits)
	result.Sources = sources(hits, a.opts.SnippetLength)
	contexts := make([]string, len(hits))
	for i, h := range hits {
		contexts[i] = h.Chunk.Content
	}

	switch a.opts.Mode {
	case ModeGenerative:
		answer, err := a.generate(ctx, query, contexts, prior)
		if err != nil {
			result.Confidence = 0
			return a.fail(ctx, memory, result, "generate", err)
		}
		result.Answer = answer
	default:
		answer, step := a.extractor.Extract(query, contexts, lang)
		slog.Debug("extracted answer", "step", step, "language", lang)
		result.Answer = answer
	}
	return a.record(memory, result), nil
}

func (a *Assembler) generate(ctx context.Context, query string, contexts []string, prior []domain.Turn) (string, error) {
	contextText := strings.Join(contexts, "\n\n")
	if len(prior) > 0 {
		contextText += "\n\nRecent conversation:\n" + conversation.Format(prior)
	}
	answer, err := a.generator.Generate(ctx, SystemInstructions, query, contextText)
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", &domain.GenerationError{Err: fmt.Errorf("empty answer")}
	}
	return answer, nil
}

func (a *Assembler) fail(ctx context.Context, memory Memory, result domain.QueryResult, stage string, err error) (domain.QueryResult, error) {
	result.Answer = Apology
	result.Confidence = 0
	if ctxErr := ctx.Err(); ctxErr != nil {
		slog.Info("query cancelled", "stage", stage, "error", ctxErr)
		return result, ctxErr
	}
	slog.Error("query failed", "stage", stage, "error", err)
	return a.record(memory, result), nil
}

func (a *Assembler) record(memory Memory, result domain.QueryResult) domain.QueryResult {
	memory.Push(domain.Turn{Role: domain.RoleAssistant, Content: result.Answer})
	return result
}

func sources(hits []domain.RetrievalResult, n int) []domain.Source {
	out := make([]domain.Source, len(hits))
	for i, h := range hits {
		out[i] = domain.Source{Content: truncate(h.Chunk.Content, n), Distance: h.Distance}
	}
	return out
}
