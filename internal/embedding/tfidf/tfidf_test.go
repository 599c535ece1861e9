package tfidf

import (
	"context"
	"errors"
	"math"
	"testing"

	"bnrag/internal/domain"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEmbedder_RequiresPrepare(t *testing.T) {
	e := NewEmbedder()
	if e.Prepared() {
		t.Fatalf("new embedder must not be prepared")
	}
	_, err := e.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected embedding error, got %v", err)
	}
	if err := e.Prepare(context.Background(), nil); !errors.Is(err, domain.ErrEmptyCorpus) {
		t.Fatalf("expected empty corpus error, got %v", err)
	}
}

func TestTokenize_KeepsBanglaWordsWhole(t *testing.T) {
	e := NewEmbedder()
	got := e.tokenize("অনুপমের মামা, শুম্ভুনাথ! The Uncle")
	want := []string{"অনুপমের", "মামা", "শুম্ভুনাথ", "uncle"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestEmbedder_SimilarTextsAreCloser(t *testing.T) {
	ctx := context.Background()
	corpus := []string{
		"শুম্ভুনাথ সুপুরুষ ছিলেন।",
		"মামা অনুপমের ভাগ্য দেবতা।",
		"কল্যাণীর বয়স পনেরো বছর।",
	}
	e := NewEmbedder()
	if err := e.Prepare(ctx, corpus); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !e.Prepared() || e.dimension == 0 {
		t.Fatalf("expected prepared embedder with a vocabulary")
	}
	vecs := make([][]float32, len(corpus))
	for i, c := range corpus {
		v, err := e.Embed(ctx, c)
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		if math.Abs(norm(v)-1) > 1e-5 {
			t.Fatalf("vector %d not normalised: %f", i, norm(v))
		}
		vecs[i] = v
	}
	q, err := e.Embed(ctx, "অনুপমের ভাগ্য দেবতা কে?")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !(dot(q, vecs[1]) > dot(q, vecs[0]) && dot(q, vecs[1]) > dot(q, vecs[2])) {
		t.Fatalf("query is not closest to the matching chunk")
	}

	zero, err := e.Embed(ctx, "completely unrelated words")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if norm(zero) != 0 {
		t.Fatalf("expected zero vector for out-of-vocabulary text")
	}
}
