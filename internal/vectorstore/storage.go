package vectorstore

import (
	"errors"
	"math"
	"sort"

	"bnrag/internal/domain"
)

var ErrLengthMismatch = errors.New("chunks and vectors length mismatch")

// CosineDistance returns 1 - cos(a, b). A zero-norm vector is maximally distant (1).
// The result is never negative.
func CosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return ClampDistance(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

// FromSimilarity converts a cosine similarity score reported by a backend into a distance.
func FromSimilarity(score float64) float64 {
	return ClampDistance(1 - score)
}

// ClampDistance maps a backend distance onto the values callers expect:
// negatives become 0 and NaN, which backends report for zero-norm vectors, becomes 1.
func ClampDistance(d float64) float64 {
	switch {
	case math.IsNaN(d):
		return 1
	case d < 0:
		return 0
	}
	return d
}

// SortAndLimit orders results ascending by distance, keeping the incoming order on ties,
// and cuts the slice to topK. topK <= 0 yields an empty slice.
func SortAndLimit(results []domain.RetrievalResult, topK int) []domain.RetrievalResult {
	if topK <= 0 || len(results) == 0 {
		return []domain.RetrievalResult{}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results
}

// CheckBatch validates a batch insert before it touches a backend.
func CheckBatch(chunks []domain.Chunk, vectors [][]float32, dimension int) error {
	if len(chunks) != len(vectors) {
		return ErrLengthMismatch
	}
	for _, v := range vectors {
		if dimension == 0 {
			dimension = len(v)
		}
		if len(v) != dimension {
			return &domain.DimensionMismatchError{Want: dimension, Got: len(v)}
		}
	}
	return nil
}
