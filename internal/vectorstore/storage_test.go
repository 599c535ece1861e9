package vectorstore

import (
	"math"
	"testing"
)

func TestClampDistance(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{math.NaN(), 1},
		{-0.2, 0},
		{0.3, 0.3},
		{2, 2},
	}
	for _, tc := range cases {
		if got := ClampDistance(tc.in); got != tc.want {
			t.Fatalf("ClampDistance(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if got := FromSimilarity(math.NaN()); got != 1 {
		t.Fatalf("expected NaN similarity to rank as distance 1, got %v", got)
	}
	if got := CosineDistance([]float32{0, 0}, []float32{1, 0}); got != 1 {
		t.Fatalf("expected zero-norm distance 1, got %v", got)
	}
}
