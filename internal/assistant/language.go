package assistant

import (
	"math"
	"unicode"

	"bnrag/internal/domain"
)

// BanglaThreshold is the share of Bengali-block characters among alphabetic
// characters above which a text is classified as Bangla.
const BanglaThreshold = 0.3

// DetectLanguage classifies text by script. Combining marks count as alphabetic
// so Bangla vowel signs are not ignored. Text without alphabetic characters is English.
func DetectLanguage(text string) domain.Language {
	var alpha, bengali int
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsMark(r) {
			continue
		}
		alpha++
		if isBengali(r) {
			bengali++
		}
	}
	if alpha == 0 {
		return domain.English
	}
	if float64(bengali)/float64(alpha) > BanglaThreshold {
		return domain.Bangla
	}
	return domain.English
}

func isBengali(r rune) bool {
	return r >= 0x0980 && r <= 0x09FF
}

// Confidence is 1 minus the mean retrieval distance, clamped to [0, 1].
// A NaN distance yields 0.
func Confidence(results []domain.RetrievalResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Distance
	}
	c := 1 - sum/float64(len(results))
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
