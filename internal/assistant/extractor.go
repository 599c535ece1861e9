package assistant

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"bnrag/internal/domain"
)

const fallbackLength = 200

// Step names the extraction stage that produced an answer.
type Step string

const (
	StepPattern   Step = "pattern"
	StepKeyTerm   Step = "key_term"
	StepTruncated Step = "truncated"
)

// sentenceTerminators covers both scripts since retrieved context often mixes them.
var sentenceTerminators = regexp.MustCompile(`[।॥.!?]`)

// Extractor derives a short answer from retrieved text without a generator.
type Extractor struct {
	patterns PatternTable
}

func NewExtractor(patterns PatternTable) *Extractor {
	return &Extractor{patterns: patterns}
}

// Extract runs the cascade: pattern table, best-sentence key term, truncated context.
func (e *Extractor) Extract(query string, contexts []string, lang domain.Language) (string, Step) {
	blob := strings.Join(contexts, " ")

	if answer, ok := e.patterns.Lookup(query, lang, blob); ok {
		return answer, StepPattern
	}

	if best := bestSentence(query, splitSentences(blob)); best != "" {
		if term := keyTerm(best); term != "" {
			return term, StepKeyTerm
		}
	}

	return truncate(blob, fallbackLength), StepTruncated
}

// splitSentences splits on Bangla and Western terminators alike.
func splitSentences(blob string) []string {
	return sentenceTerminators.Split(blob, -1)
}

// bestSentence returns the sentence containing the most query tokens. The first
// sentence wins ties; a sentence with no matches is never chosen.
func bestSentence(query string, sentences []string) string {
	tokens := strings.Fields(strings.ToLower(query))
	best, bestScore := "", 0
	for _, s := range sentences {
		lower := strings.ToLower(s)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = strings.TrimSpace(s), score
		}
	}
	return best
}

// keyTerm returns the first word that looks like a name or key term: longer than
// two characters and either capitalised or containing a Bengali character.
func keyTerm(sentence string) string {
	for _, word := range strings.Fields(sentence) {
		w := strings.TrimFunc(word, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(first) || strings.IndexFunc(w, isBengali) >= 0 {
			return w
		}
	}
	return ""
}

// truncate cuts s to n characters, appending "..." when anything was dropped.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
