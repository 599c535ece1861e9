package assistant

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"bnrag/internal/domain"
)

// PatternRule maps a question fragment to candidate answers. The first candidate
// found in the retrieved context wins.
type PatternRule struct {
	Fragment string          `yaml:"fragment"`
	Language domain.Language `yaml:"language"`
	Answers  []string        `yaml:"answers"`
}

// PatternTable is an ordered list of rules; earlier rules take precedence.
type PatternTable []PatternRule

type patternFile struct {
	Patterns PatternTable `yaml:"patterns"`
}

// DefaultPatterns covers the known quiz questions about the bundled story.
// Longer candidates come first so the most specific form found is returned.
func DefaultPatterns() PatternTable {
	return PatternTable{
		{Fragment: "সুপুরুষ কাকে", Language: domain.Bangla, Answers: []string{"শুম্ভুনাথ", "শুম্ভু"}},
		{Fragment: "ভাগ্য দেবতা", Language: domain.Bangla, Answers: []string{"মামাকে", "মামা"}},
		{Fragment: "কল্যাণীর প্রকৃত বয়স", Language: domain.Bangla, Answers: []string{"১৫ বছর", "১৫", "পনেরো"}},
	}
}

// LoadPatterns reads a pattern table from a YAML file with a top-level "patterns" list.
func LoadPatterns(path string) (PatternTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patterns: %w", err)
	}
	var f patternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse patterns %s: %w", path, err)
	}
	for i, rule := range f.Patterns {
		if strings.TrimSpace(rule.Fragment) == "" || len(rule.Answers) == 0 {
			return nil, &domain.ConfigError{Field: fmt.Sprintf("patterns[%d]", i), Reason: "fragment and answers are required"}
		}
		if rule.Language != domain.Bangla && rule.Language != domain.English {
			return nil, &domain.ConfigError{Field: fmt.Sprintf("patterns[%d].language", i), Reason: fmt.Sprintf("unknown language %q", rule.Language)}
		}
	}
	return f.Patterns, nil
}

// Lookup returns the first candidate answer of the first matching rule that occurs in contextBlob.
// Matching is done on NFC forms so precomposed and decomposed spellings agree.
func (t PatternTable) Lookup(query string, lang domain.Language, contextBlob string) (string, bool) {
	query = norm.NFC.String(query)
	contextBlob = norm.NFC.String(contextBlob)
	for _, rule := range t {
		if rule.Language != lang || !strings.Contains(query, norm.NFC.String(rule.Fragment)) {
			continue
		}
		for _, answer := range rule.Answers {
			if strings.Contains(contextBlob, norm.NFC.String(answer)) {
				return answer, true
			}
		}
	}
	return "", false
}
