package eval

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"bnrag/internal/domain"
)

// Case is one question with the text its answer must contain.
type Case struct {
	Question string `yaml:"question" json:"question"`
	Expected string `yaml:"expected" json:"expected"`
}

type Result struct {
	Question   string          `json:"question"`
	Expected   string          `json:"expected"`
	Got        string          `json:"got"`
	Correct    bool            `json:"correct"`
	Confidence float64         `json:"confidence"`
	Language   domain.Language `json:"language"`
}

type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

type Report struct {
	Results []Result `json:"test_results"`
	Summary Summary  `json:"summary"`
}

// Querier is the part of the service the evaluation drives.
type Querier interface {
	Query(ctx context.Context, sessionID, question string) (string, domain.QueryResult, error)
	EndSession(sessionID string)
}

// DefaultCases are the reference questions over the HSC Bangla 1st paper text.
func DefaultCases() []Case {
	return []Case{
		{Question: "অনুপমের ভাষায় সুপুরুষ কাকে বলা হয়েছে?", Expected: "শুম্ভুনাথ"},
		{Question: "কাকে অনুপমের ভাগ্য দেবতা বলে উল্লেখ করা হয়েছে?", Expected: "মামাকে"},
		{Question: "বিয়ের সময় কল্যাণীর প্রকৃত বয়স কত ছিল?", Expected: "১৫ বছর"},
	}
}

type casesFile struct {
	Cases []Case `yaml:"cases"`
}

// LoadCases reads cases from a YAML file with a top-level "cases" list.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f casesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, c := range f.Cases {
		if strings.TrimSpace(c.Question) == "" || strings.TrimSpace(c.Expected) == "" {
			return nil, &domain.ConfigError{Field: fmt.Sprintf("cases[%d]", i), Reason: "question and expected are required"}
		}
	}
	return f.Cases, nil
}

// Run asks every case in its own conversation so earlier answers cannot leak
// into later prompts. A case passes when the answer contains the expectation,
// ignoring case.
func Run(ctx context.Context, q Querier, cases []Case) (Report, error) {
	rep := Report{Results: make([]Result, 0, len(cases))}
	for _, c := range cases {
		id, res, err := q.Query(ctx, "", c.Question)
		if id != "" {
			q.EndSession(id)
		}
		if err != nil {
			return Report{}, fmt.Errorf("case %q: %w", c.Question, err)
		}
		r := Result{
			Question:   c.Question,
			Expected:   c.Expected,
			Got:        res.Answer,
			Correct:    strings.Contains(strings.ToLower(res.Answer), strings.ToLower(c.Expected)),
			Confidence: res.Confidence,
			Language:   res.Language,
		}
		rep.Results = append(rep.Results, r)
		if r.Correct {
			rep.Summary.Passed++
		} else {
			rep.Summary.Failed++
		}
	}
	rep.Summary.Total = len(rep.Results)
	return rep, nil
}
