package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"bnrag/internal/domain"
)

var (
	horizontalSpaceRe = regexp.MustCompile(`[\t\f\v \x{00A0}\x{2000}-\x{200A}\x{202F}\x{205F}\x{3000}]+`)
	lineEdgeSpaceRe   = regexp.MustCompile(` ?\n ?`)
	blankLinesRe      = regexp.MustCompile(`\n{2,}`)

	// Boundary tiers, most meaningful first. A nil tier splits into single characters.
	boundaryTiers = []*regexp.Regexp{
		regexp.MustCompile(`[।॥?!.]+\s+`),
		regexp.MustCompile(`\n\n+`),
		regexp.MustCompile(`\n`),
		regexp.MustCompile(`\s`),
		nil,
	}
)

// RecursiveChunker splits text at the most meaningful boundary that keeps
// pieces under the size limit, then merges pieces into overlapping chunks.
type RecursiveChunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewRecursiveChunker validates the size parameters and returns a chunker.
func NewRecursiveChunker(chunkSize, chunkOverlap int) (*RecursiveChunker, error) {
	if err := validate(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &RecursiveChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk segments the document content.
func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	return Segment(document.Content, c.chunkSize, c.chunkOverlap)
}

// Segment turns raw text into ordered chunks of at most chunkSize characters.
// Consecutive chunks share up to chunkOverlap characters.
func Segment(text string, chunkSize, chunkOverlap int) ([]domain.Chunk, error) {
	if err := validate(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	text = Normalize(text)
	if text == "" {
		return nil, nil
	}
	s := segmenter{size: chunkSize, overlap: chunkOverlap}
	pieces := s.split(text, boundaryTiers)
	merged := s.merge(pieces)
	refined := s.refine(merged)

	chunks := make([]domain.Chunk, 0, len(refined))
	for _, content := range refined {
		if strings.TrimSpace(content) == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ID:      len(chunks),
			Content: content,
			Length:  utf8.RuneCountInString(content),
		})
	}
	return chunks, nil
}

// Normalize collapses runs of spaces and blank lines. Paragraph breaks survive as a single "\n\n".
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalSpaceRe.ReplaceAllString(text, " ")
	text = lineEdgeSpaceRe.ReplaceAllString(text, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func validate(chunkSize, chunkOverlap int) error {
	if chunkSize <= 0 {
		return &domain.ConfigError{Field: "chunk_size", Reason: "must be positive"}
	}
	if chunkOverlap < 0 {
		return &domain.ConfigError{Field: "chunk_overlap", Reason: "must not be negative"}
	}
	if chunkOverlap >= chunkSize {
		return &domain.ConfigError{Field: "chunk_overlap", Reason: "must be smaller than chunk_size"}
	}
	return nil
}

type segmenter struct {
	size    int
	overlap int
}

func (s segmenter) split(segment string, tiers []*regexp.Regexp) []string {
	if len(tiers) == 0 || utf8.RuneCountInString(segment) <= s.size {
		return []string{segment}
	}
	var out []string
	for _, piece := range splitAt(segment, tiers[0]) {
		if utf8.RuneCountInString(piece) > s.size {
			out = append(out, s.split(piece, tiers[1:])...)
			continue
		}
		out = append(out, piece)
	}
	return out
}

// splitAt cuts segment after every separator match so each piece keeps the
// separator that ended it. The last piece carries no separator.
func splitAt(segment string, sep *regexp.Regexp) []string {
	if sep == nil {
		out := make([]string, 0, utf8.RuneCountInString(segment))
		for _, r := range segment {
			out = append(out, string(r))
		}
		return out
	}
	var pieces []string
	start := 0
	for _, loc := range sep.FindAllStringIndex(segment, -1) {
		if loc[1] <= start {
			continue
		}
		pieces = append(pieces, segment[start:loc[1]])
		start = loc[1]
	}
	if start < len(segment) {
		pieces = append(pieces, segment[start:])
	}
	return pieces
}

func (s segmenter) merge(pieces []string) []string {
	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	for _, p := range pieces {
		pl := utf8.RuneCountInString(p)
		if curLen > 0 && curLen+pl > s.size {
			raw := cur.String()
			closed := strings.TrimSpace(raw)
			if closed != "" {
				chunks = append(chunks, closed)
			}
			cur.Reset()
			curLen = 0
			if s.overlap > 0 {
				if seed := tail(closed, s.overlap); seed != "" {
					// keep the separator that followed the closed chunk
					seed = strings.TrimLeftFunc(seed, unicode.IsSpace) + raw[len(strings.TrimRightFunc(raw, unicode.IsSpace)):]
					cur.WriteString(seed)
					curLen = utf8.RuneCountInString(seed)
				}
			}
		}
		cur.WriteString(p)
		curLen += pl
	}
	if last := strings.TrimSpace(cur.String()); last != "" {
		chunks = append(chunks, last)
	}
	return chunks
}

// refine slices chunks that are still too long into fixed windows. Windows
// lose their leading whitespace and blank ones are dropped; trailing
// whitespace stays so the next window still opens with this one's tail.
func (s segmenter) refine(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	step := s.size - s.overlap
	for _, c := range chunks {
		r := []rune(c)
		for len(r) > s.size {
			out = appendWindow(out, r[:s.size])
			r = r[step:]
		}
		out = appendWindow(out, r)
	}
	return out
}

func appendWindow(out []string, w []rune) []string {
	if t := strings.TrimLeftFunc(string(w), unicode.IsSpace); strings.TrimSpace(t) != "" {
		out = append(out, t)
	}
	return out
}

// tail returns the last n characters of s, or "" when s is shorter than n.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) < n {
		return ""
	}
	return string(r[len(r)-n:])
}
