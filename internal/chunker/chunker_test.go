package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"bnrag/internal/domain"
)

const banglaPassage = `আজ আমার বয়স সাতাশ মাত্র। এ জীবনটা না দৈর্ঘ্যের হিসাবে বড়ো, না গুণের হিসাবে।
তবু ইহার একটু বিশেষ মূল্য আছে।   ইহা সেই ফুলের মতো যাহার বুকের উপরে ভ্রমর আসিয়া বসিয়াছিল।


সেই পদক্ষেপের ইতিহাস আমার জীবনের মাঝখানে ফলের মতো গুটি ধরিয়া উঠিয়াছে।
মামা বলিলেন, মেয়ের বয়স পনেরো। Anupam was silent! Was he happy? Nobody knew.`

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func tailRunes(s string, n int) string {
	r := []rune(s)
	if len(r) < n {
		return ""
	}
	return string(r[len(r)-n:])
}

func TestSegment_RejectsInvalidParameters(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"overlap equals size", 10, 10},
		{"overlap above size", 10, 11},
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Segment("some text", tc.size, tc.overlap)
			if !errors.Is(err, domain.ErrConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *domain.ConfigError, got %T", err)
			}
		})
	}
	if _, err := NewRecursiveChunker(5, 5); !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("NewRecursiveChunker: expected config error, got %v", err)
	}
}

func TestSegment_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\t \n"} {
		chunks, err := Segment(in, 100, 10)
		if err != nil {
			t.Fatalf("Segment(%q): %v", in, err)
		}
		if len(chunks) != 0 {
			t.Fatalf("Segment(%q): expected no chunks, got %d", in, len(chunks))
		}
	}
}

func TestSegment_ShortInputIsSingleChunk(t *testing.T) {
	in := "  অনুপমের ভাষায় সুপুরুষ কাকে বলা হয়েছে?  "
	chunks, err := Segment(in, 200, 20)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	want := strings.TrimSpace(in)
	if chunks[0].Content != want {
		t.Fatalf("unexpected content: %q", chunks[0].Content)
	}
	if chunks[0].ID != 0 || chunks[0].Length != utf8.RuneCountInString(want) {
		t.Fatalf("unexpected chunk metadata: %+v", chunks[0])
	}
}

func TestSegment_SplitsAtSentenceBoundaries(t *testing.T) {
	chunks, err := Segment("One two three. Four five six. Seven eight nine.", 20, 0)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	want := []string{"One two three.", "Four five six.", "Seven eight nine."}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Content != w {
			t.Fatalf("chunk %d: expected %q, got %q", i, w, chunks[i].Content)
		}
		if chunks[i].ID != i {
			t.Fatalf("chunk %d: unexpected id %d", i, chunks[i].ID)
		}
	}
}

func TestSegment_OverlapSeedsNextChunk(t *testing.T) {
	chunks, err := Segment("One two three. Four five six. Seven eight nine.", 20, 5)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	want := []string{"One two three.", "hree. Four five six.", "six. Seven eight nin", "t nine."}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Content != w {
			t.Fatalf("chunk %d: expected %q, got %q", i, w, chunks[i].Content)
		}
	}
}

func TestSegment_CharacterLevelFallback(t *testing.T) {
	chunks, err := Segment(strings.Repeat("ক", 50), 20, 0)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	lengths := []int{20, 20, 10}
	if len(chunks) != len(lengths) {
		t.Fatalf("expected %d chunks, got %d", len(lengths), len(chunks))
	}
	for i, l := range lengths {
		if chunks[i].Length != l {
			t.Fatalf("chunk %d: expected length %d, got %d", i, l, chunks[i].Length)
		}
	}
}

func TestSegment_Properties(t *testing.T) {
	inputs := []string{
		banglaPassage,
		strings.Repeat(banglaPassage+"\n\n", 3),
		strings.Repeat("word ", 80),
		"a" + strings.Repeat("x", 300) + " tail.",
	}
	params := []struct{ size, overlap int }{
		{30, 0}, {60, 0}, {60, 10}, {120, 30}, {25, 24},
	}
	for _, in := range inputs {
		for _, p := range params {
			chunks, err := Segment(in, p.size, p.overlap)
			if err != nil {
				t.Fatalf("Segment(size=%d, overlap=%d): %v", p.size, p.overlap, err)
			}
			if len(chunks) == 0 {
				t.Fatalf("expected chunks for non-empty input")
			}
			var joined strings.Builder
			for i, c := range chunks {
				if c.ID != i {
					t.Fatalf("chunk ids not sequential: %d at %d", c.ID, i)
				}
				if c.Length != utf8.RuneCountInString(c.Content) {
					t.Fatalf("length mismatch for chunk %d", i)
				}
				if c.Length > p.size {
					t.Fatalf("chunk %d longer than %d: %d", i, p.size, c.Length)
				}
				if strings.TrimSpace(c.Content) == "" {
					t.Fatalf("chunk %d is blank", i)
				}
				if strings.TrimLeftFunc(c.Content, unicode.IsSpace) != c.Content {
					t.Fatalf("size=%d overlap=%d: chunk %d %q starts with whitespace", p.size, p.overlap, i, c.Content)
				}
				joined.WriteString(c.Content)
				if p.overlap > 0 && i > 0 {
					seed := strings.TrimLeftFunc(tailRunes(chunks[i-1].Content, p.overlap), unicode.IsSpace)
					if !strings.HasPrefix(c.Content, seed) {
						t.Fatalf("size=%d overlap=%d: chunk %d %q does not start with %q", p.size, p.overlap, i, c.Content, seed)
					}
				}
			}
			if p.overlap == 0 && stripSpace(joined.String()) != stripSpace(Normalize(in)) {
				t.Fatalf("size=%d: concatenated chunks do not reconstruct the source", p.size)
			}
		}
	}
}

func TestRefine_TrimsWindows(t *testing.T) {
	s := segmenter{size: 5, overlap: 2}
	got := s.refine([]string{"abc  defgh"})
	want := []string{"abc  ", "def", "efgh"}
	if len(got) != len(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("window %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if got := (segmenter{size: 2, overlap: 0}).refine([]string{"ab  cd"}); len(got) != 2 || got[0] != "ab" || got[1] != "cd" {
		t.Fatalf("expected blank window to be dropped, got %q", got)
	}
}

func TestSegment_Deterministic(t *testing.T) {
	a, _ := Segment(banglaPassage, 40, 8)
	b, _ := Segment(banglaPassage, 40, 8)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}

func TestNormalize(t *testing.T) {
	in := "a  \t b\r\n\r\n\r\n c \n d"
	if got := Normalize(in); got != "a b\n\nc\nd" {
		t.Fatalf("unexpected normalisation: %q", got)
	}
}

func TestSentenceChunker_GroupsSentences(t *testing.T) {
	c := NewSentenceChunker(2, 1)
	chunks, err := c.Chunk(domain.Document{Content: "প্রথম বাক্য। দ্বিতীয় বাক্য। Third one! Fourth"})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	want := []string{
		"প্রথম বাক্য। দ্বিতীয় বাক্য।",
		"দ্বিতীয় বাক্য। Third one!",
		"Third one! Fourth",
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Content != w || chunks[i].ID != i {
			t.Fatalf("chunk %d: expected %q, got %+v", i, w, chunks[i])
		}
	}
}
