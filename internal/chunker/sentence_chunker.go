package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"bnrag/internal/domain"
)

// SentenceChunker groups whole sentences into chunks with a sentence overlap.
// Both the danda and Western terminators end a sentence.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`[^।॥.!?]+[।॥.!?]+`),
	}
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	content := Normalize(document.Content)
	var sentences []string
	end := 0
	for _, loc := range c.splitter.FindAllStringIndex(content, -1) {
		if s := strings.TrimSpace(content[loc[0]:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		end = loc[1]
	}
	// trailing text without a terminator is still a sentence
	if rest := strings.TrimSpace(content[end:]); rest != "" {
		sentences = append(sentences, rest)
	}
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []domain.Chunk
	i := 0
	for i < len(sentences) {
		stop := i + c.sentencesPerChunk
		if stop > len(sentences) {
			stop = len(sentences)
		}
		text := strings.Join(sentences[i:stop], " ")
		chunks = append(chunks, domain.Chunk{
			ID:      len(chunks),
			Content: text,
			Length:  utf8.RuneCountInString(text),
		})
		if stop == len(sentences) {
			break
		}
		i = stop - c.overlapSentences
	}
	return chunks, nil
}
