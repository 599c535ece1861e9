package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"bnrag/internal/domain"
)

// Extractor turns a source document into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// New returns the extractor for kind: "text", "pdftotext", or "auto" which picks by file extension.
func New(kind string) (Extractor, error) {
	switch kind {
	case "", "auto":
		return Auto{}, nil
	case "text":
		return PlainText{}, nil
	case "pdftotext":
		return PDFToText{}, nil
	default:
		return nil, &domain.ConfigError{Field: "source.extractor", Reason: fmt.Sprintf("unknown extractor %q", kind)}
	}
}

// Auto dispatches PDFs to PDFToText and everything else to PlainText.
type Auto struct{}

func (Auto) Extract(ctx context.Context, path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return PDFToText{}.Extract(ctx, path)
	}
	return PlainText{}.Extract(ctx, path)
}

// PlainText reads a UTF-8 text file.
type PlainText struct{}

func (PlainText) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}
	if !utf8.Valid(data) {
		return "", &domain.ExtractionError{Path: path, Err: errors.New("file is not valid UTF-8")}
	}
	return finish(path, string(data))
}

// PDFToText shells out to poppler's pdftotext.
type PDFToText struct {
	// Binary defaults to "pdftotext" on PATH.
	Binary string
}

func (p PDFToText) Extract(ctx context.Context, path string) (string, error) {
	bin := p.Binary
	if bin == "" {
		bin = "pdftotext"
	}
	if _, err := os.Stat(path); err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}
	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, bin, "-layout", "-enc", "UTF-8", path, "-")
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", &domain.ExtractionError{Path: path, Err: err}
	}
	return finish(path, string(out))
}

func finish(path, text string) (string, error) {
	text = Clean(text)
	if strings.TrimSpace(text) == "" {
		return "", &domain.ExtractionError{Path: path, Err: domain.ErrEmptyCorpus}
	}
	return text, nil
}

// Clean normalises extracted text to NFC, drops control characters other than
// newlines and tabs, and collapses doubled dandas.
func Clean(text string) string {
	text = norm.NFC.String(text)
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\f':
			// pdftotext separates pages with form feeds
			return '\n'
		case r == '\uFEFF' || unicode.IsControl(r) && r != '\r':
			return -1
		}
		return r
	}, text)
	for strings.Contains(text, "।।") {
		text = strings.ReplaceAll(text, "।।", "।")
	}
	return text
}
