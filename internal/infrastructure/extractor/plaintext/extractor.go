package plaintext

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/extractor/preface"
)

// maxReadBytes caps how much of a text book is read; the preface is in the front.
const maxReadBytes = 256 << 10

type Extractor struct {
	detector preface.Detector
}

func NewExtractor(detector preface.Detector) *Extractor {
	return &Extractor{detector: detector}
}

// Extract treats the whole file as one content part named after the file. Plain text
// has no outline, so the table of contents is always empty.
func (e *Extractor) Extract(_ context.Context, path string) (domain.Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Content{}, domain.WrapError(domain.ErrExtraction, "open text book", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxReadBytes))
	if err != nil {
		return domain.Content{}, domain.WrapError(domain.ErrExtraction, "read text book", err)
	}
	raw = trimPartialRune(raw)
	if !utf8.Valid(raw) {
		return domain.Content{}, domain.WrapError(domain.ErrExtraction, "read text book", fmt.Errorf("not utf-8 text: %s", path))
	}

	text := strings.TrimSpace(string(raw))
	if text == "" || !e.detector.Matches(filepath.Base(path), text) {
		return domain.Content{}, nil
	}
	return domain.Content{Preface: e.detector.Clip(text)}, nil
}

// trimPartialRune drops a multi-byte sequence cut by the read limit.
func trimPartialRune(raw []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(raw) > 0; i++ {
		r, size := utf8.DecodeLastRune(raw)
		if r != utf8.RuneError || size != 1 {
			return raw
		}
		raw = raw[:len(raw)-1]
	}
	return raw
}
