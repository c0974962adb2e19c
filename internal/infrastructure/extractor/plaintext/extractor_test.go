package plaintext

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/extractor/preface"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestExtractPrefaceFromLeadingText(t *testing.T) {
	path := writeFile(t, "book.txt", []byte("  머리말\n"+strings.Repeat("다", 2000)))

	content, err := NewExtractor(preface.DefaultDetector()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.HasPrefix(content.Preface, "머리말") {
		t.Fatalf("unexpected preface %q", content.Preface[:20])
	}
	if n := len([]rune(content.Preface)); n != preface.DefaultMaxChars {
		t.Fatalf("expected %d characters, got %d", preface.DefaultMaxChars, n)
	}
	if content.TOC != "" {
		t.Fatalf("expected empty toc")
	}
}

func TestExtractWithoutKeyword(t *testing.T) {
	path := writeFile(t, "book.txt", []byte("1장. 시작"))

	content, err := NewExtractor(preface.DefaultDetector()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if content.Preface != "" {
		t.Fatalf("expected empty preface, got %q", content.Preface)
	}
}

func TestExtractMatchesFileNameNotDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "서문집")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	plain := filepath.Join(dir, "book.txt")
	named := filepath.Join(dir, "서문.txt")
	for _, path := range []string{plain, named} {
		if err := os.WriteFile(path, []byte("1장. 시작"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	extractor := NewExtractor(preface.DefaultDetector())

	content, err := extractor.Extract(context.Background(), plain)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if content.Preface != "" {
		t.Fatalf("directory name must not mark %s as a preface, got %q", plain, content.Preface)
	}

	content, err = extractor.Extract(context.Background(), named)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if content.Preface != "1장. 시작" {
		t.Fatalf("expected the file name to mark a preface, got %q", content.Preface)
	}
}

func TestExtractRejectsBinary(t *testing.T) {
	path := writeFile(t, "book.txt", []byte{0xff, 0xfe, 0x00, 0xc3, 0x28, 'a'})

	_, err := NewExtractor(preface.DefaultDetector()).Extract(context.Background(), path)
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestTrimPartialRune(t *testing.T) {
	full := []byte("가나")
	cut := full[:len(full)-1]
	if got := string(trimPartialRune(cut)); got != "가" {
		t.Fatalf("trimPartialRune() = %q", got)
	}
	if got := string(trimPartialRune(full)); got != "가나" {
		t.Fatalf("trimPartialRune() = %q", got)
	}
}
