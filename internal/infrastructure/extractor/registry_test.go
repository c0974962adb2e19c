package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
)

type extractorFake struct {
	content domain.Content
	err     error
	calls   []string
}

func (f *extractorFake) Extract(_ context.Context, path string) (domain.Content, error) {
	f.calls = append(f.calls, path)
	return f.content, f.err
}

func TestRegistryDispatchesByExtensionCaseInsensitive(t *testing.T) {
	epub := &extractorFake{content: domain.Content{TOC: "- A"}}
	reg := NewRegistry().Register("EPUB", epub)

	content, err := reg.Extract(context.Background(), "/lib/Book.EPUB")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if content.TOC != "- A" || len(epub.calls) != 1 {
		t.Fatalf("expected epub extractor call, got %+v / %v", content, epub.calls)
	}
	if !reg.Supports(".epub") || reg.Supports(".pdf") {
		t.Fatalf("unexpected Supports() result")
	}
}

func TestRegistryUnregisteredTypeIsEmpty(t *testing.T) {
	reg := NewRegistry().Register(".epub", &extractorFake{err: errors.New("must not be called")})

	content, err := reg.Extract(context.Background(), "/lib/book.pdf")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if content != (domain.Content{}) {
		t.Fatalf("expected empty content, got %+v", content)
	}
}
