package epub

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/extractor/preface"
)

type Extractor struct {
	detector preface.Detector
}

func NewExtractor(detector preface.Detector) *Extractor {
	return &Extractor{detector: detector}
}

// Extract returns the flattened outline and the first preface-like document of an EPUB.
// Every failure is reported as domain.ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, path string) (domain.Content, error) {
	if err := checkContainer(path); err != nil {
		return domain.Content{}, domain.WrapError(domain.ErrExtraction, "epub container", err)
	}

	book, err := openBook(path)
	if err != nil {
		return domain.Content{}, domain.WrapError(domain.ErrExtraction, "open epub", err)
	}
	defer book.Close()

	nodes, err := book.Navigation()
	if err != nil {
		return domain.Content{}, domain.WrapError(domain.ErrExtraction, "epub navigation", err)
	}

	text, err := e.findPreface(ctx, book)
	if err != nil {
		return domain.Content{}, domain.WrapError(domain.ErrExtraction, "epub preface", err)
	}

	return domain.Content{
		TOC:     domain.FlattenTOC(nodes),
		Preface: text,
	}, nil
}

// findPreface scans content documents in manifest order; the first match wins.
func (e *Extractor) findPreface(ctx context.Context, book *Book) (string, error) {
	for _, item := range book.Items() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !item.IsDocument() || item.hasProperty("nav") {
			continue
		}
		raw, err := book.ReadItem(item)
		if err != nil {
			return "", err
		}
		text, err := RenderText(raw)
		if err != nil {
			return "", fmt.Errorf("render %s: %w", item.Name, err)
		}
		if e.detector.Matches(item.Name, text) {
			return e.detector.Clip(text), nil
		}
	}
	return "", nil
}

func checkContainer(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect mime type: %w", err)
	}
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return nil
		}
	}
	return fmt.Errorf("not a zip container: %s", mtype.String())
}
