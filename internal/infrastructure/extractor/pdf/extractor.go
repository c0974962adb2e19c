package pdf

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/extractor/preface"
)

// DefaultMaxPages bounds the preface scan; prefaces sit in the front matter.
const DefaultMaxPages = 30

type Extractor struct {
	detector preface.Detector
	maxPages int
}

func NewExtractor(detector preface.Detector, maxPages int) *Extractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Extractor{detector: detector, maxPages: maxPages}
}

// Extract reads the document outline as the table of contents and treats each of the
// leading pages as a content part for preface detection.
func (e *Extractor) Extract(ctx context.Context, path string) (content domain.Content, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			content = domain.Content{}
			err = domain.WrapError(domain.ErrExtraction, "parse pdf", fmt.Errorf("%v", r))
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return domain.Content{}, domain.WrapError(domain.ErrExtraction, "open pdf", err)
	}
	defer f.Close()

	toc := domain.FlattenTOC(convertOutline(reader.Outline().Child))

	text, err := e.findPreface(ctx, reader)
	if err != nil {
		return domain.Content{}, domain.WrapError(domain.ErrExtraction, "pdf preface", err)
	}
	return domain.Content{TOC: toc, Preface: text}, nil
}

func (e *Extractor) findPreface(ctx context.Context, reader *pdf.Reader) (string, error) {
	pages := reader.NumPage()
	if pages > e.maxPages {
		pages = e.maxPages
	}
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d text: %w", i, err)
		}
		if e.detector.Matches(fmt.Sprintf("page-%d", i), text) {
			return e.detector.Clip(text), nil
		}
	}
	return "", nil
}

func convertOutline(items []pdf.Outline) []domain.TocNode {
	if len(items) == 0 {
		return nil
	}
	nodes := make([]domain.TocNode, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, domain.TocNode{
			Title:    item.Title,
			Children: convertOutline(item.Child),
		})
	}
	return nodes
}
