package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/core/ports"
)

// ReclassifyUseCase re-derives title, author and category for every cataloged book
// and writes the result to a separate workbook. The catalog itself stays untouched.
type ReclassifyUseCase struct {
	reader     ports.CatalogReader
	writer     ports.WorkbookWriter
	parser     ports.TitleParser
	classifier ports.BookClassifier
}

func NewReclassifyUseCase(
	reader ports.CatalogReader,
	writer ports.WorkbookWriter,
	parser ports.TitleParser,
	classifier ports.BookClassifier,
) *ReclassifyUseCase {
	return &ReclassifyUseCase{
		reader:     reader,
		writer:     writer,
		parser:     parser,
		classifier: classifier,
	}
}

func (uc *ReclassifyUseCase) Export(ctx context.Context, destination string) (int, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "export reclassified catalog", errors.New("destination is required"))
	}

	records, err := uc.reader.ListRecords(ctx, domain.BookFilter{})
	if err != nil {
		return 0, fmt.Errorf("read catalog: %w", err)
	}

	changed := 0
	out := make([]domain.BookRecord, 0, len(records))
	for _, record := range records {
		base := filepath.Base(record.Filepath)
		title, author := uc.parser.Parse(strings.TrimSuffix(base, filepath.Ext(base)))
		category := uc.classifier.Classify(title, record.TOC, record.Filepath)
		if category != record.Category {
			changed++
		}
		record.Title = title
		record.Author = author
		record.Category = category
		out = append(out, record)
	}

	if err := uc.writer.WriteWorkbook(ctx, destination, out); err != nil {
		return 0, fmt.Errorf("write reclassified catalog: %w", err)
	}
	slog.Info("catalog_reclassified", "destination", destination, "records", len(out), "category_changes", changed)
	return len(out), nil
}
