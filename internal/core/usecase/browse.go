package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/core/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type BrowseUseCase struct {
	reader ports.CatalogReader
}

func NewBrowseUseCase(reader ports.CatalogReader) *BrowseUseCase {
	return &BrowseUseCase{reader: reader}
}

func (uc *BrowseUseCase) List(ctx context.Context, filter domain.BookFilter) ([]domain.BookRecord, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list books", errors.New("limit and offset must be non-negative"))
	}
	if filter.Limit == 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	filter.Category = strings.TrimSpace(filter.Category)

	records, err := uc.reader.ListRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	if records == nil {
		records = []domain.BookRecord{}
	}
	return records, nil
}

func (uc *BrowseUseCase) Get(ctx context.Context, path string) (*domain.BookRecord, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get book", errors.New("filepath is required"))
	}
	record, err := uc.reader.GetByPath(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return record, nil
}

// Categories counts every cataloged book per label. Labels without books report zero.
func (uc *BrowseUseCase) Categories(ctx context.Context) (map[string]int, error) {
	records, err := uc.reader.ListRecords(ctx, domain.BookFilter{})
	if err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	counts := make(map[string]int, len(domain.Categories))
	for _, category := range domain.Categories {
		counts[category] = 0
	}
	for _, record := range records {
		label := record.Category
		if label == "" {
			label = domain.CategoryOther
		}
		counts[label]++
	}
	return counts, nil
}
