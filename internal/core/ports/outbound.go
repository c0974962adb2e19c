package ports

import (
	"context"
	"time"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
)

// CatalogStore persists cataloged books. Records are append-only and keyed by filepath.
type CatalogStore interface {
	ListKnownPaths(ctx context.Context) (map[string]struct{}, error)
	EnsureSchema(ctx context.Context) error
	AppendRecords(ctx context.Context, records []domain.BookRecord) error
}

// CatalogReader reads cataloged books back.
type CatalogReader interface {
	ListRecords(ctx context.Context, filter domain.BookFilter) ([]domain.BookRecord, error)
	GetByPath(ctx context.Context, filepath string) (*domain.BookRecord, error)
}

// WorkbookWriter writes a standalone workbook outside the catalog.
type WorkbookWriter interface {
	WriteWorkbook(ctx context.Context, path string, records []domain.BookRecord) error
}

// LibraryScanner finds book files not yet present in the catalog.
type LibraryScanner interface {
	Scan(ctx context.Context, root string, known map[string]struct{}) ([]string, error)
}

// ContentExtractor reads table of contents and preface text from a book file.
type ContentExtractor interface {
	Extract(ctx context.Context, path string) (domain.Content, error)
}

// TitleParser derives title and author from a filename stem.
type TitleParser interface {
	Parse(stem string) (title, author string)
}

// BookClassifier assigns exactly one category label.
type BookClassifier interface {
	Classify(title, toc, filepath string) string
}

// EventPublisher announces newly cataloged books.
type EventPublisher interface {
	PublishBooksCataloged(ctx context.Context, runID string, records []domain.BookRecord) error
}

// RunObserver records run-level measurements.
type RunObserver interface {
	ObserveDiscovered(count int)
	ObserveBook(fileType string, extractErr error)
	ObserveRun(duration time.Duration, err error)
}
