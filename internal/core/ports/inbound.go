package ports

import (
	"context"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
)

// CatalogRunner is the inbound contract for one incremental cataloging run.
type CatalogRunner interface {
	Run(ctx context.Context) (*domain.RunReport, error)
}

// CatalogBrowser is the inbound read model for cataloged books.
type CatalogBrowser interface {
	List(ctx context.Context, filter domain.BookFilter) ([]domain.BookRecord, error)
	Get(ctx context.Context, filepath string) (*domain.BookRecord, error)
	Categories(ctx context.Context) (map[string]int, error)
}

// CatalogExporter writes a reclassified copy of the catalog.
type CatalogExporter interface {
	Export(ctx context.Context, destination string) (int, error)
}
