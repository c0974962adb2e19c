package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/core/ports"
)

// Registry routes a book file to the extractor registered for its extension.
// Files with no registered extractor yield empty content.
type Registry struct {
	byExt map[string]ports.ContentExtractor
}

func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]ports.ContentExtractor)}
}

func (r *Registry) Register(ext string, extractor ports.ContentExtractor) *Registry {
	r.byExt[normalizeExt(ext)] = extractor
	return r
}

func (r *Registry) Supports(ext string) bool {
	_, ok := r.byExt[normalizeExt(ext)]
	return ok
}

func (r *Registry) Extract(ctx context.Context, path string) (domain.Content, error) {
	ex, ok := r.byExt[normalizeExt(filepath.Ext(path))]
	if !ok {
		return domain.Content{}, nil
	}
	return ex.Extract(ctx, path)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
