package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/core/ports"
)

type CatalogOptions struct {
	LibraryPath string
	Workers     int
}

// CatalogUseCase runs the incremental cataloging pipeline:
// known paths -> scan -> per-file parse/extract/classify -> one batch append.
type CatalogUseCase struct {
	store      ports.CatalogStore
	scanner    ports.LibraryScanner
	parser     ports.TitleParser
	extractor  ports.ContentExtractor
	classifier ports.BookClassifier
	publisher  ports.EventPublisher
	observer   ports.RunObserver
	opts       CatalogOptions
}

func NewCatalogUseCase(
	store ports.CatalogStore,
	scanner ports.LibraryScanner,
	parser ports.TitleParser,
	extractor ports.ContentExtractor,
	classifier ports.BookClassifier,
	opts CatalogOptions,
) *CatalogUseCase {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &CatalogUseCase{
		store:      store,
		scanner:    scanner,
		parser:     parser,
		extractor:  extractor,
		classifier: classifier,
		opts:       opts,
	}
}

// WithPublisher announces appended records. Publishing is best effort.
func (uc *CatalogUseCase) WithPublisher(publisher ports.EventPublisher) *CatalogUseCase {
	uc.publisher = publisher
	return uc
}

func (uc *CatalogUseCase) WithObserver(observer ports.RunObserver) *CatalogUseCase {
	uc.observer = observer
	return uc
}

func (uc *CatalogUseCase) Run(ctx context.Context) (report *domain.RunReport, err error) {
	start := time.Now()
	report = &domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: start.UTC(),
	}
	log := slog.With("run_id", report.RunID)
	defer func() {
		report.FinishedAt = time.Now().UTC()
		if uc.observer != nil {
			uc.observer.ObserveRun(time.Since(start), err)
		}
	}()

	log.Info("catalog_run_started", "library_path", uc.opts.LibraryPath, "workers", uc.opts.Workers)

	known, err := uc.loadKnownPaths(ctx)
	if err != nil {
		log.Error("catalog_store_unavailable", "error", err)
		return report, err
	}
	report.KnownPaths = len(known)
	log.Info("catalog_known_paths_loaded", "count", len(known))

	paths, err := uc.scanner.Scan(ctx, uc.opts.LibraryPath, known)
	if err != nil {
		if !domain.IsKind(err, domain.ErrConfiguration) {
			return report, fmt.Errorf("scan library: %w", err)
		}
		report.ScanError = err.Error()
		log.Error("library_scan_failed", "library_path", uc.opts.LibraryPath, "error", err)
		log.Info("catalog_no_new_files")
		return report, nil
	}
	report.Discovered = len(paths)
	if uc.observer != nil {
		uc.observer.ObserveDiscovered(len(paths))
	}
	if len(paths) == 0 {
		log.Info("catalog_no_new_files")
		return report, nil
	}
	log.Info("catalog_new_files_found", "count", len(paths))

	records, failures, err := uc.processAll(ctx, log, paths)
	if err != nil {
		return report, err
	}
	report.ExtractionFailures = failures

	if err := uc.appendRecords(ctx, records); err != nil {
		log.Error("catalog_append_failed", "count", len(records), "error", err)
		return report, err
	}
	report.Records = records
	log.Info("catalog_run_finished",
		"appended", len(records),
		"extraction_failures", len(failures),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	uc.publish(ctx, log, report.RunID, records)
	return report, nil
}

func (uc *CatalogUseCase) loadKnownPaths(ctx context.Context) (map[string]struct{}, error) {
	known, err := uc.store.ListKnownPaths(ctx)
	if err != nil {
		return nil, ensureKind(err, domain.ErrStoreUnavailable, "list known paths")
	}
	if known == nil {
		known = map[string]struct{}{}
	}
	return known, nil
}

// processAll keeps records in discovery order regardless of worker count.
func (uc *CatalogUseCase) processAll(ctx context.Context, log *slog.Logger, paths []string) ([]domain.BookRecord, []domain.FileFailure, error) {
	records := make([]domain.BookRecord, len(paths))
	extractErrs := make([]error, len(paths))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.opts.Workers)
	for i, path := range paths {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			records[i], extractErrs[i] = uc.processFile(groupCtx, log, path)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, fmt.Errorf("process files: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("process files: %w", err)
	}

	var failures []domain.FileFailure
	for i, err := range extractErrs {
		if err != nil {
			failures = append(failures, domain.FileFailure{Path: paths[i], Error: err.Error()})
		}
	}
	return records, failures, nil
}

// processFile always yields a record. An extraction failure degrades it to an empty
// toc and preface and is returned for reporting only.
func (uc *CatalogUseCase) processFile(ctx context.Context, log *slog.Logger, path string) (domain.BookRecord, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	title, author := uc.parser.Parse(strings.TrimSuffix(base, ext))
	fileType := strings.ToLower(ext)

	log.Info("book_processing", "file", base)
	content, extractErr := uc.extractor.Extract(ctx, path)
	if extractErr != nil {
		log.Warn("book_extraction_failed", "path", path, "file_type", fileType, "error", extractErr)
		content = domain.Content{}
	}
	if uc.observer != nil {
		uc.observer.ObserveBook(fileType, extractErr)
	}

	return domain.BookRecord{
		Filepath: path,
		Title:    title,
		Author:   author,
		Category: uc.classifier.Classify(title, content.TOC, path),
		FileType: fileType,
		TOC:      content.TOC,
		Preface:  content.Preface,
	}, extractErr
}

func (uc *CatalogUseCase) appendRecords(ctx context.Context, records []domain.BookRecord) error {
	if err := uc.store.EnsureSchema(ctx); err != nil {
		return ensureKind(err, domain.ErrStoreWrite, "ensure catalog schema")
	}
	if err := uc.store.AppendRecords(ctx, records); err != nil {
		return ensureKind(err, domain.ErrStoreWrite, "append records")
	}
	return nil
}

func (uc *CatalogUseCase) publish(ctx context.Context, log *slog.Logger, runID string, records []domain.BookRecord) {
	if uc.publisher == nil || len(records) == 0 {
		return
	}
	if err := uc.publisher.PublishBooksCataloged(ctx, runID, records); err != nil {
		log.Warn("catalog_publish_failed", "count", len(records), "error", err)
	}
}

// ensureKind keeps store-level kinds set by adapters and applies fallback otherwise.
func ensureKind(err error, fallback error, operation string) error {
	if domain.IsKind(err, domain.ErrStoreUnavailable) || domain.IsKind(err, domain.ErrStoreWrite) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return domain.WrapError(fallback, operation, err)
}
