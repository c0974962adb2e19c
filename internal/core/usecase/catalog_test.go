package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
)

type storeFake struct {
	mu          sync.Mutex
	known       map[string]struct{}
	listErr     error
	schemaErr   error
	appendErr   error
	schemaCalls int
	appendCalls int
	appended    []domain.BookRecord
}

func (f *storeFake) ListKnownPaths(context.Context) (map[string]struct{}, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make(map[string]struct{}, len(f.known))
	for k := range f.known {
		out[k] = struct{}{}
	}
	return out, nil
}

func (f *storeFake) EnsureSchema(context.Context) error {
	f.schemaCalls++
	return f.schemaErr
}

func (f *storeFake) AppendRecords(_ context.Context, records []domain.BookRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if f.appendErr != nil {
		return f.appendErr
	}
	if f.known == nil {
		f.known = map[string]struct{}{}
	}
	for _, r := range records {
		f.known[r.Filepath] = struct{}{}
	}
	f.appended = append(f.appended, records...)
	return nil
}

// scannerFake behaves like a directory holding files: known paths are excluded.
type scannerFake struct {
	files []string
	err   error
	calls int
}

func (f *scannerFake) Scan(_ context.Context, _ string, known map[string]struct{}) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for _, p := range f.files {
		if _, ok := known[p]; !ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type parserFake struct{}

func (parserFake) Parse(stem string) (string, string) {
	parts := strings.SplitN(stem, "_", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return stem, ""
}

type contentExtractorFake struct {
	mu       sync.Mutex
	byPath   map[string]domain.Content
	failures map[string]error
	delay    time.Duration
	calls    []string
}

func (f *contentExtractorFake) Extract(_ context.Context, path string) (domain.Content, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()
	if err := f.failures[path]; err != nil {
		return domain.Content{TOC: "partial"}, err
	}
	return f.byPath[path], nil
}

type bookClassifierFake struct{}

func (bookClassifierFake) Classify(title, toc, _ string) string {
	if strings.Contains(title+toc, "go") {
		return domain.CategoryIT
	}
	return domain.CategoryOther
}

type publisherFake struct {
	runID   string
	records []domain.BookRecord
	err     error
	calls   int
}

func (f *publisherFake) PublishBooksCataloged(_ context.Context, runID string, records []domain.BookRecord) error {
	f.calls++
	f.runID = runID
	f.records = records
	return f.err
}

type observerFake struct {
	mu         sync.Mutex
	discovered int
	books      map[string]int
	failed     int
	runs       int
	runErr     error
}

func (f *observerFake) ObserveDiscovered(count int) { f.discovered += count }

func (f *observerFake) ObserveBook(fileType string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.books == nil {
		f.books = map[string]int{}
	}
	f.books[fileType]++
	if err != nil {
		f.failed++
	}
}

func (f *observerFake) ObserveRun(_ time.Duration, err error) {
	f.runs++
	f.runErr = err
}

func newCatalogUC(store *storeFake, scanner *scannerFake, extractor *contentExtractorFake, workers int) *CatalogUseCase {
	return NewCatalogUseCase(store, scanner, parserFake{}, extractor, bookClassifierFake{}, CatalogOptions{
		LibraryPath: "/library",
		Workers:     workers,
	})
}

func TestRunCatalogsNewFilesOnly(t *testing.T) {
	store := &storeFake{known: map[string]struct{}{"/library/old_author.epub": {}}}
	scanner := &scannerFake{files: []string{
		"/library/old_author.epub",
		"/library/golang_pike.EPUB",
		"/library/notes.txt",
	}}
	extractor := &contentExtractorFake{byPath: map[string]domain.Content{
		"/library/golang_pike.EPUB": {TOC: "- intro", Preface: "서문"},
	}}

	report, err := newCatalogUC(store, scanner, extractor, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.KnownPaths != 1 || report.Discovered != 2 || len(report.Records) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if store.appendCalls != 1 || store.schemaCalls != 1 {
		t.Fatalf("expected one schema check and one append, got %d/%d", store.schemaCalls, store.appendCalls)
	}

	first := store.appended[0]
	want := domain.BookRecord{
		Filepath: "/library/golang_pike.EPUB",
		Title:    "golang",
		Author:   "pike",
		Category: domain.CategoryIT,
		FileType: ".epub",
		TOC:      "- intro",
		Preface:  "서문",
	}
	if first != want {
		t.Fatalf("record = %+v, want %+v", first, want)
	}
	second := store.appended[1]
	if second.Filepath != "/library/notes.txt" || second.FileType != ".txt" || second.TOC != "" || second.Category != domain.CategoryOther {
		t.Fatalf("unexpected second record: %+v", second)
	}
	if report.RunID == "" || report.FinishedAt.Before(report.StartedAt) {
		t.Fatalf("unexpected run metadata: %+v", report)
	}
}

func TestRunExtractionFailureStillCatalogsFile(t *testing.T) {
	store := &storeFake{}
	scanner := &scannerFake{files: []string{"/library/broken_x.epub", "/library/fine_y.epub"}}
	extractor := &contentExtractorFake{
		byPath: map[string]domain.Content{"/library/fine_y.epub": {TOC: "- a"}},
		failures: map[string]error{
			"/library/broken_x.epub": domain.WrapError(domain.ErrExtraction, "open epub", errors.New("zip: not a valid zip file")),
		},
	}

	report, err := newCatalogUC(store, scanner, extractor, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.appended) != 2 {
		t.Fatalf("expected both files cataloged, got %d", len(store.appended))
	}
	broken := store.appended[0]
	if broken.TOC != "" || broken.Preface != "" || broken.Title != "broken" || broken.Category == "" {
		t.Fatalf("expected degraded record, got %+v", broken)
	}
	if len(report.ExtractionFailures) != 1 || report.ExtractionFailures[0].Path != "/library/broken_x.epub" {
		t.Fatalf("unexpected failures: %+v", report.ExtractionFailures)
	}
}

func TestRunMissingLibraryDoesNotTouchStore(t *testing.T) {
	store := &storeFake{}
	scanner := &scannerFake{err: domain.WrapError(domain.ErrConfiguration, "scan library", errors.New("no such file or directory"))}

	report, err := newCatalogUC(store, scanner, &contentExtractorFake{}, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.ScanError == "" || report.Discovered != 0 {
		t.Fatalf("expected scan error in report, got %+v", report)
	}
	if store.schemaCalls != 0 || store.appendCalls != 0 {
		t.Fatalf("store must not be written, got schema=%d append=%d", store.schemaCalls, store.appendCalls)
	}
}

func TestRunNoNewFilesSkipsAppend(t *testing.T) {
	store := &storeFake{known: map[string]struct{}{"/library/a.epub": {}}}
	scanner := &scannerFake{files: []string{"/library/a.epub"}}

	report, err := newCatalogUC(store, scanner, &contentExtractorFake{}, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Discovered != 0 || store.appendCalls != 0 {
		t.Fatalf("expected no append, got report=%+v appends=%d", report, store.appendCalls)
	}
}

func TestRunStoreUnavailableAborts(t *testing.T) {
	store := &storeFake{listErr: errors.New("connection refused")}
	scanner := &scannerFake{files: []string{"/library/a.epub"}}

	_, err := newCatalogUC(store, scanner, &contentExtractorFake{}, 1).Run(context.Background())
	if !domain.IsKind(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if scanner.calls != 0 {
		t.Fatalf("scan must not start without known paths")
	}
}

func TestRunAppendFailureIsStoreWriteError(t *testing.T) {
	store := &storeFake{appendErr: errors.New("disk full")}
	scanner := &scannerFake{files: []string{"/library/a.epub"}}
	publisher := &publisherFake{}

	report, err := newCatalogUC(store, scanner, &contentExtractorFake{}, 1).WithPublisher(publisher).Run(context.Background())
	if !domain.IsKind(err, domain.ErrStoreWrite) {
		t.Fatalf("expected ErrStoreWrite, got %v", err)
	}
	if len(report.Records) != 0 {
		t.Fatalf("failed run must not report records as cataloged")
	}
	if publisher.calls != 0 {
		t.Fatalf("nothing may be published when append fails")
	}
}

func TestRunKeepsAdapterErrorKind(t *testing.T) {
	store := &storeFake{listErr: domain.WrapError(domain.ErrStoreUnavailable, "open workbook", errors.New("locked"))}

	_, err := newCatalogUC(store, &scannerFake{}, &contentExtractorFake{}, 1).Run(context.Background())
	if !domain.IsKind(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRunParallelWorkersPreserveDiscoveryOrder(t *testing.T) {
	files := []string{"/l/a_x.epub", "/l/b_x.epub", "/l/c_x.epub", "/l/d_x.epub", "/l/e_x.epub", "/l/f_x.epub"}
	store := &storeFake{}
	extractor := &contentExtractorFake{delay: 2 * time.Millisecond}

	_, err := newCatalogUC(store, &scannerFake{files: files}, extractor, 4).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.appended) != len(files) {
		t.Fatalf("expected %d records, got %d", len(files), len(store.appended))
	}
	for i, rec := range store.appended {
		if rec.Filepath != files[i] {
			t.Fatalf("record %d = %s, want %s", i, rec.Filepath, files[i])
		}
	}
	if store.appendCalls != 1 {
		t.Fatalf("expected a single batch append, got %d", store.appendCalls)
	}
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	store := &storeFake{}
	scanner := &scannerFake{files: []string{"/l/a_x.epub", "/l/b_y.pdf"}}
	uc := newCatalogUC(store, scanner, &contentExtractorFake{}, 1)

	first, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(first.Records) != 2 || len(second.Records) != 0 {
		t.Fatalf("expected 2 then 0 records, got %d then %d", len(first.Records), len(second.Records))
	}
	if store.appendCalls != 1 {
		t.Fatalf("expected one append across both runs, got %d", store.appendCalls)
	}
}

func TestRunPublishesAfterAppendAndIgnoresPublishErrors(t *testing.T) {
	store := &storeFake{}
	publisher := &publisherFake{err: errors.New("nats: no servers available")}
	observer := &observerFake{}
	extractor := &contentExtractorFake{failures: map[string]error{"/l/b_y.epub": errors.New("bad")}}
	uc := newCatalogUC(store, &scannerFake{files: []string{"/l/a_x.epub", "/l/b_y.epub"}}, extractor, 1).
		WithPublisher(publisher).
		WithObserver(observer)

	report, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if publisher.calls != 1 || len(publisher.records) != 2 || publisher.runID != report.RunID {
		t.Fatalf("unexpected publish: calls=%d records=%d run=%s", publisher.calls, len(publisher.records), publisher.runID)
	}
	if observer.discovered != 2 || observer.books[".epub"] != 2 || observer.failed != 1 || observer.runs != 1 || observer.runErr != nil {
		t.Fatalf("unexpected observations: %+v", observer)
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := &storeFake{}

	_, err := newCatalogUC(store, &scannerFake{files: []string{"/l/a.epub"}}, &contentExtractorFake{}, 1).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if store.appendCalls != 0 {
		t.Fatalf("canceled run must not append")
	}
}
