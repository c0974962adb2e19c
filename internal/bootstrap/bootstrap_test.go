package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/ebook-catalog/internal/config"
	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/extractor/epub/epubtest"
)

func testConfig(dir string) config.Config {
	return config.Config{
		LibraryPath:         filepath.Join(dir, "books"),
		SupportedExtensions: []string{".epub", ".pdf", ".txt"},
		CatalogWorkers:      1,
		CatalogBackend:      config.BackendXLSX,
		CatalogFile:         filepath.Join(dir, "library.xlsx"),
		CatalogSheet:        "library",
		PrefaceKeywords:     []string{"서문", "머리말", "프롤로그", "시작하며"},
		PrefaceProbeChars:   200,
		PrefaceMaxChars:     1000,
		ReclassifyOutput:    filepath.Join(dir, "library_with_classification.xlsx"),
	}
}

func TestCatalogRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	if err := os.MkdirAll(cfg.LibraryPath, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	bookPath := filepath.Join(cfg.LibraryPath, "파이썬 프로그래밍 홍길동.epub")
	epubtest.Write(t, bookPath, epubtest.Options{
		Nav:       []epubtest.NavPoint{{Title: "1장 시작"}},
		Documents: []epubtest.Document{{Name: "ch1.xhtml", Title: "1장", Body: "<p>변수와 함수</p>"}},
	})

	ctx := context.Background()
	app, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	before, err := app.Store.ListKnownPaths(ctx)
	if err != nil {
		t.Fatalf("ListKnownPaths() error = %v", err)
	}

	report, err := app.CatalogUC.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Records) != 1 {
		t.Fatalf("expected one record, got %+v", report.Records)
	}
	rec := report.Records[0]
	if rec.Title != "파이썬 프로그래밍" || rec.Author != "홍길동" {
		t.Fatalf("unexpected title/author: %q / %q", rec.Title, rec.Author)
	}
	if rec.Category != domain.CategoryIT || rec.Preface != "" || rec.FileType != ".epub" || rec.TOC != "- 1장 시작" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	after, err := app.Store.ListKnownPaths(ctx)
	if err != nil {
		t.Fatalf("ListKnownPaths() error = %v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("known paths grew from %d to %d", len(before), len(after))
	}
	if _, ok := after[rec.Filepath]; !ok {
		t.Fatalf("catalog is missing %s", rec.Filepath)
	}

	second, err := app.CatalogUC.Run(ctx)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(second.Records) != 0 || second.Discovered != 0 {
		t.Fatalf("expected no new records on the second run, got %+v", second)
	}

	got, err := app.BrowseUC.Get(ctx, rec.Filepath)
	if err != nil || got.Title != rec.Title {
		t.Fatalf("Get() = %+v, %v", got, err)
	}
	counts, err := app.BrowseUC.Categories(ctx)
	if err != nil || counts[domain.CategoryIT] != 1 {
		t.Fatalf("Categories() = %v, %v", counts, err)
	}

	exported, err := app.ReclassifyUC.Export(ctx, cfg.ReclassifyOutput)
	if err != nil || exported != 1 {
		t.Fatalf("Export() = %d, %v", exported, err)
	}
	if _, err := os.Stat(cfg.ReclassifyOutput); err != nil {
		t.Fatalf("export workbook missing: %v", err)
	}
}

func TestCatalogRunWithMissingLibraryLeavesStoreUntouched(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	app, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	report, err := app.CatalogUC.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.ScanError == "" || len(report.Records) != 0 {
		t.Fatalf("expected scan error report, got %+v", report)
	}
	if _, err := os.Stat(cfg.CatalogFile); !os.IsNotExist(err) {
		t.Fatalf("catalog must not be created, stat err = %v", err)
	}
}

func TestExtendedFormatsExtractPlainText(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.ExtractExtendedFormats = true
	if err := os.MkdirAll(cfg.LibraryPath, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.LibraryPath, "메모 김철수.txt"), []byte("머리말\n이 책은 메모 모음이다."), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	app, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	report, err := app.CatalogUC.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Records) != 1 || report.Records[0].Preface == "" || report.Records[0].Author != "김철수" {
		t.Fatalf("unexpected records: %+v", report.Records)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.CatalogBackend = "sqlite"

	if _, err := New(context.Background(), cfg); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewFailsOnUnreadableRulesFile(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.ClassifierRulesFile = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := New(context.Background(), cfg); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestConnectPublisherWithoutURLIsNoop(t *testing.T) {
	app, err := New(context.Background(), testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	app.ConnectPublisher()
	app.Close()
}
