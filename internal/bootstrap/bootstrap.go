package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/ebook-catalog/internal/config"
	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/core/ports"
	"github.com/kirillkom/ebook-catalog/internal/core/usecase"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/classifier/keyword"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/extractor"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/extractor/epub"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/extractor/preface"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/filename"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/queue/nats"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/repository/spreadsheet"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/resilience"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/ebook-catalog/internal/observability/metrics"
)

type catalogBackend interface {
	ports.CatalogStore
	ports.CatalogReader
}

type App struct {
	Config config.Config

	Store   ports.CatalogStore
	Reader  ports.CatalogReader
	Metrics *metrics.CatalogMetrics

	CatalogUC    *usecase.CatalogUseCase
	BrowseUC     ports.CatalogBrowser
	ReclassifyUC ports.CatalogExporter

	executor *resilience.Executor
	closers  []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	executor := resilience.NewExecutor(resilience.Policy{
		Retry:   resilience.RetryPolicy{MaxAttempts: cfg.RetryMaxAttempts},
		Breaker: resilience.BreakerPolicy{Enabled: cfg.BreakerEnabled},
	})
	app := &App{Config: cfg, executor: executor}

	backend, err := app.openBackend(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	rules := keyword.DefaultRules()
	if cfg.ClassifierRulesFile != "" {
		rules, err = keyword.LoadRules(cfg.ClassifierRulesFile)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("load classifier rules: %w", err)
		}
		slog.Info("classifier_rules_loaded", "path", cfg.ClassifierRulesFile, "rules", len(rules))
	}
	classifier := keyword.NewClassifier(rules)
	parser := filename.NewParser()

	detector := preface.NewDetector(cfg.PrefaceKeywords, cfg.PrefaceProbeChars, cfg.PrefaceMaxChars)
	registry := extractor.NewRegistry().Register(".epub", epub.NewExtractor(detector))
	if cfg.ExtractExtendedFormats {
		registry.
			Register(".pdf", pdf.NewExtractor(detector, pdf.DefaultMaxPages)).
			Register(".txt", plaintext.NewExtractor(detector))
	}

	app.Store = backend
	app.Reader = backend
	app.Metrics = metrics.NewCatalogMetrics("catalog")
	app.CatalogUC = usecase.NewCatalogUseCase(
		backend,
		localfs.NewScanner(cfg.SupportedExtensions),
		parser,
		registry,
		classifier,
		usecase.CatalogOptions{LibraryPath: cfg.LibraryPath, Workers: cfg.CatalogWorkers},
	).WithObserver(app.Metrics)
	app.BrowseUC = usecase.NewBrowseUseCase(backend)
	app.ReclassifyUC = usecase.NewReclassifyUseCase(
		backend,
		spreadsheet.NewCatalogRepository(cfg.ReclassifyOutput, cfg.CatalogSheet),
		parser,
		classifier,
	)
	return app, nil
}

func (a *App) openBackend(ctx context.Context, cfg config.Config) (catalogBackend, error) {
	switch cfg.CatalogBackend {
	case config.BackendXLSX, "":
		slog.Info("catalog_backend_selected", "backend", config.BackendXLSX, "file", cfg.CatalogFile, "sheet", cfg.CatalogSheet)
		return spreadsheet.NewCatalogRepository(cfg.CatalogFile, cfg.CatalogSheet), nil
	case config.BackendPostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slog.Info("catalog_backend_selected", "backend", config.BackendPostgres)
		return postgres.NewCatalogRepository(db, a.executor), nil
	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "select catalog backend", fmt.Errorf("unknown backend %q", cfg.CatalogBackend))
	}
}

// ConnectPublisher attaches NATS event publishing to the catalog run. Events are
// optional, so a broker that cannot be reached only produces a warning.
func (a *App) ConnectPublisher() {
	if a.Config.NATSURL == "" {
		return
	}
	publisher, err := nats.NewPublisher(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
		ResilienceExecutor: a.executor,
	})
	if err != nil {
		slog.Warn("nats_unavailable", "url", a.Config.NATSURL, "error", err)
		return
	}
	a.closers = append(a.closers, publisher.Close)
	a.CatalogUC.WithPublisher(publisher)
	slog.Info("nats_publisher_connected", "subject", a.Config.NATSSubject)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
