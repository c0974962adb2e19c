package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/ebook-catalog/internal/bootstrap"
	"github.com/kirillkom/ebook-catalog/internal/config"
	"github.com/kirillkom/ebook-catalog/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("catalog", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()
	app.ConnectPublisher()

	report, runErr := app.CatalogUC.Run(ctx)
	if cfg.MetricsTextfile != "" {
		if err := app.Metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			slog.Warn("metrics_textfile_failed", "path", cfg.MetricsTextfile, "error", err)
		}
	}
	if runErr != nil {
		app.Close()
		log.Fatalf("catalog run error: %v", runErr)
	}

	summary, err := json.Marshal(struct {
		RunID              string `json:"run_id"`
		Discovered         int    `json:"discovered"`
		Appended           int    `json:"appended"`
		ExtractionFailures int    `json:"extraction_failures"`
		ScanError          string `json:"scan_error,omitempty"`
	}{
		RunID:              report.RunID,
		Discovered:         report.Discovered,
		Appended:           len(report.Records),
		ExtractionFailures: len(report.ExtractionFailures),
		ScanError:          report.ScanError,
	})
	if err == nil {
		os.Stdout.Write(append(summary, '\n'))
	}
}
