package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kirillkom/ebook-catalog/internal/bootstrap"
	"github.com/kirillkom/ebook-catalog/internal/config"
	"github.com/kirillkom/ebook-catalog/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	output := flag.String("output", cfg.ReclassifyOutput, "workbook to write the reclassified catalog to")
	flag.Parse()
	cfg.ReclassifyOutput = *output

	slog.SetDefault(logging.NewJSONLogger("reclassify", cfg.LogLevel))

	if cfg.CatalogBackend != config.BackendPostgres && samePath(cfg.ReclassifyOutput, cfg.CatalogFile) {
		log.Fatalf("reclassify output %q must differ from the catalog file", cfg.ReclassifyOutput)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	n, err := app.ReclassifyUC.Export(ctx, cfg.ReclassifyOutput)
	if err != nil {
		app.Close()
		log.Fatalf("reclassify error: %v", err)
	}
	slog.Info("reclassify_finished", "records", n, "output", cfg.ReclassifyOutput)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}
