package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ebook_catalog"

// CatalogMetrics records one catalog run. The one-shot command dumps it to a
// node_exporter textfile because nothing scrapes a process that already exited.
type CatalogMetrics struct {
	registry *prometheus.Registry
	service  string

	discoveredTotal  prometheus.Counter
	booksTotal       *prometheus.CounterVec
	extractFailTotal *prometheus.CounterVec
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	lastRunSuccess   prometheus.Gauge
	lastRunTimestamp prometheus.Gauge
}

func NewCatalogMetrics(service string) *CatalogMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	discoveredTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "scan",
			Name:        "discovered_files_total",
			Help:        "Total new book files found by library scans.",
			ConstLabels: constLabels,
		},
	)
	booksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "books_total",
			Help:        "Total processed book files by file type.",
			ConstLabels: constLabels,
		},
		[]string{"file_type"},
	)
	extractFailTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "extraction_failures_total",
			Help:        "Total book files cataloged without toc and preface after an extraction error.",
			ConstLabels: constLabels,
		},
		[]string{"file_type"},
	)
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "runs_total",
			Help:        "Total catalog runs by status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "run_duration_seconds",
			Help:        "Catalog run duration in seconds.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		},
	)
	lastRunSuccess := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "last_run_success",
			Help:        "1 if the last catalog run succeeded, 0 otherwise.",
			ConstLabels: constLabels,
		},
	)
	lastRunTimestamp := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the last catalog run finished.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(discoveredTotal, booksTotal, extractFailTotal, runsTotal, runDuration, lastRunSuccess, lastRunTimestamp)

	return &CatalogMetrics{
		registry:         registry,
		service:          service,
		discoveredTotal:  discoveredTotal,
		booksTotal:       booksTotal,
		extractFailTotal: extractFailTotal,
		runsTotal:        runsTotal,
		runDuration:      runDuration,
		lastRunSuccess:   lastRunSuccess,
		lastRunTimestamp: lastRunTimestamp,
	}
}

func (m *CatalogMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *CatalogMetrics) ObserveDiscovered(count int) {
	if count <= 0 {
		return
	}
	m.discoveredTotal.Add(float64(count))
}

func (m *CatalogMetrics) ObserveBook(fileType string, extractErr error) {
	if fileType == "" {
		fileType = "unknown"
	}
	m.booksTotal.WithLabelValues(fileType).Inc()
	if extractErr != nil {
		m.extractFailTotal.WithLabelValues(fileType).Inc()
	}
}

func (m *CatalogMetrics) ObserveRun(duration time.Duration, err error) {
	status := "success"
	success := 1.0
	if err != nil {
		status = "error"
		success = 0
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.lastRunSuccess.Set(success)
	m.lastRunTimestamp.SetToCurrentTime()
}

// WriteTextfile writes every collected metric in text exposition format.
func (m *CatalogMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
