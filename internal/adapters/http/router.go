package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/ebook-catalog/internal/config"
	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/core/ports"
	"github.com/kirillkom/ebook-catalog/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg     config.Config
	browser ports.CatalogBrowser
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, browser ports.CatalogBrowser) *Router {
	return &Router{cfg: cfg, browser: browser}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/books", rt.listBooks)
	mux.HandleFunc("/v1/books/lookup", rt.lookupBook)
	mux.HandleFunc("/v1/categories", rt.categories)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.onRateLimited)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listBooksResponse struct {
	Books  []domain.BookRecord `json:"books"`
	Count  int                 `json:"count"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

func (rt *Router) listBooks(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	query := r.URL.Query()
	limit, err := intParam(query.Get("limit"))
	if err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse limit", err))
		return
	}
	offset, err := intParam(query.Get("offset"))
	if err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse offset", err))
		return
	}

	filter := domain.BookFilter{Category: query.Get("category"), Limit: limit, Offset: offset}
	books, err := rt.browser.List(r.Context(), filter)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordBooksServed(serviceName, "list", len(books))
	}
	writeJSON(w, http.StatusOK, listBooksResponse{
		Books:  books,
		Count:  len(books),
		Limit:  limit,
		Offset: offset,
	})
}

func (rt *Router) lookupBook(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	book, err := rt.browser.Get(r.Context(), r.URL.Query().Get("filepath"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordBooksServed(serviceName, "lookup", 1)
	}
	writeJSON(w, http.StatusOK, book)
}

type categoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

func (rt *Router) categories(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	counts, err := rt.browser.Categories(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	out := make([]categoryCount, 0, len(counts))
	seen := make(map[string]struct{}, len(counts))
	for _, label := range domain.Categories {
		if n, ok := counts[label]; ok {
			out = append(out, categoryCount{Category: label, Count: n})
			seen[label] = struct{}{}
		}
	}
	// Labels from a custom rules file follow the built-in ones.
	for label, n := range counts {
		if _, ok := seen[label]; !ok {
			out = append(out, categoryCount{Category: label, Count: n})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (rt *Router) onRateLimited(r *http.Request) {
	if rt.metrics != nil {
		rt.metrics.RecordRateLimited(serviceName, r.URL.Path)
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			message = "internal error"
		}
	}
	writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestIDFromContext(r.Context()),
	})
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	return false
}

func intParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
