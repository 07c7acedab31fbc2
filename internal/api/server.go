// Package api exposes the HTTP interface for the report intake service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tipline/videoreports/internal/metrics"
	"github.com/tipline/videoreports/internal/pipeline"
	"github.com/tipline/videoreports/internal/report"
)

const defaultRecentLimit = 5

// ReadyFunc checks a downstream dependency for the readiness probe.
type ReadyFunc func(ctx context.Context) error

// Config controls server behavior.
type Config struct {
	RequestTimeout time.Duration
	ScreenshotsDir string
	RecentLimit    int
}

// Server wires HTTP handlers to the intake pipeline and the report store.
type Server struct {
	router   chi.Router
	pipeline *pipeline.Pipeline
	store    report.Store
	ready    ReadyFunc
	cfg      Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. When
// cfg.ScreenshotsDir is set, captured artifacts are served under
// /screenshots/ for the local storage backend.
func NewServer(
	pl *pipeline.Pipeline,
	store report.Store,
	ready ReadyFunc,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = defaultRecentLimit
	}
	s := &Server{
		pipeline: pl,
		store:    store,
		ready:    ready,
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/categories", s.listCategories)
		r.Route("/reports", func(r chi.Router) {
			r.Post("/", s.submitReport)
			r.Get("/", s.listReports)
			r.Get("/recent", s.recentReports)
			r.Get("/{report_id}", s.getReport)
		})
	})

	if cfg.ScreenshotsDir != "" {
		fileServer := http.FileServer(http.Dir(cfg.ScreenshotsDir))
		r.Handle("/screenshots/*", http.StripPrefix("/screenshots/", fileServer))
	}

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}
	categories := report.Categories()
	out := make([]entry, 0, len(categories))
	for _, category := range categories {
		out = append(out, entry{Value: string(category), Label: category.Label()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) submitReport(w http.ResponseWriter, r *http.Request) {
	var sub report.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	res := s.pipeline.Submit(r.Context(), sub)
	writeJSON(w, submissionStatusCode(res.Status), res)
}

// submissionStatusCode maps a terminal pipeline status to the response
// code: created, rejected input, or a persistence outage.
func submissionStatusCode(status report.Status) int {
	switch status {
	case report.StatusSucceeded:
		return http.StatusCreated
	case report.StatusRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	order := report.OrderAscending
	switch r.URL.Query().Get("order") {
	case "", string(report.OrderAscending):
	case string(report.OrderDescending):
		order = report.OrderDescending
	default:
		writeError(w, http.StatusBadRequest, "invalid order")
		return
	}

	reports, err := s.store.List(r.Context(), order)
	if err != nil {
		s.logger.Error("list reports failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports, "count": len(reports)})
}

func (s *Server) recentReports(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.RecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	reports, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("recent reports failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports, "count": len(reports)})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "report_id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, report.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.logger.Error("get report failed", zap.Int64("report_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch report")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", requestIDFrom(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
