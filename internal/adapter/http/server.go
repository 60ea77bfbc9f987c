package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/traffic-count-etl/internal/adapter/memstore"
	"github.com/couchcryptid/traffic-count-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CountReader is the read side of the count store served over HTTP.
type CountReader interface {
	Header(ctx context.Context, recordNum int) (domain.CountHeader, error)
	Headers(ctx context.Context, offset, limit int) ([]domain.CountHeader, error)
	ClassCounts(ctx context.Context, recordNum int) ([]domain.ClassCountRow, error)
	SpeedCounts(ctx context.Context, recordNum int) ([]domain.SpeedCountRow, error)
	VolumeCounts(ctx context.Context, recordNum int) ([]domain.VolumeCount, error)
	BicycleCounts(ctx context.Context, recordNum int) ([]domain.BicycleCount, error)
	Warnings(ctx context.Context, recordNum int) ([]domain.Warning, error)
	AllWarnings(ctx context.Context) ([]domain.Warning, error)
}

// Server exposes health, readiness, metrics and count query endpoints.
type Server struct {
	httpServer *http.Server
	counts     CountReader
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// read-only count routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, counts CountReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		counts: counts,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /counts", s.handleHeaders)
	mux.HandleFunc("GET /counts/{recordnum}", s.handleCount)
	mux.HandleFunc("GET /counts/{recordnum}/warnings", s.handleCountWarnings)
	mux.HandleFunc("GET /warnings", s.handleWarnings)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := queryInt(r, "limit", memstore.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	headers, err := s.counts.Headers(r.Context(), offset, limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, headers)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	recordNum, ok := pathRecordNum(w, r)
	if !ok {
		return
	}

	batch, err := s.loadBatch(r.Context(), recordNum)
	switch {
	case errors.Is(err, memstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		s.internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, batch)
	}
}

func (s *Server) handleCountWarnings(w http.ResponseWriter, r *http.Request) {
	recordNum, ok := pathRecordNum(w, r)
	if !ok {
		return
	}

	warnings, err := s.counts.Warnings(r.Context(), recordNum)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, warnings)
}

func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	warnings, err := s.counts.AllWarnings(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, warnings)
}

// loadBatch reassembles everything stored for a count.
func (s *Server) loadBatch(ctx context.Context, recordNum int) (domain.CountBatch, error) {
	header, err := s.counts.Header(ctx, recordNum)
	if err != nil {
		return domain.CountBatch{}, err
	}
	batch := domain.CountBatch{Header: header}
	if batch.ClassCounts, err = s.counts.ClassCounts(ctx, recordNum); err != nil {
		return batch, err
	}
	if batch.SpeedCounts, err = s.counts.SpeedCounts(ctx, recordNum); err != nil {
		return batch, err
	}
	if batch.VolumeCounts, err = s.counts.VolumeCounts(ctx, recordNum); err != nil {
		return batch, err
	}
	if batch.BicycleCounts, err = s.counts.BicycleCounts(ctx, recordNum); err != nil {
		return batch, err
	}
	return batch, nil
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, err)
}

func pathRecordNum(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("recordnum"))
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("record number must be a positive integer"))
		return 0, false
	}
	return n, true
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
