// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/ridermerge/internal/app"
	"github.com/okian/ridermerge/internal/domain/model"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// RunBatch runs one merge batch synchronously and returns its report.
	RunBatch(ctx context.Context, opts service.BatchOptions) (*model.Report, error)

	// LastReport returns the report of the most recent batch.
	LastReport() (*model.Report, error)

	StatsProvider
}

// Server wires HTTP routes for the admin API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	mergeHandler  *MergeHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		mergeHandler:  NewMergeHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/merge/run", MetricsMiddleware(s.mergeHandler.HandleRun, "merge_run"))
	mux.HandleFunc("/merge/report", MetricsMiddleware(s.mergeHandler.HandleReport, "merge_report"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service sentinels onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrBatchRunning):
		writeError(w, http.StatusConflict, "batch_running", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "not_started", err)
	case errors.Is(err, service.ErrNoReport):
		writeError(w, http.StatusNotFound, "not_found", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
