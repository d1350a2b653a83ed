// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/okian/datacheck/internal/domain/dataset"
	"github.com/okian/datacheck/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Upload stores a dataset read from r. Uploading the same bytes twice
	// returns the original id with duplicate set.
	Upload(ctx context.Context, name string, r io.Reader) (summary model.DatasetSummary, duplicate bool, err error)

	// Dataset returns the summary for a stored dataset.
	Dataset(ctx context.Context, id string) (model.DatasetSummary, error)

	// Quality returns the quality report, computing it on first access.
	Quality(ctx context.Context, id string) (*model.QualityReport, error)

	// Anomalies returns the anomaly report, computing it on first access.
	Anomalies(ctx context.Context, id string) (*model.AnomalyReport, error)

	// RequestRecommendations queues recommendation generation.
	// Returns false without error when the queue is full.
	RequestRecommendations(ctx context.Context, id string) (bool, error)

	// Recommendations returns the current recommendation set, which may
	// still be pending.
	Recommendations(ctx context.Context, id string) (*model.RecommendationSet, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	datasetsHandler  *DatasetsHandler
	dashboardHandler *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		datasetsHandler:  NewDatasetsHandler(deps),
		dashboardHandler: newdashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/datasets", MetricsMiddleware(s.datasetsHandler.HandleDatasets, "datasets"))
	mux.HandleFunc("/datasets/", MetricsMiddleware(s.datasetsHandler.HandleDataset, "datasets"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type enqueueResponse struct {
	Status string `json:"status"`
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

// writeDomainError translates upstream errors to status codes: not-found
// to 404, malformed or empty input to 400, oversized input to 413,
// backpressure to 429, anything else to 500.
func writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, dataset.ErrEmptyInput),
		errors.Is(err, dataset.ErrMalformedInput),
		errors.Is(err, dataset.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, dataset.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
	case errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// isNotFound allows the API to translate upstream not-found errors to 404
// without importing every package that defines one.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
