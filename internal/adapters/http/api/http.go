// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	service "github.com/okian/shotlab/internal/app"
	"github.com/okian/shotlab/internal/domain/profile"
	"github.com/okian/shotlab/internal/domain/report"
	"github.com/okian/shotlab/internal/domain/shooters"
	"github.com/okian/shotlab/internal/domain/vision"
	"github.com/okian/shotlab/internal/imagedata"
)

const defaultMaxBodyBytes = 64 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Analyze(ctx context.Context, req service.AnalysisRequest) (report.Report, error)
	AnalyzeBatch(ctx context.Context, reqs []service.AnalysisRequest) ([]service.BatchResult, error)
	Shooters() ([]shooters.Profile, error)
}

// Server wires HTTP routes for the analysis API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	analysesHandler *AnalysesHandler
	shootersHandler *ShootersHandler
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxBodyBytes  int64
	singleTimeout time.Duration
	batchTimeout  time.Duration
}

// WithMaxBodyBytes caps request bodies on the analysis routes.
func WithMaxBodyBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithRequestTimeouts bounds the pipeline time of one analysis and of one
// batch. Zero leaves the route bounded only by the client.
func WithRequestTimeouts(single, batch time.Duration) Option {
	return func(c *serverConfig) {
		if single >= 0 {
			c.singleTimeout = single
		}
		if batch >= 0 {
			c.batchTimeout = batch
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{maxBodyBytes: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		analysesHandler: NewAnalysesHandler(deps, cfg.maxBodyBytes, cfg.singleTimeout, cfg.batchTimeout),
		shootersHandler: NewShootersHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/v1/analyses", MetricsMiddleware(s.analysesHandler.HandlePostAnalysis, "analyses"))
	mux.HandleFunc("/v1/analyses/batch", MetricsMiddleware(s.analysesHandler.HandlePostBatch, "analyses_batch"))
	mux.HandleFunc("/v1/shooters", MetricsMiddleware(s.shootersHandler.HandleGetShooters, "shooters"))
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

// classify maps pipeline errors to an HTTP status and a stable code.
func classify(err error) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, imagedata.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, "image_too_large"
	case errors.Is(err, service.ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge, "batch_too_large"
	case errors.Is(err, profile.ErrInvalidUserProfile):
		return http.StatusBadRequest, "invalid_profile"
	case errors.Is(err, imagedata.ErrInvalidImage):
		return http.StatusBadRequest, "invalid_image"
	case errors.Is(err, vision.ErrUnknownPreference):
		return http.StatusBadRequest, "invalid_preference"
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeClassified(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
