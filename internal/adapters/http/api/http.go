// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/diarisk/internal/adapters/repository"
	service "github.com/okian/diarisk/internal/app"
	"github.com/okian/diarisk/internal/domain/prediction"
	"github.com/okian/diarisk/internal/domain/types"
	"github.com/okian/diarisk/pkg/metrics"
)

// Default limits for request handling.
const (
	defaultMaxBodyBytes    = 1 << 20
	defaultMaxHistoryLimit = 500
	defaultHistoryLimit    = 50
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Predictor
	BatchPredictor
	ModelProvider
	HistoryProvider
	StatsProvider
}

// Predictor runs a single prediction.
type Predictor interface {
	Predict(ctx context.Context, raw map[string]any) (prediction.Result, error)
}

// BatchPredictor runs a batch of predictions, returning items in input order.
type BatchPredictor interface {
	PredictBatch(ctx context.Context, records []map[string]any) ([]service.BatchItem, error)
}

// ModelProvider exposes the serving artifact and the reload trigger.
type ModelProvider interface {
	ModelInfo() (service.ModelInfo, error)
	Reload(ctx context.Context) (service.ModelInfo, error)
}

// HistoryProvider reads recent prediction records.
type HistoryProvider interface {
	History(ctx context.Context, limit int) ([]repository.Record, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	predictHandler *PredictHandler
	modelHandler   *ModelHandler
	historyHandler *HistoryHandler
}

// Option customises the server.
type Option func(*serverOptions)

type serverOptions struct {
	maxBodyBytes    int64
	maxHistoryLimit int
}

// WithMaxBodyBytes caps the size of request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithMaxHistoryLimit caps GET /history?limit.
func WithMaxHistoryLimit(n int) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxHistoryLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := serverOptions{maxBodyBytes: defaultMaxBodyBytes, maxHistoryLimit: defaultMaxHistoryLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		predictHandler: NewPredictHandler(deps, deps, o.maxBodyBytes),
		modelHandler:   NewModelHandler(deps),
		historyHandler: NewHistoryHandler(deps, o.maxHistoryLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/predict/batch", MetricsMiddleware(s.predictHandler.HandlePredictBatch, "predict_batch"))
	mux.HandleFunc("/predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
	mux.HandleFunc("/model/reload", MetricsMiddleware(s.modelHandler.HandleReload, "model_reload"))
	mux.HandleFunc("/model", MetricsMiddleware(s.modelHandler.HandleGetModel, "model"))
	mux.HandleFunc("/history", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v fully before writing the status line. An unencodable
// v is answered with a 500 internal_error body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(errorResponse{Code: "internal_error", Message: "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a service error onto its status and code.
// Server-side failures are counted against the operation that raised them.
func writeFailure(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	err = Wrap(op, err)
	if status >= http.StatusInternalServerError {
		metrics.RecordErrorByComponent(opOf(err), code)
	}
	writeError(w, status, code, err)
}

// classify returns the HTTP status and error code for err.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	}
	kind, ok := types.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, "internal_error"
	}
	switch kind {
	case types.KindMissingInput:
		return http.StatusBadRequest, "missing_input"
	case types.KindInvalidJSON:
		return http.StatusBadRequest, "invalid_json"
	case types.KindInvalidFieldType:
		return http.StatusBadRequest, "invalid_field_type"
	case types.KindRangeViolation:
		return http.StatusBadRequest, "range_violation"
	case types.KindMissingArtifact, types.KindCorruptArtifact:
		return http.StatusServiceUnavailable, "model_unavailable"
	case types.KindBackpressure:
		return http.StatusTooManyRequests, "backpressure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
