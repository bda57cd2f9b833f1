package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kartoza/sales-forecast/internal/config"
	"github.com/kartoza/sales-forecast/internal/features"
	"github.com/kartoza/sales-forecast/internal/forecast"
	"github.com/kartoza/sales-forecast/internal/httputil"
	"github.com/kartoza/sales-forecast/internal/models"
	"github.com/kartoza/sales-forecast/internal/monitoring"
)

// APIVersion is reported by /health
const APIVersion = "1.0.0"

const (
	maxPredictBody = 1 << 20
	maxBatchBody   = 32 << 20
)

// Predictor serves forecasts
type Predictor interface {
	Ready() bool
	Predict(ctx context.Context, req *models.PredictionRequest) (models.PredictionResponse, error)
	PredictBatch(ctx context.Context, items []json.RawMessage) (models.BatchResponse, error)
}

// PerformanceMonitor tracks prediction accuracy against ground truth
type PerformanceMonitor interface {
	LogPrediction(actual, predicted float64, storeID int, ts time.Time) (monitoring.Record, error)
	CheckModelPerformance() monitoring.PerformanceStatus
	GenerateReport() monitoring.Report
}

// Handler provides HTTP API endpoints
type Handler struct {
	predictor Predictor
	monitor   PerformanceMonitor
	cfg       config.Config
	logger    zerolog.Logger
}

// NewHandler creates a new API handler
func NewHandler(predictor Predictor, monitor PerformanceMonitor, cfg config.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		predictor: predictor,
		monitor:   monitor,
		cfg:       cfg,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.handleIndex).Methods("GET")
	r.HandleFunc("/health", h.handleHealth).Methods("GET")

	// Predictions
	r.HandleFunc("/predict", h.handlePredict).Methods("POST")
	r.HandleFunc("/predict_batch", h.handlePredictBatch).Methods("POST")

	// Model metadata
	r.HandleFunc("/model/info", h.handleModelInfo).Methods("GET")
	r.HandleFunc("/model/features", h.handleModelFeatures).Methods("GET")

	// Performance monitoring
	r.HandleFunc("/monitoring/predictions", h.handleMonitoringLog).Methods("POST")
	r.HandleFunc("/monitoring/performance", h.handleMonitoringPerformance).Methods("GET")
	r.HandleFunc("/monitoring/report", h.handleMonitoringReport).Methods("GET")
}

// handleIndex lists the available endpoints
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "Rossmann Sales Forecasting API",
		"version": h.cfg.Version,
		"endpoints": map[string]string{
			"/health":                 "GET - Health check",
			"/predict":                "POST - Single prediction",
			"/predict_batch":          "POST - Batch predictions",
			"/model/info":             "GET - Model information",
			"/model/features":         "GET - Feature list",
			"/monitoring/predictions": "POST - Log an actual/predicted pair",
			"/monitoring/performance": "GET - Recent performance against baseline",
			"/monitoring/report":      "GET - Performance over all logged predictions",
		},
	})
}

// handleHealth reports liveness and whether the model loaded. It never fails.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := h.predictor.Ready()
	status := "healthy"
	if !loaded {
		status = "degraded"
	}
	httputil.RespondJSON(w, http.StatusOK, models.HealthResponse{
		Status:      status,
		Timestamp:   time.Now().Format(time.RFC3339),
		ModelLoaded: loaded,
		APIVersion:  APIVersion,
	})
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	if !h.predictor.Ready() {
		httputil.RespondError(w, http.StatusServiceUnavailable, forecast.ErrModelUnavailable.Error())
		return
	}

	var req models.PredictionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPredictBody)).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.predictor.Predict(r.Context(), &req)
	if err != nil {
		h.respondPredictionError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	if !h.predictor.Ready() {
		httputil.RespondError(w, http.StatusServiceUnavailable, forecast.ErrModelUnavailable.Error())
		return
	}

	var req models.BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBody)).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Data == nil {
		httputil.RespondError(w, http.StatusBadRequest, "data is required")
		return
	}

	resp, err := h.predictor.PredictBatch(r.Context(), req.Data)
	if err != nil {
		h.respondPredictionError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// respondPredictionError maps pipeline errors to status codes. Internal
// failures are logged in full and reported generically.
func (h *Handler) respondPredictionError(w http.ResponseWriter, err error) {
	var verr *features.ValidationError
	var perr *forecast.PredictionError

	switch {
	case errors.As(err, &verr):
		httputil.RespondErrorDetail(w, http.StatusUnprocessableEntity, "validation error", verr.Fields)
	case errors.Is(err, forecast.ErrModelUnavailable):
		httputil.RespondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &perr):
		h.logger.Error().Err(err).Str("stage", perr.Stage).Msg("Prediction error")
		httputil.RespondError(w, http.StatusInternalServerError, "prediction failed")
	default:
		h.logger.Error().Err(err).Msg("Unexpected prediction error")
		httputil.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

// handleModelInfo returns static model metadata and offline metrics
func (h *Handler) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, models.ModelInfoResponse{
		ModelName: "XGBoost Forecaster",
		Version:   forecast.ModelVersion,
		Status:    "Production",
		PerformanceMetrics: map[string]float64{
			"rmse": monitoring.DefaultBaselineRMSE,
			"mae":  72390.0,
			"mape": monitoring.DefaultBaselineMAPE,
			"r2":   0.9979,
		},
		FeaturesCount: features.VectorLen,
		LastUpdated:   "2025-11-16T22:00:00",
	})
}

// handleModelFeatures returns the feature order the model expects
func (h *Handler) handleModelFeatures(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, models.FeaturesResponse{
		Features:         features.Names(),
		Count:            features.VectorLen,
		ScaledFeatures:   features.ScaledNames[:],
		UnscaledFeatures: features.UnscaledNames[:],
		Description:      "First 17 features are scaled, last 5 are not",
	})
}

func (h *Handler) handleMonitoringLog(w http.ResponseWriter, r *http.Request) {
	var req models.MonitoringLogRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPredictBody)).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Actual == nil || req.Predicted == nil {
		httputil.RespondError(w, http.StatusBadRequest, "actual and predicted are required")
		return
	}

	var ts time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "timestamp must be RFC 3339")
			return
		}
		ts = parsed
	}

	rec, err := h.monitor.LogPrediction(*req.Actual, *req.Predicted, req.StoreID, ts)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleMonitoringPerformance(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.monitor.CheckModelPerformance())
}

func (h *Handler) handleMonitoringReport(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.monitor.GenerateReport())
}
