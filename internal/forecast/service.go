package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/kartoza/sales-forecast/internal/features"
	"github.com/kartoza/sales-forecast/internal/models"
	"github.com/kartoza/sales-forecast/internal/scaling"
)

const (
	// ModelVersion is reported with every prediction
	ModelVersion = "1.0.0"

	// Confidence is a fixed placeholder; the model exposes no calibrated score.
	Confidence = 0.95

	// PredictionDivisor converts the model's training units to reported units
	PredictionDivisor = 1000.0
)

// Model is a pre-trained regressor over the full feature vector
type Model interface {
	Predict(x []float64) (float64, error)
}

// Service runs the validate → assemble → scale → predict pipeline.
// It holds immutable references to the loaded artifacts and is safe
// for concurrent use.
type Service struct {
	model  Model
	scaler scaling.Scaler
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a forecast service. A nil model or scaler leaves the service
// unavailable: every prediction returns ErrModelUnavailable.
func New(model Model, scaler scaling.Scaler, logger zerolog.Logger) *Service {
	return &Service{
		model:  model,
		scaler: scaler,
		logger: logger.With().Str("component", "forecast").Logger(),
		now:    time.Now,
	}
}

// Ready reports whether both artifacts are loaded
func (s *Service) Ready() bool {
	return s.model != nil && s.scaler != nil
}

// Predict serves a single prediction
func (s *Service) Predict(ctx context.Context, req *models.PredictionRequest) (models.PredictionResponse, error) {
	if !s.Ready() {
		return models.PredictionResponse{}, ErrModelUnavailable
	}
	if err := ctx.Err(); err != nil {
		return models.PredictionResponse{}, err
	}

	value, err := s.predictOne(req)
	if err != nil {
		return models.PredictionResponse{}, err
	}

	s.logger.Debug().Float64("prediction", value).Msg("Prediction served")

	return models.PredictionResponse{
		Prediction:          value,
		Confidence:          Confidence,
		PredictionTimestamp: s.now().Format(time.RFC3339),
		ModelVersion:        ModelVersion,
	}, nil
}

// PredictBatch runs each item through the single-record pipeline. A bad
// item is recorded in Errors by its input index and the batch carries on.
// Only an unavailable model or a cancelled context fails the whole batch.
func (s *Service) PredictBatch(ctx context.Context, items []json.RawMessage) (models.BatchResponse, error) {
	if !s.Ready() {
		return models.BatchResponse{}, ErrModelUnavailable
	}

	resp := models.BatchResponse{
		BatchSize:    len(items),
		Predictions:  make([]float64, 0, len(items)),
		Errors:       []models.BatchError{},
		ModelVersion: ModelVersion,
	}

	for idx, raw := range items {
		if err := ctx.Err(); err != nil {
			return models.BatchResponse{}, err
		}

		value, err := s.predictRaw(raw)
		if err != nil {
			s.logger.Warn().Int("index", idx).Err(err).Msg("Batch item failed")
			resp.Errors = append(resp.Errors, models.BatchError{Index: idx, Error: err.Error()})
			continue
		}
		resp.Predictions = append(resp.Predictions, value)
	}

	resp.Successful = len(resp.Predictions)
	resp.Failed = len(resp.Errors)
	resp.Timestamp = s.now().Format(time.RFC3339)

	s.logger.Info().
		Int("batch_size", resp.BatchSize).
		Int("successful", resp.Successful).
		Int("failed", resp.Failed).
		Msg("Batch predictions completed")

	return resp, nil
}

func (s *Service) predictRaw(raw json.RawMessage) (float64, error) {
	var req models.PredictionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return 0, fmt.Errorf("invalid record: %w", err)
	}
	return s.predictOne(&req)
}

// predictOne validates, assembles and invokes the model for one record.
// Every call allocates its own vectors; nothing is shared between records.
func (s *Service) predictOne(req *models.PredictionRequest) (float64, error) {
	rec, err := features.Validate(req)
	if err != nil {
		return 0, err
	}

	scaled, unscaled, err := features.Assemble(rec)
	if err != nil {
		return 0, err
	}

	raw, err := s.invoke(scaled, unscaled)
	if err != nil {
		return 0, err
	}
	return raw / PredictionDivisor, nil
}

// invoke scales the scaled group, appends the unscaled group and calls the model
func (s *Service) invoke(scaled features.Scaled, unscaled features.Unscaled) (float64, error) {
	out, err := s.scaler.Transform(scaled[:])
	if err != nil {
		return 0, &PredictionError{Stage: "scaling", Err: err}
	}
	transformed, err := features.FromSlice(out)
	if err != nil {
		return 0, &PredictionError{Stage: "scaling", Err: err}
	}

	vec := features.Concat(transformed, unscaled)

	y, err := s.model.Predict(vec[:])
	if err != nil {
		return 0, &PredictionError{Stage: "model", Err: err}
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, &PredictionError{Stage: "model", Err: fmt.Errorf("non-finite output %v", y)}
	}
	return y, nil
}
