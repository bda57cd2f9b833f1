package monitoring

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Performance status values
const (
	StatusInsufficientData = "insufficient_data"
	StatusOK               = "ok"
	StatusAlert            = "alert"
)

// Defaults match the offline evaluation of the production model
const (
	DefaultBaselineRMSE = 147015.0
	DefaultBaselineMAPE = 1.65
	DefaultThreshold    = 0.15
	DefaultWindow       = 100
	DefaultMinRecords   = 10
)

// MaxValue bounds the magnitude of logged actual and predicted values so
// that squared errors summed over the log stay finite.
const MaxValue = 1e12

// ErrOutOfRange is returned for a non-finite or oversized outcome
var ErrOutOfRange = errors.New("value out of range")

// Record is one logged (actual, predicted) pair. Records are never mutated.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	StoreID   int       `json:"store_id"`
	Actual    float64   `json:"actual"`
	Predicted float64   `json:"predicted"`
	Error     float64   `json:"error"`
	ErrorPct  float64   `json:"error_pct"`
}

// PerformanceStatus is the result of a windowed performance check
type PerformanceStatus struct {
	Status             string  `json:"status"`
	Records            int     `json:"records"`
	Window             int     `json:"window"`
	CurrentRMSE        float64 `json:"current_rmse"`
	BaselineRMSE       float64 `json:"baseline_rmse"`
	RMSEDegradationPct float64 `json:"rmse_degradation_pct"`
	CurrentMAPE        float64 `json:"current_mape"`
	BaselineMAPE       float64 `json:"baseline_mape"`
	MAPEDegradationPct float64 `json:"mape_degradation_pct"`
	Alert              bool    `json:"alert"`
}

// Metrics are aggregate accuracy figures
type Metrics struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	MAPE float64 `json:"mape"`
}

// Report aggregates the whole log. Performance is nil and Message set
// when nothing has been logged yet.
type Report struct {
	Timestamp        string   `json:"timestamp"`
	TotalPredictions int      `json:"total_predictions"`
	Performance      *Metrics `json:"performance,omitempty"`
	Message          string   `json:"message,omitempty"`
}

// Config holds the monitor thresholds
type Config struct {
	BaselineRMSE float64
	BaselineMAPE float64
	Threshold    float64
	Window       int
	MinRecords   int
}

// DefaultConfig returns the production baselines
func DefaultConfig() Config {
	return Config{
		BaselineRMSE: DefaultBaselineRMSE,
		BaselineMAPE: DefaultBaselineMAPE,
		Threshold:    DefaultThreshold,
		Window:       DefaultWindow,
		MinRecords:   DefaultMinRecords,
	}
}

// Monitor accumulates prediction outcomes and tracks drift against a baseline.
// The log is append-only and grows without bound.
type Monitor struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	records []Record
}

// New creates a monitor. Zero config fields fall back to the defaults.
func New(cfg Config, logger zerolog.Logger) *Monitor {
	def := DefaultConfig()
	if cfg.BaselineRMSE <= 0 {
		cfg.BaselineRMSE = def.BaselineRMSE
	}
	if cfg.BaselineMAPE <= 0 {
		cfg.BaselineMAPE = def.BaselineMAPE
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MinRecords <= 0 {
		cfg.MinRecords = def.MinRecords
	}

	m := &Monitor{
		cfg:    cfg,
		logger: logger.With().Str("component", "monitor").Logger(),
		now:    time.Now,
	}
	m.logger.Info().
		Float64("baseline_rmse", cfg.BaselineRMSE).
		Float64("baseline_mape", cfg.BaselineMAPE).
		Float64("threshold", cfg.Threshold).
		Msg("Performance monitor initialized")
	return m
}

// LogPrediction appends an outcome. A zero timestamp means now.
// Percentage error is 0 when actual is not positive. Values that are not
// finite or exceed MaxValue are rejected and nothing is logged.
func (m *Monitor) LogPrediction(actual, predicted float64, storeID int, ts time.Time) (Record, error) {
	if err := checkValue("actual", actual); err != nil {
		return Record{}, err
	}
	if err := checkValue("predicted", predicted); err != nil {
		return Record{}, err
	}
	if ts.IsZero() {
		ts = m.now()
	}

	errAbs := math.Abs(actual - predicted)
	errPct := 0.0
	if actual > 0 {
		errPct = errAbs / actual * 100
	}

	rec := Record{
		ID:        uuid.NewString(),
		Timestamp: ts,
		StoreID:   storeID,
		Actual:    actual,
		Predicted: predicted,
		Error:     errAbs,
		ErrorPct:  errPct,
	}

	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()

	m.logger.Debug().
		Int("store_id", storeID).
		Float64("error_pct", errPct).
		Msg("Prediction logged")

	return rec, nil
}

func checkValue(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > MaxValue {
		return fmt.Errorf("%s %g: %w", name, v, ErrOutOfRange)
	}
	return nil
}

// CheckModelPerformance compares the most recent window against the baseline.
// Only RMSE degradation raises the alert; MAPE degradation is reported only.
func (m *Monitor) CheckModelPerformance() PerformanceStatus {
	m.mu.RLock()
	n := len(m.records)
	if n < m.cfg.MinRecords {
		m.mu.RUnlock()
		return PerformanceStatus{Status: StatusInsufficientData, Records: n}
	}
	start := 0
	if n > m.cfg.Window {
		start = n - m.cfg.Window
	}
	recent := m.records[start:n]
	metrics := computeMetrics(recent)
	m.mu.RUnlock()

	rmseDeg := (metrics.RMSE - m.cfg.BaselineRMSE) / m.cfg.BaselineRMSE
	mapeDeg := (metrics.MAPE - m.cfg.BaselineMAPE) / m.cfg.BaselineMAPE

	status := PerformanceStatus{
		Status:             StatusOK,
		Records:            n,
		Window:             len(recent),
		CurrentRMSE:        metrics.RMSE,
		BaselineRMSE:       m.cfg.BaselineRMSE,
		RMSEDegradationPct: rmseDeg * 100,
		CurrentMAPE:        metrics.MAPE,
		BaselineMAPE:       m.cfg.BaselineMAPE,
		MAPEDegradationPct: mapeDeg * 100,
	}

	if math.Abs(rmseDeg) > m.cfg.Threshold {
		status.Alert = true
		status.Status = StatusAlert
		m.logger.Warn().
			Float64("rmse_degradation_pct", status.RMSEDegradationPct).
			Msg("RMSE degradation above threshold")
	}

	return status
}

// GenerateReport aggregates RMSE, MAE and MAPE over the entire log
func (m *Monitor) GenerateReport() Report {
	m.mu.RLock()
	n := len(m.records)
	var metrics Metrics
	if n > 0 {
		metrics = computeMetrics(m.records)
	}
	m.mu.RUnlock()

	report := Report{
		Timestamp:        m.now().Format(time.RFC3339),
		TotalPredictions: n,
	}
	if n == 0 {
		report.Message = "No predictions logged yet"
		return report
	}
	report.Performance = &metrics

	m.logger.Info().Int("predictions", n).Msg("Report generated")
	return report
}

// Len returns the number of logged records
func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Records returns a copy of the log in insertion order
func (m *Monitor) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// computeMetrics expects a non-empty slice
func computeMetrics(records []Record) Metrics {
	var sumSq, sumAbs, sumPct float64
	for _, r := range records {
		sumSq += r.Error * r.Error
		sumAbs += r.Error
		sumPct += r.ErrorPct
	}
	n := float64(len(records))
	return Metrics{
		RMSE: math.Sqrt(sumSq / n),
		MAE:  sumAbs / n,
		MAPE: sumPct / n,
	}
}
