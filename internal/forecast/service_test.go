package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/sales-forecast/internal/features"
	"github.com/kartoza/sales-forecast/internal/models"
	"github.com/kartoza/sales-forecast/internal/scaling"
)

const exampleRequest = `{
	"DayOfWeek": 3, "Month": 11, "Quarter": 4, "IsWeekend": 0,
	"Promo": 1.0, "SchoolHoliday": 0,
	"Sales_Lag_1": 5000.0, "Sales_Lag_7": 4800.0, "Sales_Lag_14": 4700.0, "Sales_Lag_30": 4900.0,
	"Customers_Lag_1": 800.0, "Customers_Lag_7": 820.0,
	"Sales_Rolling_Mean_7": 4900.0, "Sales_Rolling_Mean_14": 4850.0,
	"Sales_Rolling_Std_7": 100.0, "Sales_Rolling_Std_14": 120.0,
	"SalesPerCustomer": 6.25,
	"Store": 1, "Open": 1, "StoreType": 0, "Assortment": 0, "CompetitionDistance": 1000.0
}`

// recordingModel returns a fixed value and remembers every vector it saw
type recordingModel struct {
	mu     sync.Mutex
	value  float64
	err    error
	inputs [][]float64
}

func (m *recordingModel) Predict(x []float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float64, len(x))
	copy(cp, x)
	m.inputs = append(m.inputs, cp)
	return m.value, m.err
}

// brokenScaler returns the wrong number of columns
type brokenScaler struct{}

func (brokenScaler) Transform(in []float64) ([]float64, error) { return in[:len(in)-1], nil }
func (brokenScaler) Dim() int                                   { return features.ScaledLen }

func testScaler(t *testing.T) *scaling.StandardScaler {
	t.Helper()
	mean := make([]float64, features.ScaledLen)
	scale := make([]float64, features.ScaledLen)
	for i := range mean {
		mean[i] = 1
		scale[i] = 2
	}
	s, err := scaling.NewStandardScaler(mean, scale)
	require.NoError(t, err)
	return s
}

func exampleReq(t *testing.T) *models.PredictionRequest {
	t.Helper()
	var req models.PredictionRequest
	require.NoError(t, json.Unmarshal([]byte(exampleRequest), &req))
	return &req
}

func newTestService(t *testing.T, model Model) *Service {
	t.Helper()
	svc := New(model, testScaler(t), zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 11, 20, 10, 30, 0, 0, time.UTC) }
	return svc
}

func TestPredict(t *testing.T) {
	model := &recordingModel{value: 4875250}
	svc := newTestService(t, model)

	resp, err := svc.Predict(context.Background(), exampleReq(t))
	require.NoError(t, err)

	assert.InDelta(t, 4875.25, resp.Prediction, 1e-9)
	assert.Equal(t, 0.95, resp.Confidence)
	assert.Equal(t, "2025-11-20T10:30:00Z", resp.PredictionTimestamp)
	assert.Equal(t, "1.0.0", resp.ModelVersion)
}

func TestPredictFeatureVector(t *testing.T) {
	model := &recordingModel{value: 1}
	svc := newTestService(t, model)

	_, err := svc.Predict(context.Background(), exampleReq(t))
	require.NoError(t, err)
	require.Len(t, model.inputs, 1)

	raw := []float64{3, 11, 4, 0, 1, 0, 5000, 4800, 4700, 4900, 800, 820, 4900, 4850, 100, 120, 6.25}
	want := make([]float64, 0, features.VectorLen)
	for _, x := range raw {
		want = append(want, (x-1)/2)
	}
	want = append(want, 1, 1, 0, 0, 1000)

	assert.Equal(t, want, model.inputs[0])
}

func TestPredictUnavailable(t *testing.T) {
	tests := []struct {
		name string
		svc  *Service
	}{
		{"no model", New(nil, testScaler(t), zerolog.Nop())},
		{"no scaler", New(&recordingModel{}, nil, zerolog.Nop())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.svc.Ready())

			_, err := tt.svc.Predict(context.Background(), nil)
			assert.True(t, errors.Is(err, ErrModelUnavailable))

			_, err = tt.svc.PredictBatch(context.Background(), []json.RawMessage{json.RawMessage(exampleRequest)})
			assert.True(t, errors.Is(err, ErrModelUnavailable))
		})
	}
}

func TestPredictValidationError(t *testing.T) {
	model := &recordingModel{value: 1}
	svc := newTestService(t, model)

	req := exampleReq(t)
	bad := 9.0
	req.DayOfWeek = &bad

	_, err := svc.Predict(context.Background(), req)
	var verr *features.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, model.inputs, "model must not be called for invalid input")
}

func TestPredictErrors(t *testing.T) {
	t.Run("scaler dimension mismatch", func(t *testing.T) {
		svc := New(&recordingModel{}, brokenScaler{}, zerolog.Nop())
		_, err := svc.Predict(context.Background(), exampleReq(t))

		var perr *PredictionError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "scaling", perr.Stage)
		var dim *features.DimensionMismatchError
		assert.ErrorAs(t, err, &dim)
	})

	t.Run("model failure", func(t *testing.T) {
		svc := newTestService(t, &recordingModel{err: errors.New("boom")})
		_, err := svc.Predict(context.Background(), exampleReq(t))

		var perr *PredictionError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "model", perr.Stage)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("non-finite output", func(t *testing.T) {
		svc := newTestService(t, &recordingModel{value: math.NaN()})
		_, err := svc.Predict(context.Background(), exampleReq(t))

		var perr *PredictionError
		assert.ErrorAs(t, err, &perr)
	})

	t.Run("cancelled context", func(t *testing.T) {
		svc := newTestService(t, &recordingModel{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.Predict(ctx, exampleReq(t))
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestPredictBatchIsolatesFailures(t *testing.T) {
	model := &recordingModel{value: 2000}
	svc := newTestService(t, model)

	invalid := strings.Replace(exampleRequest, `"Month": 11`, `"Month": 13`, 1)
	items := []json.RawMessage{
		json.RawMessage(exampleRequest),
		json.RawMessage(exampleRequest),
		json.RawMessage(invalid),
		json.RawMessage(exampleRequest),
	}

	resp, err := svc.PredictBatch(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 4, resp.BatchSize)
	assert.Equal(t, 3, resp.Successful)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, []float64{2, 2, 2}, resp.Predictions)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 2, resp.Errors[0].Index)
	assert.Contains(t, resp.Errors[0].Error, "Month")
	assert.Equal(t, "2025-11-20T10:30:00Z", resp.Timestamp)
	assert.Equal(t, ModelVersion, resp.ModelVersion)
	assert.Len(t, model.inputs, 3)
}

func TestPredictBatchMalformedItems(t *testing.T) {
	svc := newTestService(t, &recordingModel{value: 1000})

	items := []json.RawMessage{
		json.RawMessage(`{"DayOfWeek": "monday"}`),
		json.RawMessage(exampleRequest),
		json.RawMessage(`null`),
	}

	resp, err := svc.PredictBatch(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Successful)
	assert.Equal(t, 2, resp.Failed)
	assert.Equal(t, 0, resp.Errors[0].Index)
	assert.Contains(t, resp.Errors[0].Error, "invalid record")
	assert.Equal(t, 2, resp.Errors[1].Index)
	assert.Contains(t, resp.Errors[1].Error, "field required")
}

func TestPredictBatchEmpty(t *testing.T) {
	svc := newTestService(t, &recordingModel{})

	resp, err := svc.PredictBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.BatchSize)
	assert.NotNil(t, resp.Predictions)
	assert.NotNil(t, resp.Errors)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"predictions":[]`)
	assert.Contains(t, string(body), `"errors":[]`)
}

func TestPredictBatchCancelled(t *testing.T) {
	svc := newTestService(t, &recordingModel{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.PredictBatch(ctx, []json.RawMessage{json.RawMessage(exampleRequest)})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPredictConcurrent(t *testing.T) {
	model := &recordingModel{value: 1000}
	svc := newTestService(t, model)

	req := exampleReq(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.Predict(context.Background(), req)
			assert.NoError(t, err)
			assert.Equal(t, 1.0, resp.Prediction)
		}()
	}
	wg.Wait()
	assert.Len(t, model.inputs, 20)
}
