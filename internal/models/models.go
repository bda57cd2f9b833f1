package models

import "encoding/json"

// PredictionRequest is the wire form of a single forecast request.
// Fields are pointers so a missing field can be told apart from a zero.
// Field order matches the model's feature order and must not change.
type PredictionRequest struct {
	// Scaled group
	DayOfWeek          *float64 `json:"DayOfWeek" validate:"required,finite,integral,gte=1,lte=7"`
	Month              *float64 `json:"Month" validate:"required,finite,integral,gte=1,lte=12"`
	Quarter            *float64 `json:"Quarter" validate:"required,finite,integral,gte=1,lte=4"`
	IsWeekend          *float64 `json:"IsWeekend" validate:"required,finite,integral,gte=0,lte=1"`
	Promo              *float64 `json:"Promo" validate:"required,finite,gte=0,lte=1"`
	SchoolHoliday      *float64 `json:"SchoolHoliday" validate:"required,finite,integral,gte=0,lte=1"`
	SalesLag1          *float64 `json:"Sales_Lag_1" validate:"required,finite,gt=0"`
	SalesLag7          *float64 `json:"Sales_Lag_7" validate:"required,finite,gt=0"`
	SalesLag14         *float64 `json:"Sales_Lag_14" validate:"required,finite,gt=0"`
	SalesLag30         *float64 `json:"Sales_Lag_30" validate:"required,finite,gt=0"`
	CustomersLag1      *float64 `json:"Customers_Lag_1" validate:"required,finite,gt=0"`
	CustomersLag7      *float64 `json:"Customers_Lag_7" validate:"required,finite,gt=0"`
	SalesRollingMean7  *float64 `json:"Sales_Rolling_Mean_7" validate:"required,finite,gt=0"`
	SalesRollingMean14 *float64 `json:"Sales_Rolling_Mean_14" validate:"required,finite,gt=0"`
	SalesRollingStd7   *float64 `json:"Sales_Rolling_Std_7" validate:"required,finite,gte=0"`
	SalesRollingStd14  *float64 `json:"Sales_Rolling_Std_14" validate:"required,finite,gte=0"`
	SalesPerCustomer   *float64 `json:"SalesPerCustomer" validate:"required,finite,gt=0"`

	// Unscaled group
	Store               *float64 `json:"Store" validate:"required,finite,integral,gte=1"`
	Open                *float64 `json:"Open" validate:"required,finite,integral,gte=0,lte=1"`
	StoreType           *float64 `json:"StoreType" validate:"required,finite,integral,gte=0"`
	Assortment          *float64 `json:"Assortment" validate:"required,finite,integral,gte=0"`
	CompetitionDistance *float64 `json:"CompetitionDistance" validate:"required,finite,gte=0"`
}

// PredictionResponse is returned by /predict
type PredictionResponse struct {
	Prediction          float64 `json:"prediction"`
	Confidence          float64 `json:"confidence"`
	PredictionTimestamp string  `json:"prediction_timestamp"`
	ModelVersion        string  `json:"model_version"`
}

// BatchRequest wraps the records of a batch. Items stay raw so that a
// malformed record fails on its own instead of failing the whole body.
type BatchRequest struct {
	Data []json.RawMessage `json:"data"`
}

// BatchError describes one failed record. Index is the position in the
// request list.
type BatchError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResponse is returned by /predict_batch
type BatchResponse struct {
	BatchSize    int          `json:"batch_size"`
	Successful   int          `json:"successful"`
	Failed       int          `json:"failed"`
	Predictions  []float64    `json:"predictions"`
	Errors       []BatchError `json:"errors"`
	Timestamp    string       `json:"timestamp"`
	ModelVersion string       `json:"model_version"`
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	ModelLoaded bool   `json:"model_loaded"`
	APIVersion  string `json:"api_version"`
}

// ModelInfoResponse is returned by /model/info
type ModelInfoResponse struct {
	ModelName          string             `json:"model_name"`
	Version            string             `json:"version"`
	Status             string             `json:"status"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics"`
	FeaturesCount      int                `json:"features_count"`
	LastUpdated        string             `json:"last_updated"`
}

// FeaturesResponse is returned by /model/features
type FeaturesResponse struct {
	Features         []string `json:"features"`
	Count            int      `json:"count"`
	ScaledFeatures   []string `json:"scaled_features"`
	UnscaledFeatures []string `json:"unscaled_features"`
	Description      string   `json:"description"`
}

// FieldError is a single rejected request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// MonitoringLogRequest feeds a ground-truth/prediction pair to the monitor
type MonitoringLogRequest struct {
	Actual    *float64 `json:"actual"`
	Predicted *float64 `json:"predicted"`
	StoreID   int      `json:"store_id"`
	Timestamp string   `json:"timestamp,omitempty"`
}
