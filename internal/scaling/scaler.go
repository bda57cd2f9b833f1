package scaling

import (
	"encoding/json"
	"fmt"

	"github.com/kartoza/sales-forecast/internal/features"
)

// Scaler is a pre-fitted transform with a fixed input and output width
type Scaler interface {
	Transform(in []float64) ([]float64, error)
	Dim() int
}

// StandardScaler applies (x - mean) / scale per column.
// It is immutable once built and safe for concurrent use.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// standardScalerArtifact is the on-disk form, mirroring sklearn's mean_ and scale_
type standardScalerArtifact struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// NewStandardScaler builds a scaler from fitted parameters. A zero scale
// leaves its column unscaled, as sklearn does for constant features.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 {
		return nil, fmt.Errorf("standard scaler: no columns")
	}
	if len(scale) != len(mean) {
		return nil, &features.DimensionMismatchError{Component: "standard scaler scale", Expected: len(mean), Got: len(scale)}
	}

	s := &StandardScaler{
		mean:  make([]float64, len(mean)),
		scale: make([]float64, len(scale)),
	}
	copy(s.mean, mean)
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}
	return s, nil
}

// ParseStandardScaler decodes a scaler artifact
func ParseStandardScaler(data []byte) (*StandardScaler, error) {
	var a standardScalerArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode scaler artifact: %w", err)
	}
	return NewStandardScaler(a.Mean, a.Scale)
}

// Dim returns the number of columns the scaler was fitted on
func (s *StandardScaler) Dim() int {
	return len(s.mean)
}

// Transform scales one row. The input is not modified.
func (s *StandardScaler) Transform(in []float64) ([]float64, error) {
	if len(in) != len(s.mean) {
		return nil, &features.DimensionMismatchError{Component: "standard scaler", Expected: len(s.mean), Got: len(in)}
	}
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = (x - s.mean[i]) / s.scale[i]
	}
	return out, nil
}
