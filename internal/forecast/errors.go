package forecast

import "errors"

// ErrModelUnavailable means the model or scaler failed to load at startup
var ErrModelUnavailable = errors.New("model not loaded")

// PredictionError wraps a failure from the scaler or model call
type PredictionError struct {
	Stage string
	Err   error
}

func (e *PredictionError) Error() string {
	return "prediction failed at " + e.Stage + ": " + e.Err.Error()
}

func (e *PredictionError) Unwrap() error { return e.Err }
