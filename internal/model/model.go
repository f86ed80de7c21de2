// Package model provides the default-probability classifier boundary.
// The scoring engine depends only on the Predictor interface so trained
// models can be swapped without touching the pipeline.
package model

import "errors"

var (
	// ErrFeatureCount indicates the feature vector length does not match
	// the model's coefficient vector.
	ErrFeatureCount = errors.New("feature vector length mismatch")

	// ErrInvalidBundle indicates a malformed or incomplete model bundle.
	ErrInvalidBundle = errors.New("invalid model bundle")
)

// Predictor estimates the probability of default from a feature vector.
// Implementations must be safe for concurrent use.
type Predictor interface {
	// Predict returns a probability in [0, 1].
	Predict(features []float64) (float64, error)
}
