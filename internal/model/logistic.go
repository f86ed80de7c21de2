package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Bundle is the serialized form of a trained logistic regression model.
// Means and scales hold the standardization parameters fitted alongside
// the coefficients.
type Bundle struct {
	Version      string    `json:"version"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Means        []float64 `json:"means"`
	Scales       []float64 `json:"scales"`
	AUC          float64   `json:"auc,omitempty"`
}

// Logistic is a standardizing logistic regression classifier. It is
// immutable after construction and safe for concurrent use.
type Logistic struct {
	bundle Bundle
}

// Load reads a model bundle from a JSON file.
func Load(path string) (*Logistic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model bundle: %w", err)
	}
	return Parse(data)
}

// Parse builds a classifier from serialized bundle bytes.
func Parse(data []byte) (*Logistic, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	return New(b)
}

// New validates a bundle and returns a classifier over it.
func New(b Bundle) (*Logistic, error) {
	n := len(b.Coefficients)
	if n == 0 {
		return nil, fmt.Errorf("%w: no coefficients", ErrInvalidBundle)
	}
	if len(b.Means) != n || len(b.Scales) != n {
		return nil, fmt.Errorf("%w: coefficients=%d means=%d scales=%d",
			ErrInvalidBundle, n, len(b.Means), len(b.Scales))
	}
	for i, s := range b.Scales {
		if s == 0 {
			return nil, fmt.Errorf("%w: zero scale at index %d", ErrInvalidBundle, i)
		}
	}
	return &Logistic{bundle: b}, nil
}

// Predict standardizes the features and applies the logistic function.
func (l *Logistic) Predict(features []float64) (float64, error) {
	b := &l.bundle
	if len(features) != len(b.Coefficients) {
		return 0, fmt.Errorf("%w: got %d, want %d",
			ErrFeatureCount, len(features), len(b.Coefficients))
	}

	z := b.Intercept
	for i, x := range features {
		z += b.Coefficients[i] * ((x - b.Means[i]) / b.Scales[i])
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// Version returns the bundle's version label.
func (l *Logistic) Version() string {
	return l.bundle.Version
}
