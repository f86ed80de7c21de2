package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func validBundle() Bundle {
	return Bundle{
		Version:      "credit-v1",
		Intercept:    -1.0,
		Coefficients: []float64{0.5, -0.3},
		Means:        []float64{10, 100},
		Scales:       []float64{2, 50},
	}
}

func TestNew(t *testing.T) {
	t.Run("ValidBundle", func(t *testing.T) {
		l, err := New(validBundle())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if l.Version() != "credit-v1" {
			t.Errorf("Version() = %q, want credit-v1", l.Version())
		}
	})

	t.Run("NoCoefficients", func(t *testing.T) {
		_, err := New(Bundle{})
		if !errors.Is(err, ErrInvalidBundle) {
			t.Errorf("New() error = %v, want ErrInvalidBundle", err)
		}
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		b := validBundle()
		b.Means = []float64{10}
		_, err := New(b)
		if !errors.Is(err, ErrInvalidBundle) {
			t.Errorf("New() error = %v, want ErrInvalidBundle", err)
		}
	})

	t.Run("ZeroScale", func(t *testing.T) {
		b := validBundle()
		b.Scales = []float64{2, 0}
		_, err := New(b)
		if !errors.Is(err, ErrInvalidBundle) {
			t.Errorf("New() error = %v, want ErrInvalidBundle", err)
		}
	})
}

func TestLogisticPredict(t *testing.T) {
	t.Run("AtFeatureMeans", func(t *testing.T) {
		// Standardized features are all zero, so z equals the intercept.
		l, err := New(validBundle())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		p, err := l.Predict([]float64{10, 100})
		if err != nil {
			t.Fatalf("Predict() error = %v", err)
		}
		want := 1 / (1 + math.Exp(1.0))
		if math.Abs(p-want) > 1e-12 {
			t.Errorf("Predict() = %v, want %v", p, want)
		}
	})

	t.Run("Standardization", func(t *testing.T) {
		l, err := New(validBundle())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		// z = -1 + 0.5*(12-10)/2 - 0.3*(150-100)/50 = -0.8
		p, err := l.Predict([]float64{12, 150})
		if err != nil {
			t.Fatalf("Predict() error = %v", err)
		}
		want := 1 / (1 + math.Exp(0.8))
		if math.Abs(p-want) > 1e-12 {
			t.Errorf("Predict() = %v, want %v", p, want)
		}
	})

	t.Run("ProbabilityInRange", func(t *testing.T) {
		l, err := New(validBundle())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		for _, features := range [][]float64{
			{-1e6, 1e6},
			{1e6, -1e6},
			{0, 0},
		} {
			p, err := l.Predict(features)
			if err != nil {
				t.Fatalf("Predict(%v) error = %v", features, err)
			}
			if p < 0 || p > 1 {
				t.Errorf("Predict(%v) = %v, want within [0, 1]", features, p)
			}
		}
	})

	t.Run("FeatureCountMismatch", func(t *testing.T) {
		l, err := New(validBundle())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		_, err = l.Predict([]float64{1})
		if !errors.Is(err, ErrFeatureCount) {
			t.Errorf("Predict() error = %v, want ErrFeatureCount", err)
		}
	})
}

func TestParse(t *testing.T) {
	t.Run("ValidJSON", func(t *testing.T) {
		data := []byte(`{
			"version": "credit-v2",
			"intercept": 0.1,
			"coefficients": [0.2],
			"means": [5],
			"scales": [1],
			"auc": 0.81
		}`)
		l, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if l.Version() != "credit-v2" {
			t.Errorf("Version() = %q, want credit-v2", l.Version())
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		_, err := Parse([]byte(`{not json`))
		if !errors.Is(err, ErrInvalidBundle) {
			t.Errorf("Parse() error = %v, want ErrInvalidBundle", err)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("FromFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.json")
		data := []byte(`{"version":"disk-v1","intercept":0,"coefficients":[1],"means":[0],"scales":[1]}`)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("failed to write bundle: %v", err)
		}
		l, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if l.Version() != "disk-v1" {
			t.Errorf("Version() = %q, want disk-v1", l.Version())
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
			t.Error("expected error for missing bundle file")
		}
	})
}

func TestFixed(t *testing.T) {
	f := Fixed{Probability: 0.42}
	p, err := f.Predict(nil)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if p != 0.42 {
		t.Errorf("Predict() = %v, want 0.42", p)
	}
}
