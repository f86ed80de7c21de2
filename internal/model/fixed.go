package model

// Fixed is a Predictor that always returns the same probability.
// Used in tests and as a fallback when no trained bundle is configured.
type Fixed struct {
	Probability float64
}

// Predict returns the fixed probability regardless of input.
func (f Fixed) Predict(_ []float64) (float64, error) {
	return f.Probability, nil
}
