package scoring

import "math"

// clamp01 clamps v to the unit interval.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampFloat clamps v to [lo, hi].
func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampInt clamps v to [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// round3 rounds a unit-interval score to three decimals for reporting.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// round2 rounds a percentage to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// impact maps a unit-interval signal score to a capped score adjustment.
// A neutral 0.5 maps to zero; 1.0 maps to +cap and 0.0 to -cap.
func impact(score float64, cap int) int {
	raw := int(math.Round((score - 0.5) * 2 * float64(cap)))
	return clampInt(raw, -cap, cap)
}

// valOr dereferences p or returns def when the field was absent.
func valOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// intOr dereferences p or returns def when the field was absent.
func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// boolOr dereferences p or returns def when the field was absent.
func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
