package scoring

import (
	"github.com/opensource-finance/talon/internal/domain"
)

// communityTrust scores the applicant's contact graph. The signal is
// unavailable only when every network field is absent; partial input falls
// back to per-field defaults.
func communityTrust(ext *domain.ExtendedSignals, cap int) domain.SignalResult {
	res := domain.SignalResult{Name: domain.SignalCommunityTrust}

	if ext.AvgContactCreditScore == nil && ext.LowRiskContactRatio == nil &&
		ext.HighRiskContactRatio == nil && ext.NetworkStabilityRatio == nil {
		res.Score = 0.5
		res.Category = domain.CategoryUnknown
		return res
	}

	credit := clampFloat(valOr(ext.AvgContactCreditScore, 600), 300, 900)
	lowRisk := clamp01(valOr(ext.LowRiskContactRatio, 0.5))
	highRisk := clamp01(valOr(ext.HighRiskContactRatio, 0.2))
	stability := clamp01(valOr(ext.NetworkStabilityRatio, 0.5))

	score := 0.4*(credit-300)/600 +
		0.3*lowRisk +
		0.2*stability +
		0.1*(1-highRisk)
	score = clamp01(score)

	res.Score = round3(score)
	res.Available = true
	res.Impact = impact(score, cap)
	switch {
	case score >= 0.7:
		res.Category = "High"
	case score >= 0.4:
		res.Category = "Medium"
	default:
		res.Category = "Low"
	}
	return res
}

// addressStability scores residential tenure and address churn.
func addressStability(ext *domain.ExtendedSignals, cap int) domain.SignalResult {
	res := domain.SignalResult{Name: domain.SignalAddressStability}

	if ext.AddressChangeCount12m == nil && ext.CurrentAddressTenureMonths == nil {
		res.Score = 0.5
		res.Category = domain.CategoryUnknown
		return res
	}

	changes := clampInt(intOr(ext.AddressChangeCount12m, 1), 0, 10)
	tenure := clampInt(intOr(ext.CurrentAddressTenureMonths, 12), 0, 240)

	score := 0.6*min(1, float64(tenure)/24) +
		0.4*(1-min(1, float64(changes)/4))
	score = clamp01(score)

	res.Score = round3(score)
	res.Available = true
	res.Impact = impact(score, cap)
	switch {
	case tenure >= 18 && changes <= 1:
		res.Category = "High"
	case tenure >= 6 || changes <= 2:
		res.Category = "Medium"
	default:
		res.Category = "Low"
	}
	return res
}

// EvaluateNetwork combines community trust and address stability into a single
// capped adjustment. Member impacts already honor their own caps; the sum is
// clamped again so network data can never dominate the base score.
func EvaluateNetwork(a *domain.Applicant, cfg domain.ScoringConfig) domain.NetworkComposite {
	comp := domain.NetworkComposite{
		CommunityTrust:   communityTrust(&a.Extended, cfg.CommunityTrustCap),
		AddressStability: addressStability(&a.Extended, cfg.AddressStabilityCap),
	}
	total := comp.CommunityTrust.Impact + comp.AddressStability.Impact
	comp.TotalAdjustment = clampInt(total, -cfg.NetworkCap, cfg.NetworkCap)
	return comp
}
