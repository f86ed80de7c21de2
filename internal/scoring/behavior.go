package scoring

import (
	"math"

	"github.com/opensource-finance/talon/internal/domain"
)

// Each behavioral evaluator follows the same contract: if every defining
// field is absent the signal is unavailable (score 0.5, impact 0, category
// Unknown); otherwise missing fields take per-field defaults, out-of-range
// values are clamped, and the score is mapped to a capped impact.

func incomeRhythm(ext *domain.ExtendedSignals, cap int) domain.SignalResult {
	res := domain.SignalResult{Name: domain.SignalIncomeRhythm}

	if ext.IncomeCoefficientOfVariation == nil && ext.SeasonalAdjustmentFactor == nil &&
		ext.IncomeFrequencyMonths == nil {
		res.Score = 0.5
		res.Category = domain.CategoryUnknown
		return res
	}

	cv := clampFloat(valOr(ext.IncomeCoefficientOfVariation, 0.3), 0, 2)
	seasonal := valOr(ext.SeasonalAdjustmentFactor, 1.0)
	freq := intOr(ext.IncomeFrequencyMonths, 12)

	score := (0.6*(1-min(1, cv/0.5)) + 0.4*min(1, float64(freq)/12)) * seasonal
	score = clamp01(score)

	res.Score = round3(score)
	res.Available = true
	res.Impact = impact(score, cap)
	switch {
	case score >= 0.7:
		res.Category = "Stable"
	case score >= 0.4:
		res.Category = "Variable"
	default:
		res.Category = "Irregular"
	}
	return res
}

func savingsCadence(ext *domain.ExtendedSignals, cap int) domain.SignalResult {
	res := domain.SignalResult{Name: domain.SignalSavingsCadence}

	if ext.MicroSavesPerMonth == nil && ext.SavingsPersistenceMonths == nil &&
		ext.HasEscrowCommitment == nil {
		res.Score = 0.5
		res.Category = domain.CategoryUnknown
		return res
	}

	saves := valOr(ext.MicroSavesPerMonth, 0)
	persist := intOr(ext.SavingsPersistenceMonths, 0)
	escrow := boolOr(ext.HasEscrowCommitment, false)

	escrowPart := 0.0
	if escrow {
		escrowPart = 1.0
	}
	score := 0.5*min(1, saves/4) + 0.4*min(1, float64(persist)/12) + 0.1*escrowPart
	if escrow {
		score += 0.1
	}
	score = clamp01(score)

	res.Score = round3(score)
	res.Available = true
	res.Impact = impact(score, cap)
	switch {
	case score >= 0.7:
		res.Category = "Strong"
	case score >= 0.4:
		res.Category = "Moderate"
	case score > 0.1:
		res.Category = "Weak"
	default:
		res.Category = "None"
	}
	return res
}

func devicePersistence(ext *domain.ExtendedSignals, cap int) domain.SignalResult {
	res := domain.SignalResult{Name: domain.SignalDevicePersistence}

	if ext.DeviceTenureMonths == nil && ext.OSChangeCount12m == nil &&
		ext.AppReinstallCount == nil {
		res.Score = 0.5
		res.Category = domain.CategoryUnknown
		return res
	}

	tenure := intOr(ext.DeviceTenureMonths, 6)
	churn := intOr(ext.OSChangeCount12m, 1) + intOr(ext.AppReinstallCount, 0)

	score := 0.6*min(1, float64(tenure)/24) + 0.4*(1-min(1, float64(churn)/6))
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

func expenseElasticity(ext *domain.ExtendedSignals, cap int) domain.SignalResult {
	res := domain.SignalResult{Name: domain.SignalExpenseElasticity}

	if ext.ExpenseIncomeCorrelation == nil && ext.ExpenseVolatility == nil {
		res.Score = 0.5
		res.Category = domain.CategoryUnknown
		return res
	}

	corr := valOr(ext.ExpenseIncomeCorrelation, 0.5)
	vol := valOr(ext.ExpenseVolatility, 0.3)

	// Moderate correlation with income (around 0.6) reads as controlled
	// spending; both extremes are penalized.
	score := 0.6*(1-min(1, vol)) + 0.4*clamp01(1-2*math.Abs(corr-0.6))
	score = clamp01(score)

	res.Score = round3(score)
	res.Available = true
	res.Impact = impact(score, cap)
	switch {
	case score >= 0.7:
		res.Category = "Controlled"
	case score >= 0.4:
		res.Category = "Flexible"
	default:
		res.Category = "Volatile"
	}
	return res
}

func utilityStability(ext *domain.ExtendedSignals, cap int) domain.SignalResult {
	res := domain.SignalResult{Name: domain.SignalUtilityStability}

	if ext.UtilityPaymentOntimeRatio == nil && ext.UtilityPaymentVariance == nil &&
		ext.UtilityMonthsActive == nil {
		res.Score = 0.5
		res.Category = domain.CategoryUnknown
		return res
	}

	ontime := valOr(ext.UtilityPaymentOntimeRatio, 0.8)
	variance := valOr(ext.UtilityPaymentVariance, 0.2)
	months := intOr(ext.UtilityMonthsActive, 12)

	score := 0.5*min(1, ontime) + 0.3*(1-min(1, variance)) + 0.2*min(1, float64(months)/24)
	score = clamp01(score)

	res.Score = round3(score)
	res.Available = true
	res.Impact = impact(score, cap)
	switch {
	case score >= 0.8:
		res.Category = "Consistent"
	case score >= 0.5:
		res.Category = "Variable"
	default:
		res.Category = "Irregular"
	}
	return res
}

func merchantLoyalty(ext *domain.ExtendedSignals, cap int) domain.SignalResult {
	res := domain.SignalResult{Name: domain.SignalMerchantLoyalty}

	if ext.RepeatMerchantRatio == nil && ext.RefundRatio == nil &&
		ext.DisputeFrequency == nil {
		res.Score = 0.5
		res.Category = domain.CategoryUnknown
		return res
	}

	repeat := valOr(ext.RepeatMerchantRatio, 0.5)
	refunds := valOr(ext.RefundRatio, 0.05)
	disputes := valOr(ext.DisputeFrequency, 0.01)

	score := 0.4*min(1, repeat) + 0.35*(1-min(1, refunds*10)) + 0.25*(1-min(1, disputes*20))
	score = clamp01(score)

	res.Score = round3(score)
	res.Available = true
	res.Impact = impact(score, cap)
	switch {
	case score >= 0.75:
		res.Category = "Premium"
	case score >= 0.5:
		res.Category = "Standard"
	default:
		res.Category = "Low"
	}
	return res
}

func repaymentVelocity(ext *domain.ExtendedSignals, cap int) domain.SignalResult {
	res := domain.SignalResult{Name: domain.SignalRepaymentVelocity}

	if ext.EarlyPaymentRatio == nil && ext.OntimePaymentRatio == nil &&
		ext.LatePaymentRatio == nil {
		res.Score = 0.5
		res.Category = domain.CategoryUnknown
		return res
	}

	early := valOr(ext.EarlyPaymentRatio, 0.2)
	ontime := valOr(ext.OntimePaymentRatio, 0.7)
	late := valOr(ext.LatePaymentRatio, 0.1)

	if total := early + ontime + late; total > 0 {
		early /= total
		ontime /= total
		late /= total
	}

	score := clamp01(early*1.0 + ontime*0.7 + late*0.2)

	res.Score = round3(score)
	res.Available = true
	res.Impact = impact(score, cap)
	switch {
	case early >= 0.4:
		res.Category = "Early Payer"
	case ontime >= 0.7:
		res.Category = "On-Time"
	default:
		res.Category = "Late Tendency"
	}
	return res
}

func geoResilience(ext *domain.ExtendedSignals, cap int) domain.SignalResult {
	res := domain.SignalResult{Name: domain.SignalGeoResilience}

	if ext.LocalEconomicIndex == nil && ext.IncomeLocalCorrelation == nil &&
		ext.EmploymentDiversityScore == nil {
		res.Score = 0.5
		res.Category = domain.CategoryUnknown
		return res
	}

	local := clamp01(valOr(ext.LocalEconomicIndex, 0.5))
	corr := clampFloat(valOr(ext.IncomeLocalCorrelation, 0.5), -1, 1)
	diversity := clamp01(valOr(ext.EmploymentDiversityScore, 0.5))

	// Income decoupled from local economic swings is resilience.
	score := 0.4*(1-math.Abs(corr)) + 0.3*local + 0.3*diversity
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
