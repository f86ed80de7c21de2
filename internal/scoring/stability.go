package scoring

import (
	"math"

	"github.com/opensource-finance/talon/internal/domain"
)

// EvaluateStability runs all eight behavioral evaluators and aggregates them.
// The composite score is a weighted mean over available signals only, with
// weights renormalized to the available subset; the impact sum is clamped to
// the stability cap.
func EvaluateStability(a *domain.Applicant, cfg domain.ScoringConfig) domain.StabilityComposite {
	ext := &a.Extended

	signals := []domain.SignalResult{
		incomeRhythm(ext, cfg.IncomeRhythmCap),
		savingsCadence(ext, cfg.SavingsCadenceCap),
		devicePersistence(ext, cfg.DevicePersistenceCap),
		expenseElasticity(ext, cfg.ExpenseElasticityCap),
		utilityStability(ext, cfg.UtilityStabilityCap),
		merchantLoyalty(ext, cfg.MerchantLoyaltyCap),
		repaymentVelocity(ext, cfg.RepaymentVelocityCap),
		geoResilience(ext, cfg.GeoResilienceCap),
	}

	comp := domain.StabilityComposite{Signals: signals}

	weightedSum := 0.0
	totalWeight := 0.0
	totalImpact := 0

	for _, s := range signals {
		if !s.Available {
			continue
		}
		comp.AvailableCount++
		w := cfg.StabilityWeights[s.Name]
		weightedSum += s.Score * w
		totalWeight += w
		totalImpact += s.Impact
	}

	if totalWeight > 0 {
		comp.CompositeScore = round3(weightedSum / totalWeight)
	} else {
		comp.CompositeScore = 0.5
	}

	comp.TotalAdjustment = clampInt(totalImpact, -cfg.StabilityCap, cfg.StabilityCap)
	return comp
}

// ApplyAdjustments subtracts the network and stability adjustments from the
// base score in sequence, clamping after each stage. Positive adjustments
// indicate trust and therefore lower risk. When cfg.MaxTotalAdjustment is
// positive the combined adjustment is clamped before application.
func ApplyAdjustments(base int, network, stability int, cfg domain.ScoringConfig) domain.RuleScoring {
	netAdj := network
	stabAdj := stability

	if cfg.MaxTotalAdjustment > 0 {
		total := netAdj + stabAdj
		clamped := clampInt(total, -cfg.MaxTotalAdjustment, cfg.MaxTotalAdjustment)
		if total != clamped && total != 0 {
			// Scale both layers proportionally to preserve their ratio.
			ratio := float64(clamped) / float64(total)
			netAdj = int(math.Round(float64(netAdj) * ratio))
			stabAdj = clamped - netAdj
		}
	}

	enhanced := clampInt(base-netAdj, 0, MaxScore)
	fully := clampInt(enhanced-stabAdj, 0, MaxScore)

	return domain.RuleScoring{
		BaseScore:            base,
		NetworkAdjustedScore: enhanced,
		FullyEnhancedScore:   fully,
		NetworkAdjustment:    netAdj,
		StabilityAdjustment:  stabAdj,
	}
}
