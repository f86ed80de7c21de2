package scoring

import (
	"testing"

	"github.com/opensource-finance/talon/internal/domain"
)

func TestEvaluateStability(t *testing.T) {
	cfg := domain.DefaultScoringConfig()

	t.Run("NoSignalsIsNeutral", func(t *testing.T) {
		a := domain.Applicant{}
		comp := EvaluateStability(&a, cfg)
		if comp.AvailableCount != 0 {
			t.Errorf("AvailableCount = %d, want 0", comp.AvailableCount)
		}
		if comp.CompositeScore != 0.5 {
			t.Errorf("CompositeScore = %v, want 0.5", comp.CompositeScore)
		}
		if comp.TotalAdjustment != 0 {
			t.Errorf("TotalAdjustment = %d, want 0", comp.TotalAdjustment)
		}
		if len(comp.Signals) != len(domain.StabilitySignalNames) {
			t.Errorf("len(Signals) = %d, want %d", len(comp.Signals), len(domain.StabilitySignalNames))
		}
	})

	t.Run("SingleSignalDominatesComposite", func(t *testing.T) {
		// With only one signal available the weights renormalize to it.
		a := domain.Applicant{
			Extended: domain.ExtendedSignals{
				UtilityPaymentOntimeRatio: fptr(1),
				UtilityPaymentVariance:    fptr(0),
				UtilityMonthsActive:       iptr(24),
			},
		}
		comp := EvaluateStability(&a, cfg)
		if comp.AvailableCount != 1 {
			t.Errorf("AvailableCount = %d, want 1", comp.AvailableCount)
		}
		if comp.CompositeScore != 1.0 {
			t.Errorf("CompositeScore = %v, want 1.0", comp.CompositeScore)
		}
		if comp.TotalAdjustment != 35 {
			t.Errorf("TotalAdjustment = %d, want 35", comp.TotalAdjustment)
		}
	})

	t.Run("PositiveSumClampedToCap", func(t *testing.T) {
		a := domain.Applicant{Extended: bestCaseSignals()}
		comp := EvaluateStability(&a, cfg)
		if comp.AvailableCount != 8 {
			t.Errorf("AvailableCount = %d, want 8", comp.AvailableCount)
		}
		if comp.CompositeScore != 1.0 {
			t.Errorf("CompositeScore = %v, want 1.0", comp.CompositeScore)
		}
		// Raw impact sum is 355.
		if comp.TotalAdjustment != cfg.StabilityCap {
			t.Errorf("TotalAdjustment = %d, want %d", comp.TotalAdjustment, cfg.StabilityCap)
		}
	})

	t.Run("NegativeSumClampedToCap", func(t *testing.T) {
		a := domain.Applicant{
			Extended: domain.ExtendedSignals{
				IncomeCoefficientOfVariation: fptr(2),
				SeasonalAdjustmentFactor:     fptr(0),
				IncomeFrequencyMonths:        iptr(0),
				MicroSavesPerMonth:           fptr(0),
				SavingsPersistenceMonths:     iptr(0),
				HasEscrowCommitment:          bptr(false),
				DeviceTenureMonths:           iptr(0),
				OSChangeCount12m:             iptr(6),
				AppReinstallCount:            iptr(6),
				ExpenseIncomeCorrelation:     fptr(0.1),
				ExpenseVolatility:            fptr(1),
				UtilityPaymentOntimeRatio:    fptr(0),
				UtilityPaymentVariance:       fptr(1),
				UtilityMonthsActive:          iptr(0),
				RepeatMerchantRatio:          fptr(0),
				RefundRatio:                  fptr(0.5),
				DisputeFrequency:             fptr(0.5),
				EarlyPaymentRatio:            fptr(0),
				OntimePaymentRatio:           fptr(0),
				LatePaymentRatio:             fptr(1),
				LocalEconomicIndex:           fptr(0),
				IncomeLocalCorrelation:       fptr(1),
				EmploymentDiversityScore:     fptr(0),
			},
		}
		comp := EvaluateStability(&a, cfg)
		if comp.TotalAdjustment != -cfg.StabilityCap {
			t.Errorf("TotalAdjustment = %d, want %d", comp.TotalAdjustment, -cfg.StabilityCap)
		}
	})
}

// bestCaseSignals fills every behavioral field with its best-case value so
// each evaluator scores 1.0.
func bestCaseSignals() domain.ExtendedSignals {
	return domain.ExtendedSignals{
		IncomeCoefficientOfVariation: fptr(0),
		SeasonalAdjustmentFactor:     fptr(1),
		IncomeFrequencyMonths:        iptr(12),
		MicroSavesPerMonth:           fptr(4),
		SavingsPersistenceMonths:     iptr(12),
		HasEscrowCommitment:          bptr(true),
		DeviceTenureMonths:           iptr(24),
		OSChangeCount12m:             iptr(0),
		AppReinstallCount:            iptr(0),
		ExpenseIncomeCorrelation:     fptr(0.6),
		ExpenseVolatility:            fptr(0),
		UtilityPaymentOntimeRatio:    fptr(1),
		UtilityPaymentVariance:       fptr(0),
		UtilityMonthsActive:          iptr(24),
		RepeatMerchantRatio:          fptr(1),
		RefundRatio:                  fptr(0),
		DisputeFrequency:             fptr(0),
		EarlyPaymentRatio:            fptr(1),
		OntimePaymentRatio:           fptr(0),
		LatePaymentRatio:             fptr(0),
		LocalEconomicIndex:           fptr(1),
		IncomeLocalCorrelation:       fptr(0),
		EmploymentDiversityScore:     fptr(1),
	}
}

func TestApplyAdjustments(t *testing.T) {
	cfg := domain.DefaultScoringConfig()

	t.Run("SequentialSubtraction", func(t *testing.T) {
		rule := ApplyAdjustments(500, 104, 30, cfg)
		if rule.BaseScore != 500 {
			t.Errorf("BaseScore = %d, want 500", rule.BaseScore)
		}
		if rule.NetworkAdjustedScore != 396 {
			t.Errorf("NetworkAdjustedScore = %d, want 396", rule.NetworkAdjustedScore)
		}
		if rule.FullyEnhancedScore != 366 {
			t.Errorf("FullyEnhancedScore = %d, want 366", rule.FullyEnhancedScore)
		}
	})

	t.Run("ClampedAtZero", func(t *testing.T) {
		rule := ApplyAdjustments(100, 80, 80, cfg)
		if rule.NetworkAdjustedScore != 20 {
			t.Errorf("NetworkAdjustedScore = %d, want 20", rule.NetworkAdjustedScore)
		}
		if rule.FullyEnhancedScore != 0 {
			t.Errorf("FullyEnhancedScore = %d, want 0", rule.FullyEnhancedScore)
		}
	})

	t.Run("NegativeAdjustmentsRaiseRisk", func(t *testing.T) {
		rule := ApplyAdjustments(900, -60, -80, cfg)
		if rule.NetworkAdjustedScore != 960 {
			t.Errorf("NetworkAdjustedScore = %d, want 960", rule.NetworkAdjustedScore)
		}
		if rule.FullyEnhancedScore != 1000 {
			t.Errorf("FullyEnhancedScore = %d, want 1000", rule.FullyEnhancedScore)
		}
	})

	t.Run("GlobalCapScalesProportionally", func(t *testing.T) {
		capped := cfg
		capped.MaxTotalAdjustment = 100
		rule := ApplyAdjustments(500, 80, 80, capped)
		if rule.NetworkAdjustment != 50 || rule.StabilityAdjustment != 50 {
			t.Errorf("adjustments = %d/%d, want 50/50", rule.NetworkAdjustment, rule.StabilityAdjustment)
		}
		if rule.FullyEnhancedScore != 400 {
			t.Errorf("FullyEnhancedScore = %d, want 400", rule.FullyEnhancedScore)
		}
	})

	t.Run("GlobalCapDisabledByDefault", func(t *testing.T) {
		rule := ApplyAdjustments(500, 120, 150, cfg)
		if rule.NetworkAdjustment != 120 || rule.StabilityAdjustment != 150 {
			t.Errorf("adjustments = %d/%d, want 120/150", rule.NetworkAdjustment, rule.StabilityAdjustment)
		}
		if rule.FullyEnhancedScore != 230 {
			t.Errorf("FullyEnhancedScore = %d, want 230", rule.FullyEnhancedScore)
		}
	})
}
