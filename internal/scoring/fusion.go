package scoring

import (
	"math"

	"github.com/opensource-finance/talon/internal/domain"
)

// Fuse blends the classifier probability with the fully enhanced rule score
// and derives the risk band, uncertainty range and default probability band.
// availableSignals is the count of behavioral signals that had real input;
// more observed signals means a tighter band.
func Fuse(ruleScore int, mlProbability float64, availableSignals int, cfg domain.ScoringConfig) (domain.MLScoring, domain.FusedDecision) {
	ml := domain.MLScoring{
		Probability: mlProbability,
		Score:       int(math.Round(mlProbability * MaxScore)),
	}

	final := int(math.Floor(cfg.MLWeight*float64(ml.Score) + cfg.RuleWeight*float64(ruleScore)))
	final = clampInt(final, 0, MaxScore)

	pct := cfg.BaseUncertaintyPct - float64(availableSignals)*cfg.UncertaintyPerSignalPct
	if pct < cfg.MinUncertaintyPct {
		pct = cfg.MinUncertaintyPct
	}

	points := int(math.Floor(float64(final) * pct / 100))

	estimate := round2(mlProbability * 100)
	half := pct / 2

	decision := domain.FusedDecision{
		FinalScore: final,
		RiskBand:   Band(final, cfg),
		ScoreRange: domain.ScoreRange{
			Lower: clampInt(final-points, 0, MaxScore),
			Upper: clampInt(final+points, 0, MaxScore),
		},
		ProbabilityOfDefault: domain.DefaultProbability{
			Estimate:       estimate,
			Lower:          round2(clampFloat(estimate-half, 0, 100)),
			Upper:          round2(clampFloat(estimate+half, 0, 100)),
			UncertaintyPct: pct,
		},
	}
	return ml, decision
}

// Band maps a fused score to its risk band.
func Band(score int, cfg domain.ScoringConfig) domain.RiskBand {
	switch {
	case score >= cfg.HighBandThreshold:
		return domain.RiskBandHigh
	case score >= cfg.ModerateBandThreshold:
		return domain.RiskBandModerate
	default:
		return domain.RiskBandLow
	}
}
