package scoring

import (
	"math"

	"github.com/opensource-finance/talon/internal/domain"
)

// MaxScore is the top of the rule score scale.
const MaxScore = 1000

// BaseScore computes the deterministic rule score from the required applicant
// fields. Higher means riskier. The result is clamped to [0, MaxScore].
func BaseScore(a *domain.Applicant) int {
	score := 0

	// Transaction volume buckets
	switch {
	case a.TransactionCount30d >= 100:
		score += 300
	case a.TransactionCount30d >= 50:
		score += 200
	case a.TransactionCount30d >= 20:
		score += 120
	default:
		score += 40
	}

	// Average transaction amount buckets
	switch {
	case a.AvgTransactionAmount >= 1000:
		score += 250
	case a.AvgTransactionAmount >= 200:
		score += 150
	default:
		score += 60
	}

	// Location risk scales linearly
	score += int(math.Round(a.LocationRiskScore * 200))

	// Device churn, capped
	score += min(a.DeviceChangeFrequency*40, 200)

	// Historical fraud flag
	if a.PreviousFraudFlag {
		score += 200
	}

	// Chargebacks, capped
	score += min(a.ChargebackCount*50, 200)

	return clampInt(score, 0, MaxScore)
}
