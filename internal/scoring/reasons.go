package scoring

import (
	"github.com/opensource-finance/talon/internal/domain"
)

// Built-in reason codes, emitted in a fixed priority order so identical
// inputs always produce identical code lists.
const (
	ReasonNewAccount     = "R03: New account (less than 6 months)"
	ReasonDeviceChurn    = "R05: Frequent device changes"
	ReasonLocationRisk   = "R07: High-risk location activity"
	ReasonFraudHistory   = "R10: Historical fraud flag on account"
	ReasonChargebacks    = "R11: Chargebacks detected"
	ReasonMicroStructure = "R12: High frequency of low-value transactions"
)

// ReasonCodes derives the built-in explanation codes from the required
// applicant fields. Operator policy flags append after these.
func ReasonCodes(a *domain.Applicant) []string {
	var codes []string

	if a.PreviousFraudFlag {
		codes = append(codes, ReasonFraudHistory)
	}
	if a.ChargebackCount >= 1 {
		codes = append(codes, ReasonChargebacks)
	}
	if a.LocationRiskScore >= 0.7 {
		codes = append(codes, ReasonLocationRisk)
	}
	if a.TransactionCount30d >= 100 && a.AvgTransactionAmount < 50 {
		codes = append(codes, ReasonMicroStructure)
	}
	if a.DeviceChangeFrequency >= 4 {
		codes = append(codes, ReasonDeviceChurn)
	}
	if a.AccountAgeMonths < 6 {
		codes = append(codes, ReasonNewAccount)
	}

	return codes
}
