// Package domain defines the core interfaces and types for Talon.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRequired indicates a required applicant field is absent or malformed.
	ErrMissingRequired = errors.New("missing required applicant field")
)

// Applicant is the full input record for a credit risk assessment.
// The core required fields must always be present and validated before
// scoring; everything under Extended is independently optional.
type Applicant struct {
	UserID     string `json:"user_id"`
	Age        int    `json:"age"`
	Occupation string `json:"occupation"`

	MonthlyIncome         float64 `json:"monthly_income"`
	TransactionCount30d   int     `json:"transaction_count_30d"`
	AvgTransactionAmount  float64 `json:"avg_transaction_amount"`
	LocationRiskScore     float64 `json:"location_risk_score"`
	DeviceChangeFrequency int     `json:"device_change_frequency"`
	PreviousFraudFlag     bool    `json:"previous_fraud_flag"`
	AccountAgeMonths      int     `json:"account_age_months"`
	ChargebackCount       int     `json:"chargeback_count"`

	Extended ExtendedSignals `json:"extended,omitempty"`
}

// ExtendedSignals holds the optional behavioral and network inputs.
// Pointer fields distinguish "not provided" from a zero value; a signal whose
// fields are all nil is reported as unavailable rather than defaulted.
type ExtendedSignals struct {
	// Network / contact graph
	AvgContactCreditScore *float64 `json:"avg_contact_credit_score,omitempty"`
	LowRiskContactRatio   *float64 `json:"low_risk_contact_ratio,omitempty"`
	HighRiskContactRatio  *float64 `json:"high_risk_contact_ratio,omitempty"`
	NetworkStabilityRatio *float64 `json:"network_stability_ratio,omitempty"`

	// Address history
	AddressChangeCount12m      *int `json:"address_change_count_12m,omitempty"`
	CurrentAddressTenureMonths *int `json:"current_address_tenure_months,omitempty"`

	// Income rhythm
	IncomeCoefficientOfVariation *float64 `json:"income_coefficient_of_variation,omitempty"`
	SeasonalAdjustmentFactor     *float64 `json:"seasonal_adjustment_factor,omitempty"`
	IncomeFrequencyMonths        *int     `json:"income_frequency_months,omitempty"`

	// Savings cadence
	MicroSavesPerMonth       *float64 `json:"micro_saves_per_month,omitempty"`
	SavingsPersistenceMonths *int     `json:"savings_persistence_months,omitempty"`
	HasEscrowCommitment      *bool    `json:"has_escrow_commitment,omitempty"`

	// Device persistence
	DeviceTenureMonths *int `json:"device_tenure_months,omitempty"`
	OSChangeCount12m   *int `json:"os_change_count_12m,omitempty"`
	AppReinstallCount  *int `json:"app_reinstall_count,omitempty"`

	// Expense elasticity
	ExpenseIncomeCorrelation *float64 `json:"expense_income_correlation,omitempty"`
	ExpenseVolatility        *float64 `json:"expense_volatility,omitempty"`

	// Utility payments
	UtilityPaymentOntimeRatio *float64 `json:"utility_payment_ontime_ratio,omitempty"`
	UtilityPaymentVariance    *float64 `json:"utility_payment_variance,omitempty"`
	UtilityMonthsActive       *int     `json:"utility_months_active,omitempty"`

	// Merchant loyalty
	RepeatMerchantRatio *float64 `json:"repeat_merchant_ratio,omitempty"`
	RefundRatio         *float64 `json:"refund_ratio,omitempty"`
	DisputeFrequency    *float64 `json:"dispute_frequency,omitempty"`

	// Repayment velocity
	EarlyPaymentRatio  *float64 `json:"early_payment_ratio,omitempty"`
	OntimePaymentRatio *float64 `json:"ontime_payment_ratio,omitempty"`
	LatePaymentRatio   *float64 `json:"late_payment_ratio,omitempty"`

	// Geo-resilience
	LocalEconomicIndex       *float64 `json:"local_economic_index,omitempty"`
	IncomeLocalCorrelation   *float64 `json:"income_local_correlation,omitempty"`
	EmploymentDiversityScore *float64 `json:"employment_diversity_score,omitempty"`
}

// Validate checks the required fields. Optional fields are never validated
// here; out-of-range optional values are clamped by the scoring core instead.
func (a *Applicant) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("%w: user_id", ErrMissingRequired)
	}
	if a.Age <= 0 {
		return fmt.Errorf("%w: age", ErrMissingRequired)
	}
	if a.Occupation == "" {
		return fmt.Errorf("%w: occupation", ErrMissingRequired)
	}
	if a.MonthlyIncome < 0 {
		return fmt.Errorf("%w: monthly_income must be non-negative", ErrMissingRequired)
	}
	if a.TransactionCount30d < 0 {
		return fmt.Errorf("%w: transaction_count_30d must be non-negative", ErrMissingRequired)
	}
	if a.AvgTransactionAmount < 0 {
		return fmt.Errorf("%w: avg_transaction_amount must be non-negative", ErrMissingRequired)
	}
	if a.LocationRiskScore < 0 || a.LocationRiskScore > 1 {
		return fmt.Errorf("%w: location_risk_score must be in [0,1]", ErrMissingRequired)
	}
	if a.DeviceChangeFrequency < 0 {
		return fmt.Errorf("%w: device_change_frequency must be non-negative", ErrMissingRequired)
	}
	if a.AccountAgeMonths < 0 {
		return fmt.Errorf("%w: account_age_months must be non-negative", ErrMissingRequired)
	}
	if a.ChargebackCount < 0 {
		return fmt.Errorf("%w: chargeback_count must be non-negative", ErrMissingRequired)
	}
	return nil
}

// FeatureVector returns the ML feature vector in the order the classifier was
// trained on: age, monthly_income, transaction_count_30d,
// avg_transaction_amount, location_risk_score, device_change_frequency,
// previous_fraud_flag, account_age_months, chargeback_count.
func (a *Applicant) FeatureVector() []float64 {
	fraud := 0.0
	if a.PreviousFraudFlag {
		fraud = 1.0
	}
	v := make([]float64, 0, FeatureCount)
	return append(v,
		float64(a.Age),
		a.MonthlyIncome,
		float64(a.TransactionCount30d),
		a.AvgTransactionAmount,
		a.LocationRiskScore,
		float64(a.DeviceChangeFrequency),
		fraud,
		float64(a.AccountAgeMonths),
		float64(a.ChargebackCount),
	)
}

// FeatureCount is the length of the classifier feature vector.
const FeatureCount = 9
