package domain

// Signal names used in composites, weight tables and result breakdowns.
const (
	SignalCommunityTrust    = "community_trust"
	SignalAddressStability  = "address_stability"
	SignalIncomeRhythm      = "income_rhythm"
	SignalSavingsCadence    = "savings_cadence"
	SignalDevicePersistence = "device_persistence"
	SignalExpenseElasticity = "expense_elasticity"
	SignalUtilityStability  = "utility_stability"
	SignalMerchantLoyalty   = "merchant_loyalty"
	SignalRepaymentVelocity = "repayment_velocity"
	SignalGeoResilience     = "geo_resilience"
)

// StabilitySignalNames lists the behavioral signals in composite weight order.
var StabilitySignalNames = []string{
	SignalIncomeRhythm,
	SignalSavingsCadence,
	SignalDevicePersistence,
	SignalExpenseElasticity,
	SignalUtilityStability,
	SignalMerchantLoyalty,
	SignalRepaymentVelocity,
	SignalGeoResilience,
}

// CategoryUnknown is reported for any signal whose inputs were all absent.
const CategoryUnknown = "Unknown"

// SignalResult is the outcome of evaluating one behavioral or network signal.
// When the signal is unavailable the score is pinned at the neutral 0.5 and
// the impact is zero, so downstream layers can sum impacts unconditionally.
type SignalResult struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Available bool    `json:"available"`
	Category  string  `json:"category"`
	Impact    int     `json:"impact"`
}

// NetworkComposite combines the community trust and address stability signals
// into a single capped adjustment. The total is clamped tighter than the sum
// of the member caps to limit how much network-derived data can move a score.
type NetworkComposite struct {
	CommunityTrust   SignalResult `json:"communityTrust"`
	AddressStability SignalResult `json:"addressStability"`
	TotalAdjustment  int          `json:"totalAdjustment"`
}

// StabilityComposite aggregates the eight behavioral signals. CompositeScore
// is a weighted mean over available signals only, with weights renormalized
// to the available subset; with nothing available it falls back to 0.5.
type StabilityComposite struct {
	CompositeScore  float64        `json:"compositeScore"`
	AvailableCount  int            `json:"availableCount"`
	TotalAdjustment int            `json:"totalAdjustment"`
	Signals         []SignalResult `json:"signals"`
}
