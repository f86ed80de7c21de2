package domain

import (
	"time"
)

// RiskBand is the categorical decision bucket for a fused score.
type RiskBand string

const (
	RiskBandLow      RiskBand = "Low"
	RiskBandModerate RiskBand = "Moderate"
	RiskBandHigh     RiskBand = "High"
)

// ScoreRange is the uncertainty interval around the final score.
type ScoreRange struct {
	Lower int `json:"lower"`
	Upper int `json:"upper"`
}

// DefaultProbability is the ML probability of default expressed as a
// percentage with an uncertainty band derived from signal availability.
type DefaultProbability struct {
	Estimate       float64 `json:"estimate"`
	Lower          float64 `json:"lower"`
	Upper          float64 `json:"upper"`
	UncertaintyPct float64 `json:"uncertaintyPct"`
}

// FusedDecision is the final output of the scoring pipeline.
type FusedDecision struct {
	FinalScore           int                `json:"finalScore"`
	RiskBand             RiskBand           `json:"riskBand"`
	ScoreRange           ScoreRange         `json:"scoreRange"`
	ProbabilityOfDefault DefaultProbability `json:"probabilityOfDefault"`
	ReasonCodes          []string           `json:"reasonCodes"`
}

// RuleScoring is the per-layer breakdown of the rule-side score.
// Each stage is the previous one with a capped adjustment subtracted
// (positive adjustments mean trust, which lowers risk).
type RuleScoring struct {
	BaseScore            int `json:"baseScore"`
	NetworkAdjustedScore int `json:"networkAdjustedScore"`
	FullyEnhancedScore   int `json:"fullyEnhancedScore"`
	NetworkAdjustment    int `json:"networkAdjustment"`
	StabilityAdjustment  int `json:"stabilityAdjustment"`
}

// MLScoring carries the classifier output used in fusion.
type MLScoring struct {
	Probability float64 `json:"probability"`
	Score       int     `json:"score"`
}

// AssessmentMetadata contains processing information.
type AssessmentMetadata struct {
	TraceID        string `json:"traceId"`
	ProcessMs      int64  `json:"processMs"`
	FlagsEvaluated int    `json:"flagsEvaluated"`
	EngineVersion  string `json:"engineVersion"`
}

// Assessment is the complete persisted result of scoring one applicant.
type Assessment struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	ApplicantID string    `json:"applicantId"`
	Timestamp   time.Time `json:"timestamp"`

	Applicant *Applicant `json:"applicant"`

	RuleScoring RuleScoring        `json:"ruleScoring"`
	Network     NetworkComposite   `json:"network"`
	Stability   StabilityComposite `json:"stability"`
	ML          MLScoring          `json:"ml"`
	Decision    FusedDecision      `json:"decision"`

	Metadata AssessmentMetadata `json:"metadata"`
}

// Stats summarizes assessment volume for a tenant.
type Stats struct {
	TotalAssessments int     `json:"totalAssessments"`
	LowRiskCount     int     `json:"lowRiskCount"`
	ModerateCount    int     `json:"moderateRiskCount"`
	HighRiskCount    int     `json:"highRiskCount"`
	AvgFinalScore    float64 `json:"avgFinalScore"`
}
