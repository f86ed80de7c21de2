package domain

import "time"

// FlagConfig defines an operator-authored policy flag. The expression is a
// CEL program over the nine required applicant variables; it must evaluate to
// bool. When it fires, Code is appended to the decision's reason codes after
// the built-in codes. Flags never change the numeric score.
type FlagConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression, e.g. "chargeback_count >= 2 && account_age_months < 12"
	Expression string `json:"expression"`

	// Code is the reason code emitted when the expression is true.
	Code string `json:"code"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// FlagResult is the outcome of evaluating one policy flag.
type FlagResult struct {
	FlagID string `json:"flagId"`
	Code   string `json:"code"`
	Fired  bool   `json:"fired"`
	Err    string `json:"err,omitempty"`
}
