//go:build integration

// Package integration contains end-to-end tests that run against a live
// talon instance. Start the server first, then run:
//
//	TALON_TEST_URL=http://localhost:8080 go test -tags=integration ./tests/integration/
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

const defaultBaseURL = "http://localhost:8080"

func baseURL() string {
	if url := os.Getenv("TALON_TEST_URL"); url != "" {
		return url
	}
	return defaultBaseURL
}

var client = &http.Client{Timeout: 10 * time.Second}

// applicant mirrors the wire shape of an assessment request body.
type applicant struct {
	UserID                string                 `json:"user_id"`
	Age                   int                    `json:"age"`
	Occupation            string                 `json:"occupation"`
	MonthlyIncome         float64                `json:"monthly_income"`
	TransactionCount30d   int                    `json:"transaction_count_30d"`
	AvgTransactionAmount  float64                `json:"avg_transaction_amount"`
	LocationRiskScore     float64                `json:"location_risk_score"`
	DeviceChangeFrequency int                    `json:"device_change_frequency"`
	PreviousFraudFlag     bool                   `json:"previous_fraud_flag"`
	AccountAgeMonths      int                    `json:"account_age_months"`
	ChargebackCount       int                    `json:"chargeback_count"`
	Extended              map[string]interface{} `json:"extended,omitempty"`
}

type assessResponse struct {
	AssessmentID string `json:"assessmentId"`
	ApplicantID  string `json:"applicantId"`
	Decision     struct {
		FinalScore int    `json:"finalScore"`
		RiskBand   string `json:"riskBand"`
		ScoreRange struct {
			Lower int `json:"lower"`
			Upper int `json:"upper"`
		} `json:"scoreRange"`
		ReasonCodes []string `json:"reasonCodes"`
	} `json:"decision"`
	RuleScoring struct {
		BaseScore          int `json:"baseScore"`
		FullyEnhancedScore int `json:"fullyEnhancedScore"`
	} `json:"ruleScoring"`
	ML struct {
		Probability float64 `json:"probability"`
		Score       int     `json:"score"`
	} `json:"ml"`
	Cached   bool `json:"cached"`
	Metadata struct {
		TraceID       string `json:"traceId"`
		EngineVersion string `json:"engineVersion"`
	} `json:"metadata"`
}

func assess(t *testing.T, tenantID string, a applicant) (*assessResponse, int) {
	t.Helper()

	body, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("failed to marshal applicant: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL()+"/assess", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed (is the server running at %s?): %v", baseURL(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode
	}

	var out assessResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return &out, resp.StatusCode
}

func steadyApplicant(userID string) applicant {
	return applicant{
		UserID:               userID,
		Age:                  34,
		Occupation:           "teacher",
		MonthlyIncome:        2800,
		TransactionCount30d:  45,
		AvgTransactionAmount: 320,
		LocationRiskScore:    0.15,
		AccountAgeMonths:     30,
	}
}

func TestHealthcheck(t *testing.T) {
	resp, err := client.Get(baseURL() + "/health")
	if err != nil {
		t.Fatalf("health request failed (is the server running at %s?): %v", baseURL(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", resp.StatusCode)
	}
}

func TestAssessScenarios(t *testing.T) {
	tenantID := fmt.Sprintf("it-tenant-%d", time.Now().UnixNano())

	t.Run("SteadyEarner", func(t *testing.T) {
		// Stable income, moderate activity, long account tenure: should
		// never land in the High band.
		out, status := assess(t, tenantID, steadyApplicant("it-user-steady"))
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}

		if out.Decision.RiskBand == "High" {
			t.Errorf("steady applicant scored High: %+v", out.Decision)
		}
		if out.Decision.FinalScore < 0 || out.Decision.FinalScore > 1000 {
			t.Errorf("final score out of range: %d", out.Decision.FinalScore)
		}
		if out.Decision.ScoreRange.Lower > out.Decision.FinalScore ||
			out.Decision.ScoreRange.Upper < out.Decision.FinalScore {
			t.Errorf("score %d outside its own range [%d, %d]",
				out.Decision.FinalScore, out.Decision.ScoreRange.Lower, out.Decision.ScoreRange.Upper)
		}
		if out.AssessmentID == "" {
			t.Error("missing assessment ID")
		}
		if out.ApplicantID != "it-user-steady" {
			t.Errorf("expected applicantId 'it-user-steady', got %q", out.ApplicantID)
		}
		if out.Metadata.EngineVersion == "" {
			t.Error("missing engine version in metadata")
		}
		if out.Metadata.TraceID == "" {
			t.Error("missing trace ID in metadata")
		}
	})

	t.Run("PriorFraudHighVelocity", func(t *testing.T) {
		// Fraud history plus chargebacks plus a risky location should
		// produce the fraud and chargeback reason codes.
		risky := applicant{
			UserID:               "it-user-risky",
			Age:                  26,
			Occupation:           "unemployed",
			MonthlyIncome:        400,
			TransactionCount30d:  220,
			AvgTransactionAmount: 35,
			LocationRiskScore:    0.9,
			PreviousFraudFlag:    true,
			AccountAgeMonths:     2,
			ChargebackCount:      5,
		}

		out, status := assess(t, tenantID, risky)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}

		if out.RuleScoring.BaseScore < 700 {
			t.Errorf("expected high rule score for risky profile, got %d", out.RuleScoring.BaseScore)
		}

		var sawFraud, sawChargebacks bool
		for _, code := range out.Decision.ReasonCodes {
			switch {
			case len(code) >= 3 && code[:3] == "R10":
				sawFraud = true
			case len(code) >= 3 && code[:3] == "R11":
				sawChargebacks = true
			}
		}
		if !sawFraud {
			t.Errorf("expected fraud history reason code, got %v", out.Decision.ReasonCodes)
		}
		if !sawChargebacks {
			t.Errorf("expected chargeback reason code, got %v", out.Decision.ReasonCodes)
		}
	})

	t.Run("ExtendedSignalsTightenRange", func(t *testing.T) {
		// Supplying behavioral signals reduces uncertainty, so the score
		// range should be no wider than the bare-minimum submission.
		bare, status := assess(t, tenantID, steadyApplicant("it-user-bare"))
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}

		enriched := steadyApplicant("it-user-enriched")
		enriched.Extended = map[string]interface{}{
			"avg_contact_credit_score":      720.0,
			"low_risk_contact_ratio":        0.8,
			"current_address_tenure_months": 36,
			"address_change_count_12m":      0,
			"utility_payment_ontime_ratio":  0.95,
			"utility_months_active":         24,
			"ontime_payment_ratio":          0.9,
			"early_payment_ratio":           0.3,
		}

		out, status := assess(t, tenantID, enriched)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}

		bareWidth := bare.Decision.ScoreRange.Upper - bare.Decision.ScoreRange.Lower
		enrichedWidth := out.Decision.ScoreRange.Upper - out.Decision.ScoreRange.Lower
		if enrichedWidth > bareWidth {
			t.Errorf("expected tighter range with extended signals: bare %d, enriched %d",
				bareWidth, enrichedWidth)
		}
	})

	t.Run("IdenticalResubmissionCached", func(t *testing.T) {
		a := steadyApplicant("it-user-cached")

		first, status := assess(t, tenantID, a)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if first.Cached {
			t.Error("first submission unexpectedly served from cache")
		}

		second, status := assess(t, tenantID, a)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if !second.Cached {
			t.Error("identical resubmission not served from cache")
		}
		if second.AssessmentID != first.AssessmentID {
			t.Errorf("cached response has different assessment ID: %s vs %s",
				first.AssessmentID, second.AssessmentID)
		}
		if second.Decision.FinalScore != first.Decision.FinalScore {
			t.Errorf("cached response has different score: %d vs %d",
				first.Decision.FinalScore, second.Decision.FinalScore)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		// Distinct user IDs defeat the cache; identical signals must still
		// produce identical decisions.
		a1 := steadyApplicant("it-user-det-a")
		a2 := steadyApplicant("it-user-det-b")

		out1, _ := assess(t, tenantID, a1)
		out2, _ := assess(t, tenantID, a2)

		if out1.Decision.FinalScore != out2.Decision.FinalScore {
			t.Errorf("identical signals scored differently: %d vs %d",
				out1.Decision.FinalScore, out2.Decision.FinalScore)
		}
		if out1.Decision.RiskBand != out2.Decision.RiskBand {
			t.Errorf("identical signals banded differently: %s vs %s",
				out1.Decision.RiskBand, out2.Decision.RiskBand)
		}
	})
}

func TestAssessValidation(t *testing.T) {
	tenantID := fmt.Sprintf("it-tenant-%d", time.Now().UnixNano())

	t.Run("MissingUserID", func(t *testing.T) {
		a := steadyApplicant("")
		if _, status := assess(t, tenantID, a); status != http.StatusBadRequest {
			t.Errorf("expected 400 for missing user_id, got %d", status)
		}
	})

	t.Run("MissingTenantHeader", func(t *testing.T) {
		if _, status := assess(t, "", steadyApplicant("it-user-notenant")); status != http.StatusBadRequest {
			t.Errorf("expected 400 without X-Tenant-ID, got %d", status)
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, baseURL()+"/assess", bytes.NewReader([]byte("{not json")))
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", tenantID)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 for malformed body, got %d", resp.StatusCode)
		}
	})
}

func TestAssessmentRetrieval(t *testing.T) {
	tenantID := fmt.Sprintf("it-tenant-%d", time.Now().UnixNano())

	created, status := assess(t, tenantID, steadyApplicant("it-user-lookup"))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	t.Run("GetByID", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, baseURL()+"/assessments/"+created.AssessmentID, nil)
		req.Header.Set("X-Tenant-ID", tenantID)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var stored struct {
			ID       string `json:"id"`
			Decision struct {
				FinalScore int `json:"finalScore"`
			} `json:"decision"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if stored.ID != created.AssessmentID {
			t.Errorf("expected ID %s, got %s", created.AssessmentID, stored.ID)
		}
		if stored.Decision.FinalScore != created.Decision.FinalScore {
			t.Errorf("stored score %d does not match assessed score %d",
				stored.Decision.FinalScore, created.Decision.FinalScore)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, baseURL()+"/assessments/"+created.AssessmentID, nil)
		req.Header.Set("X-Tenant-ID", tenantID+"-other")

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 across tenants, got %d", resp.StatusCode)
		}
	})
}
