package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/flags"
	"github.com/opensource-finance/talon/internal/scoring"
)

// assessmentCacheTTL is how long identical applicant submissions are served
// from cache without rescoring.
const assessmentCacheTTL = 15 * time.Minute

// statsWindow is the sliding window for the per-tenant volume counter.
const statsWindow = 24 * time.Hour

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	engine     *scoring.Engine
	flagEngine *flags.Engine
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *scoring.Engine, flagEngine *flags.Engine, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		engine:     engine,
		flagEngine: flagEngine,
		version:    version,
	}
}

// AssessResponse is the response for POST /assess.
type AssessResponse struct {
	AssessmentID string                    `json:"assessmentId"`
	ApplicantID  string                    `json:"applicantId"`
	Decision     domain.FusedDecision      `json:"decision"`
	RuleScoring  domain.RuleScoring        `json:"ruleScoring"`
	Network      domain.NetworkComposite   `json:"network"`
	Stability    domain.StabilityComposite `json:"stability"`
	ML           domain.MLScoring          `json:"ml"`
	Cached       bool                      `json:"cached"`
	Metadata     domain.AssessmentMetadata `json:"metadata"`
}

// Assess handles POST /assess requests.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var applicant domain.Applicant
	if err := json.NewDecoder(r.Body).Decode(&applicant); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := applicant.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	// Identical re-submissions return the cached decision unchanged.
	contentHash := applicantHash(&applicant)
	if h.cache != nil {
		if cached, err := h.cache.GetAssessment(ctx, tenantID, contentHash); err == nil && cached != nil {
			writeJSON(w, http.StatusOK, assessResponse(cached, true))
			return
		}
	}

	assessment, err := h.engine.Assess(ctx, tenantID, &applicant)
	if err != nil {
		if errors.Is(err, domain.ErrMissingRequired) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("assessment failed",
			"applicant_id", applicant.UserID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "assessment failed",
		})
		return
	}

	// Evaluate policy flags and append fired reason codes
	if h.flagEngine != nil && h.flagEngine.FlagsCount() > 0 {
		results, err := h.flagEngine.EvaluateAll(ctx, &applicant)
		if err == nil {
			assessment.Decision.ReasonCodes = flags.ApplyFlags(assessment.Decision.ReasonCodes, results)
			assessment.Metadata.FlagsEvaluated = len(results)
		}
	}

	// Persist
	if h.repo != nil {
		if err := h.repo.SaveAssessment(ctx, tenantID, assessment); err != nil {
			slog.Error("failed to save assessment",
				"assessment_id", assessment.ID,
				"error", err,
			)
		}
	}

	// Cache by content hash and bump the tenant volume counter
	if h.cache != nil {
		_ = h.cache.SetAssessment(ctx, tenantID, contentHash, assessment, assessmentCacheTTL)
		_, _ = h.cache.IncrementCounter(ctx, tenantID, "assessments", statsWindow)
	}

	// Publish completion event; high risk goes to the alert topic too
	if h.bus != nil {
		payload, _ := json.Marshal(assessment)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAssessmentCompleted, payload); err != nil {
			slog.Error("failed to publish assessment event",
				"assessment_id", assessment.ID,
				"error", err,
			)
		}
		if assessment.Decision.RiskBand == domain.RiskBandHigh {
			_ = h.bus.Publish(ctx, tenantID, domain.TopicAlert, payload)
		}
	}

	writeJSON(w, http.StatusOK, assessResponse(assessment, false))
}

func assessResponse(a *domain.Assessment, cached bool) AssessResponse {
	return AssessResponse{
		AssessmentID: a.ID,
		ApplicantID:  a.ApplicantID,
		Decision:     a.Decision,
		RuleScoring:  a.RuleScoring,
		Network:      a.Network,
		Stability:    a.Stability,
		ML:           a.ML,
		Cached:       cached,
		Metadata:     a.Metadata,
	}
}

// applicantHash returns a stable content hash for cache keying.
func applicantHash(a *domain.Applicant) string {
	data, _ := json.Marshal(a)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetAssessment retrieves an assessment by ID.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	assessmentID := chi.URLParam(r, "id")

	if assessmentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "assessment id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	assessment, err := h.repo.GetAssessment(ctx, tenantID, assessmentID)
	if err != nil {
		slog.Error("failed to get assessment", "id", assessmentID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "assessment not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, assessment)
}

// ListApplicantAssessments retrieves an applicant's recent assessments.
func (h *Handler) ListApplicantAssessments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	applicantID := chi.URLParam(r, "id")

	if applicantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "applicant id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -90)
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC3339",
			})
			return
		}
		since = parsed
	}

	assessments, err := h.repo.ListAssessmentsByApplicant(ctx, tenantID, applicantID, since)
	if err != nil {
		slog.Error("failed to list assessments", "applicant_id", applicantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list assessments",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessments": assessments,
		"count":       len(assessments),
	})
}

// GetStats returns assessment volume and band distribution for the tenant.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	stats, err := h.repo.GetStats(ctx, tenantID)
	if err != nil {
		slog.Error("failed to get stats", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ListFlags returns all loaded policy flags from the engine.
// Flags are loaded from the database at startup and can be reloaded via POST /flags/reload.
func (h *Handler) ListFlags(w http.ResponseWriter, r *http.Request) {
	loadedFlags := h.flagEngine.GetLoadedFlags()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flags":  loadedFlags,
		"count":  len(loadedFlags),
		"source": "database",
	})
}

// GetFlag retrieves a policy flag by ID from the loaded engine flags.
func (h *Handler) GetFlag(w http.ResponseWriter, r *http.Request) {
	flagID := chi.URLParam(r, "id")

	if flagID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "flag id is required",
		})
		return
	}

	for _, flag := range h.flagEngine.GetLoadedFlags() {
		if flag.ID == flagID {
			writeJSON(w, http.StatusOK, flag)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "flag not found",
	})
}

// CreateFlagRequest is the request body for creating a policy flag.
type CreateFlagRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Code        string `json:"code"`
	Enabled     bool   `json:"enabled"`
}

// GlobalTenantID is used for policy flags that apply to all tenants.
const GlobalTenantID = "*"

// CreateFlag creates a new policy flag and saves it to the database.
// Flags are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /flags/reload to hot-reload into the engine.
func (h *Handler) CreateFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression, and code are required",
		})
		return
	}

	flagConfig := &domain.FlagConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Code:        req.Code,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.flagEngine.LoadFlag(flagConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	// Persist to repository (global tenant ID)
	if h.repo != nil {
		if err := h.repo.SaveFlagConfig(ctx, GlobalTenantID, flagConfig); err != nil {
			slog.Error("failed to save flag config", "id", flagConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save flag",
			})
			return
		}
	}

	slog.Info("policy flag created", "id", flagConfig.ID, "name", flagConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"flag":    flagConfig,
		"message": "Flag created. Call POST /flags/reload to apply changes.",
	})
}

// DeleteFlag soft-deletes a policy flag and auto-reloads the engine.
func (h *Handler) DeleteFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flagID := chi.URLParam(r, "id")

	if flagID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "flag id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteFlagConfig(ctx, GlobalTenantID, flagID); err != nil {
			slog.Error("failed to delete flag", "id", flagID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "flag not found",
			})
			return
		}

		// Auto-reload after delete
		dbFlags, err := h.repo.ListFlagConfigs(ctx, GlobalTenantID)
		if err != nil {
			slog.Error("failed to reload flags after delete", "error", err)
		} else if err := h.flagEngine.ReloadFlags(dbFlags); err != nil {
			slog.Error("failed to reload flag engine after delete", "error", err)
		} else {
			slog.Info("flags auto-reloaded after delete", "count", len(dbFlags))
		}
	}

	slog.Info("policy flag deleted", "id", flagID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Flag deleted and engine reloaded.",
	})
}

// ReloadFlags reloads all policy flags from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadFlags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbFlags, err := h.repo.ListFlagConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list flags from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load flags from database",
		})
		return
	}

	if err := h.flagEngine.ReloadFlags(dbFlags); err != nil {
		slog.Error("failed to reload flags into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload flags: " + err.Error(),
		})
		return
	}

	slog.Info("flags reloaded from database", "count", len(dbFlags))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "flags reloaded successfully",
		"count":   len(dbFlags),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
