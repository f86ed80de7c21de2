// Package scoring implements the credit risk scoring pipeline: deterministic
// rule scoring, network and behavioral signal adjustments, classifier fusion
// and uncertainty quantification.
package scoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/model"
)

// EngineVersion identifies the scoring pipeline revision in assessment
// metadata.
const EngineVersion = "talon-1.0"

// Engine runs the full assessment pipeline. The scoring parameters are fixed
// at construction; the predictor can be swapped at runtime for model rollout.
type Engine struct {
	cfg domain.ScoringConfig

	mu        sync.RWMutex
	predictor model.Predictor
}

// NewEngine creates a scoring engine with the given parameters and classifier.
func NewEngine(cfg domain.ScoringConfig, predictor model.Predictor) *Engine {
	return &Engine{cfg: cfg, predictor: predictor}
}

// SetPredictor atomically replaces the classifier. In-flight assessments
// finish with the predictor they started with.
func (e *Engine) SetPredictor(p model.Predictor) {
	e.mu.Lock()
	e.predictor = p
	e.mu.Unlock()
}

// Config returns the engine's scoring parameters.
func (e *Engine) Config() domain.ScoringConfig {
	return e.cfg
}

// Assess validates the applicant and runs the complete pipeline:
// base rule score, network composite, stability composite, sequential
// adjustment, ML fusion, uncertainty band and reason codes.
func (e *Engine) Assess(ctx context.Context, tenantID string, a *domain.Applicant) (*domain.Assessment, error) {
	start := time.Now()

	if err := a.Validate(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	predictor := e.predictor
	e.mu.RUnlock()

	base := BaseScore(a)
	network := EvaluateNetwork(a, e.cfg)
	stability := EvaluateStability(a, e.cfg)

	rule := ApplyAdjustments(base, network.TotalAdjustment, stability.TotalAdjustment, e.cfg)

	probability, err := predictor.Predict(a.FeatureVector())
	if err != nil {
		return nil, fmt.Errorf("predict default probability: %w", err)
	}

	ml, decision := Fuse(rule.FullyEnhancedScore, probability, stability.AvailableCount, e.cfg)
	decision.ReasonCodes = ReasonCodes(a)

	assessment := &domain.Assessment{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		ApplicantID: a.UserID,
		Timestamp:   time.Now().UTC(),
		Applicant:   a,
		RuleScoring: rule,
		Network:     network,
		Stability:   stability,
		ML:          ml,
		Decision:    decision,
		Metadata: domain.AssessmentMetadata{
			TraceID:       traceIDFromContext(ctx),
			ProcessMs:     time.Since(start).Milliseconds(),
			EngineVersion: EngineVersion,
		},
	}
	return assessment, nil
}

func traceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
