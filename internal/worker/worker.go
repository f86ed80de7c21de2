// Package worker provides async assessment processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/flags"
	"github.com/opensource-finance/talon/internal/scoring"
)

// Worker processes assessment requests asynchronously from the EventBus.
type Worker struct {
	bus        domain.EventBus
	repo       domain.Repository
	engine     *scoring.Engine
	flagEngine *flags.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, engine *scoring.Engine, flagEngine *flags.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        bus,
		repo:       repo,
		engine:     engine,
		flagEngine: flagEngine,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins processing assessment requests for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicAssessmentRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAssessmentRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processRequest(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicAssessmentRequested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processRequest(ctx, msg.TenantID, msg)
}

// AssessmentRequest is the message payload for async assessment processing.
type AssessmentRequest struct {
	TenantID  string            `json:"tenantId"`
	TraceID   string            `json:"traceId"`
	Applicant *domain.Applicant `json:"applicant"`
}

// processRequest runs an assessment request through the scoring pipeline.
// In-flight requests are tracked so Stop can wait for them to drain.
func (w *Worker) processRequest(ctx context.Context, tenantID string, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	start := time.Now()

	var req AssessmentRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse assessment request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if req.TenantID != "" {
		tenantID = req.TenantID
	}

	if req.Applicant == nil {
		slog.Error("assessment request without applicant",
			"message_id", msg.ID,
			"tenant_id", tenantID,
		)
		return domain.ErrMissingRequired
	}

	slog.Debug("processing assessment request",
		"applicant_id", req.Applicant.UserID,
		"tenant_id", tenantID,
	)

	// 1. Run the scoring pipeline
	assessment, err := w.engine.Assess(ctx, tenantID, req.Applicant)
	if err != nil {
		slog.Error("assessment failed",
			"applicant_id", req.Applicant.UserID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	// 2. Evaluate policy flags and append fired codes
	if w.flagEngine != nil && w.flagEngine.FlagsCount() > 0 {
		results, err := w.flagEngine.EvaluateAll(ctx, req.Applicant)
		if err == nil {
			assessment.Decision.ReasonCodes = flags.ApplyFlags(assessment.Decision.ReasonCodes, results)
			assessment.Metadata.FlagsEvaluated = len(results)
		}
	}

	// 3. Persist
	if w.repo != nil {
		if err := w.repo.SaveAssessment(ctx, tenantID, assessment); err != nil {
			slog.Error("failed to save assessment",
				"assessment_id", assessment.ID,
				"error", err,
			)
		}
	}

	// 4. Publish result to completion topic
	resultPayload, _ := json.Marshal(assessment)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAssessmentCompleted, resultPayload); err != nil {
		slog.Error("failed to publish assessment result",
			"assessment_id", assessment.ID,
			"error", err,
		)
	}

	// 5. High risk band also goes to the alert topic
	if assessment.Decision.RiskBand == domain.RiskBandHigh {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, resultPayload); err != nil {
			slog.Error("failed to publish alert",
				"assessment_id", assessment.ID,
				"error", err,
			)
		}
	}

	slog.Info("assessment processed",
		"assessment_id", assessment.ID,
		"applicant_id", assessment.ApplicantID,
		"tenant_id", tenantID,
		"risk_band", assessment.Decision.RiskBand,
		"final_score", assessment.Decision.FinalScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
