package worker

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/talon/internal/bus"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/flags"
	"github.com/opensource-finance/talon/internal/model"
	"github.com/opensource-finance/talon/internal/scoring"
)

// memoryRepo is a minimal in-memory Repository for worker tests.
type memoryRepo struct {
	mu          sync.Mutex
	assessments map[string]*domain.Assessment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{assessments: make(map[string]*domain.Assessment)}
}

func (m *memoryRepo) SaveAssessment(_ context.Context, tenantID string, a *domain.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessments[tenantID+":"+a.ID] = a
	return nil
}

func (m *memoryRepo) GetAssessment(_ context.Context, tenantID, assessmentID string) (*domain.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assessments[tenantID+":"+assessmentID]; ok {
		return a, nil
	}
	return nil, nil
}

func (m *memoryRepo) ListAssessmentsByApplicant(_ context.Context, _, _ string, _ time.Time) ([]*domain.Assessment, error) {
	return nil, nil
}

func (m *memoryRepo) GetStats(_ context.Context, _ string) (*domain.Stats, error) {
	return &domain.Stats{}, nil
}

func (m *memoryRepo) SaveFlagConfig(_ context.Context, _ string, _ *domain.FlagConfig) error {
	return nil
}

func (m *memoryRepo) GetFlagConfig(_ context.Context, _, _ string) (*domain.FlagConfig, error) {
	return nil, nil
}

func (m *memoryRepo) ListFlagConfigs(_ context.Context, _ string) ([]*domain.FlagConfig, error) {
	return nil, nil
}

func (m *memoryRepo) DeleteFlagConfig(_ context.Context, _, _ string) error { return nil }
func (m *memoryRepo) Ping(_ context.Context) error                          { return nil }
func (m *memoryRepo) Close() error                                          { return nil }

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assessments)
}

// slowRepo delays SaveAssessment and signals when a save begins, for
// shutdown-drain tests.
type slowRepo struct {
	*memoryRepo
	entered chan struct{}
	delay   time.Duration
}

func (s *slowRepo) SaveAssessment(ctx context.Context, tenantID string, a *domain.Assessment) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	time.Sleep(s.delay)
	return s.memoryRepo.SaveAssessment(ctx, tenantID, a)
}

func testApplicant(userID string) *domain.Applicant {
	return &domain.Applicant{
		UserID:               userID,
		Age:                  30,
		Occupation:           "engineer",
		MonthlyIncome:        3000,
		TransactionCount30d:  50,
		AvgTransactionAmount: 500,
		AccountAgeMonths:     24,
	}
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	engine := scoring.NewEngine(domain.DefaultScoringConfig(), model.Fixed{Probability: 0.3})

	flagEngine, err := flags.NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create flag engine: %v", err)
	}

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, newMemoryRepo(), engine, flagEngine)

		cfg := Config{
			TenantIDs:   []string{"tenant-001"},
			WorkerCount: 1,
		}

		if err := w.Start(cfg); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessAssessmentRequest", func(t *testing.T) {
		repo := newMemoryRepo()
		w := NewWorker(eventBus, repo, engine, flagEngine)

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		var completedReceived atomic.Bool
		var completedPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicAssessmentCompleted, func(ctx context.Context, msg *domain.Message) error {
			completedPayload = msg.Payload
			completedReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		req := AssessmentRequest{
			TenantID:  "tenant-test",
			TraceID:   "trace-001",
			Applicant: testApplicant("user-001"),
		}

		payload, _ := json.Marshal(req)
		if err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicAssessmentRequested, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !completedReceived.Load() {
			t.Fatal("expected completed assessment to be published")
		}

		var assessment domain.Assessment
		if err := json.Unmarshal(completedPayload, &assessment); err != nil {
			t.Fatalf("failed to parse assessment: %v", err)
		}

		if assessment.ApplicantID != "user-001" {
			t.Errorf("expected applicantID 'user-001', got '%s'", assessment.ApplicantID)
		}
		if assessment.TenantID != "tenant-test" {
			t.Errorf("expected tenantID 'tenant-test', got '%s'", assessment.TenantID)
		}
		if assessment.Decision.FinalScore <= 0 {
			t.Errorf("expected positive final score, got %d", assessment.Decision.FinalScore)
		}

		if repo.count() != 1 {
			t.Errorf("expected 1 persisted assessment, got %d", repo.count())
		}
	})

	t.Run("AlertPublishedForHighRisk", func(t *testing.T) {
		// A high default probability pushes the fused score into the High band.
		riskyEngine := scoring.NewEngine(domain.DefaultScoringConfig(), model.Fixed{Probability: 0.95})
		w := NewWorker(eventBus, newMemoryRepo(), riskyEngine, flagEngine)

		cfg := Config{
			TenantIDs: []string{"tenant-alert"},
		}
		w.Start(cfg)
		defer w.Stop()

		var alertReceived atomic.Bool

		eventBus.Subscribe(context.Background(), "tenant-alert", domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			alertReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		applicant := testApplicant("user-risky")
		applicant.PreviousFraudFlag = true
		applicant.ChargebackCount = 5
		applicant.LocationRiskScore = 0.9

		req := AssessmentRequest{
			TenantID:  "tenant-alert",
			Applicant: applicant,
		}

		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), "tenant-alert", domain.TopicAssessmentRequested, payload)

		time.Sleep(100 * time.Millisecond)

		if !alertReceived.Load() {
			t.Error("expected alert to be published for high risk assessment")
		}
	})

	t.Run("PolicyFlagCodesAppended", func(t *testing.T) {
		taggedEngine, err := flags.NewEngine(5)
		if err != nil {
			t.Fatalf("failed to create flag engine: %v", err)
		}
		err = taggedEngine.LoadFlag(&domain.FlagConfig{
			ID:         "low-income",
			Name:       "Low Income",
			Expression: "monthly_income < 5000.0",
			Code:       "F20: Income below review threshold",
			Enabled:    true,
		})
		if err != nil {
			t.Fatalf("LoadFlag failed: %v", err)
		}

		w := NewWorker(eventBus, newMemoryRepo(), engine, taggedEngine)

		cfg := Config{
			TenantIDs: []string{"tenant-flags"},
		}
		w.Start(cfg)
		defer w.Stop()

		var payloadCh = make(chan []byte, 1)
		eventBus.Subscribe(context.Background(), "tenant-flags", domain.TopicAssessmentCompleted, func(ctx context.Context, msg *domain.Message) error {
			select {
			case payloadCh <- msg.Payload:
			default:
			}
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		req := AssessmentRequest{
			TenantID:  "tenant-flags",
			Applicant: testApplicant("user-flagged"),
		}
		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), "tenant-flags", domain.TopicAssessmentRequested, payload)

		select {
		case data := <-payloadCh:
			var assessment domain.Assessment
			if err := json.Unmarshal(data, &assessment); err != nil {
				t.Fatalf("failed to parse assessment: %v", err)
			}
			found := false
			for _, code := range assessment.Decision.ReasonCodes {
				if code == "F20: Income below review threshold" {
					found = true
				}
			}
			if !found {
				t.Errorf("expected fired flag code in reason codes, got %v", assessment.Decision.ReasonCodes)
			}
			if assessment.Metadata.FlagsEvaluated != 1 {
				t.Errorf("expected 1 flag evaluated, got %d", assessment.Metadata.FlagsEvaluated)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for completed assessment")
		}
	})

	t.Run("StopWaitsForInFlightRequests", func(t *testing.T) {
		repo := &slowRepo{
			memoryRepo: newMemoryRepo(),
			entered:    make(chan struct{}, 1),
			delay:      200 * time.Millisecond,
		}
		w := NewWorker(eventBus, repo, engine, flagEngine)

		cfg := Config{
			TenantIDs: []string{"tenant-drain"},
		}
		w.Start(cfg)

		time.Sleep(50 * time.Millisecond)

		req := AssessmentRequest{
			TenantID:  "tenant-drain",
			Applicant: testApplicant("user-inflight"),
		}
		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), "tenant-drain", domain.TopicAssessmentRequested, payload)

		// Wait until the handler is mid-save, then stop.
		select {
		case <-repo.entered:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for request to start processing")
		}

		if err := w.Stop(); err != nil {
			t.Fatalf("Stop failed: %v", err)
		}

		// Stop must not return until the in-flight request has persisted.
		if repo.count() != 1 {
			t.Errorf("expected 1 persisted assessment after Stop, got %d", repo.count())
		}
	})

	t.Run("InvalidPayloadIgnored", func(t *testing.T) {
		repo := newMemoryRepo()
		w := NewWorker(eventBus, repo, engine, flagEngine)

		cfg := Config{
			TenantIDs: []string{"tenant-bad"},
		}
		w.Start(cfg)
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		eventBus.Publish(context.Background(), "tenant-bad", domain.TopicAssessmentRequested, []byte("not json"))
		eventBus.Publish(context.Background(), "tenant-bad", domain.TopicAssessmentRequested, []byte(`{"tenantId":"tenant-bad"}`))

		time.Sleep(100 * time.Millisecond)

		if repo.count() != 0 {
			t.Errorf("expected no persisted assessments, got %d", repo.count())
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, newMemoryRepo(), engine, flagEngine)

		cfg := Config{
			TenantIDs: []string{"tenant-a", "tenant-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}

func TestAssessmentRequestParsing(t *testing.T) {
	req := AssessmentRequest{
		TenantID:  "tenant-001",
		TraceID:   "trace-456",
		Applicant: testApplicant("user-123"),
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed AssessmentRequest
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.TenantID != req.TenantID {
		t.Errorf("expected TenantID '%s', got '%s'", req.TenantID, parsed.TenantID)
	}
	if parsed.Applicant == nil || parsed.Applicant.UserID != "user-123" {
		t.Errorf("applicant not round-tripped: %+v", parsed.Applicant)
	}
}
