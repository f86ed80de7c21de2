// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveAssessment stores a completed assessment with tenant isolation.
func (r *SQLRepository) SaveAssessment(ctx context.Context, tenantID string, a *domain.Assessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	applicant, _ := json.Marshal(a.Applicant)
	ruleScoring, _ := json.Marshal(a.RuleScoring)
	network, _ := json.Marshal(a.Network)
	stability, _ := json.Marshal(a.Stability)
	ml, _ := json.Marshal(a.ML)
	decision, _ := json.Marshal(a.Decision)
	metadata, _ := json.Marshal(a.Metadata)

	query := `
		INSERT INTO assessments (
			id, tenant_id, applicant_id, final_score, risk_band, timestamp,
			applicant, rule_scoring, network, stability, ml, decision, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, a.ApplicantID,
		a.Decision.FinalScore, string(a.Decision.RiskBand), a.Timestamp,
		string(applicant), string(ruleScoring), string(network),
		string(stability), string(ml), string(decision), string(metadata),
	)
	return err
}

// GetAssessment retrieves an assessment by ID with tenant isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, applicant_id, timestamp,
			   applicant, rule_scoring, network, stability, ml, decision, metadata
		FROM assessments
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, assessmentID)
	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAssessmentsByApplicant retrieves assessments for an applicant since the
// given time, newest first, with tenant isolation.
func (r *SQLRepository) ListAssessmentsByApplicant(ctx context.Context, tenantID string, applicantID string, since time.Time) ([]*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, applicant_id, timestamp,
			   applicant, rule_scoring, network, stability, ml, decision, metadata
		FROM assessments
		WHERE tenant_id = ? AND applicant_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, applicantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []*domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}

	return assessments, rows.Err()
}

// GetStats aggregates assessment volume and band distribution for a tenant.
func (r *SQLRepository) GetStats(ctx context.Context, tenantID string) (*domain.Stats, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN risk_band = 'Low' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN risk_band = 'Moderate' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN risk_band = 'High' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(final_score), 0)
		FROM assessments
		WHERE tenant_id = ?
	`

	var stats domain.Stats
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(
		&stats.TotalAssessments,
		&stats.LowRiskCount,
		&stats.ModerateCount,
		&stats.HighRiskCount,
		&stats.AvgFinalScore,
	)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// SaveFlagConfig stores a policy flag configuration with tenant isolation.
func (r *SQLRepository) SaveFlagConfig(ctx context.Context, tenantID string, flag *domain.FlagConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if flag.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO flag_configs (
			id, tenant_id, name, description, version, expression, code, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			code = excluded.code,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		flag.ID, tenantID, flag.Name, flag.Description,
		flag.Version, flag.Expression, flag.Code, enabled,
		now, now,
	)
	return err
}

// GetFlagConfig retrieves a policy flag configuration with tenant isolation.
func (r *SQLRepository) GetFlagConfig(ctx context.Context, tenantID string, flagID string) (*domain.FlagConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, code, enabled, created_at, updated_at
		FROM flag_configs
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.FlagConfig
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, flagID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &cfg.Code, &enabled,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	return &cfg, nil
}

// ListFlagConfigs retrieves all active policy flag configurations for a tenant.
func (r *SQLRepository) ListFlagConfigs(ctx context.Context, tenantID string) ([]*domain.FlagConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, code, enabled, created_at, updated_at
		FROM flag_configs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.FlagConfig
	for rows.Next() {
		var cfg domain.FlagConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &cfg.Code, &enabled,
			&cfg.CreatedAt, &cfg.UpdatedAt,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// DeleteFlagConfig soft-deletes a policy flag by setting enabled = 0.
func (r *SQLRepository) DeleteFlagConfig(ctx context.Context, tenantID string, flagID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE flag_configs
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, flagID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for assessment hydration.
type scanner interface {
	Scan(dest ...any) error
}

func scanAssessment(s scanner) (*domain.Assessment, error) {
	var a domain.Assessment
	var applicant, ruleScoring, network, stability, ml, decision, metadata string

	if err := s.Scan(
		&a.ID, &a.TenantID, &a.ApplicantID, &a.Timestamp,
		&applicant, &ruleScoring, &network, &stability, &ml, &decision, &metadata,
	); err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(applicant), &a.Applicant)
	json.Unmarshal([]byte(ruleScoring), &a.RuleScoring)
	json.Unmarshal([]byte(network), &a.Network)
	json.Unmarshal([]byte(stability), &a.Stability)
	json.Unmarshal([]byte(ml), &a.ML)
	json.Unmarshal([]byte(decision), &a.Decision)
	json.Unmarshal([]byte(metadata), &a.Metadata)

	return &a, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
