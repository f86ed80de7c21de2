package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Assessment operations
	SaveAssessment(ctx context.Context, tenantID string, a *Assessment) error
	GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*Assessment, error)
	ListAssessmentsByApplicant(ctx context.Context, tenantID string, applicantID string, since time.Time) ([]*Assessment, error)
	GetStats(ctx context.Context, tenantID string) (*Stats, error)

	// Policy flag configuration operations
	SaveFlagConfig(ctx context.Context, tenantID string, flag *FlagConfig) error
	GetFlagConfig(ctx context.Context, tenantID string, flagID string) (*FlagConfig, error)
	ListFlagConfigs(ctx context.Context, tenantID string) ([]*FlagConfig, error)
	DeleteFlagConfig(ctx context.Context, tenantID string, flagID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
