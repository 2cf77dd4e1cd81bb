// Package domain defines the core interfaces and types for RiskIQ.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
// List methods return newest records first, capped at limit.
type Repository interface {
	// Compliance verdicts
	SaveComplianceVerdict(ctx context.Context, tenantID string, v *ComplianceVerdict) error
	ListComplianceVerdicts(ctx context.Context, tenantID string, limit int) ([]*ComplianceVerdict, error)

	// Fraud assessments
	SaveFraudAssessment(ctx context.Context, tenantID string, a *FraudAssessment) error
	ListFraudAssessments(ctx context.Context, tenantID string, limit int) ([]*FraudAssessment, error)

	// Loan risk assessments
	SaveRiskAssessment(ctx context.Context, tenantID string, a *RiskAssessment) error
	ListRiskAssessments(ctx context.Context, tenantID string, limit int) ([]*RiskAssessment, error)

	// Regulatory reports
	SaveReport(ctx context.Context, tenantID string, r *RegulatoryReport) error
	GetReport(ctx context.Context, tenantID string, reportID string) (*RegulatoryReport, error)
	ListReports(ctx context.Context, tenantID string, limit int) ([]*RegulatoryReport, error)
	MarkReportSubmitted(ctx context.Context, tenantID string, reportID string, submissionID string, at time.Time) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `mapstructure:"driver" yaml:"driver"`

	SQLitePath string `mapstructure:"sqlitePath" yaml:"sqlitePath"`

	PostgresHost     string `mapstructure:"postgresHost" yaml:"postgresHost"`
	PostgresPort     int    `mapstructure:"postgresPort" yaml:"postgresPort"`
	PostgresUser     string `mapstructure:"postgresUser" yaml:"postgresUser"`
	PostgresPassword string `mapstructure:"postgresPassword" yaml:"postgresPassword"`
	PostgresDB       string `mapstructure:"postgresDB" yaml:"postgresDB"`
	PostgresSSLMode  string `mapstructure:"postgresSSLMode" yaml:"postgresSSLMode"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime" yaml:"connMaxLifetime"`
}
