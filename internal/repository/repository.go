// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/riskiq/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository on sqlx.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db *sqlx.DB
}

// New creates a new repository based on configuration and runs migrations.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite", "":
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

	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	repo := NewWithDB(db, driver)

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// NewWithDB wraps an open connection without running migrations.
// driver selects the placeholder style ("postgres" uses $n).
func NewWithDB(db *sql.DB, driver string) *SQLRepository {
	return &SQLRepository{db: sqlx.NewDb(db, driver)}
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

type complianceRow struct {
	ID                string    `db:"id"`
	TenantID          string    `db:"tenant_id"`
	FileName          string    `db:"file_name"`
	Overall           string    `db:"overall"`
	CompliantCount    int       `db:"compliant_count"`
	NonCompliantCount int       `db:"non_compliant_count"`
	Clauses           string    `db:"clauses"`
	CreatedAt         time.Time `db:"created_at"`
}

type fraudRow struct {
	ID            string    `db:"id"`
	TenantID      string    `db:"tenant_id"`
	ApplicationID string    `db:"application_id"`
	SubjectName   string    `db:"subject_name"`
	Score         int       `db:"score"`
	Risk          string    `db:"risk"`
	Flags         string    `db:"flags"`
	IsFraudulent  int       `db:"is_fraudulent"`
	IPAddress     string    `db:"ip_address"`
	DeviceInfo    string    `db:"device_info"`
	LoginCount    int       `db:"login_count"`
	CreatedAt     time.Time `db:"created_at"`
}

type loanRow struct {
	ID                string          `db:"id"`
	TenantID          string          `db:"tenant_id"`
	ApplicationID     string          `db:"application_id"`
	Borrower          string          `db:"borrower"`
	RiskScore         int             `db:"risk_score"`
	RiskLevel         string          `db:"risk_level"`
	Factors           string          `db:"factors"`
	MaxLoanAmount     string          `db:"max_loan_amount"`
	MaxLoanValue      decimal.Decimal `db:"max_loan_value"`
	InterestRateRange string          `db:"interest_rate_range"`
	Recommendations   string          `db:"recommendations"`
	RequestedAmount   float64         `db:"requested_amount"`
	Source            string          `db:"source"`
	CreatedAt         time.Time       `db:"created_at"`
}

type reportRow struct {
	ID               string       `db:"id"`
	TenantID         string       `db:"tenant_id"`
	ReportType       string       `db:"report_type"`
	ReportPeriod     string       `db:"report_period"`
	GeneratedDate    time.Time    `db:"generated_date"`
	Metrics          string       `db:"metrics"`
	Format           string       `db:"format"`
	SubmissionStatus string       `db:"submission_status"`
	SubmissionID     string       `db:"submission_id"`
	SubmittedAt      sql.NullTime `db:"submitted_at"`
	CreatedAt        time.Time    `db:"created_at"`
}

const (
	selectCompliance = `SELECT id, tenant_id, file_name, overall, compliant_count, non_compliant_count, clauses, created_at FROM compliance_checks`
	selectFraud      = `SELECT id, tenant_id, application_id, subject_name, score, risk, flags, is_fraudulent, ip_address, device_info, login_count, created_at FROM fraud_detections`
	selectLoan       = `SELECT id, tenant_id, application_id, borrower, risk_score, risk_level, factors, max_loan_amount, max_loan_value, interest_rate_range, recommendations, requested_amount, source, created_at FROM loan_assessments`
	selectReport     = `SELECT id, tenant_id, report_type, report_period, generated_date, metrics, format, submission_status, submission_id, submitted_at, created_at FROM regulatory_reports`
)

// SaveComplianceVerdict stores a verdict with tenant isolation. ID and
// CreatedAt are assigned when empty.
func (r *SQLRepository) SaveComplianceVerdict(ctx context.Context, tenantID string, v *domain.ComplianceVerdict) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if v == nil {
		return fmt.Errorf("%w: verdict is required", ErrInvalidInput)
	}
	stamp(&v.ID, &v.CreatedAt)
	v.TenantID = tenantID

	clauses, err := json.Marshal(v.Clauses)
	if err != nil {
		return fmt.Errorf("failed to encode clauses: %w", err)
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO compliance_checks (
			id, tenant_id, file_name, overall, compliant_count, non_compliant_count, clauses, created_at
		) VALUES (:id, :tenant_id, :file_name, :overall, :compliant_count, :non_compliant_count, :clauses, :created_at)
	`, complianceRow{
		ID:                v.ID,
		TenantID:          tenantID,
		FileName:          v.FileName,
		Overall:           string(v.OverallCompliance),
		CompliantCount:    v.CompliantCount,
		NonCompliantCount: v.NonCompliantCount,
		Clauses:           string(clauses),
		CreatedAt:         v.CreatedAt,
	})
	return err
}

// ListComplianceVerdicts returns the newest verdicts first. limit <= 0 returns all.
func (r *SQLRepository) ListComplianceVerdicts(ctx context.Context, tenantID string, limit int) ([]*domain.ComplianceVerdict, error) {
	var rows []complianceRow
	if err := r.list(ctx, &rows, selectCompliance, tenantID, limit); err != nil {
		return nil, err
	}

	verdicts := make([]*domain.ComplianceVerdict, 0, len(rows))
	for _, row := range rows {
		v := &domain.ComplianceVerdict{
			ID:                row.ID,
			TenantID:          row.TenantID,
			FileName:          row.FileName,
			OverallCompliance: domain.OverallCompliance(row.Overall),
			CompliantCount:    row.CompliantCount,
			NonCompliantCount: row.NonCompliantCount,
			CreatedAt:         row.CreatedAt,
		}
		if err := json.Unmarshal([]byte(row.Clauses), &v.Clauses); err != nil {
			return nil, fmt.Errorf("failed to parse clauses for %s: %w", row.ID, err)
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, nil
}

// SaveFraudAssessment stores a fraud assessment with tenant isolation.
func (r *SQLRepository) SaveFraudAssessment(ctx context.Context, tenantID string, a *domain.FraudAssessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if a == nil {
		return fmt.Errorf("%w: assessment is required", ErrInvalidInput)
	}
	stamp(&a.ID, &a.CreatedAt)
	a.TenantID = tenantID

	flags, err := json.Marshal(nonNil(a.Flags))
	if err != nil {
		return fmt.Errorf("failed to encode flags: %w", err)
	}

	fraudulent := 0
	if a.IsFraudulent {
		fraudulent = 1
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO fraud_detections (
			id, tenant_id, application_id, subject_name, score, risk, flags,
			is_fraudulent, ip_address, device_info, login_count, created_at
		) VALUES (
			:id, :tenant_id, :application_id, :subject_name, :score, :risk, :flags,
			:is_fraudulent, :ip_address, :device_info, :login_count, :created_at
		)
	`, fraudRow{
		ID:            a.ID,
		TenantID:      tenantID,
		ApplicationID: a.ApplicationID,
		SubjectName:   a.SubjectName,
		Score:         a.Score,
		Risk:          string(a.Risk),
		Flags:         string(flags),
		IsFraudulent:  fraudulent,
		IPAddress:     a.IPAddress,
		DeviceInfo:    a.DeviceInfo,
		LoginCount:    a.LoginCount,
		CreatedAt:     a.CreatedAt,
	})
	return err
}

// ListFraudAssessments returns the newest assessments first. limit <= 0 returns all.
func (r *SQLRepository) ListFraudAssessments(ctx context.Context, tenantID string, limit int) ([]*domain.FraudAssessment, error) {
	var rows []fraudRow
	if err := r.list(ctx, &rows, selectFraud, tenantID, limit); err != nil {
		return nil, err
	}

	out := make([]*domain.FraudAssessment, 0, len(rows))
	for _, row := range rows {
		a := &domain.FraudAssessment{
			ID:            row.ID,
			TenantID:      row.TenantID,
			ApplicationID: row.ApplicationID,
			SubjectName:   row.SubjectName,
			Score:         row.Score,
			Risk:          domain.RiskLevel(row.Risk),
			IsFraudulent:  row.IsFraudulent == 1,
			IPAddress:     row.IPAddress,
			DeviceInfo:    row.DeviceInfo,
			LoginCount:    row.LoginCount,
			CreatedAt:     row.CreatedAt,
		}
		if err := json.Unmarshal([]byte(row.Flags), &a.Flags); err != nil {
			return nil, fmt.Errorf("failed to parse flags for %s: %w", row.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// SaveRiskAssessment stores a loan risk assessment with tenant isolation.
func (r *SQLRepository) SaveRiskAssessment(ctx context.Context, tenantID string, a *domain.RiskAssessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if a == nil {
		return fmt.Errorf("%w: assessment is required", ErrInvalidInput)
	}
	stamp(&a.ID, &a.CreatedAt)
	a.TenantID = tenantID

	factors, err := json.Marshal(nonNil(a.Factors))
	if err != nil {
		return fmt.Errorf("failed to encode factors: %w", err)
	}
	recs, err := json.Marshal(nonNil(a.Recommendations))
	if err != nil {
		return fmt.Errorf("failed to encode recommendations: %w", err)
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO loan_assessments (
			id, tenant_id, application_id, borrower, risk_score, risk_level, factors,
			max_loan_amount, max_loan_value, interest_rate_range, recommendations,
			requested_amount, source, created_at
		) VALUES (
			:id, :tenant_id, :application_id, :borrower, :risk_score, :risk_level, :factors,
			:max_loan_amount, :max_loan_value, :interest_rate_range, :recommendations,
			:requested_amount, :source, :created_at
		)
	`, loanRow{
		ID:                a.ID,
		TenantID:          tenantID,
		ApplicationID:     a.ApplicationID,
		Borrower:          a.Borrower,
		RiskScore:         a.RiskScore,
		RiskLevel:         string(a.RiskLevel),
		Factors:           string(factors),
		MaxLoanAmount:     a.MaxLoanAmount,
		MaxLoanValue:      a.MaxLoanValue,
		InterestRateRange: a.InterestRateRange,
		Recommendations:   string(recs),
		RequestedAmount:   a.RequestedAmount,
		Source:            a.Source,
		CreatedAt:         a.CreatedAt,
	})
	return err
}

// ListRiskAssessments returns the newest assessments first. limit <= 0 returns all.
func (r *SQLRepository) ListRiskAssessments(ctx context.Context, tenantID string, limit int) ([]*domain.RiskAssessment, error) {
	var rows []loanRow
	if err := r.list(ctx, &rows, selectLoan, tenantID, limit); err != nil {
		return nil, err
	}

	out := make([]*domain.RiskAssessment, 0, len(rows))
	for _, row := range rows {
		a := &domain.RiskAssessment{
			ID:                row.ID,
			TenantID:          row.TenantID,
			ApplicationID:     row.ApplicationID,
			Borrower:          row.Borrower,
			RiskScore:         row.RiskScore,
			RiskLevel:         domain.RiskLevel(row.RiskLevel),
			MaxLoanAmount:     row.MaxLoanAmount,
			MaxLoanValue:      row.MaxLoanValue,
			InterestRateRange: row.InterestRateRange,
			RequestedAmount:   row.RequestedAmount,
			Source:            row.Source,
			CreatedAt:         row.CreatedAt,
		}
		if err := json.Unmarshal([]byte(row.Factors), &a.Factors); err != nil {
			return nil, fmt.Errorf("failed to parse factors for %s: %w", row.ID, err)
		}
		if err := json.Unmarshal([]byte(row.Recommendations), &a.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to parse recommendations for %s: %w", row.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// SaveReport stores a generated report with tenant isolation.
func (r *SQLRepository) SaveReport(ctx context.Context, tenantID string, rep *domain.RegulatoryReport) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if rep == nil {
		return fmt.Errorf("%w: report is required", ErrInvalidInput)
	}
	stamp(&rep.ID, &rep.CreatedAt)
	rep.TenantID = tenantID
	if rep.GeneratedDate.IsZero() {
		rep.GeneratedDate = rep.CreatedAt
	}
	if rep.SubmissionStatus == "" {
		rep.SubmissionStatus = domain.ReportGenerated
	}

	metrics, err := json.Marshal(rep.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	format, err := json.Marshal(rep.Format)
	if err != nil {
		return fmt.Errorf("failed to encode format: %w", err)
	}

	row := reportRow{
		ID:               rep.ID,
		TenantID:         tenantID,
		ReportType:       rep.ReportType,
		ReportPeriod:     rep.ReportPeriod,
		GeneratedDate:    rep.GeneratedDate,
		Metrics:          string(metrics),
		Format:           string(format),
		SubmissionStatus: rep.SubmissionStatus,
		SubmissionID:     rep.SubmissionID,
		CreatedAt:        rep.CreatedAt,
	}
	if rep.SubmittedAt != nil {
		row.SubmittedAt = sql.NullTime{Time: *rep.SubmittedAt, Valid: true}
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO regulatory_reports (
			id, tenant_id, report_type, report_period, generated_date, metrics, format,
			submission_status, submission_id, submitted_at, created_at
		) VALUES (
			:id, :tenant_id, :report_type, :report_period, :generated_date, :metrics, :format,
			:submission_status, :submission_id, :submitted_at, :created_at
		)
	`, row)
	return err
}

// GetReport retrieves a report by ID with tenant isolation.
func (r *SQLRepository) GetReport(ctx context.Context, tenantID string, reportID string) (*domain.RegulatoryReport, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	var row reportRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(selectReport+` WHERE tenant_id = ? AND id = ?`), tenantID, reportID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// ListReports returns the newest reports first. limit <= 0 returns all.
func (r *SQLRepository) ListReports(ctx context.Context, tenantID string, limit int) ([]*domain.RegulatoryReport, error) {
	var rows []reportRow
	if err := r.list(ctx, &rows, selectReport, tenantID, limit); err != nil {
		return nil, err
	}

	out := make([]*domain.RegulatoryReport, 0, len(rows))
	for _, row := range rows {
		rep, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

// MarkReportSubmitted records the regulator submission of a report.
func (r *SQLRepository) MarkReportSubmitted(ctx context.Context, tenantID string, reportID string, submissionID string, at time.Time) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE regulatory_reports
		SET submission_status = ?, submission_id = ?, submitted_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), domain.ReportSubmitted, submissionID, at.UTC(), tenantID, reportID)
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

func (r *SQLRepository) list(ctx context.Context, dest any, base, tenantID string, limit int) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := base + ` WHERE tenant_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{tenantID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.db.SelectContext(ctx, dest, r.db.Rebind(query), args...)
}

func (row reportRow) toDomain() (*domain.RegulatoryReport, error) {
	rep := &domain.RegulatoryReport{
		ID:               row.ID,
		TenantID:         row.TenantID,
		ReportType:       row.ReportType,
		ReportPeriod:     row.ReportPeriod,
		GeneratedDate:    row.GeneratedDate,
		SubmissionStatus: row.SubmissionStatus,
		SubmissionID:     row.SubmissionID,
		CreatedAt:        row.CreatedAt,
	}
	if row.SubmittedAt.Valid {
		at := row.SubmittedAt.Time
		rep.SubmittedAt = &at
	}
	if err := json.Unmarshal([]byte(row.Metrics), &rep.Metrics); err != nil {
		return nil, fmt.Errorf("failed to parse metrics for %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Format), &rep.Format); err != nil {
		return nil, fmt.Errorf("failed to parse format for %s: %w", row.ID, err)
	}
	return rep, nil
}

func stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
