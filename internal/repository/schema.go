package repository

// Schema definitions for RiskIQ. Compatible with both SQLite and PostgreSQL.
// List columns (clauses, flags, factors, ...) are stored as JSON text.

const schemaComplianceChecks = `
CREATE TABLE IF NOT EXISTS compliance_checks (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    file_name TEXT NOT NULL,
    overall TEXT NOT NULL,
    compliant_count INTEGER NOT NULL,
    non_compliant_count INTEGER NOT NULL,
    clauses TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_compliance_checks_tenant ON compliance_checks(tenant_id, created_at);
`

const schemaFraudDetections = `
CREATE TABLE IF NOT EXISTS fraud_detections (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    application_id TEXT NOT NULL DEFAULT '',
    subject_name TEXT NOT NULL,
    score INTEGER NOT NULL,
    risk TEXT NOT NULL,
    flags TEXT NOT NULL,
    is_fraudulent INTEGER NOT NULL DEFAULT 0,
    ip_address TEXT NOT NULL DEFAULT '',
    device_info TEXT NOT NULL DEFAULT '',
    login_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fraud_detections_tenant ON fraud_detections(tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_fraud_detections_application ON fraud_detections(tenant_id, application_id);
`

const schemaLoanAssessments = `
CREATE TABLE IF NOT EXISTS loan_assessments (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    application_id TEXT NOT NULL DEFAULT '',
    borrower TEXT NOT NULL,
    risk_score INTEGER NOT NULL,
    risk_level TEXT NOT NULL,
    factors TEXT NOT NULL,
    max_loan_amount TEXT NOT NULL,
    max_loan_value TEXT NOT NULL,
    interest_rate_range TEXT NOT NULL,
    recommendations TEXT NOT NULL,
    requested_amount REAL NOT NULL DEFAULT 0,
    source TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_loan_assessments_tenant ON loan_assessments(tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_loan_assessments_application ON loan_assessments(tenant_id, application_id);
`

const schemaRegulatoryReports = `
CREATE TABLE IF NOT EXISTS regulatory_reports (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    report_type TEXT NOT NULL,
    report_period TEXT NOT NULL,
    generated_date TIMESTAMP NOT NULL,
    metrics TEXT NOT NULL,
    format TEXT NOT NULL,
    submission_status TEXT NOT NULL,
    submission_id TEXT NOT NULL DEFAULT '',
    submitted_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_regulatory_reports_tenant ON regulatory_reports(tenant_id, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaComplianceChecks,
		schemaFraudDetections,
		schemaLoanAssessments,
		schemaRegulatoryReports,
	}
}
