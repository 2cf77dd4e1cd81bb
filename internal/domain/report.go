package domain

import "time"

// Report types understood by the report generator.
const (
	ReportMonthlySummary    = "RBI-Monthly-Summary"
	ReportFairPracticeAudit = "Fair-Practices-Audit"
	ReportAntiFraud         = "Anti-Fraud-Report"
)

// Submission states of a generated report.
const (
	ReportGenerated = "generated"
	ReportSubmitted = "submitted"
)

// RegulatoryReport is a generated report and its submission state.
type RegulatoryReport struct {
	ID               string         `json:"id"`
	TenantID         string         `json:"tenantId,omitempty"`
	ReportType       string         `json:"reportType"`
	ReportPeriod     string         `json:"reportPeriod"`
	GeneratedDate    time.Time      `json:"generatedDate"`
	Metrics          ReportMetrics  `json:"metrics"`
	Format           map[string]any `json:"format"`
	SubmissionStatus string         `json:"submissionStatus"`
	SubmissionID     string         `json:"submissionId,omitempty"`
	SubmittedAt      *time.Time     `json:"submittedAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// ReportMetrics are the aggregate figures a report is built from.
type ReportMetrics struct {
	TotalLoanApplications  int               `json:"totalLoanApplications"`
	TotalComplianceChecks  int               `json:"totalComplianceChecks"`
	TotalFraudChecks       int               `json:"totalFraudChecks"`
	RiskDistribution       map[RiskLevel]int `json:"riskDistribution"`
	ComplianceDistribution map[string]int    `json:"complianceDistribution"`
	FraudDetected          int               `json:"fraudDetected"`
}

// Submission is the regulator-side record of a submitted report.
type Submission struct {
	SubmissionID string    `json:"submissionId"`
	ReportID     string    `json:"reportId"`
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
