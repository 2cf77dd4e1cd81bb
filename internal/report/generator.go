// Package report builds regulatory reports from stored assessments, tracks
// their submission to the regulator and schedules periodic generation.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/opensource-finance/riskiq/internal/bus"
	"github.com/opensource-finance/riskiq/internal/domain"
	"github.com/opensource-finance/riskiq/internal/metrics"
	"github.com/opensource-finance/riskiq/internal/risk"
)

// ErrInvalidRequest is returned when a report request lacks a type or period.
var ErrInvalidRequest = errors.New("reportType and reportPeriod are required")

const (
	maxIssues              = 5
	avgInterestRate        = "12.5%"
	defaultRemedial        = "Ongoing compliance training and system improvements"
	defaultCertifiedBy     = "Compliance Officer"
	defaultResolutionTime  = "N/A"
	satisfactoryFinding    = "Overall compliance with RBI regulations is satisfactory"
	defaultEnhancements    = "Continuous model improvements"
	defaultAdditionalNotes = "No additional notes provided."
)

var fairPracticeRecommendations = []string{
	"Continue regular compliance audits of loan agreements",
	"Update staff training on latest RBI regulations",
	"Improve transparency in fee disclosures",
}

var fraudPatterns = []string{
	"Multiple applications from the same device",
	"Unusual geolocation patterns",
	"Applications during non-business hours",
	"Inconsistent personal information",
}

// Request describes a report to generate.
type Request struct {
	ReportType     string         `json:"reportType"`
	ReportPeriod   string         `json:"reportPeriod"`
	AdditionalData map[string]any `json:"additionalData,omitempty"`
}

// Generator builds reports from a tenant's stored records.
type Generator struct {
	repo        domain.Repository
	bus         domain.EventBus
	metrics     *metrics.Collector
	formatter   *risk.Formatter
	institution string
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithBus publishes a report-generated event after each save.
func WithBus(b domain.EventBus) Option {
	return func(g *Generator) { g.bus = b }
}

// WithMetrics records generated reports.
func WithMetrics(m *metrics.Collector) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithCurrency sets how the prevented loss amount is rendered.
func WithCurrency(symbol, locale string) Option {
	return func(g *Generator) { g.formatter = risk.NewFormatter(symbol, locale) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a report generator for the named institution.
func NewGenerator(repo domain.Repository, institution string, opts ...Option) *Generator {
	g := &Generator{
		repo:        repo,
		institution: institution,
		formatter:   risk.NewFormatter("₹", "en-IN"),
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate aggregates every stored record of the tenant into a report,
// saves it and announces it on the bus.
func (g *Generator) Generate(ctx context.Context, tenantID string, req Request) (*domain.RegulatoryReport, error) {
	if req.ReportType == "" || req.ReportPeriod == "" {
		return nil, ErrInvalidRequest
	}

	verdicts, err := g.repo.ListComplianceVerdicts(ctx, tenantID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load compliance verdicts: %w", err)
	}
	frauds, err := g.repo.ListFraudAssessments(ctx, tenantID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load fraud assessments: %w", err)
	}
	risks, err := g.repo.ListRiskAssessments(ctx, tenantID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk assessments: %w", err)
	}

	report := g.Build(req, verdicts, frauds, risks)
	if err := g.repo.SaveReport(ctx, tenantID, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	g.metrics.RecordReport(report.ReportType)
	if g.bus != nil {
		if err := bus.PublishJSON(ctx, g.bus, tenantID, domain.TopicReportGenerated, report); err != nil {
			g.logger.Warn("failed to publish report event", "report_id", report.ID, "error", err)
		}
	}

	g.logger.Info("report generated",
		"tenant_id", tenantID,
		"report_id", report.ID,
		"report_type", report.ReportType,
		"period", report.ReportPeriod,
		"loan_applications", report.Metrics.TotalLoanApplications,
	)
	return report, nil
}

// Build computes a report from already loaded records without storing it.
func (g *Generator) Build(req Request, verdicts []*domain.ComplianceVerdict, frauds []*domain.FraudAssessment, risks []*domain.RiskAssessment) *domain.RegulatoryReport {
	m := Aggregate(verdicts, frauds, risks)

	institution := cast.ToString(req.AdditionalData["institutionName"])
	if institution == "" {
		institution = g.institution
	}

	var format map[string]any
	switch req.ReportType {
	case domain.ReportMonthlySummary:
		format = map[string]any{
			"institution":                  institution,
			"reportingPeriod":              req.ReportPeriod,
			"totalLoansDisbursed":          m.TotalLoanApplications,
			"avgInterestRate":              avgInterestRate,
			"complianceScore":              ComplianceScore(m),
			"fraudPreventionEffectiveness": fraudEffectiveness(m),
			"nonComplianceIssues":          nonComplianceIssues(verdicts),
			"remedialMeasures":             stringOr(req.AdditionalData, "remedialMeasures", defaultRemedial),
			"certifiedBy":                  stringOr(req.AdditionalData, "certifiedBy", defaultCertifiedBy),
		}
	case domain.ReportFairPracticeAudit:
		findings := nonComplianceIssues(verdicts)
		if len(findings) == 0 {
			findings = []string{satisfactoryFinding}
		}
		format = map[string]any{
			"institution":        institution,
			"auditPeriod":        req.ReportPeriod,
			"transparencyScore":  ComplianceScore(m),
			"customerGrievances": cast.ToInt(req.AdditionalData["customerGrievances"]),
			"avgResolutionTime":  stringOr(req.AdditionalData, "avgResolutionTime", defaultResolutionTime),
			"keyFindings":        findings,
			"recommendations":    append([]string(nil), fairPracticeRecommendations...),
		}
	case domain.ReportAntiFraud:
		format = map[string]any{
			"institution":                    institution,
			"reportingPeriod":                req.ReportPeriod,
			"totalApplicationsScreened":      m.TotalLoanApplications,
			"fraudulentApplicationsDetected": m.FraudDetected,
			"preventedLossAmount":            g.formatter.Format(PreventedLoss(frauds, risks)),
			"fraudPatterns":                  append([]string(nil), fraudPatterns...),
			"systemEnhancements":             stringOr(req.AdditionalData, "systemEnhancements", defaultEnhancements),
		}
	default:
		format = map[string]any{
			"institution": institution,
			"period":      req.ReportPeriod,
			"summary": fmt.Sprintf("This report covers %d loan applications, %d compliance checks, and %d fraud detection activities.",
				m.TotalLoanApplications, m.TotalComplianceChecks, m.TotalFraudChecks),
			"additionalNotes": stringOr(req.AdditionalData, "notes", defaultAdditionalNotes),
		}
	}

	return &domain.RegulatoryReport{
		ReportType:       req.ReportType,
		ReportPeriod:     req.ReportPeriod,
		GeneratedDate:    g.now().UTC(),
		Metrics:          m,
		Format:           format,
		SubmissionStatus: domain.ReportGenerated,
	}
}

// Aggregate counts the records a report covers.
func Aggregate(verdicts []*domain.ComplianceVerdict, frauds []*domain.FraudAssessment, risks []*domain.RiskAssessment) domain.ReportMetrics {
	m := domain.ReportMetrics{
		TotalLoanApplications: len(risks),
		TotalComplianceChecks: len(verdicts),
		TotalFraudChecks:      len(frauds),
		RiskDistribution: map[domain.RiskLevel]int{
			domain.RiskLow:    0,
			domain.RiskMedium: 0,
			domain.RiskHigh:   0,
		},
		ComplianceDistribution: map[string]int{
			string(domain.OverallCompliant):    0,
			string(domain.OverallPartial):      0,
			string(domain.OverallNonCompliant): 0,
		},
	}
	for _, r := range risks {
		m.RiskDistribution[r.RiskLevel]++
	}
	for _, v := range verdicts {
		m.ComplianceDistribution[string(v.OverallCompliance)]++
	}
	for _, f := range frauds {
		if f.IsFraudulent {
			m.FraudDetected++
		}
	}
	return m
}

// ComplianceScore weighs partial verdicts at half. No checks scores 100.
func ComplianceScore(m domain.ReportMetrics) int {
	if m.TotalComplianceChecks == 0 {
		return 100
	}
	compliant := float64(m.ComplianceDistribution[string(domain.OverallCompliant)])
	partial := float64(m.ComplianceDistribution[string(domain.OverallPartial)])
	return int(math.Round((compliant + 0.5*partial) / float64(m.TotalComplianceChecks) * 100))
}

func fraudEffectiveness(m domain.ReportMetrics) int {
	if m.TotalFraudChecks == 0 {
		return 100
	}
	return int(math.Round(float64(m.FraudDetected) / float64(m.TotalFraudChecks) * 100))
}

// nonComplianceIssues lists up to five distinct rule ids cited by
// non-compliant clauses of documents that were not fully compliant.
func nonComplianceIssues(verdicts []*domain.ComplianceVerdict) []string {
	issues := make([]string, 0, maxIssues)
	seen := make(map[string]bool)
	for _, v := range verdicts {
		if v.OverallCompliance == domain.OverallCompliant {
			continue
		}
		for _, c := range v.Clauses {
			if c.Status != domain.ClauseNonCompliant || c.Rule == "" || seen[c.Rule] {
				continue
			}
			seen[c.Rule] = true
			issues = append(issues, c.Rule)
			if len(issues) == maxIssues {
				return issues
			}
		}
	}
	return issues
}

// PreventedLoss sums the requested amounts of loan applications flagged as
// fraudulent. Each application counts once.
func PreventedLoss(frauds []*domain.FraudAssessment, risks []*domain.RiskAssessment) decimal.Decimal {
	requested := make(map[string]float64)
	for _, r := range risks {
		if r.ApplicationID == "" {
			continue
		}
		if _, ok := requested[r.ApplicationID]; !ok {
			requested[r.ApplicationID] = r.RequestedAmount
		}
	}

	total := decimal.Zero
	counted := make(map[string]bool)
	for _, f := range frauds {
		if !f.IsFraudulent || f.ApplicationID == "" || counted[f.ApplicationID] {
			continue
		}
		amount, ok := requested[f.ApplicationID]
		if !ok {
			continue
		}
		counted[f.ApplicationID] = true
		total = total.Add(decimal.NewFromFloat(amount))
	}
	return total
}

func stringOr(data map[string]any, key, fallback string) string {
	if s := cast.ToString(data[key]); s != "" {
		return s
	}
	return fallback
}
