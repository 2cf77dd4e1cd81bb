// Package risk scores borrowers for loan default risk.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/riskiq/internal/domain"
	"github.com/opensource-finance/riskiq/internal/metrics"
	"github.com/opensource-finance/riskiq/internal/rules"
)

var tracer = otel.Tracer("riskiq-risk")

// Baseline is the score before any rule applies.
const Baseline = 50

// InterestRates is the canonical rate table per tier.
var InterestRates = map[domain.RiskLevel]string{
	domain.RiskLow:    "8%-10%",
	domain.RiskMedium: "12%-15%",
	domain.RiskHigh:   "16%-18%",
}

var recommendations = map[domain.RiskLevel][]string{
	domain.RiskLow: {
		"Approve with standard terms",
		"Consider offering lower interest rates",
		"Eligible for higher loan amount",
	},
	domain.RiskMedium: {
		"Additional guarantor recommended",
		"Consider shorter loan tenure",
		"Regular income verification required",
	},
	domain.RiskHigh: {
		"Smaller loan amount only",
		"Additional collateral required",
		"Higher down payment needed",
	},
}

var genericFactors = map[domain.RiskLevel]string{
	domain.RiskLow:    "Overall strong financial profile",
	domain.RiskMedium: "Some financial stability concerns",
	domain.RiskHigh:   "Multiple high-risk indicators present",
}

// Recommendations returns a copy of the tier's recommendations.
func Recommendations(level domain.RiskLevel) []string {
	return append([]string(nil), recommendations[level]...)
}

// Scorer evaluates the borrower rule table and optionally refines the
// result with a text generator.
type Scorer struct {
	engine    *rules.Engine
	generator domain.Generator
	formatter *Formatter
	symbol    string
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithGenerator enables model refinement.
func WithGenerator(g domain.Generator) Option {
	return func(s *Scorer) { s.generator = g }
}

// WithCurrency sets the currency symbol and locale used for maxLoanAmount.
func WithCurrency(symbol, locale string) Option {
	return func(s *Scorer) {
		s.symbol = symbol
		s.formatter = NewFormatter(symbol, locale)
	}
}

// WithTimeout bounds the generator call.
func WithTimeout(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records scores and fallbacks.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Scorer) { s.metrics = m }
}

// NewScorer creates a scorer over a loaded risk rule engine.
func NewScorer(engine *rules.Engine, opts ...Option) *Scorer {
	s := &Scorer{
		engine:    engine,
		symbol:    "₹",
		formatter: NewFormatter("₹", "en-IN"),
		timeout:   10 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score assesses a borrower. Generator failures keep the rule-based result.
func (s *Scorer) Score(ctx context.Context, tenantID string, b domain.Borrower) (*domain.RiskAssessment, error) {
	ctx, span := tracer.Start(ctx, "risk.Score",
		trace.WithAttributes(attribute.String("tenant.id", tenantID)),
	)
	defer span.End()

	hits, err := s.engine.Evaluate(ctx, activation(b))
	if err != nil {
		return nil, fmt.Errorf("risk rules: %w", err)
	}

	score := domain.Clamp(Baseline + rules.Score(hits))
	var factors []string
	for _, hit := range hits {
		if hit.Reason != "" && len(factors) < maxFactors {
			factors = append(factors, hit.Reason)
		}
	}

	assessment := s.assemble(tenantID, b, score, factors, domain.SourceRules)

	if s.generator != nil {
		refined, err := s.refine(ctx, tenantID, b, factors)
		if err != nil {
			s.logger.Warn("risk model refinement failed, keeping rule score",
				"application_id", b.ApplicationID,
				"error", err,
			)
			s.metrics.RecordFallback("risk")
		} else {
			assessment = refined
		}
	}

	span.SetAttributes(
		attribute.Int("risk.score", assessment.RiskScore),
		attribute.String("risk.source", assessment.Source),
	)
	s.metrics.RecordLoanRisk(assessment.RiskScore, string(assessment.RiskLevel))
	return assessment, nil
}

func (s *Scorer) refine(ctx context.Context, tenantID string, b domain.Borrower, ruleFactors []string) (*domain.RiskAssessment, error) {
	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.generator.Generate(gctx, Prompt(b, s.symbol))
	if err != nil {
		return nil, err
	}

	score, factors, err := ParseModelOutput(out)
	if err != nil {
		return nil, err
	}
	if len(factors) == 0 {
		factors = ruleFactors
	}
	return s.assemble(tenantID, b, domain.Clamp(score), factors, domain.SourceModel), nil
}

// assemble derives every tier-dependent output from the score.
func (s *Scorer) assemble(tenantID string, b domain.Borrower, score int, factors []string, source string) *domain.RiskAssessment {
	level := domain.LoanRisk(score)

	if len(factors) > maxFactors {
		factors = factors[:maxFactors]
	}
	if len(factors) == 0 {
		factors = []string{genericFactors[level]}
	}

	maxLoan := MaxLoan(b.AnnualIncome, level)

	return &domain.RiskAssessment{
		TenantID:          tenantID,
		ApplicationID:     b.ApplicationID,
		Borrower:          b.Name,
		RiskScore:         score,
		RiskLevel:         level,
		Factors:           factors,
		MaxLoanAmount:     s.formatter.Format(maxLoan),
		MaxLoanValue:      maxLoan,
		InterestRateRange: InterestRates[level],
		Recommendations:   Recommendations(level),
		RequestedAmount:   b.LoanAmount,
		Source:            source,
	}
}

func activation(b domain.Borrower) map[string]any {
	return map[string]any{
		"age":                int64(b.Age),
		"income":             b.AnnualIncome,
		"credit_score":       int64(b.CreditScore),
		"employment":         normalize(b.EmploymentStatus),
		"existing_loans":     normalize(b.ExistingLoans),
		"loan_amount":        b.LoanAmount,
		"purpose":            b.Purpose,
		"social_presence":    normalize(b.SocialMediaPresence),
		"ecommerce_activity": normalize(b.EcommerceActivity),
	}
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
