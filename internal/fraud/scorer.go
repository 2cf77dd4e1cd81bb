// Package fraud scores loan applicants for identity and behavioural fraud signals.
package fraud

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
	"github.com/opensource-finance/riskiq/internal/velocity"
)

// Zero-shot candidate labels for the behaviour description.
const (
	LabelLegitimate = "legitimate user behavior"
	LabelSuspicious = "suspicious user behavior"
	LabelFraudulent = "fraudulent user behavior"
)

var tracer = otel.Tracer("riskiq-fraud")

// Labels are sent to the classifier in this order.
var Labels = []string{LabelLegitimate, LabelSuspicious, LabelFraudulent}

const (
	fraudulentPoints = 40
	suspiciousPoints = 20

	flagModelFraudulent = "AI detected potentially fraudulent behavior pattern"
	flagModelSuspicious = "AI detected suspicious behavior pattern"

	// FraudulentThreshold is the score above which an applicant is marked fraudulent.
	FraudulentThreshold = 70
)

// Scorer combines the CEL rule table with an optional behaviour classifier.
type Scorer struct {
	engine   *rules.Engine
	model    domain.Classifier
	velocity *velocity.Service
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithModel enables the behaviour classifier tier.
func WithModel(model domain.Classifier) Option {
	return func(s *Scorer) { s.model = model }
}

// WithVelocity feeds repeated-submission counts into the rule table.
func WithVelocity(v *velocity.Service) Option {
	return func(s *Scorer) { s.velocity = v }
}

// WithTimeout bounds the classifier call.
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

// NewScorer creates a scorer over a loaded fraud rule engine.
func NewScorer(engine *rules.Engine, opts ...Option) *Scorer {
	s := &Scorer{
		engine:  engine,
		timeout: 10 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score assesses an applicant. Classifier failures are logged and ignored;
// only a broken rule table returns an error.
func (s *Scorer) Score(ctx context.Context, tenantID string, a domain.Applicant) (*domain.FraudAssessment, error) {
	ctx, span := tracer.Start(ctx, "fraud.Score",
		trace.WithAttributes(attribute.String("tenant.id", tenantID)),
	)
	defer span.End()

	var recent int64
	if s.velocity != nil {
		n, err := s.velocity.RecordSubmission(ctx, tenantID, a.GovernmentID)
		if err != nil {
			s.logger.Warn("velocity lookup failed", "tenant_id", tenantID, "error", err)
		} else {
			recent = n
		}
	}

	hits, err := s.engine.Evaluate(ctx, activation(a, recent))
	if err != nil {
		return nil, fmt.Errorf("fraud rules: %w", err)
	}

	assessment := &domain.FraudAssessment{
		TenantID:      tenantID,
		ApplicationID: a.ApplicationID,
		SubjectName:   a.Name,
		Flags:         []string{},
		IPAddress:     a.IPAddress,
		DeviceInfo:    a.DeviceInfo,
		LoginCount:    a.LoginFrequency,
	}

	score := 0
	for _, hit := range hits {
		score += hit.Points
		if hit.Reason != "" {
			assessment.AddFlag(hit.Reason)
		}
	}

	if s.model != nil && a.Behavior != "" {
		points, flag, err := s.classifyBehavior(ctx, a)
		if err != nil {
			s.logger.Warn("behaviour classifier failed, using rules only",
				"application_id", a.ApplicationID,
				"error", err,
			)
			s.metrics.RecordFallback("fraud")
		} else if flag != "" {
			score += points
			assessment.AddFlag(flag)
		}
	}

	assessment.Score = domain.Clamp(score)
	assessment.Risk = domain.FraudRisk(assessment.Score)
	assessment.IsFraudulent = assessment.Score > FraudulentThreshold

	span.SetAttributes(
		attribute.Int("fraud.score", assessment.Score),
		attribute.Bool("fraud.flagged", assessment.IsFraudulent),
	)
	s.metrics.RecordFraud(assessment.Score, string(assessment.Risk))
	return assessment, nil
}

func (s *Scorer) classifyBehavior(ctx context.Context, a domain.Applicant) (points int, flag string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.model.Classify(cctx, Profile(a), Labels)
	if err != nil {
		return 0, "", err
	}
	if err := result.Validate(); err != nil {
		return 0, "", err
	}

	switch label, _ := result.Top(); label {
	case LabelFraudulent:
		return fraudulentPoints, flagModelFraudulent, nil
	case LabelSuspicious:
		return suspiciousPoints, flagModelSuspicious, nil
	default:
		return 0, "", nil
	}
}

// Profile renders the applicant as classifier input.
func Profile(a domain.Applicant) string {
	mobile := a.Mobile
	if mobile == "" {
		mobile = "Not provided"
	}

	var b strings.Builder
	b.WriteString("Detect if this user profile is potentially fraudulent. Return \"Fraud\" or \"Legit\" and why.\n\n")
	fmt.Fprintf(&b, "Name: %s\n", a.Name)
	fmt.Fprintf(&b, "PAN: %s\n", a.GovernmentID)
	fmt.Fprintf(&b, "Mobile: %s\n", mobile)
	fmt.Fprintf(&b, "Behavior: %s\n", a.Behavior)
	if a.DeviceInfo != "" {
		fmt.Fprintf(&b, "Device: %s\n", a.DeviceInfo)
	}
	if a.IPAddress != "" {
		fmt.Fprintf(&b, "IP: %s\n", a.IPAddress)
	}
	return b.String()
}

func activation(a domain.Applicant, recent int64) map[string]any {
	return map[string]any{
		"name":               a.Name,
		"government_id":      a.GovernmentID,
		"mobile":             a.Mobile,
		"email":              a.Email,
		"ip_address":         a.IPAddress,
		"device_info":        a.DeviceInfo,
		"login_frequency":    int64(a.LoginFrequency),
		"behavior":           a.Behavior,
		"recent_submissions": recent,
	}
}
