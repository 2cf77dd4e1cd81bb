package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/opensource-finance/riskiq/internal/domain"
	"github.com/opensource-finance/riskiq/internal/metrics"
	"github.com/opensource-finance/riskiq/internal/rules"
)

// Zero-shot candidate labels.
const (
	LabelCompliant = "compliant with RBI regulations"
	LabelViolates  = "violates RBI regulations"
	LabelNeutral   = "neutral or irrelevant to RBI regulations"
)

// Labels are sent to the classifier in this order.
var Labels = []string{LabelCompliant, LabelViolates, LabelNeutral}

const (
	ruleConfidenceNonCompliant = 0.85
	ruleConfidenceCompliant    = 0.8

	// generated rewrites must be longer than this to be used
	minSuggestionLength = 20

	neutralNote   = "This clause doesn't appear to have specific RBI regulatory implications"
	failedMessage = "Failed to analyze this clause"
)

// Generator i uses prompt min(i, len-1).
var rewritePrompts = []string{
	"Rewrite the following loan agreement clause to be compliant with RBI regulations: \"%s\"",
	"Non-compliant clause: %s\nRBI compliant version:",
}

// Classifier assigns a verdict to a single clause.
type Classifier struct {
	model      domain.Classifier
	generators []domain.Generator
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Collector

	ruleTier func(text string) domain.Clause
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithModel enables the model tier. Generators are tried in order for
// rewrite suggestions.
func WithModel(model domain.Classifier, generators ...domain.Generator) Option {
	return func(c *Classifier) {
		c.model = model
		c.generators = generators
	}
}

// WithTimeout bounds each external call.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records clause verdicts and fallbacks.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Classifier) {
		c.metrics = m
	}
}

// NewClassifier creates a classifier. Without WithModel only the rule tier runs.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		timeout:  10 * time.Second,
		logger:   slog.Default(),
		ruleTier: RuleTier,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RuleTier classifies a clause with the keyword rules alone.
func RuleTier(text string) domain.Clause {
	clause := domain.Clause{
		Text:   text,
		Rule:   rules.RelevantRule(text),
		Source: domain.SourceRules,
	}

	if len(rules.MatchNonCompliant(text)) > 0 {
		clause.Status = domain.ClauseNonCompliant
		clause.Suggestion = RuleBasedSuggestion(text)
		clause.Confidence = ruleConfidenceNonCompliant
		return clause
	}

	clause.Status = domain.ClauseCompliant
	clause.Confidence = ruleConfidenceCompliant
	return clause
}

// Classify returns the verdict for one clause. It never fails: model errors
// fall back to the rule tier, and a failing rule tier yields an error clause.
func (c *Classifier) Classify(ctx context.Context, id int, text string) domain.Clause {
	if c.model != nil {
		clause, err := c.safeModelTier(ctx, text)
		if err == nil {
			clause.ID = id
			c.metrics.RecordClause(string(clause.Status), clause.Source)
			return clause
		}
		c.logger.Warn("model tier failed, using rules",
			"clause_id", id,
			"error", err,
		)
		c.metrics.RecordFallback("compliance")
	}

	clause, err := c.safeRuleTier(text)
	if err != nil {
		c.logger.Error("clause analysis failed", "clause_id", id, "error", err)
		clause = domain.Clause{
			Text:   text,
			Status: domain.ClauseError,
			Error:  failedMessage,
		}
	}
	clause.ID = id
	c.metrics.RecordClause(string(clause.Status), clause.Source)
	return clause
}

func (c *Classifier) safeRuleTier(text string) (clause domain.Clause, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule tier panic: %v", r)
		}
	}()
	return c.ruleTier(text), nil
}

func (c *Classifier) safeModelTier(ctx context.Context, text string) (clause domain.Clause, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model tier panic: %v", r)
		}
	}()
	return c.modelTier(ctx, text)
}

func (c *Classifier) modelTier(ctx context.Context, text string) (domain.Clause, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	result, err := c.model.Classify(cctx, text, Labels)
	cancel()
	if err != nil {
		return domain.Clause{}, fmt.Errorf("classify: %w", err)
	}
	if err := result.Validate(); err != nil {
		return domain.Clause{}, err
	}

	label, confidence := result.Top()
	clause := domain.Clause{
		Text:       text,
		Confidence: confidence,
		Source:     domain.SourceModel,
	}

	switch label {
	case LabelViolates:
		clause.Status = domain.ClauseNonCompliant
		clause.Rule = rules.RelevantRule(text)
		clause.Suggestion = c.suggest(ctx, text)
	case LabelNeutral:
		clause.Status = domain.ClauseCompliant
		clause.Rule = rules.NeutralRuleID
		clause.Note = neutralNote
	default:
		clause.Status = domain.ClauseCompliant
		clause.Rule = rules.RelevantRule(text)
	}
	return clause, nil
}

// suggest walks the generator chain and falls back to the rule template.
func (c *Classifier) suggest(ctx context.Context, text string) string {
	for i, gen := range c.generators {
		prompt := fmt.Sprintf(rewritePrompts[min(i, len(rewritePrompts)-1)], text)

		gctx, cancel := context.WithTimeout(ctx, c.timeout)
		out, err := gen.Generate(gctx, prompt)
		cancel()
		if err != nil {
			c.logger.Warn("suggestion generator failed", "generator", i, "error", err)
			continue
		}

		out = strings.TrimSpace(out)
		if utf8.RuneCountInString(out) > minSuggestionLength {
			return out
		}
	}
	return RuleBasedSuggestion(text)
}
