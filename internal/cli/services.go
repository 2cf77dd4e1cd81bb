package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/riskiq/internal/compliance"
	"github.com/opensource-finance/riskiq/internal/domain"
	"github.com/opensource-finance/riskiq/internal/fraud"
	"github.com/opensource-finance/riskiq/internal/inference"
	"github.com/opensource-finance/riskiq/internal/metrics"
	"github.com/opensource-finance/riskiq/internal/risk"
	"github.com/opensource-finance/riskiq/internal/rules"
	"github.com/opensource-finance/riskiq/internal/velocity"
)

// services are the three analyzers and what they are built from.
type services struct {
	backend    *inference.Backend
	fraudRules *rules.Engine
	riskRules  *rules.Engine
	compliance *compliance.Analyzer
	fraud      *fraud.Scorer
	risk       *risk.Scorer
}

// newServices loads the rule tables, connects the inference provider if one
// is configured and assembles the analyzers. m may be nil.
func newServices(ctx context.Context, cfg *domain.Config, c domain.Cache, logger *slog.Logger, m *metrics.Collector) (*services, error) {
	fraudRules, err := rules.LoadEngine(rules.NewFraudEngine, cfg.Rules.FraudFile, rules.DefaultFraudRules())
	if err != nil {
		return nil, fmt.Errorf("failed to load fraud rules: %w", err)
	}
	riskRules, err := rules.LoadEngine(rules.NewRiskEngine, cfg.Rules.RiskFile, rules.DefaultRiskRules())
	if err != nil {
		return nil, fmt.Errorf("failed to load risk rules: %w", err)
	}

	backend, err := inference.New(ctx, cfg.Inference, c, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inference: %w", err)
	}

	classifierOpts := []compliance.Option{compliance.WithLogger(logger), compliance.WithMetrics(m)}
	fraudOpts := []fraud.Option{fraud.WithLogger(logger), fraud.WithMetrics(m)}
	riskOpts := []risk.Option{
		risk.WithLogger(logger),
		risk.WithMetrics(m),
		risk.WithCurrency(cfg.Risk.CurrencySymbol, cfg.Risk.Locale),
	}

	if c != nil {
		fraudOpts = append(fraudOpts, fraud.WithVelocity(velocity.NewService(c, cfg.Fraud.VelocityWindow)))
	}

	if backend != nil {
		classifierOpts = append(classifierOpts,
			compliance.WithModel(backend.Classifier, backend.Generators...),
			compliance.WithTimeout(cfg.Inference.Timeout),
		)
		fraudOpts = append(fraudOpts,
			fraud.WithModel(backend.Classifier),
			fraud.WithTimeout(cfg.Inference.Timeout),
		)
		if cfg.Risk.ModelRefinement && backend.RiskGenerator != nil {
			riskOpts = append(riskOpts,
				risk.WithGenerator(backend.RiskGenerator),
				risk.WithTimeout(cfg.Inference.Timeout),
			)
		}
	}

	classifier := compliance.NewClassifier(classifierOpts...)
	return &services{
		backend:    backend,
		fraudRules: fraudRules,
		riskRules:  riskRules,
		compliance: compliance.NewAnalyzer(classifier, cfg.Compliance.MaxConcurrency, logger, m),
		fraud:      fraud.NewScorer(fraudRules, fraudOpts...),
		risk:       risk.NewScorer(riskRules, riskOpts...),
	}, nil
}

// Close releases the inference clients.
func (s *services) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
