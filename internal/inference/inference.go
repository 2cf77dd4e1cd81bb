// Package inference provides the external NLP backends used to refine the
// rule-based analysers: zero-shot classification and text generation.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/opensource-finance/riskiq/internal/domain"
)

var (
	// ErrUnavailable is returned when the backend cannot be reached or refuses the call.
	ErrUnavailable = errors.New("inference backend unavailable")

	// ErrMalformedResponse is returned when a response cannot be interpreted.
	ErrMalformedResponse = errors.New("malformed inference response")
)

// Backend bundles the configured classifier and generators.
type Backend struct {
	Provider   string
	Classifier domain.Classifier

	// Generators are tried in order for clause rewrites.
	Generators []domain.Generator

	// RiskGenerator refines loan-risk scores.
	RiskGenerator domain.Generator

	closers []func() error
}

// Close releases provider clients.
func (b *Backend) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the backend for the configured provider. It returns nil, nil
// when no provider is configured, leaving every analyser on its rule tier.
// cache may be nil to disable response memoisation.
func New(ctx context.Context, cfg domain.InferenceConfig, cache domain.Cache, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	provider := strings.ToLower(cfg.Provider)
	var (
		backend *Backend
		err     error
	)

	switch provider {
	case "":
		return nil, nil

	case "huggingface", "hf":
		backend = newHuggingFaceBackend(cfg)

	case "openai":
		backend, err = newOpenAIBackend(cfg)

	case "gemini":
		backend, err = newGeminiBackend(ctx, cfg)

	default:
		return nil, fmt.Errorf("unknown inference provider: %s (supported: huggingface, openai, gemini)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	backend.Provider = provider

	decorate(backend, cfg, cache)

	logger.Info("inference backend ready",
		"provider", provider,
		"generators", len(backend.Generators),
		"rate_limit", cfg.RequestsPerSecond,
		"cache_ttl", cfg.CacheTTL.String(),
	)
	return backend, nil
}

// decorate wraps every client with the shared rate limiter and, outermost,
// the response cache so cache hits do not spend tokens.
func decorate(b *Backend, cfg domain.InferenceConfig, cache domain.Cache) {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	wrapGen := func(name string, g domain.Generator) domain.Generator {
		if limiter != nil {
			g = NewLimitedGenerator(g, limiter)
		}
		if cache != nil && cfg.CacheTTL > 0 {
			g = NewCachedGenerator(g, cache, name, cfg.CacheTTL)
		}
		return g
	}

	if b.Classifier != nil {
		c := b.Classifier
		if limiter != nil {
			c = NewLimitedClassifier(c, limiter)
		}
		if cache != nil && cfg.CacheTTL > 0 {
			c = NewCachedClassifier(c, cache, b.Provider+":"+cfg.ClassifierModel, cfg.CacheTTL)
		}
		b.Classifier = c
	}

	for i, g := range b.Generators {
		name := fmt.Sprintf("%s:generator:%d", b.Provider, i)
		if i < len(cfg.GeneratorModels) {
			name = b.Provider + ":" + cfg.GeneratorModels[i]
		}
		b.Generators[i] = wrapGen(name, g)
	}
	if b.RiskGenerator != nil {
		b.RiskGenerator = wrapGen(b.Provider+":"+cfg.RiskModel, b.RiskGenerator)
	}
}
