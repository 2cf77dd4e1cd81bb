package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/opensource-finance/riskiq/internal/domain"
)

// cacheTenant namespaces memoised responses. They do not depend on the caller.
const cacheTenant = "inference"

func cacheKey(kind, name string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(name))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}

// CachedClassifier memoises classifications.
type CachedClassifier struct {
	inner domain.Classifier
	cache domain.Cache
	name  string
	ttl   time.Duration
}

// NewCachedClassifier wraps inner. name distinguishes models sharing the cache.
func NewCachedClassifier(inner domain.Classifier, cache domain.Cache, name string, ttl time.Duration) *CachedClassifier {
	return &CachedClassifier{inner: inner, cache: cache, name: name, ttl: ttl}
}

// Classify returns a cached result when present. Cache errors are ignored.
func (c *CachedClassifier) Classify(ctx context.Context, text string, labels []string) (*domain.Classification, error) {
	key := cacheKey("classify", c.name, text, strings.Join(labels, "\x1f"))

	if data, err := c.cache.Get(ctx, cacheTenant, key); err == nil && data != nil {
		var cached domain.Classification
		if json.Unmarshal(data, &cached) == nil && cached.Validate() == nil {
			return &cached, nil
		}
	}

	result, err := c.inner.Classify(ctx, text, labels)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(result); err == nil {
		_ = c.cache.Set(ctx, cacheTenant, key, data, c.ttl)
	}
	return result, nil
}

// CachedGenerator memoises generations.
type CachedGenerator struct {
	inner domain.Generator
	cache domain.Cache
	name  string
	ttl   time.Duration
}

// NewCachedGenerator wraps inner.
func NewCachedGenerator(inner domain.Generator, cache domain.Cache, name string, ttl time.Duration) *CachedGenerator {
	return &CachedGenerator{inner: inner, cache: cache, name: name, ttl: ttl}
}

// Generate returns a cached output when present.
func (g *CachedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	key := cacheKey("generate", g.name, prompt)

	if data, err := g.cache.Get(ctx, cacheTenant, key); err == nil && data != nil {
		return string(data), nil
	}

	out, err := g.inner.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	_ = g.cache.Set(ctx, cacheTenant, key, []byte(out), g.ttl)
	return out, nil
}

// LimitedClassifier waits on a shared token bucket before each call.
type LimitedClassifier struct {
	inner   domain.Classifier
	limiter *rate.Limiter
}

// NewLimitedClassifier wraps inner.
func NewLimitedClassifier(inner domain.Classifier, limiter *rate.Limiter) *LimitedClassifier {
	return &LimitedClassifier{inner: inner, limiter: limiter}
}

// Classify blocks until a token is available or ctx ends.
func (l *LimitedClassifier) Classify(ctx context.Context, text string, labels []string) (*domain.Classification, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.Classify(ctx, text, labels)
}

// LimitedGenerator waits on a shared token bucket before each call.
type LimitedGenerator struct {
	inner   domain.Generator
	limiter *rate.Limiter
}

// NewLimitedGenerator wraps inner.
func NewLimitedGenerator(inner domain.Generator, limiter *rate.Limiter) *LimitedGenerator {
	return &LimitedGenerator{inner: inner, limiter: limiter}
}

// Generate blocks until a token is available or ctx ends.
func (l *LimitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.inner.Generate(ctx, prompt)
}
