// Package velocity counts repeated submissions of the same identity.
package velocity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/riskiq/internal/domain"
)

// DefaultWindow is used when no window is configured.
const DefaultWindow = 24 * time.Hour

// Service tracks how often an identity was submitted within a sliding window.
type Service struct {
	cache  domain.Cache
	window time.Duration
}

// NewService creates a velocity service backed by the cache counters.
func NewService(cache domain.Cache, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{cache: cache, window: window}
}

// RecordSubmission increments and returns the submission count for an identity.
// Identities are normalised and hashed so raw IDs never reach the cache.
func (s *Service) RecordSubmission(ctx context.Context, tenantID, identity string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}
	identity = strings.ToUpper(strings.TrimSpace(identity))
	if identity == "" {
		return 0, nil
	}

	count, err := s.cache.IncrementCounter(ctx, tenantID, counterKey(identity), s.window)
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

// Window returns the counting window.
func (s *Service) Window() time.Duration {
	return s.window
}

func counterKey(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return "velocity:id:" + hex.EncodeToString(sum[:8])
}
