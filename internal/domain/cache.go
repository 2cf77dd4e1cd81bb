package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: in-process memory (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// IncrementCounter atomically increments a counter and returns new value.
	// The counter expires window after its first increment.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `mapstructure:"type" yaml:"type"`

	// In-process cache settings
	LocalTTL     time.Duration `mapstructure:"localTTL" yaml:"localTTL"`
	LocalCleanup time.Duration `mapstructure:"localCleanup" yaml:"localCleanup"`
	LocalMaxSize int           `mapstructure:"localMaxSize" yaml:"localMaxSize"`

	// Redis settings (Pro tier)
	RedisAddr     string `mapstructure:"redisAddr" yaml:"redisAddr"`
	RedisPassword string `mapstructure:"redisPassword" yaml:"redisPassword"`
	RedisDB       int    `mapstructure:"redisDB" yaml:"redisDB"`

	// If true, check local first, then Redis
	EnableTwoPhase bool `mapstructure:"enableTwoPhase" yaml:"enableTwoPhase"`
}
