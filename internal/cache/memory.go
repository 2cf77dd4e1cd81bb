package cache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultLocalMaxSize is the entry limit of a memory cache unless set otherwise.
const DefaultLocalMaxSize = 10000

// MemoryCache is an in-process cache with TTL support and an entry limit.
// Used as the Community tier cache and as L1 in two-phase caching.
type MemoryCache struct {
	store   *gocache.Cache
	maxSize int

	// serialises writes that may create an entry
	mu sync.Mutex
}

// NewMemoryCache creates an in-process cache. Entries without an explicit
// TTL expire after defaultTTL; expired entries are purged every cleanup.
func NewMemoryCache(defaultTTL, cleanup time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &MemoryCache{store: gocache.New(defaultTTL, cleanup), maxSize: DefaultLocalMaxSize}
}

// WithMaxSize sets the entry limit. n <= 0 keeps the current limit.
func (c *MemoryCache) WithMaxSize(n int) *MemoryCache {
	if n > 0 {
		c.maxSize = n
	}
	return c
}

// admit makes room for key when the cache is full. Expired entries go first,
// then the entries closest to expiry. Callers hold mu.
func (c *MemoryCache) admit(key string) {
	if _, ok := c.store.Get(key); ok || c.store.ItemCount() < c.maxSize {
		return
	}
	c.store.DeleteExpired()
	for c.store.ItemCount() >= c.maxSize {
		victim, soonest := "", int64(math.MaxInt64)
		for k, item := range c.store.Items() {
			exp := item.Expiration
			if exp == 0 {
				exp = math.MaxInt64
			}
			if victim == "" || exp < soonest {
				victim, soonest = k, exp
			}
		}
		if victim == "" {
			return
		}
		c.store.Delete(victim)
	}
}

// Get retrieves a value from cache. Returns nil, nil on a miss.
func (c *MemoryCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	val, ok := c.store.Get(makeKey(tenantID, key))
	if !ok {
		return nil, nil
	}
	b, ok := val.([]byte)
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Set stores a copy of value with the given TTL.
func (c *MemoryCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	fullKey := makeKey(tenantID, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.admit(fullKey)
	c.store.Set(fullKey, stored, ttl)
	return nil
}

// Delete removes a value from cache.
func (c *MemoryCache) Delete(ctx context.Context, tenantID string, key string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	c.store.Delete(makeKey(tenantID, key))
	return nil
}

// IncrementCounter increments a counter that expires window after creation.
func (c *MemoryCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	fullKey := makeKey(tenantID, "counter:"+key)

	c.mu.Lock()
	defer c.mu.Unlock()

	// IncrementInt64 fails on missing or expired entries and keeps the
	// original expiration on success.
	if n, err := c.store.IncrementInt64(fullKey, 1); err == nil {
		return n, nil
	}
	c.admit(fullKey)
	c.store.Set(fullKey, int64(1), window)
	return 1, nil
}

// Ping always succeeds for the in-process cache.
func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Close drops all entries.
func (c *MemoryCache) Close() error {
	c.store.Flush()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *MemoryCache) Len() int {
	return c.store.ItemCount()
}
