package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/riskiq/internal/domain"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("GetSetDelete", func(t *testing.T) {
		c := NewMemoryCache(time.Minute, time.Minute)
		defer c.Close()

		if err := c.Set(ctx, tenantID, "k", []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		val, err := c.Get(ctx, tenantID, "k")
		if err != nil || string(val) != "v" {
			t.Fatalf("expected v, got %q (%v)", val, err)
		}

		if err := c.Delete(ctx, tenantID, "k"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		val, _ = c.Get(ctx, tenantID, "k")
		if val != nil {
			t.Errorf("expected nil after delete, got %q", val)
		}
	})

	t.Run("Miss", func(t *testing.T) {
		c := NewMemoryCache(time.Minute, time.Minute)
		val, err := c.Get(ctx, tenantID, "missing")
		if val != nil || err != nil {
			t.Errorf("expected nil, nil on miss, got %q, %v", val, err)
		}
	})

	t.Run("MaxSize", func(t *testing.T) {
		c := NewMemoryCache(time.Minute, time.Minute).WithMaxSize(3)
		defer c.Close()

		_ = c.Set(ctx, tenantID, "soon", []byte("1"), 10*time.Second)
		_ = c.Set(ctx, tenantID, "b", []byte("2"), time.Minute)
		_ = c.Set(ctx, tenantID, "c", []byte("3"), time.Minute)

		// overwriting an existing key evicts nothing
		_ = c.Set(ctx, tenantID, "b", []byte("2b"), time.Minute)
		if c.Len() != 3 {
			t.Fatalf("expected 3 entries, got %d", c.Len())
		}

		_ = c.Set(ctx, tenantID, "d", []byte("4"), time.Minute)
		if c.Len() != 3 {
			t.Errorf("expected the limit of 3 entries, got %d", c.Len())
		}
		if val, _ := c.Get(ctx, tenantID, "soon"); val != nil {
			t.Error("expected the entry closest to expiry to be evicted")
		}
		for _, key := range []string{"b", "c", "d"} {
			if val, _ := c.Get(ctx, tenantID, key); val == nil {
				t.Errorf("expected %s to survive eviction", key)
			}
		}

		if _, err := c.IncrementCounter(ctx, tenantID, "hits", time.Minute); err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if c.Len() != 3 {
			t.Errorf("counters must respect the limit, got %d entries", c.Len())
		}
	})

	t.Run("MaxSizeManyWrites", func(t *testing.T) {
		c := NewMemoryCache(time.Minute, time.Minute).WithMaxSize(50)
		defer c.Close()

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					_ = c.Set(ctx, tenantID, fmt.Sprintf("k-%d-%d", w, i), []byte("v"), time.Minute)
				}
			}(w)
		}
		wg.Wait()

		if c.Len() > 50 {
			t.Errorf("expected at most 50 entries, got %d", c.Len())
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		c := NewMemoryCache(time.Minute, time.Minute)
		_ = c.Set(ctx, "tenant-a", "shared", []byte("a"), time.Minute)

		val, _ := c.Get(ctx, "tenant-b", "shared")
		if val != nil {
			t.Error("tenant-b must not see tenant-a's entry")
		}
	})

	t.Run("RequiresTenant", func(t *testing.T) {
		c := NewMemoryCache(time.Minute, time.Minute)
		if _, err := c.Get(ctx, "", "k"); err == nil {
			t.Error("expected error without tenant")
		}
		if err := c.Set(ctx, "", "k", nil, time.Minute); err == nil {
			t.Error("expected error without tenant")
		}
		if _, err := c.IncrementCounter(ctx, "", "k", time.Minute); err == nil {
			t.Error("expected error without tenant")
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		c := NewMemoryCache(time.Minute, time.Minute)
		_ = c.Set(ctx, tenantID, "short", []byte("v"), 20*time.Millisecond)
		time.Sleep(40 * time.Millisecond)

		val, _ := c.Get(ctx, tenantID, "short")
		if val != nil {
			t.Error("expected entry to expire")
		}
	})

	t.Run("StoredValueIsCopied", func(t *testing.T) {
		c := NewMemoryCache(time.Minute, time.Minute)
		buf := []byte("original")
		_ = c.Set(ctx, tenantID, "copy", buf, time.Minute)
		buf[0] = 'X'

		val, _ := c.Get(ctx, tenantID, "copy")
		if string(val) != "original" {
			t.Errorf("expected stored copy, got %q", val)
		}
	})

	t.Run("ConcurrentCounter", func(t *testing.T) {
		c := NewMemoryCache(time.Minute, time.Minute)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = c.IncrementCounter(ctx, tenantID, "hits", time.Minute)
			}()
		}
		wg.Wait()

		n, _ := c.IncrementCounter(ctx, tenantID, "hits", time.Minute)
		if n != 51 {
			t.Errorf("expected 51, got %d", n)
		}
	})

	t.Run("Close", func(t *testing.T) {
		c := NewMemoryCache(time.Minute, time.Minute)
		_ = c.Set(ctx, tenantID, "k", []byte("v"), time.Minute)

		if err := c.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
		if c.Len() != 0 {
			t.Error("expected cache to be cleared after close")
		}
	})
}

// failingCache errors on every call.
type failingCache struct{ *MemoryCache }

func (f *failingCache) Get(ctx context.Context, tenantID, key string) ([]byte, error) {
	return nil, errors.New("remote down")
}

func (f *failingCache) Ping(ctx context.Context) error { return errors.New("remote down") }

func TestTwoPhaseCache(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("L2HitPopulatesL1", func(t *testing.T) {
		local := NewMemoryCache(time.Minute, time.Minute)
		remote := NewMemoryCache(time.Minute, time.Minute)
		c := NewLayered(local, remote, time.Minute)

		_ = remote.Set(ctx, tenantID, "k", []byte("from-l2"), time.Minute)

		val, err := c.Get(ctx, tenantID, "k")
		if err != nil || string(val) != "from-l2" {
			t.Fatalf("expected L2 value, got %q (%v)", val, err)
		}
		l1, _ := local.Get(ctx, tenantID, "k")
		if string(l1) != "from-l2" {
			t.Error("expected L1 to be populated on L2 hit")
		}
	})

	t.Run("SetWritesBoth", func(t *testing.T) {
		local := NewMemoryCache(time.Minute, time.Minute)
		remote := NewMemoryCache(time.Minute, time.Minute)
		c := NewLayered(local, remote, time.Minute)

		_ = c.Set(ctx, tenantID, "k", []byte("v"), time.Hour)
		for name, layer := range map[string]*MemoryCache{"L1": local, "L2": remote} {
			if v, _ := layer.Get(ctx, tenantID, "k"); string(v) != "v" {
				t.Errorf("%s missing value", name)
			}
		}

		_ = c.Delete(ctx, tenantID, "k")
		if v, _ := remote.Get(ctx, tenantID, "k"); v != nil {
			t.Error("expected L2 delete")
		}
	})

	t.Run("CountersUseL2", func(t *testing.T) {
		local := NewMemoryCache(time.Minute, time.Minute)
		remote := NewMemoryCache(time.Minute, time.Minute)
		c := NewLayered(local, remote, time.Minute)

		_, _ = c.IncrementCounter(ctx, tenantID, "n", time.Minute)
		n, _ := remote.IncrementCounter(ctx, tenantID, "n", time.Minute)
		if n != 2 {
			t.Errorf("expected L2 counter 2, got %d", n)
		}
	})

	t.Run("RemoteFailure", func(t *testing.T) {
		remote := &failingCache{MemoryCache: NewMemoryCache(time.Minute, time.Minute)}
		c := NewLayered(NewMemoryCache(time.Minute, time.Minute), remote, time.Minute)

		if _, err := c.Get(ctx, tenantID, "missing"); err == nil {
			t.Error("expected L2 error to surface")
		}
		if err := c.Ping(ctx); err == nil {
			t.Error("expected ping failure")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer c.Close()

		if _, ok := c.(*MemoryCache); !ok {
			t.Error("expected MemoryCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
