package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheSetThenGet(t *testing.T) {
	c := NewMemoryCache(0, 0)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set() returned error: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if got != "v" {
		t.Fatalf("Get() = %v, want %q", got, "v")
	}
}

func TestMemoryCacheGetMissingKeyReturnsErrNotFound(t *testing.T) {
	c := NewMemoryCache(0, 0)
	if _, err := c.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryCacheEntryExpiresAfterTTL(t *testing.T) {
	c := NewMemoryCache(0, 0)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Millisecond); err != nil {
		t.Fatalf("Set() returned error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrExpired) {
		t.Fatalf("Get() error = %v, want ErrExpired", err)
	}
}

func TestMemoryCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewMemoryCache(0, 0)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set() returned error: %v", err)
	}
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() returned error: %v, want nil (no TTL should mean no expiry)", err)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache(0, 0)
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", time.Minute)

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() returned error: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryCacheExists(t *testing.T) {
	c := NewMemoryCache(0, 0)
	ctx := context.Background()

	exists, err := c.Exists(ctx, "k")
	if err != nil || exists {
		t.Fatalf("Exists() for missing key = (%v, %v), want (false, nil)", exists, err)
	}

	_ = c.Set(ctx, "k", "v", time.Minute)
	exists, err = c.Exists(ctx, "k")
	if err != nil || !exists {
		t.Fatalf("Exists() for set key = (%v, %v), want (true, nil)", exists, err)
	}
}

func TestMemoryCacheClear(t *testing.T) {
	c := NewMemoryCache(0, 0)
	ctx := context.Background()
	_ = c.Set(ctx, "a", 1, time.Minute)
	_ = c.Set(ctx, "b", 2, time.Minute)

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() returned error: %v", err)
	}
	if exists, _ := c.Exists(ctx, "a"); exists {
		t.Fatal("key should not exist after Clear()")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsedWhenFull(t *testing.T) {
	c := NewMemoryCache(0, 2)
	ctx := context.Background()

	_ = c.Set(ctx, "a", 1, time.Minute)
	_ = c.Set(ctx, "b", 2, time.Minute)
	// touch "a" so it becomes most-recently-used, leaving "b" as the LRU victim
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatalf("Get(a) returned error: %v", err)
	}
	_ = c.Set(ctx, "c", 3, time.Minute)

	if exists, _ := c.Exists(ctx, "b"); exists {
		t.Fatal("\"b\" should have been evicted as the least recently used entry")
	}
	if exists, _ := c.Exists(ctx, "a"); !exists {
		t.Fatal("\"a\" was touched most recently and should have survived eviction")
	}
	if exists, _ := c.Exists(ctx, "c"); !exists {
		t.Fatal("\"c\" was just inserted and should be present")
	}
}

func TestMemoryCacheGetMultiAndSetMulti(t *testing.T) {
	c := NewMemoryCache(0, 0)
	ctx := context.Background()

	if err := c.SetMulti(ctx, map[string]interface{}{"a": 1, "b": 2}, time.Minute); err != nil {
		t.Fatalf("SetMulti() returned error: %v", err)
	}

	got, err := c.GetMulti(ctx, []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("GetMulti() returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetMulti() returned %d entries, want 2 (missing key should be silently skipped)", len(got))
	}
}

func TestMemoryCacheStatsTracksHitsAndMisses(t *testing.T) {
	c := NewMemoryCache(0, 0)
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", time.Minute)

	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if _, err := c.Get(ctx, "missing"); err == nil {
		t.Fatal("Get() for missing key should return an error")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 {
		t.Fatalf("Stats() = %+v, want Hits=1 Misses=1 Sets=1", stats)
	}
	if stats.HitRate != 0.5 {
		t.Fatalf("Stats().HitRate = %v, want 0.5", stats.HitRate)
	}
}
