package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/epic1st/contestcore/cache"
)

// countingFetcher is a Fetcher double that counts upstream calls so tests
// can assert the cache actually avoided a round trip.
type countingFetcher struct {
	quote    Quote
	fetches  int
}

func (f *countingFetcher) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	f.fetches++
	q := f.quote
	q.Symbol = symbol
	q.Timestamp = time.Now()
	return q, nil
}

func (f *countingFetcher) FetchQuoteBatch(ctx context.Context, symbols []string) (map[string]Quote, error) {
	out := make(map[string]Quote, len(symbols))
	for _, s := range symbols {
		q, _ := f.FetchQuote(ctx, s)
		out[s] = q
	}
	return out, nil
}

func (f *countingFetcher) IsMarketOpen(ctx context.Context) (bool, error) { return true, nil }
func (f *countingFetcher) MarketStatus(ctx context.Context) (string, error) {
	return "open", nil
}

func TestCachedOracleQuoteHitsCacheOnSecondCall(t *testing.T) {
	fetcher := &countingFetcher{quote: Quote{Bid: 1.1000, Ask: 1.1002}}
	c := cache.NewMemoryCache(1<<20, 100)
	oracle := NewCachedOracle(fetcher, c, time.Minute)

	ctx := context.Background()
	if _, err := oracle.Quote(ctx, "EURUSD"); err != nil {
		t.Fatalf("first Quote() call failed: %v", err)
	}
	if _, err := oracle.Quote(ctx, "EURUSD"); err != nil {
		t.Fatalf("second Quote() call failed: %v", err)
	}

	if fetcher.fetches != 1 {
		t.Fatalf("fetcher.fetches = %d, want 1 (second call should have hit the cache)", fetcher.fetches)
	}
}

// foreverCache is a minimal cache.Cache double that never expires entries,
// so CachedOracle's own staleness math (comparing Quote.Timestamp against
// cacheTTL) can be exercised independent of a backing store's own TTL
// eviction, which would otherwise race the same clock.
type foreverCache struct {
	value interface{}
	set   bool
}

func (c *foreverCache) Get(ctx context.Context, key string) (interface{}, error) {
	if !c.set {
		return nil, cache.ErrNotFound
	}
	return c.value, nil
}
func (c *foreverCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.value, c.set = value, true
	return nil
}
func (c *foreverCache) Delete(ctx context.Context, key string) error { c.set = false; return nil }
func (c *foreverCache) Exists(ctx context.Context, key string) (bool, error) { return c.set, nil }
func (c *foreverCache) Clear(ctx context.Context) error                     { c.set = false; return nil }
func (c *foreverCache) GetMulti(ctx context.Context, keys []string) (map[string]interface{}, error) {
	return nil, nil
}
func (c *foreverCache) SetMulti(ctx context.Context, items map[string]interface{}, ttl time.Duration) error {
	return nil
}
func (c *foreverCache) Stats() cache.CacheStats { return cache.CacheStats{} }

func TestCachedOracleQuoteMarksStaleQuoteBeyondTTL(t *testing.T) {
	fetcher := &countingFetcher{quote: Quote{Bid: 1.1000, Ask: 1.1002}}
	c := &foreverCache{}
	oracle := NewCachedOracle(fetcher, c, time.Millisecond)

	ctx := context.Background()
	if _, err := oracle.Quote(ctx, "EURUSD"); err != nil {
		t.Fatalf("Quote() failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	q, err := oracle.Quote(ctx, "EURUSD")
	if err != nil {
		t.Fatalf("Quote() failed: %v", err)
	}
	if !q.IsStale {
		t.Fatal("a quote read back past cacheTTL should be marked IsStale")
	}
	if fetcher.fetches != 1 {
		t.Fatalf("fetcher.fetches = %d, want 1: a stale cached quote is still returned, not refetched", fetcher.fetches)
	}
}

func TestCachedOracleQuoteBatchBypassesCacheRead(t *testing.T) {
	fetcher := &countingFetcher{quote: Quote{Bid: 1.1000, Ask: 1.1002}}
	c := cache.NewMemoryCache(1<<20, 100)
	oracle := NewCachedOracle(fetcher, c, time.Minute)

	ctx := context.Background()
	if _, err := oracle.Quote(ctx, "EURUSD"); err != nil {
		t.Fatalf("Quote() failed: %v", err)
	}
	if _, err := oracle.QuoteBatch(ctx, []string{"EURUSD"}); err != nil {
		t.Fatalf("QuoteBatch() failed: %v", err)
	}

	if fetcher.fetches != 2 {
		t.Fatalf("fetcher.fetches = %d, want 2: QuoteBatch always asks the fetcher, even for a symbol already cached", fetcher.fetches)
	}
}

func TestCachedOracleDelegatesMarketStatus(t *testing.T) {
	fetcher := &countingFetcher{quote: Quote{Bid: 1, Ask: 1}}
	c := cache.NewMemoryCache(1<<20, 100)
	oracle := NewCachedOracle(fetcher, c, time.Minute)

	open, err := oracle.IsMarketOpen(context.Background())
	if err != nil || !open {
		t.Fatalf("IsMarketOpen() = (%v, %v), want (true, nil)", open, err)
	}
	status, err := oracle.MarketStatus(context.Background())
	if err != nil || status != "open" {
		t.Fatalf("MarketStatus() = (%q, %v), want (\"open\", nil)", status, err)
	}
}
