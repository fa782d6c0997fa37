package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StaticOracle is a programmable Oracle double for engine-package unit
// tests: callers seed fixed quotes and flip market-open state directly
// instead of standing up a fetcher and cache.
type StaticOracle struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	open   bool
	status string
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{
		quotes: make(map[string]Quote),
		open:   true,
		status: "open",
	}
}

// Set seeds or replaces the quote for a symbol. Mid and Spread are derived
// from Bid/Ask if left zero.
func (o *StaticOracle) Set(symbol string, bid, ask float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quotes[symbol] = Quote{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Mid:       (bid + ask) / 2,
		Spread:    ask - bid,
		Timestamp: time.Now(),
	}
}

// SetQuote installs a fully-formed Quote verbatim, for tests that need to
// exercise IsFallback/IsStale or a specific Timestamp.
func (o *StaticOracle) SetQuote(q Quote) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quotes[q.Symbol] = q
}

func (o *StaticOracle) SetMarketOpen(open bool, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open = open
	o.status = status
}

func (o *StaticOracle) Quote(ctx context.Context, symbol string) (Quote, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	q, ok := o.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("oracle: no quote seeded for %s", symbol)
	}
	return q, nil
}

func (o *StaticOracle) QuoteBatch(ctx context.Context, symbols []string) (map[string]Quote, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]Quote, len(symbols))
	for _, s := range symbols {
		if q, ok := o.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

func (o *StaticOracle) IsMarketOpen(ctx context.Context) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.open, nil
}

func (o *StaticOracle) MarketStatus(ctx context.Context) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status, nil
}
