// Package oracle is the price feed adapter of spec §4.1: a minimal
// contract the rest of the core consumes from whatever upstream price
// service is configured, plus a caching layer and fetcher implementations.
// Grounded on the teacher's oanda and lpmanager/adapters packages (a
// fetcher that owns its own connection and pushes quotes onto a channel),
// generalized into one small interface instead of the teacher's
// LP-routing-aware adapter surface.
package oracle

import (
	"context"
	"time"
)

// Quote is a single symbol's market snapshot, matching spec §4.1's
// contract field-for-field.
type Quote struct {
	Symbol     string
	Bid        float64
	Ask        float64
	Mid        float64
	Spread     float64
	Timestamp  time.Time
	IsFallback bool
	IsStale    bool
}

// Oracle is the contract the order and position engines consume. Fallback
// and staleness are surfaced, never hidden: the adapter always answers,
// and callers (particularly the position engine's liquidation safety gate)
// decide what to do with a degraded quote.
type Oracle interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
	QuoteBatch(ctx context.Context, symbols []string) (map[string]Quote, error)
	IsMarketOpen(ctx context.Context) (bool, error)
	MarketStatus(ctx context.Context) (string, error)
}

// Fetcher is the narrow upstream-facing half of an Oracle: it produces raw
// quotes without any caching or staleness policy, which CachedOracle
// layers on top. Splitting this out lets rest.go and websocket.go each
// implement only the transport, not the caching contract.
type Fetcher interface {
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
	FetchQuoteBatch(ctx context.Context, symbols []string) (map[string]Quote, error)
	IsMarketOpen(ctx context.Context) (bool, error)
	MarketStatus(ctx context.Context) (string, error)
}
