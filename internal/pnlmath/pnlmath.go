// Package pnlmath holds the pure margin and P&L functions of spec §4.2.
// Every function here is side-effect free and safe to unit test in
// isolation from the store, oracle, or any engine.
package pnlmath

import (
	"math"
	"strings"

	"github.com/epic1st/contestcore/internal/domain"
)

// ContractSize returns the contract size (units per lot) for symbol.
// Forex defaults to the standard 100,000 unit lot (spec §4.2); non-forex
// contract sizes are an open question left undefined, see DESIGN.md.
func ContractSize(symbol string) float64 {
	return domain.StandardLotUnits
}

// MarginRequired is quantity*contractSize*price/leverage.
func MarginRequired(quantity, price float64, leverage int, symbol string) float64 {
	if leverage <= 0 {
		return math.Inf(1)
	}
	return quantity * ContractSize(symbol) * price / float64(leverage)
}

// sideSign returns +1 for long, -1 for short.
func sideSign(side domain.PositionSide) float64 {
	if side == domain.PositionShort {
		return -1
	}
	return 1
}

// UnrealizedPnL computes sign(side) * (mark-entry) * quantity * contractSize.
func UnrealizedPnL(side domain.PositionSide, entry, mark, quantity float64, symbol string) float64 {
	return sideSign(side) * (mark - entry) * quantity * ContractSize(symbol)
}

// PnLPercentage is 100*pnl/marginUsed. Returns 0 when marginUsed is 0 to
// avoid a NaN/Inf result propagating into stored participant rows.
func PnLPercentage(pnl, marginUsed float64) float64 {
	if marginUsed == 0 {
		return 0
	}
	return 100 * pnl / marginUsed
}

// PipSize is 0.01 for JPY-quoted pairs, 0.0001 otherwise.
func PipSize(symbol string) float64 {
	if strings.Contains(strings.ToUpper(symbol), "JPY") {
		return 0.01
	}
	return 0.0001
}

// Quote is the minimal bid/ask shape pnlmath needs; the oracle package's
// richer Quote embeds these same fields so either satisfies this shape via
// plain field access from callers.
type Quote struct {
	Bid float64
	Ask float64
}

// EntryPrice returns the side-appropriate quote component used to open a
// position: ask for long entries, bid for short entries (spec §4.2).
func EntryPrice(side domain.PositionSide, q Quote) float64 {
	if side == domain.PositionLong {
		return q.Ask
	}
	return q.Bid
}

// ExitPrice returns the side-appropriate quote component used to close a
// position: mirrored from EntryPrice — bid for long exits, ask for short
// exits (spec §4.2, §4.5 step 3).
func ExitPrice(side domain.PositionSide, q Quote) float64 {
	if side == domain.PositionLong {
		return q.Bid
	}
	return q.Ask
}

// MarginLevel is 100*equity/usedMargin, +Inf when usedMargin is 0.
func MarginLevel(equity, usedMargin float64) float64 {
	if usedMargin == 0 {
		return math.Inf(1)
	}
	return 100 * equity / usedMargin
}

// MarginStatus classifies a margin level against admin-configured
// thresholds, ordered safe >= warning >= marginCall >= liquidation.
type MarginStatus string

const (
	MarginSafe        MarginStatus = "safe"
	MarginWarning     MarginStatus = "warning"
	MarginCall        MarginStatus = "margin_call"
	MarginLiquidation MarginStatus = "liquidation"
)

// Thresholds holds the four margin-status percent levels. ClassifyMargin
// consults Liquidation, MarginCall and Warning; any level above Warning is
// safe, so it does not read Safe.
type Thresholds struct {
	Safe        float64
	Warning     float64
	MarginCall  float64
	Liquidation float64
}

// ClassifyMargin buckets level against t, worst bucket first.
func ClassifyMargin(level float64, t Thresholds) MarginStatus {
	switch {
	case level <= t.Liquidation:
		return MarginLiquidation
	case level <= t.MarginCall:
		return MarginCall
	case level <= t.Warning:
		return MarginWarning
	default:
		return MarginSafe
	}
}

// Equity is currentCapital + sum of unrealized P&L across open positions.
func Equity(currentCapital float64, unrealizedPnls ...float64) float64 {
	eq := currentCapital
	for _, u := range unrealizedPnls {
		eq += u
	}
	return eq
}

// SlippagePips converts a price difference to pips for symbol, signed so a
// positive value means the execution was worse than expected for a buyer.
func SlippagePips(expected, actual float64, symbol string) float64 {
	pip := PipSize(symbol)
	if pip == 0 {
		return 0
	}
	return (actual - expected) / pip
}
