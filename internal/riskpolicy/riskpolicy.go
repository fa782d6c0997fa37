// Package riskpolicy evaluates the ordered per-order checks and per-contest
// risk limits spec §4.3 defines before an order is allowed. Grounded on the
// teacher's risk/pretrade.go PreTradeValidator (a sequential, numbered
// Check-N pattern returning the first failure with a human-readable
// reason), narrowed from its fifteen brokerage-specific checks (ESMA
// leverage tiers, fat-finger detection, circuit breakers, credit limits)
// down to the seven a contest core actually needs plus the three optional
// per-contest limits.
package riskpolicy

import (
	"fmt"
	"time"

	"github.com/epic1st/contestcore/internal/coreerrors"
	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/pnlmath"
)

// OrderParams is the subset of an incoming order the policy needs to
// evaluate, independent of how the caller sourced it (HTTP, scheduler).
type OrderParams struct {
	Symbol     string
	Side       domain.OrderSide
	Type       domain.OrderType
	Quantity   float64
	Leverage   int
	LimitPrice float64 // only meaningful when Type == OrderTypeLimit
	StopLoss   *float64
	TakeProfit *float64
}

// MarketQuote is the minimal quote shape the policy consults for limit
// price and SL/TP direction sanity checks.
type MarketQuote struct {
	Bid float64
	Ask float64
}

func (q MarketQuote) mid() float64 { return (q.Bid + q.Ask) / 2 }

// Limits bundles the admin-configured bounds a contest and the platform
// impose, independent of domain.Contest so the policy package doesn't
// depend on store-shaped values beyond what it's handed.
type Limits struct {
	MinPositionSize float64
	MaxPositionSize float64
	MinLimitPips    float64
	MaxLimitPips    float64
}

// CheckOrder runs the seven ordered per-order checks of spec §4.3,
// returning the first violation: a coreerrors.KindRisk error, except the
// capital check, which returns a KindState error wrapping
// coreerrors.ErrInsufficientCapital. A nil
// return means the order may proceed to price acquisition.
func CheckOrder(p OrderParams, contest *domain.Contest, participant *domain.Participant, limits Limits, quote MarketQuote, marginRequired float64) error {
	// Check 1: quantity bounds.
	if p.Quantity < limits.MinPositionSize || p.Quantity > limits.MaxPositionSize {
		return riskRejected(fmt.Sprintf("quantity %.4f outside allowed range [%.4f, %.4f]",
			p.Quantity, limits.MinPositionSize, limits.MaxPositionSize))
	}

	// Check 2: symbol allow/block list.
	if !contest.AllowsSymbol(p.Symbol) {
		return riskRejected(fmt.Sprintf("symbol %s not tradable in this contest", p.Symbol))
	}

	// Check 3: leverage bounds.
	if p.Leverage < contest.Leverage.Min || p.Leverage > contest.Leverage.Max {
		return riskRejected(fmt.Sprintf("leverage %dx outside contest range [%d, %d]",
			p.Leverage, contest.Leverage.Min, contest.Leverage.Max))
	}

	// Check 4: limit order price/distance rules.
	if p.Type == domain.OrderTypeLimit {
		if err := checkLimitPrice(p, quote, limits); err != nil {
			return err
		}
	}

	// Check 5: SL/TP direction sanity.
	if err := checkStopTakeDirection(p); err != nil {
		return err
	}

	// Check 6: open position count.
	if participant.CurrentOpenPositions >= contest.MaxOpenPositions {
		return riskRejected(fmt.Sprintf("open position limit reached: %d >= %d",
			participant.CurrentOpenPositions, contest.MaxOpenPositions))
	}

	// Check 7: available capital covers required margin.
	if marginRequired > participant.AvailableCapital {
		return coreerrors.Wrap(coreerrors.KindState, "insufficient capital for margin", coreerrors.ErrInsufficientCapital)
	}

	return nil
}

func checkLimitPrice(p OrderParams, quote MarketQuote, limits Limits) error {
	if p.Side == domain.SideBuy && p.LimitPrice >= quote.Ask {
		return riskRejected(fmt.Sprintf("buy limit price %.5f must be below current ask %.5f", p.LimitPrice, quote.Ask))
	}
	if p.Side == domain.SideSell && p.LimitPrice <= quote.Bid {
		return riskRejected(fmt.Sprintf("sell limit price %.5f must be above current bid %.5f", p.LimitPrice, quote.Bid))
	}

	pip := pnlmath.PipSize(p.Symbol)
	distancePips := (quote.mid() - p.LimitPrice) / pip
	if distancePips < 0 {
		distancePips = -distancePips
	}
	if limits.MinLimitPips > 0 && distancePips < limits.MinLimitPips {
		return riskRejected(fmt.Sprintf("limit price %.1f pips from mid, below minimum %.1f", distancePips, limits.MinLimitPips))
	}
	if limits.MaxLimitPips > 0 && distancePips > limits.MaxLimitPips {
		return riskRejected(fmt.Sprintf("limit price %.1f pips from mid, above maximum %.1f", distancePips, limits.MaxLimitPips))
	}
	return nil
}

func checkStopTakeDirection(p OrderParams) error {
	// Entry price isn't known yet for a market order at this stage of the
	// pipeline, so direction sanity is evaluated against the limit price for
	// limit orders and deferred to order fill time for market orders (the
	// order engine re-checks against the actual fill price before writing
	// the position row).
	if p.Type != domain.OrderTypeLimit {
		return nil
	}
	entry := p.LimitPrice
	long := p.Side == domain.SideBuy

	if p.StopLoss != nil {
		if long && *p.StopLoss >= entry {
			return riskRejected("stop loss for a long position must be below entry")
		}
		if !long && *p.StopLoss <= entry {
			return riskRejected("stop loss for a short position must be above entry")
		}
	}
	if p.TakeProfit != nil {
		if long && *p.TakeProfit <= entry {
			return riskRejected("take profit for a long position must be above entry")
		}
		if !long && *p.TakeProfit >= entry {
			return riskRejected("take profit for a short position must be below entry")
		}
	}
	return nil
}

// CheckStopTakeAgainstFill re-runs the SL/TP direction check against the
// actual fill price of a market order, the deferred half of check 5 above.
func CheckStopTakeAgainstFill(side domain.OrderSide, entry float64, stopLoss, takeProfit *float64) error {
	long := side == domain.SideBuy
	if stopLoss != nil {
		if long && *stopLoss >= entry {
			return riskRejected("stop loss for a long position must be below entry")
		}
		if !long && *stopLoss <= entry {
			return riskRejected("stop loss for a short position must be above entry")
		}
	}
	if takeProfit != nil {
		if long && *takeProfit <= entry {
			return riskRejected("take profit for a long position must be above entry")
		}
		if !long && *takeProfit >= entry {
			return riskRejected("take profit for a short position must be below entry")
		}
	}
	return nil
}

// ContestLimitsCheck evaluates the three optional per-contest risk limits
// (spec §4.3), only when contest.RiskLimits.Enabled. openPositionPnls are
// the unrealized P&L of the participant's currently open positions, and
// dailyRealizedPnl is the sum of realized P&L of positions closed since
// 00:00 UTC today.
func ContestLimitsCheck(contest *domain.Contest, participant *domain.Participant, dailyRealizedPnl float64, openPositionPnls []float64, now time.Time) error {
	if !contest.RiskLimits.Enabled {
		return nil
	}

	if contest.RiskLimits.MaxDrawdownPercent > 0 {
		floor := participant.StartingCapital * (1 - contest.RiskLimits.MaxDrawdownPercent/100)
		if participant.CurrentCapital <= floor {
			return riskRejected(fmt.Sprintf("max drawdown reached: capital %.2f <= floor %.2f", participant.CurrentCapital, floor))
		}
	}

	if contest.RiskLimits.DailyLossLimitPercent > 0 {
		limit := participant.StartingCapital * contest.RiskLimits.DailyLossLimitPercent / 100
		loss := dailyRealizedPnl
		if loss < 0 {
			loss = -loss
		} else {
			loss = 0
		}
		if loss >= limit {
			return riskRejected(fmt.Sprintf("daily loss limit reached: %.2f >= %.2f", loss, limit))
		}
	}

	if contest.RiskLimits.EquityCheckEnabled && contest.RiskLimits.EquityDrawdownPercent > 0 {
		equity := pnlmath.Equity(participant.CurrentCapital, openPositionPnls...)
		floor := participant.StartingCapital * (1 - contest.RiskLimits.EquityDrawdownPercent/100)
		if equity <= floor {
			return riskRejected(fmt.Sprintf("equity drawdown reached: equity %.2f <= floor %.2f", equity, floor))
		}
	}

	return nil
}

func riskRejected(reason string) error {
	return coreerrors.New(coreerrors.KindRisk, reason)
}
