package positionengine

import (
	"context"
	"fmt"
	"time"

	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/oracle"
	"github.com/epic1st/contestcore/internal/store"
)

// staleQuoteWindow is the age beyond which a quote is too old to act on for
// protective orders (spec §4.5): a fallback/cache quote, or one older than
// this, is skipped rather than used to trigger a stop loss or take profit.
const staleQuoteWindow = 60 * time.Second

func quoteUsable(q oracle.Quote, now time.Time) bool {
	if q.IsFallback {
		return false
	}
	return now.Sub(q.Timestamp) <= staleQuoteWindow
}

// stopLossTriggered reports whether mark has crossed a position's stop
// loss: for a long, the mark has fallen to or below it; for a short, risen
// to or above it.
func stopLossTriggered(side domain.PositionSide, mark, stopLoss float64) bool {
	if side == domain.PositionShort {
		return mark >= stopLoss
	}
	return mark <= stopLoss
}

// takeProfitTriggered mirrors stopLossTriggered for the opposite direction.
func takeProfitTriggered(side domain.PositionSide, mark, takeProfit float64) bool {
	if side == domain.PositionShort {
		return mark <= takeProfit
	}
	return mark >= takeProfit
}

// CheckStopLossTakeProfit is spec §4.5's protective-order scanner: for
// every open position in a contest that carries a stop loss or take
// profit, evaluates the current mark against it and closes the position
// automatically when triggered. Positions whose symbol quote is a fallback
// or older than staleQuoteWindow are skipped for this pass rather than
// acted on with a price that cannot be trusted.
func (s *Service) CheckStopLossTakeProfit(ctx context.Context, contestID int64) error {
	all, err := store.ListOpenPositionsByContest(ctx, s.store.Pool(), contestID)
	if err != nil {
		return fmt.Errorf("positionengine: list open positions: %w", err)
	}

	var positions []*domain.Position
	for _, p := range all {
		if p.StopLoss != nil || p.TakeProfit != nil {
			positions = append(positions, p)
		}
	}
	if len(positions) == 0 {
		return nil
	}

	symbols := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		symbols[p.Symbol] = struct{}{}
	}
	symbolList := make([]string, 0, len(symbols))
	for sym := range symbols {
		symbolList = append(symbolList, sym)
	}

	quotes, err := s.oracle.QuoteBatch(ctx, symbolList)
	if err != nil {
		return fmt.Errorf("positionengine: protective scan quote batch: %w", err)
	}

	now := time.Now()
	for _, p := range positions {
		quote, ok := quotes[p.Symbol]
		if !ok || !quoteUsable(quote, now) {
			continue
		}

		mark := quote.Mid
		var reason domain.CloseReason
		switch {
		case p.StopLoss != nil && stopLossTriggered(p.Side, mark, *p.StopLoss):
			reason = domain.CloseStopLoss
		case p.TakeProfit != nil && takeProfitTriggered(p.Side, mark, *p.TakeProfit):
			reason = domain.CloseTakeProfit
		default:
			continue
		}

		if _, _, err := s.ClosePositionAutomatic(ctx, p.ID, quote, reason); err != nil {
			continue
		}
	}
	return nil
}
