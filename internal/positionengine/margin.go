package positionengine

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/oracle"
	"github.com/epic1st/contestcore/internal/pnlmath"
	"github.com/epic1st/contestcore/internal/store"
)

// liquidationDivergenceLimit bounds how far a quote may have moved from a
// position's entry price and still be trusted to liquidate against (spec
// §4.5's safety gate).
const liquidationDivergenceLimit = 0.10

// safeToLiquidate is the mandatory safety gate: refuses to act on a
// fallback quote, one older than staleQuoteWindow, or one that has moved
// more than liquidationDivergenceLimit away from the position's own entry
// price, since any of those would make a liquidation decision on a price
// that cannot be trusted.
func safeToLiquidate(p *domain.Position, q oracle.Quote, now time.Time) bool {
	if !quoteUsable(q, now) {
		return false
	}
	if p.EntryPrice == 0 {
		return true
	}
	divergence := math.Abs(q.Mid-p.EntryPrice) / p.EntryPrice
	return divergence <= liquidationDivergenceLimit
}

// CheckMarginCalls is spec §4.5's margin scanner: for every active
// participant with open positions in a contest, recomputes equity and
// margin level from fresh quotes, classifies it against the configured
// thresholds, and liquidates the participant's entire open book when the
// liquidation threshold is breached. The safety gate is all-or-nothing per
// participant: if any involved symbol's quote is fallback, stale, or
// diverged, nothing is liquidated this pass and the whole book is left open
// for the next one, rather than closing the positions whose quotes happen
// to look fine.
func (s *Service) CheckMarginCalls(ctx context.Context, contestID int64) error {
	active := domain.ParticipantActive
	participants, err := store.ListParticipantsByContest(ctx, s.store.Pool(), contestID, &active)
	if err != nil {
		return fmt.Errorf("positionengine: list participants: %w", err)
	}

	for _, participant := range participants {
		positions, err := store.ListOpenPositionsByParticipant(ctx, s.store.Pool(), participant.ID)
		if err != nil {
			return fmt.Errorf("positionengine: list open positions: %w", err)
		}
		if len(positions) == 0 {
			continue
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
			return fmt.Errorf("positionengine: margin scan quote batch: %w", err)
		}

		var unrealized []float64
		for _, p := range positions {
			quote, ok := quotes[p.Symbol]
			if !ok {
				unrealized = append(unrealized, p.UnrealizedPnl)
				continue
			}
			mark := pnlmath.ExitPrice(p.Side, pnlmath.Quote{Bid: quote.Bid, Ask: quote.Ask})
			unrealized = append(unrealized, pnlmath.UnrealizedPnL(p.Side, p.EntryPrice, mark, p.Quantity, p.Symbol))
		}

		equity := pnlmath.Equity(participant.CurrentCapital, unrealized...)
		marginLevel := pnlmath.MarginLevel(equity, participant.UsedMargin)
		status := pnlmath.ClassifyMargin(marginLevel, s.thresholds)
		if status != pnlmath.MarginLiquidation {
			continue
		}

		now := time.Now()
		safe := true
		for _, p := range positions {
			quote, ok := quotes[p.Symbol]
			if !ok || !safeToLiquidate(p, quote, now) {
				safe = false
				break
			}
		}
		if !safe {
			log.Printf("[positionengine] margin call liquidation blocked for participant %d: an involved quote is fallback, stale, or diverged; no positions closed this pass", participant.ID)
			continue
		}

		for _, p := range positions {
			quote := quotes[p.Symbol]
			if _, _, err := s.ClosePositionAutomatic(ctx, p.ID, quote, domain.CloseMarginCall); err != nil {
				continue
			}
		}
	}
	return nil
}
