// Package positionengine implements spec.md §4.5's position lifecycle:
// closePosition, closePositionAutomatic, the revaluation scan, and the
// protective-order and margin-call scanners. Grounded on the teacher's
// risk/liquidation.go monitor-loop shape (periodic scan over open
// positions, layered safety checks before acting), adapted from its
// in-memory account maps to internal/store-backed transactions.
package positionengine

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/epic1st/contestcore/internal/coreerrors"
	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/i18n"
	"github.com/epic1st/contestcore/internal/oracle"
	"github.com/epic1st/contestcore/internal/pnlmath"
	"github.com/epic1st/contestcore/internal/store"
)

// Notifier mirrors orderengine.Notifier; declared separately so the two
// engine packages don't need to import each other for a two-method
// interface. internal/eventbus.Bus satisfies both.
type Notifier interface {
	Publish(ctx context.Context, event *domain.PositionEvent)
	Notify(ctx context.Context, intent *domain.NotificationIntent)
}

// Service is the position engine.
type Service struct {
	store      *store.Store
	oracle     oracle.Oracle
	thresholds pnlmath.Thresholds
	notifier   Notifier
	currency   string
	fmt        *i18n.Formatter
}

func New(s *store.Store, o oracle.Oracle, thresholds pnlmath.Thresholds, notifier Notifier, currency, locale string) *Service {
	return &Service{
		store:      s,
		oracle:     o,
		thresholds: thresholds,
		notifier:   notifier,
		currency:   currency,
		fmt:        i18n.NewFormatter(locale),
	}
}

// LockedQuote mirrors orderengine.LockedQuote: a client-supplied price
// snapshot honored only when still fresh (spec §4.5 step 2's 2-second
// window).
type LockedQuote struct {
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

func (q *LockedQuote) fresh(now time.Time) bool {
	return q != nil && now.Sub(q.Timestamp) < 2*time.Second
}

func resolveExitQuote(locked *LockedQuote, fresh oracle.Quote) (oracle.Quote, bool) {
	if locked.fresh(time.Now()) {
		return oracle.Quote{
			Symbol:    fresh.Symbol,
			Bid:       locked.Bid,
			Ask:       locked.Ask,
			Mid:       (locked.Bid + locked.Ask) / 2,
			Spread:    locked.Ask - locked.Bid,
			Timestamp: locked.Timestamp,
		}, true
	}
	return fresh, false
}

// ClosePosition is the user-driven half of spec §4.5's closePosition:
// validates ownership and open status, acquires the exit quote (locked or
// fresh), then delegates to the shared closing transaction.
func (s *Service) ClosePosition(ctx context.Context, positionID int64, userID string, locked *LockedQuote) (*domain.Position, *domain.TradeHistory, error) {
	pos, err := store.GetPosition(ctx, s.store.Pool(), positionID, false)
	if err != nil {
		return nil, nil, err
	}
	if pos.UserID != userID {
		return nil, nil, coreerrors.ErrNotPositionOwner
	}
	if pos.Status != domain.PositionOpen {
		return nil, nil, coreerrors.ErrPositionNotOpen
	}

	fresh, err := s.oracle.Quote(ctx, pos.Symbol)
	if err != nil {
		return nil, nil, coreerrors.Wrap(coreerrors.KindUpstream, "price unavailable", err)
	}
	quote, usedLocked := resolveExitQuote(locked, fresh)
	expectedPrice := pnlmath.ExitPrice(pos.Side, pnlmath.Quote{Bid: quote.Bid, Ask: quote.Ask})
	if usedLocked && locked != nil {
		expectedPrice = (locked.Bid + locked.Ask) / 2
	}

	return s.closeTx(ctx, positionID, domain.CloseUser, domain.OrderSourceWeb, quote, expectedPrice)
}

// ClosePositionAutomatic mirrors ClosePosition but is invoked by the
// protective-order and margin-call scanners: no ownership check, no
// market-open re-check, and the exit quote is whatever the scanner already
// fetched for its pass (spec §4.5).
func (s *Service) ClosePositionAutomatic(ctx context.Context, positionID int64, exitQuote oracle.Quote, reason domain.CloseReason) (*domain.Position, *domain.TradeHistory, error) {
	return s.closeTx(ctx, positionID, reason, domain.OrderSourceSystem, exitQuote, exitQuote.Mid)
}

// closeTx is the shared transactional body of spec §4.5 steps 3-5: compute
// the exit price and realized P&L, then inside one transaction close the
// position row, write the matching close order, write the trade history
// snapshot, and update the participant's rolling counters and capital.
// expectedPrice is the price the caller expected to get (the user's locked
// quote mid, when one was honored) and feeds the audit price log's
// slippage figure; it has no bearing on the actual exit price used.
func (s *Service) closeTx(ctx context.Context, positionID int64, reason domain.CloseReason, source domain.OrderSource, quote oracle.Quote, expectedPrice float64) (*domain.Position, *domain.TradeHistory, error) {
	var (
		closedPos *domain.Position
		trade     *domain.TradeHistory
	)

	err := s.store.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		pos, err := store.GetPosition(ctx, tx, positionID, true)
		if err != nil {
			return err
		}
		if pos.Status != domain.PositionOpen {
			return coreerrors.ErrPositionNotOpen
		}

		participant, err := store.GetParticipant(ctx, tx, pos.ParticipantID, true)
		if err != nil {
			return err
		}

		exitPrice := pnlmath.ExitPrice(pos.Side, pnlmath.Quote{Bid: quote.Bid, Ask: quote.Ask})
		realizedPnl := pnlmath.UnrealizedPnL(pos.Side, pos.EntryPrice, exitPrice, pos.Quantity, pos.Symbol)
		realizedPnlPct := pnlmath.PnLPercentage(realizedPnl, pos.MarginUsed)
		priceChange := exitPrice - pos.EntryPrice
		priceChangePct := 0.0
		if pos.EntryPrice != 0 {
			priceChangePct = 100 * priceChange / pos.EntryPrice
		}

		now := time.Now()
		holdingSeconds := int64(now.Sub(pos.OpenedAt).Seconds())

		closeSide := domain.SideSell
		if pos.Side == domain.PositionShort {
			closeSide = domain.SideBuy
		}
		closeOrder := &domain.Order{
			ContestID:      pos.ContestID,
			UserID:         pos.UserID,
			Side:           closeSide,
			Type:           domain.OrderTypeMarket,
			Symbol:         pos.Symbol,
			Quantity:       pos.Quantity,
			RequestedPrice: exitPrice,
			Leverage:       pos.Leverage,
			Status:         domain.OrderPending,
			Source:         source,
		}
		closeOrderID, err := store.InsertOrder(ctx, tx, closeOrder)
		if err != nil {
			return fmt.Errorf("positionengine: insert close order: %w", err)
		}
		slippage := pnlmath.SlippagePips(expectedPrice, exitPrice, pos.Symbol)
		if err := store.FillOrder(ctx, tx, closeOrderID, exitPrice, slippage, positionID); err != nil {
			return err
		}

		status := domain.PositionClosed
		if reason == domain.CloseMarginCall {
			status = domain.PositionLiquidated
		}
		if err := store.ClosePositionRow(ctx, tx, positionID, status, reason, exitPrice, &closeOrderID, holdingSeconds); err != nil {
			return err
		}

		th := &domain.TradeHistory{
			ContestID:             pos.ContestID,
			ParticipantID:         pos.ParticipantID,
			UserID:                pos.UserID,
			PositionID:            pos.ID,
			Symbol:                pos.Symbol,
			Side:                  pos.Side,
			Quantity:              pos.Quantity,
			Leverage:              pos.Leverage,
			EntryPrice:            pos.EntryPrice,
			ExitPrice:             exitPrice,
			PriceChange:           priceChange,
			PriceChangePercentage: priceChangePct,
			RealizedPnl:           realizedPnl,
			RealizedPnlPercentage: realizedPnlPct,
			HoldingTimeSeconds:    holdingSeconds,
			CloseReason:           reason,
			OpenedAt:              pos.OpenedAt,
			ClosedAt:              now,
		}
		if err := store.InsertTradeHistory(ctx, tx, th); err != nil {
			return err
		}

		participant.RecordRealizedTrade(realizedPnl)
		participant.AvailableCapital += pos.MarginUsed + realizedPnl
		participant.UsedMargin -= pos.MarginUsed
		participant.CurrentCapital += realizedPnl
		participant.RealizedPnl += realizedPnl
		participant.CurrentOpenPositions--
		participant.Pnl = participant.RealizedPnl + participant.UnrealizedPnl
		participant.PnlPercentage = participantPnLPercentage(participant.Pnl, participant.StartingCapital)

		if status == domain.PositionLiquidated && participant.CurrentCapital <= 0 {
			participant.Status = domain.ParticipantLiquidated
			participant.LiquidationReason = "Margin call"
		}

		if err := store.UpdateParticipantCapital(ctx, tx, participant); err != nil {
			return err
		}
		if err := store.UpdateParticipantTradeStats(ctx, tx, participant); err != nil {
			return err
		}
		if participant.Status == domain.ParticipantLiquidated {
			if err := store.SetParticipantStatus(ctx, tx, participant.ID, domain.ParticipantLiquidated, participant.LiquidationReason); err != nil {
				return err
			}
		}

		if err := store.InsertPriceLog(ctx, tx, &domain.PriceLog{
			Symbol:             pos.Symbol,
			Bid:                quote.Bid,
			Ask:                quote.Ask,
			Mid:                quote.Mid,
			Spread:             quote.Spread,
			QuoteTimestamp:     quote.Timestamp,
			ExecutionTimestamp: now,
			ExpectedPrice:      expectedPrice,
			ExecutionPrice:     exitPrice,
			SlippagePips:       slippage,
			PriceSource:        priceSourceOf(quote),
			OrderID:            &closeOrderID,
			PositionID:         &positionID,
		}); err != nil {
			return err
		}

		pos.Status = status
		pos.CloseReason = reason
		pos.CurrentPrice = exitPrice
		closedPos = pos
		trade = th
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if s.notifier != nil {
		eventType := domain.EventPositionClosed
		if closedPos.Status == domain.PositionLiquidated {
			eventType = domain.EventPositionLiquidated
		}
		s.notifier.Publish(ctx, &domain.PositionEvent{
			Type:       eventType,
			UserID:     closedPos.UserID,
			ContestID:  closedPos.ContestID,
			PositionID: &closedPos.ID,
			Payload: map[string]any{
				"symbol":      closedPos.Symbol,
				"realizedPnl": trade.RealizedPnl,
				"reason":      reason,
			},
		})
		s.notifier.Notify(ctx, &domain.NotificationIntent{
			Type:      eventType,
			UserID:    closedPos.UserID,
			ContestID: &closedPos.ContestID,
			Title:     "Position closed",
			Body:      fmt.Sprintf("%s closed with realized P&L %s", closedPos.Symbol, s.fmt.FormatMoney(trade.RealizedPnl, s.currency)),
			Payload:   map[string]any{"positionId": closedPos.ID},
		})
	}

	return closedPos, trade, nil
}

func participantPnLPercentage(pnl, startingCapital float64) float64 {
	if startingCapital == 0 {
		return 0
	}
	return 100 * pnl / startingCapital
}

func priceSourceOf(q oracle.Quote) domain.PriceSource {
	if q.IsFallback {
		return domain.PriceSourceCache
	}
	return domain.PriceSourceREST
}
