package orderengine

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/epic1st/contestcore/internal/coreerrors"
	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/oracle"
	"github.com/epic1st/contestcore/internal/pnlmath"
	"github.com/epic1st/contestcore/internal/riskpolicy"
	"github.com/epic1st/contestcore/internal/store"
)

// ExecuteLimitOrder fills a triggered pending limit order (spec §4.4):
// re-verifies participant capital against the current quote, then
// transitions the order to filled, opens the position, debits margin, and
// increments the participant's open-position and trade counters. If
// capital is insufficient it cancels the order instead of filling it.
func (s *Service) ExecuteLimitOrder(ctx context.Context, orderID int64, quote oracle.Quote) (*domain.Order, *domain.Position, error) {
	var (
		order               *domain.Order
		position            *domain.Position
		cancelledForCapital bool
	)

	err := s.store.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		o, err := store.GetOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if o.Status != domain.OrderPending || o.Type != domain.OrderTypeLimit {
			return coreerrors.ErrOrderNotPending
		}

		participant, err := store.GetParticipantByUser(ctx, tx, o.ContestID, o.UserID, true)
		if err != nil {
			return err
		}

		entryPrice := pnlmath.EntryPrice(orderSideToPositionSide(o.Side), pnlmath.Quote{Bid: quote.Bid, Ask: quote.Ask})
		if err := riskpolicy.CheckStopTakeAgainstFill(o.Side, entryPrice, o.StopLoss, o.TakeProfit); err != nil {
			return err
		}

		// A cancellation triggered by insufficient capital must still commit
		// (it's a legitimate state transition, not a failed attempt), so it
		// returns nil here rather than an error that would roll the whole
		// transaction — including the cancellation itself — back.
		marginRequired := pnlmath.MarginRequired(o.Quantity, entryPrice, o.Leverage, o.Symbol)
		if marginRequired > participant.AvailableCapital {
			if cancelErr := store.CancelOrder(ctx, tx, orderID); cancelErr != nil {
				return cancelErr
			}
			cancelledForCapital = true
			return nil
		}

		slippage := pnlmath.SlippagePips(o.RequestedPrice, entryPrice, o.Symbol)

		pos := &domain.Position{
			ContestID:     o.ContestID,
			ParticipantID: participant.ID,
			UserID:        o.UserID,
			Symbol:        o.Symbol,
			Side:          orderSideToPositionSide(o.Side),
			Quantity:      o.Quantity,
			EntryPrice:    entryPrice,
			CurrentPrice:  entryPrice,
			Leverage:      o.Leverage,
			MarginUsed:    marginRequired,
			StopLoss:      o.StopLoss,
			TakeProfit:    o.TakeProfit,
			Status:        domain.PositionOpen,
			OpenOrderID:   orderID,
		}
		pos.ComputeMaintenanceMargin()

		positionID, err := store.InsertPosition(ctx, tx, pos)
		if err != nil {
			return fmt.Errorf("orderengine: insert position: %w", err)
		}
		pos.ID = positionID

		if err := store.FillOrder(ctx, tx, orderID, entryPrice, slippage, positionID); err != nil {
			return err
		}
		o.Status = domain.OrderFilled
		o.ExecutedPrice = entryPrice
		o.Slippage = slippage
		o.PositionID = &positionID

		participant.AvailableCapital -= marginRequired
		participant.UsedMargin += marginRequired
		participant.CurrentOpenPositions++
		participant.TotalTrades++
		if err := store.UpdateParticipantCapital(ctx, tx, participant); err != nil {
			return err
		}
		if err := store.UpdateParticipantTradeStats(ctx, tx, participant); err != nil {
			return err
		}

		if err := store.InsertPriceLog(ctx, tx, &domain.PriceLog{
			Symbol:             o.Symbol,
			Bid:                quote.Bid,
			Ask:                quote.Ask,
			Mid:                quote.Mid,
			Spread:             quote.Spread,
			QuoteTimestamp:     quote.Timestamp,
			ExecutionTimestamp: timeNow(),
			ExpectedPrice:      o.RequestedPrice,
			ExecutionPrice:     entryPrice,
			SlippagePips:       slippage,
			PriceSource:        priceSourceOf(quote),
			OrderID:            &orderID,
			PositionID:         &positionID,
		}); err != nil {
			return err
		}

		order = o
		position = pos
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if cancelledForCapital {
		return nil, nil, coreerrors.Wrap(coreerrors.KindState, "insufficient capital for margin at trigger, order cancelled", coreerrors.ErrInsufficientCapital)
	}

	if s.notifier != nil {
		s.notifier.Publish(ctx, &domain.PositionEvent{
			Type:       domain.EventOrderFilled,
			UserID:     order.UserID,
			ContestID:  order.ContestID,
			PositionID: &position.ID,
			Payload: map[string]any{
				"symbol": order.Symbol,
				"side":   order.Side,
				"price":  order.ExecutedPrice,
			},
		})
	}

	return order, position, nil
}

// triggers reports whether a pending limit order should fill against the
// direction-appropriate side of quote (spec §4.4 scanner ordering: ask for
// buy, bid for sell).
func triggers(o *domain.Order, quote oracle.Quote) bool {
	if o.IsBuy() {
		return quote.Ask <= o.RequestedPrice
	}
	return quote.Bid >= o.RequestedPrice
}

// RunLimitOrderScan iterates a contest's pending limit orders, acquires a
// batch quote for every distinct symbol among them, and executes every
// triggered order. Multiple triggerable orders for the same
// (participant, symbol) execute in placement time order (spec §4.4).
func (s *Service) RunLimitOrderScan(ctx context.Context, contestID int64) error {
	orders, err := store.ListPendingLimitOrders(ctx, s.store.Pool(), contestID)
	if err != nil {
		return fmt.Errorf("orderengine: list pending limit orders: %w", err)
	}
	if len(orders) == 0 {
		return nil
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].PlacedAt.Before(orders[j].PlacedAt) })

	symbols := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		symbols[o.Symbol] = struct{}{}
	}
	symbolList := make([]string, 0, len(symbols))
	for sym := range symbols {
		symbolList = append(symbolList, sym)
	}

	quotes, err := s.oracle.QuoteBatch(ctx, symbolList)
	if err != nil {
		return fmt.Errorf("orderengine: quote batch: %w", err)
	}

	for _, o := range orders {
		quote, ok := quotes[o.Symbol]
		if !ok {
			continue
		}
		if !triggers(o, quote) {
			continue
		}
		if _, _, err := s.ExecuteLimitOrder(ctx, o.ID, quote); err != nil {
			if coreerrors.KindOf(err) == coreerrors.KindFatal {
				return err
			}
			continue
		}
	}
	return nil
}
