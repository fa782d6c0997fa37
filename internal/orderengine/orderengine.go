// Package orderengine implements spec.md §4.4's placeOrder / cancelOrder /
// executeLimitOrder procedures. Grounded on the teacher's oms.Service
// (PlaceOrder immediately creating a position for MARKET orders, leaving
// LIMIT orders pending), generalized from its in-memory maps to
// internal/store-backed transactions and from its two-state-string order
// shape to the full domain.Order/Position model.
package orderengine

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/epic1st/contestcore/internal/coreerrors"
	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/oracle"
	"github.com/epic1st/contestcore/internal/pnlmath"
	"github.com/epic1st/contestcore/internal/riskpolicy"
	"github.com/epic1st/contestcore/internal/store"
)

// Notifier is the narrow event/notification sink the order engine needs;
// internal/eventbus.Bus satisfies it. Publish/Notify take no error return
// because emitter failures must never fail the core (spec §4.5 step 6,
// applied symmetrically here).
type Notifier interface {
	Publish(ctx context.Context, event *domain.PositionEvent)
	Notify(ctx context.Context, intent *domain.NotificationIntent)
}

// Service is the order engine, holding the collaborators every operation
// needs: persistence, the price oracle, the risk limits to enforce, and
// the event sink. Margin is a capital reservation against the
// participant's own row, not a wallet movement, so internal/ledger (the
// wallet/prize-pool layer) is not a collaborator here — see DESIGN.md.
type Service struct {
	store    *store.Store
	oracle   oracle.Oracle
	limits   riskpolicy.Limits
	notifier Notifier
}

func New(s *store.Store, o oracle.Oracle, limits riskpolicy.Limits, notifier Notifier) *Service {
	return &Service{store: s, oracle: o, limits: limits, notifier: notifier}
}

// LockedQuote is the client-supplied price snapshot a trading UI captures
// at the moment a user confirms an order or close, honored only when still
// fresh (spec §4.1/§4.4's 2-second locked-price policy).
type LockedQuote struct {
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

func (q *LockedQuote) fresh(now time.Time) bool {
	return q != nil && now.Sub(q.Timestamp) < 2*time.Second
}

// PlaceOrderParams is the input to PlaceOrder.
type PlaceOrderParams struct {
	ContestID   int64
	UserID      string
	Symbol      string
	Side        domain.OrderSide
	Type        domain.OrderType
	Quantity    float64
	Leverage    int
	LimitPrice  float64 // required when Type == OrderTypeLimit
	StopLoss    *float64
	TakeProfit  *float64
	LockedQuote *LockedQuote
	Source      domain.OrderSource
}

// PlaceOrder runs spec §4.4's placeOrder procedure: participant lookup,
// market-open check, risk policy, price acquisition, order row creation,
// and — for market orders only — position creation plus a capital/margin
// update, all inside one transaction.
func (s *Service) PlaceOrder(ctx context.Context, p PlaceOrderParams) (*domain.Order, *domain.Position, error) {
	if p.Source == "" {
		p.Source = domain.OrderSourceWeb
	}

	var (
		order    *domain.Order
		position *domain.Position
	)

	err := s.store.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		contest, err := store.GetContest(ctx, tx, p.ContestID, true)
		if err != nil {
			return err
		}
		if contest.Status != domain.ContestActive {
			return coreerrors.ErrContestNotActive
		}

		participant, err := store.GetParticipantByUser(ctx, tx, p.ContestID, p.UserID, true)
		if err != nil {
			return err
		}
		if !participant.IsTradingEligible() {
			return coreerrors.New(coreerrors.KindState, "participant not eligible to trade")
		}

		open, err := s.oracle.IsMarketOpen(ctx)
		if err != nil {
			return coreerrors.Wrap(coreerrors.KindUpstream, "market status unavailable", err)
		}
		if !open {
			return coreerrors.ErrMarketClosed
		}

		fresh, err := s.oracle.Quote(ctx, p.Symbol)
		if err != nil {
			return coreerrors.Wrap(coreerrors.KindUpstream, "price unavailable", err)
		}

		riskQuote := riskpolicy.MarketQuote{Bid: fresh.Bid, Ask: fresh.Ask}
		estimatePrice := p.LimitPrice
		if p.Type == domain.OrderTypeMarket {
			estimatePrice = pnlmath.EntryPrice(orderSideToPositionSide(p.Side), pnlmath.Quote{Bid: fresh.Bid, Ask: fresh.Ask})
		}
		marginEstimate := pnlmath.MarginRequired(p.Quantity, estimatePrice, p.Leverage, p.Symbol)

		if err := riskpolicy.CheckOrder(riskpolicy.OrderParams{
			Symbol:     p.Symbol,
			Side:       p.Side,
			Type:       p.Type,
			Quantity:   p.Quantity,
			Leverage:   p.Leverage,
			LimitPrice: p.LimitPrice,
			StopLoss:   p.StopLoss,
			TakeProfit: p.TakeProfit,
		}, contest, participant, s.limits, riskQuote, marginEstimate); err != nil {
			return err
		}

		o := &domain.Order{
			ContestID:      p.ContestID,
			UserID:         p.UserID,
			Side:           p.Side,
			Type:           p.Type,
			Symbol:         p.Symbol,
			Quantity:       p.Quantity,
			RequestedPrice: p.LimitPrice,
			StopLoss:       p.StopLoss,
			TakeProfit:     p.TakeProfit,
			Leverage:       p.Leverage,
			MarginRequired: marginEstimate,
			Status:         domain.OrderPending,
			Source:         p.Source,
		}
		orderID, err := store.InsertOrder(ctx, tx, o)
		if err != nil {
			return fmt.Errorf("orderengine: insert order: %w", err)
		}
		o.ID = orderID

		if p.Type != domain.OrderTypeMarket {
			order = o
			return nil
		}

		execQuote, usedLocked := resolveExecutionQuote(p.LockedQuote, fresh)
		entryPrice := pnlmath.EntryPrice(orderSideToPositionSide(p.Side), pnlmath.Quote{Bid: execQuote.Bid, Ask: execQuote.Ask})

		if err := riskpolicy.CheckStopTakeAgainstFill(p.Side, entryPrice, p.StopLoss, p.TakeProfit); err != nil {
			return err
		}

		marginRequired := pnlmath.MarginRequired(p.Quantity, entryPrice, p.Leverage, p.Symbol)
		if marginRequired > participant.AvailableCapital {
			return coreerrors.Wrap(coreerrors.KindState, "insufficient capital for margin", coreerrors.ErrInsufficientCapital)
		}

		slippage := pnlmath.SlippagePips(p.LimitPrice, entryPrice, p.Symbol)
		if usedLocked {
			slippage = pnlmath.SlippagePips((p.LockedQuote.Bid+p.LockedQuote.Ask)/2, execQuote.Mid, p.Symbol)
		}

		pos := &domain.Position{
			ContestID:     p.ContestID,
			ParticipantID: participant.ID,
			UserID:        p.UserID,
			Symbol:        p.Symbol,
			Side:          orderSideToPositionSide(p.Side),
			Quantity:      p.Quantity,
			EntryPrice:    entryPrice,
			CurrentPrice:  entryPrice,
			Leverage:      p.Leverage,
			MarginUsed:    marginRequired,
			StopLoss:      p.StopLoss,
			TakeProfit:    p.TakeProfit,
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
			Symbol:             p.Symbol,
			Bid:                execQuote.Bid,
			Ask:                execQuote.Ask,
			Mid:                execQuote.Mid,
			Spread:             execQuote.Spread,
			QuoteTimestamp:     execQuote.Timestamp,
			ExecutionTimestamp: timeNow(),
			ExpectedPrice:      p.LimitPrice,
			ExecutionPrice:     entryPrice,
			SlippagePips:       slippage,
			PriceSource:        priceSourceOf(execQuote),
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

	if position != nil && s.notifier != nil {
		s.notifier.Publish(ctx, &domain.PositionEvent{
			Type:       domain.EventOrderFilled,
			UserID:     p.UserID,
			ContestID:  p.ContestID,
			PositionID: &position.ID,
			Payload: map[string]any{
				"symbol": p.Symbol,
				"side":   p.Side,
				"price":  order.ExecutedPrice,
			},
		})
	}

	return order, position, nil
}

// CancelOrder transitions a pending order to cancelled (spec §4.4). Pending
// limit orders never locked margin, so there is nothing to release.
func (s *Service) CancelOrder(ctx context.Context, orderID int64) error {
	return store.CancelOrder(ctx, s.store.Pool(), orderID)
}

func orderSideToPositionSide(side domain.OrderSide) domain.PositionSide {
	if side == domain.SideSell {
		return domain.PositionShort
	}
	return domain.PositionLong
}

func priceSourceOf(q oracle.Quote) domain.PriceSource {
	if q.IsFallback {
		return domain.PriceSourceCache
	}
	return domain.PriceSourceREST
}

// timeNow exists so execution-timestamp stamping has one call site; kept
// as a thin wrapper rather than calling time.Now() inline throughout this
// file, matching the style of the revaluation/margin scanners that also
// stamp a single "now" per pass.
func timeNow() time.Time { return time.Now() }
