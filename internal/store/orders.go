package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/epic1st/contestcore/internal/coreerrors"
	"github.com/epic1st/contestcore/internal/domain"
)

const orderColumns = `
	id, contest_id, user_id, side, type, symbol, quantity, requested_price,
	executed_price, stop_loss, take_profit, leverage, margin_required,
	status, source, position_id, slippage, placed_at, executed_at,
	cancelled_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.ContestID, &o.UserID, &o.Side, &o.Type, &o.Symbol, &o.Quantity, &o.RequestedPrice,
		&o.ExecutedPrice, &o.StopLoss, &o.TakeProfit, &o.Leverage, &o.MarginRequired,
		&o.Status, &o.Source, &o.PositionID, &o.Slippage, &o.PlacedAt, &o.ExecutedAt,
		&o.CancelledAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, coreerrors.New(coreerrors.KindState, "order not found")
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

// GetOrder fetches an order by id.
func GetOrder(ctx context.Context, q Queryer, id int64, forUpdate bool) (*domain.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	return scanOrder(q.QueryRow(ctx, query, id))
}

// ListPendingLimitOrders returns every pending limit order for a contest,
// consumed by the order engine's per-tick limit-order scanner (spec §4.4).
func ListPendingLimitOrders(ctx context.Context, q Queryer, contestID int64) ([]*domain.Order, error) {
	rows, err := q.Query(ctx, "SELECT "+orderColumns+` FROM orders
		WHERE contest_id = $1 AND status = $2 AND type = $3`,
		contestID, domain.OrderPending, domain.OrderTypeLimit)
	if err != nil {
		return nil, fmt.Errorf("list pending limit orders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertOrder creates a new order row in pending status.
func InsertOrder(ctx context.Context, q Queryer, o *domain.Order) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO orders (
			contest_id, user_id, side, type, symbol, quantity, requested_price,
			stop_loss, take_profit, leverage, margin_required, status, source,
			placed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now())
		RETURNING id`,
		o.ContestID, o.UserID, o.Side, o.Type, o.Symbol, o.Quantity, o.RequestedPrice,
		o.StopLoss, o.TakeProfit, o.Leverage, o.MarginRequired, o.Status, o.Source,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

// FillOrder marks an order filled at executedPrice, linking it to the
// position it opened and recording any slippage off the requested/locked
// quote (spec §4.4 resolveExecutionQuote).
func FillOrder(ctx context.Context, q Queryer, orderID int64, executedPrice, slippage float64, positionID int64) error {
	tag, err := q.Exec(ctx, `
		UPDATE orders SET status = $1, executed_price = $2, slippage = $3,
			position_id = $4, executed_at = now()
		WHERE id = $5 AND status = $6`,
		domain.OrderFilled, executedPrice, slippage, positionID, orderID, domain.OrderPending)
	if err != nil {
		return fmt.Errorf("fill order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return coreerrors.ErrOrderNotPending
	}
	return nil
}

// CancelOrder transitions a pending order to cancelled.
func CancelOrder(ctx context.Context, q Queryer, orderID int64) error {
	tag, err := q.Exec(ctx, `
		UPDATE orders SET status = $1, cancelled_at = now()
		WHERE id = $2 AND status = $3`,
		domain.OrderCancelled, orderID, domain.OrderPending)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return coreerrors.ErrOrderNotPending
	}
	return nil
}

// InsertPriceLog writes an audit row for an order execution or position
// close, letting ops reconstruct exactly which quote backed a fill (spec §6).
func InsertPriceLog(ctx context.Context, q Queryer, pl *domain.PriceLog) error {
	_, err := q.Exec(ctx, `
		INSERT INTO price_logs (
			symbol, bid, ask, mid, spread, quote_timestamp, execution_timestamp,
			expected_price, execution_price, slippage_pips, price_source,
			order_id, position_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		pl.Symbol, pl.Bid, pl.Ask, pl.Mid, pl.Spread, pl.QuoteTimestamp, pl.ExecutionTimestamp,
		pl.ExpectedPrice, pl.ExecutionPrice, pl.SlippagePips, pl.PriceSource,
		pl.OrderID, pl.PositionID,
	)
	if err != nil {
		return fmt.Errorf("insert price log: %w", err)
	}
	return nil
}
