package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/epic1st/contestcore/internal/coreerrors"
	"github.com/epic1st/contestcore/internal/domain"
)

const positionColumns = `
	id, contest_id, participant_id, user_id, symbol, side, quantity,
	entry_price, current_price, unrealized_pnl, unrealized_pnl_percentage,
	leverage, margin_used, maintenance_margin, stop_loss, take_profit,
	status, close_reason, open_order_id, close_order_id, opened_at,
	closed_at, holding_time_seconds, last_price_update, price_update_count`

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.ID, &p.ContestID, &p.ParticipantID, &p.UserID, &p.Symbol, &p.Side, &p.Quantity,
		&p.EntryPrice, &p.CurrentPrice, &p.UnrealizedPnl, &p.UnrealizedPnlPercentage,
		&p.Leverage, &p.MarginUsed, &p.MaintenanceMargin, &p.StopLoss, &p.TakeProfit,
		&p.Status, &p.CloseReason, &p.OpenOrderID, &p.CloseOrderID, &p.OpenedAt,
		&p.ClosedAt, &p.HoldingTimeSeconds, &p.LastPriceUpdate, &p.PriceUpdateCount,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, coreerrors.ErrPositionNotOpen
		}
		return nil, fmt.Errorf("scan position: %w", err)
	}
	return &p, nil
}

// GetPosition fetches a position by id.
func GetPosition(ctx context.Context, q Queryer, id int64, forUpdate bool) (*domain.Position, error) {
	query := "SELECT " + positionColumns + " FROM positions WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	return scanPosition(q.QueryRow(ctx, query, id))
}

// ListOpenPositionsByContest returns every open position of a contest, the
// working set for checkStopLossTakeProfit (spec §4.5) and for the
// lifecycle manager's end-of-contest close-out.
func ListOpenPositionsByContest(ctx context.Context, q Queryer, contestID int64) ([]*domain.Position, error) {
	rows, err := q.Query(ctx, "SELECT "+positionColumns+` FROM positions
		WHERE contest_id = $1 AND status = $2`, contestID, domain.PositionOpen)
	if err != nil {
		return nil, fmt.Errorf("list open positions by contest: %w", err)
	}
	defer rows.Close()

	var out []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListOpenPositionsByParticipant returns a single participant's open book,
// used by the margin-call scan and the per-participant revaluation.
func ListOpenPositionsByParticipant(ctx context.Context, q Queryer, participantID int64) ([]*domain.Position, error) {
	rows, err := q.Query(ctx, "SELECT "+positionColumns+` FROM positions
		WHERE participant_id = $1 AND status = $2`, participantID, domain.PositionOpen)
	if err != nil {
		return nil, fmt.Errorf("list open positions by participant: %w", err)
	}
	defer rows.Close()

	var out []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertPosition opens a new position row from a filled order.
func InsertPosition(ctx context.Context, q Queryer, p *domain.Position) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO positions (
			contest_id, participant_id, user_id, symbol, side, quantity,
			entry_price, current_price, leverage, margin_used,
			maintenance_margin, stop_loss, take_profit, status, open_order_id,
			opened_at, last_price_update
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15, now(), now())
		RETURNING id`,
		p.ContestID, p.ParticipantID, p.UserID, p.Symbol, p.Side, p.Quantity,
		p.EntryPrice, p.CurrentPrice, p.Leverage, p.MarginUsed,
		p.MaintenanceMargin, p.StopLoss, p.TakeProfit, p.Status, p.OpenOrderID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert position: %w", err)
	}
	return id, nil
}

// UpdatePositionMark persists a revaluation tick's mark-to-market fields
// (spec §4.5 updateAllPositionsPnL), without touching lifecycle fields.
func UpdatePositionMark(ctx context.Context, q Queryer, id int64, currentPrice, unrealizedPnl, unrealizedPnlPct float64) error {
	_, err := q.Exec(ctx, `
		UPDATE positions SET
			current_price = $1, unrealized_pnl = $2, unrealized_pnl_percentage = $3,
			last_price_update = now(), price_update_count = price_update_count + 1
		WHERE id = $4`,
		currentPrice, unrealizedPnl, unrealizedPnlPct, id)
	if err != nil {
		return fmt.Errorf("update position mark: %w", err)
	}
	return nil
}

// ClosePositionRow transitions a position to its terminal status and writes
// its closing snapshot fields in one statement (spec §4.5 closePosition
// step 2), guarded by the expected open status to catch double-close races.
func ClosePositionRow(ctx context.Context, q Queryer, id int64, status domain.PositionStatus, reason domain.CloseReason, closePrice float64, closeOrderID *int64, holdingSeconds int64) error {
	tag, err := q.Exec(ctx, `
		UPDATE positions SET
			status = $1, close_reason = $2, current_price = $3,
			close_order_id = $4, closed_at = now(), holding_time_seconds = $5
		WHERE id = $6 AND status = $7`,
		status, reason, closePrice, closeOrderID, holdingSeconds, id, domain.PositionOpen)
	if err != nil {
		return fmt.Errorf("close position row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return coreerrors.ErrPositionNotOpen
	}
	return nil
}

// InsertTradeHistory writes the immutable closed-trade snapshot (spec §4.5
// step 4, §6 trade_history).
func InsertTradeHistory(ctx context.Context, q Queryer, th *domain.TradeHistory) error {
	_, err := q.Exec(ctx, `
		INSERT INTO trade_history (
			contest_id, participant_id, user_id, position_id, symbol, side,
			quantity, leverage, entry_price, exit_price, price_change,
			price_change_percentage, realized_pnl, realized_pnl_percentage,
			holding_time_seconds, close_reason, is_winner, opened_at, closed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		th.ContestID, th.ParticipantID, th.UserID, th.PositionID, th.Symbol, th.Side,
		th.Quantity, th.Leverage, th.EntryPrice, th.ExitPrice, th.PriceChange,
		th.PriceChangePercentage, th.RealizedPnl, th.RealizedPnlPercentage,
		th.HoldingTimeSeconds, th.CloseReason, th.IsWinner, th.OpenedAt, th.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade history: %w", err)
	}
	return nil
}

// ListTradeHistoryByParticipant returns a participant's closed trades, used
// by calculateRankings' profitFactor computation (spec §4.6).
func ListTradeHistoryByParticipant(ctx context.Context, q Queryer, participantID int64) ([]*domain.TradeHistory, error) {
	rows, err := q.Query(ctx, `SELECT
		id, contest_id, participant_id, user_id, position_id, symbol, side,
		quantity, leverage, entry_price, exit_price, price_change,
		price_change_percentage, realized_pnl, realized_pnl_percentage,
		holding_time_seconds, close_reason, is_winner, opened_at, closed_at
		FROM trade_history WHERE participant_id = $1`, participantID)
	if err != nil {
		return nil, fmt.Errorf("list trade history by participant: %w", err)
	}
	defer rows.Close()

	var out []*domain.TradeHistory
	for rows.Next() {
		var th domain.TradeHistory
		if err := rows.Scan(
			&th.ID, &th.ContestID, &th.ParticipantID, &th.UserID, &th.PositionID, &th.Symbol, &th.Side,
			&th.Quantity, &th.Leverage, &th.EntryPrice, &th.ExitPrice, &th.PriceChange,
			&th.PriceChangePercentage, &th.RealizedPnl, &th.RealizedPnlPercentage,
			&th.HoldingTimeSeconds, &th.CloseReason, &th.IsWinner, &th.OpenedAt, &th.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trade history: %w", err)
		}
		out = append(out, &th)
	}
	return out, rows.Err()
}
