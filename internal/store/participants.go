package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/epic1st/contestcore/internal/coreerrors"
	"github.com/epic1st/contestcore/internal/domain"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-constraint failure.
const uniqueViolation = "23505"

const participantColumns = `
	id, contest_id, user_id, starting_capital, current_capital,
	available_capital, used_margin, realized_pnl, unrealized_pnl, pnl,
	pnl_percentage, total_trades, winning_trades, losing_trades, win_rate,
	average_win, average_loss, largest_win, largest_loss,
	current_open_positions, status, disqualification_reason,
	liquidation_reason, prize_received, is_winner, peak_equity,
	current_drawdown_percent, entered_at`

func scanParticipant(row pgx.Row) (*domain.Participant, error) {
	var p domain.Participant
	err := row.Scan(
		&p.ID, &p.ContestID, &p.UserID, &p.StartingCapital, &p.CurrentCapital,
		&p.AvailableCapital, &p.UsedMargin, &p.RealizedPnl, &p.UnrealizedPnl, &p.Pnl,
		&p.PnlPercentage, &p.TotalTrades, &p.WinningTrades, &p.LosingTrades, &p.WinRate,
		&p.AverageWin, &p.AverageLoss, &p.LargestWin, &p.LargestLoss,
		&p.CurrentOpenPositions, &p.Status, &p.DisqualificationReason,
		&p.LiquidationReason, &p.PrizeReceived, &p.IsWinner, &p.PeakEquity,
		&p.CurrentDrawdownPercent, &p.EnteredAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, coreerrors.New(coreerrors.KindState, "participant not found")
		}
		return nil, fmt.Errorf("scan participant: %w", err)
	}
	return &p, nil
}

// GetParticipant fetches a participant by id.
func GetParticipant(ctx context.Context, q Queryer, id int64, forUpdate bool) (*domain.Participant, error) {
	query := "SELECT " + participantColumns + " FROM participants WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	return scanParticipant(q.QueryRow(ctx, query, id))
}

// GetParticipantByUser fetches the (contest_id, user_id) enrollment, used by
// enterCompetition/acceptChallenge to enforce the already-joined invariant.
func GetParticipantByUser(ctx context.Context, q Queryer, contestID int64, userID string, forUpdate bool) (*domain.Participant, error) {
	query := "SELECT " + participantColumns + " FROM participants WHERE contest_id = $1 AND user_id = $2"
	if forUpdate {
		query += " FOR UPDATE"
	}
	return scanParticipant(q.QueryRow(ctx, query, contestID, userID))
}

// ListParticipantsByContest returns every participant of a contest, used by
// finalization's rankings, cancelCompetitionAndRefund, and the margin and
// revaluation scanners.
func ListParticipantsByContest(ctx context.Context, q Queryer, contestID int64, status *domain.ParticipantStatus) ([]*domain.Participant, error) {
	query := "SELECT " + participantColumns + " FROM participants WHERE contest_id = $1"
	args := []any{contestID}
	if status != nil {
		query += " AND status = $2"
		args = append(args, *status)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list participants by contest: %w", err)
	}
	defer rows.Close()

	var out []*domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertParticipant creates a new enrollment row. The UNIQUE(contest_id,
// user_id) constraint backstops the already-joined invariant (spec §4.2) at
// the database level even if an application-level check races.
func InsertParticipant(ctx context.Context, q Queryer, p *domain.Participant) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO participants (
			contest_id, user_id, starting_capital, current_capital,
			available_capital, used_margin, status, entered_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7, now())
		RETURNING id`,
		p.ContestID, p.UserID, p.StartingCapital, p.CurrentCapital,
		p.AvailableCapital, p.UsedMargin, p.Status,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, coreerrors.ErrAlreadyJoined
		}
		return 0, fmt.Errorf("insert participant: %w", err)
	}
	return id, nil
}

// UpdateParticipantCapital persists the capital/margin fields mutated by
// placeOrder, closePosition, and the revaluation scanners.
func UpdateParticipantCapital(ctx context.Context, q Queryer, p *domain.Participant) error {
	_, err := q.Exec(ctx, `
		UPDATE participants SET
			current_capital = $1, available_capital = $2, used_margin = $3,
			realized_pnl = $4, unrealized_pnl = $5, pnl = $6, pnl_percentage = $7,
			current_open_positions = $8, peak_equity = $9,
			current_drawdown_percent = $10
		WHERE id = $11`,
		p.CurrentCapital, p.AvailableCapital, p.UsedMargin,
		p.RealizedPnl, p.UnrealizedPnl, p.Pnl, p.PnlPercentage,
		p.CurrentOpenPositions, p.PeakEquity, p.CurrentDrawdownPercent, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update participant capital: %w", err)
	}
	return nil
}

// UpdateParticipantTradeStats persists the rolling trade counters mutated by
// Participant.RecordRealizedTrade (spec §4.5 step 5).
func UpdateParticipantTradeStats(ctx context.Context, q Queryer, p *domain.Participant) error {
	_, err := q.Exec(ctx, `
		UPDATE participants SET
			total_trades = $1, winning_trades = $2, losing_trades = $3,
			win_rate = $4, average_win = $5, average_loss = $6,
			largest_win = $7, largest_loss = $8
		WHERE id = $9`,
		p.TotalTrades, p.WinningTrades, p.LosingTrades,
		p.WinRate, p.AverageWin, p.AverageLoss,
		p.LargestWin, p.LargestLoss, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update participant trade stats: %w", err)
	}
	return nil
}

// SetParticipantStatus transitions a participant's status (active ->
// disqualified/liquidated/completed), recording the reason.
func SetParticipantStatus(ctx context.Context, q Queryer, id int64, status domain.ParticipantStatus, reason string) error {
	var column string
	switch status {
	case domain.ParticipantDisqualified:
		column = "disqualification_reason"
	case domain.ParticipantLiquidated:
		column = "liquidation_reason"
	default:
		column = "disqualification_reason"
	}
	_, err := q.Exec(ctx, fmt.Sprintf(`UPDATE participants SET status = $1, %s = $2 WHERE id = $3`, column), status, reason, id)
	if err != nil {
		return fmt.Errorf("set participant status: %w", err)
	}
	return nil
}

// SetParticipantPrize records the finalization outcome (spec §4.6).
func SetParticipantPrize(ctx context.Context, q Queryer, id int64, prize float64, isWinner bool) error {
	_, err := q.Exec(ctx, `UPDATE participants SET prize_received = $1, is_winner = $2, status = $3 WHERE id = $4`,
		prize, isWinner, domain.ParticipantCompleted, id)
	if err != nil {
		return fmt.Errorf("set participant prize: %w", err)
	}
	return nil
}
