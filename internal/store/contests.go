package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/epic1st/contestcore/internal/coreerrors"
	"github.com/epic1st/contestcore/internal/domain"
)

const contestColumns = `
	id, slug, name, kind, status, start_time, end_time, accept_deadline,
	entry_fee, starting_capital, prize_pool, platform_fee_percentage,
	platform_fee_amount, winner_prize, prize_distribution, min_participants,
	max_participants, current_participants, allowed_asset_classes,
	allowed_symbols, blocked_symbols, leverage_min, leverage_max,
	leverage_default, max_open_positions, max_position_size,
	margin_call_threshold, ranking_method, tie_breaker_1, tie_breaker_2,
	minimum_trades, tie_prize_distribution, disqualify_on_liquidation,
	risk_limits_enabled, risk_max_drawdown_percent,
	risk_daily_loss_limit_percent, risk_equity_drawdown_percent,
	risk_equity_check_enabled, cancel_reason, created_by, created_at, updated_at`

func scanContest(row pgx.Row) (*domain.Contest, error) {
	var c domain.Contest
	var prizeDistJSON, assetClassesJSON, allowedJSON, blockedJSON []byte

	err := row.Scan(
		&c.ID, &c.Slug, &c.Name, &c.Kind, &c.Status, &c.StartTime, &c.EndTime, &c.AcceptDeadline,
		&c.EntryFee, &c.StartingCapital, &c.PrizePool, &c.PlatformFeePercentage,
		&c.PlatformFeeAmount, &c.WinnerPrize, &prizeDistJSON, &c.MinParticipants,
		&c.MaxParticipants, &c.CurrentParticipants, &assetClassesJSON,
		&allowedJSON, &blockedJSON, &c.Leverage.Min, &c.Leverage.Max,
		&c.Leverage.Default, &c.MaxOpenPositions, &c.MaxPositionSize,
		&c.MarginCallThreshold, &c.Rules.RankingMethod, &c.Rules.TieBreaker1, &c.Rules.TieBreaker2,
		&c.Rules.MinimumTrades, &c.Rules.TiePrizeDistribution, &c.Rules.DisqualifyOnLiquidation,
		&c.RiskLimits.Enabled, &c.RiskLimits.MaxDrawdownPercent,
		&c.RiskLimits.DailyLossLimitPercent, &c.RiskLimits.EquityDrawdownPercent,
		&c.RiskLimits.EquityCheckEnabled, &c.CancelReason, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, coreerrors.New(coreerrors.KindState, "contest not found")
		}
		return nil, fmt.Errorf("scan contest: %w", err)
	}

	if err := json.Unmarshal(prizeDistJSON, &c.PrizeDistribution); err != nil {
		return nil, fmt.Errorf("unmarshal prize_distribution: %w", err)
	}
	if err := json.Unmarshal(assetClassesJSON, &c.AllowedAssetClasses); err != nil {
		return nil, fmt.Errorf("unmarshal allowed_asset_classes: %w", err)
	}
	if err := json.Unmarshal(allowedJSON, &c.AllowedSymbols); err != nil {
		return nil, fmt.Errorf("unmarshal allowed_symbols: %w", err)
	}
	if err := json.Unmarshal(blockedJSON, &c.BlockedSymbols); err != nil {
		return nil, fmt.Errorf("unmarshal blocked_symbols: %w", err)
	}
	return &c, nil
}

// GetContest fetches a contest by id, locking the row FOR UPDATE when q is a
// transaction so concurrent lifecycle transitions serialize (spec §5:
// "contest status transitions are one-shot").
func GetContest(ctx context.Context, q Queryer, id int64, forUpdate bool) (*domain.Contest, error) {
	query := "SELECT " + contestColumns + " FROM contests WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	return scanContest(q.QueryRow(ctx, query, id))
}

// ListContestsByStatus returns every contest currently in status, used by
// the scheduler's auto-start/auto-cancel and finalization scans.
func ListContestsByStatus(ctx context.Context, q Queryer, status domain.ContestStatus) ([]*domain.Contest, error) {
	rows, err := q.Query(ctx, "SELECT "+contestColumns+" FROM contests WHERE status = $1", status)
	if err != nil {
		return nil, fmt.Errorf("list contests by status: %w", err)
	}
	defer rows.Close()

	var out []*domain.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListContestsByCreatorAndStatus returns a challenge creator's contests in
// a given status, used to enforce maxPendingPerUser/maxActivePerUser at
// challenge creation time (spec §6).
func ListContestsByCreatorAndStatus(ctx context.Context, q Queryer, createdBy string, status domain.ContestStatus) ([]*domain.Contest, error) {
	rows, err := q.Query(ctx, "SELECT "+contestColumns+" FROM contests WHERE created_by = $1 AND status = $2", createdBy, status)
	if err != nil {
		return nil, fmt.Errorf("list contests by creator and status: %w", err)
	}
	defer rows.Close()

	var out []*domain.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertContest creates a new contest row.
func InsertContest(ctx context.Context, q Queryer, c *domain.Contest) (int64, error) {
	prizeDistJSON, _ := json.Marshal(c.PrizeDistribution)
	assetClassesJSON, _ := json.Marshal(c.AllowedAssetClasses)
	allowedJSON, _ := json.Marshal(c.AllowedSymbols)
	blockedJSON, _ := json.Marshal(c.BlockedSymbols)

	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO contests (
			slug, name, kind, status, start_time, end_time, accept_deadline,
			entry_fee, starting_capital, prize_pool, platform_fee_percentage,
			platform_fee_amount, winner_prize, prize_distribution,
			min_participants, max_participants, current_participants,
			allowed_asset_classes, allowed_symbols, blocked_symbols,
			leverage_min, leverage_max, leverage_default, max_open_positions,
			max_position_size, margin_call_threshold, ranking_method,
			tie_breaker_1, tie_breaker_2, minimum_trades, tie_prize_distribution,
			disqualify_on_liquidation, risk_limits_enabled,
			risk_max_drawdown_percent, risk_daily_loss_limit_percent,
			risk_equity_drawdown_percent, risk_equity_check_enabled, cancel_reason,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36,$37,$38)
		RETURNING id`,
		c.Slug, c.Name, c.Kind, c.Status, c.StartTime, c.EndTime, c.AcceptDeadline,
		c.EntryFee, c.StartingCapital, c.PrizePool, c.PlatformFeePercentage,
		c.PlatformFeeAmount, c.WinnerPrize, prizeDistJSON,
		c.MinParticipants, c.MaxParticipants, c.CurrentParticipants,
		assetClassesJSON, allowedJSON, blockedJSON,
		c.Leverage.Min, c.Leverage.Max, c.Leverage.Default, c.MaxOpenPositions,
		c.MaxPositionSize, c.MarginCallThreshold, c.Rules.RankingMethod,
		c.Rules.TieBreaker1, c.Rules.TieBreaker2, c.Rules.MinimumTrades, c.Rules.TiePrizeDistribution,
		c.Rules.DisqualifyOnLiquidation, c.RiskLimits.Enabled,
		c.RiskLimits.MaxDrawdownPercent, c.RiskLimits.DailyLossLimitPercent,
		c.RiskLimits.EquityDrawdownPercent, c.RiskLimits.EquityCheckEnabled, c.CancelReason,
		c.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert contest: %w", err)
	}
	return id, nil
}

// UpdateContestStatus performs a one-shot status transition, rejecting the
// write if the row is not currently in expectedFrom (spec §5: "illegal
// transitions are rejected").
func UpdateContestStatus(ctx context.Context, q Queryer, id int64, expectedFrom, to domain.ContestStatus, cancelReason string) error {
	tag, err := q.Exec(ctx, `
		UPDATE contests SET status = $1, cancel_reason = $2, updated_at = now()
		WHERE id = $3 AND status = $4`,
		to, cancelReason, id, expectedFrom)
	if err != nil {
		return fmt.Errorf("update contest status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return coreerrors.Wrap(coreerrors.KindConflict, "contest status transition rejected", nil)
	}
	return nil
}

// IncrementContestParticipation bumps currentParticipants and prizePool
// atomically, only inside a join transaction (spec §5: never mutated from
// scans), enforcing the max-participants invariant at the database level.
func IncrementContestParticipation(ctx context.Context, q Queryer, contestID int64, entryFee float64) error {
	tag, err := q.Exec(ctx, `
		UPDATE contests
		SET current_participants = current_participants + 1,
		    prize_pool = prize_pool + $2,
		    updated_at = now()
		WHERE id = $1 AND current_participants < max_participants`,
		contestID, entryFee)
	if err != nil {
		return fmt.Errorf("increment contest participation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return coreerrors.ErrContestFull
	}
	return nil
}

// UpdateContestFinalization persists the final prize-pool bookkeeping
// fields computed by lifecycle.FinalizeCompetition/FinalizeChallenge.
func UpdateContestFinalization(ctx context.Context, q Queryer, id int64, platformFeeAmount float64, status domain.ContestStatus) error {
	_, err := q.Exec(ctx, `
		UPDATE contests SET platform_fee_amount = $1, status = $2, updated_at = now()
		WHERE id = $3`,
		platformFeeAmount, status, id)
	if err != nil {
		return fmt.Errorf("update contest finalization: %w", err)
	}
	return nil
}
