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

// GetOrCreateWallet fetches a user's wallet, inserting a zero-balance row on
// first touch (spec §4.2: a user's first entry fee debit implicitly opens
// their wallet).
func GetOrCreateWallet(ctx context.Context, q Queryer, userID string, forUpdate bool) (*domain.Wallet, error) {
	query := `SELECT user_id, credit_balance, total_spent_on_competitions,
		total_won_from_challenges, total_spent_on_challenges,
		total_won_from_competitions FROM wallets WHERE user_id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	w, err := scanWallet(q.QueryRow(ctx, query, userID))
	if err == nil {
		return w, nil
	}
	if coreerrors.KindOf(err) != coreerrors.KindState {
		return nil, err
	}

	_, insertErr := q.Exec(ctx, `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if insertErr != nil {
		return nil, fmt.Errorf("create wallet: %w", insertErr)
	}
	return scanWallet(q.QueryRow(ctx, query, userID))
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(
		&w.UserID, &w.CreditBalance, &w.TotalSpentOnCompetitions,
		&w.TotalWonFromChallenges, &w.TotalSpentOnChallenges,
		&w.TotalWonFromCompetitions,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, coreerrors.New(coreerrors.KindState, "wallet not found")
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return &w, nil
}

// walletAggregateColumn maps a transaction type to the lifetime aggregate
// column it moves, matching the teacher's per-type aggregate bookkeeping.
func walletAggregateColumn(txType domain.WalletTransactionType) string {
	switch txType {
	case domain.TxCompetitionEntry:
		return "total_spent_on_competitions"
	case domain.TxChallengeEntry:
		return "total_spent_on_challenges"
	case domain.TxPrize:
		return "total_won_from_competitions"
	default:
		return ""
	}
}

// ApplyWalletTransaction debits/credits a wallet's credit_balance and
// appends the journal row in one call, honoring idempotencyKey as a unique
// constraint so retried debits never double-apply (spec §8 invariant 1:
// at-most-once wallet transactions). Returns coreerrors.ErrInsufficientBalance
// if amount is negative and would drive the balance below zero.
func ApplyWalletTransaction(ctx context.Context, q Queryer, userID string, txType domain.WalletTransactionType, amount float64, contestID *int64, description, idempotencyKey string) (*domain.WalletTransaction, error) {
	wallet, err := GetOrCreateWallet(ctx, q, userID, true)
	if err != nil {
		return nil, err
	}

	before := wallet.CreditBalance
	after := before + amount
	if after < 0 {
		return nil, coreerrors.ErrInsufficientBalance
	}

	aggCol := walletAggregateColumn(txType)
	updateSQL := "UPDATE wallets SET credit_balance = $1"
	args := []any{after}
	if aggCol != "" {
		updateSQL += fmt.Sprintf(", %s = %s + $2", aggCol, aggCol)
		args = append(args, absFloat(amount))
		updateSQL += " WHERE user_id = $3"
		args = append(args, userID)
	} else {
		updateSQL += " WHERE user_id = $2"
		args = append(args, userID)
	}
	if _, err := q.Exec(ctx, updateSQL, args...); err != nil {
		return nil, fmt.Errorf("apply wallet transaction: update balance: %w", err)
	}

	tx := &domain.WalletTransaction{
		UserID:        userID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		ContestID:     contestID,
		Description:   description,
		Status:        domain.TxStatusCompleted,
	}

	var idemKey *string
	if idempotencyKey != "" {
		idemKey = &idempotencyKey
	}

	err = q.QueryRow(ctx, `
		INSERT INTO wallet_transactions (
			user_id, type, amount, balance_before, balance_after, contest_id,
			description, status, processed_at, idempotency_key
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8, now(), $9)
		RETURNING id, processed_at`,
		tx.UserID, tx.Type, tx.Amount, tx.BalanceBefore, tx.BalanceAfter, tx.ContestID,
		tx.Description, tx.Status, idemKey,
	).Scan(&tx.ID, &tx.ProcessedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, coreerrors.Wrap(coreerrors.KindConflict, "wallet transaction already applied", err)
		}
		return nil, fmt.Errorf("apply wallet transaction: insert journal row: %w", err)
	}
	return tx, nil
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// InsertPlatformTransaction records a platform-owned credit flow (fee or
// unclaimed prize pool) produced by finalizing a contest (spec §4.6).
func InsertPlatformTransaction(ctx context.Context, q Queryer, pt *domain.PlatformTransaction) error {
	_, err := q.Exec(ctx, `
		INSERT INTO platform_transactions (contest_id, type, reason, amount, created_at)
		VALUES ($1,$2,$3,$4, now())`,
		pt.ContestID, pt.Type, pt.Reason, pt.Amount)
	if err != nil {
		return fmt.Errorf("insert platform transaction: %w", err)
	}
	return nil
}

// ListWalletTransactions returns a user's journal, newest first, for
// account-history surfaces.
func ListWalletTransactions(ctx context.Context, q Queryer, userID string, limit int) ([]*domain.WalletTransaction, error) {
	rows, err := q.Query(ctx, `
		SELECT id, user_id, type, amount, balance_before, balance_after,
			contest_id, description, status, processed_at
		FROM wallet_transactions
		WHERE user_id = $1 ORDER BY processed_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.WalletTransaction
	for rows.Next() {
		var t domain.WalletTransaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
			&t.ContestID, &t.Description, &t.Status, &t.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan wallet transaction: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
