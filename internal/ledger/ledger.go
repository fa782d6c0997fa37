// Package ledger is the transactional wallet/prize-pool money layer.
// Grounded on internal/core/ledger.go's one-method-per-transaction-type
// shape (Deposit/Withdraw/RecordSwap/AddBonus against an in-memory balance
// map), generalized from a mutex-guarded map into internal/store-backed
// persistence. Every amount that the spec requires rounding semantics for
// (entry fees, refunds, prize splits, the platform fee residue) is rounded
// through govalues/decimal before it is persisted as a float64 — the
// teacher declared this dependency but never imported it; this package is
// its first real consumer.
package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/govalues/decimal"
	"github.com/jackc/pgx/v5"

	"github.com/epic1st/contestcore/internal/coreerrors"
	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/store"
)

// Ledger wraps a *store.Store with the wallet/platform-transaction
// operations the lifecycle manager calls into.
type Ledger struct {
	store *store.Store
}

func New(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// RoundToCents floors amount to two decimal places using exact decimal
// arithmetic instead of float64 rounding, matching the floor()-rounding
// rule spec.md §4.6 uses for per-slot prize amounts (see DESIGN.md's Open
// Question decision on rounding residue). Negative amounts are never
// expected here; callers that might produce one should reject it earlier.
func RoundToCents(amount float64) (float64, error) {
	d, err := decimal.Parse(strconv.FormatFloat(amount, 'f', -1, 64))
	if err != nil {
		return 0, fmt.Errorf("ledger: parse amount: %w", err)
	}
	floored := d.Floor(2)
	out, ok := floored.Float64()
	if !ok {
		return 0, fmt.Errorf("ledger: amount %v does not fit in float64", floored)
	}
	return out, nil
}

// DebitEntryFee charges a contest entry fee from the user's wallet,
// rejecting with coreerrors.ErrInsufficientBalance if the wallet cannot
// cover it (spec §4.2 enterCompetition/acceptChallenge step 1).
func (l *Ledger) DebitEntryFee(ctx context.Context, tx pgx.Tx, userID string, contestID int64, entryFee float64, txType domain.WalletTransactionType, idempotencyKey string) (*domain.WalletTransaction, error) {
	amount, err := RoundToCents(entryFee)
	if err != nil {
		return nil, err
	}
	return store.ApplyWalletTransaction(ctx, tx, userID, txType, -amount, &contestID, "contest entry fee", idempotencyKey)
}

// Refund credits back a previously debited entry fee (spec §4.6
// cancelCompetitionAndRefund: "every participant is refunded in full").
func (l *Ledger) Refund(ctx context.Context, tx pgx.Tx, userID string, contestID int64, amount float64, idempotencyKey string) (*domain.WalletTransaction, error) {
	rounded, err := RoundToCents(amount)
	if err != nil {
		return nil, err
	}
	return store.ApplyWalletTransaction(ctx, tx, userID, domain.TxRefund, rounded, &contestID, "contest cancelled, entry fee refunded", idempotencyKey)
}

// CreditPrize pays out a finalized contest's prize share to one winner.
func (l *Ledger) CreditPrize(ctx context.Context, tx pgx.Tx, userID string, contestID int64, amount float64, idempotencyKey string) (*domain.WalletTransaction, error) {
	rounded, err := RoundToCents(amount)
	if err != nil {
		return nil, err
	}
	if rounded <= 0 {
		return nil, coreerrors.New(coreerrors.KindValidation, "prize amount must be positive")
	}
	return store.ApplyWalletTransaction(ctx, tx, userID, domain.TxPrize, rounded, &contestID, "contest prize", idempotencyKey)
}

// RecordPlatformFee books the platform's cut of a finalized contest's prize
// pool (spec §4.6: platformFeeAmount, computed before distribution).
func (l *Ledger) RecordPlatformFee(ctx context.Context, tx pgx.Tx, contestID int64, amount float64) error {
	rounded, err := RoundToCents(amount)
	if err != nil {
		return err
	}
	return store.InsertPlatformTransaction(ctx, tx, &domain.PlatformTransaction{
		ContestID: contestID,
		Type:      domain.PlatformTxFee,
		Reason:    domain.PlatformReasonFee,
		Amount:    rounded,
	})
}

// RecordUnclaimedPool books prize-pool residue that floor() rounding or an
// all-disqualified contest leaves undistributed (spec §4.6).
func (l *Ledger) RecordUnclaimedPool(ctx context.Context, tx pgx.Tx, contestID int64, amount float64, reason domain.PlatformTransactionReason) error {
	rounded, err := RoundToCents(amount)
	if err != nil {
		return err
	}
	if rounded <= 0 {
		return nil
	}
	return store.InsertPlatformTransaction(ctx, tx, &domain.PlatformTransaction{
		ContestID: contestID,
		Type:      domain.PlatformTxUnclaimedPool,
		Reason:    reason,
		Amount:    rounded,
	})
}
