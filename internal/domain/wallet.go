package domain

import "time"

// WalletTransactionType classifies a ledger movement.
type WalletTransactionType string

const (
	TxCompetitionEntry WalletTransactionType = "competition_entry"
	TxChallengeEntry   WalletTransactionType = "challenge_entry"
	TxRefund           WalletTransactionType = "refund"
	TxPrize            WalletTransactionType = "prize"
	TxDeposit          WalletTransactionType = "deposit"
	TxWithdrawal       WalletTransactionType = "withdrawal"
	TxAdjustment       WalletTransactionType = "adjustment"
)

// WalletTransactionStatus mirrors the teacher ledger's status field.
type WalletTransactionStatus string

const (
	TxStatusCompleted WalletTransactionStatus = "completed"
	TxStatusFailed    WalletTransactionStatus = "failed"
)

// Wallet is the per-user credit balance plus lifetime aggregates.
type Wallet struct {
	UserID                       string
	CreditBalance                float64
	TotalSpentOnCompetitions     float64
	TotalWonFromChallenges       float64
	TotalSpentOnChallenges       float64
	TotalWonFromCompetitions     float64
}

// WalletTransaction is one append-only journal row. balanceAfter must equal
// balanceBefore + amount for every row (spec §3, §8 invariant 1).
type WalletTransaction struct {
	ID            int64
	UserID        string
	Type          WalletTransactionType
	Amount        float64 // signed
	BalanceBefore float64
	BalanceAfter  float64
	ContestID     *int64
	Description   string
	Status        WalletTransactionStatus
	ProcessedAt   time.Time
}

// PlatformTransactionReason explains a platform-owned credit flow.
type PlatformTransactionReason string

const (
	PlatformReasonFee             PlatformTransactionReason = "platform_fee"
	PlatformReasonUnclaimedPool   PlatformTransactionReason = "unclaimed_pool"
	PlatformReasonAllDisqualified PlatformTransactionReason = "all_disqualified"
)

// PlatformTransactionType categorizes the flow.
type PlatformTransactionType string

const (
	PlatformTxFee           PlatformTransactionType = "platform_fee"
	PlatformTxUnclaimedPool PlatformTransactionType = "unclaimed_pool"
)

// PlatformTransaction is an append-only record of platform-owned credit
// flows, referencing the contest that produced them.
type PlatformTransaction struct {
	ID        int64
	ContestID int64
	Type      PlatformTransactionType
	Reason    PlatformTransactionReason
	Amount    float64
	CreatedAt time.Time
}
