// Package domain holds the entities shared by every package in the trading
// core. It has no dependency on store, engine, or transport packages so it
// can be imported from anywhere without creating cycles.
package domain

import "time"

// ContestKind discriminates the two contest shapes that otherwise share a
// single row shape, per the single-Participant/tagged-contest redesign.
type ContestKind string

const (
	ContestCompetition ContestKind = "competition"
	ContestChallenge    ContestKind = "challenge"
)

// ContestStatus is the contest lifecycle state machine.
type ContestStatus string

const (
	ContestDraft     ContestStatus = "draft"
	ContestUpcoming  ContestStatus = "upcoming"
	ContestActive    ContestStatus = "active"
	ContestCompleted ContestStatus = "completed"
	ContestCancelled ContestStatus = "cancelled"
	ContestExpired   ContestStatus = "expired"
)

// RankingMethod selects the primary ranking metric.
type RankingMethod string

const (
	RankByPnL           RankingMethod = "pnl"
	RankByROI           RankingMethod = "roi"
	RankByTotalCapital  RankingMethod = "total_capital"
	RankByWinRate       RankingMethod = "win_rate"
	RankByTotalWins     RankingMethod = "total_wins"
	RankByProfitFactor  RankingMethod = "profit_factor"
)

// TieBreaker is a cascaded tie-break criterion.
type TieBreaker string

const (
	TieBreakerTradesCount   TieBreaker = "trades_count"
	TieBreakerWinRate       TieBreaker = "win_rate"
	TieBreakerTotalCapital  TieBreaker = "total_capital"
	TieBreakerROI           TieBreaker = "roi"
	TieBreakerJoinTime      TieBreaker = "join_time"
	TieBreakerSplitPrize    TieBreaker = "split_prize"
)

// TiePrizeDistribution governs a 1v1 challenge tie.
type TiePrizeDistribution string

const (
	TieSplitEqually    TiePrizeDistribution = "split_equally"
	TieChallengerWins  TiePrizeDistribution = "challenger_wins"
	TieBothLose        TiePrizeDistribution = "both_lose"
)

// AssetClass groups symbols for contest trading-config restrictions.
type AssetClass string

const (
	AssetClassForex  AssetClass = "forex"
	AssetClassCrypto AssetClass = "crypto"
	AssetClassStocks AssetClass = "stocks"
)

// LeverageBand is the allowed leverage range for a contest.
type LeverageBand struct {
	Min     int
	Max     int
	Default int
}

// PrizeSlot is one row of an ordered prize distribution; Percentage values
// across all slots of a contest must sum to exactly 100.
type PrizeSlot struct {
	Rank       int
	Percentage float64
}

// RiskLimits are the optional per-contest limits evaluated before order
// placement (spec §4.3).
type RiskLimits struct {
	Enabled                bool
	MaxDrawdownPercent     float64
	DailyLossLimitPercent  float64
	EquityDrawdownPercent  float64
	EquityCheckEnabled     bool
}

// Rules bundles the ranking and disqualification configuration of a
// contest.
type Rules struct {
	RankingMethod         RankingMethod
	TieBreaker1           TieBreaker
	TieBreaker2           TieBreaker
	MinimumTrades         int
	TiePrizeDistribution  TiePrizeDistribution
	DisqualifyOnLiquidation bool
}

// Contest is the tagged-variant entity covering both competitions and
// challenges, per the single-entity redesign note.
type Contest struct {
	ID     int64
	Slug   string
	Name   string
	Kind   ContestKind
	Status ContestStatus

	StartTime      time.Time
	EndTime        time.Time
	AcceptDeadline *time.Time // challenges only

	EntryFee               float64
	StartingCapital        float64
	PrizePool               float64
	PlatformFeePercentage   float64
	PlatformFeeAmount       float64
	WinnerPrize             float64
	PrizeDistribution       []PrizeSlot
	MinParticipants         int
	MaxParticipants         int
	CurrentParticipants     int

	AllowedAssetClasses []AssetClass
	AllowedSymbols      []string // empty = all symbols of allowed asset classes
	BlockedSymbols      []string
	Leverage            LeverageBand
	MaxOpenPositions    int
	MaxPositionSize     float64
	MarginCallThreshold float64 // percent; stored only, the margin-call scan uses the admin-global thresholds (see DESIGN.md)

	Rules      Rules
	RiskLimits RiskLimits

	CreatedAt time.Time
	UpdatedAt time.Time

	// CancelReason is set when Status transitions to cancelled.
	CancelReason string

	// CreatedBy is the challenge creator's user id, empty for
	// admin-created competitions. Used to enforce a user's
	// pending/active challenge limits (spec §6 challenge settings).
	CreatedBy string
}

// AllowsSymbol reports whether symbol may be traded in this contest,
// evaluating allow/block lists per spec §4.3 check 2.
func (c *Contest) AllowsSymbol(symbol string) bool {
	for _, blocked := range c.BlockedSymbols {
		if blocked == symbol {
			return false
		}
	}
	if len(c.AllowedSymbols) == 0 {
		return true
	}
	for _, allowed := range c.AllowedSymbols {
		if allowed == symbol {
			return true
		}
	}
	return false
}

// IsFull reports whether the contest has reached its participant cap.
func (c *Contest) IsFull() bool {
	return c.CurrentParticipants >= c.MaxParticipants
}

// MeetsMinimum reports whether enough participants joined to auto-start.
func (c *Contest) MeetsMinimum() bool {
	return c.CurrentParticipants >= c.MinParticipants
}
