package domain

import "time"

// PositionSide is long or short, derived from the opening order's side.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// PositionStatus is the position lifecycle; open transitions one-way to
// either closed or liquidated terminal state (spec §3 invariant).
type PositionStatus string

const (
	PositionOpen       PositionStatus = "open"
	PositionClosed     PositionStatus = "closed"
	PositionLiquidated PositionStatus = "liquidated"
)

// CloseReason records why a position stopped being open.
type CloseReason string

const (
	CloseUser            CloseReason = "user"
	CloseStopLoss        CloseReason = "stop_loss"
	CloseTakeProfit      CloseReason = "take_profit"
	CloseMarginCall      CloseReason = "margin_call"
	CloseChallengeEnd    CloseReason = "challenge_end"
	CloseCompetitionEnd  CloseReason = "competition_end"
)

// StandardLotUnits is the contract size of one forex lot, fixed per the
// spec's forex-only lot semantics (crypto/stocks lot semantics are an open
// question deliberately left undefined, see DESIGN.md).
const StandardLotUnits = 100_000.0

// Position is an open (or formerly open) commitment in one symbol.
type Position struct {
	ID            int64
	ContestID     int64
	ParticipantID int64
	UserID        string

	Symbol   string
	Side     PositionSide
	Quantity float64 // lots

	EntryPrice              float64
	CurrentPrice            float64
	UnrealizedPnl           float64
	UnrealizedPnlPercentage float64

	Leverage         int
	MarginUsed       float64
	MaintenanceMargin float64 // MarginUsed / 2

	StopLoss   *float64
	TakeProfit *float64

	Status      PositionStatus
	CloseReason CloseReason

	OpenOrderID  int64
	CloseOrderID *int64

	OpenedAt          time.Time
	ClosedAt          *time.Time
	HoldingTimeSeconds int64

	LastPriceUpdate time.Time
	PriceUpdateCount int64
}

// ComputeMaintenanceMargin keeps MaintenanceMargin derived from MarginUsed.
func (p *Position) ComputeMaintenanceMargin() {
	p.MaintenanceMargin = p.MarginUsed / 2
}

// TradeHistory is the immutable snapshot written whenever a position closes.
type TradeHistory struct {
	ID            int64
	ContestID     int64
	ParticipantID int64
	UserID        string
	PositionID    int64

	Symbol   string
	Side     PositionSide
	Quantity float64
	Leverage int

	EntryPrice              float64
	ExitPrice               float64
	PriceChange              float64
	PriceChangePercentage    float64
	RealizedPnl              float64
	RealizedPnlPercentage    float64

	HoldingTimeSeconds int64
	CloseReason        CloseReason
	IsWinner           bool

	OpenedAt time.Time
	ClosedAt time.Time
}

// PriceSource records where an execution price came from.
type PriceSource string

const (
	PriceSourceREST   PriceSource = "rest"
	PriceSourceWS     PriceSource = "ws"
	PriceSourceCache  PriceSource = "cache"
)

// PriceLog is an audit row written for every order execution / close.
type PriceLog struct {
	ID     int64
	Symbol string

	Bid    float64
	Ask    float64
	Mid    float64
	Spread float64

	QuoteTimestamp     time.Time
	ExecutionTimestamp time.Time

	ExpectedPrice   float64
	ExecutionPrice  float64
	SlippagePips    float64
	PriceSource     PriceSource

	OrderID    *int64
	PositionID *int64
}
