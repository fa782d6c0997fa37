package domain

import "time"

// OrderSide is buy or sell.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType distinguishes market execution from resting limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus is the order lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderSource distinguishes a user-driven order from one placed by the
// core itself (close-out at finalization, auto-close on SL/TP/liquidation).
type OrderSource string

const (
	OrderSourceWeb    OrderSource = "web"
	OrderSourceSystem OrderSource = "system"
)

// Order is a single order-engine row.
type Order struct {
	ID        int64
	ContestID int64
	UserID    string

	Side   OrderSide
	Type   OrderType
	Symbol string

	Quantity       float64 // lots
	RequestedPrice float64 // limit orders
	ExecutedPrice  float64 // market / filled limit orders

	StopLoss   *float64
	TakeProfit *float64
	Leverage   int

	MarginRequired float64

	Status OrderStatus
	Source OrderSource

	PositionID *int64

	// Slippage is the signed pip difference between a client-locked quote
	// and the execution quote actually used, recorded whenever the locked
	// quote could not be honored verbatim (SPEC_FULL §3 supplement).
	Slippage float64

	PlacedAt    time.Time
	ExecutedAt  *time.Time
	CancelledAt *time.Time
}

// IsBuy reports whether the order is a buy-side order.
func (o *Order) IsBuy() bool { return o.Side == SideBuy }
