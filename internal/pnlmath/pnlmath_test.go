package pnlmath

import (
	"math"
	"testing"

	"github.com/epic1st/contestcore/internal/domain"
)

func TestMarginRequired(t *testing.T) {
	cases := []struct {
		name     string
		quantity float64
		price    float64
		leverage int
		want     float64
	}{
		{"1 lot EURUSD at 100x", 1, 1.1000, 100, 1 * domain.StandardLotUnits * 1.1000 / 100},
		{"zero leverage is infinite", 1, 1.1000, 0, math.Inf(1)},
		{"negative leverage is infinite", 1, 1.1000, -5, math.Inf(1)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := MarginRequired(c.quantity, c.price, c.leverage, "EURUSD")
			if math.IsInf(c.want, 1) {
				if !math.IsInf(got, 1) {
					t.Fatalf("MarginRequired() = %v, want +Inf", got)
				}
				return
			}
			if math.Abs(got-c.want) > 1e-9 {
				t.Fatalf("MarginRequired() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestUnrealizedPnL(t *testing.T) {
	cases := []struct {
		name   string
		side   domain.PositionSide
		entry  float64
		mark   float64
		qty    float64
		symbol string
		want   float64
	}{
		{"long gains when mark rises", domain.PositionLong, 1.1000, 1.1050, 1, "EURUSD", 0.0050 * domain.StandardLotUnits},
		{"long loses when mark falls", domain.PositionLong, 1.1000, 1.0950, 1, "EURUSD", -0.0050 * domain.StandardLotUnits},
		{"short gains when mark falls", domain.PositionShort, 1.1000, 1.0950, 1, "EURUSD", 0.0050 * domain.StandardLotUnits},
		{"short loses when mark rises", domain.PositionShort, 1.1000, 1.1050, 1, "EURUSD", -0.0050 * domain.StandardLotUnits},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := UnrealizedPnL(c.side, c.entry, c.mark, c.qty, c.symbol)
			if math.Abs(got-c.want) > 1e-9 {
				t.Fatalf("UnrealizedPnL() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestPnLPercentageZeroMargin(t *testing.T) {
	if got := PnLPercentage(100, 0); got != 0 {
		t.Fatalf("PnLPercentage() with zero margin = %v, want 0", got)
	}
	if got := PnLPercentage(50, 200); got != 25 {
		t.Fatalf("PnLPercentage() = %v, want 25", got)
	}
}

func TestPipSize(t *testing.T) {
	if got := PipSize("USDJPY"); got != 0.01 {
		t.Fatalf("PipSize(USDJPY) = %v, want 0.01", got)
	}
	if got := PipSize("eurjpy"); got != 0.01 {
		t.Fatalf("PipSize(eurjpy) = %v, want 0.01 (case-insensitive)", got)
	}
	if got := PipSize("EURUSD"); got != 0.0001 {
		t.Fatalf("PipSize(EURUSD) = %v, want 0.0001", got)
	}
}

func TestEntryExitPrice(t *testing.T) {
	q := Quote{Bid: 1.1000, Ask: 1.1002}

	if got := EntryPrice(domain.PositionLong, q); got != q.Ask {
		t.Fatalf("EntryPrice(long) = %v, want ask %v", got, q.Ask)
	}
	if got := EntryPrice(domain.PositionShort, q); got != q.Bid {
		t.Fatalf("EntryPrice(short) = %v, want bid %v", got, q.Bid)
	}
	if got := ExitPrice(domain.PositionLong, q); got != q.Bid {
		t.Fatalf("ExitPrice(long) = %v, want bid %v", got, q.Bid)
	}
	if got := ExitPrice(domain.PositionShort, q); got != q.Ask {
		t.Fatalf("ExitPrice(short) = %v, want ask %v", got, q.Ask)
	}
}

func TestMarginLevel(t *testing.T) {
	if got := MarginLevel(1000, 0); !math.IsInf(got, 1) {
		t.Fatalf("MarginLevel() with zero used margin = %v, want +Inf", got)
	}
	if got := MarginLevel(500, 1000); got != 50 {
		t.Fatalf("MarginLevel() = %v, want 50", got)
	}
}

func TestClassifyMargin(t *testing.T) {
	th := Thresholds{Safe: 200, Warning: 150, MarginCall: 100, Liquidation: 50}

	cases := []struct {
		level float64
		want  MarginStatus
	}{
		{300, MarginSafe},
		{200, MarginSafe},    // anything above Warning is safe; Safe is not a cutoff
		{150, MarginWarning}, // boundary: a level equal to a cutoff falls into that cutoff's bucket
		{100, MarginCall},
		{10, MarginLiquidation},
	}
	for _, c := range cases {
		if got := ClassifyMargin(c.level, th); got != c.want {
			t.Fatalf("ClassifyMargin(%v) = %v, want %v", c.level, got, c.want)
		}
	}
}

func TestEquity(t *testing.T) {
	if got := Equity(1000, 50, -20, 10); got != 1040 {
		t.Fatalf("Equity() = %v, want 1040", got)
	}
	if got := Equity(1000); got != 1000 {
		t.Fatalf("Equity() with no open positions = %v, want 1000", got)
	}
}

func TestSlippagePips(t *testing.T) {
	if got := SlippagePips(1.1000, 1.1005, "EURUSD"); math.Abs(got-5) > 1e-9 {
		t.Fatalf("SlippagePips() = %v, want 5", got)
	}
	if got := SlippagePips(110.00, 110.05, "USDJPY"); math.Abs(got-5) > 1e-9 {
		t.Fatalf("SlippagePips() for JPY pair = %v, want 5", got)
	}
}
