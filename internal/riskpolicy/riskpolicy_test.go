package riskpolicy

import (
	"testing"
	"time"

	"github.com/epic1st/contestcore/internal/coreerrors"
	"github.com/epic1st/contestcore/internal/domain"
)

func baseContest() *domain.Contest {
	return &domain.Contest{
		Leverage:         domain.LeverageBand{Min: 1, Max: 100, Default: 10},
		MaxOpenPositions: 5,
	}
}

func baseParticipant() *domain.Participant {
	return &domain.Participant{
		CurrentOpenPositions: 0,
		AvailableCapital:     10000,
	}
}

func baseLimits() Limits {
	return Limits{MinPositionSize: 0.01, MaxPositionSize: 10, MinLimitPips: 1, MaxLimitPips: 2000}
}

func TestCheckOrderQuantityBounds(t *testing.T) {
	p := OrderParams{Symbol: "EURUSD", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 20, Leverage: 10}
	err := CheckOrder(p, baseContest(), baseParticipant(), baseLimits(), MarketQuote{Bid: 1.1, Ask: 1.1002}, 100)
	assertRiskRejected(t, err)
}

func TestCheckOrderSymbolBlocked(t *testing.T) {
	c := baseContest()
	c.BlockedSymbols = []string{"EURUSD"}
	p := OrderParams{Symbol: "EURUSD", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 1, Leverage: 10}
	err := CheckOrder(p, c, baseParticipant(), baseLimits(), MarketQuote{Bid: 1.1, Ask: 1.1002}, 100)
	assertRiskRejected(t, err)
}

func TestCheckOrderLeverageBounds(t *testing.T) {
	p := OrderParams{Symbol: "EURUSD", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 1, Leverage: 500}
	err := CheckOrder(p, baseContest(), baseParticipant(), baseLimits(), MarketQuote{Bid: 1.1, Ask: 1.1002}, 100)
	assertRiskRejected(t, err)
}

func TestCheckOrderLimitPriceMustBeOnCorrectSide(t *testing.T) {
	p := OrderParams{
		Symbol: "EURUSD", Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		Quantity: 1, Leverage: 10, LimitPrice: 1.2000,
	}
	err := CheckOrder(p, baseContest(), baseParticipant(), baseLimits(), MarketQuote{Bid: 1.1000, Ask: 1.1002}, 100)
	assertRiskRejected(t, err)
}

func TestCheckOrderLimitDistanceBounds(t *testing.T) {
	limits := baseLimits()
	limits.MinLimitPips = 50 // require at least 50 pips away from mid

	p := OrderParams{
		Symbol: "EURUSD", Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		Quantity: 1, Leverage: 10, LimitPrice: 1.0999, // 1-2 pips below mid, too close
	}
	err := CheckOrder(p, baseContest(), baseParticipant(), limits, MarketQuote{Bid: 1.1000, Ask: 1.1002}, 100)
	assertRiskRejected(t, err)
}

func TestCheckOrderStopLossDirection(t *testing.T) {
	sl := 1.1010 // above entry for a long limit buy: invalid
	p := OrderParams{
		Symbol: "EURUSD", Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		Quantity: 1, Leverage: 10, LimitPrice: 1.0900, StopLoss: &sl,
	}
	err := CheckOrder(p, baseContest(), baseParticipant(), baseLimits(), MarketQuote{Bid: 1.1000, Ask: 1.1002}, 100)
	assertRiskRejected(t, err)
}

func TestCheckOrderOpenPositionLimit(t *testing.T) {
	participant := baseParticipant()
	participant.CurrentOpenPositions = 5
	p := OrderParams{Symbol: "EURUSD", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 1, Leverage: 10}
	err := CheckOrder(p, baseContest(), participant, baseLimits(), MarketQuote{Bid: 1.1, Ask: 1.1002}, 100)
	assertRiskRejected(t, err)
}

func TestCheckOrderInsufficientCapital(t *testing.T) {
	participant := baseParticipant()
	participant.AvailableCapital = 50
	p := OrderParams{Symbol: "EURUSD", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 1, Leverage: 10}
	err := CheckOrder(p, baseContest(), participant, baseLimits(), MarketQuote{Bid: 1.1, Ask: 1.1002}, 100)
	if err == nil {
		t.Fatal("expected an error for insufficient capital")
	}
	var ce *coreerrors.CoreError
	if !isCoreError(err, &ce) {
		t.Fatalf("expected a *coreerrors.CoreError, got %T", err)
	}
	if ce.Kind != coreerrors.KindState {
		t.Fatalf("Kind = %v, want %v", ce.Kind, coreerrors.KindState)
	}
}

func TestCheckOrderPasses(t *testing.T) {
	p := OrderParams{Symbol: "EURUSD", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 1, Leverage: 10}
	err := CheckOrder(p, baseContest(), baseParticipant(), baseLimits(), MarketQuote{Bid: 1.1, Ask: 1.1002}, 100)
	if err != nil {
		t.Fatalf("expected no error for a valid order, got %v", err)
	}
}

func TestCheckStopTakeAgainstFill(t *testing.T) {
	sl := 1.0990
	tp := 1.1050
	if err := CheckStopTakeAgainstFill(domain.SideBuy, 1.1000, &sl, &tp); err != nil {
		t.Fatalf("valid long SL/TP rejected: %v", err)
	}

	badSL := 1.1010
	if err := CheckStopTakeAgainstFill(domain.SideBuy, 1.1000, &badSL, nil); err == nil {
		t.Fatal("expected rejection: stop loss above entry for a long fill")
	}
}

func TestContestLimitsCheckDisabled(t *testing.T) {
	contest := baseContest()
	participant := baseParticipant()
	participant.StartingCapital = 10000
	participant.CurrentCapital = 1 // would breach drawdown if limits were enabled
	if err := ContestLimitsCheck(contest, participant, 0, nil, time.Now()); err != nil {
		t.Fatalf("disabled risk limits must never reject: %v", err)
	}
}

func TestContestLimitsCheckMaxDrawdown(t *testing.T) {
	contest := baseContest()
	contest.RiskLimits = domain.RiskLimits{Enabled: true, MaxDrawdownPercent: 20}
	participant := baseParticipant()
	participant.StartingCapital = 10000
	participant.CurrentCapital = 7000 // 30% drawdown, breaches the 20% limit

	err := ContestLimitsCheck(contest, participant, 0, nil, time.Now())
	assertRiskRejected(t, err)
}

func TestContestLimitsCheckDailyLoss(t *testing.T) {
	contest := baseContest()
	contest.RiskLimits = domain.RiskLimits{Enabled: true, DailyLossLimitPercent: 5}
	participant := baseParticipant()
	participant.StartingCapital = 10000

	err := ContestLimitsCheck(contest, participant, -600, nil, time.Now())
	assertRiskRejected(t, err)
}

func TestContestLimitsCheckEquityDrawdown(t *testing.T) {
	contest := baseContest()
	contest.RiskLimits = domain.RiskLimits{Enabled: true, EquityCheckEnabled: true, EquityDrawdownPercent: 10}
	participant := baseParticipant()
	participant.StartingCapital = 10000
	participant.CurrentCapital = 9500

	err := ContestLimitsCheck(contest, participant, 0, []float64{-500}, time.Now())
	assertRiskRejected(t, err)
}

func assertRiskRejected(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected a rejection, got nil")
	}
	var ce *coreerrors.CoreError
	if !isCoreError(err, &ce) {
		t.Fatalf("expected a *coreerrors.CoreError, got %T", err)
	}
	if ce.Kind != coreerrors.KindRisk {
		t.Fatalf("Kind = %v, want %v", ce.Kind, coreerrors.KindRisk)
	}
}

func isCoreError(err error, target **coreerrors.CoreError) bool {
	ce, ok := err.(*coreerrors.CoreError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
