package lifecycle

import (
	"testing"
	"time"

	"github.com/epic1st/contestcore/internal/domain"
)

func participant(id int64, pnl float64) *domain.Participant {
	return &domain.Participant{ID: id, UserID: "user", Pnl: pnl, EnteredAt: time.Unix(int64(id), 0)}
}

func TestCalculateRankingsOrdersByPnLDescending(t *testing.T) {
	participants := []*domain.Participant{
		participant(1, 100),
		participant(2, 300),
		participant(3, 200),
	}
	rankings := CalculateRankings(participants, domain.Rules{RankingMethod: domain.RankByPnL}, false)

	want := []int64{2, 3, 1}
	for i, r := range rankings {
		if r.Participant.ID != want[i] {
			t.Fatalf("rank %d = participant %d, want %d", i+1, r.Participant.ID, want[i])
		}
		if r.Rank != i+1 {
			t.Fatalf("rankings[%d].Rank = %d, want %d", i, r.Rank, i+1)
		}
	}
}

func TestCalculateRankingsDisqualifiesBelowMinimumTrades(t *testing.T) {
	p1 := participant(1, 500)
	p1.TotalTrades = 1
	p2 := participant(2, 100)
	p2.TotalTrades = 10

	rules := domain.Rules{RankingMethod: domain.RankByPnL, MinimumTrades: 5}
	rankings := CalculateRankings([]*domain.Participant{p1, p2}, rules, true)

	if !rankings[1].Disqualified {
		t.Fatalf("expected the participant with ID 1 and 1 trade to be disqualified and ranked last")
	}
	if rankings[0].Participant.ID != 2 {
		t.Fatalf("expected the qualified participant to rank first despite the lower raw P&L, got participant %d", rankings[0].Participant.ID)
	}
}

func TestCalculateRankingsTieBreakCascade(t *testing.T) {
	p1 := participant(1, 100)
	p1.TotalTrades = 20
	p2 := participant(2, 100) // tied on PnL
	p2.TotalTrades = 5        // fewer trades is better per TieBreakerTradesCount

	rules := domain.Rules{RankingMethod: domain.RankByPnL, TieBreaker1: domain.TieBreakerTradesCount}
	rankings := CalculateRankings([]*domain.Participant{p1, p2}, rules, false)

	if rankings[0].Participant.ID != 2 {
		t.Fatalf("expected participant 2 (fewer trades) to win the tiebreak, got participant %d", rankings[0].Participant.ID)
	}
	if rankings[0].IsTied {
		t.Fatal("a tiebreak that resolves the tie must not leave IsTied set")
	}
}

func TestCalculateRankingsMarksUnresolvedTiesAsTied(t *testing.T) {
	p1 := participant(1, 100)
	p2 := participant(2, 100)
	rules := domain.Rules{RankingMethod: domain.RankByPnL} // no tiebreakers configured

	rankings := CalculateRankings([]*domain.Participant{p1, p2}, rules, false)

	if !rankings[0].IsTied || !rankings[1].IsTied {
		t.Fatal("expected both participants to be marked tied with no tiebreaker to resolve them")
	}
	if rankings[0].Rank != 1 || rankings[1].Rank != 1 {
		t.Fatalf("tied participants must share rank 1, got %d and %d", rankings[0].Rank, rankings[1].Rank)
	}
	if len(rankings[0].TiedWith) != 1 || rankings[0].TiedWith[0] != 2 {
		t.Fatalf("rankings[0].TiedWith = %v, want [2]", rankings[0].TiedWith)
	}
}

func TestCalculateRankingsProfitFactorSentinel(t *testing.T) {
	p1 := &domain.Participant{ID: 1, WinningTrades: 5, LosingTrades: 0}
	p2 := &domain.Participant{ID: 2, WinningTrades: 3, LosingTrades: 1}
	rules := domain.Rules{RankingMethod: domain.RankByProfitFactor}

	rankings := CalculateRankings([]*domain.Participant{p1, p2}, rules, false)
	if rankings[0].Participant.ID != 1 {
		t.Fatalf("expected the participant with zero losing trades (infinite profit factor) to rank first, got %d", rankings[0].Participant.ID)
	}
}
