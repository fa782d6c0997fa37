package lifecycle

import (
	"testing"
	"time"

	"github.com/epic1st/contestcore/internal/domain"
)

func rankingFor(id int64, userID string, enteredAt time.Time, disqualified, tied bool) *Ranking {
	return &Ranking{
		Participant:  &domain.Participant{ID: id, UserID: userID, EnteredAt: enteredAt},
		Disqualified: disqualified,
		IsTied:       tied,
	}
}

func TestResolveChallengeOutcomeClearWinner(t *testing.T) {
	rankings := []*Ranking{
		rankingFor(1, "alice", time.Unix(1, 0), false, false),
		rankingFor(2, "bob", time.Unix(2, 0), false, false),
	}
	contest := &domain.Contest{WinnerPrize: 100}

	winner, winnerAmt, splitAmt, splitUser, unclaimed, err := resolveChallengeOutcome(rankings, contest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner != "alice" || winnerAmt != 100 || splitAmt != 0 || splitUser != "" || unclaimed != 0 {
		t.Fatalf("got (%q, %v, %v, %q, %v), want (alice, 100, 0, \"\", 0)", winner, winnerAmt, splitAmt, splitUser, unclaimed)
	}
}

func TestResolveChallengeOutcomeBothDisqualified(t *testing.T) {
	rankings := []*Ranking{
		rankingFor(1, "alice", time.Unix(1, 0), true, false),
		rankingFor(2, "bob", time.Unix(2, 0), true, false),
	}
	contest := &domain.Contest{WinnerPrize: 100}

	winner, winnerAmt, _, _, unclaimed, err := resolveChallengeOutcome(rankings, contest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner != "" || winnerAmt != 0 || unclaimed != 100 {
		t.Fatalf("both disqualified: got winner=%q amount=%v unclaimed=%v, want (\"\", 0, 100)", winner, winnerAmt, unclaimed)
	}
}

func TestResolveChallengeOutcomeOneDisqualified(t *testing.T) {
	rankings := []*Ranking{
		rankingFor(1, "alice", time.Unix(1, 0), true, false),
		rankingFor(2, "bob", time.Unix(2, 0), false, false),
	}
	contest := &domain.Contest{WinnerPrize: 100}

	winner, winnerAmt, _, _, unclaimed, err := resolveChallengeOutcome(rankings, contest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner != "bob" || winnerAmt != 100 || unclaimed != 0 {
		t.Fatalf("got winner=%q amount=%v unclaimed=%v, want (bob, 100, 0)", winner, winnerAmt, unclaimed)
	}
}

func TestResolveChallengeOutcomeTieSplitEqually(t *testing.T) {
	rankings := []*Ranking{
		rankingFor(1, "alice", time.Unix(1, 0), false, true),
		rankingFor(2, "bob", time.Unix(2, 0), false, true),
	}
	contest := &domain.Contest{WinnerPrize: 99.99, Rules: domain.Rules{TiePrizeDistribution: domain.TieSplitEqually}}

	winner, winnerAmt, splitAmt, splitUser, unclaimed, err := resolveChallengeOutcome(rankings, contest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner != "alice" || splitUser != "bob" {
		t.Fatalf("got winner=%q splitUser=%q, want alice/bob", winner, splitUser)
	}
	if winnerAmt != splitAmt {
		t.Fatalf("split amounts differ: %v vs %v", winnerAmt, splitAmt)
	}
	total := winnerAmt + splitAmt + unclaimed
	if total != contest.WinnerPrize {
		t.Fatalf("split halves + unclaimed residue = %v, want exactly WinnerPrize %v (no money created or lost)", total, contest.WinnerPrize)
	}
}

func TestResolveChallengeOutcomeTieChallengerWins(t *testing.T) {
	rankings := []*Ranking{
		rankingFor(1, "alice", time.Unix(5, 0), false, true),
		rankingFor(2, "bob", time.Unix(2, 0), false, true), // bob joined first -> is the challenger
	}
	contest := &domain.Contest{WinnerPrize: 100, Rules: domain.Rules{TiePrizeDistribution: domain.TieChallengerWins}}

	winner, winnerAmt, _, _, _, err := resolveChallengeOutcome(rankings, contest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner != "bob" || winnerAmt != 100 {
		t.Fatalf("got winner=%q amount=%v, want bob/100 (earlier joiner is the challenger)", winner, winnerAmt)
	}
}

func TestResolveChallengeOutcomeTieBothLose(t *testing.T) {
	rankings := []*Ranking{
		rankingFor(1, "alice", time.Unix(1, 0), false, true),
		rankingFor(2, "bob", time.Unix(2, 0), false, true),
	}
	contest := &domain.Contest{WinnerPrize: 100, Rules: domain.Rules{TiePrizeDistribution: domain.TieBothLose}}

	winner, winnerAmt, _, _, unclaimed, err := resolveChallengeOutcome(rankings, contest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner != "" || winnerAmt != 0 || unclaimed != 100 {
		t.Fatalf("got winner=%q amount=%v unclaimed=%v, want (\"\", 0, 100)", winner, winnerAmt, unclaimed)
	}
}

func TestResolveChallengeOutcomeRejectsWrongParticipantCount(t *testing.T) {
	rankings := []*Ranking{rankingFor(1, "alice", time.Unix(1, 0), false, false)}
	_, _, _, _, _, err := resolveChallengeOutcome(rankings, &domain.Contest{})
	if err == nil {
		t.Fatal("expected an error for a challenge with != 2 rankings")
	}
}
