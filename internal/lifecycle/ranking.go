package lifecycle

import (
	"math"
	"sort"

	"github.com/epic1st/contestcore/internal/domain"
)

// tieEpsilon is how close two participants' primary metric must be to
// count as tied before falling through to the tie-break cascade (spec
// §4.6).
const tieEpsilon = 0.001

// profitFactorSentinel stands in for +infinity when a participant has
// winning trades and zero losing trades (spec §4.6).
const profitFactorSentinel = 9999

// Ranking is one participant's computed leaderboard position. It is never
// persisted; callers recompute it on demand from participants and trade
// history.
type Ranking struct {
	Participant *domain.Participant
	Rank        int
	Metric      float64
	IsTied      bool
	TiedWith    []int64 // participant IDs
	Disqualified bool
	DisqualificationReason string
}

// primaryMetric computes a participant's value for rules.RankingMethod
// (spec §4.6).
func primaryMetric(p *domain.Participant, method domain.RankingMethod) float64 {
	switch method {
	case domain.RankByROI:
		return p.PnlPercentage
	case domain.RankByTotalCapital:
		return p.CurrentCapital
	case domain.RankByWinRate:
		return p.WinRate
	case domain.RankByTotalWins:
		return float64(p.WinningTrades)
	case domain.RankByProfitFactor:
		if p.LosingTrades == 0 {
			if p.WinningTrades > 0 {
				return profitFactorSentinel
			}
			return 0
		}
		return float64(p.WinningTrades) / float64(p.LosingTrades)
	default: // domain.RankByPnL
		return p.Pnl
	}
}

// tieBreakMetric computes a participant's value for a cascaded
// tie-breaker, inverting the sign for the two criteria where a smaller raw
// value is better (spec §4.6: "trades_count is fewer is better", "join_time
// is earlier is better").
func tieBreakMetric(p *domain.Participant, tb domain.TieBreaker) float64 {
	switch tb {
	case domain.TieBreakerTradesCount:
		return -float64(p.TotalTrades)
	case domain.TieBreakerWinRate:
		return p.WinRate
	case domain.TieBreakerTotalCapital:
		return p.CurrentCapital
	case domain.TieBreakerROI:
		return p.PnlPercentage
	case domain.TieBreakerJoinTime:
		return -float64(p.EnteredAt.UnixNano())
	default: // split_prize: no further ordering, participants stay tied
		return 0
	}
}

// CalculateRankings computes the leaderboard for a set of participants
// (spec §4.6). When finalizing, the caller passes disqualifyMinTrades=true
// so that participants under rules.MinimumTrades are marked disqualified
// and ranked after every qualified participant; live leaderboards pass
// false so everyone is ranked while the contest is still active.
func CalculateRankings(participants []*domain.Participant, rules domain.Rules, disqualifyMinTrades bool) []*Ranking {
	rankings := make([]*Ranking, 0, len(participants))
	for _, p := range participants {
		r := &Ranking{Participant: p, Metric: primaryMetric(p, rules.RankingMethod)}
		if disqualifyMinTrades && p.TotalTrades < rules.MinimumTrades {
			r.Disqualified = true
			r.DisqualificationReason = "did not meet minimum trade count"
		}
		rankings = append(rankings, r)
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		a, b := rankings[i], rankings[j]
		if a.Disqualified != b.Disqualified {
			return !a.Disqualified // qualified participants sort first
		}
		if !closeEnough(a.Metric, b.Metric) {
			return a.Metric > b.Metric
		}
		for _, tb := range []domain.TieBreaker{rules.TieBreaker1, rules.TieBreaker2} {
			if tb == "" {
				continue
			}
			am, bm := tieBreakMetric(a.Participant, tb), tieBreakMetric(b.Participant, tb)
			if !closeEnough(am, bm) {
				return am > bm
			}
		}
		return a.Participant.ID < b.Participant.ID // stable fallback, never "random"
	})

	assignTiesAndRank(rankings, rules)
	return rankings
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= tieEpsilon
}

// assignTiesAndRank walks the already-sorted slice, assigning each
// participant its 1-based rank and marking runs of participants that
// remain tied after the full tie-break cascade (spec §4.6: "remaining ties
// classify those participants as co-ranked with isTied=true and the mutual
// tiedWith set").
func assignTiesAndRank(rankings []*Ranking, rules domain.Rules) {
	for i, r := range rankings {
		r.Rank = i + 1
	}

	i := 0
	for i < len(rankings) {
		j := i + 1
		for j < len(rankings) && rankings[j].Disqualified == rankings[i].Disqualified && fullyTied(rankings[i], rankings[j], rules) {
			j++
		}
		if j-i > 1 {
			ids := make([]int64, 0, j-i)
			for k := i; k < j; k++ {
				ids = append(ids, rankings[k].Participant.ID)
			}
			for k := i; k < j; k++ {
				rankings[k].IsTied = true
				rankings[k].Rank = rankings[i].Rank
				others := make([]int64, 0, len(ids)-1)
				for _, id := range ids {
					if id != rankings[k].Participant.ID {
						others = append(others, id)
					}
				}
				rankings[k].TiedWith = others
			}
		}
		i = j
	}
}

// fullyTied reports whether a and b remain indistinguishable after the
// primary metric and the whole tie-break cascade.
func fullyTied(a, b *Ranking, rules domain.Rules) bool {
	if !closeEnough(a.Metric, b.Metric) {
		return false
	}
	for _, tb := range []domain.TieBreaker{rules.TieBreaker1, rules.TieBreaker2} {
		if tb == "" {
			continue
		}
		if !closeEnough(tieBreakMetric(a.Participant, tb), tieBreakMetric(b.Participant, tb)) {
			return false
		}
	}
	return true
}
