package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/epic1st/contestcore/internal/coreerrors"
	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/ledger"
	"github.com/epic1st/contestcore/internal/store"
)

// closeAllOpenPositions closes every still-open position of a contest at
// the current side-appropriate market quote (spec §4.6 finalizeCompetition
// step 1), using the same transactional close path a user close uses.
func (s *Service) closeAllOpenPositions(ctx context.Context, contestID int64, reason domain.CloseReason) error {
	positions, err := store.ListOpenPositionsByContest(ctx, s.store.Pool(), contestID)
	if err != nil {
		return fmt.Errorf("lifecycle: list open positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	symbols := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		symbols[p.Symbol] = struct{}{}
	}
	symbolList := make([]string, 0, len(symbols))
	for sym := range symbols {
		symbolList = append(symbolList, sym)
	}

	quotes, err := s.oracle.QuoteBatch(ctx, symbolList)
	if err != nil {
		return fmt.Errorf("lifecycle: finalization quote batch: %w", err)
	}

	for _, p := range positions {
		quote, ok := quotes[p.Symbol]
		if !ok {
			return fmt.Errorf("lifecycle: no quote for %s, position %d left open", p.Symbol, p.ID)
		}
		if _, _, err := s.positions.ClosePositionAutomatic(ctx, p.ID, quote, reason); err != nil {
			return fmt.Errorf("lifecycle: close position %d: %w", p.ID, err)
		}
	}
	return nil
}

// payout is one resolved {participant, amount} prize payment.
type payout struct {
	userID string
	amount float64
}

// computePrizeDistribution implements spec §4.6 step 3: each prize slot
// pays the qualified participant holding that rank out of distributable
// (the prize pool after the platform fee is already removed). A slot whose
// rank has no qualified participant contributes its share to the
// unclaimed pool instead of being paid out.
func computePrizeDistribution(rankings []*Ranking, distributable float64, prizeDistribution []domain.PrizeSlot) (payouts []payout, unclaimed float64, err error) {
	byRank := make(map[int]*Ranking, len(rankings))
	for _, r := range rankings {
		if !r.Disqualified {
			byRank[r.Rank] = r
		}
	}

	var totalRounded float64
	for _, slot := range prizeDistribution {
		share := distributable * slot.Percentage / 100
		rounded, rErr := ledger.RoundToCents(share)
		if rErr != nil {
			return nil, 0, rErr
		}
		totalRounded += rounded
		winner, ok := byRank[slot.Rank]
		if !ok {
			unclaimed += rounded
			continue
		}
		payouts = append(payouts, payout{userID: winner.Participant.UserID, amount: rounded})
	}

	// Each slot's share is floored to cents independently, so the slots can
	// sum to a hair under distributable; fold that residue into the
	// unclaimed pool rather than letting it vanish so
	// prizeReceived + platformFeeAmount + unclaimedPlatformCredit == prizePool
	// holds exactly (spec §8 testable property 4).
	residue, rErr := ledger.RoundToCents(distributable - totalRounded)
	if rErr != nil {
		return nil, 0, rErr
	}
	unclaimed += residue

	return payouts, unclaimed, nil
}

// FinalizeCompetition runs spec §4.6's finalizeCompetition: only valid when
// the contest is active and now >= endTime. Closes every open position,
// recomputes rankings with the minimum-trade disqualification filter
// applied, computes and pays the prize distribution, books the platform
// fee and any unclaimed residue, and marks the contest completed.
func (s *Service) FinalizeCompetition(ctx context.Context, contestID int64) error {
	contest, err := store.GetContest(ctx, s.store.Pool(), contestID, false)
	if err != nil {
		return err
	}
	if contest.Status != domain.ContestActive {
		return coreerrors.ErrContestNotActive
	}
	if time.Now().Before(contest.EndTime) {
		return coreerrors.New(coreerrors.KindState, "contest has not reached its end time")
	}

	if err := s.closeAllOpenPositions(ctx, contestID, domain.CloseCompetitionEnd); err != nil {
		return err
	}

	participants, err := store.ListParticipantsByContest(ctx, s.store.Pool(), contestID, nil)
	if err != nil {
		return fmt.Errorf("lifecycle: list participants: %w", err)
	}
	rankings := CalculateRankings(participants, contest.Rules, true)

	platformFeeAmount, err := ledger.RoundToCents(contest.PrizePool * contest.PlatformFeePercentage / 100)
	if err != nil {
		return err
	}
	distributable := contest.PrizePool - platformFeeAmount

	payouts, unclaimed, err := computePrizeDistribution(rankings, distributable, contest.PrizeDistribution)
	if err != nil {
		return err
	}

	allDisqualified := true
	for _, r := range rankings {
		if !r.Disqualified {
			allDisqualified = false
			break
		}
	}
	unclaimedReason := domain.PlatformReasonUnclaimedPool
	if allDisqualified {
		unclaimedReason = domain.PlatformReasonAllDisqualified
	}

	winners := make(map[string]bool, len(payouts))
	err = s.store.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.ledger.RecordPlatformFee(ctx, tx, contestID, platformFeeAmount); err != nil {
			return err
		}
		for i, p := range payouts {
			idempotencyKey := fmt.Sprintf("contest-prize:%d:%s:%d", contestID, p.userID, i)
			if _, err := s.ledger.CreditPrize(ctx, tx, p.userID, contestID, p.amount, idempotencyKey); err != nil {
				return err
			}
			winners[p.userID] = true
		}
		if err := s.ledger.RecordUnclaimedPool(ctx, tx, contestID, unclaimed, unclaimedReason); err != nil {
			return err
		}
		for _, r := range rankings {
			prize := 0.0
			for _, p := range payouts {
				if p.userID == r.Participant.UserID {
					prize += p.amount
				}
			}
			if err := store.SetParticipantPrize(ctx, tx, r.Participant.ID, prize, winners[r.Participant.UserID]); err != nil {
				return err
			}
		}
		return store.UpdateContestFinalization(ctx, tx, contestID, platformFeeAmount, domain.ContestCompleted)
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		for _, r := range rankings {
			eventType := domain.EventContestLost
			if winners[r.Participant.UserID] {
				eventType = domain.EventContestWon
			}
			var prize float64
			for _, p := range payouts {
				if p.userID == r.Participant.UserID {
					prize += p.amount
				}
			}
			s.notifier.Publish(ctx, &domain.PositionEvent{
				Type: eventType, UserID: r.Participant.UserID, ContestID: contestID,
				Payload: map[string]any{"rank": r.Rank},
			})
			body := fmt.Sprintf("%s has ended, you finished rank %d", contest.Name, r.Rank)
			if prize > 0 {
				body = fmt.Sprintf("%s, winning a prize of %s", body, s.fmt.FormatMoney(prize, s.currency))
			}
			s.notifier.Notify(ctx, &domain.NotificationIntent{
				Type: eventType, UserID: r.Participant.UserID, ContestID: &contestID,
				Title: "Contest finished",
				Body:  body,
			})
		}
	}
	return nil
}

// FinalizeChallenge is structurally identical to FinalizeCompetition but
// for exactly two participants, with tie resolution additionally
// consulting contest.Rules.TiePrizeDistribution (spec §4.6).
func (s *Service) FinalizeChallenge(ctx context.Context, contestID int64) error {
	contest, err := store.GetContest(ctx, s.store.Pool(), contestID, false)
	if err != nil {
		return err
	}
	if contest.Status != domain.ContestActive {
		return coreerrors.ErrContestNotActive
	}
	if time.Now().Before(contest.EndTime) {
		return coreerrors.New(coreerrors.KindState, "challenge has not reached its end time")
	}

	if err := s.closeAllOpenPositions(ctx, contestID, domain.CloseChallengeEnd); err != nil {
		return err
	}

	participants, err := store.ListParticipantsByContest(ctx, s.store.Pool(), contestID, nil)
	if err != nil {
		return fmt.Errorf("lifecycle: list participants: %w", err)
	}
	rankings := CalculateRankings(participants, contest.Rules, true)

	winnerUserID, winnerAmount, splitAmount, splitUserID, unclaimed, err := resolveChallengeOutcome(rankings, contest)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if winnerUserID != "" && winnerAmount > 0 {
			if _, err := s.ledger.CreditPrize(ctx, tx, winnerUserID, contestID, winnerAmount, fmt.Sprintf("challenge-prize:%d:%s", contestID, winnerUserID)); err != nil {
				return err
			}
		}
		if splitUserID != "" && splitAmount > 0 {
			if _, err := s.ledger.CreditPrize(ctx, tx, splitUserID, contestID, splitAmount, fmt.Sprintf("challenge-prize:%d:%s", contestID, splitUserID)); err != nil {
				return err
			}
		}
		unclaimedReason := domain.PlatformReasonUnclaimedPool
		if rankings[0].Disqualified && rankings[1].Disqualified {
			unclaimedReason = domain.PlatformReasonAllDisqualified
		}
		if err := s.ledger.RecordUnclaimedPool(ctx, tx, contestID, unclaimed, unclaimedReason); err != nil {
			return err
		}
		for _, r := range rankings {
			prize := 0.0
			isWinner := false
			switch r.Participant.UserID {
			case winnerUserID:
				prize, isWinner = winnerAmount, winnerAmount > 0
			case splitUserID:
				prize, isWinner = splitAmount, splitAmount > 0
			}
			if err := store.SetParticipantPrize(ctx, tx, r.Participant.ID, prize, isWinner); err != nil {
				return err
			}
		}
		return store.UpdateContestFinalization(ctx, tx, contestID, 0, domain.ContestCompleted)
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		for _, r := range rankings {
			eventType := domain.EventContestLost
			switch {
			case r.Participant.UserID == winnerUserID || r.Participant.UserID == splitUserID:
				eventType = domain.EventContestWon
			case len(rankings) == 2 && rankings[0].IsTied:
				eventType = domain.EventChallengeTie
			}
			var prize float64
			switch r.Participant.UserID {
			case winnerUserID:
				prize = winnerAmount
			case splitUserID:
				prize = splitAmount
			}
			s.notifier.Publish(ctx, &domain.PositionEvent{Type: eventType, UserID: r.Participant.UserID, ContestID: contestID})
			body := fmt.Sprintf("%s has ended", contest.Name)
			if prize > 0 {
				body = fmt.Sprintf("%s, you won %s", body, s.fmt.FormatMoney(prize, s.currency))
			}
			s.notifier.Notify(ctx, &domain.NotificationIntent{
				Type: eventType, UserID: r.Participant.UserID, ContestID: &contestID,
				Title: "Challenge finished", Body: body,
			})
		}
	}
	return nil
}

// resolveChallengeOutcome applies spec §4.6's challenge-specific tie
// handling on top of the already-computed rankings:
//   - a clear (non-tied) winner takes the full winnerPrize;
//   - a tie consults tiePrizeDistribution (split_equally, challenger_wins,
//     both_lose);
//   - if both participants are disqualified the platform retains the pool;
//   - if only one is disqualified, the other wins by default.
func resolveChallengeOutcome(rankings []*Ranking, contest *domain.Contest) (winnerUserID string, winnerAmount, splitAmount float64, splitUserID string, unclaimed float64, err error) {
	if len(rankings) != 2 {
		return "", 0, 0, "", 0, coreerrors.New(coreerrors.KindState, "challenge must have exactly two participants")
	}
	a, b := rankings[0], rankings[1]

	if a.Disqualified && b.Disqualified {
		return "", 0, 0, "", contest.WinnerPrize, nil
	}
	if a.Disqualified != b.Disqualified {
		winner := a
		if a.Disqualified {
			winner = b
		}
		return winner.Participant.UserID, contest.WinnerPrize, 0, "", 0, nil
	}
	if !a.IsTied {
		return a.Participant.UserID, contest.WinnerPrize, 0, "", 0, nil
	}

	switch contest.Rules.TiePrizeDistribution {
	case domain.TieChallengerWins:
		// By convention the first-joined participant is the challenger.
		// Fully tied rankings fall back to participant ID order, not join
		// time, so the join times are compared here.
		challenger := a
		if b.Participant.EnteredAt.Before(a.Participant.EnteredAt) {
			challenger = b
		}
		return challenger.Participant.UserID, contest.WinnerPrize, 0, "", 0, nil
	case domain.TieBothLose:
		return "", 0, 0, "", contest.WinnerPrize, nil
	default: // split_equally
		half, herr := ledger.RoundToCents(contest.WinnerPrize / 2)
		if herr != nil {
			return "", 0, 0, "", 0, herr
		}
		residue := contest.WinnerPrize - 2*half
		return a.Participant.UserID, half, half, b.Participant.UserID, residue, nil
	}
}
