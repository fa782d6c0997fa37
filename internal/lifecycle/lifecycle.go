// Package lifecycle implements spec.md §4.6's contest lifecycle manager:
// join, auto-start/auto-cancel, cancellation with refunds, ranking, and
// finalization. Grounded on the teacher's internal/core/ledger.go
// transactional debit/credit pattern, generalized from an admin ledger to
// the contest wallet ledger via internal/ledger, and on
// risk/liquidation.go's periodic-scan shape for the scheduler-driven
// pieces.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/epic1st/contestcore/auth"
	"github.com/epic1st/contestcore/internal/coreerrors"
	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/i18n"
	"github.com/epic1st/contestcore/internal/ledger"
	"github.com/epic1st/contestcore/internal/oracle"
	"github.com/epic1st/contestcore/internal/positionengine"
	"github.com/epic1st/contestcore/internal/store"
)

// Notifier mirrors orderengine.Notifier/positionengine.Notifier; declared
// separately per package so none of the three need to import each other
// for a two-method interface. internal/eventbus.Bus satisfies all three.
type Notifier interface {
	Publish(ctx context.Context, event *domain.PositionEvent)
	Notify(ctx context.Context, intent *domain.NotificationIntent)
}

// Service is the contest lifecycle manager.
type Service struct {
	store      *store.Store
	ledger     *ledger.Ledger
	positions  *positionengine.Service
	oracle     oracle.Oracle
	restricted auth.Checker
	notifier   Notifier
	currency   string
	fmt        *i18n.Formatter
}

func New(s *store.Store, l *ledger.Ledger, positions *positionengine.Service, o oracle.Oracle, restricted auth.Checker, notifier Notifier, currency, locale string) *Service {
	if restricted == nil {
		restricted = auth.AllowAllChecker{}
	}
	return &Service{
		store:      s,
		ledger:     l,
		positions:  positions,
		oracle:     o,
		restricted: restricted,
		notifier:   notifier,
		currency:   currency,
		fmt:        i18n.NewFormatter(locale),
	}
}

// Join runs spec §4.6's shared join procedure for both enterCompetition and
// acceptChallenge: contest must be upcoming or active and not full, the
// user must not already be enrolled, the restrictions checker must allow
// it, and the wallet must cover the entry fee. Debit, participant row, and
// the contest's currentParticipants/prizePool bump all happen in one
// transaction.
func (s *Service) join(ctx context.Context, contestID int64, userID string, txType domain.WalletTransactionType) (*domain.Participant, *domain.Contest, error) {
	result, err := s.restricted.CanUserPerformAction(ctx, userID, auth.ActionEnterCompetition)
	if err != nil {
		return nil, nil, coreerrors.Wrap(coreerrors.KindUpstream, "restrictions check failed", err)
	}
	if !result.Allowed {
		return nil, nil, coreerrors.Wrap(coreerrors.KindAuthZ, result.Reason, coreerrors.ErrUserRestricted)
	}

	var (
		participant *domain.Participant
		contest     *domain.Contest
	)

	err = s.store.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		c, err := store.GetContest(ctx, tx, contestID, true)
		if err != nil {
			return err
		}
		if c.Status != domain.ContestUpcoming && c.Status != domain.ContestActive {
			return coreerrors.ErrContestNotActive
		}
		if c.IsFull() {
			return coreerrors.ErrContestFull
		}

		if _, err := store.GetParticipantByUser(ctx, tx, contestID, userID, false); err == nil {
			return coreerrors.ErrAlreadyJoined
		} else if coreerrors.KindOf(err) != coreerrors.KindState {
			return err
		}

		idempotencyKey := fmt.Sprintf("contest-entry:%d:%s", contestID, userID)
		if _, err := s.ledger.DebitEntryFee(ctx, tx, userID, contestID, c.EntryFee, txType, idempotencyKey); err != nil {
			return err
		}

		p := &domain.Participant{
			ContestID:        contestID,
			UserID:           userID,
			StartingCapital:  c.StartingCapital,
			CurrentCapital:   c.StartingCapital,
			AvailableCapital: c.StartingCapital,
			Status:           domain.ParticipantActive,
		}
		id, err := store.InsertParticipant(ctx, tx, p)
		if err != nil {
			return err
		}
		p.ID = id

		if err := store.IncrementContestParticipation(ctx, tx, contestID, c.EntryFee); err != nil {
			return err
		}
		c.CurrentParticipants++
		c.PrizePool += c.EntryFee

		participant = p
		contest = c
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if s.notifier != nil {
		s.notifier.Publish(ctx, &domain.PositionEvent{
			Type:      domain.EventContestJoined,
			UserID:    userID,
			ContestID: contestID,
			Payload:   map[string]any{"contestId": contestID},
		})
		s.notifier.Notify(ctx, &domain.NotificationIntent{
			Type:      domain.EventContestJoined,
			UserID:    userID,
			ContestID: &contestID,
			Title:     "Joined contest",
			Body:      fmt.Sprintf("You joined %s for an entry fee of %s", contest.Name, s.fmt.FormatMoney(contest.EntryFee, s.currency)),
		})
	}

	return participant, contest, nil
}

// EnterCompetition enrolls userID in a competition (spec §4.6).
func (s *Service) EnterCompetition(ctx context.Context, contestID int64, userID string) (*domain.Participant, *domain.Contest, error) {
	return s.join(ctx, contestID, userID, domain.TxCompetitionEntry)
}

// AcceptChallenge enrolls the accepting user as the challenge's second
// participant. A challenge's maxParticipants is 2, so once this join
// succeeds the contest is immediately full; since challenges don't wait
// for a separate startTime the way competitions do, acceptance also
// activates the contest in the same call rather than waiting for the next
// auto-start tick (spec §4.6 names no separate "pending" status, so a
// challenge awaiting acceptance sits in `upcoming`, the same state a
// competition sits in before its startTime — see DESIGN.md's Open Question
// decision).
func (s *Service) AcceptChallenge(ctx context.Context, contestID int64, userID string) (*domain.Participant, *domain.Contest, error) {
	participant, contest, err := s.join(ctx, contestID, userID, domain.TxChallengeEntry)
	if err != nil {
		return nil, nil, err
	}
	if contest.Status == domain.ContestUpcoming && contest.IsFull() {
		if err := store.UpdateContestStatus(ctx, s.store.Pool(), contestID, domain.ContestUpcoming, domain.ContestActive, ""); err != nil {
			return participant, contest, err
		}
		contest.Status = domain.ContestActive
	}
	return participant, contest, nil
}

// CancelCompetitionAndRefund runs spec §4.6's cancelCompetitionAndRefund:
// every participant is refunded their entry fee in one transaction per
// participant, the contest transitions to cancelled, and a notification
// intent is emitted per participant. If any refund fails the contest stays
// upcoming and the whole operation is retryable (spec: "all refunds must
// complete or the contest remains upcoming").
func (s *Service) CancelCompetitionAndRefund(ctx context.Context, contestID int64, reason string) error {
	participants, err := store.ListParticipantsByContest(ctx, s.store.Pool(), contestID, nil)
	if err != nil {
		return fmt.Errorf("lifecycle: list participants: %w", err)
	}
	contest, err := store.GetContest(ctx, s.store.Pool(), contestID, false)
	if err != nil {
		return fmt.Errorf("lifecycle: get contest: %w", err)
	}

	for _, p := range participants {
		if p.Status == domain.ParticipantCompleted {
			continue // refunded by an earlier attempt of this cancellation
		}
		err := s.store.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			contest, err := store.GetContest(ctx, tx, contestID, true)
			if err != nil {
				return err
			}
			idempotencyKey := fmt.Sprintf("contest-refund:%d:%s", contestID, p.UserID)
			if _, err := s.ledger.Refund(ctx, tx, p.UserID, contestID, contest.EntryFee, idempotencyKey); err != nil {
				return err
			}
			return store.SetParticipantStatus(ctx, tx, p.ID, domain.ParticipantCompleted, "contest cancelled")
		})
		if err != nil {
			return fmt.Errorf("lifecycle: refund participant %s: %w", p.UserID, err)
		}
	}

	if err := store.UpdateContestStatus(ctx, s.store.Pool(), contestID, domain.ContestUpcoming, domain.ContestCancelled, reason); err != nil {
		return err
	}

	if s.notifier != nil {
		for _, p := range participants {
			s.notifier.Publish(ctx, &domain.PositionEvent{
				Type:      domain.EventContestCancelled,
				UserID:    p.UserID,
				ContestID: contestID,
				Payload:   map[string]any{"reason": reason},
			})
			s.notifier.Notify(ctx, &domain.NotificationIntent{
				Type:      domain.EventContestCancelled,
				UserID:    p.UserID,
				ContestID: &contestID,
				Title:     "Contest cancelled",
				Body:      fmt.Sprintf("Your entry fee of %s has been refunded.", s.fmt.FormatMoney(contest.EntryFee, s.currency)),
			})
		}
	}
	return nil
}
