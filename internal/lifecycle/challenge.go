package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/store"
)

// ChallengeSettings is the creation-time validation singleton spec.md §6
// names but never assigns an owning component to (DESIGN.md's Open
// Question decision: it belongs here, alongside the rest of the challenge
// lifecycle). MaxPendingPerUser/MaxActivePerUser/CooldownMinutes/
// AcceptDeadlineMinutes come from config.ChallengeConfig; the entry-fee and
// duration bounds are creation-time-only checks with no corresponding env
// var in the teacher's config surface, so they're parameterized directly
// on this struct instead.
type ChallengeSettings struct {
	MinEntryFee           float64
	MaxEntryFee           float64
	MinDurationMinutes    int
	MaxDurationMinutes    int
	MaxPendingPerUser     int
	MaxActivePerUser      int
	CooldownMinutes       int
	AcceptDeadlineMinutes int
}

// ValidateNewChallenge checks a proposed challenge's entry fee, duration,
// and the creator's pending/active challenge counts against the settings
// singleton before a challenge row is inserted.
func (s *Service) ValidateNewChallenge(ctx context.Context, settings ChallengeSettings, creatorUserID string, entryFee float64, duration time.Duration) error {
	if entryFee < settings.MinEntryFee || entryFee > settings.MaxEntryFee {
		return fmt.Errorf("lifecycle: entry fee %.2f outside allowed range [%.2f, %.2f]", entryFee, settings.MinEntryFee, settings.MaxEntryFee)
	}
	minutes := int(duration.Minutes())
	if minutes < settings.MinDurationMinutes || minutes > settings.MaxDurationMinutes {
		return fmt.Errorf("lifecycle: duration %d minutes outside allowed range [%d, %d]", minutes, settings.MinDurationMinutes, settings.MaxDurationMinutes)
	}

	pending, err := store.ListContestsByCreatorAndStatus(ctx, s.store.Pool(), creatorUserID, domain.ContestUpcoming)
	if err != nil {
		return fmt.Errorf("lifecycle: list pending challenges: %w", err)
	}
	if len(pending) >= settings.MaxPendingPerUser {
		return fmt.Errorf("lifecycle: creator already has %d pending challenges", len(pending))
	}

	active, err := store.ListContestsByCreatorAndStatus(ctx, s.store.Pool(), creatorUserID, domain.ContestActive)
	if err != nil {
		return fmt.Errorf("lifecycle: list active challenges: %w", err)
	}
	if len(active) >= settings.MaxActivePerUser {
		return fmt.Errorf("lifecycle: creator already has %d active challenges", len(active))
	}
	return nil
}

// ExpirePendingChallenges is spec §4.6's pending-challenge expiry: a
// challenge still in upcoming (never accepted) whose acceptDeadline has
// passed transitions to expired. No wallet effect — the entry fee is
// deducted at acceptance, not at creation, so an expired challenge never
// touched anyone's balance.
func (s *Service) ExpirePendingChallenges(ctx context.Context) error {
	upcoming, err := store.ListContestsByStatus(ctx, s.store.Pool(), domain.ContestUpcoming)
	if err != nil {
		return fmt.Errorf("lifecycle: list upcoming contests: %w", err)
	}

	now := time.Now()
	for _, c := range upcoming {
		if c.Kind != domain.ContestChallenge || c.AcceptDeadline == nil {
			continue
		}
		if now.Before(*c.AcceptDeadline) {
			continue
		}
		if err := store.UpdateContestStatus(ctx, s.store.Pool(), c.ID, domain.ContestUpcoming, domain.ContestExpired, "accept deadline passed"); err != nil {
			continue
		}
	}
	return nil
}
