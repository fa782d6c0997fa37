package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/store"
)

// RunAutoStartScan is spec §4.6's auto-start/auto-cancel check, executed by
// a scheduler tick against every upcoming contest whose startTime has
// passed: contests that met their minimum head count activate, the rest
// are cancelled with refunds. CheckContestStart runs the identical
// decision for a single contest and is also the lazy safety-net check a
// read path can invoke near the boundary (spec: "the lazy check is a
// safety net; the authoritative decision is by the scheduler").
func (s *Service) RunAutoStartScan(ctx context.Context) error {
	upcoming, err := store.ListContestsByStatus(ctx, s.store.Pool(), domain.ContestUpcoming)
	if err != nil {
		return fmt.Errorf("lifecycle: list upcoming contests: %w", err)
	}

	now := time.Now()
	for _, c := range upcoming {
		if c.Kind == domain.ContestChallenge {
			continue // challenges start on acceptance, not startTime
		}
		if now.Before(c.StartTime) {
			continue
		}
		if err := s.CheckContestStart(ctx, c.ID); err != nil {
			continue
		}
	}
	return nil
}

// CheckContestStart re-reads a single upcoming contest and applies the
// auto-start/auto-cancel decision if its startTime has passed. It is a
// no-op for a contest that is not upcoming, already started, or not yet at
// its startTime.
func (s *Service) CheckContestStart(ctx context.Context, contestID int64) error {
	contest, err := store.GetContest(ctx, s.store.Pool(), contestID, false)
	if err != nil {
		return err
	}
	if contest.Status != domain.ContestUpcoming || time.Now().Before(contest.StartTime) {
		return nil
	}

	if contest.MeetsMinimum() {
		return store.UpdateContestStatus(ctx, s.store.Pool(), contestID, domain.ContestUpcoming, domain.ContestActive, "")
	}
	return s.CancelCompetitionAndRefund(ctx, contestID, "minimum participants not met")
}
