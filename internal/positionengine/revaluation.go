package positionengine

import (
	"context"
	"fmt"

	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/pnlmath"
	"github.com/epic1st/contestcore/internal/store"
)

// UpdateAllPositionsPnL is spec §4.5's revaluation: batch-fetches quotes
// for every symbol the participant currently has open, writes each
// position's mark-to-market fields, then rolls the participant's
// aggregated unrealizedPnl/pnl/pnlPercentage forward.
func (s *Service) UpdateAllPositionsPnL(ctx context.Context, contestID int64, userID string) error {
	participant, err := store.GetParticipantByUser(ctx, s.store.Pool(), contestID, userID, false)
	if err != nil {
		return err
	}

	positions, err := store.ListOpenPositionsByParticipant(ctx, s.store.Pool(), participant.ID)
	if err != nil {
		return err
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
		return fmt.Errorf("positionengine: revaluation quote batch: %w", err)
	}

	var totalUnrealized float64
	for _, p := range positions {
		quote, ok := quotes[p.Symbol]
		if !ok {
			totalUnrealized += p.UnrealizedPnl
			continue
		}
		mark := pnlmath.ExitPrice(p.Side, pnlmath.Quote{Bid: quote.Bid, Ask: quote.Ask})
		unrealized := pnlmath.UnrealizedPnL(p.Side, p.EntryPrice, mark, p.Quantity, p.Symbol)
		unrealizedPct := pnlmath.PnLPercentage(unrealized, p.MarginUsed)

		if err := store.UpdatePositionMark(ctx, s.store.Pool(), p.ID, mark, unrealized, unrealizedPct); err != nil {
			return err
		}
		totalUnrealized += unrealized
	}

	participant.UnrealizedPnl = totalUnrealized
	participant.Pnl = participant.RealizedPnl + participant.UnrealizedPnl
	participant.PnlPercentage = participantPnLPercentage(participant.Pnl, participant.StartingCapital)
	return store.UpdateParticipantCapital(ctx, s.store.Pool(), participant)
}

// UpdateAllPositionsPnLForContest runs the revaluation for every active
// participant of a contest in one pass, the shape the scheduler's
// revaluation scan actually drives (spec §5: one scan per contest, not
// per user).
func (s *Service) UpdateAllPositionsPnLForContest(ctx context.Context, contestID int64) error {
	active := domain.ParticipantActive
	participants, err := store.ListParticipantsByContest(ctx, s.store.Pool(), contestID, &active)
	if err != nil {
		return fmt.Errorf("positionengine: list participants: %w", err)
	}
	for _, p := range participants {
		if err := s.UpdateAllPositionsPnL(ctx, contestID, p.UserID); err != nil {
			return err
		}
	}
	return nil
}
