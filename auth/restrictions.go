package auth

import "context"

// Action is a capital-affecting action gated by the User Restrictions
// collaborator (spec §6).
type Action string

const (
	ActionTrade           Action = "trade"
	ActionEnterCompetition Action = "enterCompetition"
)

// RestrictionResult is the outcome of a canUserPerformAction check.
type RestrictionResult struct {
	Allowed bool
	Reason  string
}

// Checker models canUserPerformAction(userId, action) -> {allowed, reason?}.
// It is consulted before any capital-affecting action; the real fraud and
// compliance logic behind it is out of scope (spec §1) and lives in an
// external service.
type Checker interface {
	CanUserPerformAction(ctx context.Context, userID string, action Action) (RestrictionResult, error)
}

// AllowAllChecker is the default stand-in used when no restrictions service
// is wired, e.g. in tests.
type AllowAllChecker struct{}

func (AllowAllChecker) CanUserPerformAction(ctx context.Context, userID string, action Action) (RestrictionResult, error) {
	return RestrictionResult{Allowed: true}, nil
}
