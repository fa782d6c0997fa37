package notifications

import (
	"context"

	"github.com/epic1st/contestcore/internal/domain"
)

// Store persists notification intents the core emits. Actual delivery
// (email, push, webhook...) is an external collaborator (spec §1, §6);
// this package's only job is durable, at-least-once intent persistence
// so that collaborator can poll or be pushed to.
type Store interface {
	Save(ctx context.Context, intent *Intent) error
	MarkAcked(ctx context.Context, intentID int64) error
	ListUnacked(ctx context.Context, limit int) ([]*Intent, error)
}

// Manager is the narrow facade the core's lifecycle/positionengine/
// orderengine packages call into when an operation needs to raise a
// notification intent (margin call warning, position closed, contest
// won/lost, challenge tie). It never sends anything itself.
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Emit records intent for later delivery. The core does not block on, or
// care about, the outcome of actual delivery: see Bus in
// internal/eventbus for the same fire-and-forget posture (spec §9 redesign
// note: event emission happens post-commit).
func (m *Manager) Emit(ctx context.Context, userID string, contestID *int64, eventType domain.EventType, title, body string, payload map[string]any) error {
	return m.store.Save(ctx, &domain.NotificationIntent{
		Type:      eventType,
		UserID:    userID,
		ContestID: contestID,
		Title:     title,
		Body:      body,
		Payload:   payload,
	})
}
