package store

import (
	"context"

	"github.com/epic1st/contestcore/notifications"
)

// NotificationStore adapts *Store to notifications.Store so
// notifications.Manager can persist intents without the notifications
// package needing to know about Postgres.
type NotificationStore struct {
	store *Store
}

func NewNotificationStore(s *Store) *NotificationStore {
	return &NotificationStore{store: s}
}

func (n *NotificationStore) Save(ctx context.Context, intent *notifications.Intent) error {
	id, err := InsertNotificationIntent(ctx, n.store.Pool(), intent)
	if err != nil {
		return err
	}
	intent.ID = id
	return nil
}

func (n *NotificationStore) MarkAcked(ctx context.Context, intentID int64) error {
	return MarkNotificationIntentAcked(ctx, n.store.Pool(), intentID)
}

func (n *NotificationStore) ListUnacked(ctx context.Context, limit int) ([]*notifications.Intent, error) {
	rows, err := ListUnackedNotificationIntents(ctx, n.store.Pool(), limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
