package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/epic1st/contestcore/internal/domain"
)

// InsertPositionEvent appends a durable event row, the store-side half of
// internal/eventbus's Bus (spec §3, §6): the bus publishes to Redis
// for live subscribers and persists here so a crashed subscriber can replay.
func InsertPositionEvent(ctx context.Context, q Queryer, e *domain.PositionEvent) (int64, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return 0, fmt.Errorf("marshal position event payload: %w", err)
	}

	var id int64
	err = q.QueryRow(ctx, `
		INSERT INTO position_events (type, user_id, contest_id, position_id, payload, created_at)
		VALUES ($1,$2,$3,$4,$5, now())
		RETURNING id`,
		e.Type, e.UserID, e.ContestID, e.PositionID, payload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert position event: %w", err)
	}
	return id, nil
}

// ListPositionEventsByContest returns a contest's event log, newest first,
// for replay/debugging surfaces.
func ListPositionEventsByContest(ctx context.Context, q Queryer, contestID int64, limit int) ([]*domain.PositionEvent, error) {
	rows, err := q.Query(ctx, `
		SELECT id, type, user_id, contest_id, position_id, payload, created_at
		FROM position_events WHERE contest_id = $1 ORDER BY created_at DESC LIMIT $2`,
		contestID, limit)
	if err != nil {
		return nil, fmt.Errorf("list position events by contest: %w", err)
	}
	defer rows.Close()

	var out []*domain.PositionEvent
	for rows.Next() {
		var e domain.PositionEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.UserID, &e.ContestID, &e.PositionID, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan position event: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal position event payload: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// InsertNotificationIntent persists a notification intent; NotificationStore
// (notifications_adapter.go) calls it to implement notifications.Store.
func InsertNotificationIntent(ctx context.Context, q Queryer, n *domain.NotificationIntent) (int64, error) {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return 0, fmt.Errorf("marshal notification intent payload: %w", err)
	}

	var id int64
	err = q.QueryRow(ctx, `
		INSERT INTO notification_intents (type, user_id, contest_id, title, body, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6, now())
		RETURNING id`,
		n.Type, n.UserID, n.ContestID, n.Title, n.Body, payload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert notification intent: %w", err)
	}
	return id, nil
}

// MarkNotificationIntentAcked marks a queued intent delivered.
func MarkNotificationIntentAcked(ctx context.Context, q Queryer, id int64) error {
	_, err := q.Exec(ctx, `UPDATE notification_intents SET acked_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification intent acked: %w", err)
	}
	return nil
}

// ListUnackedNotificationIntents returns intents not yet delivered, oldest
// first, for the delivery worker to poll.
func ListUnackedNotificationIntents(ctx context.Context, q Queryer, limit int) ([]*domain.NotificationIntent, error) {
	rows, err := q.Query(ctx, `
		SELECT id, type, user_id, contest_id, title, body, payload, created_at, acked_at
		FROM notification_intents WHERE acked_at IS NULL ORDER BY created_at ASC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list unacked notification intents: %w", err)
	}
	defer rows.Close()

	var out []*domain.NotificationIntent
	for rows.Next() {
		var n domain.NotificationIntent
		var payload []byte
		if err := rows.Scan(&n.ID, &n.Type, &n.UserID, &n.ContestID, &n.Title, &n.Body, &payload, &n.CreatedAt, &n.AckedAt); err != nil {
			return nil, fmt.Errorf("scan notification intent: %w", err)
		}
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal notification intent payload: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
