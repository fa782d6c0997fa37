// Package eventbus fans the core's state-change events out to live
// subscribers over Redis Pub/Sub while durably persisting every event and
// notification intent so a crashed subscriber can replay from Postgres
// (spec §6: event emission is fire-and-forget and happens post-commit).
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/epic1st/contestcore/cache"
	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/store"
	"github.com/epic1st/contestcore/notifications"
)

const (
	positionEventsChannel     = "contestcore:events"
	notificationIntentChannel = "contestcore:notifications"
)

// Bus satisfies orderengine.Notifier, positionengine.Notifier, and
// lifecycle.Notifier with a single implementation: every call persists
// first, then publishes best-effort. A Redis outage degrades live delivery
// but never blocks or fails the calling transaction, since Publish/Notify
// are always invoked after the caller's own commit.
type Bus struct {
	store   *store.Store
	redis   *redis.Client
	manager *notifications.Manager
}

// New builds a Bus. notificationStore is usually store.NewNotificationStore
// wrapping the same *store.Store, kept separate so notifications.Manager
// never imports internal/store directly.
func New(s *store.Store, rc *cache.RedisCache, notificationStore notifications.Store) *Bus {
	return &Bus{
		store:   s,
		redis:   rc.Client(),
		manager: notifications.NewManager(notificationStore),
	}
}

// Publish persists event and, best-effort, fans it out to live Redis
// subscribers. Errors from the Redis leg are logged, not returned: a
// missed live push is recoverable via ListPositionEventsByContest, so it
// must never unwind a caller that already committed its own transaction.
func (b *Bus) Publish(ctx context.Context, event *domain.PositionEvent) {
	if event.CorrelationID == "" {
		event.CorrelationID = uuid.New().String()
	}

	id, err := store.InsertPositionEvent(ctx, b.store.Pool(), event)
	if err != nil {
		log.Printf("[EventBus] persist event %s for contest %d failed: %v", event.Type, event.ContestID, err)
		return
	}
	event.ID = id

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[EventBus] marshal event %d failed: %v", id, err)
		return
	}
	if err := b.redis.Publish(ctx, positionEventsChannel, payload).Err(); err != nil {
		log.Printf("[EventBus] publish event %d failed: %v", id, err)
	}
}

// Notify persists a notification intent through notifications.Manager and
// publishes it for any live delivery worker subscribed on
// notificationIntentChannel. Like Publish, failures are logged only: the
// intent remains queryable via notifications.Store.ListUnacked.
func (b *Bus) Notify(ctx context.Context, intent *domain.NotificationIntent) {
	if intent.CorrelationID == "" {
		intent.CorrelationID = uuid.New().String()
	}

	if err := b.manager.Emit(ctx, intent.UserID, intent.ContestID, intent.Type, intent.Title, intent.Body, intent.Payload); err != nil {
		log.Printf("[EventBus] persist notification intent for user %s failed: %v", intent.UserID, err)
		return
	}

	payload, err := json.Marshal(intent)
	if err != nil {
		log.Printf("[EventBus] marshal notification intent failed: %v", err)
		return
	}
	if err := b.redis.Publish(ctx, notificationIntentChannel, payload).Err(); err != nil {
		log.Printf("[EventBus] publish notification intent failed: %v", err)
	}
}

// Subscription wraps a Redis Pub/Sub subscription to one of the bus's
// channels, used by delivery workers and live dashboards that want to
// react to events without polling Postgres.
type Subscription struct {
	pubsub *redis.PubSub
}

// SubscribeEvents opens a live feed of PositionEvent payloads.
func (b *Bus) SubscribeEvents(ctx context.Context) *Subscription {
	return &Subscription{pubsub: b.redis.Subscribe(ctx, positionEventsChannel)}
}

// SubscribeNotifications opens a live feed of NotificationIntent payloads.
func (b *Bus) SubscribeNotifications(ctx context.Context) *Subscription {
	return &Subscription{pubsub: b.redis.Subscribe(ctx, notificationIntentChannel)}
}

// Next blocks for the next message on the subscription and decodes it into
// out, which must be a pointer to domain.PositionEvent or
// domain.NotificationIntent matching how the Subscription was opened.
func (s *Subscription) Next(ctx context.Context, out any) error {
	msg, err := s.pubsub.ReceiveMessage(ctx)
	if err != nil {
		return fmt.Errorf("eventbus: receive message: %w", err)
	}
	if err := json.Unmarshal([]byte(msg.Payload), out); err != nil {
		return fmt.Errorf("eventbus: decode message: %w", err)
	}
	return nil
}

// Close releases the underlying Redis subscription.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
