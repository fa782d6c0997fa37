package domain

import "time"

// EventType enumerates the Event Bus payload kinds (spec §6).
type EventType string

const (
	EventPositionOpened      EventType = "position_opened"
	EventPositionClosed      EventType = "position_closed"
	EventPositionLiquidated  EventType = "position_liquidated"
	EventOrderFilled         EventType = "order_filled"
	EventTPSLTriggered       EventType = "tpsl_triggered"
	EventContestJoined       EventType = "contest_joined"
	EventContestWon          EventType = "contest_won"
	EventContestLost         EventType = "contest_lost"
	EventContestCancelled    EventType = "contest_cancelled"
	EventChallengeTie        EventType = "challenge_tie"
	EventChallengeDisqualified EventType = "challenge_disqualified"
)

// PositionEvent is an append-only record of a core state change, consumed
// out of band by notification delivery and analytics (spec §3, §6).
// CorrelationID is assigned at publish time, before the durable row's ID
// is known, so a live Redis subscriber can dedupe against a replay from
// ListPositionEventsByContest without waiting on the persistence round
// trip.
type PositionEvent struct {
	ID             int64
	CorrelationID  string
	Type           EventType
	UserID         string
	ContestID      int64
	PositionID     *int64
	Payload        map[string]any
	CreatedAt      time.Time
}

// NotificationIntent is the core's request for an out-of-band notification;
// delivery itself is an external collaborator (spec §1 out of scope).
type NotificationIntent struct {
	ID            int64
	CorrelationID string
	Type          EventType
	UserID        string
	ContestID     *int64
	Title         string
	Body          string
	Payload       map[string]any
	CreatedAt     time.Time
	AckedAt       *time.Time
}
