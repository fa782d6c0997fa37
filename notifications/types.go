package notifications

import "github.com/epic1st/contestcore/internal/domain"

// Intent is the notifications package's alias for the domain's
// NotificationIntent, kept local so callers don't need to import
// internal/domain just to reference it.
type Intent = domain.NotificationIntent

// Priority names advisory delivery levels. NotificationIntent has no
// priority field, so the intent store records none, and the core never
// branches on it.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)
