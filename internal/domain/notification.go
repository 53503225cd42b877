package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationCategory string

const (
	NotificationCategoryMeeting NotificationCategory = "meeting"
	NotificationCategoryEvent   NotificationCategory = "event"
	NotificationCategoryBreak   NotificationCategory = "break"
	NotificationCategoryTicket  NotificationCategory = "ticket"
)

type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeSuccess NotificationType = "success"
)

// Notification is a candidate record fanned out to eligible users.
// Payload carries the identifying fields (entity_id, entity_date,
// notification_type) that the deduper keys on, plus an action_url deep link.
// Payload values are structured data and are always bound as query
// parameters, never interpolated into SQL or message templates.
type Notification struct {
	Category NotificationCategory
	Type     NotificationType
	Title    string
	Message  string
	Payload  map[string]string
}

// NotificationDelivery records one inserted notification row after fan-out.
type NotificationDelivery struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

// BreakSession is the client-observed projection of break state, persisted
// for countdown reconciliation across process reloads. While paused,
// TimeRemainingSeconds is frozen and must not be decremented by any clock.
// EmergencyPauseUsed is monotonic true-only for the life of the session.
type BreakSession struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               uuid.UUID  `json:"user_id"`
	TimeRemainingSeconds int        `json:"time_remaining_seconds"`
	StartTime            *time.Time `json:"start_time,omitempty"`
	IsPaused             bool       `json:"is_paused"`
	LastUpdated          *time.Time `json:"last_updated,omitempty"`
	EmergencyPauseUsed   bool       `json:"emergency_pause_used"`
}
