package domain

import (
	"time"

	"github.com/google/uuid"
)

type MeetingType string

const (
	MeetingTypeVideo    MeetingType = "video"
	MeetingTypePhone    MeetingType = "phone"
	MeetingTypeInPerson MeetingType = "in-person"
)

type EventType string

const (
	EventTypeEvent    EventType = "event"
	EventTypeActivity EventType = "activity"
)

// Event is the projection of an event row the engine reads when deciding
// whether a started-notification is due. All fields except Status are owned
// by the CRUD layer; the engine never writes them.
type Event struct {
	ID        uuid.UUID
	Title     string
	Type      EventType
	Status    Status
	StartTime time.Time
	EndTime   *time.Time
	Location  string
}

// MeetingNotificationSummary is returned by the combined meeting
// notification check. Logged for observability; no further side effects.
type MeetingNotificationSummary struct {
	RemindersSent int
	StartsSent    int
}

// EventStatusSummary is returned by the comprehensive event status recompute.
type EventStatusSummary struct {
	UpdatedCount int
	Details      string
}
