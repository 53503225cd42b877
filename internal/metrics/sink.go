package metrics

import "time"

// Sink defines the interface for recording engine metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate
// errors. If the metrics backend is unavailable, implementations log warnings
// and continue.
type Sink interface {
	// Poller metrics
	PollStarted(name string)
	PollCompleted(name string, duration time.Duration, err error)
	PollSkipped(name string)

	// Lifecycle metrics
	TransitionsApplied(scheduler string, count int)

	// Notification metrics
	DedupHit(subtype string)
	NotificationsInserted(category string, count int)

	// Cache metrics
	CacheKeysInvalidated(count int)
	CacheInvalidationError()
}

// Scheduler label values for TransitionsApplied.
const (
	SchedulerMeetings = "meetings"
	SchedulerEvents   = "events"
	SchedulerBreaks   = "breaks"
)
