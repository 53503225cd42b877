// Package events drives the event lifecycle: upcoming -> today -> completed,
// with a synthesized started-notification in between.
//
// Status can reach "today" hours before the literal start time, so the
// started-notification is gated on a separate elapsed-time check against the
// service's canonical timezone, not on the status recompute.
package events

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/shoreagents/lifecycle-engine/internal/domain"
	"github.com/shoreagents/lifecycle-engine/internal/notify"
	"github.com/shoreagents/lifecycle-engine/internal/poller"
)

// SubtypeEventStarted is the dedup subtype for synthesized start notifications.
const SubtypeEventStarted = "event_started"

// Store is the authoritative-store surface the event scheduler needs.
type Store interface {
	SendEventReminders(ctx context.Context) (int, error)
	UpdateAllEventStatuses(ctx context.Context) (domain.EventStatusSummary, error)

	// ListTodayStartedEvents returns events with status "today" whose start
	// time is at or before now. The now value carries the canonical location.
	ListTodayStartedEvents(ctx context.Context, now time.Time) ([]domain.Event, error)
}

// Deduper guarantees at most one started-notification per event per day.
type Deduper interface {
	Ensure(ctx context.Context, key notify.ScopeKey, build func() domain.Notification) (int, error)
}

// MetricsSink records scheduler activity.
type MetricsSink interface {
	poller.MetricsSink
	TransitionsApplied(scheduler string, count int)
}

// Config holds the event scheduler settings.
type Config struct {
	// CheckInterval is the single fast cadence for all three responsibilities.
	CheckInterval time.Duration

	// Location is the canonical timezone used for the "has it actually
	// started" comparison. Configuration, not a hard-coded zone.
	Location *time.Location
}

// DefaultConfig returns the default event scheduler settings with times
// evaluated in UTC.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 5 * time.Second,
		Location:      time.UTC,
	}
}

// Scheduler runs reminder dispatch, the comprehensive status recompute, and
// the started-notification check on one poller.
type Scheduler struct {
	config  Config
	store   Store
	deduper Deduper
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

// New creates an event Scheduler.
func New(config Config, store Store, deduper Deduper) *Scheduler {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Scheduler{
		config:  config,
		store:   store,
		deduper: deduper,
		clock:   time.Now,
	}
}

// WithMetrics attaches a metrics sink to the scheduler and its poller.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// Run starts the poller and blocks until ctx is cancelled and any in-flight
// check has finished.
func (s *Scheduler) Run(ctx context.Context) {
	p := poller.New("events-check", s.config.CheckInterval, s.runOnce)
	if s.metrics != nil {
		p = p.WithMetrics(s.metrics)
	}
	p.Run(ctx)
}

// runOnce performs the three event responsibilities in order. A failure in
// one step is logged and does not block the remaining steps; the first error
// is still reported to the poller for metrics.
func (s *Scheduler) runOnce(ctx context.Context) error {
	var firstErr error

	if count, err := s.store.SendEventReminders(ctx); err != nil {
		log.Printf("events: send reminders: %v", err)
		firstErr = err
	} else if count > 0 {
		log.Printf("events: sent %d reminders", count)
	}

	if summary, err := s.store.UpdateAllEventStatuses(ctx); err != nil {
		log.Printf("events: update statuses: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	} else if summary.UpdatedCount > 0 {
		log.Printf("events: updated %d event statuses (%s)", summary.UpdatedCount, summary.Details)
		if s.metrics != nil {
			s.metrics.TransitionsApplied("events", summary.UpdatedCount)
		}
	}

	if err := s.checkStartedEvents(ctx); err != nil {
		log.Printf("events: started check: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// checkStartedEvents synthesizes an "Event Started" notification once per
// event per day, for events whose status is today AND whose start time has
// actually elapsed in the canonical timezone.
func (s *Scheduler) checkStartedEvents(ctx context.Context) error {
	now := s.clock().In(s.config.Location)

	started, err := s.store.ListTodayStartedEvents(ctx, now)
	if err != nil {
		return fmt.Errorf("list started events: %w", err)
	}

	for _, event := range started {
		if event.Status != domain.StatusToday {
			continue
		}
		if event.StartTime.After(now) {
			continue
		}

		key := notify.NewScopeKey(event.ID, now, SubtypeEventStarted)
		event := event
		inserted, err := s.deduper.Ensure(ctx, key, func() domain.Notification {
			return buildStartedNotification(event, key)
		})
		if err != nil {
			// Per-event failure: log and continue with the rest of the
			// batch; the dedup check bounds duplicate risk on retry.
			log.Printf("events: notify started event=%s: %v", event.ID, err)
			continue
		}
		if inserted > 0 {
			log.Printf("events: event=%s started, notified %d users", event.ID, inserted)
		}
	}
	return nil
}

// buildStartedNotification constructs the fan-out candidate. The event title
// is carried as data in the message and payload; it is never interpolated
// into queries or the dedup key.
func buildStartedNotification(event domain.Event, key notify.ScopeKey) domain.Notification {
	label := "Event"
	if event.Type == domain.EventTypeActivity {
		label = "Activity"
	}

	query := url.Values{}
	query.Set("tab", "today")
	query.Set("event_id", event.ID.String())

	return domain.Notification{
		Category: domain.NotificationCategoryEvent,
		Type:     domain.NotificationTypeInfo,
		Title:    label + " Started",
		Message:  fmt.Sprintf("%s is now in progress: %s", label, event.Title),
		Payload: map[string]string{
			"entity_id":         key.EntityID.String(),
			"entity_date":       key.Date,
			"notification_type": key.Subtype,
			"event_type":        string(event.Type),
			"action_url":        "/status/events?" + query.Encode(),
		},
	}
}
