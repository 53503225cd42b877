// Package meetings drives the meeting lifecycle: scheduled -> in-progress ->
// completed. Three independent pollers cover starts, reminders, and the
// combined notification check. They interleave arbitrarily; the underlying
// check-and-transition procedures select disjoint row sets, so no cross-poll
// locking is needed.
package meetings

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shoreagents/lifecycle-engine/internal/cache"
	"github.com/shoreagents/lifecycle-engine/internal/domain"
	"github.com/shoreagents/lifecycle-engine/internal/poller"
)

// Store is the authoritative-store surface the meeting scheduler needs.
// Each check method invokes one atomic check-and-transition procedure and
// returns how many rows changed; the procedures themselves own the SQL.
type Store interface {
	CheckAndStartScheduledMeetings(ctx context.Context) (int, error)
	CheckMeetingReminders(ctx context.Context) (int, error)
	CheckMeetingNotifications(ctx context.Context) (domain.MeetingNotificationSummary, error)
	ListMeetingOwnerIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Invalidator clears stale cache keys after a state-changing transition.
// Invalidation is best-effort; implementations swallow cache errors.
type Invalidator interface {
	Invalidate(ctx context.Context, scope cache.Scope) int
}

// MetricsSink records scheduler activity.
type MetricsSink interface {
	poller.MetricsSink
	TransitionsApplied(scheduler string, count int)
}

// Config holds the three poll cadences.
type Config struct {
	// StartInterval is the fast cadence for starting due meetings.
	StartInterval time.Duration

	// ReminderInterval is the slow cadence for 1-hour-ahead reminders.
	ReminderInterval time.Duration

	// NotificationInterval is the medium cadence for the combined
	// notification summary check.
	NotificationInterval time.Duration
}

// DefaultConfig returns the default meeting scheduler cadences.
func DefaultConfig() Config {
	return Config{
		StartInterval:        500 * time.Millisecond,
		ReminderInterval:     time.Minute,
		NotificationInterval: 2 * time.Second,
	}
}

// Scheduler composes the three meeting pollers.
type Scheduler struct {
	config      Config
	store       Store
	invalidator Invalidator
	metrics     MetricsSink // optional, nil = disabled
}

// New creates a meeting Scheduler.
func New(config Config, store Store, invalidator Invalidator) *Scheduler {
	return &Scheduler{
		config:      config,
		store:       store,
		invalidator: invalidator,
	}
}

// WithMetrics attaches a metrics sink to the scheduler and its pollers.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// Run starts the three pollers and blocks until ctx is cancelled and every
// in-flight poll has finished.
func (s *Scheduler) Run(ctx context.Context) {
	pollers := []*poller.Poller{
		s.newPoller("meetings-start", s.config.StartInterval, s.checkStarts),
		s.newPoller("meetings-reminder", s.config.ReminderInterval, s.checkReminders),
		s.newPoller("meetings-notification", s.config.NotificationInterval, s.checkNotifications),
	}

	var wg sync.WaitGroup
	for _, p := range pollers {
		wg.Add(1)
		go func(p *poller.Poller) {
			defer wg.Done()
			p.Run(ctx)
		}(p)
	}
	wg.Wait()
}

func (s *Scheduler) newPoller(name string, interval time.Duration, work poller.Work) *poller.Poller {
	p := poller.New(name, interval, work)
	if s.metrics != nil {
		p = p.WithMetrics(s.metrics)
	}
	return p
}

// checkStarts flips all meetings whose start time has arrived to in-progress
// and, when anything changed, runs one cache-invalidation pass scoped to
// every user owning a meeting row. Cache failure never fails the transition.
func (s *Scheduler) checkStarts(ctx context.Context) error {
	count, err := s.store.CheckAndStartScheduledMeetings(ctx)
	if err != nil {
		return fmt.Errorf("check and start meetings: %w", err)
	}
	if count == 0 {
		return nil
	}

	log.Printf("meetings: started %d meetings", count)
	if s.metrics != nil {
		s.metrics.TransitionsApplied("meetings", count)
	}

	scope := cache.MeetingScope(nil)
	owners, err := s.store.ListMeetingOwnerIDs(ctx)
	if err != nil {
		// Fall back to the global patterns only; better a broad stale
		// window than none at all.
		log.Printf("meetings: list owners for invalidation: %v", err)
	} else {
		scope = cache.MeetingScope(owners)
	}

	cleared := s.invalidator.Invalidate(ctx, scope)
	log.Printf("meetings: invalidated %d cache keys for %d users", cleared, len(scope.UserIDs))
	return nil
}

// checkReminders sends 1-hour-ahead reminders. Reminders do not change
// entity state, so no cache invalidation follows.
func (s *Scheduler) checkReminders(ctx context.Context) error {
	count, err := s.store.CheckMeetingReminders(ctx)
	if err != nil {
		return fmt.Errorf("check meeting reminders: %w", err)
	}
	if count > 0 {
		log.Printf("meetings: sent %d reminders", count)
	}
	return nil
}

// checkNotifications runs the combined notification check. The summary is
// logged for observability only; the procedure owns all side effects.
func (s *Scheduler) checkNotifications(ctx context.Context) error {
	summary, err := s.store.CheckMeetingNotifications(ctx)
	if err != nil {
		return fmt.Errorf("check meeting notifications: %w", err)
	}
	if summary.RemindersSent > 0 || summary.StartsSent > 0 {
		log.Printf("meetings: notification check reminders=%d starts=%d",
			summary.RemindersSent, summary.StartsSent)
	}
	return nil
}
