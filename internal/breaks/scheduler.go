// Package breaks runs the break reminder poll. The stored check-and-notify
// procedure owns all selection and dedup logic; breaks are not globally
// cached, so no invalidation follows.
package breaks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shoreagents/lifecycle-engine/internal/poller"
)

// Store is the authoritative-store surface the break scheduler needs.
type Store interface {
	CheckBreakReminders(ctx context.Context) (int, error)
}

// MetricsSink records scheduler activity.
type MetricsSink interface {
	poller.MetricsSink
	TransitionsApplied(scheduler string, count int)
}

// Config holds the break scheduler settings.
type Config struct {
	CheckInterval time.Duration
}

// DefaultConfig returns the default break reminder cadence.
func DefaultConfig() Config {
	return Config{CheckInterval: 30 * time.Second}
}

// Scheduler delegates entirely to the stored check-and-notify procedure.
type Scheduler struct {
	config  Config
	store   Store
	metrics MetricsSink // optional, nil = disabled
}

// New creates a break Scheduler.
func New(config Config, store Store) *Scheduler {
	return &Scheduler{config: config, store: store}
}

// WithMetrics attaches a metrics sink to the scheduler and its poller.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// Run starts the poller and blocks until ctx is cancelled and any in-flight
// check has finished.
func (s *Scheduler) Run(ctx context.Context) {
	p := poller.New("breaks-reminder", s.config.CheckInterval, s.checkReminders)
	if s.metrics != nil {
		p = p.WithMetrics(s.metrics)
	}
	p.Run(ctx)
}

func (s *Scheduler) checkReminders(ctx context.Context) error {
	count, err := s.store.CheckBreakReminders(ctx)
	if err != nil {
		return fmt.Errorf("check break reminders: %w", err)
	}
	if count > 0 {
		log.Printf("breaks: sent %d reminders", count)
		if s.metrics != nil {
			s.metrics.TransitionsApplied("breaks", count)
		}
	}
	return nil
}
