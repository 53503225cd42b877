// Package breaktimer reconciles the break countdown with the authoritative
// session snapshot. The countdown is always derived from the snapshot's start
// time or pause remainder plus wall-clock elapsed time - never from a purely
// local decrementing counter - so it survives process reloads and network
// loss without jumping backward or silently resuming from zero.
package breaktimer

import (
	"time"

	"github.com/shoreagents/lifecycle-engine/internal/domain"
)

// Reconciler derives remaining countdown seconds from a BreakSession snapshot.
type Reconciler struct {
	duration time.Duration // full configured break duration
	clock    func() time.Time
}

// NewReconciler creates a Reconciler for breaks of the given duration.
func NewReconciler(duration time.Duration) *Reconciler {
	return &Reconciler{duration: duration, clock: time.Now}
}

// TimeLeft computes the remaining seconds for the session, clamped at zero.
//
// Three-tier fallback:
//  1. Running with a LastUpdated timestamp: stored remainder minus elapsed
//     time since LastUpdated.
//  2. Paused: the stored remainder, frozen. The clock is intentionally
//     stopped while paused; nothing decrements it.
//  3. Only a start time known: full duration minus elapsed time since start.
//
// A session with none of these yields the full duration (not yet started).
func (r *Reconciler) TimeLeft(s domain.BreakSession) int {
	now := r.clock()

	switch {
	case !s.IsPaused && s.LastUpdated != nil:
		elapsed := int(now.Sub(*s.LastUpdated).Seconds())
		return clampSeconds(s.TimeRemainingSeconds - elapsed)

	case s.IsPaused:
		return clampSeconds(s.TimeRemainingSeconds)

	case s.StartTime != nil:
		elapsed := int(now.Sub(*s.StartTime).Seconds())
		return clampSeconds(int(r.duration.Seconds()) - elapsed)

	default:
		return int(r.duration.Seconds())
	}
}

// Duration returns the full configured break duration.
func (r *Reconciler) Duration() time.Duration {
	return r.duration
}

func clampSeconds(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
