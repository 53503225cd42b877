package breaktimer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shoreagents/lifecycle-engine/internal/domain"
)

var (
	// ErrSessionNotFound is returned when no break session exists for the user.
	ErrSessionNotFound = errors.New("break session not found")

	// ErrEmergencyPauseUsed is returned on a second pause attempt.
	// The one permitted emergency pause is spent; the attempt is surfaced
	// to the user and leaves the remainder untouched.
	ErrEmergencyPauseUsed = errors.New("emergency pause already used for this session")

	// ErrNotPaused is returned when resuming a session that is not paused.
	ErrNotPaused = errors.New("break session is not paused")
)

// SessionStore persists the BreakSession projection.
type SessionStore interface {
	Get(ctx context.Context, userID uuid.UUID) (domain.BreakSession, error)
	Save(ctx context.Context, session domain.BreakSession) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// Controller owns the break session state machine: start, periodic refresh,
// the single emergency pause, resume, and end.
type Controller struct {
	store SessionStore
	rec   *Reconciler
	clock func() time.Time
}

// NewController creates a Controller.
func NewController(store SessionStore, rec *Reconciler) *Controller {
	return &Controller{store: store, rec: rec, clock: time.Now}
}

// Start creates a fresh session with the full duration. Any previous session
// for the user is replaced; starting a new break is the only way to reset
// the emergency pause allowance.
func (c *Controller) Start(ctx context.Context, userID uuid.UUID) (domain.BreakSession, error) {
	now := c.clock().UTC()
	session := domain.BreakSession{
		ID:                   uuid.New(),
		UserID:               userID,
		TimeRemainingSeconds: int(c.rec.Duration().Seconds()),
		StartTime:            &now,
		LastUpdated:          &now,
	}
	if err := c.store.Save(ctx, session); err != nil {
		return domain.BreakSession{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// Current returns the session and its reconciled remaining seconds.
func (c *Controller) Current(ctx context.Context, userID uuid.UUID) (domain.BreakSession, int, error) {
	session, err := c.store.Get(ctx, userID)
	if err != nil {
		return domain.BreakSession{}, 0, err
	}
	return session, c.rec.TimeLeft(session), nil
}

// Pause performs the emergency pause. Allowed exactly once per session: a
// second attempt returns ErrEmergencyPauseUsed without altering the
// remainder. The remainder is snapshotted at pause time and frozen.
func (c *Controller) Pause(ctx context.Context, userID uuid.UUID) (domain.BreakSession, error) {
	session, err := c.store.Get(ctx, userID)
	if err != nil {
		return domain.BreakSession{}, err
	}
	if session.EmergencyPauseUsed {
		return session, ErrEmergencyPauseUsed
	}

	now := c.clock().UTC()
	session.TimeRemainingSeconds = c.rec.TimeLeft(session)
	session.IsPaused = true
	session.EmergencyPauseUsed = true
	session.LastUpdated = &now

	if err := c.store.Save(ctx, session); err != nil {
		return domain.BreakSession{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// Resume unfreezes the countdown. The remainder is exactly what it was at
// pause time; elapsed wall-clock time during the pause is not recomputed.
func (c *Controller) Resume(ctx context.Context, userID uuid.UUID) (domain.BreakSession, error) {
	session, err := c.store.Get(ctx, userID)
	if err != nil {
		return domain.BreakSession{}, err
	}
	if !session.IsPaused {
		return session, ErrNotPaused
	}

	now := c.clock().UTC()
	session.IsPaused = false
	session.LastUpdated = &now

	if err := c.store.Save(ctx, session); err != nil {
		return domain.BreakSession{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// Refresh re-anchors a running session's remainder to the current clock and
// persists it. Paused sessions are left untouched; their clock is frozen.
// Called on a periodic cadence so a client reload never observes a remainder
// anchored to a stale LastUpdated.
func (c *Controller) Refresh(ctx context.Context, userID uuid.UUID) (domain.BreakSession, error) {
	session, err := c.store.Get(ctx, userID)
	if err != nil {
		return domain.BreakSession{}, err
	}
	if session.IsPaused {
		return session, nil
	}

	now := c.clock().UTC()
	session.TimeRemainingSeconds = c.rec.TimeLeft(session)
	session.LastUpdated = &now

	if err := c.store.Save(ctx, session); err != nil {
		return domain.BreakSession{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// End destroys the session. A subsequent Start gets a fresh emergency pause
// allowance.
func (c *Controller) End(ctx context.Context, userID uuid.UUID) error {
	return c.store.Delete(ctx, userID)
}
