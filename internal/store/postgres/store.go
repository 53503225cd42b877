// Package postgres adapts the authoritative store to the scheduler
// interfaces. Lifecycle transitions happen inside stored, atomic
// check-and-transition procedures; this package invokes them and scans their
// results, it never mutates entity rows directly.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/shoreagents/lifecycle-engine/internal/breaks"
	"github.com/shoreagents/lifecycle-engine/internal/domain"
	"github.com/shoreagents/lifecycle-engine/internal/events"
	"github.com/shoreagents/lifecycle-engine/internal/meetings"
	"github.com/shoreagents/lifecycle-engine/internal/notify"
)

// Store implements the scheduler and deduper store interfaces using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
	clock     func() time.Time
}

// New creates a PostgreSQL store. Each operation runs under opTimeout.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout, clock: time.Now}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// scanCount runs a query expected to return a single integer.
func (s *Store) scanCount(ctx context.Context, query string, args ...any) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CheckAndStartScheduledMeetings flips all meetings whose start time has
// arrived from scheduled to in-progress. Returns the number started.
func (s *Store) CheckAndStartScheduledMeetings(ctx context.Context) (int, error) {
	return s.scanCount(ctx, queryCheckAndStartScheduledMeetings)
}

// CheckMeetingReminders sends 1-hour-ahead meeting reminders. Returns the
// number sent.
func (s *Store) CheckMeetingReminders(ctx context.Context) (int, error) {
	return s.scanCount(ctx, queryCheckMeetingReminders)
}

// CheckMeetingNotifications runs the combined reminder/start notification
// check and returns its summary.
func (s *Store) CheckMeetingNotifications(ctx context.Context) (domain.MeetingNotificationSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var summary domain.MeetingNotificationSummary
	err := s.db.QueryRowContext(ctx, queryCheckMeetingNotifications).
		Scan(&summary.RemindersSent, &summary.StartsSent)
	if err != nil {
		return domain.MeetingNotificationSummary{}, err
	}
	return summary, nil
}

// CheckBreakReminders runs the break check-and-notify procedure. Returns the
// number of reminders sent.
func (s *Store) CheckBreakReminders(ctx context.Context) (int, error) {
	return s.scanCount(ctx, queryCheckBreakReminders)
}

// SendEventReminders sends lead-time event reminders. Idempotent at the data
// layer; returns the number sent.
func (s *Store) SendEventReminders(ctx context.Context) (int, error) {
	return s.scanCount(ctx, querySendEventReminders)
}

// UpdateAllEventStatuses runs the comprehensive status recompute across all
// events and returns its summary.
func (s *Store) UpdateAllEventStatuses(ctx context.Context) (domain.EventStatusSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var summary domain.EventStatusSummary
	err := s.db.QueryRowContext(ctx, queryUpdateAllEventStatuses).
		Scan(&summary.UpdatedCount, &summary.Details)
	if err != nil {
		return domain.EventStatusSummary{}, err
	}
	return summary, nil
}

// ListTodayStartedEvents returns events with status "today" whose start time
// is at or before now.
func (s *Store) ListTodayStartedEvents(ctx context.Context, now time.Time) ([]domain.Event, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListTodayStartedEvents, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Event
	for rows.Next() {
		var (
			event   domain.Event
			status  string
			endTime sql.NullTime
		)
		err := rows.Scan(
			&event.ID,
			&event.Title,
			&event.Type,
			&status,
			&event.StartTime,
			&endTime,
			&event.Location,
		)
		if err != nil {
			return nil, err
		}
		event.Status = domain.Status(status)
		if endTime.Valid {
			t := endTime.Time
			event.EndTime = &t
		}
		result = append(result, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListMeetingOwnerIDs returns every user with at least one meeting row, for
// scoping cache invalidation.
func (s *Store) ListMeetingOwnerIDs(ctx context.Context) ([]uuid.UUID, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListMeetingOwnerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountExistingNotifications returns how many notification rows already match
// the scope key. All values are bound as parameters; titles and other
// user-controlled text never reach this query.
func (s *Store) CountExistingNotifications(ctx context.Context, key notify.ScopeKey) (int, error) {
	return s.scanCount(ctx, queryCountExistingNotifications,
		key.EntityID.String(), key.Date, key.Subtype)
}

// InsertNotificationForAllUsers fans the candidate out to every active user.
// Per-recipient failures are logged and skipped rather than rolling back the
// batch; the dedup check bounds duplicate risk on retry.
func (s *Store) InsertNotificationForAllUsers(ctx context.Context, n domain.Notification) ([]domain.NotificationDelivery, error) {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	userIDs, err := s.listActiveUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}

	now := s.clock().UTC()
	var deliveries []domain.NotificationDelivery

	for _, userID := range userIDs {
		id := uuid.New()

		insertCtx, cancel := s.withTimeout(ctx)
		_, err := s.db.ExecContext(insertCtx, queryInsertNotification,
			id,
			userID,
			string(n.Category),
			string(n.Type),
			n.Title,
			n.Message,
			payload,
			now,
		)
		cancel()
		if err != nil {
			log.Printf("store: insert notification user=%s: %v", userID, err)
			continue
		}
		deliveries = append(deliveries, domain.NotificationDelivery{ID: id, UserID: userID})
	}

	return deliveries, nil
}

func (s *Store) listActiveUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListActiveUserIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Compile-time interface assertions
var (
	_ meetings.Store = (*Store)(nil)
	_ events.Store   = (*Store)(nil)
	_ breaks.Store   = (*Store)(nil)
	_ notify.Store   = (*Store)(nil)
)
