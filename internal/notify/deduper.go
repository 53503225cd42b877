// Package notify guarantees at-most-once derived notifications.
//
// Polling loops re-observe the same transition many times per day; the
// deduper keys each candidate notification on (entity id, calendar day,
// subtype) and only fans out when no matching row exists yet. The key is
// built exclusively from system-generated values - entity ids and dates -
// never from user-controlled text like titles or locations, and the store
// binds every value as a query parameter.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shoreagents/lifecycle-engine/internal/domain"
)

// ScopeKey uniquely identifies "this notification, for this entity, for this
// calendar day".
type ScopeKey struct {
	EntityID uuid.UUID
	Date     string // ISO date, e.g. "2026-09-01"
	Subtype  string // e.g. "event_started"
}

// NewScopeKey builds a key for the given entity and day in the given location.
func NewScopeKey(entityID uuid.UUID, day time.Time, subtype string) ScopeKey {
	return ScopeKey{
		EntityID: entityID,
		Date:     day.Format("2006-01-02"),
		Subtype:  subtype,
	}
}

func (k ScopeKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.EntityID, k.Date, k.Subtype)
}

// Store is the persistence surface the deduper needs.
type Store interface {
	// CountExistingNotifications returns how many notification rows already
	// match the scope key. All three values MUST be bound as parameters.
	CountExistingNotifications(ctx context.Context, key ScopeKey) (int, error)

	// InsertNotificationForAllUsers fans the candidate out to every active
	// user. Implementations log and continue on per-recipient failure; the
	// dedup check bounds duplicate risk on retry, not transactionality.
	InsertNotificationForAllUsers(ctx context.Context, n domain.Notification) ([]domain.NotificationDelivery, error)
}

// MetricsSink records dedup activity.
type MetricsSink interface {
	DedupHit(subtype string)
	NotificationsInserted(category string, count int)
}

// Deduper performs the check-then-fan-out sequence.
type Deduper struct {
	store   Store
	metrics MetricsSink // optional, nil = disabled
}

// NewDeduper creates a Deduper backed by the given store.
func NewDeduper(store Store) *Deduper {
	return &Deduper{store: store}
}

// WithMetrics attaches a metrics sink.
func (d *Deduper) WithMetrics(sink MetricsSink) *Deduper {
	d.metrics = sink
	return d
}

// Ensure inserts the notification produced by build for all eligible users,
// unless an equivalent one already exists for the scope key. Returns the
// number of rows inserted (0 on dedup hit).
//
// build is only invoked when fan-out is actually needed.
func (d *Deduper) Ensure(ctx context.Context, key ScopeKey, build func() domain.Notification) (int, error) {
	existing, err := d.store.CountExistingNotifications(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("count existing notifications for %s: %w", key, err)
	}
	if existing > 0 {
		if d.metrics != nil {
			d.metrics.DedupHit(key.Subtype)
		}
		return 0, nil
	}

	n := build()
	deliveries, err := d.store.InsertNotificationForAllUsers(ctx, n)
	if err != nil {
		return len(deliveries), fmt.Errorf("fan out %s: %w", key, err)
	}

	if d.metrics != nil {
		d.metrics.NotificationsInserted(string(n.Category), len(deliveries))
	}
	return len(deliveries), nil
}
