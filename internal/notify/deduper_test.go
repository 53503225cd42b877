package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shoreagents/lifecycle-engine/internal/domain"
	"github.com/shoreagents/lifecycle-engine/internal/testutil"
)

// fakeStore records fan-outs in memory, keyed the same way the real store
// keys its dedup query.
type fakeStore struct {
	mu        sync.Mutex
	inserted  map[string]int
	users     int
	countErr  error
	insertErr error
}

func newFakeStore(users int) *fakeStore {
	return &fakeStore{inserted: make(map[string]int), users: users}
}

func (s *fakeStore) CountExistingNotifications(ctx context.Context, key ScopeKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.inserted[key.String()], nil
}

func (s *fakeStore) InsertNotificationForAllUsers(ctx context.Context, n domain.Notification) ([]domain.NotificationDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}

	key := ScopeKey{
		EntityID: testutil.MustParseUUID(n.Payload["entity_id"]),
		Date:     n.Payload["entity_date"],
		Subtype:  n.Payload["notification_type"],
	}
	deliveries := make([]domain.NotificationDelivery, s.users)
	for i := range deliveries {
		deliveries[i] = domain.NotificationDelivery{ID: uuid.New(), UserID: uuid.New()}
	}
	s.inserted[key.String()] += len(deliveries)
	return deliveries, nil
}

type dedupSinkRecorder struct {
	mu       sync.Mutex
	hits     int
	inserted int
}

func (r *dedupSinkRecorder) DedupHit(subtype string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits++
}

func (r *dedupSinkRecorder) NotificationsInserted(category string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted += count
}

func testNotification(key ScopeKey) domain.Notification {
	return domain.Notification{
		Category: domain.NotificationCategoryEvent,
		Type:     domain.NotificationTypeInfo,
		Title:    "Event Started",
		Message:  "Event is now in progress: Town Hall",
		Payload: map[string]string{
			"entity_id":         key.EntityID.String(),
			"entity_date":       key.Date,
			"notification_type": key.Subtype,
		},
	}
}

func TestEnsureFansOutOnce(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := newFakeStore(3)
	sink := &dedupSinkRecorder{}
	d := NewDeduper(store).WithMetrics(sink)

	entityID := testutil.MustParseUUID("22222222-2222-2222-2222-222222222222")
	day := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	key := NewScopeKey(entityID, day, "event_started")

	inserted, err := d.Ensure(ctx, key, func() domain.Notification { return testNotification(key) })
	if err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if inserted != 3 {
		t.Errorf("first Ensure inserted = %d, want 3", inserted)
	}

	// Re-observing the same transition inserts nothing.
	inserted, err = d.Ensure(ctx, key, func() domain.Notification { return testNotification(key) })
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if inserted != 0 {
		t.Errorf("second Ensure inserted = %d, want 0", inserted)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.hits != 1 {
		t.Errorf("dedup hits = %d, want 1", sink.hits)
	}
	if sink.inserted != 3 {
		t.Errorf("inserted metric = %d, want 3", sink.inserted)
	}
}

func TestEnsureDistinctKeysAreIndependent(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := newFakeStore(2)
	d := NewDeduper(store)

	entityID := testutil.MustParseUUID("22222222-2222-2222-2222-222222222222")
	today := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	tomorrow := today.Add(24 * time.Hour)

	keyToday := NewScopeKey(entityID, today, "event_started")
	keyTomorrow := NewScopeKey(entityID, tomorrow, "event_started")

	if _, err := d.Ensure(ctx, keyToday, func() domain.Notification { return testNotification(keyToday) }); err != nil {
		t.Fatalf("Ensure today: %v", err)
	}

	// Same entity and subtype on a new calendar day is a fresh scope.
	inserted, err := d.Ensure(ctx, keyTomorrow, func() domain.Notification { return testNotification(keyTomorrow) })
	if err != nil {
		t.Fatalf("Ensure tomorrow: %v", err)
	}
	if inserted != 2 {
		t.Errorf("Ensure tomorrow inserted = %d, want 2", inserted)
	}
}

func TestEnsureCountErrorSkipsBuild(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := newFakeStore(2)
	store.countErr = errors.New("db down")
	d := NewDeduper(store)

	entityID := testutil.MustParseUUID("22222222-2222-2222-2222-222222222222")
	key := NewScopeKey(entityID, time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC), "event_started")

	built := false
	_, err := d.Ensure(ctx, key, func() domain.Notification {
		built = true
		return testNotification(key)
	})
	if err == nil {
		t.Fatal("expected error when dedup check fails")
	}
	if built {
		t.Error("build must not be invoked when the dedup check fails")
	}
}

func TestScopeKeyFormat(t *testing.T) {
	entityID := testutil.MustParseUUID("22222222-2222-2222-2222-222222222222")
	day := time.Date(2026, 9, 1, 23, 59, 0, 0, time.UTC)

	key := NewScopeKey(entityID, day, "event_started")
	if key.Date != "2026-09-01" {
		t.Errorf("Date = %q, want 2026-09-01", key.Date)
	}
	want := "22222222-2222-2222-2222-222222222222|2026-09-01|event_started"
	if key.String() != want {
		t.Errorf("String() = %q, want %q", key.String(), want)
	}
}
