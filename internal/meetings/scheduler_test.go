package meetings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/shoreagents/lifecycle-engine/internal/cache"
	"github.com/shoreagents/lifecycle-engine/internal/domain"
	"github.com/shoreagents/lifecycle-engine/internal/testutil"
)

type fakeMeetingStore struct {
	mu            sync.Mutex
	startCount    int
	startErr      error
	reminderCount int
	reminderErr   error
	summary       domain.MeetingNotificationSummary
	owners        []uuid.UUID
	ownersErr     error
}

func (s *fakeMeetingStore) CheckAndStartScheduledMeetings(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startCount, s.startErr
}

func (s *fakeMeetingStore) CheckMeetingReminders(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reminderCount, s.reminderErr
}

func (s *fakeMeetingStore) CheckMeetingNotifications(ctx context.Context) (domain.MeetingNotificationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary, nil
}

func (s *fakeMeetingStore) ListMeetingOwnerIDs(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owners, s.ownersErr
}

type fakeInvalidator struct {
	mu     sync.Mutex
	calls  int
	scopes []cache.Scope
	ret    int
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, scope cache.Scope) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.scopes = append(f.scopes, scope)
	return f.ret
}

func (f *fakeInvalidator) snapshot() (int, []cache.Scope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]cache.Scope(nil), f.scopes...)
}

func TestCheckStartsInvalidatesScopedToOwners(t *testing.T) {
	ctx := testutil.TestContext(t)
	owners := []uuid.UUID{
		testutil.MustParseUUID("11111111-1111-1111-1111-111111111111"),
		testutil.MustParseUUID("22222222-2222-2222-2222-222222222222"),
		testutil.MustParseUUID("33333333-3333-3333-3333-333333333333"),
	}
	store := &fakeMeetingStore{startCount: 3, owners: owners}
	inv := &fakeInvalidator{ret: 12}
	s := New(DefaultConfig(), store, inv)

	if err := s.checkStarts(ctx); err != nil {
		t.Fatalf("checkStarts: %v", err)
	}

	calls, scopes := inv.snapshot()
	if calls != 1 {
		t.Fatalf("invalidation calls = %d, want 1 pass for the whole batch", calls)
	}
	if got := len(scopes[0].UserIDs); got != 3 {
		t.Errorf("scope users = %d, want 3", got)
	}
}

func TestCheckStartsZeroCountSkipsInvalidation(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := &fakeMeetingStore{startCount: 0}
	inv := &fakeInvalidator{}
	s := New(DefaultConfig(), store, inv)

	if err := s.checkStarts(ctx); err != nil {
		t.Fatalf("checkStarts: %v", err)
	}
	if calls, _ := inv.snapshot(); calls != 0 {
		t.Errorf("invalidation calls = %d, want 0 when nothing started", calls)
	}
}

func TestCheckStartsOwnerListFailureFallsBackToGlobal(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := &fakeMeetingStore{startCount: 1, ownersErr: errors.New("db hiccup")}
	inv := &fakeInvalidator{}
	s := New(DefaultConfig(), store, inv)

	// The transition already committed; a failed owner listing narrows the
	// scope to globals instead of failing the poll.
	if err := s.checkStarts(ctx); err != nil {
		t.Fatalf("checkStarts: %v", err)
	}

	calls, scopes := inv.snapshot()
	if calls != 1 {
		t.Fatalf("invalidation calls = %d, want 1", calls)
	}
	if len(scopes[0].UserIDs) != 0 {
		t.Errorf("scope users = %d, want 0 (global fallback)", len(scopes[0].UserIDs))
	}
	if len(scopes[0].GlobalPatterns) == 0 {
		t.Error("global fallback scope must still carry global patterns")
	}
}

func TestCheckStartsStoreErrorPropagates(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := &fakeMeetingStore{startErr: errors.New("procedure failed")}
	inv := &fakeInvalidator{}
	s := New(DefaultConfig(), store, inv)

	if err := s.checkStarts(ctx); err == nil {
		t.Fatal("expected error from failed transition procedure")
	}
	if calls, _ := inv.snapshot(); calls != 0 {
		t.Error("no invalidation when the transition itself failed")
	}
}

func TestCheckRemindersNoSideEffects(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := &fakeMeetingStore{reminderCount: 5}
	inv := &fakeInvalidator{}
	s := New(DefaultConfig(), store, inv)

	if err := s.checkReminders(ctx); err != nil {
		t.Fatalf("checkReminders: %v", err)
	}
	// Reminders change no entity state, so no invalidation follows.
	if calls, _ := inv.snapshot(); calls != 0 {
		t.Errorf("invalidation calls = %d, want 0", calls)
	}
}

func TestCheckNotificationsPropagatesError(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := &fakeMeetingStore{summary: domain.MeetingNotificationSummary{RemindersSent: 2, StartsSent: 1}}
	s := New(DefaultConfig(), store, &fakeInvalidator{})

	if err := s.checkNotifications(ctx); err != nil {
		t.Fatalf("checkNotifications: %v", err)
	}
}
