package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/shoreagents/lifecycle-engine/internal/testutil"
)

func TestResolveExpandsUserAndGlobalPatterns(t *testing.T) {
	users := []uuid.UUID{
		testutil.MustParseUUID("11111111-1111-1111-1111-111111111111"),
		testutil.MustParseUUID("22222222-2222-2222-2222-222222222222"),
	}

	patterns := MeetingScope(users).Resolve()

	// 3 user patterns x 2 users + 3 globals
	if len(patterns) != 9 {
		t.Fatalf("len(patterns) = %d, want 9", len(patterns))
	}

	want := map[string]bool{
		"meetings:11111111-1111-1111-1111-111111111111:*":       true,
		"meeting-status:11111111-1111-1111-1111-111111111111:*": true,
		"meeting-counts:11111111-1111-1111-1111-111111111111:*": true,
		"meetings:22222222-2222-2222-2222-222222222222:*":       true,
		"meeting-status:22222222-2222-2222-2222-222222222222:*": true,
		"meeting-counts:22222222-2222-2222-2222-222222222222:*": true,
		"meetings:*":       true,
		"meeting-status:*": true,
		"meeting-counts:*": true,
	}
	for _, p := range patterns {
		if !want[p] {
			t.Errorf("unexpected pattern %q", p)
		}
		delete(want, p)
	}
	for p := range want {
		t.Errorf("missing pattern %q", p)
	}
}

func TestResolveNoUsers(t *testing.T) {
	patterns := MeetingScope(nil).Resolve()
	if len(patterns) != 3 {
		t.Fatalf("len(patterns) = %d, want 3 globals only", len(patterns))
	}
}

func TestInvalidateWithoutClientIsNoop(t *testing.T) {
	inv := NewInvalidator(nil, 4)
	users := []uuid.UUID{testutil.MustParseUUID("11111111-1111-1111-1111-111111111111")}

	if got := inv.Invalidate(context.Background(), MeetingScope(users)); got != 0 {
		t.Errorf("Invalidate = %d, want 0", got)
	}
	if err := inv.Close(); err != nil {
		t.Errorf("Close on nil client: %v", err)
	}
}
