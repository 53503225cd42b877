package cache

import (
	"testing"
	"time"

	"github.com/shoreagents/lifecycle-engine/internal/testutil"
)

func TestBreakerTripsAtThreshold(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	b := NewBreaker(3, 2*time.Minute)
	b.clock = clock.Now

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if !b.Allow() {
			t.Fatalf("breaker open after %d failures, threshold is 3", i+1)
		}
	}

	b.RecordFailure()
	if b.Allow() {
		t.Error("breaker must be open after reaching the threshold")
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	b := NewBreaker(1, 2*time.Minute)
	b.clock = clock.Now

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("breaker must be open")
	}

	clock.Advance(2 * time.Minute)

	// Exactly one probe passes through until its outcome is recorded.
	if !b.Allow() {
		t.Fatal("probe must be allowed after the cooldown")
	}
	if b.Allow() {
		t.Error("only one probe may pass while the outcome is pending")
	}

	b.RecordSuccess()
	if !b.Allow() {
		t.Error("breaker must close after a successful probe")
	}
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	b := NewBreaker(1, 2*time.Minute)
	b.clock = clock.Now

	b.RecordFailure()
	clock.Advance(2 * time.Minute)
	if !b.Allow() {
		t.Fatal("probe must be allowed")
	}

	b.RecordFailure()
	if b.Allow() {
		t.Error("breaker must stay open after a failed probe")
	}
}

func TestBreakerZeroThresholdNeverTrips(t *testing.T) {
	b := NewBreaker(0, time.Minute)

	for i := 0; i < 100; i++ {
		b.RecordFailure()
	}
	if !b.Allow() {
		t.Error("threshold 0 disables tripping")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	if !b.Allow() {
		t.Error("failures are consecutive; a success must reset the count")
	}
}
