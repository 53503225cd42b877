package domain

import "testing"

func TestStatusOrderingIsForwardOnly(t *testing.T) {
	forward := []struct {
		from, to Status
	}{
		{StatusScheduled, StatusInProgress},
		{StatusUpcoming, StatusToday},
		{StatusToday, StatusInProgress},
		{StatusInProgress, StatusCompleted},
		{StatusToday, StatusCancelled},
		{StatusScheduled, StatusCancelled},
	}
	for _, tc := range forward {
		if !tc.from.CanAdvanceTo(tc.to) {
			t.Errorf("CanAdvanceTo(%s -> %s) = false, want true", tc.from, tc.to)
		}
	}

	backward := []struct {
		from, to Status
	}{
		{StatusInProgress, StatusScheduled},
		{StatusCompleted, StatusInProgress},
		{StatusCompleted, StatusToday},
		{StatusCancelled, StatusScheduled},
		{StatusToday, StatusUpcoming},
	}
	for _, tc := range backward {
		if tc.from.CanAdvanceTo(tc.to) {
			t.Errorf("CanAdvanceTo(%s -> %s) = true, want false (backward)", tc.from, tc.to)
		}
	}
}

func TestStatusSelfTransitionForbidden(t *testing.T) {
	for _, s := range []Status{StatusScheduled, StatusToday, StatusInProgress, StatusCompleted} {
		if s.CanAdvanceTo(s) {
			t.Errorf("CanAdvanceTo(%s -> %s) = true, want false", s, s)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if !StatusCompleted.IsTerminal() || !StatusCancelled.IsTerminal() {
		t.Error("completed and cancelled are terminal")
	}
	for _, s := range []Status{StatusScheduled, StatusUpcoming, StatusToday, StatusInProgress} {
		if s.IsTerminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestUnknownStatusRanksLowest(t *testing.T) {
	unknown := Status("bogus")
	if unknown.Rank() != -1 {
		t.Errorf("Rank = %d, want -1", unknown.Rank())
	}
	if !unknown.CanAdvanceTo(StatusScheduled) {
		t.Error("any known status outranks an unknown one")
	}
}
