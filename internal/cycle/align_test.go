package cycle

import (
	"testing"
	"time"

	"duewatch/internal/types"
)

func date(y int, m time.Month, d int) types.Date {
	return types.NewDate(y, m, d)
}

func TestAlign_AnchorIsToday(t *testing.T) {
	today := date(2024, time.January, 15)
	got := Align(today, 1, today)
	if !got.Equal(today) {
		t.Errorf("got %v, want %v", got, today)
	}
}

func TestAlign_NonRecurringReturnsAnchorUnchanged(t *testing.T) {
	anchor := date(2023, time.March, 10)
	today := date(2024, time.January, 15)

	for _, interval := range []int{0, -1} {
		got := Align(anchor, interval, today)
		if !got.Equal(anchor) {
			t.Errorf("interval %d: got %v, want %v", interval, got, anchor)
		}
	}
}

func TestAlign_CatchUpFromPast(t *testing.T) {
	// Quarterly cycle anchored 2023-06-01, checked on 2024-01-10.
	// Steps: 06-01 -> 09-01 -> 12-01 -> 2024-03-01. 12-01 is before today,
	// so the aligned occurrence is the first step at or past today.
	anchor := date(2023, time.June, 1)
	today := date(2024, time.January, 10)

	got := Align(anchor, 3, today)
	want := date(2024, time.March, 1)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestAlign_CatchUpLandsExactlyOnToday(t *testing.T) {
	anchor := date(2023, time.October, 15)
	today := date(2024, time.January, 15)

	got := Align(anchor, 1, today)
	if !got.Equal(today) {
		t.Errorf("got %v, want %v", got, today)
	}
	if DaysUntil(got, today) != 0 {
		t.Errorf("daysUntil = %d, want 0", DaysUntil(got, today))
	}
}

func TestAlign_RollBackFutureAnchor(t *testing.T) {
	// Anchor drifted two cycles into the future; alignment pulls it back to
	// the earliest occurrence that is still >= today.
	anchor := date(2024, time.July, 20)
	today := date(2024, time.March, 1)

	got := Align(anchor, 2, today)
	want := date(2024, time.March, 20)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestAlign_FutureAnchorWithinOneCycleStays(t *testing.T) {
	// Stepping back once would land before today, so the anchor stays.
	anchor := date(2024, time.March, 20)
	today := date(2024, time.March, 1)

	got := Align(anchor, 1, today)
	if !got.Equal(anchor) {
		t.Errorf("got %v, want %v", got, anchor)
	}
}

func TestAlign_Idempotent(t *testing.T) {
	// Re-aligning an already-aligned occurrence with the same today is a
	// fixed point.
	cases := []struct {
		anchor   types.Date
		interval int
		today    types.Date
	}{
		{date(2023, time.June, 1), 3, date(2024, time.January, 10)},
		{date(2022, time.January, 31), 1, date(2024, time.February, 10)},
		{date(2025, time.December, 25), 6, date(2024, time.March, 3)},
		{date(2024, time.March, 3), 1, date(2024, time.March, 3)},
	}

	for _, tc := range cases {
		first := Align(tc.anchor, tc.interval, tc.today)
		second := Align(first, tc.interval, tc.today)
		if !second.Equal(first) {
			t.Errorf("align(%v, %d, %v): first %v, realigned %v",
				tc.anchor, tc.interval, tc.today, first, second)
		}
	}
}

func TestAlign_NoSkippedCycle(t *testing.T) {
	// The aligned occurrence must be reachable from the original anchor by a
	// whole number of interval steps, and stepping back once must land
	// strictly before today (no cycle skipped).
	anchor := date(2020, time.May, 14)
	today := date(2024, time.August, 2)
	interval := 4

	got := Align(anchor, interval, today)

	reachable := false
	for k := 0; k <= 20; k++ {
		if anchor.AddMonths(k * interval).Equal(got) {
			reachable = true
			break
		}
	}
	if !reachable {
		t.Fatalf("occurrence %v not reachable from anchor %v in %d-month steps", got, anchor, interval)
	}

	prev := got.AddMonths(-interval)
	if !prev.Before(today) {
		t.Errorf("previous occurrence %v is not before today %v; a cycle was skipped", prev, today)
	}
}

func TestAlign_EndOfMonthClampDoesNotDrift(t *testing.T) {
	// Day-31 anchor: February clamps to 28, but March must return to 31
	// because multiples are always taken from the original anchor.
	anchor := date(2024, time.January, 31)

	got := Align(anchor, 1, date(2024, time.February, 10))
	want := date(2024, time.February, 29) // 2024 is a leap year
	if !got.Equal(want) {
		t.Errorf("february: got %v, want %v", got, want)
	}

	got = Align(anchor, 1, date(2024, time.March, 5))
	want = date(2024, time.March, 31)
	if !got.Equal(want) {
		t.Errorf("march: got %v, want %v", got, want)
	}
}

func TestNext_AdvancesOneInterval(t *testing.T) {
	occ := date(2024, time.January, 15)
	got := Next(occ, 1)
	want := date(2024, time.February, 15)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if !Next(occ, 0).Equal(occ) {
		t.Errorf("non-recurring Next should return the occurrence unchanged")
	}
}

func TestDescribe(t *testing.T) {
	cases := map[int]string{
		0:  "one-off",
		1:  "monthly",
		3:  "every 3 months",
		12: "yearly",
	}
	for interval, want := range cases {
		if got := Describe(interval); got != want {
			t.Errorf("Describe(%d) = %q, want %q", interval, got, want)
		}
	}
}
