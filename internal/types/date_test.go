package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAddMonths_ClampsToEndOfMonth(t *testing.T) {
	cases := []struct {
		start  Date
		months int
		want   Date
	}{
		{NewDate(2024, time.January, 31), 1, NewDate(2024, time.February, 29)},
		{NewDate(2023, time.January, 31), 1, NewDate(2023, time.February, 28)},
		{NewDate(2024, time.January, 31), 2, NewDate(2024, time.March, 31)},
		{NewDate(2024, time.October, 31), 1, NewDate(2024, time.November, 30)},
		{NewDate(2024, time.March, 31), -1, NewDate(2024, time.February, 29)},
		{NewDate(2024, time.June, 15), 7, NewDate(2025, time.January, 15)},
		{NewDate(2024, time.February, 29), 12, NewDate(2025, time.February, 28)},
	}

	for _, tc := range cases {
		got := tc.start.AddMonths(tc.months)
		if !got.Equal(tc.want) {
			t.Errorf("%v.AddMonths(%d) = %v, want %v", tc.start, tc.months, got, tc.want)
		}
	}
}

func TestAddMonths_NegativeAcrossYearBoundary(t *testing.T) {
	got := NewDate(2024, time.February, 10).AddMonths(-3)
	want := NewDate(2023, time.November, 10)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDaysUntil(t *testing.T) {
	a := NewDate(2024, time.January, 15)

	if got := a.DaysUntil(NewDate(2024, time.January, 22)); got != 7 {
		t.Errorf("got %d, want 7", got)
	}
	if got := a.DaysUntil(a); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
	if got := a.DaysUntil(NewDate(2024, time.January, 10)); got != -5 {
		t.Errorf("got %d, want -5", got)
	}
	// Across the leap day.
	if got := NewDate(2024, time.February, 28).DaysUntil(NewDate(2024, time.March, 1)); got != 2 {
		t.Errorf("leap year span: got %d, want 2", got)
	}
}

func TestDateOrdering(t *testing.T) {
	earlier := NewDate(2024, time.January, 15)
	later := NewDate(2024, time.February, 1)

	if !earlier.Before(later) || later.Before(earlier) {
		t.Error("Before comparison wrong")
	}
	if !later.After(earlier) || earlier.After(later) {
		t.Error("After comparison wrong")
	}
	if !earlier.Equal(NewDate(2024, time.January, 15)) {
		t.Error("Equal comparison wrong")
	}
}

func TestParseDate_RoundTrip(t *testing.T) {
	d, err := ParseDate("2024-03-09")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-03-09" {
		t.Errorf("got %q, want %q", d.String(), "2024-03-09")
	}

	if _, err := ParseDate("09/03/2024"); err == nil {
		t.Error("expected error for non-ISO format")
	}
}

func TestDateJSON(t *testing.T) {
	type doc struct {
		Due      Date `json:"due"`
		Optional Date `json:"optional"`
	}

	in := doc{Due: NewDate(2024, time.May, 1)}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"due":"2024-05-01","optional":null}` {
		t.Errorf("unexpected JSON: %s", raw)
	}

	var out doc
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Due.Equal(in.Due) || !out.Optional.IsZero() {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan(time.Date(2024, time.July, 4, 13, 45, 0, 0, time.UTC)); err != nil {
		t.Fatalf("scan time: %v", err)
	}
	if !d.Equal(NewDate(2024, time.July, 4)) {
		t.Errorf("got %v", d)
	}

	if err := d.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if !d.IsZero() {
		t.Errorf("nil should scan to zero date, got %v", d)
	}

	if err := d.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}
