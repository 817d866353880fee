// Package cycle implements the pure calendar arithmetic behind the recurring
// billing scheduler: stepping a billing anchor through its monthly cycle and
// aligning a drifted anchor to the occurrence that is current relative to a
// given day.
//
// Everything in this package is deterministic and side-effect free so the
// alignment rules can be unit-tested in isolation from the sweep machinery.
package cycle

import (
	"fmt"

	"duewatch/internal/types"
)

// Align returns the occurrence of the cycle defined by (anchor, intervalMonths)
// that is current relative to today: the unique date reachable from anchor by a
// whole number of interval steps that is the earliest occurrence >= today.
//
// Behavior:
//   - intervalMonths <= 0: the record is one-off; anchor is returned unchanged.
//   - anchor < today: steps forward until the occurrence reaches or passes
//     today, catching up a drifted anchor without ever landing in the past.
//   - anchor > today: steps backward while the earlier occurrence still
//     reaches or passes today, pulling an anchor set too far in the future
//     back to the current cycle.
//   - anchor == today: returned unchanged.
//
// Every candidate is computed as a multiple of intervalMonths from the
// original anchor, never by chaining month additions on already-clamped
// results, so a day-31 anchor keeps firing on the 31st in months that have
// one (see types.Date.AddMonths for the clamping policy).
func Align(anchor types.Date, intervalMonths int, today types.Date) types.Date {
	if intervalMonths <= 0 {
		return anchor
	}

	switch {
	case anchor.Before(today):
		for k := 1; ; k++ {
			candidate := anchor.AddMonths(k * intervalMonths)
			if !candidate.Before(today) {
				return candidate
			}
		}
	case anchor.After(today):
		aligned := anchor
		for k := 1; ; k++ {
			candidate := anchor.AddMonths(-k * intervalMonths)
			if candidate.Before(today) {
				return aligned
			}
			aligned = candidate
		}
	default:
		return anchor
	}
}

// DaysUntil returns the whole number of days from today to the occurrence.
// After Align it is >= 0; zero means the occurrence is today.
func DaysUntil(occurrence, today types.Date) int {
	return today.DaysUntil(occurrence)
}

// Next returns the occurrence one interval after the given one, stepping from
// the occurrence itself. Used to advance the anchor after an on-due-date
// notification.
func Next(occurrence types.Date, intervalMonths int) types.Date {
	if intervalMonths <= 0 {
		return occurrence
	}
	return occurrence.AddMonths(intervalMonths)
}

// Describe renders a human-readable cycle description for reminder text.
func Describe(intervalMonths int) string {
	switch {
	case intervalMonths <= 0:
		return "one-off"
	case intervalMonths == 1:
		return "monthly"
	case intervalMonths == 12:
		return "yearly"
	default:
		return fmt.Sprintf("every %d months", intervalMonths)
	}
}
