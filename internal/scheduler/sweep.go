// Package scheduler implements the daily billing reminder sweep and the
// trigger loop that fires it at the configured time of day.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"duewatch/internal/cycle"
	"duewatch/internal/types"
)

// Clock supplies the current time. The sweep captures one instant at start
// and derives everything from it, so a sweep crossing midnight still treats
// every record against the same calendar day.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RecordStore is the billing record access the sweep needs.
type RecordStore interface {
	List(ctx context.Context) ([]*types.BillingRecord, error)
	UpdateAnchor(ctx context.Context, id string, anchor types.Date) error
	CommitNotificationSent(ctx context.Context, id string, notifiedDate, occurrence, nextAnchor types.Date) error
	CommitNotificationFailure(ctx context.Context, id string, dispatchErr string) error
}

// SettingsSource resolves the settings document and effective recipients.
type SettingsSource interface {
	Load(ctx context.Context) (types.NotificationSettings, error)
	Recipients(ctx context.Context, s types.NotificationSettings) ([]string, error)
}

// ReminderDispatcher delivers one rendered reminder to the recipient set.
type ReminderDispatcher interface {
	Dispatch(ctx context.Context, rc types.ReminderContext, recipients []string) error
}

// SweepInput carries the per-invocation options of one sweep.
type SweepInput struct {
	// DryRun evaluates every record but performs no writes and no dispatch.
	DryRun bool
	// Force bypasses the per-record same-day idempotency guard.
	Force bool
	// Trigger names how the sweep started, "scheduled" or "manual".
	Trigger string
	// Today pins the calendar day the sweep judges records against. The
	// driver sets it from the same clock read that decided to fire, so the
	// fired-date marker and the sweep agree even when the sweep starts
	// right at midnight. Zero means read the clock.
	Today types.Date
}

// Sweeper runs one pass over all billing records, aligning stale anchors and
// dispatching due reminders.
type Sweeper struct {
	clock    Clock
	records  RecordStore
	settings SettingsSource
	dispatch ReminderDispatcher
	location *time.Location
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. A nil clock uses the wall clock; a nil
// location defaults to UTC.
func NewSweeper(
	records RecordStore,
	settings SettingsSource,
	dispatch ReminderDispatcher,
	location *time.Location,
	logger *slog.Logger,
	clock Clock,
) *Sweeper {
	if clock == nil {
		clock = realClock{}
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		clock:    clock,
		records:  records,
		settings: settings,
		dispatch: dispatch,
		location: location,
		logger:   logger,
	}
}

// Today returns the current calendar date in the sweep's reference timezone.
func (s *Sweeper) Today() types.Date {
	return types.DateOf(s.clock.Now().In(s.location))
}

// Run executes one sweep. Settings load failure or record listing failure
// aborts the sweep with an error; anything that goes wrong on an individual
// record is contained to that record and reflected in the summary.
func (s *Sweeper) Run(ctx context.Context, input SweepInput) (types.SweepSummary, error) {
	today := input.Today
	if today.IsZero() {
		today = s.Today()
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return types.SweepSummary{}, err
	}
	recipients, err := s.settings.Recipients(ctx, settings)
	if err != nil {
		return types.SweepSummary{}, err
	}

	records, err := s.records.List(ctx)
	if err != nil {
		return types.SweepSummary{}, err
	}

	s.logger.Info("sweep started",
		"today", today.String(),
		"records", len(records),
		"recipients", len(recipients),
		"dry_run", input.DryRun,
		"force", input.Force,
		"trigger", input.Trigger)

	var summary types.SweepSummary
	for _, rec := range records {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Checked++

		out := s.processRecord(ctx, rec, today, settings, recipients, input)
		switch out.kind {
		case outcomeNotified:
			summary.Notified++
		case outcomeFailed:
			summary.Failed++
			s.logger.Error("record sweep failed",
				"record_id", rec.ID, "company", rec.CompanyName, "error", out.err)
		case outcomeSkipped:
			summary.Skipped++
			s.logger.Debug("record skipped",
				"record_id", rec.ID, "reason", out.reason)
		}
	}

	s.logger.Info("sweep finished",
		"today", today.String(),
		"checked", summary.Checked,
		"notified", summary.Notified,
		"failed", summary.Failed,
		"skipped", summary.Skipped)
	return summary, nil
}

type outcomeKind int

const (
	outcomeSkipped outcomeKind = iota
	outcomeNotified
	outcomeFailed
)

type outcome struct {
	kind   outcomeKind
	reason string
	err    error
}

func skipped(reason string) outcome { return outcome{kind: outcomeSkipped, reason: reason} }
func notified() outcome             { return outcome{kind: outcomeNotified} }
func failed(err error) outcome      { return outcome{kind: outcomeFailed, err: err} }

// processRecord runs the full decision chain for one record. A panic in any
// step is converted to a failed outcome so one bad record cannot take down
// the sweep.
func (s *Sweeper) processRecord(
	ctx context.Context,
	rec *types.BillingRecord,
	today types.Date,
	settings types.NotificationSettings,
	recipients []string,
	input SweepInput,
) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(fmt.Errorf("panic processing record %s: %v", rec.ID, r))
		}
	}()

	if rec.AnchorDate.IsZero() {
		return skipped("missing anchor date")
	}
	if rec.IntervalMonths < 0 {
		return skipped("negative interval")
	}

	// Align the anchor to the occurrence on or after today. A corrected
	// anchor is persisted right away so the baseline survives even if the
	// rest of this record's processing fails.
	occurrence := cycle.Align(rec.AnchorDate, rec.IntervalMonths, today)
	if !occurrence.Equal(rec.AnchorDate) && !input.DryRun {
		if err := s.records.UpdateAnchor(ctx, rec.ID, occurrence); err != nil {
			return failed(err)
		}
	}

	daysUntil := cycle.DaysUntil(occurrence, today)
	if daysUntil < 0 {
		// Non-recurring record whose single occurrence already passed.
		return skipped("occurrence in the past")
	}

	// Contract window is judged against today, not the occurrence: a record
	// whose contract ended yesterday gets no reminder even for an occurrence
	// that fell inside the window.
	if !rec.ContractStart.IsZero() && today.Before(rec.ContractStart) {
		return skipped("before contract start")
	}
	if !rec.ContractEnd.IsZero() && today.After(rec.ContractEnd) {
		return skipped("after contract end")
	}

	kind, due := dueKind(settings, daysUntil)
	if !due {
		return skipped("no reminder due")
	}

	// Same-day idempotency: a reminder for this occurrence already went out
	// today. Force bypasses this for operator-driven resends.
	if !input.Force && rec.LastNotifiedDate.Equal(today) && rec.LastNotifiedOccurrence.Equal(occurrence) {
		return skipped("already notified today")
	}

	if input.DryRun {
		return notified()
	}

	rc := types.ReminderContext{
		RecordID:         rec.ID,
		CompanyName:      rec.CompanyName,
		AmountDue:        rec.AmountDue,
		Currency:         rec.Currency,
		OccurrenceDate:   occurrence,
		CycleDescription: cycle.Describe(rec.IntervalMonths),
		DaysUntil:        daysUntil,
		Kind:             kind,
	}

	if err := s.dispatch.Dispatch(ctx, rc, recipients); err != nil {
		if commitErr := s.records.CommitNotificationFailure(ctx, rec.ID, err.Error()); commitErr != nil {
			s.logger.Error("failed to record dispatch failure",
				"record_id", rec.ID, "error", commitErr)
		}
		return failed(err)
	}

	// On-due-date reminders consume the occurrence: the anchor advances to
	// the next cycle so tomorrow's sweep works against the future date.
	// Advance reminders leave the anchor alone.
	var nextAnchor types.Date
	if kind == types.ReminderOnDueDate && rec.Recurring() {
		nextAnchor = cycle.Next(occurrence, rec.IntervalMonths)
	}
	if err := s.records.CommitNotificationSent(ctx, rec.ID, today, occurrence, nextAnchor); err != nil {
		return failed(err)
	}
	return notified()
}

// dueKind decides whether a reminder fires for the given days-until value.
// On-due-date wins when both rules would match (advance_days of zero).
func dueKind(settings types.NotificationSettings, daysUntil int) (types.ReminderKind, bool) {
	if settings.OnDueDateEnabled && daysUntil == 0 {
		return types.ReminderOnDueDate, true
	}
	if settings.AdvanceEnabled && daysUntil == settings.AdvanceDays {
		return types.ReminderAdvance, true
	}
	return "", false
}
