package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"duewatch/internal/settings"
	"duewatch/internal/types"
)

// SweepStore is the durable coordination state the driver needs: the lease
// lock, the persisted last-sweep date, and the run history.
type SweepStore interface {
	AcquireLock(ctx context.Context, workerID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, workerID string) error
	LastSweepDate(ctx context.Context) (types.Date, error)
	SetLastSweepDate(ctx context.Context, d types.Date) error
	StartRun(ctx context.Context, sweepDate types.Date, trigger string, dryRun bool) (int64, error)
	FinishRun(ctx context.Context, id int64, status string, summary types.SweepSummary, sweepErr error) error
}

const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Driver fires the sweep at the configured time of day and exposes the manual
// trigger. One sweep at a time per process; across instances the database
// lease decides who sweeps.
type Driver struct {
	sweeper  *Sweeper
	sweeps   SweepStore
	settings SettingsSource
	clock    Clock
	location *time.Location
	logger   *slog.Logger
	workerID string
	lockTTL  time.Duration

	mu          sync.Mutex
	running     bool
	initialized bool
	firedDate   types.Date
	triggerTime string
}

// NewDriver creates a Driver. The workerID identifies this instance in the
// sweep lease; a nil clock uses the wall clock.
func NewDriver(
	sweeper *Sweeper,
	sweeps SweepStore,
	settingsSource SettingsSource,
	location *time.Location,
	logger *slog.Logger,
	clock Clock,
	workerID string,
	lockTTL time.Duration,
) *Driver {
	if clock == nil {
		clock = realClock{}
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &Driver{
		sweeper:  sweeper,
		sweeps:   sweeps,
		settings: settingsSource,
		clock:    clock,
		location: location,
		logger:   logger,
		workerID: workerID,
		lockTTL:  lockTTL,
	}
}

// Tick evaluates the automatic trigger once. Call it on a short fixed
// interval; it fires the sweep when the configured time of day has been
// reached or passed and no sweep ran yet today. Changing the trigger time in
// settings clears the fired-today marker so a same-day reconfiguration still
// fires at the new time.
func (d *Driver) Tick(ctx context.Context) {
	now := d.clock.Now().In(d.location)
	today := types.DateOf(now)

	cfg, err := d.settings.Load(ctx)
	if err != nil {
		// Without settings there is no trigger time and no recipients;
		// taxonomy says skip the whole tick and try again next interval.
		d.logger.Warn("tick skipped, settings unavailable", "error", err)
		return
	}

	if !d.shouldFire(ctx, cfg.TriggerTime, today, now) {
		return
	}

	summary, err := d.run(ctx, SweepInput{Trigger: TriggerScheduled}, today)
	if err != nil {
		d.logger.Error("scheduled sweep failed", "error", err)
		return
	}
	d.logger.Info("scheduled sweep completed",
		"checked", summary.Checked, "notified", summary.Notified,
		"failed", summary.Failed, "skipped", summary.Skipped)
}

// shouldFire holds the fired-today bookkeeping. It returns true exactly when
// a scheduled sweep is due right now.
func (d *Driver) shouldFire(ctx context.Context, triggerTime string, today types.Date, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return false
	}

	// On the first tick after startup, adopt the persisted last-sweep date
	// so a restart right after the daily sweep does not fire it again.
	if !d.initialized {
		last, err := d.sweeps.LastSweepDate(ctx)
		if err != nil {
			d.logger.Warn("failed to read last sweep date", "error", err)
			return false
		}
		d.firedDate = last
		d.triggerTime = triggerTime
		d.initialized = true
	}

	if triggerTime != d.triggerTime {
		d.logger.Info("trigger time changed",
			"previous", d.triggerTime, "current", triggerTime)
		d.triggerTime = triggerTime
		d.firedDate = types.Date{}
	}

	if d.firedDate.Equal(today) {
		return false
	}

	hour, minute, err := settings.ParseTriggerTime(triggerTime)
	if err != nil {
		d.logger.Warn("invalid trigger time in settings", "trigger_time", triggerTime)
		return false
	}
	fireAt := time.Date(today.Year, today.Month, today.Day, hour, minute, 0, 0, d.location)
	return !now.Before(fireAt)
}

// TriggerManual runs a sweep on demand. A dry run evaluates every record and
// returns the would-be summary without writing or dispatching anything. Force
// bypasses the per-record same-day idempotency skip. A sweep already in
// progress yields a conflict error, never a queued second sweep.
func (d *Driver) TriggerManual(ctx context.Context, dryRun, force bool) (types.SweepSummary, error) {
	today := types.DateOf(d.clock.Now().In(d.location))
	return d.run(ctx, SweepInput{DryRun: dryRun, Force: force, Trigger: TriggerManual}, today)
}

// run is the shared execution path for both triggers: take the in-process
// slot, take the cross-instance lease (skipped for dry runs, which write
// nothing), record history, sweep, release.
func (d *Driver) run(ctx context.Context, input SweepInput, today types.Date) (types.SweepSummary, error) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return types.SweepSummary{}, types.NewAppError(types.ErrCodeConflictSweepRunning, "a sweep is already running", nil)
	}
	d.running = true
	if input.Trigger == TriggerScheduled {
		// Marker set before the sweep starts, so a slow sweep still counts
		// as today's run.
		d.firedDate = today
	}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	if !input.DryRun {
		acquired, err := d.sweeps.AcquireLock(ctx, d.workerID, d.lockTTL)
		if err != nil {
			return types.SweepSummary{}, err
		}
		if !acquired {
			return types.SweepSummary{}, types.NewAppError(types.ErrCodeConflictSweepRunning, "another instance holds the sweep lease", nil)
		}
		defer func() {
			if err := d.sweeps.ReleaseLock(context.WithoutCancel(ctx), d.workerID); err != nil {
				d.logger.Error("failed to release sweep lease", "error", err)
			}
		}()

		if input.Trigger == TriggerScheduled {
			if err := d.sweeps.SetLastSweepDate(ctx, today); err != nil {
				d.logger.Error("failed to persist last sweep date", "error", err)
			}
		}
	}

	runID, err := d.sweeps.StartRun(ctx, today, input.Trigger, input.DryRun)
	if err != nil {
		d.logger.Error("failed to record sweep start", "error", err)
		runID = 0
	}

	// The sweep judges records against the same day the trigger decision and
	// the history entry used, even if the clock crosses midnight in between.
	input.Today = today
	summary, sweepErr := d.sweeper.Run(ctx, input)

	if runID != 0 {
		status := "success"
		if sweepErr != nil {
			status = "failed"
		}
		finishCtx := context.WithoutCancel(ctx)
		if err := d.sweeps.FinishRun(finishCtx, runID, status, summary, sweepErr); err != nil {
			d.logger.Error("failed to record sweep finish", "error", err)
		}
	}

	return summary, sweepErr
}
