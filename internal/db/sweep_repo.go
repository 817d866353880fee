package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"duewatch/internal/types"
)

// SweepRepository provides the scheduler's durable coordination state: the
// lease lock that prevents duplicate sweeps across instances, the persisted
// last-sweep date behind the at-most-once-per-day guard, and the sweep
// history log.
type SweepRepository struct {
	db DBTX
}

// NewSweepRepository creates a repository backed by the given database
// connection (pool or transaction).
func NewSweepRepository(db DBTX) *SweepRepository {
	return &SweepRepository{db: db}
}

// SweepLockID is the single lock row guarding sweep execution. One sweep
// domain, one lock.
const SweepLockID = "billing_sweep"

// AcquireLock attempts to take the sweep lease. Returns true if acquired,
// false if another worker holds an unexpired lease.
//
// The INSERT ... ON CONFLICT DO UPDATE ... WHERE expires_at < now pattern is
// atomic: a live lease blocks the update (zero rows affected), an expired
// lease is reclaimed in the same statement.
func (r *SweepRepository) AcquireLock(ctx context.Context, workerID string, ttl time.Duration) (bool, error) {
	// Compute expires_at in Go rather than with SQL interval arithmetic;
	// Go duration strings are not valid Postgres intervals.
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	tag, err := r.db.Exec(ctx,
		`INSERT INTO sweep_locks (id, worker_id, locked_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		   SET worker_id = EXCLUDED.worker_id,
		       locked_at = EXCLUDED.locked_at,
		       expires_at = EXCLUDED.expires_at
		   WHERE sweep_locks.expires_at < $3`,
		SweepLockID, workerID, now, expiresAt)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to acquire sweep lock", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseLock releases the lease if this worker still holds it. Releasing a
// lease that expired and was reclaimed by another worker is a no-op.
func (r *SweepRepository) ReleaseLock(ctx context.Context, workerID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM sweep_locks WHERE id = $1 AND worker_id = $2`,
		SweepLockID, workerID)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release sweep lock", err)
	}
	return nil
}

// LastSweepDate returns the persisted date of the last completed scheduled
// sweep, or the zero Date if no sweep has run yet.
func (r *SweepRepository) LastSweepDate(ctx context.Context) (types.Date, error) {
	var d types.Date
	err := r.db.QueryRow(ctx,
		`SELECT last_sweep_date FROM sweep_state WHERE id = TRUE`).Scan(&d)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Date{}, nil
		}
		return types.Date{}, types.NewAppError(types.ErrCodeInternalDB, "failed to read last sweep date", err)
	}
	return d, nil
}

// SetLastSweepDate persists the date of the sweep that just ran. The guard
// against double-firing survives process restarts because it lives here
// rather than in a process-global flag.
func (r *SweepRepository) SetLastSweepDate(ctx context.Context, d types.Date) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sweep_state (id, last_sweep_date, updated_at)
		 VALUES (TRUE, $1, NOW())
		 ON CONFLICT (id) DO UPDATE SET last_sweep_date = EXCLUDED.last_sweep_date, updated_at = NOW()`,
		d)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to persist last sweep date", err)
	}
	return nil
}

// StartRun inserts a sweep_history row with status 'running' and returns its
// ID for the later FinishRun call.
func (r *SweepRepository) StartRun(ctx context.Context, sweepDate types.Date, trigger string, dryRun bool) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO sweep_history (sweep_date, trigger_source, dry_run, started_at, status)
		 VALUES ($1, $2, $3, NOW(), 'running')
		 RETURNING id`,
		sweepDate, trigger, dryRun).Scan(&id)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to start sweep history entry", err)
	}
	return id, nil
}

// FinishRun records the outcome of a sweep. The status should be 'success' or
// 'failed'; a non-nil sweepErr message is stored alongside.
func (r *SweepRepository) FinishRun(ctx context.Context, id int64, status string, summary types.SweepSummary, sweepErr error) error {
	var errMsg *string
	if sweepErr != nil {
		s := sweepErr.Error()
		errMsg = &s
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE sweep_history
		 SET finished_at = NOW(), status = $2,
		     checked = $3, notified = $4, failed = $5, skipped = $6, error = $7
		 WHERE id = $1`,
		id, status, summary.Checked, summary.Notified, summary.Failed, summary.Skipped, errMsg)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish sweep history entry", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSweep, "sweep history entry not found", nil)
	}
	return nil
}

// ListRuns returns the most recent sweep executions, newest first.
func (r *SweepRepository) ListRuns(ctx context.Context, limit int) ([]*types.SweepRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, sweep_date, trigger_source, dry_run, started_at, finished_at, status,
		        checked, notified, failed, skipped, error
		 FROM sweep_history
		 ORDER BY started_at DESC
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list sweep history", err)
	}
	defer rows.Close()

	var runs []*types.SweepRun
	for rows.Next() {
		var run types.SweepRun
		var errMsg *string
		err := rows.Scan(
			&run.ID, &run.SweepDate, &run.Trigger, &run.DryRun,
			&run.StartedAt, &run.FinishedAt, &run.Status,
			&run.Summary.Checked, &run.Summary.Notified, &run.Summary.Failed, &run.Summary.Skipped,
			&errMsg,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan sweep history entry", err)
		}
		if errMsg != nil {
			run.Error = *errMsg
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read sweep history", err)
	}
	return runs, nil
}
