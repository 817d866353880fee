package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"duewatch/internal/types"
)

// recordColumns is the canonical column list for billing record scans.
const recordColumns = `id, company_name, anchor_date, interval_months,
	contract_start, contract_end, amount_due, currency,
	last_notified_date, last_notified_occurrence, notifications_sent_count,
	last_notification_status, last_notification_error, created_at, updated_at`

// BillingRecordRepository provides data access for the billing_records table.
// The CRM's billing CRUD surface owns the business columns; the scheduler only
// reads them and writes anchor corrections and notification audit state
// through the dedicated update methods below.
type BillingRecordRepository struct {
	db DBTX
}

// NewBillingRecordRepository creates a repository backed by the given database
// connection (pool or transaction).
func NewBillingRecordRepository(db DBTX) *BillingRecordRepository {
	return &BillingRecordRepository{db: db}
}

// List returns all billing records ordered by company name. The sweep
// processes the set fetched at sweep start; records created mid-sweep are
// picked up on the next sweep.
func (r *BillingRecordRepository) List(ctx context.Context) ([]*types.BillingRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+` FROM billing_records ORDER BY company_name, id`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list billing records", err)
	}
	defer rows.Close()

	var records []*types.BillingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan billing record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read billing records", err)
	}
	return records, nil
}

// GetByID returns a single billing record, or a not-found AppError.
func (r *BillingRecordRepository) GetByID(ctx context.Context, id string) (*types.BillingRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM billing_records WHERE id = $1`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRecord, "billing record not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get billing record", err)
	}
	return rec, nil
}

// UpdateAnchor persists a corrected anchor date. This runs independently of
// notification commits so future sweeps start from the corrected baseline
// even if a later dispatch fails.
func (r *BillingRecordRepository) UpdateAnchor(ctx context.Context, id string, anchor types.Date) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE billing_records SET anchor_date = $2, updated_at = NOW() WHERE id = $1`,
		id, anchor)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update anchor date", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRecord, "billing record not found", nil)
	}
	return nil
}

// CommitNotificationSent records a successful dispatch: last notified date and
// occurrence, status, and the send counter. When nextAnchor is non-zero the
// anchor advances to it in the same statement (on-due-date notifications only).
func (r *BillingRecordRepository) CommitNotificationSent(
	ctx context.Context,
	id string,
	notifiedDate types.Date,
	occurrence types.Date,
	nextAnchor types.Date,
) error {
	var tag pgconn.CommandTag
	var err error

	if nextAnchor.IsZero() {
		tag, err = r.db.Exec(ctx,
			`UPDATE billing_records
			 SET last_notified_date = $2,
			     last_notified_occurrence = $3,
			     last_notification_status = 'sent',
			     last_notification_error = NULL,
			     notifications_sent_count = notifications_sent_count + 1,
			     updated_at = NOW()
			 WHERE id = $1`,
			id, notifiedDate, occurrence)
	} else {
		tag, err = r.db.Exec(ctx,
			`UPDATE billing_records
			 SET last_notified_date = $2,
			     last_notified_occurrence = $3,
			     anchor_date = $4,
			     last_notification_status = 'sent',
			     last_notification_error = NULL,
			     notifications_sent_count = notifications_sent_count + 1,
			     updated_at = NOW()
			 WHERE id = $1`,
			id, notifiedDate, occurrence, nextAnchor)
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit notification success", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRecord, "billing record not found", nil)
	}
	return nil
}

// CommitNotificationFailure records a failed dispatch. The last notified
// date/occurrence are deliberately left untouched so the record stays
// eligible for retry on a later sweep.
func (r *BillingRecordRepository) CommitNotificationFailure(ctx context.Context, id string, dispatchErr string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE billing_records
		 SET last_notification_status = 'failed',
		     last_notification_error = $2,
		     notifications_sent_count = notifications_sent_count + 1,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, dispatchErr)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit notification failure", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRecord, "billing record not found", nil)
	}
	return nil
}

// scanRecord scans one billing_records row in recordColumns order.
func scanRecord(row pgx.Row) (*types.BillingRecord, error) {
	var rec types.BillingRecord
	var status, lastErr *string

	err := row.Scan(
		&rec.ID,
		&rec.CompanyName,
		&rec.AnchorDate,
		&rec.IntervalMonths,
		&rec.ContractStart,
		&rec.ContractEnd,
		&rec.AmountDue,
		&rec.Currency,
		&rec.LastNotifiedDate,
		&rec.LastNotifiedOccurrence,
		&rec.NotificationsSentCount,
		&status,
		&lastErr,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if status != nil {
		rec.LastNotificationStatus = types.NotificationStatus(*status)
	}
	if lastErr != nil {
		rec.LastNotificationError = *lastErr
	}
	return &rec, nil
}
