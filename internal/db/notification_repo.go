package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"duewatch/internal/types"
)

// NotificationRepository provides data access for the in-app notifications
// table. One row is created per recipient per dispatch, independent of the
// email delivery result.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a repository backed by the given database
// connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new in-app notification entry. A missing ID is generated
// here so callers can stay ignorant of the ID scheme.
func (r *NotificationRepository) Create(ctx context.Context, n *types.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	var data []byte
	if n.Data != nil {
		var err error
		data, err = json.Marshal(n.Data)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal notification data", err)
		}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO notifications (id, recipient, title, body, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.Recipient, n.Title, n.Body, data, n.CreatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create notification", err)
	}
	return nil
}

// ListByRecipient returns the most recent in-app notifications for one
// recipient, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipient string, limit int) ([]*types.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, recipient, title, body, data, created_at
		 FROM notifications
		 WHERE recipient = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		recipient, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list notifications", err)
	}
	defer rows.Close()

	var out []*types.Notification
	for rows.Next() {
		var n types.Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Title, &n.Body, &data, &n.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to unmarshal notification data", err)
			}
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read notifications", err)
	}
	return out, nil
}

// AdminEmails returns the email addresses of active admin-role accounts.
// Used when the settings document opts into sending reminders to admins in
// addition to the explicit recipient list.
func (r *NotificationRepository) AdminEmails(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT email FROM accounts WHERE role = 'admin' AND active ORDER BY email`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list admin emails", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan admin email", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read admin emails", err)
	}
	return emails, nil
}
