package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"duewatch/internal/types"
)

// SettingsRepository provides access to the singleton notification settings
// document. The document is stored as a single JSONB row; it is created
// lazily with defaults on first read and replaced wholesale on update, which
// matches its admin-controlled lifecycle.
type SettingsRepository struct {
	db DBTX
}

// NewSettingsRepository creates a repository backed by the given database
// connection (pool or transaction).
func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetOrCreate returns the stored settings document, inserting the defaults
// first if none exists yet.
func (r *SettingsRepository) GetOrCreate(ctx context.Context) (types.NotificationSettings, error) {
	settings, err := r.get(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return types.NotificationSettings{}, types.NewAppError(types.ErrCodeInternalDB, "failed to read notification settings", err)
	}

	defaults := types.DefaultNotificationSettings()
	doc, err := json.Marshal(defaults)
	if err != nil {
		return types.NotificationSettings{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal default settings", err)
	}

	// Another instance may create the row concurrently; DO NOTHING keeps the
	// first writer's document and the re-read below returns it.
	_, err = r.db.Exec(ctx,
		`INSERT INTO notification_settings (id, doc, updated_at)
		 VALUES (TRUE, $1, NOW())
		 ON CONFLICT (id) DO NOTHING`,
		doc)
	if err != nil {
		return types.NotificationSettings{}, types.NewAppError(types.ErrCodeInternalDB, "failed to create default notification settings", err)
	}

	settings, err = r.get(ctx)
	if err != nil {
		return types.NotificationSettings{}, types.NewAppError(types.ErrCodeInternalDB, "failed to re-read notification settings", err)
	}
	return settings, nil
}

// Update replaces the settings document.
func (r *SettingsRepository) Update(ctx context.Context, settings types.NotificationSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(settings)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal notification settings", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO notification_settings (id, doc, updated_at)
		 VALUES (TRUE, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		doc, settings.UpdatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update notification settings", err)
	}
	return nil
}

func (r *SettingsRepository) get(ctx context.Context) (types.NotificationSettings, error) {
	var doc []byte
	var updatedAt time.Time

	err := r.db.QueryRow(ctx,
		`SELECT doc, updated_at FROM notification_settings WHERE id = TRUE`).
		Scan(&doc, &updatedAt)
	if err != nil {
		return types.NotificationSettings{}, err
	}

	var settings types.NotificationSettings
	if err := json.Unmarshal(doc, &settings); err != nil {
		return types.NotificationSettings{}, err
	}
	settings.UpdatedAt = updatedAt
	return settings, nil
}
