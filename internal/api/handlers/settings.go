package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"duewatch/internal/core"
	"duewatch/internal/types"
)

// SettingsService loads and replaces the notification settings document.
// Satisfied by the settings Provider, which validates on save.
type SettingsService interface {
	Load(ctx context.Context) (types.NotificationSettings, error)
	Save(ctx context.Context, s types.NotificationSettings) error
}

// SettingsHandler exposes the notification settings document.
type SettingsHandler struct {
	settings SettingsService
	logger   *slog.Logger
}

func NewSettingsHandler(settings SettingsService, logger *slog.Logger) *SettingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsHandler{settings: settings, logger: logger}
}

// RegisterRoutes mounts the settings endpoints on the given router.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings/notifications", h.HandleGet)
	r.Put("/settings/notifications", h.HandleUpdate)
}

// UpdateSettingsRequest is the body of PUT /v1/settings/notifications. The
// document is replaced wholesale, so every field is required in the payload.
type UpdateSettingsRequest struct {
	Recipients       []types.Recipient `json:"recipients"`
	AdvanceEnabled   bool              `json:"advance_enabled"`
	AdvanceDays      int               `json:"advance_days"`
	OnDueDateEnabled bool              `json:"on_due_date_enabled"`
	TriggerTime      string            `json:"trigger_time"`
	SendToAdmins     bool              `json:"send_to_admins"`
}

// HandleGet returns the current settings document, creating defaults on first
// read.
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Load(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, s)
}

// HandleUpdate replaces the settings document. Validation happens in the
// settings layer; an invalid trigger time or recipient email rejects the
// whole update.
func (h *SettingsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	doc := types.NotificationSettings{
		Recipients:       req.Recipients,
		AdvanceEnabled:   req.AdvanceEnabled,
		AdvanceDays:      req.AdvanceDays,
		OnDueDateEnabled: req.OnDueDateEnabled,
		TriggerTime:      req.TriggerTime,
		SendToAdmins:     req.SendToAdmins,
		UpdatedAt:        time.Now().UTC(),
	}
	if doc.Recipients == nil {
		doc.Recipients = []types.Recipient{}
	}

	if err := h.settings.Save(r.Context(), doc); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.Info("notification settings updated",
		"recipients", len(doc.Recipients),
		"trigger_time", doc.TriggerTime)
	core.JSON(w, r, http.StatusOK, doc)
}
