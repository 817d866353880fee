package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"duewatch/internal/external"
	"duewatch/internal/types"
)

// NotificationStore persists the in-app entry created for each recipient.
type NotificationStore interface {
	Create(ctx context.Context, n *types.Notification) error
}

// Dispatcher sends one reminder to a set of recipients. Email delivery runs
// per recipient under a bounded timeout; the in-app entry is written
// regardless of the email result so the reminder is visible in the CRM even
// when the provider is down.
type Dispatcher struct {
	sender        external.EmailSender
	notifications NotificationStore
	logger        *slog.Logger
	timeout       time.Duration
}

// NewDispatcher creates a Dispatcher. A zero timeout defaults to 30s.
func NewDispatcher(sender external.EmailSender, notifications NotificationStore, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender:        sender,
		notifications: notifications,
		logger:        logger,
		timeout:       timeout,
	}
}

// Dispatch renders the reminder and delivers it to every recipient. Each
// recipient is attempted independently; the returned error joins all
// per-recipient send failures, so a non-nil result means at least one email
// did not go out. Dispatching to zero recipients is an error: a reminder
// that reaches nobody must surface as a failure, not a silent success.
func (d *Dispatcher) Dispatch(ctx context.Context, rc types.ReminderContext, recipients []string) error {
	if len(recipients) == 0 {
		return types.NewAppError(types.ErrCodeInternalSettings, "no active recipients configured", nil)
	}

	subject := RenderSubject(rc)
	body := RenderBody(rc)

	var sendErrs []error
	for _, recipient := range recipients {
		if err := d.sendOne(ctx, recipient, subject, body, rc); err != nil {
			d.logger.Error("reminder email failed",
				"record_id", rc.RecordID,
				"recipient", recipient,
				"error", err)
			sendErrs = append(sendErrs, fmt.Errorf("%s: %w", recipient, err))
		}

		d.recordInApp(ctx, recipient, subject, body, rc)
	}

	return errors.Join(sendErrs...)
}

func (d *Dispatcher) sendOne(ctx context.Context, recipient, subject, body string, rc types.ReminderContext) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	msgID, err := d.sender.Send(sendCtx, external.EmailMessage{
		To:          recipient,
		Subject:     subject,
		Body:        body,
		ReferenceID: rc.RecordID,
	})
	if err != nil {
		return err
	}

	d.logger.Info("reminder email sent",
		"record_id", rc.RecordID,
		"recipient", recipient,
		"kind", string(rc.Kind),
		"message_id", msgID)
	return nil
}

// recordInApp writes the durable in-app entry. Best effort: a storage failure
// here is logged but never fails the dispatch.
func (d *Dispatcher) recordInApp(ctx context.Context, recipient, subject, body string, rc types.ReminderContext) {
	if d.notifications == nil {
		return
	}

	n := &types.Notification{
		Recipient: recipient,
		Title:     subject,
		Body:      body,
		Data: map[string]any{
			"record_id":       rc.RecordID,
			"occurrence_date": rc.OccurrenceDate.String(),
			"kind":            string(rc.Kind),
		},
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		d.logger.Error("failed to record in-app notification",
			"record_id", rc.RecordID,
			"recipient", recipient,
			"error", err)
	}
}
