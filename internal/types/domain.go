package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationStatus records the outcome of the most recent reminder dispatch
// attempt for a billing record.
type NotificationStatus string

const (
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)

// BillingRecord is the billing subject the scheduler sweeps over. The CRM's
// billing CRUD surface owns the business fields (anchor date, interval,
// contract window, amount); the scheduler reads those and writes only the
// anchor correction and the notification audit fields.
type BillingRecord struct {
	ID          string `json:"id" db:"id"`
	CompanyName string `json:"company_name" db:"company_name"`

	// Cycle definition. AnchorDate always names a real occurrence of the
	// cycle; it is rewritten to the aligned occurrence whenever a sweep
	// crosses one, so sweeps only ever compare against "today".
	AnchorDate     Date `json:"anchor_date" db:"anchor_date"`
	IntervalMonths int  `json:"interval_months" db:"interval_months"`

	// Contract validity window. Either side may be absent (open-ended).
	ContractStart Date `json:"contract_start,omitempty" db:"contract_start"`
	ContractEnd   Date `json:"contract_end,omitempty" db:"contract_end"`

	AmountDue decimal.Decimal `json:"amount_due" db:"amount_due"`
	Currency  string          `json:"currency" db:"currency"`

	// Notification audit state, owned by the scheduler.
	LastNotifiedDate       Date               `json:"last_notified_date,omitempty" db:"last_notified_date"`
	LastNotifiedOccurrence Date               `json:"last_notified_occurrence,omitempty" db:"last_notified_occurrence"`
	NotificationsSentCount int                `json:"notifications_sent_count" db:"notifications_sent_count"`
	LastNotificationStatus NotificationStatus `json:"last_notification_status,omitempty" db:"last_notification_status"`
	LastNotificationError  string             `json:"last_notification_error,omitempty" db:"last_notification_error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Recurring reports whether the record has a repeating cycle. A zero or
// negative interval means one-off billing with no recurrence.
func (r *BillingRecord) Recurring() bool {
	return r.IntervalMonths > 0
}

// Recipient is a configured reminder recipient. Inactive recipients stay in
// the settings document but are excluded from dispatch.
type Recipient struct {
	Email  string `json:"email" validate:"required,email"`
	Active bool   `json:"active"`
}

// NotificationSettings is the singleton scheduler configuration. It is created
// lazily with defaults on first read and replaced only through the explicit
// settings update call.
type NotificationSettings struct {
	Recipients       []Recipient `json:"recipients"`
	AdvanceEnabled   bool        `json:"advance_enabled"`
	AdvanceDays      int         `json:"advance_days"`
	OnDueDateEnabled bool        `json:"on_due_date_enabled"`
	TriggerTime      string      `json:"trigger_time"` // "HH:MM" in the reference timezone
	SendToAdmins     bool        `json:"send_to_admins"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultNotificationSettings returns the settings document created on first
// read when none has been stored yet.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		Recipients:       []Recipient{},
		AdvanceEnabled:   true,
		AdvanceDays:      7,
		OnDueDateEnabled: true,
		TriggerTime:      "09:00",
		SendToAdmins:     true,
	}
}

// ActiveRecipientEmails returns the emails of explicitly configured active
// recipients, preserving order.
func (s NotificationSettings) ActiveRecipientEmails() []string {
	var out []string
	for _, r := range s.Recipients {
		if r.Active {
			out = append(out, r.Email)
		}
	}
	return out
}

// ReminderKind distinguishes advance reminders from on-due-date reminders.
// Only on-due-date reminders advance the record's anchor to the next cycle.
type ReminderKind string

const (
	ReminderAdvance   ReminderKind = "advance"
	ReminderOnDueDate ReminderKind = "on_due_date"
)

// ReminderContext is the payload handed to the Reminder Dispatcher. It carries
// everything the rendered reminder needs; the dispatcher never reads the
// record store itself.
type ReminderContext struct {
	RecordID         string          `json:"record_id"`
	CompanyName      string          `json:"company_name"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	Currency         string          `json:"currency"`
	OccurrenceDate   Date            `json:"occurrence_date"`
	CycleDescription string          `json:"cycle_description"` // e.g. "every 3 months"
	DaysUntil        int             `json:"days_until"`
	Kind             ReminderKind    `json:"kind"`
}

// Notification is a durable in-app notification entry, created once per
// recipient per dispatch independently of the email result.
type Notification struct {
	ID        string         `json:"id" db:"id"`
	Recipient string         `json:"recipient" db:"recipient"`
	Title     string         `json:"title" db:"title"`
	Body      string         `json:"body" db:"body"`
	Data      map[string]any `json:"data,omitempty" db:"data"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// SweepSummary is the aggregate result of one scheduler sweep, returned by the
// manual trigger endpoint and recorded in sweep history.
type SweepSummary struct {
	Checked  int `json:"checked"`
	Notified int `json:"notified"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// SweepRun is one recorded sweep execution for operational visibility.
type SweepRun struct {
	ID         int64        `json:"id" db:"id"`
	SweepDate  Date         `json:"sweep_date" db:"sweep_date"`
	Trigger    string       `json:"trigger" db:"trigger"` // "scheduled" or "manual"
	DryRun     bool         `json:"dry_run" db:"dry_run"`
	StartedAt  time.Time    `json:"started_at" db:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty" db:"finished_at"`
	Status     string       `json:"status" db:"status"` // running, success, failed
	Summary    SweepSummary `json:"summary" db:"-"`
	Error      string       `json:"error,omitempty" db:"error"`
}
