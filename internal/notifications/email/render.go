// Package email renders and dispatches billing reminder emails, recording a
// durable in-app notification per recipient alongside each send.
package email

import (
	"fmt"
	"strings"

	"duewatch/internal/types"
)

// RenderSubject produces the email subject line for a reminder.
func RenderSubject(rc types.ReminderContext) string {
	switch rc.Kind {
	case types.ReminderOnDueDate:
		return fmt.Sprintf("Payment due today: %s (%s %s)",
			rc.CompanyName, rc.AmountDue.StringFixed(2), rc.Currency)
	default:
		return fmt.Sprintf("Payment due in %d days: %s (%s %s)",
			rc.DaysUntil, rc.CompanyName, rc.AmountDue.StringFixed(2), rc.Currency)
	}
}

// RenderBody produces the plain-text email body for a reminder.
func RenderBody(rc types.ReminderContext) string {
	var b strings.Builder

	switch rc.Kind {
	case types.ReminderOnDueDate:
		fmt.Fprintf(&b, "A payment from %s is due today, %s.\n\n", rc.CompanyName, rc.OccurrenceDate)
	default:
		day := "days"
		if rc.DaysUntil == 1 {
			day = "day"
		}
		fmt.Fprintf(&b, "A payment from %s is due in %d %s, on %s.\n\n",
			rc.CompanyName, rc.DaysUntil, day, rc.OccurrenceDate)
	}

	fmt.Fprintf(&b, "Amount due: %s %s\n", rc.AmountDue.StringFixed(2), rc.Currency)
	fmt.Fprintf(&b, "Billing cycle: %s\n", rc.CycleDescription)
	fmt.Fprintf(&b, "Record: %s\n", rc.RecordID)

	return b.String()
}
