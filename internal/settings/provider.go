// Package settings resolves the effective notification configuration for a
// sweep: the stored settings document plus the recipient set derived from it.
package settings

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"duewatch/internal/types"
)

// Store reads and writes the singleton settings document.
type Store interface {
	GetOrCreate(ctx context.Context) (types.NotificationSettings, error)
	Update(ctx context.Context, settings types.NotificationSettings) error
}

// AdminDirectory resolves the admin email addresses merged into the recipient
// set when the settings document opts into notifying admins.
type AdminDirectory interface {
	AdminEmails(ctx context.Context) ([]string, error)
}

// Provider loads settings and resolves effective recipients.
type Provider struct {
	store  Store
	admins AdminDirectory
}

func NewProvider(store Store, admins AdminDirectory) *Provider {
	return &Provider{store: store, admins: admins}
}

// Load returns the current settings document, creating the defaults on first
// read. Failure here aborts the whole sweep; without settings there is no way
// to decide who to notify.
func (p *Provider) Load(ctx context.Context) (types.NotificationSettings, error) {
	s, err := p.store.GetOrCreate(ctx)
	if err != nil {
		return types.NotificationSettings{}, types.NewAppError(types.ErrCodeInternalSettings, "notification settings unavailable", err)
	}
	return s, nil
}

// Save validates and stores a replacement settings document.
func (p *Provider) Save(ctx context.Context, s types.NotificationSettings) error {
	if err := Validate(s); err != nil {
		return err
	}
	return p.store.Update(ctx, s)
}

// Recipients resolves the effective recipient emails for the given settings:
// active configured recipients, plus admin accounts when SendToAdmins is set.
// The result is deduplicated case-insensitively and sorted.
func (p *Provider) Recipients(ctx context.Context, s types.NotificationSettings) ([]string, error) {
	emails := s.ActiveRecipientEmails()

	if s.SendToAdmins && p.admins != nil {
		adminEmails, err := p.admins.AdminEmails(ctx)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalSettings, "failed to resolve admin recipients", err)
		}
		emails = append(emails, adminEmails...)
	}

	seen := make(map[string]struct{}, len(emails))
	var out []string
	for _, e := range emails {
		key := strings.ToLower(strings.TrimSpace(e))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}

var triggerTimeRe = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// Validate checks a settings document before it is stored.
func Validate(s types.NotificationSettings) error {
	if !triggerTimeRe.MatchString(s.TriggerTime) {
		return types.NewAppError(types.ErrCodeValidationInvalidTime,
			fmt.Sprintf("trigger time %q is not a valid HH:MM value", s.TriggerTime), nil)
	}
	// Zero is valid: an advance reminder on the due date itself, where the
	// on-due-date reminder takes precedence if both are enabled.
	if s.AdvanceEnabled && s.AdvanceDays < 0 {
		return types.NewAppError(types.ErrCodeValidationFailed,
			"advance days cannot be negative", nil)
	}
	for _, r := range s.Recipients {
		if !strings.Contains(r.Email, "@") {
			return types.NewAppError(types.ErrCodeValidationInvalidEmail,
				fmt.Sprintf("recipient email %q is invalid", r.Email), nil)
		}
	}
	return nil
}

// ParseTriggerTime splits a validated "HH:MM" string into hour and minute.
func ParseTriggerTime(s string) (hour, minute int, err error) {
	m := triggerTimeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, types.NewAppError(types.ErrCodeValidationInvalidTime,
			fmt.Sprintf("trigger time %q is not a valid HH:MM value", s), nil)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}
