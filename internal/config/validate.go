package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	durations := []struct {
		field string
		value string
	}{
		{"MEETING_START_INTERVAL", cfg.MeetingStartIntervalStr},
		{"MEETING_REMINDER_INTERVAL", cfg.MeetingReminderIntervalStr},
		{"MEETING_NOTIFICATION_INTERVAL", cfg.MeetingNotificationIntervalStr},
		{"EVENT_CHECK_INTERVAL", cfg.EventCheckIntervalStr},
		{"BREAK_CHECK_INTERVAL", cfg.BreakCheckIntervalStr},
		{"BREAK_DURATION", cfg.BreakDurationStr},
		{"DB_OP_TIMEOUT", cfg.DBOpTimeoutStr},
		{"HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr},
		{"CACHE_BREAKER_COOLDOWN", cfg.CacheBreakerCooldownStr},
	}
	for _, dur := range durations {
		if dur.value == "" {
			continue
		}
		d, err := time.ParseDuration(dur.value)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   dur.field,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   dur.field,
				Message: "must be positive",
			})
		}
	}

	// EVENT_TIMEZONE must be a loadable IANA zone
	if cfg.EventTimezone != "" {
		if _, err := time.LoadLocation(cfg.EventTimezone); err != nil {
			errs = append(errs, ValidationError{
				Field:   "EVENT_TIMEZONE",
				Message: fmt.Sprintf("invalid timezone: %v", err),
			})
		}
	}

	// SCHEDULERS entries must be known scheduler names
	for _, s := range cfg.Schedulers {
		switch s {
		case SchedulerAll, SchedulerMeetings, SchedulerEvents, SchedulerBreaks:
		default:
			errs = append(errs, ValidationError{
				Field:   "SCHEDULERS",
				Message: fmt.Sprintf("unknown scheduler %q", s),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
