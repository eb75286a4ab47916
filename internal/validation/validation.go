// Package validation checks reminder edits before they reach the engine.
// Every failure is an errors.ValidationError, so callers can tell a rejected
// edit apart from a storage or sync failure.
package validation

import (
	"slices"
	"strings"
	"time"

	"github.com/julianstephens/petminder/internal/constants"
	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/timing"
)

// TimingInput is the raw shape of a timing edit as entered by a user.
// Exactly one of Countdown, Date, or Time plus a day indicator must be set.
type TimingInput struct {
	Countdown  time.Duration
	Date       string // YYYY-MM-DD, one-time reminders
	Time       string // HH:MM, one-time, weekly and monthly reminders
	Weekdays   []time.Weekday
	DayOfMonth int
	TimeZone   string
}

// BuildTiming validates in and turns it into a Timing.
func BuildTiming(in TimingInput) (timing.Timing, error) {
	if in.TimeZone != "" {
		if _, err := time.LoadLocation(in.TimeZone); err != nil {
			return nil, errors.Invalid("time_zone", "unknown time zone %q", in.TimeZone)
		}
	}

	if in.Countdown > 0 {
		if in.Date != "" || in.Time != "" || len(in.Weekdays) > 0 || in.DayOfMonth != 0 {
			return nil, errors.Invalid("countdown", "cannot be combined with a date, time, weekdays or day of month")
		}
		t := &timing.Countdown{Duration: in.Countdown}
		return t, ValidateTiming(t)
	}

	if in.Time == "" {
		return nil, errors.Invalid("time", "a countdown or a time of day (HH:MM) is required")
	}
	clock, err := time.Parse(constants.TimeFormat, in.Time)
	if err != nil {
		return nil, errors.Invalid("time", "invalid time %q (expected HH:MM)", in.Time)
	}

	if in.Date != "" {
		if len(in.Weekdays) > 0 || in.DayOfMonth != 0 {
			return nil, errors.Invalid("date", "cannot be combined with weekdays or day of month")
		}
		loc := time.Local
		if in.TimeZone != "" {
			loc, _ = time.LoadLocation(in.TimeZone)
		}
		day, err := time.ParseInLocation(constants.DateFormat, in.Date, loc)
		if err != nil {
			return nil, errors.Invalid("date", "invalid date %q (expected YYYY-MM-DD)", in.Date)
		}
		return &timing.OneTime{Date: day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)}, nil
	}

	hasWeekdays, hasDay := len(in.Weekdays) > 0, in.DayOfMonth != 0
	switch {
	case hasWeekdays && hasDay:
		return nil, errors.Invalid("schedule", "choose either weekdays or a day of month, not both")
	case !hasWeekdays && !hasDay:
		return nil, errors.Invalid("schedule", "weekdays or a day of month is required")
	}

	var t timing.Timing
	if hasWeekdays {
		t = &timing.Weekly{Hour: clock.Hour(), Minute: clock.Minute(), Weekdays: dedupe(in.Weekdays), TimeZone: in.TimeZone}
	} else {
		t = &timing.Monthly{Hour: clock.Hour(), Minute: clock.Minute(), Day: in.DayOfMonth, TimeZone: in.TimeZone}
	}
	return t, ValidateTiming(t)
}

// ValidateTiming checks a timing value's ranges.
func ValidateTiming(t timing.Timing) error {
	switch v := t.(type) {
	case nil:
		return errors.Invalid("timing", "a timing mode is required")
	case *timing.Countdown:
		if v.Duration <= 0 {
			return errors.Invalid("countdown", "duration must be positive")
		}
		if v.Duration > constants.MaxCountdownDuration {
			return errors.Invalid("countdown", "duration must be at most %s", constants.MaxCountdownDuration)
		}
	case *timing.Weekly:
		if len(v.Weekdays) == 0 {
			return errors.Invalid("weekdays", "at least one weekday is required")
		}
		for _, d := range v.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				return errors.Invalid("weekdays", "invalid weekday %d", int(d))
			}
		}
		return validateClock(v.Hour, v.Minute)
	case *timing.Monthly:
		if v.Day < 1 || v.Day > 31 {
			return errors.Invalid("day_of_month", "must be between 1 and 31, got %d", v.Day)
		}
		return validateClock(v.Hour, v.Minute)
	case *timing.OneTime:
		if v.Date.IsZero() {
			return errors.Invalid("date", "a date is required")
		}
	}
	return nil
}

// ValidateReminder checks a complete reminder before it is committed.
func ValidateReminder(r *models.Reminder) error {
	if !r.Action.Valid() {
		return errors.Invalid("action", "unknown action %q", r.Action)
	}
	if r.Action == models.ActionCustom && strings.TrimSpace(r.CustomName) == "" {
		return errors.Invalid("custom_name", "a custom action needs a name")
	}
	return ValidateTiming(r.Timing)
}

// ValidateDogName rejects blank names and duplicates within the family.
func ValidateDogName(f *models.Family, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Invalid("name", "dog name cannot be empty")
	}
	for _, d := range f.Dogs() {
		if strings.EqualFold(d.Name, name) {
			return errors.Invalid("name", "a dog named %q already exists", d.Name)
		}
	}
	return nil
}

// ParseWeekdays parses comma-separated weekday names or numbers (0=Sunday).
func ParseWeekdays(s string) ([]time.Weekday, error) {
	dayMap := map[string]time.Weekday{
		"sun": time.Sunday, "sunday": time.Sunday,
		"mon": time.Monday, "monday": time.Monday,
		"tue": time.Tuesday, "tuesday": time.Tuesday,
		"wed": time.Wednesday, "wednesday": time.Wednesday,
		"thu": time.Thursday, "thursday": time.Thursday,
		"fri": time.Friday, "friday": time.Friday,
		"sat": time.Saturday, "saturday": time.Saturday,
	}

	var weekdays []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		if wd, ok := dayMap[part]; ok {
			weekdays = append(weekdays, wd)
			continue
		}
		if len(part) == 1 && part[0] >= '0' && part[0] <= '6' {
			weekdays = append(weekdays, time.Weekday(part[0]-'0'))
			continue
		}
		return nil, errors.Invalid("weekdays", "invalid weekday: %s", part)
	}
	return weekdays, nil
}

func validateClock(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return errors.Invalid("hour", "must be between 0 and 23, got %d", hour)
	}
	if minute < 0 || minute > 59 {
		return errors.Invalid("minute", "must be between 0 and 59, got %d", minute)
	}
	return nil
}

func dedupe(days []time.Weekday) []time.Weekday {
	out := slices.Clone(days)
	slices.Sort(out)
	return slices.Compact(out)
}
