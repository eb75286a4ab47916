package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/timing"
)

// ResponseKind is the user's answer to an alarm.
type ResponseKind int

const (
	Acknowledge ResponseKind = iota
	Snooze
	Skip
	Unskip
	Dismiss
)

var responseNames = [...]string{
	Acknowledge: "acknowledge",
	Snooze:      "snooze",
	Skip:        "skip",
	Unskip:      "unskip",
	Dismiss:     "dismiss",
}

func (k ResponseKind) String() string {
	if int(k) < len(responseNames) {
		return responseNames[k]
	}
	return fmt.Sprintf("response(%d)", int(k))
}

// ParseResponseKind is the inverse of ResponseKind.String.
func ParseResponseKind(s string) (ResponseKind, error) {
	for i, name := range responseNames {
		if name == s {
			return ResponseKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown response %q", s)
}

// LogChoice asks for the care action to be recorded in the activity log.
type LogChoice struct {
	Action     models.Action
	CustomName string
	Note       string
}

// Response is what a presenter hands back for an alarm.
type Response struct {
	Kind ResponseKind
	// Log is honored for Acknowledge and Skip.
	Log *LogChoice
}

// Alarm describes one fire event. Reminder is a copy; presenters cannot
// mutate engine state through it.
type Alarm struct {
	DogID    models.ID
	DogName  string
	Reminder *models.Reminder
	FiredAt  time.Time
}

// Title is a one-line description such as "Biscuit: Walk".
func (a Alarm) Title() string {
	return fmt.Sprintf("%s: %s", a.DogName, a.Reminder.DisplayName())
}

// Options lists the responses that make sense for this alarm.
func (a Alarm) Options() []ResponseKind {
	opts := []ResponseKind{Acknowledge, Snooze}
	switch {
	case a.Reminder.IsSkipping():
		opts = append(opts, Unskip)
	case a.Reminder.Mode() == timing.ModeWeekly || a.Reminder.Mode() == timing.ModeMonthly:
		opts = append(opts, Skip)
	}
	return append(opts, Dismiss)
}

// Presenter shows an alarm to the user. PresentAlarm must return promptly;
// the answer is delivered later by calling respond exactly once. Extra calls
// are ignored.
type Presenter interface {
	PresentAlarm(ctx context.Context, alarm Alarm, respond func(Response))
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, alarm Alarm, respond func(Response))

func (f PresenterFunc) PresentAlarm(ctx context.Context, alarm Alarm, respond func(Response)) {
	f(ctx, alarm, respond)
}

// ActivityLog stores logged care actions.
type ActivityLog interface {
	AddLogEntry(ctx context.Context, entry models.LogEntry) error
}
