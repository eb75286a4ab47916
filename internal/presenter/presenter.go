// Package presenter shows fired alarms to the user and hands the chosen
// response back to the scheduler.
package presenter

import (
	"context"
	"fmt"

	"github.com/julianstephens/petminder/internal/constants"
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/scheduler"
	"github.com/julianstephens/petminder/internal/timing"
)

var optionLabels = map[scheduler.ResponseKind]string{
	scheduler.Acknowledge: "Done",
	scheduler.Snooze:      "Snooze",
	scheduler.Skip:        "Skip next",
	scheduler.Unskip:      "Unskip",
	scheduler.Dismiss:     "Dismiss",
}

// OptionLabel is the button or menu text for a response.
func OptionLabel(k scheduler.ResponseKind) string {
	if l, ok := optionLabels[k]; ok {
		return l
	}
	return k.String()
}

// Describe is the body text shown under an alarm's title.
func Describe(a scheduler.Alarm) string {
	r := a.Reminder
	fired := a.FiredAt.Format(constants.TimeFormat)
	switch {
	case r.Snooze.Active:
		return fmt.Sprintf("Snoozed %s is due again (%s).", r.DisplayName(), fired)
	case r.IsSkipping():
		return fmt.Sprintf("%s is due (%s). The next occurrence is already skipped.", r.DisplayName(), fired)
	case r.Mode() == timing.ModeOneTime:
		return fmt.Sprintf("%s is due (%s). Acknowledging removes this one-time reminder.", r.DisplayName(), fired)
	default:
		return fmt.Sprintf("%s is due for %s (%s).", r.DisplayName(), a.DogName, fired)
	}
}

// logFor records the reminder's own action when the user acknowledges or
// skips, so the activity log matches what was done.
func logFor(a scheduler.Alarm, kind scheduler.ResponseKind, note string) *scheduler.LogChoice {
	if kind != scheduler.Acknowledge && kind != scheduler.Skip {
		return nil
	}
	return &scheduler.LogChoice{
		Action:     a.Reminder.Action,
		CustomName: a.Reminder.CustomName,
		Note:       note,
	}
}

type desktopNotifier interface {
	Notify(ctx context.Context, title, text string) error
}

// Desktop raises a tray notification for each alarm and then hands the alarm
// to next, which collects the response. The notification is sent in the
// background and failures are only logged.
type Desktop struct {
	notifier desktopNotifier
	next     scheduler.Presenter
}

func NewDesktop(n desktopNotifier, next scheduler.Presenter) *Desktop {
	return &Desktop{notifier: n, next: next}
}

func (d *Desktop) PresentAlarm(ctx context.Context, alarm scheduler.Alarm, respond func(scheduler.Response)) {
	title, body := alarm.Title(), Describe(alarm)
	go func() {
		if err := d.notifier.Notify(ctx, title, body); err != nil {
			logger.Warn("Desktop notification failed", "reminder", alarm.Reminder.ID, "error", err)
		}
	}()
	if d.next == nil {
		logger.Info("Alarm awaiting response", "reminder", alarm.Reminder.ID)
		return
	}
	d.next.PresentAlarm(ctx, alarm, respond)
}
