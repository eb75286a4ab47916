package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/scheduler"
	"github.com/julianstephens/petminder/internal/timing"
	"github.com/julianstephens/petminder/internal/validation"
)

// TimingFlags are shared by reminder add and edit.
type TimingFlags struct {
	Every time.Duration `help:"Countdown interval, e.g. 4h or 90m."`
	At    string        `help:"Time of day (HH:MM) for one-time, weekly and monthly reminders."`
	On    string        `help:"Weekdays for a weekly reminder, e.g. mon,thu."`
	Day   int           `help:"Day of month (1-31) for a monthly reminder."`
	Date  string        `help:"Date (YYYY-MM-DD) for a one-time reminder."`
	TZ    string        `name:"tz" help:"IANA time zone for --at. Defaults to the configured timezone."`
}

func (f TimingFlags) isSet() bool {
	return f.Every != 0 || f.At != "" || f.On != "" || f.Day != 0 || f.Date != ""
}

func (f TimingFlags) build(defaultTZ string) (timing.Timing, error) {
	var weekdays []time.Weekday
	if f.On != "" {
		var err error
		if weekdays, err = validation.ParseWeekdays(f.On); err != nil {
			return nil, err
		}
	}
	tz := f.TZ
	if tz == "" && f.Every == 0 {
		tz = defaultTZ
	}
	return validation.BuildTiming(validation.TimingInput{
		Countdown:  f.Every,
		Date:       f.Date,
		Time:       f.At,
		Weekdays:   weekdays,
		DayOfMonth: f.Day,
		TimeZone:   tz,
	})
}

type ReminderAddCmd struct {
	Dog      string `arg:"" help:"Dog name or ID."`
	Action   string `arg:"" help:"Care action: feed, water, potty, walk, brush, bathe, medicine, sleep, training, vet-visit or custom."`
	Name     string `help:"Name for a custom action."`
	Disabled bool   `help:"Create the reminder disabled."`
	TimingFlags
}

func (c *ReminderAddCmd) Run(ctx *Context) error {
	action, err := models.ParseAction(c.Action)
	if err != nil {
		return errors.Invalid("action", "%v", err)
	}
	if !c.TimingFlags.isSet() {
		return errors.Invalid("timing", "one of --every, --date, --on or --day is required")
	}
	t, err := c.TimingFlags.build(ctx.Config.Timezone)
	if err != nil {
		return err
	}

	a, dog, _, err := ctx.lookup(c.Dog, "")
	if err != nil {
		return err
	}
	r := models.NewReminder(action, c.Name, t, a.Clock.Now())
	r.Enabled = !c.Disabled
	if err := a.Exec(ctx.context(), func(done func(error)) {
		a.Scheduler.AddReminder(dog.ID, r, done)
	}); err != nil {
		return err
	}
	ctx.printf("Added reminder: %s for %s (%s, ID: %s)\n", r.DisplayName(), dog.Name, FormatTiming(r.Timing), r.ID.Short())
	return nil
}

type ReminderListCmd struct {
	Dog string `arg:"" optional:"" help:"Only list this dog's reminders."`
}

func (c *ReminderListCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	family := a.Scheduler.Family()
	dogs := family.Dogs()
	if c.Dog != "" {
		dog, err := family.DogByRef(c.Dog)
		if err != nil {
			return err
		}
		dogs = []*models.Dog{dog}
	}

	loc, err := ctx.Config.Location()
	if err != nil {
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "ID", "DOG", "REMINDER", "SCHEDULE", "NEXT", "STATUS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle()
		})
	rows := 0
	for _, dog := range dogs {
		reminders := dog.Reminders.All()
		slices.SortStableFunc(reminders, models.CompareReminders)
		for i, r := range reminders {
			t.Row(
				fmt.Sprintf("#%d", i+1),
				r.ID.Short(),
				dog.Name,
				r.DisplayName(),
				FormatTiming(r.Timing),
				formatNext(r, a.Clock, loc),
				reminderStatus(r, a.Clock),
			)
			rows++
		}
	}
	if rows == 0 {
		ctx.printf("No reminders found.\n")
		return nil
	}
	if a.Clock.IsPaused() {
		ctx.printf("All reminders are paused. Resume with `petminder resume`.\n")
	}
	ctx.printf("%s\n", t.String())
	return nil
}

type ReminderEditCmd struct {
	Dog      string `arg:"" help:"Dog name or ID."`
	Reminder string `arg:"" help:"Reminder ID, short ID (~abcd1234) or position (#2)."`
	Action   string `help:"New care action."`
	Name     string `help:"New name for a custom action."`
	TimingFlags
}

func (c *ReminderEditCmd) Run(ctx *Context) error {
	var action models.Action
	if c.Action != "" {
		var err error
		if action, err = models.ParseAction(c.Action); err != nil {
			return errors.Invalid("action", "%v", err)
		}
	}
	var t timing.Timing
	if c.TimingFlags.isSet() {
		var err error
		if t, err = c.TimingFlags.build(ctx.Config.Timezone); err != nil {
			return err
		}
	}
	if action == "" && c.Name == "" && t == nil {
		return errors.Invalid("edit", "nothing to change")
	}

	a, dog, r, err := ctx.lookup(c.Dog, c.Reminder)
	if err != nil {
		return err
	}
	now := a.Clock.Now()
	err = a.Exec(ctx.context(), func(done func(error)) {
		a.Scheduler.EditReminder(dog.ID, r.ID, func(next *models.Reminder) error {
			if action != "" {
				next.Action = action
			}
			if c.Name != "" {
				next.CustomName = c.Name
			}
			if t != nil {
				next.ChangeTiming(t, now)
			}
			return nil
		}, done)
	})
	if err != nil {
		return err
	}
	ctx.printf("Updated reminder: %s for %s\n", r.DisplayName(), dog.Name)
	return nil
}

// ReminderRef is embedded by the commands that act on a single reminder.
type ReminderRef struct {
	Dog      string `arg:"" help:"Dog name or ID."`
	Reminder string `arg:"" help:"Reminder ID, short ID (~abcd1234) or position (#2)."`
}

// apply resolves the reminder and runs op on the scheduler.
func (ref ReminderRef) apply(ctx *Context, verb string, op func(s *scheduler.Scheduler, dogID, reminderID models.ID, done func(error))) error {
	a, dog, r, err := ctx.lookup(ref.Dog, ref.Reminder)
	if err != nil {
		return err
	}
	name := r.DisplayName()
	if err := a.Exec(ctx.context(), func(done func(error)) {
		op(a.Scheduler, dog.ID, r.ID, done)
	}); err != nil {
		return err
	}
	ctx.printf("%s: %s for %s\n", verb, name, dog.Name)
	return nil
}

type ReminderEnableCmd struct{ ReminderRef }

func (c *ReminderEnableCmd) Run(ctx *Context) error {
	return c.apply(ctx, "Enabled", func(s *scheduler.Scheduler, dogID, id models.ID, done func(error)) {
		s.SetEnabled(dogID, id, true, done)
	})
}

type ReminderDisableCmd struct{ ReminderRef }

func (c *ReminderDisableCmd) Run(ctx *Context) error {
	return c.apply(ctx, "Disabled", func(s *scheduler.Scheduler, dogID, id models.ID, done func(error)) {
		s.SetEnabled(dogID, id, false, done)
	})
}

type ReminderSkipCmd struct{ ReminderRef }

func (c *ReminderSkipCmd) Run(ctx *Context) error {
	return c.apply(ctx, "Skipping next occurrence", (*scheduler.Scheduler).SkipNext)
}

type ReminderUnskipCmd struct{ ReminderRef }

func (c *ReminderUnskipCmd) Run(ctx *Context) error {
	return c.apply(ctx, "Unskipped", (*scheduler.Scheduler).UnskipNext)
}

type ReminderRemoveCmd struct{ ReminderRef }

func (c *ReminderRemoveCmd) Run(ctx *Context) error {
	return c.apply(ctx, "Removed reminder", (*scheduler.Scheduler).RemoveReminder)
}

// ReminderRespondCmd answers a reminder from the command line, as if its
// alarm had been presented.
type ReminderRespondCmd struct {
	ReminderRef
	Response string `arg:"" enum:"acknowledge,snooze,skip,unskip,dismiss" help:"One of acknowledge, snooze, skip, unskip or dismiss."`
	Log      bool   `help:"Record the action in the activity log (acknowledge and skip only)."`
	Note     string `help:"Note for the activity log entry."`
}

func (c *ReminderRespondCmd) Run(ctx *Context) error {
	kind, err := scheduler.ParseResponseKind(c.Response)
	if err != nil {
		return err
	}
	resp := scheduler.Response{Kind: kind}
	if c.Log || c.Note != "" {
		resp.Log = &scheduler.LogChoice{Note: c.Note}
	}
	return c.apply(ctx, "Answered "+kind.String(), func(s *scheduler.Scheduler, dogID, id models.ID, done func(error)) {
		s.Respond(dogID, id, resp, done)
	})
}
