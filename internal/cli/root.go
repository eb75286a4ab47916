package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/petminder/internal/app"
	"github.com/julianstephens/petminder/internal/config"
	"github.com/julianstephens/petminder/internal/constants"
	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/timing"
)

// Context is bound into every kong command. The app is opened lazily so that
// commands like init and keyring never touch the store.
type Context struct {
	Config     *config.Config
	ConfigPath string
	Out        io.Writer
	In         io.Reader
	Ctx        context.Context
	// AppOptions is passed through to app.Open. Tests use it to inject a
	// clock or remote store.
	AppOptions app.Options

	app *app.App
}

// App opens the app on first use.
func (c *Context) App() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := app.Open(c.context(), c.Config, c.AppOptions)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// Close persists and releases the app if a command opened it.
func (c *Context) Close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func (c *Context) context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *Context) in() io.Reader {
	if c.In == nil {
		return os.Stdin
	}
	return c.In
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.out(), format, args...)
}

// lookup resolves a dog reference and an optional reminder reference.
func (c *Context) lookup(dogRef, reminderRef string) (*app.App, *models.Dog, *models.Reminder, error) {
	a, err := c.App()
	if err != nil {
		return nil, nil, nil, err
	}
	dog, err := a.Scheduler.Family().DogByRef(dogRef)
	if err != nil {
		return nil, nil, nil, err
	}
	if reminderRef == "" {
		return a, dog, nil, nil
	}
	r, err := findReminder(dog, reminderRef)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, dog, r, nil
}

// findReminder matches ref against a full id, the short id shown by
// `reminder list`, or a 1-based position in the dog's sorted list.
func findReminder(dog *models.Dog, ref string) (*models.Reminder, error) {
	ref = strings.TrimSpace(ref)
	if id, err := models.ParseID(ref); err == nil {
		if r, ok := dog.Reminders.Find(id); ok {
			return r, nil
		}
	}

	all := dog.Reminders.All()
	slices.SortStableFunc(all, models.CompareReminders)

	if strings.HasPrefix(ref, "~") {
		for _, r := range all {
			if r.ID.Short() == ref {
				return r, nil
			}
		}
	}
	if strings.HasPrefix(ref, "#") {
		if n, err := strconv.Atoi(ref[1:]); err == nil && n >= 1 && n <= len(all) {
			return all[n-1], nil
		}
	}
	return nil, errors.NotFound("reminder", fmt.Sprintf("%s of %s", ref, dog.Name))
}

// FormatTiming renders a timing as a short human readable phrase.
func FormatTiming(t timing.Timing) string {
	switch v := t.(type) {
	case *timing.Countdown:
		return "every " + formatDuration(v.Duration)
	case *timing.Weekly:
		days := make([]string, 0, len(v.Weekdays))
		for _, d := range v.Weekdays {
			days = append(days, d.String()[:3])
		}
		return fmt.Sprintf("%s at %02d:%02d%s", strings.Join(days, ","), v.Hour, v.Minute, zoneSuffix(v.TimeZone))
	case *timing.Monthly:
		return fmt.Sprintf("monthly on day %d at %02d:%02d%s", v.Day, v.Hour, v.Minute, zoneSuffix(v.TimeZone))
	case *timing.OneTime:
		return "once at " + v.Date.Format(constants.DateTimeFormat)
	default:
		return "unscheduled"
	}
}

func zoneSuffix(tz string) string {
	if tz == "" {
		return ""
	}
	return " " + tz
}

// formatDuration drops the zero minute and second components time.Duration
// prints, so 4h0m0s becomes 4h.
func formatDuration(d time.Duration) string {
	s := d.Round(time.Second).String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}

// reminderStatus summarizes the state a listing should draw attention to.
func reminderStatus(r *models.Reminder, clk *timing.ClockContext) string {
	switch {
	case !r.Enabled:
		return "disabled"
	case clk.IsPaused():
		return "paused"
	case r.Snooze.Active:
		return "snoozed"
	case r.IsSkipping():
		return "skipping"
	default:
		return "active"
	}
}

func formatNext(r *models.Reminder, clk *timing.ClockContext, loc *time.Location) string {
	d := r.ExecutionDate(clk)
	if d == nil {
		return "-"
	}
	return d.In(loc).Format(constants.DateTimeFormat)
}
