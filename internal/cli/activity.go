package cli

import (
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/julianstephens/petminder/internal/constants"
	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/models"
)

type LogListCmd struct {
	Dog   string        `arg:"" optional:"" help:"Only show this dog's activity."`
	Since time.Duration `default:"168h" help:"How far back to look."`
}

func (c *LogListCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	var dogID models.ID
	if c.Dog != "" {
		dog, err := a.Scheduler.Family().DogByRef(c.Dog)
		if err != nil {
			return err
		}
		dogID = dog.ID
	}

	entries, err := a.Store.GetLogEntries(dogID, a.Clock.Now().Add(-c.Since))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ctx.printf("No activity logged in the last %s.\n", formatDuration(c.Since))
		return nil
	}

	loc, err := ctx.Config.Location()
	if err != nil {
		return err
	}
	family := a.Scheduler.Family()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("WHEN", "DOG", "ACTIVITY", "NOTE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle()
		})
	for _, e := range entries {
		t.Row(e.LoggedAt.In(loc).Format(constants.DateTimeFormat), dogName(family, e.DogID), e.Label(), e.Note)
	}
	ctx.printf("%s\n", t.String())
	return nil
}

// LogAddCmd records an activity that was done without an alarm.
type LogAddCmd struct {
	Dog    string `arg:"" help:"Dog name or ID."`
	Action string `arg:"" help:"Care action that was done."`
	Name   string `help:"Name for a custom action."`
	Note   string `help:"Free-form note."`
}

func (c *LogAddCmd) Run(ctx *Context) error {
	action, err := models.ParseAction(c.Action)
	if err != nil {
		return errors.Invalid("action", "%v", err)
	}
	a, dog, _, err := ctx.lookup(c.Dog, "")
	if err != nil {
		return err
	}
	entry := models.LogEntry{
		DogID:      dog.ID,
		Action:     action,
		CustomName: c.Name,
		Note:       c.Note,
		LoggedAt:   a.Clock.Now(),
	}
	if err := a.Store.AddLogEntry(ctx.context(), entry); err != nil {
		return err
	}
	ctx.printf("Logged %s for %s\n", entry.Label(), dog.Name)
	return nil
}
