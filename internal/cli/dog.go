package cli

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/julianstephens/petminder/internal/models"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

type DogAddCmd struct {
	Name string `arg:"" help:"Name of the dog."`
}

func (c *DogAddCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	dog, err := a.AddDog(ctx.context(), c.Name)
	if err != nil {
		return err
	}
	ctx.printf("Added dog: %s (ID: %s)\n", dog.Name, dog.ID.Short())
	return nil
}

type DogListCmd struct{}

func (c *DogListCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	dogs := a.Scheduler.Family().Dogs()
	if len(dogs) == 0 {
		ctx.printf("No dogs yet. Add one with `petminder dog add <name>`.\n")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "REMINDERS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle()
		})
	for _, d := range dogs {
		t.Row(d.ID.Short(), d.Name, strconv.Itoa(d.Reminders.Len()))
	}
	ctx.printf("%s\n", t.String())
	return nil
}

type DogRemoveCmd struct {
	Dog   string `arg:"" help:"Dog name or ID."`
	Force bool   `short:"f" help:"Skip the confirmation prompt."`
}

func (c *DogRemoveCmd) Run(ctx *Context) error {
	a, dog, _, err := ctx.lookup(c.Dog, "")
	if err != nil {
		return err
	}
	if !c.Force && dog.Reminders.Len() > 0 {
		if !ctx.confirm("Remove %s and %d reminder(s)? (y/N): ", dog.Name, dog.Reminders.Len()) {
			ctx.printf("Cancelled.\n")
			return nil
		}
	}
	if err := a.Exec(ctx.context(), func(done func(error)) {
		a.Scheduler.RemoveDog(dog.ID, done)
	}); err != nil {
		return err
	}
	ctx.printf("Removed dog: %s\n", dog.Name)
	return nil
}

// confirm reads a y/N answer from the context's input. Anything but yes,
// including EOF, declines.
func (c *Context) confirm(format string, args ...any) bool {
	c.printf(format, args...)
	line, _ := bufio.NewReader(c.in()).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func dogName(f *models.Family, id models.ID) string {
	if d, ok := f.Dog(id); ok {
		return d.Name
	}
	return id.Short()
}
