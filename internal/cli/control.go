package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/scheduler"
)

type PauseCmd struct{}

func (c *PauseCmd) Run(ctx *Context) error {
	return setPaused(ctx, true)
}

type ResumeCmd struct{}

func (c *ResumeCmd) Run(ctx *Context) error {
	return setPaused(ctx, false)
}

func setPaused(ctx *Context, paused bool) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if err := a.Exec(ctx.context(), func(done func(error)) {
		a.Scheduler.SetPaused(paused, done)
	}); err != nil {
		return err
	}
	if paused {
		ctx.printf("Paused all reminders.\n")
	} else {
		ctx.printf("Resumed all reminders.\n")
	}
	return nil
}

// RunCmd runs the engine in the foreground until interrupted.
type RunCmd struct {
	Presenter string `help:"Override the configured presenter (terminal, telegram or desktop)."`
}

func (c *RunCmd) Run(ctx *Context) error {
	if c.Presenter != "" {
		ctx.Config.Presenter = c.Presenter
		if err := ctx.Config.Validate(); err != nil {
			return err
		}
	}

	runCtx, stop := signal.NotifyContext(ctx.context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx.AppOptions.Live = true
	ctx.Ctx = runCtx
	a, err := ctx.App()
	if err != nil {
		return err
	}

	ctx.printf("petminder is running with %d dog(s). Press Ctrl+C to stop.\n", len(a.Scheduler.Family().Dogs()))
	err = a.Run(runCtx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("petminder stopped")
	return err
}

type SyncCmd struct {
	Dog string `arg:"" optional:"" help:"Only sync this dog."`
}

func (c *SyncCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if !a.HasRemote() {
		return scheduler.ErrNoRemote
	}

	if c.Dog == "" {
		err = a.Exec(ctx.context(), a.Scheduler.SyncAll)
	} else {
		dog, lookupErr := a.Scheduler.Family().DogByRef(c.Dog)
		if lookupErr != nil {
			return lookupErr
		}
		err = a.Exec(ctx.context(), func(done func(error)) {
			a.Scheduler.SyncDog(dog.ID, done)
		})
	}
	if err != nil {
		return err
	}
	ctx.printf("Synced with the remote store.\n")
	return nil
}
