package cli

import (
	"github.com/julianstephens/petminder/internal/app"
	"github.com/julianstephens/petminder/internal/config"
)

type InitCmd struct{}

func (c *InitCmd) Run(ctx *Context) error {
	if ctx.Config.Path == "" {
		path := ctx.ConfigPath
		if path == "" {
			path = app.DefaultConfigPath(ctx.Config)
		}
		// Only the store location is written; secrets picked up from the
		// environment stay out of the file.
		starter := config.Default()
		starter.StorePath = ctx.Config.StorePath
		if err := starter.Save(path); err != nil {
			return err
		}
		ctx.Config.Path = path
		ctx.printf("Wrote config: %s\n", path)
	}

	if err := app.Init(ctx.Config); err != nil {
		return err
	}
	ctx.printf("Initialized petminder storage at: %s\n", ctx.Config.StorePath)
	return nil
}
