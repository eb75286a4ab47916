package cli

import (
	"encoding/json"
	"fmt"
)

type DebugCmd struct {
	DBPath  *DebugDBPathCmd  `cmd:"" help:"Show store and config paths."`
	Dump    *DebugDumpCmd    `cmd:"" help:"Dump the local snapshot as JSON."`
	DumpDog *DebugDumpDogCmd `cmd:"" help:"Dump one dog and its reminders as JSON."`
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *Context) error {
	output := map[string]string{
		"path":   ctx.Config.StorePath,
		"config": ctx.Config.Path,
	}
	return ctx.printJSON(output)
}

type DebugDumpCmd struct{}

func (cmd *DebugDumpCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	return ctx.printJSON(a.Scheduler.Snapshot())
}

type DebugDumpDogCmd struct {
	Dog string `arg:"" help:"Dog name or ID."`
}

func (cmd *DebugDumpDogCmd) Run(ctx *Context) error {
	_, dog, _, err := ctx.lookup(cmd.Dog, "")
	if err != nil {
		return err
	}
	return ctx.printJSON(dog)
}

func (c *Context) printJSON(v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	c.printf("%s\n", jsonBytes)
	return nil
}
