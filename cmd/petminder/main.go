package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/petminder/internal/cli"
	"github.com/julianstephens/petminder/internal/config"
	"github.com/julianstephens/petminder/internal/constants"
	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"path" default:"~/.config/petminder/config.yaml"`
	Store   string `help:"Override the local store path (.db for SQLite, .json for JSON)." type:"path"`
	Debug   bool   `help:"Enable debug logging to stderr."`

	Init   cli.InitCmd   `cmd:"" help:"Initialize petminder storage and config."`
	Doctor cli.DoctorCmd `cmd:"" help:"Run health checks and diagnostics."`
	Run    cli.RunCmd    `cmd:"" help:"Run the reminder engine in the foreground."`
	Pause  cli.PauseCmd  `cmd:"" help:"Pause every reminder."`
	Resume cli.ResumeCmd `cmd:"" help:"Resume every reminder."`
	Sync   cli.SyncCmd   `cmd:"" help:"Synchronize with the remote store."`
	Dog    struct {
		Add    cli.DogAddCmd    `cmd:"" help:"Add a dog."`
		List   cli.DogListCmd   `cmd:"" help:"List dogs." default:"1"`
		Remove cli.DogRemoveCmd `cmd:"" help:"Remove a dog and its reminders."`
	} `cmd:"" help:"Manage dogs."`
	Reminder struct {
		Add     cli.ReminderAddCmd     `cmd:"" help:"Add a reminder."`
		List    cli.ReminderListCmd    `cmd:"" help:"List reminders." default:"withargs"`
		Edit    cli.ReminderEditCmd    `cmd:"" help:"Edit a reminder's action or timing."`
		Enable  cli.ReminderEnableCmd  `cmd:"" help:"Enable a reminder."`
		Disable cli.ReminderDisableCmd `cmd:"" help:"Disable a reminder."`
		Skip    cli.ReminderSkipCmd    `cmd:"" help:"Skip the next occurrence of a weekly or monthly reminder."`
		Unskip  cli.ReminderUnskipCmd  `cmd:"" help:"Undo a skip."`
		Respond cli.ReminderRespondCmd `cmd:"" help:"Answer a reminder as if its alarm had fired."`
		Remove  cli.ReminderRemoveCmd  `cmd:"" help:"Remove a reminder."`
	} `cmd:"" help:"Manage reminders."`
	Log struct {
		List cli.LogListCmd `cmd:"" help:"Show the activity log." default:"withargs"`
		Add  cli.LogAddCmd  `cmd:"" help:"Record an activity."`
	} `cmd:"" help:"Activity log."`
	Backup struct {
		Create  cli.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    cli.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore cli.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage store backups."`
	Keyring struct {
		Set    cli.KeyringSetCmd    `cmd:"" help:"Store the remote connection string in the OS keyring."`
		Get    cli.KeyringGetCmd    `cmd:"" help:"Show the stored connection string with the password masked."`
		Delete cli.KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
		Status cli.KeyringStatusCmd `cmd:"" help:"Check keyring availability." default:"1"`
	} `cmd:"" help:"Manage the remote connection string in the OS keyring."`
	DebugCmd cli.DebugCmd `cmd:"" name:"debug" help:"Debug commands for troubleshooting."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Pet care reminders with optional shared remote sync"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		errors.Fatal(err)
	}
	if CLI.Store != "" {
		cfg.StorePath = CLI.Store
	}
	cfg.Debug = cfg.Debug || CLI.Debug
	if err := cfg.Validate(); err != nil {
		errors.Fatal(err)
	}

	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: cfg.ConfigDir()}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	appCtx := &cli.Context{
		Config:     cfg,
		ConfigPath: CLI.Config,
		Ctx:        context.Background(),
	}

	err = ctx.Run(appCtx)
	if closeErr := appCtx.Close(); closeErr != nil {
		logger.Error("Failed to close", "error", closeErr)
		if err == nil {
			err = closeErr
		}
	}
	errors.Fatal(err)
}
