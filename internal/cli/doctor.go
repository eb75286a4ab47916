package cli

import (
	"fmt"
	"time"

	"github.com/julianstephens/petminder/internal/keyring"
	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/storage"
	"github.com/julianstephens/petminder/internal/validation"
)

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *Context) error {
	ctx.printf("Running diagnostics...\n\n")

	hasError := false
	report := func(name string, err error, warnOnly bool) {
		switch {
		case err == nil:
			ctx.printf("✓ %s: OK\n", name)
		case warnOnly:
			ctx.printf("⚠ %s: WARNING\n", name)
			ctx.printf("   %v\n", err)
		default:
			ctx.printf("❌ %s: FAIL\n", name)
			ctx.printf("   Error: %v\n", err)
			hasError = true
		}
	}

	report("Configuration", ctx.Config.Validate(), false)

	snap, err := checkStore(ctx)
	report("Store reachable", err, false)

	if snap != nil {
		report("Data validation", checkSnapshot(snap), false)
	} else {
		ctx.printf("⊘ Data validation: SKIPPED (store not reachable)\n")
	}

	report("Backups present", checkBackupsPresent(ctx), true)
	report("Keyring", checkKeyring(), true)

	if snap != nil {
		report("Remote store", checkRemote(ctx), false)
	}

	report("Clock/timezone", checkClockTimezone(ctx), false)

	ctx.printf("\n")
	if hasError {
		ctx.printf("Diagnostics completed with errors.\n")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.printf("All diagnostics passed!\n")
	return nil
}

// checkStore opens the store on its own so a broken remote does not hide
// the local result. Load also rejects a schema newer than this build.
func checkStore(ctx *Context) (*models.Snapshot, error) {
	store := storage.New(ctx.Config.StorePath)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	defer store.Close()

	snap, err := store.LoadSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return snap, nil
}

func checkSnapshot(snap *models.Snapshot) error {
	dogIDs := make(map[models.ID]bool)
	reminderIDs := make(map[models.ID]bool)
	for _, dog := range snap.Dogs {
		if dogIDs[dog.ID] {
			return fmt.Errorf("duplicate dog ID found: %s", dog.ID)
		}
		dogIDs[dog.ID] = true
		if dog.Reminders == nil {
			continue
		}
		for _, r := range dog.Reminders.All() {
			if reminderIDs[r.ID] {
				return fmt.Errorf("duplicate reminder ID found: %s", r.ID)
			}
			reminderIDs[r.ID] = true
			if err := validation.ValidateReminder(r); err != nil {
				return fmt.Errorf("%s for %s: %w", r.DisplayName(), dog.Name, err)
			}
		}
	}
	return nil
}

func checkBackupsPresent(ctx *Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with 'petminder backup create'")
	}
	return nil
}

func checkKeyring() error {
	if !keyring.IsAvailable() {
		return keyring.ErrKeyringUnavailable
	}
	return nil
}

// checkRemote opens the app, which connects to the remote store when one is
// configured.
func checkRemote(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if !a.HasRemote() {
		ctx.printf("   Note: no remote store configured, running local-only\n")
	}
	return nil
}

func checkClockTimezone(ctx *Context) error {
	now := time.Now()
	if ctx.AppOptions.Clock != nil {
		now = ctx.AppOptions.Clock.Now()
	}
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}

	loc, err := ctx.Config.Location()
	if err != nil {
		return err
	}
	if loc == time.UTC {
		ctx.printf("   Note: timezone is UTC\n")
	}
	return nil
}
