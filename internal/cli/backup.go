package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/petminder/internal/backup"
	"github.com/julianstephens/petminder/internal/constants"
)

// backupManager works on the store file directly. Restoring must not go
// through the app, whose Close would write the old snapshot back.
func (c *Context) backupManager() (*backup.Manager, error) {
	if _, err := os.Stat(c.Config.StorePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no store at %s; run `petminder init` first", c.Config.StorePath)
	}
	mgr := backup.NewManager(c.Config.StorePath)
	if c.AppOptions.Clock != nil {
		mgr.WithClock(c.AppOptions.Clock)
	}
	return mgr, nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}
	backupPath, err := mgr.CreateBackup()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	ctx.printf("✓ Backup created: %s\n", filepath.Base(backupPath))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		ctx.printf("No backups found.\n")
		ctx.printf("Backups are stored in: %s\n", mgr.GetBackupDir())
		return nil
	}

	ctx.printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), constants.MaxBackups)
	for _, b := range backups {
		sizeKB := float64(b.Size) / 1024.0
		ctx.printf("  %s  %s  (%.1f KB)\n", b.Timestamp.Format("2006-01-02 15:04:05"), filepath.Base(b.Path), sizeKB)
	}
	ctx.printf("\nBackup directory: %s\n", mgr.GetBackupDir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `short:"y" help:"Restore without asking for confirmation."`
}

func (c *BackupRestoreCmd) Run(ctx *Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}

	backupPath := c.BackupFile
	if !filepath.IsAbs(backupPath) {
		possiblePath := filepath.Join(mgr.GetBackupDir(), c.BackupFile)
		if _, err := os.Stat(possiblePath); err == nil {
			backupPath = possiblePath
		}
	}
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupPath)
	}

	if !c.Yes {
		ctx.printf("⚠️  WARNING: This will replace your current store with the backup.\n")
		ctx.printf("A backup of your current store will be created before restoring.\n")
		ctx.printf("\nRestore from: %s\n", filepath.Base(backupPath))
		if !ctx.confirm("Continue? [y/N]: ") {
			ctx.printf("Restore cancelled.\n")
			return nil
		}
	}

	if err := mgr.RestoreBackup(backupPath); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	ctx.printf("✓ Store restored successfully!\n")
	ctx.printf("Restart any running petminder processes to use the restored store.\n")
	return nil
}
