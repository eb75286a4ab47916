package cli

import (
	"fmt"
	"strings"

	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/keyring"
	"github.com/julianstephens/petminder/internal/remote"
)

// KeyringSetCmd stores the remote store's connection string in the OS keyring.
type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string to store in the keyring."`
}

func (cmd *KeyringSetCmd) Run(ctx *Context) error {
	if err := remote.ValidateConnString(cmd.ConnectionString); err != nil {
		if !errors.Is(err, remote.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		// The keyring is encrypted, so an embedded password is allowed here.
		ctx.printf("⚠️  Warning: Connection string contains embedded credentials.\n")
		ctx.printf("   It will be stored as-is in the encrypted OS keyring.\n")
	}

	if err := keyring.SetRemoteDSN(cmd.ConnectionString); err != nil {
		return fmt.Errorf("failed to store connection string in keyring: %w", err)
	}

	ctx.printf("✓ Connection string stored in OS keyring\n")
	return nil
}

type KeyringGetCmd struct{}

func (cmd *KeyringGetCmd) Run(ctx *Context) error {
	connStr, err := keyring.GetRemoteDSN()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring. Use 'petminder keyring set' to store one")
		}
		return fmt.Errorf("failed to retrieve connection string from keyring: %w", err)
	}
	ctx.printf("%s\n", maskPassword(connStr))
	return nil
}

type KeyringDeleteCmd struct{}

func (cmd *KeyringDeleteCmd) Run(ctx *Context) error {
	if err := keyring.DeleteRemoteDSN(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return fmt.Errorf("failed to delete connection string from keyring: %w", err)
	}
	ctx.printf("✓ Connection string deleted from OS keyring\n")
	return nil
}

type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *Context) error {
	if !keyring.IsAvailable() {
		ctx.printf("❌ OS keyring is not available on this system\n")
		return keyring.ErrKeyringUnavailable
	}
	ctx.printf("✓ OS keyring is available\n")
	if _, err := keyring.GetRemoteDSN(); err == nil {
		ctx.printf("✓ Connection string is stored in keyring\n")
	} else if errors.Is(err, keyring.ErrNotFound) {
		ctx.printf("ℹ No connection string stored in keyring\n")
	}
	return nil
}

// maskPassword hides the password in URL and key=value connection strings.
func maskPassword(connStr string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		idx := strings.Index(connStr, "://")
		remaining := connStr[idx+3:]
		if atIdx := strings.LastIndex(remaining, "@"); atIdx != -1 {
			userInfo := remaining[:atIdx]
			if colonIdx := strings.Index(userInfo, ":"); colonIdx != -1 {
				return connStr[:idx+3] + userInfo[:colonIdx] + ":****" + connStr[idx+3+atIdx:]
			}
		}
		return connStr
	}

	if strings.Contains(connStr, "password=") {
		parts := strings.Fields(connStr)
		for i, part := range parts {
			if strings.HasPrefix(part, "password=") {
				parts[i] = "password=****"
			}
		}
		return strings.Join(parts, " ")
	}
	return connStr
}
