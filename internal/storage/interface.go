// Package storage persists the local snapshot of the family and the activity
// log. SQLite is the default; a path ending in .json selects the JSON store.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/julianstephens/petminder/internal/models"
)

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Snapshot. LoadSnapshot returns an empty snapshot when nothing has been
	// saved yet.
	SaveSnapshot(*models.Snapshot) error
	LoadSnapshot() (*models.Snapshot, error)

	// Activity log
	AddLogEntry(ctx context.Context, entry models.LogEntry) error
	GetLogEntries(dogID models.ID, since time.Time) ([]models.LogEntry, error)

	// Utils
	GetConfigPath() string
}

// New picks the store implementation from the path's extension.
func New(path string) Provider {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return NewJSONStore(path)
	}
	return NewSQLiteStore(path)
}

func emptySnapshot() *models.Snapshot {
	return &models.Snapshot{Version: models.SnapshotVersion, Dogs: []*models.Dog{}}
}
