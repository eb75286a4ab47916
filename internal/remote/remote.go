// Package remote talks to the shared source of truth for dogs and reminders.
package remote

import (
	"context"

	"github.com/julianstephens/petminder/internal/models"
)

// Store is the remote persistence the engine mutates before touching local
// state. Ids passed in are always assigned ones; pending reminders and dogs
// stay local until a sync creates them.
type Store interface {
	CreateDog(ctx context.Context, name string) (models.ID, error)
	DeleteDog(ctx context.Context, dogID models.ID) error
	FetchDogs(ctx context.Context) ([]*models.Dog, error)

	Create(ctx context.Context, dogID models.ID, r *models.Reminder) (models.ID, error)
	Update(ctx context.Context, dogID models.ID, r *models.Reminder) error
	Delete(ctx context.Context, dogID, reminderID models.ID) error
	FetchAll(ctx context.Context, dogID models.ID) ([]*models.Reminder, error)
}

// ChangeFeed delivers the ids of dogs whose reminders changed remotely.
type ChangeFeed interface {
	Changes() <-chan models.ID
	Close() error
}

var (
	_ Store      = (*Memory)(nil)
	_ Store      = (*PostgresStore)(nil)
	_ ChangeFeed = (*Listener)(nil)
)
