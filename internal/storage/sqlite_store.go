package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/petminder/internal/constants"
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/migration"
	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/migrations"
)

type SQLiteStore struct {
	path string
	db   *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{
		path: path,
	}
}

func (s *SQLiteStore) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	db, err := openSQLite(s.path)
	if err != nil {
		return err
	}
	s.db = db

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load() error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run '%s init' first", constants.AppName)
	}

	db, err := openSQLite(s.path)
	if err != nil {
		return err
	}
	s.db = db

	return s.validateSchemaVersion()
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; the scheduler and the activity log share the handle.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

func (s *SQLiteStore) runMigrations() error {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return fmt.Errorf("failed to access sqlite migrations: %w", err)
	}

	runner := migration.NewRunner(s.db, subFS)
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Info(msg)
	})
	return err
}

func (s *SQLiteStore) validateSchemaVersion() error {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return fmt.Errorf("failed to access sqlite migrations: %w", err)
	}

	runner := migration.NewRunner(s.db, subFS)
	return runner.ValidateVersion()
}

// SaveSnapshot replaces the stored family with snap in one transaction.
func (s *SQLiteStore) SaveSnapshot(snap *models.Snapshot) error {
	if s.db == nil {
		return fmt.Errorf("storage not loaded")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM reminders"); err != nil {
		return fmt.Errorf("failed to clear reminders: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM dogs"); err != nil {
		return fmt.Errorf("failed to clear dogs: %w", err)
	}

	for i, dog := range snap.Dogs {
		if _, err := tx.Exec("INSERT INTO dogs (id, name, position) VALUES (?, ?, ?)", dog.ID.String(), dog.Name, i); err != nil {
			return fmt.Errorf("failed to save dog %s: %w", dog.Name, err)
		}
		for j, r := range dog.Reminders.All() {
			payload, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to encode reminder %s: %w", r.ID, err)
			}
			if _, err := tx.Exec(
				"INSERT INTO reminders (id, dog_id, position, mode, payload) VALUES (?, ?, ?, ?, ?)",
				r.ID.String(), dog.ID.String(), j, r.Mode().String(), string(payload),
			); err != nil {
				return fmt.Errorf("failed to save reminder %s: %w", r.ID, err)
			}
		}
	}

	_, err = tx.Exec(`
		INSERT INTO state (id, snapshot_version, saved_at, is_paused, last_pause, last_unpause)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			snapshot_version = excluded.snapshot_version,
			saved_at = excluded.saved_at,
			is_paused = excluded.is_paused,
			last_pause = excluded.last_pause,
			last_unpause = excluded.last_unpause`,
		snap.Version, formatTime(snap.SavedAt), snap.Paused, formatTime(snap.LastPause), formatTime(snap.LastUnpause),
	)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSnapshot() (*models.Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("storage not loaded")
	}

	snap := emptySnapshot()
	var savedAt, lastPause, lastUnpause string
	err := s.db.QueryRow(
		"SELECT snapshot_version, saved_at, is_paused, last_pause, last_unpause FROM state WHERE id = 1",
	).Scan(&snap.Version, &savedAt, &snap.Paused, &lastPause, &lastUnpause)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	if snap.SavedAt, err = parseTime(savedAt); err != nil {
		return nil, err
	}
	if snap.LastPause, err = parseTime(lastPause); err != nil {
		return nil, err
	}
	if snap.LastUnpause, err = parseTime(lastUnpause); err != nil {
		return nil, err
	}

	dogs, err := s.loadDogs()
	if err != nil {
		return nil, err
	}
	snap.Dogs = dogs
	return snap, nil
}

func (s *SQLiteStore) loadDogs() ([]*models.Dog, error) {
	rows, err := s.db.Query("SELECT id, name FROM dogs ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query dogs: %w", err)
	}
	defer rows.Close()

	var dogs []*models.Dog
	byID := make(map[string]*models.Dog)
	for rows.Next() {
		var rawID, name string
		if err := rows.Scan(&rawID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan dog: %w", err)
		}
		id, err := models.ParseID(rawID)
		if err != nil {
			return nil, fmt.Errorf("corrupt dog row: %w", err)
		}
		dog := &models.Dog{ID: id, Name: name, Reminders: models.NewReminderCollection()}
		dogs = append(dogs, dog)
		byID[rawID] = dog
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rrows, err := s.db.Query("SELECT dog_id, payload FROM reminders ORDER BY dog_id, position")
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rrows.Close()

	for rrows.Next() {
		var dogID, payload string
		if err := rrows.Scan(&dogID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		dog, ok := byID[dogID]
		if !ok {
			logger.Warn("Skipping reminder for unknown dog", "dog", dogID)
			continue
		}
		var r models.Reminder
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("corrupt reminder row for dog %s: %w", dogID, err)
		}
		if err := dog.Reminders.Add(&r); err != nil {
			return nil, err
		}
	}
	return dogs, rrows.Err()
}

func (s *SQLiteStore) AddLogEntry(ctx context.Context, entry models.LogEntry) error {
	if s.db == nil {
		return fmt.Errorf("storage not loaded")
	}
	reminderID := ""
	if !entry.ReminderID.IsZero() {
		reminderID = entry.ReminderID.String()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO logs (dog_id, reminder_id, action, custom_name, note, logged_at) VALUES (?, ?, ?, ?, ?, ?)",
		entry.DogID.String(), reminderID, string(entry.Action), entry.CustomName, entry.Note, formatTime(entry.LoggedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to add log entry: %w", err)
	}
	return nil
}

// GetLogEntries returns the dog's entries logged at or after since, newest
// first. A zero dogID returns entries for every dog.
func (s *SQLiteStore) GetLogEntries(dogID models.ID, since time.Time) ([]models.LogEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("storage not loaded")
	}

	query := "SELECT id, dog_id, reminder_id, action, custom_name, note, logged_at FROM logs WHERE logged_at >= ?"
	args := []any{formatTime(since)}
	if !dogID.IsZero() {
		query += " AND dog_id = ?"
		args = append(args, dogID.String())
	}
	query += " ORDER BY logged_at DESC, id DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var rawDog, rawReminder, action, loggedAt string
		if err := rows.Scan(&e.ID, &rawDog, &rawReminder, &action, &e.CustomName, &e.Note, &loggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		if e.DogID, err = models.ParseID(rawDog); err != nil {
			return nil, fmt.Errorf("corrupt log entry %d: %w", e.ID, err)
		}
		if rawReminder != "" {
			if e.ReminderID, err = models.ParseID(rawReminder); err != nil {
				return nil, fmt.Errorf("corrupt log entry %d: %w", e.ID, err)
			}
		}
		e.Action = models.Action(action)
		if e.LoggedAt, err = parseTime(loggedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) GetConfigPath() string {
	return s.path
}

// Times are stored as UTC RFC 3339 text so they sort lexically.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storedTimeFormat)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}
