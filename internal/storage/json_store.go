package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/julianstephens/petminder/internal/constants"
	"github.com/julianstephens/petminder/internal/models"
)

type Store struct {
	Version  int               `json:"version"`
	Snapshot *models.Snapshot  `json:"snapshot"`
	Logs     []models.LogEntry `json:"logs"`
}

// JSONStore keeps everything in one file that is rewritten on every change.
type JSONStore struct {
	path  string
	mu    sync.Mutex
	store *Store
}

func NewJSONStore(configPath string) *JSONStore {
	return &JSONStore{
		path: configPath,
	}
}

func (s *JSONStore) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("storage already initialized at %s", s.path)
	}

	s.store = &Store{Version: 1, Snapshot: emptySnapshot(), Logs: []models.LogEntry{}}
	return s.save()
}

func (s *JSONStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage not initialized, run '%s init' first", constants.AppName)
		}
		return fmt.Errorf("failed to read storage: %w", err)
	}

	s.store = &Store{}
	if err := json.Unmarshal(data, s.store); err != nil {
		return fmt.Errorf("failed to parse storage: %w", err)
	}
	if s.store.Snapshot == nil {
		s.store.Snapshot = emptySnapshot()
	}
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

// save writes to a temporary file and renames it over the store.
func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace storage: %w", err)
	}
	return nil
}

func (s *JSONStore) SaveSnapshot(snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}
	s.store.Snapshot = snap
	return s.save()
}

// LoadSnapshot re-reads the file so the result shares no state with the
// snapshot that was saved.
func (s *JSONStore) LoadSnapshot() (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, fmt.Errorf("storage not loaded")
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s.store.Snapshot, nil
}

func (s *JSONStore) AddLogEntry(_ context.Context, entry models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}
	entry.ID = int64(len(s.store.Logs) + 1)
	s.store.Logs = append(s.store.Logs, entry)
	return s.save()
}

func (s *JSONStore) GetLogEntries(dogID models.ID, since time.Time) ([]models.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, fmt.Errorf("storage not loaded")
	}

	var entries []models.LogEntry
	for _, e := range s.store.Logs {
		if !dogID.IsZero() && e.DogID != dogID {
			continue
		}
		if e.LoggedAt.Before(since) {
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].LoggedAt.Equal(entries[j].LoggedAt) {
			return entries[i].LoggedAt.After(entries[j].LoggedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

// GetConfigPath returns the path to the underlying storage file.
//
// Running multiple petminder processes against the same JSON file at the
// same time is not supported and may lose data.
func (s *JSONStore) GetConfigPath() string {
	return s.path
}
