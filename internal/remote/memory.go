package remote

import (
	"context"
	"sync"

	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/models"
)

// Memory is an in-process Store. It backs tests and `--remote memory` dry
// runs. Fail makes the next calls return an error.
type Memory struct {
	mu        sync.Mutex
	nextID    int64
	dogs      map[models.ID]string
	reminders map[models.ID]map[models.ID]*models.Reminder
	calls     []string

	// Fail, when set, is returned by every call until cleared.
	Fail error
}

func NewMemory() *Memory {
	return &Memory{
		dogs:      make(map[models.ID]string),
		reminders: make(map[models.ID]map[models.ID]*models.Reminder),
	}
}

// Calls lists the operations performed so far, e.g. "update 3".
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *Memory) record(op string, id models.ID) error {
	m.calls = append(m.calls, op+" "+id.String())
	return m.Fail
}

func (m *Memory) newID() models.ID {
	m.nextID++
	return models.Assigned(m.nextID)
}

func (m *Memory) CreateDog(_ context.Context, name string) (models.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("create-dog", models.ID{}); err != nil {
		return models.ID{}, err
	}
	id := m.newID()
	m.dogs[id] = name
	m.reminders[id] = make(map[models.ID]*models.Reminder)
	return id, nil
}

func (m *Memory) DeleteDog(_ context.Context, dogID models.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("delete-dog", dogID); err != nil {
		return err
	}
	if _, ok := m.dogs[dogID]; !ok {
		return errors.NotFound("dog", dogID)
	}
	delete(m.dogs, dogID)
	delete(m.reminders, dogID)
	return nil
}

func (m *Memory) FetchDogs(context.Context) ([]*models.Dog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("fetch-dogs", models.ID{}); err != nil {
		return nil, err
	}
	out := make([]*models.Dog, 0, len(m.dogs))
	for id, name := range m.dogs {
		out = append(out, &models.Dog{ID: id, Name: name, Reminders: models.NewReminderCollection()})
	}
	return out, nil
}

func (m *Memory) Create(_ context.Context, dogID models.ID, r *models.Reminder) (models.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("create", dogID); err != nil {
		return models.ID{}, err
	}
	set, ok := m.reminders[dogID]
	if !ok {
		return models.ID{}, errors.NotFound("dog", dogID)
	}
	cp := r.Clone()
	cp.ID = m.newID()
	cp.PresentationHandled = false
	set[cp.ID] = cp
	return cp.ID, nil
}

func (m *Memory) Update(_ context.Context, dogID models.ID, r *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("update", r.ID); err != nil {
		return err
	}
	if _, ok := m.reminders[dogID][r.ID]; !ok {
		return errors.NotFound("reminder", r.ID)
	}
	cp := r.Clone()
	cp.PresentationHandled = false
	m.reminders[dogID][r.ID] = cp
	return nil
}

func (m *Memory) Delete(_ context.Context, dogID, reminderID models.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("delete", reminderID); err != nil {
		return err
	}
	if _, ok := m.reminders[dogID][reminderID]; !ok {
		return errors.NotFound("reminder", reminderID)
	}
	delete(m.reminders[dogID], reminderID)
	return nil
}

func (m *Memory) FetchAll(_ context.Context, dogID models.ID) ([]*models.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("fetch", dogID); err != nil {
		return nil, err
	}
	set, ok := m.reminders[dogID]
	if !ok {
		return nil, errors.NotFound("dog", dogID)
	}
	out := make([]*models.Reminder, 0, len(set))
	for _, r := range set {
		out = append(out, r.Clone())
	}
	return out, nil
}

// Put stores r directly, bypassing the call log. Tests use it to simulate
// edits made by another client.
func (m *Memory) Put(dogID models.ID, r *models.Reminder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reminders[dogID]; !ok {
		m.reminders[dogID] = make(map[models.ID]*models.Reminder)
	}
	m.reminders[dogID][r.ID] = r.Clone()
	if v, ok := r.ID.Value(); ok && v > m.nextID {
		m.nextID = v
	}
}

// Remove deletes a reminder directly, bypassing the call log.
func (m *Memory) Remove(dogID, reminderID models.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reminders[dogID], reminderID)
}

// PutDog registers a dog directly.
func (m *Memory) PutDog(id models.ID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dogs[id] = name
	if _, ok := m.reminders[id]; !ok {
		m.reminders[id] = make(map[models.ID]*models.Reminder)
	}
	if v, ok := id.Value(); ok && v > m.nextID {
		m.nextID = v
	}
}
