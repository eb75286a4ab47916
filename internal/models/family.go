package models

import (
	"fmt"
	"slices"
	"strings"

	"github.com/julianstephens/petminder/internal/errors"
)

// Dog is the parent entity reminders belong to.
type Dog struct {
	ID        ID
	Name      string
	Reminders *ReminderCollection
}

func NewDog(name string) *Dog {
	return &Dog{ID: NewPending(), Name: name, Reminders: NewReminderCollection()}
}

// Family holds every dog the engine schedules for.
type Family struct {
	dogs []*Dog
}

func NewFamily(dogs ...*Dog) *Family {
	return &Family{dogs: slices.Clone(dogs)}
}

func (f *Family) Dogs() []*Dog { return slices.Clone(f.dogs) }

func (f *Family) Dog(id ID) (*Dog, bool) {
	for _, d := range f.dogs {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}

// DogByRef resolves a dog by id or, failing that, by case-insensitive name.
func (f *Family) DogByRef(ref string) (*Dog, error) {
	if id, err := ParseID(ref); err == nil {
		if d, ok := f.Dog(id); ok {
			return d, nil
		}
	}
	for _, d := range f.dogs {
		if strings.EqualFold(d.Name, ref) {
			return d, nil
		}
	}
	return nil, errors.NotFound("dog", ref)
}

func (f *Family) AddDog(d *Dog) error {
	if _, exists := f.Dog(d.ID); exists {
		return fmt.Errorf("dog %s already exists", d.ID)
	}
	if d.Reminders == nil {
		d.Reminders = NewReminderCollection()
	}
	f.dogs = append(f.dogs, d)
	return nil
}

// ReassignDog replaces a pending dog id with the one the remote store issued.
func (f *Family) ReassignDog(from, to ID) error {
	d, ok := f.Dog(from)
	if !ok {
		return errors.NotFound("dog", from)
	}
	if _, taken := f.Dog(to); taken {
		return fmt.Errorf("dog %s already exists", to)
	}
	d.ID = to
	return nil
}

func (f *Family) RemoveDog(id ID) (*Dog, bool) {
	i := slices.IndexFunc(f.dogs, func(d *Dog) bool { return d.ID == id })
	if i < 0 {
		return nil, false
	}
	d := f.dogs[i]
	f.dogs = slices.Delete(f.dogs, i, i+1)
	return d, true
}

// Entry pairs a reminder with its dog.
type Entry struct {
	Dog      *Dog
	Reminder *Reminder
}

// Entries lists every reminder of every dog.
func (f *Family) Entries() []Entry {
	var out []Entry
	for _, d := range f.dogs {
		for _, r := range d.Reminders.All() {
			out = append(out, Entry{Dog: d, Reminder: r})
		}
	}
	return out
}

// Lookup finds a reminder of a dog. The error wraps errors.ErrNotFound.
func (f *Family) Lookup(dogID, reminderID ID) (*Dog, *Reminder, error) {
	d, ok := f.Dog(dogID)
	if !ok {
		return nil, nil, errors.NotFound("dog", dogID)
	}
	r, ok := d.Reminders.Find(reminderID)
	if !ok {
		return d, nil, errors.NotFound("reminder", reminderID)
	}
	return d, r, nil
}
