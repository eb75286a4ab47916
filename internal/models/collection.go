package models

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/timing"
)

// ReminderCollection owns the reminders of one dog and keeps them sorted.
type ReminderCollection struct {
	reminders []*Reminder
}

func NewReminderCollection(reminders ...*Reminder) *ReminderCollection {
	c := &ReminderCollection{reminders: slices.Clone(reminders)}
	c.Sort()
	return c
}

func (c *ReminderCollection) Len() int { return len(c.reminders) }

// All returns the reminders in sort order. The slice is a copy; the
// reminders are not.
func (c *ReminderCollection) All() []*Reminder { return slices.Clone(c.reminders) }

func (c *ReminderCollection) Find(id ID) (*Reminder, bool) {
	for _, r := range c.reminders {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Add inserts r. Adding an id that is already present is an error.
func (c *ReminderCollection) Add(r *Reminder) error {
	if _, exists := c.Find(r.ID); exists {
		return fmt.Errorf("reminder %s already exists", r.ID)
	}
	c.reminders = append(c.reminders, r)
	c.Sort()
	return nil
}

// Update copies src into the reminder with the same id, in place.
func (c *ReminderCollection) Update(src *Reminder) error {
	r, ok := c.Find(src.ID)
	if !ok {
		return errors.NotFound("reminder", src.ID)
	}
	r.CopyFrom(src)
	c.Sort()
	return nil
}

// Reassign replaces a pending id with the one the remote store issued.
func (c *ReminderCollection) Reassign(from, to ID) error {
	r, ok := c.Find(from)
	if !ok {
		return errors.NotFound("reminder", from)
	}
	if _, taken := c.Find(to); taken {
		return fmt.Errorf("reminder %s already exists", to)
	}
	r.ID = to
	c.Sort()
	return nil
}

// Remove deletes and returns the reminder with id.
func (c *ReminderCollection) Remove(id ID) (*Reminder, bool) {
	i := slices.IndexFunc(c.reminders, func(r *Reminder) bool { return r.ID == id })
	if i < 0 {
		return nil, false
	}
	r := c.reminders[i]
	c.reminders = slices.Delete(c.reminders, i, i+1)
	return r, true
}

// Sort orders by mode (one-time, countdown, weekly, monthly), then by the
// mode's natural key, then by id. The order is total.
func (c *ReminderCollection) Sort() {
	slices.SortStableFunc(c.reminders, CompareReminders)
}

// CompareReminders implements the collection order.
func CompareReminders(a, b *Reminder) int {
	if n := cmp.Compare(a.Mode(), b.Mode()); n != 0 {
		return n
	}
	if n := compareTiming(a.Timing, b.Timing); n != 0 {
		return n
	}
	return a.ID.Compare(b.ID)
}

func compareTiming(a, b timing.Timing) int {
	switch x := a.(type) {
	case *timing.OneTime:
		return x.Date.Compare(b.(*timing.OneTime).Date)
	case *timing.Countdown:
		return cmp.Compare(x.Duration, b.(*timing.Countdown).Duration)
	case *timing.Weekly:
		y := b.(*timing.Weekly)
		return cmp.Or(
			cmp.Compare(x.Hour, y.Hour),
			cmp.Compare(x.Minute, y.Minute),
			cmp.Compare(x.EarliestWeekday(), y.EarliestWeekday()),
		)
	case *timing.Monthly:
		y := b.(*timing.Monthly)
		return cmp.Or(
			cmp.Compare(x.Day, y.Day),
			cmp.Compare(x.Hour, y.Hour),
			cmp.Compare(x.Minute, y.Minute),
		)
	}
	return 0
}
