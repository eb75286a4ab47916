package scheduler

import (
	"strings"

	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/timing"
	"github.com/julianstephens/petminder/internal/validation"
)

// AddDog creates a dog. Without a remote store the dog keeps a pending id.
func (s *Scheduler) AddDog(name string, done func(*models.Dog, error)) {
	if done == nil {
		done = func(*models.Dog, error) {}
	}
	name = strings.TrimSpace(name)
	if err := validation.ValidateDogName(s.family, name); err != nil {
		done(nil, err)
		return
	}

	add := func(id models.ID) {
		dog := &models.Dog{ID: id, Name: name, Reminders: models.NewReminderCollection()}
		if err := s.family.AddDog(dog); err != nil {
			done(nil, err)
			return
		}
		s.committed()
		done(dog, nil)
	}

	if s.cfg.Remote == nil {
		add(models.NewPending())
		return
	}

	ctx := s.cfg.Context
	s.cfg.Spawn(func() {
		id, err := s.cfg.Remote.CreateDog(ctx, name)
		s.cfg.Post(func() {
			if err != nil {
				s.cfg.Metrics.syncFailure("create-dog")
				done(nil, errors.Sync("create-dog", err))
				return
			}
			add(id)
		})
	})
}

// RemoveDog deletes a dog with all of its reminders.
func (s *Scheduler) RemoveDog(dogID models.ID, done func(error)) {
	done = nopDone(done)
	if _, ok := s.family.Dog(dogID); !ok {
		done(errors.NotFound("dog", dogID))
		return
	}

	remove := func() {
		if _, ok := s.family.RemoveDog(dogID); !ok {
			done(errors.NotFound("dog", dogID))
			return
		}
		s.Reinitialize()
		s.committed()
		done(nil)
	}

	if s.cfg.Remote == nil || dogID.IsPending() {
		remove()
		return
	}

	ctx := s.cfg.Context
	s.cfg.Spawn(func() {
		err := s.cfg.Remote.DeleteDog(ctx, dogID)
		s.cfg.Post(func() {
			if err != nil {
				s.cfg.Metrics.syncFailure("delete-dog")
				done(errors.Sync("delete-dog", err))
				return
			}
			remove()
		})
	})
}

// AddReminder validates r and creates it for the dog. On success r carries
// its assigned id.
func (s *Scheduler) AddReminder(dogID models.ID, r *models.Reminder, done func(error)) {
	done = nopDone(done)
	if _, ok := s.family.Dog(dogID); !ok {
		done(errors.NotFound("dog", dogID))
		return
	}
	if err := validation.ValidateReminder(r); err != nil {
		done(err)
		return
	}
	if r.ID.IsZero() {
		r.ID = models.NewPending()
	}
	s.commit(change{op: opCreate, dogID: dogID, next: r}, done)
}

// EditReminder applies edit to a copy of the reminder, validates the result
// and commits it. The stored reminder is untouched if any step fails. Once the
// remote store accepts the change, edit runs again on the reminder as it is
// then, so edit must be safe to repeat.
func (s *Scheduler) EditReminder(dogID, reminderID models.ID, edit func(r *models.Reminder) error, done func(error)) {
	done = nopDone(done)
	_, r, err := s.family.Lookup(dogID, reminderID)
	if err != nil {
		done(err)
		return
	}
	c, err := updateChange(dogID, r, func(r *models.Reminder) error {
		if err := edit(r); err != nil {
			return err
		}
		return validation.ValidateReminder(r)
	})
	if err != nil {
		done(err)
		return
	}
	s.commit(c, done)
}

// ChangeTiming switches a reminder to t and restarts its timing from now.
func (s *Scheduler) ChangeTiming(dogID, reminderID models.ID, t timing.Timing, done func(error)) {
	now := s.cfg.Clock.Now()
	s.EditReminder(dogID, reminderID, func(r *models.Reminder) error {
		r.ChangeTiming(t, now)
		return nil
	}, done)
}

// SetEnabled enables or disables a reminder.
func (s *Scheduler) SetEnabled(dogID, reminderID models.ID, enabled bool, done func(error)) {
	now := s.cfg.Clock.Now()
	s.EditReminder(dogID, reminderID, func(r *models.Reminder) error {
		r.SetEnabled(enabled, now)
		return nil
	}, done)
}

// SkipNext skips the upcoming occurrence of a weekly or monthly reminder.
func (s *Scheduler) SkipNext(dogID, reminderID models.ID, done func(error)) {
	now := s.cfg.Clock.Now()
	s.EditReminder(dogID, reminderID, func(r *models.Reminder) error {
		if r.IsSkipping() {
			return errors.Invalid("reminder", "already skipping its next occurrence")
		}
		if err := r.Skip(now); err != nil {
			return errors.Invalid("reminder", "%v", err)
		}
		return nil
	}, done)
}

// UnskipNext undoes SkipNext.
func (s *Scheduler) UnskipNext(dogID, reminderID models.ID, done func(error)) {
	s.EditReminder(dogID, reminderID, func(r *models.Reminder) error {
		if !r.Unskip() {
			return errors.Invalid("reminder", "not skipping")
		}
		return nil
	}, done)
}

// RemoveReminder deletes a reminder.
func (s *Scheduler) RemoveReminder(dogID, reminderID models.ID, done func(error)) {
	done = nopDone(done)
	if _, _, err := s.family.Lookup(dogID, reminderID); err != nil {
		done(err)
		return
	}
	logger.Debug("Removing reminder", "dog", dogID, "reminder", reminderID)
	s.commit(change{op: opDelete, dogID: dogID, reminderID: reminderID}, done)
}
