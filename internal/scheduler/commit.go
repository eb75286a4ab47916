package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/models"
)

type op int

const (
	opCreate op = iota
	opUpdate
	opDelete
)

func (o op) String() string {
	switch o {
	case opCreate:
		return "create"
	case opUpdate:
		return "update"
	default:
		return "delete"
	}
}

// change is one reminder mutation waiting for the remote store.
type change struct {
	op    op
	dogID models.ID
	// reminderID is the target of an update or delete.
	reminderID models.ID
	// next is the value sent to the remote store for create and update.
	next *models.Reminder
	// mutate turns the current reminder into the updated one. It runs again
	// on the live reminder once the store accepted next, so changes applied
	// while the call was in flight are kept.
	mutate func(r *models.Reminder) error
	// unchanged marks an update whose remote value is already next. It is
	// applied locally without a remote call.
	unchanged bool
}

func (c change) target() models.ID {
	if c.op == opCreate {
		return c.next.ID
	}
	return c.reminderID
}

// localOnly reports whether the change skips the remote store: there is no
// store, or the dog or reminder has not been created remotely yet.
func (s *Scheduler) localOnly(c change) bool {
	if s.cfg.Remote == nil || c.dogID.IsPending() || c.unchanged {
		return true
	}
	return c.op != opCreate && c.target().IsPending()
}

// updateChange builds an update change from the reminder's current value.
func updateChange(dogID models.ID, r *models.Reminder, mutate func(*models.Reminder) error) (change, error) {
	next := r.Clone()
	if err := mutate(next); err != nil {
		return change{}, err
	}
	next.ID = r.ID
	return change{op: opUpdate, dogID: dogID, reminderID: r.ID, next: next, mutate: mutate}, nil
}

// commit sends c to the remote store and applies it locally only once the
// store accepted it. A failure leaves local state exactly as it was.
func (s *Scheduler) commit(c change, done func(error)) {
	done = nopDone(done)

	if s.localOnly(c) {
		done(s.applyAndReinitialize(c))
		return
	}

	ctx := s.cfg.Context
	s.cfg.Spawn(func() {
		assigned, err := s.send(ctx, c)
		s.cfg.Post(func() {
			if err != nil {
				s.cfg.Metrics.syncFailure(c.op.String())
				logger.Error("Remote change failed; local state unchanged", "op", c.op, "dog", c.dogID, "reminder", c.target(), "error", err)
				done(errors.Sync(c.op.String(), err))
				return
			}
			if c.op == opCreate {
				c.next.ID = assigned
			}
			done(s.applyAndReinitialize(c))
		})
	})
}

// commitBatch sends every change concurrently and applies all of them, then
// after, only if every remote call succeeded.
func (s *Scheduler) commitBatch(label string, changes []change, after func(), done func(error)) {
	done = nopDone(done)

	var remoteChanges []change
	for _, c := range changes {
		if !s.localOnly(c) {
			remoteChanges = append(remoteChanges, c)
		}
	}

	finish := func() {
		for _, c := range changes {
			if err := s.apply(c); err != nil {
				logger.Warn("Batch change could not be applied", "op", c.op, "reminder", c.target(), "error", err)
			}
		}
		if after != nil {
			after()
		}
		s.Reinitialize()
		s.committed()
		done(nil)
	}

	if len(remoteChanges) == 0 {
		finish()
		return
	}

	ctx := s.cfg.Context
	s.cfg.Spawn(func() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for _, c := range remoteChanges {
			g.Go(func() error {
				_, err := s.send(gctx, c)
				return err
			})
		}
		err := g.Wait()
		s.cfg.Post(func() {
			if err != nil {
				s.cfg.Metrics.syncFailure(label)
				logger.Error("Remote batch failed; local state unchanged", "batch", label, "changes", len(remoteChanges), "error", err)
				done(errors.Sync(label, err))
				return
			}
			finish()
		})
	})
}

func (s *Scheduler) send(ctx context.Context, c change) (models.ID, error) {
	switch c.op {
	case opCreate:
		return s.cfg.Remote.Create(ctx, c.dogID, c.next)
	case opUpdate:
		return c.next.ID, s.cfg.Remote.Update(ctx, c.dogID, c.next)
	default:
		return c.reminderID, s.cfg.Remote.Delete(ctx, c.dogID, c.reminderID)
	}
}

func (s *Scheduler) applyAndReinitialize(c change) error {
	if err := s.apply(c); err != nil {
		logger.Warn("Change could not be applied", "op", c.op, "dog", c.dogID, "reminder", c.target(), "error", err)
		return err
	}
	s.Reinitialize()
	s.committed()
	return nil
}

// apply mutates local state. Lookups happen here, on the loop, because the
// dog or reminder may have gone away or changed while the remote call was in
// flight. Updates re-run their mutation on the reminder as it is now.
func (s *Scheduler) apply(c change) error {
	dog, ok := s.family.Dog(c.dogID)
	if !ok {
		return errors.NotFound("dog", c.dogID)
	}
	switch c.op {
	case opCreate:
		return dog.Reminders.Add(c.next)
	case opUpdate:
		live, ok := dog.Reminders.Find(c.reminderID)
		if !ok {
			return errors.NotFound("reminder", c.reminderID)
		}
		next := live.Clone()
		err := c.mutate(next)
		if err == nil {
			next.ID = live.ID
			err = dog.Reminders.Update(next)
		}
		if !live.SyncEqual(c.next) {
			s.resend(c.dogID, live)
		}
		return err
	default:
		if _, ok := dog.Reminders.Remove(c.reminderID); !ok {
			return errors.NotFound("reminder", c.reminderID)
		}
		return nil
	}
}

// resend pushes the local value of a reminder whose remote copy was written
// from an older state.
func (s *Scheduler) resend(dogID models.ID, r *models.Reminder) {
	if s.cfg.Remote == nil || dogID.IsPending() || r.ID.IsPending() {
		return
	}
	ctx := s.cfg.Context
	value := r.Clone()
	logger.Debug("Remote copy is behind; sending local value", "dog", dogID, "reminder", r.ID)
	s.cfg.Spawn(func() {
		if err := s.cfg.Remote.Update(ctx, dogID, value); err != nil {
			s.cfg.Metrics.syncFailure("resend")
			logger.Error("Failed to resend reminder", "dog", dogID, "reminder", value.ID, "error", err)
		}
	})
}
