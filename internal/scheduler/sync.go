package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/reconcile"
)

// ErrNoRemote is returned by sync operations when no remote store is set.
var ErrNoRemote = errors.New("no remote store configured")

type fetched struct {
	// dogs is the remote dog list; nil for a single-dog sync.
	dogs        []*models.Dog
	createdDogs map[models.ID]models.ID
	reminders   map[models.ID][]*models.Reminder
}

type pendingCreate struct {
	dogID    models.ID
	reminder *models.Reminder
}

// SyncAll reconciles the whole family with the remote store: pending dogs
// are created, dogs deleted remotely are dropped, each dog's reminders are
// diffed and merged, and pending reminders are pushed.
func (s *Scheduler) SyncAll(done func(error)) {
	s.sync(nil, done)
}

// SyncDog reconciles a single dog's reminders. The change feed calls this.
func (s *Scheduler) SyncDog(dogID models.ID, done func(error)) {
	s.sync(&dogID, done)
}

func (s *Scheduler) sync(only *models.ID, done func(error)) {
	done = nopDone(done)
	if s.cfg.Remote == nil {
		done(ErrNoRemote)
		return
	}

	var pendingDogs []*models.Dog
	var targets []models.ID
	if only != nil {
		dog, ok := s.family.Dog(*only)
		if !ok {
			done(errors.NotFound("dog", *only))
			return
		}
		if dog.ID.IsPending() {
			// Pending dogs are created by a full sync.
			done(nil)
			return
		}
		targets = []models.ID{dog.ID}
	} else {
		for _, d := range s.family.Dogs() {
			if d.ID.IsPending() {
				pendingDogs = append(pendingDogs, &models.Dog{ID: d.ID, Name: d.Name})
			}
		}
	}

	ctx := s.cfg.Context
	s.cfg.Spawn(func() {
		f, err := s.fetch(ctx, only == nil, pendingDogs, targets)
		s.cfg.Post(func() {
			if f != nil {
				// Dogs created remotely before a later failure must still get
				// their ids locally, or the next sync would create them twice.
				s.reassignDogs(f.createdDogs)
			}
			if err != nil {
				s.cfg.Metrics.syncFailure("fetch")
				logger.Error("Sync fetch failed; local state unchanged", "error", err)
				done(errors.Sync("fetch", err))
				return
			}
			s.merge(f)
			s.pushPending(done)
		})
	})
}

// fetch runs off the loop and must not touch the family.
func (s *Scheduler) fetch(ctx context.Context, full bool, pendingDogs []*models.Dog, targets []models.ID) (*fetched, error) {
	f := &fetched{
		createdDogs: make(map[models.ID]models.ID),
		reminders:   make(map[models.ID][]*models.Reminder),
	}

	if full {
		dogs, err := s.cfg.Remote.FetchDogs(ctx)
		if err != nil {
			return f, err
		}
		for _, d := range pendingDogs {
			id, err := s.cfg.Remote.CreateDog(ctx, d.Name)
			if err != nil {
				return f, err
			}
			f.createdDogs[d.ID] = id
			dogs = append(dogs, &models.Dog{ID: id, Name: d.Name})
		}
		f.dogs = dogs
		targets = targets[:0]
		for _, d := range dogs {
			targets = append(targets, d.ID)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range targets {
		g.Go(func() error {
			rs, err := s.cfg.Remote.FetchAll(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			f.reminders[id] = rs
			mu.Unlock()
			return nil
		})
	}
	return f, g.Wait()
}

func (s *Scheduler) reassignDogs(created map[models.ID]models.ID) {
	for from, to := range created {
		if err := s.family.ReassignDog(from, to); err != nil {
			logger.Warn("Could not reassign dog id", "from", from, "to", to, "error", err)
		}
	}
}

// merge applies a successful fetch on the loop.
func (s *Scheduler) merge(f *fetched) {
	results := make(map[models.ID]reconcile.Result, len(f.reminders))
	changed := len(f.createdDogs) > 0
	for dogID, remoteSet := range f.reminders {
		dog, ok := s.family.Dog(dogID)
		if !ok {
			dog = &models.Dog{ID: dogID, Reminders: models.NewReminderCollection()}
		}
		res := reconcile.Diff(dog.Reminders.All(), remoteSet)
		results[dogID] = res
		changed = changed || res.Changed()
	}

	var staleDogs []models.ID
	if f.dogs != nil {
		remoteDogs := make(map[models.ID]*models.Dog, len(f.dogs))
		for _, d := range f.dogs {
			remoteDogs[d.ID] = d
		}
		for _, d := range s.family.Dogs() {
			if !d.ID.IsPending() && remoteDogs[d.ID] == nil {
				staleDogs = append(staleDogs, d.ID)
			}
		}
		for _, rd := range f.dogs {
			if local, ok := s.family.Dog(rd.ID); !ok || local.Name != rd.Name {
				changed = true
			}
		}
		changed = changed || len(staleDogs) > 0
	}

	if changed && s.cfg.BeforeReconcile != nil {
		s.cfg.BeforeReconcile()
	}

	for _, id := range staleDogs {
		s.family.RemoveDog(id)
		logger.Info("Dog removed remotely", "dog", id)
	}
	for _, rd := range f.dogs {
		if local, ok := s.family.Dog(rd.ID); ok {
			local.Name = rd.Name
			continue
		}
		_ = s.family.AddDog(&models.Dog{ID: rd.ID, Name: rd.Name, Reminders: models.NewReminderCollection()})
	}

	for dogID, res := range results {
		dog, ok := s.family.Dog(dogID)
		if !ok {
			continue
		}
		s.cfg.Metrics.reconcile(res)
		removed := reconcile.Apply(dog.Reminders, res)
		if res.Changed() {
			logger.Info("Reconciled reminders", "dog", dog.Name,
				"unchanged", len(res.Unchanged), "created", len(res.Created),
				"updated", len(res.Updated), "deleted", len(removed))
		}
	}

	s.Reinitialize()
	s.committed()
}

// pushPending creates every pending reminder of an assigned dog remotely and
// swaps in the assigned ids.
func (s *Scheduler) pushPending(done func(error)) {
	var jobs []pendingCreate
	for _, e := range s.family.Entries() {
		if !e.Dog.ID.IsPending() && e.Reminder.ID.IsPending() {
			jobs = append(jobs, pendingCreate{dogID: e.Dog.ID, reminder: e.Reminder.Clone()})
		}
	}
	if len(jobs) == 0 {
		done(nil)
		return
	}

	ctx := s.cfg.Context
	s.cfg.Spawn(func() {
		assigned := make([]models.ID, len(jobs))
		var errs []error
		for i, j := range jobs {
			id, err := s.cfg.Remote.Create(ctx, j.dogID, j.reminder)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			assigned[i] = id
		}
		s.cfg.Post(func() {
			for i, j := range jobs {
				if assigned[i].IsZero() {
					continue
				}
				dog, ok := s.family.Dog(j.dogID)
				if !ok {
					continue
				}
				if err := dog.Reminders.Reassign(j.reminder.ID, assigned[i]); err != nil {
					logger.Warn("Could not reassign reminder id", "from", j.reminder.ID, "to", assigned[i], "error", err)
				}
			}
			s.Reinitialize()
			s.committed()
			if len(errs) > 0 {
				s.cfg.Metrics.syncFailure("create")
				done(errors.Sync("create", errors.Join(errs...)))
				return
			}
			done(nil)
		})
	})
}
