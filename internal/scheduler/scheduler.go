// Package scheduler turns the family's reminders into armed wake-up timers
// and applies every state change through one remote-first pipeline.
//
// All exported methods must run on the event loop (see Loop). Completion
// callbacks (done) are also invoked on the loop.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/julianstephens/petminder/internal/constants"
	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/remote"
	"github.com/julianstephens/petminder/internal/timing"
)

// Config wires a Scheduler to its collaborators. Only Clock and Timers are
// required.
type Config struct {
	Clock     *timing.ClockContext
	Timers    TimerService
	Presenter Presenter
	// Remote is the source of truth. Nil runs the engine local-only: changes
	// apply immediately and new dogs and reminders keep pending ids.
	Remote      remote.Store
	ActivityLog ActivityLog
	Metrics     *Metrics

	SnoozeDuration time.Duration

	// Context bounds remote calls. Defaults to context.Background().
	Context context.Context
	// Post runs fn on the event loop. Defaults to calling fn directly.
	Post func(fn func())
	// Spawn runs fn off the loop. Defaults to a new goroutine.
	Spawn func(fn func())
	// OnCommit runs after every change is applied locally.
	OnCommit func()
	// BeforeReconcile runs once before a sync modifies local state.
	BeforeReconcile func()
}

type timerKey struct {
	dog      models.ID
	reminder models.ID
	unskip   bool
}

type armedTimer struct {
	handle TimerHandle
	at     time.Time
	gen    uint64
}

// ArmedTimer describes an armed wake-up for listings and tests.
type ArmedTimer struct {
	DogID      models.ID
	ReminderID models.ID
	At         time.Time
	// Unskip marks the timer that clears a skip once the skipped date passes.
	Unskip bool
}

type Scheduler struct {
	cfg    Config
	family *models.Family
	armed  map[timerKey]armedTimer
	gen    uint64
}

func New(family *models.Family, cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = timing.NewClockContext(nil)
	}
	if cfg.Timers == nil {
		cfg.Timers = NopTimers{}
	}
	if cfg.SnoozeDuration <= 0 {
		cfg.SnoozeDuration = constants.DefaultSnoozeDuration
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.Post == nil {
		cfg.Post = func(fn func()) { fn() }
	}
	if cfg.Spawn == nil {
		cfg.Spawn = func(fn func()) { go fn() }
	}
	if family == nil {
		family = models.NewFamily()
	}
	return &Scheduler{
		cfg:    cfg,
		family: family,
		armed:  make(map[timerKey]armedTimer),
	}
}

// Family returns the state the scheduler owns. Callers must not mutate it
// outside the event loop or bypass the scheduler's mutation methods.
func (s *Scheduler) Family() *models.Family { return s.family }

func (s *Scheduler) Clock() *timing.ClockContext { return s.cfg.Clock }

// Snapshot captures the current state for persistence.
func (s *Scheduler) Snapshot() *models.Snapshot {
	return models.NewSnapshot(s.family, s.cfg.Clock)
}

// Armed lists armed timers ordered by time.
func (s *Scheduler) Armed() []ArmedTimer {
	out := make([]ArmedTimer, 0, len(s.armed))
	for k, a := range s.armed {
		out = append(out, ArmedTimer{DogID: k.dog, ReminderID: k.reminder, At: a.at, Unskip: k.unskip})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		if out[i].ReminderID != out[j].ReminderID {
			return out[i].ReminderID.Compare(out[j].ReminderID) < 0
		}
		return !out[i].Unskip && out[j].Unskip
	})
	return out
}

// Reinitialize invalidates every armed timer and, unless the system is
// paused, arms one per enabled reminder that is not awaiting a response,
// plus a skip-transition timer for each skipping reminder. Calling it twice
// without a state change arms the same set.
func (s *Scheduler) Reinitialize() {
	for k, a := range s.armed {
		s.cfg.Timers.Invalidate(a.handle)
		delete(s.armed, k)
	}

	if s.cfg.Clock.IsPaused() {
		s.cfg.Metrics.setArmed(0)
		return
	}

	for _, e := range s.family.Entries() {
		r := e.Reminder
		if !r.Enabled || r.PresentationHandled {
			continue
		}
		if r.Timing == nil {
			_ = errors.Invariant("reminder %s of dog %s has no timing mode", r.ID, e.Dog.ID)
			continue
		}
		if at := r.ExecutionDate(s.cfg.Clock); at != nil {
			s.arm(timerKey{dog: e.Dog.ID, reminder: r.ID}, *at)
		}
		if at := r.UnskipDate(s.cfg.Clock); at != nil {
			s.arm(timerKey{dog: e.Dog.ID, reminder: r.ID, unskip: true}, *at)
		}
	}
	s.cfg.Metrics.setArmed(len(s.armed))
	logger.Debug("Scheduler reinitialized", "armed", len(s.armed))
}

func (s *Scheduler) arm(key timerKey, at time.Time) {
	s.gen++
	gen := s.gen
	handle, err := s.cfg.Timers.Arm(at, func() {
		s.cfg.Post(func() { s.wake(key, gen) })
	})
	if err != nil {
		logger.Error("Failed to arm timer", "dog", key.dog, "reminder", key.reminder, "at", at, "error", err)
		return
	}
	s.armed[key] = armedTimer{handle: handle, at: at, gen: gen}
}

// wake runs on the loop when a timer fires. A timer invalidated after its
// callback was queued no longer matches the armed generation and is dropped.
func (s *Scheduler) wake(key timerKey, gen uint64) {
	a, ok := s.armed[key]
	if !ok || a.gen != gen {
		s.cfg.Metrics.fire("stale")
		logger.Debug("Dropping stale timer", "dog", key.dog, "reminder", key.reminder)
		return
	}
	delete(s.armed, key)
	s.cfg.Metrics.setArmed(len(s.armed))

	if key.unskip {
		s.completeSkip(key.dog, key.reminder, a.at)
		return
	}
	s.Fire(key.dog, key.reminder)
}

// Fire delivers the alarm for a reminder to the presenter. It marks the
// reminder as handled so no other refresh delivers it again, and leaves the
// rest of its state alone until the user responds.
func (s *Scheduler) Fire(dogID, reminderID models.ID) {
	dog, r, err := s.family.Lookup(dogID, reminderID)
	if err != nil {
		s.cfg.Metrics.fire("dropped")
		logger.Warn("Dropping fire for missing reminder", "dog", dogID, "reminder", reminderID, "error", err)
		return
	}
	if !r.Enabled {
		s.cfg.Metrics.fire("dropped")
		_ = errors.Invariant("timer fired for disabled reminder %s", reminderID)
		return
	}
	if r.PresentationHandled {
		s.cfg.Metrics.fire("duplicate")
		logger.Debug("Dropping duplicate fire", "dog", dogID, "reminder", reminderID)
		return
	}

	r.PresentationHandled = true
	s.cfg.Metrics.fire("presented")
	logger.Info("Reminder fired", "dog", dog.Name, "reminder", r.DisplayName(), "mode", r.EffectiveMode())

	if s.cfg.Presenter == nil {
		logger.Warn("No presenter configured; alarm is waiting for a response", "reminder", reminderID)
		return
	}

	alarm := Alarm{DogID: dogID, DogName: dog.Name, Reminder: r.Clone(), FiredAt: s.cfg.Clock.Now()}
	var once sync.Once
	s.cfg.Presenter.PresentAlarm(s.cfg.Context, alarm, func(resp Response) {
		once.Do(func() {
			s.cfg.Post(func() { s.Respond(dogID, reminderID, resp, nil) })
		})
	})
}

// completeSkip clears a skip once the skipped occurrence has passed.
func (s *Scheduler) completeSkip(dogID, reminderID models.ID, passed time.Time) {
	_, r, err := s.family.Lookup(dogID, reminderID)
	if err != nil {
		logger.Warn("Dropping skip transition for missing reminder", "dog", dogID, "reminder", reminderID, "error", err)
		return
	}
	if !r.IsSkipping() {
		return
	}
	c, _ := updateChange(dogID, r, func(next *models.Reminder) error {
		next.CompleteSkip(passed)
		return nil
	})
	logger.Info("Skipped occurrence passed", "reminder", r.DisplayName(), "at", passed)
	s.commit(c, nil)
}

func (s *Scheduler) committed() {
	if s.cfg.OnCommit != nil {
		s.cfg.OnCommit()
	}
}

func nopDone(done func(error)) func(error) {
	if done == nil {
		return func(error) {}
	}
	return done
}
