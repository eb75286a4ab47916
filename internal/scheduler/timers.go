package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/petminder/internal/logger"
)

// TimerHandle identifies an armed wake-up. It is only meaningful to the
// TimerService that issued it.
type TimerHandle struct {
	id uuid.UUID
}

func (h TimerHandle) IsZero() bool { return h.id == uuid.Nil }

// TimerService is the wake-up primitive the scheduler builds on.
type TimerService interface {
	// Arm schedules fn at the given time. Times in the past fire as soon as
	// possible. fn runs on the service's own goroutine.
	Arm(at time.Time, fn func()) (TimerHandle, error)
	// Invalidate cancels a timer that has not fired yet. Unknown or already
	// fired handles are ignored.
	Invalidate(h TimerHandle)
}

// GocronTimers arms one-time gocron jobs.
type GocronTimers struct {
	s     gocron.Scheduler
	clock clockwork.Clock
}

func NewGocronTimers(clock clockwork.Clock) (*GocronTimers, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLogger(logger.GocronLogger{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &GocronTimers{s: s, clock: clock}, nil
}

func (g *GocronTimers) Arm(at time.Time, fn func()) (TimerHandle, error) {
	start := gocron.OneTimeJobStartDateTime(at)
	if !at.After(g.clock.Now()) {
		start = gocron.OneTimeJobStartImmediately()
	}
	job, err := g.s.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(fn),
		gocron.WithName("wake-"+at.Format(time.RFC3339)),
	)
	if err != nil {
		return TimerHandle{}, fmt.Errorf("failed to arm timer at %s: %w", at, err)
	}
	return TimerHandle{id: job.ID()}, nil
}

func (g *GocronTimers) Invalidate(h TimerHandle) {
	if h.IsZero() {
		return
	}
	if err := g.s.RemoveJob(h.id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		logger.Warn("Failed to remove timer", "job", h.id, "error", err)
	}
}

// Start begins firing armed jobs.
func (g *GocronTimers) Start() { g.s.Start() }

// Shutdown stops the gocron scheduler and waits for running jobs.
func (g *GocronTimers) Shutdown() error { return g.s.Shutdown() }

// NopTimers accepts timers and never fires them. One-shot CLI commands use
// it: they mutate state, persist it and exit.
type NopTimers struct{}

func (NopTimers) Arm(time.Time, func()) (TimerHandle, error) {
	return TimerHandle{id: uuid.New()}, nil
}

func (NopTimers) Invalidate(TimerHandle) {}
