package scheduler

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/remote"
	"github.com/julianstephens/petminder/internal/timing"
)

var t0 = time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)

type fakeTimer struct {
	at time.Time
	fn func()
}

// fakeTimers fires only when told to.
type fakeTimers struct {
	timers  map[TimerHandle]fakeTimer
	history []fakeTimer
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{timers: make(map[TimerHandle]fakeTimer)}
}

func (f *fakeTimers) Arm(at time.Time, fn func()) (TimerHandle, error) {
	h := TimerHandle{id: uuid.New()}
	f.timers[h] = fakeTimer{at: at, fn: fn}
	f.history = append(f.history, fakeTimer{at: at, fn: fn})
	return h, nil
}

func (f *fakeTimers) Invalidate(h TimerHandle) { delete(f.timers, h) }

// fireDue runs the timers due at or before now, earliest first, and returns
// how many fired.
func (f *fakeTimers) fireDue(now time.Time) int {
	var due []TimerHandle
	for h, t := range f.timers {
		if !t.at.After(now) {
			due = append(due, h)
		}
	}
	sort.Slice(due, func(i, j int) bool { return f.timers[due[i]].at.Before(f.timers[due[j]].at) })

	fired := 0
	for _, h := range due {
		t, ok := f.timers[h]
		if !ok {
			continue
		}
		delete(f.timers, h)
		t.fn()
		fired++
	}
	return fired
}

type presented struct {
	alarm   Alarm
	respond func(Response)
}

type fakePresenter struct {
	alarms []presented
}

func (p *fakePresenter) PresentAlarm(_ context.Context, a Alarm, respond func(Response)) {
	p.alarms = append(p.alarms, presented{alarm: a, respond: respond})
}

type memoryLog struct {
	entries []models.LogEntry
}

func (m *memoryLog) AddLogEntry(_ context.Context, e models.LogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type harness struct {
	t         *testing.T
	clock     *clockwork.FakeClock
	timers    *fakeTimers
	presenter *fakePresenter
	remote    *remote.Memory
	log       *memoryLog
	metrics   *Metrics
	sched     *Scheduler
	dog       *models.Dog
	commits   int

	// hold queues remote calls instead of running them, until drain.
	hold    bool
	spawned []func()
}

// newHarness builds a scheduler whose loop, goroutines and timers are all
// synchronous. withRemote selects the in-memory remote store.
func newHarness(t *testing.T, withRemote bool) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		clock:     clockwork.NewFakeClockAt(t0),
		timers:    newFakeTimers(),
		presenter: &fakePresenter{},
		log:       &memoryLog{},
		metrics:   MustNewMetrics(prometheus.NewRegistry()),
	}
	cfg := Config{
		Clock:          timing.NewClockContext(h.clock),
		Timers:         h.timers,
		Presenter:      h.presenter,
		ActivityLog:    h.log,
		Metrics:        h.metrics,
		SnoozeDuration: 5 * time.Minute,
		Spawn: func(fn func()) {
			if h.hold {
				h.spawned = append(h.spawned, fn)
				return
			}
			fn()
		},
		OnCommit: func() { h.commits++ },
	}
	if withRemote {
		h.remote = remote.NewMemory()
		cfg.Remote = h.remote
	}
	h.sched = New(models.NewFamily(), cfg)

	h.sched.AddDog("Biscuit", func(d *models.Dog, err error) {
		if err != nil {
			t.Fatalf("AddDog failed: %v", err)
		}
		h.dog = d
	})
	return h
}

func (h *harness) add(r *models.Reminder) *models.Reminder {
	h.t.Helper()
	var err error
	h.sched.AddReminder(h.dog.ID, r, func(e error) { err = e })
	if err != nil {
		h.t.Fatalf("AddReminder failed: %v", err)
	}
	stored, ok := h.dog.Reminders.Find(r.ID)
	if !ok {
		h.t.Fatalf("reminder %s not stored", r.ID)
	}
	return stored
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.timers.fireDue(h.clock.Now())
}

func (h *harness) armedAt(r *models.Reminder) (time.Time, bool) {
	for _, a := range h.sched.Armed() {
		if a.ReminderID == r.ID && !a.Unskip {
			return a.At, true
		}
	}
	return time.Time{}, false
}

func (h *harness) clk() *timing.ClockContext { return h.sched.Clock() }

// drain stops holding and runs queued remote calls in the order they were
// started.
func (h *harness) drain() {
	h.hold = false
	for len(h.spawned) > 0 {
		fn := h.spawned[0]
		h.spawned = h.spawned[1:]
		fn()
	}
}

// remoteCopy returns the remote store's value of r.
func (h *harness) remoteCopy(r *models.Reminder) *models.Reminder {
	h.t.Helper()
	all, err := h.remote.FetchAll(context.Background(), h.dog.ID)
	if err != nil {
		h.t.Fatalf("FetchAll failed: %v", err)
	}
	for _, c := range all {
		if c.ID == r.ID {
			return c
		}
	}
	h.t.Fatalf("reminder %s missing remotely", r.ID)
	return nil
}
