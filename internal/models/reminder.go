package models

import (
	"fmt"
	"time"

	"github.com/julianstephens/petminder/internal/timing"
)

// Reminder is one recurring or one-off care task for a dog.
//
// The armed wake-up timer is not part of a Reminder: the scheduler keeps it
// keyed by ID, so copies never share a timer.
type Reminder struct {
	ID         ID
	Action     Action
	CustomName string
	Timing     timing.Timing
	// Basis anchors relative timing: the last fire response, edit or unpause.
	Basis   time.Time
	Snooze  timing.Snooze
	Enabled bool
	// PresentationHandled is set once an alarm was handed to the presenter and
	// cleared when the user's response is applied. Local only.
	PresentationHandled bool
}

// NewReminder creates an enabled reminder with a pending id.
func NewReminder(action Action, customName string, t timing.Timing, now time.Time) *Reminder {
	return &Reminder{
		ID:         NewPending(),
		Action:     action,
		CustomName: customName,
		Timing:     t,
		Basis:      now,
		Enabled:    true,
	}
}

// DisplayName is the custom name for custom actions, the action label otherwise.
func (r *Reminder) DisplayName() string {
	if r.Action == ActionCustom && r.CustomName != "" {
		return r.CustomName
	}
	return r.Action.Label()
}

// Clone returns a deep copy sharing no mutable state with r.
func (r *Reminder) Clone() *Reminder {
	cp := *r
	if r.Timing != nil {
		cp.Timing = r.Timing.Clone()
	}
	return &cp
}

// CopyFrom overwrites r with src's values in place, so pointers to r stay valid.
func (r *Reminder) CopyFrom(src *Reminder) {
	cp := src.Clone()
	*r = *cp
}

// Mode is the configured timing mode.
func (r *Reminder) Mode() timing.Mode {
	if r.Timing == nil {
		return timing.ModeCountdown
	}
	return r.Timing.Mode()
}

// EffectiveMode is ModeSnooze while a snooze is active, Mode otherwise.
func (r *Reminder) EffectiveMode() timing.Mode {
	if r.Snooze.Active {
		return timing.ModeSnooze
	}
	return r.Mode()
}

// Recurring returns the timing as timing.Recurring when it is Weekly or Monthly.
func (r *Reminder) Recurring() (timing.Recurring, bool) {
	rec, ok := r.Timing.(timing.Recurring)
	return rec, ok
}

func (r *Reminder) IsSkipping() bool {
	rec, ok := r.Recurring()
	return ok && rec.Skip().Skipping
}

// ExecutionDate is when the reminder should next fire, or nil when it is
// disabled, the system is paused, or it has no timing.
func (r *Reminder) ExecutionDate(clk *timing.ClockContext) *time.Time {
	if !r.Enabled || clk.IsPaused() || r.Timing == nil {
		return nil
	}
	var d time.Time
	if r.Snooze.Active {
		d = r.Snooze.NextExecutionDate(r.Basis)
	} else {
		d = r.Timing.NextExecutionDate(r.Basis)
	}
	if d.IsZero() {
		return nil
	}
	return &d
}

// IntervalRemaining is duration minus elapsed for countdowns and snoozes, and
// the distance from now to the execution date otherwise. ok is false when
// there is no execution date.
func (r *Reminder) IntervalRemaining(clk *timing.ClockContext) (remaining time.Duration, ok bool) {
	if r.Snooze.Active {
		return r.Snooze.Remaining(), true
	}
	if c, isCountdown := r.Timing.(*timing.Countdown); isCountdown {
		return c.Remaining(), true
	}
	d := r.ExecutionDate(clk)
	if d == nil {
		return 0, false
	}
	return d.Sub(clk.Now()), true
}

// UnskipDate is the moment a skipping reminder's skipped occurrence passes,
// at which point the skip flag clears itself. nil when not skipping.
func (r *Reminder) UnskipDate(clk *timing.ClockContext) *time.Time {
	if !r.Enabled || clk.IsPaused() {
		return nil
	}
	d, ok := r.skippedOccurrence()
	if !ok {
		return nil
	}
	return &d
}

func (r *Reminder) skippedOccurrence() (time.Time, bool) {
	rec, ok := r.Recurring()
	if !ok || !rec.Skip().Skipping || r.Snooze.Active {
		return time.Time{}, false
	}
	exec := rec.NextExecutionDate(r.Basis)
	if exec.IsZero() {
		return time.Time{}, false
	}
	d := rec.PreviousExecutionDate(exec)
	return d, !d.IsZero()
}

// Resume moves the basis to now after a pause, keeping countdown and snooze
// progress. A skipped occurrence that passed while paused completes the skip
// first, so only that one occurrence is deferred.
func (r *Reminder) Resume(now time.Time) {
	if passed, ok := r.skippedOccurrence(); ok && !passed.After(now) {
		r.CompleteSkip(passed)
	}
	r.Basis = now
}

// PrepareForNextAlarm resets timing after an alarm is answered: the basis
// moves to now, countdown and snooze progress are cleared, and so is any skip.
func (r *Reminder) PrepareForNextAlarm(now time.Time) {
	r.Basis = now
	r.Snooze.Stop()
	if c, ok := r.Timing.(*timing.Countdown); ok {
		c.Reset()
	}
	if rec, ok := r.Recurring(); ok {
		rec.Skip().Clear()
	}
	r.PresentationHandled = false
}

// StartSnooze overlays a snooze of d starting now.
func (r *Reminder) StartSnooze(d time.Duration, now time.Time) {
	r.Snooze.Start(d)
	r.Basis = now
	r.PresentationHandled = false
}

// Skip defers the next occurrence by one cycle. Only Weekly and Monthly skip.
func (r *Reminder) Skip(now time.Time) error {
	rec, ok := r.Recurring()
	if !ok {
		return fmt.Errorf("%s reminders cannot be skipped", r.Mode())
	}
	r.Basis = now
	rec.Skip().Begin(now)
	return nil
}

// Unskip undoes Skip by restoring the basis to when the skip began.
// Returns false when the reminder was not skipping.
func (r *Reminder) Unskip() bool {
	rec, ok := r.Recurring()
	if !ok || !rec.Skip().Skipping {
		return false
	}
	r.Basis = rec.Skip().SkipAnchor
	rec.Skip().Clear()
	return true
}

// CompleteSkip clears the skip flag once the skipped occurrence at passed
// has gone by, keeping the upcoming execution date unchanged.
func (r *Reminder) CompleteSkip(passed time.Time) {
	rec, ok := r.Recurring()
	if !ok || !rec.Skip().Skipping {
		return
	}
	r.Basis = passed
	rec.Skip().Clear()
}

// SetEnabled toggles the reminder. Re-enabling restarts timing from now.
func (r *Reminder) SetEnabled(enabled bool, now time.Time) {
	if enabled && !r.Enabled {
		r.Basis = now
	}
	r.Enabled = enabled
	r.PresentationHandled = false
}

// ChangeTiming switches timing and resets all timing state.
func (r *Reminder) ChangeTiming(t timing.Timing, now time.Time) {
	r.Timing = t
	r.Basis = now
	r.Snooze.Stop()
	r.PresentationHandled = false
}

// AccumulatePause records how much of a countdown or snooze ran between the
// basis and pausedAt. Wall-clock modes have nothing to record.
func (r *Reminder) AccumulatePause(pausedAt time.Time) {
	if !r.Enabled {
		return
	}
	if r.Snooze.Active {
		r.Snooze.Accumulate(r.Basis, pausedAt)
		return
	}
	if c, ok := r.Timing.(*timing.Countdown); ok {
		c.Accumulate(r.Basis, pausedAt)
	}
}

// SyncEqual compares the fields that are synchronized with the remote store.
// PresentationHandled is local and ignored.
func (r *Reminder) SyncEqual(o *Reminder) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.ID != o.ID || r.Action != o.Action || r.CustomName != o.CustomName ||
		!r.Basis.Equal(o.Basis) || r.Enabled != o.Enabled || r.Snooze != o.Snooze {
		return false
	}
	if r.Timing == nil || o.Timing == nil {
		return r.Timing == nil && o.Timing == nil
	}
	return r.Timing.Equal(o.Timing)
}
