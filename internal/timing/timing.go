// Package timing holds the value types that compute when a reminder fires.
//
// Each timing mode is a variant of the sealed Timing sum type. A reminder
// carries exactly one variant; the scheduler never sees the others.
package timing

import (
	"fmt"
	"time"
)

// Mode identifies a timing variant. The declaration order is the sort rank
// used when listing mixed reminders.
type Mode int

const (
	ModeOneTime Mode = iota
	ModeCountdown
	ModeWeekly
	ModeMonthly
	// ModeSnooze is only ever an effective mode; no Timing reports it.
	ModeSnooze
)

var modeNames = map[Mode]string{
	ModeOneTime:   "onetime",
	ModeCountdown: "countdown",
	ModeWeekly:    "weekly",
	ModeMonthly:   "monthly",
	ModeSnooze:    "snooze",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown timing mode %q", s)
}

// Timing is implemented by *Countdown, *Weekly, *Monthly and *OneTime only.
type Timing interface {
	Mode() Mode
	// NextExecutionDate returns the fire date that follows basis.
	NextExecutionDate(basis time.Time) time.Time
	// Clone returns a deep copy.
	Clone() Timing
	// Equal compares by value.
	Equal(other Timing) bool
	sealed()
}

// Recurring is the wall-clock anchored subset of Timing that supports
// skipping one occurrence.
type Recurring interface {
	Timing
	// PreviousExecutionDate returns the latest occurrence strictly before t,
	// ignoring the skip flag.
	PreviousExecutionDate(t time.Time) time.Time
	Skip() *SkipState
}

// SkipState is shared by Weekly and Monthly.
type SkipState struct {
	Skipping   bool      `json:"is_skipping"`
	SkipAnchor time.Time `json:"skip_anchor_date,omitempty"`
}

// Begin marks the next occurrence as skipped and records when that happened.
func (s *SkipState) Begin(now time.Time) {
	s.Skipping = true
	s.SkipAnchor = now
}

// Clear drops the skip flag and anchor.
func (s *SkipState) Clear() {
	s.Skipping = false
	s.SkipAnchor = time.Time{}
}

func (s SkipState) equal(o SkipState) bool {
	return s.Skipping == o.Skipping && s.SkipAnchor.Equal(o.SkipAnchor)
}

// advance applies the skip rule on top of a nominal next-occurrence function.
func advance(skip SkipState, basis time.Time, next func(time.Time) time.Time) time.Time {
	d := next(basis)
	if skip.Skipping {
		d = next(d)
	}
	return d
}

// location resolves an IANA zone name, falling back to time.Local.
func location(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}
