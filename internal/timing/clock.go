package timing

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// ClockContext carries the time source and the global pause state. It is
// passed explicitly to everything that needs "now" so tests can drive it with
// a fake clock.
type ClockContext struct {
	Clock       clockwork.Clock `json:"-"`
	Paused      bool            `json:"is_paused"`
	LastPause   time.Time       `json:"last_pause,omitempty"`
	LastUnpause time.Time       `json:"last_unpause,omitempty"`
}

// NewClockContext returns an unpaused context on the given clock, or the real
// clock when c is nil.
func NewClockContext(c clockwork.Clock) *ClockContext {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	return &ClockContext{Clock: c}
}

func (c *ClockContext) Now() time.Time { return c.Clock.Now() }

// IsPaused reports the global pause flag. A nil context is never paused.
func (c *ClockContext) IsPaused() bool { return c != nil && c.Paused }
