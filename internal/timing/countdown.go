package timing

import "time"

// Countdown fires once Duration of unpaused time has elapsed since the basis.
type Countdown struct {
	Duration time.Duration `json:"interval_duration"`
	Elapsed  time.Duration `json:"interval_elapsed"`
}

func (c *Countdown) Mode() Mode { return ModeCountdown }

func (c *Countdown) NextExecutionDate(basis time.Time) time.Time {
	return basis.Add(c.Remaining())
}

// Remaining is Duration minus Elapsed, never negative.
func (c *Countdown) Remaining() time.Duration {
	return remaining(c.Duration, c.Elapsed)
}

// Reset clears accumulated elapsed time.
func (c *Countdown) Reset() { c.Elapsed = 0 }

// Accumulate adds the time that ran between basis and pausedAt.
func (c *Countdown) Accumulate(basis, pausedAt time.Time) {
	c.Elapsed = accumulate(c.Elapsed, basis, pausedAt)
}

func (c *Countdown) Clone() Timing {
	cp := *c
	return &cp
}

func (c *Countdown) Equal(other Timing) bool {
	o, ok := other.(*Countdown)
	return ok && *c == *o
}

func (c *Countdown) sealed() {}

func remaining(duration, elapsed time.Duration) time.Duration {
	if elapsed >= duration {
		return 0
	}
	return duration - elapsed
}

func accumulate(elapsed time.Duration, basis, pausedAt time.Time) time.Duration {
	if pausedAt.After(basis) {
		return elapsed + pausedAt.Sub(basis)
	}
	return elapsed
}
