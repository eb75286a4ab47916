package timing

import "time"

// Snooze is the overlay a reminder enters when the user postpones an alarm.
// While Active it replaces the reminder's own timing for scheduling.
type Snooze struct {
	Duration time.Duration `json:"interval_duration"`
	Elapsed  time.Duration `json:"interval_elapsed"`
	Active   bool          `json:"is_active"`
}

// Start activates the overlay for d.
func (s *Snooze) Start(d time.Duration) {
	s.Duration = d
	s.Elapsed = 0
	s.Active = true
}

// Stop deactivates the overlay.
func (s *Snooze) Stop() {
	s.Active = false
	s.Elapsed = 0
}

func (s *Snooze) NextExecutionDate(basis time.Time) time.Time {
	return basis.Add(s.Remaining())
}

func (s *Snooze) Remaining() time.Duration {
	return remaining(s.Duration, s.Elapsed)
}

func (s *Snooze) Accumulate(basis, pausedAt time.Time) {
	s.Elapsed = accumulate(s.Elapsed, basis, pausedAt)
}
