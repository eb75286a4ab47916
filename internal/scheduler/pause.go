package scheduler

import (
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/models"
)

// SetPaused pauses or resumes every reminder.
//
// Pausing banks the unpaused time countdowns and snoozes have run so far into
// their elapsed interval, then disarms everything. Resuming moves every
// enabled reminder's basis to now, keeping elapsed, and re-arms. A skip whose
// skipped occurrence passed during the pause is completed on resume. Repeating
// the current state is a no-op, so elapsed time is never counted twice.
func (s *Scheduler) SetPaused(paused bool, done func(error)) {
	done = nopDone(done)
	clk := s.cfg.Clock
	if clk.Paused == paused {
		done(nil)
		return
	}

	now := clk.Now()
	adjust := func(r *models.Reminder) error {
		switch {
		case !r.Enabled:
		case paused:
			r.AccumulatePause(now)
		default:
			r.Resume(now)
		}
		return nil
	}

	var changes []change
	remote := 0
	for _, e := range s.family.Entries() {
		if !e.Reminder.Enabled {
			continue
		}
		c, _ := updateChange(e.Dog.ID, e.Reminder, adjust)
		if c.next.SyncEqual(e.Reminder) {
			// Still adjusted on apply in case a change lands first.
			c.unchanged = true
		} else {
			remote++
		}
		changes = append(changes, c)
	}

	label := "resume"
	if paused {
		label = "pause"
	}
	s.commitBatch(label, changes, func() {
		clk.Paused = paused
		if paused {
			clk.LastPause = now
		} else {
			clk.LastUnpause = now
		}
		logger.Info("Reminders "+label+"d", "changed", remote)
	}, done)
}
