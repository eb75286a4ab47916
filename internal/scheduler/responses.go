package scheduler

import (
	"time"

	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/timing"
)

// Respond applies the user's answer to a fired alarm.
//
//   - Acknowledge and Dismiss restart the reminder from now. One-time
//     reminders are deleted instead.
//   - Snooze overlays the configured snooze duration.
//   - Skip restarts a weekly or monthly reminder and skips its next
//     occurrence. It acts like Acknowledge for other modes.
//   - Unskip undoes a skip, or acts like Dismiss when nothing is skipped.
//
// A log choice on Acknowledge or Skip is written to the activity log once
// the timing change is committed.
func (s *Scheduler) Respond(dogID, reminderID models.ID, resp Response, done func(error)) {
	done = nopDone(done)

	_, r, err := s.family.Lookup(dogID, reminderID)
	if err != nil {
		logger.Warn("Dropping response for missing reminder", "dog", dogID, "reminder", reminderID, "response", resp.Kind, "error", err)
		done(err)
		return
	}

	now := s.cfg.Clock.Now()
	var c change
	if r.Mode() == timing.ModeOneTime && resp.Kind != Snooze {
		c = change{op: opDelete, dogID: dogID, reminderID: reminderID}
	} else {
		c, _ = updateChange(dogID, r, func(next *models.Reminder) error {
			answer(next, resp.Kind, s.cfg.SnoozeDuration, now)
			return nil
		})
	}

	logger.Info("Alarm answered", "reminder", r.DisplayName(), "response", resp.Kind)
	s.commit(c, func(err error) {
		if err == nil {
			s.cfg.Metrics.response(resp.Kind)
			if resp.Log != nil && (resp.Kind == Acknowledge || resp.Kind == Skip) {
				s.recordActivity(dogID, r, resp.Log, now)
			}
		}
		done(err)
	})
}

func answer(r *models.Reminder, kind ResponseKind, snooze time.Duration, now time.Time) {
	switch kind {
	case Snooze:
		r.StartSnooze(snooze, now)
	case Skip:
		r.PrepareForNextAlarm(now)
		if _, ok := r.Recurring(); ok {
			_ = r.Skip(now)
		}
	case Unskip:
		if !r.Unskip() {
			r.PrepareForNextAlarm(now)
		}
		r.PresentationHandled = false
	default:
		r.PrepareForNextAlarm(now)
	}
}

func (s *Scheduler) recordActivity(dogID models.ID, r *models.Reminder, choice *LogChoice, at time.Time) {
	if s.cfg.ActivityLog == nil {
		return
	}
	entry := models.LogEntry{
		DogID:      dogID,
		ReminderID: r.ID,
		Action:     choice.Action,
		CustomName: choice.CustomName,
		Note:       choice.Note,
		LoggedAt:   at,
	}
	if entry.Action == "" {
		entry.Action = r.Action
		entry.CustomName = r.CustomName
	}
	ctx := s.cfg.Context
	s.cfg.Spawn(func() {
		if err := s.cfg.ActivityLog.AddLogEntry(ctx, entry); err != nil {
			logger.Error("Failed to record activity", "dog", dogID, "action", entry.Action, "error", err)
		}
	})
}
