package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/julianstephens/petminder/internal/timing"
)

// SnapshotVersion is bumped whenever the encoded layout changes.
const SnapshotVersion = 1

type reminderJSON struct {
	ID         ID                `json:"id"`
	Action     Action            `json:"action"`
	CustomName string            `json:"custom_name,omitempty"`
	Mode       string            `json:"mode"`
	Countdown  *timing.Countdown `json:"countdown,omitempty"`
	Weekly     *timing.Weekly    `json:"weekly,omitempty"`
	Monthly    *timing.Monthly   `json:"monthly,omitempty"`
	OneTime    *timing.OneTime   `json:"one_time,omitempty"`
	Basis      time.Time         `json:"execution_basis"`
	Snooze     timing.Snooze     `json:"snooze"`
	Enabled    bool              `json:"is_enabled"`
}

// MarshalJSON writes the active timing block under its mode name.
// PresentationHandled is not written; a restored reminder is always eligible
// to fire.
func (r *Reminder) MarshalJSON() ([]byte, error) {
	out := reminderJSON{
		ID:         r.ID,
		Action:     r.Action,
		CustomName: r.CustomName,
		Basis:      r.Basis,
		Snooze:     r.Snooze,
		Enabled:    r.Enabled,
	}
	switch t := r.Timing.(type) {
	case *timing.Countdown:
		out.Countdown = t
	case *timing.Weekly:
		out.Weekly = t
	case *timing.Monthly:
		out.Monthly = t
	case *timing.OneTime:
		out.OneTime = t
	default:
		return nil, fmt.Errorf("reminder %s has no timing", r.ID)
	}
	out.Mode = r.Timing.Mode().String()
	return json.Marshal(out)
}

func (r *Reminder) UnmarshalJSON(data []byte) error {
	var in reminderJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	mode, err := timing.ParseMode(in.Mode)
	if err != nil {
		return fmt.Errorf("reminder %s: %w", in.ID, err)
	}

	var t timing.Timing
	switch mode {
	case timing.ModeCountdown:
		if in.Countdown != nil {
			t = in.Countdown
		}
	case timing.ModeWeekly:
		if in.Weekly != nil {
			t = in.Weekly
		}
	case timing.ModeMonthly:
		if in.Monthly != nil {
			t = in.Monthly
		}
	case timing.ModeOneTime:
		if in.OneTime != nil {
			t = in.OneTime
		}
	}
	if t == nil {
		return fmt.Errorf("reminder %s: missing %s block", in.ID, mode)
	}

	*r = Reminder{
		ID:         in.ID,
		Action:     in.Action,
		CustomName: in.CustomName,
		Timing:     t,
		Basis:      in.Basis,
		Snooze:     in.Snooze,
		Enabled:    in.Enabled,
	}
	return nil
}

type dogJSON struct {
	ID        ID          `json:"id"`
	Name      string      `json:"name"`
	Reminders []*Reminder `json:"reminders"`
}

func (d *Dog) MarshalJSON() ([]byte, error) {
	out := dogJSON{ID: d.ID, Name: d.Name, Reminders: []*Reminder{}}
	if d.Reminders != nil {
		out.Reminders = d.Reminders.All()
	}
	return json.Marshal(out)
}

func (d *Dog) UnmarshalJSON(data []byte) error {
	var in dogJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	d.ID = in.ID
	d.Name = in.Name
	d.Reminders = NewReminderCollection(in.Reminders...)
	return nil
}

// Snapshot is the persisted form of the whole engine state. Timer handles
// are never part of it; they are re-derived after loading.
type Snapshot struct {
	Version     int       `json:"version"`
	SavedAt     time.Time `json:"saved_at"`
	Paused      bool      `json:"is_paused"`
	LastPause   time.Time `json:"last_pause,omitempty"`
	LastUnpause time.Time `json:"last_unpause,omitempty"`
	Dogs        []*Dog    `json:"dogs"`
}

// NewSnapshot captures the family and pause state.
func NewSnapshot(f *Family, clk *timing.ClockContext) *Snapshot {
	s := &Snapshot{Version: SnapshotVersion, Dogs: f.Dogs()}
	if clk != nil {
		s.SavedAt = clk.Now()
		s.Paused = clk.Paused
		s.LastPause = clk.LastPause
		s.LastUnpause = clk.LastUnpause
	}
	return s
}

// Restore rebuilds the family and applies the pause state to clk.
func (s *Snapshot) Restore(clk *timing.ClockContext) (*Family, error) {
	if s.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", s.Version, SnapshotVersion)
	}
	if clk != nil {
		clk.Paused = s.Paused
		clk.LastPause = s.LastPause
		clk.LastUnpause = s.LastUnpause
	}
	return NewFamily(s.Dogs...), nil
}

// EncodeSnapshot and DecodeSnapshot are the JSON codec used by the stores.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}
