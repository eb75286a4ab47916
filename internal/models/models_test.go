package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/petminder/internal/timing"
)

var t0 = time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC) // a Wednesday

func sampleReminders() []*Reminder {
	snoozed := NewReminder(ActionWalk, "", &timing.Countdown{Duration: 30 * time.Minute, Elapsed: 5 * time.Minute}, t0)
	snoozed.StartSnooze(5*time.Minute, t0)

	skipping := NewReminder(ActionFeed, "", &timing.Weekly{Hour: 7, Minute: 30, Weekdays: []time.Weekday{time.Monday, time.Thursday}, TimeZone: "UTC"}, t0)
	_ = skipping.Skip(t0)

	disabled := NewReminder(ActionCustom, "Ear drops", &timing.Monthly{Hour: 20, Minute: 0, Day: 31, TimeZone: "UTC"}, t0)
	disabled.ID = Assigned(12)
	disabled.Enabled = false

	return []*Reminder{
		NewReminder(ActionWater, "", &timing.Countdown{Duration: time.Hour}, t0),
		snoozed,
		skipping,
		disabled,
		NewReminder(ActionVetVisit, "", &timing.OneTime{Date: t0.Add(72 * time.Hour)}, t0),
	}
}

func TestReminderJSONRoundTrip(t *testing.T) {
	for _, r := range sampleReminders() {
		t.Run(r.Mode().String(), func(t *testing.T) {
			data, err := json.Marshal(r)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			var got Reminder
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if !got.SyncEqual(r) {
				t.Errorf("round trip mismatch:\n got  %+v\n want %+v\n json %s", got, *r, data)
			}
		})
	}
}

func TestReminderJSONRejectsMissingBlock(t *testing.T) {
	var r Reminder
	err := json.Unmarshal([]byte(`{"id":1,"action":"feed","mode":"weekly","countdown":{"interval_duration":60}}`), &r)
	if err == nil {
		t.Fatal("expected error when the active mode block is missing")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dog := NewDog("Biscuit")
	for _, r := range sampleReminders() {
		if err := dog.Reminders.Add(r); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	clk := timing.NewClockContext(clockwork.NewFakeClockAt(t0))
	clk.Paused = true
	clk.LastPause = t0

	data, err := EncodeSnapshot(NewSnapshot(NewFamily(dog), clk))
	if err != nil {
		t.Fatalf("EncodeSnapshot failed: %v", err)
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}

	restoredClock := timing.NewClockContext(clockwork.NewFakeClockAt(t0))
	family, err := snap.Restore(restoredClock)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !restoredClock.Paused || !restoredClock.LastPause.Equal(t0) {
		t.Errorf("pause state not restored: %+v", restoredClock)
	}

	dogs := family.Dogs()
	if len(dogs) != 1 || dogs[0].Name != "Biscuit" || dogs[0].ID != dog.ID {
		t.Fatalf("unexpected dogs after restore: %+v", dogs)
	}
	want, got := dog.Reminders.All(), dogs[0].Reminders.All()
	if len(got) != len(want) {
		t.Fatalf("restored %d reminders, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].SyncEqual(want[i]) {
			t.Errorf("reminder %d differs after restore", i)
		}
	}
}

func TestSnapshotRejectsNewerVersion(t *testing.T) {
	s := &Snapshot{Version: SnapshotVersion + 1}
	if _, err := s.Restore(nil); err == nil {
		t.Error("expected error for newer snapshot version")
	}
}

func TestExecutionDate(t *testing.T) {
	clk := timing.NewClockContext(clockwork.NewFakeClockAt(t0))
	r := NewReminder(ActionPotty, "", &timing.Countdown{Duration: time.Hour}, t0)

	if d := r.ExecutionDate(clk); d == nil || !d.Equal(t0.Add(time.Hour)) {
		t.Fatalf("ExecutionDate = %v, want %v", d, t0.Add(time.Hour))
	}

	r.Enabled = false
	if d := r.ExecutionDate(clk); d != nil {
		t.Errorf("disabled reminder should have no execution date, got %v", d)
	}

	r.Enabled = true
	clk.Paused = true
	if d := r.ExecutionDate(clk); d != nil {
		t.Errorf("paused system should yield no execution date, got %v", d)
	}
}

func TestSkipUnskipRestoresExecutionDate(t *testing.T) {
	clk := timing.NewClockContext(clockwork.NewFakeClockAt(t0))
	r := NewReminder(ActionFeed, "", &timing.Weekly{Hour: 7, Minute: 30, Weekdays: []time.Weekday{time.Monday, time.Thursday}, TimeZone: "UTC"}, t0)

	before := *r.ExecutionDate(clk)
	now := t0.Add(2 * time.Hour)

	if err := r.Skip(now); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	skipped := *r.ExecutionDate(clk)
	if !skipped.After(before) {
		t.Errorf("skipping should push execution date past %v, got %v", before, skipped)
	}
	if u := r.UnskipDate(clk); u == nil || !u.Equal(before) {
		t.Errorf("UnskipDate = %v, want %v", u, before)
	}

	if !r.Unskip() {
		t.Fatal("Unskip reported not skipping")
	}
	after := *r.ExecutionDate(clk)
	if !after.Equal(before) || after.Location() != before.Location() {
		t.Errorf("execution date after unskip = %v, want %v", after, before)
	}
	if r.Unskip() {
		t.Error("second Unskip should report false")
	}
}

func TestCompleteSkipKeepsExecutionDate(t *testing.T) {
	clk := timing.NewClockContext(clockwork.NewFakeClockAt(t0))
	r := NewReminder(ActionBrush, "", &timing.Monthly{Hour: 9, Minute: 0, Day: 10, TimeZone: "UTC"}, t0)
	_ = r.Skip(t0)

	exec := *r.ExecutionDate(clk)
	passed := *r.UnskipDate(clk)
	if want := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC); !passed.Equal(want) {
		t.Fatalf("UnskipDate = %v, want %v", passed, want)
	}

	r.CompleteSkip(passed)
	if r.IsSkipping() {
		t.Error("skip flag should be cleared")
	}
	if got := *r.ExecutionDate(clk); !got.Equal(exec) {
		t.Errorf("execution date changed from %v to %v", exec, got)
	}
}

func TestResume(t *testing.T) {
	clk := timing.NewClockContext(clockwork.NewFakeClockAt(t0))
	tests := []struct {
		name         string
		resumeAt     time.Time
		wantSkipping bool
		wantExec     time.Time
	}{
		{
			name:         "before the skipped date",
			resumeAt:     time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC),
			wantSkipping: true,
			wantExec:     time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "after the skipped date",
			resumeAt: time.Date(2026, time.March, 12, 9, 0, 0, 0, time.UTC),
			wantExec: time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "exactly at the skipped date",
			resumeAt: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
			wantExec: time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReminder(ActionBrush, "", &timing.Monthly{Hour: 9, Minute: 0, Day: 10, TimeZone: "UTC"}, t0)
			_ = r.Skip(t0)

			r.Resume(tt.resumeAt)
			if r.IsSkipping() != tt.wantSkipping {
				t.Errorf("IsSkipping = %v, want %v", r.IsSkipping(), tt.wantSkipping)
			}
			if !r.Basis.Equal(tt.resumeAt) {
				t.Errorf("Basis = %v, want %v", r.Basis, tt.resumeAt)
			}
			if got := r.ExecutionDate(clk); got == nil || !got.Equal(tt.wantExec) {
				t.Errorf("ExecutionDate = %v, want %v", got, tt.wantExec)
			}
		})
	}

	t.Run("countdown keeps elapsed", func(t *testing.T) {
		r := NewReminder(ActionWalk, "", &timing.Countdown{Duration: time.Hour, Elapsed: 10 * time.Minute}, t0)
		later := t0.Add(3 * time.Hour)
		r.Resume(later)
		if !r.Basis.Equal(later) {
			t.Errorf("Basis = %v, want %v", r.Basis, later)
		}
		if remaining, _ := r.IntervalRemaining(clk); remaining != 50*time.Minute {
			t.Errorf("IntervalRemaining = %v, want 50m", remaining)
		}
	})
}

func TestSkipRejectsNonRecurring(t *testing.T) {
	r := NewReminder(ActionWalk, "", &timing.Countdown{Duration: time.Hour}, t0)
	if err := r.Skip(t0); err == nil {
		t.Error("expected error skipping a countdown")
	}
}

func TestCloneIsDeep(t *testing.T) {
	r := NewReminder(ActionFeed, "", &timing.Weekly{Hour: 7, Weekdays: []time.Weekday{time.Monday}}, t0)
	cp := r.Clone()
	cp.Timing.(*timing.Weekly).Hour = 22
	_ = cp.Skip(t0)

	if r.Timing.(*timing.Weekly).Hour != 7 || r.IsSkipping() {
		t.Error("mutating a clone changed the original")
	}

	orig := r
	r.CopyFrom(cp)
	if orig != r || r.Timing.(*timing.Weekly).Hour != 22 {
		t.Error("CopyFrom should update in place")
	}
}

func TestIntervalRemaining(t *testing.T) {
	clk := timing.NewClockContext(clockwork.NewFakeClockAt(t0.Add(10 * time.Minute)))

	tests := []struct {
		name     string
		reminder *Reminder
		want     time.Duration
	}{
		{
			name:     "countdown is basis relative",
			reminder: NewReminder(ActionWater, "", &timing.Countdown{Duration: time.Hour, Elapsed: 15 * time.Minute}, t0),
			want:     45 * time.Minute,
		},
		{
			name:     "one time is now relative",
			reminder: NewReminder(ActionVetVisit, "", &timing.OneTime{Date: t0.Add(time.Hour)}, t0),
			want:     50 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.reminder.IntervalRemaining(clk)
			if !ok || got != tt.want {
				t.Errorf("IntervalRemaining = %v, %v; want %v", got, ok, tt.want)
			}
		})
	}
}

func TestSyncEqualIgnoresPresentationHandled(t *testing.T) {
	a := NewReminder(ActionFeed, "", &timing.Countdown{Duration: time.Hour}, t0)
	b := a.Clone()
	b.PresentationHandled = true
	if !a.SyncEqual(b) {
		t.Error("PresentationHandled must not affect SyncEqual")
	}
	b.Enabled = false
	if a.SyncEqual(b) {
		t.Error("Enabled must affect SyncEqual")
	}
}
