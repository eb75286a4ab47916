package timing

import (
	"slices"
	"time"

	"github.com/teambition/rrule-go"
)

// Weekly fires at Hour:Minute on each selected weekday.
type Weekly struct {
	Hour     int            `json:"hour"`
	Minute   int            `json:"minute"`
	Weekdays []time.Weekday `json:"weekdays"`
	TimeZone string         `json:"time_zone,omitempty"`
	SkipState
}

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

func (w *Weekly) Mode() Mode { return ModeWeekly }

func (w *Weekly) NextExecutionDate(basis time.Time) time.Time {
	return advance(w.SkipState, basis, w.next)
}

func (w *Weekly) PreviousExecutionDate(t time.Time) time.Time {
	r, err := w.rule(t.AddDate(0, 0, -8))
	if err != nil {
		return time.Time{}
	}
	return r.Before(t, false)
}

func (w *Weekly) Skip() *SkipState { return &w.SkipState }

// next returns the first occurrence strictly after t.
func (w *Weekly) next(t time.Time) time.Time {
	r, err := w.rule(t.AddDate(0, 0, -1))
	if err != nil {
		return time.Time{}
	}
	return r.After(t, false)
}

// rule builds a weekly recurrence starting at midnight of from's day.
func (w *Weekly) rule(from time.Time) (*rrule.RRule, error) {
	from = from.In(location(w.TimeZone))
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())

	days := make([]rrule.Weekday, 0, len(w.Weekdays))
	for _, d := range w.Weekdays {
		if d >= time.Sunday && d <= time.Saturday {
			days = append(days, rruleWeekdays[d])
		}
	}

	return rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Byweekday: days,
		Byhour:    []int{w.Hour},
		Byminute:  []int{w.Minute},
		Bysecond:  []int{0},
	})
}

// EarliestWeekday returns the lowest selected weekday, used for ordering.
func (w *Weekly) EarliestWeekday() time.Weekday {
	if len(w.Weekdays) == 0 {
		return time.Saturday + 1
	}
	return slices.Min(w.Weekdays)
}

func (w *Weekly) Clone() Timing {
	cp := *w
	cp.Weekdays = slices.Clone(w.Weekdays)
	return &cp
}

func (w *Weekly) Equal(other Timing) bool {
	o, ok := other.(*Weekly)
	if !ok {
		return false
	}
	a, b := slices.Clone(w.Weekdays), slices.Clone(o.Weekdays)
	slices.Sort(a)
	slices.Sort(b)
	return w.Hour == o.Hour && w.Minute == o.Minute && w.TimeZone == o.TimeZone &&
		slices.Equal(a, b) && w.SkipState.equal(o.SkipState)
}

func (w *Weekly) sealed() {}
