package timing

import "time"

// Monthly fires at Hour:Minute on Day of every month. Months shorter than Day
// fire on their last day; every month's date is derived from Day itself, so a
// clamped month never shifts the following ones.
type Monthly struct {
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Day      int    `json:"day_of_month"`
	TimeZone string `json:"time_zone,omitempty"`
	SkipState
}

func (m *Monthly) Mode() Mode { return ModeMonthly }

func (m *Monthly) NextExecutionDate(basis time.Time) time.Time {
	return advance(m.SkipState, basis, m.next)
}

func (m *Monthly) PreviousExecutionDate(t time.Time) time.Time {
	t = t.In(location(m.TimeZone))
	c := m.occurrence(t.Year(), t.Month())
	if c.Before(t) {
		return c
	}
	return m.occurrence(t.Year(), t.Month()-1)
}

func (m *Monthly) Skip() *SkipState { return &m.SkipState }

func (m *Monthly) next(t time.Time) time.Time {
	t = t.In(location(m.TimeZone))
	c := m.occurrence(t.Year(), t.Month())
	if c.After(t) {
		return c
	}
	return m.occurrence(t.Year(), t.Month()+1)
}

// occurrence returns the fire date within the given month. month may be out of
// range; it is normalized the way time.Date does.
func (m *Monthly) occurrence(year int, month time.Month) time.Time {
	loc := location(m.TimeZone)
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	day := min(m.Day, DaysIn(first.Year(), first.Month()))
	return time.Date(first.Year(), first.Month(), day, m.Hour, m.Minute, 0, 0, loc)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (m *Monthly) Clone() Timing {
	cp := *m
	return &cp
}

func (m *Monthly) Equal(other Timing) bool {
	o, ok := other.(*Monthly)
	return ok && m.Hour == o.Hour && m.Minute == o.Minute && m.Day == o.Day &&
		m.TimeZone == o.TimeZone && m.SkipState.equal(o.SkipState)
}

func (m *Monthly) sealed() {}
