package timing

import "time"

// OneTime fires at a fixed date regardless of basis.
type OneTime struct {
	Date time.Time `json:"date"`
}

func (o *OneTime) Mode() Mode { return ModeOneTime }

func (o *OneTime) NextExecutionDate(time.Time) time.Time { return o.Date }

func (o *OneTime) Clone() Timing {
	cp := *o
	return &cp
}

func (o *OneTime) Equal(other Timing) bool {
	p, ok := other.(*OneTime)
	return ok && o.Date.Equal(p.Date)
}

func (o *OneTime) sealed() {}
