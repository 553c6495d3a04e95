package model

import (
	"slices"
	"strings"
)

type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// Recurrence describes how an event repeats. ByDay uses 0=Sunday..6=Saturday.
type Recurrence struct {
	Frequency  Frequency  `json:"frequency" validate:"required,oneof=DAILY WEEKLY MONTHLY YEARLY"`
	Interval   int        `json:"interval" validate:"gte=1"`
	ByDay      []int      `json:"byDay,omitempty" validate:"omitempty,dive,min=0,max=6"`
	ByMonthDay []int      `json:"byMonthDay,omitempty" validate:"omitempty,dive,min=1,max=31"`
	ByMonth    []int      `json:"byMonth,omitempty" validate:"omitempty,dive,min=1,max=12"`
	Until      *EventDate `json:"until,omitempty" validate:"-"`
	Count      int        `json:"count,omitempty" validate:"gte=0"`
}

func (r Recurrence) clone() Recurrence {
	out := r
	out.ByDay = slices.Clone(r.ByDay)
	out.ByMonthDay = slices.Clone(r.ByMonthDay)
	out.ByMonth = slices.Clone(r.ByMonth)
	if r.Until != nil {
		u := *r.Until
		out.Until = &u
	}
	return out
}

func (r *Recurrence) normalize() {
	r.Frequency = Frequency(strings.ToUpper(strings.TrimSpace(string(r.Frequency))))
	if r.Interval == 0 {
		r.Interval = 1
	}
}
