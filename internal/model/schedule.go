package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Schedule says whether an event spans the whole day or a time range.
// Implemented only by AllDay and Timed.
type Schedule interface {
	IsAllDay() bool
	schedule()
}

type AllDay struct{}

func (AllDay) IsAllDay() bool { return true }
func (AllDay) schedule()      {}

type Timed struct {
	Start ClockTime
	End   ClockTime
}

func (Timed) IsAllDay() bool { return false }
func (Timed) schedule()      {}

// ClockTime is a wall-clock "HH:MM" between 00:00 and 23:59.
type ClockTime struct {
	Hour   int
	Minute int
}

func ParseClockTime(s string) (ClockTime, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return ClockTime{}, fmt.Errorf("clock time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, fmt.Errorf("clock time %q: hour out of range", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("clock time %q: minute out of range", s)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ScheduleInput is the flat wire shape of a Schedule.
type ScheduleInput struct {
	IsAllDay  bool   `json:"isAllDay"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// ScheduleInputOf converts back to the wire shape.
func ScheduleInputOf(s Schedule) ScheduleInput {
	t, ok := s.(Timed)
	if !ok {
		return ScheduleInput{IsAllDay: true}
	}
	return ScheduleInput{StartTime: t.Start.String(), EndTime: t.End.String()}
}

// Build enforces the all-day rule: all-day forbids times, otherwise both
// times are required.
func (in ScheduleInput) Build() (Schedule, []FieldError) {
	start := strings.TrimSpace(in.StartTime)
	end := strings.TrimSpace(in.EndTime)

	if in.IsAllDay {
		var errs []FieldError
		if start != "" {
			errs = append(errs, FieldError{Field: "startTime", Rule: "excluded_if", Message: "must be empty for an all-day event"})
		}
		if end != "" {
			errs = append(errs, FieldError{Field: "endTime", Rule: "excluded_if", Message: "must be empty for an all-day event"})
		}
		if len(errs) > 0 {
			return nil, errs
		}
		return AllDay{}, nil
	}

	var errs []FieldError
	st, err := clockField("startTime", start)
	if err != nil {
		errs = append(errs, *err)
	}
	et, err := clockField("endTime", end)
	if err != nil {
		errs = append(errs, *err)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return Timed{Start: st, End: et}, nil
}

func clockField(name, v string) (ClockTime, *FieldError) {
	if v == "" {
		return ClockTime{}, &FieldError{Field: name, Rule: "required_unless", Message: "required unless isAllDay is set"}
	}
	c, err := ParseClockTime(v)
	if err != nil {
		return ClockTime{}, &FieldError{Field: name, Rule: "clock", Message: "must be HH:MM"}
	}
	return c, nil
}
