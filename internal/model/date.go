package model

import (
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the persisted form of an EventDate: ISO-8601 without offset.
const DateLayout = "2006-01-02T15:04:05"

// Accepted on read, tried in order. Fractional seconds are tolerated by
// time.Parse after the seconds field.
var naiveLayouts = []string{
	DateLayout,
	"2006-01-02T15:04",
	"2006-01-02",
}

// EventDate is a timezone-naive calendar date-time. "Three days away" is
// measured against the reader's wall clock, so the value only becomes an
// instant once a location is supplied through In.
//
// Values stored as RFC 3339 instants (older data) are kept as instants and
// converted into the reader's location. Values that parse as neither are
// kept verbatim so that a save writes them back unchanged, and report
// Valid() == false.
type EventDate struct {
	t       time.Time
	instant bool
	raw     string
	literal bool // raw is a JSON literal rather than a string
	ok      bool
}

// NewEventDate captures the wall-clock fields of t in t's own location.
func NewEventDate(t time.Time) EventDate {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	return EventDate{t: wall, ok: true}
}

// Date is shorthand for a midnight EventDate.
func Date(year int, month time.Month, day int) EventDate {
	return NewEventDate(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseEventDate never fails; check Valid on the result.
func ParseEventDate(s string) EventDate {
	v := strings.TrimSpace(s)
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return NewEventDate(t)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return EventDate{t: t, instant: true, raw: s, ok: true}
	}
	return EventDate{raw: s}
}

// Valid reports whether the value could be parsed.
func (d EventDate) Valid() bool { return d.ok }

// IsZero reports whether nothing was ever assigned.
func (d EventDate) IsZero() bool { return !d.ok && d.raw == "" }

// In resolves the date in loc (time.Local when nil).
func (d EventDate) In(loc *time.Location) (time.Time, bool) {
	if !d.ok {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if d.instant {
		return d.t.In(loc), true
	}
	return time.Date(d.t.Year(), d.t.Month(), d.t.Day(), d.t.Hour(), d.t.Minute(), d.t.Second(), 0, loc), true
}

// Wall returns the naive wall-clock value as seen from loc, with the
// location set to UTC. Used for floating iCalendar times.
func (d EventDate) Wall(loc *time.Location) (time.Time, bool) {
	t, ok := d.In(loc)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), true
}

// SameDay reports whether d falls on the same local calendar day as t.
func (d EventDate) SameDay(t time.Time) bool {
	v, ok := d.In(t.Location())
	if !ok {
		return false
	}
	y1, m1, d1 := v.Date()
	y2, m2, d2 := t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (d EventDate) String() string {
	if !d.ok || d.instant {
		return d.raw
	}
	return d.t.Format(DateLayout)
}

func (d EventDate) MarshalJSON() ([]byte, error) {
	if d.literal {
		return []byte(d.raw), nil
	}
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *EventDate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = EventDate{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*d = EventDate{raw: string(data), literal: true}
		return nil
	}
	*d = ParseEventDate(s)
	return nil
}

func (d EventDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *EventDate) UnmarshalText(text []byte) error {
	*d = ParseEventDate(string(text))
	return nil
}
