package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "days/internal/log"
	"days/internal/model"
	"days/internal/recurrence"
)

var (
	errEmptyBody   = errors.New("empty ICS body")
	errInvalidDate = errors.New("event has no usable date")
)

// Import turns every VEVENT in body into an EventInput. Events that can't
// be read or don't validate are logged and skipped; only an unreadable
// calendar is an error. Times carrying a zone (Z or TZID) are converted to
// loc, floating and date values are taken as written.
func Import(body []byte, loc *time.Location) ([]model.EventInput, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errEmptyBody
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	seen := map[string]bool{}
	inputs := make([]model.EventInput, 0)
	skipped := 0

	for _, ve := range cal.Events() {
		uid := ve.Id()
		if uid != "" && seen[uid] {
			// Overrides of one instance (RECURRENCE-ID) share the series UID.
			appLog.Debug("ics duplicate uid skipped", "uid", uid)
			skipped++
			continue
		}

		in, perr := parseVEvent(ve, loc)
		if perr == nil {
			in.Normalize()
			perr = in.Validate()
		}
		if perr != nil {
			appLog.Error("ics vevent skipped", perr, "uid", uid)
			skipped++
			continue
		}
		if uid != "" {
			seen[uid] = true
		}
		inputs = append(inputs, in)
	}

	appLog.Info("ics parse completed", "event_count", len(inputs), "skipped", skipped)
	return inputs, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.EventInput, error) {
	var in model.EventInput

	if ve.GetProperty(ical.ComponentPropertyRecurrenceId) != nil {
		return in, errors.New("instance overrides are not supported")
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		in.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		in.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		in.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		first, _, _ := strings.Cut(p.Value, ",")
		in.CategoryID = strings.TrimSpace(first)
	}
	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil {
		in.ImageURL = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return in, errors.New("missing DTSTART")
	}
	start, allDay, err := propTime(ve, startProp, loc, ical.ComponentPropertyDtStart)
	if err != nil {
		return in, fmt.Errorf("DTSTART: %w", err)
	}

	if allDay {
		in.EventDate = model.Date(start.Year(), start.Month(), start.Day())
		in.IsAllDay = true
	} else {
		end := start.Add(time.Hour)
		if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
			if t, _, err := propTime(ve, endProp, loc, ical.ComponentPropertyDtEnd); err == nil {
				end = t
			}
		}
		in.EventDate = model.NewEventDate(start)
		in.StartTime = start.Format("15:04")
		in.EndTime = end.Format("15:04")
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		// Dates above are already wall values, so the rule is read in UTC
		// the same way it was written.
		rule, err := recurrence.FromRuleString(p.Value, time.UTC)
		if err != nil {
			appLog.Warn("ics rrule dropped", "uid", ve.Id(), "rrule", p.Value, "error", err.Error())
		} else {
			in.Recurrence = rule
		}
	}
	return in, nil
}

// propTime returns the wall-clock value of a DTSTART/DTEND with the
// location set to UTC, and whether it is a date without a time.
func propTime(ve *ical.VEvent, p *ical.IANAProperty, loc *time.Location, which ical.ComponentProperty) (time.Time, bool, error) {
	val := strings.TrimSpace(p.Value)

	if isDateValue(p) {
		t, err := time.Parse(icalDate, val[:min(len(val), len(icalDate))])
		return t, true, err
	}

	_, hasTZID := p.ICalParameters[string(ical.ParameterTzid)]
	if !hasTZID && !strings.HasSuffix(val, "Z") {
		t, err := time.Parse(icalFloating, val)
		return t, false, err
	}

	var (
		t   time.Time
		err error
	)
	if which == ical.ComponentPropertyDtEnd {
		t, err = ve.GetEndAt()
	} else {
		t, err = ve.GetStartAt()
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), false, nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs := p.ICalParameters[string(ical.ParameterValue)]; len(vs) > 0 && strings.EqualFold(vs[0], string(ical.ValueDataTypeDate)) {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
