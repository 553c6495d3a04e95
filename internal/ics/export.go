// Package ics moves events in and out of iCalendar documents.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "days/internal/log"
	"days/internal/model"
	"days/internal/recurrence"
)

const (
	productID = "days"

	icalDate     = "20060102"
	icalFloating = "20060102T150405"
)

// Export renders records as a VCALENDAR. Dates are written floating (no
// TZID, no Z) so an importer sees the same wall clock; loc is only used to
// resolve records that were stored as instants. Records without a usable
// date are skipped.
func Export(records []model.EventRecord, loc *time.Location) string {
	cal := ical.NewCalendarFor(productID)
	cal.SetMethod(ical.MethodPublish)

	for _, rec := range records {
		ev, err := exportEvent(rec, loc)
		if err != nil {
			appLog.Warn("ics export skipped event", "id", rec.ID, "error", err.Error())
			continue
		}
		cal.AddVEvent(ev)
	}
	return cal.Serialize()
}

func exportEvent(rec model.EventRecord, loc *time.Location) (*ical.VEvent, error) {
	wall, ok := rec.EventDate.Wall(loc)
	if !ok {
		return nil, errInvalidDate
	}

	ev := ical.NewEvent(rec.ID)
	ev.SetDtStampTime(rec.UpdatedAt)
	if !rec.CreatedAt.IsZero() {
		ev.SetCreatedTime(rec.CreatedAt)
	}
	if !rec.UpdatedAt.IsZero() {
		ev.SetModifiedAt(rec.UpdatedAt)
	}
	ev.SetSummary(rec.Title)
	if rec.Description != "" {
		ev.SetDescription(rec.Description)
	}
	if rec.Location != "" {
		ev.SetLocation(rec.Location)
	}
	if rec.CategoryID != "" {
		ev.AddCategory(rec.CategoryID)
	}
	if rec.ImageURL != "" {
		ev.SetURL(rec.ImageURL)
	}

	day := time.Date(wall.Year(), wall.Month(), wall.Day(), 0, 0, 0, 0, time.UTC)
	start := wall
	switch s := rec.Schedule.(type) {
	case model.Timed:
		start = day.Add(clockOffset(s.Start))
		end := day.Add(clockOffset(s.End))
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
		ev.SetProperty(ical.ComponentPropertyDtStart, start.Format(icalFloating))
		ev.SetProperty(ical.ComponentPropertyDtEnd, end.Format(icalFloating))
	default:
		start = day
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
	}

	if rec.Recurrence != nil {
		rule, err := recurrence.RuleString(rec.Recurrence, start)
		if err != nil {
			return nil, err
		}
		ev.AddRrule(rule)
	}
	return ev, nil
}

func clockOffset(c model.ClockTime) time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute
}
