// Package recurrence places repeating events with teambition/rrule-go.
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "days/internal/log"
	"days/internal/model"
)

// maxOccurrences caps Between so an open-ended DAILY rule can't flood a
// calendar view.
const maxOccurrences = 1000

var weekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

var frequencies = map[model.Frequency]rrule.Frequency{
	model.Daily:   rrule.DAILY,
	model.Weekly:  rrule.WEEKLY,
	model.Monthly: rrule.MONTHLY,
	model.Yearly:  rrule.YEARLY,
}

// Resolver implements query.RangeResolver. Records without a rule resolve to
// their EventDate.
type Resolver struct{}

// Occurrence returns the first occurrence strictly after now. When the rule
// has run out it returns the last one, so a finished series still shows up
// under previous events.
func (Resolver) Occurrence(rec model.EventRecord, now time.Time) (time.Time, bool) {
	start, ok := rec.EventDate.In(now.Location())
	if !ok {
		return time.Time{}, false
	}
	if rec.Recurrence == nil {
		return start, true
	}

	r, err := Rule(rec.Recurrence, start)
	if err != nil {
		appLog.Warn("recurrence: ignoring unusable rule", "id", rec.ID, "error", err.Error())
		return start, true
	}
	if next := r.After(now, false); !next.IsZero() {
		return next, true
	}
	if last := r.Before(now, true); !last.IsZero() {
		return last, true
	}
	return start, true
}

// Between lists occurrences in [from, to).
func (Resolver) Between(rec model.EventRecord, from, to time.Time) []time.Time {
	start, ok := rec.EventDate.In(from.Location())
	if !ok {
		return nil
	}
	if rec.Recurrence == nil {
		if start.Before(from) || !start.Before(to) {
			return nil
		}
		return []time.Time{start}
	}

	r, err := Rule(rec.Recurrence, start)
	if err != nil {
		appLog.Warn("recurrence: ignoring unusable rule", "id", rec.ID, "error", err.Error())
		return nil
	}

	var out []time.Time
	for _, t := range r.Between(from, to, true) {
		if !t.Before(to) {
			continue
		}
		out = append(out, t)
		if len(out) == maxOccurrences {
			appLog.Warn("recurrence: truncated occurrences", "id", rec.ID, "cap", maxOccurrences)
			break
		}
	}
	return out
}

// Rule builds an RRULE anchored at dtstart. Until covers the whole of its
// calendar day.
func Rule(rec *model.Recurrence, dtstart time.Time) (*rrule.RRule, error) {
	freq, ok := frequencies[rec.Frequency]
	if !ok {
		return nil, fmt.Errorf("unsupported frequency %q", rec.Frequency)
	}

	opt := rrule.ROption{
		Freq:       freq,
		Dtstart:    dtstart,
		Interval:   max(1, rec.Interval),
		Count:      rec.Count,
		Bymonthday: rec.ByMonthDay,
		Bymonth:    rec.ByMonth,
	}
	for _, d := range rec.ByDay {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("weekday %d out of range", d)
		}
		opt.Byweekday = append(opt.Byweekday, weekdays[d])
	}
	if rec.Until != nil {
		until, ok := rec.Until.In(dtstart.Location())
		if !ok {
			return nil, fmt.Errorf("until %q is not a date", rec.Until.String())
		}
		y, m, d := until.Date()
		opt.Until = time.Date(y, m, d, 23, 59, 59, 0, dtstart.Location())
	}
	return rrule.NewRRule(opt)
}

// RuleString renders rec as an RRULE value (without DTSTART), for
// iCalendar export.
func RuleString(rec *model.Recurrence, dtstart time.Time) (string, error) {
	r, err := Rule(rec, dtstart)
	if err != nil {
		return "", err
	}
	return r.OrigOptions.RRuleString(), nil
}

// FromRuleString parses an RRULE value back into a Recurrence. Parts the
// model has no field for are dropped.
func FromRuleString(s string, loc *time.Location) (*model.Recurrence, error) {
	opt, err := rrule.StrToROptionInLocation(s, loc)
	if err != nil {
		return nil, err
	}

	rec := &model.Recurrence{
		Interval:   max(1, opt.Interval),
		Count:      opt.Count,
		ByMonthDay: opt.Bymonthday,
		ByMonth:    opt.Bymonth,
	}
	for f, rf := range frequencies {
		if rf == opt.Freq {
			rec.Frequency = f
		}
	}
	if rec.Frequency == "" {
		return nil, fmt.Errorf("unsupported frequency %s", opt.Freq)
	}
	for _, wd := range opt.Byweekday {
		// rrule counts Monday as 0.
		rec.ByDay = append(rec.ByDay, (wd.Day()+1)%7)
	}
	if !opt.Until.IsZero() {
		u := model.NewEventDate(opt.Until.In(loc))
		rec.Until = &u
	}
	return rec, nil
}
