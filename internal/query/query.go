// Package query derives timeline views from a loaded event collection.
// Everything here is pure: callers pass "now" in.
package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"days/internal/model"
)

// Resolver decides which instant a record counts down to. The default uses
// EventDate verbatim; a recurrence resolver returns the next occurrence.
type Resolver interface {
	Occurrence(rec model.EventRecord, now time.Time) (time.Time, bool)
}

// RangeResolver additionally lists occurrences inside [from, to), for
// calendar views.
type RangeResolver interface {
	Resolver
	Between(rec model.EventRecord, from, to time.Time) []time.Time
}

// Verbatim resolves EventDate in now's location.
type Verbatim struct{}

func (Verbatim) Occurrence(rec model.EventRecord, now time.Time) (time.Time, bool) {
	return rec.EventDate.In(now.Location())
}

// Item is a record with the instant it was placed at.
type Item struct {
	Record model.EventRecord
	At     time.Time
}

// Service is safe for concurrent use. The zero value uses Verbatim.
type Service struct {
	Resolver Resolver
}

func New(r Resolver) *Service {
	return &Service{Resolver: r}
}

func (s *Service) resolver() Resolver {
	if s == nil || s.Resolver == nil {
		return Verbatim{}
	}
	return s.Resolver
}

// Occurrence places a single record.
func (s *Service) Occurrence(rec model.EventRecord, now time.Time) (time.Time, bool) {
	return s.resolver().Occurrence(rec, now)
}

// resolve drops records without a usable date.
func (s *Service) resolve(records []model.EventRecord, now time.Time) []Item {
	r := s.resolver()
	items := make([]Item, 0, len(records))
	for _, rec := range records {
		at, ok := r.Occurrence(rec, now)
		if !ok {
			continue
		}
		items = append(items, Item{Record: rec, At: at})
	}
	return items
}

// Upcoming returns records strictly after now, soonest first. Ties keep
// their stored order.
func (s *Service) Upcoming(records []model.EventRecord, now time.Time) []Item {
	out := slices.DeleteFunc(s.resolve(records, now), func(it Item) bool { return !it.At.After(now) })
	slices.SortStableFunc(out, byAt)
	return out
}

// Previous returns records at or before now, most recent first.
func (s *Service) Previous(records []model.EventRecord, now time.Time) []Item {
	out := slices.DeleteFunc(s.resolve(records, now), func(it Item) bool { return it.At.After(now) })
	slices.SortStableFunc(out, func(a, b Item) int { return byAt(b, a) })
	return out
}

// Next is the first upcoming record.
func (s *Service) Next(records []model.EventRecord, now time.Time) (Item, bool) {
	up := s.Upcoming(records, now)
	if len(up) == 0 {
		return Item{}, false
	}
	return up[0], true
}

// OnDate returns records falling on day's local calendar date, by time.
func (s *Service) OnDate(records []model.EventRecord, day time.Time) []Item {
	start := midnight(day)
	end := start.AddDate(0, 0, 1)
	var out []Item
	for _, rec := range records {
		for _, at := range s.between(rec, start, end) {
			out = append(out, Item{Record: rec, At: at})
		}
	}
	slices.SortStableFunc(out, byAt)
	return out
}

// MonthMarks counts events per day of month for a calendar grid.
func (s *Service) MonthMarks(records []model.EventRecord, year int, month time.Month, loc *time.Location) map[int]int {
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	marks := make(map[int]int)
	for _, rec := range records {
		for _, at := range s.between(rec, start, end) {
			marks[at.Day()]++
		}
	}
	return marks
}

func (s *Service) between(rec model.EventRecord, from, to time.Time) []time.Time {
	if rr, ok := s.resolver().(RangeResolver); ok && rec.Recurrence != nil {
		return rr.Between(rec, from, to)
	}
	at, ok := rec.EventDate.In(from.Location())
	if !ok || at.Before(from) || !at.Before(to) {
		return nil
	}
	return []time.Time{at}
}

func byAt(a, b Item) int {
	return a.At.Compare(b.At)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

type Status string

const (
	StatusAll      Status = "all"
	StatusUpcoming Status = "upcoming"
	StatusPrevious Status = "previous"
)

type SortBy string

const (
	SortByDate      SortBy = "date"
	SortByTitle     SortBy = "title"
	SortByCreatedAt SortBy = "createdAt"
)

// Filter mirrors the list screen's filter bar. Zero values mean "any".
// From and To bound the occurrence's calendar day, inclusive.
type Filter struct {
	Status     Status
	CategoryID string
	Search     string
	From       time.Time
	To         time.Time
	SortBy     SortBy
	// SortOrder is "asc" or "desc". Empty picks desc for previous events
	// and asc otherwise.
	SortOrder string
}

func (s *Service) Filter(records []model.EventRecord, now time.Time, f Filter) []Item {
	var items []Item
	switch f.Status {
	case StatusUpcoming:
		items = s.Upcoming(records, now)
	case StatusPrevious:
		items = s.Previous(records, now)
	default:
		items = s.resolve(records, now)
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	items = slices.DeleteFunc(items, func(it Item) bool {
		if f.CategoryID != "" && it.Record.CategoryID != f.CategoryID {
			return true
		}
		if search != "" && !matches(it.Record, search) {
			return true
		}
		if !f.From.IsZero() && it.At.Before(midnight(f.From.In(now.Location()))) {
			return true
		}
		if !f.To.IsZero() && !it.At.Before(midnight(f.To.In(now.Location())).AddDate(0, 0, 1)) {
			return true
		}
		return false
	})

	desc := f.SortOrder == "desc" || (f.SortOrder == "" && f.Status == StatusPrevious)
	cmpFn := func(a, b Item) int {
		var c int
		switch f.SortBy {
		case SortByTitle:
			c = cmp.Compare(strings.ToLower(a.Record.Title), strings.ToLower(b.Record.Title))
		case SortByCreatedAt:
			c = a.Record.CreatedAt.Compare(b.Record.CreatedAt)
		default:
			c = byAt(a, b)
		}
		if desc {
			return -c
		}
		return c
	}
	slices.SortStableFunc(items, cmpFn)
	return items
}

func matches(rec model.EventRecord, needle string) bool {
	for _, hay := range []string{rec.Title, rec.Description, rec.Location} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// Records strips the placement from items.
func Records(items []Item) []model.EventRecord {
	out := make([]model.EventRecord, len(items))
	for i, it := range items {
		out[i] = it.Record
	}
	return out
}
