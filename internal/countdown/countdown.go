// Package countdown turns "now" and an event time into the days-remaining
// figures and labels shown on every surface. It never reads the clock.
package countdown

import (
	"fmt"
	"math"
	"time"
)

type Bucket string

const (
	Past     Bucket = "PAST"
	Today    Bucket = "TODAY"
	Tomorrow Bucket = "TOMORROW"
	InDays   Bucket = "IN_N_DAYS"
	InWeeks  Bucket = "IN_N_WEEKS"
	InMonths Bucket = "IN_N_MONTHS"
	InYears  Bucket = "IN_N_YEARS"
)

type Result struct {
	// TotalDaysRemaining is ceil((target-now)/24h); negative once past.
	TotalDaysRemaining int `json:"totalDaysRemaining"`

	// Months and Days split the distance between the two local calendar
	// dates. Both are non-negative; for past events they count backwards.
	Months int `json:"months"`
	Days   int `json:"days"`

	Bucket Bucket `json:"bucket"`
	// N is the count shown in the label (days, weeks, months or years).
	N     int    `json:"n"`
	Label string `json:"label"`
}

// Calculate interprets target in now's location.
func Calculate(now, target time.Time) Result {
	target = target.In(now.Location())

	diff := target.Sub(now)
	diffDays := int(math.Ceil(float64(diff) / float64(24*time.Hour)))

	from, to := now, target
	if to.Before(from) {
		from, to = to, from
	}
	months, days := calendarDiff(from, to)

	r := Result{TotalDaysRemaining: diffDays, Months: months, Days: days}

	// Labels count calendar days, so anything later today is TODAY and
	// anything on the next local date is TOMORROW.
	d := dayDiff(now, target)
	switch {
	case d < 0:
		r.Bucket, r.N = Past, -d
		r.Label = fmt.Sprintf("%d DAYS AGO", r.N)
	case d == 0:
		r.Bucket, r.Label = Today, "TODAY"
	case d == 1:
		r.Bucket, r.N, r.Label = Tomorrow, 1, "TOMORROW"
	case d < 7:
		r.Bucket, r.N = InDays, d
		r.Label = fmt.Sprintf("IN %d DAYS", r.N)
	case d < 30:
		r.Bucket, r.N = InWeeks, ceilDiv(d, 7)
		r.Label = fmt.Sprintf("IN %d WEEKS", r.N)
	case d < 365:
		r.Bucket, r.N = InMonths, max(1, monthsCeil(months, days))
		r.Label = fmt.Sprintf("IN %d MONTHS", r.N)
	default:
		r.Bucket, r.N = InYears, max(1, ceilDiv(monthsCeil(months, days), 12))
		r.Label = fmt.Sprintf("IN %d YEARS", r.N)
	}
	return r
}

// calendarDiff counts whole months and leftover days between the local
// dates of from and to (from <= to). A negative day difference borrows the
// length of the month before the one being borrowed from, repeatedly, so
// Jan 31 -> Mar 1 is 0 months 30 days in a leap year.
func calendarDiff(from, to time.Time) (months, days int) {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()

	months = (ty-fy)*12 + int(tm-fm)
	days = td - fd

	by, bm := ty, tm
	for days < 0 && months > 0 {
		months--
		bm--
		days += daysIn(by, bm)
	}
	if days < 0 {
		days = 0
	}
	return months, days
}

// dayDiff is the number of local calendar dates from now to target.
func dayDiff(now, target time.Time) int {
	ny, nm, nd := now.Date()
	ty, tm, td := target.Date()
	a := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// daysIn tolerates month <= 0 by letting time.Date normalize the year.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// monthsCeil rounds a partial month up. 31 days from Jan 1 is 1 month 0
// days here and reads "IN 1 MONTHS", where ceil(31/30) would show 2.
func monthsCeil(months, days int) int {
	if days > 0 {
		return months + 1
	}
	return months
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// DateLabel is the short date every renderer prints, e.g. "Sat, Jun 1".
func DateLabel(t time.Time) string {
	return t.Format("Mon, Jan 2")
}
