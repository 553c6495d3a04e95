package model

import "time"

const (
	// LocalOwnerID is assigned to records created while nobody is signed in.
	LocalOwnerID = "local_user"

	// MaxTitleLength bounds EventRecord.Title in runes. Longer titles are
	// rejected, never truncated.
	MaxTitleLength = 200

	// DisplayTitleLimit is the number of runes a compact surface (widget tile,
	// list row) shows before truncating with an ellipsis. Only renderers apply
	// it.
	DisplayTitleLimit = 25
)

// EventRecord is one user-created countdown event as held by the store.
// Renderers receive copies and never mutate them.
type EventRecord struct {
	ID      string
	OwnerID string

	Title     string
	EventDate EventDate

	// Schedule is AllDay{} or Timed{...}. A nil Schedule reads as all-day.
	Schedule Schedule

	Description string
	Location    string
	CategoryID  string
	ImageURL    string

	// Recurrence is opaque metadata unless a recurrence resolver is plugged
	// into the query layer.
	Recurrence *Recurrence

	// CreatedAt / UpdatedAt are UTC.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAllDay reports whether the record has no start/end times.
func (r EventRecord) IsAllDay() bool {
	return r.Schedule == nil || r.Schedule.IsAllDay()
}

// Times returns the "HH:MM" start and end times, or empty strings for an
// all-day record.
func (r EventRecord) Times() (start, end string) {
	t, ok := r.Schedule.(Timed)
	if !ok {
		return "", ""
	}
	return t.Start.String(), t.End.String()
}

// Clone returns a deep copy so callers can't alias the store's slices.
func (r EventRecord) Clone() EventRecord {
	out := r
	if r.Recurrence != nil {
		rec := r.Recurrence.clone()
		out.Recurrence = &rec
	}
	return out
}

// DisplayTitle truncates title to limit runes, appending "..." when cut.
func DisplayTitle(title string, limit int) string {
	if limit <= 0 {
		return title
	}
	runes := []rune(title)
	if len(runes) <= limit {
		return title
	}
	return string(runes[:limit]) + "..."
}
