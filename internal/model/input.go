package model

import (
	"encoding/json"
	"strings"
)

// EventInput is what a caller supplies to create an event. The store fills
// in ID, owner and timestamps.
type EventInput struct {
	Title     string    `json:"title" validate:"required,max=200"`
	EventDate EventDate `json:"date" validate:"-"`

	ScheduleInput

	Description string      `json:"description,omitempty" validate:"max=5000"`
	Location    string      `json:"location,omitempty" validate:"max=500"`
	CategoryID  string      `json:"categoryId,omitempty" validate:"max=128"`
	ImageURL    string      `json:"imageUrl,omitempty" validate:"omitempty,uri"`
	Recurrence  *Recurrence `json:"recurrence,omitempty" validate:"-"`
}

// Normalize trims free-text fields in place.
func (in *EventInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.Recurrence != nil {
		in.Recurrence.normalize()
	}
}

// Validate returns a *ValidationError listing every rejected field.
func (in EventInput) Validate() error {
	errs := checkStruct(in)
	errs = append(errs, checkDate("date", in.EventDate)...)
	if _, serrs := in.ScheduleInput.Build(); len(serrs) > 0 {
		errs = append(errs, serrs...)
	}
	errs = append(errs, checkRecurrence(in.Recurrence)...)
	return asError(errs)
}

// Record builds the user-controlled part of a record. Call Validate first.
func (in EventInput) Record() EventRecord {
	sched, _ := in.ScheduleInput.Build()
	if sched == nil {
		sched = AllDay{}
	}
	rec := EventRecord{
		Title:       in.Title,
		EventDate:   in.EventDate,
		Schedule:    sched,
		Description: in.Description,
		Location:    in.Location,
		CategoryID:  in.CategoryID,
		ImageURL:    in.ImageURL,
	}
	if in.Recurrence != nil {
		r := in.Recurrence.clone()
		rec.Recurrence = &r
	}
	return rec
}

// InputOf converts a record back to its input shape (used by export/import).
func InputOf(r EventRecord) EventInput {
	in := EventInput{
		Title:         r.Title,
		EventDate:     r.EventDate,
		ScheduleInput: ScheduleInputOf(r.Schedule),
		Description:   r.Description,
		Location:      r.Location,
		CategoryID:    r.CategoryID,
		ImageURL:      r.ImageURL,
	}
	if r.Recurrence != nil {
		rec := r.Recurrence.clone()
		in.Recurrence = &rec
	}
	return in
}

// Patch is a shallow update: nil fields are left alone. Schedule replaces
// both the all-day flag and the times together. ClearRecurrence removes an
// existing rule; it wins over Recurrence.
type Patch struct {
	Title           *string        `json:"title,omitempty"`
	EventDate       *EventDate     `json:"date,omitempty"`
	Schedule        *ScheduleInput `json:"schedule,omitempty"`
	Description     *string        `json:"description,omitempty"`
	Location        *string        `json:"location,omitempty"`
	CategoryID      *string        `json:"categoryId,omitempty"`
	ImageURL        *string        `json:"imageUrl,omitempty"`
	Recurrence      *Recurrence    `json:"recurrence,omitempty"`
	ClearRecurrence bool           `json:"clearRecurrence,omitempty"`
}

// UnmarshalJSON also accepts the record's flat isAllDay/startTime/endTime
// keys, so a client can send back a field it read.
func (p *Patch) UnmarshalJSON(data []byte) error {
	type plain Patch
	aux := struct {
		*plain
		IsAllDay  *bool   `json:"isAllDay"`
		StartTime *string `json:"startTime"`
		EndTime   *string `json:"endTime"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.Schedule == nil && (aux.IsAllDay != nil || aux.StartTime != nil || aux.EndTime != nil) {
		s := ScheduleInput{}
		if aux.IsAllDay != nil {
			s.IsAllDay = *aux.IsAllDay
		}
		if aux.StartTime != nil {
			s.StartTime = *aux.StartTime
		}
		if aux.EndTime != nil {
			s.EndTime = *aux.EndTime
		}
		p.Schedule = &s
	}
	return nil
}

// Empty reports whether applying p would change nothing but UpdatedAt.
func (p Patch) Empty() bool {
	return p.Title == nil && p.EventDate == nil && p.Schedule == nil &&
		p.Description == nil && p.Location == nil && p.CategoryID == nil &&
		p.ImageURL == nil && p.Recurrence == nil && !p.ClearRecurrence
}

// Normalize trims provided free-text fields in place.
func (p *Patch) Normalize() {
	for _, f := range []*string{p.Title, p.Description, p.Location, p.CategoryID, p.ImageURL} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	if p.Recurrence != nil {
		p.Recurrence.normalize()
	}
}

func (p Patch) Validate() error {
	var errs []FieldError
	if p.Title != nil {
		errs = append(errs, checkVar("title", *p.Title, "required,max=200")...)
	}
	if p.EventDate != nil {
		errs = append(errs, checkDate("date", *p.EventDate)...)
	}
	if p.Schedule != nil {
		if _, serrs := p.Schedule.Build(); len(serrs) > 0 {
			errs = append(errs, serrs...)
		}
	}
	if p.Description != nil {
		errs = append(errs, checkVar("description", *p.Description, "max=5000")...)
	}
	if p.Location != nil {
		errs = append(errs, checkVar("location", *p.Location, "max=500")...)
	}
	if p.CategoryID != nil {
		errs = append(errs, checkVar("categoryId", *p.CategoryID, "max=128")...)
	}
	if p.ImageURL != nil {
		errs = append(errs, checkVar("imageUrl", *p.ImageURL, "omitempty,uri")...)
	}
	if !p.ClearRecurrence {
		errs = append(errs, checkRecurrence(p.Recurrence)...)
	}
	return asError(errs)
}

// Apply merges p into a copy of r. Timestamps are the caller's business.
func (p Patch) Apply(r EventRecord) EventRecord {
	out := r.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.EventDate != nil {
		out.EventDate = *p.EventDate
	}
	if p.Schedule != nil {
		if s, errs := p.Schedule.Build(); len(errs) == 0 {
			out.Schedule = s
		}
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Location != nil {
		out.Location = *p.Location
	}
	if p.CategoryID != nil {
		out.CategoryID = *p.CategoryID
	}
	if p.ImageURL != nil {
		out.ImageURL = *p.ImageURL
	}
	switch {
	case p.ClearRecurrence:
		out.Recurrence = nil
	case p.Recurrence != nil:
		rec := p.Recurrence.clone()
		out.Recurrence = &rec
	}
	return out
}
