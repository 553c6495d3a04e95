package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"days/internal/model"
)

// recordJSON is the persisted shape of an EventRecord.
type recordJSON struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Title       string            `json:"title"`
	Date        model.EventDate   `json:"date"`
	IsAllDay    bool              `json:"isAllDay"`
	StartTime   string            `json:"startTime,omitempty"`
	EndTime     string            `json:"endTime,omitempty"`
	Description string            `json:"description,omitempty"`
	Location    string            `json:"location,omitempty"`
	CategoryID  string            `json:"categoryId,omitempty"`
	ImageURL    string            `json:"imageUrl,omitempty"`
	Recurrence  *model.Recurrence `json:"recurrence,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func toJSON(r model.EventRecord) recordJSON {
	start, end := r.Times()
	return recordJSON{
		ID:          r.ID,
		UserID:      r.OwnerID,
		Title:       r.Title,
		Date:        r.EventDate,
		IsAllDay:    r.IsAllDay(),
		StartTime:   start,
		EndTime:     end,
		Description: r.Description,
		Location:    r.Location,
		CategoryID:  r.CategoryID,
		ImageURL:    r.ImageURL,
		Recurrence:  r.Recurrence,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func fromJSON(j recordJSON) (model.EventRecord, error) {
	if j.ID == "" {
		return model.EventRecord{}, errors.New("missing id")
	}
	sched, errs := model.ScheduleInput{IsAllDay: j.IsAllDay, StartTime: j.StartTime, EndTime: j.EndTime}.Build()
	if len(errs) > 0 {
		return model.EventRecord{}, &model.ValidationError{Fields: errs}
	}
	rec := model.EventRecord{
		ID:          j.ID,
		OwnerID:     j.UserID,
		Title:       j.Title,
		EventDate:   j.Date,
		Schedule:    sched,
		Description: j.Description,
		Location:    j.Location,
		CategoryID:  j.CategoryID,
		ImageURL:    j.ImageURL,
		Recurrence:  j.Recurrence,
		CreatedAt:   j.CreatedAt.UTC(),
		UpdatedAt:   j.UpdatedAt.UTC(),
	}
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		rec.UpdatedAt = rec.CreatedAt
	}
	return rec, nil
}

func encodeRecords(records []model.EventRecord) ([]byte, error) {
	out := make([]recordJSON, 0, len(records))
	for _, r := range records {
		out = append(out, toJSON(r))
	}
	return json.Marshal(out)
}

// decodeRecords never fails as a whole. Elements that can't be decoded are
// dropped and described in the returned corruption list; a collection that
// isn't a JSON array at all yields no records and one corruption with
// Index -1.
func decodeRecords(key string, data []byte) ([]model.EventRecord, []*StorageCorruptionError) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, []*StorageCorruptionError{{Key: key, Index: -1, Err: err}}
	}

	var (
		records []model.EventRecord
		bad     []*StorageCorruptionError
		seen    = make(map[string]bool, len(elems))
	)
	for i, raw := range elems {
		var j recordJSON
		if err := json.Unmarshal(raw, &j); err != nil {
			bad = append(bad, &StorageCorruptionError{Key: key, Index: i, Err: err})
			continue
		}
		rec, err := fromJSON(j)
		if err != nil {
			bad = append(bad, &StorageCorruptionError{Key: key, Index: i, Err: err})
			continue
		}
		if seen[rec.ID] {
			bad = append(bad, &StorageCorruptionError{Key: key, Index: i, Err: fmt.Errorf("duplicate id %q", rec.ID)})
			continue
		}
		seen[rec.ID] = true
		records = append(records, rec)
	}
	return records, bad
}
