package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"days/internal/countdown"
	"days/internal/ics"
	appLog "days/internal/log"
	"days/internal/model"
	"days/internal/query"
)

// EventView is the JSON shape of one event: the stored fields plus where
// it was placed and its countdown as of the request.
type EventView struct {
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

	OccursAt  *time.Time        `json:"occursAt,omitempty"`
	Countdown *countdown.Result `json:"countdown,omitempty"`
}

// ViewOf renders rec. at is the placed occurrence; a zero at leaves the
// countdown out (records without a usable date).
func ViewOf(rec model.EventRecord, at, now time.Time) EventView {
	start, end := rec.Times()
	v := EventView{
		ID:          rec.ID,
		UserID:      rec.OwnerID,
		Title:       rec.Title,
		Date:        rec.EventDate,
		IsAllDay:    rec.IsAllDay(),
		StartTime:   start,
		EndTime:     end,
		Description: rec.Description,
		Location:    rec.Location,
		CategoryID:  rec.CategoryID,
		ImageURL:    rec.ImageURL,
		Recurrence:  rec.Recurrence,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if !at.IsZero() {
		c := countdown.Calculate(now, at)
		v.OccursAt = &at
		v.Countdown = &c
	}
	return v
}

// ViewsOf renders placed items.
func ViewsOf(items []query.Item, now time.Time) []EventView {
	out := make([]EventView, 0, len(items))
	for _, it := range items {
		out = append(out, ViewOf(it.Record, it.At, now))
	}
	return out
}

func (s *Server) viewRecord(rec model.EventRecord, now time.Time) EventView {
	at, _ := s.query.Occurrence(rec, now)
	return ViewOf(rec, at, now)
}

type eventsResponse struct {
	Events   []EventView `json:"events"`
	Now      time.Time   `json:"now"`
	TimeZone string      `json:"timezone"`
}

// ParseFilter reads the list filters shared by the API and the CLI.
// Dates are YYYY-MM-DD in loc.
func ParseFilter(status, category, search, from, to, sort, order string, loc *time.Location) (query.Filter, error) {
	f := query.Filter{
		Status:     query.Status(strings.ToLower(status)),
		CategoryID: category,
		Search:     search,
		SortBy:     query.SortBy(sort),
		SortOrder:  strings.ToLower(order),
	}
	switch f.Status {
	case "", query.StatusAll, query.StatusUpcoming, query.StatusPrevious:
	default:
		return f, errors.New("status must be all, upcoming or previous")
	}
	switch f.SortBy {
	case "", query.SortByDate, query.SortByTitle, query.SortByCreatedAt:
	default:
		return f, errors.New("sort must be date, title or createdAt")
	}
	switch f.SortOrder {
	case "", "asc", "desc":
	default:
		return f, errors.New("order must be asc or desc")
	}

	var err error
	if from != "" {
		if f.From, err = time.ParseInLocation(time.DateOnly, from, loc); err != nil {
			return f, errors.New("from must be YYYY-MM-DD")
		}
	}
	if to != "" {
		if f.To, err = time.ParseInLocation(time.DateOnly, to, loc); err != nil {
			return f, errors.New("to must be YYYY-MM-DD")
		}
	}
	return f, nil
}

// GET /api/events?status=&category=&search=&from=&to=&sort=&order=
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := ParseFilter(q.Get("status"), q.Get("category"), q.Get("search"), q.Get("from"), q.Get("to"), q.Get("sort"), q.Get("order"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.store.Load(r.Context())
	if err != nil {
		writeStoreError(w, "list", err)
		return
	}

	now := s.now()
	items := s.query.Filter(records, now, f)
	appLog.Debug("api events request", "status", f.Status, "matched", len(items), "total", len(records))
	writeJSON(w, http.StatusOK, eventsResponse{Events: ViewsOf(items, now), Now: now, TimeZone: s.loc.String()})
}

// GET /api/events/next answers 204 when nothing is upcoming.
func (s *Server) handleNextEvent(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.Load(r.Context())
	if err != nil {
		writeStoreError(w, "next", err)
		return
	}
	now := s.now()
	next, ok := s.query.Next(records, now)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, ViewOf(next.Record, next.At, now))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewRecord(rec, s.now()))
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in model.EventInput
	if !decodeBody(w, r, &in) {
		return
	}
	rec, err := s.store.Add(r.Context(), in)
	if err != nil {
		writeStoreError(w, "add", err)
		return
	}
	w.Header().Set("Location", "/api/events/"+rec.ID)
	writeJSON(w, http.StatusCreated, s.viewRecord(rec, s.now()))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var p model.Patch
	if !decodeBody(w, r, &p) {
		return
	}
	rec, err := s.store.Update(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeStoreError(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewRecord(rec, s.now()))
}

// DELETE is idempotent: an unknown id still answers 204.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, "remove", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dayResponse struct {
	Date   string      `json:"date"`
	Events []EventView `json:"events"`
}

type monthResponse struct {
	Month string         `json:"month"`
	Marks map[string]int `json:"marks"`
}

// GET /api/calendar?date=YYYY-MM-DD lists one day; ?month=YYYY-MM (or
// nothing, for the current month) counts events per day.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now()

	if d := q.Get("date"); d != "" {
		day, err := time.ParseInLocation(time.DateOnly, d, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		records, err := s.store.Load(r.Context())
		if err != nil {
			writeStoreError(w, "calendar", err)
			return
		}
		items := s.query.OnDate(records, day)
		writeJSON(w, http.StatusOK, dayResponse{Date: d, Events: ViewsOf(items, now)})
		return
	}

	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	if m := q.Get("month"); m != "" {
		var err error
		if month, err = time.ParseInLocation("2006-01", m, s.loc); err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
	}
	records, err := s.store.Load(r.Context())
	if err != nil {
		writeStoreError(w, "calendar", err)
		return
	}
	marks := s.query.MonthMarks(records, month.Year(), month.Month(), s.loc)
	out := make(map[string]int, len(marks))
	for day, n := range marks {
		out[strconv.Itoa(day)] = n
	}
	writeJSON(w, http.StatusOK, monthResponse{Month: month.Format("2006-01"), Marks: out})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.Load(r.Context())
	if err != nil {
		writeStoreError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="days.ics"`)
	_, _ = io.WriteString(w, ics.Export(records, s.loc))
}

type importResponse struct {
	Imported []EventView `json:"imported"`
}

// POST /api/import takes a text/calendar body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	inputs, err := ics.Import(body, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	added, err := s.store.Import(r.Context(), inputs)
	if err != nil {
		writeStoreError(w, "import", err)
		return
	}
	now := s.now()
	views := make([]EventView, 0, len(added))
	for _, rec := range added {
		views = append(views, s.viewRecord(rec, now))
	}
	writeJSON(w, http.StatusOK, importResponse{Imported: views})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
