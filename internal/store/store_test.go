package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"days/internal/model"
	"days/internal/storage"
)

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// countingStorage records every call and can be told to fail.
type countingStorage struct {
	storage.Storage
	gets, sets atomic.Int32
	failGet    error
	failSet    error
}

func (c *countingStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets.Add(1)
	if c.failGet != nil {
		return nil, false, c.failGet
	}
	return c.Storage.Get(ctx, key)
}

func (c *countingStorage) Set(ctx context.Context, key string, value []byte) error {
	c.sets.Add(1)
	if c.failSet != nil {
		return c.failSet
	}
	return c.Storage.Set(ctx, key, value)
}

type collectReporter struct {
	mu   sync.Mutex
	errs []*StorageCorruptionError
}

func (r *collectReporter) ReportCorruption(err *StorageCorruptionError) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *collectReporter) all() []*StorageCorruptionError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*StorageCorruptionError(nil), r.errs...)
}

type fixture struct {
	store    *Store
	backend  *countingStorage
	clock    *clockwork.FakeClock
	reporter *collectReporter
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	f := &fixture{
		backend:  &countingStorage{Storage: fs},
		clock:    clockwork.NewFakeClockAt(t0),
		reporter: &collectReporter{},
	}
	opts = append([]Option{WithClock(f.clock), WithReporter(f.reporter)}, opts...)
	f.store = New(f.backend, opts...)
	return f
}

func (f *fixture) raw(t *testing.T, key string) string {
	t.Helper()
	data, _, err := f.backend.Storage.Get(context.Background(), key)
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) seed(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, f.backend.Storage.Set(context.Background(), DefaultKey, []byte(body)))
}

func allDay(title string, d model.EventDate) model.EventInput {
	return model.EventInput{Title: title, EventDate: d, ScheduleInput: model.ScheduleInput{IsAllDay: true}}
}

func TestLoadMissingKeyIsEmpty(t *testing.T) {
	f := newFixture(t)
	records, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, f.reporter.all())
}

func TestAddThenLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	until := model.Date(2030, time.January, 1)
	inputs := []model.EventInput{
		allDay("New year", model.Date(2025, time.January, 1)),
		{
			Title:         "Dentist",
			EventDate:     model.ParseEventDate("2024-02-10T14:30:00"),
			ScheduleInput: model.ScheduleInput{StartTime: "14:30", EndTime: "15:00"},
			Description:   "bring card",
			Location:      "Gangnam",
			CategoryID:    "health",
			ImageURL:      "file:///tmp/tooth.png",
			Recurrence:    &model.Recurrence{Frequency: model.Monthly, Interval: 6, ByMonthDay: []int{10}, Until: &until},
		},
	}

	var added []model.EventRecord
	for i, in := range inputs {
		rec, err := f.store.Add(ctx, in)
		require.NoError(t, err)
		assert.Regexp(t, `^event_[0-9a-f-]{36}$`, rec.ID)
		assert.Equal(t, model.LocalOwnerID, rec.OwnerID)
		assert.Equal(t, t0.Add(time.Duration(i)*time.Minute), rec.CreatedAt)
		assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
		added = append(added, rec)
		f.clock.Advance(time.Minute)
	}

	// A second handle on the same storage sees the same collection.
	other := New(f.backend, WithClock(f.clock))
	loaded, err := other.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, added, loaded)

	got, err := other.Get(ctx, added[1].ID)
	require.NoError(t, err)
	assert.Equal(t, added[1], got)
}

func TestPersistedLayout(t *testing.T) {
	f := newFixture(t)
	rec, err := f.store.Add(context.Background(), model.EventInput{
		Title:         "Standup",
		EventDate:     model.Date(2024, time.March, 4),
		ScheduleInput: model.ScheduleInput{StartTime: "09:00", EndTime: "09:15"},
	})
	require.NoError(t, err)

	want := fmt.Sprintf(`[{"id":%q,"userId":"local_user","title":"Standup","date":"2024-03-04T00:00:00",
		"isAllDay":false,"startTime":"09:00","endTime":"09:15",
		"createdAt":"2024-01-01T09:00:00Z","updatedAt":"2024-01-01T09:00:00Z"}]`, rec.ID)
	assert.JSONEq(t, want, f.raw(t, DefaultKey))
}

func TestUpdateChangesOnlyTitleAndUpdatedAt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := allDay("Concert", model.Date(2024, time.May, 5))
	in.Description = "front row"
	in.Recurrence = &model.Recurrence{Frequency: model.Yearly, Interval: 1}
	before, err := f.store.Add(ctx, in)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	title := "Concert (moved)"
	after, err := f.store.Update(ctx, before.ID, model.Patch{Title: &title})
	require.NoError(t, err)

	assert.Equal(t, title, after.Title)
	assert.Equal(t, t0.Add(time.Hour), after.UpdatedAt)

	after.Title = before.Title
	after.UpdatedAt = before.UpdatedAt
	assert.Equal(t, before, after)

	loaded, err := f.store.Get(ctx, before.ID)
	require.NoError(t, err)
	assert.Equal(t, title, loaded.Title)
}

func TestUpdateKeepsUpdatedAtMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec, err := f.store.Add(ctx, allDay("x", model.Date(2024, time.May, 5)))
	require.NoError(t, err)

	// Wall clock stepped backwards.
	back := New(f.backend, WithClock(clockwork.NewFakeClockAt(t0.Add(-24*time.Hour))))
	loc := "Busan"
	got, err := back.Update(ctx, rec.ID, model.Patch{Location: &loc})
	require.NoError(t, err)
	assert.Equal(t, rec.CreatedAt, got.UpdatedAt)
}

func TestUpdateUnknownID(t *testing.T) {
	f := newFixture(t)
	title := "x"
	_, err := f.store.Update(context.Background(), "event_missing", model.Patch{Title: &title})

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	keep, err := f.store.Add(ctx, allDay("keep", model.Date(2024, time.May, 5)))
	require.NoError(t, err)
	gone, err := f.store.Add(ctx, allDay("gone", model.Date(2024, time.May, 6)))
	require.NoError(t, err)

	require.NoError(t, f.store.Remove(ctx, gone.ID))
	snapshot := f.raw(t, DefaultKey)
	sets := f.backend.sets.Load()

	require.NoError(t, f.store.Remove(ctx, gone.ID))
	assert.Equal(t, snapshot, f.raw(t, DefaultKey))
	assert.Equal(t, sets, f.backend.sets.Load(), "no write for a missing id")

	records, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, keep.ID, records[0].ID)
}

func TestValidationHappensBeforeIO(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.store.Add(ctx, model.EventInput{
		Title:         "Timed without times",
		EventDate:     model.Date(2024, time.May, 5),
		ScheduleInput: model.ScheduleInput{IsAllDay: false},
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	blank := "  "
	_, err = f.store.Update(ctx, "event_any", model.Patch{Title: &blank})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.store.Import(ctx, []model.EventInput{allDay("ok", model.Date(2024, 1, 1)), allDay("", model.EventDate{})})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "[1].title", verr.Fields[0].Field)

	assert.Zero(t, f.backend.gets.Load())
	assert.Zero(t, f.backend.sets.Load())
}

func TestCorruptCollectionIsAbsorbedAndQuarantined(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, `{"this is": not json`)

	records, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	reports := f.reporter.all()
	require.Len(t, reports, 1)
	assert.Equal(t, -1, reports[0].Index)
	assert.Equal(t, KindCorruption, KindOf(reports[0]))

	_, err = f.store.Add(ctx, allDay("fresh start", model.Date(2024, time.May, 5)))
	require.NoError(t, err)
	assert.Equal(t, `{"this is": not json`, f.raw(t, DefaultKey+".corrupt"))

	records, err = f.store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestBadElementsAreDroppedIndividually(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, `[
		{"id":"a","userId":"local_user","title":"good","date":"2024-05-05T00:00:00","isAllDay":true,
		 "createdAt":"2024-01-01T00:00:00Z","updatedAt":"2024-01-01T00:00:00Z"},
		{"id":"b","title":"timed without times","date":"2024-05-05","isAllDay":false},
		"just a string",
		{"id":"a","title":"duplicate","date":"2024-05-05","isAllDay":true},
		{"id":"c","title":"legacy instant","date":"2024-05-04T15:00:00.000Z","isAllDay":true},
		{"id":"d","title":"bad date kept","date":"someday","isAllDay":true}
	]`)

	records, err := f.store.Load(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "c", "d"}, ids)
	assert.False(t, records[2].EventDate.Valid())

	reports := f.reporter.all()
	require.Len(t, reports, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{reports[0].Index, reports[1].Index, reports[2].Index})

	// Unparseable dates and instants are written back exactly as read.
	require.NoError(t, f.store.Remove(ctx, "a"))
	assert.Contains(t, f.raw(t, DefaultKey), `"date":"someday"`)
	assert.Contains(t, f.raw(t, DefaultKey), `"date":"2024-05-04T15:00:00.000Z"`)
	assert.Contains(t, f.raw(t, DefaultKey+".corrupt"), "just a string")
}

func TestStorageIOErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	diskFull := errors.New("no space left on device")

	f.backend.failSet = diskFull
	_, err := f.store.Add(ctx, allDay("x", model.Date(2024, time.May, 5)))
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, diskFull)

	f.backend.failGet = diskFull
	_, err = f.store.Load(ctx)
	assert.Equal(t, KindIO, KindOf(err))
	assert.Equal(t, KindIO, KindOf(f.store.Remove(ctx, "x")))
}

func TestConcurrentAddsAllPersist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 24
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.store.Add(ctx, allDay(fmt.Sprintf("event %d", i), model.Date(2024, time.May, 1+i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	records, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, n)

	seen := map[string]bool{}
	for _, r := range records {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
}

func TestIDCollisionIsRedrawn(t *testing.T) {
	ctx := context.Background()
	ids := []string{"event_same", "event_same", "event_same", "event_other"}
	var next atomic.Int32
	f := newFixture(t, WithIDGenerator(func() (string, error) {
		return ids[next.Add(1)-1], nil
	}))

	first, err := f.store.Add(ctx, allDay("one", model.Date(2024, 1, 2)))
	require.NoError(t, err)
	second, err := f.store.Add(ctx, allDay("two", model.Date(2024, 1, 3)))
	require.NoError(t, err)

	assert.Equal(t, "event_same", first.ID)
	assert.Equal(t, "event_other", second.ID)
}

func TestOwnerComesFromOwnerFunc(t *testing.T) {
	f := newFixture(t, WithOwner(func(context.Context) string { return "user-42" }))
	rec, err := f.store.Add(context.Background(), allDay("mine", model.Date(2024, 1, 2)))
	require.NoError(t, err)
	assert.Equal(t, "user-42", rec.OwnerID)
}

func TestImportWritesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	added, err := f.store.Import(ctx, []model.EventInput{
		allDay("a", model.Date(2024, 1, 2)),
		allDay("b", model.Date(2024, 1, 3)),
		allDay("c", model.Date(2024, 1, 4)),
	})
	require.NoError(t, err)
	assert.Len(t, added, 3)
	assert.EqualValues(t, 1, f.backend.sets.Load())
}

func TestSQLiteBackedStore(t *testing.T) {
	ctx := context.Background()
	db, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "days.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db, WithClock(clockwork.NewFakeClockAt(t0)), WithKey("events_test"))
	rec, err := s.Add(ctx, allDay("sqlite", model.Date(2024, 1, 2)))
	require.NoError(t, err)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, "events_test", s.Key())
}
