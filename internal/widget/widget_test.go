package widget

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"days/internal/model"
	"days/internal/query"
	"days/internal/storage"
	"days/internal/store"
)

var now = time.Date(2024, time.January, 31, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu    sync.Mutex
	props []Props
	fail  func(Props) error
}

func (r *recorder) Render(_ context.Context, p Props) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.props = append(r.props, p)
	if r.fail != nil {
		return r.fail(p)
	}
	return nil
}

// openerFor opens a new store over dir on every call, like a cold-started
// background process would.
func openerFor(dir string) Opener {
	return func(ctx context.Context) (Loader, io.Closer, error) {
		st, err := storage.NewFileStorage(dir)
		if err != nil {
			return nil, nil, err
		}
		return store.New(st), st, nil
	}
}

func newTask(open Opener, r Renderer) *Task {
	return &Task{
		Open:     open,
		Query:    query.New(nil),
		Renderer: r,
		Clock:    clockwork.NewFakeClockAt(now),
		Location: time.UTC,
	}
}

func seed(t *testing.T, dir string, inputs ...model.EventInput) {
	t.Helper()
	st, err := storage.NewFileStorage(dir)
	require.NoError(t, err)
	s := store.New(st, store.WithClock(clockwork.NewFakeClockAt(now.Add(-time.Hour))))
	for _, in := range inputs {
		_, err := s.Add(context.Background(), in)
		require.NoError(t, err)
	}
}

func allDay(title string, d model.EventDate) model.EventInput {
	return model.EventInput{Title: title, EventDate: d, ScheduleInput: model.ScheduleInput{IsAllDay: true}}
}

func TestEmptyStoreRendersEmptyState(t *testing.T) {
	rec := &recorder{}
	props := newTask(openerFor(t.TempDir()), rec).Handle(context.Background(), Added)

	assert.False(t, props.HasEvent)
	assert.Equal(t, EmptyTitle, props.EventTitle)
	assert.Equal(t, EmptySubtitle, props.Subtitle)
	require.Len(t, rec.props, 1)
	assert.Equal(t, props, rec.props[0])
}

func TestCorruptStoreRendersEmptyState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.DefaultKey+".json"), []byte("\x00\x01 definitely not json"), 0o600))

	rec := &recorder{}
	var props Props
	require.NotPanics(t, func() {
		props = newTask(openerFor(dir), rec).Handle(context.Background(), Update)
	})
	assert.False(t, props.HasEvent)
	require.Len(t, rec.props, 1)
	assert.Equal(t, Update, rec.props[0].Action)
}

func TestNextEventIsRendered(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir,
		allDay("Long past", model.Date(2023, time.March, 1)),
		allDay("A very long event title that will not fit", model.Date(2024, time.March, 1)),
		allDay("Later", model.Date(2024, time.May, 1)),
	)

	rec := &recorder{}
	task := newTask(openerFor(dir), rec)
	task.Dark = true
	props := task.Handle(context.Background(), Resized)

	assert.True(t, props.HasEvent)
	assert.Equal(t, "A very long event title t...", props.EventTitle)
	assert.Equal(t, 0, props.MonthsLeft)
	assert.Equal(t, 30, props.DaysLeft)
	assert.Equal(t, 30, props.TotalDays)
	assert.Equal(t, "IN 1 MONTHS", props.Label)
	assert.Equal(t, "Fri, Mar 1", props.EventDate)
	assert.True(t, props.IsDarkMode)
	assert.Equal(t, Resized, props.Action)
	assert.Equal(t, now, props.RenderedAt)
}

func TestOpenAndLoadFailuresFallBack(t *testing.T) {
	failingOpen := func(context.Context) (Loader, io.Closer, error) {
		return nil, nil, errors.New("storage unavailable")
	}
	panickingOpen := func(context.Context) (Loader, io.Closer, error) {
		panic("boom")
	}

	for name, open := range map[string]Opener{"error": failingOpen, "panic": panickingOpen, "nil": nil} {
		t.Run(name, func(t *testing.T) {
			rec := &recorder{}
			props := newTask(open, rec).Handle(context.Background(), Update)
			assert.False(t, props.HasEvent)
			require.Len(t, rec.props, 1)
			assert.False(t, rec.props[0].HasEvent)
		})
	}
}

func TestFailingRendererIsRetriedWithEmptyState(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, allDay("Soon", model.Date(2024, time.February, 2)))

	rec := &recorder{fail: func(p Props) error {
		if p.HasEvent {
			return errors.New("image too large")
		}
		return nil
	}}
	props := newTask(openerFor(dir), rec).Handle(context.Background(), Update)

	assert.False(t, props.HasEvent)
	require.Len(t, rec.props, 2)
	assert.True(t, rec.props[0].HasEvent)
	assert.False(t, rec.props[1].HasEvent)
}

func TestPanickingRendererDoesNotEscape(t *testing.T) {
	r := RendererFunc(func(context.Context, Props) error { panic("renderer bug") })
	assert.NotPanics(t, func() {
		newTask(openerFor(t.TempDir()), r).Handle(context.Background(), Added)
	})
}

func TestDeletedAndClickDoNotRender(t *testing.T) {
	for _, a := range []Action{Deleted, Click} {
		rec := &recorder{}
		props := newTask(openerFor(t.TempDir()), rec).Handle(context.Background(), a)
		assert.Empty(t, rec.props, a)
		assert.Equal(t, a, props.Action)
	}
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{"WIDGET_UPDATE": Update, "added": Added, " resized ": Resized, "CLICK": Click} {
		got, err := ParseAction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseAction("WIDGET_EXPLODE")
	assert.Error(t, err)
}

func TestTileLayouts(t *testing.T) {
	tile := Tile{Width: 300, Height: 150}

	html, err := tile.HTML(Props{HasEvent: true, EventTitle: "Trip <Busan>", MonthsLeft: 2, DaysLeft: 1, EventDate: "Sat, Jun 1"})
	require.NoError(t, err)
	s := string(html)
	assert.Contains(t, s, `data-ready="true"`)
	assert.Contains(t, s, ">MOS<")
	assert.Contains(t, s, ">DAY<")
	assert.Contains(t, s, "Trip &lt;Busan&gt;")
	assert.Contains(t, s, "width: 300px")
	assert.Contains(t, s, "#f5f5f7")

	html, err = tile.HTML(Props{HasEvent: true, EventTitle: "x", DaysLeft: 12, IsDarkMode: true})
	require.NoError(t, err)
	s = string(html)
	assert.NotContains(t, s, "MOS")
	assert.Contains(t, s, `class="num big">12<`)
	assert.Contains(t, s, "#1c1c1e")

	html, err = Tile{}.HTML(EmptyProps(false))
	require.NoError(t, err)
	assert.Contains(t, string(html), EmptySubtitle)
	assert.Contains(t, string(html), "width: 360px")
}

func TestFileRendererWritesArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r := MultiRenderer{FileRenderer{Dir: dir}}
	p := Props{HasEvent: true, EventTitle: "Exam", DaysLeft: 3, Label: "IN 3 DAYS", Action: Update}
	require.NoError(t, r.Render(context.Background(), p))

	html, err := os.ReadFile(filepath.Join(dir, HTMLFile))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(html), "Exam"))

	data, err := os.ReadFile(filepath.Join(dir, JSONFile))
	require.NoError(t, err)
	var got Props
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, p, got)
}

func TestMultiRendererRunsAllAndReportsFirstError(t *testing.T) {
	var calls []string
	m := MultiRenderer{
		RendererFunc(func(context.Context, Props) error { calls = append(calls, "a"); return errors.New("a failed") }),
		RendererFunc(func(context.Context, Props) error { calls = append(calls, "b"); return errors.New("b failed") }),
	}
	err := m.Render(context.Background(), Props{})
	assert.EqualError(t, err, "a failed")
	assert.Equal(t, []string{"a", "b"}, calls)
}
