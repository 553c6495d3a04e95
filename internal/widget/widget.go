// Package widget is the home-screen tile entry point. The platform host
// invokes Task.Handle on lifecycle events; each invocation opens its own
// store handle and re-derives everything from persisted data.
package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"days/internal/countdown"
	appLog "days/internal/log"
	"days/internal/model"
	"days/internal/query"
)

type Action string

const (
	Added   Action = "ADDED"
	Update  Action = "UPDATE"
	Resized Action = "RESIZED"
	Deleted Action = "DELETED"
	Click   Action = "CLICK"
)

// ParseAction accepts both "UPDATE" and the host's "WIDGET_UPDATE" form.
func ParseAction(s string) (Action, error) {
	a := Action(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "WIDGET_"))
	switch a {
	case Added, Update, Resized, Deleted, Click:
		return a, nil
	default:
		return "", fmt.Errorf("unknown widget action %q", s)
	}
}

// Refreshes reports whether the action re-renders the tile.
func (a Action) Refreshes() bool {
	return a == Added || a == Update || a == Resized
}

const (
	EmptyTitle    = "No upcoming events"
	EmptySubtitle = "Tap to add one"
)

// Props is everything a tile renderer needs.
type Props struct {
	HasEvent   bool   `json:"hasEvent"`
	EventID    string `json:"eventId,omitempty"`
	EventTitle string `json:"eventTitle"`
	Subtitle   string `json:"subtitle,omitempty"`
	MonthsLeft int    `json:"monthsLeft"`
	DaysLeft   int    `json:"daysLeft"`
	TotalDays  int    `json:"totalDays"`
	Label      string `json:"label,omitempty"`
	EventDate  string `json:"eventDate"`
	ImageURL   string `json:"imageUrl,omitempty"`
	IsDarkMode bool   `json:"isDarkMode"`

	Action     Action    `json:"action"`
	RenderedAt time.Time `json:"renderedAt"`
}

// EmptyProps is the "nothing coming up" tile.
func EmptyProps(dark bool) Props {
	return Props{EventTitle: EmptyTitle, Subtitle: EmptySubtitle, IsDarkMode: dark}
}

// PropsFor builds the tile for one placed event.
func PropsFor(it query.Item, now time.Time, dark bool) Props {
	c := countdown.Calculate(now, it.At)
	return Props{
		HasEvent:   true,
		EventID:    it.Record.ID,
		EventTitle: model.DisplayTitle(it.Record.Title, model.DisplayTitleLimit),
		MonthsLeft: c.Months,
		DaysLeft:   c.Days,
		TotalDays:  c.TotalDaysRemaining,
		Label:      c.Label,
		EventDate:  countdown.DateLabel(it.At),
		ImageURL:   it.Record.ImageURL,
		IsDarkMode: dark,
	}
}

// Loader is the read side of the event store.
type Loader interface {
	Load(ctx context.Context) ([]model.EventRecord, error)
}

// Opener creates a fresh store handle for one invocation. The returned
// closer releases it.
type Opener func(ctx context.Context) (Loader, io.Closer, error)

type Renderer interface {
	Render(ctx context.Context, p Props) error
}

type RendererFunc func(ctx context.Context, p Props) error

func (f RendererFunc) Render(ctx context.Context, p Props) error { return f(ctx, p) }

// Task is one widget refresh. The zero Clock and Location mean the real
// clock in time.Local.
type Task struct {
	Open     Opener
	Query    *query.Service
	Renderer Renderer
	Clock    clockwork.Clock
	Location *time.Location
	Dark     bool
}

// Handle never panics. ADDED, UPDATE and RESIZED render the next upcoming
// event, or the empty state if anything on the way fails. DELETED and CLICK
// are acknowledged only. The returned Props are what was (or would have
// been) rendered.
func (t *Task) Handle(ctx context.Context, action Action) (props Props) {
	defer func() {
		if r := recover(); r != nil {
			appLog.Error("widget task panicked", fmt.Errorf("%v", r), "action", action, "stack", string(debug.Stack()))
			props = t.stamp(EmptyProps(t.Dark), action)
		}
	}()

	if !action.Refreshes() {
		appLog.Info("widget action acknowledged", "action", action)
		return t.stamp(EmptyProps(t.Dark), action)
	}

	props, err := t.compute(ctx)
	if err != nil {
		appLog.Error("widget refresh failed; showing empty state", err, "action", action)
		props = EmptyProps(t.Dark)
	}
	props = t.stamp(props, action)

	if err := t.render(ctx, props); err != nil {
		appLog.Error("widget render failed", err, "action", action, "has_event", props.HasEvent)
		if !props.HasEvent {
			return props
		}
		props = t.stamp(EmptyProps(t.Dark), action)
		if err := t.render(ctx, props); err != nil {
			appLog.Error("widget empty-state render failed", err, "action", action)
		}
		return props
	}

	appLog.Info("widget rendered", "action", action, "has_event", props.HasEvent, "label", props.Label)
	return props
}

func (t *Task) compute(ctx context.Context) (props Props, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compute panicked: %v", r)
		}
	}()

	if t.Open == nil {
		return Props{}, errors.New("no store opener configured")
	}
	loader, closer, err := t.Open(ctx)
	if err != nil {
		return Props{}, fmt.Errorf("open store: %w", err)
	}
	if closer != nil {
		defer func() {
			if cerr := closer.Close(); cerr != nil {
				appLog.Warn("widget: closing store failed", "error", cerr.Error())
			}
		}()
	}

	records, err := loader.Load(ctx)
	if err != nil {
		return Props{}, fmt.Errorf("load events: %w", err)
	}

	now := t.now()
	next, ok := t.Query.Next(records, now)
	if !ok {
		return EmptyProps(t.Dark), nil
	}
	return PropsFor(next, now, t.Dark), nil
}

func (t *Task) render(ctx context.Context, p Props) (err error) {
	if t.Renderer == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panicked: %v", r)
		}
	}()
	return t.Renderer.Render(ctx, p)
}

func (t *Task) now() time.Time {
	c := t.Clock
	if c == nil {
		c = clockwork.NewRealClock()
	}
	loc := t.Location
	if loc == nil {
		loc = time.Local
	}
	return c.Now().In(loc)
}

func (t *Task) stamp(p Props, action Action) Props {
	p.Action = action
	p.RenderedAt = t.now().UTC()
	return p
}
