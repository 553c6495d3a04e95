package widget

import (
	"bytes"
	"context"
	"html/template"
	"io"
)

const (
	DefaultWidth  = 360
	DefaultHeight = 180
)

type palette struct {
	Background    template.CSS
	Card          template.CSS
	Text          template.CSS
	TextSecondary template.CSS
}

var (
	lightPalette = palette{Background: "#ffffff", Card: "#f5f5f7", Text: "#11181C", TextSecondary: "#687076"}
	darkPalette  = palette{Background: "#151718", Card: "#1c1c1e", Text: "#ECEDEE", TextSecondary: "#9BA1A6"}
)

// The root carries data-ready="true" so a headless browser knows the tile
// is complete.
var tileTemplate = template.Must(template.New("tile").Funcs(template.FuncMap{
	"plural": func(n int, one, many string) string {
		if n == 1 {
			return one
		}
		return many
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width={{.Width}}, height={{.Height}}">
<title>{{.P.EventTitle}}</title>
<style>
html, body { margin: 0; padding: 0; background: {{.C.Background}}; }
.tile {
  box-sizing: border-box; width: {{.Width}}px; height: {{.Height}}px;
  display: flex; flex-direction: column; justify-content: center; align-items: center;
  background: {{.C.Card}}; border-radius: 28px; padding: 16px;
  font-family: -apple-system, "Segoe UI", Roboto, sans-serif;
}
.count { display: flex; align-items: flex-end; margin-bottom: 8px; }
.num { font-size: 48px; font-weight: 700; color: {{.C.Text}}; line-height: 1; }
.num.big { font-size: 56px; }
.unit { font-size: 16px; font-weight: 600; color: {{.C.TextSecondary}}; margin: 0 8px 4px 2px; }
.title { font-size: 18px; font-weight: 700; color: {{.C.Text}}; max-width: 100%;
  white-space: nowrap; overflow: hidden; text-overflow: ellipsis; margin-bottom: 4px; }
.date, .hint { font-size: 13px; color: {{.C.TextSecondary}}; }
.empty { font-size: 16px; font-weight: 600; color: {{.C.Text}}; margin-bottom: 4px; }
.icon { font-size: 32px; margin-bottom: 8px; }
</style>
</head>
<body>
<div class="tile {{if .P.IsDarkMode}}dark{{else}}light{{end}}" data-ready="true" data-action="{{.P.Action}}">
{{- if .P.HasEvent}}
  <div class="count">
  {{- if gt .P.MonthsLeft 0}}
    <span class="num">{{.P.MonthsLeft}}</span><span class="unit">{{plural .P.MonthsLeft "MO" "MOS"}}</span>
    <span class="num">{{.P.DaysLeft}}</span><span class="unit">{{plural .P.DaysLeft "DAY" "DAYS"}}</span>
  {{- else}}
    <span class="num big">{{.P.DaysLeft}}</span><span class="unit">{{plural .P.DaysLeft "DAY" "DAYS"}}</span>
  {{- end}}
  </div>
  <div class="title">{{.P.EventTitle}}</div>
  <div class="date">{{.P.EventDate}}</div>
{{- else}}
  <div class="icon">&#128197;</div>
  <div class="empty">{{.P.EventTitle}}</div>
  <div class="hint">{{.P.Subtitle}}</div>
{{- end}}
</div>
</body>
</html>
`))

// Tile renders Props as a fixed-size HTML document.
type Tile struct {
	Width  int
	Height int
}

func (t Tile) size() (int, int) {
	w, h := t.Width, t.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

func (t Tile) Write(w io.Writer, p Props) error {
	width, height := t.size()
	c := lightPalette
	if p.IsDarkMode {
		c = darkPalette
	}
	return tileTemplate.Execute(w, struct {
		P             Props
		C             palette
		Width, Height int
	}{p, c, width, height})
}

func (t Tile) HTML(p Props) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Write(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MultiRenderer runs every renderer and returns the first error after all
// have run.
type MultiRenderer []Renderer

func (m MultiRenderer) Render(ctx context.Context, p Props) error {
	var first error
	for _, r := range m {
		if err := r.Render(ctx, p); err != nil && first == nil {
			first = err
		}
	}
	return first
}
