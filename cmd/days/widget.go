package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"days/internal/query"
	"days/internal/widget"
)

// widgetTask builds the refresh task the way a platform host would: each
// Handle opens its own store handle.
func (a *app) widgetTask(q *query.Service, dark bool) *widget.Task {
	wc := a.cfg.Widget
	tile := widget.Tile{Width: wc.Width, Height: wc.Height}

	renderers := widget.MultiRenderer{widget.FileRenderer{Dir: wc.OutputDir, Tile: tile}}
	if wc.PNG {
		renderers = append(renderers, widget.PNGRenderer{Dir: wc.OutputDir, Tile: tile})
	}

	return &widget.Task{
		Open: func(context.Context) (widget.Loader, io.Closer, error) {
			return a.openStore()
		},
		Query:    q,
		Renderer: renderers,
		Clock:    clockwork.NewRealClock(),
		Location: a.loc,
		Dark:     dark,
	}
}

func newWidgetCmd(a *app) *cobra.Command {
	var (
		action string
		dark   bool
	)
	cmd := &cobra.Command{
		Use:   "widget",
		Short: "Run one widget lifecycle event and render the tile",
		Long: `widget is the entry point a home-screen host calls on ADDED, UPDATE,
RESIZED, DELETED and CLICK. Refreshing actions write widget.html and
widget.json (and widget.png when enabled) to the widget output directory.
It never fails because of stored data: the empty tile is rendered instead.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{configAnnotation: configOptional},
		RunE: func(cmd *cobra.Command, _ []string) error {
			act, err := widget.ParseAction(action)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("dark") {
				dark = a.cfg.Widget.Dark()
			}

			props := a.widgetTask(a.query(), dark).Handle(cmd.Context(), act)
			if !act.Refreshes() {
				return nil
			}
			if props.HasEvent {
				fmt.Fprintf(a.out, "%s: %s\n", props.EventTitle, props.Label)
			} else {
				fmt.Fprintln(a.out, props.EventTitle)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&action, "action", string(widget.Update), "Lifecycle event: "+strings.Join([]string{
		string(widget.Added), string(widget.Update), string(widget.Resized), string(widget.Deleted), string(widget.Click),
	}, ", "))
	cmd.Flags().BoolVar(&dark, "dark", false, "Render the dark palette (default from widget.theme)")
	return cmd
}
