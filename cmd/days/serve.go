package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appLog "days/internal/log"
	"days/internal/web"
	"days/internal/widget"
)

// cronLogger routes robfig/cron's logging through appLog. Routine
// scheduling chatter goes to debug.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and refresh the widget on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	appLog.Info("days starting", "version", version, "listen", a.cfg.Listen, "timezone", a.loc.String())

	s, st, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st)

	q := a.query()
	srv := web.NewServer(a.cfg, s, q)
	task := a.widgetTask(q, a.cfg.Widget.Dark())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(ctx)
	})

	g.Go(func() error {
		return runWidgetSchedule(ctx, a.cfg.Widget.RefreshCron, a, task)
	})

	if err := g.Wait(); err != nil {
		appLog.Error("serve stopped with error", err)
		return err
	}
	appLog.Info("days exiting")
	return nil
}

// runWidgetSchedule renders once at startup (ADDED) and then emits UPDATE
// on every tick of spec until ctx is done.
func runWidgetSchedule(ctx context.Context, spec string, a *app, task *widget.Task) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(a.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		task.Handle(ctx, widget.Update)
	}); err != nil {
		return fmt.Errorf("widget refresh schedule %q: %w", spec, err)
	}

	task.Handle(ctx, widget.Added)

	appLog.Info("widget refresh scheduled", "spec", spec, "output_dir", a.cfg.Widget.OutputDir)
	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	return nil
}
