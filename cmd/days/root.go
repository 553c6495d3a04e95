package main

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"days/internal/auth"
	"days/internal/config"
	appLog "days/internal/log"
	"days/internal/query"
	"days/internal/recurrence"
	"days/internal/storage"
	"days/internal/store"
)

const version = "0.1.0"

// app is shared by every subcommand; PersistentPreRunE fills it in.
type app struct {
	configPath string
	debug      bool
	logLevel   string

	cfg *config.Config
	loc *time.Location
	out io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "days",
		Short: "Countdown events with a home-screen widget",
		Long: `days keeps a list of dated events, shows how long until (or since)
each one, and renders the next upcoming event as a widget tile.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Annotations[configAnnotation] == configOptional)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", config.DefaultPath(), "Path to config file")
	pf.BoolVar(&a.debug, "debug", false, "Shorthand for --log-level debug")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(
		newAddCmd(a),
		newUpdateCmd(a),
		newRemoveCmd(a),
		newGetCmd(a),
		newListCmd(a),
		newNextCmd(a),
		newCalendarCmd(a),
		newWidgetCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newServeCmd(a),
	)
	return root
}

// Commands annotated with configOptional run on defaults when the config
// file cannot be read.
const (
	configAnnotation = "config"
	configOptional   = "optional"
)

func (a *app) init(optional bool) error {
	cfg, loadErr := config.Load(a.configPath)
	if loadErr != nil {
		if !optional {
			return loadErr
		}
		if cfg == nil {
			cfg = config.DefaultConfig()
		}
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	if a.debug {
		level = "debug"
	}
	appLog.Configure(os.Stderr, appLog.ParseLevel(level), cfg.Log.Format)
	if loadErr != nil {
		appLog.Error("config load failed; using defaults", loadErr, "config_path", a.configPath)
	}

	loc, err := cfg.Location()
	if err != nil {
		appLog.Warn("unknown timezone; using local time", "timezone", cfg.Timezone, "error", err.Error())
	}
	a.loc = loc

	appLog.Debug("effective config",
		"config_path", a.configPath,
		"timezone", loc.String(),
		"storage_driver", cfg.Storage.Driver,
		"storage_path", cfg.Storage.Path,
		"widget_dir", cfg.Widget.OutputDir,
	)
	return nil
}

// openStore opens a fresh storage handle. The caller closes the returned
// storage.
func (a *app) openStore() (*store.Store, storage.Storage, error) {
	st, err := storage.Open(a.cfg.Storage.Driver, a.cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}

	o := a.cfg.Owner
	provider := auth.NewLocalProvider(&auth.User{
		ID:          o.ID,
		Email:       o.Email,
		DisplayName: o.DisplayName,
		PhotoURL:    o.PhotoURL,
	})
	s := store.New(st,
		store.WithKey(a.cfg.Storage.Key),
		store.WithOwner(auth.OwnerID(provider)),
	)
	return s, st, nil
}

func (a *app) query() *query.Service {
	return query.New(recurrence.Resolver{})
}

func (a *app) now() time.Time {
	return time.Now().In(a.loc)
}

func closeQuietly(c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		appLog.Warn("close failed", "error", err.Error())
	}
}
