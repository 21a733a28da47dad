// Package cli is the eventpilot command line: the HTTP server plus a handful
// of commands that query or load the calendar directly.
package cli

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/eventpilot/internal/calendar"
	"github.com/dukerupert/eventpilot/internal/config"
	"github.com/dukerupert/eventpilot/internal/database"
	"github.com/dukerupert/eventpilot/internal/logging"
	"github.com/dukerupert/eventpilot/internal/notify"
	"github.com/dukerupert/eventpilot/internal/store"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

// App holds the CLI application state.
type App struct {
	root       *cobra.Command
	configPath string
	dbPath     string
	noColor    bool

	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	out    io.Writer
	errOut io.Writer
}

func NewApp() *App {
	a := &App{out: os.Stdout, errOut: os.Stderr}

	a.root = &cobra.Command{
		Use:   "eventpilot",
		Short: "Calendar scheduling backend",
		Long: `EventPilot books events onto users' calendars, reports overlapping
commitments, and finds windows when a group of people are all free.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.loadConfig()
		},
	}

	a.root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultConfigPath(), "Path to the TOML config file")
	a.root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides storage.db_path)")
	a.root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	a.root.AddCommand(a.versionCmd())
	a.root.AddCommand(a.serveCmd())
	a.root.AddCommand(a.conflictsCmd())
	a.root.AddCommand(a.freeSlotsCmd())
	a.root.AddCommand(a.exportCmd())
	a.root.AddCommand(a.seedCmd())

	return a
}

// SetOutput redirects command output, for tests.
func (a *App) SetOutput(out, errOut io.Writer) {
	a.out = out
	a.errOut = errOut
	a.root.SetOut(out)
	a.root.SetErr(errOut)
}

func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

func (a *App) loadConfig() error {
	cfg, err := config.LoadFrom(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.dbPath != "" {
		cfg.Storage.DBPath = a.dbPath
	}
	a.cfg = cfg
	a.logger = logging.Setup(a.errOut, cfg.Log.Level, cfg.Log.Format)
	if a.noColor {
		disableColor()
	}
	return nil
}

func (a *App) openDB() (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.Open(a.cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.db = db
	return db, nil
}

// service builds a calendar service over the configured database.
func (a *App) service(notifier notify.Notifier) (*calendar.Service, error) {
	db, err := a.openDB()
	if err != nil {
		return nil, err
	}
	return calendar.NewService(
		store.NewUserStore(db),
		store.NewEventStore(db),
		store.NewScheduleStore(db),
		notifier,
		a.logger.With("component", "calendar"),
	), nil
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.out, "eventpilot %s (commit: %s)\n", Version, Commit)
		},
	}
}

// Execute runs the CLI application.
func (a *App) Execute() error {
	return a.root.Execute()
}

// Close releases the database, if one was opened.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}
