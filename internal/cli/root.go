package cli

import (
	"errors"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/config"
	"github.com/fleetdesk/leaveguard/internal/logging"
	"github.com/fleetdesk/leaveguard/internal/notify"
	"github.com/fleetdesk/leaveguard/internal/repository"
	"github.com/fleetdesk/leaveguard/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// App holds the services and adapters used by commands. Commands run
// against a pre-wired App when Leaves is set; otherwise the root command
// wires one from configuration before the first subcommand runs.
type App struct {
	Leaves      service.LeaveService
	Suggestions service.SuggestionService
	Fleet       *repository.SQLiteFleet
	Worker      *service.SuggestionWorker
	Events      *notify.Queue
	Registry    *prometheus.Registry
	Config      *config.Config
	Log         logging.Logger
	Clock       app.Clock

	// IsInteractive reports whether prompts may be shown.
	IsInteractive func() bool
	// Confirm asks a yes/no question. Nil confirms everything.
	Confirm func(title string) (bool, error)

	closers []func() error
}

// Close releases what Wire opened, in reverse order. It is safe on an App
// that was never wired.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// NewRootCmd creates the top-level "leaveguard" command.
func NewRootCmd(a *App) *cobra.Command {
	var configPath, dbPath string

	root := &cobra.Command{
		Use:           "leaveguard",
		Short:         "Leave conflict detection and replacement matching",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.Leaves != nil {
				return nil
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			return Wire(cmd.Context(), a, cfg)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (.yaml, .yml or .json)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides database.path)")

	root.AddCommand(
		newLeaveCmd(a),
		newConflictsCmd(a),
		newSuggestCmd(a),
		newFleetCmd(a),
		newWorkerCmd(a),
	)

	return root
}
