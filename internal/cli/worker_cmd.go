package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fleetdesk/leaveguard/internal/metrics"
	"github.com/spf13/cobra"
)

func newWorkerCmd(a *App) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Generate pending replacement suggestions in the background",
		Long: `Poll for auto-replacement leave requests that still need suggestions
(async generation mode, or a previous partial failure) and generate them.
With metrics.enabled the worker also serves /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if once {
				n, err := a.Worker.RunOnce(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Generated suggestions for %d leave request(s)\n", n)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metricsErr := make(chan error, 1)
			if a.Config != nil && a.Config.Metrics.Enabled {
				go func() {
					metricsErr <- metrics.StartServer(ctx, a.Config.Metrics.Addr, a.Registry, a.Log)
				}()
			}

			workerDone := make(chan error, 1)
			go func() { workerDone <- a.Worker.Run(ctx) }()

			select {
			case err := <-workerDone:
				return err
			case err := <-metricsErr:
				stop()
				<-workerDone
				if err != nil {
					return fmt.Errorf("metrics server: %w", err)
				}
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Process one batch and exit")

	return cmd
}
