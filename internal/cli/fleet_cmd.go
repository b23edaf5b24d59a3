package cli

import (
	"fmt"

	"github.com/fleetdesk/leaveguard/internal/cli/formatter"
	"github.com/spf13/cobra"
)

func newFleetCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Manage the bundled driver, vehicle and trip reference data",
	}

	cmd.AddCommand(
		newFleetSeedCmd(a),
		newFleetAssignmentsCmd(a),
	)

	return cmd
}

func newFleetSeedCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load drivers, vehicles, trips and trip history from YAML or JSON",
		Long: `Load fleet reference data. Records are upserted by id, so a seed file
can be applied repeatedly. Top-level keys: drivers, vehicles, trips, history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := LoadSeed(args[0])
			if err != nil {
				return err
			}
			if err := seed.Apply(cmd.Context(), a.Fleet); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d driver(s), %d vehicle(s), %d trip obligation(s), %d history entries\n",
				len(seed.Drivers), len(seed.Vehicles), len(seed.Trips), len(seed.History))
			return nil
		},
	}
}

func newFleetAssignmentsCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assignments",
		Short: "List active replacement assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, ids, err := a.Fleet.ActiveAssignments(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("No active replacement assignments."))
				return nil
			}
			rows := make([][]string, 0, len(ids))
			for i, r := range reqs {
				rows = append(rows, []string{
					formatter.TruncID(ids[i]),
					r.TripID,
					r.DriverID,
					r.VehicleID,
					r.Start.Format("Mon Jan 2 15:04"),
					formatter.TruncID(r.ConflictID),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable(
				[]string{"ASSIGNMENT", "TRIP", "DRIVER", "VEHICLE", "START", "CONFLICT"}, rows))
			return nil
		},
	}
}
