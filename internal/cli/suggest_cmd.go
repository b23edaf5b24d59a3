package cli

import (
	"errors"
	"fmt"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/cli/formatter"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/spf13/cobra"
)

func newConflictsCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Inspect trip conflicts of a leave request",
	}
	cmd.AddCommand(newConflictsListCmd(a))
	return cmd
}

func newConflictsListCmd(a *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list LEAVE_ID",
		Short: "List conflicts with their ranked suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := a.Suggestions.ListConflicts(cmd.Context(), args[0], all)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatConflictViews(views))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include superseded conflicts")

	return cmd
}

func newSuggestCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Generate and act on replacement suggestions",
	}

	cmd.AddCommand(
		newSuggestGenerateCmd(a),
		newSuggestAcceptCmd(a),
		newSuggestRejectCmd(a),
	)

	return cmd
}

func newSuggestGenerateCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "generate LEAVE_ID",
		Short: "Detect conflicts and rank replacements for a leave request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.Suggestions.GenerateSuggestions(cmd.Context(), args[0])
			out := cmd.OutOrStdout()
			if res != nil {
				fmt.Fprintln(out, formatter.FormatGenerateResult(res))
			}
			var partial *domain.PartialSuggestionFailure
			if errors.As(err, &partial) {
				fmt.Fprintln(out, formatter.FormatPartialFailure(partial))
			}
			return err
		},
	}
}

func newSuggestAcceptCmd(a *App) *cobra.Command {
	var adminID string
	var yes bool

	cmd := &cobra.Command{
		Use:   "accept CONFLICT_ID SUGGESTION_ID",
		Short: "Accept a suggested replacement and create its assignment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.confirm(fmt.Sprintf("Assign suggestion %s to conflict %s?", args[1], args[0]), yes)
			if err != nil {
				return err
			}
			if !ok {
				return errAborted
			}

			res, err := a.Suggestions.AcceptSuggestion(cmd.Context(), app.AcceptSuggestionInput{
				ConflictID:   args[0],
				SuggestionID: args[1],
				AdminID:      adminID,
			})
			if err != nil {
				if errors.Is(err, domain.ErrStaleSuggestion) {
					return fmt.Errorf("%w (run `leaveguard suggest generate` again)", err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatAccept(res))
			return nil
		},
	}

	cmd.Flags().StringVar(&adminID, "admin", "", "Accepting admin ID")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	_ = cmd.MarkFlagRequired("admin")

	return cmd
}

func newSuggestRejectCmd(a *App) *cobra.Command {
	var adminID string

	cmd := &cobra.Command{
		Use:   "reject CONFLICT_ID",
		Short: "Reject the current suggestion of a conflict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.Suggestions.RejectSuggestion(cmd.Context(), app.RejectSuggestionInput{
				ConflictID: args[0],
				AdminID:    adminID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rejected suggestion for trip %s; conflict is %s\n",
				c.TripID, formatter.ConflictStatePill(c.State))
			return nil
		},
	}

	cmd.Flags().StringVar(&adminID, "admin", "", "Rejecting admin ID")
	_ = cmd.MarkFlagRequired("admin")

	return cmd
}
