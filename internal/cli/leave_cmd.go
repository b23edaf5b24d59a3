package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/cli/formatter"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/spf13/cobra"
)

func newLeaveCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Manage driver leave requests",
	}

	cmd.AddCommand(
		newLeaveCreateCmd(a),
		newLeaveShowCmd(a),
		newLeaveListCmd(a),
		newLeaveApproveCmd(a),
		newLeaveRejectCmd(a),
		newLeaveCancelCmd(a),
	)

	return cmd
}

func parseDateFlag(name, value string) (time.Time, error) {
	d, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: name, Message: fmt.Sprintf("invalid date %q, use YYYY-MM-DD", value)}
	}
	return d, nil
}

func optionalDate(cmd *cobra.Command, name, value string) (*time.Time, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	d, err := parseDateFlag(name, value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func newLeaveCreateCmd(a *App) *cobra.Command {
	var driverID, leaveType, start, end, reason string
	var auto bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a leave request for a driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			endDate := startDate
			if end != "" {
				if endDate, err = parseDateFlag("end", end); err != nil {
					return err
				}
			}

			res, err := a.Leaves.CreateLeaveRequest(cmd.Context(), app.CreateLeaveInput{
				DriverID:        driverID,
				LeaveType:       domain.LeaveType(leaveType),
				StartDate:       startDate,
				EndDate:         endDate,
				Reason:          reason,
				AutoReplacement: auto,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, formatter.FormatLeave(res.Leave))
			if res.Suggestions != nil {
				fmt.Fprintln(out, formatter.FormatGenerateResult(res.Suggestions))
			}
			if res.SuggestionError != nil {
				var partial *domain.PartialSuggestionFailure
				if errors.As(res.SuggestionError, &partial) {
					fmt.Fprintln(out, formatter.FormatPartialFailure(partial))
				} else {
					fmt.Fprintln(out, formatter.StyleYellow.Render("suggestions not generated: "+res.SuggestionError.Error()))
				}
			}
			if auto && res.Suggestions == nil && res.SuggestionError == nil {
				fmt.Fprintln(out, formatter.Dim("Suggestions will be generated by the background worker."))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&driverID, "driver", "", "Driver ID")
	cmd.Flags().StringVar(&leaveType, "type", string(domain.LeaveSick), "Leave type (sick, vacation, emergency, personal, training, other)")
	cmd.Flags().StringVar(&start, "start", "", "First day of leave (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last day of leave, inclusive (YYYY-MM-DD, defaults to --start)")
	cmd.Flags().StringVar(&reason, "reason", "", "Free-text reason")
	cmd.Flags().BoolVar(&auto, "auto", false, "Generate replacement suggestions automatically")
	_ = cmd.MarkFlagRequired("driver")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func newLeaveShowCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a leave request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.Leaves.GetLeaveRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatLeave(l))
			return nil
		},
	}
}

func newLeaveListCmd(a *App) *cobra.Command {
	var driverID, status, from, to string
	var page, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leave requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := app.LeaveFilter{DriverID: driverID, Status: domain.LeaveStatus(status)}
			var err error
			if filter.From, err = optionalDate(cmd, "from", from); err != nil {
				return err
			}
			if filter.To, err = optionalDate(cmd, "to", to); err != nil {
				return err
			}

			res, err := a.Leaves.ListLeaveRequests(cmd.Context(), filter, app.PageRequest{Page: page, Limit: limit})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatLeaveList(res))
			return nil
		},
	}

	cmd.Flags().StringVar(&driverID, "driver", "", "Only this driver")
	cmd.Flags().StringVar(&status, "status", "", "Only this status (pending, approved, rejected, cancelled)")
	cmd.Flags().StringVar(&from, "from", "", "Overlapping on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Overlapping on or before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&page, "page", app.DefaultPage, "Page number")
	cmd.Flags().IntVar(&limit, "limit", app.DefaultLimit, fmt.Sprintf("Page size (max %d)", app.MaxLimit))

	return cmd
}

func newLeaveApproveCmd(a *App) *cobra.Command {
	var adminID, note, from, to string
	var yes bool

	cmd := &cobra.Command{
		Use:   "approve ID",
		Short: "Approve a pending leave request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := app.ApproveLeaveInput{LeaveRequestID: args[0], AdminID: adminID, Note: note}
			var err error
			if in.EffectiveFrom, err = optionalDate(cmd, "from", from); err != nil {
				return err
			}
			if in.EffectiveTo, err = optionalDate(cmd, "to", to); err != nil {
				return err
			}

			ok, err := a.confirm(fmt.Sprintf("Approve leave request %s?", args[0]), yes)
			if err != nil {
				return err
			}
			if !ok {
				return errAborted
			}

			res, err := a.Leaves.ApproveLeaveRequest(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatApproval(res))
			return nil
		},
	}

	cmd.Flags().StringVar(&adminID, "admin", "", "Approving admin ID")
	cmd.Flags().StringVar(&note, "note", "", "Approval note")
	cmd.Flags().StringVar(&from, "from", "", "Narrow the approved range: first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Narrow the approved range: last day (YYYY-MM-DD)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	_ = cmd.MarkFlagRequired("admin")

	return cmd
}

func newLeaveRejectCmd(a *App) *cobra.Command {
	var adminID, reason string

	cmd := &cobra.Command{
		Use:   "reject ID",
		Short: "Reject a pending leave request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.Leaves.RejectLeaveRequest(cmd.Context(), app.RejectLeaveInput{
				LeaveRequestID: args[0],
				AdminID:        adminID,
				Reason:         reason,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatTermination("Rejected", res))
			return nil
		},
	}

	cmd.Flags().StringVar(&adminID, "admin", "", "Rejecting admin ID")
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection reason")
	_ = cmd.MarkFlagRequired("admin")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func newLeaveCancelCmd(a *App) *cobra.Command {
	var driverID, adminID string

	cmd := &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a pending or approved leave request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.Leaves.CancelLeaveRequest(cmd.Context(), app.CancelLeaveInput{
				LeaveRequestID: args[0],
				Actor:          domain.Actor{DriverID: driverID, AdminID: adminID},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatTermination("Cancelled", res))
			return nil
		},
	}

	cmd.Flags().StringVar(&driverID, "driver", "", "Cancelling driver ID (must own the request)")
	cmd.Flags().StringVar(&adminID, "admin", "", "Cancelling admin ID")
	cmd.MarkFlagsMutuallyExclusive("driver", "admin")
	cmd.MarkFlagsOneRequired("driver", "admin")

	return cmd
}
