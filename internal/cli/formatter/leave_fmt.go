package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
)

// FormatLeaveList renders one page of leave requests.
func FormatLeaveList(page *app.LeavePage) string {
	if page == nil || len(page.Items) == 0 {
		return Dim("No leave requests found.")
	}
	rows := make([][]string, 0, len(page.Items))
	for _, l := range page.Items {
		auto := Dim("no")
		if l.AutoReplacementEnabled {
			auto = StyleGreen.Render("yes")
		}
		rows = append(rows, []string{
			TruncID(l.ID),
			l.DriverID,
			string(l.LeaveType),
			DateRange(l.StartDate, l.EndDate),
			LeaveStatusPill(l.Status),
			auto,
		})
	}
	var b strings.Builder
	b.WriteString(RenderTable([]string{"ID", "DRIVER", "TYPE", "DATES", "STATUS", "AUTO"}, rows))
	pages := (page.Total + page.Limit - 1) / page.Limit
	if pages < 1 {
		pages = 1
	}
	b.WriteString(Dim(fmt.Sprintf("page %d of %d · %d total", page.Page, pages, page.Total)))
	return b.String()
}

// FormatLeave renders a single request with its audit trail.
func FormatLeave(l *domain.LeaveRequest) string {
	var b strings.Builder
	line := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", StyleDim.Render(fmt.Sprintf("%-12s", label)), value)
	}
	line("id", l.ID)
	line("driver", l.DriverID)
	line("type", string(l.LeaveType))
	line("dates", DateRange(l.StartDate, l.EndDate))
	line("status", LeaveStatusPill(l.Status))
	if l.Reason != "" {
		line("reason", l.Reason)
	}
	line("requested", l.RequestedAt.Format(time.RFC3339))
	if l.ApprovedAt != nil {
		line("approved", fmt.Sprintf("%s by %s", l.ApprovedAt.Format(time.RFC3339), l.ApprovedByAdminID))
	}
	if l.RejectedAt != nil {
		line("rejected", fmt.Sprintf("%s by %s (%s)", l.RejectedAt.Format(time.RFC3339), l.RejectedByAdminID, l.RejectionReason))
	}
	if l.CancelledAt != nil {
		line("cancelled", fmt.Sprintf("%s by %s", l.CancelledAt.Format(time.RFC3339), l.CancelledBy))
	}
	if l.SuggestedReplacementDriverID != nil {
		line("replacement", fmt.Sprintf("%s / %s", *l.SuggestedReplacementDriverID, derefOr(l.SuggestedReplacementVehicleID)))
	}
	if l.SuggestionGeneratedAt != nil {
		line("suggestions", l.SuggestionGeneratedAt.Format(time.RFC3339))
	} else if l.AutoReplacementEnabled {
		line("suggestions", Dim("pending"))
	}
	return RenderBox("Leave request", strings.TrimRight(b.String(), "\n"))
}

// FormatApproval summarises the operational effect of an approval.
func FormatApproval(res *app.ApproveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Approved leave request %s for %s (%s)\n",
		res.Leave.ID, res.Leave.DriverID, DateRange(res.Leave.StartDate, res.Leave.EndDate))
	if n := len(res.Activated); n > 0 {
		fmt.Fprintf(&b, "%s %d replacement(s) now active\n", StyleGreen.Render("✔"), n)
	}
	if n := len(res.Superseded); n > 0 {
		fmt.Fprintf(&b, "%s %d conflict(s) outside the effective range superseded\n", Dim("⊘"), n)
	}
	if len(res.Gaps) == 0 {
		b.WriteString(StyleGreen.Render("No operational gaps."))
		return b.String()
	}
	b.WriteString("\n" + Header("Operational gaps") + "\n")
	b.WriteString(FormatConflictTable(res.Gaps))
	return strings.TrimRight(b.String(), "\n")
}

// FormatTermination reports superseded conflicts and retracted assignments.
func FormatTermination(verb string, res *app.TerminationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s leave request %s", verb, res.Leave.ID)
	if n := len(res.Superseded); n > 0 {
		fmt.Fprintf(&b, "\n%s %d conflict(s) superseded", Dim("⊘"), n)
	}
	if n := len(res.Retracted); n > 0 {
		fmt.Fprintf(&b, "\n%s %d replacement assignment(s) retracted", StyleYellow.Render("↺"), n)
	}
	return b.String()
}
