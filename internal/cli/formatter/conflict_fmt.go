package formatter

import (
	"fmt"
	"strings"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
)

// FormatConflictTable renders conflicts without their suggestions.
func FormatConflictTable(conflicts []domain.Conflict) string {
	rows := make([][]string, 0, len(conflicts))
	for _, c := range conflicts {
		rows = append(rows, conflictRow(c))
	}
	return Table{
		Headers: []string{"CONFLICT", "TRIP", "ROUTE", "WHEN", "STUDENTS", "SEVERITY", "STATE", "REPLACEMENT"},
		Rows:    rows,
		Right:   map[int]bool{4: true},
	}.Render()
}

func conflictRow(c domain.Conflict) []string {
	replacement := Dim(orNoReplacement(c.ReplacementReason))
	if c.SuggestedDriverID != nil {
		replacement = fmt.Sprintf("%s / %s", *c.SuggestedDriverID, derefOr(c.SuggestedVehicleID))
		if c.ReplacementScore != nil {
			replacement += " " + ScoreStyled(*c.ReplacementScore)
		}
	}
	if c.State == domain.ConflictAccepted {
		replacement += " " + Dim("["+string(c.ReplacementStatus)+"]")
	}
	return []string{
		TruncID(c.ID),
		c.TripID,
		orDash(c.RouteName),
		TripWindow(c.Window()),
		fmt.Sprintf("%d", c.AffectedStudents),
		SeverityIndicator(c.Severity),
		ConflictStatePill(c.State),
		replacement,
	}
}

func orNoReplacement(reason string) string {
	if reason == "" {
		return "--"
	}
	return reason
}

// FormatSuggestions renders the ranked pairs of one conflict.
func FormatSuggestions(pairs []domain.CandidatePair) string {
	if len(pairs) == 0 {
		return Dim("  no replacement available")
	}
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{
			fmt.Sprintf("#%d", p.Rank),
			p.ID,
			p.DriverID,
			p.VehicleID,
			ScoreStyled(p.TotalScore),
			fmt.Sprintf("%.0f/%.0f/%.0f/%.0f", p.Scores.RouteFamiliarity, p.Scores.Performance,
				p.Scores.AvailabilityFit, p.Scores.CredentialMargin),
			Dim(p.Reason),
		})
	}
	return Table{
		Headers: []string{"RANK", "SUGGESTION", "DRIVER", "VEHICLE", "SCORE", "R/P/A/C", "REASON"},
		Rows:    rows,
		Right:   map[int]bool{4: true},
	}.Render()
}

// FormatConflictViews renders each conflict followed by its suggestions.
func FormatConflictViews(views []app.ConflictView) string {
	if len(views) == 0 {
		return Dim("No conflicts.")
	}
	var b strings.Builder
	for i, v := range views {
		if i > 0 {
			b.WriteString("\n")
		}
		c := v.Conflict
		fmt.Fprintf(&b, "%s  %s  %s  %s\n",
			SeverityIndicator(c.Severity), Bold(c.TripID), TripWindow(c.Window()), ConflictStatePill(c.State))
		fmt.Fprintf(&b, "%s\n", Dim(fmt.Sprintf("conflict %s · route %s · %d students · capacity %d",
			c.ID, orNoReplacement(c.RouteName), c.AffectedStudents, c.RequiredCapacity)))
		if c.State == domain.ConflictAccepted {
			fmt.Fprintf(&b, "%s %s / %s (%s)\n", StyleGreen.Render("✔ accepted"),
				derefOr(c.SuggestedDriverID), derefOr(c.SuggestedVehicleID), c.ReplacementStatus)
			continue
		}
		b.WriteString(FormatSuggestions(v.Suggestions))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatGenerateResult summarises a generation run.
func FormatGenerateResult(res *app.GenerateResult) string {
	var b strings.Builder
	gaps := 0
	for _, v := range res.Conflicts {
		if v.Conflict.State == domain.ConflictUnresolved {
			gaps++
		}
	}
	fmt.Fprintf(&b, "%s\n", Header("Suggestions"))
	fmt.Fprintf(&b, "Leave request %s\n", res.LeaveRequestID)
	fmt.Fprintf(&b, "%d conflict(s), %d without replacement", len(res.Conflicts), gaps)
	if n := len(res.Superseded); n > 0 {
		fmt.Fprintf(&b, ", %d superseded", n)
	}
	b.WriteString("\n\n")
	b.WriteString(FormatConflictViews(res.Conflicts))
	return b.String()
}

// FormatPartialFailure lists the conflicts whose candidate search failed.
func FormatPartialFailure(pf *domain.PartialSuggestionFailure) string {
	var b strings.Builder
	b.WriteString(StyleYellow.Render(fmt.Sprintf("%d conflict(s) could not be processed:", len(pf.Failures))))
	for _, f := range pf.Failures {
		fmt.Fprintf(&b, "\n  %s trip %s: %v", TruncID(f.ConflictID), f.TripID, f.Err)
	}
	return b.String()
}

// FormatAccept confirms an accepted suggestion.
func FormatAccept(res *app.AcceptResult) string {
	return fmt.Sprintf("Accepted %s / %s for trip %s (score %s, assignment %s, %s)",
		res.Suggestion.DriverID, res.Suggestion.VehicleID, res.Conflict.TripID,
		ScoreStyled(res.Suggestion.TotalScore), res.AssignmentID, res.Conflict.ReplacementStatus)
}
