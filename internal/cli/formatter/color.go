package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fleetdesk/leaveguard/internal/domain"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorOrange = lipgloss.Color("#fe8019")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleOrange = lipgloss.NewStyle().Foreground(ColorOrange)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorOrange).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// SeverityStyle returns the style used for a conflict severity.
func SeverityStyle(s domain.Severity) lipgloss.Style {
	switch s {
	case domain.SeverityCritical:
		return StyleRed.Bold(true)
	case domain.SeverityHigh:
		return StyleOrange
	case domain.SeverityMedium:
		return StyleYellow
	default:
		return StyleDim
	}
}

// SeverityIndicator renders a severity as "● HIGH".
func SeverityIndicator(s domain.Severity) string {
	return SeverityStyle(s).Render("● " + strings.ToUpper(s.String()))
}

func LeaveStatusPill(s domain.LeaveStatus) string {
	switch s {
	case domain.LeavePending:
		return StyleYellow.Render("○ Pending")
	case domain.LeaveApproved:
		return StyleGreen.Render("● Approved")
	case domain.LeaveRejected:
		return StyleRed.Render("✖ Rejected")
	case domain.LeaveCancelled:
		return StyleDim.Render("⊘ Cancelled")
	default:
		return StyleDim.Render(string(s))
	}
}

func ConflictStatePill(s domain.ConflictState) string {
	switch s {
	case domain.ConflictUnresolved:
		return StyleRed.Render("▲ Unresolved")
	case domain.ConflictSuggested:
		return StyleBlue.Render("◆ Suggested")
	case domain.ConflictAccepted:
		return StyleGreen.Render("✔ Accepted")
	case domain.ConflictRejected:
		return StyleYellow.Render("✖ Rejected")
	case domain.ConflictSuperseded:
		return StyleDim.Render("⊘ Superseded")
	default:
		return StyleDim.Render(string(s))
	}
}

// ScoreStyled colours a 0-100 replacement score.
func ScoreStyled(score float64) string {
	text := fmt.Sprintf("%.1f", score)
	switch {
	case score >= 75:
		return StyleGreen.Render(text)
	case score >= 50:
		return StyleYellow.Render(text)
	default:
		return StyleRed.Render(text)
	}
}

// Header renders an upper-cased section title with an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", lipgloss.Width(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}
