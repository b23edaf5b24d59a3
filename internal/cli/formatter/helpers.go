package formatter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fleetdesk/leaveguard/internal/domain"
)

// RenderBox wraps content in a rounded-border box with an optional title.
func RenderBox(title string, content string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorDim).
		PaddingLeft(2).
		PaddingRight(2)

	if title != "" {
		return box.Render(StyleHeader.Render(strings.ToUpper(title)) + "\n\n" + content)
	}
	return box.Render(content)
}

// RelativeDateFrom describes t relative to now in whole days.
func RelativeDateFrom(t time.Time, now time.Time) string {
	days := int(math.Round(t.Sub(now).Hours() / 24))

	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	case days == -1:
		return "Yesterday"
	case days > 0 && days < 14:
		return fmt.Sprintf("In %dd", days)
	case days > 0:
		return fmt.Sprintf("In %dw", days/7)
	case days > -14:
		return fmt.Sprintf("%dd ago", -days)
	default:
		return fmt.Sprintf("%dw ago", -days/7)
	}
}

// TruncID returns the first 8 characters of an ID, dimmed.
func TruncID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return StyleDim.Render(id)
}

// DateRange renders an inclusive leave range, collapsing single days.
func DateRange(start, end time.Time) string {
	const layout = "Mon Jan 2"
	if start.Equal(end) {
		return start.Format(layout)
	}
	if start.Year() != end.Year() {
		return start.Format("Jan 2, 2006") + " – " + end.Format("Jan 2, 2006")
	}
	return start.Format(layout) + " – " + end.Format(layout)
}

// TripWindow renders a trip window, omitting the end date for same-day trips.
func TripWindow(iv domain.Interval) string {
	if iv.Start.YearDay() != iv.End.YearDay() || iv.Start.Year() != iv.End.Year() {
		return iv.Start.Format("Mon Jan 2 15:04") + "–" + iv.End.Format("Mon Jan 2 15:04")
	}
	return iv.Start.Format("Mon Jan 2 15:04") + "–" + iv.End.Format("15:04")
}

func orDash(s string) string {
	if s == "" {
		return StyleDim.Render("--")
	}
	return s
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
