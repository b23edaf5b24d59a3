package formatter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const colGap = 2

// Table is an aligned plain-text table. Widths are measured on visible
// characters so styled cells line up.
type Table struct {
	Headers []string
	Rows    [][]string
	// Right lists column indexes rendered right-aligned.
	Right map[int]bool
}

func (t Table) widths() []int {
	w := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		w[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < len(w) && i < len(row); i++ {
			if cw := lipgloss.Width(row[i]); cw > w[i] {
				w[i] = cw
			}
		}
	}
	return w
}

func (t Table) cell(b *strings.Builder, i int, text string, width int, last bool) {
	pad := width - lipgloss.Width(text)
	if pad < 0 {
		pad = 0
	}
	if t.Right[i] {
		b.WriteString(strings.Repeat(" ", pad))
		b.WriteString(text)
		if !last {
			b.WriteString(strings.Repeat(" ", colGap))
		}
		return
	}
	b.WriteString(text)
	if !last {
		b.WriteString(strings.Repeat(" ", pad+colGap))
	}
}

func (t Table) Render() string {
	if len(t.Headers) == 0 {
		return ""
	}
	widths := t.widths()
	last := len(widths) - 1

	var b strings.Builder
	for i, h := range t.Headers {
		t.cell(&b, i, StyleHeader.Render(h), widths[i], i == last)
	}
	b.WriteString("\n")
	for i, w := range widths {
		b.WriteString(StyleDim.Render(strings.Repeat("─", w)))
		if i < last {
			b.WriteString(strings.Repeat(" ", colGap))
		}
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		for i := range widths {
			text := ""
			if i < len(row) {
				text = row[i]
			}
			t.cell(&b, i, text, widths[i], i == last)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTable renders a left-aligned table.
func RenderTable(headers []string, rows [][]string) string {
	return Table{Headers: headers, Rows: rows}.Render()
}
