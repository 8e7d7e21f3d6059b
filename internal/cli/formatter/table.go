package formatter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const colGap = 2

// RenderTable renders an aligned table with a header separator line.
// Widths are measured on visible text so styled cells line up.
func RenderTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	widths := columnWidths(headers, rows)

	var b strings.Builder
	writeRow(&b, widths, len(headers), func(i int) string { return StyleHeader.Render(headers[i]) })
	writeRow(&b, widths, len(headers), func(i int) string { return StyleDim.Render(strings.Repeat("─", widths[i])) })
	for _, row := range rows {
		writeRow(&b, widths, len(headers), func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		})
	}
	return b.String()
}

func columnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(headers) && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

func writeRow(b *strings.Builder, widths []int, cols int, cell func(i int) string) {
	for i := 0; i < cols; i++ {
		c := cell(i)
		b.WriteString(c)
		if i < cols-1 {
			pad := widths[i] - lipgloss.Width(c)
			if pad < 0 {
				pad = 0
			}
			b.WriteString(strings.Repeat(" ", pad+colGap))
		}
	}
	b.WriteString("\n")
}
