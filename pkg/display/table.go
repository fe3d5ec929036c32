package display

import (
	"fmt"
	"strings"

	"github.com/voicedesk/voicedesk/pkg/db"
)

// RenderRowSet formats a normalized result set as a plain-text table bounded
// by maxWidth. Used both for the operator console (terminal width) and for
// tool results handed back to the model (fixed width).
func RenderRowSet(rs *db.RowSet, maxWidth int) string {
	if rs == nil || len(rs.Columns) == 0 {
		if rs != nil && rs.CommandTag != "" {
			return rs.CommandTag
		}
		return "(no rows)"
	}
	if maxWidth <= 0 {
		maxWidth = 80
	}

	widths := columnWidths(rs, maxWidth)

	var out strings.Builder
	writeRow(&out, rs.Columns, widths)
	out.WriteString(strings.Repeat("-", min(totalWidth(widths), maxWidth)))
	out.WriteString("\n")
	for _, row := range rs.Rows {
		cells := make([]string, len(rs.Columns))
		for i := range rs.Columns {
			if i < len(row) {
				cells[i] = formatValue(row[i])
			}
		}
		writeRow(&out, cells, widths)
	}
	out.WriteString(fmt.Sprintf("(%d rows)\n", rs.Len()))
	return out.String()
}

// columnWidths sizes each column to its widest cell, then shrinks columns
// evenly when the table would overflow maxWidth.
func columnWidths(rs *db.RowSet, maxWidth int) []int {
	widths := make([]int, len(rs.Columns))
	for i, name := range rs.Columns {
		widths[i] = len(name)
	}
	for _, row := range rs.Rows {
		for i := range widths {
			if i >= len(row) {
				continue
			}
			if l := len(formatValue(row[i])); l > widths[i] {
				widths[i] = l
			}
		}
	}

	borders := len(widths)*3 + 1
	available := maxWidth - borders
	if available < len(widths)*3 {
		available = len(widths) * 3
	}
	if totalWidth(widths)-borders > available {
		even := available / len(widths)
		for i := range widths {
			if widths[i] > even {
				widths[i] = max(3, even)
			}
		}
	}
	return widths
}

func totalWidth(widths []int) int {
	total := len(widths)*3 + 1
	for _, w := range widths {
		total += w
	}
	return total
}

func writeRow(out *strings.Builder, cells []string, widths []int) {
	out.WriteString("| ")
	for i, cell := range cells {
		if i >= len(widths) {
			continue
		}
		out.WriteString(padRight(truncate(cell, widths[i]), widths[i]))
		out.WriteString(" | ")
	}
	out.WriteString("\n")
}

func formatValue(value any) string {
	if value == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", value)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
