package tabular

import (
	"strings"
)

// NoDataMarker replaces the table when a result has no rows.
const NoDataMarker = "*No data found.*"

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

// HeaderColumns counts the semantic columns of a pipe-delimited title row.
// Blank segments, such as the ones produced by leading or trailing pipes,
// are ignored.
func HeaderColumns(header string) int {
	n := 0
	for _, seg := range strings.Split(header, "|") {
		if strings.TrimSpace(seg) != "" {
			n++
		}
	}
	return n
}

// SeparatorRow returns the markdown separator line for header.
func SeparatorRow(header string) string {
	n := HeaderColumns(header)
	if n == 0 {
		return ""
	}
	return "|" + strings.Repeat(" --- |", n)
}

// RenderMarkdown renders r below header as a markdown table. An empty
// result renders as NoDataMarker alone, never as an empty table.
func RenderMarkdown(header string, r *Result) string {
	if r.Empty() {
		return NoDataMarker + "\n"
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")
	sb.WriteString(SeparatorRow(header))
	sb.WriteString("\n")
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, f := range row {
			cells[i] = cellEscaper.Replace(f)
		}
		sb.WriteString("| ")
		sb.WriteString(strings.Join(cells, " | "))
		sb.WriteString(" |\n")
	}
	return sb.String()
}
