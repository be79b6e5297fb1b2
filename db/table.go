package db

import (
	"io"
	"strings"
	"unicode/utf8"
)

// maxCellWidth caps a column so one long value does not widen the grid.
const maxCellWidth = 48

// writeGrid renders header and rows as a boxed text grid. Rows may be ragged;
// missing cells are blank.
func writeGrid(w io.Writer, header []string, rows [][]string) {
	columns := len(header)
	for _, row := range rows {
		columns = max(columns, len(row))
	}
	if columns == 0 {
		return
	}

	widths := make([]int, columns)
	measure := func(row []string) {
		for i, cell := range row {
			widths[i] = max(widths[i], min(utf8.RuneCountInString(cell), maxCellWidth))
		}
	}
	measure(header)
	for _, row := range rows {
		measure(row)
	}

	var b strings.Builder
	rule := func() {
		b.WriteByte('+')
		for _, width := range widths {
			b.WriteString(strings.Repeat("-", width+2))
			b.WriteByte('+')
		}
		b.WriteByte('\n')
	}
	line := func(row []string) {
		b.WriteByte('|')
		for i, width := range widths {
			var cell string
			if i < len(row) {
				cell = clip(row[i], maxCellWidth)
			}
			b.WriteByte(' ')
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", width-utf8.RuneCountInString(cell)+1))
			b.WriteByte('|')
		}
		b.WriteByte('\n')
	}

	rule()
	if len(header) > 0 {
		line(header)
		rule()
	}
	for _, row := range rows {
		line(row)
	}
	rule()

	_, _ = io.WriteString(w, b.String())
}

// clip shortens s to limit runes, marking the cut with an ellipsis.
func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
