package exporter

import (
	"seriesdash/internal/series"
)

// Records converts the rows of t to CSV records in column order.
func Records(t series.Table) [][]string {
	cols := t.Columns()
	out := make([][]string, 0, t.Len())
	for _, row := range t.Rows() {
		record := make([]string, len(cols))
		for i, c := range cols {
			record[i] = formatCell(row.Get(c))
		}
		out = append(out, record)
	}
	return out
}

// formatCell formats a cell for CSV output. Dates are written as
// 2006-01-02, numbers in their shortest form and missing cells as "".
func formatCell(v series.Value) string {
	return v.String()
}
