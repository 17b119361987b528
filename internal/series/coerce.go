package series

import (
	"strconv"
	"strings"
)

// CoerceNumeric converts col to number cells. Text that does not parse as a
// finite float becomes missing; rows are never dropped. Thousands separators
// are not accepted. An absent column leaves the table unchanged.
func CoerceNumeric(t Table, col string) Table {
	if !t.HasColumn(col) {
		return t
	}
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		v := r.Get(col)
		if v.Kind() == KindNumber || v.Kind() == KindMissing {
			rows[i] = r
			continue
		}
		rows[i] = r.with(col, parseNumber(v.Text()))
	}
	return t.withRows(rows)
}

func parseNumber(text string) Value {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return Missing()
	}
	return numberWithText(f, text)
}

// NumericValues returns the numbers of col in row order, skipping cells
// that are not numbers.
func NumericValues(t Table, col string) []float64 {
	out := make([]float64, 0, len(t.rows))
	for _, r := range t.rows {
		if f, ok := r.Get(col).Float(); ok {
			out = append(out, f)
		}
	}
	return out
}

// CountMissing reports how many rows have no value in col.
func CountMissing(t Table, col string) int {
	n := 0
	for _, r := range t.rows {
		if r.Get(col).IsMissing() {
			n++
		}
	}
	return n
}

// Scale writes src multiplied by factor into dst, appending dst to the
// columns when new. src is coerced first; rows whose src is not a number
// get a missing dst.
func Scale(t Table, src, dst string, factor float64) Table {
	if !t.HasColumn(src) {
		return t
	}
	coerced := CoerceNumeric(t, src)
	rows := make([]Row, len(coerced.rows))
	for i, r := range coerced.rows {
		f, ok := r.Get(src).Float()
		if !ok {
			rows[i] = r.with(dst, Missing())
			continue
		}
		rows[i] = r.with(dst, Number(f*factor))
	}
	return coerced.withColumn(dst).withRows(rows)
}
