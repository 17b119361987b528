package series

// Normalize makes the annotation column safe to compare: missing cells
// become empty strings and every other cell is read as its text. When the
// table has no annotation column it is returned unchanged; the column is
// never synthesized.
func Normalize(t Table, annotationCol string) Table {
	if annotationCol == "" || !t.HasColumn(annotationCol) {
		return t
	}
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		v := r.Get(annotationCol)
		if v.Kind() == KindString {
			rows[i] = r
			continue
		}
		rows[i] = r.with(annotationCol, String(v.Text()))
	}
	return t.withRows(rows)
}

// FilterByKey keeps the rows whose col equals value, compared on cell text.
// Row order is preserved and an empty result is valid.
func FilterByKey(t Table, col, value string) Table {
	return t.filter(func(r Row) bool {
		v := r.Get(col)
		return !v.IsMissing() && v.Text() == value
	})
}

// FilterByMembership keeps the rows whose col is one of allowed. An empty
// allowed set means no restriction and returns the input unchanged.
func FilterByMembership(t Table, col string, allowed []string) Table {
	if len(allowed) == 0 {
		return t
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return t.filter(func(r Row) bool {
		v := r.Get(col)
		if v.IsMissing() {
			return false
		}
		_, ok := set[v.Text()]
		return ok
	})
}

// ExtractAnnotated returns the rows whose annotation is non-empty, in input
// order. Without the annotation column the result is an empty table with
// the same columns.
func ExtractAnnotated(t Table, annotationCol string) Table {
	if annotationCol == "" || !t.HasColumn(annotationCol) {
		return t.withRows(nil)
	}
	return t.filter(func(r Row) bool {
		return r.Get(annotationCol).Text() != ""
	})
}

// UniqueValues lists the distinct non-empty texts of col in first-seen order.
func UniqueValues(t Table, col string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.rows {
		v := r.Get(col)
		if v.IsMissing() || v.Text() == "" {
			continue
		}
		if _, ok := seen[v.Text()]; ok {
			continue
		}
		seen[v.Text()] = struct{}{}
		out = append(out, v.Text())
	}
	return out
}

func (t Table) filter(keep func(Row) bool) Table {
	rows := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return t.withRows(rows)
}
