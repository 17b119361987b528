package series

import (
	"encoding/json"
	"slices"
)

// Row maps a column name to its cell. Rows handed out by a Table are copies.
type Row map[string]Value

// Get returns the cell for col, or a missing cell when the row lacks it.
func (r Row) Get(col string) Value {
	if v, ok := r[col]; ok {
		return v
	}
	return Missing()
}

// clone returns a shallow copy of the row
func (r Row) clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// with returns a copy of the row with col set to v
func (r Row) with(col string, v Value) Row {
	c := r.clone()
	c[col] = v
	return c
}

// Table is an ordered, immutable sequence of rows with a fixed column order.
// The zero Table is empty and valid.
type Table struct {
	columns []string
	rows    []Row
}

// NewTable builds a table from columns and rows. Both slices are copied.
func NewTable(columns []string, rows []Row) Table {
	t := Table{
		columns: slices.Clone(columns),
		rows:    make([]Row, len(rows)),
	}
	for i, r := range rows {
		t.rows[i] = r.clone()
	}
	return t
}

// FromRecords builds a table from a header and text records, the shape every
// file based source produces. Empty cells become missing; short records are
// padded with missing cells and extra trailing fields are dropped.
func FromRecords(header []string, records [][]string) Table {
	t := Table{
		columns: slices.Clone(header),
		rows:    make([]Row, 0, len(records)),
	}
	for _, rec := range records {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) && rec[i] != "" {
				row[col] = String(rec[i])
			} else {
				row[col] = Missing()
			}
		}
		t.rows = append(t.rows, row)
	}
	return t
}

// Columns returns the column names in order.
func (t Table) Columns() []string { return slices.Clone(t.columns) }

// HasColumn reports whether the table declares col.
func (t Table) HasColumn(col string) bool { return slices.Contains(t.columns, col) }

// Len returns the number of rows.
func (t Table) Len() int { return len(t.rows) }

// Row returns a copy of the i-th row.
func (t Table) Row(i int) Row { return t.rows[i].clone() }

// Rows returns copies of all rows in order.
func (t Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.clone()
	}
	return out
}

// Column returns the cells of col in row order.
func (t Table) Column(col string) []Value {
	out := make([]Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Get(col)
	}
	return out
}

// withRows returns a table sharing t's columns with a new row slice
func (t Table) withRows(rows []Row) Table {
	return Table{columns: t.columns, rows: rows}
}

// withColumn returns t with col appended to the column list if absent
func (t Table) withColumn(col string) Table {
	if t.HasColumn(col) {
		return t
	}
	cols := make([]string, len(t.columns), len(t.columns)+1)
	copy(cols, t.columns)
	return Table{columns: append(cols, col), rows: t.rows}
}

// Select returns a table restricted to the given columns, in that order.
// Unknown columns are kept and read as missing.
func (t Table) Select(columns ...string) Table {
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		row := make(Row, len(columns))
		for _, c := range columns {
			row[c] = r.Get(c)
		}
		rows[i] = row
	}
	return Table{columns: slices.Clone(columns), rows: rows}
}

// Rename returns a table with columns renamed according to names (old -> new).
func (t Table) Rename(names map[string]string) Table {
	if len(names) == 0 {
		return t
	}
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		if n, ok := names[c]; ok && n != "" {
			cols[i] = n
		} else {
			cols[i] = c
		}
	}
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		row := make(Row, len(r))
		for k, v := range r {
			if n, ok := names[k]; ok && n != "" {
				k = n
			}
			row[k] = v
		}
		rows[i] = row
	}
	return Table{columns: cols, rows: rows}
}

// Reorder moves the listed columns to the front in the given order; the
// remaining columns follow in their original order. Names that are not
// columns of t are ignored.
func (t Table) Reorder(first ...string) Table {
	cols := make([]string, 0, len(t.columns))
	for _, c := range first {
		if t.HasColumn(c) && !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	for _, c := range t.columns {
		if !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	return Table{columns: cols, rows: t.rows}
}

type tableJSON struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [[...], ...]}
// with cells in column order.
func (t Table) MarshalJSON() ([]byte, error) {
	out := tableJSON{
		Columns: t.columns,
		Rows:    make([][]Value, len(t.rows)),
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	for i, r := range t.rows {
		cells := make([]Value, len(t.columns))
		for j, c := range t.columns {
			cells[j] = r.Get(c)
		}
		out.Rows[i] = cells
	}
	return json.Marshal(out)
}
