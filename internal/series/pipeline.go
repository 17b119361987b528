package series

import (
	"fmt"
)

// Derivation adds a numeric column computed as Source × Factor.
type Derivation struct {
	Source string  `yaml:"source" json:"source"`
	Target string  `yaml:"target" json:"target"`
	Factor float64 `yaml:"factor" json:"factor"`
}

// Spec describes the columns of a dataset and how to read them.
type Spec struct {
	IDColumn          string
	DateColumn        string
	ValueColumn       string
	AnnotationColumn  string
	RequireAnnotation bool
	DateEncoding      DateEncoding
	Derived           []Derivation
	FallbackMax       float64
	Limits            RangeSpec
}

func (s Spec) fallbackMax() float64 {
	if s.FallbackMax == 0 {
		return DefaultFallbackMax
	}
	return s.FallbackMax
}

func (s Spec) limits() RangeSpec {
	if s.Limits == (RangeSpec{}) {
		return DefaultLimits
	}
	return s.Limits
}

// KeyFilter selects the rows of one entity, e.g. one stock id.
// An empty Column means the spec's IDColumn.
type KeyFilter struct {
	Column string
	Value  string
}

// MemberFilter restricts Column to the Allowed values.
type MemberFilter struct {
	Column  string
	Allowed []string
}

// Query is one user selection.
type Query struct {
	Key      *KeyFilter
	Members  []MemberFilter
	Override RangeOverride
}

// Unparseable counts cells that had text but could not be read.
type Unparseable struct {
	Values int `json:"values"`
	Dates  int `json:"dates"`
}

// Result is the output of one Run.
type Result struct {
	Series      Table       `json:"series"`
	Annotated   Table       `json:"annotated"`
	Default     RangeSpec   `json:"default_range"`
	Range       RangeSpec   `json:"range"`
	Unparseable Unparseable `json:"unparseable"`
}

// Empty reports whether no rows survived the filters.
func (r Result) Empty() bool { return r.Series.Len() == 0 }

// MissingColumnError reports a column the spec needs but the table lacks.
type MissingColumnError struct {
	Role   string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing %s column %q", e.Role, e.Column)
}

// Check verifies that t has every column spec relies on. The value column
// may be produced by a derivation whose source is present. The annotation
// column is only checked when RequireAnnotation is set.
func Check(t Table, spec Spec) error {
	required := []struct{ role, col string }{
		{"id", spec.IDColumn},
		{"date", spec.DateColumn},
	}
	if spec.RequireAnnotation {
		required = append(required, struct{ role, col string }{"annotation", spec.AnnotationColumn})
	}
	for _, r := range required {
		if r.col != "" && !t.HasColumn(r.col) {
			return &MissingColumnError{Role: r.role, Column: r.col}
		}
	}
	if spec.DateColumn == "" {
		return &MissingColumnError{Role: "date", Column: ""}
	}

	for _, d := range spec.Derived {
		if !t.HasColumn(d.Source) {
			return &MissingColumnError{Role: "derivation source", Column: d.Source}
		}
	}
	if spec.ValueColumn == "" {
		return &MissingColumnError{Role: "value", Column: ""}
	}
	if !t.HasColumn(spec.ValueColumn) && !derives(spec.Derived, spec.ValueColumn) {
		return &MissingColumnError{Role: "value", Column: spec.ValueColumn}
	}
	return nil
}

func derives(ds []Derivation, col string) bool {
	for _, d := range ds {
		if d.Target == col {
			return true
		}
	}
	return false
}

// Run applies q to t and returns the chart-ready series. Run does not
// validate columns; call Check first. It never fails: an empty selection
// yields an empty Result with the fallback range. Unreadable source cells of
// a derivation that produces the value column count as unparseable values.
func Run(t Table, spec Spec, q Query) Result {
	t = Normalize(t, spec.AnnotationColumn)

	if q.Key != nil && q.Key.Value != "" {
		col := q.Key.Column
		if col == "" {
			col = spec.IDColumn
		}
		t = FilterByKey(t, col, q.Key.Value)
	}
	for _, m := range q.Members {
		t = FilterByMembership(t, m.Column, m.Allowed)
	}
	var un Unparseable
	for _, d := range spec.Derived {
		before := CountMissing(t, d.Source)
		t = Scale(t, d.Source, d.Target, d.Factor)
		if d.Target == spec.ValueColumn {
			un.Values += CountMissing(t, d.Source) - before
		}
	}

	before := CountMissing(t, spec.ValueColumn)
	t = CoerceNumeric(t, spec.ValueColumn)
	un.Values += CountMissing(t, spec.ValueColumn) - before

	before = CountMissing(t, spec.DateColumn)
	t = ParseDates(t, spec.DateColumn, spec.DateEncoding)
	un.Dates = CountMissing(t, spec.DateColumn) - before

	t = SortByDate(t, spec.DateColumn)

	def := ComputeDefaultRange(NumericValues(t, spec.ValueColumn), spec.fallbackMax())
	return Result{
		Series:      t,
		Annotated:   ExtractAnnotated(t, spec.AnnotationColumn),
		Default:     def,
		Range:       ApplyOverride(def, q.Override, spec.limits()),
		Unparseable: un,
	}
}
