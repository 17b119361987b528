// Package series turns a loaded table into a chart-ready price series.
//
// A Table is an immutable, ordered set of rows keyed by column name. Every
// operation in this package returns a new Table and never fails on bad data:
// cells that cannot be read as numbers or dates become missing and are left
// out of statistics and sorting, while the rows themselves stay in place.
//
// # Pipeline
//
// A single Run performs the whole load-to-chart transformation:
//
//	normalize -> key filter -> membership filters -> derived columns ->
//	numeric coercion -> date parsing -> stable date sort ->
//	default range + user override -> annotation extraction
//
// Callers validate structural preconditions (required columns) with Check
// before Run. An empty Result is a normal outcome, not an error: renderers
// skip drawing instead.
//
// # Example
//
//	spec := series.Spec{
//	    IDColumn:         "stock_id",
//	    DateColumn:       "date",
//	    ValueColumn:      "close",
//	    AnnotationColumn: "event",
//	    FallbackMax:      1000,
//	    Limits:           series.RangeSpec{Min: 0, Max: 10000},
//	}
//	if err := series.Check(table, spec); err != nil {
//	    return err
//	}
//	res := series.Run(table, spec, series.Query{Key: &series.KeyFilter{Column: "stock_id", Value: "2330"}})
//	if res.Empty() {
//	    return nil
//	}
package series
