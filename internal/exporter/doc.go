// Package exporter writes series tables as CSV.
//
// WriteTable streams a table to any io.Writer, which is how HTTP downloads
// are served. CSVWriter writes into the configured exports directory:
//
//	w := exporter.NewCSVWriter(paths)
//	path, err := w.ExportTable("2330_history.csv", res.Series)
//
// Every file starts with a UTF-8 BOM so spreadsheet applications pick the
// right encoding.
package exporter
