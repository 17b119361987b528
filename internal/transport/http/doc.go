// Package http implements the HTTP handlers of seriesdash. Handlers only
// parse requests, call the services layer and shape responses; pipeline
// behavior lives in package services.
//
// # Routes
//
//	GET  /api/datasets                                 list datasets
//	GET  /api/datasets/{dataset}/options/{column}      dropdown values
//	GET  /api/datasets/{dataset}/series                series JSON
//	GET  /api/datasets/{dataset}/chart.png|chart.svg   chart image
//	GET  /api/datasets/{dataset}/export.csv            CSV download
//	POST /api/logs                                     client log lines
//	GET  /api/health, /api/health/live, /api/health/ready, /api/health/stats
//	GET  /api/version
//
// # Selections
//
// The series, chart and export routes share one query syntax:
//
//	?key=2330&in.name=TSMC,Foxconn&min=500&max=700
//	?symbol=2330.TW&interval=1wk&start=2023-01-01&end=2023-12-31
//
// key selects one entity by the dataset's id column, in.<column> restricts
// a selectable column to a set of values, min and max override the y-axis
// range, and symbol/interval/start/end are passed to parameterized sources.
//
// # Errors
//
// Every failure is an RFC 7807 problem document written by
// errors.ErrorHandler. An empty selection is not an error for the series
// route ("empty": true) but is a 404 NO_SERIES_DATA for chart and export,
// which have nothing to produce.
package http
