package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

// PipelineMetrics instruments series pipeline runs
type PipelineMetrics struct {
	runs        metric.Int64Counter
	failures    metric.Int64Counter
	rows        metric.Int64Histogram
	unparseable metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewPipelineMetrics creates the pipeline instruments on meter. A nil meter
// yields no-op instruments.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter(InstrumentationName)
	}

	runs, err := meter.Int64Counter(
		"pipeline_runs",
		metric.WithDescription("Total number of series pipeline runs"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"pipeline_failures",
		metric.WithDescription("Total number of runs that failed to load or validate a dataset"),
	)
	if err != nil {
		return nil, err
	}

	rows, err := meter.Int64Histogram(
		"pipeline_rows",
		metric.WithDescription("Rows in the series produced by a run"),
		metric.WithExplicitBucketBoundaries(0, 10, 100, 1000, 10000, 100000),
	)
	if err != nil {
		return nil, err
	}

	unparseable, err := meter.Int64Counter(
		"pipeline_unparseable_cells",
		metric.WithDescription("Cells that could not be read as a number or date"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"pipeline_duration_seconds",
		metric.WithDescription("Time to load a dataset and run the pipeline"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		runs:        runs,
		failures:    failures,
		rows:        rows,
		unparseable: unparseable,
		duration:    duration,
	}, nil
}

// RunStats summarizes one pipeline run
type RunStats struct {
	Dataset          string
	Rows             int
	UnparseableValue int
	UnparseableDate  int
	Duration         time.Duration
	Err              error
}

// RecordRun records a finished run. Safe to call on a nil receiver.
func (m *PipelineMetrics) RecordRun(ctx context.Context, s RunStats) {
	if m == nil {
		return
	}
	ds := attribute.String("dataset", s.Dataset)

	status := "success"
	if s.Err != nil {
		status = "failure"
		m.failures.Add(ctx, 1, metric.WithAttributes(ds))
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(ds, attribute.String("status", status)))
	m.duration.Record(ctx, s.Duration.Seconds(), metric.WithAttributes(ds, attribute.String("status", status)))
	if s.Err != nil {
		return
	}

	m.rows.Record(ctx, int64(s.Rows), metric.WithAttributes(ds))
	if s.UnparseableValue > 0 {
		m.unparseable.Add(ctx, int64(s.UnparseableValue), metric.WithAttributes(ds, attribute.String("kind", "value")))
	}
	if s.UnparseableDate > 0 {
		m.unparseable.Add(ctx, int64(s.UnparseableDate), metric.WithAttributes(ds, attribute.String("kind", "date")))
	}
}

// HTTPMetrics instruments the HTTP server
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
}

// NewHTTPMetrics creates the HTTP instruments on meter
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter(InstrumentationName)
	}

	requests, err := meter.Int64Counter(
		"http_requests",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{requests: requests, duration: duration, active: active}, nil
}

// Start marks a request as active and returns the function that records
// its completion.
func (m *HTTPMetrics) Start(ctx context.Context) func(route, method string, status int, d time.Duration) {
	if m == nil {
		return func(string, string, int, time.Duration) {}
	}
	m.active.Add(ctx, 1)
	return func(route, method string, status int, d time.Duration) {
		m.active.Add(ctx, -1)
		attrs := metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("method", method),
			attribute.Int("status", status),
		)
		m.requests.Add(ctx, 1, attrs)
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
}
