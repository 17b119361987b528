package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"seriesdash/internal/chart"
	"seriesdash/internal/config"
	"seriesdash/internal/exporter"
	"seriesdash/internal/infrastructure"
	"seriesdash/internal/series"
	"seriesdash/internal/sources"
)

// SourceProvider looks up the source of a dataset by name.
// *sources.Registry implements it.
type SourceProvider interface {
	Get(name string) (sources.Source, bool)
}

// DatasetInfo describes a dataset to clients
type DatasetInfo struct {
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	Kind          string   `json:"kind"`
	IDColumn      string   `json:"id_column,omitempty"`
	DateColumn    string   `json:"date_column"`
	ValueColumn   string   `json:"value_column"`
	Annotation    string   `json:"annotation_column,omitempty"`
	Selectable    []string `json:"selectable"`
	Parameterized bool     `json:"parameterized"`
	SplitByYear   bool     `json:"split_by_year"`
}

// SeriesRequest is one user selection against a dataset.
type SeriesRequest struct {
	// Key selects the rows of one entity by the id column.
	Key string
	// Members restricts selectable columns to the listed values.
	Members map[string][]string
	// Override replaces the default y-axis bounds.
	Override series.RangeOverride
	// Params are passed to parameterized sources.
	Params sources.Params
}

// SeriesDeps are the collaborators of a SeriesService. Only Sources and
// Datasets are required.
type SeriesDeps struct {
	Sources  SourceProvider
	Datasets []config.DatasetConfig
	Exports  *exporter.CSVWriter
	Tracer   trace.Tracer
	Metrics  *infrastructure.PipelineMetrics
	Logger   *slog.Logger
}

// SeriesService runs the series pipeline for HTTP, websocket and CLI
// callers. Every call loads the dataset afresh.
type SeriesService struct {
	sources  SourceProvider
	datasets map[string]config.DatasetConfig
	names    []string
	exports  *exporter.CSVWriter
	tracer   trace.Tracer
	metrics  *infrastructure.PipelineMetrics
	logger   *slog.Logger
}

// NewSeriesService creates a new series service
func NewSeriesService(deps SeriesDeps) *SeriesService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(infrastructure.InstrumentationName)
	}

	s := &SeriesService{
		sources:  deps.Sources,
		datasets: make(map[string]config.DatasetConfig, len(deps.Datasets)),
		exports:  deps.Exports,
		tracer:   tracer,
		metrics:  deps.Metrics,
		logger:   infrastructure.WithComponent(logger, "series_service"),
	}
	for _, d := range deps.Datasets {
		s.datasets[d.Name] = d
		s.names = append(s.names, d.Name)
	}
	sort.Strings(s.names)

	s.logger.Info("SeriesService initialized", slog.Int("datasets", len(s.names)))
	return s
}

// ListDatasets returns the configured datasets sorted by name
func (s *SeriesService) ListDatasets() []DatasetInfo {
	out := make([]DatasetInfo, 0, len(s.names))
	for _, name := range s.names {
		d := s.datasets[name]
		info := DatasetInfo{
			Name:        d.Name,
			Title:       d.Title,
			Kind:        d.Kind,
			IDColumn:    d.Columns.ID,
			DateColumn:  d.Columns.Date,
			ValueColumn: d.Columns.Value,
			Annotation:  d.Columns.Annotation,
			Selectable:  selectableColumns(d),
			SplitByYear: d.SplitByYear,
		}
		if src, ok := s.sources.Get(name); ok {
			_, info.Parameterized = src.(sources.Parameterized)
		}
		out = append(out, info)
	}
	return out
}

// HasDataset reports whether name is configured
func (s *SeriesService) HasDataset(name string) bool {
	_, ok := s.datasets[name]
	return ok
}

// DatasetCount returns the number of configured datasets
func (s *SeriesService) DatasetCount() int { return len(s.names) }

// Options returns the distinct values of a selectable column, used to
// populate dropdowns.
func (s *SeriesService) Options(ctx context.Context, dataset, column string) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "series.options", trace.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("column", column),
	))
	defer span.End()

	d, ok := s.datasets[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDatasetNotFound, dataset)
	}
	if !d.IsSelectable(column) {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotSelectable, column)
	}

	t, err := s.load(ctx, d, sources.Params{})
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	if !t.HasColumn(column) {
		err := &series.MissingColumnError{Role: "option", Column: column}
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	values := series.UniqueValues(t, column)
	if values == nil {
		values = []string{}
	}
	span.SetAttributes(attribute.Int("options", len(values)))
	return values, nil
}

// Series runs the pipeline for req. An empty selection is not an error:
// the result reports Empty() and carries the fallback range.
func (s *SeriesService) Series(ctx context.Context, dataset string, req SeriesRequest) (series.Result, error) {
	_, _, res, err := s.run(ctx, dataset, req)
	return res, err
}

// Chart renders the selection as an image. An empty selection returns
// ErrNoSeriesData and writes nothing.
func (s *SeriesService) Chart(ctx context.Context, dataset string, req SeriesRequest, format chart.Format, w io.Writer) error {
	d, spec, res, err := s.run(ctx, dataset, req)
	if err != nil {
		return err
	}
	if res.Empty() {
		return fmt.Errorf("%w: %q", ErrNoSeriesData, dataset)
	}

	title := d.Title
	if req.Key != "" {
		title = fmt.Sprintf("%s %s", title, req.Key)
	}
	err = chart.Render(w, res, spec, format, chart.Options{Title: title, SplitByYear: d.SplitByYear})
	if errors.Is(err, chart.ErrEmptySeries) {
		return fmt.Errorf("%w: %q", ErrNoSeriesData, dataset)
	}
	return err
}

// Export writes the selected series as CSV to w.
func (s *SeriesService) Export(ctx context.Context, dataset string, req SeriesRequest, w io.Writer) error {
	_, _, res, err := s.run(ctx, dataset, req)
	if err != nil {
		return err
	}
	if res.Empty() {
		return fmt.Errorf("%w: %q", ErrNoSeriesData, dataset)
	}
	return exporter.WriteTable(w, res.Series)
}

// ExportFile writes the selected series into the exports directory and
// returns the file path.
func (s *SeriesService) ExportFile(ctx context.Context, dataset string, req SeriesRequest, filename string) (string, error) {
	if s.exports == nil {
		return "", errors.New("exports directory not configured")
	}
	_, _, res, err := s.run(ctx, dataset, req)
	if err != nil {
		return "", err
	}
	if res.Empty() {
		return "", fmt.Errorf("%w: %q", ErrNoSeriesData, dataset)
	}
	if filename == "" {
		filename = ExportFilename(dataset, req)
	}
	return s.exports.ExportTable(filename, res.Series)
}

// ExportFilename is the default name of an export, e.g. prices_2330.csv
func ExportFilename(dataset string, req SeriesRequest) string {
	name := dataset
	switch {
	case req.Key != "":
		name += "_" + req.Key
	case req.Params.Symbol != "":
		name += "_" + req.Params.Symbol
	}
	return name + ".csv"
}

// run loads the dataset, validates it against its spec and applies req.
func (s *SeriesService) run(ctx context.Context, dataset string, req SeriesRequest) (config.DatasetConfig, series.Spec, series.Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "series.run", trace.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("key", req.Key),
	))
	defer span.End()

	logger := s.logger.With(slog.String("dataset", dataset))
	stats := infrastructure.RunStats{Dataset: dataset}
	fail := func(err error) (config.DatasetConfig, series.Spec, series.Result, error) {
		stats.Err = err
		stats.Duration = time.Since(start)
		s.metrics.RecordRun(ctx, stats)
		infrastructure.RecordError(ctx, err)
		logger.WarnContext(ctx, "series run failed", slog.String("error", err.Error()))
		return config.DatasetConfig{}, series.Spec{}, series.Result{}, err
	}

	d, ok := s.datasets[dataset]
	if !ok {
		return fail(fmt.Errorf("%w: %q", ErrDatasetNotFound, dataset))
	}
	spec, err := d.Spec()
	if err != nil {
		return fail(fmt.Errorf("dataset %q: %w", dataset, err))
	}
	q, err := buildQuery(d, spec, req)
	if err != nil {
		return fail(err)
	}

	t, err := s.load(ctx, d, req.Params)
	if err != nil {
		return fail(err)
	}
	if err := series.Check(t, spec); err != nil {
		return fail(err)
	}
	for _, m := range q.Members {
		if !t.HasColumn(m.Column) {
			return fail(&series.MissingColumnError{Role: "filter", Column: m.Column})
		}
	}

	res := series.Run(t, spec, q)

	stats.Rows = res.Series.Len()
	stats.UnparseableValue = res.Unparseable.Values
	stats.UnparseableDate = res.Unparseable.Dates
	stats.Duration = time.Since(start)
	s.metrics.RecordRun(ctx, stats)

	span.SetAttributes(
		attribute.Int("rows", stats.Rows),
		attribute.Int("annotated", res.Annotated.Len()),
		attribute.Int("unparseable.values", stats.UnparseableValue),
		attribute.Int("unparseable.dates", stats.UnparseableDate),
	)
	logger.DebugContext(ctx, "series run completed",
		slog.Int("rows", stats.Rows),
		slog.Int("annotated", res.Annotated.Len()),
		slog.Float64("range_min", res.Range.Min),
		slog.Float64("range_max", res.Range.Max),
		slog.Duration("duration", stats.Duration))
	if res.Unparseable.Values > 0 || res.Unparseable.Dates > 0 {
		logger.WarnContext(ctx, "unparseable cells treated as missing",
			slog.Int("values", res.Unparseable.Values),
			slog.Int("dates", res.Unparseable.Dates))
	}

	return d, spec, res, nil
}

// load fetches a fresh table from the dataset's source
func (s *SeriesService) load(ctx context.Context, d config.DatasetConfig, p sources.Params) (series.Table, error) {
	src, ok := s.sources.Get(d.Name)
	if !ok {
		return series.Table{}, fmt.Errorf("%w: %q has no source", ErrDatasetNotFound, d.Name)
	}
	src, err := sources.Apply(src, p)
	if err != nil {
		return series.Table{}, fmt.Errorf("dataset %q: %w", d.Name, err)
	}
	t, err := src.Load(ctx)
	if err != nil {
		return series.Table{}, fmt.Errorf("load dataset %q: %w", d.Name, err)
	}
	return t, nil
}

// buildQuery turns a request into a pipeline query, rejecting filters on
// columns the dataset does not expose.
func buildQuery(d config.DatasetConfig, spec series.Spec, req SeriesRequest) (series.Query, error) {
	q := series.Query{Override: req.Override}
	if req.Key != "" {
		if spec.IDColumn == "" {
			return q, fmt.Errorf("%w: dataset %q has no id column", ErrColumnNotSelectable, d.Name)
		}
		q.Key = &series.KeyFilter{Column: spec.IDColumn, Value: req.Key}
	}

	cols := make([]string, 0, len(req.Members))
	for col := range req.Members {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if !d.IsSelectable(col) {
			return q, fmt.Errorf("%w: %q", ErrColumnNotSelectable, col)
		}
		q.Members = append(q.Members, series.MemberFilter{Column: col, Allowed: req.Members[col]})
	}
	return q, nil
}

func selectableColumns(d config.DatasetConfig) []string {
	out := make([]string, 0, len(d.Selectable)+1)
	if d.Columns.ID != "" {
		out = append(out, d.Columns.ID)
	}
	for _, c := range d.Selectable {
		if c != d.Columns.ID {
			out = append(out, c)
		}
	}
	return out
}
