package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"seriesdash/internal/chart"
	"seriesdash/internal/config"
	"seriesdash/internal/exporter"
	"seriesdash/internal/infrastructure"
	"seriesdash/internal/series"
	"seriesdash/internal/shared/testutil"
	"seriesdash/internal/sources"
)

func newNewsSource() *MockSource {
	src := &MockSource{name: "news"}
	src.On("Load", mock.Anything).Return(testutil.NewsTable(), nil)
	return src
}

func newTestService(t *testing.T, provider SourceProvider, datasets ...config.DatasetConfig) *SeriesService {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	if len(datasets) == 0 {
		datasets = []config.DatasetConfig{testutil.NewsDataset()}
	}
	return NewSeriesService(SeriesDeps{Sources: provider, Datasets: datasets, Logger: logger})
}

func TestSeriesService_ListDatasets(t *testing.T) {
	prices := config.DatasetConfig{
		Name:        "prices",
		Kind:        "remote",
		Columns:     config.ColumnsConfig{Date: "date", Value: "close"},
		SplitByYear: true,
	}
	provider := mapProvider{
		"news":   newNewsSource(),
		"prices": &MockParamSource{MockSource{name: "prices"}},
	}
	svc := newTestService(t, provider, prices, testutil.NewsDataset())

	got := svc.ListDatasets()
	require.Len(t, got, 2)

	assert.Equal(t, "news", got[0].Name)
	assert.Equal(t, []string{"id", "name"}, got[0].Selectable)
	assert.Equal(t, "Event", got[0].Annotation)
	assert.False(t, got[0].Parameterized)

	assert.Equal(t, "prices", got[1].Name)
	assert.True(t, got[1].Parameterized)
	assert.True(t, got[1].SplitByYear)
	assert.Empty(t, got[1].Selectable)

	assert.Equal(t, 2, svc.DatasetCount())
	assert.True(t, svc.HasDataset("news"))
	assert.False(t, svc.HasDataset("nope"))
}

func TestSeriesService_Series(t *testing.T) {
	src := newNewsSource()
	svc := newTestService(t, mapProvider{"news": src})

	res, err := svc.Series(context.Background(), "news", SeriesRequest{Key: "2330"})
	require.NoError(t, err)

	require.Equal(t, 4, res.Series.Len())
	first := res.Series.Row(0)
	assert.Equal(t, "2024-01-02", first.Get("date").String())
	assert.Equal(t, "earnings call", first.Get("Event").Text())
	assert.True(t, res.Series.Row(2).Get("close").IsMissing(), "n/a is coerced to missing")
	assert.Equal(t, 2, res.Annotated.Len())
	assert.Equal(t, 1, res.Unparseable.Values)
	assert.Equal(t, res.Default, res.Range)
	assert.True(t, res.Range.Contains(590))
}

func TestSeriesService_Series_LoadsFreshEachCall(t *testing.T) {
	src := newNewsSource()
	svc := newTestService(t, mapProvider{"news": src})

	for i := 0; i < 3; i++ {
		_, err := svc.Series(context.Background(), "news", SeriesRequest{})
		require.NoError(t, err)
	}
	src.AssertNumberOfCalls(t, "Load", 3)
}

func TestSeriesService_Series_Filters(t *testing.T) {
	min, max := 500.0, 700.0
	tests := []struct {
		name     string
		req      SeriesRequest
		wantRows int
		wantErr  error
	}{
		{name: "all rows", req: SeriesRequest{}, wantRows: 6},
		{name: "member filter", req: SeriesRequest{Members: map[string][]string{"name": {"Foxconn"}}}, wantRows: 2},
		{name: "key and member", req: SeriesRequest{Key: "2330", Members: map[string][]string{"name": {"Foxconn"}}}, wantRows: 0},
		{name: "empty member set", req: SeriesRequest{Members: map[string][]string{"name": nil}}, wantRows: 6},
		{name: "unknown key", req: SeriesRequest{Key: "9999"}, wantRows: 0},
		{name: "override", req: SeriesRequest{Key: "2330", Override: series.RangeOverride{Min: &min, Max: &max}}, wantRows: 4},
		{name: "not selectable", req: SeriesRequest{Members: map[string][]string{"close": {"590"}}}, wantErr: ErrColumnNotSelectable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, mapProvider{"news": newNewsSource()})

			res, err := svc.Series(context.Background(), "news", tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRows, res.Series.Len())
			assert.Equal(t, tt.wantRows == 0, res.Empty())
		})
	}
}

func TestSeriesService_Series_OverrideRange(t *testing.T) {
	svc := newTestService(t, mapProvider{"news": newNewsSource()})
	min := 20000.0

	res, err := svc.Series(context.Background(), "news", SeriesRequest{Override: series.RangeOverride{Min: &min}})
	require.NoError(t, err)
	assert.Equal(t, series.RangeSpec{Min: 10000, Max: 10000}, res.Range)
}

func TestSeriesService_Series_Errors(t *testing.T) {
	t.Run("unknown dataset", func(t *testing.T) {
		svc := newTestService(t, mapProvider{})
		_, err := svc.Series(context.Background(), "nope", SeriesRequest{})
		assert.ErrorIs(t, err, ErrDatasetNotFound)
	})

	t.Run("dataset without source", func(t *testing.T) {
		svc := newTestService(t, mapProvider{})
		_, err := svc.Series(context.Background(), "news", SeriesRequest{})
		assert.ErrorIs(t, err, ErrDatasetNotFound)
	})

	t.Run("load failure", func(t *testing.T) {
		boom := errors.New("connection refused")
		src := &MockSource{name: "news"}
		src.On("Load", mock.Anything).Return(series.Table{}, boom)
		svc := newTestService(t, mapProvider{"news": src})

		_, err := svc.Series(context.Background(), "news", SeriesRequest{})
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), `load dataset "news"`)
	})

	t.Run("missing value column", func(t *testing.T) {
		src := &MockSource{name: "news"}
		src.On("Load", mock.Anything).Return(testutil.NewsTable().Select("id", "name", "date"), nil)
		svc := newTestService(t, mapProvider{"news": src})

		_, err := svc.Series(context.Background(), "news", SeriesRequest{})
		var mc *series.MissingColumnError
		require.ErrorAs(t, err, &mc)
		assert.Equal(t, "close", mc.Column)
	})

	t.Run("filter column absent from table", func(t *testing.T) {
		src := &MockSource{name: "news"}
		src.On("Load", mock.Anything).Return(testutil.NewsTable().Select("id", "date", "close", "Event"), nil)
		svc := newTestService(t, mapProvider{"news": src})

		_, err := svc.Series(context.Background(), "news", SeriesRequest{Members: map[string][]string{"name": {"TSMC"}}})
		var mc *series.MissingColumnError
		require.ErrorAs(t, err, &mc)
		assert.Equal(t, "filter", mc.Role)
	})

	t.Run("key without id column", func(t *testing.T) {
		ds := testutil.NewsDataset()
		ds.Columns.ID = ""
		svc := newTestService(t, mapProvider{"news": newNewsSource()}, ds)

		_, err := svc.Series(context.Background(), "news", SeriesRequest{Key: "2330"})
		assert.ErrorIs(t, err, ErrColumnNotSelectable)
	})

	t.Run("params on plain source", func(t *testing.T) {
		svc := newTestService(t, mapProvider{"news": newNewsSource()})
		_, err := svc.Series(context.Background(), "news", SeriesRequest{Params: sources.Params{Symbol: "2330.TW"}})
		assert.ErrorIs(t, err, sources.ErrNotParameterized)
	})
}

func TestSeriesService_Series_Params(t *testing.T) {
	params := sources.Params{Symbol: "2330.TW", Interval: "1wk"}

	applied := &MockSource{name: "prices"}
	applied.On("Load", mock.Anything).Return(series.FromRecords(
		[]string{"date", "close"},
		[][]string{{"2024-01-01", "590"}, {"2024-01-08", "601"}},
	), nil)

	base := &MockParamSource{MockSource{name: "prices"}}
	base.On("WithParams", params).Return(applied, nil)

	ds := config.DatasetConfig{Name: "prices", Kind: "remote", Columns: config.ColumnsConfig{Date: "date", Value: "close"}}
	svc := newTestService(t, mapProvider{"prices": base}, ds)

	res, err := svc.Series(context.Background(), "prices", SeriesRequest{Params: params})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Series.Len())

	base.AssertExpectations(t)
	applied.AssertExpectations(t)
	base.AssertNotCalled(t, "Load", mock.Anything)
}

func TestSeriesService_Options(t *testing.T) {
	tests := []struct {
		name    string
		dataset string
		column  string
		want    []string
		wantErr error
	}{
		{name: "id column", dataset: "news", column: "id", want: []string{"2330", "2317"}},
		{name: "selectable", dataset: "news", column: "name", want: []string{"TSMC", "Foxconn"}},
		{name: "not selectable", dataset: "news", column: "close", wantErr: ErrColumnNotSelectable},
		{name: "unknown dataset", dataset: "nope", column: "id", wantErr: ErrDatasetNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, mapProvider{"news": newNewsSource()})
			got, err := svc.Options(context.Background(), tt.dataset, tt.column)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeriesService_Options_MissingColumn(t *testing.T) {
	src := &MockSource{name: "news"}
	src.On("Load", mock.Anything).Return(testutil.NewsTable().Select("id", "date", "close"), nil)
	svc := newTestService(t, mapProvider{"news": src})

	_, err := svc.Options(context.Background(), "news", "name")
	var mc *series.MissingColumnError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, "name", mc.Column)
}

func TestSeriesService_Chart(t *testing.T) {
	svc := newTestService(t, mapProvider{"news": newNewsSource()})

	var buf bytes.Buffer
	require.NoError(t, svc.Chart(context.Background(), "news", SeriesRequest{Key: "2330"}, chart.PNG, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	buf.Reset()
	require.NoError(t, svc.Chart(context.Background(), "news", SeriesRequest{Key: "2330"}, chart.SVG, &buf))
	assert.Contains(t, buf.String(), "<svg")

	buf.Reset()
	err := svc.Chart(context.Background(), "news", SeriesRequest{Key: "9999"}, chart.PNG, &buf)
	assert.ErrorIs(t, err, ErrNoSeriesData)
	assert.Zero(t, buf.Len())
}

func TestSeriesService_Export(t *testing.T) {
	svc := newTestService(t, mapProvider{"news": newNewsSource()})

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), "news", SeriesRequest{Key: "2317"}, &buf))

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(buf.String(), "\ufeff")), "\n")
	assert.Equal(t, []string{
		"id,name,date,close,Event",
		"2317,Foxconn,2024-01-02,104.5,",
		"2317,Foxconn,2024-01-03,103,guidance",
	}, lines)

	buf.Reset()
	err := svc.Export(context.Background(), "news", SeriesRequest{Key: "9999"}, &buf)
	assert.ErrorIs(t, err, ErrNoSeriesData)
}

func TestSeriesService_ExportFile(t *testing.T) {
	dir := t.TempDir()
	paths, err := config.ResolvePaths(config.PathsConfig{BaseDir: dir})
	require.NoError(t, err)

	logger, _ := testutil.NewTestLogger(t)
	svc := NewSeriesService(SeriesDeps{
		Sources:  mapProvider{"news": newNewsSource()},
		Datasets: []config.DatasetConfig{testutil.NewsDataset()},
		Exports:  exporter.NewCSVWriter(paths),
		Logger:   logger,
	})

	path, err := svc.ExportFile(context.Background(), "news", SeriesRequest{Key: "2330"}, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(paths.ExportsDir, "news_2330.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "2330,TSMC,2024-01-05,580,")

	_, err = newTestService(t, mapProvider{"news": newNewsSource()}).ExportFile(context.Background(), "news", SeriesRequest{}, "x.csv")
	assert.Error(t, err, "no exports directory")
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "news.csv", ExportFilename("news", SeriesRequest{}))
	assert.Equal(t, "news_2330.csv", ExportFilename("news", SeriesRequest{Key: "2330"}))
	assert.Equal(t, "prices_AAPL.csv", ExportFilename("prices", SeriesRequest{Params: sources.Params{Symbol: "AAPL"}}))
}

func TestSeriesService_RecordsMetrics(t *testing.T) {
	providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		ServiceName:    "test",
		ServiceVersion: "0.0.0",
		TraceExporter:  "none",
		EnableMetrics:  true,
		SampleRatio:    1,
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { providers.Shutdown(context.Background()) })

	metrics, err := infrastructure.NewPipelineMetrics(providers.Meter)
	require.NoError(t, err)

	svc := NewSeriesService(SeriesDeps{
		Sources:  mapProvider{"news": newNewsSource()},
		Datasets: []config.DatasetConfig{testutil.NewsDataset()},
		Tracer:   providers.Tracer,
		Metrics:  metrics,
	})

	_, err = svc.Series(context.Background(), "news", SeriesRequest{Key: "2330"})
	require.NoError(t, err)
	_, err = svc.Series(context.Background(), "news", SeriesRequest{Members: map[string][]string{"close": {"1"}}})
	require.Error(t, err)

	w := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, "pipeline_runs")
	assert.Contains(t, body, "pipeline_failures")
	assert.Contains(t, body, `dataset="news"`)
}
