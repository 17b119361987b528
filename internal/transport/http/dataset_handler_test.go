package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"seriesdash/internal/chart"
	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/middleware"
	"seriesdash/internal/series"
	"seriesdash/internal/services"
	"seriesdash/internal/shared/testutil"
	"seriesdash/internal/sources"
)

// MockSeriesService is a mock for SeriesServiceInterface
type MockSeriesService struct {
	mock.Mock
}

func (m *MockSeriesService) ListDatasets() []services.DatasetInfo {
	return m.Called().Get(0).([]services.DatasetInfo)
}

func (m *MockSeriesService) Options(ctx context.Context, dataset, column string) ([]string, error) {
	args := m.Called(ctx, dataset, column)
	values, _ := args.Get(0).([]string)
	return values, args.Error(1)
}

func (m *MockSeriesService) Series(ctx context.Context, dataset string, req services.SeriesRequest) (series.Result, error) {
	args := m.Called(ctx, dataset, req)
	return args.Get(0).(series.Result), args.Error(1)
}

func (m *MockSeriesService) Chart(ctx context.Context, dataset string, req services.SeriesRequest, format chart.Format, w io.Writer) error {
	args := m.Called(ctx, dataset, req, format, w)
	if body, ok := args.Get(0).(string); ok && body != "" {
		io.WriteString(w, body)
	}
	return args.Error(1)
}

func (m *MockSeriesService) Export(ctx context.Context, dataset string, req services.SeriesRequest, w io.Writer) error {
	args := m.Called(ctx, dataset, req, w)
	if body, ok := args.Get(0).(string); ok && body != "" {
		io.WriteString(w, body)
	}
	return args.Error(1)
}

func setupDatasetRouter(t *testing.T, svc *MockSeriesService) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	h := NewDatasetHandler(svc, middleware.NewValidator(logger), logger, apierrors.NewErrorHandler(logger, false))

	r := chi.NewRouter()
	r.Mount("/api/datasets", h.Routes())
	return r
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func newsResult(t *testing.T, key string) series.Result {
	t.Helper()
	q := series.Query{}
	if key != "" {
		q.Key = &series.KeyFilter{Value: key}
	}
	return series.Run(testutil.NewsTable(), testutil.NewsSpec(), q)
}

func TestDatasetHandler_ListDatasets(t *testing.T) {
	svc := new(MockSeriesService)
	svc.On("ListDatasets").Return([]services.DatasetInfo{{Name: "news", Title: "Prices and news"}})

	w := doGet(t, setupDatasetRouter(t, svc), "/api/datasets")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, float64(1), body["count"])
	first := body["datasets"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "news", first["name"])
}

func TestDatasetHandler_GetOptions(t *testing.T) {
	tests := []struct {
		name       string
		values     []string
		err        error
		wantStatus int
		wantType   string
	}{
		{name: "ok", values: []string{"TSMC", "Foxconn"}, wantStatus: http.StatusOK},
		{name: "not selectable", err: fmt.Errorf("%w: %q", services.ErrColumnNotSelectable, "name"), wantStatus: http.StatusBadRequest, wantType: apierrors.TypeValidation},
		{name: "unknown dataset", err: services.ErrDatasetNotFound, wantStatus: http.StatusNotFound, wantType: apierrors.TypeDatasetNotFound},
		{name: "missing column", err: &series.MissingColumnError{Role: "option", Column: "name"}, wantStatus: http.StatusUnprocessableEntity, wantType: apierrors.TypeMissingColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSeriesService)
			svc.On("Options", mock.Anything, "news", "name").Return(tt.values, tt.err)

			w := doGet(t, setupDatasetRouter(t, svc), "/api/datasets/news/options/name")

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeJSON(t, w)
			if tt.err == nil {
				assert.Equal(t, []interface{}{"TSMC", "Foxconn"}, body["options"])
				return
			}
			assert.Equal(t, tt.wantType, body["type"])
		})
	}
}

func TestDatasetHandler_GetSeries_BindsSelection(t *testing.T) {
	svc := new(MockSeriesService)
	min, max := 500.0, 700.0
	want := services.SeriesRequest{
		Key:      "2330",
		Members:  map[string][]string{"name": {"TSMC", "Foxconn", "Other"}},
		Override: series.RangeOverride{Min: &min, Max: &max},
		Params:   sources.Params{Symbol: "2330.TW", Interval: "1wk", Start: "2024-01-01", End: "2024-06-30"},
	}
	svc.On("Series", mock.Anything, "news", want).Return(newsResult(t, "2330"), nil)

	w := doGet(t, setupDatasetRouter(t, svc),
		"/api/datasets/news/series?key=2330&in.name=TSMC,Foxconn&in.name=Other&min=500&max=700&symbol=2330.TW&interval=1wk&start=2024-01-01&end=2024-06-30")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	svc.AssertExpectations(t)

	body := decodeJSON(t, w)
	assert.Equal(t, "news", body["dataset"])
	assert.Equal(t, false, body["empty"])
	assert.Equal(t, float64(4), body["rows"])
	seriesBody := body["series"].(map[string]interface{})
	assert.Equal(t, []interface{}{"id", "name", "date", "close", "Event"}, seriesBody["columns"])
	firstRow := seriesBody["rows"].([]interface{})[0].([]interface{})
	assert.Equal(t, []interface{}{"2330", "TSMC", "2024-01-02", float64(590), "earnings call"}, firstRow)
	assert.Len(t, body["annotated"].(map[string]interface{})["rows"], 2)
	assert.Equal(t, float64(1), body["unparseable"].(map[string]interface{})["values"])
}

func TestDatasetHandler_GetSeries_Empty(t *testing.T) {
	svc := new(MockSeriesService)
	svc.On("Series", mock.Anything, "news", services.SeriesRequest{Key: "9999"}).Return(newsResult(t, "9999"), nil)

	w := doGet(t, setupDatasetRouter(t, svc), "/api/datasets/news/series?key=9999")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, true, body["empty"])
	assert.Equal(t, float64(0), body["rows"])
	assert.Equal(t, map[string]interface{}{"min": float64(0), "max": float64(1000)}, body["range"])
}

func TestDatasetHandler_GetSeries_BadRequest(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantField string
	}{
		{name: "min not a number", query: "min=abc", wantField: "min"},
		{name: "max not finite", query: "max=Inf", wantField: "max"},
		{name: "inverted range", query: "min=10&max=1", wantField: "max"},
		{name: "bad interval", query: "interval=7y", wantField: "interval"},
		{name: "bad start", query: "start=2024-13-01", wantField: "start"},
		{name: "end before start", query: "start=2024-02-01&end=2024-01-01", wantField: "end"},
		{name: "empty member column", query: "in.=a", wantField: "in."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSeriesService)
			w := doGet(t, setupDatasetRouter(t, svc), "/api/datasets/news/series?"+tt.query)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"`+tt.wantField+`"`)
			svc.AssertNotCalled(t, "Series", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDatasetHandler_GetSeries_SourceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{name: "plain source given params", err: fmt.Errorf("dataset %q: %w", "news", sources.ErrNotParameterized), wantStatus: http.StatusBadRequest, wantType: apierrors.TypeValidation},
		{name: "upstream status", err: &sources.StatusError{Code: http.StatusNotFound, Symbol: "XXXX"}, wantStatus: http.StatusBadGateway, wantType: apierrors.TypeSourceUnavailable},
		{name: "deadline", err: fmt.Errorf("load: %w", context.DeadlineExceeded), wantStatus: http.StatusGatewayTimeout, wantType: apierrors.TypeTimeout},
		{name: "unexpected", err: fmt.Errorf("boom"), wantStatus: http.StatusInternalServerError, wantType: apierrors.TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSeriesService)
			svc.On("Series", mock.Anything, "news", mock.Anything).Return(series.Result{}, tt.err)

			w := doGet(t, setupDatasetRouter(t, svc), "/api/datasets/news/series")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantType, decodeJSON(t, w)["type"])
		})
	}
}

func TestDatasetHandler_GetChart(t *testing.T) {
	svc := new(MockSeriesService)
	svc.On("Chart", mock.Anything, "news", services.SeriesRequest{Key: "2330"}, chart.SVG, mock.Anything).Return("<svg></svg>", nil)
	svc.On("Chart", mock.Anything, "news", services.SeriesRequest{Key: "9999"}, chart.PNG, mock.Anything).
		Return("", fmt.Errorf("%w: %q", services.ErrNoSeriesData, "news"))
	router := setupDatasetRouter(t, svc)

	w := doGet(t, router, "/api/datasets/news/chart.svg?key=2330")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Equal(t, "<svg></svg>", w.Body.String())

	w = doGet(t, router, "/api/datasets/news/chart.png?key=9999")
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, apierrors.TypeNoSeriesData, body["type"])
	assert.Equal(t, apierrors.CodeNoSeriesData, body["error_code"])

	w = doGet(t, router, "/api/datasets/news/chart.gif")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDatasetHandler_ExportCSV(t *testing.T) {
	svc := new(MockSeriesService)
	svc.On("Export", mock.Anything, "news", services.SeriesRequest{Key: "2330"}, mock.Anything).Return("id,close\n2330,590\n", nil)
	svc.On("Export", mock.Anything, "news", services.SeriesRequest{Key: "9999"}, mock.Anything).
		Return("", fmt.Errorf("%w: %q", services.ErrNoSeriesData, "news"))
	router := setupDatasetRouter(t, svc)

	w := doGet(t, router, "/api/datasets/news/export.csv?key=2330")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=news_2330.csv`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "id,close\n2330,590\n", w.Body.String())

	w = doGet(t, router, "/api/datasets/news/export.csv?key=9999")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/"))
}
