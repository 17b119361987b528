package websocket

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"seriesdash/internal/middleware"
	"seriesdash/internal/series"
	"seriesdash/internal/services"
	"seriesdash/internal/shared/testutil"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) HasDataset(name string) bool {
	return m.Called(name).Bool(0)
}

func (m *MockRunner) Series(ctx context.Context, dataset string, req services.SeriesRequest) (series.Result, error) {
	args := m.Called(ctx, dataset, req)
	return args.Get(0).(series.Result), args.Error(1)
}

type reply struct {
	Type  string                 `json:"type"`
	ID    string                 `json:"id"`
	Data  map[string]interface{} `json:"data"`
	Error map[string]interface{} `json:"error"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newsResult(key string) series.Result {
	return series.Run(testutil.NewsTable(), testutil.NewsSpec(),
		series.Query{Key: &series.KeyFilter{Value: key}})
}

func setupServer(t *testing.T, runner *MockRunner, cfg HandlerConfig) (*Handler, *httptest.Server) {
	t.Helper()
	logger := discardLogger()
	v := middleware.NewValidator(logger)
	v.RegisterStructValidation(services.SelectionStructLevel, services.Selection{})

	h := NewHandler(cfg, SessionDeps{Runner: runner, Validator: v, Logger: logger})
	r := chi.NewRouter()
	r.Mount("/ws", h.Routes())
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, srv
}

func wsURL(srv *httptest.Server, dataset string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/datasets/" + dataset
}

func dial(t *testing.T, srv *httptest.Server, dataset string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, dataset), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) reply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var r reply
	require.NoError(t, conn.ReadJSON(&r))
	return r
}

func TestHandler_SeriesReply(t *testing.T) {
	runner := new(MockRunner)
	runner.On("HasDataset", "news").Return(true)
	runner.On("Series", mock.Anything, "news", services.SeriesRequest{Key: "2330"}).
		Return(newsResult("2330"), nil)

	_, srv := setupServer(t, runner, HandlerConfig{})
	conn := dial(t, srv, "news")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"1","key":"2330"}`)))
	r := readReply(t, conn)

	assert.Equal(t, TypeSeries, r.Type)
	assert.Equal(t, "1", r.ID)
	assert.Nil(t, r.Error)
	assert.Equal(t, "news", r.Data["dataset"])
	assert.Equal(t, float64(4), r.Data["rows"])
	assert.Equal(t, false, r.Data["empty"])
	assert.Contains(t, r.Data, "default_range")
	runner.AssertExpectations(t)
}

func TestHandler_UnencodableReplyKeepsSession(t *testing.T) {
	broken := newsResult("2330")
	broken.Default = series.RangeSpec{Min: math.NaN(), Max: math.Inf(1)}

	runner := new(MockRunner)
	runner.On("HasDataset", "news").Return(true)
	runner.On("Series", mock.Anything, "news", services.SeriesRequest{Key: "2330"}).Return(broken, nil)
	runner.On("Series", mock.Anything, "news", services.SeriesRequest{Key: "2317"}).
		Return(newsResult("2317"), nil)

	_, srv := setupServer(t, runner, HandlerConfig{})
	conn := dial(t, srv, "news")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"bad","key":"2330"}`)))
	r := readReply(t, conn)
	assert.Equal(t, TypeError, r.Type)
	assert.Equal(t, "bad", r.ID)
	assert.Nil(t, r.Data)
	assert.Equal(t, float64(http.StatusUnprocessableEntity), r.Error["status"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"next","key":"2317"}`)))
	r = readReply(t, conn)
	assert.Equal(t, TypeSeries, r.Type)
	assert.Equal(t, "next", r.ID)
}

func TestHandler_RepliesInOrder(t *testing.T) {
	runner := new(MockRunner)
	runner.On("HasDataset", "news").Return(true)
	runner.On("Series", mock.Anything, "news", services.SeriesRequest{Key: "2330"}).
		Return(newsResult("2330"), nil)
	runner.On("Series", mock.Anything, "news", services.SeriesRequest{Key: "2317"}).
		Return(newsResult("2317"), nil)

	_, srv := setupServer(t, runner, HandlerConfig{})
	conn := dial(t, srv, "news")

	for _, msg := range []string{
		`{"id":"a","key":"2330"}`,
		`{"type":"heartbeat"}`,
		`{"id":"b","type":"series","key":"2317"}`,
	} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	}

	first := readReply(t, conn)
	second := readReply(t, conn)
	assert.Equal(t, "a", first.ID)
	assert.Equal(t, float64(4), first.Data["rows"])
	assert.Equal(t, "b", second.ID)
	assert.Equal(t, float64(2), second.Data["rows"])
}

func TestHandler_ErrorReplies(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		runErr     error
		wantStatus float64
		wantType   string
	}{
		{
			name:       "malformed json",
			message:    `{"key":`,
			wantStatus: http.StatusBadRequest,
			wantType:   "/errors/validation",
		},
		{
			name:       "unknown type",
			message:    `{"id":"x","type":"subscribe"}`,
			wantStatus: http.StatusBadRequest,
			wantType:   "/errors/validation",
		},
		{
			name:       "inverted range",
			message:    `{"id":"x","min":10,"max":1}`,
			wantStatus: http.StatusBadRequest,
			wantType:   "/errors/validation",
		},
		{
			name:       "bad interval",
			message:    `{"id":"x","interval":"7m"}`,
			wantStatus: http.StatusBadRequest,
			wantType:   "/errors/validation",
		},
		{
			name:       "no series data",
			message:    `{"id":"x","key":"9999"}`,
			runErr:     services.ErrNoSeriesData,
			wantStatus: http.StatusNotFound,
			wantType:   "/errors/series/no-data",
		},
		{
			name:       "missing column",
			message:    `{"id":"x","key":"9999"}`,
			runErr:     &series.MissingColumnError{Role: "value", Column: "close"},
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "/errors/dataset/missing-column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(MockRunner)
			runner.On("HasDataset", "news").Return(true)
			if tt.runErr != nil {
				runner.On("Series", mock.Anything, "news", mock.Anything).
					Return(series.Result{}, tt.runErr)
			}

			_, srv := setupServer(t, runner, HandlerConfig{})
			conn := dial(t, srv, "news")

			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.message)))
			r := readReply(t, conn)

			assert.Equal(t, TypeError, r.Type)
			assert.Nil(t, r.Data)
			require.NotNil(t, r.Error)
			assert.Equal(t, tt.wantStatus, r.Error["status"])
			assert.Equal(t, tt.wantType, r.Error["type"])
			assert.Equal(t, "/ws/datasets/news", r.Error["instance"])
			if tt.runErr == nil {
				runner.AssertNotCalled(t, "Series", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestHandler_UnknownDataset(t *testing.T) {
	runner := new(MockRunner)
	runner.On("HasDataset", "missing").Return(false)

	_, srv := setupServer(t, runner, HandlerConfig{})
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "missing"), nil)

	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_RejectsOrigin(t *testing.T) {
	runner := new(MockRunner)
	runner.On("HasDataset", "news").Return(true)

	_, srv := setupServer(t, runner, HandlerConfig{AllowedOrigins: []string{"http://allowed.example"}})

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "news"), header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://allowed.example")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "news"), header)
	require.NoError(t, err)
	resp.Body.Close()
	conn.Close()
}

func TestHandler_SessionCount(t *testing.T) {
	runner := new(MockRunner)
	runner.On("HasDataset", "news").Return(true)
	runner.On("Series", mock.Anything, "news", mock.Anything).Return(newsResult("2330"), nil)

	h, srv := setupServer(t, runner, HandlerConfig{})
	assert.Equal(t, 0, h.SessionCount())

	conn := dial(t, srv, "news")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"key":"2330"}`)))
	readReply(t, conn)
	assert.Equal(t, 1, h.SessionCount())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return h.SessionCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHandler_CloseEndsSessions(t *testing.T) {
	runner := new(MockRunner)
	runner.On("HasDataset", "news").Return(true)
	runner.On("Series", mock.Anything, "news", mock.Anything).Return(newsResult("2330"), nil)

	h, srv := setupServer(t, runner, HandlerConfig{})
	conn := dial(t, srv, "news")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"key":"2330"}`)))
	readReply(t, conn)

	h.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Eventually(t, func() bool { return h.SessionCount() == 0 }, 5*time.Second, 10*time.Millisecond)

	// closed handlers refuse new sessions
	conn2, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "news"), nil)
	if err == nil {
		resp.Body.Close()
		require.NoError(t, conn2.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, _, err = conn2.ReadMessage()
		conn2.Close()
	}
	assert.Error(t, err)
}

func TestOptions_WithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{
			name: "zero",
			in:   Options{},
			want: Options{PingPeriod: 54 * time.Second, PongWait: 60 * time.Second, MaxMessageSize: 64 << 10},
		},
		{
			name: "ping not shorter than pong wait",
			in:   Options{PingPeriod: 10 * time.Second, PongWait: 10 * time.Second, MaxMessageSize: 512},
			want: Options{PingPeriod: 9 * time.Second, PongWait: 10 * time.Second, MaxMessageSize: 512},
		},
		{
			name: "explicit",
			in:   Options{PingPeriod: 5 * time.Second, PongWait: 20 * time.Second, MaxMessageSize: 1024},
			want: Options{PingPeriod: 5 * time.Second, PongWait: 20 * time.Second, MaxMessageSize: 1024},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.withDefaults())
		})
	}
}
