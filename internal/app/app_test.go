package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seriesdash/internal/config"
	"seriesdash/internal/shared/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	testutil.WriteFile(t, filepath.Join(base, config.DefaultDataDir), "news.csv", testutil.NewsCSV())

	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Paths.BaseDir = base
	cfg.Security.RateLimit.Enabled = false
	cfg.Datasets = []config.DatasetConfig{testutil.NewsDataset()}
	return cfg
}

func newTestApp(t *testing.T) *Application {
	t.Helper()
	a, err := New(testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		a.WebSocket.Close()
		a.Sources.Close()
		a.OTelProviders.Shutdown(context.Background())
	})
	return a
}

func TestNew_UnknownDatasetKind(t *testing.T) {
	cfg := testConfig(t)
	cfg.Datasets[0].Kind = "parquet"

	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize services")
}

func TestRouter_Routes(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantType    string
		wantContain string
	}{
		{"health", "/api/health", http.StatusOK, "application/json", `"status":"ok"`},
		{"ready", "/api/health/ready", http.StatusOK, "application/json", `"status":"ready"`},
		{"live", "/api/health/live", http.StatusOK, "application/json", `"status":"alive"`},
		{"stats", "/api/health/stats", http.StatusOK, "application/json", `"goroutines"`},
		{"version", "/api/version", http.StatusOK, "application/json", `"version"`},
		{"trailing slash", "/api/health/", http.StatusOK, "application/json", `"status":"ok"`},
		{"datasets", "/api/datasets", http.StatusOK, "application/json", `"count":1`},
		{"options", "/api/datasets/news/options/name", http.StatusOK, "application/json", `"Foxconn"`},
		{"series", "/api/datasets/news/series?key=2330", http.StatusOK, "application/json", `"rows":4`},
		{"export", "/api/datasets/news/export.csv?key=2317", http.StatusOK, "text/csv", "2317,Foxconn"},
		{"chart", "/api/datasets/news/chart.svg?key=2330", http.StatusOK, "image/svg+xml", "<svg"},
		{"unknown dataset", "/api/datasets/nope/series", http.StatusNotFound, "application/json", "DATASET_NOT_FOUND"},
		{"bad bound", "/api/datasets/news/series?min=abc", http.StatusBadRequest, "application/json", "INVALID_PARAMETER"},
		{"unknown route", "/api/nope", http.StatusNotFound, "application/json", "/errors/not-found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			assert.Contains(t, resp.Header.Get("Content-Type"), tt.wantType)
			assert.Contains(t, string(body), tt.wantContain)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health/live")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestRouter_Metrics(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/datasets/news/series?key=2330")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "pipeline_runs")
	assert.Contains(t, string(body), "http_requests")
}

func TestRouter_WebSocket(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/datasets/news"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"id": "1", "key": "2330", "min": 500, "max": 700}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var reply struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Data struct {
			Rows  int `json:"rows"`
			Range struct {
				Min float64 `json:"min"`
				Max float64 `json:"max"`
			} `json:"range"`
		} `json:"data"`
	}
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &reply))

	assert.Equal(t, "series", reply.Type)
	assert.Equal(t, "1", reply.ID)
	assert.Equal(t, 4, reply.Data.Rows)
	assert.Equal(t, float64(500), reply.Data.Range.Min)
	assert.Equal(t, float64(700), reply.Data.Range.Max)
	assert.Eventually(t, func() bool { return a.WebSocket.SessionCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestApplication_ServeAndStop(t *testing.T) {
	a, err := New(testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	liveURL := "http://" + ln.Addr().String() + "/api/health/live"
	assert.Eventually(t, func() bool {
		resp, err := http.Get(liveURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = http.Get(liveURL)
	assert.Error(t, err)
}
