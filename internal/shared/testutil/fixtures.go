package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"seriesdash/internal/config"
	"seriesdash/internal/series"
)

// NewsHeader is the header of the stock price and news fixture.
var NewsHeader = []string{"id", "name", "date", "close", "Event"}

// NewsRecords is a small price history for two stocks with news events.
var NewsRecords = [][]string{
	{"2330", "TSMC", "2024-01-03", "593", ""},
	{"2330", "TSMC", "2024-01-02", "590", "earnings call"},
	{"2317", "Foxconn", "2024-01-02", "104.5", ""},
	{"2330", "TSMC", "2024-01-04", "n/a", "trading halt"},
	{"2330", "TSMC", "2024-01-05", "580", ""},
	{"2317", "Foxconn", "2024-01-03", "103", "guidance"},
}

// NewsSpec maps the news fixture columns.
func NewsSpec() series.Spec {
	return series.Spec{
		IDColumn:         "id",
		DateColumn:       "date",
		ValueColumn:      "close",
		AnnotationColumn: "Event",
	}
}

// NewsTable returns the news fixture as a table.
func NewsTable() series.Table {
	return series.FromRecords(NewsHeader, NewsRecords)
}

// NewsCSV renders the news fixture as CSV text.
func NewsCSV() string {
	var b strings.Builder
	b.WriteString(strings.Join(NewsHeader, ",") + "\n")
	for _, r := range NewsRecords {
		b.WriteString(strings.Join(r, ",") + "\n")
	}
	return b.String()
}

// WriteFile writes content to name under dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// NewsDataset is a dataset configuration for the news fixture loaded from
// news.csv.
func NewsDataset() config.DatasetConfig {
	return config.DatasetConfig{
		Name:  "news",
		Title: "Prices and news",
		Kind:  "csv",
		Path:  "news.csv",
		Columns: config.ColumnsConfig{
			ID:         "id",
			Date:       "date",
			Value:      "close",
			Annotation: "Event",
		},
		Selectable: []string{"name"},
	}
}
