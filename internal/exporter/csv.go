package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"seriesdash/internal/config"
	"seriesdash/internal/series"
)

// utf8BOM helps spreadsheet applications recognize UTF-8
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths *config.Paths
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteTable streams t to w as CSV: a UTF-8 BOM, the header row in column
// order, then one record per row.
func WriteTable(w io.Writer, t series.Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range Records(t) {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportTable writes t to filename inside the exports directory and returns
// the full path of the file.
func (w *CSVWriter) ExportTable(filename string, t series.Table) (string, error) {
	sw, err := w.CreateStreamWriter(filename, t.Columns())
	if err != nil {
		return "", err
	}
	for i, record := range Records(t) {
		if err := sw.WriteRecord(record); err != nil {
			sw.Close()
			return "", fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	if err := sw.Close(); err != nil {
		return "", err
	}
	return sw.Path(), nil
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter creates a new streaming CSV writer under the exports
// directory. The file starts with a BOM and the headers.
func (w *CSVWriter) CreateStreamWriter(filename string, headers []string) (*StreamWriter, error) {
	fullPath := w.paths.GetExportPath(filename)

	slog.Info("Creating CSV stream writer",
		slog.String("file_path", filename),
		slog.String("full_path", fullPath),
		slog.Int("header_count", len(headers)))

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := file.Write(utf8BOM); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	return &StreamWriter{
		path:   fullPath,
		file:   file,
		writer: writer,
	}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Path returns the file being written
func (s *StreamWriter) Path() string { return s.path }

// Close flushes and closes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
