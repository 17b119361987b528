package sources

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/series"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSource reads a delimited text file.
type CSVSource struct {
	name      string
	path      string
	delimiter rune
	shape     Shape
}

// NewCSVSource creates a CSV source. A zero delimiter means comma.
func NewCSVSource(name, path string, delimiter rune, shape Shape) *CSVSource {
	if delimiter == 0 {
		delimiter = ','
	}
	return &CSVSource{name: name, path: path, delimiter: delimiter, shape: shape}
}

// Name returns the dataset name
func (s *CSVSource) Name() string { return s.name }

// Load reads the whole file. The first record is the header.
func (s *CSVSource) Load(ctx context.Context) (series.Table, error) {
	if err := ctx.Err(); err != nil {
		return series.Table{}, err
	}

	file, err := os.Open(s.path)
	if err != nil {
		return series.Table{}, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer file.Close()

	t, err := ReadCSV(file, s.delimiter)
	if err != nil {
		return series.Table{}, apierrors.NewParsingError("failed to read "+s.path, err).
			WithContext("dataset", s.name)
	}
	return s.shape.apply(t), nil
}

// ReadCSV parses delimited text into a table. A leading UTF-8 BOM is
// skipped, header names are trimmed and ragged records are tolerated.
func ReadCSV(r io.Reader, delimiter rune) (series.Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return series.Table{}, ErrEmptySource
	}
	if err != nil {
		return series.Table{}, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return series.Table{}, fmt.Errorf("failed to read CSV row: %w", err)
		}
		records = append(records, record)
	}

	return series.FromRecords(header, records), nil
}
