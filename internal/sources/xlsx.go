package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/series"
)

// XLSXSource reads one worksheet of an Excel workbook.
type XLSXSource struct {
	name  string
	path  string
	sheet string
	shape Shape
}

// NewXLSXSource creates a workbook source. An empty sheet means the first one.
func NewXLSXSource(name, path, sheet string, shape Shape) *XLSXSource {
	return &XLSXSource{name: name, path: path, sheet: sheet, shape: shape}
}

// Name returns the dataset name
func (s *XLSXSource) Name() string { return s.name }

// Load reads the sheet. The first row with any non-blank cell is the header.
func (s *XLSXSource) Load(ctx context.Context) (series.Table, error) {
	if err := ctx.Err(); err != nil {
		return series.Table{}, err
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return series.Table{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return series.Table{}, fmt.Errorf("workbook %s has no sheets", s.path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return series.Table{}, apierrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheet), err).
			WithContext("dataset", s.name)
	}

	start := -1
	for i, row := range rows {
		if !blankRow(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return series.Table{}, ErrEmptySource
	}

	header := make([]string, len(rows[start]))
	for i, h := range rows[start] {
		header[i] = strings.TrimSpace(h)
	}

	var records [][]string
	for _, row := range rows[start+1:] {
		if blankRow(row) {
			continue
		}
		records = append(records, row)
	}

	return s.shape.apply(series.FromRecords(header, records)), nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
