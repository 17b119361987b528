package http

import (
	"context"
	"io"

	"seriesdash/internal/chart"
	"seriesdash/internal/series"
	"seriesdash/internal/services"
)

// SeriesServiceInterface defines the dataset operations used by the handlers
type SeriesServiceInterface interface {
	ListDatasets() []services.DatasetInfo
	Options(ctx context.Context, dataset, column string) ([]string, error)
	Series(ctx context.Context, dataset string, req services.SeriesRequest) (series.Result, error)
	Chart(ctx context.Context, dataset string, req services.SeriesRequest, format chart.Format, w io.Writer) error
	Export(ctx context.Context, dataset string, req services.SeriesRequest, w io.Writer) error
}
