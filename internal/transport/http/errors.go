package http

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/url"

	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/series"
	"seriesdash/internal/services"
	"seriesdash/internal/sources"
)

// ToAPIError maps service and source errors to API errors. Errors it does
// not recognize are returned unchanged for the error handler to classify.
func ToAPIError(err error, dataset string) error {
	var (
		apiErr  *apierrors.APIError
		missing *series.MissingColumnError
		status  *sources.StatusError
		urlErr  *url.Error
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, services.ErrDatasetNotFound):
		return apierrors.DatasetNotFound(dataset)
	case errors.Is(err, services.ErrColumnNotSelectable):
		return apierrors.NewWithDetails(http.StatusBadRequest, apierrors.CodeColumnNotSelectable,
			"Column is not selectable", err.Error())
	case errors.Is(err, services.ErrNoSeriesData):
		return apierrors.NewWithDetails(http.StatusNotFound, apierrors.CodeNoSeriesData,
			apierrors.ErrNoSeriesData.Message, err.Error())
	case errors.As(err, &missing):
		return apierrors.MissingColumn(err)
	case errors.Is(err, sources.ErrNotParameterized),
		errors.Is(err, sources.ErrInvalidInterval),
		errors.Is(err, sources.ErrInvalidPeriod),
		errors.Is(err, sources.ErrSymbolRequired):
		return apierrors.NewWithDetails(http.StatusBadRequest, apierrors.CodeInvalidParameter,
			"Invalid source parameters", err.Error())
	case errors.As(err, &status), errors.As(err, &urlErr), errors.Is(err, fs.ErrNotExist):
		return apierrors.SourceUnavailable(err)
	}
	return err
}
