package http

import (
	"bytes"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"seriesdash/internal/chart"
	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/middleware"
	"seriesdash/internal/services"
)

// DatasetHandler serves dataset listings, dropdown options, series JSON,
// chart images and CSV exports.
type DatasetHandler struct {
	service      SeriesServiceInterface
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(service SeriesServiceInterface, validator *middleware.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DatasetHandler {
	validator.RegisterStructValidation(services.SelectionStructLevel, services.Selection{})
	return &DatasetHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("handler", "datasets")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dataset routes
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.ListDatasets)
	r.Route("/{dataset}", func(r chi.Router) {
		r.Get("/options/{column}", h.GetOptions)
		r.Get("/series", h.GetSeries)
		r.Get("/chart.png", h.GetChart(chart.PNG))
		r.Get("/chart.svg", h.GetChart(chart.SVG))
		r.Get("/export.csv", h.ExportCSV)
	})
	return r
}

// ListDatasets handles GET /api/datasets
func (h *DatasetHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets := h.service.ListDatasets()
	render.JSON(w, r, map[string]interface{}{
		"datasets": datasets,
		"count":    len(datasets),
	})
}

// GetOptions handles GET /api/datasets/{dataset}/options/{column}
func (h *DatasetHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")
	column := chi.URLParam(r, "column")

	values, err := h.service.Options(r.Context(), dataset, column)
	if err != nil {
		h.errorHandler.HandleError(w, r, ToAPIError(err, dataset))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"dataset": dataset,
		"column":  column,
		"options": values,
	})
}

// GetSeries handles GET /api/datasets/{dataset}/series. An empty selection
// is a 200 with "empty": true.
func (h *DatasetHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")
	req, ok := h.bind(w, r)
	if !ok {
		return
	}

	res, err := h.service.Series(r.Context(), dataset, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, ToAPIError(err, dataset))
		return
	}
	render.JSON(w, r, services.NewSeriesResponse(dataset, res))
}

// GetChart handles GET /api/datasets/{dataset}/chart.png and chart.svg
func (h *DatasetHandler) GetChart(format chart.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dataset := chi.URLParam(r, "dataset")
		req, ok := h.bind(w, r)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := h.service.Chart(r.Context(), dataset, req, format, &buf); err != nil {
			h.errorHandler.HandleError(w, r, ToAPIError(err, dataset))
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			h.logger.WarnContext(r.Context(), "failed to write chart", slog.String("error", err.Error()))
		}
	}
}

// ExportCSV handles GET /api/datasets/{dataset}/export.csv
func (h *DatasetHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")
	req, ok := h.bind(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), dataset, req, &buf); err != nil {
		h.errorHandler.HandleError(w, r, ToAPIError(err, dataset))
		return
	}

	filename := services.ExportFilename(dataset, req)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write export", slog.String("error", err.Error()))
	}
}

// bind parses and validates the selection, writing the error response on
// failure.
func (h *DatasetHandler) bind(w http.ResponseWriter, r *http.Request) (services.SeriesRequest, bool) {
	sel, err := bindSelection(r.URL.Query())
	if err == nil {
		err = h.validator.ValidateStruct(sel)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return services.SeriesRequest{}, false
	}
	return sel.Request(), true
}
