// Package services implements the business logic layer of seriesdash.
// It sits between the HTTP, websocket and CLI front ends and the data
// sources, so every caller gets the same pipeline behavior.
//
// # SeriesService
//
// SeriesService runs the series pipeline for a named dataset:
//
//	svc := services.NewSeriesService(services.SeriesDeps{
//	    Sources:  registry,
//	    Datasets: cfg.Datasets,
//	    Tracer:   providers.Tracer,
//	    Metrics:  pipelineMetrics,
//	    Logger:   logger,
//	})
//	res, err := svc.Series(ctx, "news", services.SeriesRequest{Key: "2330"})
//
// Each call loads the table afresh from its source, checks the columns the
// dataset relies on, applies the selection and records a span and the
// pipeline metrics. An empty selection is a valid Result; Chart and Export
// report it as ErrNoSeriesData because there is nothing to draw or write.
//
// # Errors
//
// Sentinel errors are wrapped with the offending name:
//
//	ErrDatasetNotFound      unknown dataset or dataset without a source
//	ErrColumnNotSelectable  filter or option on a column not exposed
//	ErrNoSeriesData         chart or export of an empty selection
//
// Missing columns surface as *series.MissingColumnError and source failures
// are wrapped as returned by the source.
//
// # HealthService
//
// HealthService backs the liveness, readiness and version endpoints.
// Readiness requires at least one configured dataset and an accessible data
// directory.
package services
