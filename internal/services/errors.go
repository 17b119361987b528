package services

import "errors"

// Series service errors
var (
	ErrDatasetNotFound     = errors.New("dataset not found")
	ErrNoSeriesData        = errors.New("no series data")
	ErrColumnNotSelectable = errors.New("column is not selectable")
)
