package errors

import (
	"fmt"
	"net/http"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeInvalidParameter    = "INVALID_PARAMETER"
	CodeNotFound            = "NOT_FOUND"
	CodeDatasetNotFound     = "DATASET_NOT_FOUND"
	CodeNoSeriesData        = "NO_SERIES_DATA"
	CodeColumnNotSelectable = "COLUMN_NOT_SELECTABLE"
	CodeMissingColumn       = "MISSING_COLUMN"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeSourceUnavailable   = "SOURCE_UNAVAILABLE"
	CodeInternal            = "INTERNAL_SERVER_ERROR"
	CodeWebSocketUpgrade    = "WEBSOCKET_UPGRADE_FAILED"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
)

// Predefined error types for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, CodeValidationFailed, "Request validation failed")
	ErrInvalidParameter = New(http.StatusBadRequest, CodeInvalidParameter, "Invalid parameter value")

	// 404 Not Found
	ErrNotFound        = New(http.StatusNotFound, CodeNotFound, "Resource not found")
	ErrDatasetNotFound = New(http.StatusNotFound, CodeDatasetNotFound, "Dataset not found")
	ErrNoSeriesData    = New(http.StatusNotFound, CodeNoSeriesData, "No data for the current selection")

	// 422 Unprocessable Entity
	ErrMissingColumn = New(http.StatusUnprocessableEntity, CodeMissingColumn, "Dataset is missing a required column")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")

	// 500 Internal Server Error
	ErrInternalServer   = New(http.StatusInternalServerError, CodeInternal, "Internal server error")
	ErrWebSocketUpgrade = New(http.StatusInternalServerError, CodeWebSocketUpgrade, "WebSocket upgrade failed")

	// 502 Bad Gateway
	ErrSourceUnavailable = New(http.StatusBadGateway, CodeSourceUnavailable, "Data source unavailable")

	// 503 Service Unavailable
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, CodeServiceUnavailable, "Service temporarily unavailable")
)

// Helper functions for specific error types

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// InvalidParameter reports a query parameter that could not be used
func InvalidParameter(param string, err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidParameter,
		fmt.Sprintf("Invalid value for %s", param),
		ValidationError{Field: param, Message: err.Error()})
}

// DatasetNotFound reports an unknown dataset name
func DatasetNotFound(name string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeDatasetNotFound, fmt.Sprintf("Dataset %q not found", name), name)
}

// MissingColumn reports a dataset that lacks a column the chart needs
func MissingColumn(err error) *APIError {
	return NewWithDetails(http.StatusUnprocessableEntity, CodeMissingColumn, "Dataset is missing a required column", err.Error())
}

// SourceUnavailable reports a dataset that could not be loaded
func SourceUnavailable(err error) *APIError {
	return NewWithDetails(http.StatusBadGateway, CodeSourceUnavailable, "Data source unavailable", err.Error())
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errors []ValidationError) *APIError {
	return NewWithDetails(
		http.StatusBadRequest,
		CodeValidationFailed,
		"Request validation failed",
		ValidationErrors{Errors: errors},
	)
}
