package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "Dataset not found", ErrDatasetNotFound.Error())
	assert.Equal(t, "", (&APIError{}).Error())
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err    *APIError
		status int
		code   string
	}{
		{ErrInvalidRequest, http.StatusBadRequest, CodeInvalidRequest},
		{ErrValidationFailed, http.StatusBadRequest, CodeValidationFailed},
		{ErrInvalidParameter, http.StatusBadRequest, CodeInvalidParameter},
		{ErrNotFound, http.StatusNotFound, CodeNotFound},
		{ErrDatasetNotFound, http.StatusNotFound, CodeDatasetNotFound},
		{ErrNoSeriesData, http.StatusNotFound, CodeNoSeriesData},
		{ErrMissingColumn, http.StatusUnprocessableEntity, CodeMissingColumn},
		{ErrRateLimitExceeded, http.StatusTooManyRequests, CodeRateLimitExceeded},
		{ErrInternalServer, http.StatusInternalServerError, CodeInternal},
		{ErrWebSocketUpgrade, http.StatusInternalServerError, CodeWebSocketUpgrade},
		{ErrSourceUnavailable, http.StatusBadGateway, CodeSourceUnavailable},
		{ErrServiceUnavailable, http.StatusServiceUnavailable, CodeServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.Equal(t, tt.code, tt.err.ErrorCode)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name    string
		err     *APIError
		status  int
		code    string
		message string
		details interface{}
	}{
		{
			name:    "invalid request",
			err:     InvalidRequestWithError(fmt.Errorf("bad json")),
			status:  http.StatusBadRequest,
			code:    CodeInvalidRequest,
			message: "Invalid request format",
			details: "bad json",
		},
		{
			name:    "invalid parameter",
			err:     InvalidParameter("min", fmt.Errorf("not a number")),
			status:  http.StatusBadRequest,
			code:    CodeInvalidParameter,
			message: "Invalid value for min",
			details: ValidationError{Field: "min", Message: "not a number"},
		},
		{
			name:    "dataset not found",
			err:     DatasetNotFound("news"),
			status:  http.StatusNotFound,
			code:    CodeDatasetNotFound,
			message: `Dataset "news" not found`,
			details: "news",
		},
		{
			name:    "missing column",
			err:     MissingColumn(fmt.Errorf(`missing date column "date"`)),
			status:  http.StatusUnprocessableEntity,
			code:    CodeMissingColumn,
			message: "Dataset is missing a required column",
			details: `missing date column "date"`,
		},
		{
			name:    "source unavailable",
			err:     SourceUnavailable(fmt.Errorf("connection refused")),
			status:  http.StatusBadGateway,
			code:    CodeSourceUnavailable,
			message: "Data source unavailable",
			details: "connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.Equal(t, tt.code, tt.err.ErrorCode)
			assert.Equal(t, tt.message, tt.err.Message)
			assert.Equal(t, tt.details, tt.err.Details)
		})
	}
}

func TestNewValidationErrors(t *testing.T) {
	fields := []ValidationError{{Field: "min", Message: "required"}, {Field: "max", Message: "gte"}}
	err := NewValidationErrors(fields)

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, ValidationErrors{Errors: fields}, err.Details)
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	p := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", "", "/api/x").
		WithExtension("trace_id", "abc").
		WithExtension("status", 999)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "abc", m["trace_id"])
	assert.Equal(t, float64(http.StatusNotFound), m["status"], "standard fields win over extensions")
	assert.Equal(t, "/api/x", m["instance"])
	assert.NotContains(t, m, "detail")

	var zero ProblemDetails
	zero.WithExtension("k", "v")
	assert.Equal(t, "v", zero.Extensions["k"])
}
