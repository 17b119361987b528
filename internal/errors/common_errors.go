package errors

import (
	"fmt"
	"net/http"
)

// ErrorType classifies failures that happen while loading a dataset
type ErrorType string

const (
	// ErrTypeNetwork is a remote source that could not be reached
	ErrTypeNetwork ErrorType = "NETWORK"
	// ErrTypeParsing is source content that could not be decoded
	ErrTypeParsing ErrorType = "PARSING"
	// ErrTypeStorage is a database query that failed
	ErrTypeStorage ErrorType = "STORAGE"
	// ErrTypeConfig is a dataset definition that cannot be served
	ErrTypeConfig ErrorType = "CONFIG"
)

// problem returns the HTTP status and problem type for t
func (t ErrorType) problem() (int, string) {
	switch t {
	case ErrTypeNetwork, ErrTypeStorage:
		return http.StatusBadGateway, TypeSourceUnavailable
	case ErrTypeParsing:
		return http.StatusUnprocessableEntity, TypeDataCorrupted
	default:
		return http.StatusInternalServerError, TypeInternal
	}
}

// AppError is a categorized source failure. Context carries the dataset,
// symbol or table involved and is echoed in the problem document.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext records key on the error and returns it for chaining
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
