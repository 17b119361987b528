package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/sources"
)

// Validator validates bound request structs using struct tags. Field names
// in errors come from the json tag.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a validator with the custom tags registered:
// interval, symbol and isodate.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterValidation("interval", isValidInterval)
	v.RegisterValidation("symbol", isValidSymbol)
	v.RegisterValidation("isodate", isISODate)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: v,
		logger:   logger.With(slog.String("component", "validator")),
	}
}

// RegisterStructValidation adds a cross-field rule for the given types.
func (m *Validator) RegisterStructValidation(fn validator.StructLevelFunc, types ...interface{}) {
	m.validate.RegisterStructValidation(fn, types...)
}

// ValidateStruct validates v and returns an *apierrors.APIError listing
// every failed field, or nil.
func (m *Validator) ValidateStruct(v interface{}) error {
	err := m.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	m.logger.Debug("request validation failed", slog.Int("errors", len(out)))
	return apierrors.NewValidationErrors(out)
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "interval":
		return fmt.Sprintf("%s must be a supported interval", field)
	case "symbol":
		return fmt.Sprintf("%s must be a valid ticker symbol", field)
	case "isodate":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD form", field)
	case "gtefield":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "ltefield":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// isValidInterval accepts interval codes and their long labels
func isValidInterval(fl validator.FieldLevel) bool {
	_, err := sources.NormalizeInterval(fl.Field().String())
	return err == nil
}

// isValidSymbol validates ticker symbol format, e.g. 2330.TW or ^TWII
func isValidSymbol(fl validator.FieldLevel) bool {
	symbol := fl.Field().String()
	if len(symbol) < 1 || len(symbol) > 15 {
		return false
	}
	for _, ch := range symbol {
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
		case ch == '.', ch == '-', ch == '^', ch == '=':
		default:
			return false
		}
	}
	return true
}

// isISODate validates a YYYY-MM-DD calendar date
func isISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}
