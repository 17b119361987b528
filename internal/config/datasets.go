package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"seriesdash/internal/series"
)

// DatasetConfig describes one chartable dataset: where it is loaded from
// and which columns play which role.
type DatasetConfig struct {
	Name  string `yaml:"name" validate:"required,max=64,excludesall=/?#"`
	Title string `yaml:"title"`
	Kind  string `yaml:"kind" validate:"required,oneof=csv sqlite xlsx remote"`

	// File and database sources
	Path      string            `yaml:"path" validate:"required_unless=Kind remote"`
	Table     string            `yaml:"table" validate:"required_if=Kind sqlite"`
	Sheet     string            `yaml:"sheet"`
	Delimiter string            `yaml:"delimiter" validate:"omitempty,len=1"`
	Rename    map[string]string `yaml:"rename"`
	Order     []string          `yaml:"order"`

	Remote RemoteConfig `yaml:"remote"`

	Columns      ColumnsConfig       `yaml:"columns"`
	DateEncoding string              `yaml:"date_encoding" validate:"omitempty,oneof=iso roc unix"`
	Selectable   []string            `yaml:"selectable"`
	Derived      []series.Derivation `yaml:"derived" validate:"dive"`
	FallbackMax  float64             `yaml:"fallback_max" validate:"gte=0"`
	Limits       *series.RangeSpec   `yaml:"limits"`
	SplitByYear  bool                `yaml:"split_by_year"`
}

// ColumnsConfig names the columns of a dataset by role
type ColumnsConfig struct {
	ID                string `yaml:"id"`
	Date              string `yaml:"date" validate:"required"`
	Value             string `yaml:"value" validate:"required"`
	Annotation        string `yaml:"annotation"`
	RequireAnnotation bool   `yaml:"require_annotation"`
}

// RemoteConfig configures the price-history API source
type RemoteConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
	Symbol            string        `yaml:"symbol"`
	Interval          string        `yaml:"interval"`
	Start             string        `yaml:"start" validate:"omitempty,datetime=2006-01-02"`
	End               string        `yaml:"end" validate:"omitempty,datetime=2006-01-02"`
	TimestampPath     string        `yaml:"timestamp_path"`
	ClosePath         string        `yaml:"close_path"`
	VolumePath        string        `yaml:"volume_path"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Spec converts the column mapping into a series.Spec.
func (d DatasetConfig) Spec() (series.Spec, error) {
	enc, err := series.ParseEncoding(d.DateEncoding)
	if err != nil {
		return series.Spec{}, err
	}
	spec := series.Spec{
		IDColumn:          d.Columns.ID,
		DateColumn:        d.Columns.Date,
		ValueColumn:       d.Columns.Value,
		AnnotationColumn:  d.Columns.Annotation,
		RequireAnnotation: d.Columns.RequireAnnotation,
		DateEncoding:      enc,
		Derived:           d.Derived,
		FallbackMax:       d.FallbackMax,
	}
	if d.Limits != nil {
		spec.Limits = *d.Limits
	}
	return spec, nil
}

// IsSelectable reports whether col may be used in dropdown options and
// membership filters. The id column always is.
func (d DatasetConfig) IsSelectable(col string) bool {
	if col == "" {
		return false
	}
	if col == d.Columns.ID {
		return true
	}
	for _, s := range d.Selectable {
		if s == col {
			return true
		}
	}
	return false
}

var datasetValidator = validator.New(validator.WithRequiredStructEnabled())

// validateDatasets checks each dataset and that names are unique
func validateDatasets(datasets []DatasetConfig) error {
	seen := make(map[string]struct{}, len(datasets))
	for i, d := range datasets {
		if err := datasetValidator.Struct(d); err != nil {
			return fmt.Errorf("dataset %d (%q): %w", i, d.Name, err)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("duplicate dataset name %q", d.Name)
		}
		seen[d.Name] = struct{}{}

		if d.Kind == KindRemote && strings.TrimSpace(d.Remote.BaseURL) == "" {
			return fmt.Errorf("dataset %q: remote.base_url is required", d.Name)
		}
		if d.Limits != nil && d.Limits.Min > d.Limits.Max {
			return fmt.Errorf("dataset %q: limits min %g exceeds max %g", d.Name, d.Limits.Min, d.Limits.Max)
		}
		for _, der := range d.Derived {
			if der.Source == "" || der.Target == "" || der.Factor == 0 {
				return fmt.Errorf("dataset %q: derived columns need source, target and a non-zero factor", d.Name)
			}
		}
	}
	return nil
}
