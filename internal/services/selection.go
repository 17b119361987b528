package services

import (
	"github.com/go-playground/validator/v10"

	"seriesdash/internal/series"
	"seriesdash/internal/sources"
)

// Selection is the wire form of a user selection, shared by the HTTP query
// binding and websocket messages.
type Selection struct {
	Key      string              `json:"key,omitempty" validate:"max=64"`
	Members  map[string][]string `json:"in,omitempty" validate:"max=16"`
	Min      *float64            `json:"min,omitempty"`
	Max      *float64            `json:"max,omitempty"`
	Symbol   string              `json:"symbol,omitempty" validate:"omitempty,symbol"`
	Interval string              `json:"interval,omitempty" validate:"omitempty,interval"`
	Start    string              `json:"start,omitempty" validate:"omitempty,isodate"`
	End      string              `json:"end,omitempty" validate:"omitempty,isodate"`
}

// Request converts the selection into a SeriesRequest
func (s Selection) Request() SeriesRequest {
	return SeriesRequest{
		Key:      s.Key,
		Members:  s.Members,
		Override: series.RangeOverride{Min: s.Min, Max: s.Max},
		Params: sources.Params{
			Symbol:   s.Symbol,
			Interval: s.Interval,
			Start:    s.Start,
			End:      s.End,
		},
	}
}

// SelectionStructLevel rejects an inverted y-axis range and a start date
// after the end date. Register it for Selection on the request validator.
func SelectionStructLevel(sl validator.StructLevel) {
	s := sl.Current().Interface().(Selection)
	if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
		sl.ReportError(s.Max, "max", "Max", "gtefield", "min")
	}
	if s.Start != "" && s.End != "" && s.Start > s.End {
		sl.ReportError(s.End, "end", "End", "gtefield", "start")
	}
}

// SeriesResponse is the JSON body of a series run
type SeriesResponse struct {
	Dataset      string             `json:"dataset"`
	Empty        bool               `json:"empty"`
	Rows         int                `json:"rows"`
	Series       series.Table       `json:"series"`
	Annotated    series.Table       `json:"annotated"`
	DefaultRange series.RangeSpec   `json:"default_range"`
	Range        series.RangeSpec   `json:"range"`
	Unparseable  series.Unparseable `json:"unparseable"`
}

// NewSeriesResponse wraps a pipeline result for clients
func NewSeriesResponse(dataset string, res series.Result) SeriesResponse {
	return SeriesResponse{
		Dataset:      dataset,
		Empty:        res.Empty(),
		Rows:         res.Series.Len(),
		Series:       res.Series,
		Annotated:    res.Annotated,
		DefaultRange: res.Default,
		Range:        res.Range,
		Unparseable:  res.Unparseable,
	}
}
