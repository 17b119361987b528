// Package chart draws a pipeline result as a line chart with annotation
// markers, using go-chart.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"seriesdash/internal/series"
)

// Format is an output image format.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ErrEmptySeries is returned when there is nothing to draw. Callers treat
// it as "skip rendering", not as a failure of the run.
var ErrEmptySeries = errors.New("no plottable points")

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown chart format")

// ParseFormat accepts "png" or "svg", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case PNG, SVG:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Options control the look of a chart.
type Options struct {
	Title       string
	Width       int
	Height      int
	SplitByYear bool
}

const (
	defaultWidth  = 1000
	defaultHeight = 600
)

var (
	lineColor   = drawing.ColorFromHex("1f77b4")
	markerColor = drawing.ColorRed
)

// Render draws res to w. The value column is plotted against the date
// column as a line; rows with a non-empty annotation are drawn as red
// points labelled with their text. The y-axis is fixed to res.Range.
func Render(w io.Writer, res series.Result, spec series.Spec, format Format, opts Options) error {
	c, err := Build(res, spec, opts)
	if err != nil {
		return err
	}
	rp := gochart.PNG
	if format == SVG {
		rp = gochart.SVG
	}
	if err := c.Render(rp, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// Build assembles the chart without rendering it.
func Build(res series.Result, spec series.Spec, opts Options) (gochart.Chart, error) {
	var lines []gochart.Series
	if opts.SplitByYear {
		for _, ys := range series.SplitByYear(res.Series, spec.DateColumn) {
			xs, vs := points(ys.Table, spec.DateColumn, spec.ValueColumn)
			if len(xs) == 0 {
				continue
			}
			lines = append(lines, timeSeries(strconv.Itoa(ys.Year), xs, vs, gochart.Style{StrokeWidth: 2}))
		}
	} else {
		xs, vs := points(res.Series, spec.DateColumn, spec.ValueColumn)
		if len(xs) > 0 {
			lines = append(lines, timeSeries(spec.ValueColumn, xs, vs, gochart.Style{
				StrokeColor: lineColor,
				StrokeWidth: 2,
			}))
		}
	}
	if len(lines) == 0 {
		return gochart.Chart{}, ErrEmptySeries
	}

	if spec.AnnotationColumn != "" && res.Annotated.Len() > 0 {
		xs, vs := points(res.Annotated, spec.DateColumn, spec.ValueColumn)
		if len(xs) > 0 {
			lines = append(lines, timeSeries("annotations", xs, vs, gochart.Style{
				StrokeWidth: gochart.Disabled,
				DotWidth:    5,
				DotColor:    markerColor,
			}))
			lines = append(lines, annotations(res.Annotated, spec))
		}
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	c := gochart.Chart{
		Title:      opts.Title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis: gochart.XAxis{
			Name:           spec.DateColumn,
			ValueFormatter: gochart.TimeDateValueFormatter,
			Range:          xRange(lines),
		},
		YAxis: gochart.YAxis{
			Name:  spec.ValueColumn,
			Range: yRange(res.Range),
		},
		Series: lines,
	}
	if opts.SplitByYear {
		c.Elements = []gochart.Renderable{gochart.Legend(&c)}
	}
	return c, nil
}

// points returns the dated, numeric rows of t.
func points(t series.Table, dateCol, valueCol string) ([]time.Time, []float64) {
	var xs []time.Time
	var vs []float64
	for _, r := range t.Rows() {
		d, ok := r.Get(dateCol).Time()
		if !ok {
			continue
		}
		v, ok := r.Get(valueCol).Float()
		if !ok {
			continue
		}
		xs = append(xs, d)
		vs = append(vs, v)
	}
	return xs, vs
}

// timeSeries builds a series; a single point is widened by a day because
// go-chart cannot draw a zero-width x range.
func timeSeries(name string, xs []time.Time, vs []float64, style gochart.Style) gochart.TimeSeries {
	if len(xs) == 1 {
		xs = []time.Time{xs[0], xs[0].AddDate(0, 0, 1)}
		vs = []float64{vs[0], vs[0]}
	}
	return gochart.TimeSeries{Name: name, XValues: xs, YValues: vs, Style: style}
}

func annotations(t series.Table, spec series.Spec) gochart.AnnotationSeries {
	var vals []gochart.Value2
	for _, r := range t.Rows() {
		d, ok := r.Get(spec.DateColumn).Time()
		if !ok {
			continue
		}
		v, ok := r.Get(spec.ValueColumn).Float()
		if !ok {
			continue
		}
		vals = append(vals, gochart.Value2{
			XValue: gochart.TimeToFloat64(d),
			YValue: v,
			Label:  r.Get(spec.AnnotationColumn).Text(),
		})
	}
	return gochart.AnnotationSeries{
		Name:        "events",
		Annotations: vals,
		Style: gochart.Style{
			StrokeColor: markerColor,
			FontColor:   markerColor,
		},
	}
}

// xRange spans every time series, at least one day wide.
func xRange(lines []gochart.Series) *gochart.ContinuousRange {
	var lo, hi time.Time
	for _, l := range lines {
		ts, ok := l.(gochart.TimeSeries)
		if !ok {
			continue
		}
		for _, x := range ts.XValues {
			if lo.IsZero() || x.Before(lo) {
				lo = x
			}
			if hi.IsZero() || x.After(hi) {
				hi = x
			}
		}
	}
	if !hi.After(lo) {
		hi = lo.AddDate(0, 0, 1)
	}
	return &gochart.ContinuousRange{Min: gochart.TimeToFloat64(lo), Max: gochart.TimeToFloat64(hi)}
}

// yRange widens a zero-height range so the axis can be drawn.
func yRange(r series.RangeSpec) *gochart.ContinuousRange {
	lo, hi := r.Min, r.Max
	if hi-lo <= 0 {
		pad := math.Max(math.Abs(lo)*0.05, 1)
		lo, hi = lo-pad, hi+pad
	}
	return &gochart.ContinuousRange{Min: lo, Max: hi}
}
