package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"golang.org/x/time/rate"

	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/series"
)

// Default JSONPath expressions for a chart-style price history response.
const (
	DefaultTimestampPath = "$.chart.result[0].timestamp"
	DefaultClosePath     = "$.chart.result[0].indicators.quote[0].close"
	DefaultVolumePath    = "$.chart.result[0].indicators.quote[0].volume"
)

// Columns of a remote price history table.
const (
	ColumnSymbol = "symbol"
	ColumnDate   = "date"
	ColumnClose  = "close"
	ColumnVolume = "volume"
)

// intervals maps accepted sampling frequencies, including the long labels
// offered in the frequency slider, to their API codes.
var intervals = map[string]string{
	"1m": "1m", "1 min": "1m",
	"2m": "2m", "2 mins": "2m",
	"5m": "5m", "5 mins": "5m",
	"15m": "15m", "15 mins": "15m",
	"30m": "30m", "30 mins": "30m",
	"1h":  "1h",
	"90m": "90m", "90 mins": "90m",
	"1d": "1d", "1 day": "1d",
	"5d": "5d", "5 days": "5d",
	"1wk": "1wk", "1 week": "1wk",
	"1mo": "1mo", "1 mo": "1mo",
	"3mo": "3mo", "3 mo": "3mo",
}

// NormalizeInterval returns the API code for an interval or label.
func NormalizeInterval(s string) (string, error) {
	if code, ok := intervals[strings.TrimSpace(s)]; ok {
		return code, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidInterval, s)
}

// StatusError is returned when the API answers with a non-200 status.
type StatusError struct {
	Code   int
	Symbol string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("price history for %q: unexpected status %d %s", e.Symbol, e.Code, http.StatusText(e.Code))
}

// RemoteOptions configures a RemoteSource.
type RemoteOptions struct {
	BaseURL       string
	Symbol        string
	Interval      string
	Start         string
	End           string
	TimestampPath string
	ClosePath     string
	VolumePath    string
	Client        *http.Client
	Limiter       *rate.Limiter
}

// RemoteSource fetches a symbol's price history from a JSON API:
//
//	GET {base}/{symbol}?interval=1d&period1=<unix>&period2=<unix>
//
// Timestamps, closing prices and volumes are picked out of the response
// with JSONPath expressions so other chart APIs can be mapped in config.
type RemoteSource struct {
	name string
	opts RemoteOptions
}

// NewRemoteSource validates opts and fills in defaults. The symbol may be
// left empty when it is supplied per request through WithParams.
func NewRemoteSource(name string, opts RemoteOptions) (*RemoteSource, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("remote source %s: base url is required", name)
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("remote source %s: invalid base url: %w", name, err)
	}
	if opts.Interval == "" {
		opts.Interval = "1d"
	}
	code, err := NormalizeInterval(opts.Interval)
	if err != nil {
		return nil, err
	}
	opts.Interval = code
	if _, _, err := parsePeriod(opts.Start, opts.End); err != nil {
		return nil, err
	}
	if opts.TimestampPath == "" {
		opts.TimestampPath = DefaultTimestampPath
	}
	if opts.ClosePath == "" {
		opts.ClosePath = DefaultClosePath
	}
	if opts.VolumePath == "" {
		opts.VolumePath = DefaultVolumePath
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &RemoteSource{name: name, opts: opts}, nil
}

// Name returns the dataset name
func (s *RemoteSource) Name() string { return s.name }

// WithParams returns a copy of the source for another symbol, interval or
// period. Empty fields keep the configured values. The copy shares the
// client and rate limiter.
func (s *RemoteSource) WithParams(p Params) (Source, error) {
	opts := s.opts
	if p.Symbol != "" {
		opts.Symbol = strings.TrimSpace(p.Symbol)
	}
	if p.Interval != "" {
		opts.Interval = p.Interval
	}
	if p.Start != "" {
		opts.Start = p.Start
	}
	if p.End != "" {
		opts.End = p.End
	}
	return NewRemoteSource(s.name, opts)
}

// Load fetches and decodes the price history.
func (s *RemoteSource) Load(ctx context.Context) (series.Table, error) {
	if s.opts.Symbol == "" {
		return series.Table{}, ErrSymbolRequired
	}
	if err := s.opts.Limiter.Wait(ctx); err != nil {
		return series.Table{}, fmt.Errorf("rate limiter: %w", err)
	}

	addr, err := s.requestURL()
	if err != nil {
		return series.Table{}, err
	}

	var doc any
	if err := s.get(ctx, addr, &doc); err != nil {
		return series.Table{}, err
	}
	return s.decode(doc)
}

func (s *RemoteSource) requestURL() (string, error) {
	start, end, err := parsePeriod(s.opts.Start, s.opts.End)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("interval", s.opts.Interval)
	if !start.IsZero() {
		q.Set("period1", fmt.Sprint(start.Unix()))
	}
	if !end.IsZero() {
		// inclusive end date
		q.Set("period2", fmt.Sprint(end.AddDate(0, 0, 1).Unix()))
	}
	return strings.TrimRight(s.opts.BaseURL, "/") + "/" + url.PathEscape(s.opts.Symbol) + "?" + q.Encode(), nil
}

func (s *RemoteSource) get(ctx context.Context, addr string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return fmt.Errorf("cannot create http request %q: %w", addr, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return apierrors.NewNetworkError("cannot execute http request", err).
			WithContext("symbol", s.opts.Symbol)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode, Symbol: s.opts.Symbol}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return apierrors.NewParsingError("cannot decode price history", err).
			WithContext("symbol", s.opts.Symbol)
	}
	return nil
}

// decode zips the timestamp, close and volume arrays into rows. A missing
// close or volume array yields missing cells, not an error.
func (s *RemoteSource) decode(doc any) (series.Table, error) {
	stamps, err := pathList(s.opts.TimestampPath, doc)
	if err != nil {
		return series.Table{}, fmt.Errorf("error parsing timestamps %q: %w", s.opts.TimestampPath, err)
	}
	closes, _ := pathList(s.opts.ClosePath, doc)
	volumes, _ := pathList(s.opts.VolumePath, doc)

	columns := []string{ColumnSymbol, ColumnDate, ColumnClose, ColumnVolume}
	rows := make([]series.Row, 0, len(stamps))
	for i, ts := range stamps {
		sec, ok := ts.(float64)
		if !ok {
			continue
		}
		rows = append(rows, series.Row{
			ColumnSymbol: series.String(s.opts.Symbol),
			ColumnDate:   series.Date(time.Unix(int64(sec), 0).UTC()),
			ColumnClose:  jsonNumber(closes, i),
			ColumnVolume: jsonNumber(volumes, i),
		})
	}
	return series.NewTable(columns, rows), nil
}

// pathList evaluates path and returns the resulting array.
func pathList(path string, doc any) ([]any, error) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("not an array: %T", v)
	}
	// wildcard paths wrap a single array in a list of one
	if len(list) == 1 {
		if inner, ok := list[0].([]any); ok {
			return inner, nil
		}
	}
	return list, nil
}

func jsonNumber(list []any, i int) series.Value {
	if i >= len(list) {
		return series.Missing()
	}
	if f, ok := list[i].(float64); ok {
		return series.Number(f)
	}
	return series.Missing()
}

// parsePeriod parses optional YYYY-MM-DD bounds and checks their order.
func parsePeriod(start, end string) (time.Time, time.Time, error) {
	var s, e time.Time
	var err error
	if start != "" {
		if s, err = time.Parse(series.DateFormat, start); err != nil {
			return s, e, fmt.Errorf("%w: bad start date %q", ErrInvalidPeriod, start)
		}
	}
	if end != "" {
		if e, err = time.Parse(series.DateFormat, end); err != nil {
			return s, e, fmt.Errorf("%w: bad end date %q", ErrInvalidPeriod, end)
		}
	}
	if !s.IsZero() && !e.IsZero() && s.After(e) {
		return s, e, fmt.Errorf("%w: start %s is after end %s", ErrInvalidPeriod, start, end)
	}
	return s, e, nil
}
