package series

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DateEncoding names how a date column is written in the source.
type DateEncoding string

const (
	// EncodingISO accepts calendar dates such as 2024-01-02, 2024-1-2,
	// 2024/01/02 and timestamps whose day part is kept.
	EncodingISO DateEncoding = "iso"
	// EncodingROC accepts Minguo calendar integers YYYMMDD (year + 1911),
	// as used by Taiwanese real-estate transaction records.
	EncodingROC DateEncoding = "roc"
	// EncodingUnix accepts integer seconds since the Unix epoch.
	EncodingUnix DateEncoding = "unix"
)

// rocEpochOffset converts a Minguo year to a Gregorian year
const rocEpochOffset = 1911

// ErrUnknownEncoding is returned for an encoding not listed above.
var ErrUnknownEncoding = errors.New("unknown date encoding")

// ParseEncoding validates an encoding name; "" selects EncodingISO.
func ParseEncoding(s string) (DateEncoding, error) {
	switch enc := DateEncoding(strings.ToLower(strings.TrimSpace(s))); enc {
	case "":
		return EncodingISO, nil
	case EncodingISO, EncodingROC, EncodingUnix:
		return enc, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
	}
}

var isoLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05-07:00",
}

// ParseDate reads s as a calendar date in the given encoding. The returned
// time is UTC midnight of that day.
func ParseDate(s string, enc DateEncoding) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	switch enc {
	case EncodingISO, "":
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return calendarDay(t), nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	case EncodingROC:
		return parseROC(s)
	case EncodingUnix:
		secs, err := strconv.ParseInt(trimIntegral(s), 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid unix time %q: %w", s, err)
		}
		return calendarDay(time.Unix(secs, 0).UTC()), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
	}
}

// parseROC decodes YYYMMDD (or YYMMDD for years before 100) Minguo dates.
func parseROC(s string) (time.Time, error) {
	s = trimIntegral(s)
	if len(s) < 6 || len(s) > 7 {
		return time.Time{}, fmt.Errorf("invalid minguo date %q: want YYYMMDD", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, fmt.Errorf("invalid minguo date %q: not an integer", s)
		}
	}
	n := len(s)
	year, _ := strconv.Atoi(s[:n-4])
	month, _ := strconv.Atoi(s[n-4 : n-2])
	day, _ := strconv.Atoi(s[n-2:])
	year += rocEpochOffset

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 2023-02-30 to March; reject instead.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid minguo date %q: year=%d month=%d day=%d", s, year, month, day)
	}
	return t, nil
}

// trimIntegral drops a ".0" style fraction left by sources that store
// integers as floating point.
func trimIntegral(s string) string {
	if i := strings.IndexByte(s, '.'); i > 0 && strings.Trim(s[i+1:], "0") == "" {
		return s[:i]
	}
	return s
}

// ParseDates converts col to date cells using enc. Cells that are already
// dates are kept; cells that fail to parse become missing. Rows are never
// dropped and an absent column leaves the table unchanged.
func ParseDates(t Table, col string, enc DateEncoding) Table {
	if !t.HasColumn(col) {
		return t
	}
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		v := r.Get(col)
		switch v.Kind() {
		case KindDate:
			rows[i] = r
		case KindMissing:
			rows[i] = r
		default:
			if d, err := ParseDate(v.Text(), enc); err == nil {
				rows[i] = r.with(col, dateWithText(d, v.Text()))
			} else {
				rows[i] = r.with(col, Missing())
			}
		}
	}
	return t.withRows(rows)
}

// dateOf returns the calendar day a cell holds. Text cells are read as ISO
// dates so that tables which skipped ParseDates still sort.
func dateOf(v Value) (time.Time, bool) {
	switch v.Kind() {
	case KindDate:
		return v.Time()
	case KindString:
		d, err := ParseDate(v.Text(), EncodingISO)
		return d, err == nil
	default:
		return time.Time{}, false
	}
}

// SortByDate orders rows ascending by the calendar date in col. The sort is
// stable, so rows sharing a date keep their input order, and rows whose date
// is missing or unparseable follow all dated rows in their original order.
// Parsed text cells are stored as date cells. Sorting a sorted table returns
// the same sequence.
func SortByDate(t Table, col string) Table {
	if !t.HasColumn(col) {
		return t
	}

	type keyed struct {
		row Row
		day time.Time
		ok  bool
	}
	items := make([]keyed, len(t.rows))
	for i, r := range t.rows {
		v := r.Get(col)
		d, ok := dateOf(v)
		if ok && v.Kind() != KindDate {
			r = r.with(col, dateWithText(d, v.Text()))
		}
		items[i] = keyed{row: r, day: d, ok: ok}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		switch {
		case a.ok && !b.ok:
			return -1
		case !a.ok && b.ok:
			return 1
		case !a.ok && !b.ok:
			return 0
		}
		return a.day.Compare(b.day)
	})

	rows := make([]Row, len(items))
	for i, it := range items {
		rows[i] = it.row
	}
	return t.withRows(rows)
}

// YearSlice is the part of a date-sorted table that falls in one calendar year.
type YearSlice struct {
	Year  int
	Table Table
}

// SplitByYear groups rows by the year of their date in col, in ascending
// year order. Rows without a date are left out.
func SplitByYear(t Table, col string) []YearSlice {
	byYear := make(map[int][]Row)
	var years []int
	for _, r := range t.rows {
		d, ok := dateOf(r.Get(col))
		if !ok {
			continue
		}
		y := d.Year()
		if _, seen := byYear[y]; !seen {
			years = append(years, y)
		}
		byYear[y] = append(byYear[y], r)
	}
	slices.Sort(years)

	out := make([]YearSlice, 0, len(years))
	for _, y := range years {
		out = append(out, YearSlice{Year: y, Table: t.withRows(byYear[y])})
	}
	return out
}
