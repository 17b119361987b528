package series

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// DateFormat is the calendar date layout used when a date cell is displayed.
const DateFormat = "2006-01-02"

// Kind identifies what a cell holds.
type Kind uint8

const (
	// KindMissing marks an absent or unparseable cell
	KindMissing Kind = iota
	// KindString marks raw text as read from the source
	KindString
	// KindNumber marks a finite floating point value
	KindNumber
	// KindDate marks a calendar date (UTC midnight)
	KindDate
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "missing"
	}
}

// Value is a single table cell.
//
// Numbers and dates remember the text they were parsed from so that equality
// filters keep matching what the user picked in a dropdown.
type Value struct {
	kind Kind
	text string
	num  float64
	date time.Time
}

// Missing returns a missing cell.
func Missing() Value { return Value{} }

// String returns a text cell.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Number returns a numeric cell. Non-finite values are stored as missing.
func Number(f float64) Value {
	return numberWithText(f, strconv.FormatFloat(f, 'f', -1, 64))
}

// Date returns a date cell truncated to its calendar day.
func Date(t time.Time) Value {
	d := calendarDay(t)
	return Value{kind: KindDate, text: d.Format(DateFormat), date: d}
}

func numberWithText(f float64, text string) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing()
	}
	return Value{kind: KindNumber, text: text, num: f}
}

func dateWithText(t time.Time, text string) Value {
	return Value{kind: KindDate, text: text, date: calendarDay(t)}
}

// calendarDay drops the time of day, keeping the date as seen in t's location.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Kind returns the kind of the cell.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether the cell is missing.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Text returns the source text of the cell, "" when missing.
func (v Value) Text() string { return v.text }

// Float returns the numeric value and whether the cell is a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Time returns the calendar date and whether the cell is a date.
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindDate {
		return time.Time{}, false
	}
	return v.date, true
}

// String formats the cell for display. Dates use DateFormat and numbers
// their shortest representation.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindDate:
		return v.date.Format(DateFormat)
	default:
		return v.text
	}
}

// MarshalJSON encodes missing cells as null, numbers as JSON numbers and
// dates as "2006-01-02" strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindMissing:
		return []byte("null"), nil
	case KindNumber:
		return json.Marshal(v.num)
	case KindDate:
		return json.Marshal(v.date.Format(DateFormat))
	default:
		return json.Marshal(v.text)
	}
}

var _ json.Marshaler = Value{}
