package http

import (
	"errors"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/services"
)

// memberPrefix marks membership filters: in.<column>=a,b
const memberPrefix = "in."

// bindSelection reads a selection from query parameters:
//
//	key=2330&in.name=TSMC,Foxconn&min=500&max=700&symbol=2330.TW&interval=1d&start=2024-01-01&end=2024-06-30
//
// Membership values may be comma separated or repeated.
func bindSelection(q url.Values) (services.Selection, error) {
	sel := services.Selection{
		Key:      strings.TrimSpace(q.Get("key")),
		Symbol:   strings.TrimSpace(q.Get("symbol")),
		Interval: strings.TrimSpace(q.Get("interval")),
		Start:    strings.TrimSpace(q.Get("start")),
		End:      strings.TrimSpace(q.Get("end")),
	}

	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		col, ok := strings.CutPrefix(name, memberPrefix)
		if !ok {
			continue
		}
		if col == "" {
			return sel, apierrors.InvalidParameter(name, errors.New("column name is empty"))
		}
		if sel.Members == nil {
			sel.Members = make(map[string][]string)
		}
		sel.Members[col] = append(sel.Members[col], splitList(q[name])...)
	}

	var err error
	if sel.Min, err = parseBound(q, "min"); err != nil {
		return sel, err
	}
	if sel.Max, err = parseBound(q, "max"); err != nil {
		return sel, err
	}
	return sel, nil
}

// splitList flattens comma separated values, dropping blanks
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseBound parses an optional finite number. An absent or blank
// parameter returns nil.
func parseBound(q url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apierrors.InvalidParameter(name, errors.New("must be a number"))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, apierrors.InvalidParameter(name, errors.New("must be finite"))
	}
	return &f, nil
}
