package series

import (
	"math"
)

// SigmaWidth is how many sample standard deviations the default range
// extends on each side of the mean.
const SigmaWidth = 6

// DefaultFallbackMax is the upper bound of the default range when there are
// no values to derive it from.
const DefaultFallbackMax = 1000

// DefaultLimits bound user overrides of the y-axis range.
var DefaultLimits = RangeSpec{Min: 0, Max: 10000}

// RangeSpec is a closed interval for the y-axis. Min <= Max always holds for
// values produced by this package.
type RangeSpec struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ordered returns r with Min and Max swapped when inverted
func (r RangeSpec) ordered() RangeSpec {
	if r.Min > r.Max {
		return RangeSpec{Min: r.Max, Max: r.Min}
	}
	return r
}

// Contains reports whether v lies within the range.
func (r RangeSpec) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// ComputeDefaultRange returns mean ± SigmaWidth·s where s is the sample
// standard deviation of values. NaN and infinite values are ignored. With
// fewer than two values s is zero; with none the range is [0, fallbackMax].
//
// The moments are taken over values scaled by their largest magnitude so
// that finite inputs near math.MaxFloat64 cannot overflow. When mean ± width
// itself is not representable the range falls back to [min, max] of values.
func ComputeDefaultRange(values []float64, fallbackMax float64) RangeSpec {
	var (
		n      int
		peak   float64
		lo, hi = math.Inf(1), math.Inf(-1)
	)
	for _, v := range values {
		if !finite(v) {
			continue
		}
		n++
		peak = math.Max(peak, math.Abs(v))
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if n == 0 {
		return RangeSpec{Min: 0, Max: fallbackMax}.ordered()
	}
	if peak == 0 {
		return RangeSpec{}
	}

	// Welford's running mean and sum of squared deviations, on v/peak.
	var (
		k        int
		mean, m2 float64
	)
	for _, v := range values {
		if !finite(v) {
			continue
		}
		x := v / peak
		k++
		d := x - mean
		mean += d / float64(k)
		m2 += d * (x - mean)
	}
	var sigma float64
	if n > 1 {
		sigma = math.Sqrt(math.Max(m2, 0) / float64(n-1))
	}

	r := RangeSpec{
		Min: peak * (mean - SigmaWidth*sigma),
		Max: peak * (mean + SigmaWidth*sigma),
	}
	if !finite(r.Min) || !finite(r.Max) {
		return RangeSpec{Min: lo, Max: hi}
	}
	return r.ordered()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// RangeOverride carries optional user bounds. A nil field keeps the default.
type RangeOverride struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// IsZero reports whether neither bound is set.
func (o RangeOverride) IsZero() bool { return o.Min == nil && o.Max == nil }

// ApplyOverride combines the default range with user bounds. The minimum is
// clamped to [limits.Min, limits.Max] and the maximum to [min, limits.Max],
// so the result is always ordered. NaN and infinite bounds are ignored. With
// no override the default is returned as is, which is how a reset is
// expressed.
func ApplyOverride(def RangeSpec, o RangeOverride, limits RangeSpec) RangeSpec {
	o = o.finiteOnly()
	if o.IsZero() {
		return def
	}
	limits = limits.ordered()

	lo, hi := def.Min, def.Max
	if o.Min != nil {
		lo = *o.Min
	}
	if o.Max != nil {
		hi = *o.Max
	}

	lo = clamp(lo, limits.Min, limits.Max)
	hi = clamp(hi, lo, limits.Max)
	return RangeSpec{Min: lo, Max: hi}
}

// finiteOnly drops bounds that are NaN or infinite.
func (o RangeOverride) finiteOnly() RangeOverride {
	if o.Min != nil && !finite(*o.Min) {
		o.Min = nil
	}
	if o.Max != nil && !finite(*o.Max) {
		o.Max = nil
	}
	return o
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
