package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RollingMean computes a trailing-window mean. Windows use only past and
// current observations; rows with fewer than minPeriods observations are NaN.
func RollingMean(xs []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		n := i - lo + 1
		if n < minPeriods {
			out[i] = math.NaN()
			continue
		}
		if hasNaN(xs[lo : i+1]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Mean(xs[lo:i+1], nil)
	}
	return out
}

// RollingStd computes a trailing-window sample standard deviation.
// A window of a single observation yields NaN (sample variance undefined).
func RollingStd(xs []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		n := i - lo + 1
		if n < minPeriods || hasNaN(xs[lo:i+1]) {
			out[i] = math.NaN()
			continue
		}
		if n < 2 {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.StdDev(xs[lo:i+1], nil)
	}
	return out
}

// EMA computes an exponentially weighted mean with the given span,
// seeded by the first observation (recursive form, no bias adjustment).
func EMA(xs []float64, span int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI computes the relative strength index over the given period.
// The first `period` rows are indeterminate (NaN); the later fill step
// resolves them.
func RSI(close []float64, period int) []float64 {
	n := len(close)
	out := make([]float64, n)
	gains := make([]float64, n)
	losses := make([]float64, n)
	gains[0], losses[0] = math.NaN(), math.NaN()
	for i := 1; i < n; i++ {
		delta := close[i] - close[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}
	avgGain := RollingMean(gains, period, period)
	avgLoss := RollingMean(losses, period, period)
	for i := 0; i < n; i++ {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
			out[i] = math.NaN()
		case l == 0 && g == 0:
			out[i] = math.NaN()
		case l == 0:
			out[i] = 100
		default:
			rs := g / l
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// PctChange computes the row-over-row percent change. The first row is NaN.
func PctChange(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) > 0 {
		out[0] = math.NaN()
	}
	for i := 1; i < len(xs); i++ {
		prev := xs[i-1]
		if prev == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (xs[i] - prev) / prev
	}
	return out
}

// MinMaxScale maps values into [0,1]; a small epsilon keeps the divisor
// nonzero for constant input.
func MinMaxScale(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	lo, hi := xs[0], xs[0]
	for _, v := range xs {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	denom := hi - lo + 1e-8
	for i, v := range xs {
		out[i] = (v - lo) / denom
	}
	return out
}

func hasNaN(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
