package s2_signals

import (
	"math"

	"github.com/wonny/quantmon/internal/contracts"
)

// VolatilityWindows are the vol_n features, in FeatureNames order
var VolatilityWindows = []int{5, 10}

// TechnicalCalculator computes volatility and intraday range
type TechnicalCalculator struct{}

// NewTechnicalCalculator creates a new technical calculator
func NewTechnicalCalculator() *TechnicalCalculator {
	return &TechnicalCalculator{}
}

// Volatility is the rolling sample standard deviation (n-1) of ret1.
// A window containing any missing return yields Missing.
func (c *TechnicalCalculator) Volatility(ret1 []float64, window int) []float64 {
	out := make([]float64, len(ret1))
	for t := range ret1 {
		out[t] = contracts.Missing
		if t+1 < window {
			continue
		}
		if _, std, ok := meanStd(ret1[t+1-window : t+1]); ok {
			out[t] = std
		}
	}
	return out
}

// Range is (high-low)/close per bar
func (c *TechnicalCalculator) Range(bars []contracts.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = contracts.Missing
		if contracts.IsMissing(b.High) || contracts.IsMissing(b.Low) || contracts.IsMissing(b.Close) || b.Close == 0 {
			continue
		}
		out[i] = (b.High - b.Low) / b.Close
	}
	return out
}

// meanStd returns mean and sample std of a complete window
func meanStd(w []float64) (float64, float64, bool) {
	n := len(w)
	if n < 2 {
		return 0, 0, false
	}

	sum := 0.0
	for _, v := range w {
		if contracts.IsMissing(v) {
			return 0, 0, false
		}
		sum += v
	}
	mean := sum / float64(n)

	ss := 0.0
	for _, v := range w {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1)), true
}
