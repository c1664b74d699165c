package s2_signals

import (
	"github.com/wonny/quantmon/internal/contracts"
)

// FlowCalculator computes trading-activity z-scores (volume, delivery %)
type FlowCalculator struct {
	window int
}

// NewFlowCalculator creates a calculator over a trailing window of bars
func NewFlowCalculator(window int) *FlowCalculator {
	if window < 2 {
		window = 2
	}
	return &FlowCalculator{window: window}
}

// ZScore is (x - mean)/std over the trailing window including x.
// Incomplete windows and zero std give Missing.
func (c *FlowCalculator) ZScore(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for t := range xs {
		out[t] = contracts.Missing
		if t+1 < c.window {
			continue
		}
		mean, std, ok := meanStd(xs[t+1-c.window : t+1])
		if !ok || std == 0 {
			continue
		}
		out[t] = (xs[t] - mean) / std
	}
	return out
}

// Column extracts one numeric field from bars
func Column(bars []contracts.Bar, field func(contracts.Bar) float64) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = field(b)
	}
	return out
}
