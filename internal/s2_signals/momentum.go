package s2_signals

import (
	"github.com/wonny/quantmon/internal/contracts"
)

// ReturnHorizons are the ret_k features, in FeatureNames order
var ReturnHorizons = []int{1, 3, 5, 10}

// MomentumCalculator computes trailing k-bar returns
// ⭐ SSOT: 수익률 피처 계산은 여기서만
type MomentumCalculator struct{}

// NewMomentumCalculator creates a new momentum calculator
func NewMomentumCalculator() *MomentumCalculator {
	return &MomentumCalculator{}
}

// Returns computes close[t]/close[t-k]-1. The first k values, and any value
// touching a missing or zero close, are Missing.
func (c *MomentumCalculator) Returns(closes []float64, k int) []float64 {
	out := make([]float64, len(closes))
	for t := range closes {
		out[t] = contracts.Missing
		if t < k {
			continue
		}
		prev, cur := closes[t-k], closes[t]
		if contracts.IsMissing(prev) || contracts.IsMissing(cur) || prev == 0 {
			continue
		}
		out[t] = cur/prev - 1
	}
	return out
}
