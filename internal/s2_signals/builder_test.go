package s2_signals

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/pkg/logger"
)

func segment(label string, n int, volume func(i int) float64) contracts.SymbolSegment {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.Bar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = contracts.Bar{
			Symbol: label, Date: start.AddDate(0, 0, i),
			High: c + 2, Low: c - 2, Close: c, AvgPrice: c,
			TradedQty: volume(i), DeliveryPct: 40 + float64(i%3),
		}
	}
	return contracts.SymbolSegment{Label: label, BaseSymbol: label, Kind: contracts.SegmentFull, Bars: bars}
}

func TestReturns(t *testing.T) {
	c := NewMomentumCalculator()
	got := c.Returns([]float64{100, 110, contracts.Missing, 0, 50}, 1)

	assert.True(t, contracts.IsMissing(got[0]))
	assert.InDelta(t, 0.10, got[1], 1e-12)
	assert.True(t, contracts.IsMissing(got[2]))
	assert.True(t, contracts.IsMissing(got[3]))
	assert.True(t, contracts.IsMissing(got[4]), "zero previous close")
}

func TestVolatilityUsesSampleStd(t *testing.T) {
	c := NewTechnicalCalculator()
	ret := []float64{contracts.Missing, 0.01, 0.02, 0.03}
	got := c.Volatility(ret, 3)

	assert.True(t, contracts.IsMissing(got[2]), "window touches missing ret")
	assert.InDelta(t, 0.01, got[3], 1e-12) // std(0.01,0.02,0.03, ddof=1) = 0.01
}

func TestZScore(t *testing.T) {
	f := NewFlowCalculator(3)

	got := f.ZScore([]float64{1, 2, 3, 5, 5, 5})
	assert.True(t, contracts.IsMissing(got[1]))
	assert.InDelta(t, 1.0, got[2], 1e-12)
	assert.True(t, contracts.IsMissing(got[5]), "zero std")
}

func TestBuildSegment(t *testing.T) {
	b := NewBuilder(20, 2, logger.NewNop())
	seg := segment("ACC", 25, func(i int) float64 { return 1000 + float64(i*i) })

	rows := b.BuildSegment(seg)
	require.Len(t, rows, 25)

	assert.Equal(t, "ACC", rows[0].Symbol)
	assert.InDelta(t, 101.0/100-1, rows[1].Features.Ret1, 1e-12)
	assert.True(t, contracts.IsMissing(rows[9].Features.Ret10))
	assert.InDelta(t, 110.0/100-1, rows[10].Features.Ret10, 1e-12)
	assert.True(t, contracts.IsMissing(rows[4].Features.Vol5))
	assert.False(t, contracts.IsMissing(rows[5].Features.Vol5))
	assert.InDelta(t, 4.0/100, rows[0].Features.Range, 1e-12)

	assert.False(t, rows[18].Features.Complete(), "z-score window not yet full")
	assert.True(t, rows[19].Features.Complete())
	for _, r := range rows[19:] {
		for _, v := range r.Features.Values() {
			assert.False(t, math.IsInf(v, 0))
		}
	}
}

func TestBuildConstantVolumeIsMissing(t *testing.T) {
	b := NewBuilder(20, 1, logger.NewNop())
	rows := b.BuildSegment(segment("FLAT", 22, func(int) float64 { return 500 }))
	assert.True(t, contracts.IsMissing(rows[21].Features.VolZ))
	assert.False(t, rows[21].Features.Complete())
}

func TestBuildKeepsSegmentOrder(t *testing.T) {
	b := NewBuilder(20, 4, logger.NewNop())
	vol := func(i int) float64 { return float64(100 + i) }
	segs := []contracts.SymbolSegment{segment("A_PRE", 3, vol), segment("A_POST", 2, vol), segment("B", 4, vol)}

	rows, err := b.Build(context.Background(), segs)
	require.NoError(t, err)
	require.Len(t, rows, 9)
	assert.Equal(t, "A_PRE", rows[0].Symbol)
	assert.Equal(t, "A_POST", rows[3].Symbol)
	assert.Equal(t, "B", rows[8].Symbol)
	assert.True(t, rows[3].Date.Before(rows[4].Date))
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(20, 1, logger.NewNop())
	_, err := b.Build(ctx, []contracts.SymbolSegment{segment("A", 3, func(int) float64 { return 1 })})
	assert.ErrorIs(t, err, context.Canceled)
}
