package audit

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/pkg/logger"
)

func day(d int) time.Time {
	return time.Date(2025, 12, d, 0, 0, 0, 0, time.UTC)
}

func bar(sym string, date time.Time, avg float64) contracts.Bar {
	b := contracts.MissingBar(sym, date)
	b.AvgPrice = avg
	return b
}

// four symbols over trading days 1,2,3,4,5,8 (weekend gap)
func weekBars() []contracts.Bar {
	dates := []time.Time{day(1), day(2), day(3), day(4), day(5), day(8)}
	prices := map[string][]float64{
		"AAA": {100, 100, 101, 102, 103, 110},
		"BBB": {50, 50, 50, 49, 48, 45},
		"CCC": {20, 20, 21, 22, 23, 22},
		"DDD": {10, 10, 10, 10, 10, 10},
	}
	var bars []contracts.Bar
	for sym, ps := range prices {
		for i, d := range dates {
			bars = append(bars, bar(sym, d, ps[i]))
		}
	}
	return bars
}

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer(4, logger.NewNop())
	rep, err := a.Analyze(weekBars(), []string{"AAA_POST", "CCC"}, day(2))
	require.NoError(t, err)

	assert.Equal(t, day(3), rep.EntryDate)
	assert.Equal(t, day(8), rep.ExitDate, "exit is 4 trading days after the decision date")
	require.Len(t, rep.Universe, 4)
	require.Len(t, rep.Model, 2)

	// AAA 101→110, BBB 50→45, CCC 21→22, DDD flat
	aaa, ccc := 110.0/101-1, 22.0/21-1
	uni := []float64{aaa, 45.0/50 - 1, ccc, 0}

	get := func(name string) float64 {
		v, ok := rep.Value(name)
		require.True(t, ok, name)
		return v
	}
	assert.Equal(t, round4(mean(uni)), get(MetricUniverseMean))
	assert.Equal(t, round4((aaa+ccc)/2), get(MetricModelMean))
	assert.Equal(t, round4((aaa+ccc)/2), get(MetricModelMedian))
	assert.Equal(t, round4(median(uni)), get(MetricUniverseMedian))
	assert.Equal(t, 0.5, get(MetricUniverseWin))
	assert.Equal(t, 1.0, get(MetricModelWin))
	assert.Equal(t, 0.75, get(MetricRankPercentile), "BBB, CCC and DDD are below the model mean")
	assert.Len(t, rep.Summary, 9)
}

func TestAnalyzeAveragesSegments(t *testing.T) {
	bars := []contracts.Bar{
		bar("X", day(1), 10), bar("X", day(2), 10), bar("X", day(3), 12),
		bar("X_PRE", day(2), 20), bar("X_PRE", day(3), 12),
	}
	rep, err := NewAnalyzer(2, logger.NewNop()).Analyze(bars, []string{"X"}, day(1))
	require.NoError(t, err)
	require.Len(t, rep.Model, 1)
	assert.Equal(t, 15.0, rep.Model[0].EntryPrice)
	assert.Equal(t, 12.0, rep.Model[0].ExitPrice)
}

func TestAnalyzeErrors(t *testing.T) {
	a := NewAnalyzer(4, logger.NewNop())

	_, err := a.Analyze(weekBars(), nil, day(6))
	assert.ErrorIs(t, err, ErrDecisionNotInCalendar)

	_, err = a.Analyze(weekBars(), nil, day(4))
	assert.Error(t, err, "exit date beyond the master")
}

func TestReportWriter(t *testing.T) {
	rep, err := NewAnalyzer(4, logger.NewNop()).Analyze(weekBars(), []string{"AAA"}, day(2))
	require.NoError(t, err)

	w := NewReportWriter(t.TempDir())
	paths, err := w.Write(rep)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Contains(t, paths[0], "weekly_alpha_check_2025-12-08.csv")
	assert.Contains(t, paths[1], "model_stock_returns_2025-12-08.csv")

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("Metric,Value\nUniverse Mean Return,")))

	data, err = os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), "AAA,101,110,")
}
