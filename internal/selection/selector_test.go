package selection

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/internal/forecast"
	"github.com/wonny/quantmon/pkg/logger"
)

var (
	decisionDay = time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)
	entryDay    = time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC)
)

// indexModel returns scores[i] for the row whose Ret1 feature is i
type indexModel struct {
	scores []float64
	err    error
}

func (m indexModel) Predict(f contracts.FeatureVector) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.scores[int(f.Ret1)], nil
}

func snapshotRows(n int) []contracts.FeatureRow {
	rows := make([]contracts.FeatureRow, 0, n+1)
	for i := 0; i < n; i++ {
		rows = append(rows, contracts.FeatureRow{
			Symbol:   fmt.Sprintf("S%02d", i),
			Date:     decisionDay,
			Features: contracts.FeatureVector{Ret1: float64(i)},
		})
	}
	// previous day row never enters the snapshot
	rows = append(rows, contracts.FeatureRow{Symbol: "OLD", Date: decisionDay.AddDate(0, 0, -1)})
	return rows
}

func registry(t *testing.T, entries ...forecast.Entry) *forecast.Registry {
	t.Helper()
	reg, err := forecast.NewRegistry(entries...)
	require.NoError(t, err)
	return reg
}

func TestSelectChampion(t *testing.T) {
	rows := snapshotRows(10)
	reg := registry(t,
		forecast.Entry{ClusterID: 1, Model: indexModel{scores: []float64{0.04, 0.035, 0.03, 0.03, 0.025, 0.01, 0, -0.01, -0.02, -0.03}}},
		forecast.Entry{ClusterID: 2, Model: indexModel{scores: []float64{0.01, 0.02, 0.03, 0.025, 0.02, 0.01, 0, 0, 0, 0}}},
		forecast.Entry{ClusterID: 3, Model: indexModel{err: errors.New("boom")}},
	)

	sheet, err := NewSelector(5, 3, logger.NewNop()).Select(context.Background(), rows, reg, decisionDay, entryDay)
	require.NoError(t, err)

	assert.Equal(t, 1, sheet.ClusterID)
	assert.Equal(t, []string{"S00", "S01", "S02", "S03", "S04"}, sheet.Symbols())
	assert.InDelta(t, 1.0, sheet.TotalWeight(), 1e-12)
	for _, r := range sheet.Rows {
		assert.Equal(t, 0.2, r.Weight)
		assert.Equal(t, 1, r.ClusterID)
		assert.Equal(t, entryDay, r.EntryDate)
	}

	require.Len(t, sheet.Candidates, 2)
	assert.InDelta(t, 0.032, sheet.Candidates[0].MeanScore, 1e-12)
	assert.InDelta(t, 0.021, sheet.Candidates[1].MeanScore, 1e-12)

	require.Len(t, sheet.Skipped, 1)
	assert.Equal(t, 3, sheet.Skipped[0].ClusterID)
	assert.Contains(t, sheet.Skipped[0].Reason, "boom")
}

func TestSelectTieGoesToSmallestCluster(t *testing.T) {
	scores := []float64{0.05, 0.04, 0.03}
	reg := registry(t,
		forecast.Entry{ClusterID: 7, Model: indexModel{scores: scores}},
		forecast.Entry{ClusterID: 4, Model: indexModel{scores: scores}},
	)

	sheet, err := NewSelector(2, 2, logger.NewNop()).Select(context.Background(), snapshotRows(3), reg, decisionDay, entryDay)
	require.NoError(t, err)
	assert.Equal(t, 4, sheet.ClusterID)
}

func TestSelectFewerRowsThanK(t *testing.T) {
	reg := registry(t, forecast.Entry{ClusterID: 0, Model: indexModel{scores: []float64{0.01, 0.02, 0.03}}})

	sheet, err := NewSelector(5, 1, logger.NewNop()).Select(context.Background(), snapshotRows(3), reg, decisionDay, entryDay)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, []string{"S02", "S01", "S00"}, sheet.Symbols())
	assert.InDelta(t, 0.6, sheet.TotalWeight(), 1e-12, "weight stays 1/K")
}

func TestSelectErrors(t *testing.T) {
	ctx := context.Background()
	sel := NewSelector(5, 2, logger.NewNop())
	ok := registry(t, forecast.Entry{ClusterID: 1, Model: indexModel{scores: []float64{0.1, 0.2}}})

	t.Run("no snapshot", func(t *testing.T) {
		_, err := sel.Select(ctx, snapshotRows(2), ok, decisionDay.AddDate(0, 0, 3), entryDay)
		var nse *contracts.NoSnapshotError
		require.ErrorAs(t, err, &nse)
		assert.Equal(t, 3, nse.TotalRows)
	})

	t.Run("empty registry", func(t *testing.T) {
		_, err := sel.Select(ctx, snapshotRows(2), registry(t), decisionDay, entryDay)
		assert.ErrorIs(t, err, contracts.ErrModelRegistryEmpty)
	})

	t.Run("all clusters fail", func(t *testing.T) {
		reg := registry(t,
			forecast.Entry{ClusterID: 1, Model: indexModel{err: errors.New("a")}},
			forecast.Entry{ClusterID: 2, Model: indexModel{scores: []float64{0.1, math.NaN()}}},
		)
		_, err := sel.Select(ctx, snapshotRows(2), reg, decisionDay, entryDay)
		var nuc *contracts.NoUsableClusterError
		require.ErrorAs(t, err, &nuc)
		assert.Len(t, nuc.Failures, 2)
	})

	t.Run("incomplete rows are excluded", func(t *testing.T) {
		rows := snapshotRows(2)
		rows[1].Features.Vol5 = contracts.Missing
		sheet, err := sel.Select(ctx, rows, ok, decisionDay, entryDay)
		require.NoError(t, err)
		assert.Equal(t, []string{"S00"}, sheet.Symbols())
	})
}

func TestTopKOrdering(t *testing.T) {
	got := TopK([]contracts.ScoredSymbol{
		{Symbol: "B", Score: 0.1}, {Symbol: "A", Score: 0.1}, {Symbol: "C", Score: 0.3}, {Symbol: "D", Score: -1},
	}, 3)
	assert.Equal(t, []contracts.ScoredSymbol{
		{Symbol: "C", Score: 0.3}, {Symbol: "A", Score: 0.1}, {Symbol: "B", Score: 0.1},
	}, got)
	assert.True(t, contracts.IsMissing(MeanScore(nil)))
}

func TestChampionEmpty(t *testing.T) {
	_, ok := Champion(nil)
	assert.False(t, ok)
}
