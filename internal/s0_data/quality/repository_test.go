package quality

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantmon/internal/contracts"
)

func TestFileReportStore_SaveAndLatest(t *testing.T) {
	store := NewFileReportStore(t.TempDir())
	ctx := context.Background()

	_, err := store.LatestReport(ctx)
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	older := &StoredReport{
		RunID:        "run_20250801_180000",
		DecisionDate: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		Report:       contracts.CleaningReport{SymbolsIn: 10},
	}
	newer := &StoredReport{
		RunID:        "run_20250808_180000",
		DecisionDate: time.Date(2025, 8, 8, 0, 0, 0, 0, time.UTC),
		Report: contracts.CleaningReport{
			SymbolsIn:    12,
			SymbolsSplit: []string{"IRCTC"},
			UnsplitEvents: []contracts.UnsplitEvent{
				{Symbol: "BRITANNIA", Date: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), Reason: ReasonExcluded},
			},
		},
	}
	require.NoError(t, store.SaveReport(ctx, newer))
	require.NoError(t, store.SaveReport(ctx, older))

	got, err := store.LatestReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.RunID, got.RunID)
	assert.Equal(t, []string{"IRCTC"}, got.Report.SymbolsSplit)
	require.Len(t, got.Report.UnsplitEvents, 1)
	assert.Equal(t, "BRITANNIA", got.Report.UnsplitEvents[0].Symbol)
}
