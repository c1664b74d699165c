package strategyconfig

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RepositoryPolicy(t *testing.T) {
	path := "../../config/strategy/nse_regime.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, yamlData)

	assert.Equal(t, "nse_fno_regime_v1", cfg.Meta.StrategyID)
	assert.Equal(t, 0.40, cfg.Integrity.AbnormalRet1)
	assert.Equal(t, 0.60, cfg.Integrity.AbnormalRet2)
	assert.Equal(t, []string{"BRITANNIA"}, cfg.Integrity.ExcludeFromSplit)
	assert.Equal(t, 5, cfg.Selection.TopK)
	assert.Equal(t, 3000, cfg.Training.MinTrainRows)
}

func TestParse_DefaultsFillMissingKeys(t *testing.T) {
	cfg, err := Parse([]byte("meta:\n  strategy_id: minimal\n"))
	require.NoError(t, err)

	assert.Equal(t, 0.40, cfg.Integrity.AbnormalRet1)
	assert.Equal(t, 0.60, cfg.Integrity.AbnormalRet2)
	assert.Equal(t, 0.10, cfg.Integrity.StabilityBand)
	assert.Equal(t, 5, cfg.Integrity.StabilityWindow)
	assert.Equal(t, 0.80, cfg.Integrity.BadTickSpike)
	assert.Equal(t, 0.10, cfg.Integrity.BadTickReversion)
	assert.Equal(t, 10, cfg.Integrity.SegmentGap)
	assert.Equal(t, []string{"BRITANNIA"}, cfg.Integrity.ExcludeFromSplit)
	assert.Equal(t, 20, cfg.Features.ZScoreWindow)
	assert.Equal(t, 5, cfg.Training.HoldingDays)
	assert.Equal(t, 5, cfg.Selection.TopK)
}

func TestParse_ExplicitEmptyExclusionList(t *testing.T) {
	cfg, err := Parse([]byte("meta:\n  strategy_id: x\nintegrity:\n  exclude_from_split: []\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Integrity.ExcludeFromSplit)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte("meta:\n  strategy_id: x\nselection:\n  topk: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topk")
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"missing strategy id", "meta:\n  version: v2\n", "meta.strategy_id"},
		{"zero top k", "meta:\n  strategy_id: x\nselection:\n  top_k: 0\n", "selection.top_k"},
		{"band out of range", "meta:\n  strategy_id: x\nintegrity:\n  stability_band: 1.5\n", "integrity.stability_band"},
		{"reversion above spike", "meta:\n  strategy_id: x\nintegrity:\n  bad_tick_spike: 0.1\n  bad_tick_reversion: 0.2\n", "integrity.bad_tick_reversion"},
		{"lower-case exclusion", "meta:\n  strategy_id: x\nintegrity:\n  exclude_from_split: [britannia]\n", "integrity.exclude_from_split"},
		{"too few train rows", "meta:\n  strategy_id: x\ntraining:\n  min_train_rows: 3\n", "training.min_train_rows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr), "got %T: %v", err, err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestHash_Deterministic(t *testing.T) {
	a, err := Parse([]byte("meta:\n  strategy_id: x\n"))
	require.NoError(t, err)
	b, err := Parse([]byte("meta:\n  strategy_id: x\n"))
	require.NoError(t, err)

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, _ := Hash(b)
	assert.Len(t, ha, 64)
	assert.Equal(t, ha, hb)

	b.Selection.TopK = 7
	hc, _ := Hash(b)
	assert.NotEqual(t, ha, hc)
}
