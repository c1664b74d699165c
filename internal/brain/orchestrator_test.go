package brain

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/internal/forecast"
	"github.com/wonny/quantmon/internal/s0_data/quality"
	"github.com/wonny/quantmon/internal/s2_signals"
	"github.com/wonny/quantmon/internal/selection"
	"github.com/wonny/quantmon/internal/strategyconfig"
	"github.com/wonny/quantmon/pkg/logger"
	"github.com/wonny/quantmon/pkg/metrics"
)

var firstDay = time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

const days = 40

type memBars struct {
	bars []contracts.Bar
	err  error
}

func (m memBars) LoadBars(context.Context) ([]contracts.Bar, error) { return m.bars, m.err }

func syntheticBars() []contracts.Bar {
	var bars []contracts.Bar
	for s, sym := range []string{"AAA", "BBB", "CCC", "DDD"} {
		for i := 0; i < days; i++ {
			c := 100 * (1 + 0.02*math.Sin(float64(i)*0.7+float64(s)))
			b := contracts.MissingBar(sym, firstDay.AddDate(0, 0, i))
			b.Open, b.Close, b.AvgPrice = c, c, c
			b.High, b.Low = c*1.01, c*0.99
			b.TradedQty = float64(1000 + (i*37+s*11)%101)
			b.DeliveryPct = float64(40 + (i*13+s*5)%17)
			bars = append(bars, b)
		}
	}
	return bars
}

func decisionDay() time.Time { return firstDay.AddDate(0, 0, days-1) }

type fixture struct {
	dir     string
	results string
	models  string
	c       Components
	cfg     *strategyconfig.Config
}

func newFixture(t *testing.T, bars contracts.BarStore) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{dir: dir, results: filepath.Join(dir, "results"), models: filepath.Join(dir, "models")}

	regimes := filepath.Join(dir, "regimes.csv")
	macro := filepath.Join(dir, "macro.csv")
	require.NoError(t, os.WriteFile(regimes, []byte("regime_id,start_date,end_date\n1,2025-01-01,2025-12-31\n"), 0o644))
	require.NoError(t, os.WriteFile(macro, []byte("regime_id,macro_group\n1,0\n"), 0o644))

	cfg, err := strategyconfig.Default()
	require.NoError(t, err)
	cfg.Meta.StrategyID = "test_strategy"
	f.cfg = cfg

	log := logger.NewNop()
	f.c = Components{
		Bars:       bars,
		Classifier: quality.NewClassifier(quality.PolicyFromConfig(cfg.Integrity), 2, log),
		Features:   s2_signals.NewBuilder(cfg.Features.ZScoreWindow, 2, log),
		Trainer: forecast.NewTrainer(forecast.TrainConfig{
			HoldingDays: 5, MinTrainRows: 10, RidgeLambda: 1, Workers: 2,
		}, zerolog.Nop()),
		Selector:    selection.NewSelector(cfg.Selection.TopK, 2, log),
		Sheets:      selection.NewCSVStore(f.results),
		Reports:     quality.NewFileReportStore(filepath.Join(dir, "reports")),
		RegimeTable: regimes,
		MacroMap:    macro,
		ModelDir:    f.models,
	}
	return f
}

func ret1Model(cluster int) *forecast.LinearModel {
	n := len(contracts.FeatureNames)
	m := &forecast.LinearModel{
		ClusterID: cluster,
		Features:  append([]string(nil), contracts.FeatureNames...),
		Mean:      make([]float64, n),
		Scale:     make([]float64, n),
		Coef:      make([]float64, n),
	}
	for i := range m.Scale {
		m.Scale[i] = 1
	}
	m.Coef[0] = 1
	return m
}

func TestRunWithStoredModels(t *testing.T) {
	f := newFixture(t, memBars{bars: syntheticBars()})
	require.NoError(t, forecast.SaveArtifacts(f.models, []*forecast.LinearModel{ret1Model(0)}, forecast.Manifest{}))

	m := metrics.New()
	orch := NewOrchestrator(f.c, f.cfg, logger.NewNop()).WithMetrics(m)
	res, err := orch.Run(context.Background(), RunConfig{RunID: "run_test", DecisionDate: decisionDay()})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, []string{"S0_BARS", "S1_INTEGRITY", "S2_REGIME", "S3_FEATURES", "S5_SELECTION", "S6_PERSIST"}, res.CompletedStages)
	assert.Equal(t, contracts.NextBusinessDay(decisionDay()), res.EntryDate)
	assert.Equal(t, days*4, res.FeatureRows)
	assert.Equal(t, days*4, res.TaggedRows)

	require.NotNil(t, res.Sheet)
	assert.Len(t, res.Sheet.Rows, 4, "fewer rows than top-k")
	assert.NotEmpty(t, res.Sheet.ConfigHash)
	assert.Equal(t, res.ConfigHash, res.Sheet.ConfigHash)

	stored, err := f.c.Sheets.GetTradeSheet(context.Background(), res.EntryDate)
	require.NoError(t, err)
	assert.Equal(t, res.Sheet.Symbols(), stored.Symbols())

	report, err := f.c.Reports.LatestReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run_test", report.RunID)
}

func TestRunRetrainDryRun(t *testing.T) {
	f := newFixture(t, memBars{bars: syntheticBars()})
	entry := decisionDay().AddDate(0, 0, 3)

	res, err := NewOrchestrator(f.c, f.cfg, logger.NewNop()).Run(context.Background(), RunConfig{
		DecisionDate: decisionDay(), EntryDate: entry, Retrain: true, DryRun: true,
	})
	require.NoError(t, err)

	assert.Contains(t, res.CompletedStages, "S4_TRAINING")
	assert.NotContains(t, res.CompletedStages, "S6_PERSIST")
	require.NotNil(t, res.Trained)
	require.Len(t, res.Trained.Models, 1)
	assert.Equal(t, 0, res.Sheet.ClusterID)
	assert.Equal(t, entry, res.Sheet.EntryDate)
	assert.Regexp(t, `^run_\d{8}_\d{6}$`, res.RunID)

	assert.NoFileExists(t, filepath.Join(f.models, forecast.ManifestFile), "dry run writes no artifacts")
	_, err = f.c.Sheets.LatestTradeSheet(context.Background())
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestRunStageFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("bar store error", func(t *testing.T) {
		f := newFixture(t, memBars{err: errors.New("disk gone")})
		res, err := NewOrchestrator(f.c, f.cfg, logger.NewNop()).Run(ctx, RunConfig{DecisionDate: decisionDay()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "S0 failed")
		assert.Empty(t, res.CompletedStages)
		assert.False(t, res.Success)
	})

	t.Run("no models", func(t *testing.T) {
		f := newFixture(t, memBars{bars: syntheticBars()})
		_, err := NewOrchestrator(f.c, f.cfg, logger.NewNop()).Run(ctx, RunConfig{DecisionDate: decisionDay()})
		assert.ErrorIs(t, err, contracts.ErrModelRegistryEmpty)
		assert.Contains(t, err.Error(), "S5 failed")
	})

	t.Run("decision date without data", func(t *testing.T) {
		f := newFixture(t, memBars{bars: syntheticBars()})
		require.NoError(t, forecast.SaveArtifacts(f.models, []*forecast.LinearModel{ret1Model(0)}, forecast.Manifest{}))
		_, err := NewOrchestrator(f.c, f.cfg, logger.NewNop()).Run(ctx, RunConfig{DecisionDate: decisionDay().AddDate(0, 0, 10)})
		assert.ErrorIs(t, err, contracts.ErrNoSnapshot)
	})

	t.Run("missing regime table", func(t *testing.T) {
		f := newFixture(t, memBars{bars: syntheticBars()})
		f.c.RegimeTable = filepath.Join(f.dir, "nope.csv")
		res, err := NewOrchestrator(f.c, f.cfg, logger.NewNop()).Run(ctx, RunConfig{DecisionDate: decisionDay()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "S2 failed")
		assert.Equal(t, []string{"S0_BARS", "S1_INTEGRITY"}, res.CompletedStages)
	})

	t.Run("zero decision date", func(t *testing.T) {
		f := newFixture(t, memBars{bars: syntheticBars()})
		_, err := NewOrchestrator(f.c, f.cfg, logger.NewNop()).Run(ctx, RunConfig{})
		assert.Error(t, err)
	})
}

func TestGenerateRunID(t *testing.T) {
	ts := time.Date(2025, 12, 5, 18, 30, 1, 0, time.UTC)
	assert.Equal(t, "run_20251205_183001", GenerateRunID(ts))
}
