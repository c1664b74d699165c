package forecast

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantmon/internal/contracts"
)

func vector(v ...float64) contracts.FeatureVector {
	return contracts.FeatureVector{
		Ret1: v[0], Ret3: v[1], Ret5: v[2], Ret10: v[3], Vol5: v[4],
		Vol10: v[5], Range: v[6], VolZ: v[7], DelivZ: v[8],
	}
}

func TestFitRidgeRecoversLinearTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var X [][]float64
	var y []float64
	for i := 0; i < 200; i++ {
		row := make([]float64, len(contracts.FeatureNames))
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		X = append(X, row)
		y = append(y, 0.5+2*row[0]-row[1]+0.25*row[8])
	}

	model, err := FitRidge(X, y, 0)
	require.NoError(t, err)
	require.NoError(t, model.Validate())

	for i := 0; i < 5; i++ {
		got, err := model.Predict(vector(X[i]...))
		require.NoError(t, err)
		assert.InDelta(t, y[i], got, 1e-8)
	}
}

func TestFitRidgeShrinks(t *testing.T) {
	X := [][]float64{}
	y := []float64{}
	for i := 0; i < 50; i++ {
		row := make([]float64, len(contracts.FeatureNames))
		row[0] = float64(i)
		X = append(X, row)
		y = append(y, float64(i))
	}

	ols, err := FitRidge(X, y, 1e-6)
	require.NoError(t, err)
	ridge, err := FitRidge(X, y, 100)
	require.NoError(t, err)
	assert.Less(t, ridge.Coef[0], ols.Coef[0])
	assert.Equal(t, 1.0, ridge.Scale[1], "constant feature keeps unit scale")
}

func TestPredictRejectsMissing(t *testing.T) {
	model := unitModel(1)
	f := vector(1, 1, 1, 1, 1, 1, 1, 1, 1)
	f.VolZ = contracts.Missing

	_, err := model.Predict(f)
	assert.ErrorIs(t, err, ErrIncompleteFeatures)
}

func unitModel(id int) *LinearModel {
	n := len(contracts.FeatureNames)
	m := &LinearModel{
		ClusterID: id,
		Features:  append([]string(nil), contracts.FeatureNames...),
		Mean:      make([]float64, n),
		Scale:     make([]float64, n),
		Coef:      make([]float64, n),
	}
	for j := range m.Scale {
		m.Scale[j] = 1
	}
	m.Coef[0] = 1
	return m
}

func TestValidate(t *testing.T) {
	bad := unitModel(3)
	bad.Scale[2] = 0
	assert.Error(t, bad.Validate())

	short := unitModel(3)
	short.Coef = short.Coef[:4]
	assert.Error(t, short.Validate())

	renamed := unitModel(3)
	renamed.Features[0] = "ret_2"
	assert.Error(t, renamed.Validate())
}

type stubModel struct{}

func (stubModel) Predict(contracts.FeatureVector) (float64, error) { return 0, nil }

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(Entry{ClusterID: 2, Model: stubModel{}}, Entry{ClusterID: 0, Model: unitModel(0)})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, reg.IDs())

	_, err = NewRegistry(Entry{ClusterID: 1, Model: stubModel{}}, Entry{ClusterID: 1, Model: stubModel{}})
	assert.Error(t, err, "duplicate id")

	_, err = NewRegistry(Entry{ClusterID: 1})
	assert.Error(t, err, "nil model")

	broken := unitModel(4)
	broken.Intercept = contracts.Missing
	_, err = NewRegistry(Entry{ClusterID: 4, Model: broken})
	assert.Error(t, err, "validation runs eagerly")

	empty, err := NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestSaveAndLoadManifest(t *testing.T) {
	dir := t.TempDir()

	reg, manifest, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len(), "no manifest yet")
	assert.Empty(t, manifest.Models)

	models := []*LinearModel{unitModel(0), unitModel(3)}
	require.NoError(t, SaveArtifacts(dir, models, Manifest{StrategyID: "nse_fno_regime_v1", DecisionDate: "2025-12-05"}))
	assert.FileExists(t, filepath.Join(dir, "macro_3.json"))

	reg, manifest, err = LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, reg.IDs())
	assert.Equal(t, "nse_fno_regime_v1", manifest.StrategyID)

	got, err := reg.Entries()[1].Model.Predict(vector(2, 0, 0, 0, 0, 0, 0, 0, 0))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-12)
}

func TestLoadManifestClusterMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveArtifacts(dir, []*LinearModel{unitModel(1)}, Manifest{}))

	manifest := "models:\n  - cluster_id: 9\n    path: macro_1.json\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0o644))

	_, _, err := LoadManifest(dir)
	assert.Error(t, err)
}

func trainingRows(symbol string, n, macro int, start time.Time, rng *rand.Rand) []contracts.FeatureRow {
	rows := make([]contracts.FeatureRow, n)
	price := 100.0
	for i := range rows {
		f := make([]float64, len(contracts.FeatureNames))
		for j := range f {
			f[j] = rng.NormFloat64()
		}
		price *= 1 + 0.01*rng.NormFloat64()
		m := macro
		rows[i] = contracts.FeatureRow{
			Symbol: symbol, Date: start.AddDate(0, 0, i), Close: price, AvgPrice: price,
			Macro: &m, Features: vector(f...),
		}
	}
	return rows
}

func TestTrainer(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := trainingRows("A", 40, 1, start, rng)
	rows = append(rows, trainingRows("B", 40, 1, start, rng)...)
	rows = append(rows, trainingRows("C", 8, 2, start, rng)...)
	rows[3].Features.Ret1 = contracts.Missing
	rows[4].Macro = nil

	decision := start.AddDate(0, 0, 29) // 30 rows per symbol survive the cutoff
	trainer := NewTrainer(TrainConfig{HoldingDays: 5, MinTrainRows: 20, RidgeLambda: 1, Workers: 2}, zerolog.Nop())

	res, err := trainer.Train(context.Background(), rows, decision)
	require.NoError(t, err)
	require.Len(t, res.Models, 1)
	assert.Equal(t, 1, res.Models[0].ClusterID)
	assert.Equal(t, (30-5)*2-2, res.Rows[1], "target window and missing rows removed")
	assert.Equal(t, []int{2}, res.Skipped)
	assert.Equal(t, decision, res.Models[0].TrainedThrough)
	require.NoError(t, res.Models[0].Validate())
}

func TestTrainerTargetNeverCrossesDecisionDate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := trainingRows("A", 20, 1, start, rand.New(rand.NewSource(1)))
	trainer := NewTrainer(TrainConfig{HoldingDays: 5, MinTrainRows: 1}, zerolog.Nop())

	groups := trainer.BuildSamples(rows, start.AddDate(0, 0, 9))
	require.Len(t, groups[1], 5, "rows 0..4 only; 5..9 would need prices after the decision date")
	assert.InDelta(t, rows[5].Close/rows[0].Close-1, groups[1][0].y, 1e-12)
}

func TestTrainerNothingTrained(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := trainingRows("A", 10, 1, start, rand.New(rand.NewSource(1)))
	trainer := NewTrainer(TrainConfig{HoldingDays: 5, MinTrainRows: 100}, zerolog.Nop())

	_, err := trainer.Train(context.Background(), rows, start.AddDate(0, 0, 30))
	assert.True(t, errors.Is(err, ErrNothingTrained))
}
