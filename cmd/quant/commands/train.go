package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/quantmon/internal/forecast"
	"github.com/wonny/quantmon/internal/regime"
)

// trainCmd retrains the per-cluster models without producing a trade sheet
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "macro 클러스터별 모델 재학습",
	Long: `결정일 이전 데이터로 macro 클러스터별 선형 모델을 학습하고
모델 디렉터리에 아티팩트와 manifest.yaml 을 저장합니다.

Example:
  go run ./cmd/quant train --decision-date 2025-12-05`,
	RunE: runTrain,
}

var (
	trainDecisionDate string
	trainSource       string
	trainDryRun       bool
)

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVar(&trainDecisionDate, "decision-date", "", "결정일 (YYYY-MM-DD, 필수)")
	trainCmd.Flags().StringVar(&trainSource, "source", sourceCSV, "일봉 소스 (csv|db)")
	trainCmd.Flags().BoolVar(&trainDryRun, "dry-run", false, "아티팩트 저장 생략")
	_ = trainCmd.MarkFlagRequired("decision-date")
}

func runTrain(cmd *cobra.Command, args []string) error {
	decision, err := parseDateFlag("decision-date", trainDecisionDate)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.barStore(trainSource)
	if err != nil {
		return err
	}

	ctx := context.Background()
	bars, err := store.LoadBars(ctx)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	cleaned, err := a.classifier().Classify(ctx, bars)
	if err != nil {
		return err
	}
	tagger, err := regime.LoadTagger(a.cfg.Paths.RegimeTable, a.cfg.Paths.MacroMap)
	if err != nil {
		return err
	}
	rows, err := a.featureBuilder().Build(ctx, cleaned.Segments)
	if err != nil {
		return err
	}
	tagged := tagger.Tag(rows, decision)

	fmt.Println("=== Model training ===")
	PrintKeyValue("Decision Date", formatDate(decision), 14)
	PrintKeyValue("Feature Rows", strconv.Itoa(len(rows)), 14)
	PrintKeyValue("Tagged Rows", strconv.Itoa(tagged), 14)
	fmt.Println()

	result, err := a.trainer().Train(ctx, rows, decision)
	if err != nil {
		return err
	}

	widths := []int{10, 12, 10}
	PrintTableHeader([]string{"Cluster", "Train Rows", "Features"}, widths)
	clusters := make([]int, 0, len(result.Rows))
	for m := range result.Rows {
		clusters = append(clusters, m)
	}
	sort.Ints(clusters)
	for _, m := range clusters {
		PrintTableRow([]string{strconv.Itoa(m), strconv.Itoa(result.Rows[m]), featureCount(result.Models, m)}, widths)
	}
	if len(result.Skipped) > 0 {
		PrintWarning(fmt.Sprintf("Skipped clusters (below %d rows): %v", a.strategy.Training.MinTrainRows, result.Skipped))
	}

	if trainDryRun {
		PrintWarning("Dry run: artifacts not saved")
		return nil
	}
	err = forecast.SaveArtifacts(a.cfg.Paths.ModelDir, result.Models, forecast.Manifest{
		StrategyID:   a.strategy.Meta.StrategyID,
		ConfigHash:   a.strategyHash,
		DecisionDate: formatDate(decision),
		TrainedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("%d models saved to %s", len(result.Models), a.cfg.Paths.ModelDir))
	return nil
}

func featureCount(models []*forecast.LinearModel, cluster int) string {
	for _, m := range models {
		if m.ClusterID == cluster {
			return strconv.Itoa(len(m.Features))
		}
	}
	return "-"
}
