package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/quantmon/internal/brain"
	"github.com/wonny/quantmon/internal/s0_data/quality"
)

// cleanCmd runs only the integrity classifier
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "S1 데이터 정합성 판정만 실행",
	Long: `마스터 일봉에 배드틱/기업행위 판정을 적용하고 정제 리포트를 출력합니다.

Example:
  go run ./cmd/quant clean
  go run ./cmd/quant clean --save`,
	RunE: runClean,
}

var (
	cleanSource string
	cleanSave   bool
)

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringVar(&cleanSource, "source", sourceCSV, "일봉 소스 (csv|db)")
	cleanCmd.Flags().BoolVar(&cleanSave, "save", false, "정제 리포트 저장")
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.barStore(cleanSource)
	if err != nil {
		return err
	}

	ctx := context.Background()
	bars, err := store.LoadBars(ctx)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	result, err := a.classifier().Classify(ctx, bars)
	if err != nil {
		return err
	}

	fmt.Println("=== Integrity classification ===")
	printCleaningReport(result.Report)

	if !cleanSave {
		return nil
	}
	runID := brain.GenerateRunID(time.Now())
	if err := a.cleaningReports().SaveReport(ctx, &quality.StoredReport{RunID: runID, Report: result.Report}); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	PrintSuccess(fmt.Sprintf("Cleaning report saved (%s)", runID))
	return nil
}
