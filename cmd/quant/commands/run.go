package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/quantmon/internal/brain"
	"github.com/wonny/quantmon/internal/contracts"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "전체 파이프라인 실행 (트레이드 시트 생성)",
	Long: `파이프라인을 순차적으로 실행합니다.

S0_BARS → S1_INTEGRITY → S2_REGIME → S3_FEATURES → S4_TRAINING → S5_SELECTION → S6_PERSIST

각 단계:
- S0: 마스터 일봉 로드 (CSV 또는 DB)
- S1: 배드틱 제거, 기업행위 전후 세그먼트 분리
- S2: 레짐 테이블 로드
- S3: 피처 계산 + 레짐/매크로 태깅
- S4: macro 클러스터별 재학습 (--retrain 일 때만)
- S5: 클러스터별 top-K, champion 선정
- S6: 트레이드 시트/정제 리포트 저장 (--dry-run 이면 생략)

Example:
  go run ./cmd/quant run --decision-date 2025-12-05
  go run ./cmd/quant run --decision-date 2025-12-05 --entry-date 2025-12-08 --retrain
  go run ./cmd/quant run --decision-date 2025-12-05 --source db --dry-run`,
	RunE: runPipeline,
}

var (
	runDecisionDate string
	runEntryDate    string
	runRetrain      bool
	runDryRun       bool
	runSource       string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDecisionDate, "decision-date", "", "결정일 (YYYY-MM-DD, 필수)")
	runCmd.Flags().StringVar(&runEntryDate, "entry-date", "", "진입일 (YYYY-MM-DD, 기본: 결정일 다음 영업일)")
	runCmd.Flags().BoolVar(&runRetrain, "retrain", false, "저장된 모델 대신 재학습")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "결과 저장 생략")
	runCmd.Flags().StringVar(&runSource, "source", sourceCSV, "일봉 소스 (csv|db)")
	_ = runCmd.MarkFlagRequired("decision-date")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	decision, err := parseDateFlag("decision-date", runDecisionDate)
	if err != nil {
		return err
	}
	entry, err := parseDateFlag("entry-date", runEntryDate)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	orch, err := a.orchestrator(runSource)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("=== quantmon pipeline ===")
	fmt.Printf("\n📅 Decision Date: %s\n", formatDate(decision))
	fmt.Printf("🧠 Strategy: %s (%s)\n", a.strategy.Meta.StrategyID, a.strategyHash[:12])
	fmt.Printf("🔧 Retrain: %v  Dry Run: %v  Source: %s\n\n", runRetrain, runDryRun, runSource)

	result, err := orch.Run(ctx, brain.RunConfig{
		RunID:        brain.GenerateRunID(time.Now()),
		DecisionDate: decision,
		EntryDate:    entry,
		Retrain:      runRetrain,
		DryRun:       runDryRun,
	})
	if result != nil {
		printStageSummary(result)
	}
	if err != nil {
		return err
	}

	if result.Cleaning != nil {
		printCleaningReport(*result.Cleaning)
	}
	printTradeSheet(result.Sheet)
	if runDryRun {
		PrintWarning("Dry run: nothing was saved")
	} else {
		PrintSuccess(fmt.Sprintf("Trade sheet saved for %s", formatDate(result.EntryDate)))
	}
	return nil
}

func printStageSummary(result *brain.RunResult) {
	fmt.Printf("Run %s\n", result.RunID)
	widths := []int{14, 10}
	PrintTableHeader([]string{"Stage", "Duration"}, widths)
	for _, stage := range contracts.AllStages() {
		d, ok := result.StageDurations[stage.String()]
		if !ok {
			continue
		}
		PrintTableRow([]string{stage.String(), d.Round(time.Millisecond).String()}, widths)
	}
	fmt.Println()
}
