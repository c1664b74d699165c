package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/quantmon/internal/audit"
	"github.com/wonny/quantmon/internal/contracts"
)

// performanceCmd compares a trade sheet against the universe after the holding period
var performanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "트레이드 시트 사후 성과 점검",
	Long: `결정일 다음 영업일 진입, H 영업일 후 청산 기준으로
모델 종목 수익률을 전체 유니버스와 비교합니다.

결과:
  weekly_alpha_check_<exit>.csv
  model_stock_returns_<exit>.csv

Example:
  go run ./cmd/quant performance --decision-date 2025-12-05
  go run ./cmd/quant performance --decision-date 2025-12-05 --entry-date 2025-12-08`,
	RunE: runPerformance,
}

var (
	perfDecisionDate string
	perfEntryDate    string
	perfSource       string
)

func init() {
	rootCmd.AddCommand(performanceCmd)

	performanceCmd.Flags().StringVar(&perfDecisionDate, "decision-date", "", "결정일 (YYYY-MM-DD, 필수)")
	performanceCmd.Flags().StringVar(&perfEntryDate, "entry-date", "", "트레이드 시트 진입일 (기본: 결정일 다음 영업일)")
	performanceCmd.Flags().StringVar(&perfSource, "source", sourceCSV, "일봉 소스 (csv|db)")
	_ = performanceCmd.MarkFlagRequired("decision-date")
}

func runPerformance(cmd *cobra.Command, args []string) error {
	decision, err := parseDateFlag("decision-date", perfDecisionDate)
	if err != nil {
		return err
	}
	entry, err := parseDateFlag("entry-date", perfEntryDate)
	if err != nil {
		return err
	}
	if entry.IsZero() {
		entry = contracts.NextBusinessDay(decision)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	sheet, err := a.tradeSheets().GetTradeSheet(ctx, entry)
	if errors.Is(err, contracts.ErrNotFound) {
		return fmt.Errorf("no trade sheet for entry date %s", formatDate(entry))
	}
	if err != nil {
		return err
	}

	store, err := a.barStore(perfSource)
	if err != nil {
		return err
	}
	bars, err := store.LoadBars(ctx)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	report, err := audit.NewAnalyzer(a.strategy.Training.HoldingDays, a.log).Analyze(bars, sheet.Symbols(), decision)
	if err != nil {
		return err
	}

	files, err := audit.NewReportWriter(a.cfg.Paths.ResultsDir).Write(report)
	if err != nil {
		return err
	}

	PrintDoubleSeparator()
	fmt.Printf("  Performance check  %s → %s  (%d days)\n",
		formatDate(report.EntryDate), formatDate(report.ExitDate), report.HoldingDays)
	PrintSeparator()

	widths := []int{26, 12}
	PrintTableHeader([]string{"Metric", "Value"}, widths)
	for _, m := range report.Summary {
		PrintTableRow([]string{m.Name, formatMetric(m)}, widths)
	}
	fmt.Println()

	widths = []int{16, 12, 12, 10}
	PrintTableHeader([]string{"Symbol", "Entry", "Exit", "Return"}, widths)
	for _, r := range report.Model {
		PrintTableRow([]string{
			r.Symbol,
			strconv.FormatFloat(r.EntryPrice, 'f', 2, 64),
			strconv.FormatFloat(r.ExitPrice, 'f', 2, 64),
			formatPct(r.Return),
		}, widths)
	}
	PrintDoubleSeparator()

	for _, f := range files {
		PrintSuccess("Saved " + f)
	}
	return nil
}

func formatMetric(m audit.Metric) string {
	switch m.Name {
	case audit.MetricRankPercentile, audit.MetricUniverseWin, audit.MetricModelWin:
		return strconv.FormatFloat(m.Value, 'f', 4, 64)
	}
	return formatPct(m.Value)
}
