package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "quantmon - NSE 레짐 기반 일일 트레이드 선정 파이프라인",
	Long: `quantmon Unified CLI

NSE F&O 종목 일봉으로 정제 → 레짐 태깅 → 피처 → 학습 → champion–challenger 선정까지.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant fetch --from 2025-12-01 --to 2025-12-05
  go run ./cmd/quant run --decision-date 2025-12-05
  go run ./cmd/quant performance --decision-date 2025-12-05
  go run ./cmd/quant api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (default: STRATEGY_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
