package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/quantmon/internal/api"
	"github.com/wonny/quantmon/internal/api/handlers"
	"github.com/wonny/quantmon/pkg/metrics"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `저장된 트레이드 시트와 정제 리포트를 조회하는 REST API 서버를 시작합니다.

Endpoints:
  GET  /health                   - Health check
  GET  /metrics                  - Prometheus metrics (METRICS_ENABLED)
  GET  /api/trades/latest        - 최신 트레이드 시트
  GET  /api/trades/{entry_date}  - 진입일별 트레이드 시트
  GET  /api/data/range           - 일봉 날짜 범위
  GET  /api/cleaning/latest      - 최신 정제 리포트

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080 --source db`,
	RunE: runAPIServer,
}

var (
	apiPort   string
	apiSource string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT 환경변수)")
	apiCmd.Flags().StringVar(&apiSource, "source", sourceCSV, "일봉 소스 (csv|db)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== quantmon API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	bars, err := a.barStore(apiSource)
	if err != nil {
		return err
	}
	rangeSource, ok := bars.(handlers.RangeSource)
	if !ok {
		return fmt.Errorf("bar source %q does not report a date range", apiSource)
	}

	var m *metrics.Recorder
	if a.cfg.MetricsEnabled {
		m = a.metrics
	}
	router := api.NewRouter(
		handlers.NewTradeHandler(a.tradeSheets(), a.log),
		handlers.NewDataHandler(rangeSource, a.cleaningReports(), a.log),
		m,
		a.log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := api.New(a.cfg, a.log, router).Run(ctx); err != nil {
		return err
	}
	a.log.Info("Server stopped")
	return nil
}
