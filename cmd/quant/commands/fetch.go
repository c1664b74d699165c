package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/internal/s0_data"
)

// fetchCmd downloads bhavcopies and grows the master CSV
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "NSE bhavcopy 다운로드 및 마스터 CSV 병합",
	Long: `지정 기간의 NSE bhavcopy 를 다운로드해 live 디렉터리에 저장하고
마스터 CSV 에 병합합니다. 휴장일은 NO DATA 로 표시됩니다.

Example:
  go run ./cmd/quant fetch --from 2025-12-01 --to 2025-12-05
  go run ./cmd/quant fetch --to 2025-12-05 --sync-db
  go run ./cmd/quant fetch range`,
	RunE: runFetch,
}

var fetchRangeCmd = &cobra.Command{
	Use:   "range",
	Short: "마스터 CSV 의 날짜 범위 확인",
	RunE:  runFetchRange,
}

var (
	fetchFrom   string
	fetchTo     string
	fetchSyncDB bool
)

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.AddCommand(fetchRangeCmd)

	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "시작일 (YYYY-MM-DD, 기본: 마스터 마지막 날 다음날)")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "종료일 (YYYY-MM-DD, 필수)")
	fetchCmd.Flags().BoolVar(&fetchSyncDB, "sync-db", false, "병합 후 마스터 일봉을 DB 에 동기화")
	_ = fetchCmd.MarkFlagRequired("to")
}

func runFetch(cmd *cobra.Command, args []string) error {
	from, err := parseDateFlag("from", fetchFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", fetchTo)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if fetchSyncDB && a.db == nil {
		return errors.New("--sync-db requires DB_ENABLED=true")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := a.collector()
	if from.IsZero() {
		_, last, err := c.MasterRange(ctx)
		if err != nil {
			return fmt.Errorf("--from omitted and master range unavailable: %w", err)
		}
		from = last.AddDate(0, 0, 1)
	}

	fmt.Println("=== NSE bhavcopy fetch ===")
	PrintKeyValue("From", formatDate(from), 14)
	PrintKeyValue("To", formatDate(to), 14)
	PrintKeyValue("Live Dir", a.cfg.Paths.LiveDir, 14)
	fmt.Println()

	result, err := c.Collect(ctx, from, to)
	if result != nil {
		printCollectResult(result.Downloaded, result.NoData, result.Failed, result.BarsAdded)
	}
	if err != nil {
		return err
	}

	if fetchSyncDB {
		bars, err := a.masterStore().LoadBars(ctx)
		if err != nil {
			return fmt.Errorf("load master: %w", err)
		}
		if err := s0_data.NewBarRepository(a.db.Pool).SaveBatch(ctx, bars); err != nil {
			return fmt.Errorf("sync bars to db: %w", err)
		}
		PrintSuccess(fmt.Sprintf("%d bars synced to database", len(bars)))
	}
	return nil
}

func printCollectResult(downloaded []string, noData []time.Time, failed map[string]error, added int) {
	PrintKeyValue("Downloaded", strconv.Itoa(len(downloaded)), 14)
	PrintKeyValue("Bars Added", strconv.Itoa(added), 14)

	if len(noData) > 0 {
		days := make([]string, 0, len(noData))
		for _, d := range noData {
			days = append(days, formatDate(d)+" ("+d.Weekday().String()[:3]+")")
		}
		fmt.Println("   NO DATA (holiday or weekend):")
		PrintList(days)
	}
	if len(failed) > 0 {
		keys := make([]string, 0, len(failed))
		for k := range failed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, k+": "+failed[k].Error())
		}
		fmt.Println("   Failed:")
		PrintList(lines)
		PrintWarning(fmt.Sprintf("%d days failed, rerun fetch to retry", len(failed)))
		return
	}
	PrintSuccess("Fetch completed")
}

func runFetchRange(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	first, last, err := a.masterStore().DateRange(context.Background())
	if errors.Is(err, contracts.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		PrintWarning("Master CSV is empty: " + a.cfg.Paths.MasterCSV)
		return nil
	}
	if err != nil {
		return err
	}

	PrintKeyValue("Master", a.cfg.Paths.MasterCSV, 14)
	PrintKeyValue("First", formatDate(first), 14)
	PrintKeyValue("Last", formatDate(last), 14)
	PrintKeyValue("Next Fetch", formatDate(last.AddDate(0, 0, 1)), 14)
	return nil
}
