package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wonny/quantmon/internal/contracts"
)

// ReportWriter writes weekly check outputs under the results directory
type ReportWriter struct {
	dir string
}

// NewReportWriter creates a writer rooted at dir
func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir}
}

// SummaryFile is weekly_alpha_check_<exit>.csv
func (w *ReportWriter) SummaryFile(r *PerformanceReport) string {
	return filepath.Join(w.dir, "weekly_alpha_check_"+r.ExitDate.Format(contracts.DateLayout)+".csv")
}

// ModelReturnsFile is model_stock_returns_<exit>.csv
func (w *ReportWriter) ModelReturnsFile(r *PerformanceReport) string {
	return filepath.Join(w.dir, "model_stock_returns_"+r.ExitDate.Format(contracts.DateLayout)+".csv")
}

// Write saves both CSV files and returns their paths
func (w *ReportWriter) Write(r *PerformanceReport) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}

	summary := w.SummaryFile(r)
	if err := writeFile(summary, func(out io.Writer) error { return WriteSummary(out, r.Summary) }); err != nil {
		return nil, err
	}
	returns := w.ModelReturnsFile(r)
	if err := writeFile(returns, func(out io.Writer) error { return WriteReturns(out, r.Model) }); err != nil {
		return nil, err
	}
	return []string{summary, returns}, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// WriteSummary writes Metric,Value rows
func WriteSummary(w io.Writer, metrics []Metric) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Metric", "Value"})
	for _, m := range metrics {
		_ = cw.Write([]string{m.Name, strconv.FormatFloat(m.Value, 'f', -1, 64)})
	}
	cw.Flush()
	return cw.Error()
}

// WriteReturns writes one row per model symbol
func WriteReturns(w io.Writer, rs []SymbolReturn) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"BASE_SYMBOL", "entry_price", "exit_price", "return_5d"})
	for _, r := range rs {
		_ = cw.Write([]string{
			r.Symbol,
			strconv.FormatFloat(r.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(r.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(r.Return, 'f', -1, 64),
		})
	}
	cw.Flush()
	return cw.Error()
}
