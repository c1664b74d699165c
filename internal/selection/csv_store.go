package selection

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/quantmon/internal/contracts"
)

const (
	tradeFilePrefix = "LIVE_TRADES_"
	sheetFilePrefix = "trade_sheet_"
)

var tradeColumns = []string{"symbol", "score", "weight", "entry_date", "cluster_id"}

// CSVStore writes trade sheets to the results directory.
// LIVE_TRADES_<entry>.csv carries the rows; trade_sheet_<entry>.json the
// full sheet including candidates and skipped clusters.
type CSVStore struct {
	dir string
}

// NewCSVStore creates a store rooted at dir
func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{dir: dir}
}

// TradeFile returns the CSV path for an entry date
func (s *CSVStore) TradeFile(entry time.Time) string {
	return filepath.Join(s.dir, tradeFilePrefix+entry.Format(contracts.DateLayout)+".csv")
}

func (s *CSVStore) sheetFile(entry time.Time) string {
	return filepath.Join(s.dir, sheetFilePrefix+entry.Format(contracts.DateLayout)+".json")
}

// SaveTradeSheet implements contracts.TradeSheetStore
func (s *CSVStore) SaveTradeSheet(ctx context.Context, sheet *contracts.TradeSheet) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	f, err := os.Create(s.TradeFile(sheet.EntryDate))
	if err != nil {
		return fmt.Errorf("create trade file: %w", err)
	}
	if err := WriteTradeCSV(f, sheet); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close trade file: %w", err)
	}

	data, err := json.MarshalIndent(sheet, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trade sheet: %w", err)
	}
	if err := os.WriteFile(s.sheetFile(sheet.EntryDate), data, 0o644); err != nil {
		return fmt.Errorf("write trade sheet: %w", err)
	}
	return nil
}

// GetTradeSheet implements contracts.TradeSheetStore
func (s *CSVStore) GetTradeSheet(ctx context.Context, entry time.Time) (*contracts.TradeSheet, error) {
	entry = contracts.Day(entry)

	data, err := os.ReadFile(s.sheetFile(entry))
	if err == nil {
		var sheet contracts.TradeSheet
		if err := json.Unmarshal(data, &sheet); err != nil {
			return nil, fmt.Errorf("parse trade sheet: %w", err)
		}
		return &sheet, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read trade sheet: %w", err)
	}

	// JSON 이 없으면 CSV 만으로 복원 (외부에서 받은 파일)
	f, err := os.Open(s.TradeFile(entry))
	if errors.Is(err, os.ErrNotExist) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open trade file: %w", err)
	}
	defer f.Close()

	rows, err := ReadTradeCSV(f)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].EntryDate.IsZero() {
			rows[i].EntryDate = entry
		}
	}
	sheet := &contracts.TradeSheet{EntryDate: entry, Rows: rows}
	if len(rows) > 0 {
		sheet.ClusterID = rows[0].ClusterID
	}
	return sheet, nil
}

// LatestTradeSheet implements contracts.TradeSheetStore
func (s *CSVStore) LatestTradeSheet(ctx context.Context) (*contracts.TradeSheet, error) {
	dates, err := s.EntryDates()
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, contracts.ErrNotFound
	}
	return s.GetTradeSheet(ctx, dates[len(dates)-1])
}

// EntryDates lists stored entry dates ascending
func (s *CSVStore) EntryDates() ([]time.Time, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read results dir: %w", err)
	}

	var dates []time.Time
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, tradeFilePrefix) || !strings.HasSuffix(name, ".csv") {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, tradeFilePrefix), ".csv")
		d, err := time.Parse(contracts.DateLayout, raw)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// WriteTradeCSV writes symbol,score,weight,entry_date,cluster_id rows
func WriteTradeCSV(w io.Writer, sheet *contracts.TradeSheet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range sheet.Rows {
		rec := []string{
			r.Symbol,
			strconv.FormatFloat(r.Score, 'f', -1, 64),
			strconv.FormatFloat(r.Weight, 'f', -1, 64),
			r.EntryDate.Format(contracts.DateLayout),
			strconv.Itoa(r.ClusterID),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", r.Symbol, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// column aliases accepted by ReadTradeCSV; the first name is the one WriteTradeCSV emits
var tradeColumnAliases = map[string][]string{
	"symbol":     {"symbol"},
	"score":      {"score", "pred"},
	"weight":     {"weight"},
	"entry_date": {"entry_date"},
	"cluster_id": {"cluster_id", "cluster"},
}

// ReadTradeCSV parses a trade CSV. Header names are case-insensitive and the
// legacy names pred/cluster are accepted for score/cluster_id.
// Unparseable score or weight cells become Missing; an unparseable or empty
// cluster id is a DataIntegrityError.
func ReadTradeCSV(r io.Reader) ([]contracts.TradeRow, error) {
	cr := csv.NewReader(r)
	head, err := cr.Read()
	if err != nil {
		return nil, &contracts.DataIntegrityError{Source: "trade csv", Column: "symbol", Reason: "missing header"}
	}
	raw := make(map[string]int, len(head))
	for i, h := range head {
		raw[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idx := make(map[string]int, len(tradeColumnAliases))
	for col, names := range tradeColumnAliases {
		for _, name := range names {
			if i, ok := raw[name]; ok {
				idx[col] = i
				break
			}
		}
	}
	for _, col := range []string{"symbol", "cluster_id"} {
		if _, ok := idx[col]; !ok {
			return nil, &contracts.DataIntegrityError{Source: "trade csv", Column: col, Reason: "missing required column"}
		}
	}

	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []contracts.TradeRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &contracts.DataIntegrityError{Source: "trade csv", Line: line, Column: "*", Reason: err.Error()}
		}

		cluster, err := parseClusterID(field(rec, "cluster_id"))
		if err != nil {
			return nil, &contracts.DataIntegrityError{Source: "trade csv", Line: line, Column: "cluster_id", Reason: err.Error()}
		}
		row := contracts.TradeRow{
			Symbol:    field(rec, "symbol"),
			Score:     parseScore(field(rec, "score")),
			Weight:    parseScore(field(rec, "weight")),
			ClusterID: cluster,
		}
		if d, err := time.Parse(contracts.DateLayout, field(rec, "entry_date")); err == nil {
			row.EntryDate = d
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseScore returns Missing for empty or unparseable cells
func parseScore(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return contracts.Missing
	}
	return v
}

// parseClusterID accepts integral floats ("1.0") as written by pandas
func parseClusterID(s string) (int, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("invalid cluster id %q", s)
	}
	return int(v), nil
}
