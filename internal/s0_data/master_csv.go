package s0_data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/pkg/logger"
)

// NSEDateLayout is the bhavcopy DATE1 format (05-Dec-2025)
const NSEDateLayout = "02-Jan-2006"

// Master CSV column names (NSE full bhavcopy)
const (
	ColSymbol      = "SYMBOL"
	ColSeries      = "SERIES"
	ColDate1       = "DATE1"
	ColDate        = "DATE"
	ColOpen        = "OPEN_PRICE"
	ColHigh        = "HIGH_PRICE"
	ColLow         = "LOW_PRICE"
	ColLast        = "LAST_PRICE"
	ColClose       = "CLOSE_PRICE"
	ColAvg         = "AVG_PRICE"
	ColTradedQty   = "TTL_TRD_QNTY"
	ColTurnover    = "TURNOVER_LACS"
	ColTrades      = "NO_OF_TRADES"
	ColDeliveryQty = "DELIV_QTY"
	ColDeliveryPct = "DELIV_PER"
)

// EquitySeries is the only SERIES value kept when the column is present
const EquitySeries = "EQ"

// requiredColumns must be present in every master file (date is checked separately)
var requiredColumns = []string{
	ColSymbol, ColOpen, ColHigh, ColLow, ColClose, ColAvg, ColTradedQty, ColDeliveryPct,
}

// masterColumns is the column order WriteMaster emits
var masterColumns = []string{
	ColSymbol, ColSeries, ColDate1, ColOpen, ColHigh, ColLow, ColLast, ColClose,
	ColAvg, ColTradedQty, ColTurnover, ColTrades, ColDeliveryQty, ColDeliveryPct,
}

var dateLayouts = []string{
	NSEDateLayout,
	contracts.DateLayout,
	"02-01-2006",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// CSVStore reads bars from the master CSV file
// ⭐ SSOT: 마스터 CSV 읽기/쓰기는 이 파일에서만
type CSVStore struct {
	path   string
	logger *logger.Logger
}

// NewCSVStore creates a store over the master CSV at path
func NewCSVStore(path string, log *logger.Logger) *CSVStore {
	return &CSVStore{
		path:   path,
		logger: log.WithField("module", "master_csv"),
	}
}

// Path returns the master file location
func (s *CSVStore) Path() string {
	return s.path
}

// LoadBars implements contracts.BarStore
func (s *CSVStore) LoadBars(ctx context.Context) ([]contracts.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open master csv: %w", err)
	}
	defer f.Close()

	bars, err := ParseMaster(f, filepath.Base(s.path))
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"path": s.path,
		"bars": len(bars),
	}).Info("Master CSV loaded")

	return bars, nil
}

// header maps upper-cased column names to their index
type header map[string]int

func parseHeader(record []string) header {
	h := make(header, len(record))
	for i, name := range record {
		name = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	return h
}

func (h header) get(record []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (h header) number(record []string, col string) float64 {
	if _, ok := h[col]; !ok {
		return contracts.Missing
	}
	return ParseNumber(h.get(record, col))
}

// ParseMaster decodes bhavcopy-shaped CSV into bars.
// Headers are trimmed and upper-cased; DATE1 is preferred over DATE.
// A missing required column or an unparseable date is a DataIntegrityError.
func ParseMaster(r io.Reader, source string) ([]contracts.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &contracts.DataIntegrityError{Source: source, Column: ColSymbol, Reason: "empty file"}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := parseHeader(first)

	dateCol := ColDate1
	if _, ok := h[ColDate1]; !ok {
		dateCol = ColDate
	}
	if _, ok := h[dateCol]; !ok {
		return nil, &contracts.DataIntegrityError{Source: source, Column: ColDate1, Reason: "missing required column"}
	}
	for _, col := range requiredColumns {
		if _, ok := h[col]; !ok {
			return nil, &contracts.DataIntegrityError{Source: source, Column: col, Reason: "missing required column"}
		}
	}
	_, hasSeries := h[ColSeries]

	var bars []contracts.Bar
	line := 1
	for {
		record, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &contracts.DataIntegrityError{Source: source, Line: line, Column: "*", Reason: err.Error()}
		}

		symbol := strings.ToUpper(h.get(record, ColSymbol))
		if symbol == "" {
			continue
		}
		if hasSeries && !strings.EqualFold(h.get(record, ColSeries), EquitySeries) {
			continue
		}

		raw := h.get(record, dateCol)
		date, ok := ParseDate(raw)
		if !ok {
			return nil, &contracts.DataIntegrityError{
				Source: source, Line: line, Column: dateCol,
				Reason: fmt.Sprintf("unparseable date %q", raw),
			}
		}

		bars = append(bars, contracts.Bar{
			Symbol:      symbol,
			Date:        date,
			Open:        h.number(record, ColOpen),
			High:        h.number(record, ColHigh),
			Low:         h.number(record, ColLow),
			Last:        h.number(record, ColLast),
			Close:       h.number(record, ColClose),
			AvgPrice:    h.number(record, ColAvg),
			TradedQty:   h.number(record, ColTradedQty),
			Turnover:    h.number(record, ColTurnover),
			TradeCount:  h.number(record, ColTrades),
			DeliveryQty: h.number(record, ColDeliveryQty),
			DeliveryPct: h.number(record, ColDeliveryPct),
		})
	}

	return bars, nil
}

// ParseDate accepts the date layouts seen in bhavcopy files
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return contracts.Day(t), true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a numeric cell. Thousands separators, percent signs
// and blanks are tolerated; anything unparseable is Missing.
func ParseNumber(s string) float64 {
	s = strings.NewReplacer(",", "", "%", "", " ", "").Replace(s)
	if s == "" || s == "-" {
		return contracts.Missing
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return contracts.Missing
	}
	return v
}

func formatNumber(v float64) string {
	if contracts.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SortBars orders bars by (symbol, date)
func SortBars(bars []contracts.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		if bars[i].Symbol != bars[j].Symbol {
			return bars[i].Symbol < bars[j].Symbol
		}
		return bars[i].Date.Before(bars[j].Date)
	})
}

// WriteMaster encodes bars in master column order with NSE dates
func WriteMaster(w io.Writer, bars []contracts.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(masterColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, b := range bars {
		record := []string{
			b.Symbol,
			EquitySeries,
			b.Date.Format(NSEDateLayout),
			formatNumber(b.Open),
			formatNumber(b.High),
			formatNumber(b.Low),
			formatNumber(b.Last),
			formatNumber(b.Close),
			formatNumber(b.AvgPrice),
			formatNumber(b.TradedQty),
			formatNumber(b.Turnover),
			formatNumber(b.TradeCount),
			formatNumber(b.DeliveryQty),
			formatNumber(b.DeliveryPct),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write %s: %w", b.Symbol, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveMaster atomically replaces the master file with bars
func (s *CSVStore) SaveMaster(bars []contracts.Bar) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create master dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".master-*.csv")
	if err != nil {
		return fmt.Errorf("create temp master: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteMaster(tmp, bars); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp master: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace master: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"path": s.path,
		"bars": len(bars),
	}).Info("Master CSV written")
	return nil
}

// DateRange returns the first and last date in the master file
func (s *CSVStore) DateRange(ctx context.Context) (time.Time, time.Time, error) {
	bars, err := s.LoadBars(ctx)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	first, last, ok := BarDateRange(bars)
	if !ok {
		return time.Time{}, time.Time{}, contracts.ErrNotFound
	}
	return first, last, nil
}

// BarDateRange returns min and max bar dates
func BarDateRange(bars []contracts.Bar) (time.Time, time.Time, bool) {
	if len(bars) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last := bars[0].Date, bars[0].Date
	for _, b := range bars[1:] {
		if b.Date.Before(first) {
			first = b.Date
		}
		if b.Date.After(last) {
			last = b.Date
		}
	}
	return first, last, true
}
