package audit

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/pkg/logger"
)

// ErrDecisionNotInCalendar is returned when the decision date is not a trading day of the master
var ErrDecisionNotInCalendar = errors.New("decision date not found in trading calendar")

// Metric names of the weekly summary, in output order
const (
	MetricUniverseMean   = "Universe Mean Return"
	MetricUniverseMedian = "Universe Median Return"
	MetricModelMean      = "Model Mean Return"
	MetricModelMedian    = "Model Median Return"
	MetricAlphaMean      = "Alpha (Mean)"
	MetricAlphaMedian    = "Alpha (Median)"
	MetricUniverseWin    = "Universe Win Rate"
	MetricModelWin       = "Model Win Rate"
	MetricRankPercentile = "Model Rank Percentile"
)

// Metric is one summary line
type Metric struct {
	Name  string  `json:"metric"`
	Value float64 `json:"value"`
}

// SymbolReturn is the holding-period return of one base symbol
type SymbolReturn struct {
	Symbol     string  `json:"symbol"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Return     float64 `json:"return"`
}

// PerformanceReport compares the model's picks with the whole universe
type PerformanceReport struct {
	DecisionDate time.Time      `json:"decision_date"`
	EntryDate    time.Time      `json:"entry_date"`
	ExitDate     time.Time      `json:"exit_date"`
	HoldingDays  int            `json:"holding_days"`
	Summary      []Metric       `json:"summary"`
	Model        []SymbolReturn `json:"model"`
	Universe     []SymbolReturn `json:"universe"`
}

// Value looks up a summary metric by name
func (r *PerformanceReport) Value(name string) (float64, bool) {
	for _, m := range r.Summary {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// Analyzer implements the weekly model-vs-universe check
// ⭐ SSOT: 주간 성과 검증 로직은 여기서만
type Analyzer struct {
	holdingDays int
	logger      *logger.Logger
}

// NewAnalyzer creates a new performance analyzer
func NewAnalyzer(holdingDays int, log *logger.Logger) *Analyzer {
	return &Analyzer{holdingDays: holdingDays, logger: log}
}

// Analyze prices the model's symbols and the universe from entry (the trading
// day after the decision date) to exit (holdingDays trading days after it).
func (a *Analyzer) Analyze(bars []contracts.Bar, modelSymbols []string, decision time.Time) (*PerformanceReport, error) {
	calendar := TradingCalendar(bars)

	// 결정일 위치
	idx := sort.Search(len(calendar), func(i int) bool { return !calendar[i].Before(contracts.Day(decision)) })
	if idx == len(calendar) || !contracts.SameDay(calendar[idx], decision) {
		return nil, fmt.Errorf("%w: %s", ErrDecisionNotInCalendar, decision.Format(contracts.DateLayout))
	}
	if idx+a.holdingDays >= len(calendar) {
		return nil, fmt.Errorf("exit date not yet available: need %d trading days after %s, have %d",
			a.holdingDays, decision.Format(contracts.DateLayout), len(calendar)-idx-1)
	}

	report := &PerformanceReport{
		DecisionDate: calendar[idx],
		EntryDate:    calendar[idx+1],
		ExitDate:     calendar[idx+a.holdingDays],
		HoldingDays:  a.holdingDays,
	}

	entry := pricesOn(bars, report.EntryDate)
	exit := pricesOn(bars, report.ExitDate)

	picked := make(map[string]bool, len(modelSymbols))
	for _, s := range modelSymbols {
		picked[contracts.BaseSymbol(s)] = true
	}

	for sym, p0 := range entry {
		p1, ok := exit[sym]
		if !ok {
			continue
		}
		r := SymbolReturn{Symbol: sym, EntryPrice: p0, ExitPrice: p1, Return: p1/p0 - 1}
		report.Universe = append(report.Universe, r)
		if picked[sym] {
			report.Model = append(report.Model, r)
		}
	}
	sortReturns(report.Universe)
	sortReturns(report.Model)

	report.Summary = summarize(returnsOf(report.Universe), returnsOf(report.Model))

	a.logger.WithFields(map[string]interface{}{
		"decision_date": report.DecisionDate.Format(contracts.DateLayout),
		"exit_date":     report.ExitDate.Format(contracts.DateLayout),
		"universe":      len(report.Universe),
		"model":         len(report.Model),
	}).Info("Performance check completed")

	return report, nil
}

// TradingCalendar returns the sorted unique bar dates
func TradingCalendar(bars []contracts.Bar) []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, b := range bars {
		d := contracts.Day(b.Date)
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// pricesOn averages AVG_PRICE per base symbol on one date
func pricesOn(bars []contracts.Bar, date time.Time) map[string]float64 {
	sum := make(map[string]float64)
	n := make(map[string]int)
	for _, b := range bars {
		if !contracts.SameDay(b.Date, date) || contracts.IsMissing(b.AvgPrice) {
			continue
		}
		base := contracts.BaseSymbol(b.Symbol)
		sum[base] += b.AvgPrice
		n[base]++
	}
	out := make(map[string]float64, len(sum))
	for k, v := range sum {
		out[k] = v / float64(n[k])
	}
	return out
}

func summarize(universe, model []float64) []Metric {
	uMean, uMed := mean(universe), median(universe)
	mMean, mMed := mean(model), median(model)

	below := math.NaN()
	if len(universe) > 0 {
		cnt := 0
		for _, r := range universe {
			if r < mMean {
				cnt++
			}
		}
		below = float64(cnt) / float64(len(universe))
	}

	return []Metric{
		{MetricUniverseMean, round4(uMean)},
		{MetricUniverseMedian, round4(uMed)},
		{MetricModelMean, round4(mMean)},
		{MetricModelMedian, round4(mMed)},
		{MetricAlphaMean, round4(mMean - uMean)},
		{MetricAlphaMedian, round4(mMed - uMed)},
		{MetricUniverseWin, round4(winRate(universe))},
		{MetricModelWin, round4(winRate(model))},
		{MetricRankPercentile, round4(below)},
	}
}

func returnsOf(rs []SymbolReturn) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.Return
	}
	return out
}

func sortReturns(rs []SymbolReturn) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Symbol < rs[j].Symbol })
}

// mean/median of an empty set are NaN
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	c := append([]float64(nil), xs...)
	sort.Float64s(c)
	m := len(c) / 2
	if len(c)%2 == 1 {
		return c[m]
	}
	return (c[m-1] + c[m]) / 2
}

func winRate(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	w := 0
	for _, x := range xs {
		if x > 0 {
			w++
		}
	}
	return float64(w) / float64(len(xs))
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
