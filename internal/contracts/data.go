package contracts

import (
	"math"
	"sort"
	"strings"
	"time"
)

// DateLayout is the canonical date format on every wire/file boundary
const DateLayout = "2006-01-02"

// Missing is the value of an absent numeric field
var Missing = math.NaN()

// IsMissing reports whether v carries no usable value
func IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Day truncates t to its calendar date in UTC
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay compares calendar dates only
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// NextBusinessDay returns the first Monday–Friday date after d.
// Exchange holidays are not modelled.
func NextBusinessDay(d time.Time) time.Time {
	next := Day(d).AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Bar is one exchange trading record (NSE full bhavcopy row)
// ⭐ SSOT: 모든 스테이지가 공유하는 일봉 레코드
type Bar struct {
	Symbol      string    `json:"symbol"`
	Date        time.Time `json:"date"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Last        float64   `json:"last"`
	Close       float64   `json:"close"`
	AvgPrice    float64   `json:"avg_price"`
	TradedQty   float64   `json:"traded_qty"`
	Turnover    float64   `json:"turnover_lacs"`
	TradeCount  float64   `json:"trade_count"`
	DeliveryQty float64   `json:"delivery_qty"`
	DeliveryPct float64   `json:"delivery_pct"`
}

// MissingBar returns a bar with every numeric field missing
func MissingBar(symbol string, date time.Time) Bar {
	return Bar{
		Symbol: symbol, Date: date,
		Open: Missing, High: Missing, Low: Missing, Last: Missing,
		Close: Missing, AvgPrice: Missing, TradedQty: Missing, Turnover: Missing,
		TradeCount: Missing, DeliveryQty: Missing, DeliveryPct: Missing,
	}
}

// SymbolSeries is the ordered bar history of one symbol.
// Bars are strictly increasing by date.
type SymbolSeries struct {
	Symbol string
	Bars   []Bar
}

// Closes returns the close column of the series
func (s SymbolSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// GroupBySymbol splits bars into per-symbol series sorted by symbol.
// Each series is sorted by date and keeps the first bar seen for a date;
// the number of dropped duplicates is returned alongside.
func GroupBySymbol(bars []Bar) ([]SymbolSeries, int) {
	bySymbol := make(map[string][]Bar)
	for _, b := range bars {
		bySymbol[b.Symbol] = append(bySymbol[b.Symbol], b)
	}

	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	dupes := 0
	out := make([]SymbolSeries, 0, len(symbols))
	for _, s := range symbols {
		group := bySymbol[s]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Date.Before(group[j].Date)
		})

		uniq := group[:0:0]
		for _, b := range group {
			if n := len(uniq); n > 0 && SameDay(uniq[n-1].Date, b.Date) {
				dupes++
				continue
			}
			uniq = append(uniq, b)
		}
		out = append(out, SymbolSeries{Symbol: s, Bars: uniq})
	}
	return out, dupes
}

// AnomalyFlags are the per-bar outputs of the integrity classifier
type AnomalyFlags struct {
	Ret1             float64 `json:"ret1"`
	Ret2             float64 `json:"ret2"`
	AbnormalJump     bool    `json:"abnormal_jump"`
	PostStable       bool    `json:"post_stable"`
	IsCorporateEvent bool    `json:"is_corporate_event"`
	IsBadTick        bool    `json:"is_bad_tick"`
}

// SegmentKind tells whether a segment is a whole series or one side of a split
type SegmentKind string

const (
	SegmentFull SegmentKind = "FULL"
	SegmentPre  SegmentKind = "PRE"
	SegmentPost SegmentKind = "POST"
)

// Label suffixes appended to split symbols
const (
	PreSuffix  = "_PRE"
	PostSuffix = "_POST"
)

// SymbolSegment is a contiguous, cleaned slice of one symbol's history.
// Label is the original symbol, or symbol+"_PRE" / symbol+"_POST".
type SymbolSegment struct {
	Label      string      `json:"label"`
	BaseSymbol string      `json:"base_symbol"`
	Kind       SegmentKind `json:"kind"`
	Bars       []Bar       `json:"bars"`
}

// BaseSymbol strips a _PRE/_POST suffix from a segment label
func BaseSymbol(label string) string {
	if s, ok := strings.CutSuffix(label, PreSuffix); ok {
		return s
	}
	if s, ok := strings.CutSuffix(label, PostSuffix); ok {
		return s
	}
	return label
}

// UnsplitEvent is a corporate event that was detected but not acted on,
// either because the symbol is excluded or because an earlier event
// already split the series
type UnsplitEvent struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// CleaningReport summarises one classifier run
// ⭐ SSOT: S1 정합성 정제 결과 요약
type CleaningReport struct {
	SymbolsIn       int            `json:"symbols_in"`
	SegmentsOut     int            `json:"segments_out"`
	BarsIn          int            `json:"bars_in"`
	BarsOut         int            `json:"bars_out"`
	DuplicateBars   int            `json:"duplicate_bars"`
	BadTicksDropped int            `json:"bad_ticks_dropped"`
	CorporateEvents int            `json:"corporate_events"`
	SymbolsSplit    []string       `json:"symbols_split"`
	UnsplitEvents   []UnsplitEvent `json:"unsplit_events"`
}
