package quality

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/internal/strategyconfig"
	"github.com/wonny/quantmon/pkg/logger"
	"github.com/wonny/quantmon/pkg/metrics"
)

// Policy holds the classifier thresholds
type Policy struct {
	AbnormalRet1     float64 // |ret1| above this is an abnormal jump
	AbnormalRet2     float64 // |ret2| above this is an abnormal jump
	StabilityBand    float64 // post-jump closes must stay strictly inside ±band of the base
	StabilityWindow  int     // number of post-jump closes checked
	BadTickSpike     float64
	BadTickReversion float64
	SegmentGap       int // bars discarded on each side of an event
	ExcludeFromSplit []string
}

// DefaultPolicy returns the production thresholds
func DefaultPolicy() Policy {
	return Policy{
		AbnormalRet1:     0.40,
		AbnormalRet2:     0.60,
		StabilityBand:    0.10,
		StabilityWindow:  5,
		BadTickSpike:     0.80,
		BadTickReversion: 0.10,
		SegmentGap:       10,
		ExcludeFromSplit: []string{"BRITANNIA"},
	}
}

// PolicyFromConfig maps the strategy file's integrity section
func PolicyFromConfig(c strategyconfig.Integrity) Policy {
	return Policy{
		AbnormalRet1:     c.AbnormalRet1,
		AbnormalRet2:     c.AbnormalRet2,
		StabilityBand:    c.StabilityBand,
		StabilityWindow:  c.StabilityWindow,
		BadTickSpike:     c.BadTickSpike,
		BadTickReversion: c.BadTickReversion,
		SegmentGap:       c.SegmentGap,
		ExcludeFromSplit: append([]string(nil), c.ExcludeFromSplit...),
	}
}

// Unsplit reasons recorded in the cleaning report
const (
	ReasonExcluded        = "excluded"
	ReasonSubsequentEvent = "subsequent_event"
)

// Classifier removes bad ticks and splits symbols around corporate events
// ⭐ SSOT: S1 데이터 정합성 판정은 여기서만
type Classifier struct {
	policy  Policy
	exclude map[string]bool
	workers int
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// CleaningResult is the classifier output: segments plus a run summary
type CleaningResult struct {
	Segments []contracts.SymbolSegment
	Report   contracts.CleaningReport
}

// NewClassifier creates a classifier running up to workers symbols at once
func NewClassifier(policy Policy, workers int, log *logger.Logger) *Classifier {
	if workers < 1 {
		workers = 1
	}
	exclude := make(map[string]bool, len(policy.ExcludeFromSplit))
	for _, s := range policy.ExcludeFromSplit {
		exclude[s] = true
	}
	return &Classifier{
		policy:  policy,
		exclude: exclude,
		workers: workers,
		logger:  log,
	}
}

// WithMetrics attaches a metrics recorder
func (c *Classifier) WithMetrics(m *metrics.Recorder) *Classifier {
	c.metrics = m
	return c
}

// Policy returns the active thresholds
func (c *Classifier) Policy() Policy {
	return c.policy
}

// symbolOutcome is the per-symbol result written by one worker
type symbolOutcome struct {
	segments []contracts.SymbolSegment
	badTicks int
	events   int
	split    bool
	unsplit  []contracts.UnsplitEvent
}

// Classify cleans every symbol independently and concatenates the segments.
// Segments come out ordered by symbol, PRE before POST.
func (c *Classifier) Classify(ctx context.Context, bars []contracts.Bar) (*CleaningResult, error) {
	series, dupes := contracts.GroupBySymbol(bars)
	outcomes := make([]symbolOutcome, len(series))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i := range series {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = c.classifySymbol(series[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	result := &CleaningResult{
		Report: contracts.CleaningReport{
			SymbolsIn:     len(series),
			BarsIn:        len(bars),
			DuplicateBars: dupes,
			SymbolsSplit:  []string{},
			UnsplitEvents: []contracts.UnsplitEvent{},
		},
	}

	for i, o := range outcomes {
		result.Segments = append(result.Segments, o.segments...)
		result.Report.BadTicksDropped += o.badTicks
		result.Report.CorporateEvents += o.events
		result.Report.UnsplitEvents = append(result.Report.UnsplitEvents, o.unsplit...)
		if o.split {
			result.Report.SymbolsSplit = append(result.Report.SymbolsSplit, series[i].Symbol)
		}
		for _, seg := range o.segments {
			result.Report.BarsOut += len(seg.Bars)
		}
	}
	result.Report.SegmentsOut = len(result.Segments)

	if c.metrics != nil {
		c.metrics.RecordBarsDropped("bad_tick", result.Report.BadTicksDropped)
		c.metrics.RecordBarsDropped("duplicate", dupes)
		for range result.Report.SymbolsSplit {
			c.metrics.RecordSymbolSplit()
		}
	}

	for _, u := range result.Report.UnsplitEvents {
		c.logger.WithFields(map[string]interface{}{
			"symbol": u.Symbol,
			"date":   u.Date.Format(contracts.DateLayout),
			"reason": u.Reason,
		}).Warn("Corporate event left unsplit")
	}

	c.logger.WithFields(map[string]interface{}{
		"symbols":          result.Report.SymbolsIn,
		"segments":         result.Report.SegmentsOut,
		"bars_in":          result.Report.BarsIn,
		"bars_out":         result.Report.BarsOut,
		"bad_ticks":        result.Report.BadTicksDropped,
		"corporate_events": result.Report.CorporateEvents,
		"split":            len(result.Report.SymbolsSplit),
	}).Info("Integrity classification completed")

	return result, nil
}

// classifySymbol flags, filters and segments one series.
// Flags are computed once on the original sequence; bad ticks are removed
// afterwards, so a removed bar never changes a neighbour's return.
func (c *Classifier) classifySymbol(s contracts.SymbolSeries) symbolOutcome {
	var out symbolOutcome

	flags := ComputeFlags(s.Closes(), c.policy)

	kept := make([]contracts.Bar, 0, len(s.Bars))
	var eventIdx []int
	for i, b := range s.Bars {
		if flags[i].IsBadTick {
			out.badTicks++
			continue
		}
		if flags[i].IsCorporateEvent {
			eventIdx = append(eventIdx, len(kept))
		}
		kept = append(kept, b)
	}
	out.events = len(eventIdx)

	if len(kept) == 0 {
		return out
	}

	full := contracts.SymbolSegment{
		Label:      s.Symbol,
		BaseSymbol: s.Symbol,
		Kind:       contracts.SegmentFull,
		Bars:       kept,
	}

	if c.exclude[s.Symbol] {
		for _, idx := range eventIdx {
			out.unsplit = append(out.unsplit, contracts.UnsplitEvent{
				Symbol: s.Symbol, Date: kept[idx].Date, Reason: ReasonExcluded,
			})
		}
		out.segments = []contracts.SymbolSegment{full}
		return out
	}

	if len(eventIdx) == 0 {
		out.segments = []contracts.SymbolSegment{full}
		return out
	}

	// 첫 번째 이벤트만 분할에 사용, 이후 이벤트는 리포트에 남긴다
	for _, idx := range eventIdx[1:] {
		out.unsplit = append(out.unsplit, contracts.UnsplitEvent{
			Symbol: s.Symbol, Date: kept[idx].Date, Reason: ReasonSubsequentEvent,
		})
	}

	pre, post := SplitAround(kept, eventIdx[0], c.policy.SegmentGap)
	out.split = true
	if len(pre) > 0 {
		out.segments = append(out.segments, contracts.SymbolSegment{
			Label:      s.Symbol + contracts.PreSuffix,
			BaseSymbol: s.Symbol,
			Kind:       contracts.SegmentPre,
			Bars:       pre,
		})
	}
	if len(post) > 0 {
		out.segments = append(out.segments, contracts.SymbolSegment{
			Label:      s.Symbol + contracts.PostSuffix,
			BaseSymbol: s.Symbol,
			Kind:       contracts.SegmentPost,
			Bars:       post,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":     s.Symbol,
		"event_date": kept[eventIdx[0]].Date.Format(contracts.DateLayout),
		"pre_bars":   len(pre),
		"post_bars":  len(post),
	}).Debug("Symbol split around corporate event")

	return out
}

// SplitAround returns bars[0 : idx-gap) and bars[idx+gap+1 : n), clamped.
func SplitAround(bars []contracts.Bar, idx, gap int) (pre, post []contracts.Bar) {
	n := len(bars)
	preEnd := idx - gap
	if preEnd < 0 {
		preEnd = 0
	}
	postStart := idx + gap + 1
	if postStart > n {
		postStart = n
	}
	return bars[:preEnd:preEnd], bars[postStart:]
}

// ComputeFlags evaluates every anomaly rule on a close series.
// Missing closes produce missing returns, and comparisons on missing
// values are false, so they never raise a flag.
func ComputeFlags(closes []float64, p Policy) []contracts.AnomalyFlags {
	n := len(closes)
	flags := make([]contracts.AnomalyFlags, n)

	for t := 0; t < n; t++ {
		flags[t].Ret1 = pctChange(closes, t, 1)
		flags[t].Ret2 = pctChange(closes, t, 2)
		flags[t].AbnormalJump = math.Abs(flags[t].Ret1) > p.AbnormalRet1 ||
			math.Abs(flags[t].Ret2) > p.AbnormalRet2
	}

	for t := 0; t < n; t++ {
		if flags[t].AbnormalJump {
			flags[t].PostStable = postStable(closes, t, p)
		}
		flags[t].IsCorporateEvent = flags[t].AbnormalJump && flags[t].PostStable

		if t+1 < n {
			flags[t].IsBadTick = math.Abs(flags[t].Ret1) > p.BadTickSpike &&
				math.Abs(flags[t+1].Ret1) < p.BadTickReversion
		}
	}
	return flags
}

// postStable checks closes i+1..i+window against base close[i+1]
func postStable(closes []float64, i int, p Policy) bool {
	if i+p.StabilityWindow >= len(closes) {
		return false
	}
	base := closes[i+1]
	if contracts.IsMissing(base) || base == 0 {
		return false
	}
	for j := i + 1; j <= i+p.StabilityWindow; j++ {
		if !(math.Abs(closes[j]/base-1) < p.StabilityBand) {
			return false
		}
	}
	return true
}

// pctChange is close[t]/close[t-k]-1, Missing before the series start or on
// a missing close. A zero previous close gives ±Inf (0→0 gives NaN), which
// counts as an abnormal jump.
func pctChange(closes []float64, t, k int) float64 {
	if t-k < 0 {
		return contracts.Missing
	}
	prev, cur := closes[t-k], closes[t]
	if math.IsNaN(prev) || math.IsNaN(cur) {
		return contracts.Missing
	}
	return cur/prev - 1
}
