package selection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/internal/forecast"
	"github.com/wonny/quantmon/pkg/logger"
	"github.com/wonny/quantmon/pkg/metrics"
)

// errNonFinite marks a prediction that is NaN or ±Inf
var errNonFinite = errors.New("non-finite prediction")

// Selector implements S5: regime-conditioned champion–challenger selection
// ⭐ SSOT: S5 트레이드 선정은 여기서만
type Selector struct {
	topK    int
	workers int
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// NewSelector creates a selector keeping topK symbols per cluster
func NewSelector(topK, workers int, log *logger.Logger) *Selector {
	if workers < 1 {
		workers = 1
	}
	return &Selector{topK: topK, workers: workers, logger: log}
}

// WithMetrics attaches a metrics recorder
func (s *Selector) WithMetrics(m *metrics.Recorder) *Selector {
	s.metrics = m
	return s
}

// clusterOutcome is one cluster's slot, written only by its own goroutine
type clusterOutcome struct {
	candidate contracts.ClusterCandidate
	err       *contracts.ClusterPredictionError
}

// Select scores every snapshot row with every cluster model, keeps each
// cluster's top-K, and returns the champion's rows as the trade sheet.
// Per-cluster failures are recorded on the sheet; an empty snapshot, an empty
// registry or all clusters failing are returned as errors.
func (s *Selector) Select(
	ctx context.Context,
	rows []contracts.FeatureRow,
	registry *forecast.Registry,
	decision, entry time.Time,
) (*contracts.TradeSheet, error) {
	snap, err := Snapshot(rows, decision)
	if err != nil {
		return nil, err
	}
	if registry.Len() == 0 {
		return nil, contracts.ErrModelRegistryEmpty
	}

	entries := registry.Entries()
	outcomes := make([]clusterOutcome, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.scoreCluster(e, snap)
			return nil
		})
	}
	// 모든 클러스터가 끝난 뒤에만 champion 판정
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		candidates []contracts.ClusterCandidate
		skipped    []contracts.ClusterFailure
	)
	for _, o := range outcomes {
		if o.err != nil {
			s.logger.WithError(o.err).WithField("cluster_id", o.err.ClusterID).Warn("Cluster skipped")
			if s.metrics != nil {
				s.metrics.RecordClusterFailure(o.err.ClusterID)
			}
			skipped = append(skipped, contracts.ClusterFailure{ClusterID: o.err.ClusterID, Reason: o.err.Error()})
			continue
		}
		candidates = append(candidates, o.candidate)
	}

	champion, ok := Champion(candidates)
	if !ok {
		return nil, &contracts.NoUsableClusterError{DecisionDate: contracts.Day(decision), Failures: skipped}
	}

	weight := 1.0 / float64(s.topK)
	sheet := &contracts.TradeSheet{
		DecisionDate: contracts.Day(decision),
		EntryDate:    contracts.Day(entry),
		ClusterID:    champion.ClusterID,
		Candidates:   candidates,
		Skipped:      skipped,
		Rows:         make([]contracts.TradeRow, 0, len(champion.Ranked)),
	}
	for _, r := range champion.Ranked {
		sheet.Rows = append(sheet.Rows, contracts.TradeRow{
			Symbol:    r.Symbol,
			Score:     r.Score,
			Weight:    weight,
			EntryDate: sheet.EntryDate,
			ClusterID: champion.ClusterID,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordChampionScore(champion.MeanScore)
	}
	s.logger.WithFields(map[string]interface{}{
		"decision_date": sheet.DecisionDate.Format(contracts.DateLayout),
		"entry_date":    sheet.EntryDate.Format(contracts.DateLayout),
		"snapshot":      len(snap),
		"clusters":      len(entries),
		"skipped":       len(skipped),
		"champion":      champion.ClusterID,
		"mean_score":    champion.MeanScore,
	}).Info("Trade sheet selected")

	return sheet, nil
}

// scoreCluster evaluates one model on the whole snapshot
func (s *Selector) scoreCluster(e forecast.Entry, snap []contracts.FeatureRow) clusterOutcome {
	scored := make([]contracts.ScoredSymbol, 0, len(snap))
	for _, r := range snap {
		score, err := e.Model.Predict(r.Features)
		if err == nil && contracts.IsMissing(score) {
			err = errNonFinite
		}
		if err != nil {
			return clusterOutcome{err: &contracts.ClusterPredictionError{ClusterID: e.ClusterID, Symbol: r.Symbol, Err: err}}
		}
		scored = append(scored, contracts.ScoredSymbol{Symbol: r.Symbol, Score: score})
	}

	ranked := TopK(scored, s.topK)
	return clusterOutcome{candidate: contracts.ClusterCandidate{
		ClusterID: e.ClusterID,
		Ranked:    ranked,
		MeanScore: MeanScore(ranked),
	}}
}

// SortCandidates orders candidates by mean score desc, cluster id asc (for display)
func SortCandidates(c []contracts.ClusterCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].MeanScore != c[j].MeanScore {
			return c[i].MeanScore > c[j].MeanScore
		}
		return c[i].ClusterID < c[j].ClusterID
	})
}

// Describe one-line summary of a sheet for logs and CLI output
func Describe(sheet *contracts.TradeSheet) string {
	return fmt.Sprintf("entry %s cluster %d: %v",
		sheet.EntryDate.Format(contracts.DateLayout), sheet.ClusterID, sheet.Symbols())
}
