package s2_signals

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/pkg/logger"
)

// Builder turns cleaned segments into the feature table
// ⭐ SSOT: 피처 테이블 생성 오케스트레이션은 여기서만
type Builder struct {
	momentum  *MomentumCalculator
	technical *TechnicalCalculator
	flow      *FlowCalculator
	workers   int
	logger    *logger.Logger
}

// NewBuilder creates a feature builder; zWindow is the z-score lookback
func NewBuilder(zWindow, workers int, log *logger.Logger) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{
		momentum:  NewMomentumCalculator(),
		technical: NewTechnicalCalculator(),
		flow:      NewFlowCalculator(zWindow),
		workers:   workers,
		logger:    log,
	}
}

// Build computes one FeatureRow per bar of every segment. Rows keep the
// segment order and are date-ascending within a segment. Regime tags are
// left empty for the tagger.
func (b *Builder) Build(ctx context.Context, segments []contracts.SymbolSegment) ([]contracts.FeatureRow, error) {
	start := time.Now()
	perSegment := make([][]contracts.FeatureRow, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range segments {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perSegment[i] = b.BuildSegment(segments[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total, complete := 0, 0
	for _, rows := range perSegment {
		total += len(rows)
	}
	out := make([]contracts.FeatureRow, 0, total)
	for _, rows := range perSegment {
		for _, r := range rows {
			if r.Features.Complete() {
				complete++
			}
		}
		out = append(out, rows...)
	}

	b.logger.WithFields(map[string]interface{}{
		"segments": len(segments),
		"rows":     total,
		"complete": complete,
		"duration": time.Since(start).String(),
	}).Info("Feature table built")

	return out, nil
}

// BuildSegment computes the features of one segment
func (b *Builder) BuildSegment(seg contracts.SymbolSegment) []contracts.FeatureRow {
	bars := seg.Bars
	closes := Column(bars, func(x contracts.Bar) float64 { return x.Close })

	rets := make([][]float64, len(ReturnHorizons))
	for i, k := range ReturnHorizons {
		rets[i] = b.momentum.Returns(closes, k)
	}
	ret1 := rets[0]

	vols := make([][]float64, len(VolatilityWindows))
	for i, w := range VolatilityWindows {
		vols[i] = b.technical.Volatility(ret1, w)
	}
	rng := b.technical.Range(bars)

	volZ := b.flow.ZScore(Column(bars, func(x contracts.Bar) float64 { return x.TradedQty }))
	delivZ := b.flow.ZScore(Column(bars, func(x contracts.Bar) float64 { return x.DeliveryPct }))

	rows := make([]contracts.FeatureRow, len(bars))
	for t, bar := range bars {
		rows[t] = contracts.FeatureRow{
			Symbol:   seg.Label,
			Date:     bar.Date,
			Close:    bar.Close,
			AvgPrice: bar.AvgPrice,
			Features: contracts.FeatureVector{
				Ret1:   rets[0][t],
				Ret3:   rets[1][t],
				Ret5:   rets[2][t],
				Ret10:  rets[3][t],
				Vol5:   vols[0][t],
				Vol10:  vols[1][t],
				Range:  rng[t],
				VolZ:   volZ[t],
				DelivZ: delivZ[t],
			},
		}
	}
	return rows
}
