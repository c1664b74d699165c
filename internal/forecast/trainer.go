package forecast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/quantmon/internal/contracts"
)

// ErrNothingTrained 최소 행 수를 넘는 macro 그룹이 하나도 없을 때
var ErrNothingTrained = errors.New("no macro group had enough training rows")

// TrainConfig 학습 파라미터
type TrainConfig struct {
	HoldingDays  int
	MinTrainRows int
	RidgeLambda  float64
	Workers      int
}

// TrainResult 학습 결과
type TrainResult struct {
	Models  []*LinearModel
	Rows    map[int]int // macro → 학습 가능 행 수
	Skipped []int       // 최소 행 수 미달 macro
}

// Trainer macro 클러스터별 모델 학습기
type Trainer struct {
	cfg TrainConfig
	log zerolog.Logger
}

// NewTrainer 새 학습기 생성
func NewTrainer(cfg TrainConfig, log zerolog.Logger) *Trainer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Trainer{
		cfg: cfg,
		log: log.With().Str("component", "forecast.trainer").Logger(),
	}
}

// sample 한 학습 행
type sample struct {
	x []float64
	y float64
}

// Train 결정일 이전 행만으로 H일 선행 수익률 타깃을 만들고 macro 별 모델을 학습한다
// 타깃은 결정일 필터 이후에 계산되므로 결정일 이후 가격을 보지 않는다
func (t *Trainer) Train(ctx context.Context, rows []contracts.FeatureRow, decision time.Time) (*TrainResult, error) {
	groups := t.BuildSamples(rows, decision)

	macros := make([]int, 0, len(groups))
	for m := range groups {
		macros = append(macros, m)
	}
	sort.Ints(macros)

	result := &TrainResult{Rows: make(map[int]int, len(groups))}
	var eligible []int
	for _, m := range macros {
		n := len(groups[m])
		result.Rows[m] = n
		if n < t.cfg.MinTrainRows {
			t.log.Warn().Int("macro", m).Int("rows", n).Int("min_rows", t.cfg.MinTrainRows).
				Msg("macro 그룹 학습 행 부족, 건너뜀")
			result.Skipped = append(result.Skipped, m)
			continue
		}
		eligible = append(eligible, m)
	}

	models := make([]*LinearModel, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Workers)
	for i, m := range eligible {
		i, m := i, m
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			model, err := fit(groups[m], t.cfg.RidgeLambda)
			if err != nil {
				return fmt.Errorf("macro %d: %w", m, err)
			}
			model.ClusterID = m
			model.TrainedThrough = contracts.Day(decision)
			models[i] = model
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Models = models
	if len(models) == 0 {
		return result, ErrNothingTrained
	}

	t.log.Info().Int("models", len(models)).Ints("skipped", result.Skipped).
		Str("decision_date", decision.Format(contracts.DateLayout)).
		Msg("모델 학습 완료")

	return result, nil
}

// BuildSamples 결정일 필터 → 심볼별 타깃 → 결측 제거 → macro 별 그룹
// rows 는 심볼별로 날짜 오름차순이어야 한다 (피처 빌더 출력 순서)
func (t *Trainer) BuildSamples(rows []contracts.FeatureRow, decision time.Time) map[int][]sample {
	cutoff := contracts.Day(decision)
	bySymbol := make(map[string][]contracts.FeatureRow)
	var order []string
	for _, r := range rows {
		if r.Date.After(cutoff) {
			continue
		}
		if _, ok := bySymbol[r.Symbol]; !ok {
			order = append(order, r.Symbol)
		}
		bySymbol[r.Symbol] = append(bySymbol[r.Symbol], r)
	}

	h := t.cfg.HoldingDays
	groups := make(map[int][]sample)
	for _, sym := range order {
		series := bySymbol[sym]
		for i, r := range series {
			if i+h >= len(series) || r.Macro == nil || !r.Features.Complete() {
				continue
			}
			now, later := r.Close, series[i+h].Close
			if contracts.IsMissing(now) || contracts.IsMissing(later) || now == 0 {
				continue
			}
			groups[*r.Macro] = append(groups[*r.Macro], sample{
				x: r.Features.Values(),
				y: later/now - 1,
			})
		}
	}
	return groups
}

func fit(samples []sample, lambda float64) (*LinearModel, error) {
	X := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		X[i] = s.x
		y[i] = s.y
	}
	return FitRidge(X, y, lambda)
}
