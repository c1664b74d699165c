package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/internal/forecast"
	"github.com/wonny/quantmon/internal/regime"
	"github.com/wonny/quantmon/internal/s0_data/quality"
	"github.com/wonny/quantmon/internal/s2_signals"
	"github.com/wonny/quantmon/internal/selection"
	"github.com/wonny/quantmon/internal/strategyconfig"
	"github.com/wonny/quantmon/pkg/logger"
	"github.com/wonny/quantmon/pkg/metrics"
)

// Components are the stage implementations wired by the caller
type Components struct {
	Bars       contracts.BarStore
	Classifier *quality.Classifier
	Features   *s2_signals.Builder
	Trainer    *forecast.Trainer
	Selector   *selection.Selector
	Sheets     contracts.TradeSheetStore
	Reports    quality.ReportStore // optional

	RegimeTable string
	MacroMap    string
	ModelDir    string
}

// Orchestrator coordinates the pipeline stages
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	c        Components
	strategy *strategyconfig.Config
	metrics  *metrics.Recorder
	logger   *logger.Logger
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	RunID        string
	DecisionDate time.Time
	EntryDate    time.Time // zero: next business day after DecisionDate
	Retrain      bool      // fit fresh models instead of loading ModelDir
	DryRun       bool      // skip S6 persistence
}

// RunResult holds the results of a pipeline run
type RunResult struct {
	RunID           string
	DecisionDate    time.Time
	EntryDate       time.Time
	ConfigHash      string
	Success         bool
	Error           error
	CompletedStages []string
	StageDurations  map[string]time.Duration
	Cleaning        *contracts.CleaningReport
	FeatureRows     int
	TaggedRows      int
	Trained         *forecast.TrainResult
	Sheet           *contracts.TradeSheet
	Duration        time.Duration
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(c Components, strategy *strategyconfig.Config, log *logger.Logger) *Orchestrator {
	return &Orchestrator{c: c, strategy: strategy, logger: log}
}

// WithMetrics attaches a metrics recorder
func (o *Orchestrator) WithMetrics(m *metrics.Recorder) *Orchestrator {
	o.metrics = m
	return o
}

// GenerateRunID returns run_YYYYMMDD_HHMMSS for t
func GenerateRunID(t time.Time) string {
	return t.Format("run_20060102_150405")
}

// Run executes the pipeline
// S0 → S1 → S2 → S3 → S4 (optional) → S5 → S6 (skipped on dry run)
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	startTime := time.Now()

	if cfg.DecisionDate.IsZero() {
		return nil, errors.New("decision date is required")
	}
	decision := contracts.Day(cfg.DecisionDate)
	entry := contracts.Day(cfg.EntryDate)
	if cfg.EntryDate.IsZero() {
		entry = contracts.NextBusinessDay(decision)
	}
	if cfg.RunID == "" {
		cfg.RunID = GenerateRunID(startTime)
	}

	hash, err := strategyconfig.Hash(o.strategy)
	if err != nil {
		return nil, fmt.Errorf("hash strategy config: %w", err)
	}

	result := &RunResult{
		RunID:           cfg.RunID,
		DecisionDate:    decision,
		EntryDate:       entry,
		ConfigHash:      hash,
		CompletedStages: make([]string, 0, len(contracts.AllStages())),
		StageDurations:  make(map[string]time.Duration),
	}

	o.logger.WithFields(map[string]interface{}{
		"run_id":        cfg.RunID,
		"decision_date": decision.Format(contracts.DateLayout),
		"entry_date":    entry.Format(contracts.DateLayout),
		"strategy":      o.strategy.Meta.StrategyID,
		"config_hash":   hash,
		"retrain":       cfg.Retrain,
		"dry_run":       cfg.DryRun,
	}).Info("Starting pipeline run")

	var (
		bars     []contracts.Bar
		cleaned  *quality.CleaningResult
		tagger   *regime.Tagger
		rows     []contracts.FeatureRow
		registry *forecast.Registry
	)

	// S0: 원천 일봉
	if err := o.stage(result, contracts.StageBars, func() error {
		bars, err = o.c.Bars.LoadBars(ctx)
		if err != nil {
			return fmt.Errorf("load bars: %w", err)
		}
		if len(bars) == 0 {
			return errors.New("bar store is empty")
		}
		return nil
	}); err != nil {
		return result, err
	}

	// S1: 정제/세그먼트
	if err := o.stage(result, contracts.StageIntegrity, func() error {
		cleaned, err = o.c.Classifier.Classify(ctx, bars)
		if err != nil {
			return err
		}
		result.Cleaning = &cleaned.Report
		return nil
	}); err != nil {
		return result, err
	}

	// S2: 레짐 테이블
	if err := o.stage(result, contracts.StageRegime, func() error {
		tagger, err = regime.LoadTagger(o.c.RegimeTable, o.c.MacroMap)
		if err != nil {
			return err
		}
		if !tagger.Covers(decision) {
			o.logger.WithField("decision_date", decision.Format(contracts.DateLayout)).
				Warn("Decision date is outside every regime range")
		}
		return nil
	}); err != nil {
		return result, err
	}

	// S3: 피처 + 태깅
	if err := o.stage(result, contracts.StageFeatures, func() error {
		rows, err = o.c.Features.Build(ctx, cleaned.Segments)
		if err != nil {
			return err
		}
		result.FeatureRows = len(rows)
		result.TaggedRows = tagger.Tag(rows, decision)
		return nil
	}); err != nil {
		return result, err
	}

	// S4: 재학습 (선택)
	if cfg.Retrain {
		if err := o.stage(result, contracts.StageTraining, func() error {
			trained, err := o.c.Trainer.Train(ctx, rows, decision)
			if err != nil {
				return err
			}
			result.Trained = trained
			if registry, err = forecast.RegistryFromModels(trained.Models); err != nil {
				return err
			}
			if cfg.DryRun {
				return nil
			}
			return forecast.SaveArtifacts(o.c.ModelDir, trained.Models, forecast.Manifest{
				StrategyID:   o.strategy.Meta.StrategyID,
				ConfigHash:   hash,
				DecisionDate: decision.Format(contracts.DateLayout),
				TrainedAt:    time.Now().UTC(),
			})
		}); err != nil {
			return result, err
		}
	} else {
		o.logger.Info("Skipping S4_TRAINING (using stored models)")
	}

	// S5: champion–challenger
	if err := o.stage(result, contracts.StageSelection, func() error {
		if registry == nil {
			registry, _, err = forecast.LoadManifest(o.c.ModelDir)
			if err != nil {
				return err
			}
		}
		sheet, err := o.c.Selector.Select(ctx, rows, registry, decision, entry)
		if err != nil {
			return err
		}
		sheet.ConfigHash = hash
		result.Sheet = sheet
		return nil
	}); err != nil {
		return result, err
	}

	// S6: 저장 (dry run 이면 생략)
	if !cfg.DryRun {
		if err := o.stage(result, contracts.StagePersist, func() error {
			if err := o.c.Sheets.SaveTradeSheet(ctx, result.Sheet); err != nil {
				return fmt.Errorf("save trade sheet: %w", err)
			}
			if o.c.Reports == nil {
				return nil
			}
			return o.c.Reports.SaveReport(ctx, &quality.StoredReport{
				RunID:        cfg.RunID,
				DecisionDate: decision,
				Report:       cleaned.Report,
			})
		}); err != nil {
			return result, err
		}
	} else {
		o.logger.Info("Skipping S6_PERSIST (dry run mode)")
	}

	result.Success = true
	result.Duration = time.Since(startTime)

	o.logger.WithFields(map[string]interface{}{
		"run_id":   cfg.RunID,
		"duration": result.Duration.Seconds(),
		"stages":   len(result.CompletedStages),
		"cluster":  result.Sheet.ClusterID,
		"symbols":  result.Sheet.Symbols(),
	}).Info("Pipeline run completed successfully")

	return result, nil
}

// stage runs fn, records its duration and wraps a failure with the stage name
func (o *Orchestrator) stage(result *RunResult, stage contracts.Stage, fn func() error) error {
	start := time.Now()
	o.logger.Infof("Running %s", stage)

	err := fn()
	elapsed := time.Since(start)
	result.StageDurations[stage.String()] = elapsed
	if o.metrics != nil {
		o.metrics.RecordStageDuration(stage.String(), elapsed.Seconds())
	}

	if err != nil {
		result.Error = fmt.Errorf("%s failed: %w", stage.ShortName(), err)
		o.logger.WithError(err).WithField("stage", stage.String()).Error("Stage failed")
		return result.Error
	}

	result.CompletedStages = append(result.CompletedStages, stage.String())
	o.logger.WithFields(map[string]interface{}{
		"stage":    stage.String(),
		"duration": elapsed.Seconds(),
	}).Info("Stage completed")
	return nil
}
