package commands

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/quantmon/internal/brain"
	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/internal/forecast"
	"github.com/wonny/quantmon/internal/s0_data"
	"github.com/wonny/quantmon/internal/s0_data/collector"
	"github.com/wonny/quantmon/internal/s0_data/quality"
	"github.com/wonny/quantmon/internal/s2_signals"
	"github.com/wonny/quantmon/internal/selection"
	"github.com/wonny/quantmon/internal/strategyconfig"
	"github.com/wonny/quantmon/pkg/config"
	"github.com/wonny/quantmon/pkg/database"
	"github.com/wonny/quantmon/pkg/httputil"
	"github.com/wonny/quantmon/pkg/logger"
	"github.com/wonny/quantmon/pkg/metrics"
	"github.com/wonny/quantmon/pkg/redis"
)

// Bar sources selectable with --source
const (
	sourceCSV = "csv"
	sourceDB  = "db"
)

// app holds the process-wide dependencies shared by every command
// ⭐ SSOT: 커맨드 공통 의존성 조립은 여기서만
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	strategy     *strategyconfig.Config
	strategyHash string
	metrics      *metrics.Recorder
	db           *database.DB // nil when DB_ENABLED=false
	redis        *redis.Client
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if strategyFile != "" {
		cfg.StrategyFile = strategyFile
	}

	log := logger.New(cfg)

	strategy, _, err := strategyconfig.Load(cfg.StrategyFile)
	if err != nil {
		return nil, fmt.Errorf("load strategy %s: %w", cfg.StrategyFile, err)
	}
	hash, err := strategyconfig.Hash(strategy)
	if err != nil {
		return nil, fmt.Errorf("hash strategy: %w", err)
	}

	a := &app{
		cfg:          cfg,
		log:          log,
		strategy:     strategy,
		strategyHash: hash,
		metrics:      metrics.New(),
	}

	if cfg.Database.Enabled {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.db = db
	}

	rc, err := redis.New(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.redis = rc

	log.WithFields(map[string]interface{}{
		"env":         cfg.Env,
		"strategy":    strategy.Meta.StrategyID,
		"config_hash": hash,
		"db":          cfg.Database.Enabled,
		"redis":       rc.Enabled(),
	}).Debug("Application initialized")

	return a, nil
}

// Close releases the database pool and the Redis connection
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

func (a *app) masterStore() *s0_data.CSVStore {
	return s0_data.NewCSVStore(a.cfg.Paths.MasterCSV, a.log)
}

// barStore picks the bar source for a run
func (a *app) barStore(source string) (contracts.BarStore, error) {
	switch source {
	case sourceCSV, "":
		return a.masterStore(), nil
	case sourceDB:
		if a.db == nil {
			return nil, fmt.Errorf("--source db requires DB_ENABLED=true")
		}
		return s0_data.NewBarRepository(a.db.Pool), nil
	default:
		return nil, fmt.Errorf("unknown source %q (csv|db)", source)
	}
}

// tradeSheets returns the trade sheet store: Postgres when enabled, result
// CSVs otherwise, behind the Redis cache
func (a *app) tradeSheets() contracts.TradeSheetStore {
	var inner contracts.TradeSheetStore = selection.NewCSVStore(a.cfg.Paths.ResultsDir)
	if a.db != nil {
		inner = selection.NewRepository(a.db.Pool)
	}
	return selection.NewCachedStore(inner, redis.NewCache(a.redis, a.redis.Prefix()), a.log)
}

func (a *app) cleaningReports() quality.ReportStore {
	if a.db != nil {
		return quality.NewRepository(a.db.Pool)
	}
	return quality.NewFileReportStore(a.cfg.Paths.ResultsDir)
}

func (a *app) classifier() *quality.Classifier {
	return quality.NewClassifier(quality.PolicyFromConfig(a.strategy.Integrity), a.strategy.Selection.Workers, a.log).
		WithMetrics(a.metrics)
}

func (a *app) featureBuilder() *s2_signals.Builder {
	return s2_signals.NewBuilder(a.strategy.Features.ZScoreWindow, a.strategy.Selection.Workers, a.log)
}

func (a *app) trainer() *forecast.Trainer {
	t := a.strategy.Training
	return forecast.NewTrainer(forecast.TrainConfig{
		HoldingDays:  t.HoldingDays,
		MinTrainRows: t.MinTrainRows,
		RidgeLambda:  t.RidgeLambda,
		Workers:      a.strategy.Selection.Workers,
	}, a.log.Zerolog())
}

// collector wires the NSE downloader; the throttle is shared through Redis
// when it is enabled so parallel processes respect one budget
func (a *app) collector() *collector.Collector {
	client := httputil.New(a.cfg, a.log)
	if a.redis.Enabled() {
		client.WithLimiter(redis.NewRateLimiter(a.redis, a.redis.Prefix()).Bind(redis.NSERateLimit))
	} else {
		client.WithLimiter(rate.NewLimiter(rate.Limit(a.cfg.NSE.RequestsSec), 1))
	}
	return collector.NewCollector(client, a.cfg, a.masterStore(), a.log).WithMetrics(a.metrics)
}

func (a *app) orchestrator(source string) (*brain.Orchestrator, error) {
	bars, err := a.barStore(source)
	if err != nil {
		return nil, err
	}
	c := brain.Components{
		Bars:        bars,
		Classifier:  a.classifier(),
		Features:    a.featureBuilder(),
		Trainer:     a.trainer(),
		Selector:    selection.NewSelector(a.strategy.Selection.TopK, a.strategy.Selection.Workers, a.log).WithMetrics(a.metrics),
		Sheets:      a.tradeSheets(),
		Reports:     a.cleaningReports(),
		RegimeTable: a.cfg.Paths.RegimeTable,
		MacroMap:    a.cfg.Paths.MacroMap,
		ModelDir:    a.cfg.Paths.ModelDir,
	}
	return brain.NewOrchestrator(c, a.strategy, a.log).WithMetrics(a.metrics), nil
}

// parseDateFlag parses a YYYY-MM-DD flag; empty returns the zero time
func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(contracts.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q (YYYY-MM-DD): %w", name, value, err)
	}
	return t, nil
}
