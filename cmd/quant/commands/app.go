package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/analysis"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/calendar"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/pipeline"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/pool"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/ranking"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/readiness"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/scoring"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/screening"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/signals"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/store"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/store/repos"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/strategyconfig"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/config"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/database"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/redis"
)

// app holds the wired application. Every command builds the same graph
// once and picks the pieces it needs.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	cache    *redis.Cache
	strategy *strategyconfig.Manager

	store    *store.Store
	gate     *readiness.Checker
	calendar *calendar.Service

	screeningRepo *repos.ScreeningRepository
	rankRepo      *repos.RankRepository
	poolRepo      *repos.PoolRepository
	signalRepo    *repos.SignalRepository
	runRepo       *repos.RunRepository

	engine    *screening.Engine
	ranker    *ranking.Ranker
	scorer    *scoring.Scorer
	builder   *pool.Builder
	analyzer  *analysis.Analyzer
	risk      *signals.RiskMonitor
	generator *signals.Generator
	orch      *pipeline.Orchestrator
}

// newApp loads configuration and wires every component.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "quant")

	strategy, err := strategyconfig.Load(cfg.StrategyPath, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load strategy config: %w", err)
	}

	st := store.New(db.Pool)
	gate := readiness.NewChecker(st, log)

	cal := calendar.New(st, log)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := cal.Refresh(ctx); err != nil {
		log.WithError(err).Warn("trading calendar unavailable, day checks disabled")
	}
	cancel()

	screeningRepo := repos.NewScreeningRepository(db.Pool)
	rankRepo := repos.NewRankRepository(db.Pool)
	poolRepo := repos.NewPoolRepository(db.Pool)
	signalRepo := repos.NewSignalRepository(db.Pool)
	runRepo := repos.NewRunRepository(db.Pool)

	engine := screening.NewEngine(gate, st, st, screeningRepo, log, cfg.Pipeline.Workers)
	ranker := ranking.NewRanker(gate, st, rankRepo, log)

	// The strategy manager is the options provider so hot-reloaded
	// weights and thresholds reach the next run without a restart.
	scorer := scoring.NewScorer(st, strategy, log)
	builder := pool.NewBuilder(poolRepo, st, strategy, log)

	tech := analysis.NewTechnical(st, log)

	// A nil *NarrativeClient must not end up inside the interface.
	var narrative contracts.NarrativeAnalyzer
	if nc := analysis.NewNarrativeClient(cfg.Narrative, log); nc != nil {
		narrative = nc
	}
	analyzer := analysis.NewAnalyzer(gate, tech, narrative, cfg.Pipeline.Workers, log)

	risk := signals.NewRiskMonitor(st, cfg.Pipeline.Benchmark, log)
	generator := signals.NewGenerator(st, signalRepo, risk, strategy, log)

	orch := pipeline.NewOrchestrator(
		gate, engine, ranker, scorer, builder,
		analyzer, generator, strategy,
		screeningRepo, rankRepo, poolRepo, runRepo, cache, log,
	)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    redisClient,
		cache:    cache,
		strategy: strategy,

		store:    st,
		gate:     gate,
		calendar: cal,

		screeningRepo: screeningRepo,
		rankRepo:      rankRepo,
		poolRepo:      poolRepo,
		signalRepo:    signalRepo,
		runRepo:       runRepo,

		engine:    engine,
		ranker:    ranker,
		scorer:    scorer,
		builder:   builder,
		analyzer:  analyzer,
		risk:      risk,
		generator: generator,
		orch:      orch,
	}, nil
}

// Close releases external connections.
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
