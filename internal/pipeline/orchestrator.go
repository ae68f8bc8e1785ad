// Package pipeline coordinates the staged selection run: readiness
// gate, screening and ranking in parallel, then scoring, pool build,
// analysis and signals. Run state is persisted after every stage
// transition so status polling survives restarts.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/analysis"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/readiness"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/redis"
)

// Strategy supplies the run-time strategy parameters. The orchestrator
// never reads the strategy file itself.
type Strategy interface {
	Rules() []contracts.ScreeningRule
	RPSPeriods() []int
	Hash() string
}

// Orchestrator drives full and single-stage pipeline runs.
type Orchestrator struct {
	gate     contracts.ReadinessChecker
	engine   contracts.ScreeningEngine
	ranker   contracts.StrengthRanker
	scorer   contracts.FactorScorer
	builder  contracts.PoolBuilder
	analyzer *analysis.Analyzer
	signals  contracts.SignalEngine
	strategy Strategy

	// Persisted stage snapshots, read back for scoped runs so a single
	// stage can consume its predecessors' latest output.
	screenings contracts.ScreeningRepository
	ranks      contracts.RankRepository
	pools      contracts.PoolRepository
	runs       contracts.RunRepository

	cache *redis.Cache
	log   *logger.Logger

	// mu serializes run-record mutation and persistence; screening and
	// ranking update the same record concurrently.
	mu sync.Mutex

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc
}

// NewOrchestrator wires the stage implementations together. cache may
// be nil when caching is disabled.
func NewOrchestrator(
	gate contracts.ReadinessChecker,
	engine contracts.ScreeningEngine,
	ranker contracts.StrengthRanker,
	scorer contracts.FactorScorer,
	builder contracts.PoolBuilder,
	analyzer *analysis.Analyzer,
	signals contracts.SignalEngine,
	strategy Strategy,
	screenings contracts.ScreeningRepository,
	ranks contracts.RankRepository,
	pools contracts.PoolRepository,
	runs contracts.RunRepository,
	cache *redis.Cache,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		gate:       gate,
		engine:     engine,
		ranker:     ranker,
		scorer:     scorer,
		builder:    builder,
		analyzer:   analyzer,
		signals:    signals,
		strategy:   strategy,
		screenings: screenings,
		ranks:      ranks,
		pools:      pools,
		runs:       runs,
		cache:      cache,
		log:        log.WithField("component", "pipeline"),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// StartRun creates a run record and executes it in the background.
// Callers poll the run id for status. ctx only covers run creation; the
// run itself executes under its own context.
func (o *Orchestrator) StartRun(ctx context.Context, scope string) (*contracts.PipelineRun, error) {
	run := &contracts.PipelineRun{
		ID:         uuid.NewString(),
		Scope:      scope,
		ConfigHash: o.strategy.Hash(),
		Status:     contracts.RunPending,
		StartedAt:  time.Now().UTC(),
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	go o.execute(context.Background(), run)
	return run, nil
}

// Run executes a pipeline run synchronously. Used by the CLI and the
// scheduler; the API path goes through StartRun.
func (o *Orchestrator) Run(ctx context.Context, scope string) (*contracts.PipelineRun, error) {
	run := &contracts.PipelineRun{
		ID:         uuid.NewString(),
		Scope:      scope,
		ConfigHash: o.strategy.Hash(),
		Status:     contracts.RunPending,
		StartedAt:  time.Now().UTC(),
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	o.execute(ctx, run)
	return o.runs.Get(ctx, run.ID)
}

// Status fetches a run by id.
func (o *Orchestrator) Status(ctx context.Context, id string) (*contracts.PipelineRun, error) {
	return o.runs.Get(ctx, id)
}

// Cancel requests cancellation of an active run. The run stops at the
// next stage boundary; an in-flight stage is interrupted through its
// context but its record is kept for audit.
func (o *Orchestrator) Cancel(id string) error {
	o.cancelMu.Lock()
	cancel, ok := o.cancels[id]
	o.cancelMu.Unlock()
	if !ok {
		return fmt.Errorf("run %s is not active", id)
	}
	cancel()
	return nil
}

func (o *Orchestrator) track(id string, cancel context.CancelFunc) {
	o.cancelMu.Lock()
	o.cancels[id] = cancel
	o.cancelMu.Unlock()
}

func (o *Orchestrator) untrack(id string) {
	o.cancelMu.Lock()
	delete(o.cancels, id)
	o.cancelMu.Unlock()
}

func (o *Orchestrator) execute(ctx context.Context, run *contracts.PipelineRun) {
	log := o.log.WithField("run_id", run.ID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.track(run.ID, cancel)
	defer o.untrack(run.ID)

	o.mu.Lock()
	run.Status = contracts.RunRunning
	o.persist(ctx, run)
	o.mu.Unlock()

	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	if run.Scope == "" || run.Scope == "full" {
		o.executeFull(ctx, run, asOf, log)
		return
	}
	o.executeStage(ctx, run, contracts.Stage(run.Scope), asOf, log)
}

func (o *Orchestrator) executeFull(ctx context.Context, run *contracts.PipelineRun, asOf time.Time, log *logger.Logger) {
	// S0: the whole-run gate. A gap ends the run as data_missing, a
	// terminal state distinct from error.
	ready, _, err := o.runStage(ctx, run, contracts.StageReadiness, func(ctx context.Context) (map[string]any, *contracts.DataReadinessResult, error) {
		result, err := o.gate.Check(ctx, readiness.StageRequirements(contracts.StageReadiness, asOf))
		if err != nil {
			return nil, nil, err
		}
		return map[string]any{"is_ready": result.IsReady}, result, nil
	})
	if err != nil {
		o.finish(run, failStatus(ctx), log)
		return
	}
	if !ready.IsReady {
		log.Warn("run gated on missing data")
		o.finish(run, contracts.RunDataMissing, log)
		return
	}
	if o.cancelled(ctx, run, log) {
		return
	}

	// S1 and S2 share no inputs and run concurrently.
	var screening *contracts.ScreeningResult
	var ranking *contracts.RankingResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		_, _, err = o.runStage(gctx, run, contracts.StageScreening, func(ctx context.Context) (map[string]any, *contracts.DataReadinessResult, error) {
			screening, err = o.engine.RunScreening(ctx, asOf, o.strategy.Rules())
			if err != nil {
				return nil, nil, err
			}
			return map[string]any{
				"passed":   len(screening.Passed),
				"rejected": len(screening.Rejected),
			}, screening.Readiness, nil
		})
		return err
	})
	g.Go(func() error {
		var err error
		_, _, err = o.runStage(gctx, run, contracts.StageRanking, func(ctx context.Context) (map[string]any, *contracts.DataReadinessResult, error) {
			ranking, err = o.ranker.ComputeRanks(ctx, asOf, o.strategy.RPSPeriods())
			if err != nil {
				return nil, nil, err
			}
			return map[string]any{"symbols": len(ranking.Rows)}, ranking.Readiness, nil
		})
		return err
	})
	if err := g.Wait(); err != nil {
		o.finish(run, failStatus(ctx), log)
		return
	}
	if screening.Gated() || ranking.Gated() {
		o.finish(run, contracts.RunDataMissing, log)
		return
	}
	if o.cancelled(ctx, run, log) {
		return
	}
	ranks := ranking.Rows

	// S3 over survivors.
	var scores []contracts.FactorScoreDetail
	if _, _, err := o.runStage(ctx, run, contracts.StageScoring, func(ctx context.Context) (map[string]any, *contracts.DataReadinessResult, error) {
		var err error
		scores, err = o.scorer.Score(ctx, screening.Passed, ranks)
		if err != nil {
			return nil, nil, err
		}
		return map[string]any{"scored": len(scores)}, nil, nil
	}); err != nil {
		o.finish(run, failStatus(ctx), log)
		return
	}
	if o.cancelled(ctx, run, log) {
		return
	}

	// S4.
	var pool *contracts.CorePoolResult
	if _, _, err := o.runStage(ctx, run, contracts.StagePool, func(ctx context.Context) (map[string]any, *contracts.DataReadinessResult, error) {
		var err error
		pool, err = o.builder.BuildPool(ctx, screening, ranks, scores)
		if err != nil {
			return nil, nil, err
		}
		o.invalidateCache(ctx)
		return map[string]any{
			"core":       len(pool.Core),
			"supplement": len(pool.Supplement),
			"changes":    len(pool.Changes),
		}, nil, nil
	}); err != nil {
		o.finish(run, failStatus(ctx), log)
		return
	}
	if o.cancelled(ctx, run, log) {
		return
	}

	// S5: batch analysis over the pool. The batch runs in the
	// background and outlives the run context, so it gets its own;
	// the stage records its launch, not its completion.
	if _, _, err := o.runStage(ctx, run, contracts.StageAnalysis, func(ctx context.Context) (map[string]any, *contracts.DataReadinessResult, error) {
		started := o.analyzer.RunBatch(context.Background(), pool.Codes())
		return map[string]any{"batch_started": started, "symbols": len(pool.Codes())}, nil, nil
	}); err != nil {
		o.finish(run, failStatus(ctx), log)
		return
	}
	if o.cancelled(ctx, run, log) {
		return
	}

	// S6.
	if _, _, err := o.runStage(ctx, run, contracts.StageSignals, func(ctx context.Context) (map[string]any, *contracts.DataReadinessResult, error) {
		signals, err := o.signals.Generate(ctx, pool, ranks)
		if err != nil {
			return nil, nil, err
		}
		return map[string]any{"signals": len(signals)}, nil, nil
	}); err != nil {
		o.finish(run, failStatus(ctx), log)
		return
	}

	o.finish(run, contracts.RunCompleted, log)
}

// executeStage runs one stage against the latest persisted snapshots of
// its predecessors. A missing predecessor snapshot gates the run as
// data_missing, the same way a store gap would.
func (o *Orchestrator) executeStage(ctx context.Context, run *contracts.PipelineRun, stage contracts.Stage, asOf time.Time, log *logger.Logger) {
	log = log.WithField("scope", stage.ShortName())

	// The gate always runs first, scoped to the requested stage.
	ready, _, err := o.runStage(ctx, run, contracts.StageReadiness, func(ctx context.Context) (map[string]any, *contracts.DataReadinessResult, error) {
		result, err := o.gate.Check(ctx, readiness.StageRequirements(stage, asOf))
		if err != nil {
			return nil, nil, err
		}
		return map[string]any{"is_ready": result.IsReady}, result, nil
	})
	if err != nil {
		o.finish(run, failStatus(ctx), log)
		return
	}
	if !ready.IsReady {
		log.Warn("run gated on missing data")
		o.finish(run, contracts.RunDataMissing, log)
		return
	}
	if stage == contracts.StageReadiness {
		o.finish(run, contracts.RunCompleted, log)
		return
	}
	if o.cancelled(ctx, run, log) {
		return
	}

	gated := false
	_, _, err = o.runStage(ctx, run, stage, func(ctx context.Context) (map[string]any, *contracts.DataReadinessResult, error) {
		summary, missing, err := o.runScoped(ctx, stage, asOf)
		if err != nil {
			return nil, nil, err
		}
		if missing != nil {
			gated = true
			return summary, missing, nil
		}
		return summary, nil, nil
	})
	if err != nil {
		o.finish(run, failStatus(ctx), log)
		return
	}
	if gated {
		log.Warn("run gated on missing predecessor snapshot")
		o.finish(run, contracts.RunDataMissing, log)
		return
	}

	o.finish(run, contracts.RunCompleted, log)
}

// runScoped executes the body of one scoped stage. A non-nil readiness
// result marks a missing predecessor snapshot.
func (o *Orchestrator) runScoped(ctx context.Context, stage contracts.Stage, asOf time.Time) (map[string]any, *contracts.DataReadinessResult, error) {
	switch stage {
	case contracts.StageScreening:
		screening, err := o.engine.RunScreening(ctx, asOf, o.strategy.Rules())
		if err != nil {
			return nil, nil, err
		}
		summary := map[string]any{
			"passed":   len(screening.Passed),
			"rejected": len(screening.Rejected),
		}
		if screening.Gated() {
			return summary, screening.Readiness, nil
		}
		return summary, nil, nil

	case contracts.StageRanking:
		ranking, err := o.ranker.ComputeRanks(ctx, asOf, o.strategy.RPSPeriods())
		if err != nil {
			return nil, nil, err
		}
		summary := map[string]any{"symbols": len(ranking.Rows)}
		if ranking.Gated() {
			return summary, ranking.Readiness, nil
		}
		return summary, nil, nil

	case contracts.StageScoring:
		screening, ranks, missing, err := o.latestInputs(ctx)
		if err != nil {
			return nil, nil, err
		}
		if missing != nil {
			return nil, missing, nil
		}
		scores, err := o.scorer.Score(ctx, screening.Passed, ranks)
		if err != nil {
			return nil, nil, err
		}
		return map[string]any{"scored": len(scores)}, nil, nil

	case contracts.StagePool:
		screening, ranks, missing, err := o.latestInputs(ctx)
		if err != nil {
			return nil, nil, err
		}
		if missing != nil {
			return nil, missing, nil
		}
		scores, err := o.scorer.Score(ctx, screening.Passed, ranks)
		if err != nil {
			return nil, nil, err
		}
		pool, err := o.builder.BuildPool(ctx, screening, ranks, scores)
		if err != nil {
			return nil, nil, err
		}
		o.invalidateCache(ctx)
		return map[string]any{
			"core":       len(pool.Core),
			"supplement": len(pool.Supplement),
			"changes":    len(pool.Changes),
		}, nil, nil

	case contracts.StageAnalysis:
		pool, err := o.pools.Latest(ctx)
		if err != nil {
			return nil, nil, err
		}
		if pool == nil {
			return nil, missingSnapshot(contracts.StagePool), nil
		}
		// The batch outlives the run context.
		started := o.analyzer.RunBatch(context.Background(), pool.Codes())
		return map[string]any{"batch_started": started, "symbols": len(pool.Codes())}, nil, nil

	case contracts.StageSignals:
		pool, err := o.pools.Latest(ctx)
		if err != nil {
			return nil, nil, err
		}
		if pool == nil {
			return nil, missingSnapshot(contracts.StagePool), nil
		}
		ranks, err := o.ranks.Latest(ctx)
		if err != nil {
			return nil, nil, err
		}
		signals, err := o.signals.Generate(ctx, pool, ranks)
		if err != nil {
			return nil, nil, err
		}
		return map[string]any{"signals": len(signals)}, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown stage %q", stage)
	}
}

// latestInputs loads the most recent screening and ranking snapshots.
func (o *Orchestrator) latestInputs(ctx context.Context) (*contracts.ScreeningResult, []contracts.SymbolRankRow, *contracts.DataReadinessResult, error) {
	screening, err := o.screenings.Latest(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load screening snapshot: %w", err)
	}
	if screening == nil {
		return nil, nil, missingSnapshot(contracts.StageScreening), nil
	}
	ranks, err := o.ranks.Latest(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load rank snapshot: %w", err)
	}
	if len(ranks) == 0 {
		return nil, nil, missingSnapshot(contracts.StageRanking), nil
	}
	return screening, ranks, nil, nil
}

// missingSnapshot describes an absent predecessor stage output.
func missingSnapshot(stage contracts.Stage) *contracts.DataReadinessResult {
	return &contracts.DataReadinessResult{
		IsReady:   false,
		CheckedAt: time.Now().UTC(),
		Missing: &contracts.MissingSummary{
			Stages: []contracts.Stage{stage},
		},
	}
}

// cancelled checks the run context at a stage boundary and, when it has
// been cancelled, closes the run record.
func (o *Orchestrator) cancelled(ctx context.Context, run *contracts.PipelineRun, log *logger.Logger) bool {
	if ctx.Err() == nil {
		return false
	}
	log.Warn("run cancelled")
	o.finish(run, contracts.RunCancelled, log)
	return true
}

// failStatus maps a stage failure to the run's terminal status. A
// cancelled context means the failure came from the cancellation, not
// the stage itself.
func failStatus(ctx context.Context) contracts.RunStatus {
	if ctx.Err() != nil {
		return contracts.RunCancelled
	}
	return contracts.RunError
}

type stageFunc func(ctx context.Context) (map[string]any, *contracts.DataReadinessResult, error)

// runStage wraps one stage with status bookkeeping. The run record is
// persisted on both transitions.
func (o *Orchestrator) runStage(ctx context.Context, run *contracts.PipelineRun, stage contracts.Stage, fn stageFunc) (*contracts.DataReadinessResult, map[string]any, error) {
	started := time.Now().UTC()
	record := contracts.StageRecord{
		Stage:     stage,
		Status:    contracts.RunRunning,
		StartedAt: &started,
	}
	o.mu.Lock()
	o.appendStage(run, record)
	o.persist(ctx, run)
	o.mu.Unlock()

	summary, ready, err := fn(ctx)
	finished := time.Now().UTC()

	o.mu.Lock()
	defer o.mu.Unlock()

	rec, _ := run.StageRecord(stage)
	rec.FinishedAt = &finished
	rec.Summary = summary
	rec.Readiness = ready
	if err != nil {
		rec.Status = contracts.RunError
		rec.Error = err.Error()
		o.persist(ctx, run)
		o.log.WithError(err).WithFields(map[string]interface{}{
			"run_id": run.ID,
			"stage":  stage.ShortName(),
		}).Error("stage failed")
		return ready, summary, err
	}

	rec.Status = contracts.RunCompleted
	if ready != nil && !ready.IsReady {
		rec.Status = contracts.RunDataMissing
	}
	o.persist(ctx, run)
	return ready, summary, nil
}

func (o *Orchestrator) appendStage(run *contracts.PipelineRun, record contracts.StageRecord) {
	if existing, ok := run.StageRecord(record.Stage); ok {
		*existing = record
		return
	}
	run.Stages = append(run.Stages, record)
}

// finish persists the terminal state under its own context so a
// cancelled run still records its outcome.
func (o *Orchestrator) finish(run *contracts.PipelineRun, status contracts.RunStatus, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	o.mu.Lock()
	run.Status = status
	run.FinishedAt = &now
	o.persist(ctx, run)
	o.mu.Unlock()
	log.WithField("status", string(status)).Info("run finished")
}

func (o *Orchestrator) persist(ctx context.Context, run *contracts.PipelineRun) {
	if err := o.runs.Update(ctx, run); err != nil {
		o.log.WithError(err).WithField("run_id", run.ID).Error("persist run state")
	}
}

func (o *Orchestrator) invalidateCache(ctx context.Context) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Delete(ctx, redis.PoolKey()); err != nil {
		o.log.WithError(err).Warn("invalidate pool cache")
	}
}
