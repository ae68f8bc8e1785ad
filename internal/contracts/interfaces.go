package contracts

import (
	"context"
	"time"
)

// ReadinessChecker gates a stage on local-data completeness (S0).
type ReadinessChecker interface {
	Check(ctx context.Context, reqs []DataRequirement) (*DataReadinessResult, error)
}

// ScreeningEngine applies the rule chain over the symbol universe (S1).
type ScreeningEngine interface {
	RunScreening(ctx context.Context, asOf time.Time, rules []ScreeningRule) (*ScreeningResult, error)
}

// StrengthRanker computes RPS percentile ranks (S2).
type StrengthRanker interface {
	ComputeRanks(ctx context.Context, asOf time.Time, periods []int) (*RankingResult, error)
}

// FactorScorer computes per-symbol factor scores (S3).
type FactorScorer interface {
	Score(ctx context.Context, codes []string, ranks []SymbolRankRow) ([]FactorScoreDetail, error)
}

// PoolBuilder assembles the core/supplement pool (S4).
type PoolBuilder interface {
	BuildPool(ctx context.Context, screening *ScreeningResult, ranks []SymbolRankRow, scores []FactorScoreDetail) (*CorePoolResult, error)
}

// TechnicalAnalyzer computes technical snapshots over the pool (S5).
type TechnicalAnalyzer interface {
	TechnicalSnapshot(ctx context.Context, code string) (*TechSnapshot, error)
}

// SignalEngine runs the entry/add/exit state machine (S6).
type SignalEngine interface {
	Generate(ctx context.Context, pool *CorePoolResult, ranks []SymbolRankRow) ([]TradingSignal, error)
}
