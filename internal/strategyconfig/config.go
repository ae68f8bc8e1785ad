// Package strategyconfig loads and validates the strategy parameters:
// screening rules, factor weights, RPS periods, pool sizing and
// signal thresholds. The file is the single authority; every knob the
// pipeline consumes comes from here, validated at load time.
package strategyconfig

import (
	"time"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
)

// Config is the full strategy file.
type Config struct {
	Screening ScreeningSection `yaml:"screening" json:"screening"`
	Scoring   ScoringSection   `yaml:"scoring" json:"scoring"`
	Ranking   RankingSection   `yaml:"ranking" json:"ranking"`
	Pool      PoolSection      `yaml:"pool" json:"pool"`
	Signals   SignalsSection   `yaml:"signals" json:"signals"`
}

// ScreeningSection holds the rule chain.
type ScreeningSection struct {
	Rules []contracts.ScreeningRule `yaml:"rules" json:"rules"`
}

// ScoringSection holds factor weights and momentum aggregation.
type ScoringSection struct {
	Weights     contracts.FactorWeights `yaml:"weights" json:"weights"`
	MomentumAgg string                  `yaml:"momentum_agg" json:"momentum_agg"` // mean or max
}

// RankingSection holds the RPS windows.
type RankingSection struct {
	Periods []int `yaml:"periods" json:"periods"` // trading sessions
}

// PoolSection holds pool sizing.
type PoolSection struct {
	CoreSize        int     `yaml:"core_size" json:"core_size"`
	SupplementSize  int     `yaml:"supplement_size" json:"supplement_size"`
	SupplementRPS   float64 `yaml:"supplement_rps" json:"supplement_rps"`
	SupplementROE   float64 `yaml:"supplement_roe" json:"supplement_roe"`
	RankChangeDelta int     `yaml:"rank_change_delta" json:"rank_change_delta"`
}

// SignalsSection holds the state-machine thresholds.
type SignalsSection struct {
	ShortMA         int     `yaml:"short_ma" json:"short_ma"`
	LongMA          int     `yaml:"long_ma" json:"long_ma"`
	TrendMA         int     `yaml:"trend_ma" json:"trend_ma"`
	MaxTranches     int     `yaml:"max_tranches" json:"max_tranches"`
	TrancheFraction float64 `yaml:"tranche_fraction" json:"tranche_fraction"`
	AddStepPct      float64 `yaml:"add_step_pct" json:"add_step_pct"`
	StopLossPct     float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	TrailingPct     float64 `yaml:"trailing_pct" json:"trailing_pct"`
	WeakRPSFloor    float64 `yaml:"weak_rps_floor" json:"weak_rps_floor"`
	SignalTTLHours  int     `yaml:"signal_ttl_hours" json:"signal_ttl_hours"`
}

// Default returns the built-in strategy used when no file overrides it.
func Default() *Config {
	return &Config{
		Screening: ScreeningSection{
			Rules: []contracts.ScreeningRule{
				{
					Name: "positive_revenue_growth", Kind: contracts.RuleRatioThreshold,
					Enabled: true, HardReject: true,
					Ratio: &contracts.RatioParams{Field: "revenue_growth", Op: contracts.OpGT, Threshold: 0, MinPeriods: 1},
				},
				{
					Name: "positive_profit_growth", Kind: contracts.RuleRatioThreshold,
					Enabled: true, HardReject: true,
					Ratio: &contracts.RatioParams{Field: "profit_growth", Op: contracts.OpGT, Threshold: 0, MinPeriods: 1},
				},
				{
					Name: "min_roe", Kind: contracts.RuleRatioThreshold,
					Enabled: true, HardReject: true,
					Ratio: &contracts.RatioParams{Field: "roe", Op: contracts.OpGE, Threshold: 5, MinPeriods: 1},
				},
				{
					Name: "benford_revenue", Kind: contracts.RuleDistributionCheck,
					Enabled: true, HardReject: false,
					Distribution: &contracts.DistributionParams{Field: "revenue", MinObs: 30, PFloor: 0.05, Periods: 40},
				},
			},
		},
		Scoring: ScoringSection{
			Weights:     contracts.FactorWeights{Quality: 0.3, Growth: 0.3, Value: 0.2, Momentum: 0.2},
			MomentumAgg: "mean",
		},
		Ranking: RankingSection{Periods: []int{60, 120, 250}},
		Pool: PoolSection{
			CoreSize:        30,
			SupplementSize:  20,
			SupplementRPS:   90,
			SupplementROE:   3,
			RankChangeDelta: 5,
		},
		Signals: SignalsSection{
			ShortMA:         20,
			LongMA:          60,
			TrendMA:         250,
			MaxTranches:     3,
			TrancheFraction: 0.1,
			AddStepPct:      0.05,
			StopLossPct:     0.08,
			TrailingPct:     0.15,
			WeakRPSFloor:    60,
			SignalTTLHours:  120,
		},
	}
}

// SignalTTL returns the signal consideration window as a duration.
func (s SignalsSection) SignalTTL() time.Duration {
	return time.Duration(s.SignalTTLHours) * time.Hour
}
