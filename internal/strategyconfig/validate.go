package strategyconfig

import (
	"fmt"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/screening"
)

// Validate rejects any configuration the pipeline could misinterpret.
// Unknown rule kinds, unknown fields and inconsistent parameters fail
// here, at load time, never at evaluation time.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i := range c.Screening.Rules {
		rule := &c.Screening.Rules[i]
		if rule.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("rule %q: duplicate name", rule.Name)
		}
		seen[rule.Name] = true

		switch rule.Kind {
		case contracts.RuleRatioThreshold:
			if err := validateRatio(rule); err != nil {
				return fmt.Errorf("rule %q: %w", rule.Name, err)
			}
		case contracts.RuleDistributionCheck:
			if err := validateDistribution(rule); err != nil {
				return fmt.Errorf("rule %q: %w", rule.Name, err)
			}
		default:
			return fmt.Errorf("rule %q: unknown kind %q", rule.Name, rule.Kind)
		}
	}

	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if c.Scoring.MomentumAgg != "mean" && c.Scoring.MomentumAgg != "max" {
		return fmt.Errorf("scoring: momentum_agg must be mean or max, got %q", c.Scoring.MomentumAgg)
	}

	if len(c.Ranking.Periods) == 0 {
		return fmt.Errorf("ranking: at least one period is required")
	}
	for _, p := range c.Ranking.Periods {
		if p < 2 {
			return fmt.Errorf("ranking: period %d is too short", p)
		}
	}

	if c.Pool.CoreSize < 1 {
		return fmt.Errorf("pool: core_size must be at least 1")
	}
	if c.Pool.SupplementSize < 0 {
		return fmt.Errorf("pool: supplement_size must not be negative")
	}
	if c.Pool.SupplementRPS < 0 || c.Pool.SupplementRPS > 100 {
		return fmt.Errorf("pool: supplement_rps must be within [0,100]")
	}
	if c.Pool.SupplementROE < 0 {
		return fmt.Errorf("pool: supplement_roe must not be negative")
	}
	if c.Pool.RankChangeDelta < 1 {
		return fmt.Errorf("pool: rank_change_delta must be at least 1")
	}

	s := c.Signals
	if s.ShortMA < 1 || s.LongMA <= s.ShortMA {
		return fmt.Errorf("signals: long_ma must exceed short_ma")
	}
	if s.MaxTranches < 1 || s.MaxTranches > 3 {
		return fmt.Errorf("signals: max_tranches must be within [1,3]")
	}
	if s.TrancheFraction <= 0 || s.TrancheFraction > 1 {
		return fmt.Errorf("signals: tranche_fraction must be within (0,1]")
	}
	if s.StopLossPct <= 0 || s.TrailingPct <= 0 {
		return fmt.Errorf("signals: stop thresholds must be positive")
	}
	if s.WeakRPSFloor < 0 || s.WeakRPSFloor > 100 {
		return fmt.Errorf("signals: weak_rps_floor must be within [0,100]")
	}
	if s.SignalTTLHours < 1 {
		return fmt.Errorf("signals: signal_ttl_hours must be at least 1")
	}

	return nil
}

func validateRatio(rule *contracts.ScreeningRule) error {
	if rule.Ratio == nil {
		return fmt.Errorf("ratio parameters are required")
	}
	if !screening.KnownField(rule.Ratio.Field) {
		return fmt.Errorf("unknown field %q", rule.Ratio.Field)
	}
	switch rule.Ratio.Op {
	case contracts.OpGT, contracts.OpGE, contracts.OpLT, contracts.OpLE:
	default:
		return fmt.Errorf("unknown op %q", rule.Ratio.Op)
	}
	if rule.Ratio.MinPeriods < 0 {
		return fmt.Errorf("min_periods must not be negative")
	}
	return nil
}

func validateDistribution(rule *contracts.ScreeningRule) error {
	if rule.Distribution == nil {
		return fmt.Errorf("distribution parameters are required")
	}
	if rule.HardReject {
		return fmt.Errorf("distribution checks are advisory and cannot hard-reject")
	}
	if !screening.KnownField(rule.Distribution.Field) {
		return fmt.Errorf("unknown field %q", rule.Distribution.Field)
	}
	if rule.Distribution.MinObs < 9 {
		return fmt.Errorf("min_obs must be at least 9")
	}
	if rule.Distribution.Periods < 1 {
		return fmt.Errorf("periods must be at least 1")
	}
	// One observation per filing, so min_obs beyond periods can never
	// be reached and the rule would silently skip every symbol.
	if rule.Distribution.MinObs > rule.Distribution.Periods {
		return fmt.Errorf("min_obs %d exceeds periods %d", rule.Distribution.MinObs, rule.Distribution.Periods)
	}
	if rule.Distribution.PFloor <= 0 || rule.Distribution.PFloor >= 1 {
		return fmt.Errorf("p_floor must be within (0,1)")
	}
	return nil
}
