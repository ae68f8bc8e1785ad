package strategyconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

const validYAML = `
screening:
  rules:
    - name: positive_revenue_growth
      kind: ratio_threshold
      enabled: true
      hard_reject: true
      ratio:
        field: revenue_growth
        op: gt
        threshold: 0
        min_periods: 1
    - name: benford_revenue
      kind: distribution_check
      enabled: true
      hard_reject: false
      distribution:
        field: revenue
        min_obs: 30
        p_floor: 0.05
        periods: 40
scoring:
  weights:
    quality: 0.3
    growth: 0.3
    value: 0.2
    momentum: 0.2
  momentum_agg: mean
ranking:
  periods: [60, 120, 250]
pool:
  core_size: 30
  supplement_size: 20
  supplement_rps: 90
  rank_change_delta: 5
signals:
  short_ma: 20
  long_ma: 60
  trend_ma: 250
  max_tranches: 3
  tranche_fraction: 0.1
  add_step_pct: 0.05
  stop_loss_pct: 0.08
  trailing_pct: 0.15
  weak_rps_floor: 60
  signal_ttl_hours: 120
`

func TestParseValid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Screening.Rules, 2)
	assert.Equal(t, contracts.RuleRatioThreshold, cfg.Screening.Rules[0].Kind)
	assert.Equal(t, contracts.RuleDistributionCheck, cfg.Screening.Rules[1].Kind)
	assert.Equal(t, []int{60, 120, 250}, cfg.Ranking.Periods)
	assert.NoError(t, cfg.Scoring.Weights.Validate())
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	doc := validYAML + "\nunknown_section:\n  foo: 1\n"
	_, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestParseRejectsUnknownRuleKind(t *testing.T) {
	doc := `
screening:
  rules:
    - name: bad
      kind: magic_indicator
      enabled: true
scoring:
  weights: {quality: 0.3, growth: 0.3, value: 0.2, momentum: 0.2}
  momentum_agg: mean
ranking:
  periods: [60]
pool: {core_size: 30, supplement_size: 20, supplement_rps: 90, rank_change_delta: 5}
signals: {short_ma: 20, long_ma: 60, trend_ma: 250, max_tranches: 3, tranche_fraction: 0.1,
  add_step_pct: 0.05, stop_loss_pct: 0.08, trailing_pct: 0.15, weak_rps_floor: 60, signal_ttl_hours: 120}
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := Default()
	cfg.Scoring.Weights.Momentum = 0.5
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownField(t *testing.T) {
	cfg := Default()
	cfg.Screening.Rules[0].Ratio.Field = "ebitda_margin"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestValidateRejectsHardDistribution(t *testing.T) {
	cfg := Default()
	for i := range cfg.Screening.Rules {
		if cfg.Screening.Rules[i].Kind == contracts.RuleDistributionCheck {
			cfg.Screening.Rules[i].HardReject = true
		}
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advisory")
}

func TestValidateRejectsUnreachableMinObs(t *testing.T) {
	// One observation per filing, so min_obs above periods could never
	// be satisfied and the rule would skip every symbol.
	cfg := Default()
	for i := range cfg.Screening.Rules {
		if cfg.Screening.Rules[i].Kind == contracts.RuleDistributionCheck {
			cfg.Screening.Rules[i].Distribution.MinObs = cfg.Screening.Rules[i].Distribution.Periods + 1
		}
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds periods")
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	cfg := Default()
	cfg.Screening.Rules[1].Name = cfg.Screening.Rules[0].Name
	require.Error(t, cfg.Validate())
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), logger.NewNop())
	require.NoError(t, err)
	assert.NotEmpty(t, m.Hash())
	assert.NotEmpty(t, m.Rules())
}

func TestLoadFromFileAndHashStability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	m1, err := Load(path, logger.NewNop())
	require.NoError(t, err)
	m2, err := Load(path, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, m1.Hash(), m2.Hash())
	assert.Len(t, m1.Hash(), 64)
}

func TestUpdateSwapsConfigAndHash(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), logger.NewNop())
	require.NoError(t, err)
	before := m.Hash()

	next := Default()
	next.Pool.CoreSize = 50
	require.NoError(t, m.Update(next))

	assert.NotEqual(t, before, m.Hash())
	assert.Equal(t, 50, m.PoolOptions().CoreSize)

	bad := Default()
	bad.Scoring.Weights.Quality = 0.9
	require.Error(t, m.Update(bad))
	assert.Equal(t, 50, m.PoolOptions().CoreSize, "failed update must not apply")
}
