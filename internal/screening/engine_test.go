package screening

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

type fakeGate struct {
	ready bool
}

func (f *fakeGate) Check(_ context.Context, _ []contracts.DataRequirement) (*contracts.DataReadinessResult, error) {
	return &contracts.DataReadinessResult{
		IsReady:   f.ready,
		CheckedAt: time.Now(),
	}, nil
}

type fakeUniverse struct {
	codes []string
}

func (f *fakeUniverse) Universe(_ context.Context) ([]string, error) { return f.codes, nil }
func (f *fakeUniverse) History(_ context.Context, _ string, _ int) ([]contracts.PriceBar, error) {
	return nil, nil
}
func (f *fakeUniverse) CloseSeries(_ context.Context, _ time.Time, _ int) (map[string][]float64, error) {
	return nil, nil
}

type fakeFilings struct {
	byCode map[string][]contracts.Fundamental

	gotLimit int
}

func (f *fakeFilings) Latest(_ context.Context, codes []string) (map[string]contracts.Fundamental, error) {
	out := make(map[string]contracts.Fundamental)
	for _, c := range codes {
		if h := f.byCode[c]; len(h) > 0 {
			out[c] = h[0]
		}
	}
	return out, nil
}

// FilingHistory caps the returned history at limit rows the way the
// store does.
func (f *fakeFilings) FilingHistory(_ context.Context, code string, limit int) ([]contracts.Fundamental, error) {
	f.gotLimit = limit
	history := f.byCode[code]
	if len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

type captureRepo struct {
	saved *contracts.ScreeningResult
}

func (r *captureRepo) Save(_ context.Context, result *contracts.ScreeningResult) error {
	r.saved = result
	return nil
}

func (r *captureRepo) Latest(_ context.Context) (*contracts.ScreeningResult, error) {
	return r.saved, nil
}

func filing(growth, profitGrowth, roe float64) contracts.Fundamental {
	return contracts.Fundamental{
		RevenueGrowth: growth,
		ProfitGrowth:  profitGrowth,
		ROE:           roe,
	}
}

func defaultRules() []contracts.ScreeningRule {
	return []contracts.ScreeningRule{
		{
			Name: "positive_revenue_growth", Kind: contracts.RuleRatioThreshold,
			Enabled: true, HardReject: true,
			Ratio: &contracts.RatioParams{Field: "revenue_growth", Op: contracts.OpGT, Threshold: 0},
		},
		{
			Name: "positive_profit_growth", Kind: contracts.RuleRatioThreshold,
			Enabled: true, HardReject: true,
			Ratio: &contracts.RatioParams{Field: "profit_growth", Op: contracts.OpGT, Threshold: 0},
		},
		{
			Name: "min_roe", Kind: contracts.RuleRatioThreshold,
			Enabled: true, HardReject: true,
			Ratio: &contracts.RatioParams{Field: "roe", Op: contracts.OpGE, Threshold: 5},
		},
	}
}

func newTestEngine(universe []string, filings map[string][]contracts.Fundamental, ready bool) (*Engine, *captureRepo) {
	engine, _, repo := newTestEngineFilings(universe, filings, ready)
	return engine, repo
}

func newTestEngineFilings(universe []string, filings map[string][]contracts.Fundamental, ready bool) (*Engine, *fakeFilings, *captureRepo) {
	repo := &captureRepo{}
	funds := &fakeFilings{byCode: filings}
	engine := NewEngine(
		&fakeGate{ready: ready},
		&fakeUniverse{codes: universe},
		funds,
		repo,
		logger.NewNop(),
		4,
	)
	return engine, funds, repo
}

func TestRunScreeningPassesQualifyingSymbol(t *testing.T) {
	filings := map[string][]contracts.Fundamental{
		"600001": {filing(12.0, 8.0, 8.0)},  // all rules satisfied, ROE 8% >= 5%
		"600002": {filing(-3.0, 5.0, 9.0)},  // negative revenue growth
		"600003": {filing(10.0, 4.0, 3.0)},  // ROE below 5%
	}
	engine, repo := newTestEngine([]string{"600001", "600002", "600003"}, filings, true)

	result, err := engine.RunScreening(context.Background(), time.Now(), defaultRules())
	require.NoError(t, err)

	assert.Equal(t, []string{"600001"}, result.Passed)
	assert.ElementsMatch(t, []string{"600002", "600003"}, result.Rejected)
	require.NotNil(t, repo.saved)
	assert.Equal(t, result.Passed, repo.saved.Passed)
}

func TestRunScreeningCountInvariant(t *testing.T) {
	filings := map[string][]contracts.Fundamental{
		"600001": {filing(10, 10, 10)},
		"600002": {filing(-1, 10, 10)},
		"600003": nil, // no filings: skipped, not rejected
	}
	engine, _ := newTestEngine([]string{"600001", "600002", "600003"}, filings, true)

	result, err := engine.RunScreening(context.Background(), time.Now(), defaultRules())
	require.NoError(t, err)

	require.Len(t, result.RuleDetails, 3)
	for _, d := range result.RuleDetails {
		assert.True(t, d.Consistent(), "rule %s: %d+%d+%d != %d",
			d.Rule, d.Passed, d.Rejected, d.Skipped, d.Checked)
		assert.Equal(t, 3, d.Checked)
		assert.Equal(t, 1, d.Skipped)
	}

	// The symbol without filings passes through the chain unrejected.
	assert.Contains(t, result.Passed, "600003")
}

func TestRunScreeningGatedWithoutEvaluation(t *testing.T) {
	engine, repo := newTestEngine([]string{"600001"}, nil, false)

	result, err := engine.RunScreening(context.Background(), time.Now(), defaultRules())
	require.NoError(t, err)

	assert.True(t, result.Gated())
	assert.Empty(t, result.RuleDetails)
	assert.Empty(t, result.Passed)
	assert.Nil(t, repo.saved, "gated results must not be persisted")
}

func TestRunScreeningDisabledRuleNotEvaluated(t *testing.T) {
	rules := defaultRules()
	rules[2].Enabled = false // min_roe off

	filings := map[string][]contracts.Fundamental{
		"600003": {filing(10.0, 4.0, 3.0)},
	}
	engine, _ := newTestEngine([]string{"600003"}, filings, true)

	result, err := engine.RunScreening(context.Background(), time.Now(), rules)
	require.NoError(t, err)

	assert.Len(t, result.RuleDetails, 2)
	for _, d := range result.RuleDetails {
		assert.NotEqual(t, "min_roe", d.Rule)
	}
}

func TestRunScreeningDistributionWarnsOnly(t *testing.T) {
	// All filings lead with digit 9: maximally non-Benford.
	history := make([]contracts.Fundamental, 40)
	for i := range history {
		history[i] = contracts.Fundamental{Revenue: 9_000_000, RevenueGrowth: 10, ProfitGrowth: 10, ROE: 10}
	}

	rules := append(defaultRules(), contracts.ScreeningRule{
		Name: "benford_revenue", Kind: contracts.RuleDistributionCheck,
		Enabled: true, HardReject: false,
		Distribution: &contracts.DistributionParams{
			Field: "revenue", MinObs: 30, PFloor: 0.05, Periods: 40,
		},
	})

	engine, _ := newTestEngine([]string{"600001"},
		map[string][]contracts.Fundamental{"600001": history}, true)

	result, err := engine.RunScreening(context.Background(), time.Now(), rules)
	require.NoError(t, err)

	// Flagged but still passing the chain.
	assert.Equal(t, []string{"600001"}, result.Passed)
	assert.Contains(t, result.Warnings["600001"], "benford_revenue")
}

func TestRunScreeningFilingDepthFollowsRules(t *testing.T) {
	// A 40-period distribution rule needs 40 filings per symbol; a
	// shallow fixed lookback would starve it below its minimum
	// observation bar and the rule would skip every symbol.
	history := make([]contracts.Fundamental, 40)
	for i := range history {
		history[i] = contracts.Fundamental{Revenue: 9_000_000}
	}

	rules := []contracts.ScreeningRule{{
		Name: "benford_revenue", Kind: contracts.RuleDistributionCheck,
		Enabled: true, HardReject: false,
		Distribution: &contracts.DistributionParams{
			Field: "revenue", MinObs: 30, PFloor: 0.05, Periods: 40,
		},
	}}

	engine, funds, _ := newTestEngineFilings([]string{"600001"},
		map[string][]contracts.Fundamental{"600001": history}, true)

	result, err := engine.RunScreening(context.Background(), time.Now(), rules)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, funds.gotLimit, 40)
	require.Len(t, result.RuleDetails, 1)
	assert.Zero(t, result.RuleDetails[0].Skipped)
	assert.Contains(t, result.Warnings["600001"], "benford_revenue")
}

func TestFilingLookbackDepth(t *testing.T) {
	deep := []contracts.ScreeningRule{
		{Name: "a", Kind: contracts.RuleRatioThreshold, Enabled: true,
			Ratio: &contracts.RatioParams{Field: "roe", Op: contracts.OpGE, MinPeriods: 12}},
		{Name: "b", Kind: contracts.RuleDistributionCheck, Enabled: true,
			Distribution: &contracts.DistributionParams{Field: "revenue", Periods: 48}},
		{Name: "c", Kind: contracts.RuleDistributionCheck, Enabled: false,
			Distribution: &contracts.DistributionParams{Field: "revenue", Periods: 99}},
	}
	// Disabled rules do not widen the window; shallow rule sets keep
	// the floor.
	assert.Equal(t, 48, filingLookback(deep))
	assert.Equal(t, minFilingLookback, filingLookback(nil))
}

func TestRunScreeningDistributionSkipsThinHistory(t *testing.T) {
	rules := []contracts.ScreeningRule{{
		Name: "benford_revenue", Kind: contracts.RuleDistributionCheck,
		Enabled: true, HardReject: false,
		Distribution: &contracts.DistributionParams{
			Field: "revenue", MinObs: 30, PFloor: 0.05, Periods: 40,
		},
	}}

	engine, _ := newTestEngine([]string{"600001"},
		map[string][]contracts.Fundamental{"600001": {filing(1, 1, 1)}}, true)

	result, err := engine.RunScreening(context.Background(), time.Now(), rules)
	require.NoError(t, err)

	require.Len(t, result.RuleDetails, 1)
	assert.Equal(t, 1, result.RuleDetails[0].Skipped)
	assert.Empty(t, result.Warnings)
}
