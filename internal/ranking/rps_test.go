package ranking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

type fakeGate struct{ ready bool }

func (f *fakeGate) Check(_ context.Context, _ []contracts.DataRequirement) (*contracts.DataReadinessResult, error) {
	return &contracts.DataReadinessResult{IsReady: f.ready, CheckedAt: time.Now()}, nil
}

type fakePrices struct {
	series map[string][]float64

	gotMinBars int
}

// CloseSeries caps each series at minBars rows the way the store does.
func (f *fakePrices) CloseSeries(_ context.Context, _ time.Time, minBars int) (map[string][]float64, error) {
	f.gotMinBars = minBars
	out := make(map[string][]float64, len(f.series))
	for code, closes := range f.series {
		if len(closes) > minBars {
			closes = closes[:minBars]
		}
		out[code] = closes
	}
	return out, nil
}
func (f *fakePrices) Universe(_ context.Context) ([]string, error) { return nil, nil }
func (f *fakePrices) History(_ context.Context, _ string, _ int) ([]contracts.PriceBar, error) {
	return nil, nil
}

type fakeRankRepo struct {
	saved []contracts.SymbolRankRow
}

func (f *fakeRankRepo) Save(_ context.Context, _ time.Time, rows []contracts.SymbolRankRow) error {
	f.saved = rows
	return nil
}
func (f *fakeRankRepo) Latest(_ context.Context) ([]contracts.SymbolRankRow, error) {
	return f.saved, nil
}

// flatSeries builds a newest-first close series ending at endPrice with
// a constant start price of 100 n sessions ago.
func flatSeries(endPrice float64, n int) []float64 {
	closes := make([]float64, n+1)
	closes[0] = endPrice
	step := (endPrice - 100) / float64(n)
	for i := 1; i <= n; i++ {
		closes[i] = endPrice - step*float64(i)
	}
	return closes
}

func newTestRanker(series map[string][]float64) (*Ranker, *fakeRankRepo) {
	repo := &fakeRankRepo{}
	return NewRanker(&fakeGate{ready: true}, &fakePrices{series: series}, repo, logger.NewNop()), repo
}

func TestComputeRanksMonotonic(t *testing.T) {
	// Three symbols with strictly increasing 60-session returns.
	series := map[string][]float64{
		"600001": flatSeries(110, 60), // +10%
		"600002": flatSeries(130, 60), // +30%
		"600003": flatSeries(150, 60), // +50%
	}
	ranker, repo := newTestRanker(series)

	result, err := ranker.ComputeRanks(context.Background(), time.Now(), []int{60})
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)

	pct := make(map[string]float64)
	for _, row := range result.Rows {
		p, ok := row.Percentile(60)
		require.True(t, ok)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 100.0)
		pct[row.Code] = p
	}

	assert.Equal(t, 0.0, pct["600001"])
	assert.Equal(t, 50.0, pct["600002"])
	assert.Equal(t, 100.0, pct["600003"])
	assert.Equal(t, result.Rows, repo.saved)
}

func TestComputeRanksLoadsLongestWindow(t *testing.T) {
	// Both symbols carry a full year of history. The loader must fetch
	// enough closes for the longest window, not just the shortest, or
	// the 250-session ranking comes back empty.
	series := map[string][]float64{
		"600001": flatSeries(120, 250),
		"600002": flatSeries(140, 250),
	}
	prices := &fakePrices{series: series}
	repo := &fakeRankRepo{}
	ranker := NewRanker(&fakeGate{ready: true}, prices, repo, logger.NewNop())

	result, err := ranker.ComputeRanks(context.Background(), time.Now(), []int{60, 250})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	assert.Equal(t, 251, prices.gotMinBars)
	for _, row := range result.Rows {
		_, has60 := row.Percentile(60)
		_, has250 := row.Percentile(250)
		assert.True(t, has60, "60-session rank missing for %s", row.Code)
		assert.True(t, has250, "250-session rank missing for %s", row.Code)
	}
}

func TestComputeRanksShortHistoryExcludedPerPeriod(t *testing.T) {
	series := map[string][]float64{
		"600001": flatSeries(120, 250), // full history
		"600002": flatSeries(140, 250),
		"600003": flatSeries(150, 80), // only 80 sessions
	}
	ranker, _ := newTestRanker(series)

	result, err := ranker.ComputeRanks(context.Background(), time.Now(), []int{60, 250})
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)

	var short *contracts.SymbolRankRow
	for i := range result.Rows {
		if result.Rows[i].Code == "600003" {
			short = &result.Rows[i]
		}
	}
	require.NotNil(t, short)

	// Ranked in the 60-session window, absent from the 250-session one.
	_, has60 := short.Percentile(60)
	_, has250 := short.Percentile(250)
	assert.True(t, has60)
	assert.False(t, has250)
}

func TestComputeRanksTiesSharePercentile(t *testing.T) {
	series := map[string][]float64{
		"600001": flatSeries(120, 60),
		"600002": flatSeries(120, 60),
		"600003": flatSeries(150, 60),
	}
	ranker, _ := newTestRanker(series)

	result, err := ranker.ComputeRanks(context.Background(), time.Now(), []int{60})
	require.NoError(t, err)

	pct := make(map[string]float64)
	for _, row := range result.Rows {
		p, _ := row.Percentile(60)
		pct[row.Code] = p
	}
	assert.Equal(t, pct["600001"], pct["600002"])
	assert.Greater(t, pct["600003"], pct["600001"])
}

func TestComputeRanksGatedCarriesReadiness(t *testing.T) {
	repo := &fakeRankRepo{}
	ranker := NewRanker(&fakeGate{ready: false}, &fakePrices{}, repo, logger.NewNop())

	result, err := ranker.ComputeRanks(context.Background(), time.Now(), []int{60})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Gated())
	require.NotNil(t, result.Readiness)
	assert.False(t, result.Readiness.IsReady)
	assert.Empty(t, result.Rows)
	assert.Nil(t, repo.saved)
}

func TestComputeRanksSingleSymbol(t *testing.T) {
	ranker, _ := newTestRanker(map[string][]float64{"600001": flatSeries(120, 60)})

	result, err := ranker.ComputeRanks(context.Background(), time.Now(), []int{60})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	p, ok := result.Rows[0].Percentile(60)
	require.True(t, ok)
	assert.Equal(t, 100.0, p)
}
