package screening

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
)

func TestLeadingDigit(t *testing.T) {
	tests := []struct {
		value float64
		digit int
		ok    bool
	}{
		{123.45, 1, true},
		{0.0042, 4, true},
		{9_999_999, 9, true},
		{-250, 2, true},
		{0, 0, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
	}
	for _, tt := range tests {
		d, ok := leadingDigit(tt.value)
		assert.Equal(t, tt.ok, ok, "value %v", tt.value)
		if tt.ok {
			assert.Equal(t, tt.digit, d, "value %v", tt.value)
		}
	}
}

func TestChiSquareSurvival(t *testing.T) {
	// Known quantiles of the chi-square distribution with 8 dof.
	assert.InDelta(t, 0.05, chiSquareSurvival(15.507, 8), 1e-3)
	assert.InDelta(t, 0.95, chiSquareSurvival(2.733, 8), 1e-3)
	assert.Equal(t, 1.0, chiSquareSurvival(0, 8))
	assert.Less(t, chiSquareSurvival(50, 8), 1e-6)
}

func TestEvalDistributionConformingSample(t *testing.T) {
	// Build a sample that follows the expected leading-digit counts for
	// n=100 almost exactly.
	counts := [9]int{30, 18, 12, 10, 8, 7, 6, 5, 4}
	var filings []contracts.Fundamental
	for d := 1; d <= 9; d++ {
		for i := 0; i < counts[d-1]; i++ {
			filings = append(filings, contracts.Fundamental{Revenue: float64(d) * 1000})
		}
	}

	rule := &contracts.DistributionParams{Field: "revenue", MinObs: 30, PFloor: 0.05}
	out, err := evalDistribution(rule, filings)
	require.NoError(t, err)

	assert.False(t, out.skipped)
	assert.False(t, out.flagged)
	assert.Greater(t, out.pValue, 0.5)
}

func TestEvalDistributionAnomalousSample(t *testing.T) {
	// Every value leads with 9.
	filings := make([]contracts.Fundamental, 60)
	for i := range filings {
		filings[i] = contracts.Fundamental{Revenue: 900 + float64(i)}
	}

	rule := &contracts.DistributionParams{Field: "revenue", MinObs: 30, PFloor: 0.05}
	out, err := evalDistribution(rule, filings)
	require.NoError(t, err)

	assert.True(t, out.flagged)
	assert.Less(t, out.pValue, 1e-6)
}

func TestEvalDistributionSkipsBelowMinObs(t *testing.T) {
	filings := []contracts.Fundamental{{Revenue: 123}, {Revenue: 456}}
	rule := &contracts.DistributionParams{Field: "revenue", MinObs: 30, PFloor: 0.05}

	out, err := evalDistribution(rule, filings)
	require.NoError(t, err)
	assert.True(t, out.skipped)
}

func TestEvalDistributionZeroValuesDropped(t *testing.T) {
	// Zeros carry no digit and must not count toward MinObs.
	filings := make([]contracts.Fundamental, 35)
	for i := 0; i < 5; i++ {
		filings[i] = contracts.Fundamental{Revenue: float64(i+1) * 100}
	}

	rule := &contracts.DistributionParams{Field: "revenue", MinObs: 30, PFloor: 0.05}
	out, err := evalDistribution(rule, filings)
	require.NoError(t, err)
	assert.True(t, out.skipped)
	assert.Equal(t, 5, out.obs)
}
