package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

type fakeHistory struct {
	bars map[string][]contracts.PriceBar
}

func (f *fakeHistory) History(_ context.Context, code string, _ int) ([]contracts.PriceBar, error) {
	return f.bars[code], nil
}
func (f *fakeHistory) CloseSeries(_ context.Context, _ time.Time, _ int) (map[string][]float64, error) {
	return nil, nil
}
func (f *fakeHistory) Universe(_ context.Context) ([]string, error) { return nil, nil }

// trendBars builds n newest-first bars rising (or falling) linearly by
// step per session, ending at endClose.
func trendBars(endClose, step float64, n int) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, n)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		bars[i] = contracts.PriceBar{
			Date:   day.AddDate(0, 0, -i),
			Close:  endClose - step*float64(i),
			Volume: 1_000_000,
		}
	}
	return bars
}

func TestSnapshotUptrend(t *testing.T) {
	prices := &fakeHistory{bars: map[string][]contracts.PriceBar{
		"600001": trendBars(200, 0.2, 300),
	}}
	tech := NewTechnical(prices, logger.NewNop())

	snap, err := tech.TechnicalSnapshot(context.Background(), "600001")
	require.NoError(t, err)

	assert.Equal(t, 200.0, snap.Close)
	assert.Equal(t, contracts.MAAboveAll, snap.MAState)
	assert.Greater(t, snap.MAShort, snap.MALong)
	assert.Equal(t, 100.0, snap.RSI) // monotone rise has no down days
	assert.Greater(t, snap.MACD, 0.0)
}

func TestSnapshotDowntrend(t *testing.T) {
	prices := &fakeHistory{bars: map[string][]contracts.PriceBar{
		"600001": trendBars(100, -0.2, 300),
	}}
	tech := NewTechnical(prices, logger.NewNop())

	snap, err := tech.TechnicalSnapshot(context.Background(), "600001")
	require.NoError(t, err)

	assert.Equal(t, contracts.MABelowAll, snap.MAState)
	assert.Less(t, snap.RSI, 10.0)
	assert.Less(t, snap.MACD, 0.0)
	assert.Less(t, snap.Score, 30.0)
}

func TestSnapshotInsufficientHistory(t *testing.T) {
	prices := &fakeHistory{bars: map[string][]contracts.PriceBar{
		"600001": trendBars(100, 0.1, 50),
	}}
	tech := NewTechnical(prices, logger.NewNop())

	_, err := tech.TechnicalSnapshot(context.Background(), "600001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need")
}

func TestVolumeRatio(t *testing.T) {
	// 60-session base of 1000, last 5 sessions at 3000: short avg 3000,
	// long avg (55*1000+5*3000)/60.
	volumes := make([]int64, 60)
	for i := range volumes {
		volumes[i] = 1000
	}
	for i := 55; i < 60; i++ {
		volumes[i] = 3000
	}

	want := 3000.0 / ((55*1000.0 + 5*3000.0) / 60.0)
	assert.InDelta(t, want, volumeRatio(volumes, 5, 60), 1e-9)

	// Too little history: neutral.
	assert.Equal(t, 1.0, volumeRatio(volumes[:30], 5, 60))
}

func TestRSIBounds(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	assert.Equal(t, 100.0, rsi(up, 14))

	down := []float64{16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	assert.Equal(t, 0.0, rsi(down, 14))

	// Too little history: neutral.
	assert.Equal(t, 50.0, rsi([]float64{1, 2}, 14))
}

func TestCompositeScoreRange(t *testing.T) {
	snaps := []*contracts.TechSnapshot{
		{MAState: contracts.MAAboveAll, RSI: 55, MACD: 1, MACDSignal: 0.5, VolumeRatio: 1.5},
		{MAState: contracts.MABelowAll, RSI: 15, MACD: -1, MACDSignal: -0.5, VolumeRatio: 0.3},
		{MAState: contracts.MAMixed, RSI: 75, MACD: 0, MACDSignal: 0, VolumeRatio: 1.0},
	}
	for _, s := range snaps {
		score := compositeScore(s)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
	}

	assert.Equal(t, 100.0, compositeScore(snaps[0]))
	assert.Equal(t, 0.0, compositeScore(snaps[1]))
}
