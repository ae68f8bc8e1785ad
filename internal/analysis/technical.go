// Package analysis implements the S5 deep analyzer: locally computed
// technical snapshots over the pool, with narrative analysis delegated
// to an external text-analysis capability.
package analysis

import (
	"context"
	"fmt"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

const (
	maShortWindow = 20
	maLongWindow  = 250
	rsiWindow     = 14
	macdFast      = 12
	macdSlow      = 26
	macdSignal    = 9

	volumeShortWindow = 5
	volumeLongWindow  = 60

	// History needed for a full snapshot: long MA plus EMA warmup.
	historyDepth = maLongWindow + macdSlow + macdSignal
)

// Technical implements contracts.TechnicalAnalyzer over price history.
type Technical struct {
	prices contracts.PriceReader
	log    *logger.Logger
}

// NewTechnical creates a technical analyzer.
func NewTechnical(prices contracts.PriceReader, log *logger.Logger) *Technical {
	return &Technical{prices: prices, log: log.WithField("component", "analysis")}
}

// TechnicalSnapshot computes the full indicator set for one symbol from
// its price history. Indicators run on chronological series; History
// returns newest first, so the bars are reversed once here.
func (t *Technical) TechnicalSnapshot(ctx context.Context, code string) (*contracts.TechSnapshot, error) {
	bars, err := t.prices.History(ctx, code, historyDepth)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", code, err)
	}
	if len(bars) < maLongWindow {
		return nil, fmt.Errorf("symbol %s has %d bars, need %d", code, len(bars), maLongWindow)
	}

	closes := make([]float64, len(bars))
	volumes := make([]int64, len(bars))
	for i, bar := range bars {
		closes[len(bars)-1-i] = bar.Close
		volumes[len(bars)-1-i] = bar.Volume
	}

	snap := &contracts.TechSnapshot{
		Code:  code,
		AsOf:  bars[0].Date,
		Close: closes[len(closes)-1],
	}

	snap.MAShort = sma(closes, maShortWindow)
	snap.MALong = sma(closes, maLongWindow)
	snap.MAState = maState(snap.Close, snap.MAShort, snap.MALong)
	snap.RSI = rsi(closes, rsiWindow)
	snap.MACD, snap.MACDSignal = macd(closes)
	snap.VolumeRatio = volumeRatio(volumes, volumeShortWindow, volumeLongWindow)
	snap.Score = compositeScore(snap)

	return snap, nil
}

// sma is the simple moving average of the last window values.
func sma(series []float64, window int) float64 {
	if len(series) < window {
		window = len(series)
	}
	sum := 0.0
	for _, v := range series[len(series)-window:] {
		sum += v
	}
	return sum / float64(window)
}

func maState(close, short, long float64) contracts.MAState {
	switch {
	case close > short && close > long:
		return contracts.MAAboveAll
	case close < short && close < long:
		return contracts.MABelowAll
	default:
		return contracts.MAMixed
	}
}

// rsi is Wilder's relative strength index over the last window changes.
func rsi(closes []float64, window int) float64 {
	if len(closes) < window+1 {
		return 50
	}

	start := len(closes) - window - 1
	var gains, losses float64
	for i := start + 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}

// macd returns the MACD line and its signal line from 12/26/9 EMAs.
func macd(closes []float64) (line, signal float64) {
	if len(closes) < macdSlow+macdSignal {
		return 0, 0
	}

	fast := ema(closes, macdFast)
	slow := ema(closes, macdSlow)

	diff := make([]float64, len(closes))
	for i := range closes {
		diff[i] = fast[i] - slow[i]
	}
	sig := ema(diff[macdSlow-1:], macdSignal)

	return diff[len(diff)-1], sig[len(sig)-1]
}

// ema computes the exponential moving average series, seeded with the
// first value.
func ema(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}
	k := 2.0 / (float64(window) + 1)
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = series[i]*k + out[i-1]*(1-k)
	}
	return out
}

// volumeRatio compares the recent average volume against a longer base
// window.
func volumeRatio(volumes []int64, short, long int) float64 {
	if len(volumes) < long || short < 1 || short >= long {
		return 1
	}
	base := avgVolume(volumes[len(volumes)-long:])
	if base == 0 {
		return 1
	}
	return avgVolume(volumes[len(volumes)-short:]) / base
}

func avgVolume(volumes []int64) float64 {
	sum := 0.0
	for _, v := range volumes {
		sum += float64(v)
	}
	return sum / float64(len(volumes))
}

// compositeScore folds the indicators into one 0-100 technical score.
// Trend position dominates; RSI contributes most near the middle of its
// range, and volume confirmation adds the rest.
func compositeScore(s *contracts.TechSnapshot) float64 {
	score := 0.0

	switch s.MAState {
	case contracts.MAAboveAll:
		score += 40
	case contracts.MAMixed:
		score += 20
	}

	switch {
	case s.RSI >= 45 && s.RSI <= 70:
		score += 30
	case s.RSI > 70 && s.RSI <= 80:
		score += 15
	case s.RSI >= 30 && s.RSI < 45:
		score += 15
	}

	if s.MACD > s.MACDSignal {
		score += 15
	}

	switch {
	case s.VolumeRatio >= 1.2 && s.VolumeRatio <= 3:
		score += 15
	case s.VolumeRatio > 0.8 && s.VolumeRatio < 1.2:
		score += 8
	}

	return score
}
