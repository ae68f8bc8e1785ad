package signals

import (
	"context"
	"fmt"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// Deviation thresholds of the benchmark close against its long moving
// average. Below the MA but within warningFloor is warning; deeper is
// danger.
const (
	riskMAWindow = 250
	warningFloor = -0.05
)

// Exposure caps per risk state, as a fraction of capital.
var exposureCap = map[contracts.MarketRiskState]float64{
	contracts.RiskNormal:  1.0,
	contracts.RiskWarning: 0.5,
	contracts.RiskDanger:  0.0,
}

// IndexReader reads benchmark index history.
type IndexReader interface {
	IndexHistory(ctx context.Context, code string, limit int) ([]contracts.PriceBar, error)
}

// RiskMonitor derives the global market risk state from the benchmark
// index's position against its long moving average.
type RiskMonitor struct {
	index     IndexReader
	benchmark string
	log       *logger.Logger
}

// NewRiskMonitor creates a risk monitor for one benchmark index.
func NewRiskMonitor(index IndexReader, benchmark string, log *logger.Logger) *RiskMonitor {
	return &RiskMonitor{
		index:     index,
		benchmark: benchmark,
		log:       log.WithField("component", "risk"),
	}
}

// Snapshot computes the current risk state. The state machine is
// stateless over history: each evaluation derives the state from
// today's close and MA alone.
func (m *RiskMonitor) Snapshot(ctx context.Context) (*contracts.MarketRiskSnapshot, error) {
	bars, err := m.index.IndexHistory(ctx, m.benchmark, riskMAWindow)
	if err != nil {
		return nil, fmt.Errorf("benchmark history: %w", err)
	}
	if len(bars) < riskMAWindow {
		return nil, fmt.Errorf("benchmark %s has %d bars, need %d", m.benchmark, len(bars), riskMAWindow)
	}

	sum := 0.0
	for _, bar := range bars[:riskMAWindow] {
		sum += bar.Close
	}
	ma := sum / riskMAWindow
	close := bars[0].Close
	deviation := (close - ma) / ma

	snap := &contracts.MarketRiskSnapshot{
		State:        classify(deviation),
		Benchmark:    m.benchmark,
		Close:        close,
		LongMA:       ma,
		DeviationPct: deviation,
		AsOf:         bars[0].Date,
	}
	snap.MaxTotalExposure = exposureCap[snap.State]

	if snap.State != contracts.RiskNormal {
		m.log.WithFields(map[string]interface{}{
			"state":     string(snap.State),
			"deviation": deviation,
		}).Warn("market risk elevated")
	}

	return snap, nil
}

func classify(deviation float64) contracts.MarketRiskState {
	switch {
	case deviation >= 0:
		return contracts.RiskNormal
	case deviation >= warningFloor:
		return contracts.RiskWarning
	default:
		return contracts.RiskDanger
	}
}
