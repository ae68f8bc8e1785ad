package signals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

type fakePrices struct {
	closes map[string][]float64 // newest first
}

func (f *fakePrices) History(_ context.Context, code string, limit int) ([]contracts.PriceBar, error) {
	closes := f.closes[code]
	if len(closes) > limit {
		closes = closes[:limit]
	}
	bars := make([]contracts.PriceBar, len(closes))
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = contracts.PriceBar{Code: code, Date: day.AddDate(0, 0, -i), Close: c}
	}
	return bars, nil
}
func (f *fakePrices) CloseSeries(_ context.Context, _ time.Time, _ int) (map[string][]float64, error) {
	return nil, nil
}
func (f *fakePrices) Universe(_ context.Context) ([]string, error) { return nil, nil }

type fakeIndex struct {
	closes []float64 // newest first
}

func (f *fakeIndex) IndexHistory(_ context.Context, code string, limit int) ([]contracts.PriceBar, error) {
	closes := f.closes
	if len(closes) > limit {
		closes = closes[:limit]
	}
	bars := make([]contracts.PriceBar, len(closes))
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = contracts.PriceBar{Code: code, Date: day.AddDate(0, 0, -i), Close: c}
	}
	return bars, nil
}

type fakeSignalRepo struct {
	positions map[string]*contracts.Position
	signals   []contracts.TradingSignal
}

func (f *fakeSignalRepo) SaveSignals(_ context.Context, signals []contracts.TradingSignal) error {
	f.signals = append(f.signals, signals...)
	return nil
}
func (f *fakeSignalRepo) ActiveSignals(_ context.Context, _ time.Time) ([]contracts.TradingSignal, error) {
	return f.signals, nil
}
func (f *fakeSignalRepo) History(_ context.Context, _, _ time.Time) ([]contracts.TradingSignal, error) {
	return f.signals, nil
}
func (f *fakeSignalRepo) Positions(_ context.Context) (map[string]*contracts.Position, error) {
	return f.positions, nil
}
func (f *fakeSignalRepo) SavePositions(_ context.Context, positions map[string]*contracts.Position) error {
	f.positions = positions
	return nil
}

func flat(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

// normalIndex keeps the benchmark exactly on its moving average.
func normalIndex() *fakeIndex { return &fakeIndex{closes: flat(100, 260)} }

// warningIndex puts the benchmark slightly below its moving average.
func warningIndex() *fakeIndex {
	closes := flat(100, 260)
	closes[0] = 97
	return &fakeIndex{closes: closes}
}

// dangerIndex puts the benchmark far below its moving average.
func dangerIndex() *fakeIndex {
	closes := flat(100, 260)
	closes[0] = 80
	return &fakeIndex{closes: closes}
}

func poolWith(codes ...string) *contracts.CorePoolResult {
	p := &contracts.CorePoolResult{AsOf: time.Now()}
	for i, c := range codes {
		p.Core = append(p.Core, contracts.PoolMember{Code: c, Tier: contracts.TierCore, Rank: i + 1})
	}
	return p
}

// staticOpts is a mutable options source, standing in for the strategy
// manager.
type staticOpts struct {
	opts Options
}

func (s *staticOpts) SignalOptions() Options { return s.opts }

func newTestGenerator(prices *fakePrices, repo *fakeSignalRepo, index IndexReader) *Generator {
	gen, _ := newTestGeneratorOpts(prices, repo, index)
	return gen
}

func newTestGeneratorOpts(prices *fakePrices, repo *fakeSignalRepo, index IndexReader) (*Generator, *staticOpts) {
	risk := NewRiskMonitor(index, "000300", logger.NewNop())
	opts := &staticOpts{opts: DefaultOptions()}
	return NewGenerator(prices, repo, risk, opts, logger.NewNop()), opts
}

func TestGenerateGoldenCrossEntry(t *testing.T) {
	// Flat at 100 with today spiking to 130: the 20-session average
	// crosses above the 60-session one this session.
	closes := flat(100, 62)
	closes[0] = 130

	repo := &fakeSignalRepo{}
	gen := newTestGenerator(&fakePrices{closes: map[string][]float64{"600001": closes}}, repo, normalIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001"), nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, contracts.SignalEntry, sig.Type)
	assert.Equal(t, 130.0, sig.TriggerPrice)
	assert.Equal(t, DefaultOptions().TrancheFraction, sig.PositionFraction)

	// The crossing averages are captured in the signal context.
	assert.InDelta(t, 101.5, sig.Context["ma_short"].(float64), 1e-9)
	assert.InDelta(t, 100.5, sig.Context["ma_long"].(float64), 1e-9)
	assert.InDelta(t, 100.0, sig.Context["ma_short_prev"].(float64), 1e-9)

	pos := repo.positions["600001"]
	require.NotNil(t, pos)
	assert.Equal(t, contracts.PositionEntered, pos.State)
	assert.Equal(t, 1, pos.Tranches)
	assert.Equal(t, 130.0, pos.EntryPrice)
}

func TestGenerateNoEntryWithoutCross(t *testing.T) {
	repo := &fakeSignalRepo{}
	gen := newTestGenerator(&fakePrices{closes: map[string][]float64{"600001": flat(100, 62)}}, repo, normalIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001"), nil)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestGenerateStopLossExit(t *testing.T) {
	repo := &fakeSignalRepo{positions: map[string]*contracts.Position{
		"600001": {Code: "600001", State: contracts.PositionEntered, Tranches: 1,
			EntryPrice: 100, HighWaterMark: 100},
	}}
	gen := newTestGenerator(&fakePrices{closes: map[string][]float64{"600001": flat(90, 10)}}, repo, normalIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001"), nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalExitStopLoss, signals[0].Type)

	pos := repo.positions["600001"]
	assert.Equal(t, contracts.PositionExited, pos.State)
	assert.Zero(t, pos.Tranches)
}

func TestGenerateTrailingStopExit(t *testing.T) {
	repo := &fakeSignalRepo{positions: map[string]*contracts.Position{
		"600001": {Code: "600001", State: contracts.PositionAdded, Tranches: 2,
			EntryPrice: 100, HighWaterMark: 200},
	}}
	gen := newTestGenerator(&fakePrices{closes: map[string][]float64{"600001": flat(160, 10)}}, repo, normalIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001"), nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalExitTrailingStop, signals[0].Type)
	assert.InDelta(t, -0.20, signals[0].Context["drawdown_pct"].(float64), 1e-9)
}

func TestGenerateRiskControlExitBlocksEntries(t *testing.T) {
	// One open position and one flat pool symbol with a fresh golden
	// cross. In a danger regime the position exits and no entry fires.
	crossing := flat(100, 62)
	crossing[0] = 130

	repo := &fakeSignalRepo{positions: map[string]*contracts.Position{
		"600001": {Code: "600001", State: contracts.PositionEntered, Tranches: 1,
			EntryPrice: 100, HighWaterMark: 105},
	}}
	prices := &fakePrices{closes: map[string][]float64{
		"600001": flat(101, 10),
		"600002": crossing,
	}}
	gen := newTestGenerator(prices, repo, dangerIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001", "600002"), nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalExitRiskControl, signals[0].Type)
	assert.Equal(t, "600001", signals[0].Code)
}

func TestGenerateTrendBreakExit(t *testing.T) {
	closes := flat(100, 260)
	closes[0] = 95 // below the long trend average, above the stop

	repo := &fakeSignalRepo{positions: map[string]*contracts.Position{
		"600001": {Code: "600001", State: contracts.PositionEntered, Tranches: 1,
			EntryPrice: 100, HighWaterMark: 100},
	}}
	gen := newTestGenerator(&fakePrices{closes: map[string][]float64{"600001": closes}}, repo, normalIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001"), nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalExitTrendBreak, signals[0].Type)
}

func TestGenerateWeakRPSExit(t *testing.T) {
	repo := &fakeSignalRepo{positions: map[string]*contracts.Position{
		"600001": {Code: "600001", State: contracts.PositionEntered, Tranches: 1,
			EntryPrice: 100, HighWaterMark: 100},
	}}
	gen := newTestGenerator(&fakePrices{closes: map[string][]float64{"600001": flat(100, 260)}}, repo, normalIndex())

	ranks := []contracts.SymbolRankRow{{
		Code:        "600001",
		Percentiles: map[int]float64{60: 50, 120: 40},
	}}
	signals, err := gen.Generate(context.Background(), poolWith("600001"), ranks)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalExitWeakRPS, signals[0].Type)
}

func TestGenerateAddOnTranche(t *testing.T) {
	repo := &fakeSignalRepo{positions: map[string]*contracts.Position{
		"600001": {Code: "600001", State: contracts.PositionEntered, Tranches: 1,
			EntryPrice: 100, HighWaterMark: 104},
	}}
	gen := newTestGenerator(&fakePrices{closes: map[string][]float64{"600001": flat(106, 10)}}, repo, normalIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001"), nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalAdd, signals[0].Type)

	pos := repo.positions["600001"]
	assert.Equal(t, contracts.PositionAdded, pos.State)
	assert.Equal(t, 2, pos.Tranches)
	assert.Equal(t, 106.0, pos.HighWaterMark)
}

func TestGenerateNoAddBeyondMaxTranches(t *testing.T) {
	repo := &fakeSignalRepo{positions: map[string]*contracts.Position{
		"600001": {Code: "600001", State: contracts.PositionAdded, Tranches: 3,
			EntryPrice: 100, HighWaterMark: 130},
	}}
	gen := newTestGenerator(&fakePrices{closes: map[string][]float64{"600001": flat(128, 10)}}, repo, normalIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001"), nil)
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Equal(t, 3, repo.positions["600001"].Tranches)
}

func TestGenerateWarningRegimeAllowsCappedEntries(t *testing.T) {
	// A warning regime halves the exposure cap but does not block
	// entries outright.
	crossing := flat(100, 62)
	crossing[0] = 130

	repo := &fakeSignalRepo{}
	gen := newTestGenerator(&fakePrices{closes: map[string][]float64{"600001": crossing}}, repo, warningIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001"), nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalEntry, signals[0].Type)
}

func TestGenerateEntriesStopAtExposureCap(t *testing.T) {
	// Open positions already consume the warning regime's halved cap
	// (5 tranches x 0.1 = 0.5), so a fresh golden cross gets no entry.
	crossing := flat(100, 62)
	crossing[0] = 130

	repo := &fakeSignalRepo{positions: map[string]*contracts.Position{
		"600001": {Code: "600001", State: contracts.PositionAdded, Tranches: 3,
			EntryPrice: 100, HighWaterMark: 100},
		"600002": {Code: "600002", State: contracts.PositionAdded, Tranches: 2,
			EntryPrice: 100, HighWaterMark: 100},
	}}
	prices := &fakePrices{closes: map[string][]float64{
		"600001": flat(100, 260),
		"600002": flat(100, 260),
		"600003": crossing,
	}}
	gen := newTestGenerator(prices, repo, warningIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001", "600002", "600003"), nil)
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.NotContains(t, repo.positions, "600003")
}

func TestGenerateAddOnBlockedAtExposureCap(t *testing.T) {
	// 600002 qualifies for an add-on, but the aggregate exposure sits
	// at the warning cap already.
	repo := &fakeSignalRepo{positions: map[string]*contracts.Position{
		"600001": {Code: "600001", State: contracts.PositionAdded, Tranches: 3,
			EntryPrice: 100, HighWaterMark: 100},
		"600002": {Code: "600002", State: contracts.PositionAdded, Tranches: 2,
			EntryPrice: 100, HighWaterMark: 112},
	}}
	prices := &fakePrices{closes: map[string][]float64{
		"600001": flat(100, 260),
		"600002": flat(112, 10),
	}}
	gen := newTestGenerator(prices, repo, warningIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001", "600002"), nil)
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Equal(t, 2, repo.positions["600002"].Tranches)
}

func TestGenerateExitFreesExposureForEntry(t *testing.T) {
	// A stop-loss exit releases headroom within the same run, letting a
	// later pool member enter under the warning cap.
	crossing := flat(100, 62)
	crossing[0] = 130

	repo := &fakeSignalRepo{positions: map[string]*contracts.Position{
		"600001": {Code: "600001", State: contracts.PositionAdded, Tranches: 3,
			EntryPrice: 100, HighWaterMark: 100},
		"600002": {Code: "600002", State: contracts.PositionAdded, Tranches: 2,
			EntryPrice: 100, HighWaterMark: 100},
	}}
	prices := &fakePrices{closes: map[string][]float64{
		"600001": flat(100, 260),
		"600002": flat(90, 10), // stop-loss fires
		"600003": crossing,
	}}
	gen := newTestGenerator(prices, repo, warningIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001", "600002", "600003"), nil)
	require.NoError(t, err)
	require.Len(t, signals, 2)

	types := map[contracts.SignalType]string{}
	for _, sig := range signals {
		types[sig.Type] = sig.Code
	}
	assert.Equal(t, "600002", types[contracts.SignalExitStopLoss])
	assert.Equal(t, "600003", types[contracts.SignalEntry])
}

func TestGenerateUsesUpdatedOptions(t *testing.T) {
	// A tranche-fraction update between runs is reflected in the next
	// entry; the generator must not hold a copy taken at construction.
	cross1 := flat(100, 62)
	cross1[0] = 130
	cross2 := flat(100, 62)
	cross2[0] = 130

	repo := &fakeSignalRepo{}
	prices := &fakePrices{closes: map[string][]float64{"600001": cross1, "600002": cross2}}
	gen, opts := newTestGeneratorOpts(prices, repo, normalIndex())

	signals, err := gen.Generate(context.Background(), poolWith("600001"), nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, 0.1, signals[0].PositionFraction)

	opts.opts.TrancheFraction = 0.2
	signals, err = gen.Generate(context.Background(), poolWith("600001", "600002"), nil)
	require.NoError(t, err)

	var entry *contracts.TradingSignal
	for i := range signals {
		if signals[i].Type == contracts.SignalEntry && signals[i].Code == "600002" {
			entry = &signals[i]
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, 0.2, entry.PositionFraction)
}

func TestRiskClassification(t *testing.T) {
	assert.Equal(t, contracts.RiskNormal, classify(0.02))
	assert.Equal(t, contracts.RiskNormal, classify(0))
	assert.Equal(t, contracts.RiskWarning, classify(-0.03))
	assert.Equal(t, contracts.RiskDanger, classify(-0.08))
}

func TestRiskSnapshotExposureCaps(t *testing.T) {
	monitor := NewRiskMonitor(dangerIndex(), "000300", logger.NewNop())
	snap, err := monitor.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, contracts.RiskDanger, snap.State)
	assert.Zero(t, snap.MaxTotalExposure)
	assert.Equal(t, "000300", snap.Benchmark)
	assert.Less(t, snap.DeviationPct, -0.05)
}
