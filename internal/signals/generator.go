// Package signals implements the S6 signal engine: a per-symbol state
// machine over the candidate pool plus a market-wide risk overlay.
// Signals are advisory events for a human operator, not orders.
package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// Options configures the signal state machine.
type Options struct {
	ShortMA         int     // entry cross short window
	LongMA          int     // entry cross long window
	TrendMA         int     // trend-break window
	MaxTranches     int     // position build-up limit
	TrancheFraction float64 // capital fraction per tranche
	AddStepPct      float64 // gain over last tranche before adding
	StopLossPct     float64 // loss from entry forcing an exit
	TrailingPct     float64 // drawdown from high-water mark forcing an exit
	WeakRPSFloor    float64 // best percentile below this forces an exit
	SignalTTL       time.Duration
}

// DefaultOptions are the standard state-machine parameters.
func DefaultOptions() Options {
	return Options{
		ShortMA:         20,
		LongMA:          60,
		TrendMA:         250,
		MaxTranches:     3,
		TrancheFraction: 0.1,
		AddStepPct:      0.05,
		StopLossPct:     0.08,
		TrailingPct:     0.15,
		WeakRPSFloor:    60,
		SignalTTL:       5 * 24 * time.Hour,
	}
}

// OptionsProvider supplies the live state-machine parameters. The
// generator reads them on every run, so a strategy update applies to
// the next run.
type OptionsProvider interface {
	SignalOptions() Options
}

// Generator implements contracts.SignalEngine.
type Generator struct {
	prices contracts.PriceReader
	repo   contracts.SignalRepository
	risk   *RiskMonitor
	opts   OptionsProvider
	log    *logger.Logger
}

// NewGenerator creates a signal generator.
func NewGenerator(
	prices contracts.PriceReader,
	repo contracts.SignalRepository,
	risk *RiskMonitor,
	opts OptionsProvider,
	log *logger.Logger,
) *Generator {
	return &Generator{
		prices: prices,
		repo:   repo,
		risk:   risk,
		opts:   opts,
		log:    log.WithField("component", "signals"),
	}
}

// sanitized clamps the tranche limit to its allowed range.
func sanitized(opts Options) Options {
	if opts.MaxTranches < 1 || opts.MaxTranches > 3 {
		opts.MaxTranches = 3
	}
	return opts
}

// exposureBudget tracks the aggregate position fraction against the
// regime's cap. Every buy-side signal must fit the remaining headroom.
type exposureBudget struct {
	used float64
	max  float64
}

func (b *exposureBudget) fits(fraction float64) bool {
	return b.used+fraction <= b.max+1e-9
}

// Generate advances every tracked symbol's state machine one session
// and persists the emitted signals plus the updated position states.
// Exit conditions are evaluated before entries so a danger regime can
// never produce a buy.
func (g *Generator) Generate(ctx context.Context, pool *contracts.CorePoolResult, ranks []contracts.SymbolRankRow) ([]contracts.TradingSignal, error) {
	if pool == nil {
		return nil, fmt.Errorf("signals require a pool snapshot")
	}
	opts := sanitized(g.opts.SignalOptions())

	riskSnap, err := g.risk.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("risk overlay: %w", err)
	}

	positions, err := g.repo.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	if positions == nil {
		positions = make(map[string]*contracts.Position)
	}

	rankByCode := make(map[string]*contracts.SymbolRankRow, len(ranks))
	for i := range ranks {
		rankByCode[ranks[i].Code] = &ranks[i]
	}

	// Every buy-side signal draws on the regime's exposure cap; open
	// positions consume headroom up front.
	budget := &exposureBudget{max: riskSnap.MaxTotalExposure}
	for _, pos := range positions {
		if pos.Open() {
			budget.used += float64(pos.Tranches) * opts.TrancheFraction
		}
	}

	now := time.Now().UTC()
	var signals []contracts.TradingSignal

	// Open positions first: exits must fire even for symbols that
	// dropped out of the pool, and they free headroom for entries.
	tracked := make(map[string]bool)
	for code, pos := range positions {
		if !pos.Open() {
			continue
		}
		tracked[code] = true
		sig, err := g.stepOpen(ctx, code, pos, opts, riskSnap, rankByCode[code], budget, now)
		if err != nil {
			g.log.WithError(err).WithField("code", code).Warn("position step failed")
			continue
		}
		if sig != nil {
			signals = append(signals, *sig)
		}
	}

	// Entries only for pool members without an open position, and only
	// while aggregate exposure stays under the regime's cap. A warning
	// regime halves the cap rather than blocking entries outright; a
	// danger regime caps at zero.
	if riskSnap.MaxTotalExposure > 0 {
		for _, member := range pool.Members() {
			if tracked[member.Code] {
				continue
			}
			if !budget.fits(opts.TrancheFraction) {
				break
			}
			sig, err := g.stepFlat(ctx, member.Code, positions, opts, budget, now)
			if err != nil {
				g.log.WithError(err).WithField("code", member.Code).Warn("entry evaluation failed")
				continue
			}
			if sig != nil {
				signals = append(signals, *sig)
			}
		}
	}

	if len(signals) > 0 {
		if err := g.repo.SaveSignals(ctx, signals); err != nil {
			return nil, fmt.Errorf("persist signals: %w", err)
		}
	}
	if err := g.repo.SavePositions(ctx, positions); err != nil {
		return nil, fmt.Errorf("persist positions: %w", err)
	}

	g.log.WithFields(map[string]interface{}{
		"signals":  len(signals),
		"risk":     string(riskSnap.State),
		"exposure": budget.used,
	}).Info("signal generation completed")

	return signals, nil
}

// stepFlat checks a flat symbol for a golden-cross entry.
func (g *Generator) stepFlat(ctx context.Context, code string, positions map[string]*contracts.Position, opts Options, budget *exposureBudget, now time.Time) (*contracts.TradingSignal, error) {
	closes, err := g.closes(ctx, code, opts.LongMA+2)
	if err != nil {
		return nil, err
	}
	if len(closes) < opts.LongMA+2 {
		return nil, nil
	}

	shortNow := tailMean(closes, 0, opts.ShortMA)
	longNow := tailMean(closes, 0, opts.LongMA)
	shortPrev := tailMean(closes, 1, opts.ShortMA)
	longPrev := tailMean(closes, 1, opts.LongMA)

	if !(shortPrev <= longPrev && shortNow > longNow) {
		return nil, nil
	}

	price := closes[0]
	positions[code] = &contracts.Position{
		Code:          code,
		State:         contracts.PositionEntered,
		Tranches:      1,
		EntryPrice:    price,
		EntryDate:     now,
		HighWaterMark: price,
		UpdatedAt:     now,
	}
	budget.used += opts.TrancheFraction

	return g.signal(code, contracts.SignalEntry, price, opts.TrancheFraction, 0.7,
		"short MA crossed above long MA", map[string]any{
			"ma_short_prev": shortPrev,
			"ma_long_prev":  longPrev,
			"ma_short":      shortNow,
			"ma_long":       longNow,
		}, opts.SignalTTL, now), nil
}

// stepOpen evaluates exit conditions in priority order, then add-on
// conditions, for one open position.
func (g *Generator) stepOpen(
	ctx context.Context,
	code string,
	pos *contracts.Position,
	opts Options,
	risk *contracts.MarketRiskSnapshot,
	rank *contracts.SymbolRankRow,
	budget *exposureBudget,
	now time.Time,
) (*contracts.TradingSignal, error) {
	closes, err := g.closes(ctx, code, opts.TrendMA+1)
	if err != nil {
		return nil, err
	}
	if len(closes) == 0 {
		return nil, nil
	}

	price := closes[0]
	if price > pos.HighWaterMark {
		pos.HighWaterMark = price
	}
	pos.UpdatedAt = now

	baseCtx := map[string]any{
		"entry_price":     pos.EntryPrice,
		"high_water_mark": pos.HighWaterMark,
		"close":           price,
		"tranches":        pos.Tranches,
	}

	exit := func(t contracts.SignalType, reason string, extra map[string]any) *contracts.TradingSignal {
		budget.used -= float64(pos.Tranches) * opts.TrancheFraction
		pos.State = contracts.PositionExited
		pos.Tranches = 0
		sctx := make(map[string]any, len(baseCtx)+len(extra))
		for k, v := range baseCtx {
			sctx[k] = v
		}
		for k, v := range extra {
			sctx[k] = v
		}
		return g.signal(code, t, price, 0, 0.9, reason, sctx, opts.SignalTTL, now)
	}

	if risk.State == contracts.RiskDanger {
		return exit(contracts.SignalExitRiskControl, "benchmark regime turned to danger",
			map[string]any{"risk_state": string(risk.State), "deviation_pct": risk.DeviationPct}), nil
	}

	if loss := price/pos.EntryPrice - 1; loss <= -opts.StopLossPct {
		return exit(contracts.SignalExitStopLoss,
			fmt.Sprintf("loss %.1f%% breached stop", loss*100),
			map[string]any{"loss_pct": loss}), nil
	}

	if dd := price/pos.HighWaterMark - 1; dd <= -opts.TrailingPct {
		return exit(contracts.SignalExitTrailingStop,
			fmt.Sprintf("drawdown %.1f%% from high", dd*100),
			map[string]any{"drawdown_pct": dd}), nil
	}

	if len(closes) >= opts.TrendMA {
		trendMA := tailMean(closes, 0, opts.TrendMA)
		if price < trendMA {
			return exit(contracts.SignalExitTrendBreak, "close fell below long trend average",
				map[string]any{"trend_ma": trendMA}), nil
		}
	}

	if rank != nil {
		if best := rank.BestPercentile(); best < opts.WeakRPSFloor {
			return exit(contracts.SignalExitWeakRPS,
				fmt.Sprintf("best RPS percentile %.0f below floor", best),
				map[string]any{"best_percentile": best}), nil
		}
	}

	// Add-on: price advanced a step over the last tranche baseline.
	// Adds draw on the same exposure budget as entries, so a warning
	// regime stops build-up once the halved cap is reached.
	if pos.Tranches < opts.MaxTranches && budget.fits(opts.TrancheFraction) {
		baseline := pos.EntryPrice * (1 + opts.AddStepPct*float64(pos.Tranches))
		if price >= baseline {
			pos.Tranches++
			pos.State = contracts.PositionAdded
			budget.used += opts.TrancheFraction
			sctx := map[string]any{
				"entry_price": pos.EntryPrice,
				"baseline":    baseline,
				"close":       price,
				"tranches":    pos.Tranches,
			}
			return g.signal(code, contracts.SignalAdd, price, opts.TrancheFraction, 0.6,
				"price advanced a step over the last tranche", sctx, opts.SignalTTL, now), nil
		}
	}

	return nil, nil
}

func (g *Generator) signal(code string, t contracts.SignalType, price, fraction, confidence float64, reason string, sctx map[string]any, ttl time.Duration, now time.Time) *contracts.TradingSignal {
	return &contracts.TradingSignal{
		ID:               uuid.NewString(),
		Code:             code,
		Type:             t,
		TriggerPrice:     price,
		PositionFraction: fraction,
		Confidence:       confidence,
		Reason:           reason,
		Context:          sctx,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}
}

func (g *Generator) closes(ctx context.Context, code string, limit int) ([]float64, error) {
	bars, err := g.prices.History(ctx, code, limit)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	return closes, nil
}

// tailMean averages window values of a newest-first series starting at
// offset sessions back.
func tailMean(closes []float64, offset, window int) float64 {
	end := offset + window
	if end > len(closes) {
		end = len(closes)
	}
	if end <= offset {
		return 0
	}
	sum := 0.0
	for _, v := range closes[offset:end] {
		sum += v
	}
	return sum / float64(end-offset)
}
