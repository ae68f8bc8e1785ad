// Package ranking implements the S2 relative-strength (RPS) ranker.
// Strength is purely cross-sectional: a symbol's percentile says how
// its window return compares with every other qualifying symbol on the
// same date.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/readiness"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// DefaultPeriods are the standard RPS windows in trading sessions.
var DefaultPeriods = []int{60, 120, 250}

// Ranker implements contracts.StrengthRanker.
type Ranker struct {
	gate   contracts.ReadinessChecker
	prices contracts.PriceReader
	repo   contracts.RankRepository
	log    *logger.Logger
}

// NewRanker creates an RPS ranker.
func NewRanker(
	gate contracts.ReadinessChecker,
	prices contracts.PriceReader,
	repo contracts.RankRepository,
	log *logger.Logger,
) *Ranker {
	return &Ranker{
		gate:   gate,
		prices: prices,
		repo:   repo,
		log:    log.WithField("component", "ranking"),
	}
}

// ComputeRanks computes window returns and cross-sectional percentiles
// for every period, persisting the full rank table. A symbol lacking a
// full window for a period is absent from that period's ranking but may
// still rank in shorter windows. A gated run carries the readiness
// result back with no rows.
func (r *Ranker) ComputeRanks(ctx context.Context, asOf time.Time, periods []int) (*contracts.RankingResult, error) {
	if len(periods) == 0 {
		periods = DefaultPeriods
	}

	ready, err := r.gate.Check(ctx, readiness.StageRequirements(contracts.StageRanking, asOf))
	if err != nil {
		return nil, fmt.Errorf("readiness gate: %w", err)
	}
	result := &contracts.RankingResult{AsOf: asOf, Readiness: ready}
	if !ready.IsReady {
		r.log.Warn("ranking gated on missing data")
		return result, nil
	}

	maxPeriod := periods[0]
	for _, p := range periods {
		if p > maxPeriod {
			maxPeriod = p
		}
	}

	// Series are newest first; the longest window's p-session return
	// needs p+1 closes, so load that much for every symbol.
	series, err := r.prices.CloseSeries(ctx, asOf, maxPeriod+1)
	if err != nil {
		return nil, fmt.Errorf("load close series: %w", err)
	}

	byCode := make(map[string]*contracts.SymbolRankRow, len(series))
	for code := range series {
		byCode[code] = &contracts.SymbolRankRow{
			Code:        code,
			AsOf:        asOf,
			Returns:     make(map[int]float64),
			Percentiles: make(map[int]float64),
		}
	}

	for _, period := range periods {
		rankPeriod(period, series, byCode)
	}

	rows := make([]contracts.SymbolRankRow, 0, len(byCode))
	for _, row := range byCode {
		if len(row.Returns) > 0 {
			rows = append(rows, *row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })

	if err := r.repo.Save(ctx, asOf, rows); err != nil {
		return nil, fmt.Errorf("persist ranks: %w", err)
	}

	r.log.WithFields(map[string]interface{}{
		"symbols": len(rows),
		"periods": periods,
	}).Info("rps ranking completed")

	result.Rows = rows
	return result, nil
}

// rankPeriod computes one window's returns and percentiles across all
// symbols with enough history. Percentiles span [0,100] with 100 the
// strongest; ties share a percentile.
func rankPeriod(period int, series map[string][]float64, byCode map[string]*contracts.SymbolRankRow) {
	type entry struct {
		code string
		ret  float64
	}

	entries := make([]entry, 0, len(series))
	for code, closes := range series {
		if len(closes) <= period {
			continue
		}
		base := closes[period]
		if base == 0 {
			continue
		}
		ret := closes[0]/base - 1
		entries = append(entries, entry{code: code, ret: ret})
		byCode[code].Returns[period] = ret
	}

	n := len(entries)
	if n == 0 {
		return
	}
	if n == 1 {
		byCode[entries[0].code].Percentiles[period] = 100
		return
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ret < entries[j].ret })

	for i := 0; i < n; {
		j := i
		for j < n && entries[j].ret == entries[i].ret {
			j++
		}
		// Tied returns share the percentile of the lowest tied slot.
		pct := 100 * float64(i) / float64(n-1)
		for k := i; k < j; k++ {
			byCode[entries[k].code].Percentiles[period] = pct
		}
		i = j
	}
}
