// Package scoring implements the S3 multi-factor scorer. Each symbol
// gets quality, growth, value and momentum sub-scores on a 0-100 scale;
// the total is their weighted sum under weights that must sum to 1.0.
// Every sub-metric is ranked cross-sectionally: a symbol's score says
// where it stands against the rest of the scored universe on the same
// date, not against fixed cutoffs.
package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// MomentumAgg selects how per-period RPS percentiles collapse into the
// momentum sub-score.
type MomentumAgg string

const (
	MomentumMean MomentumAgg = "mean"
	MomentumMax  MomentumAgg = "max"
)

// OptionsProvider supplies the live scoring parameters. The scorer
// reads them on every run, so a strategy update applies to the next
// run without rebuilding the pipeline.
type OptionsProvider interface {
	Weights() contracts.FactorWeights
	MomentumAgg() MomentumAgg
}

// Scorer implements contracts.FactorScorer.
type Scorer struct {
	funds contracts.FundamentalReader
	opts  OptionsProvider
	log   *logger.Logger
}

// NewScorer creates a scorer.
func NewScorer(funds contracts.FundamentalReader, opts OptionsProvider, log *logger.Logger) *Scorer {
	return &Scorer{
		funds: funds,
		opts:  opts,
		log:   log.WithField("component", "scoring"),
	}
}

// Score computes factor scores for the given codes. A symbol without a
// filing scores zero on the fundamental factors but still carries its
// momentum, so momentum-led supplement candidates are not erased.
func (s *Scorer) Score(ctx context.Context, codes []string, ranks []contracts.SymbolRankRow) ([]contracts.FactorScoreDetail, error) {
	weights := s.opts.Weights()
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	agg := s.opts.MomentumAgg()
	if agg != MomentumMean && agg != MomentumMax {
		return nil, fmt.Errorf("unknown momentum aggregation %q", agg)
	}

	filings, err := s.funds.Latest(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("load filings: %w", err)
	}

	rankByCode := make(map[string]*contracts.SymbolRankRow, len(ranks))
	for i := range ranks {
		rankByCode[ranks[i].Code] = &ranks[i]
	}

	mr := rankMetrics(filings)

	details := make([]contracts.FactorScoreDetail, 0, len(codes))
	for _, code := range codes {
		d := contracts.FactorScoreDetail{
			Code:      code,
			Breakdown: make(map[string]float64),
		}

		if f, ok := filings[code]; ok {
			d.Quality = mr.quality(code, f, d.Breakdown)
			d.Growth = mr.growth(code, f, d.Breakdown)
			d.Value = mr.value(code, f, d.Breakdown)
		}
		if row, ok := rankByCode[code]; ok {
			d.Momentum = momentumScore(agg, row, d.Breakdown)
		}

		d.TotalScore = d.Total(weights)
		details = append(details, d)
	}

	sort.Slice(details, func(i, j int) bool {
		return details[i].TotalScore > details[j].TotalScore
	})

	s.log.WithField("symbols", len(details)).Info("factor scoring completed")
	return details, nil
}

// metricRanks holds the cross-sectional percentile of each fundamental
// metric per code, oriented so 100 is always best.
type metricRanks struct {
	roe     map[string]float64
	margin  map[string]float64
	debt    map[string]float64
	revenue map[string]float64
	profit  map[string]float64
	pe      map[string]float64
	pb      map[string]float64
}

func rankMetrics(filings map[string]contracts.Fundamental) *metricRanks {
	roe := make(map[string]float64, len(filings))
	margin := make(map[string]float64, len(filings))
	debt := make(map[string]float64, len(filings))
	revenue := make(map[string]float64, len(filings))
	profit := make(map[string]float64, len(filings))
	pe := make(map[string]float64, len(filings))
	pb := make(map[string]float64, len(filings))

	for code, f := range filings {
		roe[code] = f.ROE
		margin[code] = f.GrossMargin
		debt[code] = f.DebtRatio
		revenue[code] = f.RevenueGrowth
		profit[code] = f.ProfitGrowth
		// Non-positive PE or PB means losses or broken book value;
		// rank it worst among the universe.
		pe[code] = f.PE
		if f.PE <= 0 {
			pe[code] = math.Inf(1)
		}
		pb[code] = f.PB
		if f.PB <= 0 {
			pb[code] = math.Inf(1)
		}
	}

	return &metricRanks{
		roe:     percentileRanks(roe, false),
		margin:  percentileRanks(margin, false),
		debt:    percentileRanks(debt, true),
		revenue: percentileRanks(revenue, false),
		profit:  percentileRanks(profit, false),
		pe:      percentileRanks(pe, true),
		pb:      percentileRanks(pb, true),
	}
}

// percentileRanks maps each value onto [0,100] by rank across the
// universe, with 100 the best. Ties share the percentile of their
// lowest slot; a single entry ranks 100.
func percentileRanks(values map[string]float64, lowerIsBetter bool) map[string]float64 {
	type entry struct {
		code string
		v    float64
	}

	entries := make([]entry, 0, len(values))
	for code, v := range values {
		entries = append(entries, entry{code: code, v: v})
	}

	out := make(map[string]float64, len(entries))
	n := len(entries)
	if n == 0 {
		return out
	}
	if n == 1 {
		out[entries[0].code] = 100
		return out
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].v != entries[j].v {
			if lowerIsBetter {
				return entries[i].v > entries[j].v
			}
			return entries[i].v < entries[j].v
		}
		return entries[i].code < entries[j].code
	})

	for i := 0; i < n; {
		j := i
		for j < n && entries[j].v == entries[i].v {
			j++
		}
		pct := 100 * float64(i) / float64(n-1)
		for k := i; k < j; k++ {
			out[entries[k].code] = pct
		}
		i = j
	}
	return out
}

func (m *metricRanks) quality(code string, f contracts.Fundamental, breakdown map[string]float64) float64 {
	breakdown["roe"] = f.ROE
	breakdown["gross_margin"] = f.GrossMargin
	breakdown["debt_ratio"] = f.DebtRatio
	return (m.roe[code] + m.margin[code] + m.debt[code]) / 3
}

func (m *metricRanks) growth(code string, f contracts.Fundamental, breakdown map[string]float64) float64 {
	breakdown["revenue_growth"] = f.RevenueGrowth
	breakdown["profit_growth"] = f.ProfitGrowth
	return (m.revenue[code] + m.profit[code]) / 2
}

func (m *metricRanks) value(code string, f contracts.Fundamental, breakdown map[string]float64) float64 {
	breakdown["pe"] = f.PE
	breakdown["pb"] = f.PB
	return (m.pe[code] + m.pb[code]) / 2
}

func momentumScore(agg MomentumAgg, row *contracts.SymbolRankRow, breakdown map[string]float64) float64 {
	if len(row.Percentiles) == 0 {
		return 0
	}

	var score float64
	switch agg {
	case MomentumMax:
		score = row.BestPercentile()
	default:
		sum := 0.0
		for _, p := range row.Percentiles {
			sum += p
		}
		score = sum / float64(len(row.Percentiles))
	}

	for period, p := range row.Percentiles {
		breakdown[fmt.Sprintf("rps_%d", period)] = p
	}
	return score
}
