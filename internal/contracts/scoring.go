package contracts

import (
	"fmt"
	"math"
	"time"
)

// FactorWeights defines the four factor weights of the scorer.
// The weights must sum to 1.0; construction rejects anything else.
type FactorWeights struct {
	Quality  float64 `yaml:"quality" json:"quality"`
	Growth   float64 `yaml:"growth" json:"growth"`
	Value    float64 `yaml:"value" json:"value"`
	Momentum float64 `yaml:"momentum" json:"momentum"`
}

const weightSumTolerance = 1e-6

// Validate checks that the weights are non-negative and sum to 1.0.
func (w FactorWeights) Validate() error {
	for name, v := range map[string]float64{
		"quality": w.Quality, "growth": w.Growth,
		"value": w.Value, "momentum": w.Momentum,
	} {
		if v < 0 {
			return fmt.Errorf("factor weight %s must not be negative, got %f", name, v)
		}
	}
	sum := w.Quality + w.Growth + w.Value + w.Momentum
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("factor weights must sum to 1.0, got %f", sum)
	}
	return nil
}

// FactorScoreDetail is the per-symbol output of the scorer. Each
// sub-score is on a 0-100 scale; Breakdown retains the raw named inputs
// behind each sub-score for later explanation.
type FactorScoreDetail struct {
	Code       string             `json:"code"`
	Quality    float64            `json:"quality"`
	Growth     float64            `json:"growth"`
	Value      float64            `json:"value"`
	Momentum   float64            `json:"momentum"`
	Breakdown  map[string]float64 `json:"breakdown"`
	TotalScore float64            `json:"total_score"`
}

// Total recomputes the weighted sum; TotalScore must equal this within
// floating tolerance.
func (d *FactorScoreDetail) Total(w FactorWeights) float64 {
	return d.Quality*w.Quality + d.Growth*w.Growth +
		d.Value*w.Value + d.Momentum*w.Momentum
}

// SymbolRankRow is the per-symbol output of the relative-strength
// ranker. Percentiles are in [0,100], 100 = strongest; a symbol lacking
// a full window for a period is absent from that period's maps.
type SymbolRankRow struct {
	Code        string          `json:"code"`
	AsOf        time.Time       `json:"as_of"`
	Returns     map[int]float64 `json:"returns"`     // period (sessions) -> pct change
	Percentiles map[int]float64 `json:"percentiles"` // period -> RPS percentile
}

// RankingResult wraps the ranked rows together with the readiness
// result that gated the run. Rows is empty when the gate blocked the
// computation, mirroring ScreeningResult.
type RankingResult struct {
	AsOf      time.Time            `json:"as_of"`
	Readiness *DataReadinessResult `json:"readiness"`
	Rows      []SymbolRankRow      `json:"rows"`
}

// Gated reports whether the run was blocked by the readiness gate.
func (r *RankingResult) Gated() bool {
	return r.Readiness != nil && !r.Readiness.IsReady
}

// Percentile returns the RPS percentile for a period, if ranked.
func (r *SymbolRankRow) Percentile(period int) (float64, bool) {
	p, ok := r.Percentiles[period]
	return p, ok
}

// BestPercentile returns the maximum percentile across ranked periods.
func (r *SymbolRankRow) BestPercentile() float64 {
	best := 0.0
	for _, p := range r.Percentiles {
		if p > best {
			best = p
		}
	}
	return best
}
