// Package pool implements the S4 candidate-pool builder. The pool has
// two tiers: a core set ranked by total factor score over screened
// symbols, and a momentum-led supplement set with a lighter
// fundamental filter. Every snapshot carries a change log against the
// previous one.
package pool

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// Options configures the pool builder.
type Options struct {
	CoreSize        int     // core tier capacity
	SupplementSize  int     // supplement tier capacity
	SupplementRPS   float64 // min best percentile for supplement entry
	SupplementROE   float64 // min ROE for the supplement sanity filter
	RankChangeDelta int     // rank moves below this are not logged
}

// DefaultOptions are the standard pool parameters.
func DefaultOptions() Options {
	return Options{
		CoreSize:        30,
		SupplementSize:  20,
		SupplementRPS:   90,
		SupplementROE:   3,
		RankChangeDelta: 5,
	}
}

// OptionsProvider supplies the live pool parameters. The builder reads
// them on every run, so a strategy update applies to the next run.
type OptionsProvider interface {
	PoolOptions() Options
}

// Builder implements contracts.PoolBuilder.
type Builder struct {
	repo  contracts.PoolRepository
	funds contracts.FundamentalReader
	opts  OptionsProvider
	log   *logger.Logger
}

// NewBuilder creates a pool builder.
func NewBuilder(repo contracts.PoolRepository, funds contracts.FundamentalReader, opts OptionsProvider, log *logger.Logger) *Builder {
	return &Builder{repo: repo, funds: funds, opts: opts, log: log.WithField("component", "pool")}
}

// sanitized clamps nonsensical sizes back to the defaults.
func sanitized(opts Options) Options {
	if opts.CoreSize < 1 {
		opts.CoreSize = DefaultOptions().CoreSize
	}
	if opts.SupplementSize < 0 {
		opts.SupplementSize = 0
	}
	if opts.RankChangeDelta < 1 {
		opts.RankChangeDelta = DefaultOptions().RankChangeDelta
	}
	return opts
}

// BuildPool assembles the two tiers, diffs against the previous
// snapshot and persists the result. Core membership requires passing
// the screening chain; supplement membership needs a strong RPS
// percentile plus a light sanity filter (not hard-rejected,
// non-negative trailing profit, a minimal ROE). A symbol qualifying
// for both tiers lands in core.
func (b *Builder) BuildPool(
	ctx context.Context,
	screening *contracts.ScreeningResult,
	ranks []contracts.SymbolRankRow,
	scores []contracts.FactorScoreDetail,
) (*contracts.CorePoolResult, error) {
	if screening == nil || screening.Gated() {
		return nil, fmt.Errorf("pool requires an ungated screening result")
	}
	opts := sanitized(b.opts.PoolOptions())

	asOf := screening.AsOf
	passed := toSet(screening.Passed)
	rejected := toSet(screening.Rejected)

	prev, err := b.repo.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load previous pool: %w", err)
	}

	result := &contracts.CorePoolResult{
		AsOf:      asOf,
		CreatedAt: time.Now().UTC(),
	}

	// Core: highest total scores among screened symbols. Input scores
	// arrive sorted but sorting here keeps the tier correct regardless.
	coreCandidates := make([]contracts.FactorScoreDetail, 0, len(scores))
	for _, s := range scores {
		if passed[s.Code] {
			coreCandidates = append(coreCandidates, s)
		}
	}
	sort.Slice(coreCandidates, func(i, j int) bool {
		if coreCandidates[i].TotalScore != coreCandidates[j].TotalScore {
			return coreCandidates[i].TotalScore > coreCandidates[j].TotalScore
		}
		return coreCandidates[i].Code < coreCandidates[j].Code
	})
	if len(coreCandidates) > opts.CoreSize {
		coreCandidates = coreCandidates[:opts.CoreSize]
	}

	inCore := make(map[string]bool, len(coreCandidates))
	for i, c := range coreCandidates {
		inCore[c.Code] = true
		result.Core = append(result.Core, contracts.PoolMember{
			Code:      c.Code,
			Tier:      contracts.TierCore,
			Rank:      i + 1,
			Score:     c.TotalScore,
			EntryDate: entryDate(prev, c.Code, asOf),
		})
	}

	// Supplement: strongest RPS leaders not already in core and not
	// hard-rejected by screening. Momentum leadership is market
	// validated, so the fundamental filter here is deliberately lighter
	// than the full screening chain.
	type suppCandidate struct {
		code string
		best float64
	}
	var leaders []suppCandidate
	for i := range ranks {
		row := &ranks[i]
		if inCore[row.Code] || rejected[row.Code] {
			continue
		}
		if best := row.BestPercentile(); best >= opts.SupplementRPS {
			leaders = append(leaders, suppCandidate{code: row.Code, best: best})
		}
	}

	var supp []suppCandidate
	if len(leaders) > 0 {
		codes := make([]string, len(leaders))
		for i, c := range leaders {
			codes[i] = c.code
		}
		filings, err := b.funds.Latest(ctx, codes)
		if err != nil {
			return nil, fmt.Errorf("load supplement fundamentals: %w", err)
		}
		for _, c := range leaders {
			f, ok := filings[c.code]
			if !ok {
				continue
			}
			if f.NetProfit < 0 || f.ROE < opts.SupplementROE {
				continue
			}
			supp = append(supp, c)
		}
	}
	sort.Slice(supp, func(i, j int) bool {
		if supp[i].best != supp[j].best {
			return supp[i].best > supp[j].best
		}
		return supp[i].code < supp[j].code
	})
	if len(supp) > opts.SupplementSize {
		supp = supp[:opts.SupplementSize]
	}
	for i, c := range supp {
		result.Supplement = append(result.Supplement, contracts.PoolMember{
			Code:      c.code,
			Tier:      contracts.TierSupplement,
			Rank:      i + 1,
			Score:     c.best,
			EntryDate: entryDate(prev, c.code, asOf),
		})
	}

	result.Changes = diff(prev, result, opts.RankChangeDelta)

	if err := b.repo.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("persist pool: %w", err)
	}

	b.log.WithFields(map[string]interface{}{
		"core":       len(result.Core),
		"supplement": len(result.Supplement),
		"changes":    len(result.Changes),
	}).Info("pool built")

	return result, nil
}

// diff produces the change log between two snapshots. Rank moves
// smaller than rankDelta stay out of the log; tier moves count as
// exit plus new entry in the respective tiers.
func diff(prev, curr *contracts.CorePoolResult, rankDelta int) []contracts.PoolChange {
	var changes []contracts.PoolChange

	prevMembers := make(map[string]contracts.PoolMember)
	if prev != nil {
		for _, m := range prev.Members() {
			prevMembers[m.Code] = m
		}
	}
	currMembers := make(map[string]contracts.PoolMember)
	for _, m := range curr.Members() {
		currMembers[m.Code] = m
	}

	for _, m := range curr.Members() {
		old, existed := prevMembers[m.Code]
		switch {
		case !existed || old.Tier != m.Tier:
			changes = append(changes, contracts.PoolChange{
				Code: m.Code, Type: contracts.ChangeNewEntry, Tier: m.Tier,
				NewRank: m.Rank, NewScore: m.Score, Date: curr.AsOf,
			})
		case abs(m.Rank-old.Rank) >= rankDelta:
			changes = append(changes, contracts.PoolChange{
				Code: m.Code, Type: contracts.ChangeRankChange, Tier: m.Tier,
				PrevRank: old.Rank, NewRank: m.Rank,
				PrevScore: old.Score, NewScore: m.Score, Date: curr.AsOf,
			})
		}
	}

	if prev != nil {
		for _, m := range prev.Members() {
			now, stays := currMembers[m.Code]
			if stays && now.Tier == m.Tier {
				continue
			}
			changes = append(changes, contracts.PoolChange{
				Code: m.Code, Type: contracts.ChangeExit, Tier: m.Tier,
				PrevRank: m.Rank, PrevScore: m.Score, Date: curr.AsOf,
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Code != changes[j].Code {
			return changes[i].Code < changes[j].Code
		}
		return changes[i].Type < changes[j].Type
	})
	return changes
}

// entryDate keeps the original entry date across consecutive
// memberships.
func entryDate(prev *contracts.CorePoolResult, code string, asOf time.Time) time.Time {
	if prev == nil {
		return asOf
	}
	for _, m := range prev.Members() {
		if m.Code == code && m.ExitDate == nil {
			return m.EntryDate
		}
	}
	return asOf
}

func toSet(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
