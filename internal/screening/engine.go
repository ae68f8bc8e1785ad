// Package screening implements the S1 fundamental rule chain. Rules are
// configuration data; the engine evaluates whatever enabled rules it is
// handed and records a per-rule audit trail.
package screening

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/readiness"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// rejectedSampleLimit caps the audit sample kept per rule.
const rejectedSampleLimit = 10

// minFilingLookback is the floor on how many filings per symbol the
// engine loads; rules needing deeper history raise it.
const minFilingLookback = 20

// Engine implements contracts.ScreeningEngine.
type Engine struct {
	gate    contracts.ReadinessChecker
	prices  contracts.PriceReader
	funds   contracts.FundamentalReader
	repo    contracts.ScreeningRepository
	log     *logger.Logger
	workers int
}

// NewEngine creates a screening engine. workers bounds the filing
// fan-out.
func NewEngine(
	gate contracts.ReadinessChecker,
	prices contracts.PriceReader,
	funds contracts.FundamentalReader,
	repo contracts.ScreeningRepository,
	log *logger.Logger,
	workers int,
) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		gate:    gate,
		prices:  prices,
		funds:   funds,
		repo:    repo,
		log:     log.WithField("component", "screening"),
		workers: workers,
	}
}

// RunScreening gates on data readiness, evaluates every enabled rule
// over the symbol universe, and persists the result. When the gate
// fails, the returned result carries the readiness detail and no rule
// was evaluated; gated results are not persisted.
func (e *Engine) RunScreening(ctx context.Context, asOf time.Time, rules []contracts.ScreeningRule) (*contracts.ScreeningResult, error) {
	ready, err := e.gate.Check(ctx, readiness.StageRequirements(contracts.StageScreening, asOf))
	if err != nil {
		return nil, fmt.Errorf("readiness gate: %w", err)
	}
	if !ready.IsReady {
		e.log.Warn("screening gated on missing data")
		return &contracts.ScreeningResult{
			AsOf:      asOf,
			Readiness: ready,
			CreatedAt: time.Now().UTC(),
		}, nil
	}

	codes, err := e.prices.Universe(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	filings, err := e.loadFilings(ctx, codes, filingLookback(rules))
	if err != nil {
		return nil, err
	}

	result := &contracts.ScreeningResult{
		AsOf:      asOf,
		Readiness: ready,
		Warnings:  make(map[string][]string),
		CreatedAt: time.Now().UTC(),
	}

	rejected := make(map[string]bool)
	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}
		detail, ruleRejected, ruleWarned, err := e.evalRule(rule, codes, filings)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		result.RuleDetails = append(result.RuleDetails, *detail)

		if rule.HardReject {
			for code := range ruleRejected {
				rejected[code] = true
			}
		} else {
			for code := range ruleRejected {
				result.Warnings[code] = append(result.Warnings[code], rule.Name)
			}
		}
		for code := range ruleWarned {
			result.Warnings[code] = append(result.Warnings[code], rule.Name)
		}
	}

	for _, code := range codes {
		if rejected[code] {
			result.Rejected = append(result.Rejected, code)
		} else {
			result.Passed = append(result.Passed, code)
		}
	}
	sort.Strings(result.Passed)
	sort.Strings(result.Rejected)

	if err := e.repo.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("persist screening result: %w", err)
	}

	e.log.WithFields(map[string]interface{}{
		"universe": len(codes),
		"passed":   len(result.Passed),
		"rejected": len(result.Rejected),
		"rules":    len(result.RuleDetails),
	}).Info("screening completed")

	return result, nil
}

// filingLookback returns the filing depth the rule set needs: the
// largest Periods or MinPeriods over the enabled rules, never below
// the floor.
func filingLookback(rules []contracts.ScreeningRule) int {
	depth := minFilingLookback
	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}
		if rule.Ratio != nil && rule.Ratio.MinPeriods > depth {
			depth = rule.Ratio.MinPeriods
		}
		if rule.Distribution != nil && rule.Distribution.Periods > depth {
			depth = rule.Distribution.Periods
		}
	}
	return depth
}

// loadFilings fetches filing history for every symbol with a bounded
// fan-out. Symbols without filings stay in the map with a nil slice so
// rules count them as skipped rather than vanishing.
func (e *Engine) loadFilings(ctx context.Context, codes []string, lookback int) (map[string][]contracts.Fundamental, error) {
	var mu sync.Mutex
	filings := make(map[string][]contracts.Fundamental, len(codes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, code := range codes {
		code := code
		g.Go(func() error {
			history, err := e.funds.FilingHistory(gctx, code, lookback)
			if err != nil {
				return fmt.Errorf("filings for %s: %w", code, err)
			}
			mu.Lock()
			filings[code] = history
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filings, nil
}

// evalRule runs one rule over all symbols. Ratio rules can reject;
// distribution rules can only warn.
func (e *Engine) evalRule(
	rule *contracts.ScreeningRule,
	codes []string,
	filings map[string][]contracts.Fundamental,
) (*contracts.RuleExecutionDetail, map[string]bool, map[string]bool, error) {
	start := time.Now()
	detail := &contracts.RuleExecutionDetail{
		Rule:       rule.Name,
		Kind:       rule.Kind,
		HardReject: rule.HardReject,
	}
	rejectedCodes := make(map[string]bool)
	warnedCodes := make(map[string]bool)

	switch rule.Kind {
	case contracts.RuleRatioThreshold:
		if rule.Ratio == nil {
			return nil, nil, nil, fmt.Errorf("ratio rule without parameters")
		}
		detail.Threshold = rule.Ratio.Threshold
		for _, code := range codes {
			detail.Checked++
			outcome, value, err := evalRatio(rule.Ratio, filings[code])
			if err != nil {
				return nil, nil, nil, err
			}
			switch outcome {
			case outcomePass:
				detail.Passed++
			case outcomeSkip:
				detail.Skipped++
			case outcomeReject:
				detail.Rejected++
				rejectedCodes[code] = true
				if len(detail.RejectedSamples) < rejectedSampleLimit {
					detail.RejectedSamples = append(detail.RejectedSamples, contracts.RejectedSample{
						Code:  code,
						Value: value,
						Reason: fmt.Sprintf("%s %s %g failed", rule.Ratio.Field,
							rule.Ratio.Op, rule.Ratio.Threshold),
					})
				}
			}
		}

	case contracts.RuleDistributionCheck:
		if rule.Distribution == nil {
			return nil, nil, nil, fmt.Errorf("distribution rule without parameters")
		}
		detail.Threshold = rule.Distribution.PFloor
		for _, code := range codes {
			detail.Checked++
			outcome, err := evalDistribution(rule.Distribution, filings[code])
			if err != nil {
				return nil, nil, nil, err
			}
			switch {
			case outcome.skipped:
				detail.Skipped++
			case outcome.flagged:
				// Distribution anomalies are advisory: counted as passed
				// for the chain, surfaced as a warning on the symbol.
				detail.Passed++
				warnedCodes[code] = true
				if len(detail.RejectedSamples) < rejectedSampleLimit {
					detail.RejectedSamples = append(detail.RejectedSamples, contracts.RejectedSample{
						Code:   code,
						Value:  outcome.pValue,
						Reason: fmt.Sprintf("leading-digit p=%.4f below %.4f over %d obs", outcome.pValue, rule.Distribution.PFloor, outcome.obs),
					})
				}
			default:
				detail.Passed++
			}
		}

	default:
		return nil, nil, nil, fmt.Errorf("unknown rule kind %q", rule.Kind)
	}

	detail.DurationMS = time.Since(start).Milliseconds()
	return detail, rejectedCodes, warnedCodes, nil
}
