package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/readiness"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// ErrNotReady reports that the local data the analysis depends on is
// incomplete for the current date.
var ErrNotReady = errors.New("analysis data not ready")

// symbolTimeout bounds one symbol's analysis inside a batch; a
// timed-out symbol is counted as skipped, not silently dropped.
const symbolTimeout = 30 * time.Second

// Analyzer runs technical and narrative analysis over the current
// pool. Batch state is queryable while a batch runs; only one batch
// runs at a time.
type Analyzer struct {
	gate      contracts.ReadinessChecker
	tech      contracts.TechnicalAnalyzer
	narrative contracts.NarrativeAnalyzer // nil when disabled
	log       *logger.Logger
	workers   int

	mu       sync.Mutex
	progress contracts.BatchProgress
	reports  map[string]*contracts.AnalysisReport
}

// NewAnalyzer creates an analyzer. narrative may be nil.
func NewAnalyzer(gate contracts.ReadinessChecker, tech contracts.TechnicalAnalyzer, narrative contracts.NarrativeAnalyzer, workers int, log *logger.Logger) *Analyzer {
	if workers < 1 {
		workers = 1
	}
	return &Analyzer{
		gate:      gate,
		tech:      tech,
		narrative: narrative,
		workers:   workers,
		log:       log.WithField("component", "analysis"),
		reports:   make(map[string]*contracts.AnalysisReport),
	}
}

// checkReady verifies the local data behind technical snapshots is
// complete. Returns ErrNotReady on a gap.
func (a *Analyzer) checkReady(ctx context.Context) error {
	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	ready, err := a.gate.Check(ctx, readiness.StageRequirements(contracts.StageAnalysis, asOf))
	if err != nil {
		return fmt.Errorf("readiness gate: %w", err)
	}
	if !ready.IsReady {
		return ErrNotReady
	}
	return nil
}

// AnalyzeOne produces a report for a single symbol on demand. The
// readiness gate runs first: a stale price store yields ErrNotReady,
// not a report over partial data. Narrative analysis is attempted only
// when the capability is configured; its failure degrades the report
// rather than failing it.
func (a *Analyzer) AnalyzeOne(ctx context.Context, code string) (*contracts.AnalysisReport, error) {
	if err := a.checkReady(ctx); err != nil {
		return nil, err
	}
	return a.analyzeOne(ctx, code)
}

// analyzeOne is the ungated body; batch workers call it after the
// batch-level gate has passed.
func (a *Analyzer) analyzeOne(ctx context.Context, code string) (*contracts.AnalysisReport, error) {
	snap, err := a.tech.TechnicalSnapshot(ctx, code)
	if err != nil {
		return nil, err
	}

	report := &contracts.AnalysisReport{
		Code:      code,
		Technical: snap,
		CreatedAt: time.Now().UTC(),
	}

	if a.narrative != nil {
		result, err := a.narrative.Analyze(ctx, contracts.NarrativeRequest{Code: code})
		if err != nil {
			a.log.WithError(err).WithField("code", code).Warn("narrative analysis failed")
		} else {
			report.Narrative = result
		}
	}

	a.mu.Lock()
	a.reports[code] = report
	a.mu.Unlock()

	return report, nil
}

// RunBatch analyzes every pool symbol with a bounded fan-out. Returns
// immediately with false when a batch is already running.
func (a *Analyzer) RunBatch(ctx context.Context, codes []string) bool {
	a.mu.Lock()
	if a.progress.Running {
		a.mu.Unlock()
		return false
	}
	a.progress = contracts.BatchProgress{Running: true, Total: len(codes)}
	a.mu.Unlock()

	go a.runBatch(ctx, codes)
	return true
}

func (a *Analyzer) runBatch(ctx context.Context, codes []string) {
	defer func() {
		a.mu.Lock()
		a.progress.Running = false
		a.progress.Current = ""
		a.mu.Unlock()
	}()

	// Gate once for the whole batch rather than per symbol.
	if err := a.checkReady(ctx); err != nil {
		a.mu.Lock()
		a.progress.Skipped = len(codes)
		a.mu.Unlock()
		a.log.WithError(err).Warn("analysis batch gated on missing data")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, code := range codes {
		code := code
		g.Go(func() error {
			a.mu.Lock()
			a.progress.Current = code
			a.mu.Unlock()

			// One pathological symbol must not stall the batch.
			sctx, cancel := context.WithTimeout(gctx, symbolTimeout)
			_, err := a.analyzeOne(sctx, code)
			cancel()

			a.mu.Lock()
			if err != nil {
				a.progress.Skipped++
			} else {
				a.progress.Completed++
			}
			a.mu.Unlock()

			if err != nil {
				// One bad symbol does not sink the batch.
				a.log.WithError(err).WithField("code", code).Warn("symbol skipped")
			}
			return nil
		})
	}

	_ = g.Wait()
	a.log.WithField("total", len(codes)).Info("analysis batch completed")
}

// Progress returns a copy of the current batch position.
func (a *Analyzer) Progress() contracts.BatchProgress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress
}

// Report returns the last report for a symbol, if any.
func (a *Analyzer) Report(code string) (*contracts.AnalysisReport, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.reports[code]
	return r, ok
}

// Reports returns the reports for the given codes, skipping symbols
// not yet analyzed.
func (a *Analyzer) Reports(codes []string) []*contracts.AnalysisReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*contracts.AnalysisReport, 0, len(codes))
	for _, c := range codes {
		if r, ok := a.reports[c]; ok {
			out = append(out, r)
		}
	}
	return out
}
