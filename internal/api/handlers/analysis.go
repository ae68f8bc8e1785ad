package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/analysis"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/signals"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// AnalysisHandler serves single-symbol analysis, the batch workflow
// and the composite dashboard.
type AnalysisHandler struct {
	analyzer *analysis.Analyzer
	pools    contracts.PoolRepository
	sigs     contracts.SignalRepository
	risk     *signals.RiskMonitor
	logger   *logger.Logger
}

// NewAnalysisHandler creates an analysis handler.
func NewAnalysisHandler(
	analyzer *analysis.Analyzer,
	pools contracts.PoolRepository,
	sigs contracts.SignalRepository,
	risk *signals.RiskMonitor,
	log *logger.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer, pools: pools, sigs: sigs, risk: risk, logger: log}
}

// GetOne returns the analysis report for a single symbol. A cached
// report from the last batch is served when present; otherwise the
// symbol is analyzed on demand.
// GET or POST /api/analysis/{code}
func (h *AnalysisHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		writeError(w, http.StatusBadRequest, "symbol code is required")
		return
	}

	if report, ok := h.analyzer.Report(code); ok {
		writeJSON(w, http.StatusOK, report)
		return
	}

	report, err := h.analyzer.AnalyzeOne(r.Context(), code)
	if errors.Is(err, analysis.ErrNotReady) {
		writeDataMissing(w, "price data is not ready for analysis")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("code", code).Error("analysis failed")
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetDashboard aggregates the current pool, its cached analysis
// reports, the market risk state and the active signals into one
// response.
// GET /api/analysis/dashboard
func (h *AnalysisHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	pool, err := h.pools.Latest(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("load pool failed")
		writeError(w, http.StatusInternalServerError, "could not load pool")
		return
	}
	if pool == nil {
		writeDataMissing(w, "no pool snapshot has been computed yet")
		return
	}

	var riskState *contracts.MarketRiskSnapshot
	if h.risk != nil {
		riskState, err = h.risk.Snapshot(r.Context())
		if err != nil {
			h.logger.WithError(err).Warn("risk snapshot unavailable for dashboard")
			riskState = nil
		}
	}

	active, err := h.sigs.ActiveSignals(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.WithError(err).Warn("active signals unavailable for dashboard")
		active = nil
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pool":    pool,
		"reports": h.analyzer.Reports(pool.Codes()),
		"risk":    riskState,
		"signals": active,
	})
}

// StartBatch launches a background analysis over the current pool.
// Returns 409 when a batch is already running.
// POST /api/analysis/batch
func (h *AnalysisHandler) StartBatch(w http.ResponseWriter, r *http.Request) {
	pool, err := h.pools.Latest(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("load pool failed")
		writeError(w, http.StatusInternalServerError, "could not load pool")
		return
	}
	if pool == nil {
		writeDataMissing(w, "no pool snapshot to analyze yet")
		return
	}

	// The batch outlives the request; do not tie it to r.Context().
	codes := pool.Codes()
	if !h.analyzer.RunBatch(context.Background(), codes) {
		writeError(w, http.StatusConflict, "a batch analysis is already running")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
		"total":  len(codes),
	})
}

// GetBatchStatus reports the position of the running or last batch.
// GET /api/analysis/batch/status
func (h *AnalysisHandler) GetBatchStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzer.Progress())
}
