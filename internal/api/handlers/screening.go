package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/strategyconfig"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// ScreeningHandler serves screening runs, results and rule management.
type ScreeningHandler struct {
	engine   contracts.ScreeningEngine
	repo     contracts.ScreeningRepository
	strategy *strategyconfig.Manager
	logger   *logger.Logger
}

// NewScreeningHandler creates a screening handler.
func NewScreeningHandler(
	engine contracts.ScreeningEngine,
	repo contracts.ScreeningRepository,
	strategy *strategyconfig.Manager,
	log *logger.Logger,
) *ScreeningHandler {
	return &ScreeningHandler{engine: engine, repo: repo, strategy: strategy, logger: log}
}

// Run executes a standalone screening pass with the active rules.
// POST /api/screening/run
func (h *ScreeningHandler) Run(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	result, err := h.engine.RunScreening(r.Context(), asOf, h.strategy.Rules())
	if err != nil {
		h.logger.WithError(err).Error("screening run failed")
		writeError(w, http.StatusInternalServerError, "screening run failed")
		return
	}

	if result.Gated() {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"overall_status": "data_missing",
			"readiness":      result.Readiness,
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetResult returns the latest persisted screening result.
// GET /api/screening/result
func (h *ScreeningHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.repo.Latest(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("load screening result failed")
		writeError(w, http.StatusInternalServerError, "could not load screening result")
		return
	}
	if result == nil {
		writeDataMissing(w, "no screening result has been computed yet")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetRules returns the active rule chain.
// GET /api/screening/rules
func (h *ScreeningHandler) GetRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":       h.strategy.Rules(),
		"config_hash": h.strategy.Hash(),
	})
}

// UpdateRules replaces the rule chain after validation. The rest of
// the strategy stays untouched.
// PUT /api/screening/rules
func (h *ScreeningHandler) UpdateRules(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rules []contracts.ScreeningRule `json:"rules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed rule payload")
		return
	}

	next := *h.strategy.Current()
	next.Screening.Rules = body.Rules
	if err := h.strategy.Update(&next); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":       h.strategy.Rules(),
		"config_hash": h.strategy.Hash(),
	})
}
