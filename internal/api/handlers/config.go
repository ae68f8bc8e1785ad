package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/strategyconfig"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// ConfigHandler exposes the live strategy configuration.
type ConfigHandler struct {
	strategy *strategyconfig.Manager
	logger   *logger.Logger
}

// NewConfigHandler creates a config handler.
func NewConfigHandler(strategy *strategyconfig.Manager, log *logger.Logger) *ConfigHandler {
	return &ConfigHandler{strategy: strategy, logger: log}
}

// Get returns the active strategy with its hash. The hash is what
// pipeline runs record, so callers can match a run to its settings.
// GET /api/config
func (h *ConfigHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"config": h.strategy.Current(),
		"hash":   h.strategy.Hash(),
	})
}

// Update replaces the whole strategy after validation. Runs already
// in flight keep the configuration they started with.
// PUT /api/config
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var cfg strategyconfig.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config payload")
		return
	}

	if err := h.strategy.Update(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.WithField("hash", h.strategy.Hash()).Info("strategy configuration updated")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"config": h.strategy.Current(),
		"hash":   h.strategy.Hash(),
	})
}
