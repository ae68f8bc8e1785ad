package handlers

import (
	"net/http"
	"time"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/signals"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/redis"
)

// SignalHandler serves trading signals and the market risk state.
type SignalHandler struct {
	repo   contracts.SignalRepository
	risk   *signals.RiskMonitor
	cache  *redis.Cache
	logger *logger.Logger
}

// NewSignalHandler creates a signal handler. cache may be nil.
func NewSignalHandler(
	repo contracts.SignalRepository,
	risk *signals.RiskMonitor,
	cache *redis.Cache,
	log *logger.Logger,
) *SignalHandler {
	return &SignalHandler{repo: repo, risk: risk, cache: cache, logger: log}
}

// GetActive returns signals whose validity window has not expired.
// GET /api/signals
func (h *SignalHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		var cached []contracts.TradingSignal
		if hit, err := h.cache.Get(r.Context(), redis.SignalsKey(), &cached); err == nil && hit {
			writeJSON(w, http.StatusOK, map[string]interface{}{"signals": cached})
			return
		}
	}

	active, err := h.repo.ActiveSignals(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.WithError(err).Error("load active signals failed")
		writeError(w, http.StatusInternalServerError, "could not load signals")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), redis.SignalsKey(), active, redis.TTLMedium); err != nil {
			h.logger.WithError(err).Warn("signal cache write failed")
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"signals": active})
}

// GetHistory returns signals created inside a time range. Accepts
// ?days=N (default 30) or explicit ?from / ?to dates (2006-01-02).
// GET /api/signals/history
func (h *SignalHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -intQuery(r, "days", 30))
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date, expected 2006-01-02")
			return
		}
		from = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date, expected 2006-01-02")
			return
		}
		to = t.AddDate(0, 0, 1)
	}

	history, err := h.repo.History(r.Context(), from, to)
	if err != nil {
		h.logger.WithError(err).Error("load signal history failed")
		writeError(w, http.StatusInternalServerError, "could not load signal history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":    from,
		"to":      to,
		"signals": history,
	})
}

// GetRisk returns the benchmark risk snapshot with the exposure cap.
// GET /api/risk
func (h *SignalHandler) GetRisk(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		var cached contracts.MarketRiskSnapshot
		if hit, err := h.cache.Get(r.Context(), redis.RiskKey(), &cached); err == nil && hit {
			writeJSON(w, http.StatusOK, &cached)
			return
		}
	}

	snap, err := h.risk.Snapshot(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("risk snapshot failed")
		writeDataMissing(w, "benchmark history is insufficient for a risk snapshot")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), redis.RiskKey(), snap, redis.TTLShort); err != nil {
			h.logger.WithError(err).Warn("risk cache write failed")
		}
	}
	writeJSON(w, http.StatusOK, snap)
}
