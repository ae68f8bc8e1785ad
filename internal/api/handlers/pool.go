package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/pipeline"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/redis"
)

// PoolHandler serves the candidate pool, its change log and the RPS
// rank table.
type PoolHandler struct {
	pools  contracts.PoolRepository
	ranks  contracts.RankRepository
	orch   *pipeline.Orchestrator
	cache  *redis.Cache
	logger *logger.Logger
}

// NewPoolHandler creates a pool handler. cache may be nil.
func NewPoolHandler(
	pools contracts.PoolRepository,
	ranks contracts.RankRepository,
	orch *pipeline.Orchestrator,
	cache *redis.Cache,
	log *logger.Logger,
) *PoolHandler {
	return &PoolHandler{pools: pools, ranks: ranks, orch: orch, cache: cache, logger: log}
}

// GetPool returns the current pool snapshot, cached for the dashboard.
// GET /api/pool
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		var cached contracts.CorePoolResult
		if hit, err := h.cache.Get(ctx, redis.PoolKey(), &cached); err == nil && hit {
			writeJSON(w, http.StatusOK, &cached)
			return
		}
	}

	pool, err := h.pools.Latest(ctx)
	if err != nil {
		h.logger.WithError(err).Error("load pool failed")
		writeError(w, http.StatusInternalServerError, "could not load pool")
		return
	}
	if pool == nil {
		writeDataMissing(w, "no pool has been built yet")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, redis.PoolKey(), pool, redis.TTLDaily); err != nil {
			h.logger.WithError(err).Warn("cache pool snapshot")
		}
	}

	writeJSON(w, http.StatusOK, pool)
}

// GetChanges returns the change log since a date.
// GET /api/pool/changes?days=30
func (h *PoolHandler) GetChanges(w http.ResponseWriter, r *http.Request) {
	days := intQuery(r, "days", 30)
	since := time.Now().UTC().AddDate(0, 0, -days)

	changes, err := h.pools.Changes(r.Context(), since)
	if err != nil {
		h.logger.WithError(err).Error("load pool changes failed")
		writeError(w, http.StatusInternalServerError, "could not load pool changes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"since":   since.Format("2006-01-02"),
		"changes": changes,
	})
}

// Refresh starts a background pipeline run covering the pool rebuild.
// POST /api/pool/refresh
func (h *PoolHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	run, err := h.orch.StartRun(r.Context(), "full")
	if err != nil {
		h.logger.WithError(err).Error("pool refresh failed")
		writeError(w, http.StatusInternalServerError, "could not start refresh")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": run.ID})
}

// GetRanks returns the latest RPS rank table.
// GET /api/rps
func (h *PoolHandler) GetRanks(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ranks.Latest(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("load ranks failed")
		writeError(w, http.StatusInternalServerError, "could not load ranks")
		return
	}
	if rows == nil {
		writeDataMissing(w, "no rank table has been computed yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": len(rows),
		"ranks":   rows,
	})
}

// intQuery parses an integer query parameter with a default.
func intQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
