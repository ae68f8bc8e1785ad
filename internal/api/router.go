package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/api/handlers"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/database"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// NewRouter configures the HTTP routes. Every path below /api reads
// locally stored results or triggers locally computed work; nothing
// here reaches external data sources.
func NewRouter(
	db *database.DB,
	pipelineHandler *handlers.PipelineHandler,
	screeningHandler *handlers.ScreeningHandler,
	poolHandler *handlers.PoolHandler,
	analysisHandler *handlers.AnalysisHandler,
	signalHandler *handlers.SignalHandler,
	configHandler *handlers.ConfigHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	var hc healthChecker
	if db != nil {
		hc = db
	}
	r.HandleFunc("/health", healthCheckHandler(hc)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Pipeline
	api.HandleFunc("/readiness", pipelineHandler.GetReadiness).Methods("GET")
	api.HandleFunc("/readiness/{stage}", pipelineHandler.GetReadiness).Methods("GET")
	api.HandleFunc("/pipeline/run", pipelineHandler.StartRun).Methods("POST")
	api.HandleFunc("/pipeline/status/{id}", pipelineHandler.GetStatus).Methods("GET")
	api.HandleFunc("/pipeline/cancel/{id}", pipelineHandler.CancelRun).Methods("POST")

	// Screening
	api.HandleFunc("/screening/run", screeningHandler.Run).Methods("POST")
	api.HandleFunc("/screening/result", screeningHandler.GetResult).Methods("GET")
	api.HandleFunc("/screening/rules", screeningHandler.GetRules).Methods("GET")
	api.HandleFunc("/screening/rules", screeningHandler.UpdateRules).Methods("PUT")

	// Pool and ranking
	api.HandleFunc("/pool", poolHandler.GetPool).Methods("GET")
	api.HandleFunc("/pool/changes", poolHandler.GetChanges).Methods("GET")
	api.HandleFunc("/pool/refresh", poolHandler.Refresh).Methods("POST")
	api.HandleFunc("/rps", poolHandler.GetRanks).Methods("GET")

	// Analysis
	api.HandleFunc("/analysis/dashboard", analysisHandler.GetDashboard).Methods("GET")
	api.HandleFunc("/analysis/batch", analysisHandler.StartBatch).Methods("POST")
	api.HandleFunc("/analysis/batch/status", analysisHandler.GetBatchStatus).Methods("GET")
	api.HandleFunc("/analysis/{code}", analysisHandler.GetOne).Methods("GET", "POST")

	// Signals and risk
	api.HandleFunc("/signals", signalHandler.GetActive).Methods("GET")
	api.HandleFunc("/signals/history", signalHandler.GetHistory).Methods("GET")
	api.HandleFunc("/risk", signalHandler.GetRisk).Methods("GET")

	// Strategy configuration
	api.HandleFunc("/config", configHandler.Get).Methods("GET")
	api.HandleFunc("/config", configHandler.Update).Methods("PUT")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthChecker is the part of database.DB the health endpoint needs.
type healthChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// healthCheckHandler reports process and database health, including
// connection pool statistics when the database is reachable.
func healthCheckHandler(db healthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK

		var dbStatus *database.HealthStatus
		if db != nil {
			st, err := db.HealthCheck(r.Context())
			dbStatus = st
			if err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   status,
			"database": dbStatus,
			"service":  "stock-selection-api",
		})
	}
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics.
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "internal server error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
