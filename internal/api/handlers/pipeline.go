package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/pipeline"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/readiness"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// PipelineHandler serves readiness checks and pipeline runs.
type PipelineHandler struct {
	orch   *pipeline.Orchestrator
	gate   contracts.ReadinessChecker
	logger *logger.Logger
}

// NewPipelineHandler creates a pipeline handler.
func NewPipelineHandler(orch *pipeline.Orchestrator, gate contracts.ReadinessChecker, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{orch: orch, gate: gate, logger: log}
}

// GetReadiness checks data readiness for the full pipeline, or for one
// stage when the route carries a stage name.
// GET /api/readiness
// GET /api/readiness/{stage}
func (h *PipelineHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	stage := contracts.StageReadiness
	if raw, ok := mux.Vars(r)["stage"]; ok {
		if !contracts.IsValidStage(raw) {
			writeError(w, http.StatusBadRequest, "unknown stage")
			return
		}
		stage = contracts.Stage(raw)
	}

	result, err := h.gate.Check(r.Context(), readiness.StageRequirements(stage, time.Now().UTC()))
	if err != nil {
		h.logger.WithError(err).Error("readiness check failed")
		writeError(w, http.StatusInternalServerError, "readiness check failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// StartRun launches a pipeline run in the background and returns its
// id for status polling.
// POST /api/pipeline/run?scope=full
func (h *PipelineHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "full"
	}
	if scope != "full" && !contracts.IsValidStage(scope) {
		writeError(w, http.StatusBadRequest, "scope must be full or a stage name")
		return
	}

	run, err := h.orch.StartRun(r.Context(), scope)
	if err != nil {
		h.logger.WithError(err).Error("start run failed")
		writeError(w, http.StatusInternalServerError, "could not start run")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID,
		"status": string(run.Status),
	})
}

// CancelRun requests cancellation of an active run. The run stops at
// the next stage boundary and keeps its partial stage records.
// POST /api/pipeline/cancel/{id}
func (h *PipelineHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.orch.Cancel(id); err != nil {
		writeError(w, http.StatusNotFound, "run is not active")
		return
	}

	h.logger.WithField("run_id", id).Info("run cancellation requested")
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": id,
		"status": "cancelling",
	})
}

// GetStatus returns the state of one run.
// GET /api/pipeline/status/{id}
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := h.orch.Status(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
