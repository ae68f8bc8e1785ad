package contracts

import "time"

// Stage identifies one pipeline stage. All logs, snapshots and result
// rows use these constants.
//
// Pipeline flow:
//
//	S0 -> (S1 | S2 in parallel) -> S3 -> S4 -> (S5, S6)
//	Readiness  Screening  RPS     Scoring  Pool   Analysis/Signals
type Stage string

const (
	// StageReadiness S0: data readiness gate over the local store.
	StageReadiness Stage = "S0_READINESS"

	// StageScreening S1: rule chain plus statistical distribution check.
	StageScreening Stage = "S1_SCREENING"

	// StageRanking S2: relative-strength (RPS) percentile ranking.
	// Independent of screening; the two may run concurrently.
	StageRanking Stage = "S2_RPS"

	// StageScoring S3: quality/growth/value/momentum factor scores.
	StageScoring Stage = "S3_SCORING"

	// StagePool S4: core/supplement pool construction and change log.
	StagePool Stage = "S4_POOL"

	// StageAnalysis S5: per-symbol technical snapshots and narrative
	// delegation over the current pool.
	StageAnalysis Stage = "S5_ANALYSIS"

	// StageSignals S6: entry/add/exit signals and market-risk overlay.
	StageSignals Stage = "S6_SIGNALS"
)

// String returns the stage name.
func (s Stage) String() string { return string(s) }

// ShortName returns the abbreviated stage name (e.g. "S0").
func (s Stage) ShortName() string {
	switch s {
	case StageReadiness:
		return "S0"
	case StageScreening:
		return "S1"
	case StageRanking:
		return "S2"
	case StageScoring:
		return "S3"
	case StagePool:
		return "S4"
	case StageAnalysis:
		return "S5"
	case StageSignals:
		return "S6"
	default:
		return "UNKNOWN"
	}
}

// AllStages returns all pipeline stages in execution order.
func AllStages() []Stage {
	return []Stage{
		StageReadiness,
		StageScreening,
		StageRanking,
		StageScoring,
		StagePool,
		StageAnalysis,
		StageSignals,
	}
}

// IsValidStage checks if a stage string is valid.
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// RunStatus is the lifecycle status of a run or of one stage record.
type RunStatus string

const (
	RunPending     RunStatus = "pending"
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunDataMissing RunStatus = "data_missing"
	RunError       RunStatus = "error"
	RunCancelled   RunStatus = "cancelled"
)

// Terminal reports whether the status cannot change anymore.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunDataMissing, RunError, RunCancelled:
		return true
	}
	return false
}

// StageRecord is the persisted status of one stage within a run.
type StageRecord struct {
	Stage      Stage                `json:"stage"`
	Status     RunStatus            `json:"status"`
	StartedAt  *time.Time           `json:"started_at,omitempty"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	Summary    map[string]any       `json:"summary,omitempty"`
	Readiness  *DataReadinessResult `json:"readiness,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// PipelineRun is one end-to-end or partial execution. It is created at
// run start, mutated only by appending/updating stage records, and its
// status is frozen at run end.
type PipelineRun struct {
	ID         string        `json:"run_id"`
	Scope      string        `json:"scope"` // "full" or a single stage name
	ConfigHash string        `json:"config_hash,omitempty"`
	Status     RunStatus     `json:"status"`
	Stages     []StageRecord `json:"stages"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// StageRecord returns the record for a stage, if present.
func (r *PipelineRun) StageRecord(stage Stage) (*StageRecord, bool) {
	for i := range r.Stages {
		if r.Stages[i].Stage == stage {
			return &r.Stages[i], true
		}
	}
	return nil, false
}
