package contracts

import "time"

// DataRequirement declares one local-store dependency of a pipeline stage.
// Requirements are immutable and declared in code next to the stage that
// needs them.
type DataRequirement struct {
	Table      string     `json:"table"`       // e.g. "data.daily_prices"
	Columns    []string   `json:"columns"`     // required columns
	DateColumn string     `json:"date_column"` // column used for coverage checks
	MinDate    *time.Time `json:"min_date,omitempty"`
	MaxDate    *time.Time `json:"max_date,omitempty"`
	MinRows    int64      `json:"min_rows"`
	Purpose    string     `json:"purpose"`
}

// RequirementState classifies the outcome of checking one requirement.
type RequirementState string

const (
	RequirementReady            RequirementState = "ready"
	RequirementMissingTable     RequirementState = "missing_table"
	RequirementMissingDates     RequirementState = "missing_dates"
	RequirementInsufficientRows RequirementState = "insufficient_rows"
)

// RequirementStatus is the per-requirement outcome of a readiness check.
type RequirementStatus struct {
	Requirement  DataRequirement  `json:"requirement"`
	State        RequirementState `json:"state"`
	RowCount     int64            `json:"row_count"`
	EarliestDate *time.Time       `json:"earliest_date,omitempty"`
	LatestDate   *time.Time       `json:"latest_date,omitempty"`
	Detail       string           `json:"detail,omitempty"`
}

// Ready reports whether the single requirement is satisfied.
func (s *RequirementStatus) Ready() bool {
	return s.State == RequirementReady
}

// SyncTask suggests one external connector run that would close a gap.
// The core never triggers these itself; it only reports them.
type SyncTask struct {
	Connector string `json:"connector"`
	TaskType  string `json:"task_type"` // "full" or "incremental"
	Table     string `json:"table"`
	Reason    string `json:"reason"`
}

// MissingSummary enumerates affected stages and the connector runs that
// would need to happen before the gated stages can compute.
type MissingSummary struct {
	Stages []Stage    `json:"stages"`
	Tasks  []SyncTask `json:"tasks"`
}

// DataReadinessResult is the outcome of checking a requirement set at a
// point in time. Created fresh on every check, never mutated after return.
type DataReadinessResult struct {
	IsReady   bool                `json:"is_ready"`
	CheckedAt time.Time           `json:"checked_at"`
	Items     []RequirementStatus `json:"items"`
	Missing   *MissingSummary     `json:"missing,omitempty"`
}

// FailedItems returns the statuses that did not pass.
func (r *DataReadinessResult) FailedItems() []RequirementStatus {
	failed := make([]RequirementStatus, 0)
	for _, item := range r.Items {
		if !item.Ready() {
			failed = append(failed, item)
		}
	}
	return failed
}
