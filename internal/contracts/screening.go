package contracts

import "time"

// RuleKind is the closed set of screening rule kinds. Unknown kinds in
// configuration fail validation at load time, not at evaluation time.
type RuleKind string

const (
	// RuleRatioThreshold compares a single fundamental field against a
	// threshold (e.g. ROE >= 5).
	RuleRatioThreshold RuleKind = "ratio_threshold"

	// RuleDistributionCheck tests the leading-digit distribution of a
	// fundamental field across historical filings (Benford-style).
	// Structurally different from ratio rules: it operates over a
	// distribution, not a single scalar comparison.
	RuleDistributionCheck RuleKind = "distribution_check"
)

// CompareOp is the comparison operator of a ratio rule.
type CompareOp string

const (
	OpGT CompareOp = "gt"
	OpGE CompareOp = "ge"
	OpLT CompareOp = "lt"
	OpLE CompareOp = "le"
)

// RatioParams configures a ratio_threshold rule.
type RatioParams struct {
	Field      string    `yaml:"field" json:"field"` // e.g. "roe", "revenue_growth"
	Op         CompareOp `yaml:"op" json:"op"`
	Threshold  float64   `yaml:"threshold" json:"threshold"`
	MinPeriods int       `yaml:"min_periods" json:"min_periods"` // filings required, else skip
}

// DistributionParams configures a distribution_check rule.
type DistributionParams struct {
	Field   string  `yaml:"field" json:"field"`         // field whose digits are tested
	MinObs  int     `yaml:"min_obs" json:"min_obs"`     // observations required, else skip
	PFloor  float64 `yaml:"p_floor" json:"p_floor"`     // flag when p-value < floor
	Periods int     `yaml:"periods" json:"periods"`     // filings lookback
}

// ScreeningRule is a named, toggleable predicate over fundamental data.
// Rules are configuration data, not code.
type ScreeningRule struct {
	Name         string              `yaml:"name" json:"name"`
	Kind         RuleKind            `yaml:"kind" json:"kind"`
	Enabled      bool                `yaml:"enabled" json:"enabled"`
	HardReject   bool                `yaml:"hard_reject" json:"hard_reject"`
	Ratio        *RatioParams        `yaml:"ratio,omitempty" json:"ratio,omitempty"`
	Distribution *DistributionParams `yaml:"distribution,omitempty" json:"distribution,omitempty"`
}

// RejectedSample records one rejected symbol with its reason, kept as a
// small audit sample per rule.
type RejectedSample struct {
	Code   string  `json:"code"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}

// RuleExecutionDetail is the write-once audit record of one rule's run.
// Invariant: Passed + Rejected + Skipped == Checked.
type RuleExecutionDetail struct {
	Rule            string           `json:"rule"`
	Kind            RuleKind         `json:"kind"`
	HardReject      bool             `json:"hard_reject"`
	Checked         int              `json:"checked"`
	Passed          int              `json:"passed"`
	Rejected        int              `json:"rejected"`
	Skipped         int              `json:"skipped"`
	DurationMS      int64            `json:"duration_ms"`
	Threshold       float64          `json:"threshold"`
	RejectedSamples []RejectedSample `json:"rejected_samples,omitempty"`
}

// Consistent checks the count invariant.
func (d *RuleExecutionDetail) Consistent() bool {
	return d.Passed+d.Rejected+d.Skipped == d.Checked
}

// ScreeningResult aggregates all rule details for a run plus the final
// pass/reject lists and the readiness result that gated the run.
// Persisted per run date; immutable once written.
type ScreeningResult struct {
	AsOf        time.Time             `json:"as_of"`
	Readiness   *DataReadinessResult  `json:"readiness"`
	RuleDetails []RuleExecutionDetail `json:"rule_details"`
	Passed      []string              `json:"passed"`
	Rejected    []string              `json:"rejected"`
	Warnings    map[string][]string   `json:"warnings,omitempty"` // code -> soft-warn rule names
	CreatedAt   time.Time             `json:"created_at"`
}

// Gated reports whether the run was blocked by the readiness gate.
func (r *ScreeningResult) Gated() bool {
	return r.Readiness != nil && !r.Readiness.IsReady
}
