package contracts

import (
	"context"
	"time"
)

// MAState classifies price position relative to the moving averages.
type MAState string

const (
	MAAboveAll MAState = "above_all"
	MABelowAll MAState = "below_all"
	MAMixed    MAState = "mixed"
)

// TechSnapshot is the locally computed technical picture of one symbol.
type TechSnapshot struct {
	Code        string    `json:"code"`
	AsOf        time.Time `json:"as_of"`
	Close       float64   `json:"close"`
	MAShort     float64   `json:"ma_short"`
	MALong      float64   `json:"ma_long"`
	MAState     MAState   `json:"ma_state"`
	RSI         float64   `json:"rsi"`
	MACD        float64   `json:"macd"`
	MACDSignal  float64   `json:"macd_signal"`
	VolumeRatio float64   `json:"volume_ratio"`
	Score       float64   `json:"score"` // composite 0-100
}

// NarrativeRequest carries raw narrative text (management commentary,
// filings prose) plus context to the external text-analysis capability.
type NarrativeRequest struct {
	Code    string            `json:"code"`
	Text    string            `json:"text"`
	Context map[string]string `json:"context,omitempty"`
}

// NarrativeResult is the structured output of the external capability.
type NarrativeResult struct {
	Code               string   `json:"code"`
	Credibility        float64  `json:"credibility"` // 0-100
	Optimism           float64  `json:"optimism"`    // 0-100
	RiskFactors        []string `json:"risk_factors"`
	VerificationPoints []string `json:"verification_points"`
}

// NarrativeAnalyzer is the interface to the external text-analysis
// capability. This core does not implement the capability itself.
type NarrativeAnalyzer interface {
	Analyze(ctx context.Context, req NarrativeRequest) (*NarrativeResult, error)
}

// AnalysisReport combines the technical snapshot with the optional
// narrative findings for one symbol.
type AnalysisReport struct {
	Code      string           `json:"code"`
	Technical *TechSnapshot    `json:"technical"`
	Narrative *NarrativeResult `json:"narrative,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// BatchProgress is the queryable position of a long batch analysis.
// Callers poll it instead of holding a connection open for the batch.
type BatchProgress struct {
	Running   bool   `json:"running"`
	Completed int    `json:"completed"`
	Skipped   int    `json:"skipped"`
	Total     int    `json:"total"`
	Current   string `json:"current,omitempty"`
}
