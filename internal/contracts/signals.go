package contracts

import "time"

// SignalType is the closed set of actionable signal events.
type SignalType string

const (
	SignalEntry            SignalType = "entry"
	SignalAdd              SignalType = "add"
	SignalExitStopLoss     SignalType = "exit_stop_loss"
	SignalExitTrailingStop SignalType = "exit_trailing_stop"
	SignalExitRiskControl  SignalType = "exit_risk_control"
	SignalExitTrendBreak   SignalType = "exit_trend_break"
	SignalExitWeakRPS      SignalType = "exit_weak_rps"
)

// IsExit reports whether the signal closes a position.
func (t SignalType) IsExit() bool {
	switch t {
	case SignalExitStopLoss, SignalExitTrailingStop, SignalExitRiskControl, SignalExitTrendBreak, SignalExitWeakRPS:
		return true
	}
	return false
}

// TradingSignal is one actionable event. Immutable once emitted; old
// signals expire from active consideration but remain queryable as
// history. Context captures the exact numeric state that triggered the
// signal so the decision is independently auditable.
type TradingSignal struct {
	ID               string             `json:"id"`
	Code             string             `json:"code"`
	Type             SignalType         `json:"type"`
	TriggerPrice     float64            `json:"trigger_price"`
	PositionFraction float64            `json:"position_fraction"` // target fraction of capital
	Confidence       float64            `json:"confidence"`        // [0,1]
	Reason           string             `json:"reason"`
	Context          map[string]any     `json:"signal_context"`
	CreatedAt        time.Time          `json:"created_at"`
	ExpiresAt        time.Time          `json:"expires_at"`
}

// Active reports whether the signal is still in its consideration window.
func (s *TradingSignal) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// PositionState is the per-symbol state machine state.
type PositionState string

const (
	PositionFlat    PositionState = "flat"
	PositionEntered PositionState = "entered"
	PositionAdded   PositionState = "added"
	PositionExited  PositionState = "exited"
)

// Position tracks one pool symbol through the signal state machine.
type Position struct {
	Code          string        `json:"code"`
	State         PositionState `json:"state"`
	Tranches      int           `json:"tranches"` // at most 3
	EntryPrice    float64       `json:"entry_price"`
	EntryDate     time.Time     `json:"entry_date"`
	HighWaterMark float64       `json:"high_water_mark"` // highest close since entry
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Open reports whether the position currently holds a tranche.
func (p *Position) Open() bool {
	return p.State == PositionEntered || p.State == PositionAdded
}

// MarketRiskState is the global regime flag derived from the benchmark
// index's trend position. It is not per-symbol.
type MarketRiskState string

const (
	RiskNormal  MarketRiskState = "normal"
	RiskWarning MarketRiskState = "warning"
	RiskDanger  MarketRiskState = "danger"
)

// MarketRiskSnapshot records the risk state with the inputs behind it.
type MarketRiskSnapshot struct {
	State           MarketRiskState `json:"state"`
	Benchmark       string          `json:"benchmark"`
	Close           float64         `json:"close"`
	LongMA          float64         `json:"long_ma"`
	DeviationPct    float64         `json:"deviation_pct"` // (close-ma)/ma
	MaxTotalExposure float64        `json:"max_total_exposure"`
	AsOf            time.Time       `json:"as_of"`
}
