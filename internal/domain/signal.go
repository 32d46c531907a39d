package domain

import "time"

// SignalAction is the discrete decision attached to a signal.
type SignalAction string

const (
	ActionBuy  SignalAction = "BUY"
	ActionSell SignalAction = "SELL"
	ActionHold SignalAction = "HOLD"
)

// SupportingTrader records one trader's contribution to a consensus.
type SupportingTrader struct {
	Username     string            `json:"username"`
	Direction    PositionDirection `json:"direction"`
	Weight       float64           `json:"weight"`
	Score        float64           `json:"score"`
	PositionSize float64           `json:"position_size"`
	StrategyType StrategyType      `json:"strategy_type,omitempty"`
}

// ConsensusResult is the weighted directional vote over one instrument.
// Invariant: Consensus == (LongWeight-ShortWeight)/TotalWeight and
// |Consensus| <= 1 by construction. TotalWeight == 0 means no votes.
type ConsensusResult struct {
	Instrument        string             `json:"instrument"`
	Consensus         float64            `json:"consensus"`
	Direction         PositionDirection  `json:"direction"`
	TraderCount       int                `json:"trader_count"`
	LongWeight        float64            `json:"long_weight"`
	ShortWeight       float64            `json:"short_weight"`
	TotalWeight       float64            `json:"total_weight"`
	SupportingTraders []SupportingTrader `json:"supporting_traders"`
}

// SideBreakdown summarizes one side of a consensus split.
type SideBreakdown struct {
	Percentage  float64            `json:"percentage"`
	TotalWeight float64            `json:"total_weight"`
	Traders     []SupportingTrader `json:"traders"`
}

// ConsensusBreakdown is the richer per-instrument analysis used by the
// enhanced recommendation flow. Sign/strength semantics match ConsensusResult.
type ConsensusBreakdown struct {
	Instrument          string             `json:"instrument"`
	TotalTraders        int                `json:"total_traders"`
	ConsensusDirection  PositionDirection  `json:"consensus_direction"`
	ConsensusPercentage float64            `json:"consensus_percentage"`
	Confidence          float64            `json:"confidence"`
	AverageScore        float64            `json:"average_score"`
	PrimaryStrategy     StrategyType       `json:"primary_strategy"`
	SupportingTraders   []SupportingTrader `json:"supporting_traders"`
	Long                SideBreakdown      `json:"long"`
	Short               SideBreakdown      `json:"short"`
}

// Signal is a directional trading signal derived from trader consensus.
// HOLD signals are produced but never persisted.
type Signal struct {
	ID                int64              `json:"id,omitempty"`
	Instrument        string             `json:"instrument"`
	Action            SignalAction       `json:"action"`
	StrategyType      StrategyType       `json:"strategy_type"`
	Confidence        float64            `json:"confidence"`
	ConsensusStrength float64            `json:"consensus_strength"`
	SupportingTraders []SupportingTrader `json:"supporting_traders"`
	Reasoning         string             `json:"reasoning"`
	CreatedAt         time.Time          `json:"created_at,omitempty"`
	IsActive          bool               `json:"is_active"`
}
