package domain

import "time"

// TraderType classifies a trader's behavior profile.
type TraderType string

const (
	TraderTypeDay      TraderType = "day_trader"
	TraderTypeLongTerm TraderType = "long_term"
)

// StrategyType identifies the signal strategy a threshold table applies to.
type StrategyType string

const (
	StrategyDayTrading StrategyType = "day_trading"
	StrategyLongTerm   StrategyType = "long_term"
)

// Strategy returns the signal strategy corresponding to a trader type.
func (t TraderType) Strategy() StrategyType {
	if t == TraderTypeDay {
		return StrategyDayTrading
	}
	return StrategyLongTerm
}

// TraderForStrategy is the inverse of TraderType.Strategy.
func TraderForStrategy(s StrategyType) TraderType {
	if s == StrategyDayTrading {
		return TraderTypeDay
	}
	return TraderTypeLongTerm
}

// RawTraderMetrics is an immutable per-trader snapshot extracted from provider
// data during a refresh cycle. A new snapshot replaces the old one wholesale.
type RawTraderMetrics struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`

	// Performance (decimals, not percentages)
	WinRate          float64 `json:"win_rate"`
	ProfitLossRatio  float64 `json:"profit_loss_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	CAGR             float64 `json:"cagr"`
	AnnualizedReturn float64 `json:"annualized_return"`

	// Risk-adjusted ratios
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	CalmarRatio  float64 `json:"calmar_ratio"`
	Beta         float64 `json:"beta"`
	RiskScore    float64 `json:"risk_score"`
	Consistency  float64 `json:"consistency"`

	// Social / account
	CopiersCount int     `json:"copiers_count"`
	AUM          float64 `json:"aum"`
	TradesCount  int     `json:"trades_count"`
	WeeksActive  int     `json:"weeks_active"`

	// Portfolio / activity
	PortfolioPositions int     `json:"portfolio_positions"`
	TradeFrequency     float64 `json:"trade_frequency"`
	HoldingPeriodDays  float64 `json:"holding_period_days"`
	Diversification    float64 `json:"diversification"`
}

// ScoredTrader is a trader with its computed score and rank. Rank is dense,
// 1-based, and assigned per TraderType partition after sorting by score
// descending with username as the deterministic tie-breaker.
type ScoredTrader struct {
	Username   string           `json:"username"`
	TraderType TraderType       `json:"trader_type"`
	Score      float64          `json:"score"`
	Rank       int              `json:"rank"`
	Metrics    RawTraderMetrics `json:"metrics"`
	Positions  []Position       `json:"positions,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at,omitempty"`
}

// PositionDirection is the side of an open position.
type PositionDirection string

const (
	DirectionLong    PositionDirection = "long"
	DirectionShort   PositionDirection = "short"
	DirectionNeutral PositionDirection = "neutral"
)

// Position is one open position of a trader in one instrument. Positions are
// ephemeral: each refresh replaces a trader's positions wholesale.
type Position struct {
	TraderUsername string            `json:"trader_username"`
	Instrument     string            `json:"instrument"`
	Direction      PositionDirection `json:"direction"`
	Size           float64           `json:"size"`
	CurrentPrice   float64           `json:"current_price"`
	PnL            float64           `json:"pnl"`
}
