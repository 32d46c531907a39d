package domain

import "time"

// RiskTolerance is the user-level risk tier.
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

// RiskSettings holds the per-tier risk coefficients. The table is immutable
// configuration data so a new tier needs no logic change.
type RiskSettings struct {
	MaxRiskPerTrade  float64
	MaxPortfolioRisk float64
	StopMultiplier   float64
	ProfitMultiplier float64
}

var riskProfiles = map[RiskTolerance]RiskSettings{
	RiskConservative: {MaxRiskPerTrade: 0.01, MaxPortfolioRisk: 0.05, StopMultiplier: 1.0, ProfitMultiplier: 1.5},
	RiskModerate:     {MaxRiskPerTrade: 0.02, MaxPortfolioRisk: 0.10, StopMultiplier: 1.5, ProfitMultiplier: 2.0},
	RiskAggressive:   {MaxRiskPerTrade: 0.05, MaxPortfolioRisk: 0.20, StopMultiplier: 2.0, ProfitMultiplier: 2.5},
}

// Settings returns the risk coefficients for the tier, defaulting to moderate
// for unknown values.
func (r RiskTolerance) Settings() RiskSettings {
	if s, ok := riskProfiles[r]; ok {
		return s
	}
	return riskProfiles[RiskModerate]
}

// UserProfile is the capital ledger read by the position sizer. Capital
// debits/credits happen at the repository layer, never inside the pipeline.
type UserProfile struct {
	UserID           int64         `json:"user_id"`
	TotalCapital     float64       `json:"total_capital"`
	AvailableCapital float64       `json:"available_capital"`
	InvestedCapital  float64       `json:"invested_capital"`
	Currency         string        `json:"currency"`
	RiskTolerance    RiskTolerance `json:"risk_tolerance"`
	MaxRiskPerTrade  float64       `json:"max_risk_per_trade"`
	MaxPortfolioRisk float64       `json:"max_portfolio_risk"`
	CreatedAt        time.Time     `json:"created_at,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at,omitempty"`
}

// UserPosition is one open holding in the user's paper portfolio.
type UserPosition struct {
	ID           int64     `json:"id,omitempty"`
	UserID       int64     `json:"user_id"`
	Symbol       string    `json:"symbol"`
	Shares       int       `json:"shares"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	Status       string    `json:"status"`
	OpenedAt     time.Time `json:"opened_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CurrentValue is the mark-to-market value of the position.
func (p UserPosition) CurrentValue() float64 {
	return float64(p.Shares) * p.CurrentPrice
}

// PnL is the unrealized profit or loss.
func (p UserPosition) PnL() float64 {
	return float64(p.Shares) * (p.CurrentPrice - p.EntryPrice)
}

// PnLPercentage is PnL relative to cost basis.
func (p UserPosition) PnLPercentage() float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
}

// SizingLevels are the stop-loss/take-profit levels around an entry price.
type SizingLevels struct {
	StopLoss        float64  `json:"stop_loss"`
	TakeProfit      float64  `json:"take_profit"`
	StopLossPct     float64  `json:"stop_loss_pct"`
	TakeProfitPct   float64  `json:"take_profit_pct"`
	RiskRewardRatio float64  `json:"risk_reward_ratio"`
	VolatilityUsed  float64  `json:"volatility_used"`
	SupportLevel    *float64 `json:"support_level"`
	ResistanceLevel *float64 `json:"resistance_level"`
}

// PositionSizingResult is the capital- and risk-bounded trade size.
// When CanInvest is true, InvestmentAmount <= available capital and
// PortfolioPercentage <= max portfolio risk * 100 always hold.
type PositionSizingResult struct {
	RecommendedShares    int          `json:"recommended_shares"`
	InvestmentAmount     float64      `json:"investment_amount"`
	MaxRiskAmount        float64      `json:"max_risk_amount"`
	PortfolioPercentage  float64      `json:"portfolio_percentage"`
	RiskPerTradePct      float64      `json:"risk_per_trade_pct"`
	ConfidenceMultiplier float64      `json:"confidence_multiplier"`
	CanInvest            bool         `json:"can_invest"`
	Reason               string       `json:"reason,omitempty"`
	Levels               SizingLevels `json:"levels"`
}

// CompanyInfo is descriptive instrument metadata from the market-data provider.
type CompanyInfo struct {
	Name      string   `json:"name"`
	Sector    string   `json:"sector"`
	Industry  string   `json:"industry"`
	MarketCap *float64 `json:"market_cap"`
	PERatio   *float64 `json:"pe_ratio"`
	Beta      *float64 `json:"beta"`
	Currency  string   `json:"currency"`
}

// MarketData bundles the market context for one instrument. Every field other
// than Symbol may be absent; absence is data, not an error.
type MarketData struct {
	Symbol          string      `json:"symbol"`
	CurrentPrice    *float64    `json:"current_price"`
	Volatility      *float64    `json:"volatility"`
	SupportLevel    *float64    `json:"support_level"`
	ResistanceLevel *float64    `json:"resistance_level"`
	Volume          *int64      `json:"volume"`
	PriceChangePct  *float64    `json:"price_change_pct"`
	CompanyInfo     CompanyInfo `json:"company_info"`
	Timestamp       time.Time   `json:"timestamp"`
}

// TraderAnalysis is the consensus detail attached to a recommendation.
type TraderAnalysis struct {
	TotalTradersAnalyzed int                `json:"total_traders_analyzed"`
	ConsensusPercentage  float64            `json:"consensus_percentage"`
	AverageTraderScore   float64            `json:"average_trader_score"`
	PrimaryStrategy      StrategyType       `json:"primary_strategy"`
	SupportingTraders    []SupportingTrader `json:"supporting_traders"`
	Long                 SideBreakdown      `json:"long"`
	Short                SideBreakdown      `json:"short"`
}

// Recommendation is the single structured object returned per request,
// combining signal, sizing, and market context.
type Recommendation struct {
	SignalID        string               `json:"signal_id"`
	Symbol          string               `json:"symbol"`
	CompanyName     string               `json:"company_name"`
	Action          SignalAction         `json:"action"`
	CurrentPrice    float64              `json:"current_price"`
	Confidence      float64              `json:"confidence"`
	StrategyType    StrategyType         `json:"strategy_type"`
	PositionDetails PositionSizingResult `json:"position_details"`
	TraderAnalysis  TraderAnalysis       `json:"trader_analysis"`
	MarketContext   MarketData           `json:"market_context"`
	Reasoning       string               `json:"reasoning"`
	Timestamp       time.Time            `json:"timestamp"`
}

// MarketOverview summarizes current signal opportunities.
type MarketOverview struct {
	TotalSignals      int              `json:"total_signals"`
	BuySignals        int              `json:"buy_signals"`
	SellSignals       int              `json:"sell_signals"`
	AverageConfidence float64          `json:"average_confidence"`
	MarketSentiment   string           `json:"market_sentiment"`
	TopOpportunities  []Recommendation `json:"top_opportunities"`
	Timestamp         time.Time        `json:"timestamp"`
}
