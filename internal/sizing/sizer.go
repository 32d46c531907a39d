// Package sizing computes capital- and risk-bounded position sizes around
// stop-loss/take-profit levels.
package sizing

import (
	"context"
	"math"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

const (
	defaultVolatility = 0.02

	// Stop distance caps keep a volatile instrument from blowing past the
	// strategy's horizon.
	maxStopPctDay  = 0.03
	maxStopPctLong = 0.08
)

// Sizer derives trade levels and position sizes from market context and the
// user's capital ledger.
type Sizer struct {
	tracer trace.Tracer
}

func NewSizer(tracer trace.Tracer) *Sizer {
	return &Sizer{tracer: tracer}
}

// Levels computes stop-loss and take-profit prices around an entry. Missing
// volatility falls back to 2%. Technical levels, when present, pull the stop
// just below support and the target just below resistance.
func (s *Sizer) Levels(entryPrice float64, strategy domain.StrategyType, settings domain.RiskSettings, md *domain.MarketData) domain.SizingLevels {
	volatility := defaultVolatility
	var support, resistance *float64
	if md != nil {
		if md.Volatility != nil && *md.Volatility > 0 {
			volatility = *md.Volatility
		}
		support = md.SupportLevel
		resistance = md.ResistanceLevel
	}

	maxStop := maxStopPctLong
	if strategy == domain.StrategyDayTrading {
		maxStop = maxStopPctDay
	}

	stopPct := math.Min(volatility*settings.StopMultiplier, maxStop)
	profitPct := stopPct * settings.ProfitMultiplier

	stopLoss := entryPrice * (1 - stopPct)
	takeProfit := entryPrice * (1 + profitPct)

	if support != nil && *support > 0 && stopLoss < *support {
		stopLoss = *support * 0.99
	}
	if resistance != nil && *resistance > 0 && takeProfit > *resistance {
		takeProfit = *resistance * 0.99
	}

	return domain.SizingLevels{
		StopLoss:        round2(stopLoss),
		TakeProfit:      round2(takeProfit),
		StopLossPct:     round2((entryPrice - stopLoss) / entryPrice * 100),
		TakeProfitPct:   round2((takeProfit - entryPrice) / entryPrice * 100),
		RiskRewardRatio: round2((takeProfit - entryPrice) / (entryPrice - stopLoss)),
		VolatilityUsed:  round2(volatility * 100),
		SupportLevel:    support,
		ResistanceLevel: resistance,
	}
}

// FallbackLevels are the conservative defaults used when market data is
// unavailable: -5% stop, +10% target.
func (s *Sizer) FallbackLevels(entryPrice float64) domain.SizingLevels {
	return domain.SizingLevels{
		StopLoss:        round2(entryPrice * 0.95),
		TakeProfit:      round2(entryPrice * 1.10),
		StopLossPct:     5.0,
		TakeProfitPct:   10.0,
		RiskRewardRatio: 2.0,
		VolatilityUsed:  defaultVolatility * 100,
	}
}

// Size computes how many shares the user can take on. Risk is budgeted from
// available capital, scaled by signal confidence, then capped by available
// capital and by the portfolio risk ceiling, in that order. Whole shares
// only: a result under one share cannot be invested.
func (s *Sizer) Size(ctx context.Context, profile domain.UserProfile, entryPrice, confidence float64, levels domain.SizingLevels) domain.PositionSizingResult {
	_, span := s.tracer.Start(ctx, "sizing.Size")
	defer span.End()

	settings := profile.RiskTolerance.Settings()
	if profile.MaxRiskPerTrade > 0 {
		settings.MaxRiskPerTrade = profile.MaxRiskPerTrade
	}
	if profile.MaxPortfolioRisk > 0 {
		settings.MaxPortfolioRisk = profile.MaxPortfolioRisk
	}

	available := profile.AvailableCapital
	if available <= 0 || entryPrice <= 0 {
		return rejected("Insufficient capital or too high risk per share", levels)
	}

	confidenceMultiplier := 0.5 + confidence*0.5
	adjustedRisk := settings.MaxRiskPerTrade * confidenceMultiplier
	maxRiskAmount := available * adjustedRisk

	riskPerShare := math.Abs(entryPrice - levels.StopLoss)
	if riskPerShare <= 0 {
		return rejected("Insufficient capital or too high risk per share", levels)
	}

	shares := int(maxRiskAmount / riskPerShare)
	investment := float64(shares) * entryPrice

	if investment > available {
		shares = int(available / entryPrice)
		investment = float64(shares) * entryPrice
		maxRiskAmount = float64(shares) * riskPerShare
	}

	portfolioPct := investment / available * 100
	if portfolioPct > settings.MaxPortfolioRisk*100 {
		shares = int(available * settings.MaxPortfolioRisk / entryPrice)
		investment = float64(shares) * entryPrice
		portfolioPct = investment / available * 100
		maxRiskAmount = float64(shares) * riskPerShare
	}

	if shares < 1 {
		return rejected("Insufficient capital or too high risk per share", levels)
	}

	return domain.PositionSizingResult{
		RecommendedShares:    shares,
		InvestmentAmount:     round2(investment),
		MaxRiskAmount:        round2(maxRiskAmount),
		PortfolioPercentage:  round2(portfolioPct),
		RiskPerTradePct:      round2(adjustedRisk * 100),
		ConfidenceMultiplier: round2(confidenceMultiplier),
		CanInvest:            true,
		Levels:               levels,
	}
}

func rejected(reason string, levels domain.SizingLevels) domain.PositionSizingResult {
	return domain.PositionSizingResult{
		CanInvest: false,
		Reason:    reason,
		Levels:    levels,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
