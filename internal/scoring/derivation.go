package scoring

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// TradeRecord is one closed trade from a trader's history.
type TradeRecord struct {
	Instrument string
	Direction  domain.PositionDirection
	OpenedAt   time.Time
	ClosedAt   time.Time
	ProfitPct  float64
}

// EquityPoint is one sample of a trader's equity curve.
type EquityPoint struct {
	Date  time.Time
	Value float64
}

// TraderSnapshot is the raw provider payload a derivation turns into scoring
// metrics. Percentage fields (WinRatio, drawdowns, AnnualizedReturn) are on a
// 0..100 scale as delivered by the provider.
type TraderSnapshot struct {
	Username         string
	DisplayName      string
	WinRatio         float64
	DailyDrawdown    float64
	WeeklyDrawdown   float64
	AnnualizedReturn float64
	SharpeRatio      float64
	SortinoRatio     float64
	CalmarRatio      float64
	Beta             float64
	CopiersCount     int
	AUMDisplay       string
	TradesCount      int
	WeeksActive      int
	Positions        []domain.Position

	// Optional history, consumed by HistoricalDerivation only.
	Trades []TradeRecord
	Equity []EquityPoint
}

// Derivation turns a provider snapshot into the metric set the scorer reads.
type Derivation interface {
	Derive(snap TraderSnapshot) domain.RawTraderMetrics
}

// ProxyDerivation estimates metrics from the summary statistics alone. It is
// the default because summary endpoints are cheap and always available.
type ProxyDerivation struct{}

func (ProxyDerivation) Derive(snap TraderSnapshot) domain.RawTraderMetrics {
	m := baseMetrics(snap)

	winRate := snap.WinRatio / 100.0
	m.WinRate = winRate

	// With only a win ratio available, assume a typical 1.25 reward/risk
	// profile for active accounts and breakeven otherwise.
	if winRate > 0 && winRate < 1 {
		m.ProfitLossRatio = 1.0 / 0.8
	} else {
		m.ProfitLossRatio = 1.0
	}

	m.MaxDrawdown = math.Max(math.Abs(snap.DailyDrawdown), math.Abs(snap.WeeklyDrawdown)) / 100.0
	m.CAGR = snap.AnnualizedReturn / 100.0
	m.AnnualizedReturn = m.CAGR
	m.Consistency = clamp01((snap.SharpeRatio + snap.SortinoRatio) / 4.0)

	if snap.CalmarRatio > 0 {
		m.RiskScore = math.Max(1.0, 10.0-2.0*snap.CalmarRatio)
	} else {
		m.RiskScore = 8.0
	}

	m.TradeFrequency = float64(snap.TradesCount) / math.Max(float64(snap.WeeksActive), 1)
	if m.TradeFrequency > 0 {
		m.HoldingPeriodDays = math.Min(365, 52.0/m.TradeFrequency)
	} else {
		m.HoldingPeriodDays = 365
	}

	return m
}

// HistoricalDerivation recomputes performance metrics from trade and equity
// history and is preferred when the history endpoints are enabled. Metrics
// with no historical basis (copiers, AUM, risk score) keep proxy estimates.
type HistoricalDerivation struct{}

const riskFreeRate = 0.02

func (HistoricalDerivation) Derive(snap TraderSnapshot) domain.RawTraderMetrics {
	m := ProxyDerivation{}.Derive(snap)

	if len(snap.Trades) > 0 {
		m.WinRate = winRateFromTrades(snap.Trades)
		m.ProfitLossRatio = profitLossFromTrades(snap.Trades)
		m.Consistency = consistencyFromTrades(snap.Trades)
		if h := meanHoldingDays(snap.Trades); h > 0 {
			m.HoldingPeriodDays = math.Min(365, h)
		}
		m.TradesCount = len(snap.Trades)
	}

	if len(snap.Equity) >= 2 {
		if cagr, ok := cagrFromEquity(snap.Equity); ok {
			m.CAGR = cagr
			m.AnnualizedReturn = cagr
		}
		if sharpe, ok := sharpeFromEquity(snap.Equity); ok {
			m.SharpeRatio = sharpe
		}
	}

	return m
}

func baseMetrics(snap TraderSnapshot) domain.RawTraderMetrics {
	return domain.RawTraderMetrics{
		Username:           snap.Username,
		DisplayName:        snap.DisplayName,
		SharpeRatio:        snap.SharpeRatio,
		SortinoRatio:       snap.SortinoRatio,
		CalmarRatio:        snap.CalmarRatio,
		Beta:               snap.Beta,
		CopiersCount:       snap.CopiersCount,
		AUM:                ParseAUM(snap.AUMDisplay),
		TradesCount:        snap.TradesCount,
		WeeksActive:        snap.WeeksActive,
		PortfolioPositions: len(snap.Positions),
		Diversification:    clamp01(float64(len(snap.Positions)) / 10.0),
	}
}

func winRateFromTrades(trades []TradeRecord) float64 {
	wins := 0
	for _, t := range trades {
		if t.ProfitPct > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

// profitLossFromTrades is the ratio of the average winning trade to the
// average losing trade. All-win or all-loss histories fall back to 1.0.
func profitLossFromTrades(trades []TradeRecord) float64 {
	var winSum, lossSum float64
	var winN, lossN int
	for _, t := range trades {
		if t.ProfitPct > 0 {
			winSum += t.ProfitPct
			winN++
		} else if t.ProfitPct < 0 {
			lossSum += math.Abs(t.ProfitPct)
			lossN++
		}
	}
	if winN == 0 || lossN == 0 || lossSum == 0 {
		return 1.0
	}
	return (winSum / float64(winN)) / (lossSum / float64(lossN))
}

// consistencyFromTrades shrinks toward 0 as per-trade outcomes get noisier.
func consistencyFromTrades(trades []TradeRecord) float64 {
	returns := make([]float64, len(trades))
	for i, t := range trades {
		returns[i] = t.ProfitPct
	}
	return clamp01(1.0 / (1.0 + stddev(returns)))
}

func meanHoldingDays(trades []TradeRecord) float64 {
	var sum float64
	var n int
	for _, t := range trades {
		if t.ClosedAt.After(t.OpenedAt) {
			sum += t.ClosedAt.Sub(t.OpenedAt).Hours() / 24.0
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func cagrFromEquity(equity []EquityPoint) (float64, bool) {
	first, last := equity[0], equity[len(equity)-1]
	years := last.Date.Sub(first.Date).Hours() / 24.0 / 365.25
	if years <= 0 || first.Value <= 0 || last.Value <= 0 {
		return 0, false
	}
	return math.Pow(last.Value/first.Value, 1.0/years) - 1.0, true
}

// sharpeFromEquity annualizes point-to-point returns assuming the curve is
// sampled monthly, which is the granularity the provider exposes.
func sharpeFromEquity(equity []EquityPoint) (float64, bool) {
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1].Value <= 0 {
			return 0, false
		}
		returns = append(returns, equity[i].Value/equity[i-1].Value-1.0)
	}
	sd := stddev(returns)
	if sd == 0 {
		return 0, false
	}
	annReturn := mean(returns) * 12.0
	annVol := sd * math.Sqrt(12.0)
	return (annReturn - riskFreeRate) / annVol, true
}

// ParseAUM converts a provider display string such as "5M+", "1.2M" or "850K"
// into a dollar amount. Unparseable input maps to zero.
func ParseAUM(display string) float64 {
	s := strings.TrimSpace(strings.ToUpper(display))
	s = strings.TrimSuffix(s, "+")
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0
	}

	mult := 1.0
	switch {
	case strings.HasSuffix(s, "M"):
		mult = 1e6
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "K"):
		mult = 1e3
		s = strings.TrimSuffix(s, "K")
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v * mult
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}
