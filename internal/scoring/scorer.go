package scoring

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// Metric keys shared by the weight tables and the normalizer.
const (
	MetricWinRate         = "win_rate"
	MetricProfitLossRatio = "profit_loss_ratio"
	MetricMaxDrawdown     = "max_drawdown"
	MetricConsistency     = "consistency"
	MetricRiskScore       = "risk_score"
	MetricTradeFrequency  = "trade_frequency"
	MetricCAGR            = "cagr"
	MetricSharpeRatio     = "sharpe_ratio"
	MetricCopiersCount    = "copiers_count"
	MetricHoldingPeriod   = "holding_period"
	MetricDiversification = "diversification"
)

// dayTraderWeights emphasize execution quality and drawdown control.
var dayTraderWeights = map[string]float64{
	MetricWinRate:         0.25,
	MetricProfitLossRatio: 0.20,
	MetricMaxDrawdown:     0.20,
	MetricConsistency:     0.15,
	MetricRiskScore:       0.10,
	MetricTradeFrequency:  0.10,
}

// longTermWeights emphasize compounding and risk-adjusted returns.
var longTermWeights = map[string]float64{
	MetricCAGR:            0.25,
	MetricSharpeRatio:     0.20,
	MetricMaxDrawdown:     0.15,
	MetricConsistency:     0.15,
	MetricCopiersCount:    0.10,
	MetricHoldingPeriod:   0.10,
	MetricDiversification: 0.05,
}

// Scorer computes composite trader scores on [0,1].
type Scorer struct {
	tracer trace.Tracer
}

func NewScorer(tracer trace.Tracer) *Scorer {
	return &Scorer{tracer: tracer}
}

// metricValue extracts the raw value for one weight-table key.
func metricValue(m domain.RawTraderMetrics, metric string) float64 {
	switch metric {
	case MetricWinRate:
		return m.WinRate
	case MetricProfitLossRatio:
		return m.ProfitLossRatio
	case MetricMaxDrawdown:
		return m.MaxDrawdown
	case MetricConsistency:
		return m.Consistency
	case MetricRiskScore:
		return m.RiskScore
	case MetricTradeFrequency:
		return m.TradeFrequency
	case MetricCAGR:
		return m.CAGR
	case MetricSharpeRatio:
		return m.SharpeRatio
	case MetricCopiersCount:
		return float64(m.CopiersCount)
	case MetricHoldingPeriod:
		return m.HoldingPeriodDays
	case MetricDiversification:
		return m.Diversification
	}
	return 0
}

// normalizeScalar maps one raw metric value onto [0,1] without reference to
// the rest of the cohort, so a trader's score is stable as the cohort changes.
// Lower-is-better metrics come out already inverted.
func normalizeScalar(metric string, v float64) float64 {
	switch metric {
	case MetricWinRate, MetricConsistency, MetricDiversification:
		return clamp01(v)
	case MetricProfitLossRatio:
		return clamp01(v / 5.0)
	case MetricMaxDrawdown:
		return clamp01(1.0 - v)
	case MetricRiskScore:
		return clamp01(1.0 - v/10.0)
	case MetricTradeFrequency:
		return clamp01(v / 10.0)
	case MetricCAGR:
		return clamp01((v + 0.5) / 2.5)
	case MetricSharpeRatio:
		return clamp01((v + 2.0) / 7.0)
	case MetricCopiersCount:
		return clamp01(v / 10000.0)
	case MetricHoldingPeriod:
		return clamp01(v / 365.0)
	}
	return clamp01(v)
}

// Score computes the weighted composite for one trader. The weight table is
// selected by trader type and the result lives on [0,1].
func (s *Scorer) Score(m domain.RawTraderMetrics, traderType domain.TraderType) float64 {
	weights := longTermWeights
	if traderType == domain.TraderTypeDay {
		weights = dayTraderWeights
	}

	var total float64
	for metric, w := range weights {
		total += w * normalizeScalar(metric, metricValue(m, metric))
	}
	return clamp01(total)
}

// ScoreAll classifies, scores, and ranks a cohort. Ranks are dense, 1-based,
// and assigned independently within each trader type partition; ties in score
// break by username so repeated runs produce identical orderings.
func (s *Scorer) ScoreAll(ctx context.Context, metrics []domain.RawTraderMetrics) []domain.ScoredTrader {
	_, span := s.tracer.Start(ctx, "scoring.ScoreAll")
	defer span.End()

	scored := make([]domain.ScoredTrader, 0, len(metrics))
	for _, m := range metrics {
		if m.Username == "" {
			log.Printf("scoring: skipping metrics record with empty username")
			continue
		}
		tt := Classify(m)
		scored = append(scored, domain.ScoredTrader{
			Username:   m.Username,
			TraderType: tt,
			Score:      s.Score(m, tt),
			Metrics:    m,
			UpdatedAt:  time.Now().UTC(),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Username < scored[j].Username
	})

	assignRanks(scored, domain.TraderTypeDay)
	assignRanks(scored, domain.TraderTypeLongTerm)
	return scored
}

// assignRanks walks the sorted slice and dense-ranks one type partition.
func assignRanks(scored []domain.ScoredTrader, tt domain.TraderType) {
	rank := 0
	prev := math.Inf(1)
	for i := range scored {
		if scored[i].TraderType != tt {
			continue
		}
		if scored[i].Score != prev {
			rank++
			prev = scored[i].Score
		}
		scored[i].Rank = rank
	}
}
