package scoring

import (
	"context"
	"log"

	"github.com/narumiruna/go-iforest/pkg/iforest"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// anomalyMinCohort is the smallest cohort an isolation forest gives usable
// scores for. Below it the screen passes everyone through.
const anomalyMinCohort = 8

// AnomalyScreen flags traders whose metric vectors look fabricated or broken
// (scraper glitches, gamed accounts) before they reach the scorer.
type AnomalyScreen struct {
	tracer    trace.Tracer
	threshold float64
}

func NewAnomalyScreen(tracer trace.Tracer, threshold float64) *AnomalyScreen {
	if threshold <= 0 {
		threshold = 0.7
	}
	return &AnomalyScreen{tracer: tracer, threshold: threshold}
}

// Screen partitions the cohort into clean and anomalous metric records.
// Anomalous records are reported, not scored.
func (a *AnomalyScreen) Screen(ctx context.Context, metrics []domain.RawTraderMetrics) (clean, anomalous []domain.RawTraderMetrics) {
	_, span := a.tracer.Start(ctx, "scoring.AnomalyScreen")
	defer span.End()

	if len(metrics) < anomalyMinCohort {
		return metrics, nil
	}

	samples := make([][]float64, len(metrics))
	for i, m := range metrics {
		samples[i] = featureVector(m)
	}

	forest := iforest.New()
	forest.Fit(samples)
	scores := forest.Score(samples)

	for i, m := range metrics {
		if scores[i] >= a.threshold {
			log.Printf("scoring: anomalous metrics for %s (score %.3f)", m.Username, scores[i])
			anomalous = append(anomalous, m)
			continue
		}
		clean = append(clean, m)
	}
	return clean, anomalous
}

// featureVector projects a metric record onto the normalized space used by the
// scorer so no single raw scale dominates the isolation trees.
func featureVector(m domain.RawTraderMetrics) []float64 {
	return []float64{
		normalizeScalar(MetricWinRate, m.WinRate),
		normalizeScalar(MetricProfitLossRatio, m.ProfitLossRatio),
		normalizeScalar(MetricMaxDrawdown, m.MaxDrawdown),
		normalizeScalar(MetricConsistency, m.Consistency),
		normalizeScalar(MetricRiskScore, m.RiskScore),
		normalizeScalar(MetricTradeFrequency, m.TradeFrequency),
		normalizeScalar(MetricCAGR, m.CAGR),
		normalizeScalar(MetricSharpeRatio, m.SharpeRatio),
		normalizeScalar(MetricCopiersCount, float64(m.CopiersCount)),
		normalizeScalar(MetricHoldingPeriod, m.HoldingPeriodDays),
		normalizeScalar(MetricDiversification, m.Diversification),
	}
}
