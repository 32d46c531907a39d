// Package consensus derives per-instrument directional agreement from the
// open positions of scored traders.
package consensus

import (
	"context"
	"math"
	"sort"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// neutralBand is the |consensus| below which no direction is called.
const neutralBand = 0.1

// minTraderWeight keeps weak traders from being erased entirely; even a
// zero-score trader still carries a small vote.
const minTraderWeight = 0.1

// Aggregator computes weighted directional consensus per instrument.
type Aggregator struct {
	tracer trace.Tracer
}

func NewAggregator(tracer trace.Tracer) *Aggregator {
	return &Aggregator{tracer: tracer}
}

// traderWeight is the vote weight of one position: the trader's score floored
// at minTraderWeight, scaled by position size with full weight at 10% of the
// portfolio and above.
func traderWeight(score, size float64) float64 {
	return math.Max(score, minTraderWeight) * math.Min(size/100.0, 1.0)
}

// Aggregate folds all open positions of the cohort into one ConsensusResult
// per instrument. Neutral positions never vote. Results are sorted by
// instrument for deterministic output.
func (a *Aggregator) Aggregate(ctx context.Context, traders []domain.ScoredTrader) []domain.ConsensusResult {
	_, span := a.tracer.Start(ctx, "consensus.Aggregate")
	defer span.End()

	byInstrument := map[string]*domain.ConsensusResult{}
	for _, t := range traders {
		for _, p := range t.Positions {
			if p.Instrument == "" || p.Direction == domain.DirectionNeutral {
				continue
			}
			r, ok := byInstrument[p.Instrument]
			if !ok {
				r = &domain.ConsensusResult{Instrument: p.Instrument}
				byInstrument[p.Instrument] = r
			}

			w := traderWeight(t.Score, p.Size)
			switch p.Direction {
			case domain.DirectionLong:
				r.LongWeight += w
			case domain.DirectionShort:
				r.ShortWeight += w
			}
			r.TraderCount++
			r.SupportingTraders = append(r.SupportingTraders, domain.SupportingTrader{
				Username:     t.Username,
				Direction:    p.Direction,
				Weight:       w,
				Score:        t.Score,
				PositionSize: p.Size,
				StrategyType: t.TraderType.Strategy(),
			})
		}
	}

	results := make([]domain.ConsensusResult, 0, len(byInstrument))
	for _, r := range byInstrument {
		r.TotalWeight = r.LongWeight + r.ShortWeight
		if r.TotalWeight > 0 {
			r.Consensus = (r.LongWeight - r.ShortWeight) / r.TotalWeight
		}
		r.Direction = directionFor(r.Consensus, r.TotalWeight)
		sort.Slice(r.SupportingTraders, func(i, j int) bool {
			if r.SupportingTraders[i].Weight != r.SupportingTraders[j].Weight {
				return r.SupportingTraders[i].Weight > r.SupportingTraders[j].Weight
			}
			return r.SupportingTraders[i].Username < r.SupportingTraders[j].Username
		})
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Instrument < results[j].Instrument })
	return results
}

func directionFor(consensus, totalWeight float64) domain.PositionDirection {
	if totalWeight == 0 || math.Abs(consensus) < neutralBand {
		return domain.DirectionNeutral
	}
	if consensus > 0 {
		return domain.DirectionLong
	}
	return domain.DirectionShort
}
