// Package signal turns per-instrument consensus into actionable trading
// signals gated by strategy-specific consensus thresholds.
package signal

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// Confidence component weights. Data quality has no live measurement yet, so
// it contributes a fixed 0.7 placeholder.
const (
	weightStrength    = 0.4
	weightTraderScore = 0.3
	weightPositions   = 0.2
	weightDataQuality = 0.1
	dataQualityFixed  = 0.7
)

// Threshold gates one strategy: the minimum consensus strength and the
// minimum number of supporting traders required to act.
type Threshold struct {
	MinConsensus float64
	MinTraders   int
	Multiplier   float64
}

// Day-trading consensus is noisier, so it gets a small multiplier boost but a
// lower bar; long-term signals demand broader, stronger agreement.
var thresholds = map[domain.StrategyType]Threshold{
	domain.StrategyDayTrading: {MinConsensus: 0.60, MinTraders: 3, Multiplier: 1.2},
	domain.StrategyLongTerm:   {MinConsensus: 0.70, MinTraders: 4, Multiplier: 1.0},
}

// ThresholdFor returns the gate for a strategy, defaulting to long-term.
func ThresholdFor(s domain.StrategyType) Threshold {
	if th, ok := thresholds[s]; ok {
		return th
	}
	return thresholds[domain.StrategyLongTerm]
}

// Generator evaluates consensus results into signals.
type Generator struct {
	tracer trace.Tracer
	now    func() time.Time
}

func NewGenerator(tracer trace.Tracer) *Generator {
	return &Generator{tracer: tracer, now: time.Now}
}

// Confidence scores a consensus on [0,1]. The base blends consensus strength,
// mean supporter score, and mean position size, then the strategy multiplier
// is applied and thin support (fewer traders than the strategy minimum)
// attenuates the result proportionally.
func Confidence(c domain.ConsensusResult, strategy domain.StrategyType) float64 {
	if c.TraderCount == 0 || c.TotalWeight == 0 {
		return 0
	}
	th := ThresholdFor(strategy)

	var scoreSum, sizeSum float64
	for _, st := range c.SupportingTraders {
		scoreSum += st.Score
		sizeSum += st.PositionSize
	}
	n := float64(len(c.SupportingTraders))
	meanScore := scoreSum / n
	meanSize := math.Min(sizeSum/n/10.0, 1.0)

	conf := weightStrength*math.Abs(c.Consensus) +
		weightTraderScore*meanScore +
		weightPositions*meanSize +
		weightDataQuality*dataQualityFixed

	conf *= th.Multiplier
	if c.TraderCount < th.MinTraders {
		conf *= float64(c.TraderCount) / float64(th.MinTraders)
	}

	return math.Max(0, math.Min(1, conf))
}

// Evaluate converts one consensus into a signal. Weak agreement, thin
// support, or a neutral direction produces HOLD; callers persist BUY and
// SELL only. Confidence annotates the signal but never gates it.
func (g *Generator) Evaluate(ctx context.Context, c domain.ConsensusResult, strategy domain.StrategyType) domain.Signal {
	_, span := g.tracer.Start(ctx, "signal.Evaluate")
	defer span.End()

	conf := Confidence(c, strategy)
	th := ThresholdFor(strategy)

	action := domain.ActionHold
	if math.Abs(c.Consensus) >= th.MinConsensus && c.TraderCount >= th.MinTraders {
		switch c.Direction {
		case domain.DirectionLong:
			action = domain.ActionBuy
		case domain.DirectionShort:
			action = domain.ActionSell
		}
	}

	sig := domain.Signal{
		Instrument:        c.Instrument,
		Action:            action,
		StrategyType:      strategy,
		Confidence:        conf,
		ConsensusStrength: math.Abs(c.Consensus),
		SupportingTraders: c.SupportingTraders,
		CreatedAt:         g.now().UTC(),
		IsActive:          action != domain.ActionHold,
	}
	sig.Reasoning = Reasoning(sig, c)
	return sig
}
