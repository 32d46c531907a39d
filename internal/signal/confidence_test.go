package signal

import (
	"context"
	"math"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

func testGenerator() *Generator {
	return NewGenerator(trace.NewNoopTracerProvider().Tracer("test"))
}

func strongConsensus(instrument string, dir domain.PositionDirection, traders int) domain.ConsensusResult {
	supporters := make([]domain.SupportingTrader, traders)
	for i := range supporters {
		supporters[i] = domain.SupportingTrader{
			Username:     string(rune('a' + i)),
			Direction:    dir,
			Weight:       0.8,
			Score:        0.8,
			PositionSize: 10,
		}
	}
	c := domain.ConsensusResult{
		Instrument:        instrument,
		Direction:         dir,
		TraderCount:       traders,
		TotalWeight:       float64(traders) * 0.8,
		SupportingTraders: supporters,
	}
	if dir == domain.DirectionLong {
		c.Consensus = 1
		c.LongWeight = c.TotalWeight
	} else {
		c.Consensus = -1
		c.ShortWeight = c.TotalWeight
	}
	return c
}

func TestConfidenceComponents(t *testing.T) {
	c := strongConsensus("AAPL", domain.DirectionLong, 4)
	got := Confidence(c, domain.StrategyLongTerm)

	// 0.4*1.0 + 0.3*0.8 + 0.2*1.0 + 0.1*0.7 = 0.91, multiplier 1.0
	if math.Abs(got-0.91) > 1e-9 {
		t.Fatalf("expected confidence 0.91, got %.4f", got)
	}
}

func TestConfidenceDayMultiplierAndClamp(t *testing.T) {
	c := strongConsensus("AAPL", domain.DirectionLong, 3)
	got := Confidence(c, domain.StrategyDayTrading)

	// Base 0.91 * 1.2 = 1.092, clamped to 1.
	if got != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %.4f", got)
	}
}

func TestConfidenceThinSupportPenalty(t *testing.T) {
	full := Confidence(strongConsensus("AAPL", domain.DirectionLong, 4), domain.StrategyLongTerm)
	thin := Confidence(strongConsensus("AAPL", domain.DirectionLong, 2), domain.StrategyLongTerm)

	if math.Abs(thin-full*2.0/4.0) > 1e-9 {
		t.Fatalf("expected 2/4 penalty: full=%.4f thin=%.4f", full, thin)
	}
}

func TestConfidenceEmptyConsensus(t *testing.T) {
	if got := Confidence(domain.ConsensusResult{}, domain.StrategyLongTerm); got != 0 {
		t.Fatalf("expected 0 for empty consensus, got %.4f", got)
	}
}

func TestEvaluateBuySignal(t *testing.T) {
	g := testGenerator()
	sig := g.Evaluate(context.Background(), strongConsensus("AAPL", domain.DirectionLong, 4), domain.StrategyLongTerm)

	if sig.Action != domain.ActionBuy {
		t.Fatalf("expected BUY, got %s", sig.Action)
	}
	if !sig.IsActive {
		t.Fatal("expected actionable signal to be active")
	}
	if !strings.Contains(sig.Reasoning, "long positions in AAPL") {
		t.Fatalf("unexpected reasoning: %s", sig.Reasoning)
	}
}

func TestEvaluateSellSignal(t *testing.T) {
	g := testGenerator()
	sig := g.Evaluate(context.Background(), strongConsensus("NVDA", domain.DirectionShort, 4), domain.StrategyLongTerm)

	if sig.Action != domain.ActionSell {
		t.Fatalf("expected SELL, got %s", sig.Action)
	}
}

func TestEvaluateHoldOnThinSupport(t *testing.T) {
	g := testGenerator()

	// Two unanimous day traders sit under the 3-trader minimum: even a high
	// confidence value must not turn the consensus into a BUY.
	c := strongConsensus("TSLA", domain.DirectionLong, 2)
	sig := g.Evaluate(context.Background(), c, domain.StrategyDayTrading)

	if sig.Action != domain.ActionHold {
		t.Fatalf("expected HOLD for 2-trader cohort, got %s", sig.Action)
	}
	if sig.IsActive {
		t.Fatal("HOLD signals must not be active")
	}
	if sig.Confidence <= 0.60 {
		t.Fatalf("expected the penalized confidence to still be high, got %.4f", sig.Confidence)
	}
}

func TestEvaluateHoldOnWeakConsensus(t *testing.T) {
	g := testGenerator()

	// Four supporters but a 0.5 consensus strength, under the 0.60 day
	// minimum. The supporter count alone must not fire a signal.
	c := strongConsensus("TSLA", domain.DirectionLong, 4)
	c.Consensus = 0.5
	sig := g.Evaluate(context.Background(), c, domain.StrategyDayTrading)

	if sig.Action != domain.ActionHold {
		t.Fatalf("expected HOLD for 0.5 consensus, got %s", sig.Action)
	}
}

func TestEvaluateGateUsesConsensusMagnitude(t *testing.T) {
	g := testGenerator()

	// A strong short consensus is negative; the gate compares magnitude.
	c := strongConsensus("NVDA", domain.DirectionShort, 4)
	c.Consensus = -0.75
	sig := g.Evaluate(context.Background(), c, domain.StrategyLongTerm)

	if sig.Action != domain.ActionSell {
		t.Fatalf("expected SELL for consensus -0.75, got %s", sig.Action)
	}
}

func TestEvaluateHoldOnNeutralDirection(t *testing.T) {
	g := testGenerator()
	c := strongConsensus("TSLA", domain.DirectionLong, 4)
	c.Direction = domain.DirectionNeutral
	sig := g.Evaluate(context.Background(), c, domain.StrategyLongTerm)

	if sig.Action != domain.ActionHold {
		t.Fatalf("expected HOLD for neutral direction, got %s", sig.Action)
	}
}

func TestReasoningDeterministic(t *testing.T) {
	g := testGenerator()
	c := strongConsensus("AAPL", domain.DirectionLong, 4)
	a := g.Evaluate(context.Background(), c, domain.StrategyLongTerm)
	b := g.Evaluate(context.Background(), c, domain.StrategyLongTerm)
	if a.Reasoning != b.Reasoning {
		t.Fatalf("reasoning not deterministic:\n%s\n%s", a.Reasoning, b.Reasoning)
	}
	if !strings.Contains(a.Reasoning, "Led by a, b, c") {
		t.Fatalf("expected top supporters named, got: %s", a.Reasoning)
	}
}
