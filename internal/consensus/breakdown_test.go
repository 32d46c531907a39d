package consensus

import (
	"context"
	"fmt"
	"math"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

func testBuilder() *BreakdownBuilder {
	return NewBreakdownBuilder(trace.NewNoopTracerProvider().Tracer("test"))
}

func dayTrader(username string, score float64, positions ...domain.Position) domain.ScoredTrader {
	t := trader(username, score, positions...)
	t.TraderType = domain.TraderTypeDay
	return t
}

func TestBuildRequiresTwoTraders(t *testing.T) {
	b := testBuilder()
	out := b.Build(context.Background(), "AAPL", []domain.ScoredTrader{
		trader("solo", 0.8, pos("AAPL", domain.DirectionLong, 500)),
	})
	if out != nil {
		t.Fatalf("expected nil breakdown for a single trader, got %+v", out)
	}
}

func TestBuildSkipsTokenPositions(t *testing.T) {
	b := testBuilder()
	out := b.Build(context.Background(), "AAPL", []domain.ScoredTrader{
		trader("a", 0.8, pos("AAPL", domain.DirectionLong, 50)),
		trader("b", 0.8, pos("AAPL", domain.DirectionLong, 99.99)),
	})
	if out != nil {
		t.Fatalf("expected positions under the size floor to be ignored, got %+v", out)
	}
}

func TestBuildMajoritySplit(t *testing.T) {
	b := testBuilder()
	out := b.Build(context.Background(), "TSLA", []domain.ScoredTrader{
		trader("longA", 0.8, pos("TSLA", domain.DirectionLong, 500)),
		trader("longB", 0.6, pos("TSLA", domain.DirectionLong, 300)),
		trader("shortA", 0.4, pos("TSLA", domain.DirectionShort, 200)),
	})
	if out == nil {
		t.Fatal("expected a breakdown")
	}
	if out.TotalTraders != 3 {
		t.Fatalf("expected 3 traders, got %d", out.TotalTraders)
	}
	if out.ConsensusDirection != domain.DirectionLong {
		t.Fatalf("expected long majority, got %s", out.ConsensusDirection)
	}
	// Weights equal scores: long 0.8+0.6=1.4, short 0.4, total 1.8.
	wantPct := 1.4 / 1.8 * 100
	if math.Abs(out.ConsensusPercentage-wantPct) > 1e-9 {
		t.Fatalf("expected consensus pct %.2f, got %.2f", wantPct, out.ConsensusPercentage)
	}
	if math.Abs(out.AverageScore-0.7) > 1e-9 {
		t.Fatalf("expected majority average score 0.7, got %.2f", out.AverageScore)
	}
	if math.Abs(out.Long.Percentage+out.Short.Percentage-100.0) > 1e-9 {
		t.Fatalf("side percentages should sum to 100, got %.2f + %.2f", out.Long.Percentage, out.Short.Percentage)
	}
	if out.SupportingTraders[0].Username != "longA" {
		t.Fatalf("supporters should be weight-sorted, got %s first", out.SupportingTraders[0].Username)
	}
}

func TestBuildModalStrategy(t *testing.T) {
	b := testBuilder()
	out := b.Build(context.Background(), "NVDA", []domain.ScoredTrader{
		dayTrader("d1", 0.7, pos("NVDA", domain.DirectionLong, 300)),
		dayTrader("d2", 0.7, pos("NVDA", domain.DirectionLong, 300)),
		trader("l1", 0.7, pos("NVDA", domain.DirectionLong, 300)),
	})
	if out.PrimaryStrategy != domain.StrategyDayTrading {
		t.Fatalf("expected modal strategy day_trading, got %s", out.PrimaryStrategy)
	}
}

func TestBuildCapsTopSupporters(t *testing.T) {
	b := testBuilder()
	traders := make([]domain.ScoredTrader, 0, 8)
	for i := 0; i < 8; i++ {
		traders = append(traders, trader(fmt.Sprintf("t%d", i), float64(i+1)/10.0, pos("SPY", domain.DirectionLong, 400)))
	}
	out := b.Build(context.Background(), "SPY", traders)
	if len(out.SupportingTraders) != 5 {
		t.Fatalf("expected top 5 supporters, got %d", len(out.SupportingTraders))
	}
	if out.SupportingTraders[0].Username != "t7" {
		t.Fatalf("expected highest-weight supporter first, got %s", out.SupportingTraders[0].Username)
	}
}
