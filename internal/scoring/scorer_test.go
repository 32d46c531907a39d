package scoring

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

func testScorer() *Scorer {
	return NewScorer(trace.NewNoopTracerProvider().Tracer("test"))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		freq     float64
		holding  float64
		expected domain.TraderType
	}{
		{"active short holds", 5.0, 3.0, domain.TraderTypeDay},
		{"active but long holds", 5.0, 45.0, domain.TraderTypeLongTerm},
		{"slow trader", 0.5, 3.0, domain.TraderTypeLongTerm},
		{"boundary frequency", 2.0, 3.0, domain.TraderTypeLongTerm},
		{"boundary holding", 5.0, 30.0, domain.TraderTypeLongTerm},
		{"no activity data", 0, 0, domain.TraderTypeLongTerm},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(domain.RawTraderMetrics{TradeFrequency: tc.freq, HoldingPeriodDays: tc.holding})
			if got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	s := testScorer()
	perfect := domain.RawTraderMetrics{
		WinRate: 1, ProfitLossRatio: 10, MaxDrawdown: 0, Consistency: 1,
		RiskScore: 0, TradeFrequency: 50, CAGR: 3, SharpeRatio: 9,
		CopiersCount: 100000, HoldingPeriodDays: 400, Diversification: 1,
	}
	hopeless := domain.RawTraderMetrics{
		WinRate: 0, ProfitLossRatio: 0, MaxDrawdown: 1, Consistency: 0,
		RiskScore: 10, TradeFrequency: 0, CAGR: -1, SharpeRatio: -5,
	}

	for _, tt := range []domain.TraderType{domain.TraderTypeDay, domain.TraderTypeLongTerm} {
		if got := s.Score(perfect, tt); got != 1 {
			t.Fatalf("%s: expected perfect score 1, got %.4f", tt, got)
		}
		if got := s.Score(hopeless, tt); got != 0 {
			t.Fatalf("%s: expected floor score 0, got %.4f", tt, got)
		}
	}
}

func TestScoreStaysWithinUnitInterval(t *testing.T) {
	s := testScorer()
	cases := []domain.RawTraderMetrics{
		{WinRate: 0.9, ProfitLossRatio: 4, MaxDrawdown: 0.05, Consistency: 0.9, RiskScore: 1, TradeFrequency: 8},
		{CAGR: 2.0, SharpeRatio: 5, MaxDrawdown: 0.02, Consistency: 0.95, CopiersCount: 9000, HoldingPeriodDays: 300, Diversification: 0.9},
		{WinRate: 0.5, Consistency: 0.5},
	}
	for _, m := range cases {
		for _, tt := range []domain.TraderType{domain.TraderTypeDay, domain.TraderTypeLongTerm} {
			got := s.Score(m, tt)
			if got < 0 || got > 1 {
				t.Fatalf("%s: score %.4f outside [0,1] for %+v", tt, got, m)
			}
		}
	}
}

func TestScoreWeightTablesDiffer(t *testing.T) {
	s := testScorer()
	// Strong long-term profile: high CAGR and Sharpe but poor execution stats.
	m := domain.RawTraderMetrics{CAGR: 1.5, SharpeRatio: 4.0, Consistency: 0.9, MaxDrawdown: 0.1, HoldingPeriodDays: 200, Diversification: 0.8, RiskScore: 5}

	long := s.Score(m, domain.TraderTypeLongTerm)
	day := s.Score(m, domain.TraderTypeDay)
	if long <= day {
		t.Fatalf("expected long-term weights to favor compounding profile, got long=%.2f day=%.2f", long, day)
	}
}

func TestScoreAllRanksPerTypePartition(t *testing.T) {
	s := testScorer()
	metrics := []domain.RawTraderMetrics{
		{Username: "dayA", TradeFrequency: 6, HoldingPeriodDays: 2, WinRate: 0.9, ProfitLossRatio: 3, Consistency: 0.8},
		{Username: "dayB", TradeFrequency: 5, HoldingPeriodDays: 4, WinRate: 0.4, ProfitLossRatio: 1, Consistency: 0.3},
		{Username: "longA", TradeFrequency: 0.2, HoldingPeriodDays: 120, CAGR: 0.9, SharpeRatio: 2.5, Consistency: 0.8},
		{Username: "longB", TradeFrequency: 0.1, HoldingPeriodDays: 200, CAGR: 0.1, SharpeRatio: 0.5, Consistency: 0.4},
	}

	scored := s.ScoreAll(context.Background(), metrics)
	if len(scored) != 4 {
		t.Fatalf("expected 4 scored traders, got %d", len(scored))
	}

	ranks := map[string]int{}
	types := map[string]domain.TraderType{}
	for _, st := range scored {
		ranks[st.Username] = st.Rank
		types[st.Username] = st.TraderType
	}

	if types["dayA"] != domain.TraderTypeDay || types["longA"] != domain.TraderTypeLongTerm {
		t.Fatalf("unexpected classification: %v", types)
	}
	if ranks["dayA"] != 1 || ranks["dayB"] != 2 {
		t.Fatalf("day partition ranks wrong: %v", ranks)
	}
	if ranks["longA"] != 1 || ranks["longB"] != 2 {
		t.Fatalf("long partition ranks wrong: %v", ranks)
	}
}

func TestScoreAllDenseRanksAndUsernameTieBreak(t *testing.T) {
	s := testScorer()
	same := domain.RawTraderMetrics{TradeFrequency: 0.1, HoldingPeriodDays: 100, CAGR: 0.5, SharpeRatio: 1, Consistency: 0.5}
	a, b := same, same
	a.Username = "zed"
	b.Username = "amy"
	c := same
	c.Username = "low"
	c.CAGR = 0.0

	scored := s.ScoreAll(context.Background(), []domain.RawTraderMetrics{a, b, c})
	if scored[0].Username != "amy" || scored[1].Username != "zed" {
		t.Fatalf("expected username tie-break amy before zed, got %s, %s", scored[0].Username, scored[1].Username)
	}
	if scored[0].Rank != 1 || scored[1].Rank != 1 {
		t.Fatalf("expected shared rank 1 for tied scores, got %d and %d", scored[0].Rank, scored[1].Rank)
	}
	if scored[2].Rank != 2 {
		t.Fatalf("expected dense rank 2 after a tie, got %d", scored[2].Rank)
	}
}

func TestScoreAllSkipsEmptyUsername(t *testing.T) {
	s := testScorer()
	scored := s.ScoreAll(context.Background(), []domain.RawTraderMetrics{
		{Username: ""},
		{Username: "ok", WinRate: 0.5},
	})
	if len(scored) != 1 || scored[0].Username != "ok" {
		t.Fatalf("expected only the named trader to survive, got %v", scored)
	}
}
