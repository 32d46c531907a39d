package consensus

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

const (
	// breakdownMinPositionSize filters out token positions that say nothing
	// about conviction.
	breakdownMinPositionSize = 100.0
	breakdownMinTraders      = 2
	breakdownTopSupporters   = 5
)

// BreakdownBuilder produces the richer per-instrument analysis used by the
// recommendation flow: side splits, majority statistics, and top supporters.
type BreakdownBuilder struct {
	tracer trace.Tracer
}

func NewBreakdownBuilder(tracer trace.Tracer) *BreakdownBuilder {
	return &BreakdownBuilder{tracer: tracer}
}

// Build analyzes one instrument across the cohort. It returns nil when fewer
// than two traders hold a meaningful position, which callers treat as "no
// opinion" rather than an error.
func (b *BreakdownBuilder) Build(ctx context.Context, instrument string, traders []domain.ScoredTrader) *domain.ConsensusBreakdown {
	_, span := b.tracer.Start(ctx, "consensus.Build")
	defer span.End()

	var long, short []domain.SupportingTrader
	var longWeight, shortWeight float64

	for _, t := range traders {
		for _, p := range t.Positions {
			if p.Instrument != instrument || p.Direction == domain.DirectionNeutral {
				continue
			}
			if p.Size < breakdownMinPositionSize {
				continue
			}
			st := domain.SupportingTrader{
				Username:     t.Username,
				Direction:    p.Direction,
				Weight:       t.Score,
				Score:        t.Score,
				PositionSize: p.Size,
				StrategyType: t.TraderType.Strategy(),
			}
			if p.Direction == domain.DirectionLong {
				long = append(long, st)
				longWeight += st.Weight
			} else {
				short = append(short, st)
				shortWeight += st.Weight
			}
		}
	}

	total := len(long) + len(short)
	if total < breakdownMinTraders {
		return nil
	}

	totalWeight := longWeight + shortWeight
	direction := domain.DirectionNeutral
	majority := long
	majorityWeight := longWeight
	switch {
	case longWeight > shortWeight:
		direction = domain.DirectionLong
	case shortWeight > longWeight:
		direction = domain.DirectionShort
		majority = short
		majorityWeight = shortWeight
	}

	var pct float64
	if totalWeight > 0 {
		pct = majorityWeight / totalWeight * 100.0
	}

	sortSupporters(long)
	sortSupporters(short)

	return &domain.ConsensusBreakdown{
		Instrument:          instrument,
		TotalTraders:        total,
		ConsensusDirection:  direction,
		ConsensusPercentage: pct,
		Confidence:          pct / 100.0,
		AverageScore:        averageScore(majority),
		PrimaryStrategy:     modalStrategy(majority),
		SupportingTraders:   topN(majority, breakdownTopSupporters),
		Long: domain.SideBreakdown{
			Percentage:  sharePct(longWeight, totalWeight),
			TotalWeight: longWeight,
			Traders:     topN(long, breakdownTopSupporters),
		},
		Short: domain.SideBreakdown{
			Percentage:  sharePct(shortWeight, totalWeight),
			TotalWeight: shortWeight,
			Traders:     topN(short, breakdownTopSupporters),
		},
	}
}

func sortSupporters(side []domain.SupportingTrader) {
	sort.Slice(side, func(i, j int) bool {
		if side[i].Weight != side[j].Weight {
			return side[i].Weight > side[j].Weight
		}
		return side[i].Username < side[j].Username
	})
}

func topN(side []domain.SupportingTrader, n int) []domain.SupportingTrader {
	if len(side) <= n {
		return side
	}
	return side[:n]
}

func averageScore(side []domain.SupportingTrader) float64 {
	if len(side) == 0 {
		return 0
	}
	var sum float64
	for _, st := range side {
		sum += st.Score
	}
	return sum / float64(len(side))
}

// modalStrategy picks the most common strategy on the majority side; a tie
// resolves to long_term as the lower-turnover interpretation.
func modalStrategy(side []domain.SupportingTrader) domain.StrategyType {
	counts := map[domain.StrategyType]int{}
	for _, st := range side {
		counts[st.StrategyType]++
	}
	if counts[domain.StrategyDayTrading] > counts[domain.StrategyLongTerm] {
		return domain.StrategyDayTrading
	}
	return domain.StrategyLongTerm
}

func sharePct(w, total float64) float64 {
	if total == 0 {
		return 0
	}
	return w / total * 100.0
}
