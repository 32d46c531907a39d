package signal

import (
	"fmt"
	"strings"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// Reasoning renders a deterministic explanation of a signal. Identical inputs
// always produce identical text so stored signals stay diffable.
func Reasoning(sig domain.Signal, c domain.ConsensusResult) string {
	var b strings.Builder

	switch sig.Action {
	case domain.ActionBuy:
		fmt.Fprintf(&b, "%d of %d top traders hold long positions in %s", countDirection(c, domain.DirectionLong), c.TraderCount, sig.Instrument)
	case domain.ActionSell:
		fmt.Fprintf(&b, "%d of %d top traders hold short positions in %s", countDirection(c, domain.DirectionShort), c.TraderCount, sig.Instrument)
	default:
		fmt.Fprintf(&b, "No actionable consensus among %d traders in %s", c.TraderCount, sig.Instrument)
	}

	fmt.Fprintf(&b, " (consensus %.0f%%, confidence %.0f%%, %s strategy)",
		sig.ConsensusStrength*100, sig.Confidence*100, strategyLabel(sig.StrategyType))

	if len(c.SupportingTraders) > 0 && sig.Action != domain.ActionHold {
		names := make([]string, 0, 3)
		for _, st := range c.SupportingTraders {
			if st.Direction != c.Direction {
				continue
			}
			names = append(names, st.Username)
			if len(names) == 3 {
				break
			}
		}
		if len(names) > 0 {
			fmt.Fprintf(&b, ". Led by %s", strings.Join(names, ", "))
		}
	}

	return b.String()
}

func countDirection(c domain.ConsensusResult, dir domain.PositionDirection) int {
	n := 0
	for _, st := range c.SupportingTraders {
		if st.Direction == dir {
			n++
		}
	}
	return n
}

func strategyLabel(s domain.StrategyType) string {
	if s == domain.StrategyDayTrading {
		return "day trading"
	}
	return "long term"
}
