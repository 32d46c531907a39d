package advisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

const tradingPhilosophy = `You are a copy-trading advisor bot. Your role is to interpret consensus signals derived from top-ranked traders' portfolios, NOT to generate signals yourself.

Signal Framework:
- Signals come from the weighted positions of top-scored traders. Confidence runs 0 to 1.
- Signals only fire when consensus strength and supporter count clear strategy minimums. Treat confidence 0.6-0.7 as tentative, above 0.8 as strong.
- day_trading signals move fast and expire fast. long_term signals reflect durable conviction.

Rules:
- Always reference specific signals and trader counts when making observations.
- Never fabricate data. If data is unavailable, say so.
- Express uncertainty when long and short camps are close.
- Include the confidence and supporting trader count when discussing any trade idea.
- Keep responses concise and actionable. You are talking via Telegram.
- Do not provide financial advice disclaimers on every message. The user understands this is informational.
- When asked about an instrument, summarize: the active signal, who supports it, and your interpretation.
- If no signal exists for an instrument, say so honestly rather than speculating.`

func BuildSystemPrompt(marketContext string) string {
	var sb strings.Builder
	sb.WriteString(tradingPhilosophy)
	sb.WriteString("\n\n--- LIVE SIGNAL DATA (as of ")
	sb.WriteString(time.Now().UTC().Format(time.RFC822))
	sb.WriteString(") ---\n")
	sb.WriteString(marketContext)
	return sb.String()
}

func FormatSignalContext(signals []domain.Signal, traders []domain.ScoredTrader) string {
	var sb strings.Builder

	if len(signals) > 0 {
		sb.WriteString("\nActive Signals:\n")
		for _, s := range signals {
			sb.WriteString(fmt.Sprintf("  %s %s %s confidence=%.2f consensus=%+.2f traders=%d\n",
				s.Instrument, s.Action, s.StrategyType,
				s.Confidence, s.ConsensusStrength, len(s.SupportingTraders)))
		}
	}

	if len(traders) > 0 {
		sb.WriteString("\nTop Traders:\n")
		for _, t := range traders {
			sb.WriteString(fmt.Sprintf("  #%d %s (%s) score=%.2f\n",
				t.Rank, t.Username, t.TraderType, t.Score))
		}
	}

	if sb.Len() == 0 {
		return "No signal data currently available."
	}
	return sb.String()
}
