package scoring

import "github.com/ppcadvisor/bullaware-monitor/internal/domain"

const (
	dayTraderMinFrequency = 2.0
	dayTraderMaxHolding   = 30.0
)

// Classify assigns a trader type from activity metrics. A trader is a day
// trader only when trading more than twice a week AND holding under 30 days;
// everything else, including missing activity data, falls back to long term.
func Classify(m domain.RawTraderMetrics) domain.TraderType {
	if m.TradeFrequency > dayTraderMinFrequency && m.HoldingPeriodDays < dayTraderMaxHolding {
		return domain.TraderTypeDay
	}
	return domain.TraderTypeLongTerm
}
