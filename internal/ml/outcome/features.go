package outcome

import (
	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// FeatureSpecVersion tags stored feature vectors so old outcomes are not fed
// to a model trained on a different layout.
const FeatureSpecVersion = 1

var featureNames = []string{
	"confidence",
	"consensus_strength",
	"supporter_count",
	"avg_supporter_score",
	"avg_position_size",
	"is_day_trading",
	"is_buy",
}

func FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

// Vector encodes a signal as the model's feature vector.
func Vector(sig domain.Signal) []float64 {
	var scoreSum, sizeSum float64
	for _, st := range sig.SupportingTraders {
		scoreSum += st.Score
		sizeSum += st.PositionSize
	}
	n := float64(len(sig.SupportingTraders))
	avgScore, avgSize := 0.0, 0.0
	if n > 0 {
		avgScore = scoreSum / n
		avgSize = sizeSum / n
	}

	dayFlag := 0.0
	if sig.StrategyType == domain.StrategyDayTrading {
		dayFlag = 1
	}
	buyFlag := 0.0
	if sig.Action == domain.ActionBuy {
		buyFlag = 1
	}

	return []float64{
		sig.Confidence,
		sig.ConsensusStrength,
		n,
		avgScore,
		avgSize,
		dayFlag,
		buyFlag,
	}
}
