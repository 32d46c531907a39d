package scoring

import (
	"math"
	"sort"
)

// metricBounds are the fixed reference ranges used for normalization. They
// take precedence over empirical bounds because quartile fences computed on
// small trader samples are unstable.
var metricBounds = map[string][2]float64{
	"win_rate":          {0.0, 1.0},
	"profit_loss_ratio": {0.0, 5.0},
	"max_drawdown":      {0.0, 0.5},
	"consistency":       {0.0, 1.0},
	"risk_score":        {1.0, 10.0},
	"trade_frequency":   {0.0, 100.0},
	"cagr":              {-0.5, 2.0},
	"sharpe_ratio":      {-2.0, 5.0},
	"copiers_count":     {0, 50000},
	"holding_period":    {1.0, 365.0},
	"diversification":   {0.0, 1.0},
}

// Normalize maps metric values onto [0,1]. Metrics with a predefined
// reference range are clipped to that range; unknown metrics fall back to an
// IQR outlier fence computed from the sample itself. A degenerate bound
// (min == max) carries no information and maps everything to 0.5. When
// higherIsBetter is false the rescale is inverted.
func Normalize(values []float64, metric string, higherIsBetter bool) []float64 {
	if len(values) == 0 {
		return nil
	}

	var minVal, maxVal float64
	if b, ok := metricBounds[metric]; ok {
		minVal, maxVal = b[0], b[1]
	} else {
		minVal, maxVal = empiricalBounds(values)
	}

	out := make([]float64, len(values))
	if maxVal == minVal {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}

	span := maxVal - minVal
	for i, v := range values {
		clipped := clip(v, minVal, maxVal)
		if higherIsBetter {
			out[i] = (clipped - minVal) / span
		} else {
			out[i] = (maxVal - clipped) / span
		}
	}
	return out
}

// empiricalBounds returns the data min/max tightened by the 1.5*IQR fence.
func empiricalBounds(values []float64) (float64, float64) {
	q1 := percentile(values, 25)
	q3 := percentile(values, 75)
	iqr := q3 - q1

	lowerFence := q1 - 1.5*iqr
	upperFence := q3 + 1.5*iqr

	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return math.Max(minVal, lowerFence), math.Min(maxVal, upperFence)
}

// percentile computes the p-th percentile with linear interpolation between
// closest ranks, matching numpy's default behavior.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
