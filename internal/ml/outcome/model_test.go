package outcome

import (
	"testing"
)

func TestTrainPredictAndRoundTrip(t *testing.T) {
	samples, labels := dataset()
	model, err := Train(samples, labels, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}

	pLow := model.PredictProb(weakSample())
	pHigh := model.PredictProb(strongSample())
	if pLow < 0 || pLow > 1 || pHigh < 0 || pHigh > 1 {
		t.Fatalf("expected probabilities in [0,1], got low=%.4f high=%.4f", pLow, pHigh)
	}
	if pHigh <= pLow {
		t.Fatalf("expected strong-signal probability > weak-signal probability, got %.4f <= %.4f", pHigh, pLow)
	}

	blob, err := model.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	restored, err := UnmarshalBinary(blob)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	pRoundTrip := restored.PredictProb(strongSample())
	if pRoundTrip < 0 || pRoundTrip > 1 {
		t.Fatalf("expected roundtrip probability in [0,1], got %.4f", pRoundTrip)
	}
}

func TestTrainRejectsWidthMismatch(t *testing.T) {
	if _, err := Train([][]float64{{0.7, 0.5}}, []float64{1}, DefaultTrainOptions()); err == nil {
		t.Fatal("expected error for wrong feature width")
	}
}

func TestTrainRequiresBothClasses(t *testing.T) {
	samples, _ := dataset()
	labels := make([]float64, len(samples))
	for i := range labels {
		labels[i] = 1
	}
	if _, err := Train(samples, labels, DefaultTrainOptions()); err == nil {
		t.Fatal("expected error for single-class training set")
	}
}

func TestPredictProbNilModel(t *testing.T) {
	var m *Model
	if got := m.PredictProb(strongSample()); got != 0.5 {
		t.Fatalf("expected 0.5 from nil model, got %.4f", got)
	}
}

// dataset is two separable cohorts: weak low-confidence signals that lost and
// strong high-confidence signals that won.
func dataset() ([][]float64, []float64) {
	samples := make([][]float64, 0, 120)
	labels := make([]float64, 0, 120)
	for i := 0; i < 60; i++ {
		jitter := float64(i) / 300.0
		samples = append(samples, []float64{0.60 + jitter/10, -0.2 + jitter, 3, 0.4 + jitter, 2.0, 1, 0})
		labels = append(labels, 0)
	}
	for i := 0; i < 60; i++ {
		jitter := float64(i) / 300.0
		samples = append(samples, []float64{0.85 + jitter/10, 0.6 + jitter, 8, 0.8 + jitter, 9.0, 0, 1})
		labels = append(labels, 1)
	}
	return samples, labels
}

func weakSample() []float64 {
	return []float64{0.61, -0.15, 3, 0.41, 2.0, 1, 0}
}

func strongSample() []float64 {
	return []float64{0.88, 0.7, 8, 0.82, 9.0, 0, 1}
}
