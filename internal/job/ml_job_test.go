package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type stubOutcomes struct {
	resolveCalls atomic.Int32
	trainCalls   atomic.Int32
	resolveN     int
	trained      bool
}

func (s *stubOutcomes) ResolveDue(ctx context.Context) (int, error) {
	s.resolveCalls.Add(1)
	return s.resolveN, nil
}

func (s *stubOutcomes) TrainIfReady(ctx context.Context) (bool, error) {
	s.trainCalls.Add(1)
	return s.trained, nil
}

func TestMLJobTickResolvesAndTrainsAtHour(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("job-test")
	outcomes := &stubOutcomes{resolveN: 2, trained: true}

	j := NewMLJob(tracer, outcomes, 14)
	j.now = func() time.Time {
		return time.Date(2025, 6, 1, 14, 5, 0, 0, time.UTC)
	}

	j.tick(context.Background())
	if got := outcomes.resolveCalls.Load(); got != 1 {
		t.Fatalf("expected 1 resolve call, got %d", got)
	}
	if got := outcomes.trainCalls.Load(); got != 1 {
		t.Fatalf("expected 1 train call, got %d", got)
	}

	// Same day, same hour: no second training run.
	j.tick(context.Background())
	if got := outcomes.trainCalls.Load(); got != 1 {
		t.Fatalf("expected training once per day, got %d calls", got)
	}
	if got := outcomes.resolveCalls.Load(); got != 2 {
		t.Fatalf("expected resolve on every tick, got %d calls", got)
	}
}

func TestMLJobTickSkipsTrainingOffHour(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("job-test")
	outcomes := &stubOutcomes{}

	j := NewMLJob(tracer, outcomes, 14)
	j.now = func() time.Time {
		return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	}

	j.tick(context.Background())
	if got := outcomes.trainCalls.Load(); got != 0 {
		t.Fatalf("expected no training off hour, got %d calls", got)
	}
}

func TestNewMLJobClampsBadHour(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("job-test")
	j := NewMLJob(tracer, &stubOutcomes{}, 40)
	if j.trainHourUTC != 0 {
		t.Fatalf("expected fallback train hour 0, got %d", j.trainHourUTC)
	}
}
