package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

func TestNewRefreshJobIntervals(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	j := NewRefreshJob(tracer, &stubRefresher{}, &stubGenerator{}, 2, 3, 50)
	if j.refreshInterval != 2*time.Second {
		t.Fatalf("expected 2s refresh interval, got %v", j.refreshInterval)
	}
	if j.signalInterval != 3*time.Second {
		t.Fatalf("expected 3s signal interval, got %v", j.signalInterval)
	}
}

func TestRefreshJobStart(t *testing.T) {
	t.Parallel()

	tracer := trace.NewNoopTracerProvider().Tracer("test")
	refresher := &stubRefresher{}
	generator := &stubGenerator{}
	j := NewRefreshJob(tracer, refresher, generator, 1, 1, 25)
	j.signalDelay = 0

	ctx, cancel := context.WithCancel(context.Background())
	go j.Start(ctx)

	eventually(t, func() bool {
		return refresher.calls.Load() > 0 && generator.calls.Load() > 0
	})
	cancel()

	if got := refresher.limit.Load(); got != 25 {
		t.Fatalf("expected roster limit 25, got %d", got)
	}
}

func TestRefreshJobSignalDelay(t *testing.T) {
	t.Parallel()

	tracer := trace.NewNoopTracerProvider().Tracer("test")
	refresher := &stubRefresher{}
	generator := &stubGenerator{}
	j := NewRefreshJob(tracer, refresher, generator, 1, 1, 50)
	j.signalDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go j.Start(ctx)

	eventually(t, func() bool { return refresher.calls.Load() > 0 })
	cancel()

	if generator.calls.Load() != 0 {
		t.Fatal("signal generation should wait out its stagger delay")
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

type stubRefresher struct {
	calls atomic.Int32
	limit atomic.Int32
}

func (s *stubRefresher) RefreshTraders(ctx context.Context, limit int) (int, error) {
	s.calls.Add(1)
	s.limit.Store(int32(limit))
	return limit, nil
}

type stubGenerator struct {
	calls atomic.Int32
}

func (s *stubGenerator) GenerateSignals(ctx context.Context) ([]domain.Signal, error) {
	s.calls.Add(1)
	return nil, nil
}
