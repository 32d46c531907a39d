package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// CohortRefresher re-fetches and rescores the trader roster.
type CohortRefresher interface {
	RefreshTraders(ctx context.Context, limit int) (int, error)
}

// SignalRegenerator rebuilds consensus signals from the stored cohort.
type SignalRegenerator interface {
	GenerateSignals(ctx context.Context) ([]domain.Signal, error)
}

// RefreshJob runs background goroutines that keep the trader cohort and the
// derived signals current.
type RefreshJob struct {
	tracer          trace.Tracer
	traders         CohortRefresher
	signals         SignalRegenerator
	refreshInterval time.Duration
	signalInterval  time.Duration
	rosterLimit     int
	signalDelay     time.Duration
}

func NewRefreshJob(tracer trace.Tracer, traders CohortRefresher, signals SignalRegenerator, refreshIntervalSecs, signalIntervalSecs, rosterLimit int) *RefreshJob {
	return &RefreshJob{
		tracer:          tracer,
		traders:         traders,
		signals:         signals,
		refreshInterval: time.Duration(refreshIntervalSecs) * time.Second,
		signalInterval:  time.Duration(signalIntervalSecs) * time.Second,
		rosterLimit:     rosterLimit,
		signalDelay:     30 * time.Second,
	}
}

// Start launches the refresh loops. Blocks until ctx is cancelled.
func (j *RefreshJob) Start(ctx context.Context) {
	log.Println("Refresh job starting...")

	go j.pollLoop(ctx, "trader-refresh", j.refreshInterval, 0, j.refreshCohort)

	// Signal generation lags the first cohort refresh so it sees fresh data
	go j.pollLoop(ctx, "signal-generation", j.signalInterval, j.signalDelay, j.regenerateSignals)

	<-ctx.Done()
	log.Println("Refresh job stopped")
}

func (j *RefreshJob) pollLoop(ctx context.Context, name string, interval, delay time.Duration, fn func(context.Context) error) {
	if delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	if err := fn(ctx); err != nil {
		log.Printf("job %s initial run error: %v", name, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				log.Printf("job %s error: %v", name, err)
			}
		}
	}
}

func (j *RefreshJob) refreshCohort(ctx context.Context) error {
	ctx, span := j.tracer.Start(ctx, "refresh-job.refresh-cohort")
	defer span.End()

	n, err := j.traders.RefreshTraders(ctx, j.rosterLimit)
	if err != nil {
		return err
	}
	log.Printf("refresh job: scored %d traders", n)
	return nil
}

func (j *RefreshJob) regenerateSignals(ctx context.Context) error {
	ctx, span := j.tracer.Start(ctx, "refresh-job.regenerate-signals")
	defer span.End()

	signals, err := j.signals.GenerateSignals(ctx)
	if err != nil {
		return err
	}
	log.Printf("refresh job: %d actionable signals", len(signals))
	return nil
}
