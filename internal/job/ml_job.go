package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// OutcomeResolver labels matured signals and retrains the outcome model.
type OutcomeResolver interface {
	ResolveDue(ctx context.Context) (int, error)
	TrainIfReady(ctx context.Context) (bool, error)
}

// MLJob resolves signal outcomes hourly and retrains once a day at a fixed
// UTC hour.
type MLJob struct {
	tracer       trace.Tracer
	outcomes     OutcomeResolver
	trainHourUTC int
	resolveEvery time.Duration
	now          func() time.Time

	lastTrainDay string
}

func NewMLJob(tracer trace.Tracer, outcomes OutcomeResolver, trainHourUTC int) *MLJob {
	if trainHourUTC < 0 || trainHourUTC > 23 {
		trainHourUTC = 0
	}
	return &MLJob{
		tracer:       tracer,
		outcomes:     outcomes,
		trainHourUTC: trainHourUTC,
		resolveEvery: time.Hour,
		now:          time.Now,
	}
}

// Start launches the resolution loop. Blocks until ctx is cancelled.
func (j *MLJob) Start(ctx context.Context) {
	log.Println("ML job starting...")

	go j.pollLoopML(ctx)

	<-ctx.Done()
	log.Println("ML job stopped")
}

func (j *MLJob) pollLoopML(ctx context.Context) {
	j.tick(ctx)

	ticker := time.NewTicker(j.resolveEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *MLJob) tick(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "ml-job.tick")
	defer span.End()

	n, err := j.outcomes.ResolveDue(ctx)
	if err != nil {
		log.Printf("ml job: resolve error: %v", err)
	} else if n > 0 {
		log.Printf("ml job: resolved %d signal outcomes", n)
	}

	now := j.now().UTC()
	day := now.Format("2006-01-02")
	if now.Hour() != j.trainHourUTC || j.lastTrainDay == day {
		return
	}

	trained, err := j.outcomes.TrainIfReady(ctx)
	if err != nil {
		log.Printf("ml job: training error: %v", err)
		return
	}
	j.lastTrainDay = day
	if !trained {
		log.Println("ml job: training skipped, not enough outcomes yet")
	}
}
