package outcome

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
	"github.com/ppcadvisor/bullaware-monitor/internal/repository"
)

// ModelKey identifies the signal-outcome classifier in the model store.
const ModelKey = "signal-outcome"

// Resolution horizons: how long after creation a signal's return is measured.
const (
	dayTradingHorizon = 48 * time.Hour
	longTermHorizon   = 21 * 24 * time.Hour
)

// Store persists outcomes and trained model artifacts.
type Store interface {
	RecordOutcome(ctx context.Context, o repository.SignalOutcome) error
	TrainingSet(ctx context.Context, featureVersion int) ([]repository.SignalOutcome, error)
	SaveModel(ctx context.Context, m repository.ModelArtifact) (int, error)
	LatestModel(ctx context.Context, modelKey string) (*repository.ModelArtifact, error)
}

// SignalSource lists the signals eligible for resolution.
type SignalSource interface {
	GetActiveSignals(ctx context.Context, strategy domain.StrategyType) ([]domain.Signal, error)
}

// PriceSource provides entry and exit prices for return measurement.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	PriceAt(ctx context.Context, symbol string, t time.Time) (float64, error)
}

// Service labels resolved signals and trains the outcome classifier on them.
type Service struct {
	tracer     trace.Tracer
	store      Store
	signals    SignalSource
	prices     PriceSource
	minSamples int
	now        func() time.Time

	mu            sync.Mutex
	cached        *Model
	cachedVersion int
}

func NewService(tracer trace.Tracer, store Store, signals SignalSource, prices PriceSource, minSamples int) *Service {
	if minSamples <= 0 {
		minSamples = 200
	}
	return &Service{
		tracer:     tracer,
		store:      store,
		signals:    signals,
		prices:     prices,
		minSamples: minSamples,
		now:        time.Now,
	}
}

func horizonFor(strategy domain.StrategyType) time.Duration {
	if strategy == domain.StrategyDayTrading {
		return dayTradingHorizon
	}
	return longTermHorizon
}

// ResolveDue measures the return of every active signal past its horizon and
// records the training label. Signals whose prices cannot be fetched are
// skipped and retried on the next pass.
func (s *Service) ResolveDue(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "outcome.resolve-due")
	defer span.End()

	signals, err := s.signals.GetActiveSignals(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("load signals: %w", err)
	}

	resolved := 0
	for _, sig := range signals {
		if s.now().Sub(sig.CreatedAt) < horizonFor(sig.StrategyType) {
			continue
		}

		entry, err := s.prices.PriceAt(ctx, sig.Instrument, sig.CreatedAt)
		if err != nil {
			log.Printf("outcome: entry price unavailable for %s: %v", sig.Instrument, err)
			continue
		}
		current, err := s.prices.CurrentPrice(ctx, sig.Instrument)
		if err != nil {
			log.Printf("outcome: current price unavailable for %s: %v", sig.Instrument, err)
			continue
		}
		if entry <= 0 {
			continue
		}

		returnPct := (current - entry) / entry
		if sig.Action == domain.ActionSell {
			returnPct = -returnPct
		}

		err = s.store.RecordOutcome(ctx, repository.SignalOutcome{
			SignalID:       sig.ID,
			FeatureVersion: FeatureSpecVersion,
			Features:       Vector(sig),
			Profitable:     returnPct > 0,
			ReturnPct:      returnPct,
		})
		if err != nil {
			log.Printf("outcome: record failed for signal %d: %v", sig.ID, err)
			continue
		}
		resolved++
	}

	span.SetAttributes(attribute.Int("resolved", resolved))
	return resolved, nil
}

// TrainIfReady trains and stores a new model version once enough outcomes
// exist. Returns false when the training set is still too small.
func (s *Service) TrainIfReady(ctx context.Context) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "outcome.train-if-ready")
	defer span.End()

	outcomes, err := s.store.TrainingSet(ctx, FeatureSpecVersion)
	if err != nil {
		return false, fmt.Errorf("load training set: %w", err)
	}
	if len(outcomes) < s.minSamples {
		span.SetAttributes(attribute.Int("samples", len(outcomes)))
		return false, nil
	}

	samples := make([][]float64, len(outcomes))
	labels := make([]float64, len(outcomes))
	for i, o := range outcomes {
		samples[i] = o.Features
		if o.Profitable {
			labels[i] = 1
		}
	}

	model, err := Train(samples, labels, DefaultTrainOptions())
	if err != nil {
		return false, fmt.Errorf("train: %w", err)
	}
	blob, err := model.MarshalBinary()
	if err != nil {
		return false, fmt.Errorf("serialize model: %w", err)
	}

	version, err := s.store.SaveModel(ctx, repository.ModelArtifact{
		ModelKey:       ModelKey,
		FeatureVersion: FeatureSpecVersion,
		SampleCount:    len(outcomes),
		Artifact:       blob,
	})
	if err != nil {
		return false, fmt.Errorf("store model: %w", err)
	}

	s.mu.Lock()
	s.cached = model
	s.cachedVersion = version
	s.mu.Unlock()

	log.Printf("outcome: trained model v%d on %d samples", version, len(outcomes))
	return true, nil
}

// Score returns the model's probability that the signal resolves profitably.
// Without a trained model every signal scores 0.5.
func (s *Service) Score(ctx context.Context, sig domain.Signal) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "outcome.score")
	defer span.End()

	model, err := s.activeModel(ctx)
	if err != nil {
		return 0, err
	}
	if model == nil {
		return 0.5, nil
	}
	return model.PredictProb(Vector(sig)), nil
}

func (s *Service) activeModel(ctx context.Context) (*Model, error) {
	s.mu.Lock()
	cached := s.cached
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	stored, err := s.store.LatestModel(ctx, ModelKey)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if stored == nil || stored.FeatureVersion != FeatureSpecVersion {
		return nil, nil
	}

	model, err := UnmarshalBinary(stored.Artifact)
	if err != nil {
		return nil, fmt.Errorf("deserialize model v%d: %w", stored.Version, err)
	}

	s.mu.Lock()
	s.cached = model
	s.cachedVersion = stored.Version
	s.mu.Unlock()
	return model, nil
}
