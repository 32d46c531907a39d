package service

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// ConsensusAggregator folds trader positions into per-instrument consensus.
type ConsensusAggregator interface {
	Aggregate(ctx context.Context, traders []domain.ScoredTrader) []domain.ConsensusResult
}

// SignalEvaluator scores consensus into a signal.
type SignalEvaluator interface {
	Evaluate(ctx context.Context, c domain.ConsensusResult, strategy domain.StrategyType) domain.Signal
}

// SignalStore persists generated signals.
type SignalStore interface {
	SaveSignals(ctx context.Context, signals []domain.Signal) error
	GetActiveSignals(ctx context.Context, strategy domain.StrategyType) ([]domain.Signal, error)
	GetSignal(ctx context.Context, id int64) (*domain.Signal, error)
}

// SignalService generates strategy-partitioned signals from the stored
// trader cohort.
type SignalService struct {
	tracer     trace.Tracer
	traders    TraderStore
	aggregator ConsensusAggregator
	evaluator  SignalEvaluator
	repo       SignalStore
}

func NewSignalService(
	tracer trace.Tracer,
	traders TraderStore,
	aggregator ConsensusAggregator,
	evaluator SignalEvaluator,
	repo SignalStore,
) *SignalService {
	return &SignalService{
		tracer:     tracer,
		traders:    traders,
		aggregator: aggregator,
		evaluator:  evaluator,
		repo:       repo,
	}
}

// GenerateSignals recomputes signals for both strategies. Day-trading signals
// come from day traders' consensus only, long-term signals from long-term
// traders, so the two cohorts never dilute each other. Actionable signals are
// persisted; the returned slice excludes HOLDs.
func (s *SignalService) GenerateSignals(ctx context.Context) ([]domain.Signal, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.generate-signals")
	defer span.End()

	cohort, err := s.traders.GetAllTraders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load traders: %w", err)
	}

	var actionable []domain.Signal
	for _, strategy := range []domain.StrategyType{domain.StrategyDayTrading, domain.StrategyLongTerm} {
		partition := filterByType(cohort, domain.TraderForStrategy(strategy))
		if len(partition) == 0 {
			continue
		}

		for _, consensus := range s.aggregator.Aggregate(ctx, partition) {
			sig := s.evaluator.Evaluate(ctx, consensus, strategy)
			if sig.Action == domain.ActionHold {
				continue
			}
			actionable = append(actionable, sig)
		}
	}

	if err := s.repo.SaveSignals(ctx, actionable); err != nil {
		return nil, fmt.Errorf("persist signals: %w", err)
	}

	log.Printf("signal-service: generated %d actionable signals from %d traders", len(actionable), len(cohort))
	return actionable, nil
}

// GetActiveSignals returns live signals, optionally filtered by strategy.
func (s *SignalService) GetActiveSignals(ctx context.Context, strategy domain.StrategyType) ([]domain.Signal, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.get-active-signals")
	defer span.End()

	if strategy != "" && strategy != domain.StrategyDayTrading && strategy != domain.StrategyLongTerm {
		return nil, fmt.Errorf("unknown strategy: %s", strategy)
	}
	return s.repo.GetActiveSignals(ctx, strategy)
}

// GetSignal loads one signal by id.
func (s *SignalService) GetSignal(ctx context.Context, id int64) (*domain.Signal, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.get-signal")
	defer span.End()

	return s.repo.GetSignal(ctx, id)
}

func filterByType(traders []domain.ScoredTrader, tt domain.TraderType) []domain.ScoredTrader {
	out := make([]domain.ScoredTrader, 0, len(traders))
	for _, t := range traders {
		if t.TraderType == tt {
			out = append(out, t)
		}
	}
	return out
}
