package service

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
	"github.com/ppcadvisor/bullaware-monitor/internal/scoring"
)

// TraderDataProvider supplies raw trader data from the upstream API.
type TraderDataProvider interface {
	ListInvestors(ctx context.Context, limit, offset int) ([]string, error)
	FetchSnapshot(ctx context.Context, username string) (scoring.TraderSnapshot, error)
	FetchTrades(ctx context.Context, username string) ([]scoring.TradeRecord, error)
	FetchEquityHistory(ctx context.Context, username string) ([]scoring.EquityPoint, error)
}

// TraderStore persists scored traders.
type TraderStore interface {
	UpsertTraders(ctx context.Context, traders []domain.ScoredTrader) error
	GetTopTraders(ctx context.Context, traderType domain.TraderType, limit int) ([]domain.ScoredTrader, error)
	GetAllTraders(ctx context.Context) ([]domain.ScoredTrader, error)
	GetTrader(ctx context.Context, username string) (*domain.ScoredTrader, error)
}

// MetricsScreen filters out implausible metric records before scoring.
type MetricsScreen interface {
	Screen(ctx context.Context, metrics []domain.RawTraderMetrics) (clean, anomalous []domain.RawTraderMetrics)
}

// TraderService runs the refresh pipeline: fetch, derive, screen, score,
// rank, persist.
type TraderService struct {
	tracer     trace.Tracer
	provider   TraderDataProvider
	repo       TraderStore
	scorer     *scoring.Scorer
	derivation scoring.Derivation
	screen     MetricsScreen
	useHistory bool
}

func NewTraderService(
	tracer trace.Tracer,
	provider TraderDataProvider,
	repo TraderStore,
	scorer *scoring.Scorer,
	derivation scoring.Derivation,
	screen MetricsScreen,
	useHistory bool,
) *TraderService {
	return &TraderService{
		tracer:     tracer,
		provider:   provider,
		repo:       repo,
		scorer:     scorer,
		derivation: derivation,
		screen:     screen,
		useHistory: useHistory,
	}
}

// RefreshTraders pulls the top of the investor roster, derives and scores
// metrics, and replaces the stored cohort. Individual trader failures are
// logged and skipped so one bad record never sinks the cycle. Returns the
// number of traders persisted.
func (s *TraderService) RefreshTraders(ctx context.Context, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "trader-service.refresh-traders")
	defer span.End()

	usernames, err := s.provider.ListInvestors(ctx, limit, 0)
	if err != nil {
		return 0, fmt.Errorf("list investors: %w", err)
	}
	if len(usernames) == 0 {
		return 0, nil
	}

	metrics := make([]domain.RawTraderMetrics, 0, len(usernames))
	positions := make(map[string][]domain.Position, len(usernames))
	for _, username := range usernames {
		snap, err := s.provider.FetchSnapshot(ctx, username)
		if err != nil {
			log.Printf("trader-service: skipping %s: %v", username, err)
			continue
		}

		if s.useHistory {
			s.attachHistory(ctx, &snap)
		}

		metrics = append(metrics, s.derivation.Derive(snap))
		positions[username] = snap.Positions
	}

	if s.screen != nil {
		var anomalous []domain.RawTraderMetrics
		metrics, anomalous = s.screen.Screen(ctx, metrics)
		if len(anomalous) > 0 {
			log.Printf("trader-service: screened out %d anomalous traders", len(anomalous))
		}
	}

	scored := s.scorer.ScoreAll(ctx, metrics)
	for i := range scored {
		scored[i].Positions = positions[scored[i].Username]
	}

	if err := s.repo.UpsertTraders(ctx, scored); err != nil {
		return 0, fmt.Errorf("persist traders: %w", err)
	}

	log.Printf("trader-service: refreshed %d of %d traders", len(scored), len(usernames))
	return len(scored), nil
}

func (s *TraderService) attachHistory(ctx context.Context, snap *scoring.TraderSnapshot) {
	trades, err := s.provider.FetchTrades(ctx, snap.Username)
	if err != nil {
		log.Printf("trader-service: trade history unavailable for %s: %v", snap.Username, err)
	} else {
		snap.Trades = trades
	}

	equity, err := s.provider.FetchEquityHistory(ctx, snap.Username)
	if err != nil {
		log.Printf("trader-service: equity history unavailable for %s: %v", snap.Username, err)
	} else {
		snap.Equity = equity
	}
}

// GetTopTraders returns the best-ranked stored traders of one type.
func (s *TraderService) GetTopTraders(ctx context.Context, traderType domain.TraderType, limit int) ([]domain.ScoredTrader, error) {
	ctx, span := s.tracer.Start(ctx, "trader-service.get-top-traders")
	defer span.End()

	if traderType != domain.TraderTypeDay && traderType != domain.TraderTypeLongTerm {
		return nil, fmt.Errorf("unknown trader type: %s", traderType)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.GetTopTraders(ctx, traderType, limit)
}

// GetTrader loads one stored trader; nil when unknown.
func (s *TraderService) GetTrader(ctx context.Context, username string) (*domain.ScoredTrader, error) {
	ctx, span := s.tracer.Start(ctx, "trader-service.get-trader")
	defer span.End()

	if username == "" {
		return nil, fmt.Errorf("username required")
	}
	return s.repo.GetTrader(ctx, username)
}

// GetAllTraders returns the full stored cohort.
func (s *TraderService) GetAllTraders(ctx context.Context) ([]domain.ScoredTrader, error) {
	ctx, span := s.tracer.Start(ctx, "trader-service.get-all-traders")
	defer span.End()

	return s.repo.GetAllTraders(ctx)
}
