package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// MarketDataSource provides prices and market context for instruments.
type MarketDataSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	MarketData(ctx context.Context, symbol string) (*domain.MarketData, error)
}

// ProfileStore manages user capital ledgers and paper positions.
type ProfileStore interface {
	GetOrCreate(ctx context.Context, userID int64) (domain.UserProfile, error)
	GetOpenPositions(ctx context.Context, userID int64) ([]domain.UserPosition, error)
}

// PositionSizer turns signal confidence and market context into trade levels
// and a share count.
type PositionSizer interface {
	Levels(entryPrice float64, strategy domain.StrategyType, settings domain.RiskSettings, md *domain.MarketData) domain.SizingLevels
	FallbackLevels(entryPrice float64) domain.SizingLevels
	Size(ctx context.Context, profile domain.UserProfile, entryPrice, confidence float64, levels domain.SizingLevels) domain.PositionSizingResult
}

// BreakdownSource builds the per-instrument consensus analysis.
type BreakdownSource interface {
	Build(ctx context.Context, instrument string, traders []domain.ScoredTrader) *domain.ConsensusBreakdown
}

// RecommendationService combines signals, market data, and user capital into
// executable recommendations.
type RecommendationService struct {
	tracer    trace.Tracer
	signals   SignalStore
	traders   TraderStore
	profiles  ProfileStore
	market    MarketDataSource
	sizer     PositionSizer
	breakdown BreakdownSource
}

func NewRecommendationService(
	tracer trace.Tracer,
	signals SignalStore,
	traders TraderStore,
	profiles ProfileStore,
	market MarketDataSource,
	sizer PositionSizer,
	breakdown BreakdownSource,
) *RecommendationService {
	return &RecommendationService{
		tracer:    tracer,
		signals:   signals,
		traders:   traders,
		profiles:  profiles,
		market:    market,
		sizer:     sizer,
		breakdown: breakdown,
	}
}

// ForSignal builds one recommendation for the user. BUY recommendations size
// a new position; SELL recommendations close an existing one and are marked
// non-investable when the user holds nothing in the instrument.
func (s *RecommendationService) ForSignal(ctx context.Context, userID int64, sig domain.Signal) (*domain.Recommendation, error) {
	ctx, span := s.tracer.Start(ctx, "recommendation-service.for-signal")
	defer span.End()

	md, err := s.market.MarketData(ctx, sig.Instrument)
	if err != nil {
		return nil, fmt.Errorf("market data for %s: %w", sig.Instrument, err)
	}
	if md.CurrentPrice == nil || *md.CurrentPrice <= 0 {
		return nil, fmt.Errorf("no current price for %s", sig.Instrument)
	}
	price := *md.CurrentPrice

	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile for user %d: %w", userID, err)
	}

	rec := &domain.Recommendation{
		SignalID:      fmt.Sprintf("%d", sig.ID),
		Symbol:        sig.Instrument,
		CompanyName:   md.CompanyInfo.Name,
		Action:        sig.Action,
		CurrentPrice:  price,
		Confidence:    sig.Confidence,
		StrategyType:  sig.StrategyType,
		MarketContext: *md,
		Reasoning:     sig.Reasoning,
		Timestamp:     time.Now().UTC(),
	}

	switch sig.Action {
	case domain.ActionBuy:
		levels := s.levelsFor(price, sig.StrategyType, profile, md)
		rec.PositionDetails = s.sizer.Size(ctx, profile, price, sig.Confidence, levels)
	case domain.ActionSell:
		rec.PositionDetails = s.sellDetails(ctx, userID, sig.Instrument, price)
	default:
		return nil, fmt.Errorf("no recommendation for %s signals", sig.Action)
	}

	rec.TraderAnalysis = s.analysisFor(ctx, sig)
	return rec, nil
}

// ForUser builds recommendations for every active signal, best first.
func (s *RecommendationService) ForUser(ctx context.Context, userID int64, strategy domain.StrategyType) ([]domain.Recommendation, error) {
	ctx, span := s.tracer.Start(ctx, "recommendation-service.for-user")
	defer span.End()

	signals, err := s.signals.GetActiveSignals(ctx, strategy)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}

	recs := make([]domain.Recommendation, 0, len(signals))
	for _, sig := range signals {
		rec, err := s.ForSignal(ctx, userID, sig)
		if err != nil {
			log.Printf("recommendation-service: skipping %s: %v", sig.Instrument, err)
			continue
		}
		recs = append(recs, *rec)
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].Confidence > recs[j].Confidence })
	return recs, nil
}

// Overview summarizes the current signal landscape for the user.
func (s *RecommendationService) Overview(ctx context.Context, userID int64) (*domain.MarketOverview, error) {
	ctx, span := s.tracer.Start(ctx, "recommendation-service.overview")
	defer span.End()

	recs, err := s.ForUser(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	overview := &domain.MarketOverview{
		TotalSignals: len(recs),
		Timestamp:    time.Now().UTC(),
	}

	var confSum float64
	for _, r := range recs {
		confSum += r.Confidence
		switch r.Action {
		case domain.ActionBuy:
			overview.BuySignals++
		case domain.ActionSell:
			overview.SellSignals++
		}
	}
	if len(recs) > 0 {
		overview.AverageConfidence = confSum / float64(len(recs))
	}
	overview.MarketSentiment = sentiment(overview.BuySignals, overview.SellSignals)

	top := 3
	if len(recs) < top {
		top = len(recs)
	}
	overview.TopOpportunities = recs[:top]
	return overview, nil
}

// InstrumentBreakdown returns the consensus analysis for one instrument, or
// nil when too few traders hold it.
func (s *RecommendationService) InstrumentBreakdown(ctx context.Context, instrument string) (*domain.ConsensusBreakdown, error) {
	ctx, span := s.tracer.Start(ctx, "recommendation-service.instrument-breakdown")
	defer span.End()

	cohort, err := s.traders.GetAllTraders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load traders: %w", err)
	}
	return s.breakdown.Build(ctx, instrument, cohort), nil
}

func (s *RecommendationService) levelsFor(price float64, strategy domain.StrategyType, profile domain.UserProfile, md *domain.MarketData) domain.SizingLevels {
	if md.Volatility == nil && md.SupportLevel == nil {
		return s.sizer.FallbackLevels(price)
	}
	return s.sizer.Levels(price, strategy, profile.RiskTolerance.Settings(), md)
}

func (s *RecommendationService) sellDetails(ctx context.Context, userID int64, symbol string, price float64) domain.PositionSizingResult {
	positions, err := s.profiles.GetOpenPositions(ctx, userID)
	if err != nil {
		log.Printf("recommendation-service: positions unavailable for user %d: %v", userID, err)
		return domain.PositionSizingResult{CanInvest: false, Reason: "Positions unavailable"}
	}

	for _, p := range positions {
		if p.Symbol != symbol {
			continue
		}
		p.CurrentPrice = price
		return domain.PositionSizingResult{
			RecommendedShares: p.Shares,
			InvestmentAmount:  p.CurrentValue(),
			CanInvest:         true,
		}
	}
	return domain.PositionSizingResult{CanInvest: false, Reason: fmt.Sprintf("No open position found for %s", symbol)}
}

func (s *RecommendationService) analysisFor(ctx context.Context, sig domain.Signal) domain.TraderAnalysis {
	analysis := domain.TraderAnalysis{
		TotalTradersAnalyzed: len(sig.SupportingTraders),
		ConsensusPercentage:  sig.ConsensusStrength * 100,
		PrimaryStrategy:      sig.StrategyType,
		SupportingTraders:    sig.SupportingTraders,
	}

	var scoreSum float64
	for _, st := range sig.SupportingTraders {
		scoreSum += st.Score
	}
	if len(sig.SupportingTraders) > 0 {
		analysis.AverageTraderScore = scoreSum / float64(len(sig.SupportingTraders))
	}

	if s.breakdown != nil {
		if cohort, err := s.traders.GetAllTraders(ctx); err == nil {
			if b := s.breakdown.Build(ctx, sig.Instrument, cohort); b != nil {
				analysis.Long = b.Long
				analysis.Short = b.Short
				analysis.TotalTradersAnalyzed = b.TotalTraders
				analysis.ConsensusPercentage = b.ConsensusPercentage
				analysis.AverageTraderScore = b.AverageScore
				analysis.PrimaryStrategy = b.PrimaryStrategy
			}
		}
	}
	return analysis
}

func sentiment(buys, sells int) string {
	switch {
	case buys > sells:
		return "bullish"
	case sells > buys:
		return "bearish"
	default:
		return "neutral"
	}
}
