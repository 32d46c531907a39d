package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// ProfileManager is the full capital-ledger surface, superset of the
// read-only ProfileStore the recommendation flow needs.
type ProfileManager interface {
	ProfileStore
	Save(ctx context.Context, p domain.UserProfile) error
	OpenPosition(ctx context.Context, userID int64, symbol string, shares int, entryPrice float64) error
	ClosePosition(ctx context.Context, userID, positionID int64, exitPrice float64) error
}

// ProfileService manages user capital settings and paper positions.
type ProfileService struct {
	tracer trace.Tracer
	repo   ProfileManager
	market MarketDataSource
}

func NewProfileService(tracer trace.Tracer, repo ProfileManager, market MarketDataSource) *ProfileService {
	return &ProfileService{tracer: tracer, repo: repo, market: market}
}

// GetProfile loads or seeds the user's profile.
func (s *ProfileService) GetProfile(ctx context.Context, userID int64) (domain.UserProfile, error) {
	ctx, span := s.tracer.Start(ctx, "profile-service.get-profile")
	defer span.End()

	return s.repo.GetOrCreate(ctx, userID)
}

// UpdateProfile validates and stores capital and risk settings.
func (s *ProfileService) UpdateProfile(ctx context.Context, p domain.UserProfile) error {
	ctx, span := s.tracer.Start(ctx, "profile-service.update-profile")
	defer span.End()

	if p.UserID == 0 {
		return fmt.Errorf("user id required")
	}
	if p.TotalCapital < 0 || p.AvailableCapital < 0 {
		return fmt.Errorf("capital cannot be negative")
	}
	if p.AvailableCapital > p.TotalCapital {
		return fmt.Errorf("available capital cannot exceed total capital")
	}
	switch p.RiskTolerance {
	case domain.RiskConservative, domain.RiskModerate, domain.RiskAggressive:
	case "":
		p.RiskTolerance = domain.RiskModerate
	default:
		return fmt.Errorf("unknown risk tolerance: %s", p.RiskTolerance)
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	return s.repo.Save(ctx, p)
}

// OpenPosition records a fill at the current market price.
func (s *ProfileService) OpenPosition(ctx context.Context, userID int64, symbol string, shares int) error {
	ctx, span := s.tracer.Start(ctx, "profile-service.open-position")
	defer span.End()

	if shares < 1 {
		return fmt.Errorf("shares must be positive")
	}
	price, err := s.market.CurrentPrice(ctx, symbol)
	if err != nil {
		return fmt.Errorf("price for %s: %w", symbol, err)
	}
	return s.repo.OpenPosition(ctx, userID, symbol, shares, price)
}

// ClosePosition closes a holding at the current market price.
func (s *ProfileService) ClosePosition(ctx context.Context, userID, positionID int64, symbol string) error {
	ctx, span := s.tracer.Start(ctx, "profile-service.close-position")
	defer span.End()

	price, err := s.market.CurrentPrice(ctx, symbol)
	if err != nil {
		return fmt.Errorf("price for %s: %w", symbol, err)
	}
	return s.repo.ClosePosition(ctx, userID, positionID, price)
}

// GetPositions lists the user's open holdings marked to market.
func (s *ProfileService) GetPositions(ctx context.Context, userID int64) ([]domain.UserPosition, error) {
	ctx, span := s.tracer.Start(ctx, "profile-service.get-positions")
	defer span.End()

	positions, err := s.repo.GetOpenPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		price, err := s.market.CurrentPrice(ctx, positions[i].Symbol)
		if err != nil {
			continue
		}
		positions[i].CurrentPrice = price
	}
	return positions, nil
}
