package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
	"github.com/ppcadvisor/bullaware-monitor/internal/service"
)

// OutcomeScorer estimates the probability that a signal resolves profitably.
// Nil when the ML layer is disabled.
type OutcomeScorer interface {
	Score(ctx context.Context, sig domain.Signal) (float64, error)
}

type Handler struct {
	tracer                trace.Tracer
	traderService         *service.TraderService
	signalService         *service.SignalService
	recommendationService *service.RecommendationService
	profileService        *service.ProfileService
	outcomeScorer         OutcomeScorer
}

func New(
	tracer trace.Tracer,
	traderService *service.TraderService,
	signalService *service.SignalService,
	recommendationService *service.RecommendationService,
	profileService *service.ProfileService,
	outcomeScorer OutcomeScorer,
) *Handler {
	return &Handler{
		tracer:                tracer,
		traderService:         traderService,
		signalService:         signalService,
		recommendationService: recommendationService,
		profileService:        profileService,
		outcomeScorer:         outcomeScorer,
	}
}

// RegisterRoutes mounts all endpoints. The /api group is protected by
// X-API-Key auth when apiKey is non-empty; /health stays open.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(apiKey))

	api.GET("/traders", h.GetTopTraders)
	api.GET("/traders/:username", h.GetTrader)
	api.POST("/traders/refresh", h.RefreshTraders)

	api.GET("/signals", h.GetActiveSignals)
	api.GET("/signals/:id", h.GetSignal)
	api.GET("/signals/:id/outcome", h.GetSignalOutcome)
	api.POST("/signals/generate", h.GenerateSignals)

	api.GET("/recommendations", h.GetRecommendations)
	api.GET("/recommendations/overview", h.GetMarketOverview)
	api.GET("/analysis/:instrument", h.GetInstrumentBreakdown)

	api.GET("/profile/:user_id", h.GetProfile)
	api.PUT("/profile/:user_id", h.UpdateProfile)
	api.GET("/profile/:user_id/positions", h.GetPositions)
	api.POST("/profile/:user_id/positions", h.OpenPosition)
	api.POST("/profile/:user_id/positions/:position_id/close", h.ClosePosition)
}
