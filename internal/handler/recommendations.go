package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// GetRecommendations godoc
// @Summary      Get trade recommendations
// @Description  Builds sized recommendations for the user from all active signals
// @Tags         recommendations
// @Produce      json
// @Param        user_id   query  int     true   "User id"
// @Param        strategy  query  string  false  "Strategy filter (day_trading, long_term)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/recommendations [get]
func (h *Handler) GetRecommendations(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-recommendations")
	defer span.End()

	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid user_id query parameter required"})
		return
	}
	span.SetAttributes(attribute.Int64("user_id", userID))

	strategy := domain.StrategyType(c.Query("strategy"))
	recs, err := h.recommendationService.ForUser(ctx, userID, strategy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":           len(recs),
		"recommendations": recs,
	})
}

// GetMarketOverview godoc
// @Summary      Get market overview
// @Description  Summarizes the active signal landscape and top opportunities
// @Tags         recommendations
// @Produce      json
// @Param        user_id  query  int  true  "User id"
// @Success      200  {object}  domain.MarketOverview
// @Failure      400  {object}  map[string]string
// @Router       /api/recommendations/overview [get]
func (h *Handler) GetMarketOverview(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-market-overview")
	defer span.End()

	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid user_id query parameter required"})
		return
	}

	overview, err := h.recommendationService.Overview(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, overview)
}

// GetInstrumentBreakdown godoc
// @Summary      Get instrument consensus breakdown
// @Description  Returns the long/short split of top traders holding the instrument
// @Tags         recommendations
// @Produce      json
// @Param        instrument  path  string  true  "Instrument symbol"
// @Success      200  {object}  domain.ConsensusBreakdown
// @Failure      404  {object}  map[string]string
// @Router       /api/analysis/{instrument} [get]
func (h *Handler) GetInstrumentBreakdown(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-instrument-breakdown")
	defer span.End()

	instrument := strings.ToUpper(strings.TrimSpace(c.Param("instrument")))
	if instrument == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "instrument required"})
		return
	}
	span.SetAttributes(attribute.String("instrument", instrument))

	breakdown, err := h.recommendationService.InstrumentBreakdown(ctx, instrument)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if breakdown == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not enough traders hold " + instrument})
		return
	}

	c.JSON(http.StatusOK, breakdown)
}
