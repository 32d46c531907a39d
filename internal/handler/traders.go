package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// GetTopTraders godoc
// @Summary      Get ranked traders
// @Description  Returns the top-ranked traders of one type with their open positions
// @Tags         traders
// @Produce      json
// @Param        type   query  string  false  "Trader type (day_trader, long_term)"  default(long_term)
// @Param        limit  query  int     false  "Number of traders (default 20, max 100)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/traders [get]
func (h *Handler) GetTopTraders(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-top-traders")
	defer span.End()

	traderType := domain.TraderType(c.DefaultQuery("type", string(domain.TraderTypeLongTerm)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	span.SetAttributes(attribute.String("trader_type", string(traderType)))

	traders, err := h.traderService.GetTopTraders(ctx, traderType, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trader_type": traderType,
		"count":       len(traders),
		"traders":     traders,
	})
}

// GetTrader godoc
// @Summary      Get one trader
// @Description  Returns a trader's score, rank, metrics, and open positions
// @Tags         traders
// @Produce      json
// @Param        username  path  string  true  "Trader username"
// @Success      200  {object}  domain.ScoredTrader
// @Failure      404  {object}  map[string]string
// @Router       /api/traders/{username} [get]
func (h *Handler) GetTrader(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-trader")
	defer span.End()

	username := c.Param("username")
	span.SetAttributes(attribute.String("username", username))

	trader, err := h.traderService.GetTrader(ctx, username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if trader == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trader not found: " + username})
		return
	}

	c.JSON(http.StatusOK, trader)
}

// RefreshTraders godoc
// @Summary      Refresh the trader cohort
// @Description  Fetches, rescores, and re-ranks the top traders from the upstream API
// @Tags         traders
// @Produce      json
// @Param        limit  query  int  false  "Roster size to fetch (default 50)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Failure      502  {object}  map[string]string
// @Router       /api/traders/refresh [post]
func (h *Handler) RefreshTraders(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.refresh-traders")
	defer span.End()

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	n, err := h.traderService.RefreshTraders(ctx, limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"refreshed": n})
}
