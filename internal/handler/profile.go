package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

// GetProfile godoc
// @Summary      Get user profile
// @Description  Returns the user's capital and risk settings, seeding defaults on first access
// @Tags         profile
// @Produce      json
// @Param        user_id  path  int  true  "User id"
// @Success      200  {object}  domain.UserProfile
// @Failure      400  {object}  map[string]string
// @Router       /api/profile/{user_id} [get]
func (h *Handler) GetProfile(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-profile")
	defer span.End()

	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("user_id", userID))

	profile, err := h.profileService.GetProfile(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateProfile godoc
// @Summary      Update user profile
// @Description  Stores capital, currency, and risk tolerance settings
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        user_id  path  int                 true  "User id"
// @Param        profile  body  domain.UserProfile  true  "Profile settings"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/profile/{user_id} [put]
func (h *Handler) UpdateProfile(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.update-profile")
	defer span.End()

	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var profile domain.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile payload: " + err.Error()})
		return
	}
	profile.UserID = userID

	if err := h.profileService.UpdateProfile(ctx, profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// GetPositions godoc
// @Summary      Get open positions
// @Description  Lists the user's open paper positions marked to market
// @Tags         profile
// @Produce      json
// @Param        user_id  path  int  true  "User id"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/profile/{user_id}/positions [get]
func (h *Handler) GetPositions(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-positions")
	defer span.End()

	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	positions, err := h.profileService.GetPositions(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(positions),
		"positions": positions,
	})
}

type openPositionRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Shares int    `json:"shares" binding:"required"`
}

// OpenPosition godoc
// @Summary      Open a paper position
// @Description  Buys shares at the current market price from available capital
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        user_id  path  int                  true  "User id"
// @Param        order    body  openPositionRequest  true  "Order"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/profile/{user_id}/positions [post]
func (h *Handler) OpenPosition(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.open-position")
	defer span.End()

	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req openPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order payload: " + err.Error()})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	span.SetAttributes(attribute.String("symbol", symbol))

	if err := h.profileService.OpenPosition(ctx, userID, symbol, req.Shares); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "opened"})
}

type closePositionRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

// ClosePosition godoc
// @Summary      Close a paper position
// @Description  Sells the position at the current market price and credits the proceeds
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        user_id      path  int                   true  "User id"
// @Param        position_id  path  int                   true  "Position id"
// @Param        order        body  closePositionRequest  true  "Order"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/profile/{user_id}/positions/{position_id}/close [post]
func (h *Handler) ClosePosition(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.close-position")
	defer span.End()

	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	positionID, err := strconv.ParseInt(c.Param("position_id"), 10, 64)
	if err != nil || positionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position id"})
		return
	}

	var req closePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order payload: " + err.Error()})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	if err := h.profileService.ClosePosition(ctx, userID, positionID, symbol); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}
