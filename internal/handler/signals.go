package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// GetActiveSignals godoc
// @Summary      Get active trading signals
// @Description  Returns live BUY/SELL signals, best confidence first
// @Tags         signals
// @Produce      json
// @Param        strategy  query  string  false  "Strategy filter (day_trading, long_term)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/signals [get]
func (h *Handler) GetActiveSignals(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-active-signals")
	defer span.End()

	strategy := domain.StrategyType(c.Query("strategy"))
	signals, err := h.signalService.GetActiveSignals(ctx, strategy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(signals),
		"signals": signals,
	})
}

// GetSignal godoc
// @Summary      Get one signal
// @Tags         signals
// @Produce      json
// @Param        id  path  int  true  "Signal id"
// @Success      200  {object}  domain.Signal
// @Failure      404  {object}  map[string]string
// @Router       /api/signals/{id} [get]
func (h *Handler) GetSignal(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signal")
	defer span.End()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signal id"})
		return
	}
	span.SetAttributes(attribute.Int64("signal_id", id))

	sig, err := h.signalService.GetSignal(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sig == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "signal not found"})
		return
	}

	c.JSON(http.StatusOK, sig)
}

// GetSignalOutcome godoc
// @Summary      Predicted signal outcome
// @Description  Model-estimated probability that the signal resolves profitably
// @Tags         signals
// @Produce      json
// @Param        id  path  int  true  "Signal id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/signals/{id}/outcome [get]
func (h *Handler) GetSignalOutcome(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signal-outcome")
	defer span.End()

	if h.outcomeScorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "outcome model is not enabled"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signal id"})
		return
	}
	span.SetAttributes(attribute.Int64("signal_id", id))

	sig, err := h.signalService.GetSignal(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sig == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "signal not found"})
		return
	}

	prob, err := h.outcomeScorer.Score(ctx, *sig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signal_id":          id,
		"profit_probability": prob,
	})
}

// GenerateSignals godoc
// @Summary      Regenerate signals
// @Description  Recomputes consensus and signals from the stored trader cohort
// @Tags         signals
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/signals/generate [post]
func (h *Handler) GenerateSignals(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.generate-signals")
	defer span.End()

	signals, err := h.signalService.GenerateSignals(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"generated": len(signals),
		"signals":   signals,
	})
}
