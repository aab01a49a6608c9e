package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lingoreader/landing-go/internal/application/services"
	"github.com/lingoreader/landing-go/internal/domain/checkout"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
)

// CheckoutHandlers exposes the trial checkout orchestrator
type CheckoutHandlers struct {
	checkoutService *services.CheckoutService
	timeout         time.Duration
	logger          *logging.ChanneledLogger
	perfTracker     *performance.Tracker
}

// CheckoutRequest carries the page's URL fragment verbatim.
type CheckoutRequest struct {
	Fragment string `json:"fragment"`
}

// NewCheckoutHandlers creates checkout handlers with injected dependencies
func NewCheckoutHandlers(checkoutService *services.CheckoutService, timeout time.Duration, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *CheckoutHandlers {
	return &CheckoutHandlers{
		checkoutService: checkoutService,
		timeout:         timeout,
		logger:          logger,
		perfTracker:     perfTracker,
	}
}

// PostTrial handles POST /api/v1/checkout/trial. Every orchestrator result,
// including errors, is answered 200 with the outcome body.
func (h *CheckoutHandlers) PostTrial(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
			return
		}
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	outcome, err := h.checkoutService.Run(ctx, sessionID, req.Fragment)
	if err != nil {
		if errors.Is(err, services.ErrCheckoutInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": checkout.StateProcessing})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// GetStatus handles GET /api/v1/checkout/status
func (h *CheckoutHandlers) GetStatus(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	state := checkout.StateIdle
	if h.checkoutService.IsProcessing(sessionID) {
		state = checkout.StateProcessing
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
