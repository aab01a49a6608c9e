package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lingoreader/landing-go/internal/application/services"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/presentation/http/middleware"
)

// NewsletterHandlers exposes newsletter signup
type NewsletterHandlers struct {
	newsletterService *services.NewsletterService
	cookieSecure      bool
	logger            *logging.ChanneledLogger
}

// NewsletterRequest is a newsletter signup form.
type NewsletterRequest struct {
	Email string `json:"email" binding:"required"`
}

// NewNewsletterHandlers creates newsletter handlers with injected dependencies
func NewNewsletterHandlers(newsletterService *services.NewsletterService, cookieSecure bool, logger *logging.ChanneledLogger) *NewsletterHandlers {
	return &NewsletterHandlers{newsletterService: newsletterService, cookieSecure: cookieSecure, logger: logger}
}

// PostSubscribe handles POST /api/v1/newsletter
func (h *NewsletterHandlers) PostSubscribe(c *gin.Context) {
	var req NewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	sessionID, _ := middleware.GetSessionID(c)
	res, err := h.newsletterService.Subscribe(c.Request.Context(), services.SubscribeRequest{
		SessionID: sessionID,
		Email:     req.Email,
		Storage:   middleware.NewCookieStorage(c, h.cookieSecure),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"success": true, "alreadySubscribed": !res.Created})
}
