package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lingoreader/landing-go/internal/application/services"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/presentation/http/middleware"
)

// DemoHandlers exposes demo account signup
type DemoHandlers struct {
	demoService  *services.DemoService
	cookieSecure bool
	logger       *logging.ChanneledLogger
}

// DemoSignupRequest chooses the demo language pair.
type DemoSignupRequest struct {
	NativeLanguage string `json:"nativeLanguage" binding:"required"`
	TargetLanguage string `json:"targetLanguage" binding:"required"`
	Level          string `json:"level" binding:"required"`
}

// NewDemoHandlers creates demo handlers with injected dependencies
func NewDemoHandlers(demoService *services.DemoService, cookieSecure bool, logger *logging.ChanneledLogger) *DemoHandlers {
	return &DemoHandlers{demoService: demoService, cookieSecure: cookieSecure, logger: logger}
}

// PostDemo handles POST /api/v1/demo
func (h *DemoHandlers) PostDemo(c *gin.Context) {
	var req DemoSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nativeLanguage, targetLanguage and level are required"})
		return
	}

	sessionID, _ := middleware.GetSessionID(c)
	res, err := h.demoService.Signup(c.Request.Context(), services.DemoRequest{
		SessionID:      sessionID,
		NativeLanguage: req.NativeLanguage,
		TargetLanguage: req.TargetLanguage,
		Level:          req.Level,
		Storage:        middleware.NewCookieStorage(c, h.cookieSecure),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "redirectUrl": res.RedirectURL})
}
