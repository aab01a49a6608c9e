package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lingoreader/landing-go/internal/application/services"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
	"github.com/lingoreader/landing-go/internal/infrastructure/security"
	"github.com/lingoreader/landing-go/internal/presentation/http/middleware"
)

// AuthHandlers contains the visitor identity HTTP handlers
type AuthHandlers struct {
	visitorService *services.VisitorService
	session        middleware.SessionConfig
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// EmailSignupRequest completes an email registration.
type EmailSignupRequest struct {
	Email string `json:"email" binding:"required"`
	Token string `json:"token" binding:"required"`
}

// TokenRequest hands an auth token to the session.
type TokenRequest struct {
	Token string `json:"token" binding:"required"`
	// Replace marks an explicit new login that may overwrite a held token.
	Replace bool `json:"replace,omitempty"`
}

// NewAuthHandlers creates auth handlers with injected dependencies
func NewAuthHandlers(visitorService *services.VisitorService, session middleware.SessionConfig, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AuthHandlers {
	return &AuthHandlers{
		visitorService: visitorService,
		session:        session,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// PostEmailSignup handles POST /api/v1/auth/email
func (h *AuthHandlers) PostEmailSignup(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	marker := h.perfTracker.StartOperation("auth:email_signup", sessionID)
	defer marker.Complete()

	var req EmailSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and token are required"})
		return
	}

	profile, err := h.visitorService.CompleteEmailSignup(c.Request.Context(), sessionID, req.Email, req.Token)
	if err != nil {
		marker.SetError(err)
		respondError(c, err)
		return
	}
	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"profile": profile.View()})
}

// PostToken handles POST /api/v1/auth/token
func (h *AuthHandlers) PostToken(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	set := h.visitorService.SetToken
	if req.Replace {
		set = h.visitorService.ReplaceToken
	}
	profile, err := set(c.Request.Context(), sessionID, req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile.View()})
}

// PostLogout handles POST /api/v1/auth/logout - drops the profile and rotates the session
func (h *AuthHandlers) PostLogout(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	if err := h.visitorService.Logout(c.Request.Context(), sessionID); err != nil {
		h.logger.LogError(logging.ChannelAuth, "auth:logout", err, nil)
		respondError(c, err)
		return
	}

	if err := middleware.IssueSessionCookie(c, h.session, security.GenerateULID()); err != nil {
		middleware.ClearSessionCookie(c, h.session)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
