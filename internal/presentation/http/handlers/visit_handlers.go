package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lingoreader/landing-go/internal/application/services"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/domain/widget"
	"github.com/lingoreader/landing-go/internal/infrastructure/messaging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
	"github.com/lingoreader/landing-go/internal/presentation/http/middleware"
)

// VisitHandlers contains the visitor profile HTTP handlers
type VisitHandlers struct {
	visitorService    *services.VisitorService
	broadcaster       messaging.Broadcaster
	cookieSecure      bool
	heartbeatInterval time.Duration
	logger            *logging.ChanneledLogger
	perfTracker       *performance.Tracker
}

// VisitRequest is posted on landing page mount.
type VisitRequest struct {
	PageURL  string `json:"pageUrl"`
	Referrer string `json:"referrer,omitempty"`
	// NativeLanguage seeds the profile of a new visitor instead of Accept-Language.
	NativeLanguage string `json:"nativeLanguage,omitempty"`
}

// ProfileUpdateRequest carries any subset of the visitor setters.
type ProfileUpdateRequest struct {
	NativeLanguage      *string `json:"nativeLanguage,omitempty"`
	TargetLanguage      *string `json:"targetLanguage,omitempty"`
	TargetLevel         *string `json:"targetLevel,omitempty"`
	SignupChannel       *string `json:"signupChannel,omitempty"`
	Email               *string `json:"email,omitempty"`
	HasSelectedLanguage *bool   `json:"hasSelectedLanguage,omitempty"`
}

// NewVisitHandlers creates visit handlers with injected dependencies
func NewVisitHandlers(visitorService *services.VisitorService, broadcaster messaging.Broadcaster, cookieSecure bool, heartbeatInterval time.Duration, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *VisitHandlers {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &VisitHandlers{
		visitorService:    visitorService,
		broadcaster:       broadcaster,
		cookieSecure:      cookieSecure,
		heartbeatInterval: heartbeatInterval,
		logger:            logger,
		perfTracker:       perfTracker,
	}
}

// PostVisit handles POST /api/v1/visitor/visit - captures the referral and bootstraps the profile
func (h *VisitHandlers) PostVisit(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	marker := h.perfTracker.StartOperation("visitor:post_visit", sessionID)
	defer marker.Complete()

	var req VisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Visitor().Error("Visit request JSON binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	var pageURL *url.URL
	if req.PageURL != "" {
		parsed, err := url.Parse(req.PageURL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pageUrl"})
			return
		}
		pageURL = parsed
	}
	referrer := req.Referrer
	if referrer == "" {
		referrer = c.Request.Referer()
	}

	profile, err := h.visitorService.Bootstrap(c.Request.Context(), services.BootstrapRequest{
		SessionID:             sessionID,
		PageURL:               pageURL,
		AcceptLanguage:        c.GetHeader("Accept-Language"),
		Referrer:              referrer,
		UserAgent:             c.Request.UserAgent(),
		DefaultNativeLanguage: req.NativeLanguage,
		Storage:               middleware.NewCookieStorage(c, h.cookieSecure),
	})
	if err != nil {
		marker.SetError(err)
		h.logger.LogError(logging.ChannelVisitor, "visitor:bootstrap", err, nil)
		respondError(c, err)
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"profile": profile.View()})
}

// GetProfile handles GET /api/v1/visitor
func (h *VisitHandlers) GetProfile(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	profile, err := h.visitorService.GetOrCreate(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile.View()})
}

// UpdateProfile handles PATCH /api/v1/visitor - applies each provided field in order
func (h *VisitHandlers) UpdateProfile(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	marker := h.perfTracker.StartOperation("visitor:update_profile", sessionID)
	defer marker.Complete()

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	ctx := c.Request.Context()
	var steps []func() (*visitor.Profile, error)
	if req.NativeLanguage != nil {
		steps = append(steps, func() (*visitor.Profile, error) { return h.visitorService.SetNativeLanguage(ctx, sessionID, *req.NativeLanguage) })
	}
	if req.TargetLanguage != nil {
		steps = append(steps, func() (*visitor.Profile, error) { return h.visitorService.SetSelectedLanguage(ctx, sessionID, *req.TargetLanguage) })
	}
	if req.TargetLevel != nil {
		steps = append(steps, func() (*visitor.Profile, error) { return h.visitorService.SetTargetLevel(ctx, sessionID, *req.TargetLevel) })
	}
	if req.SignupChannel != nil {
		channel := visitor.ParseSignupChannel(*req.SignupChannel)
		steps = append(steps, func() (*visitor.Profile, error) { return h.visitorService.SetSignupChannel(ctx, sessionID, channel) })
	}
	if req.Email != nil {
		steps = append(steps, func() (*visitor.Profile, error) { return h.visitorService.SetEmail(ctx, sessionID, *req.Email) })
	}
	if req.HasSelectedLanguage != nil {
		steps = append(steps, func() (*visitor.Profile, error) {
			return h.visitorService.SetHasSelectedLanguage(ctx, sessionID, *req.HasSelectedLanguage)
		})
	}
	if len(steps) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	var profile *visitor.Profile
	for _, step := range steps {
		var err error
		if profile, err = step(); err != nil {
			marker.SetError(err)
			respondError(c, err)
			return
		}
	}

	if req.NativeLanguage != nil {
		middleware.NewCookieStorage(c, h.cookieSecure).Set(visitor.PreferenceKey, string(profile.NativeLanguage), visitor.PreferenceRetention)
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"profile": profile.View()})
}

// PostSelection handles POST /api/v1/visitor/selection - the non-WebSocket widget fallback
func (h *VisitHandlers) PostSelection(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	var sel widget.Selection
	if err := c.ShouldBindJSON(&sel); err != nil || sel.Language == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language is required"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.visitorService.ApplySelection(ctx, sessionID, sel); err != nil {
		respondError(c, err)
		return
	}
	profile, err := h.visitorService.SetHasSelectedLanguage(ctx, sessionID, true)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile.View(), "next": services.CheckoutPath})
}

// GetEvents handles GET /api/v1/visitor/events - streams profile and checkout changes
func (h *VisitHandlers) GetEvents(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	ch, err := h.broadcaster.AddClientWithSession(sessionID)
	if err != nil {
		if errors.Is(err, messaging.ErrTooManyConnections) {
			h.logger.SSE().Warn("SSE connection limit reached", "sessionId", logging.SanitizeSessionID(sessionID))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "SSE connection limit reached. Please try again later."})
			return
		}
		respondError(c, err)
		return
	}
	defer h.broadcaster.RemoveClientWithSession(ch, sessionID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"timestamp\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
	c.Writer.Flush()
	h.logger.SSE().Info("SSE connection established", "sessionId", logging.SanitizeSessionID(sessionID))

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	clientCtx := c.Request.Context()
	for {
		select {
		case <-clientCtx.Done():
			h.logger.SSE().Info("SSE client disconnected", "sessionId", logging.SanitizeSessionID(sessionID))
			return
		case message, ok := <-ch:
			if !ok {
				return
			}
			if _, err := c.Writer.WriteString(message); err != nil {
				h.logger.SSE().Error("SSE write failed", "error", err.Error())
				return
			}
			c.Writer.Flush()
		case <-ticker.C:
			if _, err := c.Writer.WriteString(": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
