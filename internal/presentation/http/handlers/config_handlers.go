package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lingoreader/landing-go/internal/domain/referral"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/presentation/http/middleware"
	"github.com/lingoreader/landing-go/pkg/config"
)

// ConfigHandlers exposes the public site configuration
type ConfigHandlers struct {
	site         config.Endpoints
	cookieSecure bool
}

// PublicConfig is what the landing pages need to render links.
type PublicConfig struct {
	config.Endpoints
	SignupURL          string                     `json:"signupUrl"`
	Languages          []visitor.Language         `json:"languages"`
	Levels             []visitor.ProficiencyLevel `json:"levels"`
	ProcessingDuration int64                      `json:"processingDurationMs"`
	ConfirmDuration    int64                      `json:"confirmationDurationMs"`
}

// NewConfigHandlers creates config handlers
func NewConfigHandlers(site config.Endpoints, cookieSecure bool) *ConfigHandlers {
	return &ConfigHandlers{site: site, cookieSecure: cookieSecure}
}

// GetPublicConfig handles GET /api/v1/config/public
func (h *ConfigHandlers) GetPublicConfig(c *gin.Context) {
	store := middleware.NewCookieStorage(c, h.cookieSecure)
	c.JSON(http.StatusOK, PublicConfig{
		Endpoints:          h.site,
		SignupURL:          referral.AddToURL(h.site.AppURL+"/signup", store),
		Languages:          visitor.SupportedLanguages,
		Levels:             visitor.Levels,
		ProcessingDuration: config.WidgetProcessingDuration.Milliseconds(),
		ConfirmDuration:    config.WidgetConfirmationDuration.Milliseconds(),
	})
}
