package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/security"
)

const sessionIDKey = "sessionId"

// SessionConfig configures the signed visitor session cookie.
type SessionConfig struct {
	CookieName string
	Secret     string
	TTL        time.Duration
	Secure     bool
}

// SessionMiddleware resolves the visitor session from its signed cookie,
// issuing a fresh session when the cookie is missing or invalid.
func SessionMiddleware(cfg SessionConfig, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sessionID string
		if raw, err := c.Cookie(cfg.CookieName); err == nil && raw != "" {
			sid, err := security.ValidateSessionToken(raw, cfg.Secret)
			if err == nil {
				sessionID = sid
			} else {
				logger.Auth().Debug("Discarding session cookie", "error", err)
			}
		}

		if sessionID == "" {
			sessionID = security.GenerateULID()
			if err := IssueSessionCookie(c, cfg, sessionID); err != nil {
				logger.LogError(logging.ChannelAuth, "session:issue", err, nil)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
				return
			}
			logger.Auth().Debug("Issued new visitor session", "sessionId", logging.SanitizeSessionID(sessionID))
		}

		c.Set(sessionIDKey, sessionID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logging.SessionIDKey, sessionID))
		c.Next()
	}
}

// IssueSessionCookie signs sessionID into the session cookie.
func IssueSessionCookie(c *gin.Context, cfg SessionConfig, sessionID string) error {
	token, err := security.GenerateSessionToken(sessionID, cfg.Secret, cfg.TTL)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.CookieName, token, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)
	return nil
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *gin.Context, cfg SessionConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.CookieName, "", -1, "/", "", cfg.Secure, true)
}

// GetSessionID returns the session resolved by SessionMiddleware.
func GetSessionID(c *gin.Context) (string, bool) {
	sid := c.GetString(sessionIDKey)
	return sid, sid != ""
}
