package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lingoreader/landing-go/internal/domain/user"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
)

// Pinger is satisfied by *sql.DB and the database wrapper.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandlers reports liveness, readiness and operational stats
type HealthHandlers struct {
	db          Pinger
	visits      user.VisitRepository
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewHealthHandlers creates health handlers; db and visits may be nil.
func NewHealthHandlers(db Pinger, visits user.VisitRepository, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *HealthHandlers {
	return &HealthHandlers{db: db, visits: visits, logger: logger, perfTracker: perfTracker}
}

// GetHealth handles GET /health
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// GetReady handles GET /ready
func (h *HealthHandlers) GetReady(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.LogError(logging.ChannelDatabase, "health:ping", err, nil)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// GetPerformance handles GET /api/v1/stats/performance
func (h *HealthHandlers) GetPerformance(c *gin.Context) {
	c.JSON(http.StatusOK, h.perfTracker.TakeSnapshot(15*time.Minute))
}

// GetReferralStats handles GET /api/v1/stats/referrals?days=N
func (h *HealthHandlers) GetReferralStats(c *gin.Context) {
	if h.visits == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "visit log not configured"})
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	counts, err := h.visits.CountBySource(c.Request.Context(), since)
	if err != nil {
		h.logger.LogError(logging.ChannelDatabase, "stats:referrals", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since.Format(time.RFC3339), "sources": counts})
}
