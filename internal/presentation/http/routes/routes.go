// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lingoreader/landing-go/internal/application/container"
	"github.com/lingoreader/landing-go/internal/presentation/http/handlers"
	"github.com/lingoreader/landing-go/internal/presentation/http/middleware"
	"github.com/lingoreader/landing-go/pkg/config"
)

const metricsNamespace = "lingo_landing"

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
// Background maintenance started here stops with ctx.
func SetupRoutes(ctx context.Context, container *container.Container) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.CORSMiddleware(config.AllowedOrigins))

	if config.MetricsEnabled {
		httpMetrics, err := middleware.NewHTTPMetrics(metricsNamespace, container.Registry)
		if err != nil {
			container.Logger.System().Error("HTTP metrics disabled", "error", err)
		} else {
			r.Use(httpMetrics.Middleware())
		}
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(container.Registry, promhttp.HandlerOpts{})))
	}

	sessionConfig := middleware.SessionConfig{
		CookieName: config.SessionCookieName,
		Secret:     config.SessionSecret,
		TTL:        config.SessionTTL,
		Secure:     config.CookieSecure,
	}

	// Each rate-limited route keeps its own buckets.
	rateLimited := func() gin.HandlerFunc {
		limiter := middleware.NewRateLimiter(config.CheckoutRatePerMinute, config.CheckoutRateBurst, container.Logger)
		go limiter.StartCleanup(ctx, 5*time.Minute)
		return limiter.Middleware()
	}

	var db handlers.Pinger
	if container.DB != nil {
		db = container.DB
	}

	// Initialize handlers
	healthHandlers := handlers.NewHealthHandlers(db, container.Visits, container.Logger, container.PerfTracker)
	configHandlers := handlers.NewConfigHandlers(container.Site, config.CookieSecure)
	visitHandlers := handlers.NewVisitHandlers(container.VisitorService, container.Broadcaster, config.CookieSecure, config.SSEHeartbeatInterval, container.Logger, container.PerfTracker)
	checkoutHandlers := handlers.NewCheckoutHandlers(container.CheckoutService, config.CheckoutRequestTimeout, container.Logger, container.PerfTracker)
	widgetHandlers := handlers.NewWidgetHandlers(container.WidgetService, config.AllowedOrigins, container.Logger)
	authHandlers := handlers.NewAuthHandlers(container.VisitorService, sessionConfig, container.Logger, container.PerfTracker)
	newsletterHandlers := handlers.NewNewsletterHandlers(container.NewsletterService, config.CookieSecure, container.Logger)
	demoHandlers := handlers.NewDemoHandlers(container.DemoService, config.CookieSecure, container.Logger)

	r.GET("/health", healthHandlers.GetHealth)
	r.GET("/ready", healthHandlers.GetReady)

	api := r.Group("/api/v1")
	api.Use(middleware.OriginValidationMiddleware(config.AllowedOrigins))
	api.Use(middleware.SessionMiddleware(sessionConfig, container.Logger))
	{
		api.GET("/config/public", configHandlers.GetPublicConfig)

		visitorGroup := api.Group("/visitor")
		{
			visitorGroup.POST("/visit", visitHandlers.PostVisit)
			visitorGroup.GET("", visitHandlers.GetProfile)
			visitorGroup.PATCH("", visitHandlers.UpdateProfile)
			visitorGroup.POST("/selection", visitHandlers.PostSelection)
			visitorGroup.GET("/events", visitHandlers.GetEvents)
		}

		api.GET("/widget/language", widgetHandlers.GetLanguageWidget)

		checkoutGroup := api.Group("/checkout")
		{
			checkoutGroup.POST("/trial", rateLimited(), checkoutHandlers.PostTrial)
			checkoutGroup.GET("/status", checkoutHandlers.GetStatus)
		}

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/email", authHandlers.PostEmailSignup)
			authGroup.POST("/token", authHandlers.PostToken)
			authGroup.POST("/logout", authHandlers.PostLogout)
		}

		api.POST("/newsletter", rateLimited(), newsletterHandlers.PostSubscribe)
		api.POST("/demo", rateLimited(), demoHandlers.PostDemo)

		statsGroup := api.Group("/stats")
		{
			statsGroup.GET("/referrals", healthHandlers.GetReferralStats)
			statsGroup.GET("/performance", healthHandlers.GetPerformance)
		}
	}

	return r
}
