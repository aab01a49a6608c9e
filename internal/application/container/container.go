// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lingoreader/landing-go/internal/application/services"
	"github.com/lingoreader/landing-go/internal/domain/analytics"
	"github.com/lingoreader/landing-go/internal/domain/user"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/infrastructure/backend"
	"github.com/lingoreader/landing-go/internal/infrastructure/email"
	"github.com/lingoreader/landing-go/internal/infrastructure/messaging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
	"github.com/lingoreader/landing-go/internal/infrastructure/persistence/database"
	"github.com/lingoreader/landing-go/pkg/config"
)

// Infrastructure lists the adapters the services are built on.
type Infrastructure struct {
	DB           *database.DB
	VisitorStore visitor.Store
	Visits       user.VisitRepository
	Attempts     user.CheckoutAttemptRepository
	Subscribers  user.SubscriberRepository
	Backend      backend.API
	Analytics    analytics.Sink
	Mailer       email.Service
	Registry     *prometheus.Registry
}

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Visitor flow services
	VisitorService    *services.VisitorService
	CheckoutService   *services.CheckoutService
	WidgetService     *services.WidgetService
	DemoService       *services.DemoService
	NewsletterService *services.NewsletterService
	LiveUpdateService *services.LiveUpdateService

	// Infrastructure Dependencies
	DB           *database.DB
	Broadcaster  *messaging.SSEBroadcaster
	Visits       user.VisitRepository
	Analytics    analytics.Sink
	Registry     *prometheus.Registry
	Site         config.Endpoints
	Logger       *logging.ChanneledLogger
	PerfTracker  *performance.Tracker
	VisitorStore visitor.Store
}

// NewContainer creates and wires all singleton services
func NewContainer(logger *logging.ChanneledLogger, perfTracker *performance.Tracker, infra Infrastructure) *Container {
	sink := infra.Analytics
	if sink == nil {
		sink = analytics.Nop
	}
	registry := infra.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	broadcaster := messaging.NewSSEBroadcaster(config.MaxSSEConnections, logger)
	visitorService := services.NewVisitorService(infra.VisitorStore, infra.Visits, sink, logger, perfTracker)
	checkoutService := services.NewCheckoutService(visitorService, infra.Backend, infra.Attempts, sink, services.CheckoutConfig{
		AppURL:      config.Site.AppURL,
		PacingDelay: config.CheckoutPacingDelay,
	}, logger, perfTracker)

	liveUpdates := services.NewLiveUpdateService(broadcaster)
	liveUpdates.Attach(visitorService, checkoutService)

	return &Container{
		VisitorService:  visitorService,
		CheckoutService: checkoutService,
		WidgetService: services.NewWidgetService(visitorService, broadcaster, services.WidgetConfig{
			ProcessingDuration:   config.WidgetProcessingDuration,
			ConfirmationDuration: config.WidgetConfirmationDuration,
		}, logger),
		DemoService: services.NewDemoService(visitorService, infra.Backend, sink, logger, perfTracker),
		NewsletterService: services.NewNewsletterService(infra.Subscribers, visitorService, infra.Mailer, sink, services.NewsletterConfig{
			SiteName:   config.Site.SiteName,
			LandingURL: config.Site.LandingURL,
			AppURL:     config.Site.AppURL,
		}, logger, perfTracker),
		LiveUpdateService: liveUpdates,

		DB:           infra.DB,
		Broadcaster:  broadcaster,
		Visits:       infra.Visits,
		Analytics:    sink,
		Registry:     registry,
		Site:         config.Site,
		Logger:       logger,
		PerfTracker:  perfTracker,
		VisitorStore: infra.VisitorStore,
	}
}
