// Package startup prepares the application server
package startup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/lingoreader/landing-go/internal/application/container"
	domainanalytics "github.com/lingoreader/landing-go/internal/domain/analytics"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/infrastructure/analytics"
	"github.com/lingoreader/landing-go/internal/infrastructure/backend"
	"github.com/lingoreader/landing-go/internal/infrastructure/caching/stores"
	schema "github.com/lingoreader/landing-go/internal/infrastructure/database"
	"github.com/lingoreader/landing-go/internal/infrastructure/email"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
	"github.com/lingoreader/landing-go/internal/infrastructure/persistence/database"
	persistence "github.com/lingoreader/landing-go/internal/infrastructure/persistence/user"
	"github.com/lingoreader/landing-go/internal/presentation/http/server"
	"github.com/lingoreader/landing-go/pkg/config"
)

const metricsNamespace = "lingo_landing"

// Initialize performs the complete startup sequence and blocks until shutdown
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `
  _     _
 | |   (_)_ __   __ _  ___
 | |   | | '_ \ / _' |/ _ \
 | |___| | | | | (_| | (_) |
 |_____|_|_| |_|\__, |\___/
                |___/` + "\033[97m" + `  landing
` + "\033[0m")

	// Step 1: Channeled logging
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    config.LogToFile,
		OutputToConsole: true,
		LogDirectory:    config.LogDirectory,
		JSONFormat:      config.LogJSON,
		DefaultLevel:    logging.ParseLevel(config.LogLevel),
		ChannelLevels:   make(map[logging.Channel]slog.Level),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Channeled logging initialized", "environment", config.Site.Environment)

	perfTracker := performance.NewTracker(nil, logger.Perf())

	// Step 2: Database and schema
	phase := time.Now()
	db, err := database.NewConnectionWithLogger(ctx, config.DBDriver, config.DBDSN, logger)
	if err != nil {
		logger.LogStartupPhase("database", time.Since(phase), false)
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := schema.NewTableCreator().CreateSchema(ctx, db.DB); err != nil {
		logger.LogStartupPhase("database", time.Since(phase), false)
		return fmt.Errorf("failed to create schema: %w", err)
	}
	logger.LogStartupPhase("database", time.Since(phase), true)

	// Step 3: Visitor store
	phase = time.Now()
	store, redisClient, err := newVisitorStore(ctx, logger)
	if err != nil {
		logger.LogStartupPhase("visitor_store", time.Since(phase), false)
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	logger.LogStartupPhase("visitor_store", time.Since(phase), true)

	// Step 4: Metrics and analytics sinks
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sinks := []domainanalytics.Sink{analytics.NewLogSink(logger)}
	if config.MetricsEnabled {
		promSink, err := analytics.NewPrometheusSink(metricsNamespace, registry)
		if err != nil {
			logger.Startup().Error("Prometheus analytics sink disabled", "error", err)
		} else {
			sinks = append(sinks, promSink)
		}
	}
	var umami *analytics.UmamiSink
	if config.UmamiHost != "" && config.UmamiWebsiteID != "" {
		umami = analytics.NewUmamiSink(config.UmamiHost, config.UmamiWebsiteID, config.Site.LandingURL, &http.Client{Timeout: 5 * time.Second}, logger)
		sinks = append(sinks, umami)
		logger.Startup().Info("Umami analytics enabled", "host", config.UmamiHost)
	}

	// Step 5: Email delivery
	var mailer email.Service
	if svc, err := email.NewService(config.ResendAPIKey, config.EmailFrom, config.EmailFromName); err == nil {
		mailer = svc
	} else if errors.Is(err, email.ErrNotConfigured) {
		logger.Startup().Info("Welcome emails disabled: RESEND_API_KEY not set")
	} else {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	// Step 6: Dependency injection container
	appContainer := container.NewContainer(logger, perfTracker, container.Infrastructure{
		DB:           db,
		VisitorStore: store,
		Visits:       persistence.NewSQLVisitRepository(db),
		Attempts:     persistence.NewSQLCheckoutAttemptRepository(db),
		Subscribers:  persistence.NewSQLSubscriberRepository(db),
		Backend:      backend.NewClient(config.Site.APIURL, &http.Client{}, config.BackendTimeout, logger),
		Analytics:    analytics.NewFanout(logger, sinks...),
		Mailer:       mailer,
		Registry:     registry,
	})
	logger.Startup().Info("Dependency injection container created with singleton services")

	// Step 7: HTTP server
	httpServer := server.New(ctx, config.Port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", config.Port,
		"apiUrl", config.Site.APIURL,
		"appUrl", config.Site.AppURL)

	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			return err
		}
	}

	shutdownStart := time.Now()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	if umami != nil {
		umami.Close()
		logger.Shutdown().Info("Analytics queue flushed")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

func newVisitorStore(ctx context.Context, logger *logging.ChanneledLogger) (visitor.Store, *redis.Client, error) {
	if config.RedisURL == "" {
		logger.Startup().Info("Using in-memory visitor store", "maxVisitors", config.MaxVisitors, "ttl", config.VisitorTTL)
		return stores.NewVisitorsStore(config.MaxVisitors, config.VisitorTTL, logger), nil, nil
	}

	client, err := stores.NewRedisClient(ctx, config.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Startup().Info("Using Redis visitor store", "ttl", config.VisitorTTL)
	return stores.NewRedisVisitorsStore(client, config.VisitorTTL, logger), client, nil
}

// setupLogging configures process-level logging before the channeled logger exists
func setupLogging() {
	if config.GinReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
