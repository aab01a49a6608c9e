// Package config provides centralized default values for the landing backend
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
		log.Println("Loading configuration overrides from .env file...")
		// godotenv.Load never overrides variables already present in the environment
		if err := godotenv.Load(); err != nil {
			log.Printf("Failed to load .env file: %v", err)
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, maskSecret(key, val), maskSecret(key, defaultValue))
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func maskSecret(key, value string) string {
	upper := strings.ToUpper(key)
	if strings.Contains(upper, "SECRET") || strings.Contains(upper, "KEY") || strings.Contains(upper, "PASSWORD") {
		if value == "" {
			return ""
		}
		return "****"
	}
	return value
}

var (
	// Server Configuration
	Port              string
	ServerReadTimeout time.Duration
	ServerIdleTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedOrigins    []string
	GinReleaseMode    bool

	// Public endpoints and site defaults
	Site Endpoints

	// Visitor sessions
	SessionSecret     string
	SessionCookieName string
	SessionTTL        time.Duration
	CookieSecure      bool
	MaxVisitors       int
	VisitorTTL        time.Duration
	RedisURL          string

	// Persistence
	DBDriver           string
	DBDSN              string
	SlowQueryThreshold time.Duration

	// Checkout
	CheckoutPacingDelay    time.Duration
	CheckoutRequestTimeout time.Duration
	CheckoutRatePerMinute  int
	CheckoutRateBurst      int
	BackendTimeout         time.Duration

	// Language widget
	WidgetProcessingDuration   time.Duration
	WidgetConfirmationDuration time.Duration

	// Analytics
	UmamiHost      string
	UmamiWebsiteID string
	MetricsEnabled bool

	// Email
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string

	// Logging
	LogDirectory string
	LogToFile    bool
	LogJSON      bool
	LogLevel     string

	// SSE
	SSEHeartbeatInterval time.Duration
	MaxSSEConnections    int
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	GinReleaseMode = getEnvString("GIN_MODE", "") == "release"

	Site = ResolveEndpoints(os.Getenv)
	AllowedOrigins = getEnvList("ALLOWED_ORIGINS", []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
		"http://[::1]:3000",
		Site.LandingURL,
	})

	// Visitor sessions
	SessionSecret = getEnvString("SESSION_SECRET", "dev-session-secret-change-me")
	SessionCookieName = getEnvString("SESSION_COOKIE_NAME", "lingo_session")
	SessionTTL = time.Duration(getEnvInt("SESSION_TTL_DAYS", 30)) * 24 * time.Hour
	CookieSecure = getEnvBool("COOKIE_SECURE", Site.Environment == EnvProduction)
	MaxVisitors = getEnvInt("MAX_VISITORS", 50000)
	VisitorTTL = time.Duration(getEnvInt("VISITOR_TTL_HOURS", 720)) * time.Hour
	RedisURL = getEnvString("REDIS_URL", "")

	// Persistence
	DBDriver = getEnvString("DB_DRIVER", "sqlite3")
	DBDSN = getEnvString("DB_DSN", "file:landing.db?_foreign_keys=on&_journal_mode=WAL")
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 500*time.Millisecond)

	// Checkout
	CheckoutPacingDelay = getEnvDuration("CHECKOUT_PACING_DELAY", 1000*time.Millisecond)
	CheckoutRequestTimeout = getEnvDuration("CHECKOUT_REQUEST_TIMEOUT", 25*time.Second)
	CheckoutRatePerMinute = getEnvInt("CHECKOUT_RATE_PER_MINUTE", 12)
	CheckoutRateBurst = getEnvInt("CHECKOUT_RATE_BURST", 4)
	BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", 10*time.Second)

	// Language widget
	WidgetProcessingDuration = getEnvDuration("WIDGET_PROCESSING_DURATION", 1200*time.Millisecond)
	WidgetConfirmationDuration = getEnvDuration("WIDGET_CONFIRMATION_DURATION", 1500*time.Millisecond)

	// Analytics
	UmamiHost = getEnvString("UMAMI_HOST", "")
	UmamiWebsiteID = getEnvString("UMAMI_WEBSITE_ID", "")
	MetricsEnabled = getEnvBool("METRICS_ENABLED", true)

	// Email
	ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	EmailFrom = getEnvString("EMAIL_FROM", "hello@lingoreader.app")
	EmailFromName = getEnvString("EMAIL_FROM_NAME", Site.SiteName)

	// Logging
	LogDirectory = getEnvString("LOG_DIRECTORY", "logs")
	LogToFile = getEnvBool("LOG_TO_FILE", false)
	LogJSON = getEnvBool("LOG_JSON", true)
	LogLevel = getEnvString("LOG_LEVEL", "info")

	// SSE
	SSEHeartbeatInterval = time.Duration(getEnvInt("SSE_HEARTBEAT_INTERVAL_SECONDS", 30)) * time.Second
	MaxSSEConnections = getEnvInt("MAX_SSE_CONNECTIONS", 1000)
}
