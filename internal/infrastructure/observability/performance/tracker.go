package performance

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Tracker manages performance markers and provides metrics aggregation
type Tracker struct {
	markers    []*Marker
	alerts     []PerformanceAlert
	thresholds *AlertThresholds
	config     *TrackerConfig
	logger     *slog.Logger
	mu         sync.RWMutex
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers   int  `json:"maxMarkers"`   // Maximum number of completed markers to retain
	MaxAlerts    int  `json:"maxAlerts"`    // Maximum number of alerts to retain
	EnableAlerts bool `json:"enableAlerts"` // Whether to generate performance alerts
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:   5000,
		MaxAlerts:    200,
		EnableAlerts: true,
	}
}

// AlertThresholds defines performance thresholds for generating alerts
type AlertThresholds struct {
	VerySlowResponseThreshold time.Duration `json:"verySlowResponseThreshold"`
	CriticalResponseThreshold time.Duration `json:"criticalResponseThreshold"`
	// checkout includes the pacing delay and two upstream calls
	CheckoutThreshold time.Duration `json:"checkoutThreshold"`
	VisitorThreshold  time.Duration `json:"visitorThreshold"`
}

// DefaultAlertThresholds returns sensible default alert thresholds
func DefaultAlertThresholds() *AlertThresholds {
	return &AlertThresholds{
		VerySlowResponseThreshold: 2 * time.Second,
		CriticalResponseThreshold: 10 * time.Second,
		CheckoutThreshold:         6 * time.Second,
		VisitorThreshold:          200 * time.Millisecond,
	}
}

// NewTracker creates a new performance tracker with the given configuration.
// A nil logger disables the per-operation Perf lines.
func NewTracker(config *TrackerConfig, logger *slog.Logger) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	return &Tracker{
		thresholds: DefaultAlertThresholds(),
		config:     config,
		logger:     logger,
	}
}

// StartOperation creates and tracks a new performance marker for an operation
func (t *Tracker) StartOperation(operation, scope string) *Marker {
	marker := &Marker{
		Operation: operation,
		Scope:     scope,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		Success:   true, // Assume success until proven otherwise
	}
	marker.onComplete = t.record

	t.mu.Lock()
	t.markers = append(t.markers, marker)
	if over := len(t.markers) - t.config.MaxMarkers; over > 0 {
		t.markers = t.markers[over:]
	}
	t.mu.Unlock()

	return marker
}

func (t *Tracker) record(marker *Marker) {
	if t.logger != nil {
		t.logger.Debug("Operation completed",
			"operation", marker.Operation,
			"duration", marker.Duration,
			"success", marker.Success)
	}
	if !t.config.EnableAlerts {
		return
	}

	alerts := t.evaluateThresholds(marker)
	if len(alerts) == 0 {
		return
	}

	t.mu.Lock()
	t.alerts = append(t.alerts, alerts...)
	if over := len(t.alerts) - t.config.MaxAlerts; over > 0 {
		t.alerts = t.alerts[over:]
	}
	t.mu.Unlock()

	if t.logger != nil {
		for _, alert := range alerts {
			t.logger.Warn(alert.Message, "operation", alert.Operation, "severity", alert.Severity, "actual", alert.Actual)
		}
	}
}

// evaluateThresholds checks a marker against all relevant thresholds
func (t *Tracker) evaluateThresholds(marker *Marker) []PerformanceAlert {
	var alerts []PerformanceAlert

	if marker.Duration > t.thresholds.CriticalResponseThreshold {
		alerts = append(alerts, newAlert(marker, AlertCritical, "Operation exceeded critical response time threshold"))
	} else if marker.Duration > t.thresholds.VerySlowResponseThreshold && !strings.HasPrefix(marker.Operation, "checkout") {
		alerts = append(alerts, newAlert(marker, AlertWarning, "Operation exceeded slow response time threshold"))
	}

	switch {
	case strings.HasPrefix(marker.Operation, "checkout"):
		if marker.Duration > t.thresholds.CheckoutThreshold {
			alerts = append(alerts, newAlert(marker, AlertWarning, "Checkout exceeded threshold"))
		}
	case strings.HasPrefix(marker.Operation, "visitor"):
		if marker.Duration > t.thresholds.VisitorThreshold {
			alerts = append(alerts, newAlert(marker, AlertWarning, "Visitor operation exceeded threshold"))
		}
	}

	return alerts
}

func newAlert(marker *Marker, severity AlertSeverity, message string) PerformanceAlert {
	return PerformanceAlert{
		Timestamp: time.Now(),
		Severity:  severity,
		Operation: marker.Operation,
		Actual:    marker.Duration,
		Message:   message,
	}
}

// TakeSnapshot summarises operations completed within the given window
func (t *Tracker) TakeSnapshot(within time.Duration) *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-within)
	snapshot := &Snapshot{
		Timestamp:          time.Now(),
		AverageByOperation: make(map[string]time.Duration),
	}

	totals := make(map[string]time.Duration)
	counts := make(map[string]int)
	slow := 0
	for _, marker := range t.markers {
		if !marker.Completed {
			snapshot.ActiveOperations++
			continue
		}
		if marker.EndTime.Before(cutoff) {
			continue
		}
		snapshot.CompletedOperations++
		if !marker.Success {
			snapshot.FailedOperations++
		}
		if marker.Duration > t.thresholds.VerySlowResponseThreshold {
			slow++
		}
		totals[marker.Operation] += marker.Duration
		counts[marker.Operation]++
	}
	for op, total := range totals {
		snapshot.AverageByOperation[op] = total / time.Duration(counts[op])
	}

	for _, alert := range t.alerts {
		if alert.Timestamp.After(cutoff) {
			snapshot.RecentAlerts = append(snapshot.RecentAlerts, alert)
		}
	}

	snapshot.OverallHealth = calculateHealth(snapshot.CompletedOperations, snapshot.FailedOperations, slow)
	return snapshot
}

func calculateHealth(total, failed, slow int) HealthStatus {
	if total == 0 {
		return HealthUnknown
	}
	failedRatio := float64(failed) / float64(total)
	slowRatio := float64(slow) / float64(total)

	switch {
	case failedRatio > 0.1: // More than 10% failures
		return HealthUnhealthy
	case failedRatio > 0.05 || slowRatio > 0.2:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}
