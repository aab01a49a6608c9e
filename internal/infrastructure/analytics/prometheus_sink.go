package analytics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	domain "github.com/lingoreader/landing-go/internal/domain/analytics"
)

// PrometheusSink counts events by name and referral source.
type PrometheusSink struct {
	events *prometheus.CounterVec
}

// NewPrometheusSink registers the event counter on reg (default registerer when nil).
func NewPrometheusSink(namespace string, reg prometheus.Registerer) (*PrometheusSink, error) {
	if namespace == "" {
		namespace = "landing"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_events_total",
		Help:      "Analytics events emitted by the landing flow.",
	}, []string{"event", "source"})

	if err := reg.Register(events); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register analytics metric: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("register analytics metric: conflicting collector")
		}
		events = existing
	}
	return &PrometheusSink{events: events}, nil
}

func (s *PrometheusSink) Emit(name domain.EventName, props domain.Properties) {
	source, _ := props["referralSource"].(string)
	if source == "" {
		source = "unknown"
	}
	s.events.WithLabelValues(string(name), source).Inc()
}
