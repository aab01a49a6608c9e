// Package analytics provides the concrete analytics sinks: structured logs,
// Prometheus counters and the Umami event API, fanned out behind one Sink.
package analytics

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"

	domain "github.com/lingoreader/landing-go/internal/domain/analytics"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
)

// Fanout delivers each event to every sink, isolating panics per sink.
type Fanout struct {
	sinks  []domain.Sink
	logger *logging.ChanneledLogger
}

// NewFanout builds a Fanout over the non-nil sinks.
func NewFanout(logger *logging.ChanneledLogger, sinks ...domain.Sink) *Fanout {
	f := &Fanout{logger: logger}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Emit scrubs props and forwards them. It never panics.
func (f *Fanout) Emit(name domain.EventName, props domain.Properties) {
	clean := ScrubProperties(props)
	for _, sink := range f.sinks {
		f.emitOne(sink, name, clean)
	}
}

func (f *Fanout) emitOne(sink domain.Sink, name domain.EventName, props domain.Properties) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Analytics().Error("Analytics sink panicked", "event", name, "panic", r)
		}
	}()
	sink.Emit(name, props)
}

// ScrubProperties copies props, replacing raw email addresses with a keyed hash
// and dropping tokens.
func ScrubProperties(props domain.Properties) domain.Properties {
	out := make(domain.Properties, len(props))
	for k, v := range props {
		lower := strings.ToLower(k)
		switch {
		case strings.Contains(lower, "token"):
			continue
		case lower == "email":
			if s, ok := v.(string); ok && s != "" {
				out["emailHash"] = HashEmail(s)
			}
			continue
		}
		out[k] = v
	}
	return out
}

// HashEmail returns a stable pseudonymous identifier for an email address.
func HashEmail(email string) string {
	sum := blake2b.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:16])
}
