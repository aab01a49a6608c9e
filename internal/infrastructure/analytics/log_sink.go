package analytics

import (
	"sort"

	domain "github.com/lingoreader/landing-go/internal/domain/analytics"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
)

// LogSink writes every event to the analytics log channel.
type LogSink struct {
	logger *logging.ChanneledLogger
}

func NewLogSink(logger *logging.ChanneledLogger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(name domain.EventName, props domain.Properties) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, 2+2*len(keys))
	args = append(args, "event", string(name))
	for _, k := range keys {
		args = append(args, k, props[k])
	}
	s.logger.Analytics().Info("Analytics event", args...)
}
