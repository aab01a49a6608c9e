// Package stores provides the visitor profile store implementations.
package stores

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
)

// VisitorsStore keeps visitor profiles in a bounded in-process LRU with a TTL.
// Profiles are copied on the way in and out.
type VisitorsStore struct {
	cache  *expirable.LRU[string, *visitor.Profile]
	logger *logging.ChanneledLogger
}

var _ visitor.Store = (*VisitorsStore)(nil)

// NewVisitorsStore creates a store holding at most size profiles for ttl each.
func NewVisitorsStore(size int, ttl time.Duration, logger *logging.ChanneledLogger) *VisitorsStore {
	if size <= 0 {
		size = 10000
	}
	s := &VisitorsStore{logger: logger}
	s.cache = expirable.NewLRU[string, *visitor.Profile](size, s.onEvict, ttl)
	if logger != nil {
		logger.Cache().Info("Initializing visitors cache store", "size", size, "ttl", ttl)
	}
	return s
}

func (s *VisitorsStore) onEvict(sessionID string, _ *visitor.Profile) {
	if s.logger != nil {
		s.logger.Cache().Debug("Visitor profile evicted", "sessionId", logging.SanitizeSessionID(sessionID))
	}
}

func (s *VisitorsStore) Get(_ context.Context, sessionID string) (*visitor.Profile, error) {
	start := time.Now()
	profile, ok := s.cache.Get(sessionID)
	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "get", "type", "visitor",
			"sessionId", logging.SanitizeSessionID(sessionID), "hit", ok, "duration", time.Since(start))
	}
	if !ok {
		return nil, visitor.ErrNotFound
	}
	return profile.Clone(), nil
}

func (s *VisitorsStore) Save(_ context.Context, profile *visitor.Profile) error {
	s.cache.Add(profile.SessionID, profile.Clone())
	return nil
}

func (s *VisitorsStore) Delete(_ context.Context, sessionID string) error {
	s.cache.Remove(sessionID)
	return nil
}

// Len returns the number of live profiles.
func (s *VisitorsStore) Len() int {
	return s.cache.Len()
}
