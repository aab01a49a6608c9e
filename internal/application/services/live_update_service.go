package services

import (
	"time"

	"github.com/lingoreader/landing-go/internal/domain/checkout"
	"github.com/lingoreader/landing-go/internal/domain/events"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/infrastructure/messaging"
	"github.com/lingoreader/landing-go/internal/infrastructure/security"
)

// LiveUpdateService republishes profile and checkout changes to SSE clients.
type LiveUpdateService struct {
	broadcaster messaging.Broadcaster
}

// NewLiveUpdateService creates a new live update service.
func NewLiveUpdateService(broadcaster messaging.Broadcaster) *LiveUpdateService {
	return &LiveUpdateService{broadcaster: broadcaster}
}

// Attach subscribes to the visitor and checkout services.
func (s *LiveUpdateService) Attach(visitors *VisitorService, checkouts *CheckoutService) {
	if visitors != nil {
		visitors.Subscribe(s.ProfileChanged)
	}
	if checkouts != nil {
		checkouts.OnOutcome(s.CheckoutFinished)
	}
}

// ProfileChanged publishes the client view of a profile.
func (s *LiveUpdateService) ProfileChanged(profile *visitor.Profile, verb string) {
	s.broadcaster.BroadcastToSession(events.Event{
		ID:        security.GenerateULID(),
		Type:      events.TypeProfileUpdated,
		SessionID: profile.SessionID,
		Verb:      verb,
		Payload:   profile.View(),
		CreatedAt: time.Now().UTC(),
	})
}

// CheckoutFinished publishes a checkout outcome.
func (s *LiveUpdateService) CheckoutFinished(sessionID string, outcome *checkout.Outcome) {
	s.broadcaster.BroadcastToSession(events.Event{
		ID:        security.GenerateULID(),
		Type:      events.TypeCheckoutOutcome,
		SessionID: sessionID,
		Verb:      string(outcome.State),
		Payload:   outcome,
		CreatedAt: time.Now().UTC(),
	})
}
