package services

import (
	"context"
	"time"

	"github.com/lingoreader/landing-go/internal/domain/events"
	"github.com/lingoreader/landing-go/internal/domain/widget"
	"github.com/lingoreader/landing-go/internal/infrastructure/messaging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/security"
)

// CheckoutPath is where a confirmed selection continues.
const CheckoutPath = "/checkout"

// WidgetMessage is sent to a widget client.
type WidgetMessage struct {
	Type      string            `json:"type"`
	State     widget.State      `json:"state,omitempty"`
	Selection *widget.Selection `json:"selection,omitempty"`
	Next      string            `json:"next,omitempty"`
	Error     string            `json:"error,omitempty"`
}

const (
	WidgetMessageState    = "state"
	WidgetMessageComplete = "complete"
	WidgetMessageError    = "error"
)

// WidgetConfig holds the widget timings.
type WidgetConfig struct {
	ProcessingDuration   time.Duration
	ConfirmationDuration time.Duration
}

// WidgetService builds language selectors bound to a visitor session.
type WidgetService struct {
	visitors    *VisitorService
	broadcaster messaging.Broadcaster
	cfg         WidgetConfig
	logger      *logging.ChanneledLogger
}

// NewWidgetService creates a widget service; broadcaster may be nil.
func NewWidgetService(visitors *VisitorService, broadcaster messaging.Broadcaster, cfg WidgetConfig, logger *logging.ChanneledLogger) *WidgetService {
	return &WidgetService{visitors: visitors, broadcaster: broadcaster, cfg: cfg, logger: logger}
}

// NewSelector returns a selector for one client connection. send must be safe
// for concurrent use; it is called from timer goroutines. A pick the profile
// rejects is returned by Pick and never completes.
func (s *WidgetService) NewSelector(sessionID string, send func(WidgetMessage)) *widget.Selector {
	log := s.logger.Widget().With("sessionId", logging.SanitizeSessionID(sessionID))
	ctx := context.Background()

	return widget.NewSelector(widget.Config{
		ProcessingDuration:   s.cfg.ProcessingDuration,
		ConfirmationDuration: s.cfg.ConfirmationDuration,
		OnLanguageSelect: func(sel widget.Selection) error {
			if _, err := s.visitors.ApplySelection(ctx, sessionID, sel); err != nil {
				log.Warn("Failed to apply selection", "error", err)
				return err
			}
			return nil
		},
		OnProcessingComplete: func(sel widget.Selection) {
			if _, err := s.visitors.SetHasSelectedLanguage(ctx, sessionID, true); err != nil {
				log.Warn("Failed to confirm selection", "error", err)
			}
			log.Info("Language selection complete", "language", sel.Language, "level", sel.Level)
			send(WidgetMessage{Type: WidgetMessageComplete, Selection: &sel, Next: CheckoutPath})
		},
		OnStateChange: func(state widget.State) {
			send(WidgetMessage{Type: WidgetMessageState, State: state})
			if s.broadcaster != nil {
				s.broadcaster.BroadcastToSession(events.Event{
					ID:        security.GenerateULID(),
					Type:      events.TypeWidgetState,
					SessionID: sessionID,
					Verb:      string(state),
					Payload:   map[string]any{"state": state},
					CreatedAt: time.Now().UTC(),
				})
			}
		},
	})
}
