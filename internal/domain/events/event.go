// Package events provides the change notifications published for a visitor session.
package events

import "time"

// Type names a visitor change notification.
type Type string

const (
	TypeProfileUpdated  Type = "profile_updated"
	TypeWidgetState     Type = "widget_state"
	TypeCheckoutOutcome Type = "checkout_outcome"
)

// Event is a notification about a visitor session, delivered over SSE.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	SessionID string    `json:"-"`
	Verb      string    `json:"verb"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
