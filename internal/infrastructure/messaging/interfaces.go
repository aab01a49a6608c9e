// Package messaging defines interfaces for real-time communication.
package messaging

import "github.com/lingoreader/landing-go/internal/domain/events"

// Broadcaster defines the interface for managing SSE client connections and broadcasting messages.
type Broadcaster interface {
	AddClientWithSession(sessionID string) (chan string, error)
	RemoveClientWithSession(ch chan string, sessionID string)
	GetSessionConnectionCount(sessionID string) int
	BroadcastToSession(event events.Event)
}
