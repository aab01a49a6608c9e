// Package messaging provides the concrete implementation of the SSE broadcaster.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lingoreader/landing-go/internal/domain/events"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
)

// ErrTooManyConnections is returned when the connection limit is reached.
var ErrTooManyConnections = errors.New("too many SSE connections")

const clientBuffer = 16

// SSEBroadcaster manages session-specific SSE connections.
type SSEBroadcaster struct {
	sessions       map[string][]chan string // sessionId -> []channels
	total          int
	maxConnections int
	mu             sync.Mutex
	logger         *logging.ChanneledLogger
}

var _ Broadcaster = (*SSEBroadcaster)(nil)

// NewSSEBroadcaster creates a broadcaster; maxConnections <= 0 means unlimited.
func NewSSEBroadcaster(maxConnections int, logger *logging.ChanneledLogger) *SSEBroadcaster {
	return &SSEBroadcaster{
		sessions:       make(map[string][]chan string),
		maxConnections: maxConnections,
		logger:         logger,
	}
}

// AddClientWithSession registers a new SSE client for a session.
func (b *SSEBroadcaster) AddClientWithSession(sessionID string) (chan string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxConnections > 0 && b.total >= b.maxConnections {
		return nil, ErrTooManyConnections
	}

	ch := make(chan string, clientBuffer)
	b.sessions[sessionID] = append(b.sessions[sessionID], ch)
	b.total++

	b.logger.SSE().Debug("SSE client registered", "sessionId", logging.SanitizeSessionID(sessionID), "total", b.total)
	return ch, nil
}

// RemoveClientWithSession removes an SSE client and closes its channel.
func (b *SSEBroadcaster) RemoveClientWithSession(ch chan string, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, exists := b.sessions[sessionID]
	if !exists {
		return
	}
	kept := clients[:0]
	for _, client := range clients {
		if client == ch {
			close(ch)
			b.total--
			continue
		}
		kept = append(kept, client)
	}
	if len(kept) == 0 {
		delete(b.sessions, sessionID)
	} else {
		b.sessions[sessionID] = kept
	}
	b.logger.SSE().Debug("SSE client unregistered", "sessionId", logging.SanitizeSessionID(sessionID), "total", b.total)
}

// GetSessionConnectionCount returns the connection count for a session.
func (b *SSEBroadcaster) GetSessionConnectionCount(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions[sessionID])
}

// BroadcastToSession sends an event to every client of its session.
// Slow clients miss messages rather than block the sender.
func (b *SSEBroadcaster) BroadcastToSession(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.SSE().Error("Failed to encode SSE event", "type", event.Type, "error", err)
		return
	}
	message := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, data)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.sessions[event.SessionID] {
		select {
		case ch <- message:
		default:
			b.logger.SSE().Warn("SSE channel full, message dropped", "sessionId", logging.SanitizeSessionID(event.SessionID), "type", event.Type)
		}
	}
}
