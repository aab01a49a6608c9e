package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/lingoreader/landing-go/internal/application/services"
	"github.com/lingoreader/landing-go/internal/domain/widget"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
)

const (
	widgetWriteWait  = 10 * time.Second
	widgetPongWait   = 60 * time.Second
	widgetPingPeriod = 50 * time.Second
	widgetReadLimit  = 4 * 1024
)

// WidgetClientMessage is sent by the language widget.
type WidgetClientMessage struct {
	Type      string            `json:"type"` // "open", "pick", "dismiss", "reset"
	Selection *widget.Selection `json:"selection,omitempty"`
}

// WidgetHandlers drives language selectors over WebSocket
type WidgetHandlers struct {
	widgetService *services.WidgetService
	upgrader      websocket.Upgrader
	logger        *logging.ChanneledLogger
}

// NewWidgetHandlers creates widget handlers accepting the given origins.
func NewWidgetHandlers(widgetService *services.WidgetService, allowedOrigins []string, logger *logging.ChanneledLogger) *WidgetHandlers {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &WidgetHandlers{
		widgetService: widgetService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed[origin]; ok {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
		logger: logger,
	}
}

// GetLanguageWidget handles GET /api/v1/widget/language
func (h *WidgetHandlers) GetLanguageWidget(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	log := h.logger.Widget().With("sessionId", logging.SanitizeSessionID(sessionID))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(msg services.WidgetMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(widgetWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug("Widget write failed", "error", err)
		}
	}

	selector := h.widgetService.NewSelector(sessionID, send)
	defer selector.Stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(widgetPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(widgetWriteWait))
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(widgetReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(widgetPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(widgetPongWait))
	})

	send(services.WidgetMessage{Type: services.WidgetMessageState, State: selector.State()})
	log.Debug("Widget connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("Widget disconnected", "error", err)
			return
		}

		var msg WidgetClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			send(services.WidgetMessage{Type: services.WidgetMessageError, Error: "invalid message"})
			continue
		}

		var opErr error
		switch msg.Type {
		case "open":
			opErr = selector.Open()
		case "pick":
			if msg.Selection == nil || msg.Selection.Language == "" {
				send(services.WidgetMessage{Type: services.WidgetMessageError, Error: "selection.language is required"})
				continue
			}
			opErr = selector.Pick(*msg.Selection)
		case "dismiss":
			opErr = selector.Dismiss()
		case "reset":
			selector.ResetStates()
		default:
			send(services.WidgetMessage{Type: services.WidgetMessageError, Error: "unknown message type"})
			continue
		}
		if opErr != nil {
			send(services.WidgetMessage{Type: services.WidgetMessageError, State: selector.State(), Error: opErr.Error()})
		}
	}
}
