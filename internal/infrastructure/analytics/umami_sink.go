package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	domain "github.com/lingoreader/landing-go/internal/domain/analytics"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
)

const umamiQueueSize = 256

type umamiEvent struct {
	name  domain.EventName
	props domain.Properties
}

// UmamiSink posts events to an Umami instance from a single background worker.
// Events are dropped when the queue is full.
type UmamiSink struct {
	endpoint  string
	websiteID string
	hostname  string
	client    *http.Client
	logger    *logging.ChanneledLogger

	queue     chan umamiEvent
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewUmamiSink starts the delivery worker. Close must be called on shutdown.
func NewUmamiSink(host, websiteID, landingURL string, client *http.Client, logger *logging.ChanneledLogger) *UmamiSink {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	hostname := strings.TrimPrefix(strings.TrimPrefix(landingURL, "https://"), "http://")
	s := &UmamiSink{
		endpoint:  strings.TrimRight(host, "/") + "/api/send",
		websiteID: websiteID,
		hostname:  hostname,
		client:    client,
		logger:    logger,
		queue:     make(chan umamiEvent, umamiQueueSize),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *UmamiSink) Emit(name domain.EventName, props domain.Properties) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- umamiEvent{name: name, props: props}:
	default:
		s.logger.Analytics().Warn("Umami queue full, event dropped", "event", name)
	}
}

func (s *UmamiSink) run() {
	defer s.wg.Done()
	for ev := range s.queue {
		if err := s.send(ev); err != nil {
			s.logger.Analytics().Warn("Umami delivery failed", "event", ev.name, "error", err)
		}
	}
}

func (s *UmamiSink) send(ev umamiEvent) error {
	url, _ := ev.props["url"].(string)
	if url == "" {
		url = "/"
	}
	body, err := json.Marshal(map[string]any{
		"type": "event",
		"payload": map[string]any{
			"website":  s.websiteID,
			"hostname": s.hostname,
			"url":      url,
			"name":     string(ev.name),
			"data":     ev.props,
		},
	})
	if err != nil {
		return fmt.Errorf("encode umami event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout+time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build umami request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Umami ignores requests without a browser-like user agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; lingo-landing)")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("umami responded %d", resp.StatusCode)
	}
	return nil
}

// Close stops accepting events and waits for queued ones to be delivered.
func (s *UmamiSink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
		s.wg.Wait()
	})
}
