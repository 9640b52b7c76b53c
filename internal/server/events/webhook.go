package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const webhookAttempts = 3

// WebhookError reports a delivery failure after all retries.
type WebhookError struct {
	URL        string
	StatusCode int
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook delivery to %s failed with status %d", e.URL, e.StatusCode)
}

// WebhookSink forwards matching events to an HTTP endpoint.
type WebhookSink struct {
	url    string
	log    *slog.Logger
	client *http.Client
	cancel func()
	done   chan struct{}
}

// NewWebhookSink subscribes to the bus and POSTs matching events to url.
// An empty type list forwards everything.
func NewWebhookSink(bus *Bus, url string, log *slog.Logger, types ...string) *WebhookSink {
	if log == nil {
		log = slog.Default()
	}
	ch, cancel := bus.Subscribe(types...)
	s := &WebhookSink{
		url:    url,
		log:    log,
		client: &http.Client{Timeout: 30 * time.Second},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ch)
	return s
}

// Close unsubscribes and waits for in-flight deliveries.
func (s *WebhookSink) Close() {
	s.cancel()
	<-s.done
}

func (s *WebhookSink) run(ch <-chan Event) {
	defer close(s.done)
	for ev := range ch {
		if err := s.send(ev); err != nil {
			s.log.Warn("webhook delivery failed", "url", s.url, "type", ev.Type, "error", err)
		}
	}
}

func (s *WebhookSink) send(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < webhookAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt*attempt) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tangle-Event", ev.Type)

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = &WebhookError{URL: s.url, StatusCode: resp.StatusCode}
	}
	return lastErr
}
