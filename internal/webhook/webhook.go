// Package webhook fires outbound webhook events to configured URLs.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Dispatcher fires events at the URLs it was configured with. URLs come
// from the environment, not from storage; every URL receives every event.
type Dispatcher struct {
	urls   []string
	client *http.Client
}

// New creates a Dispatcher. Returns nil when no URLs are configured, so
// callers can treat webhooks like any other disabled adapter.
func New(urls []string) *Dispatcher {
	if len(urls) == 0 {
		return nil
	}
	return &Dispatcher{
		urls:   urls,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Payload is the JSON body sent to webhook URLs.
type Payload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Fire sends an event to every configured URL. Deliveries run in the
// background; failures are logged, never surfaced.
func (d *Dispatcher) Fire(event string, data interface{}) {
	if d == nil {
		return
	}
	body, err := json.Marshal(Payload{Event: event, Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("webhook payload marshal failed")
		return
	}
	for _, url := range d.urls {
		go d.fireOne(url, body)
	}
}

// fireOne retries 3x with exponential backoff (500ms, 1s, 2s).
func (d *Dispatcher) fireOne(url string, body []byte) {
	delays := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}
	for i, delay := range delays {
		if i > 0 {
			time.Sleep(delay)
		}
		status, err := d.post(url, body)
		if err == nil && status < 400 {
			return
		}
		log.Warn().Int("attempt", i+1).Str("url", url).Int("status", status).Err(err).
			Msg("webhook delivery failed")
	}
}

func (d *Dispatcher) post(url string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("webhook.post: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook.post: do: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// Test fires a test payload at one URL and reports the outcome. Used by
// the setup wizard to verify a URL before it lands in the environment.
func Test(url string) error {
	body, _ := json.Marshal(Payload{
		Event:     "webhook.test",
		Timestamp: time.Now().UTC(),
		Data:      map[string]string{"message": "This is a test from CostWise"},
	})
	d := &Dispatcher{client: &http.Client{Timeout: 10 * time.Second}}
	status, err := d.post(url, body)
	if err != nil {
		return fmt.Errorf("webhook.Test: %w", err)
	}
	if status >= 400 {
		return fmt.Errorf("webhook.Test: server returned %d", status)
	}
	return nil
}
