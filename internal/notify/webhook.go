// Package notify posts trade and lifecycle announcements to a webhook.
// Delivery is fire-and-forget: a dead webhook never blocks trading.
package notify

import (
	"io"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
)

// Webhook posts JSON messages to a single endpoint.
type Webhook struct {
	client *resty.Client
	url    string
	logger *log.Logger
}

// NewWebhook creates a webhook sink. An empty url yields a disabled
// sink that drops every message.
func NewWebhook(url string, logger *log.Logger) *Webhook {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Webhook{client: client, url: url, logger: logger}
}

// Notify posts the message asynchronously. Errors are logged, never
// returned; the caller has no delivery guarantee to wait on.
func (w *Webhook) Notify(text string) {
	if w.url == "" {
		return
	}
	go func() {
		resp, err := w.client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"text": text}).
			Post(w.url)
		if err != nil {
			w.logger.Printf("webhook post failed: %v", err)
			return
		}
		if resp.StatusCode() >= 300 {
			w.logger.Printf("webhook returned %d", resp.StatusCode())
		}
	}()
}

// Nop is a notifier that discards everything.
type Nop struct{}

// Notify implements the notifier contract.
func (Nop) Notify(string) {}
