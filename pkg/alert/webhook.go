package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EventKeywordOpportunity is the event name of watchlist alerts.
const EventKeywordOpportunity = "keyword.opportunity"

// WebhookEvent is the JSON document posted by Webhook.
type WebhookEvent struct {
	Event  string        `json:"event"`
	SentAt time.Time     `json:"sentAt"`
	Alert  *Notification `json:"alert"`
}

// Webhook posts alerts as signed JSON events to any HTTP endpoint.
type Webhook struct {
	client *http.Client
	url    string
	secret string
	now    func() time.Time
}

// NewWebhook creates a webhook notifier. With a secret, every request carries
// an X-Signature-256 header the receiver can check with Sign.
func NewWebhook(url, secret string) *Webhook {
	return &Webhook{client: newClient(), url: url, secret: secret, now: time.Now}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(WebhookEvent{
		Event:  EventKeywordOpportunity,
		SentAt: w.now().UTC(),
		Alert:  n,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook event: %w", err)
	}

	header := http.Header{
		"User-Agent":       {"asoradar/1.0"},
		"X-Asoradar-Event": {EventKeywordOpportunity},
	}
	if w.secret != "" {
		header.Set("X-Signature-256", "sha256="+Sign(w.secret, body))
	}
	return postJSON(ctx, w.client, "webhook", w.url, body, header)
}

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
