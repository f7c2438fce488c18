// Package alert delivers keyword opportunity notifications.
package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/asoradar/pkg/market"
)

// Notification is the data sent to alert destinations.
type Notification struct {
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	Keyword     string           `json:"keyword"`
	Store       string           `json:"store"`
	Opportunity float64          `json:"opportunity"`
	Difficulty  float64          `json:"difficulty"`
	Traffic     float64          `json:"traffic"`
	Saturation  float64          `json:"saturation"`
	Competitors []market.Listing `json:"competitors"`
}

// topCompetitors caps how many competitors a chat message lists.
const topCompetitors = 5

func (n *Notification) top() []market.Listing {
	if len(n.Competitors) <= topCompetitors {
		return n.Competitors
	}
	return n.Competitors[:topCompetitors]
}

func (n *Notification) summary() string {
	return fmt.Sprintf("Opportunity %.1f | Difficulty %.1f | Traffic %.1f | Saturation %.1f",
		n.Opportunity, n.Difficulty, n.Traffic, n.Saturation)
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers. Every
// notifier is tried; failures are joined.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func newClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// postJSON posts body and expects a 2xx answer.
func postJSON(ctx context.Context, client *http.Client, name, url string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s status %d", name, resp.StatusCode)
	}
	return nil
}
