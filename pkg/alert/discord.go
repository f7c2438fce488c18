package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
	now        func() time.Time
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{client: newClient(), webhookURL: webhookURL, now: time.Now}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	var lines []string
	for _, app := range n.top() {
		if app.URL != "" {
			lines = append(lines, fmt.Sprintf("• [%s](%s) %.1f★", app.Title, app.URL, app.Rating))
		} else {
			lines = append(lines, fmt.Sprintf("• %s %.1f★", app.Title, app.Rating))
		}
	}

	embed := map[string]any{
		"title":       n.Title,
		"description": fmt.Sprintf("**%s** on %s\n%s\n\n%s\n\n%s", n.Keyword, n.Store, n.summary(), n.Body, strings.Join(lines, "\n")),
		"color":       0x2E9E5B,
		"timestamp":   d.now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	return postJSON(ctx, d.client, "discord webhook", d.webhookURL, body, nil)
}
