package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotification() *Notification {
	return &Notification{
		Title:       "Keyword opportunity: chess clock",
		Body:        "Opportunity rose above 7.0",
		Keyword:     "chess clock",
		Store:       "gplay",
		Opportunity: 7.4,
		Difficulty:  3.2,
		Traffic:     6.8,
		Saturation:  2,
		Competitors: []market.Listing{
			{ID: "a", Title: "Chess Clock", Rating: 4.5, URL: "https://example.com/a"},
			{ID: "b", Title: "Timer", Rating: 3.9},
		},
	}
}

type capture struct {
	header http.Header
	body   []byte
}

func captureServer(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.header = r.Header.Clone()
		c.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestSlackSend(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK)

	require.NoError(t, NewSlack(srv.URL).Send(context.Background(), testNotification()))

	var payload struct {
		Blocks []map[string]any `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(got.body, &payload))
	require.Len(t, payload.Blocks, 3)
	assert.Equal(t, "header", payload.Blocks[0]["type"])
	assert.Contains(t, string(got.body), "<https://example.com/a|Chess Clock>")
	assert.Contains(t, string(got.body), "Opportunity 7.4")
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
}

func TestDiscordSend(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	d := NewDiscord(srv.URL)
	d.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, d.Send(context.Background(), testNotification()))

	var payload struct {
		Embeds []map[string]any `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal(got.body, &payload))
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, "2024-06-01T12:00:00Z", payload.Embeds[0]["timestamp"])
	assert.Contains(t, payload.Embeds[0]["description"], "[Chess Clock](https://example.com/a)")
	assert.Contains(t, payload.Embeds[0]["description"], "• Timer 3.9★")
}

func TestWebhookSignsBody(t *testing.T) {
	srv, got := captureServer(t, http.StatusAccepted)

	wh := NewWebhook(srv.URL, "s3cret")
	wh.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	require.NoError(t, wh.Send(context.Background(), testNotification()))

	assert.Equal(t, "sha256="+Sign("s3cret", got.body), got.header.Get("X-Signature-256"))
	assert.Equal(t, "asoradar/1.0", got.header.Get("User-Agent"))
	assert.Equal(t, EventKeywordOpportunity, got.header.Get("X-Asoradar-Event"))

	var ev WebhookEvent
	require.NoError(t, json.Unmarshal(got.body, &ev))
	assert.Equal(t, EventKeywordOpportunity, ev.Event)
	assert.True(t, ev.SentAt.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))
	require.NotNil(t, ev.Alert)
	assert.Equal(t, "chess clock", ev.Alert.Keyword)
	assert.Len(t, ev.Alert.Competitors, 2)
}

func TestWebhookUnsignedWithoutSecret(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK)

	require.NoError(t, NewWebhook(srv.URL, "").Send(context.Background(), testNotification()))
	assert.Empty(t, got.header.Get("X-Signature-256"))
}

func TestWebhookStatusError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusInternalServerError)

	err := NewWebhook(srv.URL, "").Send(context.Background(), testNotification())
	assert.ErrorContains(t, err, "webhook status 500")
}

type fakeNotifier struct {
	name  string
	err   error
	calls int
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Send(context.Context, *Notification) error {
	f.calls++
	return f.err
}

func TestBroadcastTriesEveryNotifier(t *testing.T) {
	boom := errors.New("boom")
	a := &fakeNotifier{name: "a", err: boom}
	b := &fakeNotifier{name: "b"}
	c := &fakeNotifier{name: "c", err: errors.New("down")}
	m := NewManager([]Notifier{a, b, c})

	err := m.Broadcast(context.Background(), testNotification())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "c: down")
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
	assert.True(t, m.HasNotifiers())
	assert.False(t, NewManager(nil).HasNotifiers())
}
