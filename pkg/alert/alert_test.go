package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func sample() *Notification {
	return &Notification{
		Title:  "bountyscope run",
		Body:   "ingest then enrich",
		RunID:  "run-1",
		Failed: true,
		Stages: []StageSummary{
			{Stage: "ingest", Processed: 3, Succeeded: 3},
			{Stage: "enrich", Processed: 2, Succeeded: 1, Skipped: 0, Error: "enrich bob: disk full"},
		},
	}
}

func TestWebhookSignsBody(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, "sha256="+Sign("s3cret", body), r.Header.Get(SignatureHeader))
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook(srv.URL, "s3cret").Send(context.Background(), sample()))
	require.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Stages, 2)
	require.Equal(t, "enrich bob: disk full", got.Stages[1].Error)
}

func TestWebhookUnsignedWithoutSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook(srv.URL, "").Send(context.Background(), sample()))
}

func TestWebhookStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "").Send(context.Background(), sample())
	require.ErrorContains(t, err, "status 502")
}

func TestSlackPayload(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	}))
	defer srv.Close()

	require.NoError(t, NewSlack(srv.URL).Send(context.Background(), sample()))
	require.Equal(t, "bountyscope run", payload["text"])
	blocks, ok := payload["blocks"].([]any)
	require.True(t, ok)
	require.Len(t, blocks, 3)
	section := blocks[1].(map[string]any)["text"].(map[string]any)["text"].(string)
	require.True(t, strings.HasPrefix(section, ":x:"))
	require.Contains(t, section, "*enrich*: 2 processed, 1 ok, 0 skipped")
	require.Contains(t, section, "disk full")
}

func TestDiscordEmbed(t *testing.T) {
	var payload struct {
		Embeds []struct {
			Title  string `json:"title"`
			Color  int    `json:"color"`
			Fields []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"fields"`
			Footer struct {
				Text string `json:"text"`
			} `json:"footer"`
		} `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscord(srv.URL).Send(context.Background(), sample()))
	require.Len(t, payload.Embeds, 1)
	embed := payload.Embeds[0]
	require.Equal(t, "bountyscope run", embed.Title)
	require.Equal(t, colorFailure, embed.Color)
	require.Equal(t, "run run-1", embed.Footer.Text)
	require.Len(t, embed.Fields, 2)
	require.Equal(t, "ingest", embed.Fields[0].Name)
	require.Equal(t, "3 processed | 3 ok | 0 skipped", embed.Fields[0].Value)
	require.Contains(t, embed.Fields[1].Value, "disk full")
}

func TestDiscordStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscord(srv.URL).Send(context.Background(), sample())
	require.ErrorContains(t, err, "discord webhook status 429")
}

type stubNotifier struct {
	name string
	err  error
	sent int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Send(context.Context, *Notification) error {
	s.sent++
	return s.err
}

func TestBroadcastAttemptsEveryNotifier(t *testing.T) {
	first := &stubNotifier{name: "first", err: errors.New("boom")}
	second := &stubNotifier{name: "second"}
	m := NewManager([]Notifier{first, second})

	err := m.Broadcast(context.Background(), sample())
	require.ErrorContains(t, err, "first: boom")
	require.Equal(t, 1, first.sent)
	require.Equal(t, 1, second.sent)
	require.True(t, m.HasNotifiers())

	var empty *Manager
	require.False(t, empty.HasNotifiers())
	require.NoError(t, empty.Broadcast(context.Background(), sample()))
}
