package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	colorSuccess = 0x2EB67D
	colorFailure = 0xE01E5A
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	color := colorSuccess
	if n.Failed {
		color = colorFailure
	}

	fields := make([]map[string]any, 0, len(n.Stages))
	for _, st := range n.Stages {
		value := fmt.Sprintf("%d processed | %d ok | %d skipped", st.Processed, st.Succeeded, st.Skipped)
		if st.Error != "" {
			value += "\n" + st.Error
		}
		fields = append(fields, map[string]any{
			"name":   st.Stage,
			"value":  value,
			"inline": false,
		})
	}

	finished := n.Finished
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	embed := map[string]any{
		"title":       n.Title,
		"description": n.Body,
		"color":       color,
		"fields":      fields,
		"footer":      map[string]any{"text": "run " + n.RunID},
		"timestamp":   finished.Format(time.RFC3339),
	}

	body, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook status %d", resp.StatusCode)
	}
	return nil
}
