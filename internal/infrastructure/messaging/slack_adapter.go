package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackAdapter posts notifications to a Slack incoming webhook URL.
type SlackAdapter struct {
	config AdapterConfig
	client *http.Client
}

// NewSlackAdapter creates a Slack adapter from config.
func NewSlackAdapter(config AdapterConfig) *SlackAdapter {
	return &SlackAdapter{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *SlackAdapter) Name() string { return a.config.Name }
func (a *SlackAdapter) Type() string { return "slack" }

func (a *SlackAdapter) Send(ctx context.Context, n Notification) error {
	text := formatSlackMessage(n)

	payload := map[string]interface{}{
		"text": text,
		"blocks": []map[string]interface{}{
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

func formatSlackMessage(n Notification) string {
	switch n.Kind {
	case KindPlanReady:
		return fmt.Sprintf(":clipboard: *%s*\n%s", n.Title, n.Body)
	case KindHumanTask:
		return fmt.Sprintf(":bust_in_silhouette: *%s*\n%s", n.Title, n.Body)
	case KindProjectCompleted:
		return fmt.Sprintf(":white_check_mark: *%s*\n%s", n.Title, n.Body)
	default:
		return fmt.Sprintf("Agentflow: %s", n.Title)
	}
}
