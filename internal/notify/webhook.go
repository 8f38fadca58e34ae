package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebhookNotifier sends ingest alerts via webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends an alert to the webhook endpoint.
func (n *WebhookNotifier) Notify(ctx context.Context, alert IngestAlert) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatIngestAlert(alert)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("webhook notifier: non-2xx")
	}
	return nil
}

func formatIngestAlert(alert IngestAlert) string {
	var b strings.Builder
	b.WriteString("[Ingest Alert]\n")
	if alert.Granularity != "" {
		fmt.Fprintf(&b, "Granularity: %s\n", alert.Granularity)
	}
	if alert.Kind != "" {
		fmt.Fprintf(&b, "Kind: %s\n", alert.Kind)
	}
	if alert.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", alert.Message)
	}
	if !alert.WindowStart.IsZero() && !alert.WindowEnd.IsZero() {
		fmt.Fprintf(&b, "Window: %s .. %s\n",
			alert.WindowStart.Format(time.RFC3339), alert.WindowEnd.Format(time.RFC3339))
	}
	if !alert.OccurredAt.IsZero() {
		fmt.Fprintf(&b, "At: %s\n", alert.OccurredAt.Format(time.RFC3339))
	}
	return strings.TrimSpace(b.String())
}
