package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notifier is the chat-ops sink for settlement side effects. Invoked
// only after the settlement transaction commits, never inline in it;
// delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, channel, message string) error
}

// WebhookNotifier posts messages to a chat webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    *zap.SugaredLogger
}

var _ Notifier = (*WebhookNotifier)(nil)

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		log:    zap.S().Named("notify"),
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, channel, message string) error {
	if n.url == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warnw("webhook notification failed", "channel", channel, "error", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Warnw("webhook notification rejected", "channel", channel, "status", resp.StatusCode)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NopNotifier discards all notifications. Used when no webhook is
// configured and in tests.
type NopNotifier struct{}

var _ Notifier = (*NopNotifier)(nil)

func (NopNotifier) Notify(ctx context.Context, channel, message string) error { return nil }
