package alerts

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/phantomsec/threatwatch/internal/models"
)

// WebhookNotifier posts alerts as JSON to the platform notification bridge.
type WebhookNotifier struct {
	url    string
	client *resty.Client
}

var _ Notifier = (*WebhookNotifier)(nil)

type webhookPayload struct {
	Key     string        `json:"key"`
	Alert   *models.Alert `json:"alert"`
	Actions []string      `json:"actions"`
}

// NewWebhookNotifier creates a webhook channel targeting the given URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: resty.New().SetTimeout(10 * time.Second),
	}
}

func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// Notify posts the alert. The key tells the receiver to replace any pending
// notification with the same key rather than stack a new one.
func (w *WebhookNotifier) Notify(alert *models.Alert) error {
	payload := webhookPayload{
		Key:     alert.Key,
		Alert:   alert,
		Actions: []string{"inspect", "copy"},
	}

	resp, err := w.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(w.url)

	if err != nil {
		return fmt.Errorf("failed to post alert webhook: %w", err)
	}

	if resp.StatusCode() >= 300 {
		return fmt.Errorf("alert webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}
