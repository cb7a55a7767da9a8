package installwatch

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// HTTPNavigator hands scan-intents to the externally-owned scan screen over
// its HTTP surface. Delivery is best-effort; a lost intent only means the
// user opens the scan screen without a prefilled target.
type HTTPNavigator struct {
	url    string
	client *resty.Client
}

var _ Navigator = (*HTTPNavigator)(nil)

type scanIntent struct {
	Action      string `json:"action"`
	PackageName string `json:"package_name,omitempty"`
}

// NewHTTPNavigator creates a navigator targeting the given URL.
func NewHTTPNavigator(url string) *HTTPNavigator {
	return &HTTPNavigator{
		url:    url,
		client: resty.New().SetTimeout(5 * time.Second),
	}
}

func (n *HTTPNavigator) RequestScan(packageName string) {
	n.post(scanIntent{Action: "scan", PackageName: packageName})
}

func (n *HTTPNavigator) PromptNotificationPermission() {
	n.post(scanIntent{Action: "prompt_notification_permission"})
}

func (n *HTTPNavigator) post(intent scanIntent) {
	resp, err := n.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(intent).
		Post(n.url)

	if err != nil {
		logrus.Warnf("Failed to deliver %s intent: %v", intent.Action, err)
		return
	}
	if resp.StatusCode() >= 300 {
		logrus.Warnf("Navigation collaborator returned status %d for %s intent", resp.StatusCode(), intent.Action)
	}
}

// LogNavigator is used when no navigation collaborator is configured.
type LogNavigator struct{}

var _ Navigator = (*LogNavigator)(nil)

func (LogNavigator) RequestScan(packageName string) {
	logrus.Infof("Scan candidate: %s (no navigation collaborator configured)", packageName)
}

func (LogNavigator) PromptNotificationPermission() {
	logrus.Warn("Notification permission required (no navigation collaborator configured)")
}
