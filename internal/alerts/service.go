// Package alerts renders scan verdicts into bounded, actionable alerts and
// posts them through the configured outbound channels. It is the only
// component permitted to present notifications to the user.
package alerts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/phantomsec/threatwatch/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// Preview is truncated to this many characters, with an ellipsis marker.
	previewLimit = 140

	// All ambient threat alerts share one dispatch key so a newer detection
	// replaces the previous alert instead of stacking.
	ambientKey = "ambient-threat"

	maxSummaryIndicators = 3
)

// Dispatcher fans alerts out to the configured channels. Reposting with the
// same dispatch key replaces the pending alert.
type Dispatcher struct {
	notifiers []Notifier

	mu      sync.Mutex
	pending map[string]*models.Alert
}

// NewDispatcher creates a dispatcher with the given outbound channels.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		pending:   make(map[string]*models.Alert),
	}
}

// DispatchThreat renders the verdict for a scored notification event and
// posts the alert.
func (d *Dispatcher) DispatchThreat(event models.NotificationEvent, verdict models.ScanVerdict) error {
	return d.Post(BuildThreatAlert(event, verdict))
}

// Post records the alert under its key (replacing any previous alert with the
// same key) and sends it through every channel.
func (d *Dispatcher) Post(alert *models.Alert) error {
	d.mu.Lock()
	d.pending[alert.Key] = alert
	d.mu.Unlock()

	var errs []string
	for _, n := range d.notifiers {
		if err := n.Notify(alert); err != nil {
			logrus.Errorf("Failed to send alert via %s: %v", n.Name(), err)
			errs = append(errs, fmt.Sprintf("%s: %v", n.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("alert channel errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Dismiss removes a pending alert.
func (d *Dispatcher) Dismiss(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, key)
}

// Pending returns the current pending alerts keyed by dispatch key.
func (d *Dispatcher) Pending() map[string]*models.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]*models.Alert, len(d.pending))
	for k, v := range d.pending {
		out[k] = v
	}
	return out
}

// BuildThreatAlert renders a verdict plus the originating event into an
// alert. The inspect and copy actions carry the resolved body only, never
// the full multi-field raw notification.
func BuildThreatAlert(event models.NotificationEvent, verdict models.ScanVerdict) *models.Alert {
	body := event.ResolvedBody()

	return &models.Alert{
		Key:           ambientKey,
		Title:         fmt.Sprintf("Suspected spam/phishing (%.0f%% confidence)", verdict.Confidence*100),
		ReasonSummary: BuildReasonSummary(verdict),
		BodyPreview:   truncatePreview(body),
		SourceApp:     event.SourceApp,
		Confidence:    verdict.Confidence,
		InspectText:   body,
		CopyText:      body,
	}
}

// BuildInstallAlert renders a newly-installed-package detection. The package
// identifier is the dispatch key, so a second detection of the same install
// replaces the pending alert rather than duplicating it.
func BuildInstallAlert(packageName string) *models.Alert {
	return &models.Alert{
		Key:           "install:" + packageName,
		Title:         "New app installed",
		ReasonSummary: fmt.Sprintf("New app %q needs a security scan", packageName),
		BodyPreview:   truncatePreview(packageName),
		InspectText:   packageName,
		CopyText:      packageName,
	}
}

// BuildReasonSummary concatenates the translated threat category, the risk
// level and up to three translated indicators.
func BuildReasonSummary(verdict models.ScanVerdict) string {
	var parts []string

	if verdict.ThreatCategory != "" {
		parts = append(parts, "Category: "+translateCategory(verdict.ThreatCategory))
	}
	if verdict.RiskLevel != "" {
		parts = append(parts, "Risk: "+verdict.RiskLevel)
	}

	for i, ind := range verdict.Indicators {
		if i >= maxSummaryIndicators {
			break
		}
		parts = append(parts, translateIndicator(ind))
	}

	if verdict.Approximate {
		parts = append(parts, "approximate result (offline analysis)")
	}

	if len(parts) == 0 {
		return "Possible phishing detected."
	}
	return strings.Join(parts, " · ")
}

func truncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLimit {
		return s
	}
	return string(runes[:previewLimit]) + "…"
}

func translateCategory(category string) string {
	switch category {
	case "financial":
		return "financial fraud"
	case "personal_info":
		return "personal data theft"
	case "malware":
		return "malware distribution"
	case "scam":
		return "scam"
	default:
		return "unknown"
	}
}

func translateIndicator(indicator string) string {
	lower := strings.ToLower(indicator)
	switch {
	case strings.Contains(lower, "suspicious_keyword"):
		keyword := strings.TrimSpace(after(indicator, ":"))
		return "suspicious keyword: " + keyword
	case strings.Contains(lower, "multiple_urls"):
		return "contains multiple links"
	case strings.Contains(lower, "contains_urls"):
		return "contains a link"
	case strings.Contains(lower, "link_shortener"):
		return "uses a link shortener"
	case strings.Contains(lower, "urgency"):
		return "urgency-pressure wording"
	case strings.Contains(lower, "financial"):
		return "financial wording"
	case strings.Contains(lower, "personal"):
		return "requests personal data"
	case strings.Contains(lower, "click"):
		return "click-through bait"
	default:
		return indicator
	}
}

func after(s, sep string) string {
	if idx := strings.Index(s, sep); idx >= 0 {
		return s[idx+len(sep):]
	}
	return s
}
