package models

import (
	"strings"
	"time"
)

// Source types accepted by the classifier.
const (
	SourceTypeNotification = "notification"
	SourceTypeManual       = "manual"
	SourceTypeInstall      = "install"
)

// NotificationEvent is captured once per incoming system notification.
type NotificationEvent struct {
	SourceApp    string    `json:"source_app"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	ExpandedBody string    `json:"expanded_body"`
	CapturedAt   time.Time `json:"captured_at"`
}

// ResolvedBody returns the first non-blank of expanded body, body, title.
// Events with an empty resolved body are discarded before entering the pipeline.
func (e NotificationEvent) ResolvedBody() string {
	for _, s := range []string{e.ExpandedBody, e.Body, e.Title} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// FullText joins all non-blank text fields, used as the scan content so the
// classifier sees everything the user saw.
func (e NotificationEvent) FullText() string {
	var parts []string
	for _, s := range []string{e.Title, e.Body, e.ExpandedBody} {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// PackageEvent describes a package-installation detection from either channel.
type PackageEvent struct {
	PackageName string    `json:"package_name"`
	Replacing   bool      `json:"replacing"`
	Channel     string    `json:"channel"` // "broadcast" or "poll"
	DetectedAt  time.Time `json:"detected_at"`
}

// ScanRequest is the wire format submitted to the remote classifier.
type ScanRequest struct {
	DeviceID      string   `json:"deviceId"`
	SourceType    string   `json:"sourceType"`
	TextContent   string   `json:"textContent"`
	Sender        string   `json:"sender,omitempty"`
	Subject       string   `json:"subject,omitempty"`
	Timestamp     string   `json:"timestamp,omitempty"`
	ExtractedURLs []string `json:"extractedUrls,omitempty"`
	// ShouldLog controls whether the backend counts this scan in user-visible
	// statistics. Ambient detections send false so passive monitoring never
	// inflates the threat counters.
	ShouldLog bool `json:"shouldLog"`
}

// ScanVerdict is the structured result of scoring a piece of text.
type ScanVerdict struct {
	IsThreat       bool     `json:"isPhishing"`
	Confidence     float64  `json:"confidence"`
	ThreatCategory string   `json:"phishingType,omitempty"`
	RiskLevel      string   `json:"riskLevel,omitempty"`
	Indicators     []string `json:"riskIndicators,omitempty"`
	SuspiciousURLs []string `json:"suspiciousUrls,omitempty"`
	ShouldBlock    bool     `json:"shouldBlock,omitempty"`
	// Approximate marks verdicts produced by the local heuristic scorer when
	// the classifier was unreachable; the user must be told the result is a
	// local approximation.
	Approximate bool `json:"approximate,omitempty"`
}

// Alert is a rendered, bounded user-facing alert. InspectText and CopyText
// carry the resolved body only, never the full multi-field notification.
type Alert struct {
	Key           string  `json:"key"`
	Title         string  `json:"title"`
	ReasonSummary string  `json:"reason_summary"`
	BodyPreview   string  `json:"body_preview"`
	SourceApp     string  `json:"source_app,omitempty"`
	Confidence    float64 `json:"confidence"`
	InspectText   string  `json:"inspect_text"`
	CopyText      string  `json:"copy_text"`
}

// ScanRecord is the archived form of a persisted (user-initiated) scan.
type ScanRecord struct {
	ID          string      `json:"id"`
	DeviceID    string      `json:"device_id"`
	SourceType  string      `json:"source_type"`
	TextContent string      `json:"text_content"`
	Verdict     ScanVerdict `json:"verdict"`
	ScannedAt   time.Time   `json:"scanned_at"`
}
