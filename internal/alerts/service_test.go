package alerts

import (
	"errors"
	"strings"
	"testing"

	"github.com/phantomsec/threatwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	name   string
	err    error
	alerts []*models.Alert
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(alert *models.Alert) error {
	r.alerts = append(r.alerts, alert)
	return r.err
}

func TestBuildReasonSummary(t *testing.T) {
	testCases := []struct {
		name     string
		verdict  models.ScanVerdict
		expected string
	}{
		{
			name: "category risk and indicators",
			verdict: models.ScanVerdict{
				ThreatCategory: "financial",
				RiskLevel:      "HIGH",
				Indicators:     []string{"urgency: pressure wording", "contains_urls: has a link"},
			},
			expected: "Category: financial fraud · Risk: HIGH · urgency-pressure wording · contains a link",
		},
		{
			name: "indicators capped at three",
			verdict: models.ScanVerdict{
				Indicators: []string{
					"urgency: a",
					"financial: b",
					"link_shortener: c",
					"multiple_urls: d",
				},
			},
			expected: "urgency-pressure wording · financial wording · uses a link shortener",
		},
		{
			name: "approximate verdicts are labelled",
			verdict: models.ScanVerdict{
				RiskLevel:   "MEDIUM",
				Approximate: true,
			},
			expected: "Risk: MEDIUM · approximate result (offline analysis)",
		},
		{
			name:     "empty verdict falls back to generic line",
			verdict:  models.ScanVerdict{},
			expected: "Possible phishing detected.",
		},
		{
			name: "suspicious keyword carries the keyword",
			verdict: models.ScanVerdict{
				Indicators: []string{"suspicious_keyword: 당첨"},
			},
			expected: "suspicious keyword: 당첨",
		},
		{
			name: "unknown category",
			verdict: models.ScanVerdict{
				ThreatCategory: "something_new",
			},
			expected: "Category: unknown",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, BuildReasonSummary(tc.verdict))
		})
	}
}

func TestBuildThreatAlert(t *testing.T) {
	event := models.NotificationEvent{
		SourceApp: "com.kakao.talk",
		Title:     "Delivery notice",
		Body:      "Parcel held, pay at http://evil.example/pay",
	}
	verdict := models.ScanVerdict{IsThreat: true, Confidence: 0.87, RiskLevel: "HIGH"}

	alert := BuildThreatAlert(event, verdict)

	assert.Equal(t, "ambient-threat", alert.Key)
	assert.Equal(t, "Suspected spam/phishing (87% confidence)", alert.Title)
	assert.Equal(t, "com.kakao.talk", alert.SourceApp)
	assert.Equal(t, event.Body, alert.BodyPreview)
	assert.Equal(t, event.Body, alert.InspectText)
	assert.Equal(t, event.Body, alert.CopyText)
}

func TestBuildThreatAlertTruncatesPreview(t *testing.T) {
	// Multibyte runes so a byte-based cut would corrupt the text.
	body := strings.Repeat("계좌를 확인하세요 ", 30)
	event := models.NotificationEvent{SourceApp: "com.kakao.talk", Body: body}

	alert := BuildThreatAlert(event, models.ScanVerdict{Confidence: 0.9})

	runes := []rune(alert.BodyPreview)
	assert.Len(t, runes, 141)
	assert.Equal(t, '…', runes[140])
	assert.Equal(t, []rune(body)[:140], runes[:140])

	assert.Equal(t, body, alert.InspectText, "inspect carries the full body, only the preview is truncated")
}

func TestBuildInstallAlertKeyedByPackage(t *testing.T) {
	alert := BuildInstallAlert("com.sketchy.app")

	assert.Equal(t, "install:com.sketchy.app", alert.Key)
	assert.Equal(t, "New app installed", alert.Title)
	assert.Contains(t, alert.ReasonSummary, "com.sketchy.app")
}

func TestPostReplacesByKey(t *testing.T) {
	dispatcher := NewDispatcher()

	require.NoError(t, dispatcher.Post(&models.Alert{Key: "ambient-threat", Title: "first"}))
	require.NoError(t, dispatcher.Post(&models.Alert{Key: "ambient-threat", Title: "second"}))
	require.NoError(t, dispatcher.Post(&models.Alert{Key: "install:com.a", Title: "install"}))

	pending := dispatcher.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "second", pending["ambient-threat"].Title)
}

func TestDismissRemovesPendingAlert(t *testing.T) {
	dispatcher := NewDispatcher()
	require.NoError(t, dispatcher.Post(&models.Alert{Key: "install:com.a"}))

	dispatcher.Dismiss("install:com.a")
	assert.Empty(t, dispatcher.Pending())

	// Dismissing an unknown key is a no-op.
	dispatcher.Dismiss("install:com.unknown")
}

func TestPostFansOutToAllChannels(t *testing.T) {
	first := &recordingNotifier{name: "webhook"}
	second := &recordingNotifier{name: "email"}
	dispatcher := NewDispatcher(first, second)

	require.NoError(t, dispatcher.Post(&models.Alert{Key: "ambient-threat"}))

	assert.Len(t, first.alerts, 1)
	assert.Len(t, second.alerts, 1)
}

func TestPostAggregatesChannelErrors(t *testing.T) {
	failing := &recordingNotifier{name: "webhook", err: errors.New("connection refused")}
	healthy := &recordingNotifier{name: "email"}
	dispatcher := NewDispatcher(failing, healthy)

	err := dispatcher.Post(&models.Alert{Key: "ambient-threat"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook")
	assert.Len(t, healthy.alerts, 1, "one failing channel must not block the others")

	// The alert is still recorded as pending despite the channel error.
	assert.Len(t, dispatcher.Pending(), 1)
}
