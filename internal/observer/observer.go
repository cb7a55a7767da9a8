// Package observer implements the notification observer: the state machine
// that turns the raw incoming-notification stream into alert candidates.
// Each event is processed independently; the shared dedup cache is the only
// state carried across events.
package observer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/phantomsec/threatwatch/internal/classifier"
	"github.com/phantomsec/threatwatch/internal/config"
	"github.com/phantomsec/threatwatch/internal/dedup"
	"github.com/phantomsec/threatwatch/internal/models"
	"github.com/phantomsec/threatwatch/internal/settings"
	"github.com/phantomsec/threatwatch/internal/textnorm"
	"github.com/sirupsen/logrus"
)

// Scanner is the threat-scoring collaborator boundary.
type Scanner interface {
	Submit(ctx context.Context, request models.ScanRequest) (models.ScanVerdict, error)
}

// AlertSink receives verdicts that passed the gate.
type AlertSink interface {
	DispatchThreat(event models.NotificationEvent, verdict models.ScanVerdict) error
}

// Outcome is the terminal state of one event's synchronous pipeline pass.
// None of these are errors; rejected events simply stop.
type Outcome int

const (
	OutcomeMalformed Outcome = iota
	OutcomeAdmissionRejected
	OutcomeGatedOff
	OutcomeDuplicateSuppressed
	OutcomeSubmitted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMalformed:
		return "malformed"
	case OutcomeAdmissionRejected:
		return "admission_rejected"
	case OutcomeGatedOff:
		return "gated_off"
	case OutcomeDuplicateSuppressed:
		return "duplicate_suppressed"
	case OutcomeSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Observer consumes notification events, applies admission, gating and dedup,
// and drives the scan client for surviving candidates.
type Observer struct {
	cfg        *config.Config
	cache      *dedup.Cache
	scanner    Scanner
	dispatcher AlertSink
	settings   settings.Settings
	metrics    *Metrics

	skipPackages map[string]struct{}
	events       chan models.NotificationEvent
	wg           sync.WaitGroup
}

// New creates a notification observer. The dedup cache is owned by this
// call-site and configured with the notification-path window and capacity.
func New(cfg *config.Config, scanner Scanner, dispatcher AlertSink, sett settings.Settings) *Observer {
	skip := make(map[string]struct{}, len(cfg.SystemSkipPackages))
	for _, p := range cfg.SystemSkipPackages {
		skip[p] = struct{}{}
	}

	return &Observer{
		cfg:          cfg,
		cache:        dedup.New(cfg.NotificationDedupWindow, cfg.NotificationDedupCapacity),
		scanner:      scanner,
		dispatcher:   dispatcher,
		settings:     sett,
		metrics:      NewMetrics(),
		skipPackages: skip,
		events:       make(chan models.NotificationEvent, 128),
	}
}

// Events is the inbound channel fed by the platform bridge.
func (o *Observer) Events() chan<- models.NotificationEvent {
	return o.events
}

// Metrics returns the pipeline counters.
func (o *Observer) Metrics() *Metrics {
	return o.metrics
}

// Start consumes the event channel until the context is cancelled. Events are
// processed in delivery order; only the network-facing scoring step runs on
// its own goroutine so the loop never blocks on I/O.
func (o *Observer) Start(ctx context.Context) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-o.events:
				o.Process(ctx, event)
			}
		}
	}()
}

// Shutdown waits for in-flight scoring tasks to finish. Cancelling the Start
// context aborts their pending network calls first, so this does not hang on
// a dead classifier.
func (o *Observer) Shutdown() {
	o.wg.Wait()
}

// Process runs the synchronous stages (admission, gating, dedup) and, when
// the event survives, hands it to an asynchronous scoring task.
func (o *Observer) Process(ctx context.Context, event models.NotificationEvent) Outcome {
	o.metrics.EventReceived()

	body := event.ResolvedBody()
	if body == "" {
		o.metrics.Record(OutcomeMalformed)
		return OutcomeMalformed
	}

	if !o.admit(event.SourceApp, body) {
		o.metrics.Record(OutcomeAdmissionRejected)
		return OutcomeAdmissionRejected
	}

	if !o.settings.IsAuthenticated() || !o.settings.AmbientAlertsEnabled() {
		o.metrics.Record(OutcomeGatedOff)
		return OutcomeGatedOff
	}

	now := event.CapturedAt
	if now.IsZero() {
		now = time.Now()
	}
	if !o.cache.Accept(textnorm.Fingerprint(body), now) {
		logrus.Debugf("Duplicate notification suppressed (source=%s)", event.SourceApp)
		o.metrics.Record(OutcomeDuplicateSuppressed)
		return OutcomeDuplicateSuppressed
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.score(ctx, event)
	}()

	o.metrics.Record(OutcomeSubmitted)
	return OutcomeSubmitted
}

// admit applies the admission filter: host-app notifications, the system
// skip-list, too-short bodies and excluded (charging/battery/alarm) wording
// all terminate here with no further processing.
func (o *Observer) admit(sourceApp, body string) bool {
	if sourceApp == o.cfg.HostPackage {
		return false
	}
	if _, ok := o.skipPackages[sourceApp]; ok {
		return false
	}
	if len([]rune(body)) < o.cfg.MinBodyLength {
		return false
	}

	lower := strings.ToLower(body)
	for _, kw := range o.cfg.ExcludeKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// score submits the candidate to the classifier and dispatches an alert when
// the verdict passes the gate. The ambient path fails closed: on
// ScanUnavailable the event is dropped silently rather than falling back to
// the heuristic scorer, so uncertain data never wakes the user.
func (o *Observer) score(ctx context.Context, event models.NotificationEvent) {
	scanCtx, cancel := context.WithTimeout(ctx, o.cfg.AmbientScanTimeout)
	defer cancel()

	request := models.ScanRequest{
		DeviceID:      o.cfg.DeviceID,
		SourceType:    models.SourceTypeNotification,
		TextContent:   event.FullText(),
		Subject:       event.Title,
		Timestamp:     time.Now().Format("2006-01-02T15:04:05"),
		ExtractedURLs: textnorm.ExtractURLs(event.FullText()),
		ShouldLog:     false,
	}

	verdict, err := o.scanner.Submit(scanCtx, request)
	if err != nil {
		if err == classifier.ErrUnavailable || scanCtx.Err() != nil {
			o.metrics.ScanUnavailable()
			logrus.Debugf("Ambient scan unavailable, dropping event (source=%s)", event.SourceApp)
			return
		}
		o.metrics.ScanUnavailable()
		logrus.Warnf("Unexpected scan error: %v", err)
		return
	}

	if !verdict.IsThreat || verdict.Confidence < 0.5 {
		o.metrics.CleanVerdict()
		return
	}

	if err := o.dispatcher.DispatchThreat(event, verdict); err != nil {
		logrus.Errorf("Failed to dispatch threat alert: %v", err)
		return
	}
	o.metrics.ThreatAlerted()
	logrus.Infof("Threat alert dispatched (source=%s, confidence=%.2f)", event.SourceApp, verdict.Confidence)
}
