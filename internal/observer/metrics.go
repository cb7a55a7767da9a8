package observer

import (
	"sync"
	"time"
)

// Metrics holds pipeline counters, exposed through the metrics endpoint.
type Metrics struct {
	mu sync.Mutex

	EventsReceived      int64     `json:"events_received"`
	Malformed           int64     `json:"malformed"`
	AdmissionRejected   int64     `json:"admission_rejected"`
	GatedOff            int64     `json:"gated_off"`
	DuplicateSuppressed int64     `json:"duplicate_suppressed"`
	ScansSubmitted      int64     `json:"scans_submitted"`
	ScansUnavailable    int64     `json:"scans_unavailable"`
	CleanVerdicts       int64     `json:"clean_verdicts"`
	ThreatsAlerted      int64     `json:"threats_alerted"`
	LastEventAt         time.Time `json:"last_event_at"`
}

// NewMetrics creates zeroed pipeline counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) EventReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EventsReceived++
	m.LastEventAt = time.Now()
}

func (m *Metrics) Record(outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch outcome {
	case OutcomeMalformed:
		m.Malformed++
	case OutcomeAdmissionRejected:
		m.AdmissionRejected++
	case OutcomeGatedOff:
		m.GatedOff++
	case OutcomeDuplicateSuppressed:
		m.DuplicateSuppressed++
	case OutcomeSubmitted:
		m.ScansSubmitted++
	}
}

func (m *Metrics) ScanUnavailable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScansUnavailable++
}

func (m *Metrics) CleanVerdict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CleanVerdicts++
}

func (m *Metrics) ThreatAlerted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ThreatsAlerted++
}

// Snapshot returns a copy safe for JSON encoding.
func (m *Metrics) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		EventsReceived:      m.EventsReceived,
		Malformed:           m.Malformed,
		AdmissionRejected:   m.AdmissionRejected,
		GatedOff:            m.GatedOff,
		DuplicateSuppressed: m.DuplicateSuppressed,
		ScansSubmitted:      m.ScansSubmitted,
		ScansUnavailable:    m.ScansUnavailable,
		CleanVerdicts:       m.CleanVerdicts,
		ThreatsAlerted:      m.ThreatsAlerted,
		LastEventAt:         m.LastEventAt,
	}
}
