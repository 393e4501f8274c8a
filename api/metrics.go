package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertUnlockFailureSpike AlertType = "unlock_failure_spike"
	AlertBulkExport         AlertType = "bulk_export"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// metricsCollector keeps sliding windows of unlock failures and exports and
// raises an alert when either crosses its threshold.
type metricsCollector struct {
	mu  sync.Mutex
	now func() time.Time

	unlockFailures window
	exports        window
	alertFn        AlertFunc
}

type window struct {
	times     []time.Time
	span      time.Duration
	threshold int
}

const (
	defaultUnlockFailureWindow    = 10 * time.Minute
	defaultUnlockFailureThreshold = 20
	defaultExportWindow           = 5 * time.Minute
	defaultExportThreshold        = 5
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		now:            time.Now,
		unlockFailures: window{span: defaultUnlockFailureWindow, threshold: defaultUnlockFailureThreshold},
		exports:        window{span: defaultExportWindow, threshold: defaultExportThreshold},
		alertFn:        alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	switch event {
	case AuditUnlockFailure, AuditUnlockLockedOut:
		m.record(&m.unlockFailures, AlertUnlockFailureSpike, "unlock failure rate exceeds threshold")
	case AuditVaultExported:
		m.record(&m.exports, AlertBulkExport, "vault export rate exceeds threshold")
	}
}

func (m *metricsCollector) record(w *window, typ AlertType, msg string) {
	m.mu.Lock()
	now := m.now()
	w.times = trimWindow(append(w.times, now), now, w.span)
	if len(w.times) < w.threshold {
		m.mu.Unlock()
		return
	}
	alert := AlertEvent{
		Type:      typ,
		Message:   msg,
		Count:     len(w.times),
		Threshold: w.threshold,
		Timestamp: now,
	}
	// Reset to avoid repeated alerts within the same spike.
	w.times = w.times[:0]
	m.mu.Unlock()

	m.alertFn(alert)
}

// trimWindow removes entries older than (now - span) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, span time.Duration) []time.Time {
	cutoff := now.Add(-span)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
