// Package metrics counts authentication outcomes. A CLI process is short lived,
// so the counters are written to a node_exporter textfile on exit instead of served.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the face-gate collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Login outcomes: granted, banned, no_match, aborted, error
	AuthAttempts *prometheus.CounterVec

	// Enrollment outcomes: stored, rejected, aborted, error
	Enrollments *prometheus.CounterVec

	Bans prometheus.Counter

	// Wall time of a login scan from first frame to outcome
	ScanDuration prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "face_gate_auth_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		Enrollments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "face_gate_enrollments_total",
			Help: "Enrollment attempts by outcome",
		}, []string{"outcome"}),
		Bans: factory.NewCounter(prometheus.CounterOpts{
			Name: "face_gate_bans_total",
			Help: "Users moved to the banned registry",
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "face_gate_scan_duration_seconds",
			Help:    "Duration of login scans",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
}

// IncAuth records a login outcome.
func (m *Metrics) IncAuth(outcome string) {
	if m != nil {
		m.AuthAttempts.WithLabelValues(outcome).Inc()
	}
}

// IncEnrollment records an enrollment outcome.
func (m *Metrics) IncEnrollment(outcome string) {
	if m != nil {
		m.Enrollments.WithLabelValues(outcome).Inc()
	}
}

// IncBan records a ban.
func (m *Metrics) IncBan() {
	if m != nil {
		m.Bans.Inc()
	}
}

// ObserveScan records how long a login scan took.
func (m *Metrics) ObserveScan(d time.Duration) {
	if m != nil {
		m.ScanDuration.Observe(d.Seconds())
	}
}

// Flush writes all collectors to path in the text exposition format.
// An empty path or nil receiver does nothing.
func (m *Metrics) Flush(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
