// Package metrics counts decode outcomes per balloon.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"wsprbridge/internal/telemetry"
)

const namespace = "wsprbridge"

// Rejection reasons
const (
	ReasonStale    = "stale"
	ReasonMismatch = "mismatch"
	ReasonNoFix    = "nofix"
)

// Upload results
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the collectors of one process
type Metrics struct {
	registry *prometheus.Registry

	decoded      *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	uploads      *prometheus.CounterVec
	altitude     *prometheus.GaugeVec
}

// New creates and registers the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Telemetry frames decoded and accepted.",
		}, []string{"balloon"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Frame pairs rejected before or after decoding.",
		}, []string{"balloon", "reason"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Frame pairs that could not be decoded.",
		}, []string{"balloon"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploads per target and result.",
		}, []string{"balloon", "target", "result"}),
		altitude: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_altitude_meters",
			Help:      "Altitude of the last accepted frame.",
		}, []string{"balloon"}),
	}

	m.registry.MustRegister(m.decoded, m.rejected, m.decodeErrors, m.uploads, m.altitude)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Decoded records an accepted frame
func (m *Metrics) Decoded(balloon string, tel telemetry.Telemetry) {
	m.decoded.WithLabelValues(balloon).Inc()
	m.altitude.WithLabelValues(balloon).Set(float64(tel.Altitude))
}

// Failed classifies a correlate or decode error. It returns the rejection
// reason, or "" when err counted as a decode error.
func (m *Metrics) Failed(balloon string, err error) string {
	reason := RejectionReason(err)
	if reason == "" {
		m.decodeErrors.WithLabelValues(balloon).Inc()
		return ""
	}
	m.rejected.WithLabelValues(balloon, reason).Inc()
	return reason
}

// Upload records the outcome of one upload attempt
func (m *Metrics) Upload(balloon, target string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.uploads.WithLabelValues(balloon, target, result).Inc()
}

// WriteTextfile writes every collector in text format for the node
// exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// RejectionReason maps a rejection error to its label, "" otherwise
func RejectionReason(err error) string {
	var stale *telemetry.StalePairError
	var mismatch *telemetry.IdentityMismatchError
	var nofix *telemetry.NoFixError

	switch {
	case errors.As(err, &stale):
		return ReasonStale
	case errors.As(err, &mismatch):
		return ReasonMismatch
	case errors.As(err, &nofix):
		return ReasonNoFix
	}
	return ""
}
