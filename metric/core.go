// Package metric provides Prometheus metrics for the telemetry link:
// a private registry with per-component metric registration and an
// optional HTTP server exposing the scrape endpoint.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the core link-level metrics (not consumer-specific)
type Metrics struct {
	// Link state
	LinkUp     prometheus.Gauge
	Reconnects prometheus.Counter

	// Message flow
	MessagesReceived *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec
	SendErrors       prometheus.Counter
	DecodeErrors     prometheus.Counter

	// Reception health
	ReceptionFrequency prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all core link metrics
func NewMetrics() *Metrics {
	return &Metrics{
		LinkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "segs",
			Subsystem: "link",
			Name:      "up",
			Help:      "Link state (1=connected, 0=disconnected)",
		}),

		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segs",
			Subsystem: "link",
			Name:      "reconnects_total",
			Help:      "Total number of successful connection (re)opens",
		}),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "segs",
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Total number of telemetry messages received",
			},
			[]string{"message"},
		),

		MessagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "segs",
				Subsystem: "messages",
				Name:      "sent_total",
				Help:      "Total number of command messages sent",
			},
			[]string{"message"},
		),

		SendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segs",
			Subsystem: "messages",
			Name:      "send_errors_total",
			Help:      "Total number of failed message transmissions",
		}),

		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segs",
			Subsystem: "messages",
			Name:      "decode_errors_total",
			Help:      "Total number of malformed frames skipped",
		}),

		ReceptionFrequency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "segs",
			Subsystem: "link",
			Name:      "reception_frequency_hz",
			Help:      "Message reception frequency over the trailing window",
		}),
	}
}
