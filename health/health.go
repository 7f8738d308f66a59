// Package health derives a link health snapshot from the broker state,
// served as JSON by the metrics endpoint.
package health

import (
	"time"

	"github.com/skyward-er/segs-sub000/broker"
)

// Status levels. Degraded means the link is up but nothing has arrived
// within the staleness threshold.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// staleThreshold is how long the link may stay silent before a connected
// link counts as degraded.
const staleThreshold = 5 * time.Second

// Status is one health snapshot of the telemetry link.
type Status struct {
	Status             string        `json:"status"`
	Connected          bool          `json:"connected"`
	ReceptionFrequency float64       `json:"reception_frequency_hz"`
	SinceLastReception time.Duration `json:"since_last_reception,omitempty"`
	HistoryLen         int           `json:"history_len"`
	LastError          string        `json:"last_error,omitempty"`
	Timestamp          time.Time     `json:"timestamp"`
}

// IsHealthy reports whether the link is up and flowing.
func (s Status) IsHealthy() bool {
	return s.Status == StatusHealthy
}

// Check builds a health snapshot from the broker.
func Check(b *broker.MessageBroker) Status {
	s := Status{
		Connected:          b.IsConnected(),
		ReceptionFrequency: b.ReceptionFrequency(),
		HistoryLen:         b.HistoryLen(),
		Timestamp:          time.Now(),
	}
	if err := b.LastError(); err != nil {
		s.LastError = err.Error()
	}

	age, received := b.TimeSinceLastReception()
	if received {
		s.SinceLastReception = age
	}

	switch {
	case !s.Connected:
		s.Status = StatusUnhealthy
	case received && age > staleThreshold:
		s.Status = StatusDegraded
	default:
		s.Status = StatusHealthy
	}
	return s
}
