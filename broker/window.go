package broker

import "time"

// DefaultWindowThreshold is the trailing window over which link
// frequency and staleness are computed.
const DefaultWindowThreshold = 3 * time.Second

// ReceptionWindow tracks receipt instants over a trailing window. Push
// keeps the newest instant at the front and evicts everything older than
// the threshold; Frequency and TimeSinceLastReception read the window.
// Not safe for concurrent use; the broker serializes access.
type ReceptionWindow struct {
	threshold time.Duration
	instants  []time.Time // newest first

	now func() time.Time
}

// NewReceptionWindow creates a window with the given trailing threshold.
func NewReceptionWindow(threshold time.Duration) *ReceptionWindow {
	if threshold <= 0 {
		threshold = DefaultWindowThreshold
	}
	return &ReceptionWindow{threshold: threshold, now: time.Now}
}

// Push records a receipt instant and evicts entries older than the
// threshold relative to it.
func (w *ReceptionWindow) Push(instant time.Time) {
	w.instants = append(w.instants, time.Time{})
	copy(w.instants[1:], w.instants)
	w.instants[0] = instant

	cutoff := instant.Add(-w.threshold)
	for len(w.instants) > 0 && w.instants[len(w.instants)-1].Before(cutoff) {
		w.instants = w.instants[:len(w.instants)-1]
	}
}

// Frequency reports the reception rate in Hz: entries newer than
// now minus the threshold, divided by the threshold length.
func (w *ReceptionWindow) Frequency() float64 {
	cutoff := w.now().Add(-w.threshold)
	n := 0
	for _, instant := range w.instants {
		if !instant.Before(cutoff) {
			n++
		} else {
			break // instants are ordered newest first
		}
	}
	return float64(n) / w.threshold.Seconds()
}

// TimeSinceLastReception reports the age of the most recent entry. The
// second return is false when nothing was ever received.
func (w *ReceptionWindow) TimeSinceLastReception() (time.Duration, bool) {
	if len(w.instants) == 0 {
		return 0, false
	}
	return w.now().Sub(w.instants[0]), true
}
